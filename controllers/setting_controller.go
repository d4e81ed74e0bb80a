// controllers/setting_controller.go
package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type SettingController struct{ *Srv }

func NewSettingController(s *Srv) *SettingController { return &SettingController{Srv: s} }

// GET /api/settings
func (sc *SettingController) List(c *gin.Context) {
	ss, err := sc.Repo.ListSettings(c.Request.Context())
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, ss)
}

// GET /api/settings/:key
func (sc *SettingController) Get(c *gin.Context) {
	s, err := sc.Repo.GetSetting(c.Request.Context(), c.Param("key"))
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// PUT /api/settings/:key
func (sc *SettingController) Put(c *gin.Context) {
	var body struct {
		Value string `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s, err := sc.Repo.PutSetting(c.Request.Context(), c.Param("key"), body.Value, currentUserID(c))
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}
