// controllers/user_controller.go
package controllers

import (
	"net/http"
	"strconv"

	"asset_gatepass_tool/app"
	"asset_gatepass_tool/db"
	"asset_gatepass_tool/models"

	"github.com/gin-gonic/gin"
)

type UserController struct{ *Srv }

func NewUserController(s *Srv) *UserController { return &UserController{Srv: s} }

// GET /api/users?q=&page=&size=  (admin)
func (uc *UserController) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	res, err := uc.Repo.ListUsers(c.Request.Context(), c.Query("q"), page, size)
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /api/users/:id  (admin)
func (uc *UserController) Get(c *gin.Context) {
	u, err := uc.Repo.FindUserByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// PATCH /api/me — contact fields only; the next read-join everywhere shows
// the new values, including the guard's asset list.
func (uc *UserController) UpdateMe(c *gin.Context) {
	var in struct {
		DisplayName *string `json:"displayName"`
		Phone       *string `json:"phone"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	u, err := uc.Repo.UpdateUserProfile(c.Request.Context(), currentUserID(c), db.UpdateProfileInput{
		DisplayName: in.DisplayName,
		Phone:       in.Phone,
	})
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// PUT /api/users/:id/role  (admin)
func (uc *UserController) SetRole(c *gin.Context) {
	var in struct {
		Role models.Role `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	if err := uc.Repo.SetUserRole(c.Request.Context(), c.Param("id"), in.Role); err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// PUT /api/users/:id/active  (admin) — deactivation also revokes every live
// session, so the gate on login is a gate on everything.
func (uc *UserController) SetActive(c *gin.Context) {
	var in struct {
		Active *bool `json:"active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	id := c.Param("id")
	if err := uc.Repo.SetUserActive(c.Request.Context(), id, *in.Active); err != nil {
		httpError(c, err)
		return
	}
	if !*in.Active {
		_ = uc.AppSess.RevokeAllForUser(c.Request.Context(), id)
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}
