// controllers/gate_controller.go
package controllers

import (
	"net/http"

	"asset_gatepass_tool/app"

	"github.com/gin-gonic/gin"
)

type GateController struct{ *Srv }

func NewGateController(s *Srv) *GateController { return &GateController{Srv: s} }

// POST /api/gate/resolve
// The body carries whatever the scanner or the keyboard produced; QR and
// manual entry are the same opaque string by the time they get here.
func (gc *GateController) Resolve(c *gin.Context) {
	var in struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	view, err := gc.Repo.ResolveGatePass(c.Request.Context(), in.Code)
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// POST /api/gate/:id/verify
func (gc *GateController) Verify(c *gin.Context) {
	var in struct {
		Comment string `json:"comment"`
	}
	_ = c.ShouldBindJSON(&in)

	view, err := gc.Repo.VerifyExit(c.Request.Context(), c.Param("id"), currentUserID(c), in.Comment)
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// POST /api/gate/:id/deny
func (gc *GateController) Deny(c *gin.Context) {
	var in struct {
		Comment string `json:"comment" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": "need an issue comment"})
		return
	}
	view, err := gc.Repo.DenyExit(c.Request.Context(), c.Param("id"), currentUserID(c), in.Comment)
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GET /api/gate/:id/events
func (gc *GateController) Events(c *gin.Context) {
	evs, err := gc.Repo.ListGateEvents(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"events": evs})
}
