// controllers/deployment_controller.go
package controllers

import (
	"net/http"
	"strconv"

	"asset_gatepass_tool/app"
	"asset_gatepass_tool/db"

	"github.com/gin-gonic/gin"
)

type DeploymentController struct{ *Srv }

func NewDeploymentController(s *Srv) *DeploymentController {
	return &DeploymentController{Srv: s}
}

// POST /api/deployments  (admin) — permanent, there is no undo endpoint.
func (dc *DeploymentController) Create(c *gin.Context) {
	var in struct {
		ClientName string   `json:"clientName" binding:"required"`
		Note       string   `json:"note"`
		AssetIDs   []string `json:"assetIds" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	view, err := dc.Repo.CreateDeployment(c.Request.Context(), db.CreateDeploymentInput{
		ActorID:    currentUserID(c),
		ClientName: in.ClientName,
		Note:       in.Note,
		AssetIDs:   in.AssetIDs,
	})
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// GET /api/deployments?page=&size=  (admin)
func (dc *DeploymentController) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	views, total, err := dc.Repo.ListDeployments(c.Request.Context(), page, size)
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"total": total, "deployments": views})
}

// GET /api/deployments/:id  (admin)
func (dc *DeploymentController) Get(c *gin.Context) {
	view, err := dc.Repo.GetDeployment(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
