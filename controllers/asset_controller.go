// controllers/asset_controller.go
package controllers

import (
	"net/http"
	"strconv"

	"asset_gatepass_tool/app"
	"asset_gatepass_tool/db"
	"asset_gatepass_tool/models"

	"github.com/gin-gonic/gin"
)

type AssetController struct{ *Srv }

func NewAssetController(s *Srv) *AssetController { return &AssetController{Srv: s} }

// POST /api/assets  (admin) — one asset per serial under a shared model.
func (ac *AssetController) Create(c *gin.Context) {
	var in struct {
		Name     string   `json:"name" binding:"required"`
		Category string   `json:"category"`
		Serials  []string `json:"serials" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	assets, err := ac.Repo.CreateAssets(c.Request.Context(), in.Name, in.Category, in.Serials)
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusCreated, app.H{"assets": assets})
}

// GET /api/assets?q=&status=&page=&size=
func (ac *AssetController) List(c *gin.Context) {
	q := db.AssetsQuery{
		Q:      c.Query("q"),
		Status: models.AssetStatus(c.Query("status")),
	}
	q.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	q.Size, _ = strconv.Atoi(c.DefaultQuery("size", "20"))

	res, err := ac.Repo.ListAssets(c.Request.Context(), q)
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /api/assets/:id
func (ac *AssetController) Get(c *gin.Context) {
	a, err := ac.Repo.FindAssetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// POST /api/assets/:id/maintenance  (admin)
func (ac *AssetController) Maintenance(c *gin.Context) {
	var in struct {
		On bool `json:"on"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	a, err := ac.Repo.SetAssetMaintenance(c.Request.Context(), c.Param("id"), in.On)
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// GET /api/assets/ledger-check  (admin) — should always come back empty.
func (ac *AssetController) LedgerCheck(c *gin.Context) {
	drift, err := ac.Repo.CheckLedger(c.Request.Context())
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": len(drift) == 0, "drift": drift})
}
