// controllers/import_controller.go
package controllers

import (
	"net/http"

	"asset_gatepass_tool/app"
	"asset_gatepass_tool/db"

	"github.com/gin-gonic/gin"
)

type ImportController struct{ *Srv }

func NewImportController(s *Srv) *ImportController { return &ImportController{Srv: s} }

// POST /api/import/users  (admin) — multipart field "file", CSV of
// email,displayName,role[,phone]. Bad rows are reported, good rows land.
func (ic *ImportController) Users(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": "missing file"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	defer f.Close()

	rows, parseErrs := db.ParseUsersCSV(f)
	res := ic.Repo.ImportUsers(c.Request.Context(), rows)
	res.Errors = append(parseErrs, res.Errors...)
	c.JSON(http.StatusOK, res)
}

// POST /api/import/assets  (admin) — CSV of serial,name[,category].
func (ic *ImportController) Assets(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": "missing file"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	defer f.Close()

	rows, parseErrs := db.ParseAssetsCSV(f)
	res := ic.Repo.ImportAssets(c.Request.Context(), rows)
	res.Errors = append(parseErrs, res.Errors...)
	c.JSON(http.StatusOK, res)
}
