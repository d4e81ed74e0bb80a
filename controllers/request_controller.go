// controllers/request_controller.go
package controllers

import (
	"net/http"
	"strconv"
	"time"

	"asset_gatepass_tool/app"
	"asset_gatepass_tool/db"
	"asset_gatepass_tool/models"

	"github.com/gin-gonic/gin"
)

type RequestController struct{ *Srv }

func NewRequestController(s *Srv) *RequestController { return &RequestController{Srv: s} }

// POST /api/requests
func (rc *RequestController) Submit(c *gin.Context) {
	var in struct {
		AssetIDs         []string   `json:"assetIds" binding:"required"`
		Purpose          string     `json:"purpose" binding:"required"`
		ReturnDate       *time.Time `json:"returnDate"`
		CheckoutPhotoRef *string    `json:"checkoutPhotoRef"`
		EvidenceMIME     *string    `json:"evidenceMime"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}

	view, err := rc.Repo.SubmitRequest(c.Request.Context(), db.SubmitRequestInput{
		RequesterID:      currentUserID(c),
		AssetIDs:         in.AssetIDs,
		Purpose:          in.Purpose,
		ReturnDate:       in.ReturnDate,
		CheckoutPhotoRef: in.CheckoutPhotoRef,
		EvidenceMIME:     in.EvidenceMIME,
	})
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// GET /api/requests?status=&requesterId=&open=&page=&size=
// Non-admins only ever see their own requests, whatever they ask for.
func (rc *RequestController) List(c *gin.Context) {
	q := db.RequestQuery{
		RequesterID: c.Query("requesterId"),
		Status:      models.RequestStatus(c.Query("status")),
		OpenOnly:    c.Query("open") == "true",
	}
	q.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	q.Size, _ = strconv.Atoi(c.DefaultQuery("size", "20"))

	v, _ := c.Get("role")
	if role, _ := v.(models.Role); role != models.RoleAdmin && role != models.RoleGuard {
		q.RequesterID = currentUserID(c)
	}

	res, err := rc.Repo.ListRequests(c.Request.Context(), q)
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /api/requests/:id
func (rc *RequestController) Get(c *gin.Context) {
	view, err := rc.Repo.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpError(c, err)
		return
	}
	v, _ := c.Get("role")
	if role, _ := v.(models.Role); role != models.RoleAdmin && role != models.RoleGuard {
		if view.RequesterID != currentUserID(c) {
			c.JSON(http.StatusForbidden, app.H{"error": "forbidden"})
			return
		}
	}
	c.JSON(http.StatusOK, view)
}

// POST /api/requests/:id/decision  (admin)
func (rc *RequestController) Decide(c *gin.Context) {
	var in struct {
		Outcome string `json:"outcome" binding:"required"` // APPROVE | REJECT
		Reason  string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	var approve bool
	switch in.Outcome {
	case "APPROVE":
		approve = true
	case "REJECT":
		approve = false
	default:
		c.JSON(http.StatusBadRequest, app.H{"error": "outcome must be APPROVE or REJECT"})
		return
	}

	view, err := rc.Repo.DecideRequest(c.Request.Context(), c.Param("id"), currentUserID(c), approve, in.Reason)
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// POST /api/requests/:id/cancel  (owner, PENDING only)
func (rc *RequestController) Cancel(c *gin.Context) {
	var in struct {
		Note string `json:"note" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	view, err := rc.Repo.CancelRequest(c.Request.Context(), c.Param("id"), currentUserID(c), in.Note)
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// POST /api/requests/:id/return  (owner, gate-verified only)
func (rc *RequestController) Return(c *gin.Context) {
	var in struct {
		ReturnPhotoRef   *string `json:"returnPhotoRef"`
		EvidenceMIME     *string `json:"evidenceMime"`
		MissingItemsNote *string `json:"missingItemsNote"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	view, err := rc.Repo.SubmitReturn(c.Request.Context(), c.Param("id"), currentUserID(c), db.SubmitReturnInput{
		ReturnPhotoRef:   in.ReturnPhotoRef,
		EvidenceMIME:     in.EvidenceMIME,
		MissingItemsNote: in.MissingItemsNote,
	})
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
