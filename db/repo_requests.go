// db/repo_requests.go
package db

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"asset_gatepass_tool/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RequestView is the read shape of a request. User and Assets are projected
// fresh from the live tables on every read — a contact-detail edit or CSV
// re-import is visible on the very next fetch, no stored copy to go stale.
type RequestView struct {
	models.Request
	User   models.User    `json:"user"`
	Assets []models.Asset `json:"assets"`
}

// loadRequestView re-joins requester and assets inside the caller's
// transaction (or plain session). A dangling foreign key is a loud
// ErrConsistency, never silently skipped.
func loadRequestView(tx *gorm.DB, req *models.Request) (*RequestView, error) {
	var u models.User
	if err := tx.First(&u, "id = ?", req.RequesterID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("request %s references missing user %s: %w",
				req.ID, req.RequesterID, ErrConsistency)
		}
		return nil, err
	}

	var items []models.RequestItem
	if err := tx.Where("request_id = ?", req.ID).
		Order("position ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.AssetID)
	}
	var rows []models.Asset
	if err := tx.Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]models.Asset, len(rows))
	for _, a := range rows {
		byID[a.ID] = a
	}
	assets := make([]models.Asset, 0, len(items))
	for _, it := range items {
		a, ok := byID[it.AssetID]
		if !ok {
			return nil, fmt.Errorf("request %s references missing asset %s: %w",
				req.ID, it.AssetID, ErrConsistency)
		}
		assets = append(assets, a)
	}

	return &RequestView{Request: *req, User: u, Assets: assets}, nil
}

// lockRequest loads the request row FOR UPDATE so overlapping transitions
// on the same request serialize; the loser sees the committed status.
func lockRequest(tx *gorm.DB, id string) (*models.Request, error) {
	var req models.Request
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&req, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound(err, "request", id)
	}
	return &req, nil
}

// dedupIDs drops repeated ids, keeping first-seen order.
func dedupIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

type SubmitRequestInput struct {
	RequesterID      string
	AssetIDs         []string
	Purpose          string
	ReturnDate       *time.Time
	CheckoutPhotoRef *string
	EvidenceMIME     *string
}

// SubmitRequest creates a PENDING request. Asset status is deliberately not
// touched: reservation stays soft until the gate, matching the documented
// product behavior. The only double-booking guard is the open-request check
// below.
func (r *Repo) SubmitRequest(ctx context.Context, in SubmitRequestInput) (*RequestView, error) {
	if strings.TrimSpace(in.Purpose) == "" {
		return nil, fmt.Errorf("purpose required: %w", ErrValidation)
	}
	assetIDs := dedupIDs(in.AssetIDs)
	if len(assetIDs) == 0 {
		return nil, fmt.Errorf("at least one asset required: %w", ErrValidation)
	}

	var view *RequestView
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		requester, err := lockUser(tx, in.RequesterID)
		if err != nil {
			return err
		}
		if !requester.IsActive {
			return fmt.Errorf("requester %s is inactive: %w", requester.ID, ErrNotAuthorized)
		}

		// Lock the asset rows in id order so concurrent multi-asset
		// submissions cannot deadlock each other.
		locked := append([]string(nil), assetIDs...)
		sort.Strings(locked)
		var assets []models.Asset
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id IN ?", locked).Order("id").Find(&assets).Error; err != nil {
			return err
		}
		if len(assets) != len(locked) {
			found := make(map[string]struct{}, len(assets))
			for _, a := range assets {
				found[a.ID] = struct{}{}
			}
			for _, id := range locked {
				if _, ok := found[id]; !ok {
					return fmt.Errorf("asset %s: %w", id, ErrNotFound)
				}
			}
		}
		for _, a := range assets {
			if a.Status != models.AssetAvailable {
				return fmt.Errorf("asset %s is %s: %w", a.Serial, a.Status, ErrAssetUnavailable)
			}
		}

		// Reject assets already attached to another open request.
		var clash []string
		if err := tx.Model(&models.RequestItem{}).
			Joins(fmt.Sprintf("JOIN %s req ON req.id = %s.request_id",
				models.RequestTable, models.RequestItemTable)).
			Where("asset_id IN ? AND req.status IN ?", locked, models.OpenStatuses).
			Pluck("asset_id", &clash).Error; err != nil {
			return err
		}
		if len(clash) > 0 {
			return fmt.Errorf("asset %s already on an open request: %w",
				clash[0], ErrAssetUnavailable)
		}

		now := r.Now()
		req := &models.Request{
			ID:               r.NewID(),
			RequesterID:      requester.ID,
			Status:           models.RequestPending,
			Purpose:          strings.TrimSpace(in.Purpose),
			RequestDate:      now,
			ReturnDate:       in.ReturnDate,
			CheckoutPhotoRef: in.CheckoutPhotoRef,
			EvidenceMIME:     in.EvidenceMIME,
		}
		if err := tx.Create(req).Error; err != nil {
			return err
		}
		items := make([]models.RequestItem, 0, len(assetIDs))
		for i, id := range assetIDs {
			items = append(items, models.RequestItem{RequestID: req.ID, AssetID: id, Position: i})
		}
		if err := tx.Create(&items).Error; err != nil {
			return err
		}

		if err := r.notify(tx, requester.ID,
			fmt.Sprintf("Request %s submitted for %d asset(s), awaiting approval.", req.ID, len(items)),
			models.SeverityInfo); err != nil {
			return err
		}

		view, err = loadRequestView(tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// mintPassCode picks a GP-#### code unused by any open request. The
// advisory xact lock serializes concurrent approvals; the partial unique
// index in Migrate is the backstop.
func (r *Repo) mintPassCode(tx *gorm.DB) (string, error) {
	if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext('agp_gate_pass_mint'))").Error; err != nil {
		return "", err
	}
	for attempt := 0; attempt < 50; attempt++ {
		code := r.NewPassCode()
		var n int64
		if err := tx.Model(&models.Request{}).
			Where("gate_pass_code = ? AND status IN ?", code, models.OpenStatuses).
			Count(&n).Error; err != nil {
			return "", err
		}
		if n == 0 {
			return code, nil
		}
	}
	return "", errors.New("mint gate pass: code space exhausted, too many open requests")
}

// DecideRequest applies an admin approval or rejection to a PENDING request.
// Approval mints the gate pass; asset status stays untouched until the gate.
func (r *Repo) DecideRequest(ctx context.Context, requestID, actorID string, approve bool, reason string) (*RequestView, error) {
	reason = strings.TrimSpace(reason)
	if !approve && reason == "" {
		return nil, fmt.Errorf("rejection reason required: %w", ErrValidation)
	}

	var view *RequestView
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		actor, err := lockUser(tx, actorID)
		if err != nil {
			return err
		}
		if actor.Role != models.RoleAdmin {
			return fmt.Errorf("decide requires ADMIN, actor is %s: %w", actor.Role, ErrNotAuthorized)
		}

		req, err := lockRequest(tx, requestID)
		if err != nil {
			return err
		}
		if !req.Status.CanDecide() {
			return fmt.Errorf("request %s is %s: %w", req.ID, req.Status, ErrInvalidState)
		}

		now := r.Now()
		patch := map[string]any{"updated_at": now}
		var msg string
		if approve {
			code, err := r.mintPassCode(tx)
			if err != nil {
				return err
			}
			patch["status"] = models.RequestApproved
			patch["approved_by"] = actor.ID
			patch["approved_at"] = now
			patch["gate_pass_code"] = code
			msg = fmt.Sprintf("Request %s approved. Gate pass: %s", req.ID, code)
		} else {
			patch["status"] = models.RequestRejected
			patch["rejected_by"] = actor.ID
			patch["rejected_at"] = now
			patch["rejection_reason"] = reason
			msg = fmt.Sprintf("Request %s rejected: %s", req.ID, reason)
		}
		if err := tx.Model(&models.Request{}).Where("id = ?", req.ID).Updates(patch).Error; err != nil {
			return err
		}
		if err := r.notify(tx, req.RequesterID, msg, models.SeverityInfo); err != nil {
			return err
		}

		var fresh models.Request
		if err := tx.First(&fresh, "id = ?", req.ID).Error; err != nil {
			return err
		}
		view, err = loadRequestView(tx, &fresh)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// CancelRequest is the owner's PENDING-only withdrawal.
func (r *Repo) CancelRequest(ctx context.Context, requestID, requesterID, note string) (*RequestView, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, fmt.Errorf("cancellation note required: %w", ErrValidation)
	}

	var view *RequestView
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		req, err := lockRequest(tx, requestID)
		if err != nil {
			return err
		}
		if req.RequesterID != requesterID {
			return fmt.Errorf("request %s belongs to another user: %w", req.ID, ErrNotOwner)
		}
		if !req.Status.CanCancel() {
			return fmt.Errorf("request %s is %s: %w", req.ID, req.Status, ErrInvalidState)
		}

		now := r.Now()
		if err := tx.Model(&models.Request{}).Where("id = ?", req.ID).Updates(map[string]any{
			"status":       models.RequestCancelled,
			"cancel_note":  note,
			"cancelled_at": now,
			"updated_at":   now,
		}).Error; err != nil {
			return err
		}

		var fresh models.Request
		if err := tx.First(&fresh, "id = ?", req.ID).Error; err != nil {
			return err
		}
		view, err = loadRequestView(tx, &fresh)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

type SubmitReturnInput struct {
	ReturnPhotoRef   *string
	EvidenceMIME     *string
	MissingItemsNote *string
}

// SubmitReturn closes out a gate-verified request and releases every
// referenced asset back to AVAILABLE. A damage/missing report flags the
// admin audience for review.
func (r *Repo) SubmitReturn(ctx context.Context, requestID, requesterID string, in SubmitReturnInput) (*RequestView, error) {
	var view *RequestView
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		req, err := lockRequest(tx, requestID)
		if err != nil {
			return err
		}
		if req.RequesterID != requesterID {
			return fmt.Errorf("request %s belongs to another user: %w", req.ID, ErrNotOwner)
		}
		if !req.Status.ExitEligible() || !req.GateVerified {
			return fmt.Errorf("request %s is %s (gate verified: %t): %w",
				req.ID, req.Status, req.GateVerified, ErrInvalidState)
		}

		now := r.Now()
		patch := map[string]any{
			"status":      models.RequestReturned,
			"returned_at": now,
			"updated_at":  now,
		}
		if in.ReturnPhotoRef != nil {
			patch["return_photo_ref"] = *in.ReturnPhotoRef
		}
		if in.EvidenceMIME != nil {
			patch["evidence_mime"] = *in.EvidenceMIME
		}
		report := ""
		if in.MissingItemsNote != nil {
			report = strings.TrimSpace(*in.MissingItemsNote)
		}
		if report != "" {
			patch["missing_items_note"] = report
		}
		if err := tx.Model(&models.Request{}).Where("id = ?", req.ID).Updates(patch).Error; err != nil {
			return err
		}

		var assetIDs []string
		if err := tx.Model(&models.RequestItem{}).
			Where("request_id = ?", req.ID).Pluck("asset_id", &assetIDs).Error; err != nil {
			return err
		}
		if err := ledgerRelease(tx, assetIDs); err != nil {
			return err
		}

		if err := r.notify(tx, req.RequesterID,
			fmt.Sprintf("Return recorded for request %s.", req.ID), models.SeverityInfo); err != nil {
			return err
		}
		if report != "" {
			if err := r.notifyAdmins(tx,
				fmt.Sprintf("Request %s returned with a missing/damaged items report: %s", req.ID, report),
				models.SeverityAction); err != nil {
				return err
			}
		}

		var fresh models.Request
		if err := tx.First(&fresh, "id = ?", req.ID).Error; err != nil {
			return err
		}
		view, err = loadRequestView(tx, &fresh)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// Queries

func (r *Repo) GetRequest(ctx context.Context, id string) (*RequestView, error) {
	tx := r.DB.WithContext(ctx)
	var req models.Request
	if err := tx.First(&req, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound(err, "request", id)
	}
	return loadRequestView(tx, &req)
}

type RequestQuery struct {
	RequesterID string
	Status      models.RequestStatus
	OpenOnly    bool
	Page        int
	Size        int
}

type PagedRequests struct {
	Total    int64          `json:"total"`
	Requests []*RequestView `json:"requests"`
}

// ListRequests re-joins user and asset data per row (the store's
// re-join-on-read contract); the embedded foreign keys are never served raw.
func (r *Repo) ListRequests(ctx context.Context, q RequestQuery) (*PagedRequests, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Size <= 0 || q.Size > 200 {
		q.Size = 20
	}

	tx := r.DB.WithContext(ctx).Model(&models.Request{})
	if q.RequesterID != "" {
		tx = tx.Where("requester_id = ?", q.RequesterID)
	}
	if q.Status != "" {
		if !q.Status.Valid() {
			return nil, fmt.Errorf("status %q: %w", q.Status, ErrValidation)
		}
		tx = tx.Where("status = ?", q.Status)
	}
	if q.OpenOnly {
		tx = tx.Where("status IN ?", models.OpenStatuses)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, err
	}
	var rows []models.Request
	if err := tx.Order("request_date DESC").
		Offset((q.Page - 1) * q.Size).Limit(q.Size).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	session := r.DB.WithContext(ctx)
	views := make([]*RequestView, 0, len(rows))
	for i := range rows {
		v, err := loadRequestView(session, &rows[i])
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return &PagedRequests{Total: total, Requests: views}, nil
}

// lockUser reads a user FOR UPDATE; transitions lock actor before request
// so role/active checks cannot race a deactivation.
func lockUser(tx *gorm.DB, id string) (*models.User, error) {
	var u models.User
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&u, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound(err, "user", id)
	}
	return &u, nil
}
