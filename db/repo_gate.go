// db/repo_gate.go
package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"asset_gatepass_tool/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ResolveGatePass maps a presented code — scanned QR payload or typed text,
// no difference here — to its request. Gate pass code is tried first, then
// the raw request id as the manual-lookup key space. Both paths are index
// hits, never scans.
//
// The code match is restricted to open requests: a terminal request keeps
// its code for the audit trail, and the mint loop may hand the same code to
// a later approval. Only the open holder is the live pass.
func (r *Repo) ResolveGatePass(ctx context.Context, code string) (*RequestView, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("empty code: %w", ErrValidation)
	}

	tx := r.DB.WithContext(ctx)
	var req models.Request
	err := tx.Where("gate_pass_code = ? AND status IN ?",
		strings.ToUpper(code), models.OpenStatuses).First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Manual fallback by request id. Skip the query when the input
		// cannot be a uuid; Postgres would reject the comparison outright.
		if _, perr := uuid.Parse(code); perr != nil {
			return nil, fmt.Errorf("gate pass %q: %w", code, ErrNotFound)
		}
		err = tx.First(&req, "id = ?", code).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("gate pass %q: %w", code, ErrNotFound)
		}
	}
	if err != nil {
		return nil, err
	}
	return loadRequestView(tx, &req)
}

// requireGuard loads and checks the acting guard. Admins may also operate
// the gate (covering for an absent guard).
func requireGuard(tx *gorm.DB, guardID string) (*models.User, error) {
	g, err := lockUser(tx, guardID)
	if err != nil {
		return nil, err
	}
	if !g.IsActive {
		return nil, fmt.Errorf("guard %s is inactive: %w", g.ID, ErrNotAuthorized)
	}
	if g.Role != models.RoleGuard && g.Role != models.RoleAdmin {
		return nil, fmt.Errorf("gate actions require GUARD, actor is %s: %w", g.Role, ErrNotAuthorized)
	}
	return g, nil
}

// VerifyExit marks a single-use gate pass as redeemed. The request must be
// exit-eligible and unverified; a second attempt is ErrAlreadyVerified so a
// double exit never logs as a success. On success every referenced asset
// goes IN_USE — this is the moment it physically leaves the building.
func (r *Repo) VerifyExit(ctx context.Context, requestID, guardID, comment string) (*RequestView, error) {
	var view *RequestView
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		guard, err := requireGuard(tx, guardID)
		if err != nil {
			return err
		}
		req, err := lockRequest(tx, requestID)
		if err != nil {
			return err
		}
		if !req.Status.ExitEligible() {
			return fmt.Errorf("request %s is %s: %w", req.ID, req.Status, ErrNotApproved)
		}
		if req.GateVerified {
			return fmt.Errorf("request %s verified at %s: %w",
				req.ID, req.GateVerifiedAt, ErrAlreadyVerified)
		}

		now := r.Now()
		patch := map[string]any{
			"gate_verified":    true,
			"gate_verified_by": guard.ID,
			"gate_verified_at": now,
			"updated_at":       now,
		}
		if c := strings.TrimSpace(comment); c != "" {
			patch["gate_comment"] = c
		}
		if err := tx.Model(&models.Request{}).Where("id = ?", req.ID).Updates(patch).Error; err != nil {
			return err
		}
		if err := r.logGateEvent(tx, req.ID, guard, models.GateActionVerify, comment); err != nil {
			return err
		}

		var assetIDs []string
		if err := tx.Model(&models.RequestItem{}).
			Where("request_id = ?", req.ID).Pluck("asset_id", &assetIDs).Error; err != nil {
			return err
		}
		if err := ledgerMarkInUse(tx, assetIDs); err != nil {
			return err
		}

		if err := r.notify(tx, req.RequesterID,
			fmt.Sprintf("Gate pass %s verified, exit authorized.", deref(req.GatePassCode)),
			models.SeverityInfo); err != nil {
			return err
		}
		if err := r.notifyAdmins(tx,
			fmt.Sprintf("Gate exit verified for request %s by %s.", req.ID, guard.Email),
			models.SeverityInfo); err != nil {
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

// DenyExit records a gate issue without moving the state machine: status
// and gate_verified stay put, the audit trail gets a DENY row, and both the
// requester and the admin audience are told. The request can be retried at
// the gate afterwards.
func (r *Repo) DenyExit(ctx context.Context, requestID, guardID, comment string) (*RequestView, error) {
	if strings.TrimSpace(comment) == "" {
		return nil, fmt.Errorf("issue comment required: %w", ErrValidation)
	}

	var view *RequestView
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		guard, err := requireGuard(tx, guardID)
		if err != nil {
			return err
		}
		req, err := lockRequest(tx, requestID)
		if err != nil {
			return err
		}
		if !req.Status.ExitEligible() {
			return fmt.Errorf("request %s is %s: %w", req.ID, req.Status, ErrNotApproved)
		}
		if req.GateVerified {
			return fmt.Errorf("request %s already verified: %w", req.ID, ErrAlreadyVerified)
		}

		if err := r.logGateEvent(tx, req.ID, guard, models.GateActionDeny, comment); err != nil {
			return err
		}
		if err := r.notify(tx, req.RequesterID,
			fmt.Sprintf("Exit denied at the gate for request %s: %s", req.ID, strings.TrimSpace(comment)),
			models.SeverityAction); err != nil {
			return err
		}
		if err := r.notifyAdmins(tx,
			fmt.Sprintf("Gate issue reported by %s on request %s: %s",
				guard.Email, req.ID, strings.TrimSpace(comment)),
			models.SeverityAction); err != nil {
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

func (r *Repo) logGateEvent(tx *gorm.DB, requestID string, guard *models.User, action models.GateAction, comment string) error {
	ev := &models.GateEvent{
		ID:         r.NewID(),
		RequestID:  requestID,
		GuardID:    guard.ID,
		GuardEmail: guard.Email,
		Action:     action,
		CreatedAt:  r.Now(),
	}
	if c := strings.TrimSpace(comment); c != "" {
		ev.Comment = &c
	}
	if err := tx.Create(ev).Error; err != nil {
		return fmt.Errorf("insert gate event: %w", err)
	}
	return nil
}

func (r *Repo) ListGateEvents(ctx context.Context, requestID string) ([]models.GateEvent, error) {
	var evs []models.GateEvent
	err := r.DB.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("created_at ASC").Find(&evs).Error
	return evs, err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
