package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"asset_gatepass_tool/models"
)

// approvedRequest stands up the usual cast and walks a request to APPROVED.
func approvedRequest(t *testing.T, r *Repo) (req *RequestView, guard, owner *models.User) {
	t.Helper()
	ctx := context.Background()

	admin := mkUser(t, r, "admin@example.com", models.RoleAdmin)
	guard = mkUser(t, r, "guard@example.com", models.RoleGuard)
	owner = mkUser(t, r, "owner@example.com", models.RoleUser)
	assets := mkAssets(t, r, "Generator", "GEN-1")

	req, err := r.SubmitRequest(ctx, SubmitRequestInput{
		RequesterID: owner.ID, AssetIDs: assets, Purpose: "outage drill",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	req, err = r.DecideRequest(ctx, req.ID, admin.ID, true, "")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	return req, guard, owner
}

func TestVerifyIsSingleUse(t *testing.T) {
	r := openTestRepo(t)
	ctx := context.Background()
	req, guard, _ := approvedRequest(t, r)

	if _, err := r.VerifyExit(ctx, req.ID, guard.ID, ""); err != nil {
		t.Fatalf("first verify: %v", err)
	}
	if _, err := r.VerifyExit(ctx, req.ID, guard.ID, ""); !errors.Is(err, ErrAlreadyVerified) {
		t.Fatalf("second verify: %v", err)
	}
	// A deny after redemption is refused the same way.
	if _, err := r.DenyExit(ctx, req.ID, guard.ID, "late attempt"); !errors.Is(err, ErrAlreadyVerified) {
		t.Fatalf("deny after verify: %v", err)
	}
}

func TestVerifyRequiresApproval(t *testing.T) {
	r := openTestRepo(t)
	ctx := context.Background()

	guard := mkUser(t, r, "guard@example.com", models.RoleGuard)
	user := mkUser(t, r, "user@example.com", models.RoleUser)
	assets := mkAssets(t, r, "Mixer", "MX-1")

	req, err := r.SubmitRequest(ctx, SubmitRequestInput{
		RequesterID: user.ID, AssetIDs: assets, Purpose: "event",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := r.VerifyExit(ctx, req.ID, guard.ID, ""); !errors.Is(err, ErrNotApproved) {
		t.Fatalf("verify pending: %v", err)
	}
}

func TestVerifyRequiresGuardRole(t *testing.T) {
	r := openTestRepo(t)
	ctx := context.Background()
	req, _, owner := approvedRequest(t, r)

	// The requester cannot wave their own pass through.
	if _, err := r.VerifyExit(ctx, req.ID, owner.ID, ""); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("verify by USER: %v", err)
	}
}

func TestDenyLeavesStateRetryable(t *testing.T) {
	r := openTestRepo(t)
	ctx := context.Background()
	req, guard, _ := approvedRequest(t, r)

	if _, err := r.DenyExit(ctx, req.ID, guard.ID, ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("deny without comment: %v", err)
	}

	denied, err := r.DenyExit(ctx, req.ID, guard.ID, "serial mismatch on GEN-1")
	if err != nil {
		t.Fatalf("deny: %v", err)
	}
	if denied.Status != models.RequestApproved || denied.GateVerified {
		t.Fatalf("deny moved state: status=%s verified=%t", denied.Status, denied.GateVerified)
	}
	// Asset ledger untouched.
	if got := assetStatus(t, r, denied.Assets[0].ID); got != models.AssetAvailable {
		t.Fatalf("asset after deny = %s", got)
	}

	// The pass survives a denial: the requester can come back to the gate.
	if _, err := r.VerifyExit(ctx, req.ID, guard.ID, "resolved"); err != nil {
		t.Fatalf("verify after deny: %v", err)
	}

	evs, err := r.ListGateEvents(ctx, req.ID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(evs) != 2 || evs[0].Action != models.GateActionDeny || evs[1].Action != models.GateActionVerify {
		t.Fatalf("gate trail: %+v", evs)
	}
	if evs[0].Comment == nil || *evs[0].Comment != "serial mismatch on GEN-1" {
		t.Fatalf("deny comment: %v", evs[0].Comment)
	}
}

func TestReturnNeedsVerifiedExit(t *testing.T) {
	r := openTestRepo(t)
	ctx := context.Background()
	req, guard, owner := approvedRequest(t, r)

	// Approved but never out of the building: nothing to return.
	if _, err := r.SubmitReturn(ctx, req.ID, owner.ID, SubmitReturnInput{}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("return before verify: %v", err)
	}

	if _, err := r.VerifyExit(ctx, req.ID, guard.ID, ""); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if _, err := r.SubmitReturn(ctx, req.ID, guard.ID, SubmitReturnInput{}); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("return by non-owner: %v", err)
	}
	if _, err := r.SubmitReturn(ctx, req.ID, owner.ID, SubmitReturnInput{}); err != nil {
		t.Fatalf("return: %v", err)
	}
	// RETURNED is terminal; the pass is spent for good.
	if _, err := r.VerifyExit(ctx, req.ID, guard.ID, ""); !errors.Is(err, ErrNotApproved) {
		t.Fatalf("verify after return: %v", err)
	}
}

func TestResolveFindsOpenHolderOfReusedCode(t *testing.T) {
	r := openTestRepo(t)
	ctx := context.Background()

	admin := mkUser(t, r, "admin@example.com", models.RoleAdmin)
	guard := mkUser(t, r, "guard@example.com", models.RoleGuard)
	user := mkUser(t, r, "user@example.com", models.RoleUser)
	a1 := mkAssets(t, r, "Projector", "PRJ-1")
	a2 := mkAssets(t, r, "Projector", "PRJ-2")
	r.NewPassCode = func() string { return "GP-1234" }

	// An older pass completes its round trip; terminal requests keep their
	// code for the audit trail.
	late := time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)
	r.Now = func() time.Time { return late }
	spent, err := r.SubmitRequest(ctx, SubmitRequestInput{
		RequesterID: user.ID, AssetIDs: a1, Purpose: "done already",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := r.DecideRequest(ctx, spent.ID, admin.ID, true, ""); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := r.VerifyExit(ctx, spent.ID, guard.ID, ""); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if _, err := r.SubmitReturn(ctx, spent.ID, user.ID, SubmitReturnInput{}); err != nil {
		t.Fatalf("return: %v", err)
	}

	// A second request — submitted earlier on the clock — gets the freed
	// code. Resolution must land on the open holder, not the newer terminal
	// submission.
	early := late.Add(-24 * time.Hour)
	r.Now = func() time.Time { return early }
	live, err := r.SubmitRequest(ctx, SubmitRequestInput{
		RequesterID: user.ID, AssetIDs: a2, Purpose: "going out today",
	})
	if err != nil {
		t.Fatalf("submit live: %v", err)
	}
	live, err = r.DecideRequest(ctx, live.ID, admin.ID, true, "")
	if err != nil {
		t.Fatalf("approve live: %v", err)
	}
	if *live.GatePassCode != "GP-1234" {
		t.Fatalf("reminted code = %s", *live.GatePassCode)
	}

	got, err := r.ResolveGatePass(ctx, "GP-1234")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.ID != live.ID {
		t.Fatalf("resolved request %s (%s), want open holder %s", got.ID, got.Status, live.ID)
	}
	if _, err := r.VerifyExit(ctx, got.ID, guard.ID, ""); err != nil {
		t.Fatalf("verify resolved request: %v", err)
	}

	// Once the holder goes terminal the code stops resolving entirely.
	if _, err := r.SubmitReturn(ctx, live.ID, user.ID, SubmitReturnInput{}); err != nil {
		t.Fatalf("return live: %v", err)
	}
	if _, err := r.ResolveGatePass(ctx, "GP-1234"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("resolve spent code: %v", err)
	}
}

func TestResolveUnknownCode(t *testing.T) {
	r := openTestRepo(t)
	ctx := context.Background()

	if _, err := r.ResolveGatePass(ctx, "GP-9999"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown code: %v", err)
	}
	if _, err := r.ResolveGatePass(ctx, "not-a-uuid-either"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("garbage input: %v", err)
	}
	if _, err := r.ResolveGatePass(ctx, "  "); !errors.Is(err, ErrValidation) {
		t.Fatalf("blank input: %v", err)
	}
}
