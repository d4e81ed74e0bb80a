package db

import (
	"context"
	"errors"
	"os"
	"regexp"
	"sync"
	"testing"
	"time"

	"asset_gatepass_tool/models"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestRepo connects to TEST_DATABASE_URL, migrates and truncates. Tests
// using it are skipped when the variable is unset so the pure tests still run
// anywhere.
func openTestRepo(t *testing.T) *Repo {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	err = gdb.Exec(`TRUNCATE agp_gate_events, agp_notifications,
		agp_request_items, agp_requests, agp_deployment_items, agp_deployments,
		agp_credentials, agp_invites, agp_assets, agp_users, agp_settings`).Error
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return NewRepo(gdb)
}

func mkUser(t *testing.T, r *Repo, email string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{ID: r.NewID(), Email: email, DisplayName: email, Role: role, IsActive: true}
	if err := r.DB.Create(u).Error; err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

func mkAssets(t *testing.T, r *Repo, name string, serials ...string) []string {
	t.Helper()
	assets, err := r.CreateAssets(context.Background(), name, "test", serials)
	if err != nil {
		t.Fatalf("create assets: %v", err)
	}
	ids := make([]string, len(assets))
	for i, a := range assets {
		ids[i] = a.ID
	}
	return ids
}

func assetStatus(t *testing.T, r *Repo, id string) models.AssetStatus {
	t.Helper()
	a, err := r.FindAssetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("find asset %s: %v", id, err)
	}
	return a.Status
}

func TestRequestRoundTrip(t *testing.T) {
	r := openTestRepo(t)
	ctx := context.Background()

	admin := mkUser(t, r, "admin@example.com", models.RoleAdmin)
	guard := mkUser(t, r, "guard@example.com", models.RoleGuard)
	user := mkUser(t, r, "user@example.com", models.RoleUser)
	assets := mkAssets(t, r, "Projector", "PRJ-1", "PRJ-2")

	req, err := r.SubmitRequest(ctx, SubmitRequestInput{
		RequesterID: user.ID,
		AssetIDs:    assets,
		Purpose:     "site demo",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if req.Status != models.RequestPending {
		t.Fatalf("status after submit = %s", req.Status)
	}
	if len(req.Assets) != 2 || req.User.Email != user.Email {
		t.Fatalf("view not re-joined: %+v", req)
	}
	// Reservation is soft: nothing moves on the ledger at submit.
	for _, id := range assets {
		if got := assetStatus(t, r, id); got != models.AssetAvailable {
			t.Fatalf("asset %s = %s after submit", id, got)
		}
	}

	req, err = r.DecideRequest(ctx, req.ID, admin.ID, true, "")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if req.Status != models.RequestApproved || req.GatePassCode == nil {
		t.Fatalf("after approve: status=%s code=%v", req.Status, req.GatePassCode)
	}
	if !regexp.MustCompile(`^GP-\d{4}$`).MatchString(*req.GatePassCode) {
		t.Fatalf("pass code %q", *req.GatePassCode)
	}
	if req.ApprovedBy == nil || *req.ApprovedBy != admin.ID || req.RejectedBy != nil {
		t.Fatalf("decision metadata: %+v", req.Request)
	}
	for _, id := range assets {
		if got := assetStatus(t, r, id); got != models.AssetAvailable {
			t.Fatalf("asset %s = %s after approve, want AVAILABLE", id, got)
		}
	}

	// Gate resolution works by code and by raw request id.
	byCode, err := r.ResolveGatePass(ctx, *req.GatePassCode)
	if err != nil || byCode.ID != req.ID {
		t.Fatalf("resolve by code: %v %v", byCode, err)
	}
	byID, err := r.ResolveGatePass(ctx, req.ID)
	if err != nil || byID.ID != req.ID {
		t.Fatalf("resolve by id: %v %v", byID, err)
	}

	req, err = r.VerifyExit(ctx, req.ID, guard.ID, "all serials match")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !req.GateVerified || req.Status != models.RequestApproved {
		t.Fatalf("after verify: verified=%t status=%s", req.GateVerified, req.Status)
	}
	for _, id := range assets {
		if got := assetStatus(t, r, id); got != models.AssetInUse {
			t.Fatalf("asset %s = %s after verify, want IN_USE", id, got)
		}
	}

	req, err = r.SubmitReturn(ctx, req.ID, user.ID, SubmitReturnInput{})
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if req.Status != models.RequestReturned || req.ReturnedAt == nil {
		t.Fatalf("after return: %+v", req.Request)
	}
	for _, id := range assets {
		if got := assetStatus(t, r, id); got != models.AssetAvailable {
			t.Fatalf("asset %s = %s after return, want AVAILABLE", id, got)
		}
	}

	drift, err := r.CheckLedger(ctx)
	if err != nil {
		t.Fatalf("ledger check: %v", err)
	}
	if len(drift) != 0 {
		t.Fatalf("ledger drift after round trip: %+v", drift)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	r := openTestRepo(t)
	ctx := context.Background()

	admin := mkUser(t, r, "admin@example.com", models.RoleAdmin)
	user := mkUser(t, r, "user@example.com", models.RoleUser)
	assets := mkAssets(t, r, "Drill", "DR-1")

	req, err := r.SubmitRequest(ctx, SubmitRequestInput{
		RequesterID: user.ID, AssetIDs: assets, Purpose: "maintenance",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := r.DecideRequest(ctx, req.ID, admin.ID, false, "  "); !errors.Is(err, ErrValidation) {
		t.Fatalf("reject without reason: %v", err)
	}

	rejected, err := r.DecideRequest(ctx, req.ID, admin.ID, false, "over budget")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != models.RequestRejected {
		t.Fatalf("status = %s", rejected.Status)
	}
	if rejected.RejectionReason == nil || *rejected.RejectionReason != "over budget" {
		t.Fatalf("reason = %v", rejected.RejectionReason)
	}
	if rejected.RejectedBy == nil || rejected.ApprovedBy != nil || rejected.GatePassCode != nil {
		t.Fatalf("decision metadata after reject: %+v", rejected.Request)
	}
	// Terminal: a second decision loses.
	if _, err := r.DecideRequest(ctx, req.ID, admin.ID, true, ""); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("decide terminal request: %v", err)
	}
}

func TestDecideRequiresAdmin(t *testing.T) {
	r := openTestRepo(t)
	ctx := context.Background()

	guard := mkUser(t, r, "guard@example.com", models.RoleGuard)
	user := mkUser(t, r, "user@example.com", models.RoleUser)
	assets := mkAssets(t, r, "Camera", "CAM-1")

	req, err := r.SubmitRequest(ctx, SubmitRequestInput{
		RequesterID: user.ID, AssetIDs: assets, Purpose: "shoot",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := r.DecideRequest(ctx, req.ID, guard.ID, true, ""); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("guard decide: %v", err)
	}
}

func TestCancelRules(t *testing.T) {
	r := openTestRepo(t)
	ctx := context.Background()

	admin := mkUser(t, r, "admin@example.com", models.RoleAdmin)
	owner := mkUser(t, r, "owner@example.com", models.RoleUser)
	other := mkUser(t, r, "other@example.com", models.RoleUser)
	assets := mkAssets(t, r, "Ladder", "LD-1")

	req, err := r.SubmitRequest(ctx, SubmitRequestInput{
		RequesterID: owner.ID, AssetIDs: assets, Purpose: "roof work",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := r.CancelRequest(ctx, req.ID, other.ID, "mine now"); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("cancel by non-owner: %v", err)
	}
	if _, err := r.CancelRequest(ctx, req.ID, owner.ID, ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("cancel without note: %v", err)
	}

	cancelled, err := r.CancelRequest(ctx, req.ID, owner.ID, "no longer needed")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != models.RequestCancelled || cancelled.CancelNote == nil {
		t.Fatalf("after cancel: %+v", cancelled.Request)
	}

	// Cancellation is PENDING-only: an approved request cannot be withdrawn.
	req2, err := r.SubmitRequest(ctx, SubmitRequestInput{
		RequesterID: owner.ID, AssetIDs: assets, Purpose: "roof work again",
	})
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if _, err := r.DecideRequest(ctx, req2.ID, admin.ID, true, ""); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := r.CancelRequest(ctx, req2.ID, owner.ID, "changed my mind"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("cancel approved: %v", err)
	}
}

func TestDoubleBookingRejected(t *testing.T) {
	r := openTestRepo(t)
	ctx := context.Background()

	a := mkUser(t, r, "a@example.com", models.RoleUser)
	b := mkUser(t, r, "b@example.com", models.RoleUser)
	assets := mkAssets(t, r, "Scanner", "SC-1")

	if _, err := r.SubmitRequest(ctx, SubmitRequestInput{
		RequesterID: a.ID, AssetIDs: assets, Purpose: "inventory",
	}); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	_, err := r.SubmitRequest(ctx, SubmitRequestInput{
		RequesterID: b.ID, AssetIDs: assets, Purpose: "inventory too",
	})
	if !errors.Is(err, ErrAssetUnavailable) {
		t.Fatalf("second submit: %v", err)
	}
}

func TestConcurrentDecideExactlyOne(t *testing.T) {
	r := openTestRepo(t)
	ctx := context.Background()

	admin1 := mkUser(t, r, "admin1@example.com", models.RoleAdmin)
	admin2 := mkUser(t, r, "admin2@example.com", models.RoleAdmin)
	user := mkUser(t, r, "user@example.com", models.RoleUser)
	assets := mkAssets(t, r, "Tablet", "TB-1")

	req, err := r.SubmitRequest(ctx, SubmitRequestInput{
		RequesterID: user.ID, AssetIDs: assets, Purpose: "field survey",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	errs := make([]error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = r.DecideRequest(ctx, req.ID, admin1.ID, true, "")
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = r.DecideRequest(ctx, req.ID, admin2.ID, false, "duplicate of another request")
	}()
	wg.Wait()

	var ok, conflict int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrInvalidState):
			conflict++
		default:
			t.Fatalf("unexpected decide error: %v", err)
		}
	}
	if ok != 1 || conflict != 1 {
		t.Fatalf("got %d successes, %d conflicts; want exactly one of each", ok, conflict)
	}
}

func TestPassCodeMintSkipsOpenCollision(t *testing.T) {
	r := openTestRepo(t)
	ctx := context.Background()

	admin := mkUser(t, r, "admin@example.com", models.RoleAdmin)
	user := mkUser(t, r, "user@example.com", models.RoleUser)
	a1 := mkAssets(t, r, "Lamp", "LM-1")
	a2 := mkAssets(t, r, "Lamp", "LM-2")

	// Deterministic provider: always proposes GP-0001 first.
	seq := []string{"GP-0001", "GP-0001", "GP-0002"}
	r.NewPassCode = func() string {
		code := seq[0]
		if len(seq) > 1 {
			seq = seq[1:]
		}
		return code
	}

	req1, err := r.SubmitRequest(ctx, SubmitRequestInput{RequesterID: user.ID, AssetIDs: a1, Purpose: "x"})
	if err != nil {
		t.Fatalf("submit 1: %v", err)
	}
	req2, err := r.SubmitRequest(ctx, SubmitRequestInput{RequesterID: user.ID, AssetIDs: a2, Purpose: "y"})
	if err != nil {
		t.Fatalf("submit 2: %v", err)
	}

	req1, err = r.DecideRequest(ctx, req1.ID, admin.ID, true, "")
	if err != nil {
		t.Fatalf("approve 1: %v", err)
	}
	if *req1.GatePassCode != "GP-0001" {
		t.Fatalf("first code = %s", *req1.GatePassCode)
	}

	// GP-0001 is held by an open request, so the mint loop must move on.
	req2, err = r.DecideRequest(ctx, req2.ID, admin.ID, true, "")
	if err != nil {
		t.Fatalf("approve 2: %v", err)
	}
	if *req2.GatePassCode != "GP-0002" {
		t.Fatalf("second code = %s", *req2.GatePassCode)
	}
}

func TestInjectedClockStampsTransitions(t *testing.T) {
	r := openTestRepo(t)
	ctx := context.Background()

	fixed := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	r.Now = func() time.Time { return fixed }
	r.NewID = func() string { return uuid.NewString() }

	admin := mkUser(t, r, "admin@example.com", models.RoleAdmin)
	user := mkUser(t, r, "user@example.com", models.RoleUser)
	assets := mkAssets(t, r, "Clock", "CK-1")

	req, err := r.SubmitRequest(ctx, SubmitRequestInput{
		RequesterID: user.ID, AssetIDs: assets, Purpose: "timing",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !req.RequestDate.Equal(fixed) {
		t.Fatalf("request date = %s", req.RequestDate)
	}
	req, err = r.DecideRequest(ctx, req.ID, admin.ID, true, "")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if req.ApprovedAt == nil || !req.ApprovedAt.Equal(fixed) {
		t.Fatalf("approved at = %v", req.ApprovedAt)
	}
}
