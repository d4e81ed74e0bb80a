package db

import (
	"context"
	"errors"
	"testing"

	"asset_gatepass_tool/models"
)

func TestCreateDeploymentRules(t *testing.T) {
	r := openTestRepo(t)
	ctx := context.Background()

	admin := mkUser(t, r, "admin@example.com", models.RoleAdmin)
	user := mkUser(t, r, "user@example.com", models.RoleUser)
	free := mkAssets(t, r, "Switch", "SW-1", "SW-2")
	held := mkAssets(t, r, "Switch", "SW-3")

	if _, err := r.SubmitRequest(ctx, SubmitRequestInput{
		RequesterID: user.ID, AssetIDs: held, Purpose: "lab work",
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := r.CreateDeployment(ctx, CreateDeploymentInput{
		ActorID: user.ID, ClientName: "Acme", AssetIDs: free,
	}); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("deploy by USER: %v", err)
	}
	// An asset on an open request cannot be handed over.
	if _, err := r.CreateDeployment(ctx, CreateDeploymentInput{
		ActorID: admin.ID, ClientName: "Acme", AssetIDs: held,
	}); !errors.Is(err, ErrAssetUnavailable) {
		t.Fatalf("deploy held asset: %v", err)
	}

	dep, err := r.CreateDeployment(ctx, CreateDeploymentInput{
		ActorID: admin.ID, ClientName: "Acme", Note: "rack 4", AssetIDs: free,
	})
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if len(dep.Assets) != 2 || dep.CreatedByUser.ID != admin.ID {
		t.Fatalf("deployment view: %+v", dep)
	}
	for _, id := range free {
		if got := assetStatus(t, r, id); got != models.AssetDeployed {
			t.Fatalf("asset %s = %s after deploy", id, got)
		}
	}

	// DEPLOYED is permanent: no new request and no second deployment.
	if _, err := r.SubmitRequest(ctx, SubmitRequestInput{
		RequesterID: user.ID, AssetIDs: free[:1], Purpose: "want it back",
	}); !errors.Is(err, ErrAssetUnavailable) {
		t.Fatalf("request deployed asset: %v", err)
	}
	if _, err := r.CreateDeployment(ctx, CreateDeploymentInput{
		ActorID: admin.ID, ClientName: "Globex", AssetIDs: free[:1],
	}); !errors.Is(err, ErrAssetUnavailable) {
		t.Fatalf("redeploy: %v", err)
	}
}

func TestMaintenanceToggle(t *testing.T) {
	r := openTestRepo(t)
	ctx := context.Background()

	user := mkUser(t, r, "user@example.com", models.RoleUser)
	idle := mkAssets(t, r, "Printer", "PR-1")
	held := mkAssets(t, r, "Printer", "PR-2")

	if _, err := r.SubmitRequest(ctx, SubmitRequestInput{
		RequesterID: user.ID, AssetIDs: held, Purpose: "reports",
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	// Cannot be pulled while an open request references it.
	if _, err := r.SetAssetMaintenance(ctx, held[0], true); !errors.Is(err, ErrAssetUnavailable) {
		t.Fatalf("pull held asset: %v", err)
	}

	a, err := r.SetAssetMaintenance(ctx, idle[0], true)
	if err != nil {
		t.Fatalf("maintenance on: %v", err)
	}
	if a.Status != models.AssetMaintenance {
		t.Fatalf("status = %s", a.Status)
	}
	// Out of rotation means out of the request pool too.
	if _, err := r.SubmitRequest(ctx, SubmitRequestInput{
		RequesterID: user.ID, AssetIDs: idle, Purpose: "reports",
	}); !errors.Is(err, ErrAssetUnavailable) {
		t.Fatalf("request maintenance asset: %v", err)
	}

	a, err = r.SetAssetMaintenance(ctx, idle[0], false)
	if err != nil {
		t.Fatalf("maintenance off: %v", err)
	}
	if a.Status != models.AssetAvailable {
		t.Fatalf("status = %s", a.Status)
	}
	// Releasing an asset that is not in maintenance is a state error.
	if _, err := r.SetAssetMaintenance(ctx, idle[0], false); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("double release: %v", err)
	}
}
