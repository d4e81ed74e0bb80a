// db/repo_assets.go
package db

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"asset_gatepass_tool/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// The ledger functions below are the only writers of assets.status. They
// run inside the caller's transaction and count affected rows: a shortfall
// means the ledger and the request table disagree, which is surfaced, not
// papered over.

// ledgerMarkInUse flips AVAILABLE -> IN_USE when assets physically leave
// the building (gate verification), never earlier.
func ledgerMarkInUse(tx *gorm.DB, assetIDs []string) error {
	if len(assetIDs) == 0 {
		return nil
	}
	res := tx.Model(&models.Asset{}).
		Where("id IN ? AND status = ?", assetIDs, models.AssetAvailable).
		Update("status", models.AssetInUse)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != int64(len(assetIDs)) {
		return fmt.Errorf("mark in-use touched %d of %d assets: %w",
			res.RowsAffected, len(assetIDs), ErrConsistency)
	}
	return nil
}

// ledgerRelease flips IN_USE -> AVAILABLE on return completion.
func ledgerRelease(tx *gorm.DB, assetIDs []string) error {
	if len(assetIDs) == 0 {
		return nil
	}
	res := tx.Model(&models.Asset{}).
		Where("id IN ? AND status = ?", assetIDs, models.AssetInUse).
		Update("status", models.AssetAvailable)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != int64(len(assetIDs)) {
		return fmt.Errorf("release touched %d of %d assets: %w",
			res.RowsAffected, len(assetIDs), ErrConsistency)
	}
	return nil
}

// ledgerDeploy flips AVAILABLE -> DEPLOYED permanently. Unlike the two
// above, a shortfall here is a caller error (asset not available), not
// corruption.
func ledgerDeploy(tx *gorm.DB, assetIDs []string) error {
	if len(assetIDs) == 0 {
		return nil
	}
	res := tx.Model(&models.Asset{}).
		Where("id IN ? AND status = ?", assetIDs, models.AssetAvailable).
		Update("status", models.AssetDeployed)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != int64(len(assetIDs)) {
		return fmt.Errorf("deploy: %d of %d assets not AVAILABLE: %w",
			int64(len(assetIDs))-res.RowsAffected, len(assetIDs), ErrAssetUnavailable)
	}
	return nil
}

// Assets (admin surface)

// CreateAssets registers one asset per serial under a shared name/category
// (bulk intake of a delivery). Serials must be new; the unique index backs
// the check under concurrency.
func (r *Repo) CreateAssets(ctx context.Context, name, category string, serials []string) ([]models.Asset, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("asset name required: %w", ErrValidation)
	}
	cleaned := make([]string, 0, len(serials))
	seen := make(map[string]struct{}, len(serials))
	for _, s := range serials {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			return nil, fmt.Errorf("duplicate serial %q: %w", s, ErrValidation)
		}
		seen[s] = struct{}{}
		cleaned = append(cleaned, s)
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("at least one serial required: %w", ErrValidation)
	}

	var created []models.Asset
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var clash []string
		if err := tx.Model(&models.Asset{}).
			Where("serial IN ?", cleaned).Pluck("serial", &clash).Error; err != nil {
			return err
		}
		if len(clash) > 0 {
			return fmt.Errorf("serial %q already registered: %w", clash[0], ErrValidation)
		}
		for _, s := range cleaned {
			created = append(created, models.Asset{
				ID:       r.NewID(),
				Serial:   s,
				Name:     name,
				Category: strings.TrimSpace(category),
				Status:   models.AssetAvailable,
			})
		}
		return tx.Create(&created).Error
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *Repo) FindAssetByID(ctx context.Context, id string) (*models.Asset, error) {
	var a models.Asset
	if err := r.DB.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound(err, "asset", id)
	}
	return &a, nil
}

func (r *Repo) FindAssetBySerial(ctx context.Context, serial string) (*models.Asset, error) {
	var a models.Asset
	if err := r.DB.WithContext(ctx).First(&a, "serial = ?", serial).Error; err != nil {
		return nil, wrapNotFound(err, "asset", serial)
	}
	return &a, nil
}

// AssetRow is an asset plus its current open request, if any.
type AssetRow struct {
	ID        string             `json:"id"`
	Serial    string             `json:"serial"`
	Name      string             `json:"name"`
	Category  string             `json:"category"`
	Status    models.AssetStatus `json:"status"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`

	RequestID       *string               `json:"requestId,omitempty"`
	RequestStatus   *models.RequestStatus `json:"requestStatus,omitempty"`
	RequesterID     *string               `json:"requesterId,omitempty"`
	RequesterEmail  *string               `json:"requesterEmail,omitempty"`
	RequesterPhone  *string               `json:"requesterPhone,omitempty"`
	GateVerified    *bool                 `json:"gateVerified,omitempty"`
	RequestedReturn *time.Time            `json:"requestedReturn,omitempty"`
}

type AssetsQuery struct {
	Q      string // serial/name substring
	Status models.AssetStatus
	Page   int
	Size   int
}

type PagedAssets struct {
	Total  int64      `json:"total"`
	Assets []AssetRow `json:"assets"`
}

// ListAssets joins each asset to its current open request. Requester
// contact columns come straight from agp_users, so the guard's view always
// shows live phone numbers.
func (r *Repo) ListAssets(ctx context.Context, q AssetsQuery) (*PagedAssets, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Size <= 0 || q.Size > 200 {
		q.Size = 20
	}
	offset := (q.Page - 1) * q.Size

	db := r.DB.WithContext(ctx)

	// 子查询：每件资产当前 open request（最多一条）
	sub := db.
		Table(models.RequestItemTable+" ri").
		Select(`DISTINCT ON (ri.asset_id)
			ri.asset_id, req.id, req.status, req.requester_id, req.gate_verified, req.return_date`).
		Joins(fmt.Sprintf("JOIN %s req ON req.id = ri.request_id", models.RequestTable)).
		Where("req.status IN ?", models.OpenStatuses).
		Order("ri.asset_id, req.request_date DESC")

	qry := db.
		Table(models.AssetTable+" a").
		Select(`
			a.id, a.serial, a.name, a.category, a.status, a.created_at, a.updated_at,
			orq.id            AS request_id,
			orq.status        AS request_status,
			orq.requester_id,
			orq.gate_verified,
			orq.return_date   AS requested_return,
			u.email           AS requester_email,
			u.phone           AS requester_phone
		`).
		Joins("LEFT JOIN (?) AS orq ON orq.asset_id = a.id", sub).
		Joins("LEFT JOIN agp_users u ON u.id = orq.requester_id")

	if s := strings.TrimSpace(q.Q); s != "" {
		pat := "%" + strings.ToLower(s) + "%"
		qry = qry.Where("LOWER(a.serial) LIKE ? OR LOWER(a.name) LIKE ?", pat, pat)
	}
	if q.Status != "" {
		if !q.Status.Valid() {
			return nil, fmt.Errorf("status %q: %w", q.Status, ErrValidation)
		}
		qry = qry.Where("a.status = ?", q.Status)
	}

	var total int64
	countQ := db.Table(models.AssetTable + " a")
	if s := strings.TrimSpace(q.Q); s != "" {
		pat := "%" + strings.ToLower(s) + "%"
		countQ = countQ.Where("LOWER(a.serial) LIKE ? OR LOWER(a.name) LIKE ?", pat, pat)
	}
	if q.Status != "" {
		countQ = countQ.Where("a.status = ?", q.Status)
	}
	if err := countQ.Count(&total).Error; err != nil {
		return nil, err
	}

	var rows []AssetRow
	if err := qry.Order("a.created_at DESC").Offset(offset).Limit(q.Size).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return &PagedAssets{Total: total, Assets: rows}, nil
}

// SetAssetMaintenance takes an asset in or out of maintenance. Assets on an
// open request cannot be pulled.
func (r *Repo) SetAssetMaintenance(ctx context.Context, assetID string, on bool) (*models.Asset, error) {
	var out *models.Asset
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a models.Asset
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&a, "id = ?", assetID).Error; err != nil {
			return wrapNotFound(err, "asset", assetID)
		}
		if on {
			if a.Status != models.AssetAvailable {
				return fmt.Errorf("asset %s is %s: %w", a.Serial, a.Status, ErrAssetUnavailable)
			}
			var n int64
			if err := tx.Model(&models.RequestItem{}).
				Joins(fmt.Sprintf("JOIN %s req ON req.id = %s.request_id",
					models.RequestTable, models.RequestItemTable)).
				Where("asset_id = ? AND req.status IN ?", a.ID, models.OpenStatuses).
				Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return fmt.Errorf("asset %s has an open request: %w", a.Serial, ErrAssetUnavailable)
			}
			a.Status = models.AssetMaintenance
		} else {
			if a.Status != models.AssetMaintenance {
				return fmt.Errorf("asset %s is %s, not in maintenance: %w", a.Serial, a.Status, ErrInvalidState)
			}
			a.Status = models.AssetAvailable
		}
		if err := tx.Model(&models.Asset{}).Where("id = ?", a.ID).
			Update("status", a.Status).Error; err != nil {
			return err
		}
		out = &a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LedgerDrift lists assets whose status disagrees with the request table:
// IN_USE without a verified open request, or a verified open request whose
// asset is not IN_USE. Write-time checks keep this empty; the endpoint
// exists so operators can prove it.
type LedgerDrift struct {
	AssetID string             `json:"assetId"`
	Serial  string             `json:"serial"`
	Status  models.AssetStatus `json:"status"`
	Problem string             `json:"problem"`
}

func (r *Repo) CheckLedger(ctx context.Context) ([]LedgerDrift, error) {
	db := r.DB.WithContext(ctx)

	// Built fresh per query; gorm subquery builders are single-use.
	verifiedAssets := func() *gorm.DB {
		return db.Session(&gorm.Session{NewDB: true}).
			Table(models.RequestItemTable+" ri").
			Select("ri.asset_id").
			Joins(fmt.Sprintf("JOIN %s req ON req.id = ri.request_id", models.RequestTable)).
			Where("req.status IN ? AND req.gate_verified", models.ExitEligibleStatuses)
	}

	var drift []LedgerDrift

	var idle []models.Asset
	if err := db.Where("status = ? AND id NOT IN (?)", models.AssetInUse, verifiedAssets()).
		Find(&idle).Error; err != nil {
		return nil, err
	}
	for _, a := range idle {
		drift = append(drift, LedgerDrift{
			AssetID: a.ID, Serial: a.Serial, Status: a.Status,
			Problem: "IN_USE without a gate-verified open request",
		})
	}

	var ghost []models.Asset
	if err := db.Where("status <> ? AND id IN (?)", models.AssetInUse, verifiedAssets()).
		Find(&ghost).Error; err != nil {
		return nil, err
	}
	for _, a := range ghost {
		drift = append(drift, LedgerDrift{
			AssetID: a.ID, Serial: a.Serial, Status: a.Status,
			Problem: "gate-verified open request but asset not IN_USE",
		})
	}

	sort.Slice(drift, func(i, j int) bool { return drift[i].Serial < drift[j].Serial })
	return drift, nil
}
