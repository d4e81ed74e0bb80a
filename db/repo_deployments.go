// db/repo_deployments.go
package db

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"asset_gatepass_tool/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeploymentView joins the deployment to its assets and creator.
type DeploymentView struct {
	models.Deployment
	CreatedByUser models.User    `json:"createdByUser"`
	Assets        []models.Asset `json:"assets"`
}

type CreateDeploymentInput struct {
	ActorID    string
	ClientName string
	Note       string
	AssetIDs   []string
}

// CreateDeployment permanently assigns assets to an external client; there
// is no undeploy. Every asset must be AVAILABLE and free of open requests.
func (r *Repo) CreateDeployment(ctx context.Context, in CreateDeploymentInput) (*DeploymentView, error) {
	if strings.TrimSpace(in.ClientName) == "" {
		return nil, fmt.Errorf("client name required: %w", ErrValidation)
	}
	assetIDs := dedupIDs(in.AssetIDs)
	if len(assetIDs) == 0 {
		return nil, fmt.Errorf("at least one asset required: %w", ErrValidation)
	}

	var view *DeploymentView
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		actor, err := lockUser(tx, in.ActorID)
		if err != nil {
			return err
		}
		if actor.Role != models.RoleAdmin {
			return fmt.Errorf("deployment requires ADMIN: %w", ErrNotAuthorized)
		}

		locked := append([]string(nil), assetIDs...)
		sort.Strings(locked)
		var assets []models.Asset
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id IN ?", locked).Order("id").Find(&assets).Error; err != nil {
			return err
		}
		if len(assets) != len(locked) {
			return fmt.Errorf("unknown asset in deployment: %w", ErrNotFound)
		}

		var clash []string
		if err := tx.Model(&models.RequestItem{}).
			Joins(fmt.Sprintf("JOIN %s req ON req.id = %s.request_id",
				models.RequestTable, models.RequestItemTable)).
			Where("asset_id IN ? AND req.status IN ?", locked, models.OpenStatuses).
			Pluck("asset_id", &clash).Error; err != nil {
			return err
		}
		if len(clash) > 0 {
			return fmt.Errorf("asset %s is on an open request: %w", clash[0], ErrAssetUnavailable)
		}

		if err := ledgerDeploy(tx, locked); err != nil {
			return err
		}

		dep := &models.Deployment{
			ID:         r.NewID(),
			ClientName: strings.TrimSpace(in.ClientName),
			Note:       strings.TrimSpace(in.Note),
			CreatedBy:  actor.ID,
			CreatedAt:  r.Now(),
		}
		if err := tx.Create(dep).Error; err != nil {
			return err
		}
		items := make([]models.DeploymentItem, 0, len(assetIDs))
		for _, id := range assetIDs {
			items = append(items, models.DeploymentItem{DeploymentID: dep.ID, AssetID: id})
		}
		if err := tx.Create(&items).Error; err != nil {
			return err
		}

		if err := r.notifyAdmins(tx,
			fmt.Sprintf("%d asset(s) deployed to %s.", len(items), dep.ClientName),
			models.SeverityInfo); err != nil {
			return err
		}

		view, err = loadDeploymentView(tx, dep)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func loadDeploymentView(tx *gorm.DB, dep *models.Deployment) (*DeploymentView, error) {
	var u models.User
	if err := tx.First(&u, "id = ?", dep.CreatedBy).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("deployment %s references missing user %s: %w",
				dep.ID, dep.CreatedBy, ErrConsistency)
		}
		return nil, err
	}
	var items []models.DeploymentItem
	if err := tx.Where("deployment_id = ?", dep.ID).Find(&items).Error; err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.AssetID)
	}
	var assets []models.Asset
	if err := tx.Where("id IN ?", ids).Order("serial").Find(&assets).Error; err != nil {
		return nil, err
	}
	if len(assets) != len(ids) {
		return nil, fmt.Errorf("deployment %s references a missing asset: %w", dep.ID, ErrConsistency)
	}
	return &DeploymentView{Deployment: *dep, CreatedByUser: u, Assets: assets}, nil
}

func (r *Repo) GetDeployment(ctx context.Context, id string) (*DeploymentView, error) {
	tx := r.DB.WithContext(ctx)
	var dep models.Deployment
	if err := tx.First(&dep, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound(err, "deployment", id)
	}
	return loadDeploymentView(tx, &dep)
}

func (r *Repo) ListDeployments(ctx context.Context, page, size int) ([]*DeploymentView, int64, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 200 {
		size = 20
	}
	tx := r.DB.WithContext(ctx)

	var total int64
	if err := tx.Model(&models.Deployment{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.Deployment
	if err := tx.Order("created_at DESC").
		Offset((page - 1) * size).Limit(size).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	views := make([]*DeploymentView, 0, len(rows))
	for i := range rows {
		v, err := loadDeploymentView(tx, &rows[i])
		if err != nil {
			return nil, 0, err
		}
		views = append(views, v)
	}
	return views, total, nil
}
