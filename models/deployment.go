// models/deployment.go
package models

import "time"

const (
	DeploymentTable     = "agp_deployments"
	DeploymentItemTable = "agp_deployment_items"
)

// Deployment is a one-way hand-over of assets to an external client site.
// Immutable once created; the referenced assets stay DEPLOYED.
type Deployment struct {
	ID         string    `gorm:"type:uuid;primaryKey" json:"id"`
	ClientName string    `gorm:"size:200;not null" json:"clientName"`
	Note       string    `gorm:"size:500" json:"note,omitempty"`
	CreatedBy  string    `gorm:"type:uuid;not null" json:"createdBy"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (Deployment) TableName() string { return DeploymentTable }

type DeploymentItem struct {
	ID           uint   `gorm:"primaryKey" json:"-"`
	DeploymentID string `gorm:"type:uuid;index;not null" json:"deploymentId"`
	AssetID      string `gorm:"type:uuid;index;not null" json:"assetId"`
}

func (DeploymentItem) TableName() string { return DeploymentItemTable }
