// models/asset.go
package models

import "time"

const AssetTable = "agp_assets"

// AssetStatus is the physical custody state of one unit. Only the ledger
// functions in db write it.
type AssetStatus string

const (
	AssetAvailable   AssetStatus = "AVAILABLE"
	AssetInUse       AssetStatus = "IN_USE"
	AssetMaintenance AssetStatus = "MAINTENANCE"
	AssetDeployed    AssetStatus = "DEPLOYED"
)

func (s AssetStatus) Valid() bool {
	switch s {
	case AssetAvailable, AssetInUse, AssetMaintenance, AssetDeployed:
		return true
	}
	return false
}

type Asset struct {
	ID       string      `gorm:"type:uuid;primaryKey" json:"id"`
	Serial   string      `gorm:"size:120;uniqueIndex;not null" json:"serial"`
	Name     string      `gorm:"size:200;not null" json:"name"`
	Category string      `gorm:"size:80;index" json:"category"`
	Status   AssetStatus `gorm:"size:20;not null;default:'AVAILABLE'" json:"status"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Asset) TableName() string { return AssetTable }
