package db

import (
	"asset_gatepass_tool/models"
	"fmt"
	"log"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func ConnectDB() *gorm.DB {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
	)

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("Failed to connect to database: ", err)
	}

	if err := Migrate(DB); err != nil {
		log.Fatal("Failed to migrate models: ", err)
	}
	log.Println("Database connected")
	return DB
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{}, &models.Credential{}, &models.Invite{},
		&models.Asset{}, &models.Request{}, &models.RequestItem{},
		&models.Deployment{}, &models.DeploymentItem{},
		&models.Notification{}, &models.GateEvent{}, &models.Setting{},
	); err != nil {
		return err
	}

	// 同一请求同一资产最多一行
	if err := db.Exec(fmt.Sprintf(`
	  CREATE UNIQUE INDEX IF NOT EXISTS %s_one_row_per_asset
	  ON %s (request_id, asset_id);
	`, models.RequestItemTable, models.RequestItemTable)).Error; err != nil {
		return err
	}

	// Gate pass codes must be unique among open requests. The mint loop
	// checks first; this partial index is the backstop for races.
	if err := db.Exec(fmt.Sprintf(`
	  CREATE UNIQUE INDEX IF NOT EXISTS %s_open_pass_code
	  ON %s (gate_pass_code)
	  WHERE gate_pass_code IS NOT NULL
	    AND status IN ('PENDING','APPROVED','CHECKED_OUT');
	`, models.RequestTable, models.RequestTable)).Error; err != nil {
		return err
	}

	// The double-booking check and the gate lookup both hit these paths.
	if err := db.Exec(fmt.Sprintf(`
	  CREATE INDEX IF NOT EXISTS %s_open_by_status
	  ON %s (status)
	  WHERE status IN ('PENDING','APPROVED','CHECKED_OUT');
	`, models.RequestTable, models.RequestTable)).Error; err != nil {
		return err
	}

	return nil
}
