// db/repo_import.go
package db

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"asset_gatepass_tool/models"

	"gorm.io/gorm"
)

// CSV intake for users and assets. Parsing is separate from writing so the
// row format can be checked without a database; the write path goes through
// the same uniqueness rules as single-row creation.

type UserImportRow struct {
	Line        int
	Email       string
	DisplayName string
	Role        models.Role
	Phone       string
}

type AssetImportRow struct {
	Line     int
	Serial   string
	Name     string
	Category string
}

type ImportRowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

type ImportResult struct {
	Created int              `json:"created"`
	Errors  []ImportRowError `json:"errors,omitempty"`
}

// ParseUsersCSV reads rows of email,displayName,role[,phone]. A header row
// starting with "email" is skipped.
func ParseUsersCSV(in io.Reader) ([]UserImportRow, []ImportRowError) {
	cr := csv.NewReader(in)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var rows []UserImportRow
	var errs []ImportRowError
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			errs = append(errs, ImportRowError{Line: line, Message: err.Error()})
			continue
		}
		if line == 1 && len(rec) > 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "email") {
			continue
		}
		if len(rec) < 3 {
			errs = append(errs, ImportRowError{Line: line, Message: "need email,displayName,role"})
			continue
		}
		row := UserImportRow{
			Line:        line,
			Email:       strings.ToLower(strings.TrimSpace(rec[0])),
			DisplayName: strings.TrimSpace(rec[1]),
			Role:        models.Role(strings.ToUpper(strings.TrimSpace(rec[2]))),
		}
		if len(rec) > 3 {
			row.Phone = strings.TrimSpace(rec[3])
		}
		if row.Email == "" || !strings.Contains(row.Email, "@") {
			errs = append(errs, ImportRowError{Line: line, Message: fmt.Sprintf("bad email %q", rec[0])})
			continue
		}
		if row.DisplayName == "" {
			row.DisplayName = row.Email
		}
		if !row.Role.Valid() {
			errs = append(errs, ImportRowError{Line: line, Message: fmt.Sprintf("bad role %q", rec[2])})
			continue
		}
		rows = append(rows, row)
	}
	return rows, errs
}

// ParseAssetsCSV reads rows of serial,name[,category]. A header row
// starting with "serial" is skipped.
func ParseAssetsCSV(in io.Reader) ([]AssetImportRow, []ImportRowError) {
	cr := csv.NewReader(in)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var rows []AssetImportRow
	var errs []ImportRowError
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			errs = append(errs, ImportRowError{Line: line, Message: err.Error()})
			continue
		}
		if line == 1 && len(rec) > 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "serial") {
			continue
		}
		if len(rec) < 2 {
			errs = append(errs, ImportRowError{Line: line, Message: "need serial,name"})
			continue
		}
		row := AssetImportRow{
			Line:   line,
			Serial: strings.TrimSpace(rec[0]),
			Name:   strings.TrimSpace(rec[1]),
		}
		if len(rec) > 2 {
			row.Category = strings.TrimSpace(rec[2])
		}
		if row.Serial == "" || row.Name == "" {
			errs = append(errs, ImportRowError{Line: line, Message: "empty serial or name"})
			continue
		}
		rows = append(rows, row)
	}
	return rows, errs
}

// ImportUsers inserts parsed rows one transaction per row: a duplicate
// email rejects that row, not the whole file.
func (r *Repo) ImportUsers(ctx context.Context, rows []UserImportRow) ImportResult {
	var res ImportResult
	for _, row := range rows {
		err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var n int64
			if err := tx.Model(&models.User{}).
				Where("email = ?", row.Email).Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return fmt.Errorf("email %s already exists: %w", row.Email, ErrValidation)
			}
			return tx.Create(&models.User{
				ID:          r.NewID(),
				Email:       row.Email,
				DisplayName: row.DisplayName,
				Phone:       row.Phone,
				Role:        row.Role,
				IsActive:    true,
			}).Error
		})
		if err != nil {
			res.Errors = append(res.Errors, ImportRowError{Line: row.Line, Message: err.Error()})
			continue
		}
		res.Created++
	}
	return res
}

func (r *Repo) ImportAssets(ctx context.Context, rows []AssetImportRow) ImportResult {
	var res ImportResult
	for _, row := range rows {
		err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var n int64
			if err := tx.Model(&models.Asset{}).
				Where("serial = ?", row.Serial).Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return fmt.Errorf("serial %s already exists: %w", row.Serial, ErrValidation)
			}
			return tx.Create(&models.Asset{
				ID:       r.NewID(),
				Serial:   row.Serial,
				Name:     row.Name,
				Category: row.Category,
				Status:   models.AssetAvailable,
			}).Error
		})
		if err != nil {
			res.Errors = append(res.Errors, ImportRowError{Line: row.Line, Message: err.Error()})
			continue
		}
		res.Created++
	}
	return res
}
