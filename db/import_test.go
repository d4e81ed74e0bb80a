package db

import (
	"strings"
	"testing"

	"asset_gatepass_tool/models"
)

func TestParseUsersCSV(t *testing.T) {
	in := strings.NewReader(
		"email,displayName,role,phone\n" +
			"alice@example.com,Alice,ADMIN,555-0100\n" +
			"bob@example.com,Bob,guard\n" +
			"not-an-email,Nope,USER\n" +
			"carol@example.com,Carol,WIZARD\n")

	rows, errs := ParseUsersCSV(in)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2: %+v", len(rows), rows)
	}
	if rows[0].Email != "alice@example.com" || rows[0].Role != models.RoleAdmin || rows[0].Phone != "555-0100" {
		t.Errorf("row 0 = %+v", rows[0])
	}
	// Role is upper-cased on the way in.
	if rows[1].Role != models.RoleGuard {
		t.Errorf("row 1 role = %q, want GUARD", rows[1].Role)
	}
	if len(errs) != 2 {
		t.Fatalf("got %d row errors, want 2: %+v", len(errs), errs)
	}
}

func TestParseUsersCSVDefaultsDisplayName(t *testing.T) {
	rows, errs := ParseUsersCSV(strings.NewReader("dave@example.com,,USER\n"))
	if len(errs) != 0 || len(rows) != 1 {
		t.Fatalf("rows=%v errs=%v", rows, errs)
	}
	if rows[0].DisplayName != "dave@example.com" {
		t.Errorf("display name = %q", rows[0].DisplayName)
	}
}

func TestParseAssetsCSV(t *testing.T) {
	in := strings.NewReader(
		"serial,name,category\n" +
			"SN-001,ThinkPad X1,laptop\n" +
			"SN-002,ThinkPad X1\n" +
			",MissingSerial,laptop\n" +
			"short\n")

	rows, errs := ParseAssetsCSV(in)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2: %+v", len(rows), rows)
	}
	if rows[0].Serial != "SN-001" || rows[0].Category != "laptop" {
		t.Errorf("row 0 = %+v", rows[0])
	}
	if rows[1].Category != "" {
		t.Errorf("row 1 category = %q, want empty", rows[1].Category)
	}
	if len(errs) != 2 {
		t.Fatalf("got %d row errors, want 2: %+v", len(errs), errs)
	}
}
