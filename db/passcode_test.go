package db

import (
	"regexp"
	"testing"
)

var passCodeRe = regexp.MustCompile(`^GP-\d{4}$`)

func TestRandomPassCodeFormat(t *testing.T) {
	for i := 0; i < 1000; i++ {
		code := randomPassCode()
		if !passCodeRe.MatchString(code) {
			t.Fatalf("bad pass code %q", code)
		}
	}
}

func TestDedupIDsKeepsOrder(t *testing.T) {
	got := dedupIDs([]string{"b", "a", "b", "c", "a"})
	want := []string{"b", "a", "c"}
	if len(got) != len(want) {
		t.Fatalf("dedupIDs = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("dedupIDs = %v, want %v", got, want)
		}
	}
}
