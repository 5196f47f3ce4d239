package rules

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveWeapon(t *testing.T) {
	r := Default()

	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"weapon_ak47", "ak47", true},
		{"ak47", "ak47", true},
		{"weapon_m4a1_silencer", "m4a1-s", true},
		{"weapon_usp_silencer", "usp-s", true},
		{"weapon_knife_t", "knife", true},
		{"weapon_bayonet", "knife", true},
		{"weapon_inferno", "molotov", true},
		{"WEAPON_AWP", "awp", true},
		{"weapon_flashbang", "", false},
		{"weapon_smokegrenade", "", false},
		{"weapon_c4", "", false},
		{"", "", false},
		{"   ", "", false},
	}

	for _, tc := range tests {
		got, ok := r.ResolveWeapon(tc.raw)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ResolveWeapon(%q) = (%q, %v), want (%q, %v)", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}

func TestCompetitiveMap(t *testing.T) {
	r := Default()

	tests := []struct {
		name string
		want bool
	}{
		{"de_mirage", true},
		{"cs_office", true},
		{"DE_NUKE", true},
		{"ar_shoots", false},
		{"dz_blacksite", false},
		{"workshop/123456/de_custom", false},
		{"lobby_mapveto", false},
		{"gd_crashsite", false},
		{"", false},
		{"unknown_map", false},
	}

	for _, tc := range tests {
		if got := r.CompetitiveMap(tc.name); got != tc.want {
			t.Errorf("CompetitiveMap(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestDefaultThresholds(t *testing.T) {
	r := Default()
	if r.Thresholds.Regulation.Win != 13 || r.Thresholds.Regulation.Tie != 12 {
		t.Fatalf("regulation thresholds: %+v", r.Thresholds.Regulation)
	}
	if r.Thresholds.Overtime.Win != 16 || r.Thresholds.Overtime.Tie != 15 {
		t.Fatalf("overtime thresholds: %+v", r.Thresholds.Overtime)
	}
	if r.Thresholds.Casual.Win != 8 {
		t.Fatalf("casual thresholds: %+v", r.Thresholds.Casual)
	}
}

func TestLoadLayersOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	body := `
weapons:
  allowed: ["railgun"]
thresholds:
  regulation:
    win: 16
    tie: 15
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write rules file: %v", err)
	}

	r, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if _, ok := r.ResolveWeapon("weapon_railgun"); !ok {
		t.Fatalf("configured weapon not recognized")
	}
	if _, ok := r.ResolveWeapon("weapon_ak47"); ok {
		t.Fatalf("overridden allow-list should replace the default list")
	}
	if r.Thresholds.Regulation.Win != 16 {
		t.Fatalf("configured threshold not applied: %+v", r.Thresholds.Regulation)
	}
	// Sections left out of the file keep their defaults.
	if r.Thresholds.Casual.Win != 8 {
		t.Fatalf("untouched section lost its default: %+v", r.Thresholds.Casual)
	}
	if !r.CompetitiveMap("de_mirage") {
		t.Fatalf("untouched map rules lost their default")
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	r, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\"): %v", err)
	}
	if _, ok := r.ResolveWeapon("weapon_ak47"); !ok {
		t.Fatalf("defaults not returned for empty path")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected an error for a missing rules file")
	}
}
