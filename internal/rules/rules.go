// Package rules holds the configurable policy the telemetry pipeline
// evaluates ticks against: the recognized weapon vocabulary, the map-name
// patterns that mark a map as competitive, and the score thresholds that
// decide when a match has concluded.
package rules

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ModeThresholds is the scoreline policy for one match format. A side
// reaching Win rounds concludes the match; both sides at Tie is a draw.
type ModeThresholds struct {
	Win int `yaml:"win"`
	Tie int `yaml:"tie"`
}

// ThresholdTable maps match formats to their scoreline policy.
type ThresholdTable struct {
	Regulation ModeThresholds `yaml:"regulation"`
	Overtime   ModeThresholds `yaml:"overtime"`
	Casual     ModeThresholds `yaml:"casual"`
}

// WeaponRules describes the lethal-equipment vocabulary. Aliases are applied
// before the allow-list check so variant names collapse onto one key.
type WeaponRules struct {
	Allowed []string          `yaml:"allowed"`
	Aliases map[string]string `yaml:"aliases"`
}

// MapRules classifies map names. A name matching any deny prefix is never
// competitive; when allow prefixes are set, a name must match one of them.
type MapRules struct {
	AllowPrefixes []string `yaml:"allow_prefixes"`
	DenyPrefixes  []string `yaml:"deny_prefixes"`
}

// Rules is the full policy set.
type Rules struct {
	Weapons    WeaponRules    `yaml:"weapons"`
	Maps       MapRules       `yaml:"maps"`
	Thresholds ThresholdTable `yaml:"thresholds"`

	allowed map[string]struct{}
}

// Inferred match formats recorded on match records.
const (
	ModeCompetitive = "competitive"
	ModeLong        = "long"
	ModeCasual      = "casual"
)

// Default returns the built-in policy.
func Default() *Rules {
	r := &Rules{
		Weapons: WeaponRules{
			Allowed: []string{
				"ak47", "m4a1", "m4a1-s", "aug", "sg556", "famas", "galilar",
				"awp", "ssg08", "scar20", "g3sg1",
				"deagle", "revolver", "glock", "usp-s", "hkp2000", "p250",
				"fiveseven", "tec9", "cz75a", "elite",
				"mac10", "mp9", "mp7", "mp5sd", "ump45", "p90", "bizon",
				"nova", "xm1014", "sawedoff", "mag7", "m249", "negev",
				"knife", "taser", "hegrenade", "molotov", "incgrenade",
			},
			Aliases: map[string]string{
				"m4a1_silencer":    "m4a1-s",
				"usp_silencer":     "usp-s",
				"knife_t":          "knife",
				"knifegg":          "knife",
				"knife_butterfly":  "knife",
				"knife_karambit":   "knife",
				"knife_m9_bayonet": "knife",
				"bayonet":          "knife",
				"inferno":          "molotov",
			},
		},
		Maps: MapRules{
			AllowPrefixes: []string{"de_", "cs_"},
			DenyPrefixes:  []string{"ar_", "dz_", "gd_", "coop_", "tr_", "lobby_", "workshop/"},
		},
		Thresholds: ThresholdTable{
			Regulation: ModeThresholds{Win: 13, Tie: 12},
			Overtime:   ModeThresholds{Win: 16, Tie: 15},
			Casual:     ModeThresholds{Win: 8},
		},
	}
	r.compile()
	return r
}

// Load reads a YAML policy file layered over the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (*Rules, error) {
	r := Default()
	if path == "" {
		return r, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	if err := yaml.Unmarshal(raw, r); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	r.compile()
	return r, nil
}

func (r *Rules) compile() {
	r.allowed = make(map[string]struct{}, len(r.Weapons.Allowed))
	for _, w := range r.Weapons.Allowed {
		r.allowed[strings.ToLower(w)] = struct{}{}
	}
}

// ResolveWeapon normalizes a raw weapon name ("weapon_ak47") to its canonical
// key and reports whether it belongs to the lethal-equipment vocabulary.
// Utility items (flashbang, smoke, decoy) and unknown names do not resolve.
func (r *Rules) ResolveWeapon(raw string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return "", false
	}
	key = strings.TrimPrefix(key, "weapon_")
	if alias, ok := r.Weapons.Aliases[key]; ok {
		key = alias
	}
	if _, ok := r.allowed[key]; !ok {
		return "", false
	}
	return key, true
}

// CompetitiveMap reports whether matches on the named map count toward
// stats. Deny prefixes win over allow prefixes.
func (r *Rules) CompetitiveMap(name string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return false
	}
	for _, p := range r.Maps.DenyPrefixes {
		if strings.HasPrefix(n, p) {
			return false
		}
	}
	if len(r.Maps.AllowPrefixes) == 0 {
		return true
	}
	for _, p := range r.Maps.AllowPrefixes {
		if strings.HasPrefix(n, p) {
			return true
		}
	}
	return false
}
