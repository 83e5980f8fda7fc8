// Package catalog defines the spell catalog the scanner emits and the tree
// builders consume, plus the filters that keep non-learnable spells out.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// Magic schools recognized by the progression system.
var Schools = []string{"Alteration", "Conjuration", "Destruction", "Illusion", "Restoration"}

// IsSchool reports whether s names a recognized magic school.
func IsSchool(s string) bool {
	for _, school := range Schools {
		if s == school {
			return true
		}
	}
	return false
}

// Tier names ordered from cheapest to most demanding.
var Tiers = []string{"Novice", "Apprentice", "Adept", "Expert", "Master"}

// TierIndex returns the position of the tier name, or -1 if unknown.
func TierIndex(tier string) int {
	for i, t := range Tiers {
		if t == tier {
			return i
		}
	}
	return -1
}

// TierForSkill maps a minimum-skill value to its tier name.
func TierForSkill(minimumSkill int) string {
	switch {
	case minimumSkill < 25:
		return "Novice"
	case minimumSkill < 50:
		return "Apprentice"
	case minimumSkill < 75:
		return "Adept"
	case minimumSkill < 100:
		return "Expert"
	default:
		return "Master"
	}
}

// Spell is one catalog entry, as scanned from the host.
type Spell struct {
	FormID       string   `json:"formId"`
	PersistentID string   `json:"persistentId,omitempty"`
	EditorID     string   `json:"editorId,omitempty"`
	Name         string   `json:"name"`
	School       string   `json:"school"`
	SkillLevel   string   `json:"skillLevel"`
	Description  string   `json:"description,omitempty"`
	Effects      []string `json:"effects,omitempty"`
	EffectNames  []string `json:"effectNames,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
	MagickaCost  float64  `json:"magickaCost,omitempty"`
	MinimumSkill int      `json:"minimumSkill,omitempty"`
}

// TierIdx is the spell's tier position, defaulting to Novice when the skill
// level is missing or unrecognized.
func (s *Spell) TierIdx() int {
	if i := TierIndex(s.SkillLevel); i >= 0 {
		return i
	}
	return 0
}

// Catalog is the scanner's output document.
type Catalog struct {
	ScanTimestamp string  `json:"scanTimestamp"`
	SpellCount    int     `json:"spellCount"`
	Spells        []Spell `json:"spells"`
}

// Load reads a catalog JSON file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return &c, nil
}

// Save writes the catalog as indented JSON.
func (c *Catalog) Save(path string) error {
	c.SpellCount = len(c.Spells)
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal catalog: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}
	return nil
}

// SanitizeUTF8 replaces invalid byte sequences so the string always survives
// JSON serialization. The scanner's input may arrive in a legacy codepage.
func SanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "?")
}

// Sanitize repairs every string field of the spell in place.
func (s *Spell) Sanitize() {
	s.Name = SanitizeUTF8(s.Name)
	s.Description = SanitizeUTF8(s.Description)
	s.EditorID = SanitizeUTF8(s.EditorID)
	for i := range s.Effects {
		s.Effects[i] = SanitizeUTF8(s.Effects[i])
	}
	for i := range s.EffectNames {
		s.EffectNames[i] = SanitizeUTF8(s.EffectNames[i])
	}
}
