package catalog

import "strings"

// NonPlayerEditorID reports whether the editor ID matches a known pattern for
// spells players cannot legitimately learn: traps, creature abilities, shrine
// blessings and similar NPC-only records.
func NonPlayerEditorID(editorID string) bool {
	lower := strings.ToLower(editorID)
	switch {
	case strings.Contains(lower, "trap"):
		return true
	case strings.HasPrefix(lower, "cr"): // creature abilities
		return true
	case strings.Contains(lower, "altar"),
		strings.Contains(lower, "shrine"):
		return true
	case strings.Contains(lower, "blessing") && strings.Contains(lower, "spell"):
		return true
	}
	return false
}

// HandDuplicate reports whether the name marks a cosmetic left/right-hand
// variant of another spell.
func HandDuplicate(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, "left hand") || strings.HasSuffix(lower, "right hand")
}

// Learnable applies the scanner's filter chain: the spell must carry a name,
// belong to a recognized school, and not match any non-player pattern.
func Learnable(s *Spell) bool {
	if s.Name == "" || !IsSchool(s.School) {
		return false
	}
	if NonPlayerEditorID(s.EditorID) || HandDuplicate(s.Name) {
		return false
	}
	return true
}

// FilterLearnable sanitizes and keeps only learnable spells.
func FilterLearnable(spells []Spell) []Spell {
	out := make([]Spell, 0, len(spells))
	for _, s := range spells {
		s.Sanitize()
		if Learnable(&s) {
			out = append(out, s)
		}
	}
	return out
}

// BySchool groups learnable spells per recognized school.
func BySchool(spells []Spell) map[string][]Spell {
	groups := make(map[string][]Spell)
	for _, s := range spells {
		if IsSchool(s.School) {
			groups[s.School] = append(groups[s.School], s)
		}
	}
	return groups
}
