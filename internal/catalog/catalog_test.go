package catalog

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestTierForSkill(t *testing.T) {
	tests := []struct {
		skill int
		want  string
	}{
		{0, "Novice"},
		{24, "Novice"},
		{25, "Apprentice"},
		{49, "Apprentice"},
		{50, "Adept"},
		{75, "Expert"},
		{99, "Expert"},
		{100, "Master"},
		{150, "Master"},
	}
	for _, tt := range tests {
		if got := TierForSkill(tt.skill); got != tt.want {
			t.Errorf("TierForSkill(%d) = %q, want %q", tt.skill, got, tt.want)
		}
	}
}

func TestNonPlayerEditorID(t *testing.T) {
	tests := []struct {
		editorID string
		want     bool
	}{
		{"FireballTrapSpell", true},
		{"crDragonBreath", true},
		{"AltarBlessingSpeed", true},
		{"ShrineOfTalos", true},
		{"BlessingSpellAkatosh", true},
		{"Fireball", false},
		{"MagickaSurge", false},
	}
	for _, tt := range tests {
		if got := NonPlayerEditorID(tt.editorID); got != tt.want {
			t.Errorf("NonPlayerEditorID(%q) = %v, want %v", tt.editorID, got, tt.want)
		}
	}
}

func TestFilterLearnable(t *testing.T) {
	spells := []Spell{
		{FormID: "0x01", Name: "Fireball", School: "Destruction", EditorID: "Fireball"},
		{FormID: "0x02", Name: "Flames Left Hand", School: "Destruction", EditorID: "FlamesL"},
		{FormID: "0x03", Name: "Trap Blast", School: "Destruction", EditorID: "FireTrapSpell"},
		{FormID: "0x04", Name: "", School: "Destruction", EditorID: "Unnamed"},
		{FormID: "0x05", Name: "Ward", School: "NotASchool", EditorID: "Ward"},
		{FormID: "0x06", Name: "Healing", School: "Restoration", EditorID: "Healing"},
	}
	got := FilterLearnable(spells)
	if len(got) != 2 {
		t.Fatalf("FilterLearnable kept %d spells, want 2: %+v", len(got), got)
	}
	if got[0].FormID != "0x01" || got[1].FormID != "0x06" {
		t.Errorf("unexpected survivors: %+v", got)
	}
}

func TestSanitizeUTF8(t *testing.T) {
	bad := "Fire\xffball"
	got := SanitizeUTF8(bad)
	if got != "Fire?ball" {
		t.Errorf("SanitizeUTF8 = %q", got)
	}
	clean := "Огненный шар" // already valid UTF-8
	if SanitizeUTF8(clean) != clean {
		t.Error("valid UTF-8 must pass through unchanged")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	c := &Catalog{
		ScanTimestamp: "2026-01-01T00:00:00Z",
		Spells: []Spell{
			{FormID: "0x0012FCD0", PersistentID: "Skyrim.esm|0x012FCD", Name: "Fireball",
				School: "Destruction", SkillLevel: "Apprentice", MagickaCost: 133},
		},
	}
	path := filepath.Join(t.TempDir(), "spells.json")
	if err := c.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.SpellCount != 1 || len(loaded.Spells) != 1 {
		t.Fatalf("loaded %d spells, want 1", len(loaded.Spells))
	}
	if !reflect.DeepEqual(loaded.Spells[0], c.Spells[0]) {
		t.Errorf("round trip mismatch: %+v", loaded.Spells[0])
	}
}
