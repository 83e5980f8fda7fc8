package treenlp

import (
	"math"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Fireball", []string{"fireball"}},
		{"Flames of the Inferno", []string{"flames", "inferno"}},
		{"A spell that deals 40 points of fire damage", []string{"fire"}},
		{"Ice-Spike! (Frost)", []string{"ice", "spike", "frost"}},
		{"", nil},
		{"to of it", nil},
	}
	for _, tt := range tests {
		got := Tokenize(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("Tokenize(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("Tokenize(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}

func TestStem(t *testing.T) {
	tests := []struct{ in, want string }{
		{"flames", "flam"}, // -es wins over -s, longest suffix first
		{"flashes", "flash"},
		{"burning", "burn"},
		{"summoned", "summon"},
		{"protection", "protect"},
		{"ice", "ice"},  // no suffix match
		{"runs", "run"}, // -s with 3-char stem
		{"its", "its"},  // stem would be 2 chars, keep
	}
	for _, tt := range tests {
		if got := Stem(tt.in); got != tt.want {
			t.Errorf("Stem(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestJaccard(t *testing.T) {
	a := []string{"fire", "ball"}
	b := []string{"fire", "storm"}
	if got := Jaccard(a, b); math.Abs(got-1.0/3.0) > 1e-9 {
		t.Errorf("Jaccard = %v, want 1/3", got)
	}
	if got := Jaccard(nil, nil); got != 1.0 {
		t.Errorf("Jaccard(empty, empty) = %v, want 1", got)
	}
	if got := Jaccard(a, a); got != 1.0 {
		t.Errorf("Jaccard(a, a) = %v, want 1", got)
	}
}

func TestWeightedJaccard(t *testing.T) {
	a := []string{"fire", "ball"}
	b := []string{"fire", "storm"}
	idf := map[string]float64{"fire": 3.0, "ball": 1.0, "storm": 1.0}
	// intersection 3.0, union 5.0
	if got := WeightedJaccard(a, b, idf); math.Abs(got-0.6) > 1e-9 {
		t.Errorf("WeightedJaccard = %v, want 0.6", got)
	}
	// Without weights it degrades to plain Jaccard.
	if got := WeightedJaccard(a, b, nil); math.Abs(got-1.0/3.0) > 1e-9 {
		t.Errorf("WeightedJaccard(nil idf) = %v, want 1/3", got)
	}
}

func TestLevenshteinSim(t *testing.T) {
	if got := LevenshteinSim("fireball", "fireball"); got != 1.0 {
		t.Errorf("identical strings = %v, want 1", got)
	}
	if got := LevenshteinSim("Fireball", "fireball"); got != 1.0 {
		t.Errorf("case-insensitive = %v, want 1", got)
	}
	got := LevenshteinSim("fire", "firs")
	if math.Abs(got-0.75) > 1e-9 {
		t.Errorf("one edit over four = %v, want 0.75", got)
	}
	if got := LevenshteinSim("abc", "xyz"); got != 0.0 {
		t.Errorf("disjoint = %v, want 0", got)
	}
}

func TestTokenSetRatio(t *testing.T) {
	// Word order must not matter.
	if got := TokenSetRatio("Frost Rune Greater", "Greater Frost Rune"); got != 1.0 {
		t.Errorf("reordered tokens = %v, want 1", got)
	}
	if got := TokenSetRatio("", ""); got != 1.0 {
		t.Errorf("both empty = %v, want 1", got)
	}
	if got := TokenSetRatio("fireball", ""); got != 0.0 {
		t.Errorf("one empty = %v, want 0", got)
	}
	sim := TokenSetRatio("Fire Rune", "Fire Storm")
	if sim <= 0 || sim >= 1 {
		t.Errorf("partial overlap = %v, want in (0,1)", sim)
	}
}

func TestCharNgrams(t *testing.T) {
	grams := CharNgrams("Fire Ball", 3)
	if grams["fir"] != 1 || grams["reb"] != 1 {
		t.Errorf("whitespace not collapsed: %v", grams)
	}
	if len(CharNgrams("ab", 3)) != 0 {
		t.Error("short string should yield no grams")
	}
}

func TestNgramCosine(t *testing.T) {
	if got := NgramCosine("fireball", "fireball", 3); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("identical = %v, want 1", got)
	}
	if got := NgramCosine("abc", "xyz", 3); got != 0 {
		t.Errorf("disjoint = %v, want 0", got)
	}
	mid := NgramCosine("firebolt", "fireball", 3)
	if mid <= 0 || mid >= 1 {
		t.Errorf("related strings = %v, want in (0,1)", mid)
	}
}

func TestTFIDFCosine(t *testing.T) {
	docs := [][]string{
		{"fire", "bolt"},
		{"fire", "storm"},
		{"heal", "wounds"},
	}
	vecs := TFIDF(docs)
	if len(vecs) != 3 {
		t.Fatalf("got %d vectors, want 3", len(vecs))
	}
	fireSim := Cosine(vecs[0], vecs[1])
	healSim := Cosine(vecs[0], vecs[2])
	if fireSim <= healSim {
		t.Errorf("shared-token sim %v should exceed disjoint sim %v", fireSim, healSim)
	}
	if got := Cosine(vecs[0], vecs[0]); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("self similarity = %v, want 1", got)
	}
}

func TestExtractFeatures(t *testing.T) {
	f := ExtractFeatures(SpellText{
		Name:        "Fire Rune",
		Description: "Rune explodes when enemies come near",
		School:      "Destruction",
		Effects:     []string{"Fire Damage"},
		Keywords:    []string{"MagicDamageFire", "MagicRune"},
	})
	// Name tokens doubled.
	count := 0
	for _, tok := range f.Tokens {
		if tok == "rune" {
			count++
		}
	}
	if count < 2 {
		t.Errorf("name tokens not double-weighted: %v", f.Tokens)
	}
	if len(f.Bigrams) != 1 || f.Bigrams[0] != "fire rune" {
		t.Errorf("bigrams = %v", f.Bigrams)
	}
	if len(f.SchoolTokens) != 1 || f.SchoolTokens[0] != "destruction" {
		t.Errorf("school tokens = %v", f.SchoolTokens)
	}
	wantKeyword := false
	for _, tok := range f.KeywordTokens {
		if tok == "fire" {
			wantKeyword = true
		}
	}
	if !wantKeyword {
		t.Errorf("keyword tokens missing camelCase split: %v", f.KeywordTokens)
	}
}

func TestSplitKeyword(t *testing.T) {
	if got := SplitKeyword("MagicDamageFire"); got != "Damage Fire" {
		t.Errorf("SplitKeyword = %q", got)
	}
	if got := SplitKeyword("Rune"); got != "Rune" {
		t.Errorf("SplitKeyword plain = %q", got)
	}
}
