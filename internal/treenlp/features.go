package treenlp

import "strings"

// SpellText is the textual surface of one spell, as fed to feature
// extraction. The caller assembles it from its catalog record.
type SpellText struct {
	Name        string
	Description string
	School      string
	Effects     []string
	Keywords    []string
}

// Features are the token views of one spell used by the builders.
type Features struct {
	Tokens        []string // name (2x weight) + description + effects
	Bigrams       []string // adjacent token pairs of the name
	SchoolTokens  []string
	EffectTokens  []string
	KeywordTokens []string
}

// ExtractFeatures tokenizes every textual facet of the spell.
func ExtractFeatures(s SpellText) Features {
	var f Features

	// Name carries double weight in the combined token stream.
	nameTokens := Tokenize(s.Name)
	f.Tokens = append(f.Tokens, nameTokens...)
	f.Tokens = append(f.Tokens, nameTokens...)
	f.Tokens = append(f.Tokens, Tokenize(s.Description)...)

	for i := 0; i+1 < len(nameTokens); i++ {
		f.Bigrams = append(f.Bigrams, nameTokens[i]+" "+nameTokens[i+1])
	}

	f.SchoolTokens = Tokenize(s.School)

	for _, e := range s.Effects {
		et := Tokenize(e)
		f.EffectTokens = append(f.EffectTokens, et...)
		f.Tokens = append(f.Tokens, et...)
	}

	for _, k := range s.Keywords {
		f.KeywordTokens = append(f.KeywordTokens, Tokenize(SplitKeyword(k))...)
	}

	return f
}

// SplitKeyword turns a host keyword like "MagicDamageFire" into "Damage Fire":
// the Magic prefix is dropped and camelCase boundaries become spaces.
func SplitKeyword(k string) string {
	k = strings.TrimPrefix(k, "Magic")
	var b strings.Builder
	for i, r := range k {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CombinedText joins the spell's text the way similarity scoring expects:
// name twice, then description and effects.
func CombinedText(s SpellText) string {
	parts := make([]string, 0, 3+len(s.Effects))
	if s.Name != "" {
		parts = append(parts, s.Name, s.Name)
	}
	if s.Description != "" {
		parts = append(parts, s.Description)
	}
	parts = append(parts, s.Effects...)
	return strings.Join(parts, " ")
}
