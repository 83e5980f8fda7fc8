// Package treenlp holds the lexical primitives the tree builders score spell
// similarity with: tokenization, conservative stemming, set and vector
// similarity metrics, and fuzzy string comparison. Everything here is pure
// and deterministic.
package treenlp

import (
	"math"
	"strings"
)

// stopWords is the closed filter list: generic spell vocabulary plus english
// closed-class words. Tokens in this set never reach the similarity metrics.
var stopWords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		// Generic spell words.
		"spell", "magic", "magical", "target", "targets", "effect", "effects",
		"damage", "point", "points", "second", "seconds", "per", "for",
		"does", "causes", "cast", "caster", "casting", "level", "levels",
		"health", "magicka", "stamina", "drain", "drains",
		// Effect description fragments.
		"deals", "deal", "dur", "duration", "mag", "magnitude",
		"nearby", "enemies", "enemy", "increased", "increases", "increase",
		"decreased", "decreases", "decrease", "reduces", "reduced", "reduce",
		"restores", "restore", "restored", "absorb", "absorbs", "absorbed",
		"extra", "takes", "take", "time", "over", "while", "also",
		"resistance", "chance", "once", "each", "within", "range",
		"stronger", "powerful", "greater", "lesser", "more", "less",
		// Skill tier words.
		"novice", "apprentice", "adept", "expert", "master",
		// Closed-class english.
		"to", "a", "an", "of", "in", "on", "at", "is", "are", "be", "with",
		"that", "this", "their", "your", "and", "or", "but", "not", "all",
		"the", "was", "were", "been", "being", "have", "has", "had", "do",
		"did", "will", "would", "could", "should", "may", "might", "can",
		"shall", "from", "by", "as", "if", "its", "it", "they", "them",
		"he", "she", "his", "her", "we", "you", "who", "which", "when",
		"where", "how", "what", "than", "then", "into", "about", "up",
		"out", "no", "so", "just", "very", "too", "any", "some", "such",
	} {
		stopWords[w] = struct{}{}
	}
}

// IsStopWord reports whether the word is on the filter list.
func IsStopWord(w string) bool {
	_, ok := stopWords[w]
	return ok
}

// Tokenize lowercases the text, splits on non-alphanumeric runs, and drops
// stopwords and tokens shorter than three characters.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	lower := strings.ToLower(text)
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) <= 2 || IsStopWord(f) {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// Stem strips common suffixes (-ing, -ion, -es, -ed, -s) conservatively:
// the stem must stay at least three characters long.
func Stem(token string) string {
	for _, suf := range []string{"ing", "ion", "es", "ed", "s"} {
		if strings.HasSuffix(token, suf) && len(token)-len(suf) >= 3 {
			return token[:len(token)-len(suf)]
		}
	}
	return token
}

// StemAll stems each token.
func StemAll(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = Stem(t)
	}
	return out
}

// Jaccard returns |A∩B| / |A∪B| over the token sets, 1.0 for two empty sets.
func Jaccard(a, b []string) float64 {
	setA := toSet(a)
	setB := toSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}
	inter := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// WeightedJaccard is Jaccard with per-token IDF weights; tokens absent from
// the weight map count as weight 1.
func WeightedJaccard(a, b []string, idf map[string]float64) float64 {
	setA := toSet(a)
	setB := toSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}
	weight := func(t string) float64 {
		if w, ok := idf[t]; ok {
			return w
		}
		return 1.0
	}
	var inter, union float64
	for t := range setA {
		if _, ok := setB[t]; ok {
			inter += weight(t)
		}
		union += weight(t)
	}
	for t := range setB {
		if _, ok := setA[t]; !ok {
			union += weight(t)
		}
	}
	if union == 0 {
		return 0
	}
	return inter / union
}

func toSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// LevenshteinSim returns 1 - dist/maxLen, a similarity in [0,1].
// Both strings are compared case-insensitively.
func LevenshteinSim(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == b {
		return 1.0
	}
	maxLen := max(len(a), len(b))
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(a, b))/float64(maxLen)
}

func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// TokenSetRatio compares the sorted unique-token forms of both strings,
// ignoring word order and duplicates. Result is in [0,1].
func TokenSetRatio(a, b string) float64 {
	ta := uniqueSorted(Tokenize(a))
	tb := uniqueSorted(Tokenize(b))
	if len(ta) == 0 && len(tb) == 0 {
		return 1.0
	}
	if len(ta) == 0 || len(tb) == 0 {
		return 0.0
	}

	setA := toSet(ta)
	setB := toSet(tb)
	var common []string
	for _, t := range ta {
		if _, ok := setB[t]; ok {
			common = append(common, t)
		}
	}
	var onlyA, onlyB []string
	for _, t := range ta {
		if _, ok := setB[t]; !ok {
			onlyA = append(onlyA, t)
		}
	}
	for _, t := range tb {
		if _, ok := setA[t]; !ok {
			onlyB = append(onlyB, t)
		}
	}

	base := strings.Join(common, " ")
	s1 := strings.TrimSpace(base + " " + strings.Join(onlyA, " "))
	s2 := strings.TrimSpace(base + " " + strings.Join(onlyB, " "))

	// Best of the three pairings, like the classic token_set_ratio.
	best := LevenshteinSim(base, s1)
	if v := LevenshteinSim(base, s2); v > best {
		best = v
	}
	if v := LevenshteinSim(s1, s2); v > best {
		best = v
	}
	return best
}

func uniqueSorted(tokens []string) []string {
	set := toSet(tokens)
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	// Insertion sort keeps this allocation-light for short token lists.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// CharNgrams returns the multiset of character n-grams of s, lowercased with
// whitespace removed.
func CharNgrams(s string, n int) map[string]int {
	clean := strings.ToLower(s)
	clean = strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, clean)
	grams := make(map[string]int)
	if n <= 0 || len(clean) < n {
		return grams
	}
	for i := 0; i+n <= len(clean); i++ {
		grams[clean[i:i+n]]++
	}
	return grams
}

// NgramCosine is the cosine similarity of the character n-gram multisets of
// the two strings.
func NgramCosine(a, b string, n int) float64 {
	ga := CharNgrams(a, n)
	gb := CharNgrams(b, n)
	if len(ga) == 0 || len(gb) == 0 {
		return 0
	}
	fewer, more := ga, gb
	if len(fewer) > len(more) {
		fewer, more = more, fewer
	}
	var dot float64
	for g, ca := range fewer {
		if cb, ok := more[g]; ok {
			dot += float64(ca) * float64(cb)
		}
	}
	var na, nb float64
	for _, c := range ga {
		na += float64(c) * float64(c)
	}
	for _, c := range gb {
		nb += float64(c) * float64(c)
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
