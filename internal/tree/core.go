package tree

import (
	"math/rand"
	"sort"

	"github.com/udisondev/spelllearn/internal/catalog"
	"github.com/udisondev/spelllearn/internal/treenlp"
)

// spellInfo pairs one catalog entry with its precomputed text features.
type spellInfo struct {
	spell catalog.Spell
	feats treenlp.Features
	vec   treenlp.SparseVector
}

// buildInfos extracts features for a school's spells and fits TF-IDF over
// their combined text. Order follows the input.
func buildInfos(spells []catalog.Spell) []*spellInfo {
	infos := make([]*spellInfo, len(spells))
	docs := make([][]string, len(spells))
	for i, sp := range spells {
		text := treenlp.SpellText{
			Name:        sp.Name,
			Description: sp.Description,
			School:      sp.School,
			Effects:     append(append([]string{}, sp.Effects...), sp.EffectNames...),
			Keywords:    sp.Keywords,
		}
		feats := treenlp.ExtractFeatures(text)
		infos[i] = &spellInfo{spell: sp, feats: feats}
		docs[i] = treenlp.StemAll(feats.Tokens)
	}
	vecs := treenlp.TFIDF(docs)
	for i := range infos {
		infos[i].vec = vecs[i]
	}
	return infos
}

// similarity blends the lexical signals into one score in [0,1]. Effect
// overlap dominates, text cosine and name fuzz fill in when effects are
// sparse.
func similarity(a, b *spellInfo) float64 {
	effects := treenlp.Jaccard(treenlp.StemAll(a.feats.EffectTokens), treenlp.StemAll(b.feats.EffectTokens))
	keywords := treenlp.Jaccard(a.feats.KeywordTokens, b.feats.KeywordTokens)
	text := treenlp.Cosine(a.vec, b.vec)
	name := treenlp.TokenSetRatio(a.spell.Name, b.spell.Name)
	ngram := treenlp.NgramCosine(a.spell.Name, b.spell.Name, 3)

	return 0.40*effects + 0.15*keywords + 0.25*text + 0.10*name + 0.10*ngram
}

// simMatrix precomputes pairwise similarity; symmetric, zero diagonal.
func simMatrix(infos []*spellInfo) [][]float64 {
	m := make([][]float64, len(infos))
	for i := range m {
		m[i] = make([]float64, len(infos))
	}
	for i := 0; i < len(infos); i++ {
		for j := i + 1; j < len(infos); j++ {
			s := similarity(infos[i], infos[j])
			m[i][j] = s
			m[j][i] = s
		}
	}
	return m
}

// sortByCost orders spells the way the classic builder walks them: minimum
// skill, then magicka cost, then name.
func sortByCost(infos []*spellInfo) {
	sort.SliceStable(infos, func(i, j int) bool {
		a, b := infos[i].spell, infos[j].spell
		if a.MinimumSkill != b.MinimumSkill {
			return a.MinimumSkill < b.MinimumSkill
		}
		if a.MagickaCost != b.MagickaCost {
			return a.MagickaCost < b.MagickaCost
		}
		return a.Name < b.Name
	})
}

// newNode converts a catalog entry to a tree node with no edges yet.
func newNode(sp catalog.Spell) *Node {
	return &Node{
		FormID:        sp.FormID,
		PersistentID:  sp.PersistentID,
		Name:          sp.Name,
		SkillLevel:    sp.SkillLevel,
		Children:      []string{},
		Prerequisites: []string{},
	}
}

// rng returns a deterministic source for the seed; seed 0 selects a fixed
// default so rebuilds are reproducible unless the caller opts in to
// variation.
func rng(seed int64) *rand.Rand {
	if seed == 0 {
		seed = 1
	}
	return rand.New(rand.NewSource(seed))
}
