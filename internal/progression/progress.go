package progression

import "github.com/udisondev/spelllearn/internal/formid"

// SpellProgress is the latent progression state of one spell.
//
// Percent is the canonical value; CurrentXP is derived. Per-route
// accumulators track how much each source contributed for cap enforcement.
type SpellProgress struct {
	Percent    float64 // 0..1
	RequiredXP float64 // > 0
	Unlocked   bool

	FromAny    float64
	FromSchool float64
	FromDirect float64
	FromSelf   float64

	FromModded map[string]float64 // source name -> cumulative credited XP
}

// CurrentXP is the derived absolute XP value.
func (p *SpellProgress) CurrentXP() float64 {
	return p.Percent * p.RequiredXP
}

// TrackedXP sums the built-in route accumulators.
func (p *SpellProgress) TrackedXP() float64 {
	return p.FromAny + p.FromSchool + p.FromDirect + p.FromSelf
}

// Mastered reports full progress or an explicit unlock.
func (p *SpellProgress) Mastered() bool {
	return p.Unlocked || p.Percent >= 1.0
}

func (p *SpellProgress) moddedXP(source string) float64 {
	if p.FromModded == nil {
		return 0
	}
	return p.FromModded[source]
}

func (p *SpellProgress) addModdedXP(source string, amount float64) {
	if p.FromModded == nil {
		p.FromModded = make(map[string]float64)
	}
	p.FromModded[source] += amount
}

// PrereqRequirement is the unlock gate of one tree node: every hard
// prerequisite must be mastered, and at least SoftNeeded of the soft pool.
// An empty requirement marks a root.
type PrereqRequirement struct {
	Hard       []formid.FormID
	Soft       []formid.FormID
	SoftNeeded int
}

// Empty reports whether the node is a root (always eligible).
func (r *PrereqRequirement) Empty() bool {
	return len(r.Hard) == 0 && len(r.Soft) == 0
}
