package progression

import (
	"log/slog"

	"github.com/udisondev/spelllearn/internal/formid"
)

// SetPrereqRequirements replaces the unlock gates, typically after a tree
// load or rebuild. Existing progress is untouched.
func (e *Engine) SetPrereqRequirements(reqs map[formid.FormID]PrereqRequirement) {
	e.prereqs = make(map[formid.FormID]PrereqRequirement, len(reqs))
	for id, r := range reqs {
		e.prereqs[id] = r
	}
}

// SetPrereqRequirement sets the gate of a single node.
func (e *Engine) SetPrereqRequirement(id formid.FormID, r PrereqRequirement) {
	e.prereqs[id] = r
}

// PrereqsMet reports whether the node's gate is satisfied: all hard
// prerequisites mastered plus at least SoftNeeded of the soft pool. Nodes
// without a gate are roots and always eligible.
func (e *Engine) PrereqsMet(id formid.FormID) bool {
	r, ok := e.prereqs[id]
	if !ok || r.Empty() {
		return true
	}
	for _, h := range r.Hard {
		if !e.IsSpellMastered(h) {
			return false
		}
	}
	if r.SoftNeeded <= 0 {
		return true
	}
	met := 0
	for _, s := range r.Soft {
		if e.IsSpellMastered(s) {
			met++
			if met >= r.SoftNeeded {
				return true
			}
		}
	}
	return met >= r.SoftNeeded
}

// IsRoot reports whether the node has no prerequisites at all.
func (e *Engine) IsRoot(id formid.FormID) bool {
	r, ok := e.prereqs[id]
	return !ok || r.Empty()
}

// UnmetHard lists the hard prerequisites still blocking the node.
func (e *Engine) UnmetHard(id formid.FormID) []formid.FormID {
	r, ok := e.prereqs[id]
	if !ok {
		return nil
	}
	var out []formid.FormID
	for _, h := range r.Hard {
		if !e.IsSpellMastered(h) {
			out = append(out, h)
		}
	}
	return out
}

// SoftStatus reports how many soft prerequisites are mastered and how many
// are needed.
func (e *Engine) SoftStatus(id formid.FormID) (met, needed int) {
	r, ok := e.prereqs[id]
	if !ok {
		return 0, 0
	}
	for _, s := range r.Soft {
		if e.IsSpellMastered(s) {
			met++
		}
	}
	return met, r.SoftNeeded
}

// CanUnlock reports whether the spell is at full XP with its gate satisfied
// and not already unlocked.
func (e *Engine) CanUnlock(id formid.FormID) bool {
	p, ok := e.progress[id]
	if !ok || p.Unlocked {
		return false
	}
	return p.Percent >= 1.0 && e.PrereqsMet(id)
}

// UnlockSpell finalizes a fully-progressed spell: marks it unlocked, adds it
// to the player and clears any target slot holding it. Returns false when
// the spell is not eligible.
func (e *Engine) UnlockSpell(id formid.FormID) bool {
	if !e.CanUnlock(id) {
		return false
	}
	return e.unlock(id)
}

// ForceUnlock unlocks regardless of XP and prerequisites. Console/cheat
// path.
func (e *Engine) ForceUnlock(id formid.FormID) bool {
	p := e.ensureProgress(id)
	if p.Unlocked {
		return false
	}
	p.Percent = 1.0
	return e.unlock(id)
}

func (e *Engine) unlock(id formid.FormID) bool {
	p := e.ensureProgress(id)
	p.Unlocked = true
	e.dirty = true
	if e.spells != nil && !e.spells.AddToPlayer(uint32(id)) {
		slog.Warn("host refused to add spell", "spell", id)
	}
	slog.Info("spell unlocked", "spell", id)
	e.events.SendModEvent(EventSpellMastered, e.schoolOf(id), 0)
	e.ClearLearningTargetForSpell(id)
	e.notify.spellUnlocked(id, true)
	return true
}

// IsUnlocked reports an explicit unlock.
func (e *Engine) IsUnlocked(id formid.FormID) bool {
	p, ok := e.progress[id]
	return ok && p.Unlocked
}

// IsSpellMastered reports mastery through either the unlock flag or full
// progress. Spells the host says the player already knows count as mastered,
// which keeps imported characters working against a fresh tree.
func (e *Engine) IsSpellMastered(id formid.FormID) bool {
	if p, ok := e.progress[id]; ok && p.Mastered() {
		return true
	}
	// Early-granted spells are in the player's book before mastery; do not
	// let the host's knowledge short-circuit them.
	if e.earlyGranted[id] {
		return false
	}
	return e.spells != nil && e.spells.SpellExists(uint32(id))
}

// AvailableToLearn filters candidates down to spells whose gates are
// satisfied and which are not yet mastered.
func (e *Engine) AvailableToLearn(candidates []formid.FormID) []formid.FormID {
	var out []formid.FormID
	for _, id := range candidates {
		if e.IsSpellMastered(id) {
			continue
		}
		if e.PrereqsMet(id) {
			out = append(out, id)
		}
	}
	return out
}
