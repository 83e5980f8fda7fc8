package progression

import "github.com/udisondev/spelllearn/internal/formid"

// Notifier carries the UI callbacks the engine fires after state mutations.
// Any field may be nil. The engine invokes callbacks on the game thread,
// strictly after the mutation they describe.
type Notifier struct {
	TargetSet        func(school string, id formid.FormID)
	TargetCleared    func(id formid.FormID)
	ProgressUpdate   func(id formid.FormID, currentXP, requiredXP float64)
	SpellReady       func(id formid.FormID)
	SpellUnlocked    func(id formid.FormID, mastered bool)
	SourceRegistered func(id, display string, multiplier, cap float64)
}

func (n *Notifier) targetSet(school string, id formid.FormID) {
	if n != nil && n.TargetSet != nil {
		n.TargetSet(school, id)
	}
}

func (n *Notifier) targetCleared(id formid.FormID) {
	if n != nil && n.TargetCleared != nil {
		n.TargetCleared(id)
	}
}

func (n *Notifier) progressUpdate(id formid.FormID, cur, req float64) {
	if n != nil && n.ProgressUpdate != nil {
		n.ProgressUpdate(id, cur, req)
	}
}

func (n *Notifier) spellReady(id formid.FormID) {
	if n != nil && n.SpellReady != nil {
		n.SpellReady(id)
	}
}

func (n *Notifier) spellUnlocked(id formid.FormID, mastered bool) {
	if n != nil && n.SpellUnlocked != nil {
		n.SpellUnlocked(id, mastered)
	}
}

func (n *Notifier) sourceRegistered(id, display string, mult, cap float64) {
	if n != nil && n.SourceRegistered != nil {
		n.SourceRegistered(id, display, mult, cap)
	}
}
