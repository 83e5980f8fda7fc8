// Package script is the string-keyed surface exposed to the host's script
// VM. Scripts pass hex form-ID strings; all parsing and defaulting happens
// here so the typed engine API stays clean.
package script

import (
	"log/slog"

	"github.com/udisondev/spelllearn/internal/formid"
	"github.com/udisondev/spelllearn/internal/progression"
)

// API wraps one engine for script consumption. Methods are forgiving:
// malformed IDs log and return zero values instead of failing the VM.
type API struct {
	engine *progression.Engine
}

// New wraps the engine.
func New(engine *progression.Engine) *API {
	return &API{engine: engine}
}

func (a *API) parse(hexID string) (formid.FormID, bool) {
	id, err := formid.ParseHex(hexID)
	if err != nil || id == 0 {
		slog.Warn("script passed a malformed form id", "id", hexID)
		return 0, false
	}
	return id, true
}

// AddSourcedXP routes XP by source name; returns the credited amount.
func (a *API) AddSourcedXP(hexID string, amount float64, source string) float64 {
	id, ok := a.parse(hexID)
	if !ok {
		return 0
	}
	if source == "" {
		source = string(progression.RouteDirect)
	}
	return a.engine.AddSourcedXP(id, amount, source)
}

// AddRawXP bypasses multipliers and caps.
func (a *API) AddRawXP(hexID string, amount float64) float64 {
	id, ok := a.parse(hexID)
	if !ok {
		return 0
	}
	return a.engine.AddRawXP(id, amount)
}

// AddXPNoGrant accrues without the early-learn side effect.
func (a *API) AddXPNoGrant(hexID string, amount float64) {
	if id, ok := a.parse(hexID); ok {
		a.engine.AddXPNoGrant(id, amount)
	}
}

// SetSpellXP writes an absolute XP value.
func (a *API) SetSpellXP(hexID string, xp float64) {
	if id, ok := a.parse(hexID); ok {
		a.engine.SetSpellXP(id, xp)
	}
}

// GetProgressPercent returns progress in [0,100].
func (a *API) GetProgressPercent(hexID string) float64 {
	id, ok := a.parse(hexID)
	if !ok {
		return 0
	}
	return a.engine.Progress(id).Percent * 100
}

// GetCurrentXP returns the absolute accrued XP.
func (a *API) GetCurrentXP(hexID string) float64 {
	id, ok := a.parse(hexID)
	if !ok {
		return 0
	}
	p := a.engine.Progress(id)
	return p.CurrentXP()
}

// GetRequiredXP returns the requirement, tier defaults included.
func (a *API) GetRequiredXP(hexID string) float64 {
	id, ok := a.parse(hexID)
	if !ok {
		return 0
	}
	return a.engine.RequiredXP(id)
}

// IsSpellMastered reports mastery.
func (a *API) IsSpellMastered(hexID string) bool {
	id, ok := a.parse(hexID)
	return ok && a.engine.IsSpellMastered(id)
}

// CanUnlock reports unlock eligibility.
func (a *API) CanUnlock(hexID string) bool {
	id, ok := a.parse(hexID)
	return ok && a.engine.CanUnlock(id)
}

// UnlockSpell attempts the unlock; cheat forces it through unmet gates.
func (a *API) UnlockSpell(hexID string, cheat bool) bool {
	id, ok := a.parse(hexID)
	if !ok {
		return false
	}
	if cheat {
		return a.engine.ForceUnlock(id)
	}
	return a.engine.UnlockSpell(id)
}

// SetLearningTarget designates the school's target.
func (a *API) SetLearningTarget(school, hexID string) {
	if id, ok := a.parse(hexID); ok {
		a.engine.SetLearningTarget(school, id, nil)
	}
}

// SetLearningTargetFromTome routes a tome-read event.
func (a *API) SetLearningTargetFromTome(hexID string) {
	if id, ok := a.parse(hexID); ok {
		a.engine.SetLearningTargetFromTome(id)
	}
}

// ClearLearningTarget drops the school's target.
func (a *API) ClearLearningTarget(school string) {
	a.engine.ClearLearningTarget(school)
}

// GetLearningTarget returns the school's target as a hex string, "" if none.
func (a *API) GetLearningTarget(school string) string {
	id := a.engine.Target(school)
	if id == 0 {
		return ""
	}
	return id.String()
}

// OnSpellCast feeds the cast route.
func (a *API) OnSpellCast(school, hexID string, baseXP float64) {
	if id, ok := a.parse(hexID); ok {
		a.engine.OnSpellCast(school, id, baseXP)
	}
}

// GetSourceCap exposes route and modded-source caps to menus.
func (a *API) GetSourceCap(source string) float64 {
	return a.engine.SourceCap(source)
}

// RegisterModdedSource lets other mods create an XP source.
func (a *API) RegisterModdedSource(id, display string) bool {
	return a.engine.RegisterModdedSource(id, display, false)
}

// GetProgressJSON renders the UI snapshot document.
func (a *API) GetProgressJSON() string {
	return a.engine.ProgressJSON()
}

// ResetAllProgress wipes every progress entry and target. New-game path.
func (a *API) ResetAllProgress() {
	a.engine.ResetAll()
}

// SendModEvent forwards an event broadcast.
func (a *API) SendModEvent(name, strArg string, numArg float64) {
	a.engine.SendModEvent(name, strArg, numArg)
}
