// Package progression implements the per-spell XP engine: multi-source
// accrual with per-route caps and multipliers, prerequisite-graph
// evaluation, unlock decisions and persistence.
//
// The engine is owned by the game thread. All methods must be called there;
// background producers post closures via the host task queue. This matches
// the host's execution model and keeps the state single-writer.
package progression

import (
	"log/slog"
	"math"

	"github.com/udisondev/spelllearn/internal/formid"
	"github.com/udisondev/spelllearn/internal/host"
)

// Mod event names broadcast to host script listeners.
const (
	EventXPGained         = "SpellLearning_XPGained"
	EventSourceRegistered = "SpellLearning_SourceRegistered"
	EventSpellMastered    = "SpellLearning_SpellMastered"
	EventSpellReady       = "SpellLearning_SpellReady"
	EventEarlyGranted     = "SpellLearning_SpellEarlyGranted"
	EventTargetSet        = "SpellLearning_TargetSet"
)

// Engine is the progression core. Construct with New, then feed it tree
// data (SetPrereqRequirements / SetRequiredXP) and XP grants.
type Engine struct {
	settings Settings
	resolver *formid.Resolver
	spells   host.Spells
	events   host.Events
	notify   *Notifier

	targets       map[string]formid.FormID                // school -> learning target
	targetPrereqs map[formid.FormID][]formid.FormID       // target -> direct prereqs
	prereqs       map[formid.FormID]PrereqRequirement     // node -> unlock gate
	progress      map[formid.FormID]*SpellProgress
	tiers         map[formid.FormID]string                // tier hints from tree data
	earlyGranted  map[formid.FormID]bool

	saveName string
	dirty    bool
}

// New builds an engine. spells and events may be nil for headless use;
// notify may be nil when no UI is attached.
func New(settings Settings, resolver *formid.Resolver, spells host.Spells, events host.Events, notify *Notifier) *Engine {
	if events == nil {
		events = host.NopEvents{}
	}
	if settings.Modded == nil {
		settings.Modded = make(map[string]*ModdedSource)
	}
	return &Engine{
		settings:      settings,
		resolver:      resolver,
		spells:        spells,
		events:        events,
		notify:        notify,
		targets:       make(map[string]formid.FormID),
		targetPrereqs: make(map[formid.FormID][]formid.FormID),
		prereqs:       make(map[formid.FormID]PrereqRequirement),
		progress:      make(map[formid.FormID]*SpellProgress),
		tiers:         make(map[formid.FormID]string),
		earlyGranted:  make(map[formid.FormID]bool),
		saveName:      "default",
	}
}

// Settings returns the active settings.
func (e *Engine) Settings() Settings { return e.settings }

// SetSettings replaces the routing configuration. Already-credited
// per-source XP is never retroactively un-credited when a cap is lowered;
// the source simply stops contributing until headroom reappears.
func (e *Engine) SetSettings(s Settings) {
	if s.Modded == nil {
		s.Modded = make(map[string]*ModdedSource)
	}
	e.settings = s
}

// SendModEvent broadcasts to host script listeners.
func (e *Engine) SendModEvent(name, strArg string, numArg float64) {
	e.events.SendModEvent(name, strArg, numArg)
}

// =========================================================================
// Learning targets
// =========================================================================

// SetLearningTarget designates the spell receiving XP grants in the school.
// Idempotent; replaces any previous target of the same school. The prereq
// list feeds the direct-route XP bonus.
func (e *Engine) SetLearningTarget(school string, id formid.FormID, prereqs []formid.FormID) {
	if id == 0 {
		return
	}
	if old, ok := e.targets[school]; ok && old == id {
		e.targetPrereqs[id] = prereqs
		return
	}
	if old, ok := e.targets[school]; ok && old != 0 {
		delete(e.targetPrereqs, old)
		e.notify.targetCleared(old)
	}
	e.targets[school] = id
	e.targetPrereqs[id] = prereqs
	e.ensureProgress(id)
	e.dirty = true
	slog.Info("learning target set", "school", school, "spell", id)
	e.notify.targetSet(school, id)
	e.events.SendModEvent(EventTargetSet, school, float64(id))
}

// SetLearningTargetFromTome designates a target from a tome-read event.
// The school comes from the spell itself; in single mode every other
// school's target is cleared first.
func (e *Engine) SetLearningTargetFromTome(id formid.FormID) {
	if e.spells == nil {
		return
	}
	school := e.spells.SchoolOf(uint32(id))
	if school == "" {
		slog.Warn("tome spell has no school", "spell", id)
		return
	}
	if e.settings.LearningMode == "single" {
		for other, target := range e.targets {
			if other != school && target != 0 {
				e.ClearLearningTarget(other)
			}
		}
	}
	e.SetLearningTarget(school, id, nil)
}

// ClearLearningTarget removes the school's target, if any.
func (e *Engine) ClearLearningTarget(school string) {
	id, ok := e.targets[school]
	if !ok {
		return
	}
	delete(e.targets, school)
	delete(e.targetPrereqs, id)
	e.dirty = true
	e.notify.targetCleared(id)
}

// ClearLearningTargetForSpell removes whatever target slot holds the spell.
func (e *Engine) ClearLearningTargetForSpell(id formid.FormID) {
	for school, target := range e.targets {
		if target == id {
			e.ClearLearningTarget(school)
			return
		}
	}
}

// Target returns the school's learning target, 0 if none.
func (e *Engine) Target(school string) formid.FormID {
	return e.targets[school]
}

// Targets returns a copy of the target map.
func (e *Engine) Targets() map[string]formid.FormID {
	out := make(map[string]formid.FormID, len(e.targets))
	for school, id := range e.targets {
		out[school] = id
	}
	return out
}

// IsDirectPrerequisite reports whether cast is in the target's direct
// prerequisite list.
func (e *Engine) IsDirectPrerequisite(target, cast formid.FormID) bool {
	for _, p := range e.targetPrereqs[target] {
		if p == cast {
			return true
		}
	}
	return false
}

// =========================================================================
// XP routing
// =========================================================================

// OnSpellCast is the entry point for the spell-cast route. Each learning
// target receives XP through the most specific matching route
// (self > direct > school > any). In single mode only the first target that
// receives credit is processed.
func (e *Engine) OnSpellCast(school string, cast formid.FormID, baseXP float64) {
	for targetSchool, target := range e.targets {
		if target == 0 {
			continue
		}
		p := e.ensureProgress(target)
		if p.Mastered() {
			continue
		}

		isSelf := cast == target

		// Above the self-cast threshold only self-casting still counts.
		if e.settings.Early.Enabled && p.Percent*100 >= e.settings.Early.RequiredAt && !isSelf {
			continue
		}

		route := RouteAny
		amount := baseXP
		switch {
		case isSelf:
			route = RouteSelf
			if e.settings.Early.Enabled && e.earlyGranted[target] {
				amount *= e.settings.Early.SelfBonus
			}
		case targetSchool == school && e.IsDirectPrerequisite(target, cast):
			route = RouteDirect
		case targetSchool == school:
			route = RouteSchool
		}

		granted := e.AddSourcedXP(target, amount, string(route))
		if e.settings.LearningMode == "single" && granted > 0 {
			return
		}
	}
}

// AddSourcedXP routes amount through multipliers and caps and returns the
// actually credited XP. Built-in routes are "any", "school", "direct" and
// "self"; any other name is treated as a modded source and auto-registered
// with defaults when unknown.
func (e *Engine) AddSourcedXP(target formid.FormID, amount float64, source string) float64 {
	if target == 0 || amount <= 0 {
		return 0
	}
	p := e.ensureProgress(target)
	if p.Mastered() {
		return 0
	}

	adjusted := amount * e.settings.GlobalMultiplier

	var headroom float64
	var commit func(float64)

	switch Route(source) {
	case RouteAny:
		adjusted *= e.settings.MultiplierAny
		headroom = p.RequiredXP*(e.settings.CapAny/100) - p.FromAny
		commit = func(g float64) { p.FromAny += g }
	case RouteSchool:
		adjusted *= e.settings.MultiplierSchool
		headroom = p.RequiredXP*(e.settings.CapSchool/100) - p.FromSchool
		commit = func(g float64) { p.FromSchool += g }
	case RouteDirect:
		adjusted *= e.settings.MultiplierDirect
		headroom = p.RequiredXP*(e.settings.CapDirect/100) - p.FromDirect
		commit = func(g float64) { p.FromDirect += g }
	case RouteSelf:
		// Self-casting is uncapped; it uses the direct multiplier.
		adjusted *= e.settings.MultiplierDirect
		headroom = p.RequiredXP - p.FromSelf
		commit = func(g float64) { p.FromSelf += g }
	default:
		if source == "" {
			return 0
		}
		cfg, ok := e.settings.Modded[source]
		if !ok {
			e.RegisterModdedSource(source, source, false)
			cfg = e.settings.Modded[source]
		}
		if !cfg.Enabled {
			return 0
		}
		adjusted *= cfg.Multiplier / 100
		headroom = p.RequiredXP*(cfg.Cap/100) - p.moddedXP(source)
		commit = func(g float64) { p.addModdedXP(source, g) }
	}

	granted := math.Min(adjusted, math.Max(0, headroom))
	if granted <= 0 {
		return 0
	}
	commit(granted)
	e.addXP(target, p, granted, true)
	e.events.SendModEvent(EventXPGained, source, granted)
	return granted
}

// AddRawXP bypasses caps and multipliers; the grant is still clamped to the
// XP remaining.
func (e *Engine) AddRawXP(target formid.FormID, amount float64) float64 {
	if target == 0 || amount <= 0 {
		return 0
	}
	p := e.ensureProgress(target)
	if p.Mastered() {
		return 0
	}
	granted := math.Min(amount, math.Max(0, p.RequiredXP-p.CurrentXP()))
	if granted <= 0 {
		return 0
	}
	e.addXP(target, p, granted, true)
	e.events.SendModEvent(EventXPGained, "raw", granted)
	return granted
}

// AddXPNoGrant accrues XP without the early-learn side effect. Used by
// time-delayed study flows that grant the spell themselves on completion.
func (e *Engine) AddXPNoGrant(target formid.FormID, amount float64) {
	if target == 0 || amount <= 0 {
		return
	}
	p := e.ensureProgress(target)
	if p.Mastered() {
		return
	}
	e.addXP(target, p, amount, false)
}

// SetSpellXP writes an absolute XP value, clamped to [0, required].
func (e *Engine) SetSpellXP(id formid.FormID, xp float64) {
	p := e.ensureProgress(id)
	xp = math.Max(0, math.Min(xp, p.RequiredXP))
	if p.RequiredXP > 0 {
		p.Percent = xp / p.RequiredXP
	} else {
		p.Percent = 1.0
	}
	e.dirty = true
	e.notify.progressUpdate(id, xp, p.RequiredXP)
}

// addXP advances progress by an already-credited amount and fires the
// milestone side effects. allowGrant gates the early-learn path.
func (e *Engine) addXP(id formid.FormID, p *SpellProgress, amount float64, allowGrant bool) {
	oldPercent := p.Percent
	newXP := math.Min(p.CurrentXP()+amount, p.RequiredXP)
	if p.RequiredXP > 0 {
		p.Percent = math.Min(newXP/p.RequiredXP, 1.0)
	} else {
		p.Percent = 1.0
	}
	e.dirty = true

	slog.Debug("xp added", "spell", id, "xp", newXP, "required", p.RequiredXP, "percent", p.Percent*100)

	early := e.settings.Early
	if early.Enabled && allowGrant {
		threshold := early.RequiredAt / 100
		if oldPercent < threshold && p.Percent >= threshold && !e.earlyGranted[id] {
			e.earlyGranted[id] = true
			if e.spells != nil {
				e.spells.AddToPlayer(uint32(id))
			}
			slog.Info("spell granted early", "spell", id, "percent", p.Percent*100)
			e.events.SendModEvent(EventEarlyGranted, e.schoolOf(id), p.Percent*100)
		}
		if oldPercent < 1.0 && p.Percent >= 1.0 {
			// Early path masters at 100% without an explicit unlock call.
			p.Unlocked = true
			slog.Info("spell mastered", "spell", id)
			e.events.SendModEvent(EventSpellMastered, e.schoolOf(id), 0)
			e.ClearLearningTargetForSpell(id)
			e.notify.spellUnlocked(id, true)
		}
	} else if oldPercent < 1.0 && p.Percent >= 1.0 && e.PrereqsMet(id) {
		slog.Info("spell ready to unlock", "spell", id)
		e.events.SendModEvent(EventSpellReady, e.schoolOf(id), 0)
		e.notify.spellReady(id)
	}

	e.notify.progressUpdate(id, p.CurrentXP(), p.RequiredXP)
}

func (e *Engine) schoolOf(id formid.FormID) string {
	if e.spells == nil {
		return ""
	}
	return e.spells.SchoolOf(uint32(id))
}

// =========================================================================
// Queries
// =========================================================================

// Progress returns a copy of the spell's state; a zero-value snapshot when
// the spell is unknown.
func (e *Engine) Progress(id formid.FormID) SpellProgress {
	if p, ok := e.progress[id]; ok {
		cp := *p
		if p.FromModded != nil {
			cp.FromModded = make(map[string]float64, len(p.FromModded))
			for k, v := range p.FromModded {
				cp.FromModded[k] = v
			}
		}
		return cp
	}
	return SpellProgress{}
}

// Known reports whether the spell has a progress entry.
func (e *Engine) Known(id formid.FormID) bool {
	_, ok := e.progress[id]
	return ok
}

// RequiredXP returns the spell's requirement: the progress entry when known,
// otherwise the tier default.
func (e *Engine) RequiredXP(id formid.FormID) float64 {
	if p, ok := e.progress[id]; ok && p.RequiredXP > 0 {
		return p.RequiredXP
	}
	if tier, ok := e.tiers[id]; ok {
		return e.settings.XPForTier(tier)
	}
	return e.settings.XPNovice
}

// SetRequiredXP overrides the requirement, typically from tree data.
func (e *Engine) SetRequiredXP(id formid.FormID, required float64) {
	if required <= 0 {
		return
	}
	p := e.ensureProgress(id)
	p.RequiredXP = required
}

// SetSpellTier records the tier hint used when no explicit requirement is
// known.
func (e *Engine) SetSpellTier(id formid.FormID, tier string) {
	e.tiers[id] = tier
}

// SourceCap returns the cap percent of a built-in route or modded source;
// 0 for unknown names.
func (e *Engine) SourceCap(name string) float64 {
	switch Route(name) {
	case RouteAny:
		return e.settings.CapAny
	case RouteSchool:
		return e.settings.CapSchool
	case RouteDirect:
		return e.settings.CapDirect
	case RouteSelf:
		return 100
	}
	if cfg, ok := e.settings.Modded[name]; ok {
		return cfg.Cap
	}
	return 0
}

// RegisterModdedSource creates UI controls for a named source. Returns
// false when the source already existed. Internal sources get cap tracking
// but stay out of the modded-sources UI.
func (e *Engine) RegisterModdedSource(id, display string, internal bool) bool {
	if _, ok := e.settings.Modded[id]; ok {
		return false
	}
	if display == "" {
		display = id
	}
	cfg := &ModdedSource{
		Display:    display,
		Enabled:    true,
		Multiplier: 100,
		Cap:        25,
		Internal:   internal,
	}
	e.settings.Modded[id] = cfg
	slog.Info("modded xp source registered", "id", id, "display", display, "internal", internal)
	if !internal {
		e.notify.sourceRegistered(id, display, cfg.Multiplier, cfg.Cap)
	}
	e.events.SendModEvent(EventSourceRegistered, id, 0)
	return true
}

// EarlyGranted reports whether the spell was granted through the early path.
func (e *Engine) EarlyGranted(id formid.FormID) bool {
	return e.earlyGranted[id]
}

func (e *Engine) ensureProgress(id formid.FormID) *SpellProgress {
	if p, ok := e.progress[id]; ok {
		if p.RequiredXP <= 0 {
			p.RequiredXP = e.RequiredXP(id)
		}
		return p
	}
	p := &SpellProgress{RequiredXP: e.RequiredXP(id)}
	e.progress[id] = p
	return p
}

// ResetAll drops every progress entry, target and prerequisite. Called on
// new game or revert.
func (e *Engine) ResetAll() {
	slog.Info("clearing all progression state")
	e.targets = make(map[string]formid.FormID)
	e.targetPrereqs = make(map[formid.FormID][]formid.FormID)
	e.progress = make(map[formid.FormID]*SpellProgress)
	e.earlyGranted = make(map[formid.FormID]bool)
	e.dirty = false
}
