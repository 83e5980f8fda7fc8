// Package passive grants XP for game time spent while a learning target is
// set. A background worker polls the host calendar every few seconds and
// pushes grants through the engine's sourced-XP path, so the engine's cap
// machinery stays the single authority.
package passive

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/udisondev/spelllearn/internal/config"
	"github.com/udisondev/spelllearn/internal/formid"
	"github.com/udisondev/spelllearn/internal/host"
	"github.com/udisondev/spelllearn/internal/progression"
	"github.com/udisondev/spelllearn/internal/xpsource"
)

// SourceName is the engine-side identifier of passive grants.
const SourceName = "passive"

// pollInterval is real time between calendar reads.
const pollInterval = 3 * time.Second

// minDeltaHours filters calendar jitter; smaller advances accumulate until
// they cross it.
const minDeltaHours = 0.1

// Settings is the worker's balancing block. Scope limits which targets
// accrue: "all", "root" (targets with no prerequisites) or "novice"
// (required XP at or below the novice requirement).
type Settings struct {
	Scope         string
	XPPerGameHour float64

	// Per-tier caps, percent of required XP. The engine's per-source cap is
	// set to the loosest of these; the tighter per-tier limit is enforced
	// here before granting.
	MaxNovice     float64
	MaxApprentice float64
	MaxAdept      float64
	MaxExpert     float64
	MaxMaster     float64
}

// SettingsFromConfig maps the unified config block.
func SettingsFromConfig(cfg config.PassiveLearning) Settings {
	return Settings{
		Scope:         cfg.Scope,
		XPPerGameHour: cfg.XPPerGameHour,
		MaxNovice:     cfg.MaxNovice,
		MaxApprentice: cfg.MaxApprentice,
		MaxAdept:      cfg.MaxAdept,
		MaxExpert:     cfg.MaxExpert,
		MaxMaster:     cfg.MaxMaster,
	}
}

// Source is the passive/time XP producer. It satisfies xpsource.Source.
// The worker never touches the engine directly: each tick posts a closure
// to the game-thread queue and all engine reads and writes happen there.
type Source struct {
	xpsource.Base

	engine   *progression.Engine
	queue    host.TaskQueue
	calendar host.Calendar

	mu       sync.Mutex
	settings Settings

	lastHours float64
	primed    bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds the source. Init starts the worker.
func New(engine *progression.Engine, queue host.TaskQueue, calendar host.Calendar, settings Settings) *Source {
	return &Source{
		Base:     xpsource.NewBase(SourceName, "Passive Learning", "Grants XP for game time spent with a learning target set."),
		engine:   engine,
		queue:    queue,
		calendar: calendar,
		settings: settings,
	}
}

// Settings returns a copy of the current balancing block.
func (s *Source) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// SetSettings replaces the balancing block. Safe to call from the UI thread
// while the worker runs.
func (s *Source) SetSettings(settings Settings) {
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
}

func (s *Source) Available() bool { return s.calendar != nil && s.queue != nil }

func (s *Source) Priority() int { return 10 }

// Init registers the engine-side source and starts the polling worker.
// The engine registration runs on the game thread like every other engine
// mutation.
func (s *Source) Init() error {
	if !s.Available() {
		return nil
	}
	s.queue.Post(func() {
		s.engine.RegisterModdedSource(SourceName, s.DisplayName(), true)
		// Tier caps are enforced here before granting; the engine-side cap
		// only needs to admit the loosest one.
		if src, ok := s.engine.Settings().Modded[SourceName]; ok {
			src.Cap = 100
		}
	})
	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go s.run()
	slog.Info("passive learning started", "scope", s.Settings().Scope)
	return nil
}

// Shutdown stops the worker and joins it.
func (s *Source) Shutdown() {
	if s.stopCh == nil {
		return
	}
	close(s.stopCh)
	s.wg.Wait()
	s.stopCh = nil
	slog.Info("passive learning stopped")
}

func (s *Source) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if s.Enabled() {
				s.queue.Post(s.Tick)
			}
		}
	}
}

// Tick runs on the game thread: reads the calendar, computes the hour delta
// and grants on a large-enough positive advance. Negative deltas mean a
// save was loaded; the baseline resets without granting.
func (s *Source) Tick() {
	now := s.calendar.GameHours()
	if !s.primed {
		s.lastHours = now
		s.primed = true
		return
	}
	delta := now - s.lastHours
	switch {
	case delta < 0:
		slog.Debug("game time went backwards, resetting baseline", "from", s.lastHours, "to", now)
		s.lastHours = now
	case delta > minDeltaHours:
		s.grant(delta)
		s.lastHours = now
	}
}

// ResetBaseline forgets the last calendar reading. Call after a save load
// so stale game time is not credited.
func (s *Source) ResetBaseline() {
	s.primed = false
}

func (s *Source) grant(deltaHours float64) {
	settings := s.Settings()
	amount := deltaHours * settings.XPPerGameHour
	if amount <= 0 {
		return
	}
	for school, target := range s.engine.Targets() {
		if target == 0 || !s.eligible(target, settings) {
			continue
		}
		clamped := s.clampToTierCap(target, amount, settings)
		if clamped <= 0 {
			continue
		}
		granted := s.engine.AddSourcedXP(target, clamped, SourceName)
		if granted > 0 {
			slog.Debug("passive xp granted", "school", school, "spell", target, "xp", granted)
		}
	}
}

func (s *Source) eligible(target formid.FormID, settings Settings) bool {
	switch settings.Scope {
	case "root":
		return s.engine.IsRoot(target)
	case "novice":
		return s.engine.RequiredXP(target) <= s.engine.Settings().XPNovice
	default: // "all"
		return true
	}
}

// clampToTierCap limits the grant so this source never exceeds its per-tier
// percent of the requirement.
func (s *Source) clampToTierCap(target formid.FormID, amount float64, settings Settings) float64 {
	required := s.engine.RequiredXP(target)
	capPct := s.tierCap(required, settings)
	if capPct <= 0 {
		return 0
	}
	p := s.engine.Progress(target)
	already := 0.0
	if p.FromModded != nil {
		already = p.FromModded[SourceName]
	}
	headroom := required*(capPct/100) - already
	if headroom <= 0 {
		return 0
	}
	return math.Min(amount, headroom)
}

// tierCap picks the cap by comparing the requirement against the tier
// defaults from the engine settings.
func (s *Source) tierCap(required float64, settings Settings) float64 {
	es := s.engine.Settings()
	switch {
	case required <= es.XPNovice:
		return settings.MaxNovice
	case required <= es.XPApprentice:
		return settings.MaxApprentice
	case required <= es.XPAdept:
		return settings.MaxAdept
	case required <= es.XPExpert:
		return settings.MaxExpert
	default:
		return settings.MaxMaster
	}
}
