package progression

import "github.com/udisondev/spelllearn/internal/config"

// Route classifies a grant for multiplier and cap purposes.
type Route string

const (
	RouteSelf   Route = "self"   // casting the learning target itself
	RouteDirect Route = "direct" // casting a direct prerequisite
	RouteSchool Route = "school" // same school, not a prerequisite
	RouteAny    Route = "any"    // anything else
)

// BuiltinRoute reports whether name is one of the four built-in routes.
func BuiltinRoute(name string) bool {
	switch Route(name) {
	case RouteSelf, RouteDirect, RouteSchool, RouteAny:
		return true
	}
	return false
}

// ModdedSource is the balancing block of one externally registered source.
type ModdedSource struct {
	Display    string
	Enabled    bool
	Multiplier float64 // percent, 0-200
	Cap        float64 // percent of required XP, 0-100
	Internal   bool    // cap-tracked but hidden from the modded-sources UI
}

// EarlySettings gate the early-learning integration: above RequiredAt percent
// progress only self-casts keep granting XP, and self-casting an
// early-granted spell earns the bonus multiplier.
type EarlySettings struct {
	Enabled    bool
	RequiredAt float64 // percent
	SelfBonus  float64
}

// Settings is the engine's routing configuration.
type Settings struct {
	LearningMode     string // "perSchool" or "single"
	GlobalMultiplier float64

	MultiplierDirect float64
	MultiplierSchool float64
	MultiplierAny    float64

	CapDirect float64 // percent of required XP
	CapSchool float64
	CapAny    float64

	XPNovice     float64
	XPApprentice float64
	XPAdept      float64
	XPExpert     float64
	XPMaster     float64

	Modded map[string]*ModdedSource
	Early  EarlySettings
}

// DefaultSettings mirrors config.Default().
func DefaultSettings() Settings {
	return FromConfig(config.Default())
}

// FromConfig builds engine settings from the unified config document.
func FromConfig(cfg config.Config) Settings {
	s := Settings{
		LearningMode:     cfg.XPSettings.LearningMode,
		GlobalMultiplier: cfg.XPSettings.GlobalMultiplier,
		MultiplierDirect: cfg.XPSettings.MultiplierDirect,
		MultiplierSchool: cfg.XPSettings.MultiplierSchool,
		MultiplierAny:    cfg.XPSettings.MultiplierAny,
		CapDirect:        cfg.XPSettings.CapDirect,
		CapSchool:        cfg.XPSettings.CapSchool,
		CapAny:           cfg.XPSettings.CapAny,
		XPNovice:         cfg.XPSettings.XPNovice,
		XPApprentice:     cfg.XPSettings.XPApprentice,
		XPAdept:          cfg.XPSettings.XPAdept,
		XPExpert:         cfg.XPSettings.XPExpert,
		XPMaster:         cfg.XPSettings.XPMaster,
		Modded:           make(map[string]*ModdedSource, len(cfg.ModdedSources)),
		Early: EarlySettings{
			Enabled:    cfg.EarlyLearning.Enabled,
			RequiredAt: cfg.EarlyLearning.SelfCastRequiredAt,
			SelfBonus:  cfg.EarlyLearning.SelfCastMultiplier,
		},
	}
	for id, m := range cfg.ModdedSources {
		s.Modded[id] = &ModdedSource{
			Display:    m.Display,
			Enabled:    m.Enabled,
			Multiplier: m.Multiplier,
			Cap:        m.Cap,
			Internal:   m.Internal,
		}
	}
	return s
}

// XPForTier returns the default required XP of a tier name; unknown tiers
// fall back to Novice.
func (s *Settings) XPForTier(tier string) float64 {
	switch tier {
	case "Apprentice":
		return s.XPApprentice
	case "Adept":
		return s.XPAdept
	case "Expert":
		return s.XPExpert
	case "Master":
		return s.XPMaster
	default:
		return s.XPNovice
	}
}
