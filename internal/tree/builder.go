package tree

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/spelllearn/internal/catalog"
	"github.com/udisondev/spelllearn/internal/formid"
	"github.com/udisondev/spelllearn/internal/progression"
)

// Builder strategies.
const (
	StrategyClassic  = "classic"
	StrategyThematic = "thematic"
	StrategyOracle   = "oracle"
)

// Options select and tune a build.
type Options struct {
	Strategy string

	// Classic knobs.
	FanOutCap         int     // max children per node, default 3
	SoftEdgeThreshold float64 // similarity above which same-tier pairs link, 0 disables
	Seed              int64   // 0 means a fixed default seed

	// Thematic knob.
	ClusterDiameter float64

	// Oracle strategy. When both are set the helper is tried first and the
	// LLM serves as its fallback.
	Oracle Oracle
	Helper Helper
	Rules  string // editable prompt rules appended to the system contract
}

// DefaultOptions is a deterministic classic build.
func DefaultOptions() Options {
	return Options{
		Strategy:          StrategyClassic,
		FanOutCap:         3,
		SoftEdgeThreshold: 0.82,
	}
}

// Build produces the per-school tree document from a catalog. Non-learnable
// spells are filtered first. Classic and thematic builds fan out one
// goroutine per school; the oracle strategy is a single conversation over
// the whole catalog with a classic fallback.
func Build(ctx context.Context, cat *catalog.Catalog, opts Options) (*Tree, error) {
	spells := catalog.FilterLearnable(cat.Spells)
	if len(spells) == 0 {
		return nil, fmt.Errorf("no learnable spells in catalog of %d", len(cat.Spells))
	}
	bySchool := catalog.BySchool(spells)

	if opts.Strategy == StrategyOracle {
		return buildOracle(ctx, spells, bySchool, opts)
	}

	t := New()
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	for school, schoolSpells := range bySchool {
		school, schoolSpells := school, schoolSpells
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			st, err := buildSchool(school, schoolSpells, opts)
			if err != nil {
				return fmt.Errorf("build %s: %w", school, err)
			}
			mu.Lock()
			t.Schools[school] = st
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	slog.Info("tree built", "strategy", opts.Strategy, "schools", len(t.Schools), "nodes", t.NodeCount())
	return t, nil
}

func buildSchool(school string, spells []catalog.Spell, opts Options) (*SchoolTree, error) {
	switch opts.Strategy {
	case StrategyClassic, "":
		// Offset the seed per school so schools do not share jitter.
		seed := opts.Seed
		if seed != 0 {
			seed += int64(len(school))
		}
		return buildClassicSchool(spells, opts.FanOutCap, opts.SoftEdgeThreshold, rng(seed)), nil
	case StrategyThematic:
		return buildThematicSchool(spells, opts.ClusterDiameter), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", opts.Strategy)
	}
}

// Requirements converts the tree's edges into engine unlock gates. The
// first prerequisite of a node is its primary parent and becomes hard;
// any further edges are soft with a quota of one.
func Requirements(t *Tree, resolver *formid.Resolver) map[formid.FormID]progression.PrereqRequirement {
	out := make(map[formid.FormID]progression.PrereqRequirement)
	for _, st := range t.Schools {
		for _, n := range st.Nodes {
			id := resolveNode(n, resolver)
			if id == 0 {
				continue
			}
			var req progression.PrereqRequirement
			for i, pre := range n.Prerequisites {
				preNode := st.Find(pre)
				if preNode == nil {
					continue
				}
				preID := resolveNode(preNode, resolver)
				if preID == 0 {
					continue
				}
				if i == 0 {
					req.Hard = append(req.Hard, preID)
				} else {
					req.Soft = append(req.Soft, preID)
				}
			}
			if len(req.Soft) > 0 {
				req.SoftNeeded = 1
			}
			out[id] = req
		}
	}
	return out
}

// RequiredXPByNode maps every node to its tier default from the settings,
// using the node's depth tier (1..5 clamps onto Novice..Master).
func RequiredXPByNode(t *Tree, resolver *formid.Resolver, settings *progression.Settings) map[formid.FormID]float64 {
	out := make(map[formid.FormID]float64)
	for _, st := range t.Schools {
		for _, n := range st.Nodes {
			id := resolveNode(n, resolver)
			if id == 0 {
				continue
			}
			tier := n.SkillLevel
			if tier == "" {
				tier = tierNameForDepth(n.Tier)
			}
			out[id] = settings.XPForTier(tier)
		}
	}
	return out
}

func tierNameForDepth(depth int) string {
	switch {
	case depth <= 1:
		return "Novice"
	case depth == 2:
		return "Apprentice"
	case depth == 3:
		return "Adept"
	case depth == 4:
		return "Expert"
	default:
		return "Master"
	}
}

// resolveNode prefers the persistent ID over the stored runtime hex, so
// stale tree files still map onto the current load order.
func resolveNode(n *Node, resolver *formid.Resolver) formid.FormID {
	if n.PersistentID != "" {
		if id := resolver.FromPersistent(n.PersistentID); id != 0 {
			return id
		}
	}
	id, err := formid.ParseHex(n.FormID)
	if err != nil {
		return 0
	}
	return id
}
