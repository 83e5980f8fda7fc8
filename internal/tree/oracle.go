package tree

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/udisondev/spelllearn/internal/catalog"
)

// Oracle is a chat endpoint that returns raw text which should contain the
// tree JSON. Implemented by the LLM client; any function can stand in for
// tests.
type Oracle interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, system, user string) (string, error)

func (f OracleFunc) Complete(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}

// Helper is the external Python helper's tree-building surface, satisfied by
// the pybridge client. It takes the catalog payload and returns raw tree
// JSON in the same document shape the LLM answers with.
type Helper interface {
	BuildTree(payload any) (json.RawMessage, error)
}

// systemPrompt is the hard contract: the model must answer with nothing but
// the tree document. The editable rules ride in the user prompt.
const systemPrompt = `You are a spell progression designer. You receive a JSON spell catalog and respond with ONLY a JSON object, no prose and no markdown fences, in this exact shape:
{"version":2,"schools":{"<School>":{"root":"<formId>","nodes":[{"formId":"...","persistentId":"...","tier":1,"children":[],"prerequisites":[]}]}}}
Rules that must hold:
- Every catalog spell appears exactly once, under its own school.
- Each school has exactly one root whose prerequisites are empty.
- Every formId referenced in children or prerequisites exists in the catalog.
- A node's tier is strictly greater than the tier of each of its prerequisites; the root is tier 1.
- No cycles.`

const defaultRules = `Group spells into intuitive thematic branches. Cheaper and lower-skill spells come first; expensive master spells sit deepest. Prefer prerequisites that teach a related effect.`

// buildOracle tries the Python helper first when one is wired, then asks the
// model for the whole tree, validating and retrying once before falling back
// to the classic builder per school.
func buildOracle(ctx context.Context, spells []catalog.Spell, bySchool map[string][]catalog.Spell, opts Options) (*Tree, error) {
	if opts.Oracle == nil && opts.Helper == nil {
		return nil, fmt.Errorf("oracle strategy requires an oracle client or the python helper")
	}
	rules := opts.Rules
	if rules == "" {
		rules = defaultRules
	}

	if opts.Helper != nil {
		t, err := buildWithHelper(opts.Helper, rules, spells, bySchool, opts)
		if err == nil {
			return t, nil
		}
		slog.Warn("python helper build failed", "error", err)
	}

	if opts.Oracle != nil {
		user, err := oracleUserPrompt(rules, spells)
		if err != nil {
			return nil, err
		}
		for attempt := 1; attempt <= 2; attempt++ {
			raw, err := opts.Oracle.Complete(ctx, systemPrompt, user)
			if err != nil {
				slog.Warn("oracle request failed", "attempt", attempt, "error", err)
				continue
			}
			t, err := parseOracleTree(raw)
			if err != nil {
				slog.Warn("oracle returned unparseable tree", "attempt", attempt, "error", err)
				continue
			}
			repairOracleTree(t, bySchool)
			if err := checkOracleTree(t, bySchool); err != nil {
				slog.Warn("oracle tree failed validation", "attempt", attempt, "error", err)
				continue
			}
			slog.Info("oracle tree accepted", "attempt", attempt, "nodes", t.NodeCount())
			return t, nil
		}
	}

	slog.Warn("oracle strategy exhausted, falling back to classic")
	fallback := opts
	fallback.Strategy = StrategyClassic
	if fallback.FanOutCap == 0 {
		fallback.FanOutCap = 3
	}
	t := New()
	for school, schoolSpells := range bySchool {
		st, err := buildSchool(school, schoolSpells, fallback)
		if err != nil {
			return nil, err
		}
		t.Schools[school] = st
	}
	return t, nil
}

// buildWithHelper delegates the whole build to the Python helper, holding
// its answer to the same repair and postcondition pipeline as the LLM path.
func buildWithHelper(h Helper, rules string, spells []catalog.Spell, bySchool map[string][]catalog.Spell, opts Options) (*Tree, error) {
	payload := struct {
		Spells []catalog.Spell `json:"spells"`
		Rules  string          `json:"rules,omitempty"`
		Seed   int64           `json:"seed,omitempty"`
	}{Spells: spells, Rules: rules, Seed: opts.Seed}

	raw, err := h.BuildTree(payload)
	if err != nil {
		return nil, err
	}
	t, err := parseOracleTree(string(raw))
	if err != nil {
		return nil, err
	}
	repairOracleTree(t, bySchool)
	if err := checkOracleTree(t, bySchool); err != nil {
		return nil, err
	}
	slog.Info("python helper tree accepted", "nodes", t.NodeCount())
	return t, nil
}

func oracleUserPrompt(rules string, spells []catalog.Spell) (string, error) {
	payload, err := json.Marshal(struct {
		Spells []catalog.Spell `json:"spells"`
	}{Spells: spells})
	if err != nil {
		return "", fmt.Errorf("marshal catalog for oracle: %w", err)
	}
	var b strings.Builder
	b.WriteString(rules)
	b.WriteString("\n\nCatalog:\n")
	b.Write(payload)
	return b.String(), nil
}

// parseOracleTree tolerates prose and markdown fences around the JSON by
// extracting the outermost object before decoding.
func parseOracleTree(raw string) (*Tree, error) {
	body := ExtractJSON(raw)
	if body == "" {
		return nil, fmt.Errorf("no JSON object in oracle response")
	}
	var t Tree
	if err := json.Unmarshal([]byte(body), &t); err != nil {
		return nil, fmt.Errorf("decode oracle tree: %w", err)
	}
	if t.Schools == nil {
		return nil, fmt.Errorf("oracle tree has no schools")
	}
	if t.Version == 0 {
		t.Version = Version
	}
	return &t, nil
}

// ExtractJSON returns the outermost {...} of s, stripping markdown fences.
// Empty when no balanced object is present.
func ExtractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// repairOracleTree drops references to unknown spells, restores dropped
// roots, fills in names and persistent IDs from the catalog, reattaches
// orphans and recomputes tiers. Mirrors the loader-side tree repair.
func repairOracleTree(t *Tree, bySchool map[string][]catalog.Spell) {
	for school, st := range t.Schools {
		known := make(map[string]catalog.Spell)
		for _, sp := range bySchool[school] {
			known[sp.FormID] = sp
		}

		var kept []*Node
		for _, n := range st.Nodes {
			sp, ok := known[n.FormID]
			if !ok {
				slog.Debug("dropping oracle node outside catalog", "school", school, "formId", n.FormID)
				continue
			}
			n.PersistentID = sp.PersistentID
			n.Name = sp.Name
			n.SkillLevel = sp.SkillLevel
			kept = append(kept, n)
		}
		st.Nodes = kept

		byID := st.index()
		for _, n := range st.Nodes {
			n.Prerequisites = filterRefs(n.Prerequisites, byID)
		}
		if len(st.Nodes) == 0 {
			delete(t.Schools, school)
			continue
		}
		if _, ok := byID[st.Root]; !ok {
			st.Root = st.Nodes[0].FormID
			st.Nodes[0].Prerequisites = []string{}
		}
		st.RebuildChildren()
		st.DropCycles()
		st.AttachUnreachable()
		st.AssignTiers()
	}
}

// checkOracleTree enforces the strategy postconditions after repair: every
// learnable catalog spell appears exactly once in its own school.
func checkOracleTree(t *Tree, bySchool map[string][]catalog.Spell) error {
	for school, spells := range bySchool {
		st, ok := t.Schools[school]
		if !ok {
			return fmt.Errorf("school %s missing from oracle tree", school)
		}
		seen := make(map[string]int)
		for _, n := range st.Nodes {
			seen[n.FormID]++
		}
		var missing []string
		for _, sp := range spells {
			switch seen[sp.FormID] {
			case 0:
				missing = append(missing, sp.FormID)
			case 1:
			default:
				return fmt.Errorf("spell %s duplicated in %s", sp.FormID, school)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return fmt.Errorf("%d spells missing from %s, first %s", len(missing), school, missing[0])
		}
		if _, ok := st.TopoSort(); !ok {
			return fmt.Errorf("cycle in %s after repair", school)
		}
	}
	return nil
}
