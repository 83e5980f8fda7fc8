package tree

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/udisondev/spelllearn/internal/formid"
)

// Report counts what ValidateAndFix did to a loaded tree.
type Report struct {
	Total                  int
	Valid                  int
	Invalid                int
	ResolvedFromPersistent int
	MissingPlugins         []string
	InvalidIDs             []string
}

func (r *Report) String() string {
	return fmt.Sprintf("%d nodes: %d valid, %d invalid, %d re-resolved, %d missing plugins",
		r.Total, r.Valid, r.Invalid, r.ResolvedFromPersistent, len(r.MissingPlugins))
}

// Validator repairs a tree loaded from disk against the current load order.
type Validator struct {
	Resolver *formid.Resolver
}

// ValidateAndFix walks every node; nodes whose runtime form ID is no longer
// valid are re-resolved through their persistent ID. Nodes that still fail
// are dropped, dangling references are filtered, and a school whose root was
// dropped promotes its first surviving node.
func (v *Validator) ValidateAndFix(t *Tree) Report {
	var report Report
	missing := make(map[string]bool)

	for school, st := range t.Schools {
		var kept []*Node
		for _, n := range st.Nodes {
			report.Total++
			id, err := formid.ParseHex(n.FormID)
			if err == nil && v.Resolver.IsValid(id) {
				report.Valid++
				kept = append(kept, n)
				continue
			}
			if n.PersistentID != "" {
				if resolved := v.Resolver.FromPersistent(n.PersistentID); resolved != 0 {
					old := n.FormID
					n.FormID = resolved.String()
					report.ResolvedFromPersistent++
					report.Valid++
					kept = append(kept, n)
					if old != n.FormID {
						v.remapReferences(st, old, n.FormID)
					}
					continue
				}
				if plugin, _, err := formid.SplitPersistent(n.PersistentID); err == nil {
					missing[strings.ToLower(plugin)] = true
				}
			}
			report.Invalid++
			report.InvalidIDs = append(report.InvalidIDs, n.FormID)
			slog.Warn("dropping unresolvable tree node", "school", school, "formId", n.FormID, "persistentId", n.PersistentID)
		}

		st.Nodes = kept
		byID := st.index()
		for _, n := range st.Nodes {
			n.Prerequisites = filterRefs(n.Prerequisites, byID)
			n.Children = filterRefs(n.Children, byID)
		}

		if len(st.Nodes) == 0 {
			st.Root = ""
			continue
		}
		if _, ok := byID[st.Root]; !ok {
			st.Root = st.Nodes[0].FormID
			st.Nodes[0].Prerequisites = []string{}
			slog.Info("promoted replacement root", "school", school, "root", st.Root)
		}
		st.RebuildChildren()
		st.DropCycles()
		st.AttachUnreachable()
		st.AssignTiers()
	}

	for plugin := range missing {
		report.MissingPlugins = append(report.MissingPlugins, plugin)
	}
	return report
}

// remapReferences rewrites every prerequisite and child reference after a
// node's runtime ID changed under a new load order.
func (v *Validator) remapReferences(st *SchoolTree, old, updated string) {
	if st.Root == old {
		st.Root = updated
	}
	for _, n := range st.Nodes {
		for i, pre := range n.Prerequisites {
			if pre == old {
				n.Prerequisites[i] = updated
			}
		}
		for i, c := range n.Children {
			if c == old {
				n.Children[i] = updated
			}
		}
	}
}

func filterRefs(refs []string, byID map[string]*Node) []string {
	out := refs[:0]
	for _, r := range refs {
		if _, ok := byID[r]; ok {
			out = append(out, r)
		}
	}
	if out == nil {
		out = []string{}
	}
	return out
}
