package tree

import (
	"math/rand"

	"github.com/udisondev/spelllearn/internal/catalog"
)

// Classic builder scoring weights. Effect overlap dominates, name/text fuzz
// fills in for spells without effect data, and loaded parents are penalized
// to spread fan-out.
const (
	weightEffectSim    = 40.0
	weightTextSim      = 30.0
	weightTierAdjacent = 12.0
	penaltyPerChild    = 8.0
	jitterAmplitude    = 1.5
)

// buildClassicSchool runs the tier-first greedy strategy on one school.
func buildClassicSchool(spells []catalog.Spell, fanOutCap int, softThreshold float64, r *rand.Rand) *SchoolTree {
	st := &SchoolTree{}
	if len(spells) == 0 {
		return st
	}
	if fanOutCap <= 0 {
		fanOutCap = 3
	}

	infos := buildInfos(spells)
	sortByCost(infos)
	sims := simMatrix(infos)

	nodes := make([]*Node, len(infos))
	for i, in := range infos {
		nodes[i] = newNode(in.spell)
	}
	st.Root = nodes[0].FormID
	st.Nodes = nodes

	childCount := make([]int, len(infos))

	for i := 1; i < len(infos); i++ {
		parent := pickParent(infos, sims, childCount, i, fanOutCap, r)
		nodes[i].Prerequisites = append(nodes[i].Prerequisites, nodes[parent].FormID)
		childCount[parent]++
	}

	addSoftEdges(infos, sims, nodes, softThreshold)

	st.RebuildChildren()
	st.DropCycles()
	st.AttachUnreachable()
	st.AssignTiers()
	return st
}

// pickParent scores every already-placed spell as a parent for child i and
// returns the best index. Parents of a strictly lower tier score highest;
// same-tier parents are admitted with a discount so small schools still
// chain. A parent at the fan-out cap redirects the child to the most
// similar of its own children with capacity.
func pickParent(infos []*spellInfo, sims [][]float64, childCount []int, i, fanOutCap int, r *rand.Rand) int {
	childTier := infos[i].spell.TierIdx()

	best := -1
	bestScore := 0.0
	for p := 0; p < i; p++ {
		parentTier := infos[p].spell.TierIdx()
		if parentTier > childTier {
			continue
		}
		score := sims[p][i] * (weightEffectSim + weightTextSim)
		if parentTier == childTier-1 {
			score += weightTierAdjacent
		} else if parentTier == childTier {
			score -= weightTierAdjacent / 2
		} else {
			// Distant tiers make lopsided trees.
			score -= float64(childTier-1-parentTier) * 4
		}
		score -= float64(childCount[p]) * penaltyPerChild
		if r != nil {
			score += r.Float64() * jitterAmplitude
		}
		if best == -1 || score > bestScore ||
			(score == bestScore && infos[p].spell.Name < infos[best].spell.Name) {
			best = p
			bestScore = score
		}
	}
	if best == -1 {
		best = 0
	}
	if childCount[best] >= fanOutCap {
		if alt := overflowSibling(infos, sims, childCount, best, i, fanOutCap); alt >= 0 {
			return alt
		}
	}
	return best
}

// overflowSibling finds a child of the saturated parent with capacity,
// preferring the one most similar to the overflow spell. Falls back to any
// earlier spell with capacity.
func overflowSibling(infos []*spellInfo, sims [][]float64, childCount []int, parent, i, fanOutCap int) int {
	best := -1
	bestSim := -1.0
	for s := 0; s < i; s++ {
		if s == parent || childCount[s] >= fanOutCap {
			continue
		}
		if infos[s].spell.TierIdx() > infos[i].spell.TierIdx() {
			continue
		}
		if sims[s][i] > bestSim {
			best = s
			bestSim = sims[s][i]
		}
	}
	return best
}

// addSoftEdges links very similar same-tier pairs as extra prerequisites,
// turning the tree into a DAG. The lexically earlier spell becomes the
// prerequisite; the primary parent edge always stays first.
func addSoftEdges(infos []*spellInfo, sims [][]float64, nodes []*Node, threshold float64) {
	if threshold <= 0 {
		return
	}
	for i := 0; i < len(infos); i++ {
		for j := i + 1; j < len(infos); j++ {
			if infos[i].spell.TierIdx() != infos[j].spell.TierIdx() {
				continue
			}
			if sims[i][j] < threshold {
				continue
			}
			from, to := i, j
			if infos[j].spell.Name < infos[i].spell.Name {
				from, to = j, i
			}
			if !containsRef(nodes[to].Prerequisites, nodes[from].FormID) && nodes[from].FormID != nodes[to].FormID {
				nodes[to].Prerequisites = append(nodes[to].Prerequisites, nodes[from].FormID)
			}
		}
	}
}

func containsRef(refs []string, id string) bool {
	for _, r := range refs {
		if r == id {
			return true
		}
	}
	return false
}
