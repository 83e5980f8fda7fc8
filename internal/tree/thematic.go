package tree

import (
	"sort"

	"github.com/udisondev/spelllearn/internal/catalog"
)

// defaultClusterDiameter bounds how dissimilar two spells in one theme may
// be (1 - similarity).
const defaultClusterDiameter = 0.72

// buildThematicSchool groups one school's spells into theme clusters by
// agglomerative merging, then chains each cluster by cost under the school
// root.
func buildThematicSchool(spells []catalog.Spell, diameter float64) *SchoolTree {
	st := &SchoolTree{}
	if len(spells) == 0 {
		return st
	}
	if diameter <= 0 {
		diameter = defaultClusterDiameter
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

	clusters := agglomerate(sims, diameter)

	for _, cluster := range clusters {
		// Cost order within the cluster; the cheapest member seeds the
		// theme and hangs off the school root.
		sort.Slice(cluster, func(a, b int) bool { return cluster[a] < cluster[b] })
		seed := cluster[0]
		if seed != 0 {
			nodes[seed].Prerequisites = append(nodes[seed].Prerequisites, st.Root)
		}
		for k := 1; k < len(cluster); k++ {
			child := cluster[k]
			parent := bestClusterParent(cluster[:k], child, sims, infos)
			nodes[child].Prerequisites = append(nodes[child].Prerequisites, nodes[parent].FormID)
		}
	}

	st.RebuildChildren()
	st.DropCycles()
	st.AttachUnreachable()
	st.AssignTiers()
	return st
}

// agglomerate is bottom-up complete-linkage clustering: start from
// singletons, repeatedly merge the closest pair of clusters until merging
// would push some pair past the diameter.
func agglomerate(sims [][]float64, diameter float64) [][]int {
	n := len(sims)
	clusters := make([][]int, n)
	for i := range clusters {
		clusters[i] = []int{i}
	}
	for len(clusters) > 1 {
		bestA, bestB := -1, -1
		bestDist := diameter
		for a := 0; a < len(clusters); a++ {
			for b := a + 1; b < len(clusters); b++ {
				d := completeLinkDistance(clusters[a], clusters[b], sims)
				if d < bestDist {
					bestA, bestB = a, b
					bestDist = d
				}
			}
		}
		if bestA < 0 {
			break
		}
		clusters[bestA] = append(clusters[bestA], clusters[bestB]...)
		clusters = append(clusters[:bestB], clusters[bestB+1:]...)
	}
	return clusters
}

// completeLinkDistance is the largest pairwise distance between members of
// the two clusters, so a merge never exceeds the diameter bound.
func completeLinkDistance(a, b []int, sims [][]float64) float64 {
	worst := 0.0
	for _, i := range a {
		for _, j := range b {
			d := 1 - sims[i][j]
			if d > worst {
				worst = d
			}
		}
	}
	return worst
}

// bestClusterParent picks the placed cluster member most similar to the
// child, preferring parents of a lower or equal tier.
func bestClusterParent(placed []int, child int, sims [][]float64, infos []*spellInfo) int {
	childTier := infos[child].spell.TierIdx()
	best := placed[0]
	bestScore := -1.0
	for _, p := range placed {
		score := sims[p][child]
		if infos[p].spell.TierIdx() > childTier {
			score -= 0.5
		}
		if score > bestScore {
			best = p
			bestScore = score
		}
	}
	return best
}
