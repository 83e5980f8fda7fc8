package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/spelllearn/internal/formid"
)

func validatorFixture() *Validator {
	table := formid.NewPluginTable()
	table.AddRegular(0x12, "Spells.esp")
	table.AddRegular(0x0A, "More.esp")
	return &Validator{Resolver: formid.NewResolver(table)}
}

func TestValidateKeepsHealthyTree(t *testing.T) {
	v := validatorFixture()
	tr := New()
	tr.Schools["Destruction"] = &SchoolTree{
		Root: "0x12000001",
		Nodes: []*Node{
			{FormID: "0x12000001", PersistentID: "Spells.esp|0x000001", Prerequisites: []string{}},
			{FormID: "0x12000002", PersistentID: "Spells.esp|0x000002", Prerequisites: []string{"0x12000001"}},
		},
	}
	report := v.ValidateAndFix(tr)

	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 2, report.Valid)
	assert.Zero(t, report.Invalid)
	assert.Zero(t, report.ResolvedFromPersistent)
	assert.Len(t, tr.Schools["Destruction"].Nodes, 2)
}

func TestValidateReResolvesAfterLoadOrderChange(t *testing.T) {
	v := validatorFixture()
	// The tree was written when Spells.esp sat in slot 0x30; the persistent
	// ID still names the plugin, now at 0x12.
	tr := New()
	tr.Schools["Destruction"] = &SchoolTree{
		Root: "0x30000001",
		Nodes: []*Node{
			{FormID: "0x30000001", PersistentID: "Spells.esp|0x000001", Prerequisites: []string{}},
			{FormID: "0x30000002", PersistentID: "Spells.esp|0x000002", Prerequisites: []string{"0x30000001"}},
		},
	}
	report := v.ValidateAndFix(tr)

	assert.Equal(t, 2, report.ResolvedFromPersistent)
	assert.Equal(t, 2, report.Valid)

	st := tr.Schools["Destruction"]
	assert.Equal(t, "0x12000001", st.Root)
	require.NotNil(t, st.Find("0x12000002"))
	assert.Equal(t, []string{"0x12000001"}, st.Find("0x12000002").Prerequisites)
}

func TestValidateDropsMissingPluginNodes(t *testing.T) {
	v := validatorFixture()
	tr := New()
	tr.Schools["Destruction"] = &SchoolTree{
		Root: "0x12000001",
		Nodes: []*Node{
			{FormID: "0x12000001", PersistentID: "Spells.esp|0x000001", Prerequisites: []string{}},
			{FormID: "0x99000005", PersistentID: "Gone.esp|0x000005", Prerequisites: []string{"0x12000001"}},
			{FormID: "0x12000003", PersistentID: "Spells.esp|0x000003", Prerequisites: []string{"0x99000005"}},
		},
	}
	report := v.ValidateAndFix(tr)

	assert.Equal(t, 1, report.Invalid)
	assert.Contains(t, report.MissingPlugins, "gone.esp")
	assert.Contains(t, report.InvalidIDs, "0x99000005")

	st := tr.Schools["Destruction"]
	assert.Nil(t, st.Find("0x99000005"))
	// The survivor's dangling prerequisite is filtered and it reattaches
	// under the root.
	survivor := st.Find("0x12000003")
	require.NotNil(t, survivor)
	assert.Equal(t, []string{"0x12000001"}, survivor.Prerequisites)
}

func TestValidatePromotesNewRoot(t *testing.T) {
	v := validatorFixture()
	tr := New()
	tr.Schools["Destruction"] = &SchoolTree{
		Root: "0x99000001",
		Nodes: []*Node{
			{FormID: "0x99000001", PersistentID: "Gone.esp|0x000001", Prerequisites: []string{}},
			{FormID: "0x12000002", PersistentID: "Spells.esp|0x000002", Prerequisites: []string{"0x99000001"}},
			{FormID: "0x12000003", PersistentID: "Spells.esp|0x000003", Prerequisites: []string{"0x12000002"}},
		},
	}
	report := v.ValidateAndFix(tr)

	require.Equal(t, 1, report.Invalid)
	st := tr.Schools["Destruction"]
	assert.Equal(t, "0x12000002", st.Root)
	assert.Empty(t, st.Find("0x12000002").Prerequisites)
	assert.Equal(t, 1, st.Find("0x12000002").Tier)
	assert.Equal(t, 2, st.Find("0x12000003").Tier)
}

func TestValidateEmptiesSchoolWhenNothingSurvives(t *testing.T) {
	v := validatorFixture()
	tr := New()
	tr.Schools["Illusion"] = &SchoolTree{
		Root: "0x99000001",
		Nodes: []*Node{
			{FormID: "0x99000001", PersistentID: "Gone.esp|0x000001", Prerequisites: []string{}},
		},
	}
	report := v.ValidateAndFix(tr)

	assert.Equal(t, 1, report.Invalid)
	assert.Empty(t, tr.Schools["Illusion"].Nodes)
	assert.Empty(t, tr.Schools["Illusion"].Root)
}
