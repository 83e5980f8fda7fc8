package progression

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/spelllearn/internal/formid"
)

type fakeSpells struct {
	known   map[uint32]bool
	schools map[uint32]string
	added   []uint32
}

func newFakeSpells() *fakeSpells {
	return &fakeSpells{known: make(map[uint32]bool), schools: make(map[uint32]string)}
}

func (f *fakeSpells) SpellExists(id uint32) bool { return f.known[id] }
func (f *fakeSpells) SchoolOf(id uint32) string  { return f.schools[id] }
func (f *fakeSpells) AddToPlayer(id uint32) bool {
	f.known[id] = true
	f.added = append(f.added, id)
	return true
}

func testResolver() *formid.Resolver {
	table := formid.NewPluginTable()
	table.AddRegular(0x05, "Skyrim.esm")
	table.AddRegular(0x12, "Spells.esp")
	return formid.NewResolver(table)
}

func newTestEngine() (*Engine, *fakeSpells) {
	spells := newFakeSpells()
	eng := New(DefaultSettings(), testResolver(), spells, nil, nil)
	return eng, spells
}

const (
	fireball  = formid.FormID(0x12000001)
	firebolt  = formid.FormID(0x12000002)
	iceSpike  = formid.FormID(0x12000003)
	healWound = formid.FormID(0x05000004)
)

func TestRouteSelection(t *testing.T) {
	tests := []struct {
		name   string
		school string
		cast   formid.FormID
		field  func(p SpellProgress) float64
		want   float64
	}{
		{"self cast full credit", "Destruction", fireball, func(p SpellProgress) float64 { return p.FromSelf }, 10},
		{"direct prereq full credit", "Destruction", firebolt, func(p SpellProgress) float64 { return p.FromDirect }, 10},
		{"same school half credit", "Destruction", iceSpike, func(p SpellProgress) float64 { return p.FromSchool }, 5},
		{"other school tenth credit", "Restoration", healWound, func(p SpellProgress) float64 { return p.FromAny }, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng, _ := newTestEngine()
			eng.SetLearningTarget("Destruction", fireball, []formid.FormID{firebolt})
			eng.OnSpellCast(tt.school, tt.cast, 10)
			p := eng.Progress(fireball)
			assert.InDelta(t, tt.want, tt.field(p), 1e-9)
			assert.InDelta(t, tt.want/100, p.Percent, 1e-9)
		})
	}
}

func TestAnyRouteCapSaturates(t *testing.T) {
	eng, _ := newTestEngine()
	eng.SetLearningTarget("Destruction", fireball, nil)

	// Required XP is 100 and the any cap is 5%. 100 base XP through the
	// 0.1 multiplier would be 10 XP; only 5 may land.
	granted := eng.AddSourcedXP(fireball, 100, "any")
	assert.InDelta(t, 5.0, granted, 1e-9)

	// Further grants through the saturated route credit nothing.
	assert.Zero(t, eng.AddSourcedXP(fireball, 100, "any"))

	p := eng.Progress(fireball)
	assert.InDelta(t, 5.0, p.FromAny, 1e-9)
	assert.InDelta(t, 0.05, p.Percent, 1e-9)

	// Other routes still have headroom.
	assert.InDelta(t, 10.0, eng.AddSourcedXP(fireball, 10, "school"), 1e-9)
}

func TestSchoolCapPartialGrant(t *testing.T) {
	eng, _ := newTestEngine()
	eng.SetLearningTarget("Destruction", fireball, nil)

	// 100 base * 0.5 = 50, but school cap is 15% of 100.
	granted := eng.AddSourcedXP(fireball, 100, "school")
	assert.InDelta(t, 15.0, granted, 1e-9)
}

func TestSelfRouteUncapped(t *testing.T) {
	eng, _ := newTestEngine()
	eng.SetLearningTarget("Destruction", fireball, nil)

	total := 0.0
	for i := 0; i < 12; i++ {
		total += eng.AddSourcedXP(fireball, 10, "self")
	}
	assert.InDelta(t, 100.0, total, 1e-9)
	assert.InDelta(t, 1.0, eng.Progress(fireball).Percent, 1e-9)
}

func TestGlobalMultiplierAppliesOnce(t *testing.T) {
	eng, _ := newTestEngine()
	s := eng.Settings()
	s.GlobalMultiplier = 2.0
	eng.SetSettings(s)
	eng.SetLearningTarget("Destruction", fireball, nil)

	granted := eng.AddSourcedXP(fireball, 10, "school")
	assert.InDelta(t, 10.0, granted, 1e-9) // 10 * 2.0 * 0.5
}

func TestModdedSourceAutoRegister(t *testing.T) {
	eng, _ := newTestEngine()
	eng.SetLearningTarget("Destruction", fireball, nil)

	granted := eng.AddSourcedXP(fireball, 10, "reading_mod")
	assert.InDelta(t, 10.0, granted, 1e-9) // default multiplier 100%

	src, ok := eng.Settings().Modded["reading_mod"]
	require.True(t, ok)
	assert.True(t, src.Enabled)
	assert.InDelta(t, 25.0, src.Cap, 1e-9)

	// Default cap is 25% of 100 XP; 15 more left.
	assert.InDelta(t, 15.0, eng.AddSourcedXP(fireball, 100, "reading_mod"), 1e-9)
	assert.Zero(t, eng.AddSourcedXP(fireball, 1, "reading_mod"))
}

func TestDisabledModdedSourceCreditsNothing(t *testing.T) {
	eng, _ := newTestEngine()
	eng.SetLearningTarget("Destruction", fireball, nil)
	eng.RegisterModdedSource("sleepy", "Sleep Learning", false)
	eng.Settings().Modded["sleepy"].Enabled = false

	assert.Zero(t, eng.AddSourcedXP(fireball, 10, "sleepy"))
}

func TestSingleModeStopsAfterFirstCredit(t *testing.T) {
	eng, _ := newTestEngine()
	s := eng.Settings()
	s.LearningMode = "single"
	eng.SetSettings(s)

	eng.SetLearningTarget("Destruction", fireball, nil)
	eng.SetLearningTarget("Restoration", healWound, nil)

	eng.OnSpellCast("Destruction", iceSpike, 10)

	credited := 0
	if eng.Progress(fireball).Percent > 0 {
		credited++
	}
	if eng.Progress(healWound).Percent > 0 {
		credited++
	}
	assert.Equal(t, 1, credited)
}

func TestPerSchoolModeCreditsBothTargets(t *testing.T) {
	eng, _ := newTestEngine()
	eng.SetLearningTarget("Destruction", fireball, nil)
	eng.SetLearningTarget("Restoration", healWound, nil)

	eng.OnSpellCast("Destruction", iceSpike, 10)

	assert.Greater(t, eng.Progress(fireball).Percent, 0.0)  // school route
	assert.Greater(t, eng.Progress(healWound).Percent, 0.0) // any route
}

func TestPrereqGating(t *testing.T) {
	eng, spells := newTestEngine()
	eng.SetPrereqRequirements(map[formid.FormID]PrereqRequirement{
		fireball: {
			Hard:       []formid.FormID{firebolt},
			Soft:       []formid.FormID{iceSpike, healWound},
			SoftNeeded: 1,
		},
	})
	eng.SetSpellXP(fireball, 100)

	require.InDelta(t, 1.0, eng.Progress(fireball).Percent, 1e-9)
	assert.False(t, eng.CanUnlock(fireball), "hard prereq not mastered")
	assert.Equal(t, []formid.FormID{firebolt}, eng.UnmetHard(fireball))

	// Mastering the hard prereq is not enough without the soft quota.
	spells.known[uint32(firebolt)] = true
	assert.False(t, eng.CanUnlock(fireball))

	met, needed := eng.SoftStatus(fireball)
	assert.Equal(t, 0, met)
	assert.Equal(t, 1, needed)

	spells.known[uint32(iceSpike)] = true
	require.True(t, eng.CanUnlock(fireball))

	require.True(t, eng.UnlockSpell(fireball))
	assert.True(t, eng.IsUnlocked(fireball))
	assert.Contains(t, spells.added, uint32(fireball))

	// Second unlock is a no-op.
	assert.False(t, eng.UnlockSpell(fireball))
}

func TestUnlockClearsTarget(t *testing.T) {
	eng, _ := newTestEngine()
	eng.SetLearningTarget("Destruction", fireball, nil)
	eng.SetSpellXP(fireball, 100)

	require.True(t, eng.UnlockSpell(fireball))
	assert.Zero(t, eng.Target("Destruction"))
}

func TestForceUnlockBypassesGate(t *testing.T) {
	eng, _ := newTestEngine()
	eng.SetPrereqRequirements(map[formid.FormID]PrereqRequirement{
		fireball: {Hard: []formid.FormID{firebolt}},
	})
	require.True(t, eng.ForceUnlock(fireball))
	assert.True(t, eng.IsSpellMastered(fireball))
}

func TestMasteredSpellStopsAccruing(t *testing.T) {
	eng, _ := newTestEngine()
	eng.SetLearningTarget("Destruction", fireball, nil)
	eng.SetSpellXP(fireball, 100)
	require.True(t, eng.UnlockSpell(fireball))

	assert.Zero(t, eng.AddSourcedXP(fireball, 10, "self"))
	assert.InDelta(t, 1.0, eng.Progress(fireball).Percent, 1e-9)
}

func TestProgressNeverExceedsRequired(t *testing.T) {
	eng, _ := newTestEngine()
	eng.SetLearningTarget("Destruction", fireball, nil)
	for i := 0; i < 50; i++ {
		eng.AddRawXP(fireball, 7)
	}
	p := eng.Progress(fireball)
	assert.LessOrEqual(t, p.Percent, 1.0)
	assert.InDelta(t, p.RequiredXP, p.CurrentXP(), 1e-9)
}

func TestEarlyLearningGrantAndBonus(t *testing.T) {
	eng, spells := newTestEngine()
	s := eng.Settings()
	s.Early = EarlySettings{Enabled: true, RequiredAt: 70, SelfBonus: 1.5}
	eng.SetSettings(s)
	eng.SetLearningTarget("Destruction", fireball, nil)

	eng.AddRawXP(fireball, 69)
	assert.False(t, eng.EarlyGranted(fireball))

	eng.AddRawXP(fireball, 1)
	assert.True(t, eng.EarlyGranted(fireball))
	assert.Contains(t, spells.added, uint32(fireball))

	// Past the threshold only self-casts keep counting, with the bonus.
	eng.OnSpellCast("Destruction", iceSpike, 10)
	assert.InDelta(t, 0.70, eng.Progress(fireball).Percent, 1e-9)

	eng.OnSpellCast("Destruction", fireball, 10)
	assert.InDelta(t, 0.85, eng.Progress(fireball).Percent, 1e-9) // 10 * 1.5

	eng.OnSpellCast("Destruction", fireball, 10)
	p := eng.Progress(fireball)
	assert.InDelta(t, 1.0, p.Percent, 1e-9)
	assert.True(t, p.Unlocked, "early path masters at full progress")
}

func TestSetRequiredXPAndTierFallback(t *testing.T) {
	eng, _ := newTestEngine()
	assert.InDelta(t, 100.0, eng.RequiredXP(fireball), 1e-9)

	eng.SetSpellTier(firebolt, "Expert")
	assert.InDelta(t, 800.0, eng.RequiredXP(firebolt), 1e-9)

	eng.SetRequiredXP(fireball, 555)
	assert.InDelta(t, 555.0, eng.RequiredXP(fireball), 1e-9)
}

func TestSourceCap(t *testing.T) {
	eng, _ := newTestEngine()
	assert.InDelta(t, 5.0, eng.SourceCap("any"), 1e-9)
	assert.InDelta(t, 15.0, eng.SourceCap("school"), 1e-9)
	assert.InDelta(t, 50.0, eng.SourceCap("direct"), 1e-9)
	assert.InDelta(t, 100.0, eng.SourceCap("self"), 1e-9)
	assert.Zero(t, eng.SourceCap("nope"))

	eng.RegisterModdedSource("passive", "Passive Learning", true)
	assert.InDelta(t, 25.0, eng.SourceCap("passive"), 1e-9)
}

func TestStateRoundTripJSON(t *testing.T) {
	eng, _ := newTestEngine()
	eng.SetLearningTarget("Destruction", fireball, []formid.FormID{firebolt})
	eng.SetPrereqRequirements(map[formid.FormID]PrereqRequirement{
		fireball: {Hard: []formid.FormID{firebolt}, Soft: []formid.FormID{iceSpike}, SoftNeeded: 1},
	})
	eng.AddSourcedXP(fireball, 100, "school")
	eng.AddSourcedXP(fireball, 30, "self")
	eng.AddSourcedXP(fireball, 20, "reading_mod")

	data, err := eng.MarshalState()
	require.NoError(t, err)

	restored := New(DefaultSettings(), testResolver(), newFakeSpells(), nil, nil)
	require.NoError(t, restored.UnmarshalState(data))

	want := eng.Progress(fireball)
	got := restored.Progress(fireball)
	assert.InDelta(t, want.Percent, got.Percent, 1e-9)
	assert.InDelta(t, want.FromSchool, got.FromSchool, 1e-9)
	assert.InDelta(t, want.FromSelf, got.FromSelf, 1e-9)
	assert.InDelta(t, want.FromModded["reading_mod"], got.FromModded["reading_mod"], 1e-9)
	assert.Equal(t, fireball, restored.Target("Destruction"))
	assert.Equal(t, []formid.FormID{firebolt}, restored.UnmetHard(fireball))
}

func TestUnmarshalRefusesNewerVersion(t *testing.T) {
	eng, _ := newTestEngine()
	err := eng.UnmarshalState([]byte(`{"version": 99, "spells": {}}`))
	require.Error(t, err)
}

func TestUnmarshalSkipsUnresolved(t *testing.T) {
	eng, _ := newTestEngine()
	doc := []byte(`{
		"version": 2,
		"spells": {
			"Spells.esp|0x000001": {"progress": 0.5, "required_xp": 100, "sources": {}},
			"Missing.esp|0x000009": {"progress": 0.9, "required_xp": 100, "sources": {}}
		},
		"targets": {"Destruction": "Missing.esp|0x000009"}
	}`)
	require.NoError(t, eng.UnmarshalState(doc))

	assert.InDelta(t, 0.5, eng.Progress(fireball).Percent, 1e-9)
	assert.Zero(t, eng.Target("Destruction"))
	assert.Len(t, eng.Targets(), 0)
}

func TestCoSaveRoundTrip(t *testing.T) {
	eng, _ := newTestEngine()
	eng.SetLearningTarget("Destruction", fireball, nil)
	eng.AddSourcedXP(fireball, 100, "school")
	eng.AddSourcedXP(fireball, 10, "reading_mod")

	var buf bytes.Buffer
	require.NoError(t, eng.EncodeRecords(&buf))

	restored := New(DefaultSettings(), testResolver(), newFakeSpells(), nil, nil)
	require.NoError(t, restored.DecodeRecords(&buf))

	want := eng.Progress(fireball)
	got := restored.Progress(fireball)
	assert.InDelta(t, want.Percent, got.Percent, 1e-9)
	assert.InDelta(t, want.FromSchool, got.FromSchool, 1e-9)
	assert.InDelta(t, want.FromModded["reading_mod"], got.FromModded["reading_mod"], 1e-9)
	assert.Equal(t, fireball, restored.Target("Destruction"))
}

func TestAddXPNoGrantSkipsEarlyPath(t *testing.T) {
	eng, spells := newTestEngine()
	s := eng.Settings()
	s.Early = EarlySettings{Enabled: true, RequiredAt: 50, SelfBonus: 1.5}
	eng.SetSettings(s)

	eng.AddXPNoGrant(fireball, 80)
	assert.False(t, eng.EarlyGranted(fireball))
	assert.Empty(t, spells.added)
	assert.InDelta(t, 0.8, eng.Progress(fireball).Percent, 1e-9)
}

func TestAvailableToLearn(t *testing.T) {
	eng, spells := newTestEngine()
	eng.SetPrereqRequirements(map[formid.FormID]PrereqRequirement{
		fireball: {Hard: []formid.FormID{firebolt}},
		iceSpike: {},
	})
	spells.known[uint32(healWound)] = true

	got := eng.AvailableToLearn([]formid.FormID{fireball, iceSpike, healWound})
	assert.Equal(t, []formid.FormID{iceSpike}, got)

	spells.known[uint32(firebolt)] = true
	got = eng.AvailableToLearn([]formid.FormID{fireball, iceSpike, healWound})
	assert.Equal(t, []formid.FormID{fireball, iceSpike}, got)
}

func TestSetSpellXPClamps(t *testing.T) {
	eng, _ := newTestEngine()
	eng.SetSpellXP(fireball, 150)
	assert.InDelta(t, 1.0, eng.Progress(fireball).Percent, 1e-9)
	eng.SetSpellXP(fireball, -5)
	assert.Zero(t, eng.Progress(fireball).Percent)
}

func TestSetSpellXPZeroRequirement(t *testing.T) {
	eng, _ := newTestEngine()
	s := DefaultSettings()
	s.XPNovice = 0 // user configs can zero the tier requirement
	eng.SetSettings(s)

	eng.SetSpellXP(fireball, 50)
	p := eng.Progress(fireball)
	assert.False(t, math.IsNaN(p.Percent))
	assert.InDelta(t, 1.0, p.Percent, 1e-9)
}

func TestProgressJSON(t *testing.T) {
	eng, _ := newTestEngine()
	eng.AddRawXP(fireball, 0) // no entry created for zero grants
	eng.SetLearningTarget("Destruction", fireball, nil)
	eng.AddSourcedXP(fireball, 30, "self")

	js := eng.ProgressJSON()
	assert.Contains(t, js, fireball.String())
	assert.Contains(t, js, `"requiredXP":100`)
}

func TestTrackedXPMatchesPercent(t *testing.T) {
	eng, _ := newTestEngine()
	eng.SetLearningTarget("Destruction", fireball, []formid.FormID{firebolt})
	eng.OnSpellCast("Destruction", firebolt, 20)
	eng.OnSpellCast("Destruction", iceSpike, 20)
	eng.OnSpellCast("Restoration", healWound, 20)

	p := eng.Progress(fireball)
	assert.InDelta(t, p.TrackedXP(), p.CurrentXP(), 1e-9)
	assert.False(t, math.IsNaN(p.Percent))
}
