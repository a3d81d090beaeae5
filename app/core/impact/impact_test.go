package impact_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/loadstone-dev/loadstone/app/core/impact"
	"github.com/loadstone-dev/loadstone/app/core/masterlist"
	"github.com/loadstone-dev/loadstone/app/core/modlist"
)

func testView(t *testing.T, source string) *masterlist.View {
	t.Helper()
	doc, err := masterlist.DecodeDocument([]byte(source))
	require.NoError(t, err)
	require.NoError(t, masterlist.ValidateDocument(doc))
	return masterlist.BuildView("skyrimse", doc, time.Time{}, zap.NewNop())
}

const pressureSource = `
version: "1"
entries:
  - name: Textures.esp
    tags: [texture]
  - name: Scripts.esp
    tags: [script-heavy]
  - name: Combo.esp
    tags: [texture, enb]
  - name: Plain.esp
  - name: Pinned.esp
    weight: 7
    tags: [ui]
`

func TestEstimatePressureAndTags(t *testing.T) {
	list := modlist.Parse("Textures.esp\nScripts.esp\nCombo.esp\nPlain.esp\nPinned.esp\nStray.esp\nPack.bsa")
	report := impact.Estimate(list, testView(t, pressureSource), nil, 0)

	// texture 2, script-heavy 5, texture+enb 10, plain 1, explicit 7,
	// unknown plugin 1, archive 0.
	require.Equal(t, 26, report.TotalPressure)
	require.Equal(t, 6, report.PluginCountEnabled, "archives do not count as plugins")
	require.Equal(t, 0, report.LightPluginCountEnabled)

	wantTags := map[string]int{
		"texture":      12,
		"enb":          10,
		"script-heavy": 5,
		"ui":           7,
	}
	if diff := cmp.Diff(wantTags, report.PerTagPressure); diff != "" {
		t.Errorf("per-tag pressure mismatch (-want +got):\n%s", diff)
	}

	var names []string
	for _, heavy := range report.Heaviest {
		names = append(names, heavy.Name)
	}
	require.Equal(t,
		[]string{"Combo.esp", "Pinned.esp", "Scripts.esp", "Textures.esp", "Plain.esp", "Stray.esp", "Pack.bsa"},
		names,
		"weight descending, name ascending, archives (weight 0) last")
}

func TestEstimateTruncatesHeaviest(t *testing.T) {
	list := modlist.Parse("Textures.esp\nScripts.esp\nCombo.esp\nPlain.esp")
	report := impact.Estimate(list, testView(t, pressureSource), nil, 2)

	require.Len(t, report.Heaviest, 2)
	require.Equal(t, "Combo.esp", report.Heaviest[0].Name)
	require.Equal(t, "Scripts.esp", report.Heaviest[1].Name)
}

func TestEstimateSkipsDisabled(t *testing.T) {
	list := modlist.Parse("Textures.esp\n-Scripts.esp")
	report := impact.Estimate(list, testView(t, pressureSource), nil, 0)

	require.Equal(t, 2, report.TotalPressure)
	require.Equal(t, 1, report.PluginCountEnabled)
	require.Len(t, report.Heaviest, 1)
}

func TestEstimateCountsLightsSeparately(t *testing.T) {
	list := modlist.Parse("A.esp\nB.esl\nC.esl")
	report := impact.Estimate(list, testView(t, "version: \"1\"\nentries: []\n"), nil, 0)

	require.Equal(t, 1, report.PluginCountEnabled)
	require.Equal(t, 2, report.LightPluginCountEnabled)
}

func TestEstimateHardwareBuckets(t *testing.T) {
	// Combo.esp alone: texture 10 + enb 10 = 20 pressure units.
	list := modlist.Parse("Combo.esp")

	testCases := []struct {
		name       string
		vram       float64
		wantBucket string
	}{
		{name: "plenty of headroom", vram: 64, wantBucket: impact.BucketOK},
		{name: "exactly at the tight threshold", vram: 40, wantBucket: impact.BucketTight},
		{name: "exactly at the over threshold", vram: 20, wantBucket: impact.BucketOver},
		{name: "far over", vram: 4, wantBucket: impact.BucketOver},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			profile := &impact.Profile{Tier: "mid", VRAMGB: tc.vram}
			report := impact.Estimate(list, testView(t, pressureSource), profile, 0)

			require.NotNil(t, report.Hardware)
			require.Equal(t, tc.wantBucket, report.Hardware.Bucket)
			require.Contains(t, report.Hardware.Advisory, tc.wantBucket)
			require.Equal(t, "mid", report.Hardware.Tier)
		})
	}
}

func TestEstimateWithoutProfile(t *testing.T) {
	report := impact.Estimate(modlist.Parse("Combo.esp"), testView(t, pressureSource), nil, 0)
	require.Nil(t, report.Hardware)
}

func TestEstimateEmptyList(t *testing.T) {
	report := impact.Estimate(modlist.Parse(""), testView(t, pressureSource), nil, 0)

	require.Zero(t, report.TotalPressure)
	require.Zero(t, report.PluginCountEnabled)
	require.Empty(t, report.Heaviest)
	require.Empty(t, report.PerTagPressure)
}
