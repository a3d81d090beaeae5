package analysis_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/loadstone-dev/loadstone/app/core/analysis"
	"github.com/loadstone-dev/loadstone/app/core/impact"
	"github.com/loadstone-dev/loadstone/app/core/masterlist"
	"github.com/loadstone-dev/loadstone/app/core/report"
)

func TestDefaults(t *testing.T) {
	opts := analysis.Defaults()

	require.NotEmpty(t, opts.CacheRoot)
	require.Equal(t, masterlist.DefaultFreshness, opts.Freshness)
	require.Equal(t, report.DefaultInfoCap, opts.InfoCap)
	require.Equal(t, impact.DefaultHeaviestN, opts.HeaviestN)
	require.NotNil(t, opts.Now)
	require.NotNil(t, opts.NewID)
}

func TestFromEnvAppliesOverrides(t *testing.T) {
	t.Setenv(analysis.EnvCacheRoot, "/var/cache/elsewhere")
	t.Setenv(analysis.EnvFreshnessDays, "3")
	t.Setenv(analysis.EnvInfoCap, "25")
	t.Setenv(analysis.EnvHeaviestN, "5")

	opts := analysis.FromEnv(zap.NewNop())

	require.Equal(t, "/var/cache/elsewhere", opts.CacheRoot)
	require.Equal(t, 3*24*time.Hour, opts.Freshness)
	require.Equal(t, 25, opts.InfoCap)
	require.Equal(t, 5, opts.HeaviestN)
}

func TestFromEnvIgnoresUnusableValues(t *testing.T) {
	testCases := []struct {
		name  string
		value string
	}{
		{name: "not a number", value: "soon"},
		{name: "zero", value: "0"},
		{name: "negative", value: "-2"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(analysis.EnvFreshnessDays, tc.value)
			t.Setenv(analysis.EnvInfoCap, tc.value)
			t.Setenv(analysis.EnvHeaviestN, tc.value)

			opts := analysis.FromEnv(zap.NewNop())

			require.Equal(t, masterlist.DefaultFreshness, opts.Freshness)
			require.Equal(t, report.DefaultInfoCap, opts.InfoCap)
			require.Equal(t, impact.DefaultHeaviestN, opts.HeaviestN)
		})
	}
}

func TestFromEnvUnsetKeepsDefaults(t *testing.T) {
	t.Setenv(analysis.EnvCacheRoot, "")
	t.Setenv(analysis.EnvFreshnessDays, "")
	t.Setenv(analysis.EnvInfoCap, "")
	t.Setenv(analysis.EnvHeaviestN, "")

	opts := analysis.FromEnv(nil)
	defaults := analysis.Defaults()

	require.Equal(t, defaults.CacheRoot, opts.CacheRoot)
	require.Equal(t, defaults.Freshness, opts.Freshness)
	require.Equal(t, defaults.InfoCap, opts.InfoCap)
	require.Equal(t, defaults.HeaviestN, opts.HeaviestN)
}
