package conflict_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/loadstone-dev/loadstone/app/core/conflict"
	"github.com/loadstone-dev/loadstone/app/core/games"
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

func emptyView(t *testing.T) *masterlist.View {
	t.Helper()
	return testView(t, "version: \"1\"\nentries: []\n")
}

func skyrimSE(t *testing.T) games.Game {
	t.Helper()
	game, ok := games.ByID("skyrimse")
	require.True(t, ok)
	return game
}

func detect(t *testing.T, input, source string) []conflict.Finding {
	t.Helper()
	return conflict.Detect(modlist.Parse(input), testView(t, source), skyrimSE(t))
}

func byKind(findings []conflict.Finding, kind conflict.Kind) []conflict.Finding {
	var matched []conflict.Finding
	for _, finding := range findings {
		if finding.Kind == kind {
			matched = append(matched, finding)
		}
	}
	return matched
}

func TestDetectMissingRequirement(t *testing.T) {
	source := `
version: "1"
entries:
  - name: SkyUI.esp
    requires: [SKSE.esp]
  - name: SKSE.esp
`

	t.Run("absent requirement is an error", func(t *testing.T) {
		findings := detect(t, "USSEP.esp\nSkyUI.esp", source)

		missing := byKind(findings, conflict.KindMissingRequirement)
		require.Len(t, missing, 1)
		require.Equal(t, conflict.SeverityError, missing[0].Severity)
		require.Equal(t, []string{"SkyUI.esp", "SKSE.esp"}, missing[0].Subjects)
		require.Equal(t, "SkyUI.esp requires SKSE.esp, which is not in the list.", missing[0].Message)

		unknown := byKind(findings, conflict.KindUnknownMod)
		require.Len(t, unknown, 1)
		require.Equal(t, []string{"USSEP.esp"}, unknown[0].Subjects)

		// Errors sort ahead of info.
		require.Equal(t, conflict.KindMissingRequirement, findings[0].Kind)
	})

	t.Run("disabled requirement downgrades to warning", func(t *testing.T) {
		findings := detect(t, "SkyUI.esp\n-SKSE.esp", source)

		missing := byKind(findings, conflict.KindMissingRequirement)
		require.Len(t, missing, 1)
		require.Equal(t, conflict.SeverityWarning, missing[0].Severity)
		require.Equal(t, "SkyUI.esp requires SKSE.esp, which is present but disabled.", missing[0].Message)
		require.NotNil(t, missing[0].Remediation)
		require.Equal(t, "Enable SKSE.esp.", missing[0].Remediation.SuggestedAction)
	})

	t.Run("satisfied requirement is silent", func(t *testing.T) {
		findings := detect(t, "SkyUI.esp\nSKSE.esp", source)
		require.Empty(t, byKind(findings, conflict.KindMissingRequirement))
	})
}

func TestDetectIncompatiblePairs(t *testing.T) {
	t.Run("pair without a patch", func(t *testing.T) {
		findings := detect(t, "Ordinator.esp\nAdamant.esp", `
version: "1"
entries:
  - name: Ordinator.esp
    incompatible_with: [Adamant.esp]
  - name: Adamant.esp
    incompatible_with: [Ordinator.esp]
`)

		want := []conflict.Finding{{
			Kind:     conflict.KindIncompatible,
			Severity: conflict.SeverityError,
			Subjects: []string{"Adamant.esp", "Ordinator.esp"},
			Message:  "Adamant.esp and Ordinator.esp are incompatible.",
		}}
		if diff := cmp.Diff(want, findings); diff != "" {
			t.Errorf("findings mismatch (-want +got):\n%s", diff)
		}
	})

	source := `
version: "1"
entries:
  - name: Ordinator.esp
    incompatible_with: [Adamant.esp]
    patches:
      - pair: [Ordinator.esp, Adamant.esp]
        name: Kreate.esp
  - name: Adamant.esp
  - name: Kreate.esp
`

	t.Run("known patch becomes the remediation", func(t *testing.T) {
		findings := detect(t, "Ordinator.esp\nAdamant.esp", source)

		incompatible := byKind(findings, conflict.KindIncompatible)
		require.Len(t, incompatible, 1)
		require.Equal(t, conflict.SeverityError, incompatible[0].Severity)
		require.NotNil(t, incompatible[0].Remediation)
		require.Equal(t, "Kreate.esp", incompatible[0].Remediation.PatchName)
		require.Equal(t, "Enable Kreate.esp to reconcile the pair.", incompatible[0].Remediation.SuggestedAction)
	})

	t.Run("enabled patch downgrades to info", func(t *testing.T) {
		findings := detect(t, "Ordinator.esp\nAdamant.esp\nKreate.esp", source)

		incompatible := byKind(findings, conflict.KindIncompatible)
		require.Len(t, incompatible, 1)
		require.Equal(t, conflict.SeverityInfo, incompatible[0].Severity)
		require.Contains(t, incompatible[0].Message, "Kreate.esp reconciles them")
	})

	t.Run("half-enabled pair is silent", func(t *testing.T) {
		findings := detect(t, "Ordinator.esp\n-Adamant.esp", source)
		require.Empty(t, byKind(findings, conflict.KindIncompatible))
	})
}

func TestDetectLoadOrderViolation(t *testing.T) {
	source := `
version: "1"
entries:
  - name: B.esp
    load_after: [A.esp]
  - name: A.esp
  - name: B.esm
    load_after: [A.esm]
  - name: A.esm
`

	t.Run("inverted positions", func(t *testing.T) {
		findings := detect(t, "B.esp\nA.esp", source)

		violations := byKind(findings, conflict.KindLoadOrderViolation)
		require.Len(t, violations, 1)
		require.Equal(t, conflict.SeverityWarning, violations[0].Severity)
		require.Equal(t, []string{"A.esp", "B.esp"}, violations[0].Subjects)
		require.Equal(t, []int{1, 0}, violations[0].Positions)
	})

	t.Run("correct order is silent", func(t *testing.T) {
		findings := detect(t, "A.esp\nB.esp", source)
		require.Empty(t, byKind(findings, conflict.KindLoadOrderViolation))
	})

	t.Run("master pairs are left to the optimizer", func(t *testing.T) {
		findings := detect(t, "B.esm\nA.esm", source)
		require.Empty(t, byKind(findings, conflict.KindLoadOrderViolation))
	})

	t.Run("disabled predecessor is silent", func(t *testing.T) {
		findings := detect(t, "B.esp\n-A.esp", source)
		require.Empty(t, byKind(findings, conflict.KindLoadOrderViolation))
	})
}

func TestDetectDirtyEdits(t *testing.T) {
	source := `
version: "1"
entries:
  - name: Grimy.esp
    dirty: true
    notes: Clean with SSEEdit 4.0.4.
    patches:
      - pair: [Grimy.esp, Other.esp]
        name: GrimyFix.esp
  - name: Other.esp
  - name: GrimyFix.esp
`

	t.Run("dirty entry", func(t *testing.T) {
		findings := detect(t, "Grimy.esp", source)

		dirty := byKind(findings, conflict.KindDirtyEdit)
		require.Len(t, dirty, 1)
		require.Equal(t, conflict.SeverityInfo, dirty[0].Severity)
		require.Equal(t, "Clean with SSEEdit 4.0.4.", dirty[0].Remediation.SuggestedAction)
	})

	t.Run("enabled cleaner patch suppresses the finding", func(t *testing.T) {
		findings := detect(t, "Grimy.esp\nGrimyFix.esp", source)
		require.Empty(t, byKind(findings, conflict.KindDirtyEdit))
	})
}

func TestDetectDuplicates(t *testing.T) {
	findings := conflict.Detect(
		modlist.Parse("SkyUI.esp\nOther.esp\nskyui.esp"),
		emptyView(t),
		skyrimSE(t),
	)

	duplicates := byKind(findings, conflict.KindDuplicate)
	require.Len(t, duplicates, 1)
	require.Equal(t, []string{"SkyUI.esp"}, duplicates[0].Subjects)
	require.Equal(t, []int{0, 2}, duplicates[0].Positions)
}

func TestDetectVersionMismatch(t *testing.T) {
	t.Run("newer requirement", func(t *testing.T) {
		findings := detect(t, "Future.esp", `
version: "1"
entries:
  - name: Future.esp
    minimum_game_version: "9.9.9"
`)

		mismatches := byKind(findings, conflict.KindVersionMismatch)
		require.Len(t, mismatches, 1)
		require.Equal(t, conflict.SeverityWarning, mismatches[0].Severity)
		require.Contains(t, mismatches[0].Message, "9.9.9")
	})

	t.Run("satisfied requirement", func(t *testing.T) {
		findings := detect(t, "Old.esp", `
version: "1"
entries:
  - name: Old.esp
    minimum_game_version: "1.0.0"
`)
		require.Empty(t, byKind(findings, conflict.KindVersionMismatch))
	})
}

func TestDetectPluginLimits(t *testing.T) {
	game := games.Game{
		ID:          "skyrimse",
		GameVersion: "1.6.1170",
		PluginSoft:  3,
		PluginHard:  5,
		LightSoft:   2,
		LightHard:   4,
	}

	input := func(count int, suffix string) string {
		var builder strings.Builder
		for i := 0; i < count; i++ {
			fmt.Fprintf(&builder, "Mod%03d%s\n", i, suffix)
		}
		return builder.String()
	}

	testCases := []struct {
		name         string
		input        string
		wantSeverity conflict.Severity
		wantSubject  string
		wantFragment string
	}{
		{
			name:  "below soft limit",
			input: input(2, ".esp"),
		},
		{
			name:         "exactly at soft limit",
			input:        input(3, ".esp"),
			wantSeverity: conflict.SeverityWarning,
			wantSubject:  "Mod002.esp",
			wantFragment: "soft limit of 3",
		},
		{
			name:         "hard limit supersedes soft",
			input:        input(6, ".esp"),
			wantSeverity: conflict.SeverityError,
			wantSubject:  "Mod005.esp",
			wantFragment: "hard limit of 5",
		},
		{
			name:         "light plugins count separately",
			input:        input(2, ".esl"),
			wantSeverity: conflict.SeverityWarning,
			wantSubject:  "Mod001.esl",
			wantFragment: "light plugins reach the soft limit of 2",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			findings := conflict.Detect(modlist.Parse(tc.input), emptyView(t), game)

			limits := byKind(findings, conflict.KindPluginLimit)
			if tc.wantSeverity == "" {
				require.Empty(t, limits)
				return
			}
			require.Len(t, limits, 1, "higher severity must supersede, not stack")
			require.Equal(t, tc.wantSeverity, limits[0].Severity)
			require.Equal(t, []string{tc.wantSubject}, limits[0].Subjects)
			require.Contains(t, limits[0].Message, tc.wantFragment)
		})
	}
}

func TestDetectAllDisabled(t *testing.T) {
	findings := detect(t, "-SkyUI.esp\n-SKSE.esp", `
version: "1"
entries:
  - name: SkyUI.esp
    requires: [SKSE.esp]
    dirty: true
  - name: SKSE.esp
`)
	require.Empty(t, findings)
}

func TestDetectEmptyViewYieldsUnknowns(t *testing.T) {
	findings := conflict.Detect(
		modlist.Parse("A.esp\nB.esp\nC.esp"),
		emptyView(t),
		skyrimSE(t),
	)

	require.Len(t, findings, 3)
	for _, finding := range findings {
		require.Equal(t, conflict.KindUnknownMod, finding.Kind)
		require.Equal(t, conflict.SeverityInfo, finding.Severity)
	}
	require.Equal(t, []string{"A.esp"}, findings[0].Subjects)
	require.Equal(t, []string{"C.esp"}, findings[2].Subjects)
}

func TestDetectResolvesAliases(t *testing.T) {
	findings := detect(t, "SKSE64.esp\nSkyUI.esp", `
version: "1"
entries:
  - name: SKSE.esp
    aliases: [SKSE64.esp]
  - name: SkyUI.esp
    requires: [SKSE.esp]
`)

	require.Empty(t, byKind(findings, conflict.KindMissingRequirement),
		"an alias must satisfy a requirement on the canonical name")
	require.Empty(t, byKind(findings, conflict.KindUnknownMod))
}
