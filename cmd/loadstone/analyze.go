package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/loadstone-dev/loadstone/app/core/analysis"
	"github.com/loadstone-dev/loadstone/app/core/impact"
	"github.com/loadstone-dev/loadstone/app/ui"
)

var (
	analyzeGame         string
	analyzeInput        string
	analyzeHardwareTier string
	analyzeVRAMGB       float64
	analyzeInfoCap      int
	analyzeHeaviestN    int
	analyzeVersion      string
	analyzeGameVersion  string
	analyzeJSON         bool
	analyzeInteractive  bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a mod list and report findings, order, and impact",
	Example: `  loadstone analyze --game skyrimse --input plugins.txt
  cat plugins.txt | loadstone analyze --game skyrimse --input - --json
  loadstone analyze --game fallout4 --input plugins.txt --vram-gb 8 --hardware-tier mid`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeGame, "game", "", "game identifier (see 'loadstone games')")
	analyzeCmd.Flags().StringVar(&analyzeInput, "input", "", "mod list file, or - for stdin")
	analyzeCmd.Flags().StringVar(&analyzeHardwareTier, "hardware-tier", "", "hardware tier label for the VRAM advisory")
	analyzeCmd.Flags().Float64Var(&analyzeVRAMGB, "vram-gb", 0, "available VRAM in GB; enables the hardware advisory")
	analyzeCmd.Flags().IntVar(&analyzeInfoCap, "info-cap", 0, "cap on info findings (default 12, or ANALYSIS_INFO_CAP)")
	analyzeCmd.Flags().IntVar(&analyzeHeaviestN, "heaviest-n", 0, "size of the heaviest-mods ranking (default 10, or ANALYSIS_HEAVIEST_N)")
	analyzeCmd.Flags().StringVar(&analyzeVersion, "masterlist-version", "", "pin a cached masterlist version for reproducible analysis")
	analyzeCmd.Flags().StringVar(&analyzeGameVersion, "game-version", "", "installed game version, when it differs from the current release")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "emit the canonical report as JSON")
	analyzeCmd.Flags().BoolVar(&analyzeInteractive, "interactive", false, "browse the report in the terminal UI")
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	raw, err := readModList(analyzeInput)
	if err != nil {
		return err
	}

	engine, _, err := newEngine()
	if err != nil {
		return err
	}

	req := analysis.Request{
		Game:              analyzeGame,
		RawList:           raw,
		MasterlistVersion: analyzeVersion,
		GameVersion:       analyzeGameVersion,
		InfoCap:           analyzeInfoCap,
		HeaviestN:         analyzeHeaviestN,
	}
	if analyzeVRAMGB > 0 || analyzeHardwareTier != "" {
		req.Hardware = &impact.Profile{Tier: analyzeHardwareTier, VRAMGB: analyzeVRAMGB}
	}

	ctx, cancel := commandContext()
	defer cancel()

	result, err := engine.Analyze(ctx, req)
	if err != nil {
		// A deadline still yields a partial report; show what completed
		// before failing.
		if analysis.KindOf(err) == analysis.KindDeadlineExceeded && result.PartialReason != "" {
			if renderErr := renderReport(cmd.OutOrStdout(), result, analyzeJSON); renderErr != nil {
				logger.Warn("rendering partial report failed", zap.Error(renderErr))
			}
		}
		return err
	}

	if analyzeInteractive {
		return ui.Browse(result)
	}
	return renderReport(cmd.OutOrStdout(), result, analyzeJSON)
}

// readModList loads the list text from a file or stdin.
func readModList(path string) (string, error) {
	switch path {
	case "":
		return "", analysis.NewError(analysis.KindValidation,
			"a mod list is required", "pass --input <path>, or --input - to read stdin")
	case "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", analysis.NewError(analysis.KindValidation,
				"reading mod list from stdin failed", err.Error())
		}
		return string(data), nil
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", analysis.NewError(analysis.KindValidation,
				fmt.Sprintf("cannot read mod list %s", path), err.Error())
		}
		return string(data), nil
	}
}
