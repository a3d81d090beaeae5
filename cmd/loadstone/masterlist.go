package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/loadstone-dev/loadstone/app/core/analysis"
	"github.com/loadstone-dev/loadstone/app/core/games"
	"github.com/loadstone-dev/loadstone/app/core/masterlist"
)

var (
	masterlistGame string
	refreshAll     bool
)

var masterlistCmd = &cobra.Command{
	Use:   "masterlist",
	Short: "Inspect and refresh the cached masterlists",
}

var masterlistInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the cached masterlist state for a game",
	RunE:  runMasterlistInfo,
}

var masterlistRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Force a masterlist re-download",
	RunE:  runMasterlistRefresh,
}

var masterlistVersionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List the cached masterlist versions for a game",
	RunE:  runMasterlistVersions,
}

func init() {
	masterlistCmd.PersistentFlags().StringVar(&masterlistGame, "game", "",
		"game identifier (see 'loadstone games')")
	masterlistRefreshCmd.Flags().BoolVar(&refreshAll, "all", false, "refresh every supported game")

	masterlistCmd.AddCommand(masterlistInfoCmd)
	masterlistCmd.AddCommand(masterlistRefreshCmd)
	masterlistCmd.AddCommand(masterlistVersionsCmd)
}

func runMasterlistInfo(cmd *cobra.Command, _ []string) error {
	engine, store, err := newEngine()
	if err != nil {
		return err
	}

	info, err := engine.MasterlistInfo(masterlistGame)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Game:      %s\n", info.Game)
	fmt.Fprintf(out, "Version:   %s\n", info.Version)
	fmt.Fprintf(out, "Fetched:   %s (%s)\n", info.FetchedAt.Format(time.RFC3339), humanize.Time(info.FetchedAt))
	fmt.Fprintf(out, "Degraded:  %v\n", info.Degraded)
	fmt.Fprintf(out, "Overrides: %s\n", store.OverridesPath(info.Game))
	return nil
}

func runMasterlistRefresh(cmd *cobra.Command, _ []string) error {
	if !refreshAll && masterlistGame == "" {
		return analysis.NewError(analysis.KindValidation,
			"a game is required", "pass --game <id> or --all")
	}

	_, store, err := newEngine()
	if err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()

	out := cmd.OutOrStdout()
	var mu sync.Mutex
	if !refreshAll {
		return refreshGame(ctx, store, masterlistGame, out, &mu)
	}

	var (
		group errgroup.Group
		errs  *multierror.Error
	)
	for _, id := range games.IDs() {
		group.Go(func() error {
			if err := refreshGame(ctx, store, id, out, &mu); err != nil {
				mu.Lock()
				errs = multierror.Append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = group.Wait()
	return errs.ErrorOrNil()
}

// refreshGame re-downloads one game's masterlist and prints the outcome. The
// mutex serializes output lines across concurrent refreshes.
func refreshGame(ctx context.Context, store *masterlist.Store, game string, out io.Writer, mu *sync.Mutex) error {
	view, err := store.Refresh(ctx, game)
	if err != nil {
		if errors.Is(err, masterlist.ErrUnknownGame) {
			return analysis.NewError(analysis.KindValidation, err.Error(),
				"supported: "+strings.Join(games.IDs(), ", "))
		}
		return analysis.NewError(analysis.KindSourceUnavailable,
			fmt.Sprintf("refreshing the %s masterlist failed", game), err.Error())
	}

	mu.Lock()
	defer mu.Unlock()
	if view.Degraded {
		fmt.Fprintf(out, "%s: refresh failed, still serving cached %s\n", game, view.Version)
		return nil
	}
	fmt.Fprintf(out, "%s: %s (%s entries)\n", game, view.Version, humanize.Comma(int64(len(view.Entries))))
	return nil
}

func runMasterlistVersions(cmd *cobra.Command, _ []string) error {
	_, store, err := newEngine()
	if err != nil {
		return err
	}

	versions, err := store.Versions(masterlistGame)
	if err != nil {
		if errors.Is(err, masterlist.ErrUnknownGame) {
			return analysis.NewError(analysis.KindValidation, err.Error(),
				"supported: "+strings.Join(games.IDs(), ", "))
		}
		return err
	}

	out := cmd.OutOrStdout()
	if len(versions) == 0 {
		fmt.Fprintf(out, "no cached versions for %s\n", masterlistGame)
		return nil
	}
	for _, version := range versions {
		fmt.Fprintln(out, version)
	}
	return nil
}
