// Package analysis orchestrates single mod-list analyses: request
// validation, masterlist view acquisition, normalization, the concurrent
// detection stages, and consolidation into the canonical report.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/loadstone-dev/loadstone/app/core/conflict"
	"github.com/loadstone-dev/loadstone/app/core/games"
	"github.com/loadstone-dev/loadstone/app/core/impact"
	"github.com/loadstone-dev/loadstone/app/core/loadorder"
	"github.com/loadstone-dev/loadstone/app/core/masterlist"
	"github.com/loadstone-dev/loadstone/app/core/modlist"
	"github.com/loadstone-dev/loadstone/app/core/report"
)

// Analyzer runs analyses over a shared masterlist store. It holds no other
// process state, so concurrent analyses only share the store's immutable
// views.
type Analyzer struct {
	store *masterlist.Store
	opts  Options
	log   *zap.Logger
}

// New builds an Analyzer. Zero option fields select the documented defaults.
func New(store *masterlist.Store, opts Options, log *zap.Logger) *Analyzer {
	if opts.InfoCap <= 0 {
		opts.InfoCap = report.DefaultInfoCap
	}
	if opts.HeaviestN <= 0 {
		opts.HeaviestN = impact.DefaultHeaviestN
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Analyzer{store: store, opts: opts, log: log.Named("analyzer")}
}

// Analyze runs one analysis. The detection stages run concurrently over the
// immutable view and list; the deadline is checked between stages, not
// inside them. When the deadline expires mid-analysis the returned report
// carries whatever completed, PartialReason is set, and the error kind is
// deadline_exceeded.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (report.CanonicalReport, error) {
	if err := validateRequest(req); err != nil {
		return report.CanonicalReport{}, err
	}
	game, _ := games.ByID(req.Game)
	if req.GameVersion != "" {
		game.GameVersion = req.GameVersion
	}

	view, err := a.view(ctx, game.ID, req.MasterlistVersion)
	if err != nil {
		return report.CanonicalReport{}, err
	}

	list := modlist.Parse(req.RawList)

	infoCap := a.opts.InfoCap
	if req.InfoCap > 0 {
		infoCap = req.InfoCap
	}
	heaviestN := a.opts.HeaviestN
	if req.HeaviestN > 0 {
		heaviestN = req.HeaviestN
	}

	inputs := report.Inputs{
		ID:          a.opts.NewID(),
		GeneratedAt: a.opts.Now(),
		Game:        game,
		View:        view,
		List:        list,
		InfoCap:     infoCap,
	}

	if err := ctx.Err(); err != nil {
		a.log.Warn("Analyzer: deadline expired before detection",
			zap.String("game", game.ID), zap.Error(err))
		return a.partial(inputs), deadlineError(err)
	}

	var group errgroup.Group
	group.Go(func() error {
		inputs.Findings = conflict.Detect(list, view, game)
		return nil
	})
	group.Go(func() error {
		inputs.Order = loadorder.Suggest(list, view)
		return nil
	})
	group.Go(func() error {
		inputs.Impact = impact.Estimate(list, view, req.Hardware, heaviestN)
		return nil
	})
	_ = group.Wait()

	if err := ctx.Err(); err != nil {
		a.log.Warn("Analyzer: deadline expired before consolidation",
			zap.String("game", game.ID), zap.Error(err))
		return a.partial(inputs), deadlineError(err)
	}

	result := report.Build(inputs)
	a.log.Info("Analyzer: analysis complete",
		zap.String("game", game.ID),
		zap.String("report", result.ID),
		zap.String("masterlist", result.Masterlist.Version),
		zap.Int("errors", result.Stats.Errors),
		zap.Int("warnings", result.Stats.Warnings),
		zap.Int("info", result.Stats.Info))
	return result, nil
}

// MasterlistInfo reports the cached masterlist state for a game without
// touching upstream.
func (a *Analyzer) MasterlistInfo(game string) (masterlist.Info, error) {
	info, err := a.store.CurrentInfo(game)
	if err != nil {
		if errors.Is(err, masterlist.ErrUnknownGame) {
			return masterlist.Info{}, NewError(KindValidation, err.Error(), supportedHint())
		}
		return masterlist.Info{}, NewError(KindSourceUnavailable,
			fmt.Sprintf("no masterlist available for %s", game), err.Error())
	}
	return info, nil
}

// SupportedGames lists the registered games with their limit profiles.
func (a *Analyzer) SupportedGames() []games.Game {
	return games.All()
}

// view acquires the masterlist view, version-pinned when requested, and maps
// store failures onto the analysis error kinds.
func (a *Analyzer) view(ctx context.Context, game, version string) (*masterlist.View, error) {
	var (
		view *masterlist.View
		err  error
	)
	if version != "" {
		view, err = a.store.LoadVersion(ctx, game, version)
	} else {
		view, err = a.store.Load(ctx, game)
	}
	if err == nil {
		return view, nil
	}

	switch {
	case errors.Is(err, masterlist.ErrUnknownGame):
		return nil, NewError(KindValidation, err.Error(), supportedHint())
	case errors.Is(err, masterlist.ErrVersionNotCached):
		hint := ""
		if versions, listErr := a.store.Versions(game); listErr == nil && len(versions) > 0 {
			hint = "cached versions: " + strings.Join(versions, ", ")
		}
		return nil, NewError(KindValidation, err.Error(), hint)
	default:
		return nil, NewError(KindSourceUnavailable,
			fmt.Sprintf("masterlist for %s is unavailable", game), err.Error())
	}
}

func (a *Analyzer) partial(inputs report.Inputs) report.CanonicalReport {
	partial := report.Build(inputs)
	partial.PartialReason = string(KindDeadlineExceeded)
	return partial
}

func deadlineError(cause error) *Error {
	return NewError(KindDeadlineExceeded, "analysis stopped before completion", cause.Error())
}

func supportedHint() string {
	return "supported: " + strings.Join(games.IDs(), ", ")
}
