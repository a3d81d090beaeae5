package masterlist

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/loadstone-dev/loadstone/app/core/games"
	"github.com/loadstone-dev/loadstone/app/embeds"
)

// viewCacheSize bounds the in-memory cache of parsed views. One slot per
// game plus headroom for pinned historical versions.
const viewCacheSize = 8

// DefaultFreshness is the window within which a cached document is served
// without contacting upstream.
const DefaultFreshness = 7 * 24 * time.Hour

// Config configures a Store.
type Config struct {
	// CacheRoot is the directory holding the masterlists/ tree.
	CacheRoot string
	// Freshness is the cache window; zero means DefaultFreshness.
	Freshness time.Duration
	// Client is the HTTP client for upstream fetches; nil gets a default.
	Client *http.Client
	// Log is the store's logger; nil gets a no-op logger.
	Log *zap.Logger
}

// Store provides versioned, cached access to masterlist views. It is safe
// for concurrent readers; refreshes take a per-game lock so only one fetch
// per game runs at a time, and readers always observe a complete view.
type Store struct {
	cache     diskCache
	fetcher   fetcher
	freshness time.Duration
	log       *zap.Logger

	views *lru.Cache[string, *View]

	mu    sync.Mutex
	games map[string]*gameState
}

type gameState struct {
	refreshMu sync.Mutex

	mu       sync.Mutex
	degraded bool
}

func (g *gameState) setDegraded(degraded bool) {
	g.mu.Lock()
	g.degraded = degraded
	g.mu.Unlock()
}

func (g *gameState) isDegraded() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.degraded
}

// NewStore builds a Store rooted at cfg.CacheRoot.
func NewStore(cfg Config) (*Store, error) {
	if cfg.CacheRoot == "" {
		return nil, fmt.Errorf("masterlist store requires a cache root")
	}
	if cfg.Freshness <= 0 {
		cfg.Freshness = DefaultFreshness
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 60 * time.Second}
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}

	views, err := lru.New[string, *View](viewCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating view cache: %w", err)
	}

	return &Store{
		cache:     diskCache{root: cfg.CacheRoot},
		fetcher:   fetcher{client: cfg.Client},
		freshness: cfg.Freshness,
		log:       cfg.Log.Named("store"),
		views:     views,
		games:     make(map[string]*gameState),
	}, nil
}

func (s *Store) gameState(game string) *gameState {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.games[game]
	if !ok {
		state = &gameState{}
		s.games[game] = state
	}
	return state
}

// Load returns the current view for a game. A cached document younger than
// the freshness window is served as-is; otherwise the store refreshes from
// upstream, falling back to stale cached data when the fetch fails.
func (s *Store) Load(ctx context.Context, game string) (*View, error) {
	def, ok := games.ByID(game)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGame, game)
	}

	if meta, err := s.cache.readMeta(def.ID); err == nil && s.isFresh(meta) {
		view, viewErr := s.cachedView(def.ID, meta, false)
		if viewErr == nil {
			return view, nil
		}
		s.log.Warn("Store: cached document unusable, refreshing",
			zap.String("game", def.ID), zap.Error(viewErr))
	}

	return s.refresh(ctx, def, false)
}

// Refresh forces a re-download for a game regardless of cache freshness.
// On fetch or validation failure the last cached view is returned with its
// degraded flag set; with no cache at all the refresh fails.
func (s *Store) Refresh(ctx context.Context, game string) (*View, error) {
	def, ok := games.ByID(game)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGame, game)
	}
	return s.refresh(ctx, def, true)
}

// LoadVersion returns a pinned historical view for reproducible analysis.
// Only cached versions can be loaded; nothing is fetched.
func (s *Store) LoadVersion(ctx context.Context, game, version string) (*View, error) {
	def, ok := games.ByID(game)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGame, game)
	}
	if version == "" {
		return s.Load(ctx, game)
	}

	key := viewKey(def.ID, version)
	if view, ok := s.views.Get(key); ok {
		return view, nil
	}

	data, err := s.cache.readVersion(def.ID, version)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s@%s", ErrVersionNotCached, def.ID, version)
		}
		return nil, fmt.Errorf("reading pinned masterlist %s@%s: %w", def.ID, version, err)
	}

	fetchedAt := time.Time{}
	if meta, metaErr := s.cache.readMeta(def.ID); metaErr == nil && meta.Version == version {
		fetchedAt = meta.FetchedAt
	}

	view, err := s.parse(def.ID, data, fetchedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing pinned masterlist %s@%s: %w", def.ID, version, err)
	}
	s.views.Add(key, view)
	return view, nil
}

// Versions lists the pinned document versions cached for a game, ascending.
func (s *Store) Versions(game string) ([]string, error) {
	def, ok := games.ByID(game)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGame, game)
	}
	return s.cache.versions(def.ID)
}

// CurrentInfo reports the cache state for a game without touching upstream.
func (s *Store) CurrentInfo(game string) (Info, error) {
	def, ok := games.ByID(game)
	if !ok {
		return Info{}, fmt.Errorf("%w: %q", ErrUnknownGame, game)
	}
	meta, err := s.cache.readMeta(def.ID)
	if err != nil {
		if os.IsNotExist(err) {
			return Info{}, fmt.Errorf("%w for %s (cache: %s)", ErrNoDocument, def.ID, s.cache.metaPath(def.ID))
		}
		return Info{}, fmt.Errorf("reading cache meta for %s: %w", def.ID, err)
	}
	return Info{
		Game:      def.ID,
		Version:   meta.Version,
		FetchedAt: meta.FetchedAt,
		Degraded:  s.gameState(def.ID).isDegraded(),
	}, nil
}

// OverridesPath returns the on-disk overrides file location for a game.
// The file is optional; the path is stable either way.
func (s *Store) OverridesPath(game string) string {
	return s.cache.overridesPath(game)
}

func (s *Store) isFresh(meta cacheMeta) bool {
	return time.Since(meta.FetchedAt) < s.freshness
}

// refresh downloads, validates, and atomically installs a new document. It
// holds the game's refresh lock so concurrent refreshes collapse; readers
// keep hitting the previous view until the new one is fully installed.
func (s *Store) refresh(ctx context.Context, def games.Game, force bool) (*View, error) {
	state := s.gameState(def.ID)
	state.refreshMu.Lock()
	defer state.refreshMu.Unlock()

	prior, priorErr := s.cache.readMeta(def.ID)
	if !force && priorErr == nil && s.isFresh(prior) {
		// Another refresh finished while this one waited on the lock.
		if view, err := s.cachedView(def.ID, prior, false); err == nil {
			return view, nil
		}
	}

	etag := ""
	if priorErr == nil {
		etag = prior.ETag
	}

	result, err := s.fetcher.fetch(ctx, def.MasterlistURL, etag)
	if err != nil {
		return s.fallback(def.ID, state, fmt.Errorf("refreshing %s: %w", def.ID, err))
	}

	if result.notModified {
		meta := prior
		meta.FetchedAt = time.Now().UTC()
		if err := s.cache.writeMeta(def.ID, meta); err != nil {
			s.log.Warn("Store: updating cache meta after 304 failed",
				zap.String("game", def.ID), zap.Error(err))
		}
		state.setDegraded(false)
		s.log.Debug("Store: upstream not modified", zap.String("game", def.ID),
			zap.String("version", meta.Version))
		return s.cachedView(def.ID, meta, false)
	}

	doc, err := DecodeDocument(result.body)
	if err == nil {
		err = ValidateDocument(doc)
	}
	if err != nil {
		return s.fallback(def.ID, state, fmt.Errorf("validating %s masterlist: %w", def.ID, err))
	}

	meta := cacheMeta{Version: doc.Version, FetchedAt: time.Now().UTC(), ETag: result.etag}
	if err := s.cache.store(def.ID, result.body, meta); err != nil {
		return s.fallback(def.ID, state, fmt.Errorf("caching %s masterlist: %w", def.ID, err))
	}

	view, err := s.parse(def.ID, result.body, meta.FetchedAt)
	if err != nil {
		return s.fallback(def.ID, state, fmt.Errorf("parsing %s masterlist: %w", def.ID, err))
	}

	s.views.Add(viewKey(def.ID, view.Version), view)
	state.setDegraded(false)
	s.log.Info("Store: masterlist refreshed", zap.String("game", def.ID),
		zap.String("version", view.Version), zap.Int("entries", len(view.Entries)))
	return view, nil
}

// fallback serves the last cached view after a failed refresh, marking it
// degraded. With no usable cache the original failure is returned wrapped
// in ErrNoDocument.
func (s *Store) fallback(game string, state *gameState, cause error) (*View, error) {
	meta, err := s.cache.readMeta(game)
	if err == nil {
		if view, viewErr := s.cachedView(game, meta, true); viewErr == nil {
			state.setDegraded(true)
			s.log.Warn("Store: serving stale masterlist after failed refresh",
				zap.String("game", game), zap.String("version", meta.Version), zap.Error(cause))
			return view, nil
		}
	}
	return nil, fmt.Errorf("%w for %s: %s", ErrNoDocument, game, cause)
}

// cachedView returns the parsed view for the cached current document,
// parsing and memoizing it when needed.
func (s *Store) cachedView(game string, meta cacheMeta, degraded bool) (*View, error) {
	key := viewKey(game, meta.Version)
	if view, ok := s.views.Get(key); ok {
		return view.withDegraded(degraded), nil
	}

	data, err := s.cache.readDocument(game)
	if err != nil {
		return nil, fmt.Errorf("reading cached masterlist for %s: %w", game, err)
	}
	view, err := s.parse(game, data, meta.FetchedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing cached masterlist for %s: %w", game, err)
	}
	if view.Version != meta.Version {
		// Meta and document drifted apart; trust the document.
		s.log.Warn("Store: cache meta version mismatch", zap.String("game", game),
			zap.String("meta", meta.Version), zap.String("document", view.Version))
	}

	s.views.Add(viewKey(game, view.Version), view)
	return view.withDegraded(degraded), nil
}

// parse decodes, validates, and canonicalizes a document, layering the
// embedded baseline overrides and the game's on-disk overrides file over it
// before the indices are derived.
func (s *Store) parse(game string, data []byte, fetchedAt time.Time) (*View, error) {
	doc, err := DecodeDocument(data)
	if err != nil {
		return nil, err
	}
	if err := ValidateDocument(doc); err != nil {
		return nil, err
	}

	var extraDiagnostics []string
	if baseline := embeds.BaselineOverrides(game); baseline != nil {
		overrides, err := DecodeOverrides(baseline)
		if err != nil {
			// The baseline ships with the binary; failing to decode it is a
			// build defect, not a user problem.
			s.log.Error("Store: embedded baseline overrides unusable",
				zap.String("game", game), zap.Error(err))
		} else {
			ApplyOverrides(doc, overrides)
		}
	}
	if raw, err := s.cache.readOverrides(game); err == nil {
		overrides, decodeErr := DecodeOverrides(raw)
		if decodeErr != nil {
			s.log.Error("Store: overrides file rejected", zap.String("game", game), zap.Error(decodeErr))
			extraDiagnostics = append(extraDiagnostics,
				fmt.Sprintf("overrides file rejected: %v", decodeErr))
		} else {
			ApplyOverrides(doc, overrides)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading overrides file for %s: %w", game, err)
	}

	view := BuildView(game, doc, fetchedAt, s.log)
	view.Diagnostics = append(view.Diagnostics, extraDiagnostics...)
	return view, nil
}

func (v *View) withDegraded(degraded bool) *View {
	if v.Degraded == degraded {
		return v
	}
	clone := *v
	clone.Degraded = degraded
	return &clone
}

func viewKey(game, version string) string {
	return game + "@" + version
}
