package masterlist_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"

	"github.com/loadstone-dev/loadstone/app/core/masterlist"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// The store tests run against "starfield", which ships without embedded
// baseline overrides, so every entry below is exactly what the view sees.
const testGame = "starfield"

const upstreamDocV1 = `version: "2025.08.1"
entries:
  - name: Starfield.esm
  - name: StarUI.esp
    tags: [ui]
  - name: TextureHaul.ba2
    tags: [texture]
`

const upstreamDocV2 = `version: "2025.08.2"
entries:
  - name: Starfield.esm
  - name: StarUI.esp
    tags: [ui]
  - name: TextureHaul.ba2
    tags: [texture]
  - name: ShatteredSpace.esm
`

// upstream is a scriptable stand-in for the masterlist origin.
type upstream struct {
	mu       sync.Mutex
	body     string
	etag     string
	status   int
	requests int
	lastPath string
	lastINM  string
}

func (u *upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.requests++
	u.lastPath = r.URL.Path
	u.lastINM = r.Header.Get("If-None-Match")

	if u.status != 0 {
		http.Error(w, "upstream unavailable", u.status)
		return
	}
	if u.etag != "" {
		w.Header().Set("ETag", u.etag)
		if u.lastINM == u.etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	w.Header().Set("Content-Type", "application/yaml")
	io.WriteString(w, u.body)
}

func (u *upstream) set(body, etag string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.body, u.etag, u.status = body, etag, 0
}

func (u *upstream) fail(status int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.status = status
}

func (u *upstream) count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.requests
}

func (u *upstream) lastRequest() (path, inm string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.lastPath, u.lastINM
}

// rewriteTransport points registry URLs at the test server so no test ever
// leaves the process.
type rewriteTransport struct {
	base http.RoundTripper
	host string
}

func (t rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.URL.Scheme = "http"
	clone.URL.Host = t.host
	return t.base.RoundTrip(clone)
}

func newTestStore(t *testing.T, origin *upstream, freshness time.Duration) (*masterlist.Store, string) {
	t.Helper()

	server := httptest.NewServer(origin)
	t.Cleanup(server.Close)

	root := t.TempDir()
	store, err := masterlist.NewStore(masterlist.Config{
		CacheRoot: root,
		Freshness: freshness,
		Client: &http.Client{Transport: rewriteTransport{
			base: server.Client().Transport,
			host: server.Listener.Addr().String(),
		}},
		Log: zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	return store, root
}

func TestStoreLoadFetchesAndCaches(t *testing.T) {
	origin := &upstream{}
	origin.set(upstreamDocV1, `"v1"`)
	store, root := newTestStore(t, origin, time.Hour)

	view, err := store.Load(context.Background(), testGame)
	require.NoError(t, err)
	require.Equal(t, testGame, view.Game)
	require.Equal(t, "2025.08.1", view.Version)
	require.False(t, view.Degraded)
	require.Equal(t, 1, view.Weights["starui.esp"])
	require.Equal(t, 2, view.Weights["texturehaul.ba2"])

	path, _ := origin.lastRequest()
	require.Equal(t, "/starfield/masterlist.yaml", path)

	for _, file := range []string{
		"masterlists/starfield/current.document",
		"masterlists/starfield/current.meta",
		"masterlists/starfield/versions/2025.08.1.document",
	} {
		if _, err := os.Stat(filepath.Join(root, file)); err != nil {
			t.Errorf("expected cache file %s: %v", file, err)
		}
	}

	info, err := store.CurrentInfo(testGame)
	require.NoError(t, err)
	require.Equal(t, "2025.08.1", info.Version)
	require.False(t, info.Degraded)

	// A fresh cache is served without another round trip.
	_, err = store.Load(context.Background(), testGame)
	require.NoError(t, err)
	require.Equal(t, 1, origin.count())
}

func TestStoreLoadRefreshesStaleCache(t *testing.T) {
	origin := &upstream{}
	origin.set(upstreamDocV1, `"v1"`)
	store, _ := newTestStore(t, origin, time.Nanosecond)

	_, err := store.Load(context.Background(), testGame)
	require.NoError(t, err)

	origin.set(upstreamDocV2, `"v2"`)

	view, err := store.Load(context.Background(), testGame)
	require.NoError(t, err)
	require.Equal(t, "2025.08.2", view.Version)
	require.Equal(t, 2, origin.count())

	if _, ok := view.Resolve("ShatteredSpace.esm"); !ok {
		t.Error("refreshed view should carry the new entry")
	}
}

func TestStoreNotModifiedServesCachedDocument(t *testing.T) {
	origin := &upstream{}
	origin.set(upstreamDocV1, `"v1"`)
	store, _ := newTestStore(t, origin, time.Nanosecond)

	_, err := store.Load(context.Background(), testGame)
	require.NoError(t, err)

	view, err := store.Load(context.Background(), testGame)
	require.NoError(t, err)
	require.Equal(t, "2025.08.1", view.Version)
	require.False(t, view.Degraded)
	require.Equal(t, 2, origin.count())

	_, inm := origin.lastRequest()
	require.Equal(t, `"v1"`, inm, "revalidation should send the cached ETag")
}

func TestStoreRefreshForcesFetch(t *testing.T) {
	origin := &upstream{}
	origin.set(upstreamDocV1, `"v1"`)
	store, _ := newTestStore(t, origin, time.Hour)

	_, err := store.Load(context.Background(), testGame)
	require.NoError(t, err)

	origin.set(upstreamDocV2, `"v2"`)

	view, err := store.Refresh(context.Background(), testGame)
	require.NoError(t, err)
	require.Equal(t, "2025.08.2", view.Version)
	require.Equal(t, 2, origin.count())

	versions, err := store.Versions(testGame)
	require.NoError(t, err)
	require.Equal(t, []string{"2025.08.1", "2025.08.2"}, versions)
}

func TestStoreFallsBackToStaleCache(t *testing.T) {
	origin := &upstream{}
	origin.set(upstreamDocV1, `"v1"`)
	store, _ := newTestStore(t, origin, time.Hour)

	_, err := store.Load(context.Background(), testGame)
	require.NoError(t, err)

	origin.fail(http.StatusInternalServerError)

	view, err := store.Refresh(context.Background(), testGame)
	require.NoError(t, err, "a cached document should absorb upstream failures")
	require.Equal(t, "2025.08.1", view.Version)
	require.True(t, view.Degraded)

	info, err := store.CurrentInfo(testGame)
	require.NoError(t, err)
	require.True(t, info.Degraded)

	// Recovery clears the degraded flag.
	origin.set(upstreamDocV1, `"v1"`)
	view, err = store.Refresh(context.Background(), testGame)
	require.NoError(t, err)
	require.False(t, view.Degraded)

	info, err = store.CurrentInfo(testGame)
	require.NoError(t, err)
	require.False(t, info.Degraded)
}

func TestStoreLoadWithoutCacheFails(t *testing.T) {
	origin := &upstream{}
	origin.fail(http.StatusServiceUnavailable)
	store, _ := newTestStore(t, origin, time.Hour)

	_, err := store.Load(context.Background(), testGame)
	require.ErrorIs(t, err, masterlist.ErrNoDocument)

	_, err = store.CurrentInfo(testGame)
	require.ErrorIs(t, err, masterlist.ErrNoDocument)
}

func TestStoreUnknownGame(t *testing.T) {
	origin := &upstream{}
	store, _ := newTestStore(t, origin, time.Hour)

	_, err := store.Load(context.Background(), "oblivion")
	require.ErrorIs(t, err, masterlist.ErrUnknownGame)
	require.Equal(t, 0, origin.count())
}

func TestStoreRejectsInvalidUpstreamAndKeepsCache(t *testing.T) {
	origin := &upstream{}
	origin.set(upstreamDocV1, `"v1"`)
	store, root := newTestStore(t, origin, time.Hour)

	_, err := store.Load(context.Background(), testGame)
	require.NoError(t, err)

	// Entries without names fail schema validation.
	origin.set("version: \"9\"\nentries:\n  - tags: [ui]\n", `"v-bad"`)

	view, err := store.Refresh(context.Background(), testGame)
	require.NoError(t, err)
	require.Equal(t, "2025.08.1", view.Version, "rejected documents must not replace the cache")
	require.True(t, view.Degraded)

	cached, err := os.ReadFile(filepath.Join(root, "masterlists/starfield/current.document"))
	require.NoError(t, err)
	require.Contains(t, string(cached), "2025.08.1")
}

func TestStoreLoadVersionPinsHistoricalDocuments(t *testing.T) {
	origin := &upstream{}
	origin.set(upstreamDocV1, `"v1"`)
	store, _ := newTestStore(t, origin, time.Hour)

	ctx := context.Background()
	_, err := store.Load(ctx, testGame)
	require.NoError(t, err)

	origin.set(upstreamDocV2, `"v2"`)
	_, err = store.Refresh(ctx, testGame)
	require.NoError(t, err)

	pinned, err := store.LoadVersion(ctx, testGame, "2025.08.1")
	require.NoError(t, err)
	require.Equal(t, "2025.08.1", pinned.Version)
	if _, ok := pinned.Resolve("ShatteredSpace.esm"); ok {
		t.Error("pinned view must reflect the pinned document, not the current one")
	}

	requests := origin.count()
	_, err = store.LoadVersion(ctx, testGame, "2025.08.1")
	require.NoError(t, err)
	require.Equal(t, requests, origin.count(), "pinned loads never touch upstream")

	_, err = store.LoadVersion(ctx, testGame, "9.9.9")
	require.ErrorIs(t, err, masterlist.ErrVersionNotCached)

	current, err := store.LoadVersion(ctx, testGame, "")
	require.NoError(t, err)
	require.Equal(t, "2025.08.2", current.Version)
}

func TestStoreCollapsesConcurrentLoads(t *testing.T) {
	origin := &upstream{}
	origin.set(upstreamDocV1, `"v1"`)
	store, _ := newTestStore(t, origin, time.Hour)

	var group errgroup.Group
	for i := 0; i < 8; i++ {
		group.Go(func() error {
			_, err := store.Load(context.Background(), testGame)
			return err
		})
	}
	require.NoError(t, group.Wait())
	require.Equal(t, 1, origin.count(), "concurrent loads should share one fetch")
}

func TestStoreMergesOverridesFile(t *testing.T) {
	origin := &upstream{}
	origin.set(upstreamDocV1, `"v1"`)
	store, _ := newTestStore(t, origin, time.Hour)

	writeOverrides(t, store, `
{
  version: 1,
  entries: {
    "StarUI.esp": {weight: 9},
    "Community Patch.esm": {"+load_after": ["Starfield.esm"]},
  },
}
`)

	view, err := store.Load(context.Background(), testGame)
	require.NoError(t, err)
	require.Equal(t, 9, view.Weights["starui.esp"])

	if _, ok := view.Resolve("Community Patch.esm"); !ok {
		t.Fatal("override-introduced entry missing from view")
	}
	require.Equal(t, []string{"starfield.esm"}, view.LoadAfter["community patch.esm"])
}

func TestStoreSurfacesRejectedOverridesFile(t *testing.T) {
	origin := &upstream{}
	origin.set(upstreamDocV1, `"v1"`)
	store, _ := newTestStore(t, origin, time.Hour)

	writeOverrides(t, store, `{version: 1, entries: {"StarUI.esp": {wieght: 9}}}`)

	view, err := store.Load(context.Background(), testGame)
	require.NoError(t, err, "a bad overrides file must not block analysis")
	require.Equal(t, 1, view.Weights["starui.esp"], "rejected overrides must not apply")

	if !hasDiagnostic(view, "overrides file rejected") {
		t.Errorf("expected a rejection diagnostic, got %v", view.Diagnostics)
	}
}

func TestWatchOverridesInvalidatesViews(t *testing.T) {
	origin := &upstream{}
	origin.set(upstreamDocV1, `"v1"`)
	store, _ := newTestStore(t, origin, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	view, err := store.Load(ctx, testGame)
	require.NoError(t, err)
	require.Equal(t, 1, view.Weights["starui.esp"])

	require.NoError(t, store.WatchOverrides(ctx))

	writeOverrides(t, store, `{version: 1, entries: {"StarUI.esp": {weight: 9}}}`)

	require.Eventually(t, func() bool {
		view, err := store.Load(ctx, testGame)
		return err == nil && view.Weights["starui.esp"] == 9
	}, 5*time.Second, 20*time.Millisecond, "watcher should drop cached views after an overrides edit")
}

func writeOverrides(t *testing.T, store *masterlist.Store, body string) {
	t.Helper()
	path := store.OverridesPath(testGame)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(strings.TrimSpace(body)+"\n"), 0o644))
}
