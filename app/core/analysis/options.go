package analysis

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loadstone-dev/loadstone/app/core/impact"
	"github.com/loadstone-dev/loadstone/app/core/masterlist"
	"github.com/loadstone-dev/loadstone/app/core/report"
)

// Environment variables the engine recognizes.
const (
	EnvCacheRoot     = "CACHE_ROOT"
	EnvFreshnessDays = "MASTERLIST_FRESHNESS_DAYS"
	EnvInfoCap       = "ANALYSIS_INFO_CAP"
	EnvHeaviestN     = "ANALYSIS_HEAVIEST_N"
)

// Options is the fixed engine configuration. Zero values select the
// documented defaults, so a literal Options{} is usable.
type Options struct {
	// CacheRoot is the directory holding the masterlists/ cache tree.
	CacheRoot string
	// Freshness is how long a cached masterlist is served without a fetch.
	Freshness time.Duration
	// InfoCap bounds info findings per report.
	InfoCap int
	// HeaviestN bounds the heaviest-mods ranking.
	HeaviestN int

	// Now and NewID stamp reports. Overridable so hosts that need
	// reproducible output can pin them; nil selects the real clock and
	// random UUIDs.
	Now   func() time.Time
	NewID func() string
}

// Defaults returns the documented default options.
func Defaults() Options {
	return Options{
		CacheRoot: defaultCacheRoot(),
		Freshness: masterlist.DefaultFreshness,
		InfoCap:   report.DefaultInfoCap,
		HeaviestN: impact.DefaultHeaviestN,
		Now:       time.Now,
		NewID:     uuid.NewString,
	}
}

// FromEnv layers the recognized environment variables over the defaults.
// Unset variables keep their defaults; set-but-unusable values are logged and
// fall back, so a broken environment degrades the options, not the process.
func FromEnv(log *zap.Logger) Options {
	if log == nil {
		log = zap.NewNop()
	}
	opts := Defaults()

	if root := os.Getenv(EnvCacheRoot); root != "" {
		opts.CacheRoot = root
	}
	if days, ok := positiveEnv(log, EnvFreshnessDays); ok {
		opts.Freshness = time.Duration(days) * 24 * time.Hour
	}
	if infoCap, ok := positiveEnv(log, EnvInfoCap); ok {
		opts.InfoCap = infoCap
	}
	if n, ok := positiveEnv(log, EnvHeaviestN); ok {
		opts.HeaviestN = n
	}

	return opts
}

// positiveEnv reads a positive-integer variable. Unset is silent;
// set-but-unusable warns and reports false.
func positiveEnv(log *zap.Logger, name string) (int, bool) {
	value := os.Getenv(name)
	if value == "" {
		return 0, false
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		log.Warn("Options: ignoring unusable environment value",
			zap.String("name", name), zap.String("value", value))
		return 0, false
	}
	return parsed, true
}

// defaultCacheRoot places the cache under the platform cache directory.
func defaultCacheRoot() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "loadstone")
	}
	return filepath.Join(os.TempDir(), "loadstone")
}
