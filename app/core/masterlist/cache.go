package masterlist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// diskCache implements the on-disk layout:
//
//	<root>/masterlists/<game>/current.document
//	<root>/masterlists/<game>/current.meta
//	<root>/masterlists/<game>/versions/<version>.document
//	<root>/masterlists/<game>/overrides.json5
//
// Documents and meta files are replaced by writing a temp file and renaming
// it into place, so readers observe either the old or the new file.
type diskCache struct {
	root string
}

// cacheMeta is the persisted sidecar for the current document.
type cacheMeta struct {
	Version   string    `json:"version"`
	FetchedAt time.Time `json:"fetched_at"`
	ETag      string    `json:"etag,omitempty"`
}

var versionFileRegex = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func (c diskCache) gameDir(game string) string {
	return filepath.Join(c.root, "masterlists", game)
}

func (c diskCache) documentPath(game string) string {
	return filepath.Join(c.gameDir(game), "current.document")
}

func (c diskCache) metaPath(game string) string {
	return filepath.Join(c.gameDir(game), "current.meta")
}

func (c diskCache) versionsDir(game string) string {
	return filepath.Join(c.gameDir(game), "versions")
}

func (c diskCache) versionPath(game, version string) string {
	name := versionFileRegex.ReplaceAllString(version, "_")
	return filepath.Join(c.versionsDir(game), name+".document")
}

func (c diskCache) overridesPath(game string) string {
	return filepath.Join(c.gameDir(game), "overrides.json5")
}

func (c diskCache) readDocument(game string) ([]byte, error) {
	return os.ReadFile(c.documentPath(game))
}

func (c diskCache) readVersion(game, version string) ([]byte, error) {
	return os.ReadFile(c.versionPath(game, version))
}

func (c diskCache) readOverrides(game string) ([]byte, error) {
	return os.ReadFile(c.overridesPath(game))
}

func (c diskCache) readMeta(game string) (cacheMeta, error) {
	var meta cacheMeta
	data, err := os.ReadFile(c.metaPath(game))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("decoding cache meta for %s: %w", game, err)
	}
	return meta, nil
}

// store atomically replaces the current document and meta for a game and
// records a pinned copy under versions/. The document is written before the
// meta so a crash between the two leaves a usable pair.
func (c diskCache) store(game string, document []byte, meta cacheMeta) error {
	if err := writeFileAtomic(c.documentPath(game), document); err != nil {
		return fmt.Errorf("writing masterlist document: %w", err)
	}
	if err := writeFileAtomic(c.versionPath(game, meta.Version), document); err != nil {
		return fmt.Errorf("writing pinned masterlist copy: %w", err)
	}
	if err := c.writeMeta(game, meta); err != nil {
		return err
	}
	return nil
}

func (c diskCache) writeMeta(game string, meta cacheMeta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cache meta: %w", err)
	}
	if err := writeFileAtomic(c.metaPath(game), append(data, '\n')); err != nil {
		return fmt.Errorf("writing cache meta: %w", err)
	}
	return nil
}

// versions lists the pinned document versions for a game, sorted ascending.
func (c diskCache) versions(game string) ([]string, error) {
	entries, err := os.ReadDir(c.versionsDir(game))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing masterlist versions: %w", err)
	}

	versions := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".document") {
			continue
		}
		versions = append(versions, strings.TrimSuffix(name, ".document"))
	}
	sort.Strings(versions)
	return versions, nil
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
