package masterlist

import "errors"

var (
	// ErrUnknownGame indicates the requested game is not in the registry.
	ErrUnknownGame = errors.New("unknown game")

	// ErrNoDocument indicates that no masterlist is available for the game:
	// nothing cached and nothing fetchable.
	ErrNoDocument = errors.New("no masterlist document available")

	// ErrVersionNotCached indicates a pinned version was requested but no
	// cached copy of it exists.
	ErrVersionNotCached = errors.New("masterlist version not cached")
)
