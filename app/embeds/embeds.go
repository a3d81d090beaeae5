// Package embeds ships the built-in curated override documents that are
// merged under any on-disk overrides file.
package embeds

import "embed"

//go:embed overrides
var overridesFS embed.FS

// BaselineOverrides returns the built-in override document for a game, or
// nil when the game ships without one.
func BaselineOverrides(game string) []byte {
	data, err := overridesFS.ReadFile("overrides/" + game + ".json5")
	if err != nil {
		return nil
	}
	return data
}
