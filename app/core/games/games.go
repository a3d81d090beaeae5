// Package games defines the supported games and their per-game analysis
// parameters: plugin-count thresholds, the canonical masterlist source, and
// the current game version used for minimum-version checks.
package games

import (
	"sort"
	"strings"
)

// Game describes one supported game.
type Game struct {
	// ID is the canonical lowercase identifier used in requests and cache paths.
	ID string `json:"id"`
	// Name is the display name.
	Name string `json:"name"`
	// MasterlistURL is the canonical upstream masterlist document for the game.
	MasterlistURL string `json:"masterlistUrl"`
	// GameVersion is the current release version, compared against entries
	// that declare a minimum game version.
	GameVersion string `json:"gameVersion"`
	// PluginSoft and PluginHard bound the full plugin count (plugins plus
	// masters, lights excluded). Crossing soft is a warning, hard an error.
	PluginSoft int `json:"pluginSoftLimit"`
	PluginHard int `json:"pluginHardLimit"`
	// LightSoft and LightHard bound the light-plugin count.
	LightSoft int `json:"lightSoftLimit"`
	LightHard int `json:"lightHardLimit"`
}

// Family defaults. The Skyrim-family numbers are the documented baseline;
// games that need different limits override them in their registry row.
const (
	defaultPluginSoft = 220
	defaultPluginHard = 250
	defaultLightSoft  = 3500
	defaultLightHard  = 4000
)

var registry = map[string]Game{
	"skyrimse": {
		ID:            "skyrimse",
		Name:          "Skyrim Special Edition",
		MasterlistURL: "https://masterlists.loadstone.dev/skyrimse/masterlist.yaml",
		GameVersion:   "1.6.1170",
		PluginSoft:    defaultPluginSoft,
		PluginHard:    defaultPluginHard,
		LightSoft:     defaultLightSoft,
		LightHard:     defaultLightHard,
	},
	"skyrim": {
		ID:            "skyrim",
		Name:          "Skyrim Legendary Edition",
		MasterlistURL: "https://masterlists.loadstone.dev/skyrim/masterlist.yaml",
		GameVersion:   "1.9.32",
		PluginSoft:    defaultPluginSoft,
		PluginHard:    defaultPluginHard,
		LightSoft:     defaultLightSoft,
		LightHard:     defaultLightHard,
	},
	"fallout4": {
		ID:            "fallout4",
		Name:          "Fallout 4",
		MasterlistURL: "https://masterlists.loadstone.dev/fallout4/masterlist.yaml",
		GameVersion:   "1.10.984",
		PluginSoft:    defaultPluginSoft,
		PluginHard:    defaultPluginHard,
		LightSoft:     defaultLightSoft,
		LightHard:     defaultLightHard,
	},
	"starfield": {
		ID:            "starfield",
		Name:          "Starfield",
		MasterlistURL: "https://masterlists.loadstone.dev/starfield/masterlist.yaml",
		GameVersion:   "1.14.74",
		PluginSoft:    defaultPluginSoft,
		PluginHard:    defaultPluginHard,
		LightSoft:     defaultLightSoft,
		LightHard:     defaultLightHard,
	},
}

// ByID looks up a game by its identifier, case-insensitively.
func ByID(id string) (Game, bool) {
	game, ok := registry[strings.ToLower(strings.TrimSpace(id))]
	return game, ok
}

// All returns every supported game, sorted by ID.
func All() []Game {
	all := make([]Game, 0, len(registry))
	for _, game := range registry {
		all = append(all, game)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all
}

// IDs returns the sorted identifiers of every supported game.
func IDs() []string {
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
