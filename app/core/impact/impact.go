// Package impact produces the advisory system-pressure report: a unitless
// total, a per-tag breakdown, the heaviest enabled mods, and an optional
// hardware advisory. Nothing in here is an error; the numbers approximate
// relative runtime cost, they do not measure it.
package impact

import (
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"

	"github.com/loadstone-dev/loadstone/app/core/masterlist"
	"github.com/loadstone-dev/loadstone/app/core/modlist"
)

// DefaultHeaviestN bounds the heaviest-mods ranking when the caller does not
// choose a size.
const DefaultHeaviestN = 10

// Hardware buckets for the texture and ENB pressure to VRAM ratio.
const (
	BucketOK    = "ok"
	BucketTight = "tight"
	BucketOver  = "over"
)

const (
	tightThreshold = 0.5
	overThreshold  = 1.0
)

// Profile describes the host hardware an analysis may be checked against.
type Profile struct {
	// Tier is a free-form label ("potato", "mid", "high end").
	Tier string `json:"tier"`
	// VRAMGB is the available video memory in gigabytes.
	VRAMGB float64 `json:"vramGb"`
}

// HeavyMod is one entry of the heaviest-mods ranking.
type HeavyMod struct {
	Name   string   `json:"name"`
	Weight int      `json:"weight"`
	Tags   []string `json:"tags,omitempty"`
}

// Hardware is the advisory emitted when a profile is supplied.
type Hardware struct {
	Tier     string  `json:"tier"`
	VRAMGB   float64 `json:"vramGb"`
	Ratio    float64 `json:"ratio"`
	Bucket   string  `json:"bucket"`
	Advisory string  `json:"advisory"`
}

// Report is the full pressure estimate for the enabled entries of a list.
type Report struct {
	TotalPressure           int            `json:"totalPressure"`
	PluginCountEnabled      int            `json:"pluginCountEnabled"`
	LightPluginCountEnabled int            `json:"lightPluginCountEnabled"`
	PerTagPressure          map[string]int `json:"perTagPressure"`
	Heaviest                []HeavyMod     `json:"heaviest"`
	Hardware                *Hardware      `json:"hardware,omitempty"`
}

// Estimate computes the pressure report. Weights come from the view's weight
// table; entries the masterlist does not know get the fallback weight (1 for
// plugin-like files, 0 for archives). heaviestN <= 0 selects
// DefaultHeaviestN.
func Estimate(list modlist.List, view *masterlist.View, profile *Profile, heaviestN int) Report {
	if heaviestN <= 0 {
		heaviestN = DefaultHeaviestN
	}

	report := Report{
		PerTagPressure: make(map[string]int),
		Heaviest:       make([]HeavyMod, 0, heaviestN),
	}

	type weighted struct {
		name    string
		display string
		weight  int
		tags    []string
	}
	var ranked []weighted

	for _, record := range list.Records {
		if !record.Enabled {
			continue
		}

		switch record.Ext {
		case modlist.ExtPlugin, modlist.ExtMaster, modlist.ExtUnknown:
			report.PluginCountEnabled++
		case modlist.ExtLight:
			report.LightPluginCountEnabled++
		}

		weight := masterlist.FallbackWeight(record.Name)
		var tags []string
		if entry, known := view.Resolve(record.Name); known {
			weight = view.Weights[entry.Name]
			tags = entry.Tags
		}

		report.TotalPressure += weight
		for _, tag := range tags {
			report.PerTagPressure[tag] += weight
		}
		ranked = append(ranked, weighted{
			name:    record.Name,
			display: record.Display,
			weight:  weight,
			tags:    tags,
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].weight != ranked[j].weight {
			return ranked[i].weight > ranked[j].weight
		}
		return ranked[i].name < ranked[j].name
	})
	if len(ranked) > heaviestN {
		ranked = ranked[:heaviestN]
	}
	for _, mod := range ranked {
		report.Heaviest = append(report.Heaviest, HeavyMod{
			Name:   mod.display,
			Weight: mod.weight,
			Tags:   mod.tags,
		})
	}

	report.Hardware = advisory(profile, report.PerTagPressure)
	return report
}

// advisory buckets the texture and ENB pressure against the profile's VRAM.
func advisory(profile *Profile, perTag map[string]int) *Hardware {
	if profile == nil || profile.VRAMGB <= 0 {
		return nil
	}

	pressure := perTag["texture"] + perTag["enb"]
	ratio := float64(pressure) / profile.VRAMGB

	bucket := BucketOK
	switch {
	case ratio >= overThreshold:
		bucket = BucketOver
	case ratio >= tightThreshold:
		bucket = BucketTight
	}

	return &Hardware{
		Tier:   profile.Tier,
		VRAMGB: profile.VRAMGB,
		Ratio:  ratio,
		Bucket: bucket,
		Advisory: fmt.Sprintf("texture and ENB pressure %d against %s GB VRAM: %s",
			pressure, humanize.Ftoa(profile.VRAMGB), bucket),
	}
}
