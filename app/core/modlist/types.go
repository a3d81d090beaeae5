// Package modlist normalizes free-form user mod lists into an ordered
// sequence of records that the analysis components consume.
package modlist

// Ext classifies a mod file by its suffix.
type Ext string

const (
	// ExtMaster is an .esm file. Masters load before everything else.
	ExtMaster Ext = "master"
	// ExtPlugin is a regular .esp file.
	ExtPlugin Ext = "plugin"
	// ExtLight is an .esl light plugin, counted against its own limit.
	ExtLight Ext = "light"
	// ExtArchive is a .bsa or .ba2 asset archive.
	ExtArchive Ext = "archive"
	// ExtUnknown is anything else. Unknown suffixes are kept, not rejected.
	ExtUnknown Ext = "unknown"
)

// Record is one normalized user-list entry.
type Record struct {
	// Name is the canonical form used for matching: lowercased, separator
	// runs collapsed.
	Name string `json:"name"`
	// Display preserves the original casing for presentation.
	Display string `json:"display"`
	// Ext is the suffix classification.
	Ext Ext `json:"extension"`
	// Enabled is false when the line carried a disable marker or sat in a
	// [disabled] section.
	Enabled bool `json:"enabled"`
	// Position is the dense 0-based index in user-supplied order.
	Position int `json:"position"`
	// Raw is the original line for round-trip display.
	Raw string `json:"raw"`
}

// Duplicate records a canonical name that appeared more than once. The first
// occurrence is kept as the record; later ones are reported.
type Duplicate struct {
	// Name is the canonical name.
	Name string `json:"name"`
	// First is the position of the record that was kept.
	First int `json:"first"`
	// Second is the position the duplicate line would have occupied.
	Second int `json:"second"`
}

// List is the normalizer output: records in user order plus the duplicates
// that were collapsed while building it.
type List struct {
	Records    []Record    `json:"records"`
	Duplicates []Duplicate `json:"duplicates"`
}

// Enabled returns the enabled records in list order.
func (l List) Enabled() []Record {
	enabled := make([]Record, 0, len(l.Records))
	for _, rec := range l.Records {
		if rec.Enabled {
			enabled = append(enabled, rec)
		}
	}
	return enabled
}

// Counts tallies records by class for the report summary.
type Counts struct {
	Total    int `json:"total"`
	Enabled  int `json:"enabled"`
	Disabled int `json:"disabled"`
	Masters  int `json:"masters"`
	Plugins  int `json:"plugins"`
	Lights   int `json:"lights"`
	Archives int `json:"archives"`
	Unknown  int `json:"unknown"`
}

// Count computes the class tallies for the list. Extension tallies include
// disabled records; the Enabled/Disabled pair splits the total.
func (l List) Count() Counts {
	var c Counts
	c.Total = len(l.Records)
	for _, rec := range l.Records {
		if rec.Enabled {
			c.Enabled++
		} else {
			c.Disabled++
		}
		switch rec.Ext {
		case ExtMaster:
			c.Masters++
		case ExtPlugin:
			c.Plugins++
		case ExtLight:
			c.Lights++
		case ExtArchive:
			c.Archives++
		default:
			c.Unknown++
		}
	}
	return c
}
