package masterlist

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// Document is the decoded upstream masterlist before canonicalization.
// Unknown keys are tolerated and dropped by the decoder.
type Document struct {
	Version string          `yaml:"version"`
	Entries []DocumentEntry `yaml:"entries"`
}

// DocumentEntry mirrors one upstream entry. Field names follow the published
// document schema.
type DocumentEntry struct {
	Name               string          `yaml:"name"`
	Aliases            []string        `yaml:"aliases"`
	Tags               []string        `yaml:"tags"`
	Requires           []string        `yaml:"requires"`
	IncompatibleWith   []string        `yaml:"incompatible_with"`
	LoadAfter          []string        `yaml:"load_after"`
	Patches            []DocumentPatch `yaml:"patches"`
	Dirty              bool            `yaml:"dirty"`
	Weight             *int            `yaml:"weight"`
	Notes              string          `yaml:"notes"`
	MinimumGameVersion string          `yaml:"minimum_game_version"`
}

// DocumentPatch declares that a patch mod reconciles an unordered pair.
type DocumentPatch struct {
	Pair []string `yaml:"pair"`
	Name string   `yaml:"name"`
}

// DecodeDocument unmarshals a masterlist document. Decoding is tolerant of
// unknown keys; structural validation happens in ValidateDocument.
func DecodeDocument(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding masterlist document: %w", err)
	}
	return &doc, nil
}

// ValidateDocument checks the structural schema. Every violation is
// collected so a rejected document reports all of its problems at once. A
// document that fails validation is rejected whole and never replaces a
// previously cached document.
func ValidateDocument(doc *Document) error {
	var result *multierror.Error

	if doc.Version == "" {
		result = multierror.Append(result, fmt.Errorf("document version is required"))
	}

	for i, entry := range doc.Entries {
		at := func(field string) string {
			if entry.Name != "" {
				return fmt.Sprintf("entry %q: %s", entry.Name, field)
			}
			return fmt.Sprintf("entry %d: %s", i, field)
		}

		if entry.Name == "" {
			result = multierror.Append(result, fmt.Errorf("entry %d: name is required", i))
		}
		if entry.Weight != nil && *entry.Weight < 0 {
			result = multierror.Append(result, fmt.Errorf("%s must be >= 0, got %d", at("weight"), *entry.Weight))
		}
		for j, patch := range entry.Patches {
			if len(patch.Pair) != 2 {
				result = multierror.Append(result, fmt.Errorf("%s must name exactly two mods, got %d", at(fmt.Sprintf("patches[%d].pair", j)), len(patch.Pair)))
			}
			if patch.Name == "" {
				result = multierror.Append(result, fmt.Errorf("%s is required", at(fmt.Sprintf("patches[%d].name", j))))
			}
		}
	}

	return result.ErrorOrNil()
}
