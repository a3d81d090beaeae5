package analysis

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/go-playground/validator/v10"

	"github.com/loadstone-dev/loadstone/app/core/games"
	"github.com/loadstone-dev/loadstone/app/core/impact"
)

// Request describes one analysis. RawList may be empty; an empty list yields
// a valid, empty report.
type Request struct {
	// Game is a supported game identifier.
	Game string `json:"game" validate:"required"`
	// RawList is the user's mod list text, unmodified.
	RawList string `json:"rawList"`
	// MasterlistVersion pins a cached historical document for reproducible
	// analysis. Empty means the current document.
	MasterlistVersion string `json:"masterlistVersion,omitempty"`
	// GameVersion is the installed game version when it differs from the
	// registry's current release, e.g. a user holding back a patch. It must
	// parse as semver. Empty means the registry version.
	GameVersion string `json:"gameVersion,omitempty"`
	// Hardware optionally enables the VRAM advisory.
	Hardware *impact.Profile `json:"hardware,omitempty"`
	// InfoCap and HeaviestN override the engine options per request when
	// positive.
	InfoCap   int `json:"infoCap,omitempty" validate:"min=0"`
	HeaviestN int `json:"heaviestN,omitempty" validate:"min=0"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateRequest checks the request contract and returns a validation_error
// describing the first problem.
func validateRequest(req Request) error {
	if err := validate.Struct(req); err != nil {
		return NewError(KindValidation, "invalid analysis request", err.Error())
	}
	if _, ok := games.ByID(req.Game); !ok {
		return NewError(KindValidation,
			fmt.Sprintf("unknown game %q", req.Game),
			"supported: "+strings.Join(games.IDs(), ", "))
	}
	if req.GameVersion != "" {
		if _, err := semver.NewVersion(req.GameVersion); err != nil {
			return NewError(KindValidation,
				fmt.Sprintf("unparseable game version %q", req.GameVersion), err.Error())
		}
	}
	if req.Hardware != nil && req.Hardware.VRAMGB <= 0 {
		return NewError(KindValidation, "hardware profile requires vram_gb > 0", "")
	}
	return nil
}
