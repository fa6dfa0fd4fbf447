package types

import (
	"fmt"

	"github.com/gotaku-app/gotaku/internal/config"
)

// Source selects which provider a client talks to.
type Source int

const (
	// SourceAuto answers from the primary provider and falls back to the
	// alternate on failure. This is the zero value and the default.
	SourceAuto Source = iota
	// SourcePrimary pins the client to the primary provider
	SourcePrimary
	// SourceAlternate pins the client to the alternate provider
	SourceAlternate
)

// String returns the string representation of the source
func (s Source) String() string {
	switch s {
	case SourcePrimary:
		return "otakudesu"
	case SourceAlternate:
		return "samehadaku"
	default:
		return "auto"
	}
}

// ToProviders converts the public Source to the provider list a client
// should be built over, in fallback order.
func (s Source) ToProviders(cfg config.Config) []config.Provider {
	switch s {
	case SourcePrimary:
		return []config.Provider{cfg.Primary}
	case SourceAlternate:
		return []config.Provider{cfg.Alternate}
	default:
		return []config.Provider{cfg.Primary, cfg.Alternate}
	}
}

// ParseSource parses a string into a Source type
func ParseSource(s string) (Source, error) {
	switch s {
	case "auto", "":
		return SourceAuto, nil
	case "otakudesu", "primary":
		return SourcePrimary, nil
	case "samehadaku", "alternate":
		return SourceAlternate, nil
	default:
		return SourceAuto, fmt.Errorf("unknown source: %s", s)
	}
}
