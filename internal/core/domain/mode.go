package domain

import (
	"fmt"
	"strings"
)

// Mode selects which upstream sources a coordinator polls.
// It is fixed for the lifetime of a coordinator instance.
type Mode string

const (
	// ModePortal polls the public feed and the authenticated customer portal.
	ModePortal Mode = "portal"
	// ModeOpenData polls the public feed only.
	ModeOpenData Mode = "opendata"
)

// ParseMode parses a configured mode value.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", fmt.Errorf("%w: unknown mode %q (use portal or opendata)", ErrInvalidInput, s)
	}
	return m, nil
}

// IsValid reports whether m is a known mode.
func (m Mode) IsValid() bool {
	return m == ModePortal || m == ModeOpenData
}

// IsPortal reports whether the authenticated path runs.
func (m Mode) IsPortal() bool {
	return m == ModePortal
}
