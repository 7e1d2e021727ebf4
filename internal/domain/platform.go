package domain

import (
	"fmt"
	"strings"
)

// Platform selects where the share affordance is placed.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

// ParsePlatform accepts "ios" or "android", case-insensitively.
func ParsePlatform(raw string) (Platform, error) {
	switch p := Platform(strings.ToLower(strings.TrimSpace(raw))); p {
	case PlatformIOS, PlatformAndroid:
		return p, nil
	default:
		return "", fmt.Errorf("unsupported platform %q", raw)
	}
}

// FloatingShare reports whether share is rendered as a floating button.
func (p Platform) FloatingShare() bool {
	return p == PlatformAndroid
}

// HeaderShare reports whether share is placed in the navigation header.
func (p Platform) HeaderShare() bool {
	return p == PlatformIOS
}
