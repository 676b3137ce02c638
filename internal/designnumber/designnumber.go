// Package designnumber formats the identifier stamped onto generated images.
package designnumber

import (
	"fmt"
	"regexp"
)

// Format selects the prefix applied to a design number.
type Format string

const (
	FormatDES    Format = "DES-XXXX"
	FormatD      Format = "D-XXXX"
	FormatPlain  Format = "XXXX"
	FormatCustom Format = "custom"
)

// Position is the image corner the number is drawn in.
type Position string

const (
	TopLeft     Position = "top-left"
	TopRight    Position = "top-right"
	BottomLeft  Position = "bottom-left"
	BottomRight Position = "bottom-right"
)

// Style is the color scheme of the overlay.
type Style string

const (
	WhiteOnDark  Style = "white-on-dark"
	BlackOnLight Style = "black-on-light"
)

// Size is the overlay text size.
type Size string

const (
	Small  Size = "small"
	Medium Size = "medium"
	Large  Size = "large"
)

// Config is the design-number part of a session's advanced options.
type Config struct {
	Enabled      bool     `json:"enabled"`
	Number       string   `json:"number"`
	Format       Format   `json:"format"`
	CustomFormat string   `json:"customFormat"`
	Position     Position `json:"position"`
	Style        Style    `json:"style"`
	FontSize     Size     `json:"fontSize"`
}

// DefaultConfig returns the settings a new session starts with.
func DefaultConfig() Config {
	return Config{
		Format:   FormatDES,
		Position: TopRight,
		Style:    WhiteOnDark,
		FontSize: Small,
	}
}

var whitespace = regexp.MustCompile(`\s+`)

// FormatNumber replaces runs of whitespace in raw with hyphens and applies the
// prefix for format. Unknown formats use "DES-".
func FormatNumber(raw string, format Format, customPrefix string) string {
	num := whitespace.ReplaceAllString(raw, "-")
	switch format {
	case FormatDES:
		return "DES-" + num
	case FormatD:
		return "D-" + num
	case FormatPlain:
		return num
	case FormatCustom:
		return customPrefix + num
	default:
		return "DES-" + num
	}
}

// AutoNumber zero-pads counter to four digits. Wider values are kept whole.
func AutoNumber(counter int) string {
	return fmt.Sprintf("%04d", counter)
}

// Resolve returns the formatted design number for cfg, falling back to
// AutoNumber(counter) when no number was entered. It returns "" when the
// overlay is disabled.
func Resolve(cfg Config, counter int) string {
	if !cfg.Enabled {
		return ""
	}
	raw := cfg.Number
	if raw == "" {
		raw = AutoNumber(counter)
	}
	return FormatNumber(raw, cfg.Format, cfg.CustomFormat)
}

// ValidPosition reports whether p is one of the four corners.
func ValidPosition(p Position) bool {
	switch p {
	case TopLeft, TopRight, BottomLeft, BottomRight:
		return true
	}
	return false
}

// ValidStyle reports whether s is a known color scheme.
func ValidStyle(s Style) bool {
	return s == WhiteOnDark || s == BlackOnLight
}

// ValidSize reports whether s is a known text size.
func ValidSize(s Size) bool {
	switch s {
	case Small, Medium, Large:
		return true
	}
	return false
}

// ValidFormat reports whether f is a known format.
func ValidFormat(f Format) bool {
	switch f {
	case FormatDES, FormatD, FormatPlain, FormatCustom:
		return true
	}
	return false
}
