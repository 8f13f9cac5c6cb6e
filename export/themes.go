package export

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// DefaultThemeName is the palette used when a request names no theme.
const DefaultThemeName = "default"

// Theme is a named color palette applied across all output formats. Values
// are 8-hex ARGB strings as the slide renderer consumes them.
type Theme struct {
	Name      string `json:"name"`
	Accent    string `json:"accent"`
	TitleText string `json:"title_text"`
	BodyText  string `json:"body_text"`
	MutedText string `json:"muted_text"`
	BandFill  string `json:"band_fill"`
	ZebraFill string `json:"zebra_fill"`
}

var builtinThemes = []Theme{
	{
		Name:      DefaultThemeName,
		Accent:    "FF3B82F6",
		TitleText: "FF1E40AF",
		BodyText:  "FF334155",
		MutedText: "FF94A3B8",
		BandFill:  "FFF8FAFC",
		ZebraFill: "FFF1F5F9",
	},
	{
		Name:      "midnight",
		Accent:    "FF6366F1",
		TitleText: "FF312E81",
		BodyText:  "FF1E293B",
		MutedText: "FF64748B",
		BandFill:  "FFEEF2FF",
		ZebraFill: "FFE0E7FF",
	},
	{
		Name:      "sunrise",
		Accent:    "FFF59E0B",
		TitleText: "FF92400E",
		BodyText:  "FF44403C",
		MutedText: "FFA8A29E",
		BandFill:  "FFFFFBEB",
		ZebraFill: "FFFEF3C7",
	},
}

// BuiltinThemes returns a fresh name-to-theme map of the built-in palettes.
func BuiltinThemes() map[string]Theme {
	themes := make(map[string]Theme, len(builtinThemes))
	for _, t := range builtinThemes {
		themes[t.Name] = t
	}
	return themes
}

// PickTheme returns the named theme from the map, falling back to the
// default palette when the name is unknown.
func PickTheme(themes map[string]Theme, name string) Theme {
	name = strings.ToLower(strings.TrimSpace(name))
	if t, ok := themes[name]; ok {
		return t
	}
	if t, ok := themes[DefaultThemeName]; ok {
		return t
	}
	return builtinThemes[0]
}

// themeRegistryDoc is the JSON document served by a theme registry.
type themeRegistryDoc struct {
	Themes []Theme `json:"themes"`
}

// ParseThemeRegistry decodes a theme registry document. Entries without a
// name are skipped; color values may be given as RRGGBB, #RRGGBB or
// AARRGGBB and are normalized to ARGB, falling back to the default palette
// for fields that do not parse.
func ParseThemeRegistry(data []byte) ([]Theme, error) {
	var doc themeRegistryDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse theme registry: %w", err)
	}
	if len(doc.Themes) == 0 {
		return nil, fmt.Errorf("theme registry contains no themes")
	}

	base := builtinThemes[0]
	themes := make([]Theme, 0, len(doc.Themes))
	for _, entry := range doc.Themes {
		name := strings.ToLower(strings.TrimSpace(entry.Name))
		if name == "" {
			continue
		}
		themes = append(themes, Theme{
			Name:      name,
			Accent:    normalizeARGB(entry.Accent, base.Accent),
			TitleText: normalizeARGB(entry.TitleText, base.TitleText),
			BodyText:  normalizeARGB(entry.BodyText, base.BodyText),
			MutedText: normalizeARGB(entry.MutedText, base.MutedText),
			BandFill:  normalizeARGB(entry.BandFill, base.BandFill),
			ZebraFill: normalizeARGB(entry.ZebraFill, base.ZebraFill),
		})
	}
	return themes, nil
}

var hexColorPattern = regexp.MustCompile(`^[0-9A-Fa-f]{6}([0-9A-Fa-f]{2})?$`)

// normalizeARGB converts a color value to 8-hex ARGB, returning fallback for
// anything that does not look like a hex color.
func normalizeARGB(value, fallback string) string {
	v := strings.TrimPrefix(strings.TrimSpace(value), "#")
	if !hexColorPattern.MatchString(v) {
		return fallback
	}
	v = strings.ToUpper(v)
	if len(v) == 6 {
		v = "FF" + v
	}
	return v
}

// rgbHex strips the alpha channel for the document libraries that expect
// plain RRGGBB values.
func rgbHex(argb string) string {
	if len(argb) == 8 {
		return argb[2:]
	}
	return argb
}
