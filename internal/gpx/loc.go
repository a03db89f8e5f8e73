package gpx

import (
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/geoimport/internal/geocache"
)

// LOCParser parses geocaching.com LOC files.
type LOCParser struct{}

// NewLOCParser returns a LOC parser.
func NewLOCParser() *LOCParser {
	return &LOCParser{}
}

// Format implements Parser.
func (p *LOCParser) Format() string {
	return FormatLOC
}

// Parse implements Parser.
func (p *LOCParser) Parse(r io.Reader, into *Result) error {
	root, err := parseDocument(FormatLOC, r)
	if err != nil {
		return err
	}
	if root.Data != "loc" {
		return &ParseError{Format: FormatLOC, Err: fmt.Errorf("%w: root <%s>", ErrFormatMismatch, root.Data)}
	}

	for _, wpt := range children(root, "waypoint") {
		nameNode := child(wpt, "name")
		if nameNode == nil {
			return &ParseError{Format: FormatLOC, Err: fmt.Errorf("waypoint without name")}
		}
		code := strings.TrimSpace(nameNode.SelectAttr("id"))
		if !geocache.IsGeocode(code) {
			continue
		}

		coordNode := child(wpt, "coord")
		if coordNode == nil {
			return &ParseError{Format: FormatLOC, Err: fmt.Errorf("waypoint %s: missing coord", code)}
		}
		coords, err := parseCoords(coordNode)
		if err != nil {
			return &ParseError{Format: FormatLOC, Err: fmt.Errorf("waypoint %s: %w", code, err)}
		}

		name, owner := splitNameOwner(strings.TrimSpace(nameNode.InnerText()))
		into.add(&geocache.Cache{
			Geocode:    code,
			Name:       name,
			Owner:      owner,
			Type:       geocache.ParseCacheType(childText(wpt, "type")),
			Size:       locContainer(childText(wpt, "container")),
			Difficulty: parseRating(childText(wpt, "difficulty")),
			Terrain:    parseRating(childText(wpt, "terrain")),
			Coords:     coords,
		})
	}
	return nil
}

// splitNameOwner splits "Cache Name by Owner".
func splitNameOwner(s string) (string, string) {
	if i := strings.LastIndex(s, " by "); i > 0 {
		return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+4:])
	}
	return s, ""
}

// locContainer maps geocaching.com numeric container ids.
func locContainer(s string) geocache.CacheSize {
	switch strings.TrimSpace(s) {
	case "2":
		return geocache.SizeMicro
	case "3":
		return geocache.SizeRegular
	case "4":
		return geocache.SizeLarge
	case "5":
		return geocache.SizeVirtual
	case "6":
		return geocache.SizeOther
	case "8":
		return geocache.SizeSmall
	default:
		return geocache.SizeNotChosen
	}
}
