package gpx

import (
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/geoimport/internal/geocache"
	"github.com/antchfx/xmlquery"
)

// GPX namespaces.
const (
	NamespaceGPX10 = "http://www.topografix.com/GPX/1/0"
	NamespaceGPX11 = "http://www.topografix.com/GPX/1/1"
)

// GPXParser parses Groundspeak flavoured GPX of a single schema version.
type GPXParser struct {
	format    string
	namespace string
}

// NewGPX10Parser returns the parser for GPX 1.0 pocket queries.
func NewGPX10Parser() *GPXParser {
	return &GPXParser{format: FormatGPX10, namespace: NamespaceGPX10}
}

// NewGPX11Parser returns the parser for GPX 1.1 exports.
func NewGPX11Parser() *GPXParser {
	return &GPXParser{format: FormatGPX11, namespace: NamespaceGPX11}
}

// Format implements Parser.
func (p *GPXParser) Format() string {
	return p.format
}

// Parse implements Parser.
func (p *GPXParser) Parse(r io.Reader, into *Result) error {
	root, err := parseDocument(p.format, r)
	if err != nil {
		return err
	}

	if root.Data != "gpx" || root.NamespaceURI != p.namespace {
		return &ParseError{
			Format: p.format,
			Err:    fmt.Errorf("%w: root <%s> in namespace %q", ErrFormatMismatch, root.Data, root.NamespaceURI),
		}
	}

	for _, wpt := range children(root, "wpt") {
		if err := p.parseWaypoint(wpt, into); err != nil {
			return &ParseError{Format: p.format, Err: err}
		}
	}
	return nil
}

func (p *GPXParser) parseWaypoint(wpt *xmlquery.Node, into *Result) error {
	name := childText(wpt, "name")
	if name == "" {
		return fmt.Errorf("waypoint without name")
	}

	coords, err := parseCoords(wpt)
	if err != nil {
		return fmt.Errorf("waypoint %s: %w", name, err)
	}

	typ := childText(wpt, "type")
	if isAdditionalWaypoint(typ, name) {
		into.attach(parentGeocode(name), geocache.Waypoint{
			Prefix: strings.ToUpper(name[:2]),
			Name:   childText(wpt, "desc"),
			Type:   strings.TrimSpace(strings.TrimPrefix(typ, "Waypoint|")),
			Coords: coords,
			Note:   childText(wpt, "cmt"),
		})
		return nil
	}

	if !geocache.IsGeocode(name) {
		// Plain GPX waypoints (tracks, POIs) are not caches.
		return nil
	}

	c := &geocache.Cache{
		Geocode: name,
		Name:    p.displayName(wpt),
		Type:    geocache.ParseCacheType(typ),
		Size:    geocache.SizeNotChosen,
		Coords:  coords,
		Hidden:  parseTime(childText(wpt, "time")),
		Found:   strings.Contains(strings.ToLower(childText(wpt, "sym")), "found"),
	}

	if gc := p.groundspeakCache(wpt); gc != nil {
		if n := childText(gc, "name"); n != "" {
			c.Name = n
		}
		c.Owner = childText(gc, "placed_by")
		if c.Owner == "" {
			c.Owner = childText(gc, "owner")
		}
		if t := childText(gc, "type"); t != "" {
			c.Type = geocache.ParseCacheType(t)
		}
		c.Size = geocache.ParseCacheSize(childText(gc, "container"))
		c.Difficulty = parseRating(childText(gc, "difficulty"))
		c.Terrain = parseRating(childText(gc, "terrain"))
		c.ShortDescription = childText(gc, "short_description")
		c.Description = childText(gc, "long_description")
		c.Hint = childText(gc, "encoded_hints")
		c.Archived = parseBool(gc.SelectAttr("archived"))
		c.Disabled = !parseBool(gc.SelectAttr("available")) && gc.SelectAttr("available") != ""
	}

	into.add(c)
	return nil
}

// displayName picks the best name available outside the groundspeak
// extension: urlname (1.0), link text (1.1), then desc.
func (p *GPXParser) displayName(wpt *xmlquery.Node) string {
	if n := childText(wpt, "urlname"); n != "" {
		return n
	}
	if link := child(wpt, "link"); link != nil {
		if n := childText(link, "text"); n != "" {
			return n
		}
	}
	return childText(wpt, "desc")
}

// groundspeakCache finds <groundspeak:cache>, either directly under the
// waypoint (GPX 1.0) or inside <extensions> (GPX 1.1).
func (p *GPXParser) groundspeakCache(wpt *xmlquery.Node) *xmlquery.Node {
	if gc := child(wpt, "cache"); gc != nil {
		return gc
	}
	return child(child(wpt, "extensions"), "cache")
}

func isAdditionalWaypoint(typ, name string) bool {
	return strings.HasPrefix(strings.ToLower(typ), "waypoint") && len(name) > 2
}

// parentGeocode derives the owning cache from an additional waypoint name:
// "PK1A2B3" belongs to "GC1A2B3".
func parentGeocode(name string) string {
	return "GC" + strings.ToUpper(name[2:])
}
