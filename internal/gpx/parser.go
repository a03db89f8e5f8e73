// Package gpx parses geocache exports (Groundspeak GPX 1.0/1.1 and LOC)
// into geocache records.
//
// Parsers are stateless; everything they produce is accumulated in a
// [Result]. Feeding a second document into the same Result merges it, which
// is how a "-wpts.gpx" companion file attaches additional waypoints to the
// caches read from the main file.
package gpx

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/geoimport/internal/geocache"
	"github.com/antchfx/xmlquery"
)

// Format names of the built-in parsers.
const (
	FormatGPX10 = "gpx10"
	FormatGPX11 = "gpx11"
	FormatLOC   = "loc"
)

// ErrFormatMismatch is wrapped by a ParseError when the document is well
// formed but is not the format the parser handles (wrong root element or
// namespace).
var ErrFormatMismatch = errors.New("format mismatch")

// ParseError reports that a document could not be interpreted by a parser.
// Read failures of the underlying stream are never ParseErrors.
type ParseError struct {
	Format string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Format, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsFormatMismatch reports whether err is a ParseError caused by the document
// being a different format.
func IsFormatMismatch(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe) && errors.Is(pe.Err, ErrFormatMismatch)
}

// Parser reads one document and merges the records it contains into a Result.
type Parser interface {
	Format() string
	Parse(r io.Reader, into *Result) error
}

// Result accumulates caches across one or more Parse calls, keyed by geocode.
type Result struct {
	listID int
	caches map[string]*geocache.Cache
	order  []string

	// waypoints whose parent cache was not (yet) seen
	orphans int
}

// NewResult creates an empty Result. Every cache added gets listID.
func NewResult(listID int) *Result {
	return &Result{
		listID: listID,
		caches: make(map[string]*geocache.Cache),
	}
}

// Len returns the number of distinct caches.
func (r *Result) Len() int {
	return len(r.order)
}

// Orphans returns how many additional waypoints had no matching cache.
func (r *Result) Orphans() int {
	return r.orphans
}

// Caches returns the caches in first-seen order.
func (r *Result) Caches() []geocache.Cache {
	out := make([]geocache.Cache, 0, len(r.order))
	for _, code := range r.order {
		out = append(out, *r.caches[code])
	}
	return out
}

// Get returns the cache with the given geocode.
func (r *Result) Get(geocode string) (geocache.Cache, bool) {
	c, ok := r.caches[geocache.NormalizeGeocode(geocode)]
	if !ok {
		return geocache.Cache{}, false
	}
	return *c, true
}

// add inserts c, replacing an earlier cache with the same geocode but keeping
// its position and any waypoints already attached.
func (r *Result) add(c *geocache.Cache) {
	c.Geocode = geocache.NormalizeGeocode(c.Geocode)
	c.ListID = r.listID

	if prev, ok := r.caches[c.Geocode]; ok {
		if len(c.Waypoints) == 0 {
			c.Waypoints = prev.Waypoints
		}
		r.caches[c.Geocode] = c
		return
	}

	r.caches[c.Geocode] = c
	r.order = append(r.order, c.Geocode)
}

// attach adds wp to the cache with geocode parent.
func (r *Result) attach(parent string, wp geocache.Waypoint) bool {
	c, ok := r.caches[geocache.NormalizeGeocode(parent)]
	if !ok {
		r.orphans++
		return false
	}
	for i, existing := range c.Waypoints {
		if existing.Prefix == wp.Prefix {
			c.Waypoints[i] = wp
			return true
		}
	}
	c.Waypoints = append(c.Waypoints, wp)
	return true
}

// errTrackingReader remembers the first read error of the wrapped reader so a
// broken stream can be told apart from broken XML.
type errTrackingReader struct {
	r   io.Reader
	err error
}

func (t *errTrackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF && t.err == nil {
		t.err = err
	}
	return n, err
}

// parseDocument parses r and returns its root element. Stream failures are
// returned as-is; XML syntax failures become a ParseError.
func parseDocument(format string, r io.Reader) (*xmlquery.Node, error) {
	tr := &errTrackingReader{r: r}

	doc, err := xmlquery.Parse(tr)
	if tr.err != nil {
		return nil, tr.err
	}
	if err != nil {
		return nil, &ParseError{Format: format, Err: err}
	}

	root := firstElement(doc)
	if root == nil {
		return nil, &ParseError{Format: format, Err: fmt.Errorf("%w: empty document", ErrFormatMismatch)}
	}
	return root, nil
}

func firstElement(n *xmlquery.Node) *xmlquery.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			return c
		}
	}
	return nil
}

// children returns direct child elements with the given local name,
// regardless of namespace prefix.
func children(n *xmlquery.Node, local string) []*xmlquery.Node {
	var out []*xmlquery.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode && c.Data == local {
			out = append(out, c)
		}
	}
	return out
}

func child(n *xmlquery.Node, local string) *xmlquery.Node {
	if n == nil {
		return nil
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode && c.Data == local {
			return c
		}
	}
	return nil
}

func childText(n *xmlquery.Node, local string) string {
	c := child(n, local)
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.InnerText())
}

func parseCoords(n *xmlquery.Node) (geocache.Coords, error) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(n.SelectAttr("lat")), 64)
	if err != nil {
		return geocache.Coords{}, fmt.Errorf("invalid latitude %q", n.SelectAttr("lat"))
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(n.SelectAttr("lon")), 64)
	if err != nil {
		return geocache.Coords{}, fmt.Errorf("invalid longitude %q", n.SelectAttr("lon"))
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return geocache.Coords{}, fmt.Errorf("coordinates out of range: %v,%v", lat, lon)
	}
	return geocache.Coords{Lat: lat, Lon: lon}, nil
}

// parseRating parses difficulty/terrain values; invalid values become 0.
func parseRating(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 0 || f > 5 {
		return 0
	}
	return f
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func parseBool(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "true")
}
