// Package geocache holds the record types produced by the file parsers and
// persisted by the cache store.
package geocache

import (
	"strings"
	"time"
)

// CacheType is the geocache category as published by geocaching.com.
type CacheType string

const (
	TypeTraditional CacheType = "traditional"
	TypeMulti       CacheType = "multi"
	TypeMystery     CacheType = "mystery"
	TypeLetterbox   CacheType = "letterbox"
	TypeEvent       CacheType = "event"
	TypeEarth       CacheType = "earth"
	TypeVirtual     CacheType = "virtual"
	TypeWebcam      CacheType = "webcam"
	TypeWherigo     CacheType = "wherigo"
	TypeUnknown     CacheType = "unknown"
)

var cacheTypePatterns = []struct {
	pattern string
	typ     CacheType
}{
	{"traditional", TypeTraditional},
	{"multi", TypeMulti},
	{"unknown", TypeMystery},
	{"mystery", TypeMystery},
	{"letterbox", TypeLetterbox},
	{"event", TypeEvent},
	{"earthcache", TypeEarth},
	{"virtual", TypeVirtual},
	{"webcam", TypeWebcam},
	{"wherigo", TypeWherigo},
}

// ParseCacheType maps free-form type strings ("Geocache|Traditional Cache",
// "Multi-cache", "Unknown Cache") to a CacheType.
func ParseCacheType(s string) CacheType {
	s = strings.ToLower(s)
	for _, p := range cacheTypePatterns {
		if strings.Contains(s, p.pattern) {
			return p.typ
		}
	}
	return TypeUnknown
}

// CacheSize is the container size.
type CacheSize string

const (
	SizeNotChosen CacheSize = "not_chosen"
	SizeMicro     CacheSize = "micro"
	SizeSmall     CacheSize = "small"
	SizeRegular   CacheSize = "regular"
	SizeLarge     CacheSize = "large"
	SizeVirtual   CacheSize = "virtual"
	SizeOther     CacheSize = "other"
)

// ParseCacheSize maps a container label to a CacheSize.
func ParseCacheSize(s string) CacheSize {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "micro":
		return SizeMicro
	case "small":
		return SizeSmall
	case "regular", "medium":
		return SizeRegular
	case "large":
		return SizeLarge
	case "virtual":
		return SizeVirtual
	case "other":
		return SizeOther
	default:
		return SizeNotChosen
	}
}

// Coords is a WGS84 position.
type Coords struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Waypoint is an additional point belonging to a cache (parking, stages,
// final location).
type Waypoint struct {
	Prefix string `json:"prefix"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Coords Coords `json:"coords"`
	Note   string `json:"note,omitempty"`
}

// Cache is a single geocache record.
type Cache struct {
	Geocode          string     `json:"geocode"`
	Name             string     `json:"name"`
	Owner            string     `json:"owner,omitempty"`
	Type             CacheType  `json:"type"`
	Size             CacheSize  `json:"size"`
	Difficulty       float64    `json:"difficulty"`
	Terrain          float64    `json:"terrain"`
	Coords           Coords     `json:"coords"`
	Hint             string     `json:"hint,omitempty"`
	ShortDescription string     `json:"shortDescription,omitempty"`
	Description      string     `json:"description,omitempty"`
	Hidden           time.Time  `json:"hidden,omitempty"`
	Archived         bool       `json:"archived"`
	Disabled         bool       `json:"disabled"`
	Found            bool       `json:"found"`
	ListID           int        `json:"listId"`
	Waypoints        []Waypoint `json:"waypoints,omitempty"`
}

// NormalizeGeocode upper-cases and trims a geocode so lookups are stable.
func NormalizeGeocode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsGeocode reports whether code looks like a geocaching.com code ("GC1A2B3").
func IsGeocode(code string) bool {
	code = NormalizeGeocode(code)
	if len(code) < 3 || !strings.HasPrefix(code, "GC") {
		return false
	}
	for _, r := range code[2:] {
		if (r < '0' || r > '9') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}
