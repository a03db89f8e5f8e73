package importer

import (
	"path/filepath"
)

const (
	// GPXFileExtension is matched case-insensitively.
	GPXFileExtension = ".gpx"
	// LOCFileExtension selects the LOC parser for attachments.
	LOCFileExtension = ".loc"
	// WaypointsFileSuffix replaces the extension of a GPX file to name its
	// waypoint companion: 1234567.gpx -> 1234567-wpts.gpx.
	WaypointsFileSuffix = "-wpts.gpx"
)

// WaypointsFileFor returns the companion waypoints file for a GPX file path.
// Returns false when the name does not end in .gpx or is only the extension.
func WaypointsFileFor(path string) (string, bool) {
	name := filepath.Base(path)
	if !hasGPXExtension(name) || len(name) <= len(GPXFileExtension) {
		return "", false
	}

	base := name[:len(name)-len(GPXFileExtension)]
	return filepath.Join(filepath.Dir(path), base+WaypointsFileSuffix), true
}
