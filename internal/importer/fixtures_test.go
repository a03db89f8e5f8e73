package importer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/JonMunkholm/geoimport/internal/geocache"
	"github.com/stretchr/testify/require"
)

const pocketQuery10 = `<?xml version="1.0" encoding="utf-8"?>
<gpx xmlns="http://www.topografix.com/GPX/1/0" version="1.0" creator="Groundspeak Pocket Query">
  <wpt lat="49.317517" lon="8.545083">
    <time>2009-11-21T08:00:00Z</time>
    <name>GC1BKP3</name>
    <urlname>Die Schatzinsel / treasure island</urlname>
    <sym>Geocache</sym>
    <type>Geocache|Traditional Cache</type>
    <groundspeak:cache id="1155587" available="True" archived="False" xmlns:groundspeak="http://www.groundspeak.com/cache/1/0">
      <groundspeak:name>Die Schatzinsel / treasure island</groundspeak:name>
      <groundspeak:placed_by>Die unbesiegbaren Geo - Geparden</groundspeak:placed_by>
      <groundspeak:container>Micro</groundspeak:container>
      <groundspeak:difficulty>1</groundspeak:difficulty>
      <groundspeak:terrain>5</groundspeak:terrain>
    </groundspeak:cache>
  </wpt>
  <wpt lat="49.3" lon="8.5">
    <name>GC2ABCD</name>
    <urlname>Second</urlname>
    <type>Geocache|Multi-cache</type>
  </wpt>
</gpx>`

const pocketQuery10Waypoints = `<?xml version="1.0" encoding="utf-8"?>
<gpx xmlns="http://www.topografix.com/GPX/1/0" version="1.0">
  <wpt lat="49.31" lon="8.54">
    <name>PK1BKP3</name>
    <desc>Parking Area</desc>
    <type>Waypoint|Parking Area</type>
  </wpt>
  <wpt lat="10" lon="10">
    <name>S1ZZZZZ</name>
    <type>Waypoint|Stages of a Multicache</type>
  </wpt>
</gpx>`

const pocketQuery11 = `<?xml version="1.0" encoding="utf-8"?>
<gpx xmlns="http://www.topografix.com/GPX/1/1" version="1.1" creator="Groundspeak">
  <wpt lat="48.85" lon="2.35">
    <name>GC3XYZ1</name>
    <desc>Eleven</desc>
    <type>Geocache|Unknown Cache</type>
    <extensions>
      <groundspeak:cache available="True" archived="False" xmlns:groundspeak="http://www.groundspeak.com/cache/1/0/1">
        <groundspeak:owner>Someone</groundspeak:owner>
        <groundspeak:container>Small</groundspeak:container>
      </groundspeak:cache>
    </extensions>
  </wpt>
</gpx>`

const locFile = `<?xml version="1.0" encoding="UTF-8"?>
<loc version="1.0" src="Groundspeak">
  <waypoint>
    <name id="GC1BKP3"><![CDATA[Die Schatzinsel by Geparden]]></name>
    <coord lat="49.317517" lon="8.545083"/>
    <type>Geocache</type>
    <container>2</container>
  </waypoint>
</loc>`

const notGeocaches = `<?xml version="1.0"?><kml xmlns="http://www.opengis.net/kml/2.2"><Document/></kml>`

// writeFile creates name with content in dir and returns its path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// spyStore records every call and can be told to fail.
type spyStore struct {
	mu      sync.Mutex
	ops     []string
	saved   map[string]geocache.Cache
	saveErr error
	panicOn string
	gate    chan struct{}
}

func newSpyStore() *spyStore {
	return &spyStore{saved: make(map[string]geocache.Cache)}
}

func (s *spyStore) RemoveCache(_ context.Context, geocode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, "remove "+geocode)
	delete(s.saved, geocode)
	return nil
}

func (s *spyStore) SaveCache(ctx context.Context, c geocache.Cache) error {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.panicOn != "" && c.Geocode == s.panicOn {
		panic("store exploded")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, "save "+c.Geocode)
	if s.saveErr != nil {
		return s.saveErr
	}
	if _, ok := s.saved[c.Geocode]; ok {
		return errors.New("duplicate " + c.Geocode)
	}
	s.saved[c.Geocode] = c
	return nil
}

func (s *spyStore) Ops() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ops...)
}

func (s *spyStore) Saved(geocode string) (geocache.Cache, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.saved[geocode]
	return c, ok
}
