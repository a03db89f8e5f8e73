package importer

import (
	"fmt"
	"sync/atomic"
)

// Stage is a step of an import job. Stages only move forward.
type Stage int32

const (
	StagePending Stage = iota
	StageReadFile
	StageReadWaypointFile
	StageStoreCaches
	StageFinished
	StageFinishedWithError
)

var stageNames = map[Stage]string{
	StagePending:           "pending",
	StageReadFile:          "read_file",
	StageReadWaypointFile:  "read_waypoint_file",
	StageStoreCaches:       "store_caches",
	StageFinished:          "finished",
	StageFinishedWithError: "finished_with_error",
}

var stageLabels = map[Stage]string{
	StagePending:           "Waiting for a free import slot",
	StageReadFile:          "Loading caches from file",
	StageReadWaypointFile:  "Loading waypoints file",
	StageStoreCaches:       "Storing caches",
	StageFinished:          "Caches imported",
	StageFinishedWithError: "Import failed",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int32(s))
}

// Label is the human-readable description shown while the stage runs.
func (s Stage) Label() string {
	return stageLabels[s]
}

// Terminal reports whether the job is done.
func (s Stage) Terminal() bool {
	return s == StageFinished || s == StageFinishedWithError
}

// MarshalText encodes the stage by name for JSON payloads.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// stageTracker holds the current stage of a job and enforces forward-only
// transitions. It is read concurrently by status queries.
type stageTracker struct {
	v atomic.Int32
}

func (t *stageTracker) load() Stage {
	return Stage(t.v.Load())
}

// advance moves to next. ReadWaypointFile may be skipped and a job can fail
// from any non-terminal stage, but a stage is never re-entered.
func (t *stageTracker) advance(next Stage) error {
	for {
		cur := t.load()
		if cur.Terminal() || next <= cur {
			return fmt.Errorf("invalid stage transition %s -> %s", cur, next)
		}
		if t.v.CompareAndSwap(int32(cur), int32(next)) {
			return nil
		}
	}
}
