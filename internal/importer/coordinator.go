package importer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"github.com/JonMunkholm/geoimport/internal/geocache"
	"github.com/JonMunkholm/geoimport/internal/gpx"
	"github.com/JonMunkholm/geoimport/internal/logging"
)

// Store persists imported caches. A re-imported cache is removed before it is
// saved again, so implementations never see a Save for a geocode they
// already hold. The coordinator serializes the pair per geocode across the
// jobs it runs.
type Store interface {
	RemoveCache(ctx context.Context, geocode string) error
	SaveCache(ctx context.Context, c geocache.Cache) error
}

// Summary is the outcome of a successful job.
type Summary struct {
	JobID    string        `json:"jobId"`
	Source   string        `json:"source"`
	ListID   int           `json:"listId"`
	Format   string        `json:"format"`
	Stored   int           `json:"stored"`
	Orphans  int           `json:"orphanWaypoints,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Coordinator runs import jobs: parse, optionally merge the waypoints file,
// then store every cache.
type Coordinator struct {
	store   Store
	pending *keyLock
}

// NewCoordinator creates a coordinator writing to store.
func NewCoordinator(store Store) *Coordinator {
	return &Coordinator{store: store, pending: newKeyLock()}
}

// variants returns the parser to try first and the one to fall back to.
// GPX files and attachments try GPX 1.0 then 1.1, except attachments named
// *.loc. Other files are LOC.
func variants(job *Job) (gpx.Parser, gpx.Parser) {
	if job.isLOCAttachment() {
		return gpx.MustGet(gpx.FormatLOC), nil
	}
	if job.Kind == SourceAttachment || job.isGPXFile() {
		return gpx.MustGet(gpx.FormatGPX10), gpx.MustGet(gpx.FormatGPX11)
	}
	return gpx.MustGet(gpx.FormatLOC), nil
}

// Run executes job synchronously on the calling goroutine and reports to l.
// The returned error is always an *ImportError.
func (c *Coordinator) Run(ctx context.Context, job *Job, l Listener) (Summary, error) {
	if l == nil {
		l = NopListener{}
	}
	start := time.Now()
	ctx = logging.ContextWithJobID(ctx, job.ID)
	logger := logging.WithFields(ctx, "source", job.SourceName(), "kind", job.Kind.String(), "list_id", job.ListID)

	summary := Summary{JobID: job.ID, Source: job.SourceName(), ListID: job.ListID}

	err := c.run(ctx, job, l, logger, &summary)
	summary.Duration = time.Since(start)

	if err != nil {
		ie := AsImportError(err)
		switch ie.Kind {
		case KindIO:
			logger.Info("importing caches failed - error reading data", "error", ie.Err)
		case KindFormat:
			logger.Info("importing caches failed - data format error", "error", ie.Err)
		default:
			args := []any{"error", ie.Err}
			if len(ie.Stack) > 0 {
				args = append(args, "stack", string(ie.Stack))
			}
			logger.Error("importing caches failed - unknown error", args...)
		}

		_ = job.stage.advance(StageFinishedWithError)
		l.FinishedWithError(ie.Message())
		return summary, ie
	}

	if err := job.stage.advance(StageFinished); err != nil {
		logger.Warn("stage transition rejected", "error", err)
	}
	logger.Info("imported caches successfully",
		"stored", summary.Stored,
		"format", summary.Format,
		"duration_ms", summary.Duration.Milliseconds(),
	)
	l.Finished(summary.Stored)
	return summary, nil
}

// run does the work of Run. Panics from parsers or the store are recovered
// as unexpected errors.
func (c *Coordinator) run(ctx context.Context, job *Job, l Listener, logger *slog.Logger, summary *Summary) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ImportError{Kind: KindUnexpected, Err: fmt.Errorf("panic: %v", r), Stack: debug.Stack()}
		}
	}()

	res, parser, err := c.read(ctx, job, l, logger)
	if err != nil {
		return err
	}
	summary.Format = parser.Format()
	summary.Orphans = res.Orphans()

	stored, err := c.storeAll(ctx, job, res.Caches(), l)
	summary.Stored = stored
	return err
}

// read runs the read stages and returns the merged result together with the
// parser variant that accepted the main source.
func (c *Coordinator) read(ctx context.Context, job *Job, l Listener, logger *slog.Logger) (*gpx.Result, gpx.Parser, error) {
	if err := c.enter(job, l, StageReadFile, c.sourceSize(job)); err != nil {
		return nil, nil, err
	}

	primary, alternate := variants(job)
	parser := primary
	res := gpx.NewResult(job.ListID)

	err := c.parseSource(ctx, job, parser, res, l)
	if err != nil && alternate != nil && isFormatError(err) {
		logger.Debug("primary format rejected, trying alternate",
			"primary", primary.Format(),
			"alternate", alternate.Format(),
			"error", err,
		)
		parser = alternate
		res = gpx.NewResult(job.ListID)
		err = c.parseSource(ctx, job, parser, res, l)
	}
	if err != nil {
		return nil, nil, classifyRead(err)
	}

	if !job.isGPXFile() {
		return res, parser, nil
	}

	wpts, ok := WaypointsFileFor(job.Path)
	if !ok {
		return res, parser, nil
	}
	f, size, err := openFile(wpts)
	if err != nil {
		// Missing or unreadable companions are skipped.
		return res, parser, nil
	}
	defer f.Close()

	logger.Info("import GPX waypoint file", "path", wpts)
	if err := c.enter(job, l, StageReadWaypointFile, size); err != nil {
		return nil, nil, err
	}
	if err := parser.Parse(WrapForStreaming(f, size, l.Progress), res); err != nil {
		return nil, nil, classifyRead(fmt.Errorf("%s: %w", wpts, err))
	}
	return res, parser, nil
}

// parseSource opens the job's source, feeds it to p and closes it again.
func (c *Coordinator) parseSource(ctx context.Context, job *Job, p gpx.Parser, res *gpx.Result, l Listener) error {
	var (
		rc   io.ReadCloser
		size int64 = -1
		err  error
	)
	switch job.Kind {
	case SourceFile:
		rc, size, err = openFile(job.Path)
	case SourceAttachment:
		if job.Opener == nil {
			return unexpectedError(fmt.Errorf("attachment %q has no opener", job.Handle))
		}
		rc, err = job.Opener.Open(ctx, job.Handle)
	default:
		return unexpectedError(fmt.Errorf("unknown source kind %d", job.Kind))
	}
	if err != nil {
		return ioError(err)
	}
	defer rc.Close()

	return p.Parse(WrapForStreaming(rc, size, l.Progress), res)
}

// storeAll replaces every cache in the store, ticking once per cache.
func (c *Coordinator) storeAll(ctx context.Context, job *Job, caches []geocache.Cache, l Listener) (int, error) {
	if err := c.enter(job, l, StageStoreCaches, int64(len(caches))); err != nil {
		return 0, err
	}

	stored := 0
	for _, cache := range caches {
		if err := c.replace(ctx, cache); err != nil {
			return stored, err
		}
		stored++
		l.Progress(int64(stored))
	}
	return stored, nil
}

// replace removes and saves one cache while holding its geocode, so a
// concurrent job importing the same cache cannot save in between.
func (c *Coordinator) replace(ctx context.Context, cache geocache.Cache) error {
	unlock := c.pending.Lock(cache.Geocode)
	defer unlock()

	if err := c.store.RemoveCache(ctx, cache.Geocode); err != nil {
		return unexpectedError(fmt.Errorf("remove %s: %w", cache.Geocode, err))
	}
	if err := c.store.SaveCache(ctx, cache); err != nil {
		return unexpectedError(fmt.Errorf("save %s: %w", cache.Geocode, err))
	}
	return nil
}

func (c *Coordinator) enter(job *Job, l Listener, stage Stage, total int64) error {
	if err := job.stage.advance(stage); err != nil {
		return unexpectedError(err)
	}
	l.StageStarted(stage, stage.Label(), total)
	return nil
}

func (c *Coordinator) sourceSize(job *Job) int64 {
	if job.Kind != SourceFile {
		return -1
	}
	info, err := os.Stat(job.Path)
	if err != nil {
		return -1
	}
	return info.Size()
}

func openFile(path string) (*os.File, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	if info.IsDir() {
		f.Close()
		return nil, 0, fmt.Errorf("%s is a directory", path)
	}
	return f, info.Size(), nil
}
