package importer

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// SourceKind tells where the bytes of a job come from.
type SourceKind int

const (
	// SourceFile is a path on the local filesystem.
	SourceFile SourceKind = iota
	// SourceAttachment is an opaque handle resolved through an Opener.
	SourceAttachment
)

func (k SourceKind) String() string {
	if k == SourceAttachment {
		return "attachment"
	}
	return "file"
}

// Opener opens the byte stream behind an attachment handle. It may be called
// more than once per job when the first format variant is rejected.
type Opener interface {
	Open(ctx context.Context, handle string) (io.ReadCloser, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context, handle string) (io.ReadCloser, error)

// Open implements Opener.
func (f OpenerFunc) Open(ctx context.Context, handle string) (io.ReadCloser, error) {
	return f(ctx, handle)
}

// BytesOpener serves an attachment that is already held in memory, such as a
// multipart upload body.
func BytesOpener(data []byte) Opener {
	return OpenerFunc(func(context.Context, string) (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	})
}

// Job is a single import request.
type Job struct {
	ID     string
	Kind   SourceKind
	Path   string // SourceFile
	Handle string // SourceAttachment
	Opener Opener // SourceAttachment
	ListID int

	stage stageTracker
}

// NewFileJob creates a job importing the file at path into list listID.
func NewFileJob(path string, listID int) *Job {
	return &Job{
		ID:     uuid.New().String(),
		Kind:   SourceFile,
		Path:   path,
		ListID: listID,
	}
}

// NewAttachmentJob creates a job importing the attachment behind handle.
func NewAttachmentJob(handle string, opener Opener, listID int) *Job {
	return &Job{
		ID:     uuid.New().String(),
		Kind:   SourceAttachment,
		Handle: handle,
		Opener: opener,
		ListID: listID,
	}
}

// Stage returns the current stage.
func (j *Job) Stage() Stage {
	return j.stage.load()
}

// SourceName is a short name for logs and history.
func (j *Job) SourceName() string {
	if j.Kind == SourceFile {
		return filepath.Base(j.Path)
	}
	return j.Handle
}

// isGPXFile reports whether a file source carries the GPX extension.
func (j *Job) isGPXFile() bool {
	return j.Kind == SourceFile && hasGPXExtension(filepath.Base(j.Path))
}

// isLOCAttachment reports whether an attachment handle carries the LOC
// extension.
func (j *Job) isLOCAttachment() bool {
	return j.Kind == SourceAttachment && strings.HasSuffix(strings.ToLower(j.Handle), LOCFileExtension)
}

func hasGPXExtension(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), GPXFileExtension)
}
