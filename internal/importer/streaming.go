package importer

// streaming.go provides the reader stack every import source passes through
// before it reaches a parser:
//
//   - BOMSkippingReader: Removes the UTF-8 BOM that some exporters prepend
//   - ProgressReader: Counts bytes and reports them as progress ticks
//
// Use WrapForStreaming to apply both in the correct order.

import (
	"io"
)

// ProgressByteInterval is how many bytes are read between progress ticks.
var ProgressByteInterval int64 = 32 * 1024

var utf8BOM = [3]byte{0xEF, 0xBB, 0xBF}

// BOMSkippingReader wraps an io.Reader and skips the UTF-8 BOM if present.
type BOMSkippingReader struct {
	reader     io.Reader
	bomChecked bool
	pending    []byte
}

// NewBOMSkippingReader creates a new BOM-skipping reader.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{reader: r}
}

// Read implements io.Reader. On the first read, it checks for and skips the BOM.
func (r *BOMSkippingReader) Read(p []byte) (int, error) {
	if !r.bomChecked {
		r.bomChecked = true

		var head [3]byte
		n, err := io.ReadFull(r.reader, head[:])
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		if err != nil && err != io.EOF {
			return 0, err
		}

		if n < 3 || head != utf8BOM {
			r.pending = append(r.pending, head[:n]...)
		}
		if err == io.EOF && len(r.pending) == 0 {
			return 0, io.EOF
		}
	}

	// Return any remaining buffered data first
	if len(r.pending) > 0 {
		n := copy(p, r.pending)
		r.pending = r.pending[n:]
		return n, nil
	}

	return r.reader.Read(p)
}

// ProgressReader wraps an io.Reader, tracks bytes read and calls report every
// ProgressByteInterval bytes and once more at EOF.
type ProgressReader struct {
	reader     io.Reader
	BytesRead  int64
	Total      int64 // -1 if unknown
	report     func(int64)
	lastReport int64
}

// NewProgressReader creates a progress reader. report may be nil.
func NewProgressReader(r io.Reader, total int64, report func(int64)) *ProgressReader {
	return &ProgressReader{
		reader: r,
		Total:  total,
		report: report,
	}
}

// Read implements io.Reader.
func (r *ProgressReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)

	if r.report != nil {
		if r.BytesRead-r.lastReport >= ProgressByteInterval || (err == io.EOF && r.BytesRead > r.lastReport) {
			r.lastReport = r.BytesRead
			r.report(r.BytesRead)
		}
	}
	return n, err
}

// WrapForStreaming wraps a reader with BOM skipping and progress counting.
//
// The BOM is stripped first so it does not count as progress.
func WrapForStreaming(r io.Reader, totalSize int64, report func(int64)) *ProgressReader {
	return NewProgressReader(NewBOMSkippingReader(r), totalSize, report)
}
