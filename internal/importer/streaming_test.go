package importer

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestBOMSkippingReader(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{
			name:     "file with BOM",
			input:    append([]byte{0xEF, 0xBB, 0xBF}, []byte("<gpx/>")...),
			expected: "<gpx/>",
		},
		{
			name:     "file without BOM",
			input:    []byte("<gpx/>"),
			expected: "<gpx/>",
		},
		{
			name:     "empty file",
			input:    []byte{},
			expected: "",
		},
		{
			name:     "only BOM",
			input:    []byte{0xEF, 0xBB, 0xBF},
			expected: "",
		},
		{
			name:     "partial BOM at start",
			input:    []byte{0xEF, 0xBB, 'a', 'b', 'c'},
			expected: string([]byte{0xEF, 0xBB, 'a', 'b', 'c'}),
		},
		{
			name:     "shorter than BOM",
			input:    []byte("<a"),
			expected: "<a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := NewBOMSkippingReader(bytes.NewReader(tt.input))
			result, err := io.ReadAll(reader)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(result) != tt.expected {
				t.Errorf("got %q, want %q", string(result), tt.expected)
			}
		})
	}
}

func TestBOMSkippingReader_PropagatesError(t *testing.T) {
	boom := errors.New("disk gone")
	reader := NewBOMSkippingReader(io.MultiReader(strings.NewReader("ab"), errReader{boom}))

	_, err := io.ReadAll(reader)
	if !errors.Is(err, boom) {
		t.Errorf("got %v, want %v", err, boom)
	}
}

func TestProgressReader_ReportsIntervalsAndEOF(t *testing.T) {
	prev := ProgressByteInterval
	ProgressByteInterval = 10
	defer func() { ProgressByteInterval = prev }()

	data := strings.Repeat("x", 25)
	var ticks []int64
	reader := NewProgressReader(strings.NewReader(data), int64(len(data)), func(n int64) {
		ticks = append(ticks, n)
	})

	buf := make([]byte, 5)
	for {
		_, err := reader.Read(buf)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
	}

	want := []int64{10, 20, 25}
	if len(ticks) != len(want) {
		t.Fatalf("ticks = %v, want %v", ticks, want)
	}
	for i := range want {
		if ticks[i] != want[i] {
			t.Errorf("tick %d = %d, want %d", i, ticks[i], want[i])
		}
	}
	if reader.BytesRead != reader.Total {
		t.Errorf("BytesRead = %d, want %d", reader.BytesRead, reader.Total)
	}
}

func TestProgressReader_UnknownTotal(t *testing.T) {
	reader := NewProgressReader(strings.NewReader("abc"), -1, nil)
	if _, err := io.ReadAll(reader); err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if reader.BytesRead != 3 {
		t.Errorf("BytesRead = %d, want 3", reader.BytesRead)
	}
}

func TestWrapForStreaming_BOMNotCounted(t *testing.T) {
	input := append([]byte{0xEF, 0xBB, 0xBF}, []byte("hello")...)
	reader := WrapForStreaming(bytes.NewReader(input), int64(len(input)), nil)

	out, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(out) != "hello" {
		t.Errorf("got %q, want %q", out, "hello")
	}
	if reader.BytesRead != 5 {
		t.Errorf("BytesRead = %d, want 5", reader.BytesRead)
	}
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }
