package recorder

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// maxLineSize bounds a single record.
const maxLineSize = 4 * 1024 * 1024

// Source yields records in order and io.EOF at the end.
type Source interface {
	Next() (Record, error)
}

// Reader decodes a session log.
type Reader struct {
	sc     *bufio.Scanner
	line   int
	header Header
}

// NewReader reads the header line and returns a Reader positioned at the
// first input record.
func NewReader(r io.Reader) (*Reader, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	rd := &Reader{sc: sc}
	rec, err := rd.next()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty session log")
	}
	if err != nil {
		return nil, err
	}
	if rec.Kind != KindHeader {
		return nil, fmt.Errorf("line %d: expected header, got %q", rd.line, rec.Kind)
	}
	if rec.Header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported session log version %d", rec.Header.Version)
	}
	rd.header = *rec.Header
	return rd, nil
}

// Header returns the session header.
func (r *Reader) Header() Header { return r.header }

// Next returns the next input record, or io.EOF.
func (r *Reader) Next() (Record, error) {
	rec, err := r.next()
	if err != nil {
		return Record{}, err
	}
	if rec.Kind == KindHeader {
		return Record{}, fmt.Errorf("line %d: unexpected second header", r.line)
	}
	return rec, nil
}

func (r *Reader) next() (Record, error) {
	for r.sc.Scan() {
		r.line++
		b := r.sc.Bytes()
		if len(b) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(b, &rec); err != nil {
			return Record{}, fmt.Errorf("line %d: failed to parse record: %w", r.line, err)
		}
		if err := rec.Validate(); err != nil {
			return Record{}, fmt.Errorf("line %d: %w", r.line, err)
		}
		return rec, nil
	}
	if err := r.sc.Err(); err != nil {
		return Record{}, fmt.Errorf("read session log: %w", err)
	}
	return Record{}, io.EOF
}

// ReadAll reads every remaining record.
func (r *Reader) ReadAll() ([]Record, error) {
	var out []Record
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}

// ReadFile loads a session log from disk.
func ReadFile(path string) (Header, []Record, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return Header{}, nil, fmt.Errorf("failed to open session log: %w", err)
	}
	defer f.Close()
	rd, err := NewReader(f)
	if err != nil {
		return Header{}, nil, fmt.Errorf("%s: %w", path, err)
	}
	recs, err := rd.ReadAll()
	if err != nil {
		return Header{}, nil, fmt.Errorf("%s: %w", path, err)
	}
	return rd.Header(), recs, nil
}

// SliceSource serves records from memory.
type SliceSource struct {
	records []Record
	pos     int
}

// NewSliceSource returns a Source over records.
func NewSliceSource(records []Record) *SliceSource {
	return &SliceSource{records: records}
}

// Next returns the next record, or io.EOF.
func (s *SliceSource) Next() (Record, error) {
	if s.pos >= len(s.records) {
		return Record{}, io.EOF
	}
	rec := s.records[s.pos]
	s.pos++
	return rec, nil
}
