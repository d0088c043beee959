package recorder

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/banshee-data/palmreject/internal/touch"
)

// Writer appends records to a session log. It is safe for concurrent use.
type Writer struct {
	mu     sync.Mutex
	bw     *bufio.Writer
	enc    *json.Encoder
	closer io.Closer
	closed bool
	header Header
	count  int
}

// NewWriter writes h as the header record and returns a Writer. An empty
// SessionID is filled with a new UUID. If w is an io.Closer, Close closes
// it.
func NewWriter(w io.Writer, h Header) (*Writer, error) {
	if h.SessionID == "" {
		h.SessionID = uuid.NewString()
	}
	h.Version = FormatVersion
	bw := bufio.NewWriter(w)
	wr := &Writer{bw: bw, enc: json.NewEncoder(bw), header: h}
	if c, ok := w.(io.Closer); ok {
		wr.closer = c
	}
	if err := wr.enc.Encode(Record{Kind: KindHeader, Header: &h}); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	return wr, nil
}

// Header returns the header as written.
func (w *Writer) Header() Header { return w.header }

// Count returns the number of records written after the header.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Write appends rec.
func (w *Writer) Write(rec Record) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}
	if rec.Kind == KindHeader {
		return fmt.Errorf("invalid record: header after start of log")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("write %s record: %w", rec.Kind, err)
	}
	w.count++
	return nil
}

// Contacts appends a contact batch.
func (w *Writer) Contacts(batch []touch.ContactSnapshot) error {
	return w.Write(ContactsRecord(batch))
}

// Switch appends a switch event.
func (w *Writer) Switch(ev touch.SwitchEvent) error {
	return w.Write(SwitchRecord(ev))
}

// Connect appends a stylus connection at t.
func (w *Writer) Connect(t float64) error {
	return w.Write(Record{Kind: KindConnect, T: t})
}

// Disconnect appends a stylus disconnection at t.
func (w *Writer) Disconnect(t float64) error {
	return w.Write(Record{Kind: KindDisconnect, T: t})
}

// Remove appends an application removal of contact id at t.
func (w *Writer) Remove(t float64, id touch.ContactID) error {
	return w.Write(Record{Kind: KindRemove, T: t, ContactID: int64(id)})
}

// Advance appends a bare time advance.
func (w *Writer) Advance(t float64) error {
	return w.Write(Record{Kind: KindAdvance, T: t})
}

// Flush writes buffered records to the underlying writer.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	return w.bw.Flush()
}

// Close flushes and, when the underlying writer is a Closer, closes it.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	w.closed = true
	if err := w.bw.Flush(); err != nil {
		return fmt.Errorf("flush session log: %w", err)
	}
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

// WriteSession writes a complete session.
func WriteSession(w io.Writer, h Header, records []Record) (Header, error) {
	wr, err := NewWriter(w, h)
	if err != nil {
		return Header{}, err
	}
	for i, rec := range records {
		if err := wr.Write(rec); err != nil {
			return Header{}, fmt.Errorf("record %d: %w", i, err)
		}
	}
	if err := wr.Flush(); err != nil {
		return Header{}, fmt.Errorf("flush session log: %w", err)
	}
	return wr.Header(), nil
}
