package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

// Flat keeps every record in memory and persists them back to back in a
// single file. An empty path makes a memory-only trace; Save and Load are
// then no-ops.
type Flat struct {
	path    string
	records []*Record
	cursor  int
}

// NewFlat creates an empty flat trace persisted at path.
func NewFlat(path string) *Flat {
	return &Flat{path: path}
}

// OpenFlat creates a flat trace and loads it from path.
func OpenFlat(path string) (*Flat, error) {
	t := NewFlat(path)
	if err := t.Load(); err != nil {
		return nil, err
	}
	return t, nil
}

// Path returns the backing file path.
func (t *Flat) Path() string {
	return t.path
}

// Append adds r at the end of the trace.
func (t *Flat) Append(r *Record) error {
	t.records = append(t.records, r)
	return nil
}

// Reserve makes room for n more records, so that AppendSafe can add
// them without growing the trace.
func (t *Flat) Reserve(n int) {
	if cap(t.records)-len(t.records) >= n {
		return
	}
	grown := make([]*Record, len(t.records), len(t.records)+n)
	copy(grown, t.records)
	t.records = grown
}

// AppendSafe adds r only if reserved capacity is left, and returns
// ErrNoCapacity otherwise. It never allocates.
func (t *Flat) AppendSafe(r *Record) error {
	if len(t.records) == cap(t.records) {
		return ErrNoCapacity
	}
	t.records = append(t.records, r)
	return nil
}

// Next returns the first record at or after the cursor whose kind is in
// kinds, moving the cursor onto it but not past it. It returns nil at the
// end of the trace.
func (t *Flat) Next(kinds Kind) *Record {
	for t.cursor < len(t.records) {
		r := t.records[t.cursor]
		if r.Kind&kinds != 0 {
			return r
		}
		t.cursor++
	}
	return nil
}

// Advance moves the cursor past the current record.
func (t *Flat) Advance() {
	if t.cursor < len(t.records) {
		t.cursor++
	}
}

// Rewind moves the cursor back to the first record.
func (t *Flat) Rewind() {
	t.cursor = 0
}

// Last returns the final record, or nil for an empty trace.
func (t *Flat) Last() *Record {
	if len(t.records) == 0 {
		return nil
	}
	return t.records[len(t.records)-1]
}

// Forget drops the final record. The cursor is clamped to the new end.
func (t *Flat) Forget() {
	if len(t.records) == 0 {
		return
	}
	t.records[len(t.records)-1] = nil
	t.records = t.records[:len(t.records)-1]
	if t.cursor > len(t.records) {
		t.cursor = len(t.records)
	}
}

// Len returns the number of records.
func (t *Flat) Len() int {
	return len(t.records)
}

// Clear drops every record and removes the backing file.
func (t *Flat) Clear() error {
	t.records = nil
	t.cursor = 0
	if t.path == "" {
		return nil
	}
	if err := os.Remove(t.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear trace %s: %w", t.path, err)
	}
	return nil
}

// Save writes every record to the backing file, replacing its contents.
func (t *Flat) Save() error {
	if t.path == "" {
		return nil
	}
	f, err := os.Create(t.path)
	if err != nil {
		return fmt.Errorf("save trace: %w", err)
	}
	if err := t.SaveTo(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("save trace %s: %w", t.path, err)
	}
	return nil
}

// SaveTo writes every record to w.
func (t *Flat) SaveTo(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, r := range t.records {
		if err := Encode(bw, r); err != nil {
			return fmt.Errorf("save trace: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("save trace: %w", err)
	}
	return nil
}

// Load replaces the records with those of the backing file.
func (t *Flat) Load() error {
	if t.path == "" {
		return nil
	}
	f, err := os.Open(t.path)
	if err != nil {
		return fmt.Errorf("load trace: %w", err)
	}
	defer f.Close()
	return t.LoadFrom(f)
}

// LoadFrom replaces the records with those decoded from rd.
func (t *Flat) LoadFrom(rd io.Reader) error {
	records, err := decodeAll(bufio.NewReader(rd))
	if err != nil {
		return fmt.Errorf("load trace: %w", err)
	}
	t.records = records
	t.cursor = 0
	return nil
}
