package trace

import "errors"

// ErrNoCapacity is returned by AppendSafe when no capacity was reserved.
var ErrNoCapacity = errors.New("trace: no reserved capacity")

// Trace is an append-only record log with a read cursor.
//
// Writers use Append; readers use Next to peek at the next record whose
// kind matches a mask, and Advance to consume it. Records that do not
// match the mask are skipped permanently by Next.
//
// Implementations are not safe for concurrent use. The engine serializes
// access under its decision lock.
type Trace interface {
	// Append adds r at the end. It fails only on I/O or capacity errors.
	Append(r *Record) error

	// Reserve makes room for n more records so that AppendSafe cannot
	// allocate.
	Reserve(n int)

	// AppendSafe appends into reserved capacity and never allocates.
	// Returns ErrNoCapacity if nothing was reserved.
	AppendSafe(r *Record) error

	// Next returns the next record matching kinds without consuming it,
	// or nil at the end.
	Next(kinds Kind) *Record

	// Advance moves the cursor past the record last returned by Next.
	Advance()

	// Rewind moves the cursor back to the first record.
	Rewind()

	// Last returns the final record, or nil if the trace is empty.
	Last() *Record

	// Forget drops the final record.
	Forget()

	// Len returns the number of records.
	Len() int

	// Clear discards every record, including persisted ones.
	Clear() error

	// Save persists the records to the backing storage.
	Save() error

	// Load replaces the in-memory records with the persisted ones.
	Load() error
}

// All returns every record of t in order. The cursor is rewound before
// and after the walk.
func All(t Trace) []*Record {
	t.Rewind()
	defer t.Rewind()

	out := make([]*Record, 0, t.Len())
	for r := t.Next(KindAny); r != nil; r = t.Next(KindAny) {
		out = append(out, r)
		t.Advance()
	}
	return out
}

// Copy appends every record of src to dst.
func Copy(dst, src Trace) error {
	for _, r := range All(src) {
		if err := dst.Append(r.Clone()); err != nil {
			return err
		}
	}
	return nil
}
