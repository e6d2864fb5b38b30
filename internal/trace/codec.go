package trace

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/lockstep/internal/ir"
)

// headerSize is the encoded size of a record without its payload.
const headerSize = 8 + 8 + 4 + 8 + 4 + 8 + 8

// maxPayload bounds the payload size accepted when decoding, so a corrupt
// header cannot trigger a huge allocation.
const maxPayload = 1 << 24

// ErrUnknownKind is returned when a decoded record carries a kind that is
// not exactly one known kind.
var ErrUnknownKind = errors.New("unknown record kind")

// Encode writes r to w.
func Encode(w io.Writer, r *Record) error {
	var hdr [headerSize]byte
	putHeader(hdr[:], r)
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("encode record header: %w", err)
	}
	if len(r.Data) > 0 {
		if _, err := w.Write(r.Data); err != nil {
			return fmt.Errorf("encode record payload: %w", err)
		}
	}
	return nil
}

func putHeader(b []byte, r *Record) {
	le := binary.LittleEndian
	le.PutUint64(b[0:], uint64(r.ID))
	le.PutUint64(b[8:], uint64(r.Clk))
	le.PutUint32(b[16:], uint32(r.Cat))
	le.PutUint64(b[20:], uint64(r.Reason))
	le.PutUint32(b[28:], uint32(r.Kind))
	le.PutUint64(b[32:], uint64(len(r.Data)))
	le.PutUint64(b[40:], r.PC)
}

// Decode reads one record from rd. It returns io.EOF at a clean end of
// stream and io.ErrUnexpectedEOF when a record is cut short.
func Decode(rd io.Reader) (*Record, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(rd, hdr[:]); err != nil {
		return nil, err
	}

	le := binary.LittleEndian
	r := &Record{
		ID:     ir.TaskID(le.Uint64(hdr[0:])),
		Clk:    ir.Clk(le.Uint64(hdr[8:])),
		Cat:    ir.Category(le.Uint32(hdr[16:])),
		Reason: ir.Reason(le.Uint64(hdr[20:])),
		Kind:   Kind(le.Uint32(hdr[28:])),
		PC:     le.Uint64(hdr[40:]),
	}
	if !r.Kind.Valid() {
		return nil, fmt.Errorf("%w: 0x%x at clk %d", ErrUnknownKind, uint32(r.Kind), r.Clk)
	}

	size := le.Uint64(hdr[32:])
	if size > maxPayload {
		return nil, fmt.Errorf("record at clk %d: payload of %d bytes exceeds limit", r.Clk, size)
	}
	if size > 0 {
		r.Data = make([]byte, size)
		if _, err := io.ReadFull(rd, r.Data); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
	}
	return r, nil
}

// decodeAll reads records until a clean end of stream.
func decodeAll(rd io.Reader) ([]*Record, error) {
	var out []*Record
	for {
		r, err := Decode(rd)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode record %d: %w", len(out), err)
		}
		out = append(out, r)
	}
}
