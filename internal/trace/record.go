package trace

import (
	"fmt"
	"strings"

	"github.com/roach88/lockstep/internal/ir"
)

// Kind is a record kind. Readers filter by OR-ing the kinds they want.
type Kind uint32

const (
	KindNone         Kind = 0
	KindInfo         Kind = 0x01
	KindSched        Kind = 0x02
	KindStart        Kind = 0x04
	KindExit         Kind = 0x08
	KindConfig       Kind = 0x10
	KindShutdownLock Kind = 0x20
	KindOpaque       Kind = 0x40
	KindForce        Kind = 0x80
	KindAny          Kind = ^Kind(0)

	kindKnown = KindInfo | KindSched | KindStart | KindExit | KindConfig |
		KindShutdownLock | KindOpaque | KindForce
)

var kindNames = []struct {
	kind Kind
	name string
}{
	{KindInfo, "INFO"},
	{KindSched, "SCHED"},
	{KindStart, "START"},
	{KindExit, "EXIT"},
	{KindConfig, "CONFIG"},
	{KindShutdownLock, "SHUTDOWN_LOCK"},
	{KindOpaque, "OPAQUE"},
	{KindForce, "FORCE"},
}

// String renders the set bits, e.g. "SCHED|FORCE".
func (k Kind) String() string {
	if k == KindNone {
		return "NONE"
	}
	if k == KindAny {
		return "ANY"
	}
	var parts []string
	for _, kn := range kindNames {
		if k&kn.kind != 0 {
			parts = append(parts, kn.name)
		}
	}
	if rest := k &^ kindKnown; rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// Valid reports whether k is exactly one known kind. Stored records
// always carry a single kind; masks are only used for filtering.
func (k Kind) Valid() bool {
	return k&kindKnown == k && k != KindNone && k&(k-1) == 0
}

// ParseKinds parses names separated by '|' or ',' into a mask.
func ParseKinds(s string) (Kind, error) {
	if s == "" || strings.EqualFold(s, "any") {
		return KindAny, nil
	}
	var mask Kind
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' }) {
		found := false
		for _, kn := range kindNames {
			if strings.EqualFold(strings.TrimSpace(part), kn.name) {
				mask |= kn.kind
				found = true
				break
			}
		}
		if !found {
			return KindNone, fmt.Errorf("unknown record kind %q", part)
		}
	}
	return mask, nil
}

// Record is one entry of a trace. Once appended, the trace owns it.
type Record struct {
	ID     ir.TaskID
	Clk    ir.Clk
	Cat    ir.Category
	Reason ir.Reason
	Kind   Kind
	PC     uint64
	Data   []byte
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	c := *r
	if r.Data != nil {
		c.Data = append([]byte(nil), r.Data...)
	}
	return &c
}

// String renders the record on one line.
func (r *Record) String() string {
	return fmt.Sprintf("clk=%d kind=%s task=%s cat=%s reason=%s size=%d",
		r.Clk, r.Kind, r.ID, r.Cat, r.Reason, len(r.Data))
}
