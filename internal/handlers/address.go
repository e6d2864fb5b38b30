package handlers

import (
	"fmt"

	"github.com/roach88/lockstep/internal/event"
	"github.com/roach88/lockstep/internal/ir"
)

// AddressMethod selects how addresses are made comparable across runs.
type AddressMethod uint8

const (
	// AddressNone keeps addresses verbatim.
	AddressNone AddressMethod = iota
	// AddressMask keeps only the page offset, which survives address
	// space randomization.
	AddressMask
)

const addressMask = 0xFFF

// ParseAddressMethod accepts "none" and "mask".
func ParseAddressMethod(s string) (AddressMethod, error) {
	switch s {
	case "none", "":
		return AddressNone, nil
	case "mask":
		return AddressMask, nil
	}
	return AddressNone, fmt.Errorf("unknown stable address method %q", s)
}

// String returns the method name.
func (m AddressMethod) String() string {
	switch m {
	case AddressNone:
		return "none"
	case AddressMask:
		return "mask"
	}
	return fmt.Sprintf("AddressMethod(%d)", uint8(m))
}

// Stable returns addr as seen through the method.
func (m AddressMethod) Stable(addr uint64) uint64 {
	if m == AddressMask {
		return addr & addressMask
	}
	return addr
}

// Address rewrites the call site of every capture so records do not
// depend on where the binary was loaded.
type Address struct {
	method AddressMethod
}

// NewAddress creates the handler.
func NewAddress(m AddressMethod) *Address {
	return &Address{method: m}
}

// Handle implements dispatch.Handler.
func (a *Address) Handle(ctx *ir.Context, _ *event.Event) {
	ctx.PC = uintptr(a.method.Stable(uint64(ctx.PC)))
}
