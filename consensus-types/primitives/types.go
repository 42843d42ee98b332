// Package primitives defines the slot scalar shared by every gateway
// component.
package primitives

import "fmt"

// Slot represents a single slot.
type Slot uint64

// String returns the decimal representation of the slot.
func (s Slot) String() string {
	return fmt.Sprintf("%d", uint64(s))
}

// Sub subtracts x from the slot, flooring at zero.
func (s Slot) Sub(x uint64) Slot {
	if uint64(s) < x {
		return 0
	}
	return Slot(uint64(s) - x)
}
