package domain

import "github.com/lmvdz/zo-mm/pkg/quant"

// Order represents a resting order owned by this engine's control account.
// Ephemeral: fetched fresh per sub-cycle, never persisted.
type Order struct {
	ID           string
	Symbol       string
	Side         Side
	PriceMicros  quant.PriceMicros
	SizeSats     quant.QtySats
	ControlKey   string
	Status       string // "NEW", "PARTIALLY_FILLED", "FILLED", "CANCELED"
	CreatedUnixM int64  // Unix Microseconds
}

// IsOpen checks if the order is still resting on the book.
func (o *Order) IsOpen() bool {
	return o.Status == "NEW" || o.Status == "PARTIALLY_FILLED"
}
