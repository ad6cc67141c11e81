package feed

import "github.com/lmvdz/zo-mm/internal/domain"

// Worker message types. The envelope mirrors what the workers put on the
// wire when journaled, so the JSON tags are part of the journal format.
const (
	MsgStarted = "started"
	MsgData    = "data"
	MsgSpreads = "spreads"
	MsgError   = "error"
)

// Message is the envelope a feed worker emits to its supervisor. Error
// messages carry their text in Data.
type Message struct {
	Type    string                          `json:"type"`
	Pair    string                          `json:"pair"`
	Spreads map[string]domain.ExchangeQuote `json:"spreads,omitempty"`
	Data    string                          `json:"data,omitempty"`
}
