package model

import "time"

// MarketSnapshot is the result of one reconciliation sweep, suitable for
// persistence through a storage sink.
type MarketSnapshot struct {
	ChainID  uint64       `json:"chain_id"`
	Account  string       `json:"account,omitempty"`
	Listings []Listing    `json:"listings"`
	Holdings []OwnedToken `json:"holdings"`
	SweptAt  time.Time    `json:"swept_at"`
}
