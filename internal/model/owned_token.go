package model

// OwnedToken is one token held by the queried address, re-derived on every
// holdings sweep rather than tracked incrementally.
type OwnedToken struct {
	TokenID uint64 `json:"token_id"`
	Owner   string `json:"owner"`

	// Listed is set when an active listing by the same address covers this token.
	Listed bool `json:"listed"`

	Metadata TokenMetadata `json:"metadata"`
}
