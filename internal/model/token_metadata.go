package model

import "fmt"

// TokenMetadata is the off-chain JSON document behind a token URI. All fields
// are optional; a failed fetch yields a synthesized placeholder.
type TokenMetadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

// PlaceholderMetadata synthesizes display metadata for a token whose URI could
// not be fetched or parsed.
func PlaceholderMetadata(tokenID uint64) TokenMetadata {
	return TokenMetadata{
		Name:        fmt.Sprintf("NFT #%d", tokenID),
		Description: "No description available",
	}
}
