package model

import "math/big"

// Listing is one marketplace offer keyed by its externally assigned id.
type Listing struct {
	ListingID   uint64   `json:"listing_id"`
	TokenID     uint64   `json:"token_id"`
	NFTContract string   `json:"nft_contract"`
	Seller      string   `json:"seller"`
	PriceWei    *big.Int `json:"-"`
	Active      bool     `json:"active"`

	// Price is PriceWei rendered as a decimal string for storage and display.
	Price string `json:"price_wei"`

	Metadata TokenMetadata `json:"metadata"`
}
