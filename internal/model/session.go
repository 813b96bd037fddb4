package model

import "github.com/ethereum/go-ethereum/common"

// Session is the wallet connection snapshot owned by the chain session.
// Connected implies ChainID matches the required network and Account is set.
type Session struct {
	Account   common.Address `json:"account"`
	ChainID   uint64         `json:"chain_id"`
	Connected bool           `json:"connected"`
}
