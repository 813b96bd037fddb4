package model

import "github.com/ethereum/go-ethereum/common"

// TxHandle identifies a submitted transaction awaiting finality. It carries no
// result; the tracker resolves it into a receipt.
type TxHandle struct {
	Hash common.Hash
	Kind TxKind
}
