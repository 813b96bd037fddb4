package model

import "time"

// TxKind names the workflow a transaction belongs to.
type TxKind string

const (
	TxMint     TxKind = "mint"
	TxApprove  TxKind = "approve"
	TxList     TxKind = "list"
	TxBuy      TxKind = "buy"
	TxDelist   TxKind = "delist"
	TxWithdraw TxKind = "withdraw"
)

// TxState is the lifecycle state of a submitted transaction.
type TxState string

const (
	TxPending   TxState = "pending"
	TxConfirmed TxState = "confirmed"
	TxFailed    TxState = "failed"
)

// PendingTransaction tracks one submitted mutating call. It lives only in
// memory; reconciliation sweeps recover true state after a restart.
type PendingTransaction struct {
	Kind        TxKind    `json:"kind"`
	Hash        string    `json:"hash"`
	State       TxState   `json:"state"`
	SubmittedAt time.Time `json:"submitted_at"`
}
