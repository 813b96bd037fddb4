package stub

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"monadmarket/internal/contracts"
)

type listingRecord struct {
	tokenID uint64
	seller  common.Address
	price   *big.Int
	active  bool
}

// Market simulates the NFT registry and marketplace contracts behind eth_call
// and eth_sendTransaction, mining every transaction on the first receipt poll.
type Market struct {
	NFT         common.Address
	Marketplace common.Address

	mu sync.Mutex

	feeBps      *big.Int
	totalSupply uint64
	owners      map[uint64]common.Address
	uris        map[uint64]string
	burned      map[uint64]bool
	approvals   map[common.Address]bool

	nextListingID uint64
	listings      map[uint64]listingRecord
	failListings  map[uint64]bool

	earnings map[common.Address]*big.Int
	balances map[common.Address]*big.Int

	txCounter     uint64
	receipts      map[common.Hash]*types.Receipt
	receiptDelays map[common.Hash]int
	nextDelay     int
}

// NewMarket builds an empty simulated market with a 2.5% fee.
func NewMarket(nft, marketplace common.Address) *Market {
	return &Market{
		NFT:           nft,
		Marketplace:   marketplace,
		feeBps:        big.NewInt(250),
		owners:        make(map[uint64]common.Address),
		uris:          make(map[uint64]string),
		burned:        make(map[uint64]bool),
		approvals:     make(map[common.Address]bool),
		nextListingID: 1,
		listings:      make(map[uint64]listingRecord),
		failListings:  make(map[uint64]bool),
		earnings:      make(map[common.Address]*big.Int),
		balances:      make(map[common.Address]*big.Int),
		receipts:      make(map[common.Hash]*types.Receipt),
		receiptDelays: make(map[common.Hash]int),
	}
}

// MintToken seeds a token directly, bypassing the transaction path.
func (m *Market) MintToken(owner common.Address, uri string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalSupply++
	id := m.totalSupply
	m.owners[id] = owner
	m.uris[id] = uri
	return id
}

// Burn makes ownership queries for tokenID fail.
func (m *Market) Burn(tokenID uint64) {
	m.mu.Lock()
	m.burned[tokenID] = true
	delete(m.owners, tokenID)
	m.mu.Unlock()
}

// SeedListing seeds an active listing directly.
func (m *Market) SeedListing(tokenID uint64, seller common.Address, price *big.Int) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextListingID
	m.nextListingID++
	m.listings[id] = listingRecord{tokenID: tokenID, seller: seller, price: new(big.Int).Set(price), active: true}
	return id
}

// DeactivateListing marks a seeded listing inactive.
func (m *Market) DeactivateListing(listingID uint64) {
	m.mu.Lock()
	if record, ok := m.listings[listingID]; ok {
		record.active = false
		m.listings[listingID] = record
	}
	m.mu.Unlock()
}

// FailListing makes getListing reads for listingID error.
func (m *Market) FailListing(listingID uint64, fail bool) {
	m.mu.Lock()
	if fail {
		m.failListings[listingID] = true
	} else {
		delete(m.failListings, listingID)
	}
	m.mu.Unlock()
}

// SetNativeBalance seeds an account's native-currency balance.
func (m *Market) SetNativeBalance(account common.Address, wei *big.Int) {
	m.mu.Lock()
	m.balances[account] = new(big.Int).Set(wei)
	m.mu.Unlock()
}

// Earnings returns an account's simulated withdrawable proceeds.
func (m *Market) Earnings(account common.Address) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(big.Int).Set(m.earningsOf(account))
}

// NativeBalance returns an account's simulated native balance.
func (m *Market) NativeBalance(account common.Address) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.balances[account]; ok {
		return new(big.Int).Set(b)
	}
	return big.NewInt(0)
}

// DelayNextReceipt makes the next submitted transaction report no receipt for
// the first polls attempts.
func (m *Market) DelayNextReceipt(polls int) {
	m.mu.Lock()
	m.nextDelay = polls
	m.mu.Unlock()
}

// Call executes a read-only contract call.
func (m *Market) Call(to common.Address, data []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch to {
	case m.NFT:
		return m.callNFT(data)
	case m.Marketplace:
		return m.callMarketplace(data)
	default:
		return nil, fmt.Errorf("no contract at %s", to.Hex())
	}
}

// SendTransaction executes a mutating call, recording a success or revert
// receipt under the returned hash.
func (m *Market) SendTransaction(args txArgs) (common.Hash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	value := big.NewInt(0)
	if args.Value != nil {
		value = (*big.Int)(args.Value)
	}

	var logs []*types.Log
	var execErr error
	switch args.To {
	case m.NFT:
		logs, execErr = m.execNFT(args.From, args.Data)
	case m.Marketplace:
		logs, execErr = m.execMarketplace(args.From, args.Data, value)
	default:
		return common.Hash{}, fmt.Errorf("no contract at %s", args.To.Hex())
	}

	m.txCounter++
	hash := common.BigToHash(new(big.Int).SetUint64(m.txCounter))

	status := types.ReceiptStatusSuccessful
	if execErr != nil {
		status = types.ReceiptStatusFailed
		logs = nil
	}
	if logs == nil {
		logs = []*types.Log{}
	}
	m.receipts[hash] = &types.Receipt{
		Status:      status,
		TxHash:      hash,
		Logs:        logs,
		BlockNumber: new(big.Int).SetUint64(m.txCounter),
	}
	if m.nextDelay > 0 {
		m.receiptDelays[hash] = m.nextDelay
		m.nextDelay = 0
	}
	return hash, nil
}

// Receipt returns the receipt for hash, nil while still "pending".
func (m *Market) Receipt(hash common.Hash) *types.Receipt {
	m.mu.Lock()
	defer m.mu.Unlock()
	if delay := m.receiptDelays[hash]; delay > 0 {
		m.receiptDelays[hash] = delay - 1
		return nil
	}
	return m.receipts[hash]
}

func (m *Market) callNFT(data []byte) ([]byte, error) {
	parsed, err := contracts.NFTABI()
	if err != nil {
		return nil, err
	}
	method, values, err := unpackCall(parsed, data)
	if err != nil {
		return nil, err
	}

	switch method.Name {
	case "ownerOf":
		id := values[0].(*big.Int).Uint64()
		owner, ok := m.owners[id]
		if !ok {
			return nil, fmt.Errorf("execution reverted: nonexistent token %d", id)
		}
		return method.Outputs.Pack(owner)
	case "tokenURI":
		id := values[0].(*big.Int).Uint64()
		uri, ok := m.uris[id]
		if !ok {
			return nil, fmt.Errorf("execution reverted: nonexistent token %d", id)
		}
		return method.Outputs.Pack(uri)
	case "isApprovedForAll":
		owner := values[0].(common.Address)
		return method.Outputs.Pack(m.approvals[owner])
	case "getApproved":
		return method.Outputs.Pack(common.Address{})
	case "balanceOf":
		owner := values[0].(common.Address)
		count := big.NewInt(0)
		for _, holder := range m.owners {
			if holder == owner {
				count.Add(count, big.NewInt(1))
			}
		}
		return method.Outputs.Pack(count)
	case "totalSupply":
		return method.Outputs.Pack(new(big.Int).SetUint64(m.totalSupply))
	default:
		return nil, fmt.Errorf("unsupported nft call %s", method.Name)
	}
}

func (m *Market) callMarketplace(data []byte) ([]byte, error) {
	parsed, err := contracts.MarketplaceABI()
	if err != nil {
		return nil, err
	}
	method, values, err := unpackCall(parsed, data)
	if err != nil {
		return nil, err
	}

	switch method.Name {
	case "getListing":
		id := values[0].(*big.Int).Uint64()
		if m.failListings[id] {
			return nil, fmt.Errorf("listing %d read failure", id)
		}
		record := m.listings[id]
		price := record.price
		if price == nil {
			price = big.NewInt(0)
		}
		return method.Outputs.Pack(
			new(big.Int).SetUint64(record.tokenID),
			m.NFT,
			record.seller,
			price,
			record.active,
		)
	case "getCurrentListingId":
		return method.Outputs.Pack(new(big.Int).SetUint64(m.nextListingID))
	case "withdrawableEarnings":
		seller := values[0].(common.Address)
		return method.Outputs.Pack(m.earningsOf(seller))
	case "MARKETPLACE_FEE":
		return method.Outputs.Pack(m.feeBps)
	default:
		return nil, fmt.Errorf("unsupported marketplace call %s", method.Name)
	}
}

func (m *Market) execNFT(from common.Address, data []byte) ([]*types.Log, error) {
	parsed, err := contracts.NFTABI()
	if err != nil {
		return nil, err
	}
	method, values, err := unpackCall(parsed, data)
	if err != nil {
		return nil, err
	}

	switch method.Name {
	case "mint":
		to := values[0].(common.Address)
		uri := values[1].(string)
		m.totalSupply++
		id := m.totalSupply
		m.owners[id] = to
		m.uris[id] = uri
		return []*types.Log{transferLog(m.NFT, parsed, common.Address{}, to, id)}, nil
	case "setApprovalForAll":
		approved := values[1].(bool)
		m.approvals[from] = approved
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported nft transaction %s", method.Name)
	}
}

func (m *Market) execMarketplace(from common.Address, data []byte, value *big.Int) ([]*types.Log, error) {
	parsed, err := contracts.MarketplaceABI()
	if err != nil {
		return nil, err
	}
	method, values, err := unpackCall(parsed, data)
	if err != nil {
		return nil, err
	}

	switch method.Name {
	case "listItem":
		tokenID := values[1].(*big.Int).Uint64()
		price := values[2].(*big.Int)
		if m.owners[tokenID] != from {
			return nil, fmt.Errorf("not token owner")
		}
		if !m.approvals[from] {
			return nil, fmt.Errorf("marketplace not approved")
		}
		id := m.nextListingID
		m.nextListingID++
		m.listings[id] = listingRecord{tokenID: tokenID, seller: from, price: new(big.Int).Set(price), active: true}
		return nil, nil
	case "buyItem":
		id := values[0].(*big.Int).Uint64()
		record, ok := m.listings[id]
		if !ok || !record.active {
			return nil, fmt.Errorf("listing %d not active", id)
		}
		if value.Cmp(record.price) != 0 {
			return nil, fmt.Errorf("value mismatch")
		}
		fee := new(big.Int).Div(new(big.Int).Mul(record.price, m.feeBps), big.NewInt(10000))
		proceeds := new(big.Int).Sub(record.price, fee)
		m.earnings[record.seller] = new(big.Int).Add(m.earningsOf(record.seller), proceeds)
		m.owners[record.tokenID] = from
		record.active = false
		m.listings[id] = record
		m.debit(from, value)
		return nil, nil
	case "delistItem":
		id := values[0].(*big.Int).Uint64()
		record, ok := m.listings[id]
		if !ok || !record.active {
			return nil, fmt.Errorf("listing %d not active", id)
		}
		if record.seller != from {
			return nil, fmt.Errorf("not the seller")
		}
		record.active = false
		m.listings[id] = record
		return nil, nil
	case "withdrawEarnings":
		amount := m.earningsOf(from)
		if amount.Sign() == 0 {
			return nil, fmt.Errorf("nothing to withdraw")
		}
		m.earnings[from] = big.NewInt(0)
		m.credit(from, amount)
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported marketplace transaction %s", method.Name)
	}
}

func (m *Market) earningsOf(account common.Address) *big.Int {
	if e, ok := m.earnings[account]; ok {
		return e
	}
	return big.NewInt(0)
}

func (m *Market) credit(account common.Address, amount *big.Int) {
	current, ok := m.balances[account]
	if !ok {
		current = big.NewInt(0)
	}
	m.balances[account] = new(big.Int).Add(current, amount)
}

func (m *Market) debit(account common.Address, amount *big.Int) {
	current, ok := m.balances[account]
	if !ok {
		current = big.NewInt(0)
	}
	m.balances[account] = new(big.Int).Sub(current, amount)
}

func unpackCall(parsed abi.ABI, data []byte) (*abi.Method, []interface{}, error) {
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("calldata too short")
	}
	method, err := parsed.MethodById(data[:4])
	if err != nil {
		return nil, nil, err
	}
	values, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, fmt.Errorf("unpack %s: %w", method.Name, err)
	}
	return method, values, nil
}

func transferLog(nft common.Address, parsed abi.ABI, from, to common.Address, tokenID uint64) *types.Log {
	return &types.Log{
		Address: nft,
		Topics: []common.Hash{
			parsed.Events["Transfer"].ID,
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
			common.BigToHash(new(big.Int).SetUint64(tokenID)),
		},
		Data: []byte{},
	}
}
