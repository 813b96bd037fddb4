package contracts

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const nftABIJSON = `[
  {"inputs": [{"name": "to", "type": "address"}, {"name": "tokenURI", "type": "string"}], "name": "mint", "outputs": [{"type": "uint256"}], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [{"name": "tokenId", "type": "uint256"}], "name": "ownerOf", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "tokenId", "type": "uint256"}], "name": "tokenURI", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "to", "type": "address"}, {"name": "tokenId", "type": "uint256"}], "name": "approve", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [{"name": "operator", "type": "address"}, {"name": "approved", "type": "bool"}], "name": "setApprovalForAll", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [{"name": "owner", "type": "address"}, {"name": "operator", "type": "address"}], "name": "isApprovedForAll", "outputs": [{"type": "bool"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "tokenId", "type": "uint256"}], "name": "getApproved", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "owner", "type": "address"}], "name": "balanceOf", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "totalSupply", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"anonymous": false, "inputs": [{"indexed": true, "name": "from", "type": "address"}, {"indexed": true, "name": "to", "type": "address"}, {"indexed": true, "name": "tokenId", "type": "uint256"}], "name": "Transfer", "type": "event"}
]`

// getListing returns a static struct on chain; its ABI encoding is identical
// to the flat field sequence declared here.
const marketplaceABIJSON = `[
  {"inputs": [{"name": "nftContract", "type": "address"}, {"name": "tokenId", "type": "uint256"}, {"name": "price", "type": "uint256"}], "name": "listItem", "outputs": [{"type": "uint256"}], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [{"name": "listingId", "type": "uint256"}], "name": "buyItem", "outputs": [], "stateMutability": "payable", "type": "function"},
  {"inputs": [{"name": "listingId", "type": "uint256"}], "name": "delistItem", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [], "name": "withdrawEarnings", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [{"name": "listingId", "type": "uint256"}], "name": "getListing", "outputs": [{"name": "tokenId", "type": "uint256"}, {"name": "nftContract", "type": "address"}, {"name": "seller", "type": "address"}, {"name": "price", "type": "uint256"}, {"name": "active", "type": "bool"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "seller", "type": "address"}], "name": "withdrawableEarnings", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "getCurrentListingId", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "MARKETPLACE_FEE", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"anonymous": false, "inputs": [{"indexed": true, "name": "listingId", "type": "uint256"}, {"indexed": true, "name": "tokenId", "type": "uint256"}, {"indexed": true, "name": "nftContract", "type": "address"}, {"indexed": false, "name": "seller", "type": "address"}, {"indexed": false, "name": "price", "type": "uint256"}], "name": "ItemListed", "type": "event"},
  {"anonymous": false, "inputs": [{"indexed": true, "name": "listingId", "type": "uint256"}, {"indexed": true, "name": "tokenId", "type": "uint256"}, {"indexed": true, "name": "nftContract", "type": "address"}, {"indexed": false, "name": "seller", "type": "address"}, {"indexed": false, "name": "buyer", "type": "address"}, {"indexed": false, "name": "price", "type": "uint256"}, {"indexed": false, "name": "fee", "type": "uint256"}], "name": "ItemSold", "type": "event"}
]`

var (
	nftABI             abi.ABI
	nftABIOnce         sync.Once
	nftABIErr          error
	marketplaceABI     abi.ABI
	marketplaceABIOnce sync.Once
	marketplaceABIErr  error
)

// NFTABI returns the parsed NFT registry ABI.
func NFTABI() (abi.ABI, error) {
	nftABIOnce.Do(func() {
		nftABI, nftABIErr = abi.JSON(strings.NewReader(nftABIJSON))
	})
	return nftABI, nftABIErr
}

// MarketplaceABI returns the parsed marketplace ABI.
func MarketplaceABI() (abi.ABI, error) {
	marketplaceABIOnce.Do(func() {
		marketplaceABI, marketplaceABIErr = abi.JSON(strings.NewReader(marketplaceABIJSON))
	})
	return marketplaceABI, marketplaceABIErr
}
