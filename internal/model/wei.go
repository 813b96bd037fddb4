package model

import (
	"fmt"
	"math/big"
	"strings"
)

const etherDecimals = 18

var weiPerEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(etherDecimals), nil)

// ParseEther converts a user-entered decimal ether amount into wei exactly.
// Inputs with more than 18 fractional digits or a non-positive value are
// rejected rather than rounded.
func ParseEther(amount string) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("amount is empty")
	}
	if strings.HasPrefix(amount, "-") {
		return nil, fmt.Errorf("amount must be positive: %s", amount)
	}

	whole := amount
	frac := ""
	if idx := strings.IndexByte(amount, '.'); idx >= 0 {
		whole = amount[:idx]
		frac = amount[idx+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > etherDecimals {
		return nil, fmt.Errorf("amount has more than %d decimal places: %s", etherDecimals, amount)
	}

	wholeInt, ok := new(big.Int).SetString(whole, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %s", amount)
	}

	wei := new(big.Int).Mul(wholeInt, weiPerEther)
	if frac != "" {
		fracInt, ok := new(big.Int).SetString(frac, 10)
		if !ok {
			return nil, fmt.Errorf("invalid amount: %s", amount)
		}
		scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(etherDecimals-len(frac))), nil)
		wei.Add(wei, fracInt.Mul(fracInt, scale))
	}

	if wei.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive: %s", amount)
	}
	return wei, nil
}

// FormatEtherFixed renders a wei value in ether with exactly decimals
// fractional digits, truncating toward zero. Used for balance display where a
// stable column width beats full precision.
func FormatEtherFixed(wei *big.Int, decimals int) string {
	if decimals < 0 {
		decimals = 0
	}
	if decimals > etherDecimals {
		decimals = etherDecimals
	}
	if wei == nil {
		wei = new(big.Int)
	}

	quo, rem := new(big.Int).QuoRem(wei, weiPerEther, new(big.Int))
	neg := quo.Sign() < 0 || rem.Sign() < 0
	rem.Abs(rem)

	out := new(big.Int).Abs(quo).String()
	if decimals > 0 {
		frac := fmt.Sprintf("%0*s", etherDecimals, rem.String())
		out += "." + frac[:decimals]
	}
	if neg {
		out = "-" + out
	}
	return out
}

// FormatEther renders a wei value as a decimal ether string with trailing
// zeros trimmed. The round trip through ParseEther reproduces the input.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	quo, rem := new(big.Int).QuoRem(wei, weiPerEther, new(big.Int))
	neg := quo.Sign() < 0 || rem.Sign() < 0
	rem.Abs(rem)

	out := new(big.Int).Abs(quo).String()
	if rem.Sign() != 0 {
		frac := fmt.Sprintf("%0*s", etherDecimals, rem.String())
		frac = strings.TrimRight(frac, "0")
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}
