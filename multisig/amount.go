package multisig

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
)

// AmountDecimals is the number of fractional digits of token amounts.
const AmountDecimals = 7

// ParseAmount converts a human-readable amount ("12.5") into base units.
// The result must be strictly positive and representable without rounding.
func ParseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, Invalid("amount", "%q is not a number", s)
	}
	units := d.Shift(AmountDecimals)
	if !units.IsInteger() {
		return 0, Invalid("amount", "%q has more than %d decimals", s, AmountDecimals)
	}
	if !units.IsPositive() {
		return 0, Invalid("amount", "must be positive")
	}
	if units.GreaterThan(decimal.NewFromInt(1<<63 - 1)) {
		return 0, Invalid("amount", "%q is too large", s)
	}
	return units.IntPart(), nil
}

// FormatAmount renders base units as a human-readable amount.
func FormatAmount(units int64) string {
	return decimal.New(units, -AmountDecimals).String()
}

// ParseWasmHash decodes a hex-encoded (optionally 0x-prefixed) 32-byte code hash.
func ParseWasmHash(s string) (common.Hash, error) {
	if len(s) < 2 || s[:2] != "0x" && s[:2] != "0X" {
		s = "0x" + s
	}
	raw, err := hexutil.Decode(s)
	if err != nil {
		return common.Hash{}, Invalid("new_wasm_hash", "not hex: %v", err)
	}
	if len(raw) != common.HashLength {
		return common.Hash{}, Invalid("new_wasm_hash", "must be exactly %d bytes, got %d", common.HashLength, len(raw))
	}
	return common.BytesToHash(raw), nil
}

// QuorumBpsFromPercent converts a threshold percentage (1..100) to basis points.
func QuorumBpsFromPercent(percent uint32) (uint32, error) {
	if percent == 0 || percent > 100 {
		return 0, &ValidationError{Field: "threshold", Reason: fmt.Sprintf("percent must be in 1..100, got %d", percent)}
	}
	return percent * 100, nil
}
