package rpc

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// FeltToBig parses a felt in hex ("0x...") or decimal form.
func FeltToBig(felt string) (*big.Int, error) {
	s := strings.TrimSpace(felt)
	if s == "" {
		return nil, fmt.Errorf("empty felt")
	}

	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}

	v, ok := new(big.Int).SetString(s, base)
	if !ok {
		return nil, fmt.Errorf("invalid felt %q", felt)
	}
	return v, nil
}

// FeltToDecimal parses a felt into an unscaled decimal integer.
func FeltToDecimal(felt string) (decimal.Decimal, error) {
	v, err := FeltToBig(felt)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromBigInt(v, 0), nil
}

// FeltToInt64 parses a felt that must fit in an int64.
func FeltToInt64(felt string) (int64, error) {
	v, err := FeltToBig(felt)
	if err != nil {
		return 0, err
	}
	if !v.IsInt64() {
		return 0, fmt.Errorf("felt %q overflows int64", felt)
	}
	return v.Int64(), nil
}

// FeltToText decodes a Cairo short string: the felt's big-endian bytes
// interpreted as ASCII, non-printable bytes dropped.
func FeltToText(felt string) (string, error) {
	v, err := FeltToBig(felt)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, c := range v.Bytes() {
		if c >= 0x20 && c < 0x7f {
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

// CombineU256 joins the (low, high) felt pair of a u256 result into one
// unscaled decimal integer.
func CombineU256(low, high string) (decimal.Decimal, error) {
	lo, err := FeltToBig(low)
	if err != nil {
		return decimal.Zero, fmt.Errorf("u256 low: %w", err)
	}
	hi, err := FeltToBig(high)
	if err != nil {
		return decimal.Zero, fmt.Errorf("u256 high: %w", err)
	}

	v := new(big.Int).Lsh(hi, 128)
	v.Add(v, lo)
	return decimal.NewFromBigInt(v, 0), nil
}
