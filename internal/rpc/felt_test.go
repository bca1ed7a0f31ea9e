package rpc

import (
	"math/big"
	"testing"
)

func TestFeltToBig(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"0x0", 0, true},
		{"0x1a", 26, true},
		{"26", 26, true},
		{" 0x1a ", 26, true},
		{"", 0, false},
		{"0xzz", 0, false},
		{"not a felt", 0, false},
	}

	for _, tt := range tests {
		got, err := FeltToBig(tt.in)
		if tt.ok != (err == nil) {
			t.Errorf("FeltToBig(%q) error = %v, want ok=%v", tt.in, err, tt.ok)
			continue
		}
		if err == nil && got.Int64() != tt.want {
			t.Errorf("FeltToBig(%q) = %s, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFeltToInt64Overflow(t *testing.T) {
	if _, err := FeltToInt64("0xffffffffffffffffff"); err == nil {
		t.Error("expected overflow error")
	}
}

func TestFeltToText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0x455448", "ETH"},
		{"0x55534420436f696e", "USD Coin"},
		{"0x0", ""},
	}

	for _, tt := range tests {
		got, err := FeltToText(tt.in)
		if err != nil {
			t.Errorf("FeltToText(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("FeltToText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCombineU256(t *testing.T) {
	got, err := CombineU256("0x5", "0x1")
	if err != nil {
		t.Fatalf("CombineU256: %v", err)
	}

	want := new(big.Int).Lsh(big.NewInt(1), 128)
	want.Add(want, big.NewInt(5))
	if got.String() != want.String() {
		t.Errorf("CombineU256 = %s, want %s", got, want)
	}
}

func TestSelector(t *testing.T) {
	a := Selector("name")
	b := Selector("name")
	if a != b {
		t.Errorf("selector not deterministic: %s vs %s", a, b)
	}
	if a == Selector("symbol") {
		t.Error("distinct entrypoints must get distinct selectors")
	}

	v, err := FeltToBig(a)
	if err != nil {
		t.Fatalf("selector not a felt: %v", err)
	}
	if v.BitLen() > 250 {
		t.Errorf("selector exceeds 250 bits: %d", v.BitLen())
	}
}
