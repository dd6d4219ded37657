package bank

import (
	"math/big"
	"testing"
)

func TestDecFromString(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0", "0.000000000000000000"},
		{"1", "1.000000000000000000"},
		{"0.55", "0.550000000000000000"},
		{"-2.5", "-2.500000000000000000"},
		{"202.2", "202.200000000000000000"},
	}
	for _, tc := range cases {
		d, err := DecFromString(tc.in)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.in, err)
		}
		if d.String() != tc.want {
			t.Fatalf("parse %q: got %s, want %s", tc.in, d.String(), tc.want)
		}
	}
	for _, bad := range []string{"", "abc", "1.2.3", "0.1234567890123456789"} {
		if _, err := DecFromString(bad); err == nil {
			t.Fatalf("expected error parsing %q", bad)
		}
	}
}

func TestDecArithmetic(t *testing.T) {
	a := MustDecFromString("1.5")
	b := MustDecFromString("0.5")
	if !a.Add(b).Equal(MustDecFromString("2")) {
		t.Fatalf("add: %s", a.Add(b))
	}
	if !a.Sub(b).Equal(OneDec()) {
		t.Fatalf("sub: %s", a.Sub(b))
	}
	if !a.Mul(b).Equal(MustDecFromString("0.75")) {
		t.Fatalf("mul: %s", a.Mul(b))
	}
	if !a.Quo(b).Equal(MustDecFromString("3")) {
		t.Fatalf("quo: %s", a.Quo(b))
	}
	if !b.Quo(ZeroDec()).IsZero() {
		t.Fatalf("division by zero should yield zero")
	}
}

func TestDecZeroValueUsable(t *testing.T) {
	var d Dec
	if !d.IsZero() {
		t.Fatalf("zero value not zero")
	}
	if !d.Add(OneDec()).Equal(OneDec()) {
		t.Fatalf("zero value arithmetic broken")
	}
}

func TestMulIntRounding(t *testing.T) {
	index := MustDecFromString("1.04")
	// 19 * 1.04 = 19.76: truncate 19, ceil 20.
	x := big.NewInt(19)
	if got := index.MulIntTruncate(x); got.Cmp(big.NewInt(19)) != 0 {
		t.Fatalf("truncate: %s", got)
	}
	if got := index.MulIntCeil(x); got.Cmp(big.NewInt(20)) != 0 {
		t.Fatalf("ceil: %s", got)
	}
}

// Deposits round against the depositor, debt rounds against the borrower. A
// round trip through scaled form may lose at most one unit and the loss always
// favours the pool.
func TestScaledConversionsProtocolFavorable(t *testing.T) {
	liquidityIndex := MustDecFromString("1.037")
	borrowIndex := MustDecFromString("1.113")

	for _, amount := range []int64{1, 7, 999, 123456789} {
		x := big.NewInt(amount)

		scaled := scaledLiquidity(x, liquidityIndex)
		back := underlyingLiquidity(scaled, liquidityIndex)
		if back.Cmp(x) > 0 {
			t.Fatalf("liquidity round trip paid out more than deposited: %d -> %s", amount, back)
		}
		if diff := new(big.Int).Sub(x, back); diff.Cmp(big.NewInt(2)) > 0 {
			t.Fatalf("liquidity round trip lost more than 2 units: %d -> %s", amount, back)
		}

		scaled = scaledDebt(x, borrowIndex)
		owed := underlyingDebt(scaled, borrowIndex)
		if owed.Cmp(x) < 0 {
			t.Fatalf("debt round trip under-collects: %d -> %s", amount, owed)
		}
		if diff := new(big.Int).Sub(owed, x); diff.Cmp(big.NewInt(2)) > 0 {
			t.Fatalf("debt round trip over-charges more than 2 units: %d -> %s", amount, owed)
		}
	}
}

func TestDecTextRoundTrip(t *testing.T) {
	d := MustDecFromString("0.674")
	text, err := d.MarshalText()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var parsed Dec
	if err := parsed.UnmarshalText(text); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !parsed.Equal(d) {
		t.Fatalf("round trip mismatch: %s vs %s", parsed, d)
	}
}
