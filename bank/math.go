package bank

import (
	"fmt"
	"math/big"
	"strings"
)

// wad is the fixed denominator used for all decimal arithmetic (1e18).
var wad = big.NewInt(1_000_000_000_000_000_000)

const decPlaces = 18

// Dec is a fixed-point decimal backed by a wad-scaled big integer. The zero
// value is usable and equal to 0.0. All operations are arbitrary precision;
// overflow cannot silently wrap.
type Dec struct {
	v *big.Int
}

func (d Dec) val() *big.Int {
	if d.v == nil {
		return big.NewInt(0)
	}
	return d.v
}

func ZeroDec() Dec { return Dec{v: big.NewInt(0)} }

func OneDec() Dec { return Dec{v: new(big.Int).Set(wad)} }

// DecFromInt converts a whole integer amount into a decimal.
func DecFromInt(x *big.Int) Dec {
	if x == nil {
		return ZeroDec()
	}
	return Dec{v: new(big.Int).Mul(x, wad)}
}

// DecFromRatio builds the decimal num/den, truncating toward zero. A zero
// denominator yields zero.
func DecFromRatio(num, den *big.Int) Dec {
	if num == nil || den == nil || den.Sign() == 0 {
		return ZeroDec()
	}
	v := new(big.Int).Mul(num, wad)
	return Dec{v: v.Quo(v, den)}
}

// MustDecFromString parses a decimal literal such as "0.55" or "2". It panics
// on malformed input and is intended for constants and configuration defaults.
func MustDecFromString(s string) Dec {
	d, err := DecFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// DecFromString parses a decimal literal with up to 18 fractional digits.
func DecFromString(s string) (Dec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Dec{}, fmt.Errorf("empty decimal string")
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	whole, frac := s, ""
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		whole, frac = s[:idx], s[idx+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > decPlaces {
		return Dec{}, fmt.Errorf("decimal %q exceeds %d fractional digits", s, decPlaces)
	}
	frac += strings.Repeat("0", decPlaces-len(frac))
	combined := whole + frac
	v, ok := new(big.Int).SetString(combined, 10)
	if !ok {
		return Dec{}, fmt.Errorf("invalid decimal string %q", s)
	}
	if neg {
		v.Neg(v)
	}
	return Dec{v: v}, nil
}

func (d Dec) String() string {
	v := d.val()
	neg := v.Sign() < 0
	abs := new(big.Int).Abs(v)
	whole, frac := new(big.Int).QuoRem(abs, wad, new(big.Int))
	out := fmt.Sprintf("%s.%018s", whole.String(), frac.String())
	if neg {
		out = "-" + out
	}
	return out
}

// MarshalText renders the decimal as its string form so JSON encodes it as a
// quoted value rather than a float.
func (d Dec) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Dec) UnmarshalText(text []byte) error {
	parsed, err := DecFromString(string(text))
	if err != nil {
		return err
	}
	d.v = parsed.val()
	return nil
}

// BigInt returns a copy of the wad-scaled backing integer.
func (d Dec) BigInt() *big.Int { return new(big.Int).Set(d.val()) }

// TruncateInt drops the fractional part, rounding toward zero.
func (d Dec) TruncateInt() *big.Int { return new(big.Int).Quo(d.val(), wad) }

// Float64 returns a lossy float approximation, suitable for gauges only.
func (d Dec) Float64() float64 {
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(d.val()), new(big.Float).SetInt(wad)).Float64()
	return f
}

func (d Dec) IsZero() bool     { return d.val().Sign() == 0 }
func (d Dec) IsNegative() bool { return d.val().Sign() < 0 }

func (d Dec) Cmp(o Dec) int   { return d.val().Cmp(o.val()) }
func (d Dec) LT(o Dec) bool   { return d.Cmp(o) < 0 }
func (d Dec) LTE(o Dec) bool  { return d.Cmp(o) <= 0 }
func (d Dec) GT(o Dec) bool   { return d.Cmp(o) > 0 }
func (d Dec) GTE(o Dec) bool  { return d.Cmp(o) >= 0 }
func (d Dec) Equal(o Dec) bool { return d.Cmp(o) == 0 }

func (d Dec) Add(o Dec) Dec {
	return Dec{v: new(big.Int).Add(d.val(), o.val())}
}

func (d Dec) Sub(o Dec) Dec {
	return Dec{v: new(big.Int).Sub(d.val(), o.val())}
}

// Mul multiplies two decimals, truncating toward zero.
func (d Dec) Mul(o Dec) Dec {
	v := new(big.Int).Mul(d.val(), o.val())
	return Dec{v: v.Quo(v, wad)}
}

// Quo divides two decimals, truncating toward zero. Division by zero yields
// zero; callers guard against it where the distinction matters.
func (d Dec) Quo(o Dec) Dec {
	if o.IsZero() {
		return ZeroDec()
	}
	v := new(big.Int).Mul(d.val(), wad)
	return Dec{v: v.Quo(v, o.val())}
}

// MulIntTruncate multiplies an integer amount by the decimal, truncating the
// result toward zero.
func (d Dec) MulIntTruncate(x *big.Int) *big.Int {
	if x == nil {
		return big.NewInt(0)
	}
	v := new(big.Int).Mul(x, d.val())
	return v.Quo(v, wad)
}

// MulIntCeil multiplies an integer amount by the decimal, rounding the result
// up to the next integer.
func (d Dec) MulIntCeil(x *big.Int) *big.Int {
	if x == nil {
		return big.NewInt(0)
	}
	v := new(big.Int).Mul(x, d.val())
	return ceilDiv(v, wad)
}

// DivIntDecTruncate divides an integer amount by the decimal, truncating.
func DivIntDecTruncate(x *big.Int, d Dec) *big.Int {
	if x == nil || d.IsZero() {
		return big.NewInt(0)
	}
	v := new(big.Int).Mul(x, wad)
	return v.Quo(v, d.val())
}

// DivIntDecCeil divides an integer amount by the decimal, rounding up.
func DivIntDecCeil(x *big.Int, d Dec) *big.Int {
	if x == nil || d.IsZero() {
		return big.NewInt(0)
	}
	v := new(big.Int).Mul(x, wad)
	return ceilDiv(v, d.val())
}

func ceilDiv(num, den *big.Int) *big.Int {
	quo, rem := new(big.Int).QuoRem(num, den, new(big.Int))
	if rem.Sign() > 0 {
		quo.Add(quo, big.NewInt(1))
	}
	return quo
}

func minInt(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

func minDec(a, b Dec) Dec {
	if a.LTE(b) {
		return a
	}
	return b
}

func maxDec(a, b Dec) Dec {
	if a.GTE(b) {
		return a
	}
	return b
}

// Scaled<->underlying conversions. Liquidity amounts always round in favour of
// the pool holding the remainder (truncate), debt amounts always round so the
// pool never under-collects (ceil). The asymmetry is a protocol-safety
// invariant, not an approximation.

func underlyingLiquidity(scaled *big.Int, liquidityIndex Dec) *big.Int {
	return liquidityIndex.MulIntTruncate(scaled)
}

func scaledLiquidity(amount *big.Int, liquidityIndex Dec) *big.Int {
	return DivIntDecTruncate(amount, liquidityIndex)
}

func underlyingDebt(scaled *big.Int, borrowIndex Dec) *big.Int {
	return borrowIndex.MulIntCeil(scaled)
}

func scaledDebt(amount *big.Int, borrowIndex Dec) *big.Int {
	return DivIntDecCeil(amount, borrowIndex)
}
