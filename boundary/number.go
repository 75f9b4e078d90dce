// Package boundary provides the numeric types used for nested-set boundaries.
// The Simple strategy uses Int, the Spreaded strategy uses Decimal; both satisfy Number
// so allocation code can be written once against ordering and arithmetic alone.
package boundary

import (
	"fmt"
	"strconv"

	"github.com/cockroachdb/apd/v3"
)

// Number is an immutable boundary value.
type Number interface {
	// Cmp returns -1, 0 or 1.
	Cmp(y Number) int
	Add(y Number) Number
	Sub(y Number) Number
	AddInt(y int64) Number
	MulInt(y int64) Number
	// QuoInt divides by y rounding toward negative infinity. y must not be zero.
	QuoInt(y int64) Number
	Sign() int
	String() string
}

// Int is a 64 bit integer boundary.
type Int int64

func (x Int) Cmp(y Number) int {
	if yi, ok := y.(Int); ok {
		switch {
		case x < yi:
			return -1
		case x > yi:
			return 1
		}
		return 0
	}
	return x.decimal().Cmp(y)
}

func (x Int) Add(y Number) Number {
	if yi, ok := y.(Int); ok {
		return x + yi
	}
	return x.decimal().Add(y)
}

func (x Int) Sub(y Number) Number {
	if yi, ok := y.(Int); ok {
		return x - yi
	}
	return x.decimal().Sub(y)
}

func (x Int) AddInt(y int64) Number { return x + Int(y) }

func (x Int) MulInt(y int64) Number { return x * Int(y) }

func (x Int) QuoInt(y int64) Number {
	q := int64(x) / y
	if r := int64(x) % y; r != 0 && ((r < 0) != (y < 0)) {
		q--
	}
	return Int(q)
}

func (x Int) Sign() int {
	switch {
	case x < 0:
		return -1
	case x > 0:
		return 1
	}
	return 0
}

func (x Int) String() string { return strconv.FormatInt(int64(x), 10) }

// Int64 returns the raw value.
func (x Int) Int64() int64 { return int64(x) }

func (x Int) decimal() Decimal {
	return NewDecimal(int64(x))
}

// arith carries enough digits that sums and products of 2^64 sized boundaries stay exact.
var arith = apd.BaseContext.WithPrecision(80)

// Decimal is an arbitrary precision integer boundary backed by apd.
type Decimal struct {
	d *apd.Decimal
}

// NewDecimal returns v as a Decimal.
func NewDecimal(v int64) Decimal {
	return Decimal{d: apd.New(v, 0)}
}

// ParseDecimal parses a base 10 integer, leading zeros allowed.
func ParseDecimal(s string) (Decimal, error) {
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return Decimal{}, fmt.Errorf("invalid boundary %q: %w", s, err)
	}
	var i apd.Decimal
	if _, err := arith.RoundToIntegralExact(&i, d); err != nil {
		return Decimal{}, fmt.Errorf("invalid boundary %q: %w", s, err)
	}
	if i.Cmp(d) != 0 {
		return Decimal{}, fmt.Errorf("boundary %q is not an integer", s)
	}
	return Decimal{d: fixExponent(&i)}, nil
}

// MustParseDecimal is ParseDecimal that panics on failure. Use for constants only.
func MustParseDecimal(s string) Decimal {
	d, err := ParseDecimal(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (x Decimal) value() *apd.Decimal {
	if x.d == nil {
		return apd.New(0, 0)
	}
	return x.d
}

func (x Decimal) Cmp(y Number) int {
	return x.value().Cmp(toDecimal(y).value())
}

func (x Decimal) Add(y Number) Number {
	var r apd.Decimal
	mustOK(arith.Add(&r, x.value(), toDecimal(y).value()))
	return Decimal{d: &r}
}

func (x Decimal) Sub(y Number) Number {
	var r apd.Decimal
	mustOK(arith.Sub(&r, x.value(), toDecimal(y).value()))
	return Decimal{d: &r}
}

func (x Decimal) AddInt(y int64) Number {
	return x.Add(NewDecimal(y))
}

func (x Decimal) MulInt(y int64) Number {
	var r apd.Decimal
	mustOK(arith.Mul(&r, x.value(), apd.New(y, 0)))
	return Decimal{d: &r}
}

func (x Decimal) QuoInt(y int64) Number {
	var q, rem apd.Decimal
	divisor := apd.New(y, 0)
	mustOK(arith.QuoInteger(&q, x.value(), divisor))
	mustOK(arith.Rem(&rem, x.value(), divisor))
	if !rem.IsZero() && ((rem.Sign() < 0) != (y < 0)) {
		mustOK(arith.Sub(&q, &q, apd.New(1, 0)))
	}
	return Decimal{d: &q}
}

func (x Decimal) Sign() int { return x.value().Sign() }

func (x Decimal) String() string {
	return x.value().Text('f')
}

func toDecimal(n Number) Decimal {
	switch v := n.(type) {
	case Decimal:
		return v
	case Int:
		return v.decimal()
	}
	d, err := ParseDecimal(n.String())
	if err != nil {
		panic(err)
	}
	return d
}

// fixExponent rewrites a positive exponent into the coefficient so Text('f') never
// relies on exponent notation handling.
func fixExponent(d *apd.Decimal) *apd.Decimal {
	if d.Exponent <= 0 {
		return d
	}
	var r apd.Decimal
	mustOK(arith.Quantize(&r, d, 0))
	return &r
}

func mustOK(_ apd.Condition, err error) {
	if err != nil {
		panic(fmt.Errorf("boundary arithmetic: %w", err))
	}
}

// Max returns the larger of x and y.
func Max(x, y Number) Number {
	if x.Cmp(y) >= 0 {
		return x
	}
	return y
}
