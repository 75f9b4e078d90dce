package boundary

import (
	"testing"
)

func TestIntFloorDivision(t *testing.T) {
	tests := []struct {
		x, y, want int64
	}{
		{7, 3, 2},
		{6, 3, 2},
		{-1, 3, -1},
		{-7, 3, -3},
		{7, -3, -3},
		{0, 5, 0},
	}
	for _, tc := range tests {
		got := Int(tc.x).QuoInt(tc.y).(Int)
		if int64(got) != tc.want {
			t.Errorf("%d/%d: expected %d, got %d", tc.x, tc.y, tc.want, got)
		}
	}
}

func TestDecimalFloorDivision(t *testing.T) {
	tests := []struct {
		x    string
		y    int64
		want string
	}{
		{"18446744073709551615", 3, "6148914691236517205"},
		{"18446744073709551614", 5, "3689348814741910322"},
		{"7", 3, "2"},
		{"-7", 3, "-3"},
		{"-1", 3, "-1"},
		{"0", 9, "0"},
	}
	for _, tc := range tests {
		got := MustParseDecimal(tc.x).QuoInt(tc.y)
		if got.String() != tc.want {
			t.Errorf("%s/%d: expected %s, got %s", tc.x, tc.y, tc.want, got)
		}
	}
}

func TestDecimalArithmeticIsExact(t *testing.T) {
	max := MustParseDecimal("18446744073709551615")
	// 2^64-1 + 1 overflows int64 and float64 mantissas; must stay exact.
	sum := max.AddInt(1)
	if sum.String() != "18446744073709551616" {
		t.Fatalf("expected 18446744073709551616, got %s", sum)
	}
	if sum.Sub(max).Cmp(NewDecimal(1)) != 0 {
		t.Fatalf("expected difference of 1, got %s", sum.Sub(max))
	}
	prod := max.MulInt(2)
	if prod.String() != "36893488147419103230" {
		t.Fatalf("unexpected product %s", prod)
	}
	if max.Cmp(sum) >= 0 || sum.Cmp(max) <= 0 {
		t.Fatalf("ordering broken")
	}
}

func TestMixedKinds(t *testing.T) {
	if Int(5).Cmp(NewDecimal(5)) != 0 {
		t.Fatalf("expected equal")
	}
	if NewDecimal(4).Cmp(Int(5)) >= 0 {
		t.Fatalf("expected 4 < 5")
	}
	r := Int(2).Add(NewDecimal(3))
	if r.String() != "5" {
		t.Fatalf("expected 5, got %s", r)
	}
}

func TestParseDecimalRejectsFractions(t *testing.T) {
	if _, err := ParseDecimal("1.5"); err == nil {
		t.Fatalf("expected error for fractional boundary")
	}
	d, err := ParseDecimal("000042")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.String() != "42" {
		t.Fatalf("expected 42, got %s", d)
	}
}

func TestDecimalCodecPadding(t *testing.T) {
	c := DecimalCodec{Width: 20}
	v, err := c.Encode(NewDecimal(42))
	if err != nil {
		t.Fatal(err)
	}
	if v.(string) != "00000000000000000042" {
		t.Fatalf("unexpected padded value %q", v)
	}
	a, _ := c.Encode(NewDecimal(9))
	b, _ := c.Encode(NewDecimal(10))
	if a.(string) >= b.(string) {
		t.Fatalf("padded text order must follow numeric order")
	}
	n, err := c.Decode([]byte("00000000000000000042"))
	if err != nil {
		t.Fatal(err)
	}
	if n.Cmp(NewDecimal(42)) != 0 {
		t.Fatalf("expected 42, got %s", n)
	}
	if _, err := c.Encode(MustParseDecimal("123456789012345678901")); err == nil {
		t.Fatalf("expected width overflow error")
	}
}

func TestIntCodec(t *testing.T) {
	var c IntCodec
	v, err := c.Encode(Int(7))
	if err != nil || v.(int64) != 7 {
		t.Fatalf("unexpected encode result %v, %v", v, err)
	}
	n, err := c.Decode(int64(9))
	if err != nil || n.Cmp(Int(9)) != 0 {
		t.Fatalf("unexpected decode result %v, %v", n, err)
	}
	s := Scanner{Codec: c}
	if err := s.Scan(nil); err != nil || s.Valid {
		t.Fatalf("NULL must scan as invalid")
	}
}
