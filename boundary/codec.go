package boundary

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
)

// Codec converts boundaries to and from SQL column values.
type Codec interface {
	// Encode returns the driver value bound for n.
	Encode(n Number) (driver.Value, error)
	// Decode parses a scanned column value.
	Decode(src any) (Number, error)
	// Zero returns the zero boundary of the codec's kind.
	Zero() Number
	// FromInt returns v in the codec's kind.
	FromInt(v int64) Number
}

// IntCodec stores boundaries in INTEGER columns.
type IntCodec struct{}

func (IntCodec) Encode(n Number) (driver.Value, error) {
	switch v := n.(type) {
	case Int:
		return int64(v), nil
	case Decimal:
		i, err := strconv.ParseInt(v.String(), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("boundary %s does not fit an integer column: %w", v, err)
		}
		return i, nil
	}
	return nil, fmt.Errorf("unsupported boundary type %T", n)
}

func (IntCodec) Decode(src any) (Number, error) {
	switch v := src.(type) {
	case int64:
		return Int(v), nil
	case int:
		return Int(v), nil
	case int32:
		return Int(v), nil
	case float64:
		return Int(int64(v)), nil
	case []byte:
		return parseInt(string(v))
	case string:
		return parseInt(v)
	case nil:
		return nil, fmt.Errorf("boundary is NULL")
	}
	return nil, fmt.Errorf("unsupported boundary column type %T", src)
}

func (IntCodec) Zero() Number { return Int(0) }

func (IntCodec) FromInt(v int64) Number { return Int(v) }

func parseInt(s string) (Number, error) {
	i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid integer boundary %q: %w", s, err)
	}
	return Int(i), nil
}

// DecimalCodec stores boundaries as base 10 text. When Width is positive values
// are left padded with zeros to that width so lexicographic column order equals
// numeric order (SQLite TEXT columns). Width zero binds plain strings (DECIMAL columns).
type DecimalCodec struct {
	Width int
}

func (c DecimalCodec) Encode(n Number) (driver.Value, error) {
	if n.Sign() < 0 {
		return nil, fmt.Errorf("negative boundary %s", n)
	}
	s := toDecimal(n).String()
	if c.Width <= 0 {
		return s, nil
	}
	if len(s) > c.Width {
		return nil, fmt.Errorf("boundary %s exceeds %d digits", s, c.Width)
	}
	return strings.Repeat("0", c.Width-len(s)) + s, nil
}

func (c DecimalCodec) Decode(src any) (Number, error) {
	switch v := src.(type) {
	case []byte:
		return ParseDecimal(string(v))
	case string:
		return ParseDecimal(v)
	case int64:
		return NewDecimal(v), nil
	case float64:
		return nil, fmt.Errorf("boundary scanned as float64 loses precision")
	case nil:
		return nil, fmt.Errorf("boundary is NULL")
	}
	return nil, fmt.Errorf("unsupported boundary column type %T", src)
}

func (DecimalCodec) Zero() Number { return NewDecimal(0) }

func (DecimalCodec) FromInt(v int64) Number { return NewDecimal(v) }

// Scanner adapts a Codec to sql.Scanner for nullable boundary columns such as MAX(RGT).
type Scanner struct {
	Codec  Codec
	Number Number
	Valid  bool
}

// Scan implements sql.Scanner.
func (s *Scanner) Scan(src any) error {
	if src == nil {
		s.Number, s.Valid = nil, false
		return nil
	}
	n, err := s.Codec.Decode(src)
	if err != nil {
		return err
	}
	s.Number, s.Valid = n, true
	return nil
}

// Valuer binds n as a query argument encoded by Codec.
type Valuer struct {
	Codec  Codec
	Number Number
}

// Value implements driver.Valuer.
func (v Valuer) Value() (driver.Value, error) {
	return v.Codec.Encode(v.Number)
}
