package threshold

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Ratio is a number that may be undefined because its denominator was zero.
// Undefined ratios encode as JSON null and print as "--".
type Ratio struct {
	value   float64
	defined bool
}

// Value returns a defined ratio.
func Value(x float64) Ratio {
	return Ratio{value: x, defined: true}
}

// Undefined returns the ratio reported when the denominator is zero.
func Undefined() Ratio {
	return Ratio{}
}

// Get returns the value and whether it is defined.
func (r Ratio) Get() (float64, bool) {
	return r.value, r.defined
}

// IsDefined reports whether the ratio carries a value.
func (r Ratio) IsDefined() bool {
	return r.defined
}

// String formats the ratio with two decimals, or "--" when undefined.
func (r Ratio) String() string {
	if !r.defined {
		return "--"
	}
	return strconv.FormatFloat(r.value, 'f', 2, 64)
}

// MarshalJSON implements json.Marshaler.
func (r Ratio) MarshalJSON() ([]byte, error) {
	if !r.defined {
		return []byte("null"), nil
	}
	return json.Marshal(r.value)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Ratio) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*r = Undefined()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = Value(v)
	return nil
}
