package engine

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/shopspring/decimal"
)

// NotAvailable is how an undefined metric is displayed.
const NotAvailable = "n/a"

// Metric is a number that may be explicitly undefined, for example a ratio
// with a zero denominator. An undefined metric is never rendered as 0 or 100.
type Metric struct {
	Value   float64
	Defined bool
}

// Defined returns a defined metric.
func Defined(v float64) Metric {
	return Metric{Value: v, Defined: true}
}

// Undefined returns an undefined metric.
func Undefined() Metric {
	return Metric{}
}

// Get returns the value and whether it is defined.
func (m Metric) Get() (float64, bool) {
	return m.Value, m.Defined
}

// String formats the metric with two decimals, or "n/a".
func (m Metric) String() string {
	if !m.Defined {
		return NotAvailable
	}
	return strconv.FormatFloat(m.Value, 'f', 2, 64)
}

// MarshalJSON encodes undefined metrics as null.
func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.Defined {
		return []byte("null"), nil
	}
	return json.Marshal(m.Value)
}

// UnmarshalJSON decodes null as undefined.
func (m *Metric) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*m = Metric{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = Defined(v)
	return nil
}

// Round2 rounds half-to-even at two decimal places.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).RoundBank(2).InexactFloat64()
}
