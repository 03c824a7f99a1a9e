package probe

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Metrics is an ordered set of named numeric measurements. Names keep the
// position of their first insertion.
//
// Copies of a Metrics value share storage; use Clone before modifying a copy.
type Metrics struct {
	pairs *orderedmap.OrderedMap[string, float64]
}

// NewMetrics builds Metrics from alternating name/value pairs. Values may be
// any Go numeric type; anything else panics, since it is a programming error.
func NewMetrics(kv ...any) Metrics {
	if len(kv)%2 != 0 {
		panic("probe.NewMetrics: odd number of arguments")
	}
	var m Metrics
	for i := 0; i < len(kv); i += 2 {
		name, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("probe.NewMetrics: name %v is not a string", kv[i]))
		}
		value, ok := Numeric(kv[i+1])
		if !ok {
			panic(fmt.Sprintf("probe.NewMetrics: value for %q is not numeric", name))
		}
		m.Set(name, value)
	}
	return m
}

// Set records a value, keeping the original position if name already exists.
func (m *Metrics) Set(name string, value float64) {
	if m.pairs == nil {
		m.pairs = orderedmap.New[string, float64]()
	}
	m.pairs.Set(name, value)
}

// Clone returns an independent copy of m.
func (m Metrics) Clone() Metrics {
	var c Metrics
	m.Each(c.Set)
	return c
}

// Get returns the value stored under name.
func (m Metrics) Get(name string) (float64, bool) {
	if m.pairs == nil {
		return 0, false
	}
	return m.pairs.Get(name)
}

func (m Metrics) Len() int {
	if m.pairs == nil {
		return 0
	}
	return m.pairs.Len()
}

// Each calls fn for every metric in insertion order.
func (m Metrics) Each(fn func(name string, value float64)) {
	if m.pairs == nil {
		return
	}
	for pair := m.pairs.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Key, pair.Value)
	}
}

// Names returns the metric names in insertion order.
func (m Metrics) Names() []string {
	names := make([]string, 0, m.Len())
	m.Each(func(name string, _ float64) {
		names = append(names, name)
	})
	return names
}

// MarshalJSON writes an object in insertion order. NaN and infinities have no
// JSON representation and are written as null.
func (m Metrics) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	var err error
	m.Each(func(name string, value float64) {
		if err != nil {
			return
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		var key []byte
		if key, err = json.Marshal(name); err != nil {
			return
		}
		buf.Write(key)
		buf.WriteByte(':')
		if math.IsNaN(value) || math.IsInf(value, 0) {
			buf.WriteString("null")
			return
		}
		buf.WriteString(strconv.FormatFloat(value, 'g', -1, 64))
	})
	if err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object, preserving document order. null values
// become NaN.
func (m *Metrics) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		*m = Metrics{}
		return nil
	}
	raw := orderedmap.New[string, *float64]()
	if err := raw.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("decoding metrics: %w", err)
	}
	*m = Metrics{}
	for pair := raw.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value == nil {
			m.Set(pair.Key, math.NaN())
			continue
		}
		m.Set(pair.Key, *pair.Value)
	}
	return nil
}

// Numeric converts Go numeric and boolean values to float64. Booleans become
// 1 or 0.
func Numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
