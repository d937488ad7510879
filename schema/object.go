package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Object is a JSON object that preserves key insertion order. Generated and
// repaired instances use Object so runs are byte-deterministic under a seed;
// plain map ordering would reshuffle output between processes.
type Object struct {
	keys   []string
	values map[string]any
}

// NewObject creates an empty ordered object.
func NewObject() *Object {
	return &Object{values: make(map[string]any)}
}

// Set stores a value, appending the key on first insertion.
func (o *Object) Set(key string, v any) {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}

	o.values[key] = v
}

// Get returns the value for key.
func (o *Object) Get(key string) (any, bool) {
	v, ok := o.values[key]

	return v, ok
}

// Delete removes a key, preserving the order of the remaining keys.
func (o *Object) Delete(key string) {
	if _, ok := o.values[key]; !ok {
		return
	}

	delete(o.values, key)

	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)

			break
		}
	}
}

// Rename moves the value at from to to, keeping the original key position.
func (o *Object) Rename(from, to string) {
	v, ok := o.values[from]
	if !ok {
		return
	}

	delete(o.values, from)
	o.values[to] = v

	for i, k := range o.keys {
		if k == from {
			o.keys[i] = to

			break
		}
	}
}

// Keys returns the keys in insertion order. The slice is shared; callers
// must not mutate it.
func (o *Object) Keys() []string {
	return o.keys
}

// Len returns the number of keys.
func (o *Object) Len() int {
	return len(o.keys)
}

// MarshalJSON renders the object with keys in insertion order.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')

	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}

		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}

		buf.Write(kb)
		buf.WriteByte(':')

		vb, err := json.Marshal(normalizeValue(o.values[k]))
		if err != nil {
			return nil, err
		}

		buf.Write(vb)
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// ToPlain deep-converts an instance tree into plain maps and slices for
// validators that do not understand [Object].
func ToPlain(v any) any {
	switch x := v.(type) {
	case *Object:
		m := make(map[string]any, x.Len())
		for _, k := range x.Keys() {
			val, _ := x.Get(k)
			m[k] = ToPlain(val)
		}

		return m

	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = ToPlain(e)
		}

		return out

	case float64:
		return normalizeValue(x)

	default:
		return v
	}
}

// Clone deep-copies an instance tree.
func Clone(v any) any {
	switch x := v.(type) {
	case *Object:
		out := NewObject()
		for _, k := range x.Keys() {
			val, _ := x.Get(k)
			out.Set(k, Clone(val))
		}

		return out

	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Clone(e)
		}

		return out

	default:
		return v
	}
}

// Equal reports deep equality of two instance trees. Objects compare by
// key set and values, ignoring key order; -0 and +0 compare equal.
func Equal(a, b any) bool {
	switch x := a.(type) {
	case *Object:
		y, ok := b.(*Object)
		if !ok || x.Len() != y.Len() {
			return false
		}

		for _, k := range x.Keys() {
			av, _ := x.Get(k)

			bv, exists := y.Get(k)
			if !exists || !Equal(av, bv) {
				return false
			}
		}

		return true

	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}

		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}

		return true

	default:
		return numericEqual(a, b)
	}
}

// numericEqual compares scalars, treating all numeric representations of
// the same value as equal (5, int64(5), and 5.0 all compare equal).
func numericEqual(a, b any) bool {
	af, aok := asFloat(a)

	bf, bok := asFloat(b)
	if aok && bok {
		return af == bf
	}

	return a == b
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}

		return f, true
	}

	return 0, false
}

// normalizeValue rewrites -0 to 0 for serialization. NaN and infinities are
// never emitted by the generator; reaching one here is a bug upstream.
func normalizeValue(v any) any {
	f, ok := v.(float64)
	if !ok {
		return v
	}

	if f == 0 {
		return 0.0
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		panic(fmt.Sprintf("schema: non-finite value %v in instance tree", f))
	}

	return f
}
