package value

import (
	"encoding/json"
	"fmt"
)

// Encode renders v, stored under kind k, as JSON.
func Encode(k Kind, v any) (json.RawMessage, error) {
	cv, ok := Coerce(v, k)
	if !ok {
		return nil, fmt.Errorf("%w: %v for %s", ErrKindMismatch, v, k)
	}
	if e, ok := cv.(Enum); ok {
		cv = string(e)
	}
	return json.Marshal(cv)
}

// Decode parses JSON produced by Encode (or hand-written scene documents)
// into a value of kind k. Colors also accept "#rrggbb[aa]" strings.
func Decode(k Kind, raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return Zero(k), nil
	}
	var err error
	switch k {
	case KindColor:
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return ParseColor(s)
		}
		c := Color{A: 1}
		err = json.Unmarshal(raw, &c)
		return c, err
	case KindVector2:
		var v Vector2
		err = json.Unmarshal(raw, &v)
		return v, err
	case KindRect:
		var r Rect
		err = json.Unmarshal(raw, &r)
		return r, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	if k == KindAny {
		return generic, nil
	}
	v, ok := Coerce(generic, k)
	if !ok {
		return nil, fmt.Errorf("%w: %s for %s", ErrKindMismatch, raw, k)
	}
	return v, nil
}

// DecodeAny parses an untyped literal. JSON objects with r/g/b keys become
// colors and objects with x/y keys become vectors; scalars keep their JSON
// type.
func DecodeAny(raw json.RawMessage) (any, error) {
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	m, ok := generic.(map[string]any)
	if !ok {
		return generic, nil
	}
	_, hasR := m["r"]
	_, hasX := m["x"]
	_, hasW := m["width"]
	switch {
	case hasR:
		return Decode(KindColor, raw)
	case hasW:
		return Decode(KindRect, raw)
	case hasX:
		return Decode(KindVector2, raw)
	}
	return generic, nil
}

// EncodeAny renders an untyped literal.
func EncodeAny(v any) (json.RawMessage, error) {
	if e, ok := v.(Enum); ok {
		v = string(e)
	}
	return json.Marshal(v)
}
