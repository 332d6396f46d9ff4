package domain

import (
	"bytes"
	"encoding/json"
)

// Patch carries an optional update for a nullable field. Set distinguishes "leave unchanged"
// from "set to Value", where a nil Value clears the field.
type Patch[T any] struct {
	Set   bool
	Value *T
}

// SetTo returns a patch that assigns v.
func SetTo[T any](v T) Patch[T] {
	return Patch[T]{Set: true, Value: &v}
}

// Clear returns a patch that nulls the field.
func Clear[T any]() Patch[T] {
	return Patch[T]{Set: true}
}

// Apply returns the patched value for cur.
func (p Patch[T]) Apply(cur *T) *T {
	if !p.Set {
		return cur
	}
	if p.Value == nil {
		return nil
	}
	v := *p.Value
	return &v
}

// UnmarshalJSON marks the patch as set; a JSON null clears the field.
func (p *Patch[T]) UnmarshalJSON(data []byte) error {
	p.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		p.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	p.Value = &v
	return nil
}
