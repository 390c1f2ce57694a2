// Package propconv converts typed window properties to the byte blobs a
// window server stores. Scalar values are encoded as protobuf well-known
// wrapper messages so any protobuf-speaking peer can read them.
package propconv

import (
	"encoding/hex"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"unicode/utf8"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Type names the encoding of a property.
type Type string

const (
	TypeString  Type = "string"
	TypeBool    Type = "bool"
	TypeInt64   Type = "int64"
	TypeFloat64 Type = "float64"
	TypeBytes   Type = "bytes"
)

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	switch t {
	case TypeString, TypeBool, TypeInt64, TypeFloat64, TypeBytes:
		return true
	}
	return false
}

// Registry maps property names to types. Names without a registered type are
// treated as raw bytes.
type Registry struct {
	types map[string]Type
}

// New builds a registry from a name -> type table, typically the
// "properties" section of the config file.
func New(types map[string]string) (*Registry, error) {
	r := &Registry{types: make(map[string]Type, len(types))}
	for _, name := range slices.Sorted(maps.Keys(types)) {
		if err := r.Register(name, Type(types[name])); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register sets the type of name.
func (r *Registry) Register(name string, t Type) error {
	if name == "" {
		return fmt.Errorf("property name must not be empty")
	}
	if !t.Valid() {
		return fmt.Errorf("property %q: unknown type %q", name, t)
	}
	r.types[name] = t
	return nil
}

// TypeOf returns the registered type of name, or TypeBytes.
func (r *Registry) TypeOf(name string) Type {
	if t, ok := r.types[name]; ok {
		return t
	}
	return TypeBytes
}

// Encode converts v to the wire form of property name.
func (r *Registry) Encode(name string, v any) ([]byte, error) {
	t := r.TypeOf(name)
	var msg proto.Message
	switch t {
	case TypeString:
		s, ok := v.(string)
		if !ok {
			return nil, typeError(name, t, v)
		}
		msg = wrapperspb.String(s)
	case TypeBool:
		b, ok := v.(bool)
		if !ok {
			return nil, typeError(name, t, v)
		}
		msg = wrapperspb.Bool(b)
	case TypeInt64:
		n, ok := asInt64(v)
		if !ok {
			return nil, typeError(name, t, v)
		}
		msg = wrapperspb.Int64(n)
	case TypeFloat64:
		f, ok := asFloat64(v)
		if !ok {
			return nil, typeError(name, t, v)
		}
		msg = wrapperspb.Double(f)
	default:
		switch b := v.(type) {
		case []byte:
			return slices.Clone(b), nil
		case string:
			return []byte(b), nil
		}
		return nil, typeError(name, t, v)
	}
	data, err := proto.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal property %q: %w", name, err)
	}
	if data == nil {
		// Zero values marshal to nothing; keep them distinct from "unset".
		data = []byte{}
	}
	return data, nil
}

// Decode converts the wire form of property name back to a Go value:
// string, bool, int64, float64 or []byte.
func (r *Registry) Decode(name string, data []byte) (any, error) {
	switch t := r.TypeOf(name); t {
	case TypeString:
		var m wrapperspb.StringValue
		if err := proto.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("unmarshal property %q: %w", name, err)
		}
		return m.GetValue(), nil
	case TypeBool:
		var m wrapperspb.BoolValue
		if err := proto.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("unmarshal property %q: %w", name, err)
		}
		return m.GetValue(), nil
	case TypeInt64:
		var m wrapperspb.Int64Value
		if err := proto.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("unmarshal property %q: %w", name, err)
		}
		return m.GetValue(), nil
	case TypeFloat64:
		var m wrapperspb.DoubleValue
		if err := proto.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("unmarshal property %q: %w", name, err)
		}
		return m.GetValue(), nil
	}
	return slices.Clone(data), nil
}

// Parse converts user input (CLI flags, MCP tool arguments) to the wire form
// of property name.
func (r *Registry) Parse(name, s string) ([]byte, error) {
	var v any
	switch t := r.TypeOf(name); t {
	case TypeString, TypeBytes:
		v = s
	case TypeBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", name, err)
		}
		v = b
	case TypeInt64:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", name, err)
		}
		v = n
	case TypeFloat64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", name, err)
		}
		v = f
	}
	return r.Encode(name, v)
}

// Format renders a property for display. Undecodable or binary values are
// shown as hex.
func (r *Registry) Format(name string, data []byte) string {
	v, err := r.Decode(name, data)
	if err != nil {
		return "0x" + hex.EncodeToString(data)
	}
	switch v := v.(type) {
	case []byte:
		if utf8.Valid(v) {
			return strconv.Quote(string(v))
		}
		return "0x" + hex.EncodeToString(v)
	case string:
		return strconv.Quote(v)
	}
	return fmt.Sprint(v)
}

func typeError(name string, t Type, v any) error {
	return fmt.Errorf("property %q: cannot encode %T as %s", name, v, t)
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint32:
		return int64(n), true
	}
	return 0, false
}

func asFloat64(v any) (float64, bool) {
	switch f := v.(type) {
	case float32:
		return float64(f), true
	case float64:
		return f, true
	}
	return 0, false
}
