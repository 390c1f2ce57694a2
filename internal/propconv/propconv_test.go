package propconv

import (
	"testing"

	"github.com/go-playground/assert/v2"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func testRegistry(t *testing.T) *Registry {
	r, err := New(map[string]string{
		"title":   "string",
		"urgent":  "bool",
		"pid":     "int64",
		"scale":   "float64",
		"payload": "bytes",
	})
	assert.Equal(t, err, nil)
	return r
}

func TestRoundTripTypedValues(t *testing.T) {
	r := testRegistry(t)

	cases := []struct {
		name string
		in   any
		out  any
	}{
		{"title", "terminal", "terminal"},
		{"urgent", true, true},
		{"pid", 4242, int64(4242)},
		{"scale", float32(1.5), 1.5},
		{"payload", []byte{0, 1, 2}, []byte{0, 1, 2}},
		{"unregistered", "raw", []byte("raw")},
	}
	for _, c := range cases {
		data, err := r.Encode(c.name, c.in)
		assert.Equal(t, err, nil)
		got, err := r.Decode(c.name, data)
		assert.Equal(t, err, nil)
		assert.Equal(t, got, c.out)
	}
}

func TestEncodeUsesWrapperMessages(t *testing.T) {
	r := testRegistry(t)

	data, err := r.Encode("title", "hello")
	assert.Equal(t, err, nil)

	var m wrapperspb.StringValue
	assert.Equal(t, proto.Unmarshal(data, &m), nil)
	assert.Equal(t, m.GetValue(), "hello")
}

func TestZeroValueIsNotUnset(t *testing.T) {
	r := testRegistry(t)

	data, err := r.Encode("urgent", false)
	assert.Equal(t, err, nil)
	assert.NotEqual(t, data, nil)
	assert.Equal(t, len(data), 0)

	v, err := r.Decode("urgent", data)
	assert.Equal(t, err, nil)
	assert.Equal(t, v, false)
}

func TestEncodeTypeMismatch(t *testing.T) {
	r := testRegistry(t)

	_, err := r.Encode("pid", "not a number")
	assert.NotEqual(t, err, nil)
	_, err = r.Encode("title", 12)
	assert.NotEqual(t, err, nil)
}

func TestNewRejectsUnknownType(t *testing.T) {
	_, err := New(map[string]string{"title": "uuid"})
	assert.NotEqual(t, err, nil)
	_, err = New(map[string]string{"": "string"})
	assert.NotEqual(t, err, nil)
}

func TestParseAndFormat(t *testing.T) {
	r := testRegistry(t)

	data, err := r.Parse("pid", "77")
	assert.Equal(t, err, nil)
	assert.Equal(t, r.Format("pid", data), "77")

	data, err = r.Parse("urgent", "true")
	assert.Equal(t, err, nil)
	assert.Equal(t, r.Format("urgent", data), "true")

	data, err = r.Parse("title", "vim")
	assert.Equal(t, err, nil)
	assert.Equal(t, r.Format("title", data), `"vim"`)

	_, err = r.Parse("scale", "wide")
	assert.NotEqual(t, err, nil)

	assert.Equal(t, r.Format("blob", []byte{0xff, 0xfe}), "0xfffe")
	assert.Equal(t, r.Format("blob", []byte("text")), `"text"`)
}
