package immotax

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// jsonObjectWriter writes a JSON object whose fields keep the order they are
// appended in, computed values included. The zero value is an empty object.
//
// The first error sticks: later calls are no-ops and MarshalJSON returns it.
type jsonObjectWriter struct {
	buf bytes.Buffer
	err error
}

// Append writes the field 'key' with the JSON encoding of 'value'.
func (w *jsonObjectWriter) Append(key string, value any) {
	if w.err != nil {
		return
	}
	v, err := json.Marshal(value)
	if err != nil {
		w.err = fmt.Errorf("cannot encode field %q: %w", key, err)
		return
	}
	k, _ := json.Marshal(key)
	if w.buf.Len() > 0 {
		w.buf.WriteByte(',')
	}
	w.buf.Write(k)
	w.buf.WriteByte(':')
	w.buf.Write(v)
}

// Optional is like Append but skips zero values.
func (w *jsonObjectWriter) Optional(key string, value any) {
	if v := reflect.ValueOf(value); v.IsValid() && !v.IsZero() {
		w.Append(key, value)
	}
}

func (w *jsonObjectWriter) MarshalJSON() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	out := make([]byte, 0, w.buf.Len()+2)
	out = append(out, '{')
	out = append(out, w.buf.Bytes()...)
	return append(out, '}'), nil
}
