package providers

import (
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Field locates one logical value in a provider payload. Paths is a
// fallback chain: the first path present wins. Sum adds every present path
// instead, for values a provider splits across several fields.
type Field struct {
	Paths []string
	Sum   []string
}

// FieldMap is a provider's table of logical field name to Field.
type FieldMap map[string]Field

// Lookup returns the first present path of the field's chain.
func (m FieldMap) Lookup(item gjson.Result, name string) (gjson.Result, bool) {
	for _, p := range m[name].Paths {
		if r := item.Get(p); r.Exists() && r.Type != gjson.Null {
			return r, true
		}
	}
	return gjson.Result{}, false
}

func (m FieldMap) String(item gjson.Result, name string) string {
	r, ok := m.Lookup(item, name)
	if !ok {
		return ""
	}
	return strings.TrimSpace(r.String())
}

// Int returns nil when the field is absent, so callers can tell "not
// reported" from zero.
func (m FieldMap) Int(item gjson.Result, name string) *int {
	f := m[name]
	if len(f.Sum) > 0 {
		total, seen := 0, false
		for _, p := range f.Sum {
			if r := item.Get(p); r.Exists() && r.Type != gjson.Null {
				total += int(r.Int())
				seen = true
			}
		}
		if !seen {
			return nil
		}
		return &total
	}
	r, ok := m.Lookup(item, name)
	if !ok {
		return nil
	}
	v := int(r.Int())
	return &v
}

func (m FieldMap) Float(item gjson.Result, name string) *float64 {
	r, ok := m.Lookup(item, name)
	if !ok {
		return nil
	}
	if r.Type == gjson.String {
		v, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		if err != nil {
			return nil
		}
		return &v
	}
	v := r.Float()
	return &v
}

// Bool accepts JSON booleans, 0/1 numbers and "true"/"1" strings.
func (m FieldMap) Bool(item gjson.Result, name string) *bool {
	r, ok := m.Lookup(item, name)
	if !ok {
		return nil
	}
	var v bool
	switch r.Type {
	case gjson.True, gjson.False:
		v = r.Bool()
	case gjson.Number:
		v = r.Int() != 0
	default:
		s := strings.ToLower(strings.TrimSpace(r.String()))
		v = s == "true" || s == "1"
	}
	return &v
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Time accepts unix seconds or one of the common textual layouts. Zero unix
// values mean "never" and are reported as absent.
func (m FieldMap) Time(item gjson.Result, name string) *time.Time {
	r, ok := m.Lookup(item, name)
	if !ok {
		return nil
	}
	if r.Type == gjson.Number {
		if r.Int() <= 0 {
			return nil
		}
		t := time.Unix(r.Int(), 0).UTC()
		return &t
	}
	s := strings.TrimSpace(r.String())
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
