package selection

import (
	"fmt"
	"math/big"
	"reflect"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

var (
	timeType   = reflect.TypeOf(time.Time{})
	bigIntType = reflect.TypeOf(big.Int{})
)

// StableKey serializes v so that values with equal content produce equal
// keys regardless of identity or map order. Times render as RFC 3339 UTC,
// big integers as decimal strings, nil and empty slices alike.
func StableKey(v any) string {
	b, err := json.Marshal(normalize(reflect.ValueOf(v)))
	if err != nil {
		return fmt.Sprintf("%#v", v)
	}
	return string(b)
}

func normalize(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}
	switch v.Type() {
	case timeType:
		return v.Interface().(time.Time).UTC().Format(time.RFC3339Nano)
	case bigIntType:
		n := v.Interface().(big.Int)
		return n.String()
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return normalize(v.Elem())
	case reflect.Struct:
		out := make(map[string]any, v.NumField())
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			name := field.Name
			if tag, ok := field.Tag.Lookup("json"); ok {
				tagName, _, _ := strings.Cut(tag, ",")
				if tagName == "-" {
					continue
				}
				if tagName != "" {
					name = tagName
				}
			}
			out[name] = normalize(v.Field(i))
		}
		return out
	case reflect.Map:
		out := make(map[string]any, v.Len())
		// Marshal orders map keys.
		for _, k := range v.MapKeys() {
			out[fmt.Sprint(k.Interface())] = normalize(v.MapIndex(k))
		}
		return out
	case reflect.Slice, reflect.Array:
		out := make([]any, v.Len())
		for i := range out {
			out[i] = normalize(v.Index(i))
		}
		return out
	}
	if v.CanInterface() {
		return v.Interface()
	}
	return nil
}
