package tablestate

import (
	"reflect"
	"sort"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/vango-dev/datatable/pkg/table"
)

// FormatSort renders sort specs as "field:order,field:order".
func FormatSort(specs []table.SortSpec) string {
	parts := make([]string, 0, len(specs))
	for _, s := range specs {
		if s.Field == "" {
			continue
		}
		order := s.Order
		if order != table.SortDesc {
			order = table.SortAsc
		}
		parts = append(parts, s.Field+":"+string(order))
	}
	return strings.Join(parts, ",")
}

// ParseSort is the inverse of FormatSort. A missing order means ascending;
// entries with an empty field are skipped.
func ParseSort(s string) []table.SortSpec {
	if s == "" {
		return nil
	}
	var out []table.SortSpec
	for _, part := range strings.Split(s, ",") {
		field, order, _ := strings.Cut(strings.TrimSpace(part), ":")
		if field == "" {
			continue
		}
		spec := table.SortSpec{Field: field, Order: table.SortAsc}
		if strings.EqualFold(order, string(table.SortDesc)) {
			spec.Order = table.SortDesc
		}
		out = append(out, spec)
	}
	return out
}

// FilterCodec maps filters to and from flat string parameters.
type FilterCodec[F any] struct {
	Encode func(F) map[string]string
	Decode func(map[string]string) F
}

// JSONFilters is the default FilterCodec: each top-level field of the JSON
// form of F becomes one parameter. Strings are written as is, anything else
// as JSON. Zero-valued fields are omitted.
func JSONFilters[F any]() FilterCodec[F] {
	var zero F
	kinds := fieldKinds(zero)

	return FilterCodec[F]{
		Encode: func(f F) map[string]string {
			b, err := json.Marshal(f)
			if err != nil {
				return nil
			}
			var fields map[string]json.RawMessage
			if err := json.Unmarshal(b, &fields); err != nil {
				return nil
			}
			out := make(map[string]string, len(fields))
			for name, raw := range fields {
				if isZeroJSON(raw) {
					continue
				}
				var s string
				if raw[0] == '"' && json.Unmarshal(raw, &s) == nil {
					out[name] = s
					continue
				}
				out[name] = string(raw)
			}
			return out
		},
		Decode: func(params map[string]string) F {
			fields := make(map[string]json.RawMessage, len(params))
			for name, v := range params {
				fields[name] = decodeParam(v, kinds[name])
			}
			var f F
			b, err := json.Marshal(fields)
			if err != nil {
				return zero
			}
			if err := json.Unmarshal(b, &f); err != nil {
				return zero
			}
			return f
		},
	}
}

// fieldKinds records which top-level fields of a struct F are strings, keyed
// by their JSON name.
func fieldKinds(zero any) map[string]bool {
	t := reflect.TypeOf(zero)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}
	kinds := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		kinds[name] = f.Type.Kind() == reflect.String
	}
	return kinds
}

func decodeParam(v string, isString bool) json.RawMessage {
	if !isString && json.Valid([]byte(v)) {
		return json.RawMessage(v)
	}
	b, _ := json.Marshal(v)
	return b
}

func isZeroJSON(raw json.RawMessage) bool {
	switch string(raw) {
	case "", "null", `""`, "0", "false", "[]", "{}":
		return true
	}
	return false
}

// sortedKeys returns the keys of m in order.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
