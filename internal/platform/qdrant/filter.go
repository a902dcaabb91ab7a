package qdrant

import (
	"fmt"
	"sort"
	"strings"
)

const (
	filterOpIn = "$in"
	filterOpNe = "$ne"
)

type translatedFilter struct {
	Must    []any
	MustNot []any
}

func (f translatedFilter) asMap() map[string]any {
	if len(f.Must) == 0 && len(f.MustNot) == 0 {
		return nil
	}
	out := map[string]any{}
	if len(f.Must) > 0 {
		out["must"] = f.Must
	}
	if len(f.MustNot) > 0 {
		out["must_not"] = f.MustNot
	}
	return out
}

// translateFilter turns a flat payload filter into Qdrant conditions.
// Values are scalars (exact match), scalar slices (match any), or {"$in": [...]} / {"$ne": v}.
func translateFilter(filter map[string]any) (translatedFilter, error) {
	out := translatedFilter{}
	keys := make([]string, 0, len(filter))
	for key := range filter {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		field := strings.TrimSpace(key)
		if field == "" {
			continue
		}
		if strings.HasPrefix(field, "$") {
			return translatedFilter{}, opErr(
				"filter_translate",
				OperationErrorUnsupportedFilter,
				fmt.Sprintf("unsupported top-level filter operator %q", field),
				nil,
			)
		}

		switch typed := filter[key].(type) {
		case map[string]any:
			for op, v := range typed {
				switch strings.ToLower(strings.TrimSpace(op)) {
				case filterOpIn:
					values, err := toScalarSlice(v)
					if err != nil || len(values) == 0 {
						return translatedFilter{}, opErr(
							"filter_translate",
							OperationErrorValidation,
							fmt.Sprintf("operator %s for field %q expects a non-empty scalar array", filterOpIn, field),
							err,
						)
					}
					out.Must = append(out.Must, matchAny(field, values))
				case filterOpNe:
					scalar, ok := toScalarValue(v)
					if !ok {
						return translatedFilter{}, opErr(
							"filter_translate",
							OperationErrorValidation,
							fmt.Sprintf("operator %s for field %q expects scalar value", filterOpNe, field),
							nil,
						)
					}
					out.MustNot = append(out.MustNot, matchValue(field, scalar))
				default:
					return translatedFilter{}, opErr(
						"filter_translate",
						OperationErrorUnsupportedFilter,
						fmt.Sprintf("unsupported filter operator %q for field %q", op, field),
						nil,
					)
				}
			}
		case []any, []string, []int:
			values, err := toScalarSlice(typed)
			if err != nil || len(values) == 0 {
				return translatedFilter{}, opErr(
					"filter_translate",
					OperationErrorValidation,
					fmt.Sprintf("field %q expects a non-empty scalar array", field),
					err,
				)
			}
			out.Must = append(out.Must, matchAny(field, values))
		default:
			scalar, ok := toScalarValue(typed)
			if !ok {
				return translatedFilter{}, opErr(
					"filter_translate",
					OperationErrorValidation,
					fmt.Sprintf("field %q expects scalar value or operator object", field),
					nil,
				)
			}
			out.Must = append(out.Must, matchValue(field, scalar))
		}
	}
	return out, nil
}

func matchValue(key string, value any) map[string]any {
	return map[string]any{"key": key, "match": map[string]any{"value": value}}
}

func matchAny(key string, values []any) map[string]any {
	return map[string]any{"key": key, "match": map[string]any{"any": values}}
}

func toScalarSlice(value any) ([]any, error) {
	switch typed := value.(type) {
	case []any:
		out := make([]any, 0, len(typed))
		for _, v := range typed {
			scalar, ok := toScalarValue(v)
			if !ok {
				return nil, fmt.Errorf("expected scalar, got %T", v)
			}
			out = append(out, scalar)
		}
		return out, nil
	case []string:
		out := make([]any, 0, len(typed))
		for _, v := range typed {
			out = append(out, v)
		}
		return out, nil
	case []int:
		out := make([]any, 0, len(typed))
		for _, v := range typed {
			out = append(out, v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected scalar array, got %T", value)
	}
}

func toScalarValue(value any) (any, bool) {
	switch typed := value.(type) {
	case string, bool, int, int64, uint64, float64:
		return typed, true
	case int32:
		return int(typed), true
	case float32:
		return float64(typed), true
	default:
		return nil, false
	}
}
