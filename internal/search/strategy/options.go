package strategy

import "fmt"

// Options is a dynamically-typed key/value store keyed by namespaced
// strings ("opt:lower_bound", "dist_gridsearch:num_bins", ...): a single
// map of narrow, JSON-shaped value kinds with typed accessors layered on
// top.
type Options map[string]any

// New returns an empty Options map.
func New() Options { return make(Options) }

// Clone returns a shallow copy (values are themselves immutable scalars,
// strings, or slices treated as copy-on-write by callers).
func (o Options) Clone() Options {
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Merge copies every key from other into o, overwriting existing keys.
func (o Options) Merge(other Options) {
	for k, v := range other {
		o[k] = v
	}
}

// Scoped returns the subset of o whose keys carry the given dotted prefix
// (e.g. "search/inner"), with the prefix stripped.
func (o Options) Scoped(prefix string) Options {
	out := New()
	full := prefix + "/"
	for k, v := range o {
		if len(k) > len(full) && k[:len(full)] == full {
			out[k[len(full):]] = v
		}
	}
	return out
}

// Float64 reads a float64-typed option.
func (o Options) Float64(key string) (float64, bool) {
	v, ok := o[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// Int reads an integer-typed option, accepting any numeric kind.
func (o Options) Int(key string) (int, bool) {
	v, ok := o[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// String reads a string-typed option.
func (o Options) String(key string) (string, bool) {
	v, ok := o[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Bool reads a boolean-typed option. Numeric 0/1 is also accepted, matching
// the C convention of opt:do_decompress/opt:is_integral.
func (o Options) Bool(key string) (bool, bool) {
	v, ok := o[key]
	if !ok {
		return false, false
	}
	switch b := v.(type) {
	case bool:
		return b, true
	case int:
		return b != 0, true
	case float64:
		return b != 0, true
	default:
		return false, false
	}
}

// Float64Slice reads a []float64-typed option.
func (o Options) Float64Slice(key string) ([]float64, bool) {
	v, ok := o[key]
	if !ok {
		return nil, false
	}
	switch s := v.(type) {
	case []float64:
		return s, true
	case []any:
		out := make([]float64, len(s))
		for i, e := range s {
			f, ok := toFloat64(e)
			if !ok {
				return nil, false
			}
			out[i] = f
		}
		return out, true
	default:
		return nil, false
	}
}

// BoolSlice reads a []bool-typed option, also accepting a []float64/[]int
// of 0/1 values (the opt:is_integral wire shape).
func (o Options) BoolSlice(key string) ([]bool, bool) {
	v, ok := o[key]
	if !ok {
		return nil, false
	}
	switch s := v.(type) {
	case []bool:
		return s, true
	case []float64:
		out := make([]bool, len(s))
		for i, e := range s {
			out[i] = e != 0
		}
		return out, true
	case []int:
		out := make([]bool, len(s))
		for i, e := range s {
			out[i] = e != 0
		}
		return out, true
	default:
		return nil, false
	}
}

// StringSlice reads a []string-typed option, also accepting a []any of
// strings (the shape YAML decoding produces).
func (o Options) StringSlice(key string) ([]string, bool) {
	v, ok := o[key]
	if !ok {
		return nil, false
	}
	switch s := v.(type) {
	case []string:
		return s, true
	case []any:
		out := make([]string, len(s))
		for i, e := range s {
			str, ok := e.(string)
			if !ok {
				return nil, false
			}
			out[i] = str
		}
		return out, true
	default:
		return nil, false
	}
}

// IntSlice reads a []int-typed option, also accepting []float64 and []any
// of numeric values.
func (o Options) IntSlice(key string) ([]int, bool) {
	v, ok := o[key]
	if !ok {
		return nil, false
	}
	switch s := v.(type) {
	case []int:
		return s, true
	case []float64:
		out := make([]int, len(s))
		for i, e := range s {
			out[i] = int(e)
		}
		return out, true
	case []any:
		out := make([]int, len(s))
		for i, e := range s {
			f, ok := toFloat64(e)
			if !ok {
				return nil, false
			}
			out[i] = int(f)
		}
		return out, true
	default:
		return nil, false
	}
}

// Table2D reads the opt:evaluations prior-evaluation table: a 2-D slice of
// rows, each of equal length. A []any of rows (the YAML decoding shape) is
// accepted too.
func (o Options) Table2D(key string) ([][]float64, bool) {
	v, ok := o[key]
	if !ok {
		return nil, false
	}
	switch rows := v.(type) {
	case [][]float64:
		return rows, true
	case []any:
		out := make([][]float64, len(rows))
		for i, r := range rows {
			cells, ok := r.([]any)
			if !ok {
				return nil, false
			}
			row := make([]float64, len(cells))
			for j, c := range cells {
				f, ok := toFloat64(c)
				if !ok {
					return nil, false
				}
				row[j] = f
			}
			out[i] = row
		}
		return out, true
	default:
		return nil, false
	}
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// RequireFloat64Slice reads a required []float64 option, returning a
// ConfigInvalid error naming key if missing or malformed.
func (o Options) RequireFloat64Slice(key string) ([]float64, error) {
	v, ok := o.Float64Slice(key)
	if !ok {
		return nil, NewError(KindConfigInvalid, fmt.Sprintf("missing or malformed %s", key), nil)
	}
	return v, nil
}
