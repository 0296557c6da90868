package crawl

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnsupportedValue is returned for a query value that is neither an
// integer nor a string.
var ErrUnsupportedValue = errors.New("crawl: unsupported query value type")

// Param is one query dimension: a CORE search field and the values to
// combine it with.
type Param struct {
	Key    string `yaml:"key" json:"key"`
	Values []any  `yaml:"values" json:"values"`
}

// FormatValue renders v in CORE query syntax: integers bare, strings in
// double quotes.
func FormatValue(v any) (string, error) {
	switch x := v.(type) {
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case uint:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case string:
		return `"` + x + `"`, nil
	default:
		return "", fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}

// QueryString joins key:value terms with AND, e.g. (year:2010 AND topics:"AI").
func QueryString(keys []string, values []any) (string, error) {
	if len(keys) != len(values) {
		return "", fmt.Errorf("crawl: %d keys for %d values", len(keys), len(values))
	}
	terms := make([]string, len(keys))
	for i, k := range keys {
		s, err := FormatValue(values[i])
		if err != nil {
			return "", fmt.Errorf("key %s: %w", k, err)
		}
		terms[i] = k + ":" + s
	}
	return "(" + strings.Join(terms, " AND ") + ")", nil
}

// SubQuery is one combination of parameter values.
type SubQuery struct {
	Index  int
	Values []any
	Query  string
}

// BaseName is the file name stem of the sub-query's output:
// the values joined by "_", then the index.
func (q SubQuery) BaseName() string {
	parts := make([]string, 0, len(q.Values)+1)
	for _, v := range q.Values {
		parts = append(parts, fmt.Sprint(v))
	}
	parts = append(parts, strconv.Itoa(q.Index))
	return strings.NewReplacer("/", "-", "\\", "-").Replace(strings.Join(parts, "_"))
}

// Expand returns the cartesian product of params. The last parameter varies
// fastest. An empty value list yields no sub-queries.
func Expand(params []Param) ([]SubQuery, error) {
	if len(params) == 0 {
		return nil, nil
	}

	keys := make([]string, len(params))
	total := 1
	for i, p := range params {
		keys[i] = p.Key
		total *= len(p.Values)
	}

	subs := make([]SubQuery, 0, total)
	idx := make([]int, len(params))
	for n := 0; n < total; n++ {
		values := make([]any, len(params))
		for i, p := range params {
			values[i] = p.Values[idx[i]]
		}
		q, err := QueryString(keys, values)
		if err != nil {
			return nil, err
		}
		subs = append(subs, SubQuery{Index: n, Values: values, Query: q})

		for i := len(idx) - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(params[i].Values) {
				break
			}
			idx[i] = 0
		}
	}
	return subs, nil
}
