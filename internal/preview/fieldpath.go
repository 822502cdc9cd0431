// internal/preview/fieldpath.go
package preview

import (
	"sort"
	"strconv"
	"strings"

	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * Field path resolution for preview records.
 *
 * A catalog field path such as "customer.address.city" is split on the
 * catalog's field separator. Segments that are non-negative integers index
 * arrays (and still work as object keys); "*" matches any element with ANY
 * semantics (first match wins). Limits: MaxPathSegments segments and
 * MaxPathWildcards wildcards.
 *
 * Wildcards over objects visit keys in sorted order so results are
 * deterministic.
 */

// Segment is one step of a record path.
type Segment struct {
	Key      string
	Index    int
	IsIndex  bool
	Wildcard bool
}

// ParsePath splits a dotted field path into segments.
func ParsePath(path, sep string) ([]Segment, error) {
	if sep == "" {
		sep = "."
	}
	parts := strings.Split(path, sep)
	if len(parts) > types.MaxPathSegments {
		return nil, types.ErrPathTooDeep
	}
	segs := make([]Segment, 0, len(parts))
	wildcards := 0
	for _, p := range parts {
		switch {
		case p == "*":
			wildcards++
			segs = append(segs, Segment{Wildcard: true})
		default:
			seg := Segment{Key: p}
			if n, err := strconv.Atoi(p); err == nil && n >= 0 {
				seg.Index, seg.IsIndex = n, true
			}
			segs = append(segs, seg)
		}
	}
	if wildcards > types.MaxPathWildcards {
		return nil, types.ErrTooManyWildcards
	}
	return segs, nil
}

// ResolveResult is the outcome of resolving a path in a record.
type ResolveResult struct {
	Value        any       // nil when not found or JSON null
	ResolvedPath []Segment // wildcards replaced by the matched key or index
	Found        bool
}

// Resolve follows path through a decoded record. A missing step is not an
// error; it yields Found == false.
func Resolve(path []Segment, record any) ResolveResult {
	res, ok := resolve(path, record, nil)
	if !ok {
		return ResolveResult{}
	}
	return res
}

func resolve(path []Segment, current any, soFar []Segment) (ResolveResult, bool) {
	if len(path) == 0 {
		return ResolveResult{Value: current, ResolvedPath: soFar, Found: true}, true
	}
	seg, rest := path[0], path[1:]

	switch v := current.(type) {
	case map[string]any:
		if seg.Wildcard {
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				if res, ok := resolve(rest, v[k], appendSeg(soFar, Segment{Key: k})); ok {
					return res, true
				}
			}
			return ResolveResult{}, false
		}
		val, ok := v[seg.Key]
		if !ok {
			return ResolveResult{}, false
		}
		return resolve(rest, val, appendSeg(soFar, seg))

	case []any:
		if seg.Wildcard {
			for i, elem := range v {
				if res, ok := resolve(rest, elem, appendSeg(soFar, Segment{Index: i, IsIndex: true})); ok {
					return res, true
				}
			}
			return ResolveResult{}, false
		}
		if !seg.IsIndex || seg.Index >= len(v) {
			return ResolveResult{}, false
		}
		return resolve(rest, v[seg.Index], appendSeg(soFar, seg))
	}
	// null or a scalar with path left over
	return ResolveResult{}, false
}

// appendSeg never shares backing arrays between wildcard branches.
func appendSeg(path []Segment, seg Segment) []Segment {
	out := make([]Segment, len(path), len(path)+1)
	copy(out, path)
	return append(out, seg)
}
