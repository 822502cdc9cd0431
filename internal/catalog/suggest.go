package catalog

import (
	"errors"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/solatis/rulekeeper/internal/types"
)

// Suggest returns the closest known name for an unresolved reference of the
// given kind, or "" when nothing is close.
func (c *Catalog) Suggest(kind error, name string) string {
	var candidates []string
	switch {
	case errors.Is(kind, types.ErrUnknownField):
		candidates = c.FieldPaths()
	case errors.Is(kind, types.ErrUnknownFunction):
		candidates = c.FunctionPaths()
	case errors.Is(kind, types.ErrUnknownOperator):
		for _, op := range c.operators {
			candidates = append(candidates, op.Key)
		}
	case errors.Is(kind, types.ErrUnknownType):
		for _, td := range c.typeDefs {
			candidates = append(candidates, string(td.Name))
		}
	}
	return closest(name, candidates)
}

// closest ranks candidates by fuzzy match first, falling back to the
// candidate sharing the longest prefix for typos fuzzy matching misses.
func closest(target string, candidates []string) string {
	if target == "" || len(candidates) == 0 {
		return ""
	}
	ranks := fuzzy.RankFindFold(target, candidates)
	if len(ranks) > 0 {
		best := ranks[0]
		for _, r := range ranks[1:] {
			if r.Distance < best.Distance {
				best = r
			}
		}
		return best.Target
	}

	best, bestLen := "", 0
	for _, cand := range candidates {
		n := commonPrefix(target, cand)
		if n > bestLen {
			best, bestLen = cand, n
		}
	}
	// Require at least half the target to match before suggesting.
	if bestLen*2 < len(target) {
		return ""
	}
	return best
}

func commonPrefix(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}
