package enhance

import (
	"fmt"
	"sort"
	"strings"

	"github.com/datengrube/context-orchestrator/internal/domain"
)

// KeywordStrategy derives queries deterministically from salient input
// terms and headings in the fetched context. It is the default strategy.
type KeywordStrategy struct{}

var queryTemplates = []string{
	"current best practices for %s",
	"common pitfalls when working on %s",
	"existing implementations of %s",
	"testing approaches for %s",
	"performance considerations for %s",
}

// Queries returns between min and max queries, deterministic for a given
// input and context
func (KeywordStrategy) Queries(input string, resources []*domain.Resource, min, max int) []string {
	terms := salientTerms(input)
	for _, res := range resources {
		if h := firstHeading(res.Content); h != "" {
			terms = appendUnique(terms, strings.ToLower(h))
		}
	}
	if len(terms) == 0 {
		terms = []string{"the requested work"}
	}

	var queries []string
	for _, tpl := range queryTemplates {
		for _, term := range terms {
			if len(queries) >= max {
				return queries
			}
			queries = append(queries, fmt.Sprintf(tpl, term))
		}
	}

	// Few terms and templates exhausted: pad stays the engine's concern
	return queries
}

// salientTerms extracts meaningful words from the input, longest first so
// the most specific terms drive the leading queries
func salientTerms(input string) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(input)) {
		w = strings.Trim(w, ".,;:!?\"'()")
		if len(w) <= 3 || seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, w)
	}
	sort.SliceStable(terms, func(i, j int) bool {
		return len(terms[i]) > len(terms[j])
	})
	if len(terms) > 6 {
		terms = terms[:6]
	}
	return terms
}

func firstHeading(content string) string {
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, "#") {
			return strings.TrimSpace(strings.TrimLeft(line, "# "))
		}
	}
	return ""
}

func appendUnique(terms []string, term string) []string {
	for _, t := range terms {
		if t == term {
			return terms
		}
	}
	return append(terms, term)
}
