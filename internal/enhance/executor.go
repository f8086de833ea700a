package enhance

import (
	"context"
	"strings"

	"github.com/datengrube/context-orchestrator/internal/domain"
)

const maxExcerptLines = 3

// ContextExecutor answers queries offline from the fetched resources:
// the summary is an excerpt of lines sharing terms with the query. It is
// the default executor; an LLM- or search-backed executor can replace it.
type ContextExecutor struct{}

// Execute scans the resources for lines matching the query's terms. A
// query with no supporting material yields an empty summary and no error.
func (ContextExecutor) Execute(ctx context.Context, query string, resources []*domain.Resource) (string, []string, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}

	terms := salientTerms(query)
	if len(terms) == 0 {
		return "", nil, nil
	}

	var excerpt []string
	var refs []string

	for _, res := range resources {
		if res == nil || res.Content == "" {
			continue
		}
		matched := false
		for _, line := range strings.Split(res.Content, "\n") {
			if len(excerpt) >= maxExcerptLines {
				break
			}
			lower := strings.ToLower(line)
			for _, term := range terms {
				if strings.Contains(lower, term) {
					excerpt = append(excerpt, strings.TrimSpace(line))
					matched = true
					break
				}
			}
		}
		if matched {
			refs = append(refs, res.Identifier)
		}
	}

	return strings.Join(excerpt, " "), refs, nil
}
