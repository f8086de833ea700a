package fetcher

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	// Inline markdown links: [text](target) and images: ![alt](target)
	inlineLinkRegex = regexp.MustCompile(`\[[^\]]*\]\(([^)\s]+)\)`)
	// Autolinks: <https://...>
	autoLinkRegex = regexp.MustCompile(`<(https?://[^>\s]+)>`)
)

// ExtractLinks finds resource references inside markdown content and
// resolves them against the document's own identifier. Only links within
// scopePrefix (same-repository scope) are kept; the result is
// deduplicated and preserves first-seen order.
func ExtractLinks(content, base, scopePrefix string) []string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil
	}

	var raw []string
	for _, m := range inlineLinkRegex.FindAllStringSubmatch(content, -1) {
		raw = append(raw, m[1])
	}
	for _, m := range autoLinkRegex.FindAllStringSubmatch(content, -1) {
		raw = append(raw, m[1])
	}

	seen := make(map[string]bool)
	var links []string
	for _, target := range raw {
		if target == "" || strings.HasPrefix(target, "#") || strings.HasPrefix(target, "mailto:") {
			continue
		}

		ref, err := url.Parse(target)
		if err != nil {
			continue
		}
		resolved := baseURL.ResolveReference(ref)
		resolved.Fragment = ""

		id := resolved.String()
		if id == base {
			continue // self-reference
		}
		if scopePrefix != "" && !strings.HasPrefix(id, scopePrefix) {
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		links = append(links, id)
	}

	return links
}

// ScopeFromIdentifier derives a same-repository scope prefix from a root
// identifier: everything up to and including the directory of the path.
func ScopeFromIdentifier(identifier string) string {
	u, err := url.Parse(identifier)
	if err != nil || u.Host == "" {
		return ""
	}

	path := u.Path
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		path = path[:idx+1]
	}

	scope := *u
	scope.Path = path
	scope.RawQuery = ""
	scope.Fragment = ""
	return scope.String()
}
