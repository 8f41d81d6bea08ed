package policy

import (
	"sort"
	"strings"

	"github.com/upb/eloboost/models"
)

type prefixRule struct {
	prefix string
	role   models.Role
}

// Table resolves the role required for a path.
// Lookup order is exact page match, exact API match, then prefix patterns
// (longest prefix first). Unmapped paths are public.
type Table struct {
	pages    map[string]models.Role
	apis     map[string]models.Role
	patterns []prefixRule
}

// NewTable builds a table from page and API rules. API rules whose path ends
// in "/*" become prefix patterns.
func NewTable(pages, apis []Rule) *Table {
	t := &Table{
		pages: make(map[string]models.Role, len(pages)),
		apis:  make(map[string]models.Role, len(apis)),
	}

	for _, r := range pages {
		t.pages[normalize(r.Path)] = r.Role
	}

	for _, r := range apis {
		if strings.HasSuffix(r.Path, "/*") {
			t.patterns = append(t.patterns, prefixRule{
				prefix: normalize(strings.TrimSuffix(r.Path, "/*")),
				role:   r.Role,
			})
			continue
		}
		t.apis[normalize(r.Path)] = r.Role
	}

	sort.SliceStable(t.patterns, func(i, j int) bool {
		return len(t.patterns[i].prefix) > len(t.patterns[j].prefix)
	})

	return t
}

// RequiredRole returns the role needed for path. The boolean is false when
// the path is public, either explicitly or because it is not in the table.
func (t *Table) RequiredRole(path string) (models.Role, bool) {
	p := normalize(path)

	if role, ok := t.pages[p]; ok {
		return role, role != public
	}
	if role, ok := t.apis[p]; ok {
		return role, role != public
	}

	for _, pat := range t.patterns {
		if p == pat.prefix || strings.HasPrefix(p, pat.prefix+"/") {
			return pat.role, pat.role != public
		}
	}

	return public, false
}

// Check decides whether role may reach path. Public paths admit every role,
// anonymous included; protected paths require an exact role match.
func (t *Table) Check(role models.Role, path string) Decision {
	required, protected := t.RequiredRole(path)
	return Decision{
		AccessGranted: !protected || role == required,
		UserRole:      role,
		RequiredRole:  required,
		RoutePath:     normalize(path),
	}
}

func normalize(path string) string {
	return strings.Trim(path, "/")
}
