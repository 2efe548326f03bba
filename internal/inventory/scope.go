package inventory

import "strings"

// ReadOption adjusts the default query scope of a repository read.
type ReadOption func(*scope)

// IncludeDeleted makes a read return soft-deleted rows as well.
func IncludeDeleted() ReadOption {
	return func(s *scope) { s.includeDeleted = true }
}

// scope is applied to every repository read. Soft-deleted rows are hidden
// unless a caller explicitly opts in, so no query can forget the filter.
type scope struct {
	includeDeleted bool
}

func newScope(opts []ReadOption) scope {
	var s scope
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// where joins conds with AND and prepends the soft-delete filter for each
// alias (a table name or alias; "" for an unqualified column).
func (s scope) where(aliases []string, conds ...string) string {
	var all []string
	if !s.includeDeleted {
		for _, alias := range aliases {
			if alias == "" {
				all = append(all, "is_deleted = 0")
			} else {
				all = append(all, alias+".is_deleted = 0")
			}
		}
	}
	all = append(all, conds...)
	if len(all) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(all, " AND ")
}
