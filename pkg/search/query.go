package search

import "strings"

// NormalizeQuery trims the query and collapses inner whitespace runs to a
// single space. An empty result means the user sent nothing to search for.
func NormalizeQuery(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}
