// Package view holds the presentation logic of the terminal client: the
// dashboard filter and sort, the profile summary, the chat thread and the
// typing indicator. Nothing here does I/O; every function is deterministic
// for a given input, so cmd/dashboard only renders what these return.
package view

import (
	"cmp"
	"slices"
	"strings"

	"github.com/sakif/repo-dashboard/internal/model"
)

// Visibility filters repositories by their private flag.
type Visibility string

const (
	VisibilityAll     Visibility = "all"
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// SortField is the key the dashboard sorts on.
type SortField string

const (
	SortByName    SortField = "name"
	SortByStars   SortField = "stars"
	SortByUpdated SortField = "updated"
)

// SortOrder is the sort direction.
type SortOrder string

const (
	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

// Query is the dashboard's search box, filter and sort state. The zero value
// shows every repository, most recently updated first.
type Query struct {
	Search     string
	Visibility Visibility
	Sort       SortField
	Order      SortOrder
}

// Toggle returns q with the sort direction flipped.
func (q Query) Toggle() Query {
	if q.order() == Ascending {
		q.Order = Descending
	} else {
		q.Order = Ascending
	}
	return q
}

func (q Query) order() SortOrder {
	if q.Order == "" {
		return Descending
	}
	return q.Order
}

// FilterAndSort returns the repositories matching q, sorted. The input is not
// modified. Ties keep their input order.
func FilterAndSort(repos []model.Repository, q Query) []model.Repository {
	needle := strings.ToLower(strings.TrimSpace(q.Search))

	out := make([]model.Repository, 0, len(repos))
	for _, r := range repos {
		if !matchesVisibility(r, q.Visibility) {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(r.Name), needle) &&
			!strings.Contains(strings.ToLower(r.Description), needle) {
			continue
		}
		out = append(out, r)
	}

	compare := compareFor(q.Sort)
	if q.order() == Descending {
		asc := compare
		compare = func(a, b model.Repository) int { return asc(b, a) }
	}
	slices.SortStableFunc(out, compare)
	return out
}

func matchesVisibility(r model.Repository, v Visibility) bool {
	switch v {
	case VisibilityPublic:
		return !r.Private
	case VisibilityPrivate:
		return r.Private
	default:
		return true
	}
}

func compareFor(f SortField) func(a, b model.Repository) int {
	switch f {
	case SortByName:
		return func(a, b model.Repository) int {
			return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		}
	case SortByStars:
		return func(a, b model.Repository) int { return cmp.Compare(a.Stars, b.Stars) }
	default:
		return func(a, b model.Repository) int { return a.UpdatedAt.Compare(b.UpdatedAt) }
	}
}
