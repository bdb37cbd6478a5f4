package view

import (
	"net/url"

	"github.com/sakif/repo-dashboard/internal/model"
)

// Summary is the aggregate shown on the profile page.
type Summary struct {
	Total        int `json:"total"`
	AutoReviewed int `json:"autoReviewed"`
	Private      int `json:"private"`
	Public       int `json:"public"`
	Stars        int `json:"stars"`
}

// Summarize counts over the full repository list.
func Summarize(repos []model.Repository) Summary {
	var s Summary
	for _, r := range repos {
		s.Total++
		s.Stars += r.Stars
		if r.AutoReview {
			s.AutoReviewed++
		}
		if r.Private {
			s.Private++
		} else {
			s.Public++
		}
	}
	return s
}

// ProfileURL is the provider page for username. The external profile view
// only links out; it does not fetch anything.
func ProfileURL(username string) string {
	return "https://github.com/" + url.PathEscape(username)
}
