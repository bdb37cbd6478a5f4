package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/sakif/repo-dashboard/internal/model"
	"github.com/sakif/repo-dashboard/internal/view"
)

const dateLayout = "2006-01-02"

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func printRepos(w io.Writer, repos []model.Repository) {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tNAME\tVISIBILITY\tSTARS\tUPDATED\tAUTO-REVIEW")
	for _, r := range repos {
		visibility := "public"
		if r.Private {
			visibility = "private"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			r.ID, r.Name, visibility, r.Stars, formatDate(r.UpdatedAt), onOff(r.AutoReview))
	}
	tw.Flush()
}

func printStats(w io.Writer, repoID string, s model.RepoStats, lines int64) {
	tw := newTable(w)
	fmt.Fprintf(tw, "Repository\t%s\n", repoID)
	fmt.Fprintf(tw, "Commits\t%d\n", s.CommitCount)
	fmt.Fprintf(tw, "Open pull requests\t%d\n", s.PullRequests)
	fmt.Fprintf(tw, "Open issues\t%d\n", s.OpenIssues)
	fmt.Fprintf(tw, "Contributors\t%d\n", s.Contributors)
	fmt.Fprintf(tw, "Last commit\t%s\n", formatLastCommit(s.LastCommit))
	fmt.Fprintf(tw, "Lines of code\t%d\n", lines)
	tw.Flush()
}

// printProfile renders the profile card; sum is nil when repository totals
// were not requested.
func printProfile(w io.Writer, p *model.Profile, sum *view.Summary) {
	tw := newTable(w)
	fmt.Fprintf(tw, "Username\t%s\n", p.Username)
	fmt.Fprintf(tw, "Name\t%s\n", p.Name)
	if p.Email != "" {
		fmt.Fprintf(tw, "Email\t%s\n", p.Email)
	}
	if p.Bio != "" {
		fmt.Fprintf(tw, "Bio\t%s\n", p.Bio)
	}
	fmt.Fprintf(tw, "Followers\t%d\n", p.Followers)
	fmt.Fprintf(tw, "Following\t%d\n", p.Following)
	fmt.Fprintf(tw, "Profile\t%s\n", view.ProfileURL(p.Username))

	if sum != nil {
		fmt.Fprintf(tw, "Repositories\t%d (%d public, %d private)\n", sum.Total, sum.Public, sum.Private)
		fmt.Fprintf(tw, "Auto-reviewed\t%d\n", sum.AutoReviewed)
		fmt.Fprintf(tw, "Stars\t%d\n", sum.Stars)
	}
	tw.Flush()
}

func printContacts(w io.Writer, contacts []model.Contact) {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tUSERNAME\tPROFILE")
	for _, c := range contacts {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, c.Username, view.ProfileURL(c.Username))
	}
	tw.Flush()
}

// formatEntry renders one chat line, e.g. "[15:04] you: hi (sending)".
func formatEntry(e view.Entry, self string) string {
	who := e.SenderID
	if who == self {
		who = "you"
	}
	line := fmt.Sprintf("[%s] %s: %s", e.Timestamp.Local().Format("15:04"), who, e.Content)
	if e.Pending {
		line += " (sending)"
	}
	return line
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(dateLayout)
}

// formatLastCommit shortens the RFC 3339 timestamp; "Unknown" passes through.
func formatLastCommit(s string) string {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return t.Local().Format("2006-01-02 15:04")
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
