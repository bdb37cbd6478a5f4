package github

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gh "github.com/google/go-github/v58/github"
	"github.com/sakif/repo-dashboard/internal/model"
	"golang.org/x/sync/errgroup"
)

// RepoStats runs the four stats calls concurrently.
//
// COUNTING WITH per_page=1:
// Each list call asks for one item per page. The "last" link in the response
// then names the page number of the final item, which is the total count.
// When there is no "last" link the whole result fit on page one, so the count
// is the number of items returned (0 or 1).
//
// A failed sub-call is logged and counts as zero; RepoStats itself never
// fails for upstream reasons. An empty repository, for example, answers the
// commits call with 409.
func (c *Client) RepoStats(ctx context.Context, token, fullName string) (model.RepoStats, error) {
	owner, repo, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || repo == "" {
		return model.RepoStats{}, fmt.Errorf("github: invalid repository full name %q", fullName)
	}

	client := c.api(ctx, token)
	one := gh.ListOptions{PerPage: 1}
	stats := model.RepoStats{LastCommit: model.LastCommitUnknown}

	// Each goroutine writes a distinct field, so no mutex is needed; g.Wait
	// publishes the writes to this goroutine.
	var g errgroup.Group

	g.Go(func() error {
		commits, resp, err := client.Repositories.ListCommits(ctx, owner, repo, &gh.CommitsListOptions{ListOptions: one})
		if err != nil {
			c.logStatsFailure(fullName, "commits", err)
			return nil
		}
		stats.CommitCount = total(resp, len(commits))
		if len(commits) > 0 {
			if date := commits[0].GetCommit().GetAuthor().GetDate(); !date.IsZero() {
				stats.LastCommit = date.UTC().Format(time.RFC3339)
			}
		}
		return nil
	})

	g.Go(func() error {
		pulls, resp, err := client.PullRequests.List(ctx, owner, repo, &gh.PullRequestListOptions{State: "open", ListOptions: one})
		if err != nil {
			c.logStatsFailure(fullName, "pulls", err)
			return nil
		}
		stats.PullRequests = total(resp, len(pulls))
		return nil
	})

	g.Go(func() error {
		issues, resp, err := client.Issues.ListByRepo(ctx, owner, repo, &gh.IssueListByRepoOptions{State: "open", ListOptions: one})
		if err != nil {
			c.logStatsFailure(fullName, "issues", err)
			return nil
		}
		stats.OpenIssues = total(resp, len(issues))
		return nil
	})

	g.Go(func() error {
		contributors, resp, err := client.Repositories.ListContributors(ctx, owner, repo, &gh.ListContributorsOptions{ListOptions: one})
		if err != nil {
			c.logStatsFailure(fullName, "contributors", err)
			return nil
		}
		stats.Contributors = total(resp, len(contributors))
		return nil
	})

	_ = g.Wait() // goroutines never return an error
	return stats, nil
}

func total(resp *gh.Response, n int) int {
	if resp != nil && resp.LastPage > 0 {
		return resp.LastPage
	}
	return n
}

func (c *Client) logStatsFailure(repo, call string, err error) {
	c.logger.Warn("stats call failed, counting as zero",
		slog.String("repo", repo),
		slog.String("call", call),
		slog.String("error", err.Error()),
	)
}
