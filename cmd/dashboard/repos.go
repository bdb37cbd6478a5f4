package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/sakif/repo-dashboard/internal/client"
	"github.com/sakif/repo-dashboard/internal/model"
	"github.com/sakif/repo-dashboard/internal/view"
)

// jobPollInterval is how often `repo --async` asks for the job status.
var jobPollInterval = time.Second

func (d *dashboard) repos(c *cli.Context) error {
	q, err := parseQuery(c)
	if err != nil {
		return err
	}
	api, err := d.api()
	if err != nil {
		return err
	}

	all, err := api.Repos(c.Context)
	if err != nil {
		return d.explain(err)
	}

	shown := view.FilterAndSort(all, q)
	if len(shown) == 0 {
		fmt.Fprintln(d.out, "No repositories match.")
		return nil
	}
	printRepos(d.out, shown)
	return nil
}

// parseQuery maps the repos flags onto a view.Query, rejecting unknown values.
func parseQuery(c *cli.Context) (view.Query, error) {
	q := view.Query{
		Search:     c.String("search"),
		Visibility: view.Visibility(c.String("visibility")),
		Sort:       view.SortField(c.String("sort")),
		Order:      view.SortOrder(c.String("order")),
	}

	if !slices.Contains([]view.Visibility{view.VisibilityAll, view.VisibilityPublic, view.VisibilityPrivate}, q.Visibility) {
		return view.Query{}, fmt.Errorf("--visibility must be all, public or private, got %q", q.Visibility)
	}
	if !slices.Contains([]view.SortField{view.SortByName, view.SortByStars, view.SortByUpdated}, q.Sort) {
		return view.Query{}, fmt.Errorf("--sort must be name, stars or updated, got %q", q.Sort)
	}
	if q.Order != view.Ascending && q.Order != view.Descending {
		return view.Query{}, fmt.Errorf("--order must be asc or desc, got %q", q.Order)
	}
	return q, nil
}

// repo fetches stats and the line count side by side; either failing fails
// the command.
func (d *dashboard) repo(c *cli.Context) error {
	id, err := oneArg(c, "id")
	if err != nil {
		return err
	}
	api, err := d.api()
	if err != nil {
		return err
	}

	var (
		stats model.RepoStats
		lines int64
	)
	g, ctx := errgroup.WithContext(c.Context)
	g.Go(func() error {
		s, err := api.Stats(ctx, id)
		stats = s
		return err
	})
	g.Go(func() error {
		var err error
		if c.Bool("async") {
			lines, err = d.countLinesAsync(ctx, api, id)
		} else {
			lines, err = api.Lines(ctx, id)
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return d.explain(err)
	}

	printStats(d.out, id, stats, lines)
	return nil
}

func (d *dashboard) countLinesAsync(ctx context.Context, api *client.Client, repoID string) (int64, error) {
	job, err := api.StartLineJob(ctx, repoID)
	if err != nil {
		return 0, err
	}
	d.logger.Debug("line job started", slog.String("jobId", job.ID))

	ticker := time.NewTicker(jobPollInterval)
	defer ticker.Stop()

	for !job.Status.Terminal() {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-ticker.C:
		}
		if job, err = api.LineJob(ctx, job.ID); err != nil {
			return 0, err
		}
		d.logger.Debug("line job polled", slog.String("jobId", job.ID), slog.String("status", string(job.Status)))
	}

	if job.Status == model.LineJobFailed {
		return 0, errors.New(job.Error)
	}
	return job.TotalLines, nil
}

func (d *dashboard) toggle(c *cli.Context) error {
	id, err := oneArg(c, "id")
	if err != nil {
		return err
	}
	api, err := d.api()
	if err != nil {
		return err
	}

	on, err := api.ToggleAutoReview(c.Context, id)
	if err != nil {
		return d.explain(err)
	}
	state := "disabled"
	if on {
		state = "enabled"
	}
	fmt.Fprintf(d.out, "Auto-review %s for repository %s.\n", state, id)
	return nil
}

func (d *dashboard) profile(c *cli.Context) error {
	api, err := d.api()
	if err != nil {
		return err
	}

	var (
		p     *model.Profile
		repos []model.Repository
	)
	g, ctx := errgroup.WithContext(c.Context)
	g.Go(func() (err error) {
		p, err = api.Me(ctx)
		return err
	})
	g.Go(func() (err error) {
		repos, err = api.Repos(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return d.explain(err)
	}

	sum := view.Summarize(repos)
	printProfile(d.out, p, &sum)
	return nil
}

func (d *dashboard) contacts(c *cli.Context) error {
	api, err := d.api()
	if err != nil {
		return err
	}
	list, err := api.Contacts(c.Context)
	if err != nil {
		return d.explain(err)
	}
	if len(list) == 0 {
		fmt.Fprintln(d.out, "No contacts yet. Follow someone on GitHub to chat with them.")
		return nil
	}
	printContacts(d.out, list)
	return nil
}

func (d *dashboard) user(c *cli.Context) error {
	username, err := oneArg(c, "username")
	if err != nil {
		return err
	}
	fmt.Fprintln(d.out, view.ProfileURL(username))
	return nil
}
