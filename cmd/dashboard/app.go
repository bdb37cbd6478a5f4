package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/sakif/repo-dashboard/internal/client"
	"github.com/sakif/repo-dashboard/internal/config"
	"github.com/sakif/repo-dashboard/internal/model"
	"github.com/sakif/repo-dashboard/internal/view"
)

var errNotSignedIn = errors.New("not signed in; run `dashboard login` first")

// dashboard carries what every command needs. The session is loaded in
// Before and closed in After, so a command never leaks a relay connection.
type dashboard struct {
	in      io.Reader
	out     io.Writer
	logger  *slog.Logger
	session *client.Session
}

func newApp(in io.Reader, out, errOut io.Writer) *cli.App {
	d := &dashboard{in: in, out: out}

	app := cli.NewApp()
	app.Name = "dashboard"
	app.Usage = "Browse your GitHub repositories and chat with your contacts"
	app.Writer = out
	app.ErrWriter = errOut
	app.Action = cli.ShowAppHelp
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "session",
			Usage:   "session file (default: <user config dir>/repo-dashboard/session.json)",
			EnvVars: []string{"DASHBOARD_SESSION"},
		},
		&cli.StringFlag{
			Name:    "server",
			Usage:   "API base URL; saved with the session on login",
			EnvVars: []string{"DASHBOARD_SERVER"},
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "log debug output to stderr",
		},
	}
	app.Before = func(c *cli.Context) error {
		level := slog.LevelWarn
		if c.Bool("verbose") {
			level = slog.LevelDebug
		}
		d.logger = slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))
		return d.load(c)
	}
	app.After = func(*cli.Context) error {
		if d.session != nil {
			return d.session.Close()
		}
		return nil
	}

	app.Commands = []*cli.Command{
		// === SESSION ===
		{
			Action:   d.login,
			Name:     "login",
			Usage:    "Sign in with GitHub",
			Category: "Session",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "callback",
					Usage: "redirect URI registered with the OAuth app; the client listens on it",
					Value: config.DefaultRedirectURI,
				},
				&cli.DurationFlag{
					Name:  "timeout",
					Usage: "how long to wait for the browser to come back",
					Value: model.OAuthStateTTL,
				},
			},
			Description: `Prints the GitHub authorization URL and waits on the callback address for
the browser redirect. The returned state is checked against the one issued
for this login before the code is sent to the server.`,
		},
		{
			Action:   d.logout,
			Name:     "logout",
			Usage:    "Forget the stored session",
			Category: "Session",
		},
		{
			Action:   d.whoami,
			Name:     "whoami",
			Usage:    "Show the signed-in profile",
			Category: "Session",
		},

		// === REPOSITORIES ===
		{
			Action:   d.repos,
			Name:     "repos",
			Usage:    "List repositories",
			Category: "Repositories",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "search", Aliases: []string{"s"}, Usage: "match name or description"},
				&cli.StringFlag{Name: "visibility", Value: string(view.VisibilityAll), Usage: "all, public or private"},
				&cli.StringFlag{Name: "sort", Value: string(view.SortByUpdated), Usage: "name, stars or updated"},
				&cli.StringFlag{Name: "order", Value: string(view.Descending), Usage: "asc or desc"},
			},
		},
		{
			Action:    d.repo,
			Name:      "repo",
			Usage:     "Show stats and line count for a repository",
			ArgsUsage: "<id>",
			Category:  "Repositories",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "async", Usage: "count lines as a background job and poll for the result"},
			},
		},
		{
			Action:    d.toggle,
			Name:      "toggle",
			Usage:     "Flip automatic review for a repository",
			ArgsUsage: "<id>",
			Category:  "Repositories",
		},
		{
			Action:   d.profile,
			Name:     "profile",
			Usage:    "Show the profile with repository totals",
			Category: "Repositories",
		},

		// === SOCIAL ===
		{
			Action:   d.contacts,
			Name:     "contacts",
			Usage:    "List followers and followed users",
			Category: "Social",
		},
		{
			Action:      d.chat,
			Name:        "chat",
			Usage:       "Chat with a contact",
			ArgsUsage:   "<contactId>",
			Category:    "Social",
			Description: `Shows the conversation history, then sends each line typed on stdin.
Type /quit or press Ctrl+D to leave.`,
		},
		{
			Action:    d.user,
			Name:      "user",
			Usage:     "Print the GitHub profile URL for a user",
			ArgsUsage: "<username>",
			Category:  "Social",
		},
	}

	return app
}

// load reads the session file and applies --server.
func (d *dashboard) load(c *cli.Context) error {
	path := c.String("session")
	if path == "" {
		p, err := client.DefaultSessionPath()
		if err != nil {
			return err
		}
		path = p
	}

	s, err := client.LoadSession(path)
	if err != nil {
		return err
	}
	if server := c.String("server"); server != "" {
		s.BaseURL = server
	}
	d.session = s
	return nil
}

// api returns a client for a command that needs a signed-in user.
func (d *dashboard) api() (*client.Client, error) {
	if !d.session.LoggedIn() {
		return nil, errNotSignedIn
	}
	return d.session.Client()
}

// explain turns an expired or rejected token into a prompt to sign in again
// and drops the stored token, the same as a failed profile check. The relay
// rejecting the token counts too.
func (d *dashboard) explain(err error) error {
	if !client.IsUnauthorized(err) && !errors.Is(err, client.ErrAuthRejected) {
		return err
	}
	if serr := d.session.SignOut(); serr != nil {
		d.logger.Warn("clearing session", slog.String("error", serr.Error()))
	}
	return errors.New("session expired or revoked; run `dashboard login` again")
}

// oneArg returns the single positional argument named name.
func oneArg(c *cli.Context, name string) (string, error) {
	if c.NArg() != 1 || c.Args().First() == "" {
		return "", fmt.Errorf("expected exactly one <%s> argument", name)
	}
	return c.Args().First(), nil
}
