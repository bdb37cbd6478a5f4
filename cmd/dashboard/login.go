package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/urfave/cli/v2"
)

var (
	errStateMismatch = errors.New("login callback state does not match this login; start again")
	errMissingCode   = errors.New("login callback has no authorization code")
)

func (d *dashboard) login(c *cli.Context) error {
	callback, err := url.Parse(c.String("callback"))
	if err != nil || callback.Host == "" {
		return fmt.Errorf("invalid --callback %q", c.String("callback"))
	}

	// Any previous token is irrelevant to the login endpoints.
	api, err := d.session.Client()
	if err != nil {
		return err
	}

	// Bind before asking for a state so a busy port does not burn one.
	ln, err := net.Listen("tcp", callback.Host)
	if err != nil {
		return fmt.Errorf("listening for the login callback on %s: %w", callback.Host, err)
	}
	defer ln.Close()

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	start, err := api.StartLogin(ctx)
	if err != nil {
		return fmt.Errorf("starting login: %w", err)
	}

	fmt.Fprintf(d.out, "Open this URL in your browser to sign in with GitHub:\n\n  %s\n\n", start.AuthURL)
	fmt.Fprintf(d.out, "Waiting for the redirect to %s ...\n", callback.String())

	code, err := awaitCallback(ctx, ln, callback.Path, start.State, d.logger)
	if err != nil {
		return err
	}

	res, err := api.Callback(ctx, code, start.State)
	if err != nil {
		return fmt.Errorf("completing login: %w", err)
	}
	if err := d.session.SignIn(res); err != nil {
		return err
	}

	fmt.Fprintf(d.out, "Signed in as %s (%s)\n", res.User.Username, res.User.Name)
	return nil
}

func (d *dashboard) logout(c *cli.Context) error {
	if err := d.session.SignOut(); err != nil {
		return err
	}
	fmt.Fprintln(d.out, "Signed out.")
	return nil
}

func (d *dashboard) whoami(c *cli.Context) error {
	api, err := d.api()
	if err != nil {
		return err
	}
	p, err := api.Me(c.Context)
	if err != nil {
		return d.explain(err)
	}
	printProfile(d.out, p, nil)
	return nil
}

type callbackResult struct {
	code string
	err  error
}

// awaitCallback serves path on ln until the browser is redirected back with
// a code for wantState, or ctx ends. The first request on path decides the
// outcome; a mismatched state ends the login instead of waiting for another.
func awaitCallback(ctx context.Context, ln net.Listener, path, wantState string, logger *slog.Logger) (string, error) {
	if path == "" {
		path = "/"
	}
	results := make(chan callbackResult, 1)

	r := chi.NewRouter()
	r.Get(path, func(w http.ResponseWriter, req *http.Request) {
		res := checkCallback(req.URL.Query(), wantState)
		if res.err != nil {
			http.Error(w, res.err.Error(), http.StatusBadRequest)
		} else {
			fmt.Fprintln(w, "Signed in. You can close this tab and return to the terminal.")
		}
		select {
		case results <- res:
		default:
		}
	})

	srv := &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Debug("callback listener stopped", slog.String("error", err.Error()))
		}
	}()
	defer srv.Close()

	select {
	case res := <-results:
		return res.code, res.err
	case <-ctx.Done():
		return "", fmt.Errorf("waiting for the login callback: %w", ctx.Err())
	}
}

// checkCallback validates the redirect query against the state issued for
// this login.
func checkCallback(q url.Values, wantState string) callbackResult {
	if e := q.Get("error"); e != "" {
		reason := q.Get("error_description")
		if reason == "" {
			reason = e
		}
		return callbackResult{err: fmt.Errorf("GitHub refused the login: %s", reason)}
	}

	state := q.Get("state")
	if state == "" || subtle.ConstantTimeCompare([]byte(state), []byte(wantState)) != 1 {
		return callbackResult{err: errStateMismatch}
	}

	code := q.Get("code")
	if code == "" {
		return callbackResult{err: errMissingCode}
	}
	return callbackResult{code: code}
}
