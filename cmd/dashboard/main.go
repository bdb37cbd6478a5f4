// Command dashboard is the terminal client for the repo-dashboard API.
//
// It signs in through the GitHub OAuth flow, lists and filters the user's
// repositories, shows stats and line counts, and opens a live chat with a
// follower or followee over the websocket relay. The session (server URL and
// bearer token) is kept in a JSON file under the user's config directory.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp(os.Stdin, os.Stdout, os.Stderr)
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
