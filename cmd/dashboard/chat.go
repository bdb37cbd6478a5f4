package main

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/sakif/repo-dashboard/internal/client"
	"github.com/sakif/repo-dashboard/internal/view"
)

const quitCommand = "/quit"

var errRelayLost = errors.New("lost the connection to the chat relay")

// chat shows the history with one contact, then runs the live loop: stdin
// lines become outgoing messages, relay events update the thread.
func (d *dashboard) chat(c *cli.Context) error {
	contactID, err := oneArg(c, "contactId")
	if err != nil {
		return err
	}
	api, err := d.api()
	if err != nil {
		return err
	}

	history, err := api.Messages(c.Context, contactID)
	if err != nil {
		return d.explain(err)
	}

	conn, err := d.session.Connect(c.Context)
	if err != nil {
		return d.explain(err)
	}

	thread := view.NewThread(conn.UserID())
	thread.Open(contactID, history)

	fmt.Fprintf(d.out, "Chat with %s. Type a message and press Enter; an empty line tells %s you are typing; %s to leave.\n\n",
		contactID, contactID, quitCommand)
	for _, e := range thread.Entries() {
		fmt.Fprintln(d.out, formatEntry(e, conn.UserID()))
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(d.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-c.Context.Done():
				return
			}
		}
	}()

	loop := chatLoop{
		d:       d,
		conn:    conn,
		thread:  thread,
		typing:  view.NewTypingIndicator(view.TypingTimeout),
		contact: contactID,
	}
	return loop.run(c, lines)
}

// chatLoop owns the thread and typing state; only run touches them.
type chatLoop struct {
	d       *dashboard
	conn    *client.Conn
	thread  *view.Thread
	typing  *view.TypingIndicator
	contact string

	typingShown bool
}

func (l *chatLoop) run(c *cli.Context, lines <-chan string) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-c.Context.Done():
			return nil

		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := l.send(line); quit {
				return nil
			}

		case ev, ok := <-l.conn.Events():
			if !ok {
				return errRelayLost
			}
			l.handle(ev)

		case now := <-ticker.C:
			if l.typingShown && !l.typing.Visible(l.contact, now) {
				l.typingShown = false
			}
		}
	}
}

// send handles one line of input. An empty line only signals typing, since a
// line-buffered terminal gives no keystrokes to watch.
func (l *chatLoop) send(line string) (quit bool) {
	content := strings.TrimSpace(line)
	switch content {
	case "":
		if err := l.conn.Typing(l.contact); err != nil {
			l.d.logger.Debug("sending typing notice", slog.String("error", err.Error()))
		}
		return false
	case quitCommand:
		return true
	}

	e := l.thread.AddPending(content, time.Now())
	fmt.Fprintln(l.d.out, formatEntry(e, l.conn.UserID()))

	if err := l.conn.Send(l.contact, content); err != nil {
		l.d.logger.Warn("sending message", slog.String("error", err.Error()))
		fmt.Fprintln(l.d.out, "  ! not sent:", err)
	}
	return false
}

func (l *chatLoop) handle(ev client.Event) {
	self := l.conn.UserID()

	switch {
	case ev.Message != nil:
		msg := *ev.Message
		if msg.SenderID == l.contact {
			l.typing.Clear(l.contact)
			l.typingShown = false
		}
		if !l.thread.Receive(msg) {
			if n := l.thread.Unread(msg.SenderID); n > 0 && msg.SenderID != l.contact {
				fmt.Fprintf(l.d.out, "  (%d unread from %s)\n", n, msg.SenderID)
			}
			return
		}
		if msg.SenderID == self && l.reconciled(msg.ID) {
			// The pending line is already on screen.
			fmt.Fprintln(l.d.out, "  ✓ delivered")
			return
		}
		fmt.Fprintln(l.d.out, formatEntry(view.Entry{Message: msg}, self))

	case ev.Typing != nil:
		if ev.Typing.SenderID != l.contact {
			return
		}
		now := time.Now()
		l.typing.Touch(l.contact, now)
		if !l.typingShown {
			l.typingShown = true
			fmt.Fprintf(l.d.out, "  %s is typing...\n", l.contact)
		}

	case ev.Error != "":
		fmt.Fprintln(l.d.out, "  ! server:", ev.Error)
	}
}

// reconciled reports whether id replaced a pending entry of ours.
func (l *chatLoop) reconciled(id string) bool {
	for _, e := range l.thread.Entries() {
		if e.ID == id {
			return e.TempID != ""
		}
	}
	return false
}
