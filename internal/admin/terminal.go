package admin

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// Terminal is the interactive admin console on the server's own
// stdin/stdout.
type Terminal struct {
	auth   *Auth
	cmds   *Commands
	reauth time.Duration

	in  io.Reader
	out io.Writer
}

// NewTerminal builds the stdin terminal. in and out are injectable for
// tests; pass os.Stdin and os.Stdout in production.
func NewTerminal(auth *Auth, cmds *Commands, reauthSeconds int, in io.Reader, out io.Writer) *Terminal {
	return &Terminal{
		auth:   auth,
		cmds:   cmds,
		reauth: time.Duration(reauthSeconds) * time.Second,
		in:     in,
		out:    out,
	}
}

// Run reads commands line by line until ctx is cancelled or the input
// stream ends. A closed stdin is a normal way to stop the terminal.
func (t *Terminal) Run(ctx context.Context) error {
	// Reading happens on its own goroutine so a blocked Read never
	// holds up shutdown.
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(t.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	print := func(s string) {
		fmt.Fprintln(t.out, s)
	}
	read := func(prompt string) (string, error) {
		print(prompt)
		select {
		case line, ok := <-lines:
			if !ok {
				return "", io.EOF
			}
			return strings.TrimSpace(line), nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if err := t.auth.EnsureAccess(print, read); err != nil {
		if ctx.Err() != nil || err == io.EOF {
			return nil
		}
		return err
	}
	lastSeen := time.Now()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			if t.reauth > 0 && time.Since(lastSeen) >= t.reauth {
				if err := t.auth.EnsureAccess(print, read); err != nil {
					if ctx.Err() != nil || err == io.EOF {
						return nil
					}
					return err
				}
			}
			lastSeen = time.Now()

			slog.Warn("executing admin command", "terminal", "stdin", "command", line)
			print(t.cmds.Execute(ctx, line))
		}
	}
}
