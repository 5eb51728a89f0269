package admin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileTerminal is the watched-file admin interface: operators append
// command lines to the terminal file and the responses come back
// appended below, every line prefixed with '>'. Only unprefixed lines
// count as input, which also keeps the terminal from consuming its own
// output.
type FileTerminal struct {
	path   string
	auth   *Auth
	cmds   *Commands
	reauth time.Duration

	offset  int64
	pending []string
}

// NewFileTerminal builds the file terminal around the shared command set.
func NewFileTerminal(path string, auth *Auth, cmds *Commands, reauthSeconds int) *FileTerminal {
	return &FileTerminal{
		path:   path,
		auth:   auth,
		cmds:   cmds,
		reauth: time.Duration(reauthSeconds) * time.Second,
	}
}

// Run truncates the terminal file and processes appended commands
// until ctx is cancelled.
func (t *FileTerminal) Run(ctx context.Context) error {
	if err := t.reset(); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating terminal file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(t.path); err != nil {
		return fmt.Errorf("watching terminal file: %w", err)
	}

	in := func(prompt string) (string, error) {
		t.emit(prompt)
		return t.await(ctx, watcher)
	}

	if err := t.auth.EnsureAccess(t.emit, in); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	lastSeen := time.Now()

	for {
		line, err := t.await(ctx, watcher)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		if t.reauth > 0 && time.Since(lastSeen) >= t.reauth {
			if err := t.auth.EnsureAccess(t.emit, in); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
		lastSeen = time.Now()

		slog.Warn("executing admin command", "terminal", "file", "command", line)
		t.emit(t.cmds.Execute(ctx, line))
	}
}

// await blocks until the next command line shows up in the file.
func (t *FileTerminal) await(ctx context.Context, watcher *fsnotify.Watcher) (string, error) {
	for {
		if len(t.pending) > 0 {
			line := t.pending[0]
			t.pending = t.pending[1:]
			return line, nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return "", io.EOF
			}
			if event.Op&fsnotify.Write != fsnotify.Write {
				continue
			}
			lines, err := t.drain()
			if err != nil {
				return "", err
			}
			t.pending = append(t.pending, lines...)
		case err, ok := <-watcher.Errors:
			if !ok {
				return "", io.EOF
			}
			slog.Error("terminal file watcher error", "error", err)
		}
	}
}

// drain reads everything appended since the last read and returns the
// complete command lines. A trailing line without a newline stays
// unconsumed until its newline arrives.
func (t *FileTerminal) drain() ([]string, error) {
	f, err := os.Open(t.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			t.offset = 0
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	if st, err := f.Stat(); err == nil && st.Size() < t.offset {
		// The file shrank behind our back, start over.
		t.offset = 0
	}

	if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	var (
		lines    []string
		consumed int
	)
	for {
		i := bytes.IndexByte(data[consumed:], '\n')
		if i < 0 {
			break
		}
		line := strings.TrimSpace(string(data[consumed : consumed+i]))
		consumed += i + 1
		if line == "" || strings.HasPrefix(line, ">") {
			continue
		}
		lines = append(lines, line)
	}
	t.offset += int64(consumed)
	return lines, nil
}

// emit appends a response to the terminal file, prefixing every line
// with '>'.
func (t *FileTerminal) emit(s string) {
	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		slog.Error("appending to terminal file failed", "path", t.path, "error", err)
		return
	}
	defer f.Close()

	var b strings.Builder
	for _, line := range strings.Split(s, "\n") {
		b.WriteString(">")
		b.WriteString(line)
		b.WriteString("\n")
	}
	if _, err := f.WriteString(b.String()); err != nil {
		slog.Error("appending to terminal file failed", "path", t.path, "error", err)
	}
}

func (t *FileTerminal) reset() error {
	if err := os.WriteFile(t.path, nil, 0o644); err != nil {
		return fmt.Errorf("truncating terminal file: %w", err)
	}
	t.offset = 0
	return nil
}
