// Package console is the terminal front end of a link: it prints every
// event the link reports and turns lines typed on stdin into sends.
//
// Lines are sent as typed.  A line starting with ':' is a command:
//
//	:quit           leave (also :q)
//	:reconnect      stop the link and start it again
//	:stats          print the link counters as JSON
//	:help           list commands and macros
//	:<macro>        send the line the macro stands for
//	::text          send ":text" literally
package console

import (
	"bufio"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"microcli/internal/link"
	"microcli/internal/metrics"
	"microcli/util"
)

// Link is the part of *link.Controller the console drives.
type Link interface {
	Start(ctx context.Context) error
	Stop()
	SendString(s string) error
	Events() <-chan link.Event
	Addr() string
	Metrics() *metrics.Collector
}

// errQuit ends Run without an error.
var errQuit = errors.New("quit")

// Console connects a Link to a line-oriented terminal.
type Console struct {
	Link   Link
	In     io.Reader // one message per line
	Out    io.Writer
	Styles Styles
	Macros map[string]string

	// Wait is how long the console keeps printing replies after In is
	// exhausted.  Piped input and --send scripts rely on it.
	Wait time.Duration

	Logger *util.Logger

	mu sync.Mutex // serializes writes to Out
}

// Run starts the link and serves input and events until In is
// exhausted (plus Wait), ":quit" is entered or ctx is cancelled.  It
// stops the link before returning.  A failed initial connect is shown
// like any other fault; the user may ":reconnect".
func (c *Console) Run(ctx context.Context) error {
	if c.Logger == nil {
		c.Logger = util.NewLogger(0)
		c.Logger.SetOutput(io.Discard)
	}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return c.render(gctx) })

	if err := c.Link.Start(gctx); err != nil {
		c.Logger.Verbose("start: %v", err)
	}

	lines := readLines(c.In)
	g.Go(func() error { return c.input(gctx, lines) })

	err := g.Wait()
	c.Link.Stop()

	if errors.Is(err, errQuit) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// readLines feeds r into a channel from a goroutine of its own.  A read
// from a terminal cannot be cancelled, so the goroutine is left behind
// if the console quits first.
func readLines(r io.Reader) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			out <- sc.Text()
		}
	}()
	return out
}

func (c *Console) input(ctx context.Context, lines <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return c.drain(ctx)
			}
			if err := c.handle(ctx, line); err != nil {
				return err
			}
		}
	}
}

// drain keeps the renderer running for Wait after the input ends.
func (c *Console) drain(ctx context.Context) error {
	if c.Wait <= 0 {
		return errQuit
	}
	c.Logger.Debug("input closed; waiting %v for replies", c.Wait)
	t := time.NewTimer(c.Wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return errQuit
	}
}

// handle acts on one line of input.
func (c *Console) handle(ctx context.Context, line string) error {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" {
		return nil
	}

	if !strings.HasPrefix(line, ":") {
		c.send(line)
		return nil
	}
	if strings.HasPrefix(line, "::") {
		c.send(line[1:])
		return nil
	}

	name := strings.TrimSpace(line[1:])
	switch name {
	case "q", "quit":
		return errQuit
	case "reconnect":
		c.status("reconnecting to %s", c.Link.Addr())
		c.Link.Stop()
		if err := c.Link.Start(ctx); err != nil {
			c.Logger.Verbose("reconnect: %v", err)
		}
	case "stats":
		c.status("%s", c.Link.Metrics().JSON())
	case "help":
		c.help()
	default:
		if cmd, ok := c.Macros[name]; ok {
			c.send(cmd)
			return nil
		}
		c.status("unknown command :%s (try :help)", name)
	}
	return nil
}

// send hands text to the link.  Failures arrive as Fault events, so
// the returned error is only logged.
func (c *Console) send(text string) {
	if err := c.Link.SendString(text); err != nil {
		c.Logger.Debug("send: %v", err)
	}
}

func (c *Console) help() {
	c.status("commands: :quit :reconnect :stats :help ::text")
	if len(c.Macros) == 0 {
		return
	}
	names := make([]string, 0, len(c.Macros))
	for n := range c.Macros {
		names = append(names, n)
	}
	sort.Strings(names)
	c.status("macros:")
	for _, n := range names {
		c.status("  :%-10s %s", n, c.Macros[n])
	}
}
