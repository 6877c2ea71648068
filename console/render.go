package console

import (
	"context"
	"fmt"

	"microcli/internal/link"
)

// render prints events until ctx ends or the link closes its channel.
func (c *Console) render(ctx context.Context) error {
	events := c.Link.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			c.println(Format(ev, c.Styles))
		}
	}
}

// Format renders one event the way the console prints it:
//
//	Me:  toggle LED3
//	Dev:  LED3 on
//	!! end of stream: EOF
func Format(ev link.Event, s Styles) string {
	switch ev.Kind {
	case link.KindSent:
		return s.Me.Render("Me:") + "  " + ev.Text()
	case link.KindReceived:
		return s.Dev.Render("Dev:") + "  " + ev.Text()
	case link.KindFault:
		return s.Fault.Render("!! " + ev.Fault.Error())
	default:
		return s.Status.Render(ev.String())
	}
}

func (c *Console) status(format string, args ...interface{}) {
	c.println(c.Styles.Status.Render(fmt.Sprintf(format, args...)))
}

func (c *Console) println(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.Out, s)
}
