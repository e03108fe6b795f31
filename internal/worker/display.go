package worker

import (
	"context"
	"fmt"
	"io"
)

// TextDisplay writes notifications to a terminal.
type TextDisplay struct {
	W io.Writer
}

func (d TextDisplay) Show(_ context.Context, n Notification) error {
	if _, err := fmt.Fprintf(d.W, "[%s] %s\n  %s\n", n.Tag, n.Title, n.Body); err != nil {
		return err
	}
	if n.Data != "" {
		if _, err := fmt.Fprintf(d.W, "  -> %s\n", n.Data); err != nil {
			return err
		}
	}
	for _, a := range n.Actions {
		if _, err := fmt.Fprintf(d.W, "  [%s] %s\n", a.Title, a.Action); err != nil {
			return err
		}
	}
	return nil
}
