package browser

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

// Opener opens click targets in the user's default browser.
type Opener struct {
	goos  string
	start func(ctx context.Context, name string, args ...string) error
}

func New() *Opener {
	return &Opener{goos: runtime.GOOS, start: startCommand}
}

// Open opens the specified URL. Only http and https targets are opened.
func (o *Opener) Open(ctx context.Context, target string) error {
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("refusing to open %q: unsupported scheme", target)
	}

	switch o.goos {
	case "darwin":
		return o.start(ctx, "open", target)
	case "linux", "freebsd", "openbsd", "netbsd":
		return o.start(ctx, "xdg-open", target)
	case "windows":
		return o.start(ctx, "rundll32", "url.dll,FileProtocolHandler", target)
	default:
		return fmt.Errorf("unsupported OS: %s", o.goos)
	}
}

func startCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait() //nolint:errcheck
	return nil
}
