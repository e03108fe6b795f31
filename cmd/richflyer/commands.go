package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/richflyer/internal/browser"
	"github.com/dukerupert/richflyer/internal/config"
	"github.com/dukerupert/richflyer/internal/push"
	"github.com/dukerupert/richflyer/internal/worker"
	"github.com/dukerupert/richflyer/pkg/richflyer"
)

func newRootCommand(getenv func(string) string, out io.Writer) *cobra.Command {
	var a *app

	root := &cobra.Command{
		Use:           "richflyer",
		Short:         "RichFlyer web push client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)

	// withApp wraps a command body with configuration and wiring.
	withApp := func(run func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(getenv)
			if err != nil {
				return err
			}
			a, err = newApp(cmd.Context(), cfg, out)
			if err != nil {
				return err
			}
			defer a.Close()
			return run(cmd, args)
		}
	}
	current := func() *app { return a }

	root.AddCommand(
		initCommand(current, withApp),
		unsubscribeCommand(current, withApp),
		segmentsCommand(current, withApp),
		postCommand(current, withApp),
		cancelCommand(current, withApp),
		eventLogCommand(current, withApp),
		lastCommand(current, withApp),
		listenCommand(current, withApp),
		sendCommand(current, withApp),
		vapidCommand(out),
	)
	return root
}

type runFunc = func(cmd *cobra.Command, args []string) error

type wrapper = func(runFunc) runFunc

func initCommand(a func() *app, with wrapper) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Request permission, subscribe and register this device",
		Args:  cobra.NoArgs,
		RunE: with(func(cmd *cobra.Command, _ []string) error {
			env, err := a().environment(cmd.Context())
			if err != nil {
				return err
			}
			perm, err := a().client.Init(cmd.Context(), env)
			if err != nil {
				return err
			}
			if perm == "" {
				fmt.Fprintln(a().out, "push notifications are not available")
				return nil
			}
			fmt.Fprintln(a().out, perm)
			return nil
		}),
	}
}

func unsubscribeCommand(a func() *app, with wrapper) *cobra.Command {
	return &cobra.Command{
		Use:   "unsubscribe",
		Short: "Remove the push subscription and forget the auth token",
		Args:  cobra.NoArgs,
		RunE: with(func(cmd *cobra.Command, _ []string) error {
			env, err := a().environment(cmd.Context())
			if err != nil {
				return err
			}
			ok, err := a().client.Unsubscribe(cmd.Context(), env)
			if err != nil {
				return err
			}
			fmt.Fprintln(a().out, ok)
			return nil
		}),
	}
}

func segmentsCommand(a func() *app, with wrapper) *cobra.Command {
	var strs, numbers, bools, dates []string

	cmd := &cobra.Command{
		Use:   "segments",
		Short: "Replace this device's segments",
		Example: `  richflyer segments --string plan=gold --number age=30 --bool member=true \
    --date joined=2024-01-02T15:04:05Z`,
		Args: cobra.NoArgs,
		RunE: with(func(cmd *cobra.Command, _ []string) error {
			segments, err := parseSegments(strs, numbers, bools, dates)
			if err != nil {
				return err
			}
			id, err := identity(cmd.Context(), a())
			if err != nil {
				return err
			}
			return a().client.UpdateSegments(cmd.Context(), id, segments)
		}),
	}
	cmd.Flags().StringArrayVar(&strs, "string", nil, "string segment key=value")
	cmd.Flags().StringArrayVar(&numbers, "number", nil, "numeric segment key=value")
	cmd.Flags().StringArrayVar(&bools, "bool", nil, "boolean segment key=true|false")
	cmd.Flags().StringArrayVar(&dates, "date", nil, "date segment key=RFC3339 timestamp")
	return cmd
}

func postCommand(a func() *app, with wrapper) *cobra.Command {
	var (
		events  []string
		vars    []string
		standby int
	)

	cmd := &cobra.Command{
		Use:   "post",
		Short: "Ask the server to send the messages bound to events",
		Args:  cobra.NoArgs,
		RunE: with(func(cmd *cobra.Command, _ []string) error {
			variables, err := parsePairs(vars)
			if err != nil {
				return fmt.Errorf("--var: %w", err)
			}
			opts := richflyer.PostMessageOptions{Variables: variables}
			if cmd.Flags().Changed("standby") {
				opts.StandbyMinutes = &standby
			}

			id, err := identity(cmd.Context(), a())
			if err != nil {
				return err
			}
			ids, err := a().client.PostMessage(cmd.Context(), id, events, opts)
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(a().out, id)
			}
			return nil
		}),
	}
	cmd.Flags().StringArrayVar(&events, "event", nil, "event name (repeatable)")
	cmd.Flags().StringArrayVar(&vars, "var", nil, "template variable key=value (repeatable)")
	cmd.Flags().IntVar(&standby, "standby", 0, "delay delivery by this many minutes")
	return cmd
}

func cancelCommand(a func() *app, with wrapper) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <event-post-id>",
		Short: "Cancel a posted message",
		Args:  cobra.ExactArgs(1),
		RunE: with(func(cmd *cobra.Command, args []string) error {
			id, err := identity(cmd.Context(), a())
			if err != nil {
				return err
			}
			return a().client.CancelMessage(cmd.Context(), id, args[0])
		}),
	}
}

func eventLogCommand(a func() *app, with wrapper) *cobra.Command {
	return &cobra.Command{
		Use:   "event-log",
		Short: "Report that the last notification launched the site",
		Args:  cobra.NoArgs,
		RunE: with(func(cmd *cobra.Command, _ []string) error {
			id, err := identity(cmd.Context(), a())
			if err != nil {
				return err
			}
			err = a().client.RegisterEventLog(cmd.Context(), id)
			if errors.Is(err, richflyer.ErrEventLogSent) {
				fmt.Fprintln(a().out, "already sent")
				return nil
			}
			return err
		}),
	}
}

func lastCommand(a func() *app, with wrapper) *cobra.Command {
	var (
		clearAll      bool
		clearExtended bool
		clicked       string
	)

	cmd := &cobra.Command{
		Use:   "last",
		Short: "Show or update the last received notification",
		Args:  cobra.NoArgs,
		RunE: with(func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			c := a().client

			var ok bool
			var err error
			switch {
			case clearAll:
				ok, err = c.ClearLastNotification(ctx)
			case clearExtended:
				ok, err = c.ClearExtendedProperty(ctx)
			case clicked != "":
				var v bool
				if v, err = strconv.ParseBool(clicked); err != nil {
					return fmt.Errorf("--clicked: %w", err)
				}
				ok, err = c.UpdateClickStatus(ctx, v)
			default:
				return printLast(ctx, a())
			}
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(a().out, "no notification stored")
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&clearAll, "clear", false, "blank the stored notification")
	cmd.Flags().BoolVar(&clearExtended, "clear-extended", false, "remove the stored extended property")
	cmd.Flags().StringVar(&clicked, "clicked", "", "set the clicked flag (true|false)")
	cmd.MarkFlagsMutuallyExclusive("clear", "clear-extended", "clicked")
	return cmd
}

func identity(ctx context.Context, a *app) (richflyer.Identity, error) {
	env, err := a.environment(ctx)
	if err != nil {
		return nil, err
	}
	return a.client.Identity(ctx, env)
}

func printLast(ctx context.Context, a *app) error {
	rec, err := a.client.LastNotification(ctx)
	if err != nil {
		return err
	}
	if rec == nil {
		fmt.Fprintln(a.out, "no notification stored")
		return nil
	}
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"notification_id":   rec.NotificationID,
		"title":             rec.Title,
		"body":              rec.Body,
		"extended_property": rec.ExtendedProperty,
		"event_log_sent":    rec.EventLogSent,
		"clicked":           rec.Clicked,
		"received_date":     rec.ReceivedDate,
	})
}

func listenCommand(a func() *app, with wrapper) *cobra.Command {
	var click bool

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Receive and show push notifications until interrupted",
		Args:  cobra.NoArgs,
		RunE: with(func(cmd *cobra.Command, _ []string) error {
			m, err := a().pushManager(cmd.Context())
			if err != nil {
				return err
			}
			sub, err := m.Subscription(cmd.Context())
			if err != nil {
				return err
			}
			if sub == nil {
				return errors.New("not subscribed, run `richflyer init` first")
			}

			var opener worker.Opener = browser.New()
			if !a().cfg.OpenBrowser {
				opener = logOpener{a: a()}
			}
			w := worker.New(a().notes, worker.TextDisplay{W: a().out}, opener, a().logger)
			w.AutoClick = click

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go func() {
				select {
				case <-m.Done():
					cancel()
				case <-ctx.Done():
				}
			}()

			a().logger.Info("listening for push messages", "endpoint", sub.Endpoint)
			err = w.Run(ctx, m.Messages())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}),
	}
	cmd.Flags().BoolVar(&click, "click", false, "treat every notification as clicked")
	return cmd
}

type logOpener struct {
	a *app
}

func (o logOpener) Open(_ context.Context, url string) error {
	o.a.logger.Info("click target", "url", url)
	return nil
}

func sendCommand(a func() *app, with wrapper) *cobra.Command {
	var p push.Payload

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a test notification to this device's subscription",
		Long: `Send a test notification to this device's subscription, acting as the
application server. The subscription must have been created for the VAPID key
in RICHFLYER_VAPID_PUBLIC_KEY.`,
		Args: cobra.NoArgs,
		RunE: with(func(cmd *cobra.Command, _ []string) error {
			cfg := a().cfg
			if cfg.VAPIDPublicKey == "" || cfg.VAPIDPrivateKey == "" {
				return errors.New("RICHFLYER_VAPID_PUBLIC_KEY and RICHFLYER_VAPID_PRIVATE_KEY are required")
			}
			m, err := a().pushManager(cmd.Context())
			if err != nil {
				return err
			}
			sub, err := m.Subscription(cmd.Context())
			if err != nil {
				return err
			}
			if sub == nil {
				return errors.New("not subscribed, run `richflyer init` first")
			}
			if p.NotificationID == "" {
				p.NotificationID = fmt.Sprintf("local-%d", time.Now().Unix())
			}
			sender := push.NewSender(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubscriber, nil)
			return sender.Send(cmd.Context(), *sub, p)
		}),
	}
	cmd.Flags().StringVar(&p.Title, "title", "RichFlyer", "notification title")
	cmd.Flags().StringVar(&p.Body, "body", "", "notification body")
	cmd.Flags().StringVar(&p.URL, "url", "", "URL opened on click")
	cmd.Flags().StringVar(&p.ClickAction, "click-action", "", "extended property")
	cmd.Flags().StringVar(&p.NotificationID, "notification-id", "", "notification id (default local-<unix time>)")
	return cmd
}

func vapidCommand(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "vapid",
		Short: "Generate a VAPID key pair",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			pub, priv, err := push.GenerateVAPIDKeys()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "RICHFLYER_VAPID_PUBLIC_KEY=%s\nRICHFLYER_VAPID_PRIVATE_KEY=%s\n", pub, priv)
			return nil
		},
	}
}

func parsePairs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", kv)
		}
		out[k] = v
	}
	return out, nil
}

func parseSegments(strs, numbers, bools, dates []string) (map[string]any, error) {
	s, err := parsePairs(strs)
	if err != nil {
		return nil, fmt.Errorf("--string: %w", err)
	}

	rawNumbers, err := parsePairs(numbers)
	if err != nil {
		return nil, fmt.Errorf("--number: %w", err)
	}
	n := make(map[string]float64, len(rawNumbers))
	for k, v := range rawNumbers {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("--number %s: %w", k, err)
		}
		n[k] = f
	}

	rawBools, err := parsePairs(bools)
	if err != nil {
		return nil, fmt.Errorf("--bool: %w", err)
	}
	b := make(map[string]bool, len(rawBools))
	for k, v := range rawBools {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("--bool %s: %w", k, err)
		}
		b[k] = parsed
	}

	rawDates, err := parsePairs(dates)
	if err != nil {
		return nil, fmt.Errorf("--date: %w", err)
	}
	d := make(map[string]time.Time, len(rawDates))
	for k, v := range rawDates {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("--date %s: %w", k, err)
		}
		d[k] = ts
	}

	return richflyer.MergeSegments(s, n, b, d), nil
}
