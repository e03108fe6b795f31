package worker

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/richflyer/internal/database"
	"github.com/dukerupert/richflyer/internal/store"
	"github.com/dukerupert/richflyer/pkg/richflyer"
)

type recordingDisplay struct {
	shown []Notification
	err   error
}

func (d *recordingDisplay) Show(_ context.Context, n Notification) error {
	d.shown = append(d.shown, n)
	return d.err
}

type recordingOpener struct {
	opened []string
}

func (o *recordingOpener) Open(_ context.Context, url string) error {
	o.opened = append(o.opened, url)
	return nil
}

func setupWorker(t *testing.T) (*Worker, *store.NotificationStore, *recordingDisplay, *recordingOpener) {
	t.Helper()
	db, err := database.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	notes := store.NewNotificationStore(db)
	display := &recordingDisplay{}
	opener := &recordingOpener{}
	w := New(notes, display, opener, slog.New(slog.NewTextHandler(io.Discard, nil)))
	w.now = func() time.Time { return time.Unix(1700000000, 0) }
	return w, notes, display, opener
}

func TestHandlePush(t *testing.T) {
	w, notes, display, _ := setupWorker(t)
	ctx := context.Background()

	payload := `{
		"Title": "Sale",
		"Body": "50% off",
		"Icon": "https://cdn.example.com/i.png",
		"notification_id": "n-1",
		"event_id": "ev-9",
		"url": "https://example.com/first",
		"action_buttons": [
			{"label": "Open", "value": "https://example.com/first"},
			{"label": "Later", "value": "https://example.com/later"}
		]
	}`
	if err := w.HandlePush(ctx, []byte(payload)); err != nil {
		t.Fatalf("HandlePush: %v", err)
	}

	rec, err := notes.Get(ctx)
	if err != nil || rec == nil {
		t.Fatalf("stored record = %v, %v", rec, err)
	}
	wantRec := richflyer.NotificationRecord{
		NotificationID:   "n-1",
		Title:            "Sale",
		Body:             "50% off",
		ExtendedProperty: "https://example.com/first",
		ReceivedDate:     1700000000,
	}
	if *rec != wantRec {
		t.Errorf("record = %+v, want %+v", *rec, wantRec)
	}

	if len(display.shown) != 1 {
		t.Fatalf("shown %d notifications, want 1", len(display.shown))
	}
	want := Notification{
		Title: "Sale",
		Body:  "50% off",
		Tag:   "ev-9",
		Icon:  "https://cdn.example.com/i.png",
		Data:  "https://example.com/first",
		Actions: []Action{
			{Title: "Open", Action: "https://example.com/first"},
			{Title: "Later", Action: "https://example.com/later"},
		},
	}
	if !reflect.DeepEqual(display.shown[0], want) {
		t.Errorf("shown = %+v, want %+v", display.shown[0], want)
	}
}

func TestHandlePushDefaults(t *testing.T) {
	w, notes, display, _ := setupWorker(t)
	ctx := context.Background()

	if err := w.HandlePush(ctx, []byte(`{"Title":"T","notification_id":"n-2","click_action":"promo-7"}`)); err != nil {
		t.Fatalf("HandlePush: %v", err)
	}

	n := display.shown[0]
	if n.Tag != "n-2" {
		t.Errorf("tag = %q, want notification id", n.Tag)
	}
	if n.Body != emptyBody {
		t.Errorf("body = %q, want %q", n.Body, emptyBody)
	}
	if n.Data != "promo-7" {
		t.Errorf("data = %q, want click_action", n.Data)
	}
	rec, _ := notes.Get(ctx)
	if rec.ExtendedProperty != "promo-7" {
		t.Errorf("extended property = %q, want click_action", rec.ExtendedProperty)
	}
}

func TestHandlePushReplacesPrevious(t *testing.T) {
	w, notes, _, _ := setupWorker(t)
	ctx := context.Background()

	notes.Put(ctx, richflyer.NotificationRecord{NotificationID: "old", EventLogSent: true, Clicked: true}) //nolint:errcheck
	if err := w.HandlePush(ctx, []byte(`{"Title":"New","notification_id":"new"}`)); err != nil {
		t.Fatalf("HandlePush: %v", err)
	}
	rec, _ := notes.Get(ctx)
	if rec.NotificationID != "new" || rec.EventLogSent || rec.Clicked {
		t.Errorf("record = %+v, want fresh flags for the new notification", rec)
	}
}

func TestHandlePushMalformed(t *testing.T) {
	w, notes, display, _ := setupWorker(t)
	ctx := context.Background()

	if err := w.HandlePush(ctx, []byte(`not json`)); err == nil {
		t.Fatal("expected error for malformed payload")
	}
	if rec, _ := notes.Get(ctx); rec != nil {
		t.Errorf("stored %+v, want nothing", rec)
	}
	if len(display.shown) != 0 {
		t.Error("nothing should be shown")
	}
}

func TestHandleClickTargets(t *testing.T) {
	actions := []Action{{Title: "A", Action: "https://example.com/a"}}

	tests := []struct {
		name   string
		click  Click
		stored string
		want   []string
	}{
		{"selected action wins", Click{Action: "https://example.com/b", Notification: Notification{Data: "https://example.com/d", Actions: actions}}, "x", []string{"https://example.com/b"}},
		{"notification data", Click{Notification: Notification{Data: "https://example.com/d", Actions: actions}}, "x", []string{"https://example.com/d"}},
		{"stored extended property", Click{Notification: Notification{Actions: actions}}, "https://example.com/x", []string{"https://example.com/x"}},
		{"first action", Click{Notification: Notification{Actions: actions}}, "", []string{"https://example.com/a"}},
		{"nothing to open", Click{}, "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, notes, _, opener := setupWorker(t)
			ctx := context.Background()
			notes.Put(ctx, richflyer.NotificationRecord{NotificationID: "n", ExtendedProperty: tt.stored}) //nolint:errcheck

			if err := w.HandleClick(ctx, tt.click); err != nil {
				t.Fatalf("HandleClick: %v", err)
			}
			if !reflect.DeepEqual(opener.opened, tt.want) {
				t.Errorf("opened = %v, want %v", opener.opened, tt.want)
			}
			rec, _ := notes.Get(ctx)
			if !rec.Clicked {
				t.Error("record should be marked clicked")
			}
		})
	}
}

func TestAutoClick(t *testing.T) {
	w, notes, _, opener := setupWorker(t)
	w.AutoClick = true
	ctx := context.Background()

	if err := w.HandlePush(ctx, []byte(`{"Title":"T","notification_id":"n","url":"https://example.com/u"}`)); err != nil {
		t.Fatalf("HandlePush: %v", err)
	}
	if !reflect.DeepEqual(opener.opened, []string{"https://example.com/u"}) {
		t.Errorf("opened = %v", opener.opened)
	}
	rec, _ := notes.Get(ctx)
	if !rec.Clicked {
		t.Error("record should be marked clicked")
	}
}

func TestRun(t *testing.T) {
	w, notes, display, _ := setupWorker(t)

	payloads := make(chan []byte, 3)
	payloads <- []byte(`{"Title":"one","notification_id":"1"}`)
	payloads <- []byte(`broken`)
	payloads <- []byte(`{"Title":"two","notification_id":"2"}`)
	close(payloads)

	if err := w.Run(context.Background(), payloads); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(display.shown) != 2 {
		t.Errorf("shown %d, want 2", len(display.shown))
	}
	rec, _ := notes.Get(context.Background())
	if rec.NotificationID != "2" {
		t.Errorf("last record = %q, want 2", rec.NotificationID)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	w, _, _, _ := setupWorker(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := w.Run(ctx, make(chan []byte)); !errors.Is(err, context.Canceled) {
		t.Errorf("Run error = %v, want context.Canceled", err)
	}
}

func TestTextDisplay(t *testing.T) {
	var buf bytes.Buffer
	err := TextDisplay{W: &buf}.Show(context.Background(), Notification{
		Title:   "Sale",
		Body:    "50% off",
		Tag:     "n-1",
		Data:    "https://example.com",
		Actions: []Action{{Title: "Open", Action: "https://example.com/a"}},
	})
	if err != nil {
		t.Fatalf("Show: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"[n-1] Sale", "50% off", "-> https://example.com", "[Open] https://example.com/a"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}
