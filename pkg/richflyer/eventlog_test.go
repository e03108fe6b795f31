package richflyer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
)

func TestRegisterEventLog_SentOnce(t *testing.T) {
	f := newFakeAPI(t)
	f.handle(http.MethodPost, "/v1/devices/"+testDeviceID+"/event-logs-webpush", func(w http.ResponseWriter, r *http.Request) {
		var req eventLogRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode body: %v", err)
		}
		want := eventLogRequest{NotificationID: "n-1", EventID: "richflyer_launch_app", EventTime: fixedNow.Unix()}
		if req != want {
			t.Errorf("body = %+v, want %+v", req, want)
		}
		w.WriteHeader(http.StatusOK)
	})
	notes := &memNotifications{rec: &NotificationRecord{NotificationID: "n-1", Title: "Hi", ReceivedDate: 1}}
	c := newTestClient(f, &memTokens{token: "cached", ok: true}, notes)
	id := StandardIdentity{Subscription: testSub}

	if err := c.RegisterEventLog(context.Background(), id); err != nil {
		t.Fatalf("first RegisterEventLog() error: %v", err)
	}
	if !notes.rec.EventLogSent {
		t.Error("record should be marked as sent")
	}
	if notes.rec.Title != "Hi" {
		t.Errorf("title = %q, other fields must be preserved", notes.rec.Title)
	}

	if err := c.RegisterEventLog(context.Background(), id); !errors.Is(err, ErrEventLogSent) {
		t.Errorf("second RegisterEventLog() error = %v, want ErrEventLogSent", err)
	}
	if n := f.total(); n != 1 {
		t.Errorf("requests = %d, want 1", n)
	}
}

func TestRegisterEventLog_Preconditions(t *testing.T) {
	tests := []struct {
		name    string
		id      Identity
		rec     *NotificationRecord
		wantErr error
	}{
		{"vendor channel", VendorIdentity{Permission: RemotePermission{DeviceToken: "tok"}}, &NotificationRecord{NotificationID: "n"}, ErrUnsupportedChannel},
		{"no identity", nil, &NotificationRecord{NotificationID: "n"}, ErrUnsupportedChannel},
		{"no record", StandardIdentity{Subscription: testSub}, nil, ErrNoNotification},
		{"cleared record", StandardIdentity{Subscription: testSub}, &NotificationRecord{Clicked: true}, ErrNoNotification},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeAPI(t)
			c := newTestClient(f, &memTokens{token: "cached", ok: true}, &memNotifications{rec: tt.rec})

			if err := c.RegisterEventLog(context.Background(), tt.id); !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if f.total() != 0 {
				t.Errorf("requests = %d, want 0", f.total())
			}
		})
	}
}

func TestRegisterEventLog_FailureLeavesRecordUnsent(t *testing.T) {
	f := newFakeAPI(t)
	f.handle(http.MethodPost, "/v1/devices/"+testDeviceID+"/event-logs-webpush", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"message": "boom"})
	})
	notes := &memNotifications{rec: &NotificationRecord{NotificationID: "n-1"}}
	c := newTestClient(f, &memTokens{token: "cached", ok: true}, notes)

	if err := c.RegisterEventLog(context.Background(), StandardIdentity{Subscription: testSub}); err == nil {
		t.Fatal("expected error")
	}
	if notes.rec.EventLogSent {
		t.Error("record must stay unsent after a failed post")
	}
}
