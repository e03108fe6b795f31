package store

import (
	"bytes"
	"context"
	"testing"

	"github.com/dukerupert/richflyer/internal/model"
)

func TestSubscriptionStore(t *testing.T) {
	ss := NewSubscriptionStore(setupTestDB(t))
	ctx := context.Background()

	st, err := ss.Load(ctx)
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if st != nil {
		t.Fatalf("expected nil state, got %+v", st)
	}

	saved := model.PushState{
		UAID:       "uaid-1",
		ChannelID:  "chan-1",
		Endpoint:   "https://push.example.com/wpush/v2/abc",
		AuthSecret: []byte("0123456789abcdef"),
		PrivateKey: []byte{1, 2, 3},
	}
	if err := ss.Save(ctx, saved); err != nil {
		t.Fatalf("save: %v", err)
	}
	st, err = ss.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if st.UAID != "uaid-1" || st.ChannelID != "chan-1" || st.Endpoint != saved.Endpoint {
		t.Errorf("state = %+v", st)
	}
	if !bytes.Equal(st.AuthSecret, saved.AuthSecret) || !bytes.Equal(st.PrivateKey, saved.PrivateKey) {
		t.Error("key material did not round trip")
	}
	if !st.Subscribed() {
		t.Error("expected Subscribed() to be true")
	}

	if err := ss.ClearSubscription(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	st, err = ss.Load(ctx)
	if err != nil {
		t.Fatalf("load after clear: %v", err)
	}
	if st.UAID != "uaid-1" {
		t.Errorf("uaid = %q, want it kept", st.UAID)
	}
	if st.Subscribed() {
		t.Error("expected Subscribed() to be false after clear")
	}
}
