package autopush

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
)

// fakeService is a minimal autopush server. POST /push/{channelID}
// forwards the request body to the connected client as a notification.
type fakeService struct {
	t   *testing.T
	srv *httptest.Server

	mu       sync.Mutex
	conn     *ws.Conn
	uaid     string
	channels map[string]string // channel id -> server key
	hellos   []helloRequest
	acks     []ackUpdate
	pongs    int
	frames   chan MessageType
}

func newFakeService(t *testing.T) *fakeService {
	t.Helper()
	f := &fakeService{
		t:        t,
		uaid:     "uaid-fresh",
		channels: map[string]string{},
		frames:   make(chan MessageType, 64),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", f.serveWS)
	mux.HandleFunc("POST /push/{channel}", f.servePush)
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeService) url() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http")
}

func (f *fakeService) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.Accept(w, r, nil)
	if err != nil {
		f.t.Errorf("accept: %v", err)
		return
	}
	defer conn.CloseNow()

	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()

	ctx := r.Context()
	for {
		var raw map[string]any
		if err := wsjson.Read(ctx, conn, &raw); err != nil {
			return
		}
		typ, _ := raw["messageType"].(string)
		var reply any

		f.mu.Lock()
		switch MessageType(typ) {
		case TypeHello:
			var req helloRequest
			remarshal(raw, &req)
			f.hellos = append(f.hellos, req)
			uaid := req.UAID
			if uaid == "" {
				uaid = f.uaid
			}
			reply = map[string]any{"messageType": "hello", "uaid": uaid, "status": 200, "use_webpush": true}
		case TypeRegister:
			var req registerRequest
			remarshal(raw, &req)
			status := 200
			if _, dup := f.channels[req.ChannelID]; dup {
				status = 409
			}
			f.channels[req.ChannelID] = req.Key
			reply = map[string]any{"messageType": "register", "channelID": req.ChannelID, "status": status, "pushEndpoint": f.srv.URL + "/push/" + req.ChannelID}
		case TypeUnregister:
			var req unregisterRequest
			remarshal(raw, &req)
			delete(f.channels, req.ChannelID)
			reply = map[string]any{"messageType": "unregister", "channelID": req.ChannelID, "status": 200}
		case TypeAck:
			var req ack
			remarshal(raw, &req)
			f.acks = append(f.acks, req.Updates...)
		case "":
			f.pongs++
		}
		f.mu.Unlock()

		if reply != nil {
			if err := wsjson.Write(ctx, conn, reply); err != nil {
				return
			}
		}
		f.frames <- MessageType(typ)
	}
}

func (f *fakeService) servePush(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	channelID := r.PathValue("channel")
	if err := f.notify(r.Context(), channelID, body); err != nil {
		w.WriteHeader(http.StatusGone)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (f *fakeService) notify(ctx context.Context, channelID string, body []byte) error {
	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()
	if conn == nil {
		return io.ErrClosedPipe
	}
	return wsjson.Write(ctx, conn, map[string]any{
		"messageType": "notification",
		"channelID":   channelID,
		"version":     uuid.NewString(),
		"data":        base64.RawURLEncoding.EncodeToString(body),
	})
}

func (f *fakeService) sendRaw(ctx context.Context, v any) error {
	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()
	return wsjson.Write(ctx, conn, v)
}

// waitFrame blocks until the client sends a frame of the given type.
func (f *fakeService) waitFrame(t *testing.T, typ MessageType) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case got := <-f.frames:
			if got == typ {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %q frame", typ)
		}
	}
}

func remarshal(in any, out any) {
	data, _ := json.Marshal(in)
	json.Unmarshal(data, out) //nolint:errcheck
}
