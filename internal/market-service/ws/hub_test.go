package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/radieske/bettable-market/pkg/contracts/events"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitSubscribers(t *testing.T, h *Hub, marketID int64, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Subscribers(marketID) != want {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d subscribers, got %d", want, h.Subscribers(marketID))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHubBroadcastToSubscribers(t *testing.T) {
	hub := NewHub(func(*http.Request) bool { return true })
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	conn := dial(t, srv)
	if err := conn.WriteJSON(ClientMsg{Type: "subscribe", MarketID: 7}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	waitSubscribers(t, hub, 7, 1)

	hub.Broadcast(MarketUpdate{MarketID: 8, Payload: events.MarketEvent{MarketID: 8, Type: events.TypeOddsSet}})
	hub.Broadcast(MarketUpdate{MarketID: 7, Payload: events.MarketEvent{MarketID: 7, Type: events.TypeOutcomeSet, Outcome: "home"}})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got MarketUpdate
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.MarketID != 7 || got.Payload.Outcome != "home" {
		t.Fatalf("unexpected update: %+v", got)
	}

	if err := conn.WriteJSON(ClientMsg{Type: "unsubscribe", MarketID: 7}); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	waitSubscribers(t, hub, 7, 0)
}

func TestPublicTypesExcludeBets(t *testing.T) {
	for _, typ := range []string{events.TypeBetAdded, events.TypeBetUpdated, events.TypeBetDeleted, events.TypeBetWithdrawFailed} {
		if publicTypes[typ] {
			t.Fatalf("%s must not be broadcast", typ)
		}
	}
}

func TestAllowOrigins(t *testing.T) {
	check := AllowOrigins([]string{"http://front.local"})
	cases := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://front.local", true},
		{"http://evil.local", false},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/v1/ws", nil)
		if tc.origin != "" {
			r.Header.Set("Origin", tc.origin)
		}
		if got := check(r); got != tc.want {
			t.Fatalf("origin %q: expected %v, got %v", tc.origin, tc.want, got)
		}
	}
	r := httptest.NewRequest(http.MethodGet, "/v1/ws", nil)
	r.Header.Set("Origin", "http://any.local")
	if !AllowOrigins([]string{"*"})(r) {
		t.Fatal("wildcard must allow")
	}
}
