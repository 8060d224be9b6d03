package live

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"attendance-backend/internal/models"

	"github.com/gorilla/websocket"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestHubPublishesToClients(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()
	defer hub.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	waitFor(t, func() bool { return hub.Clients() == 1 })

	hub.Publish(models.Activity{ID: "a1", UserID: "u1", Type: models.ActivityLogin, Date: "2024-01-05"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Event != "activity" || msg.Activity.ID != "a1" || msg.Activity.Type != "login" {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestHubDropsClosedClients(t *testing.T) {
	hub := NewHub()
	var mu sync.Mutex
	last := -1
	hub.OnClientCountChange(func(n int) {
		mu.Lock()
		last = n
		mu.Unlock()
	})

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	waitFor(t, func() bool { return hub.Clients() == 1 })

	conn.Close()
	waitFor(t, func() bool { return hub.Clients() == 0 })
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return last == 0
	})
}

func TestAllowOrigins(t *testing.T) {
	check := AllowOrigins([]string{"https://attendance.example.com/"})

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"https://attendance.example.com", true},
		{"https://evil.example.com", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/ws/activities", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := check(r); got != tt.want {
			t.Errorf("origin %q: got %v, want %v", tt.origin, got, tt.want)
		}
	}

	r := httptest.NewRequest("GET", "/ws/activities", nil)
	r.Header.Set("Origin", "https://anywhere.example.com")
	if !AllowOrigins([]string{"*"})(r) {
		t.Error("wildcard should accept any origin")
	}
}

func TestHubRejectsForeignOrigin(t *testing.T) {
	hub := NewHub()
	hub.SetCheckOrigin(AllowOrigins([]string{"https://attendance.example.com"}))
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()
	defer hub.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{"Origin": {"https://evil.example.com"}}
	if _, resp, err := websocket.DefaultDialer.Dial(url, header); err == nil {
		t.Fatal("dial from foreign origin succeeded")
	} else if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("dial error = %v, resp = %v", err, resp)
	}
}
