package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, "test-token", nil), srv
}

func TestSendEmptyBodySkipsNetwork(t *testing.T) {
	var hits atomic.Int32
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))

	for _, body := range []string{"", "   ", "\n\t "} {
		_, err := c.Send(context.Background(), 2, body)
		if !errors.Is(err, ErrEmptyBody) {
			t.Errorf("Send(%q) error = %v, want ErrEmptyBody", body, err)
		}
	}
	if hits.Load() != 0 {
		t.Errorf("empty-body sends issued %d network calls, want 0", hits.Load())
	}
}

func TestSendTrimsAndReturnsRecord(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/messages/send" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		var req SendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Content != "hello" {
			t.Errorf("content = %q, want trimmed %q", req.Content, "hello")
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Message{
			ID: 41, SenderID: 1, ReceiverID: req.ReceiverID,
			Content: req.Content,
		})
	}))

	msg, err := c.Send(context.Background(), 2, "  hello  ")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if msg.ID != 41 {
		t.Errorf("store-assigned id = %d, want 41", msg.ID)
	}
}

func TestHistoryDecodesMixedTimestamps(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/messages/chat/7" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":1,"senderId":7,"receiverId":1,"content":"a","timestamp":"2025-03-14T09:00:00","read":true},
			{"id":2,"senderId":1,"receiverId":7,"content":"b","timestamp":[2025,3,14,9,5,0],"read":false}
		]`))
	}))

	msgs, err := c.History(context.Background(), 7)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if !msgs[1].Timestamp.After(msgs[0].Timestamp.Time) {
		t.Errorf("timestamps out of order: %v then %v", msgs[0].Timestamp, msgs[1].Timestamp)
	}
}

func TestMarkReadIdempotent(t *testing.T) {
	var hits atomic.Int32
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/messages/mark-read/7" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))

	if err := c.MarkRead(context.Background(), 7); err != nil {
		t.Fatalf("first MarkRead() error = %v", err)
	}
	if err := c.MarkRead(context.Background(), 7); err != nil {
		t.Fatalf("second MarkRead() error = %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("hits = %d, want 2", hits.Load())
	}
}

func TestUnreadCount(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("5"))
	}))

	n, err := c.UnreadCount(context.Background())
	if err != nil {
		t.Fatalf("UnreadCount() error = %v", err)
	}
	if n != 5 {
		t.Errorf("count = %d, want 5", n)
	}
}

func TestNotificationsDecodeIsReadFlag(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/notifications" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":1,"title":"Booking","message":"confirmed","type":"BOOKING","isRead":true,"createdAt":"2025-03-14T09:00:00"},
			{"id":2,"title":"Payment","message":"received","type":"PAYMENT","isRead":false,"createdAt":[2025,3,14,9,5,0]}
		]`))
	}))

	items, err := c.Notifications(context.Background())
	if err != nil {
		t.Fatalf("Notifications() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d notifications, want 2", len(items))
	}
	if !items[0].Read {
		t.Error("isRead:true decoded as unread")
	}
	if items[1].Read {
		t.Error("isRead:false decoded as read")
	}
}

func TestMarkNotificationReadUsesPut(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The backend routes this acknowledgement as PUT only.
		if r.Method != http.MethodPut || r.URL.Path != "/api/notifications/3/read" {
			t.Errorf("%s %s, want PUT /api/notifications/3/read", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))

	if err := c.MarkNotificationRead(context.Background(), 3); err != nil {
		t.Fatalf("MarkNotificationRead() error = %v", err)
	}
}

func TestServerErrorBecomesStoreError(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := c.History(context.Background(), 1)
	var storeErr *StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("error = %T %v, want StoreError", err, err)
	}
	if storeErr.Status != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", storeErr.Status)
	}
}

func TestLoginSetsToken(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"token":"fresh","user":{"id":1,"email":"a@b.c","fullName":"A","role":"ADMIN"}}`))
		case "/api/messages/unread-count":
			if got := r.Header.Get("Authorization"); got != "Bearer fresh" {
				t.Errorf("Authorization after login = %q, want Bearer fresh", got)
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte("0"))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	}))

	auth, err := c.Login(context.Background(), "a@b.c", "pw")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if auth.User.ID != 1 {
		t.Errorf("user id = %d, want 1", auth.User.ID)
	}
	if _, err := c.UnreadCount(context.Background()); err != nil {
		t.Fatal(err)
	}
}
