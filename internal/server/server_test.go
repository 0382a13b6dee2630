package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := Config{
		DataDir: t.TempDir(),
		APIKeys: map[string]string{"test-key": "tester"},
	}
	return NewServer(cfg)
}

func authedRequest(method, path string, body []byte) *http.Request {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer test-key")
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHealthzNoAuth(t *testing.T) {
	s := newTestServer(t)
	w := httptest.NewRecorder()
	s.routes().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestItemsRequiresAuth(t *testing.T) {
	s := newTestServer(t)
	w := httptest.NewRecorder()
	s.routes().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestItemsRejectsBadKey(t *testing.T) {
	s := newTestServer(t)
	w := httptest.NewRecorder()
	req := authedRequest(http.MethodGet, "/items", nil)
	req.Header.Set("Authorization", "Bearer wrong-key")
	s.routes().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestPushThenGetRoundTrips(t *testing.T) {
	s := newTestServer(t)
	routes := s.routes()

	body, _ := json.Marshal(ClientItem{Type: "url", Content: "https://a.test", Tags: []string{"x", "y"}, SyncID: "client-1"})
	w := httptest.NewRecorder()
	routes.ServeHTTP(w, authedRequest(http.MethodPost, "/items", body))
	if w.Code != http.StatusOK {
		t.Fatalf("push status = %d, body = %s", w.Code, w.Body.String())
	}
	var pushed pushResponse
	if err := json.Unmarshal(w.Body.Bytes(), &pushed); err != nil {
		t.Fatalf("unmarshal push response: %v", err)
	}
	if !pushed.Created || pushed.ID == "" {
		t.Fatalf("push response = %+v, want Created=true and non-empty ID", pushed)
	}

	w = httptest.NewRecorder()
	routes.ServeHTTP(w, authedRequest(http.MethodGet, "/items", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var list itemsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("unmarshal items response: %v", err)
	}
	if len(list.Items) != 1 {
		t.Fatalf("got %d items, want 1", len(list.Items))
	}
	got := list.Items[0]
	if got.ID != pushed.ID || got.Content == nil || *got.Content != "https://a.test" {
		t.Errorf("item = %+v, want id=%s content=https://a.test", got, pushed.ID)
	}
	if len(got.Tags) != 2 {
		t.Errorf("tags = %v, want 2 tags", got.Tags)
	}
}

func TestRepushSameSyncIDUpdatesInPlace(t *testing.T) {
	s := newTestServer(t)
	routes := s.routes()

	body, _ := json.Marshal(ClientItem{Type: "text", Content: "v1", SyncID: "client-1"})
	w := httptest.NewRecorder()
	routes.ServeHTTP(w, authedRequest(http.MethodPost, "/items", body))
	var first pushResponse
	json.Unmarshal(w.Body.Bytes(), &first)

	body2, _ := json.Marshal(ClientItem{Type: "text", Content: "v2", SyncID: "client-1"})
	w = httptest.NewRecorder()
	routes.ServeHTTP(w, authedRequest(http.MethodPost, "/items", body2))
	var second pushResponse
	json.Unmarshal(w.Body.Bytes(), &second)

	if second.Created {
		t.Error("second push Created = true, want false (update in place)")
	}
	if second.ID != first.ID {
		t.Errorf("second.ID = %q, want %q (same server item)", second.ID, first.ID)
	}

	w = httptest.NewRecorder()
	routes.ServeHTTP(w, authedRequest(http.MethodGet, "/items", nil))
	var list itemsResponse
	json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.Items) != 1 {
		t.Fatalf("got %d items, want 1 (no duplicate on repush)", len(list.Items))
	}
	if *list.Items[0].Content != "v2" {
		t.Errorf("content = %q, want v2", *list.Items[0].Content)
	}
	if list.Items[0].UpdatedAt == list.Items[0].CreatedAt {
		t.Errorf("updated_at = %q, want it to advance past created_at %q on re-push", list.Items[0].UpdatedAt, list.Items[0].CreatedAt)
	}
}

func TestPushTagsetDropsContent(t *testing.T) {
	s := newTestServer(t)
	routes := s.routes()

	body, _ := json.Marshal(ClientItem{Type: "tagset", Content: "should be dropped", Tags: []string{"inbox"}, SyncID: "c1"})
	w := httptest.NewRecorder()
	routes.ServeHTTP(w, authedRequest(http.MethodPost, "/items", body))
	if w.Code != http.StatusOK {
		t.Fatalf("push status = %d, body = %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	routes.ServeHTTP(w, authedRequest(http.MethodGet, "/items", nil))
	var list itemsResponse
	json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.Items) != 1 {
		t.Fatalf("got %d items, want 1", len(list.Items))
	}
	if list.Items[0].Content != nil {
		t.Errorf("tagset item content = %v, want nil (absent)", *list.Items[0].Content)
	}
}

func TestGetItemsSinceFiltersByTimestamp(t *testing.T) {
	s := newTestServer(t)
	routes := s.routes()

	body, _ := json.Marshal(ClientItem{Type: "text", Content: "old", SyncID: "c1"})
	w := httptest.NewRecorder()
	routes.ServeHTTP(w, authedRequest(http.MethodPost, "/items", body))

	w = httptest.NewRecorder()
	routes.ServeHTTP(w, authedRequest(http.MethodGet, "/items/since/2099-01-01T00:00:00Z", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var list itemsResponse
	json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.Items) != 0 {
		t.Errorf("got %d items for a future cursor, want 0", len(list.Items))
	}
}

func TestGetItemsSinceRejectsBadTimestamp(t *testing.T) {
	s := newTestServer(t)
	w := httptest.NewRecorder()
	s.routes().ServeHTTP(w, authedRequest(http.MethodGet, "/items/since/not-a-timestamp", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestPushRejectsInvalidType(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(ClientItem{Type: "bogus", Content: "x"})
	w := httptest.NewRecorder()
	s.routes().ServeHTTP(w, authedRequest(http.MethodPost, "/items", body))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestVersionMismatchRejected(t *testing.T) {
	s := newTestServer(t)
	req := authedRequest(http.MethodGet, "/items", nil)
	req.Header.Set("X-Peek-Protocol-Version", "99")
	w := httptest.NewRecorder()
	s.routes().ServeHTTP(w, req)
	if w.Code != http.StatusUpgradeRequired {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUpgradeRequired)
	}
}

func TestMissingVersionHeadersTolerated(t *testing.T) {
	s := newTestServer(t)
	w := httptest.NewRecorder()
	s.routes().ServeHTTP(w, authedRequest(http.MethodGet, "/items", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (no version headers should be tolerated)", w.Code)
	}
}

func TestResponsesCarryVersionHeaders(t *testing.T) {
	s := newTestServer(t)
	w := httptest.NewRecorder()
	s.routes().ServeHTTP(w, authedRequest(http.MethodGet, "/items", nil))
	if w.Header().Get("X-Peek-Datastore-Version") == "" {
		t.Error("response missing X-Peek-Datastore-Version header")
	}
	if w.Header().Get("X-Peek-Protocol-Version") == "" {
		t.Error("response missing X-Peek-Protocol-Version header")
	}
}

func TestProfilesAreIsolated(t *testing.T) {
	s := newTestServer(t)
	routes := s.routes()

	body, _ := json.Marshal(ClientItem{Type: "text", Content: "alice item", SyncID: "c1"})
	w := httptest.NewRecorder()
	routes.ServeHTTP(w, authedRequest(http.MethodPost, "/items?profile=alice", body))
	if w.Code != http.StatusOK {
		t.Fatalf("push status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	routes.ServeHTTP(w, authedRequest(http.MethodGet, "/items?profile=bob", nil))
	var bobList itemsResponse
	json.Unmarshal(w.Body.Bytes(), &bobList)
	if len(bobList.Items) != 0 {
		t.Errorf("bob's profile has %d items, want 0 (isolated from alice)", len(bobList.Items))
	}

	w = httptest.NewRecorder()
	routes.ServeHTTP(w, authedRequest(http.MethodGet, "/items?profile=alice", nil))
	var aliceList itemsResponse
	json.Unmarshal(w.Body.Bytes(), &aliceList)
	if len(aliceList.Items) != 1 {
		t.Errorf("alice's profile has %d items, want 1", len(aliceList.Items))
	}
}
