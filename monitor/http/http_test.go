package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rbaliyan/observable/monitor"
	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

func newStore(t *testing.T) *monitor.MemoryStore {
	t.Helper()
	ctx := context.Background()
	store := monitor.NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	now := time.Now()
	for i := 0; i < 5; i++ {
		store.Record(ctx, &monitor.Entry{
			FiringID:       "firing-" + string(rune('1'+i)),
			SubscriptionID: "sub-1",
			EventName:      "orderPlaced",
			Priority:       "a",
			Status:         monitor.StatusCompleted,
			StartedAt:      now.Add(time.Duration(i) * time.Second),
		})
	}
	store.Record(ctx, &monitor.Entry{
		FiringID:       "firing-1",
		SubscriptionID: "sub-2",
		EventName:      "orderPlaced",
		Status:         monitor.StatusPending,
		StartedAt:      now.Add(-48 * time.Hour),
	})
	return store
}

func serve(h http.Handler, method, target, accept string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHandlerList(t *testing.T) {
	h := New(newStore(t))

	t.Run("GET /v1/monitor/entries lists all entries", func(t *testing.T) {
		w := serve(h, http.MethodGet, "/v1/monitor/entries", "")
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		if ct := w.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %s", ct)
		}

		var page monitor.Page
		if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
		if len(page.Entries) != 6 {
			t.Errorf("expected 6 entries, got %d", len(page.Entries))
		}
	})

	t.Run("query filter", func(t *testing.T) {
		w := serve(h, http.MethodGet, "/v1/monitor/entries?status=pending", "")
		var page monitor.Page
		json.Unmarshal(w.Body.Bytes(), &page)
		if len(page.Entries) != 1 || page.Entries[0].SubscriptionID != "sub-2" {
			t.Errorf("unexpected entries %+v", page.Entries)
		}
	})

	t.Run("pagination", func(t *testing.T) {
		w := serve(h, http.MethodGet, "/v1/monitor/entries?limit=4", "")
		var page monitor.Page
		json.Unmarshal(w.Body.Bytes(), &page)
		if len(page.Entries) != 4 || !page.HasMore || page.NextCursor == "" {
			t.Fatalf("unexpected first page %+v", page)
		}

		w = serve(h, http.MethodGet, "/v1/monitor/entries?limit=4&cursor="+page.NextCursor, "")
		var next monitor.Page
		json.Unmarshal(w.Body.Bytes(), &next)
		if len(next.Entries) != 2 || next.HasMore {
			t.Errorf("unexpected second page %+v", next)
		}
	})

	t.Run("invalid filter", func(t *testing.T) {
		w := serve(h, http.MethodGet, "/v1/monitor/entries?limit=many", "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", w.Code)
		}
		var resp errorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || !strings.Contains(resp.Error, "limit") {
			t.Errorf("unexpected error body %q", w.Body.String())
		}
	})
}

func TestHandlerGet(t *testing.T) {
	h := New(newStore(t))

	t.Run("entries of one firing", func(t *testing.T) {
		w := serve(h, http.MethodGet, "/v1/monitor/entries/firing-1", "")
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		var resp getByFiringIDResponse
		json.Unmarshal(w.Body.Bytes(), &resp)
		if len(resp.Entries) != 2 {
			t.Errorf("expected 2 entries, got %d", len(resp.Entries))
		}
	})

	t.Run("one entry", func(t *testing.T) {
		w := serve(h, http.MethodGet, "/v1/monitor/entries/firing-2/sub-1", "")
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		var resp getResponse
		json.Unmarshal(w.Body.Bytes(), &resp)
		if resp.Entry == nil || resp.Entry.FiringID != "firing-2" {
			t.Errorf("unexpected entry %+v", resp.Entry)
		}
	})

	t.Run("missing entry", func(t *testing.T) {
		w := serve(h, http.MethodGet, "/v1/monitor/entries/firing-9/sub-1", "")
		if w.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", w.Code)
		}
	})

	t.Run("count", func(t *testing.T) {
		w := serve(h, http.MethodGet, "/v1/monitor/entries/count?status=completed", "")
		var resp countResponse
		json.Unmarshal(w.Body.Bytes(), &resp)
		if resp.Count != 5 {
			t.Errorf("expected 5, got %d", resp.Count)
		}
	})

	t.Run("method not allowed", func(t *testing.T) {
		w := serve(h, http.MethodPost, "/v1/monitor/entries", "")
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", w.Code)
		}
	})
}

func TestHandlerDelete(t *testing.T) {
	store := newStore(t)
	h := New(store)

	w := serve(h, http.MethodDelete, "/v1/monitor/entries?older_than=1h", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without force, got %d", w.Code)
	}

	w = serve(h, http.MethodDelete, "/v1/monitor/entries?older_than=-1h&force=true", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for negative age, got %d", w.Code)
	}

	w = serve(h, http.MethodDelete, "/v1/monitor/entries", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp deleteResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Deleted != 1 || store.Len() != 5 {
		t.Errorf("expected 1 deleted and 5 left, got %d and %d", resp.Deleted, store.Len())
	}
}

func TestHandlerContentNegotiation(t *testing.T) {
	h := New(newStore(t))

	t.Run("msgpack", func(t *testing.T) {
		w := serve(h, http.MethodGet, "/v1/monitor/entries/count", "application/msgpack")
		if ct := w.Header().Get("Content-Type"); ct != "application/msgpack" {
			t.Fatalf("expected application/msgpack, got %s", ct)
		}
		var resp countResponse
		if err := msgpack.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal: %v", err)
		}
		if resp.Count != 6 {
			t.Errorf("expected 6, got %d", resp.Count)
		}
	})

	t.Run("protobuf", func(t *testing.T) {
		w := serve(h, http.MethodGet, "/v1/monitor/entries/firing-2/sub-1", "application/protobuf")
		if ct := w.Header().Get("Content-Type"); ct != "application/protobuf" {
			t.Fatalf("expected application/protobuf, got %s", ct)
		}
		var st structpb.Struct
		if err := proto.Unmarshal(w.Body.Bytes(), &st); err != nil {
			t.Fatalf("failed to unmarshal: %v", err)
		}
		entry := st.Fields["entry"].GetStructValue()
		if entry == nil || entry.Fields["firing_id"].GetStringValue() != "firing-2" {
			t.Errorf("unexpected struct %v", st.AsMap())
		}
	})

	t.Run("unknown falls back to json", func(t *testing.T) {
		w := serve(h, http.MethodGet, "/v1/monitor/entries/count", "text/html, */*;q=0.8")
		if ct := w.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %s", ct)
		}
	})

	t.Run("first known type wins", func(t *testing.T) {
		w := serve(h, http.MethodGet, "/v1/monitor/entries/count", "text/html, application/msgpack, application/json")
		if ct := w.Header().Get("Content-Type"); ct != "application/msgpack" {
			t.Errorf("expected application/msgpack, got %s", ct)
		}
	})
}

func TestHandlerRateLimit(t *testing.T) {
	h := New(newStore(t), WithRateLimit(0.001, 2))

	for i := 0; i < 2; i++ {
		if w := serve(h, http.MethodGet, "/v1/monitor/entries/count", ""); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
	}
	w := serve(h, http.MethodGet, "/v1/monitor/entries/count", "")
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", w.Code)
	}
}

func TestHandlerClientRateLimit(t *testing.T) {
	h := New(newStore(t), WithClientRateLimit(0.001, 1))

	from := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/v1/monitor/entries/count", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w.Code
	}

	if code := from("10.0.0.1:5000"); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if code := from("10.0.0.1:5001"); code != http.StatusTooManyRequests {
		t.Errorf("expected 429 for the same client on another port, got %d", code)
	}
	if code := from("10.0.0.2:5000"); code != http.StatusOK {
		t.Errorf("expected 200 for another client, got %d", code)
	}
	if n := h.perClient.Len(); n != 2 {
		t.Errorf("expected 2 client buckets, got %d", n)
	}
}
