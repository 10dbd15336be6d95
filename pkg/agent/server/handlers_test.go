package server

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/trailpost/shopagent/pkg/agent"
	"github.com/trailpost/shopagent/pkg/agent/llm"
	"github.com/trailpost/shopagent/pkg/agent/tools"
	"github.com/trailpost/shopagent/pkg/agent/turnstore"
	"github.com/trailpost/shopagent/pkg/agent/types"
	"github.com/trailpost/shopagent/pkg/shop"
	"github.com/trailpost/shopagent/pkg/shop/cart"
	"github.com/trailpost/shopagent/pkg/shop/catalog"
)

type fixedProvider struct {
	reply string
}

func (p *fixedProvider) Chat(ctx context.Context, req llm.Request) (*llm.Response, error) {
	return &llm.Response{Content: p.reply, StopReason: llm.StopReasonEnd}, nil
}

func (p *fixedProvider) ChatStream(ctx context.Context, req llm.Request, onDelta func(string)) (*llm.Response, error) {
	if onDelta != nil {
		onDelta(p.reply)
	}
	return &llm.Response{Content: p.reply, StopReason: llm.StopReasonEnd}, nil
}

type passSummarizer struct{}

func (passSummarizer) Summarize(ctx context.Context, previous string, turns []types.Turn) (string, error) {
	return previous, nil
}

type listSearcher struct{ products []shop.Product }

func (s *listSearcher) Search(ctx context.Context, q shop.SearchQuery) ([]shop.Product, error) {
	return s.products, nil
}

func newTestServer(t *testing.T, reply string) (*Server, *catalog.MemoryStore, *cart.MemoryStore) {
	t.Helper()

	cat := catalog.NewMemoryStore()
	p := shop.Product{Name: "Trail Boots", Description: "Sturdy.", Price: 120, Category: "footwear", Brand: "Ridge", Stock: 5}
	if err := cat.Create(context.Background(), &p); err != nil {
		t.Fatalf("seed: %v", err)
	}
	crt := cart.NewMemoryStore(cat)

	ag := agent.New(
		&fixedProvider{reply: reply},
		turnstore.NewMemoryStore(),
		tools.NewRegistry(),
		passSummarizer{},
		agent.WithLogger(slog.New(slog.DiscardHandler)),
	)

	searcher := &listSearcher{products: []shop.Product{p}}
	return New(ag, cat, crt, searcher, Config{}, slog.New(slog.DiscardHandler)), cat, crt
}

func TestHandlers(t *testing.T) {
	t.Run("health", func(t *testing.T) {
		srv, _, _ := newTestServer(t, "hi")

		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("chat returns the reply and conversation id", func(t *testing.T) {
		srv, _, _ := newTestServer(t, "Hello, happy hiking!")

		body := strings.NewReader(`{"userId":"u1","message":"hi"}`)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/chat", body))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var resp agent.ChatResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Reply != "Hello, happy hiking!" || resp.ConversationID == "" {
			t.Errorf("unexpected response: %+v", resp)
		}
	})

	t.Run("chat rejects missing fields", func(t *testing.T) {
		srv, _, _ := newTestServer(t, "hi")

		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"userId":"u1"}`)))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for missing message, got %d", rec.Code)
		}

		rec = httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"message":"hi"}`)))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for missing userId, got %d", rec.Code)
		}
	})

	t.Run("stream emits chunk and done events", func(t *testing.T) {
		srv, _, _ := newTestServer(t, "Streamed reply")

		body := strings.NewReader(`{"userId":"u1","message":"hi"}`)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/chat/stream", body))

		if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
			t.Fatalf("expected SSE content type, got %q", ct)
		}

		var events []string
		scanner := bufio.NewScanner(rec.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, "event: ") {
				events = append(events, strings.TrimPrefix(line, "event: "))
			}
		}

		if len(events) == 0 {
			t.Fatalf("no SSE events in body: %q", rec.Body.String())
		}

		hasChunk, hasDone := false, false
		for _, ev := range events {
			if ev == "chunk" {
				hasChunk = true
			}
			if ev == "done" {
				hasDone = true
			}
		}
		if !hasChunk || !hasDone {
			t.Errorf("missing chunk/done events: %v", events)
		}
		if events[len(events)-1] != "done" {
			t.Errorf("done must be the final event: %v", events)
		}
	})

	t.Run("unknown conversation is 404", func(t *testing.T) {
		srv, _, _ := newTestServer(t, "hi")

		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/conversations/nope", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("product endpoints", func(t *testing.T) {
		srv, _, _ := newTestServer(t, "hi")

		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products/1", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		rec = httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products/99", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}

		body := strings.NewReader(`{"name":"Headlamp","description":"Bright","price":35.5,"category":"lighting","brand":"Lumen","stock":10}`)
		rec = httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/products", body))
		if rec.Code != http.StatusCreated {
			t.Errorf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("cart endpoint totals the lines", func(t *testing.T) {
		srv, _, crt := newTestServer(t, "hi")
		_ = crt.Add(context.Background(), "u1", 1, 2)

		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cart/u1", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		var resp struct {
			Items []shop.CartLine `json:"items"`
			Total float64         `json:"total"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(resp.Items) != 1 || resp.Total != 240 {
			t.Errorf("unexpected cart: %+v", resp)
		}
	})

	t.Run("search endpoint requires a query", func(t *testing.T) {
		srv, _, _ := newTestServer(t, "hi")

		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(`{}`)))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}

		rec = httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(`{"query":"boots"}`)))
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})
}
