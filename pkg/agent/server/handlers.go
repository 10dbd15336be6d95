package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/trailpost/shopagent/pkg/agent"
	"github.com/trailpost/shopagent/pkg/shop"
)

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ChatRequest is the API request for chat.
type ChatRequest struct {
	ConversationID string `json:"conversationId,omitempty"`
	UserID         string `json:"userId"`
	Message        string `json:"message"`
}

func decodeChatRequest(w http.ResponseWriter, r *http.Request) (ChatRequest, bool) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return req, false
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return req, false
	}
	return req, true
}

func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeChatRequest(w, r)
	if !ok {
		return
	}

	resp, err := s.agent.Chat(r.Context(), agent.ChatRequest{
		ConversationID: req.ConversationID,
		UserID:         req.UserID,
		Message:        req.Message,
	}, nil)
	if err != nil {
		s.logger.Error("chat failed", "error", err)
		writeError(w, http.StatusInternalServerError, "chat failed")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) chatStreamHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeChatRequest(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// Chat invokes the sink synchronously, so writing from it is safe.
	sink := func(ev agent.Event) {
		if ev.Kind == agent.EventDone {
			// The enriched done payload is written after Chat returns.
			return
		}
		writeSSE(w, flusher, string(ev.Kind), ev)
	}

	resp, err := s.agent.Chat(r.Context(), agent.ChatRequest{
		ConversationID: req.ConversationID,
		UserID:         req.UserID,
		Message:        req.Message,
	}, sink)
	if err != nil {
		s.logger.Error("streaming chat failed", "error", err)
		writeSSE(w, flusher, "error", map[string]string{"error": "chat failed"})
		return
	}

	writeSSE(w, flusher, "done", map[string]any{
		"conversationId": resp.ConversationID,
		"reply":          resp.Reply,
		"state":          resp.State,
		"productRefs":    resp.ProductRefs,
	})
}

func (s *Server) getConversationHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	turns, err := s.agent.Conversation(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(turns) == 0 {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"conversationId": id,
		"turns":          turns,
	})
}

func (s *Server) listProductsHandler(w http.ResponseWriter, r *http.Request) {
	products, err := s.catalog.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (s *Server) getProductHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	p, err := s.catalog.Get(r.Context(), id)
	if errors.Is(err, shop.ErrNotFound) {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) createProductHandler(w http.ResponseWriter, r *http.Request) {
	var p shop.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if p.Name == "" || p.Price <= 0 {
		writeError(w, http.StatusBadRequest, "name and a positive price are required")
		return
	}

	if err := s.catalog.Create(r.Context(), &p); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) getCartHandler(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	items, err := s.cart.Items(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	total := 0.0
	for _, line := range items {
		total += line.Subtotal()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"userId": userID,
		"items":  items,
		"total":  total,
	})
}

// SearchRequest is the API request for direct semantic search.
type SearchRequest struct {
	Query    string   `json:"query"`
	MaxPrice *float64 `json:"maxPrice,omitempty"`
	Category string   `json:"category,omitempty"`
	TopK     int      `json:"topK,omitempty"`
}

func (s *Server) searchHandler(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	products, err := s.searcher.Search(r.Context(), shop.SearchQuery{
		Text:        req.Query,
		MaxPrice:    req.MaxPrice,
		Category:    req.Category,
		InStockOnly: true,
		TopK:        req.TopK,
	})
	if err != nil {
		s.logger.Error("search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, event string, data any) {
	dataBytes, _ := json.Marshal(data)
	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", dataBytes)
	flusher.Flush()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
