package contextwindow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/trailpost/shopagent/pkg/agent/tokens"
	"github.com/trailpost/shopagent/pkg/agent/turnstore"
	"github.com/trailpost/shopagent/pkg/agent/types"
)

// stubSummarizer records calls and returns a deterministic digest.
type stubSummarizer struct {
	calls       int
	failAlways  bool
	lastTurnLen int
}

func (s *stubSummarizer) Summarize(ctx context.Context, previous string, turns []types.Turn) (string, error) {
	s.calls++
	s.lastTurnLen = len(turns)
	if s.failAlways {
		return "", errors.New("summarizer unavailable")
	}
	last := int64(0)
	if len(turns) > 0 {
		last = turns[len(turns)-1].Seq
	}
	return fmt.Sprintf("digest through seq %d (prev %d chars)", last, len(previous)), nil
}

func seedTurns(t *testing.T, store turnstore.Store, conversationID string, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		role := types.RoleUser
		if i%2 == 1 {
			role = types.RoleAssistant
		}
		content := fmt.Sprintf("turn %03d %s", i+1, strings.Repeat("gear talk ", 9))
		if _, err := store.Append(ctx, conversationID, role, content); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
}

func windowTokens(c tokens.Counter, w *Window) int {
	return c.Count(w.System) + c.Count(w.ToolCatalog) + c.Count(w.Summary) + c.CountTurns(w.Recent)
}

func TestAssemble(t *testing.T) {
	ctx := context.Background()
	counter := tokens.NewCounter()
	logger := slog.New(slog.DiscardHandler)

	t.Run("short history stays verbatim with no summary", func(t *testing.T) {
		store := turnstore.NewMemoryStore()
		sum := &stubSummarizer{}
		seedTurns(t, store, "c1", 4)

		a := New(store, sum, counter, Config{Budget: 8000, MinRecentTurns: 2}, logger)
		win, err := a.Assemble(ctx, "c1", "system", "catalog")
		if err != nil {
			t.Fatalf("assemble: %v", err)
		}

		if len(win.Recent) != 4 {
			t.Errorf("expected 4 verbatim turns, got %d", len(win.Recent))
		}
		if win.Summary != "" {
			t.Errorf("expected empty summary, got %q", win.Summary)
		}
		if sum.calls != 0 {
			t.Errorf("summarizer should not run under budget, ran %d times", sum.calls)
		}
	})

	t.Run("long history is bounded and summarized", func(t *testing.T) {
		store := turnstore.NewMemoryStore()
		sum := &stubSummarizer{}
		seedTurns(t, store, "c2", 50)

		a := New(store, sum, counter, Config{Budget: 400, MinRecentTurns: 2}, logger)
		win, err := a.Assemble(ctx, "c2", "system", "catalog")
		if err != nil {
			t.Fatalf("assemble: %v", err)
		}

		if win.Summary == "" {
			t.Error("expected non-empty summary block")
		}
		if got := windowTokens(counter, win); got > 400 {
			t.Errorf("window exceeds budget: %d > 400", got)
		}
		if len(win.Recent) == 0 {
			t.Fatal("recent window is empty")
		}
		last := win.Recent[len(win.Recent)-1]
		if last.Seq != 50 {
			t.Errorf("most recent turn missing: last seq %d", last.Seq)
		}
	})

	t.Run("assembly is idempotent without new turns", func(t *testing.T) {
		store := turnstore.NewMemoryStore()
		sum := &stubSummarizer{}
		seedTurns(t, store, "c3", 40)

		a := New(store, sum, counter, Config{Budget: 400, MinRecentTurns: 2}, logger)

		first, err := a.Assemble(ctx, "c3", "system", "catalog")
		if err != nil {
			t.Fatalf("first assemble: %v", err)
		}
		callsAfterFirst := sum.calls

		second, err := a.Assemble(ctx, "c3", "system", "catalog")
		if err != nil {
			t.Fatalf("second assemble: %v", err)
		}

		if sum.calls != callsAfterFirst {
			t.Errorf("summarizer re-ran on unchanged history: %d -> %d", callsAfterFirst, sum.calls)
		}
		if first.Summary != second.Summary {
			t.Errorf("summary drifted: %q vs %q", first.Summary, second.Summary)
		}
		if len(first.Recent) != len(second.Recent) {
			t.Errorf("recent window drifted: %d vs %d", len(first.Recent), len(second.Recent))
		}
	})

	t.Run("summarizer failure degrades instead of blocking", func(t *testing.T) {
		store := turnstore.NewMemoryStore()
		sum := &stubSummarizer{failAlways: true}
		seedTurns(t, store, "c4", 50)

		a := New(store, sum, counter, Config{Budget: 400, MinRecentTurns: 2}, logger)
		win, err := a.Assemble(ctx, "c4", "system", "catalog")
		if err != nil {
			t.Fatalf("assemble should not fail: %v", err)
		}

		if !win.Degraded {
			t.Error("expected degraded window")
		}
		if len(win.Recent) == 0 || win.Recent[len(win.Recent)-1].Seq != 50 {
			t.Error("most recent turn must survive degradation")
		}
	})

	t.Run("verbatim floor survives oversized turns", func(t *testing.T) {
		store := turnstore.NewMemoryStore()
		sum := &stubSummarizer{}
		// A handful of big turns so even the floor uses most of the budget.
		for i := 0; i < 8; i++ {
			store.Append(ctx, "c5", types.RoleUser, strings.Repeat("x", 400))
		}

		a := New(store, sum, counter, Config{Budget: 330, MinRecentTurns: 2}, logger)
		win, err := a.Assemble(ctx, "c5", "sys", "cat")
		if err != nil {
			t.Fatalf("assemble: %v", err)
		}

		if len(win.Recent) < 3 {
			t.Errorf("verbatim floor violated: %d recent turns", len(win.Recent))
		}
		if win.Recent[len(win.Recent)-1].Seq != 8 {
			t.Error("pending turn dropped")
		}
	})

	t.Run("fails when the conversation has no turns", func(t *testing.T) {
		store := turnstore.NewMemoryStore()
		a := New(store, &stubSummarizer{}, counter, DefaultConfig(), logger)

		if _, err := a.Assemble(ctx, "empty", "sys", "cat"); err == nil {
			t.Error("expected error for empty conversation")
		}
	})
}
