// Package contextwindow builds the bounded message sequence sent to the
// reasoning engine each turn.
//
// The window holds the system block, the tool catalog, a summary of turns
// too old to fit, and as many recent turns verbatim as the budget allows.
// Assembly is idempotent: with no new turns, repeated calls reuse the stored
// summary instead of re-summarizing the same stale window.
package contextwindow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/trailpost/shopagent/pkg/agent/summarize"
	"github.com/trailpost/shopagent/pkg/agent/tokens"
	"github.com/trailpost/shopagent/pkg/agent/turnstore"
	"github.com/trailpost/shopagent/pkg/agent/types"
)

// Config bounds the assembled window.
type Config struct {
	// Budget is the token ceiling for the whole window, including the
	// system block and tool catalog.
	Budget int

	// MinRecentTurns is the verbatim floor beyond the pending user turn:
	// the most recent assistant/user exchange stays verbatim even when
	// the budget is blown. The summary is truncated before these are
	// dropped.
	MinRecentTurns int
}

// DefaultConfig returns the standard window bounds.
func DefaultConfig() Config {
	return Config{
		Budget:         8000,
		MinRecentTurns: 2,
	}
}

// Window is the ephemeral, per-turn input for one reasoning call. It is
// computed fresh each turn and never persisted; the last element of Recent
// is the pending user turn.
type Window struct {
	System      string
	ToolCatalog string
	Summary     string
	Recent      []types.Turn

	// Degraded marks a window assembled without summarizer help: stale
	// turns were dropped rather than compressed.
	Degraded bool
}

// Assembler builds Windows from the turn store under a token budget.
type Assembler struct {
	store      turnstore.Store
	summarizer summarize.Summarizer
	counter    tokens.Counter
	cfg        Config
	logger     *slog.Logger
}

// New creates an assembler.
func New(store turnstore.Store, summarizer summarize.Summarizer, counter tokens.Counter, cfg Config, logger *slog.Logger) *Assembler {
	if cfg.Budget <= 0 {
		cfg.Budget = DefaultConfig().Budget
	}
	if cfg.MinRecentTurns <= 0 {
		cfg.MinRecentTurns = DefaultConfig().MinRecentTurns
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		store:      store,
		summarizer: summarizer,
		counter:    counter,
		cfg:        cfg,
		logger:     logger,
	}
}

// Assemble builds the window for a conversation. The pending user turn must
// already be appended to the store; it is always included verbatim.
func (a *Assembler) Assemble(ctx context.Context, conversationID, system, toolCatalog string) (*Window, error) {
	turns, err := a.store.Load(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("loading turns: %w", err)
	}
	if len(turns) == 0 {
		return nil, errors.New("conversation has no turns")
	}

	overhead := a.counter.Count(system) + a.counter.Count(toolCatalog)
	remaining := a.cfg.Budget - overhead

	recent, stale := a.split(turns, remaining)

	win := &Window{
		System:      system,
		ToolCatalog: toolCatalog,
		Recent:      recent,
	}

	if len(stale) == 0 {
		return win, nil
	}

	stored, err := a.store.Summary(ctx, conversationID)
	if err != nil {
		a.logger.Warn("loading summary failed", "conversation", conversationID, "error", err)
		stored = turnstore.Summary{}
	}

	cutoff := stale[len(stale)-1].Seq

	switch {
	case stored.Text != "" && stored.UpToSeq >= cutoff:
		// Cutoff has not advanced (or a prior shrink pass already
		// summarized further): reuse the stored digest and trim any
		// recent turns it already covers.
		win.Summary = stored.Text
		for len(win.Recent) > 0 && win.Recent[0].Seq <= stored.UpToSeq {
			win.Recent = win.Recent[1:]
		}

	default:
		newly := turnsAfter(stale, stored.UpToSeq)
		text, err := a.summarizer.Summarize(ctx, stored.Text, newly)
		if err != nil {
			// Degraded mode: drop the newly stale turns oldest-first
			// rather than blocking the turn.
			a.logger.Warn("summarizer failed; dropping stale turns",
				"conversation", conversationID,
				"dropped", len(newly),
				"error", err,
			)
			win.Summary = stored.Text
			win.Degraded = true
		} else {
			win.Summary = text
			a.saveSummary(ctx, conversationID, text, cutoff)
		}
	}

	a.shrink(ctx, conversationID, win, remaining)
	return win, nil
}

// split walks turns newest to oldest, keeping as many verbatim as fit in
// budget. The verbatim floor (pending turn plus the last exchange) is kept
// even when it exceeds the budget; the caller compensates by truncating the
// summary.
func (a *Assembler) split(turns []types.Turn, budget int) (recent, stale []types.Turn) {
	floor := a.cfg.MinRecentTurns + 1
	if floor > len(turns) {
		floor = len(turns)
	}

	used := 0
	cut := len(turns)
	for i := len(turns) - 1; i >= 0; i-- {
		cost := a.counter.CountTurn(turns[i])
		included := len(turns) - cut
		if included >= floor && used+cost > budget {
			break
		}
		used += cost
		cut = i
	}

	return turns[cut:], turns[:cut]
}

// shrink enforces the budget after the summary is known: first by evicting
// more recent turns into the summary, then, at the floor, by truncating the
// summary text itself rather than dropping the most recent turns.
func (a *Assembler) shrink(ctx context.Context, conversationID string, win *Window, budget int) {
	floor := a.cfg.MinRecentTurns + 1

	summaryCost := a.counter.Count(win.Summary)
	recentCost := a.counter.CountTurns(win.Recent)
	if summaryCost+recentCost <= budget {
		return
	}

	evict := 0
	for summaryCost+a.counter.CountTurns(win.Recent[evict:]) > budget && len(win.Recent)-evict > floor {
		evict++
	}

	if evict > 0 {
		evicted := win.Recent[:evict]
		win.Recent = win.Recent[evict:]

		text, err := a.summarizer.Summarize(ctx, win.Summary, evicted)
		if err != nil {
			a.logger.Warn("summarizer failed during shrink; dropping turns",
				"conversation", conversationID,
				"dropped", len(evicted),
				"error", err,
			)
			win.Degraded = true
		} else {
			win.Summary = text
			a.saveSummary(ctx, conversationID, text, evicted[len(evicted)-1].Seq)
		}
		summaryCost = a.counter.Count(win.Summary)
	}

	recentCost = a.counter.CountTurns(win.Recent)
	if summaryCost+recentCost > budget {
		win.Summary = a.truncate(win.Summary, budget-recentCost)
	}
}

// truncate cuts the summary text down to the allowed token count, keeping
// the head. The window's summary copy only; the stored digest stays intact.
func (a *Assembler) truncate(text string, allowedTokens int) string {
	if allowedTokens <= 0 {
		return ""
	}
	if a.counter.Count(text) <= allowedTokens {
		return text
	}

	cpt := a.counter.CharsPerToken
	if cpt <= 0 {
		cpt = 4
	}
	limit := allowedTokens * cpt
	if limit >= len(text) {
		return text
	}
	// Back off to a rune boundary.
	for limit > 0 && text[limit]&0xC0 == 0x80 {
		limit--
	}
	return text[:limit]
}

func (a *Assembler) saveSummary(ctx context.Context, conversationID, text string, upToSeq int64) {
	err := a.store.SaveSummary(ctx, conversationID, turnstore.Summary{
		Text:      text,
		UpToSeq:   upToSeq,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		a.logger.Warn("saving summary failed", "conversation", conversationID, "error", err)
	}
}

func turnsAfter(turns []types.Turn, seq int64) []types.Turn {
	for i, t := range turns {
		if t.Seq > seq {
			return turns[i:]
		}
	}
	return nil
}
