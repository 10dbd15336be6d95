// Package tokens estimates token counts for context budgeting.
//
// The estimate uses the ~4 chars/token heuristic. It is not billing-accurate,
// but the assembler only needs a stable, deterministic scheme consistent with
// the configured budget so that repeated assembly of the same history yields
// the same window.
package tokens

import "github.com/trailpost/shopagent/pkg/agent/types"

// turnOverhead covers the role framing each turn carries on the wire.
const turnOverhead = 4

// Counter is a pure, deterministic token estimator.
type Counter struct {
	// CharsPerToken is the divisor for the estimate. Zero means the
	// default of 4.
	CharsPerToken int
}

// NewCounter returns a Counter with the default scheme.
func NewCounter() Counter {
	return Counter{CharsPerToken: 4}
}

// Count estimates tokens in a single text span. Empty text counts as zero.
func (c Counter) Count(text string) int {
	if len(text) == 0 {
		return 0
	}
	cpt := c.CharsPerToken
	if cpt <= 0 {
		cpt = 4
	}
	return (len(text) + cpt - 1) / cpt
}

// CountTurn estimates tokens for one turn including role framing.
func (c Counter) CountTurn(t types.Turn) int {
	return c.Count(t.Content) + turnOverhead
}

// CountTurns sums CountTurn over a slice of turns.
func (c Counter) CountTurns(turns []types.Turn) int {
	total := 0
	for _, t := range turns {
		total += c.CountTurn(t)
	}
	return total
}

// Fits reports whether the combined spans stay within budget.
func (c Counter) Fits(spans []string, budget int) bool {
	total := 0
	for _, s := range spans {
		total += c.Count(s)
	}
	return total <= budget
}
