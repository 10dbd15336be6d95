package tokens

import (
	"strings"
	"testing"

	"github.com/trailpost/shopagent/pkg/agent/types"
)

func TestCount(t *testing.T) {
	c := NewCounter()

	t.Run("empty text is zero", func(t *testing.T) {
		if got := c.Count(""); got != 0 {
			t.Errorf("expected 0, got %d", got)
		}
	})

	t.Run("rounds up to whole tokens", func(t *testing.T) {
		cases := map[string]int{
			"a":      1,
			"abcd":   1,
			"abcde":  2,
			"abcdef": 2,
		}
		for text, want := range cases {
			if got := c.Count(text); got != want {
				t.Errorf("Count(%q) = %d, want %d", text, got, want)
			}
		}
	})

	t.Run("is deterministic", func(t *testing.T) {
		text := strings.Repeat("trail mix ", 50)
		if c.Count(text) != c.Count(text) {
			t.Error("same text produced different counts")
		}
	})

	t.Run("turn count includes role framing", func(t *testing.T) {
		turn := types.Turn{Content: "abcd"}
		if got := c.CountTurn(turn); got != 5 {
			t.Errorf("expected content + overhead = 5, got %d", got)
		}
	})

	t.Run("fits respects the budget boundary", func(t *testing.T) {
		spans := []string{"abcd", "abcd"} // 2 tokens
		if !c.Fits(spans, 2) {
			t.Error("expected spans to fit an exact budget")
		}
		if c.Fits(spans, 1) {
			t.Error("expected spans to exceed a smaller budget")
		}
	})

	t.Run("zero divisor falls back to the default", func(t *testing.T) {
		var zero Counter
		if got := zero.Count("abcdefgh"); got != 2 {
			t.Errorf("expected default scheme, got %d", got)
		}
	})
}
