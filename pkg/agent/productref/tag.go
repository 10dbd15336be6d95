// Package productref implements the textual convention binding a product
// mention to its stable identifier: `[ID:12] TrailRunner X — $89.99`.
//
// Tool outputs and assistant replies both carry these tags so that later
// turns ("add the cheaper one") can resolve references without re-searching.
package productref

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Ref is a decoded product reference.
type Ref struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// tagPattern matches one reference tag. The name runs up to the em dash
// separator; the price is captured with its decimals.
var tagPattern = regexp.MustCompile(`\[ID:(\d+)\]\s*([^—\n\[]+?)\s*—\s*\$(\d+(?:\.\d+)?)`)

// Encode formats a reference with a fixed two-decimal price so that
// Decode(Encode(r)) round-trips.
func Encode(r Ref) string {
	return fmt.Sprintf("[ID:%d] %s — $%.2f", r.ID, r.Name, r.Price)
}

// Decode scans free text for reference tags. The scan is stateless and
// tolerant: zero, one, or many tags may appear, surrounded by arbitrary
// prose. Malformed fragments are skipped.
func Decode(text string) []Ref {
	matches := tagPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	refs := make([]Ref, 0, len(matches))
	for _, m := range matches {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		price, err := strconv.ParseFloat(m[3], 64)
		if err != nil {
			continue
		}
		refs = append(refs, Ref{
			ID:    id,
			Name:  strings.TrimSpace(m[2]),
			Price: price,
		})
	}
	return refs
}

// Contains reports whether the text carries at least one reference tag.
func Contains(text string) bool {
	return tagPattern.MatchString(text)
}
