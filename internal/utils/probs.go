package utils

import (
	"fmt"
	"math"
	"sort"
)

// LabelProb is one entry of a probability distribution.
type LabelProb struct {
	Label string  `json:"label"`
	P     float64 `json:"p"`
}

// SortProbs orders a label->probability map by descending probability. Ties
// are broken by label so the output is stable. NaN values sort last.
func SortProbs(probs map[string]float64) []LabelProb {
	out := make([]LabelProb, 0, len(probs))
	for label, p := range probs {
		out = append(out, LabelProb{Label: label, P: p})
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := out[i].P, out[j].P
		switch {
		case math.IsNaN(pi) != math.IsNaN(pj):
			return !math.IsNaN(pi)
		case pi != pj && !math.IsNaN(pi):
			return pi > pj
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// TopK returns at most k entries of probs, highest first. k <= 0 returns all.
func TopK(probs map[string]float64, k int) []LabelProb {
	sorted := SortProbs(probs)
	if k > 0 && len(sorted) > k {
		sorted = sorted[:k]
	}
	return sorted
}

// Percent formats a probability in [0,1] as "92.0%".
func Percent(p float64) string {
	return fmt.Sprintf("%.1f%%", p*100)
}
