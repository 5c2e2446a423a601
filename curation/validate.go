package curation

import (
	"errors"
	"fmt"
	"strings"

	"ai-letter/models"
	"ai-letter/reasoning"
)

// ErrProtocolViolation describes an answer with out-of-range or repeated
// indices, or a selection count outside the configured bounds.
var ErrProtocolViolation = errors.New("curation protocol violation")

// Validate keeps choices whose index lies in [0, batchLen), collapsing repeated
// indices to their first occurrence. Every discarded entry is reported.
func Validate(batchLen int, chosen []reasoning.CurationChoice) ([]models.Choice, []string) {
	valid := make([]models.Choice, 0, len(chosen))
	seen := make(map[int]struct{}, len(chosen))
	var problems []string

	for _, c := range chosen {
		if c.Index < 0 || c.Index >= batchLen {
			problems = append(problems, fmt.Sprintf("index %d is out of range [0, %d)", c.Index, batchLen))
			continue
		}
		if _, dup := seen[c.Index]; dup {
			problems = append(problems, fmt.Sprintf("index %d was selected more than once", c.Index))
			continue
		}
		seen[c.Index] = struct{}{}
		valid = append(valid, models.Choice{Index: c.Index, Rationale: strings.TrimSpace(c.Rationale)})
	}
	return valid, problems
}
