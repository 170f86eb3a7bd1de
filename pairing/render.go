package pairing

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Format selects the schedule rendering.
type Format string

const (
	FormatText  Format = "text"
	FormatCSV   Format = "csv"
	FormatJSONL Format = "jsonl"
)

// Render writes the schedule to w in the requested format.
//
// text emits one line per round, pairs joined with " | ", each pair rendered
// as two space-separated zero-based indices. csv emits a "round,a,b" header
// followed by one row per pair. jsonl emits one JSON object per round.
func Render(w io.Writer, s *Schedule, format Format) error {
	switch format {
	case FormatText:
		for _, round := range s.Rounds {
			parts := make([]string, 0, len(round.Pairs))
			for _, p := range round.Pairs {
				parts = append(parts, fmt.Sprintf("%d %d", p.A, p.B))
			}
			if _, err := fmt.Fprintln(w, strings.Join(parts, " | ")); err != nil {
				return err
			}
		}
		return nil

	case FormatCSV:
		if _, err := fmt.Fprintln(w, "round,a,b"); err != nil {
			return err
		}
		for _, round := range s.Rounds {
			for _, p := range round.Pairs {
				if _, err := fmt.Fprintf(w, "%d,%d,%d\n", round.Index, p.A, p.B); err != nil {
					return err
				}
			}
		}
		return nil

	case FormatJSONL:
		enc := json.NewEncoder(w)
		for _, round := range s.Rounds {
			if err := enc.Encode(round); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("unknown schedule format %q", format)
	}
}
