package report

import (
	"encoding/json"
	"fmt"
	"io"
)

// WriteJSON renders r as indented JSON. Decimals are written as exact, unrounded strings.
func WriteJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}
