package report

import (
	"context"
	"fmt"
	"io"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatText, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown report format %q (want text or json)", s)
	}
}

// WriterSink renders reports to an io.Writer.
type WriterSink struct {
	W       io.Writer
	Format  Format
	NoColor bool
}

func (s *WriterSink) Emit(_ context.Context, r *Report) error {
	if s.Format == FormatJSON {
		return WriteJSON(s.W, r)
	}
	return WriteText(s.W, r, s.NoColor)
}
