package bribestesting

import (
	"log/slog"
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// NewLogger returns a logger for tests. Output is suppressed below error level unless DEBUG
// is set to 1 (info) or 2 (debug).
func NewLogger() *slog.Logger {
	var level slog.Level
	switch os.Getenv("DEBUG") {
	case "2":
		level = slog.LevelDebug
	case "1":
		level = slog.LevelInfo
	default:
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// D parses a decimal literal, failing the test on bad input.
func D(t testing.TB, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err, "invalid decimal literal %q", s)
	return d
}

// RequireDecimal asserts that got rounded to places fractional digits equals want.
func RequireDecimal(t testing.TB, want string, got decimal.Decimal, places int32, msgAndArgs ...any) {
	t.Helper()
	require.Equal(t, D(t, want).StringFixed(places), got.StringFixed(places), msgAndArgs...)
}

// RequireDecimalNear asserts that |got - want| <= tolerance.
func RequireDecimalNear(t testing.TB, want, got, tolerance decimal.Decimal) {
	t.Helper()
	diff := got.Sub(want).Abs()
	require.Truef(t, diff.LessThanOrEqual(tolerance), "want %s, got %s (diff %s > %s)", want, got, diff, tolerance)
}
