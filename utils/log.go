package utils

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/log"
)

// ParseLevel maps a level name to its slog level. Besides the slog names
// ("debug", "info", "warn", "error") it accepts geth's "trace" and "crit".
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return log.LevelTrace, nil
	case "crit":
		return log.LevelCrit, nil
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return 0, fmt.Errorf("unknown log level %q", level)
	}
	return lvl, nil
}

// NewLogger builds a terminal logger writing to w at the named level.
func NewLogger(w io.Writer, level string, useColor bool) (log.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return log.NewLogger(log.NewTerminalHandlerWithLevel(w, lvl, useColor)), nil
}
