package telemetry

import (
	"fmt"
	"log/slog"
	"os"
)

// InitSlog points the default slog logger at stderr. Stdout carries the
// stdio protocol, so nothing may ever log there. When quiet is true only
// warnings and errors are emitted; quiet is an explicit flag set from
// configuration, never sniffed from the environment.
func InitSlog(quiet bool) {
	level := slog.LevelDebug
	if quiet {
		level = slog.LevelWarn
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// SlogAPI implements API using the log/slog package.
type SlogAPI struct{}

func (SlogAPI) formatParams(out *[]any, params []any) {
	for i, p := range params {
		*out = append(
			*out,
			fmt.Sprintf("params.%d", i),
			p,
		)
	}
}

func (s SlogAPI) ReportBroken(id string, params ...any) {
	remainingPairs := []any{"id", id}
	s.formatParams(&remainingPairs, params)
	slog.Error("broken component", remainingPairs...)
}

func (s SlogAPI) ReportWarning(id string, params ...any) {
	remainingPairs := []any{"id", id}
	s.formatParams(&remainingPairs, params)
	slog.Warn("warning", remainingPairs...)
}

func (s SlogAPI) ReportDebug(message string, params ...any) {
	remainingPairs := []any{}
	s.formatParams(&remainingPairs, params)
	slog.Debug(message, remainingPairs...)
}

func (s SlogAPI) ReportCount(id string, count int64) {
	slog.Info("count", "id", id, "n", count)
}

// NopAPI discards all reports. For tests that do not assert on telemetry.
type NopAPI struct{}

func (NopAPI) ReportBroken(id string, params ...any)  {}
func (NopAPI) ReportWarning(id string, params ...any) {}
func (NopAPI) ReportDebug(msg string, params ...any)  {}
func (NopAPI) ReportCount(id string, count int64)     {}
