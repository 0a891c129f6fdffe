// Package observability provides a metrics extension that tracks
// scheduler lifecycle counts via OpenTelemetry. Register it on the
// engine to count dispatches, completions, interruptions, errors, and
// execution outcomes without touching scheduler code.
package observability
