// Package obslog builds a structured JSON log sink: one JSON object
// per line with fields {timestamp, level, component, request_id,
// operation, duration_ms, outcome, details}. It follows a
// handler-wrapping-handler shape (an Options struct plus a constructor
// taking an io.Writer).
package obslog

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Options configures a Handler. SlogOpts governs level filtering only:
// its Level is applied through the embedded handler's Enabled, while
// AddSource and ReplaceAttr have no effect on the emitted record.
type Options struct {
	SlogOpts slog.HandlerOptions
}

// Handler is a slog.Handler that emits the §6.6 record shape.
type Handler struct {
	slog.Handler
	w     io.Writer
	mu    *sync.Mutex
	opt   Options
	attrs []slog.Attr
}

// New builds a Handler writing to w.
func New(w io.Writer, opts Options) *Handler {
	return &Handler{
		Handler: slog.NewJSONHandler(w, &opts.SlogOpts),
		w:       w,
		mu:      &sync.Mutex{},
		opt:     opts,
	}
}

// record is the §6.6 wire shape.
type record struct {
	Timestamp  string            `json:"timestamp"`
	Level      string            `json:"level"`
	Component  string            `json:"component"`
	RequestID  string            `json:"request_id,omitempty"`
	Operation  string            `json:"operation,omitempty"`
	DurationMs int64             `json:"duration_ms,omitempty"`
	Outcome    string            `json:"outcome,omitempty"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
}

// Handle implements slog.Handler, marshaling r into the fixed §6.6
// shape and writing one JSON line.
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	rec := record{
		Timestamp: r.Time.UTC().Format(time.RFC3339Nano),
		Level:     r.Level.String(),
		Message:   r.Message,
		Details:   make(map[string]string),
	}

	apply := func(a slog.Attr) bool {
		switch a.Key {
		case "component":
			rec.Component = a.Value.String()
		case "request_id":
			rec.RequestID = a.Value.String()
		case "operation":
			rec.Operation = a.Value.String()
		case "duration_ms":
			rec.DurationMs = a.Value.Int64()
		case "outcome":
			rec.Outcome = a.Value.String()
		default:
			rec.Details[a.Key] = a.Value.String()
		}
		return true
	}

	for _, a := range h.attrs {
		apply(a)
	}
	r.Attrs(apply)

	if len(rec.Details) == 0 {
		rec.Details = nil
	}

	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	b = append(b, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.w.Write(b)
	return err
}

// WithAttrs and WithGroup track accumulated attributes alongside the
// embedded handler (used only for level filtering) so that attributes
// bound with Logger.With still surface in the emitted record.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &Handler{
		Handler: h.Handler.WithAttrs(attrs),
		w:       h.w,
		mu:      h.mu,
		opt:     h.opt,
		attrs:   merged,
	}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{
		Handler: h.Handler.WithGroup(name),
		w:       h.w,
		mu:      h.mu,
		opt:     h.opt,
		attrs:   h.attrs,
	}
}

// New component-scoped logger helpers.

// ForComponent returns a *slog.Logger with a "component" attribute
// pre-bound, handed to each collaborator at construction time rather
// than looked up from a package-level global.
func ForComponent(base *slog.Logger, component string) *slog.Logger {
	return base.With(slog.String("component", component))
}
