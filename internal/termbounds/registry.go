// Package termbounds caches term start/end dates supplied asynchronously
// by the academic-calendar data source. Unknown bounds mean "do not
// materialize yet", never an error.
package termbounds

import (
	"context"
	"sync"

	applog "termcal/internal/log"
	"termcal/internal/model"
)

// Source fetches the bounds for one term. Implementations are expected
// to be slow (network or disk) and are always called off the caller's
// goroutine.
type Source interface {
	TermBounds(ctx context.Context, termID string) (model.TermInterval, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, termID string) (model.TermInterval, error)

func (f SourceFunc) TermBounds(ctx context.Context, termID string) (model.TermInterval, error) {
	return f(ctx, termID)
}

// Registry memoizes term intervals with a single in-flight fetch per
// term. Observers fire after a successful load so pending conflict
// checks and cached agendas can be re-evaluated.
type Registry struct {
	mu        sync.Mutex
	src       Source
	bounds    map[string]model.TermInterval
	inflight  map[string]bool
	observers []func(termID string)
}

func NewRegistry(src Source) *Registry {
	return &Registry{
		src:      src,
		bounds:   make(map[string]model.TermInterval),
		inflight: make(map[string]bool),
	}
}

// Subscribe registers a callback invoked (on the fetch goroutine, after
// the registry lock is released) whenever a term's bounds become known.
func (r *Registry) Subscribe(fn func(termID string)) {
	r.mu.Lock()
	r.observers = append(r.observers, fn)
	r.mu.Unlock()
}

// Put stores bounds directly, e.g. from a bulk calendar refresh.
func (r *Registry) Put(interval model.TermInterval) {
	r.mu.Lock()
	_, known := r.bounds[interval.TermID]
	r.bounds[interval.TermID] = interval
	obs := append([]func(string){}, r.observers...)
	r.mu.Unlock()

	if !known {
		for _, fn := range obs {
			fn(interval.TermID)
		}
	}
}

// IsLoaded reports whether the term's bounds are known.
func (r *Registry) IsLoaded(termID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.bounds[termID]
	return ok
}

// BoundsFor returns the cached interval, ok=false when unknown.
func (r *Registry) BoundsFor(termID string) (model.TermInterval, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	iv, ok := r.bounds[termID]
	return iv, ok
}

// EnsureLoaded starts an async fetch for the term unless its bounds are
// already known or a fetch is already in flight. Failures are logged and
// leave the term unknown; the next explicit EnsureLoaded call retries.
func (r *Registry) EnsureLoaded(ctx context.Context, termID string) {
	if termID == "" {
		return
	}

	r.mu.Lock()
	if _, ok := r.bounds[termID]; ok {
		r.mu.Unlock()
		return
	}
	if r.inflight[termID] {
		r.mu.Unlock()
		return
	}
	if r.src == nil {
		r.mu.Unlock()
		return
	}
	r.inflight[termID] = true
	src := r.src
	r.mu.Unlock()

	// The fetch must outlive the caller: HTTP handlers pass their request
	// context, which net/http cancels as soon as the response is written.
	// Values (trace ids etc.) are kept, cancellation is not.
	fetchCtx := context.WithoutCancel(ctx)

	go func() {
		iv, err := src.TermBounds(fetchCtx, termID)

		r.mu.Lock()
		delete(r.inflight, termID)
		if err != nil {
			r.mu.Unlock()
			applog.Error("term bounds load failed", err, "term_id", termID)
			return
		}
		iv.TermID = termID
		r.bounds[termID] = iv
		obs := append([]func(string){}, r.observers...)
		r.mu.Unlock()

		applog.Info("term bounds loaded", "term_id", termID,
			"start", iv.Start.Format("2006-01-02"), "end", iv.End.Format("2006-01-02"))
		for _, fn := range obs {
			fn(termID)
		}
	}()
}
