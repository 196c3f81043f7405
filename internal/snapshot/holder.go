package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	apperrors "github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/metrics"
)

// Reload triggers, used as the "trigger" metric label.
const (
	TriggerStartup = "startup"
	TriggerHTTP    = "http"
	TriggerSignal  = "signal"
	TriggerKafka   = "kafka"
)

// Holder publishes the current Snapshot. Readers call Current and keep the
// pointer for the whole query; Reload replaces it without blocking them.
type Holder struct {
	current atomic.Pointer[Snapshot]
	paths   Paths
	metrics *metrics.Metrics
	logger  *slog.Logger

	reloadMu sync.Mutex
	hooksMu  sync.RWMutex
	hooks    []func(*Snapshot)
}

// NewHolder starts out with initial. A nil initial is replaced by an empty
// snapshot.
func NewHolder(paths Paths, initial *Snapshot, m *metrics.Metrics) *Holder {
	if m == nil {
		m = metrics.NewNop()
	}
	h := &Holder{
		paths:   paths,
		metrics: m,
		logger:  slog.Default().With("component", "snapshot-holder"),
	}
	if initial == nil {
		initial = New(nil, nil, nil, nil)
	}
	h.publish(initial)
	return h
}

// Open loads the first snapshot from paths and returns a Holder serving it.
func Open(ctx context.Context, paths Paths, m *metrics.Metrics) (*Holder, error) {
	s, err := Load(ctx, paths)
	if err != nil {
		return nil, err
	}
	h := NewHolder(paths, s, m)
	h.metrics.SnapshotReloadsTotal.WithLabelValues(TriggerStartup, "ok").Inc()
	return h, nil
}

func (h *Holder) Current() *Snapshot {
	return h.current.Load()
}

// OnSwap registers fn to run after every successful swap.
func (h *Holder) OnSwap(fn func(*Snapshot)) {
	h.hooksMu.Lock()
	h.hooks = append(h.hooks, fn)
	h.hooksMu.Unlock()
}

// Reload loads a fresh snapshot and swaps it in. Concurrent reloads are
// serialised. A reload whose lemma source or index cannot be read is
// rejected while the current snapshot still has an index; the current
// snapshot then stays in place.
func (h *Holder) Reload(ctx context.Context, trigger string) (*Snapshot, error) {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()

	next, err := Load(ctx, h.paths)
	if err != nil {
		h.metrics.SnapshotReloadsTotal.WithLabelValues(trigger, "error").Inc()
		return h.Current(), err
	}
	prev := h.Current()
	if next.Incomplete() && prev.Index.Len() > 0 {
		h.metrics.SnapshotReloadsTotal.WithLabelValues(trigger, "rejected").Inc()
		h.logger.Warn("reload rejected, keeping previous snapshot",
			"trigger", trigger,
			"fingerprint", prev.Fingerprint,
			"problems", next.Stats.Problems,
		)
		return prev, fmt.Errorf("%w: reload incomplete: %v", apperrors.ErrMissingResource, next.Stats.Problems)
	}

	h.publish(next)
	h.metrics.SnapshotReloadsTotal.WithLabelValues(trigger, "ok").Inc()
	h.logger.Info("snapshot swapped",
		"trigger", trigger,
		"from", prev.Fingerprint,
		"to", next.Fingerprint,
		"unchanged", prev.Fingerprint == next.Fingerprint,
	)
	return next, nil
}

// Swap installs s directly.
func (h *Holder) Swap(s *Snapshot) {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()
	h.publish(s)
}

func (h *Holder) publish(s *Snapshot) {
	h.current.Store(s)
	h.metrics.SnapshotLemmas.Set(float64(s.Index.Len()))
	h.metrics.SnapshotPostings.Set(float64(s.Index.TotalPostings()))
	h.metrics.SnapshotDocuments.Set(float64(s.Weights.Len()))
	if n := s.Stats.Lemmas.Malformed; n > 0 {
		h.metrics.MalformedRecords.WithLabelValues("lemmas").Add(float64(n))
	}
	if n := s.Stats.Index.Malformed; n > 0 {
		h.metrics.MalformedRecords.WithLabelValues("index").Add(float64(n))
	}
	if n := s.Stats.Weights.Malformed; n > 0 {
		h.metrics.MalformedRecords.WithLabelValues("weights").Add(float64(n))
	}

	h.hooksMu.RLock()
	hooks := append([]func(*Snapshot){}, h.hooks...)
	h.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(s)
	}
}

// Probe reports an incomplete snapshot as unhealthy.
func (h *Holder) Probe(_ context.Context) error {
	s := h.Current()
	if s.Incomplete() {
		return fmt.Errorf("%w: %v", apperrors.ErrMissingResource, s.Stats.Problems)
	}
	return nil
}
