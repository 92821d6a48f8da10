package index

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/docsearch/pkg/catalog"
)

// ErrNotLoaded is reported by Check before the first successful load.
var ErrNotLoaded = errors.New("catalog not loaded")

// Status describes the holder's last load attempts.
type Status struct {
	Source      string    `json:"source"`
	Version     string    `json:"version,omitempty"`
	Items       int       `json:"items"`
	LoadedAt    time.Time `json:"loaded_at,omitempty"`
	LastAttempt time.Time `json:"last_attempt,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	Swaps       int       `json:"swaps"`
}

// Holder owns the live catalog and replaces it atomically on reload. Readers
// always see a complete catalog; a failed reload keeps the previous one.
type Holder struct {
	source  Source
	log     *logrus.Logger
	current atomic.Pointer[catalog.Catalog]
	onSwap  []func(*catalog.Catalog)

	reloadMu sync.Mutex

	statusMu sync.RWMutex
	status   Status
}

// NewHolder creates a holder reading from source. Nothing is loaded until
// Reload is called.
func NewHolder(source Source, log *logrus.Logger) *Holder {
	if log == nil {
		log = logrus.New()
	}
	return &Holder{
		source: source,
		log:    log,
		status: Status{Source: source.String()},
	}
}

// OnSwap registers fn to run after each catalog replacement.
func (h *Holder) OnSwap(fn func(*catalog.Catalog)) {
	h.onSwap = append(h.onSwap, fn)
}

// Current returns the live catalog, or nil before the first load.
func (h *Holder) Current() *catalog.Catalog {
	return h.current.Load()
}

// Status returns a snapshot of the load status.
func (h *Holder) Status() Status {
	h.statusMu.RLock()
	defer h.statusMu.RUnlock()
	return h.status
}

// Check reports whether a catalog is loaded, for readiness probes.
func (h *Holder) Check(ctx context.Context) error {
	if h.current.Load() == nil {
		if msg := h.Status().LastError; msg != "" {
			return fmt.Errorf("%w: %s", ErrNotLoaded, msg)
		}
		return ErrNotLoaded
	}
	return nil
}

// Reload fetches, parses and builds the index, then swaps it in. It reports
// whether the catalog changed; an identical index leaves the current one in
// place.
func (h *Holder) Reload(ctx context.Context) (bool, error) {
	ctx, span := indexTracer.Start(ctx, "Holder.Reload",
		trace.WithAttributes(attribute.String("index.source", h.source.String())))
	defer span.End()

	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()

	start := time.Now()
	cat, err := h.load(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reload failed")
		h.setStatus(func(s *Status) {
			s.LastAttempt = start
			s.LastError = err.Error()
		})
		return false, err
	}

	if prev := h.current.Load(); prev != nil && prev.Version() == cat.Version() {
		span.SetAttributes(attribute.Bool("index.changed", false))
		h.setStatus(func(s *Status) {
			s.LastAttempt = start
			s.LastError = ""
		})
		return false, nil
	}

	h.current.Store(cat)
	h.setStatus(func(s *Status) {
		s.LastAttempt = start
		s.LastError = ""
		s.Version = cat.Version()
		s.Items = cat.Len()
		s.LoadedAt = time.Now()
		s.Swaps++
	})

	span.SetAttributes(
		attribute.Bool("index.changed", true),
		attribute.String("catalog.version", cat.Version()),
		attribute.Int("catalog.items", cat.Len()),
	)
	h.log.WithFields(logrus.Fields{
		"source":  h.source.String(),
		"version": cat.Version(),
		"items":   cat.Len(),
		"elapsed": time.Since(start).String(),
	}).Info("Catalog loaded")

	for _, fn := range h.onSwap {
		fn(cat)
	}
	return true, nil
}

func (h *Holder) setStatus(update func(*Status)) {
	h.statusMu.Lock()
	defer h.statusMu.Unlock()
	update(&h.status)
}

func (h *Holder) load(ctx context.Context) (*catalog.Catalog, error) {
	data, err := h.source.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return catalog.BuildContext(ctx, raw)
}

// reloadLogged reloads and logs a failure instead of returning it.
func (h *Holder) reloadLogged(ctx context.Context, trigger string) {
	if _, err := h.Reload(ctx); err != nil {
		h.log.WithError(err).WithField("trigger", trigger).Warn("Catalog reload failed, keeping previous catalog")
	}
}

// Watch reloads whenever the file at path changes, waiting for debounce
// after the last event so that partial writes are not loaded. It blocks
// until ctx is done.
func (h *Holder) Watch(ctx context.Context, path string, debounce time.Duration) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(path)
	// Watch the directory: editors and deploy tools replace files by rename,
	// which drops a watch on the file itself.
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(target), err)
	}
	h.log.Infof("Watching %s for index changes", target)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			h.log.Debugf("Index file event: %s", event)
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			h.log.Warnf("Watcher error: %v", err)

		case <-fire:
			fire = nil
			h.reloadLogged(ctx, "watch")
		}
	}
}

// Schedule reloads on a cron spec such as "*/5 * * * *" or "@every 1m".
// The returned scheduler is running; stop it with Stop.
func (h *Holder) Schedule(spec string, timeout time.Duration) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		h.reloadLogged(ctx, "schedule")
	})
	if err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	c.Start()
	h.log.Infof("Index refresh scheduled: %s", spec)
	return c, nil
}
