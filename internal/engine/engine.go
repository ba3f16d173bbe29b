// Package engine wires the detection and annotation pipeline together
// and drives it: editor events arrive over IPC, filesystem events from
// the watcher, and classifications flow from the classifier into the
// annotation writer through a single ordered worker.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"provmark/internal/annotate"
	"provmark/internal/classify"
	"provmark/internal/clipboard"
	"provmark/internal/config"
	"provmark/internal/document"
	"provmark/internal/event"
	"provmark/internal/ipc"
	"provmark/internal/store"
	"provmark/internal/watcher"
)

// Engine owns all pipeline state. There is no ambient global state: one
// engine instance per process, passed explicitly to its collaborators.
type Engine struct {
	cfg *config.Config
	log *slog.Logger

	docs       *document.Store
	clip       *clipboard.Monitor
	classifier *classify.Classifier
	writer     *annotate.Writer
	ledger     *store.Store

	results chan event.Result
}

// New builds an engine from configuration. The ledger is opened unless
// storage is disabled; a ledger open failure is fatal at startup (it is
// best-effort only once running).
func New(cfg *config.Config, log *slog.Logger) (*Engine, error) {
	if log == nil {
		log = slog.Default()
	}

	e := &Engine{
		cfg:     cfg,
		log:     log,
		docs:    document.NewStore(),
		results: make(chan event.Result, 64),
	}

	var accessor clipboard.Accessor
	if !cfg.Clipboard.Disabled {
		accessor = clipboard.SystemAccessor()
	}
	e.clip = clipboard.NewMonitor(accessor, cfg.Clipboard.Poll())

	if !cfg.Storage.Disabled {
		ledger, err := store.Open(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("open ledger: %w", err)
		}
		e.ledger = ledger
	}

	suppress := annotate.NewSuppressionSet()

	var recorder annotate.Recorder
	if e.ledger != nil {
		recorder = e.ledger
	}
	e.writer = annotate.NewWriter(annotate.Config{
		Tool:          cfg.Annotation.Tool,
		Identifier:    cfg.Annotation.Identifier,
		Cooldown:      cfg.Annotation.Cooldown(),
		SuppressGrace: cfg.Annotation.SuppressGrace(),
	}, e, suppress, recorder, log)

	e.classifier = classify.New(classify.Config{
		Enabled:        cfg.Detection.Enabled,
		MinChars:       cfg.Detection.MinChars,
		CharsPerSecond: cfg.Detection.CharsPerSecond,
		CoalesceWindow: cfg.Detection.CoalesceWindow(),
	}, e.clip, suppress, log)

	e.classifier.OnResult(func(res event.Result) {
		if res.Classification != event.ClassAILikely {
			return
		}
		select {
		case e.results <- res:
		default:
			e.log.Warn("annotation queue full, dropping result", "uri", res.URI)
		}
	})

	return e, nil
}

// Classifier exposes the classifier for result-hook registration.
func (e *Engine) Classifier() *classify.Classifier {
	return e.classifier
}

// Ledger returns the annotation ledger, or nil when storage is disabled.
func (e *Engine) Ledger() *store.Store {
	return e.ledger
}

// ApplyConfig applies a hot-reloaded configuration to the live
// classifier knobs. Socket, storage, and watch paths need a restart.
func (e *Engine) ApplyConfig(cfg *config.Config) {
	e.classifier.SetConfig(classify.Config{
		Enabled:        cfg.Detection.Enabled,
		MinChars:       cfg.Detection.MinChars,
		CharsPerSecond: cfg.Detection.CharsPerSecond,
		CoalesceWindow: cfg.Detection.CoalesceWindow(),
	})
	e.log.Info("configuration reloaded",
		"enabled", cfg.Detection.Enabled,
		"min_chars", cfg.Detection.MinChars)
}

// Run drives the socket server, the filesystem watcher, the clipboard
// poller, and the annotation worker until the context is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	e.clip.Start()
	defer e.clip.Stop()

	g, ctx := errgroup.WithContext(ctx)

	server := ipc.NewServer(e.cfg.IPC.SocketPath, e, e.log)
	g.Go(func() error {
		return server.Run(ctx)
	})

	if len(e.cfg.Watch.Paths) > 0 {
		w, err := watcher.New(watcher.Config{
			Paths:           e.cfg.Watch.Paths,
			IncludePatterns: e.cfg.Watch.IncludePatterns,
			ExcludePatterns: e.cfg.Watch.ExcludePatterns,
			Debounce:        e.cfg.Watch.Debounce(),
		})
		if err != nil {
			return fmt.Errorf("create watcher: %w", err)
		}
		if err := w.Start(); err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		g.Go(func() error {
			defer w.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case ev, ok := <-w.Events():
					if !ok {
						return nil
					}
					e.classifier.ProcessFileChange(ev.Path)
				case err, ok := <-w.Errors():
					if ok && err != nil {
						e.log.Warn("watcher error", "error", err)
					}
				}
			}
		})
	}

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case res := <-e.results:
				// Errors here are normal aborts (cooldown, already
				// marked, empty range); they surface as diagnostics
				// only.
				if err := e.writer.Annotate(res); err != nil {
					e.log.Debug("annotation skipped", "uri", res.URI, "reason", err)
				}
			}
		}
	})

	err := g.Wait()
	if e.ledger != nil {
		e.ledger.Close()
	}
	return err
}
