package repo

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-local-messenger/internal/blob"
)

// BackendKind names the engine a Store routes to.
type BackendKind string

const (
	BackendNative   BackendKind = "native"
	BackendFallback BackendKind = "fallback"
)

// Backend is the contract both engines satisfy.
type Backend interface {
	Execute(ctx context.Context, q Query) (*Result, error)
	Kind() BackendKind
	Close() error
}

// Backend selection modes accepted in Options.Backend.
const (
	ModeAuto     = "auto"
	ModeFallback = "fallback"
)

// Options configures a Store.
type Options struct {
	Backend       string // auto|fallback
	DBPath        string // SQLite file for the native engine
	BlobDriver    string // file|bolt
	BlobPath      string // directory (file) or database file (bolt)
	StrictPersist bool   // fallback: reject operations whose write-through fails
}

// ---- TEST SEAMS ----
var (
	openNativeFn = func(path string) (Backend, error) { return OpenNative(path) }
	openBlobFn   = blob.Open
)

// Store is the storage façade. It is created uninitialized; Initialize
// selects a backend exactly once and every Execute afterwards goes to that
// backend.
type Store struct {
	opts   Options
	tracer trace.Tracer
	log    zerolog.Logger

	once    sync.Once
	initErr error

	mu      sync.RWMutex
	backend Backend
}

// NewStore returns an uninitialized Store.
func NewStore(opts Options) *Store {
	return &Store{
		opts:   opts,
		tracer: otel.Tracer("github.com/tbourn/go-local-messenger/internal/repo"),
		log:    log.With().Str("component", "store").Logger(),
	}
}

// Initialize selects the backend. In auto mode it probes the native engine
// and switches to the fallback engine on any failure, logging a warning.
// Calling Initialize again is a no-op that returns the first outcome.
//
// The only error is failing to open the blob store for the fallback engine;
// the Store then stays uninitialized.
func (s *Store) Initialize(ctx context.Context) error {
	s.once.Do(func() {
		s.initErr = s.initialize(ctx)
	})
	return s.initErr
}

func (s *Store) initialize(ctx context.Context) error {
	mode := strings.ToLower(strings.TrimSpace(s.opts.Backend))

	if mode != ModeFallback {
		nb, err := openNativeFn(s.opts.DBPath)
		if err == nil {
			s.setBackend(nb)
			s.log.Info().Str("backend", string(BackendNative)).Str("db_path", s.opts.DBPath).Msg("storage ready")
			return nil
		}
		s.log.Warn().Err(err).Str("db_path", s.opts.DBPath).Msg("native storage unavailable; using fallback")
	}

	blobs, err := openBlobFn(s.opts.BlobDriver, s.opts.BlobPath)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	fb := NewFallbackEngine(blobs, FallbackOptions{StrictPersist: s.opts.StrictPersist})
	fb.Start(ctx)
	s.setBackend(fb)
	s.log.Info().
		Str("backend", string(BackendFallback)).
		Str("blob_driver", s.opts.BlobDriver).
		Str("blob_path", s.opts.BlobPath).
		Bool("strict_persist", s.opts.StrictPersist).
		Msg("storage ready")
	return nil
}

func (s *Store) setBackend(b Backend) {
	s.mu.Lock()
	s.backend = b
	s.mu.Unlock()
}

func (s *Store) current() Backend {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backend
}

// Backend reports the active engine, or "" before Initialize.
func (s *Store) Backend() BackendKind {
	if b := s.current(); b != nil {
		return b.Kind()
	}
	return ""
}

// Execute runs q on the active backend.
func (s *Store) Execute(ctx context.Context, q Query) (*Result, error) {
	b := s.current()
	name := queryName(q)
	if b == nil {
		storeQueries.WithLabelValues("none", name, outcome(ErrNotInitialized)).Inc()
		return nil, ErrNotInitialized
	}
	kind := string(b.Kind())

	ctx, span := s.tracer.Start(ctx, "store."+name, trace.WithAttributes(
		attribute.String("store.backend", kind),
		attribute.String("store.shape", name),
	))
	defer span.End()

	start := time.Now()
	res, err := b.Execute(ctx, q)
	storeLatency.WithLabelValues(kind, name).Observe(time.Since(start).Seconds())
	storeQueries.WithLabelValues(kind, name, outcome(err)).Inc()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome(err))
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("store.rows", res.Rows.Len()),
		attribute.Int64("store.rows_affected", res.RowsAffected),
	)
	return res, nil
}

// Close releases the active backend. It is safe on an uninitialized Store.
// A closed Store is terminal: Initialize does not run again, and Execute
// returns ErrNotInitialized.
func (s *Store) Close() error {
	s.mu.Lock()
	b := s.backend
	s.backend = nil
	s.mu.Unlock()
	if b == nil {
		return nil
	}
	return b.Close()
}
