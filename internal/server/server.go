// Package server exposes the story index over HTTP: the v4 and v3 index
// documents, a server-sent event stream of invalidations and search.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/maypok86/otter"

	"github.com/mvp-joe/storyindex/internal/search"
	"github.com/mvp-joe/storyindex/internal/storyindex"
	"github.com/mvp-joe/storyindex/internal/wire"
)

const (
	defaultCacheCapacity = 64
	keepAliveInterval    = 30 * time.Second
	shutdownTimeout      = 5 * time.Second
)

// Generator is the part of the story index generator the server reads.
type Generator interface {
	GetIndex(ctx context.Context) (*storyindex.StoryIndex, error)
	OnInvalidate(fn func())
}

// Options configure a Server.
type Options struct {
	Logger *slog.Logger
	// Searcher serves /search. When nil the route answers 404.
	Searcher *search.Searcher
	// CacheCapacity bounds the encoded document cache.
	CacheCapacity int
}

// Server serves the story index.
type Server struct {
	gen      Generator
	notifier *Notifier
	cache    otter.Cache[string, []byte]
	searcher *search.Searcher
	log      *slog.Logger
	mux      *http.ServeMux
}

// New creates a server over gen. Encoded documents are cached per index
// digest and the cache is cleared on every invalidation.
func New(gen Generator, opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.CacheCapacity <= 0 {
		opts.CacheCapacity = defaultCacheCapacity
	}

	cache, err := otter.MustBuilder[string, []byte](opts.CacheCapacity).
		Cost(func(key string, value []byte) uint32 { return 1 }).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create document cache: %w", err)
	}

	s := &Server{
		gen:      gen,
		notifier: NewNotifier(),
		cache:    cache,
		searcher: opts.Searcher,
		log:      opts.Logger,
		mux:      http.NewServeMux(),
	}
	gen.OnInvalidate(s.cache.Clear)

	s.mux.HandleFunc("GET /index.json", s.handleDocument("v4", wire.MarshalV4))
	s.mux.HandleFunc("GET /stories.json", s.handleDocument("v3", wire.MarshalV3))
	s.mux.HandleFunc("GET /events", s.handleEvents)
	s.mux.HandleFunc("GET /search", s.handleSearch)
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Notifier returns the notifier behind /events.
func (s *Server) Notifier() *Notifier {
	return s.notifier
}

// Notify sends one invalidation event to every /events subscriber.
func (s *Server) Notify() {
	s.notifier.Broadcast()
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully. ready, when non-nil, receives the bound address.
func (s *Server) ListenAndServe(ctx context.Context, addr string, ready func(net.Addr)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	if ready != nil {
		ready(ln.Addr())
	}

	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("serving story index", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
		return nil
	}
}

// Close releases the document cache.
func (s *Server) Close() {
	s.cache.Close()
}

func (s *Server) handleDocument(version string, marshal func(*storyindex.StoryIndex) ([]byte, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ix, err := s.gen.GetIndex(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}

		key := version + ":" + ix.Digest()
		body, ok := s.cache.Get(key)
		if !ok {
			body, err = marshal(ix)
			if err != nil {
				s.writeError(w, err)
				return
			}
			s.cache.Set(key, body)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("ETag", strconv.Quote(key))
		if r.Header.Get("If-None-Match") == strconv.Quote(key) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		_, _ = w.Write(body)
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	id, ch, cancel := s.notifier.Subscribe()
	defer cancel()
	s.log.Debug("event subscriber connected", "id", id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			s.log.Debug("event subscriber disconnected", "id", id)
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-ch:
			if _, err := fmt.Fprint(w, "event: invalidate\ndata: {}\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.searcher == nil {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	if q.Get("q") == "" {
		http.Error(w, "missing query parameter q", http.StatusBadRequest)
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))

	results, err := s.searcher.Search(r.Context(), q.Get("q"), &search.Options{
		Limit: limit,
		Type:  storyindex.EntryType(q.Get("type")),
		Tag:   q.Get("tag"),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, results)
}

// writeError maps index errors to responses. A soft error is not a server
// failure: its message is the body of a 200 response.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var soft *storyindex.SoftError
	switch {
	case errors.As(err, &soft):
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(soft.Message))
	case errors.Is(err, storyindex.ErrNotInitialized):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, context.Canceled):
		// client went away
	default:
		s.log.Warn("story index request failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
