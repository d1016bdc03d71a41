// Package web serves the conversational spreadsheet UI: a small JSON API
// plus an embedded single-page frontend that draws the chart payloads.
package web

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"golang.org/x/sync/errgroup"

	"github.com/sheetchat/sheetchat/internal/config"
	"github.com/sheetchat/sheetchat/internal/dataset"
	"github.com/sheetchat/sheetchat/internal/logging"
	"github.com/sheetchat/sheetchat/internal/planner"
	"github.com/sheetchat/sheetchat/internal/render"
	"github.com/sheetchat/sheetchat/internal/session"
	"github.com/sheetchat/sheetchat/internal/table"
)

const sessionCookie = "sheetchat_session"

// Server is the HTTP server tying the loader, planner, and renderer together.
type Server struct {
	cfg      *config.Config
	cookies  *sessions.CookieStore
	sessions *session.Manager
	loader   *table.Loader
	store    *dataset.Store
	planner  planner.Service
	renderer *render.Renderer
	logger   *logging.Logger
}

// NewServer wires a server from its parts. The planner may be nil, in which
// case every question is answered by the rule-based fallback.
func NewServer(cfg *config.Config, store *dataset.Store, svc planner.Service) *Server {
	cookieStore := sessions.NewCookieStore([]byte(cfg.Server.SessionSecret))
	cookieStore.MaxAge(int(cfg.SessionTTL().Seconds()))
	cookieStore.Options.Path = "/"
	cookieStore.Options.HttpOnly = true
	cookieStore.Options.SameSite = http.SameSiteLaxMode

	s := &Server{
		cfg:      cfg,
		cookies:  cookieStore,
		loader:   table.NewLoader(table.Limits{MaxRows: cfg.Loader.MaxRows, MaxColumns: cfg.Loader.MaxColumns}),
		store:    store,
		planner:  svc,
		renderer: render.NewRenderer(store),
		logger:   logging.GetLogger(),
	}

	s.sessions = session.NewManager(cfg.SessionTTL(), func(sess *session.Session) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := store.Drop(ctx, sess.DatasetID); err != nil {
			s.logger.WithError(err).Warn("failed to drop dataset for expired session")
		}
	})

	return s
}

// Router builds the chi handler.
func (s *Server) Router() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	r.Route("/api", func(r chi.Router) {
		r.Post("/upload", s.handleUpload)
		r.Post("/ask", s.handleAsk)
		r.Post("/action/{name}", s.handleAction)
		r.Get("/transcript", s.handleTranscript)
		r.Get("/overview", s.handleOverview)
		r.Post("/reset", s.handleReset)
	})

	r.Handle("/*", s.staticHandler())

	return r
}

// Serve runs the server until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Server.Host, fmt.Sprintf("%d", s.cfg.Server.Port))
	s.logger.Infof("listening on http://%s", addr)

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.Router(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down server")
		s.sessions.Close()

		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// sessionID reads the session ID from the request cookie.
func (s *Server) sessionID(r *http.Request) string {
	cookie, err := s.cookies.Get(r, sessionCookie)
	if err != nil {
		return ""
	}

	id, _ := cookie.Values["sid"].(string)

	return id
}

// setSessionID writes the session ID to the response cookie.
func (s *Server) setSessionID(w http.ResponseWriter, r *http.Request, id string) error {
	cookie, _ := s.cookies.Get(r, sessionCookie)
	cookie.Values["sid"] = id

	return cookie.Save(r, w)
}
