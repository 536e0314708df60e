package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"messagely/internal/identity"
	"messagely/internal/ledger"
	"messagely/internal/session"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/valyala/fastjson"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

// Pinger reports whether the backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services are the components the HTTP layer exposes
type Services struct {
	Identity *identity.Service
	Sessions *session.Issuer
	Ledger   *ledger.Ledger
	Store    Pinger
}

// Server defines fields used in HTTP processing
type Server struct {
	logger        *zap.SugaredLogger
	httpServer    *http.Server
	afterShutdown []func()
}

// NewServer returns new Server struct with provided zap.SugaredLogger and Services
func NewServer(logger *zap.SugaredLogger, services Services, opts ...Option) (*Server, error) {
	if services.Identity == nil || services.Sessions == nil || services.Ledger == nil || services.Store == nil {
		return nil, fmt.Errorf("server: all services are required")
	}

	h := &handler{
		logger:   logger,
		identity: services.Identity,
		sessions: services.Sessions,
		ledger:   services.Ledger,
		store:    services.Store,
		parsers: parsers{
			registerPool:      fastjson.ParserPool{},
			loginPool:         fastjson.ParserPool{},
			createMessagePool: fastjson.ParserPool{},
			tokenPool:         fastjson.ParserPool{},
		},
	}

	c := &config{
		httpServer: &http.Server{
			Addr:    "0.0.0.0:9000",
			Handler: newRouter(logger.Desugar(), h),
		},
	}
	for _, opt := range opts {
		opt.apply(c)
	}

	return &Server{
		logger:        logger,
		httpServer:    c.httpServer,
		afterShutdown: c.afterShutdown,
	}, nil
}

// newRouter registers every route of the API
func newRouter(logger *zap.Logger, h *handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RealIP)
	r.Use(func(next http.Handler) http.Handler { return log(next, logger) })
	r.Use(chiMiddleware.Recoverer)
	r.Use(h.authenticate)

	r.Get("/health", h.health)

	r.Route("/auth", func(r chi.Router) {
		r.Use(enforcePOSTJSON)
		r.Post("/register", h.register)
		r.Post("/login", h.login)
	})

	r.Route("/users", func(r chi.Router) {
		r.Use(h.ensureLoggedIn)
		r.Get("/", h.listUsers)

		r.Route("/{username}", func(r chi.Router) {
			r.Use(h.ensureCorrectUser)
			r.Get("/", h.getUser)
			r.Get("/to", h.messagesTo)
			r.Get("/from", h.messagesFrom)
		})
	})

	r.Route("/messages", func(r chi.Router) {
		r.Use(h.ensureLoggedIn)
		r.With(enforcePOSTJSON).Post("/", h.createMessage)
		r.Get("/{id}", h.getMessage)
		r.Post("/{id}/read", h.markRead)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondMessage(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondMessage(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
	})

	return r
}

// Handler returns the root http.Handler of the server
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start calls ListenAndServe on http.Server instance inside Server struct
// and implements graceful shutdown via goroutine waiting for signals
func (s *Server) Start() error {
	idleConnsClosed := make(chan struct{})

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		s.logger.Info("Shutting down HTTP server")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Errorf("srv.Shutdown: %v", err)
		}
		s.logger.Info("HTTP server is stopped")

		close(idleConnsClosed)
	}()

	s.logger.Infof("Starting HTTP server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("s.httpServer.ListenAndServe: %v", err)
	}

	<-idleConnsClosed

	for _, f := range s.afterShutdown {
		f()
	}

	return nil
}
