package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cbodonnell/worldgate/pkg/api/handlers"
	"github.com/cbodonnell/worldgate/pkg/api/middleware"
	"github.com/cbodonnell/worldgate/pkg/crypt"
	"github.com/cbodonnell/worldgate/pkg/log"
	"github.com/cbodonnell/worldgate/pkg/repositories"
	"github.com/cbodonnell/worldgate/pkg/staticdata"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const readHeaderTimeout = 10 * time.Second

type APIServer struct {
	server *http.Server
	tls    *TLSConfig
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type NewAPIServerOptions struct {
	Port           int
	TLS            *TLSConfig
	AdminToken     string
	Repository     repositories.Repository
	Status         handlers.StatusProvider
	Tables         *staticdata.Tables
	DefaultZoneID  int32
	PasswordParams crypt.PasswordParams
}

// NewAPIServer creates a new http.Server for account management and
// operational endpoints.
func NewAPIServer(opts NewAPIServerOptions) *APIServer {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           NewRouter(opts),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return &APIServer{
		server: server,
		tls:    opts.TLS,
	}
}

// NewRouter builds the API routes. Account and user creation require the
// admin token when one is configured.
func NewRouter(opts NewAPIServerOptions) http.Handler {
	if opts.PasswordParams == (crypt.PasswordParams{}) {
		opts.PasswordParams = crypt.DefaultPasswordParams
	}
	admin := middleware.NewAdminMiddleware(opts.AdminToken)

	r := mux.NewRouter()
	r.Use(middleware.NewLoggingMiddleware())

	r.Handle("/accounts", admin(handlers.HandleCreateAccount(opts.Repository, opts.PasswordParams))).Methods(http.MethodPost)
	r.Handle("/accounts/{accountID:[0-9]+}/users", admin(handlers.HandleCreateUser(opts.Repository, opts.Tables, opts.DefaultZoneID))).Methods(http.MethodPost)
	r.Handle("/accounts/{accountID:[0-9]+}/users", admin(handlers.HandleListUsers(opts.Repository))).Methods(http.MethodGet)
	r.Handle("/login", handlers.HandleLogin(opts.Repository)).Methods(http.MethodPost)
	r.Handle("/status", admin(handlers.HandleStatus(opts.Status))).Methods(http.MethodGet)
	r.Handle("/healthz", handlers.HandleHealth()).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return r
}

// Start starts the APIServer
func (s *APIServer) Start() {
	var listenAndServe func() error
	if s.tls != nil {
		log.Info("API server listening on %s with TLS", s.server.Addr)
		listenAndServe = func() error {
			return s.server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		}
	} else {
		log.Info("API server listening on %s", s.server.Addr)
		listenAndServe = s.server.ListenAndServe
	}
	if err := listenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("API server closed")
			return
		}
		log.Error("API server error: %v", err)
	}
}

// Stop stops the APIServer
func (s *APIServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
