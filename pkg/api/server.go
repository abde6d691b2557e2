// Package api exposes the HTTP surface: the webhook dispatch endpoint, the
// read API for workflows, executions and bookings, and credential management.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/robbyautoki/attio-hub/pkg/auth"
	"github.com/robbyautoki/attio-hub/pkg/config"
	"github.com/robbyautoki/attio-hub/pkg/engine"
	"github.com/robbyautoki/attio-hub/pkg/logging"
	"github.com/robbyautoki/attio-hub/pkg/middleware"
	"github.com/robbyautoki/attio-hub/pkg/storage"
	"github.com/robbyautoki/attio-hub/pkg/vault"
)

// Server represents the HTTP API server
type Server struct {
	config         *config.Config
	router         *mux.Router
	server         *http.Server
	accountService *auth.AccountService
	jwtService     *auth.JWTService
	vault          *vault.Service
	clients        engine.ClientFactory
	engine         *engine.Engine
	workflows      storage.WorkflowStore
	executions     storage.ExecutionStore
	bookings       storage.BookingStore
	stream         *engine.StreamPublisher
	logger         logging.Logger
}

// Deps bundles the server's dependencies
type Deps struct {
	Config         *config.Config
	AccountService *auth.AccountService
	JWTService     *auth.JWTService
	Vault          *vault.Service
	Clients        engine.ClientFactory
	Engine         *engine.Engine
	Workflows      storage.WorkflowStore
	Executions     storage.ExecutionStore
	Bookings       storage.BookingStore
	Stream         *engine.StreamPublisher
	Logger         logging.Logger
}

// NewServer creates a new API server
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = logging.NopLogger{}
	}

	s := &Server{
		config:         deps.Config,
		router:         mux.NewRouter(),
		accountService: deps.AccountService,
		jwtService:     deps.JWTService,
		vault:          deps.Vault,
		clients:        deps.Clients,
		engine:         deps.Engine,
		workflows:      deps.Workflows,
		executions:     deps.Executions,
		bookings:       deps.Bookings,
		stream:         deps.Stream,
		logger:         deps.Logger,
	}

	s.setupRoutes()
	return s
}

// Handler returns the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.LogSystemEvent("server_started", map[string]interface{}{"addr": addr})

	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop stops the HTTP server gracefully
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// tokenAuthenticator accepts both JWTs and long-lived API tokens
type tokenAuthenticator struct {
	accounts *auth.AccountService
	jwt      *auth.JWTService
}

func (a *tokenAuthenticator) Authenticate(username, password string) (string, error) {
	return a.accounts.Authenticate(username, password)
}

func (a *tokenAuthenticator) ValidateToken(token string) (string, error) {
	if accountID, err := a.jwt.ValidateToken(token); err == nil {
		return accountID, nil
	}
	return a.accounts.ValidateToken(token)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	authMiddleware := middleware.NewAuthMiddleware(&tokenAuthenticator{
		accounts: s.accountService,
		jwt:      s.jwtService,
	})

	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Public routes
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/accounts", s.handleCreateAccount).Methods(http.MethodPost, http.MethodOptions)

	// The webhook dispatch boundary: providers authenticate with the
	// per-workflow path token and optional shared secret, not with accounts
	api.HandleFunc("/hooks/{path}", s.handleWebhook).Methods(http.MethodPost, http.MethodOptions)

	// Authenticated routes
	authenticated := api.PathPrefix("").Subrouter()
	authenticated.Use(authMiddleware.Authenticate)

	accounts := authenticated.PathPrefix("/accounts").Subrouter()
	accounts.HandleFunc("/me", s.handleGetCurrentAccount).Methods(http.MethodGet, http.MethodOptions)

	workflows := authenticated.PathPrefix("/workflows").Subrouter()
	workflows.HandleFunc("", s.handleListWorkflows).Methods(http.MethodGet, http.MethodOptions)
	workflows.HandleFunc("", s.handleCreateWorkflow).Methods(http.MethodPost, http.MethodOptions)
	workflows.HandleFunc("/{id}", s.handleGetWorkflow).Methods(http.MethodGet, http.MethodOptions)
	workflows.HandleFunc("/{id}", s.handleUpdateWorkflow).Methods(http.MethodPut, http.MethodOptions)
	workflows.HandleFunc("/{id}", s.handleDeleteWorkflow).Methods(http.MethodDelete, http.MethodOptions)
	workflows.HandleFunc("/{id}/toggle", s.handleToggleWorkflow).Methods(http.MethodPost, http.MethodOptions)
	workflows.HandleFunc("/{id}/run", s.handleRunWorkflow).Methods(http.MethodPost, http.MethodOptions)
	workflows.HandleFunc("/{id}/executions", s.handleListWorkflowExecutions).Methods(http.MethodGet, http.MethodOptions)

	executions := authenticated.PathPrefix("/executions").Subrouter()
	executions.HandleFunc("", s.handleListExecutions).Methods(http.MethodGet, http.MethodOptions)
	executions.HandleFunc("/stream", s.handleExecutionStream).Methods(http.MethodGet, http.MethodOptions)
	executions.HandleFunc("/{id}", s.handleGetExecution).Methods(http.MethodGet, http.MethodOptions)

	bookings := authenticated.PathPrefix("/bookings").Subrouter()
	bookings.HandleFunc("", s.handleListBookings).Methods(http.MethodGet, http.MethodOptions)
	bookings.HandleFunc("/{id}", s.handleGetBooking).Methods(http.MethodGet, http.MethodOptions)

	credentials := authenticated.PathPrefix("/credentials").Subrouter()
	credentials.HandleFunc("", s.handleListCredentials).Methods(http.MethodGet, http.MethodOptions)
	credentials.HandleFunc("", s.handleStoreCredential).Methods(http.MethodPost, http.MethodOptions)
	credentials.HandleFunc("/{id}", s.handleGetCredential).Methods(http.MethodGet, http.MethodOptions)
	credentials.HandleFunc("/{id}", s.handleDeleteCredential).Methods(http.MethodDelete, http.MethodOptions)
	credentials.HandleFunc("/{id}/test", s.handleTestCredential).Methods(http.MethodPost, http.MethodOptions)

	s.router.Use(middleware.CORS)
}

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleLogin authenticates credentials and issues a JWT
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	accountID, err := s.accountService.Authenticate(req.Username, req.Password)
	if err != nil {
		http.Error(w, "Authentication failed", http.StatusUnauthorized)
		return
	}

	account, err := s.accountService.GetAccount(accountID)
	if err != nil {
		http.Error(w, "Failed to retrieve account", http.StatusInternalServerError)
		return
	}

	token, err := s.jwtService.GenerateToken(account)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"token":      token,
		"account_id": accountID,
	})
}

// handleCreateAccount handles account creation
func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	accountID, err := s.accountService.CreateAccount(req.Username, req.Password)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	account, err := s.accountService.GetAccount(accountID)
	if err != nil {
		http.Error(w, "Failed to retrieve account", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"id":        account.ID,
		"username":  account.Username,
		"api_token": account.APIToken,
	})
}

// handleGetCurrentAccount handles retrieving the current account
func (s *Server) handleGetCurrentAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	account, err := s.accountService.GetAccount(accountID)
	if err != nil {
		http.Error(w, "Failed to retrieve account", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, account)
}

// handleExecutionStream attaches the client to the live SSE stream
func (s *Server) handleExecutionStream(w http.ResponseWriter, r *http.Request) {
	if s.stream == nil {
		http.Error(w, "Streaming not enabled", http.StatusNotFound)
		return
	}

	// The SSE library selects the stream by query parameter
	q := r.URL.Query()
	q.Set("stream", engine.ExecutionStreamID)
	r.URL.RawQuery = q.Encode()

	s.stream.Handler().ServeHTTP(w, r)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
