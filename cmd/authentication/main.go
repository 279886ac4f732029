// The authentication service issues admin tokens for the portal API after
// checking the configured admin credentials. Run with -hash to print the
// bcrypt hash of a password for ADMIN_PASSWORD_HASH.
package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gartstein/staffing/internal/portal/auth"
	"github.com/gartstein/staffing/internal/portal/config"
	e "github.com/gartstein/staffing/internal/portal/errors"
	"github.com/gartstein/staffing/internal/portal/handlers"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse represents the response structure
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type tokenIssuer struct {
	username     string
	passwordHash string
	tokens       *auth.TokenManager
	writeErr     func(http.ResponseWriter, *http.Request, error)
	logger       *zap.Logger

	// checkPassword defaults to auth.CheckPassword.
	checkPassword func(hash, password string) error
}

// tokenHandler checks the admin credentials and returns a signed admin JWT.
func (ti *tokenIssuer) tokenHandler(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&creds); err != nil {
		ti.writeErr(w, r, fmt.Errorf("%w: malformed request body", e.ErrValidation))
		return
	}
	check := ti.checkPassword
	if check == nil {
		check = auth.CheckPassword
	}
	// The hash is checked for every username so response time does not
	// reveal which usernames exist.
	userOK := subtle.ConstantTimeCompare([]byte(creds.Username), []byte(ti.username)) == 1
	pwErr := check(ti.passwordHash, creds.Password)
	if !userOK || ti.passwordHash == "" || pwErr != nil {
		ti.logger.Warn("Rejected admin login", zap.String("username", creds.Username))
		ti.writeErr(w, r, fmt.Errorf("%w: invalid credentials", e.ErrUnauthorized))
		return
	}

	token, p, err := ti.tokens.Issue(auth.RoleAdmin, creds.Username, uuid.Nil)
	if err != nil {
		ti.writeErr(w, r, err)
		return
	}
	ti.logger.Info("Issued admin token", zap.String("username", creds.Username), zap.String("jti", p.TokenID))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(TokenResponse{Token: token, ExpiresAt: p.ExpiresAt})
}

func (ti *tokenIssuer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, chimw.Recoverer)
	r.Post("/token", ti.tokenHandler)
	return r
}

func main() {
	hash := flag.String("hash", "", "print the bcrypt hash of the given password and exit")
	flag.Parse()
	if *hash != "" {
		h, err := auth.HashPassword(*hash)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(h)
		return
	}

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(config.Path())
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	if cfg.AdminPasswordHash == "" {
		logger.Fatal("ADMIN_PASSWORD_HASH is required")
	}

	// Tokens are verified by the portal, which owns the revocation store.
	ti := &tokenIssuer{
		username:     cfg.AdminUsername,
		passwordHash: cfg.AdminPasswordHash,
		tokens:       auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL, nil),
		writeErr:     handlers.ErrorWriter(logger),
		logger:       logger.Named("authentication"),
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.AuthPort),
		Handler:           ti.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("Authentication service running", zap.Int("port", cfg.AuthPort))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("Authentication service failed", zap.Error(err))
	}
}
