package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/gartstein/staffing/internal/portal/db"
	e "github.com/gartstein/staffing/internal/portal/errors"
	"github.com/gartstein/staffing/internal/portal/events"
	"github.com/gartstein/staffing/internal/portal/models"
	"go.uber.org/zap"
)

// VerificationService checks access codes against the client store.
type VerificationService struct {
	repo     Repository
	producer EventProducer
	logger   *zap.Logger
	now      func() time.Time
}

func NewVerificationService(repo Repository, producer EventProducer, logger *zap.Logger) *VerificationService {
	return &VerificationService{
		repo:     repo,
		producer: producer,
		logger:   logger.Named("verification_service"),
		now:      utcNow,
	}
}

// Verify resolves code to its active client. On success the client's login
// count and last login time are updated and a login activity carrying ip is
// appended, all in one transaction. Unknown or deactivated codes yield
// ErrNotFound and expired ones ErrExpired, without touching any state.
func (s *VerificationService) Verify(ctx context.Context, code, ip string) (*models.Client, error) {
	return s.verify(ctx, code, ip, "verify")
}

func (s *VerificationService) verify(ctx context.Context, code, ip, source string) (*models.Client, error) {
	code = canonicalCode(code)
	if code == "" {
		return nil, fmt.Errorf("%w: access_code is required", e.ErrValidation)
	}

	var client *models.Client
	err := s.repo.WithTransaction(ctx, func(tx *db.Repository) error {
		now := s.now()
		found, err := findVerifiableClient(ctx, tx, code, now)
		if err != nil {
			return err
		}
		if err := recordLogin(ctx, tx, found, ip, source, now); err != nil {
			return err
		}
		client = found
		return nil
	})
	if err != nil {
		s.logger.Info("Access code verification failed",
			zap.String("source", source),
			zap.String("reason", e.Kind(err)),
		)
		return nil, wrapInternal(err, "verify access code")
	}

	s.producer.Produce(events.ClientLoggedIn, client.ID.String(), client.Profile())
	return client, nil
}
