// Package renewal extends active auto-renewing subscriptions that are about
// to expire. It is invoked out of band (cmd/renewal), never per request.
package renewal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/volkanakin/storefront-checkout/internal/domain"
)

const (
	// Window ahead of expiry within which a subscription becomes due.
	Window = 24 * time.Hour

	// Extension granted on each renewal.
	Extension = 30 * 24 * time.Hour
)

type Service struct {
	subscriptionRepo domain.SubscriptionRepository
	logger           *slog.Logger

	// now is swappable in tests.
	now func() time.Time
}

func NewService(subscriptionRepo domain.SubscriptionRepository, logger *slog.Logger) *Service {
	return &Service{
		subscriptionRepo: subscriptionRepo,
		logger:           logger,
		now:              time.Now,
	}
}

// CheckAndRenewSubscriptions scans for active auto-renewing subscriptions
// expiring within the window and extends them all in one atomic batch write.
// It returns the number of subscriptions renewed.
func (s *Service) CheckAndRenewSubscriptions(ctx context.Context) (int, error) {
	now := s.now()

	due, err := s.subscriptionRepo.FindDueForRenewal(ctx, now.Add(Window))
	if err != nil {
		return 0, fmt.Errorf("scan subscriptions due for renewal: %w", err)
	}

	if len(due) == 0 {
		s.logger.Info("no subscriptions due for renewal")
		return 0, nil
	}

	ids := make([]int, len(due))
	for i, subscription := range due {
		ids[i] = subscription.ID
	}

	renewed, err := s.subscriptionRepo.RenewBatch(ctx, ids, now.Add(Extension), now)
	if err != nil {
		return 0, fmt.Errorf("renew subscription batch: %w", err)
	}

	s.logger.Info("renewed subscriptions", "due", len(due), "renewed", renewed)

	return renewed, nil
}

// Result is the structured outcome of a single-subscription renewal. The
// renewal paths report failures through it instead of errors, so a batch
// caller can log and continue past one bad record.
type Result struct {
	Success bool
	Message string
}

// ProcessSubscriptionRenewal renews one subscription after explicit
// eligibility checks.
func (s *Service) ProcessSubscriptionRenewal(ctx context.Context, id int) Result {
	subscription, err := s.subscriptionRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return Result{Message: fmt.Sprintf("subscription %d not found", id)}
		}

		s.logger.Error("failed to load subscription", "id", id, "error", err)
		return Result{Message: fmt.Sprintf("failed to load subscription %d", id)}
	}

	if subscription.Status != domain.SubscriptionStatusActive {
		return Result{Message: fmt.Sprintf("subscription %d is not active", id)}
	}

	if !subscription.AutoRenew {
		return Result{Message: fmt.Sprintf("auto-renew is disabled for subscription %d", id)}
	}

	now := s.now()
	newEndDate := now.Add(Extension)

	err = s.subscriptionRepo.Renew(ctx, id, newEndDate, now)
	if err != nil {
		s.logger.Error("failed to renew subscription", "id", id, "error", err)
		return Result{Message: fmt.Sprintf("failed to renew subscription %d", id)}
	}

	return Result{
		Success: true,
		Message: fmt.Sprintf("subscription %d renewed until %s", id, newEndDate.Format(time.RFC3339)),
	}
}
