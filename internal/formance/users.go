package formance

import (
	"context"
	"fmt"
	"time"

	"moviemeter-go/internal/models"
	"moviemeter-go/internal/store"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"go.uber.org/zap"
)

// ---------- Voter accounts ----------

// ensureVoter tags users:<address> as a voter on first activity.
func (s *Service) ensureVoter(ctx context.Context, address string) error {
	user, err := s.getVoter(ctx, address)
	if err == nil && user != nil {
		return nil
	}

	addr := userAccount(address)
	zap.L().Info("Registering voter in Formance", zap.String("account", addr))

	_, err = s.client.Ledger.V2.AddMetadataToAccount(ctx, operations.V2AddMetadataToAccountRequest{
		Ledger:  s.ledger,
		Address: addr,
		RequestBody: map[string]string{
			"entity_type":   "voter",
			"address":       address,
			"first_seen_at": time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return upstream("failed to register voter account", err)
	}
	return nil
}

// getVoter returns the voter registered at users:<address>, or ErrNotFound.
func (s *Service) getVoter(ctx context.Context, address string) (*models.User, error) {
	resp, err := s.client.Ledger.V2.GetAccount(ctx, operations.V2GetAccountRequest{
		Ledger:  s.ledger,
		Address: userAccount(address),
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, fmt.Errorf("%w: user %s", store.ErrNotFound, address)
		}
		return nil, upstream("failed to get voter account", err)
	}

	acct := resp.V2AccountResponse.Data
	if acct.Metadata["entity_type"] != "voter" {
		return nil, fmt.Errorf("%w: user %s", store.ErrNotFound, address)
	}
	return accountToUser(&acct), nil
}

func accountToUser(acct *shared.V2Account) *models.User {
	user := &models.User{Address: acct.Metadata["address"]}
	if t, err := time.Parse(time.RFC3339, acct.Metadata["first_seen_at"]); err == nil {
		user.FirstSeenAt = t
	}
	return user
}
