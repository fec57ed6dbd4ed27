package common

import (
	"context"
	"fmt"

	"moviemeter-go/internal/api"
	"moviemeter-go/internal/database"
	"moviemeter-go/internal/models"

	"go.uber.org/zap"
)

// SelectUsers returns the wallet named by addressFilter, or every known
// wallet when the filter is empty. The filter must be a wallet address.
func SelectUsers(ctx context.Context, dbService *database.Service, addressFilter string) ([]models.User, error) {
	if addressFilter == "" {
		users, err := dbService.GetUsers(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list users: %w", err)
		}
		zap.L().Info("Selected all users", zap.Int("count", len(users)))
		return users, nil
	}

	address := api.NormalizeAddress(addressFilter)
	if !api.IsWalletAddress(address) {
		return nil, fmt.Errorf("invalid wallet address %q", addressFilter)
	}

	user, err := dbService.GetUser(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s: %w", address, err)
	}
	zap.L().Info("Selected user", zap.String("address", address), zap.Int("votes", user.VoteCount))
	return []models.User{*user}, nil
}
