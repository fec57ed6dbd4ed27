package prime

import (
	"context"
	"fmt"
	"strings"

	"moviemeter-go/internal/models"

	"github.com/coinbase-samples/prime-sdk-go/model"
	"github.com/coinbase-samples/prime-sdk-go/transactions"
	"go.uber.org/zap"
)

// PayoutSender withdraws reward tokens from one funding wallet to voters.
type PayoutSender struct {
	svc     *Service
	funding Funding
}

func NewPayoutSender(svc *Service, funding *Funding) *PayoutSender {
	return &PayoutSender{svc: svc, funding: *funding}
}

// Funding returns the wallet payouts are drawn from.
func (p *PayoutSender) Funding() Funding {
	return p.funding
}

// SendPayout submits the payout and returns the Prime activity id. The payout
// id is the idempotency key, so a retried payout is never sent twice.
func (p *PayoutSender) SendPayout(ctx context.Context, payout models.Payout) (string, error) {
	req := withdrawalRequest(p.funding, payout)

	resp, err := p.svc.transactions.CreateWalletWithdrawal(ctx, req)
	if err != nil {
		zap.L().Error("Prime rejected payout withdrawal",
			zap.String("payout_id", payout.Id),
			zap.String("address", payout.UserAddress),
			zap.String("amount", req.Amount),
			zap.Error(err))
		return "", fmt.Errorf("unable to create withdrawal for payout %s: %w", payout.Id, err)
	}

	zap.L().Info("Payout withdrawal created",
		zap.String("payout_id", payout.Id),
		zap.String("activity_id", resp.ActivityId),
		zap.String("address", payout.UserAddress),
		zap.String("amount", req.Amount),
		zap.String("symbol", req.Symbol))

	return resp.ActivityId, nil
}

func withdrawalRequest(funding Funding, payout models.Payout) *transactions.CreateWalletWithdrawalRequest {
	asset := payout.Asset
	if asset == "" {
		asset = funding.Asset
	}
	symbol, network := splitAsset(asset)

	return &transactions.CreateWalletWithdrawalRequest{
		PortfolioId:     funding.PortfolioId,
		SourceWalletId:  funding.WalletId,
		Symbol:          symbol,
		Amount:          payout.Amount.String(),
		IdempotencyKey:  payout.Id,
		DestinationType: "DESTINATION_BLOCKCHAIN",
		BlockchainAddress: &model.BlockchainAddress{
			Address: payout.UserAddress,
			Network: network,
		},
	}
}

// splitAsset reads assets written as SYMBOL-network-type, e.g. USDC-base-mainnet.
// A bare symbol has no network and Prime picks its default.
func splitAsset(asset string) (string, *model.NetworkDetails) {
	parts := strings.Split(asset, "-")
	if len(parts) < 3 {
		return parts[0], nil
	}
	return parts[0], &model.NetworkDetails{Id: parts[1], Type: parts[2]}
}
