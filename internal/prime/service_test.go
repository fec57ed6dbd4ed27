package prime

import (
	"testing"

	"moviemeter-go/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitAsset(t *testing.T) {
	symbol, network := splitAsset("USDC-base-mainnet")
	assert.Equal(t, "USDC", symbol)
	require.NotNil(t, network)
	assert.Equal(t, "base", network.Id)
	assert.Equal(t, "mainnet", network.Type)

	symbol, network = splitAsset("ETH")
	assert.Equal(t, "ETH", symbol)
	assert.Nil(t, network)
}

func TestWithdrawalRequest(t *testing.T) {
	funding := Funding{PortfolioId: "pf-1", WalletId: "w-1", Asset: "USDC-base-mainnet"}
	payout := models.Payout{
		Id:          "payout-1",
		UserAddress: "0x00000000000000000000000000000000000000aa",
		Amount:      decimal.RequireFromString("2.50"),
	}

	req := withdrawalRequest(funding, payout)

	assert.Equal(t, "pf-1", req.PortfolioId)
	assert.Equal(t, "w-1", req.SourceWalletId)
	assert.Equal(t, "USDC", req.Symbol)
	assert.Equal(t, "2.5", req.Amount)
	assert.Equal(t, "payout-1", req.IdempotencyKey)
	assert.Equal(t, "DESTINATION_BLOCKCHAIN", req.DestinationType)
	require.NotNil(t, req.BlockchainAddress)
	assert.Equal(t, payout.UserAddress, req.BlockchainAddress.Address)
	require.NotNil(t, req.BlockchainAddress.Network)
	assert.Equal(t, "base", req.BlockchainAddress.Network.Id)

	payout.Asset = "ETH"
	req = withdrawalRequest(funding, payout)
	assert.Equal(t, "ETH", req.Symbol)
	assert.Nil(t, req.BlockchainAddress.Network)
}
