package prime

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/coinbase-samples/prime-sdk-go/client"
	"github.com/coinbase-samples/prime-sdk-go/credentials"
	"github.com/coinbase-samples/prime-sdk-go/portfolios"
	"github.com/coinbase-samples/prime-sdk-go/transactions"
	"github.com/coinbase-samples/prime-sdk-go/wallets"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

const (
	defaultPortfolioName = "Default Portfolio"
	tradingWalletType    = "TRADING"
)

// Service talks to the Prime REST API on behalf of the payout pipeline.
type Service struct {
	portfolios   portfolios.PortfoliosService
	wallets      wallets.WalletsService
	transactions transactions.TransactionsService
}

// Funding identifies the wallet that reward payouts are withdrawn from.
type Funding struct {
	PortfolioId string
	WalletId    string
	WalletName  string
	Asset       string
}

func NewService(creds *credentials.Credentials) (*Service, error) {
	httpClient, err := newHttpClient()
	if err != nil {
		return nil, fmt.Errorf("unable to create prime http client: %w", err)
	}

	rest := client.NewRestClient(creds, httpClient)
	return &Service{
		portfolios:   portfolios.NewPortfoliosService(rest),
		wallets:      wallets.NewWalletsService(rest),
		transactions: transactions.NewTransactionsService(rest),
	}, nil
}

// newHttpClient builds an HTTP/2 client with bounded dial, handshake and
// response timeouts. Payout submissions never wait longer than a minute.
func newHttpClient() (http.Client, error) {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   15 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 5 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   5,
	}
	if err := http2.ConfigureTransport(tr); err != nil {
		return http.Client{}, err
	}
	return http.Client{Transport: tr, Timeout: time.Minute}, nil
}

// ResolveFunding fills in whichever of portfolioId and walletId is empty. An
// empty portfolio means the account's default portfolio; an empty wallet means
// the first trading wallet holding the payout asset's symbol.
func (s *Service) ResolveFunding(ctx context.Context, portfolioId, walletId, asset string) (*Funding, error) {
	funding := &Funding{PortfolioId: portfolioId, WalletId: walletId, Asset: asset}

	if funding.PortfolioId == "" {
		id, err := s.defaultPortfolioId(ctx)
		if err != nil {
			return nil, err
		}
		funding.PortfolioId = id
	}

	if funding.WalletId == "" {
		symbol, _ := splitAsset(asset)
		id, name, err := s.tradingWallet(ctx, funding.PortfolioId, symbol)
		if err != nil {
			return nil, err
		}
		funding.WalletId = id
		funding.WalletName = name
	}

	zap.L().Info("Resolved payout funding wallet",
		zap.String("portfolio_id", funding.PortfolioId),
		zap.String("wallet_id", funding.WalletId),
		zap.String("wallet_name", funding.WalletName),
		zap.String("asset", funding.Asset))

	return funding, nil
}

func (s *Service) defaultPortfolioId(ctx context.Context) (string, error) {
	resp, err := s.portfolios.ListPortfolios(ctx, &portfolios.ListPortfoliosRequest{})
	if err != nil {
		return "", fmt.Errorf("unable to list portfolios: %w", err)
	}
	for _, p := range resp.Portfolios {
		if p.Name == defaultPortfolioName {
			return p.Id, nil
		}
	}
	return "", fmt.Errorf("portfolio %q not found", defaultPortfolioName)
}

func (s *Service) tradingWallet(ctx context.Context, portfolioId, symbol string) (string, string, error) {
	resp, err := s.wallets.ListWallets(ctx, &wallets.ListWalletsRequest{
		PortfolioId: portfolioId,
		Type:        tradingWalletType,
		Symbols:     []string{strings.ToUpper(symbol)},
	})
	if err != nil {
		return "", "", fmt.Errorf("unable to list wallets: %w", err)
	}
	if len(resp.Wallets) == 0 {
		return "", "", fmt.Errorf("no trading wallet holds %s in portfolio %s", symbol, portfolioId)
	}
	return resp.Wallets[0].Id, resp.Wallets[0].Name, nil
}
