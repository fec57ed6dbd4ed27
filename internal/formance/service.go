package formance

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"moviemeter-go/internal/models"
	"moviemeter-go/internal/store"

	v3 "github.com/formancehq/formance-sdk-go/v3"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/sdkerrors"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"go.uber.org/zap"
)

var _ store.PointsLedger = (*Service)(nil)

// Points are whole units, so the asset carries no decimals.
const pointsAsset = "PTS/0"

const defaultLedgerName = "moviemeter-points"

// Service keeps the points ledger in a Formance Stack. Every award and claim
// is one ledger transaction whose reference is the action's idempotency key.
type Service struct {
	client *v3.Formance
	ledger string
}

func NewService(ctx context.Context, cfg models.FormanceConfig) (*Service, error) {
	if cfg.StackURL == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: formance backend needs FORMANCE_STACK_URL, FORMANCE_CLIENT_ID and FORMANCE_CLIENT_SECRET", store.ErrValidation)
	}
	ledger := cfg.LedgerName
	if ledger == "" {
		ledger = defaultLedgerName
	}

	svc := &Service{
		client: v3.New(
			v3.WithServerURL(cfg.StackURL),
			v3.WithSecurity(shared.Security{
				ClientID:     v3.Pointer(cfg.ClientID),
				ClientSecret: v3.Pointer(cfg.ClientSecret),
			}),
		),
		ledger: ledger,
	}

	if err := svc.createLedger(ctx); err != nil {
		return nil, upstream("unable to prepare points ledger", err)
	}

	zap.L().Info("Formance points ledger ready",
		zap.String("stack_url", cfg.StackURL),
		zap.String("ledger", ledger))
	return svc, nil
}

// createLedger is idempotent: an existing ledger is reused as is.
func (s *Service) createLedger(ctx context.Context) error {
	_, err := s.client.Ledger.V2.CreateLedger(ctx, operations.V2CreateLedgerRequest{
		Ledger: s.ledger,
		V2CreateLedgerRequest: shared.V2CreateLedgerRequest{
			Metadata: map[string]string{
				"application": "moviemeter",
				"asset":       pointsAsset,
			},
		},
	})
	if hasCode(err, shared.V2ErrorsEnumLedgerAlreadyExists) {
		return nil
	}
	return err
}

// Ping checks that the ledger is reachable.
func (s *Service) Ping(ctx context.Context) error {
	if _, err := s.client.Ledger.V2.GetLedger(ctx, operations.V2GetLedgerRequest{Ledger: s.ledger}); err != nil {
		return upstream("ping formance ledger", err)
	}
	return nil
}

func (s *Service) Close() {}

var invalidSegment = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// accountSegment lowercases an id and replaces characters Formance does not
// accept in account addresses.
func accountSegment(id string) string {
	return invalidSegment.ReplaceAllString(strings.ToLower(id), "_")
}

func userAccount(address string) string {
	return "users:" + accountSegment(address)
}

// hasCode reports whether err is a Formance API error carrying any of codes.
func hasCode(err error, codes ...shared.V2ErrorsEnum) bool {
	var apiErr *sdkerrors.V2ErrorResponse
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, c := range codes {
		if apiErr.ErrorCode == c {
			return true
		}
	}
	return false
}

func isConflictError(err error) bool {
	return hasCode(err, shared.V2ErrorsEnumConflict)
}

func isNotFoundError(err error) bool {
	return hasCode(err, shared.V2ErrorsEnumNotFound)
}

func isInsufficientFundError(err error) bool {
	return hasCode(err, shared.V2ErrorsEnumInsufficientFund)
}

func upstream(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, store.ErrUpstreamUnavailable, err)
}

func strPtr(s string) *string  { return &s }
func ptrInt64(v int64) *int64 { return &v }
