package credit

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"chatlima-server/internal/domain/catalog"
	"chatlima-server/internal/utils/platformerrors"
)

// Settings configures credit conversion.
type Settings struct {
	// CreditUnitUSD is the USD value of a single credit.
	CreditUnitUSD decimal.Decimal
	// SignupBonus is granted once to every new signed-in account.
	SignupBonus int64
}

// Pricing is the per-token USD price pair used to convert usage to credits.
type Pricing struct {
	InputPerToken  decimal.Decimal
	OutputPerToken decimal.Decimal
}

// Account describes who is asking for model access.
type Account struct {
	UserID      string
	IsAnonymous bool
}

// AccessDecision is the outcome of CheckAccess.
type AccessDecision struct {
	Allowed         bool   `json:"allowed"`
	Reason          string `json:"reason,omitempty"`
	Balance         int64  `json:"balance"`
	RequiresCredits bool   `json:"requiresCredits"`
}

// CreditService owns balance reads, grants and charges.
type CreditService struct {
	repo     Repository
	settings Settings
	log      zerolog.Logger
}

func NewCreditService(repo Repository, settings Settings, log zerolog.Logger) *CreditService {
	if !settings.CreditUnitUSD.IsPositive() {
		settings.CreditUnitUSD = decimal.RequireFromString("0.01")
	}
	return &CreditService{
		repo:     repo,
		settings: settings,
		log:      log.With().Str("component", "credit-service").Logger(),
	}
}

// GetBalance returns the user's current balance.
func (s *CreditService) GetBalance(ctx context.Context, userID string) (*Balance, error) {
	if userID == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "user id is required", nil, "0e6c1b4a-9d2f-4c8e-b7a1-3f5d8e2c6a90")
	}
	balance, err := s.repo.GetBalance(ctx, userID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load credit balance")
	}
	return balance, nil
}

// HasCredits reports whether the balance is at least min.
func (s *CreditService) HasCredits(ctx context.Context, userID string, min int64) (bool, error) {
	balance, err := s.GetBalance(ctx, userID)
	if err != nil {
		return false, err
	}
	return balance.Balance >= min && balance.Balance > 0, nil
}

// Grant adds credits to a user.
func (s *CreditService) Grant(ctx context.Context, userID string, amount int64, reason string) (*Balance, error) {
	if amount <= 0 {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "grant amount must be positive", nil, "5a8f2d1e-7c3b-4e9a-a6d0-1b4c8f2e9d35")
	}
	if reason == "" {
		reason = ReasonGrant
	}
	balance, err := s.repo.Apply(ctx, &Transaction{UserID: userID, Amount: amount, Reason: reason})
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to grant credits")
	}
	s.log.Info().Str("user_id", userID).Int64("amount", amount).Str("reason", reason).Int64("balance", balance.Balance).Msg("credits granted")
	return balance, nil
}

// GrantSignupBonus grants the configured signup bonus. It is a no-op when the bonus is zero.
func (s *CreditService) GrantSignupBonus(ctx context.Context, userID string) error {
	if s.settings.SignupBonus <= 0 {
		return nil
	}
	_, err := s.Grant(ctx, userID, s.settings.SignupBonus, ReasonSignupBonus)
	return err
}

// ListTransactions returns the most recent ledger entries of a user.
func (s *CreditService) ListTransactions(ctx context.Context, userID string, limit int) ([]*Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	txs, err := s.repo.ListTransactions(ctx, userID, limit)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list credit transactions")
	}
	return txs, nil
}

// Charge debits credits. A debit that would leave a negative balance is rejected.
func (s *CreditService) Charge(ctx context.Context, userID string, amount int64, reason string, ref string) (*Balance, error) {
	if amount <= 0 {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "charge amount must be positive", nil, "c2d7e9a4-1f6b-4a3c-8e5d-7b0a9c4f1e62")
	}
	tx := &Transaction{UserID: userID, Amount: -amount, Reason: reason}
	if ref != "" {
		tx.Reference = &ref
	}
	balance, err := s.repo.Apply(ctx, tx)
	if errors.Is(err, ErrInsufficientCredits) {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypePaymentRequired, "insufficient credits", err, "9b1e4c7d-3a8f-4d2e-b5c6-0f7a2d9e8b14").WithCode("INSUFFICIENT_CREDITS")
	}
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to charge credits")
	}
	s.log.Debug().Str("user_id", userID).Int64("amount", amount).Str("reason", reason).Int64("balance", balance.Balance).Msg("credits charged")
	return balance, nil
}

// ChargeUpTo debits amount, or the whole remaining balance when it is smaller.
// It returns the amount actually debited, which is zero for an empty balance.
func (s *CreditService) ChargeUpTo(ctx context.Context, userID string, amount int64, reason string, ref string) (int64, error) {
	want := amount
	for attempt := 0; attempt < 3; attempt++ {
		_, err := s.Charge(ctx, userID, want, reason, ref)
		if err == nil {
			if want < amount {
				s.log.Warn().Str("user_id", userID).Int64("amount", amount).Int64("charged", want).Str("reason", reason).Msg("balance drained, charge capped")
			}
			return want, nil
		}
		if !platformerrors.IsErrorType(err, platformerrors.ErrorTypePaymentRequired) {
			return 0, err
		}
		balance, err := s.GetBalance(ctx, userID)
		if err != nil {
			return 0, err
		}
		want = min(amount, balance.Balance)
		if want <= 0 {
			s.log.Warn().Str("user_id", userID).Int64("amount", amount).Str("reason", reason).Msg("balance empty, charge skipped")
			return 0, nil
		}
	}
	return 0, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict, "balance changed during charge", nil, "4d7b2e9c-8a1f-4c63-b0e5-9f2a6d3c7e18")
}

// CostForUsage converts token usage into credits: ceil(cost / unit), at least one credit.
func (s *CreditService) CostForUsage(pricing Pricing, promptTokens, completionTokens int) int64 {
	cost := pricing.InputPerToken.Mul(decimal.NewFromInt(int64(promptTokens))).
		Add(pricing.OutputPerToken.Mul(decimal.NewFromInt(int64(completionTokens))))
	credits := cost.Div(s.settings.CreditUnitUSD).Ceil().IntPart()
	if credits < 1 {
		return 1
	}
	return credits
}

// CheckAccess decides whether an account may use a model.
func (s *CreditService) CheckAccess(ctx context.Context, cache *RequestCache, account Account, model catalog.ModelInfo, ownKey bool) (*AccessDecision, error) {
	if ownKey {
		return &AccessDecision{Allowed: true}, nil
	}
	if !model.Premium {
		return &AccessDecision{Allowed: true}, nil
	}
	if account.IsAnonymous {
		return &AccessDecision{
			Allowed:         false,
			Reason:          "Premium models require a signed-in account with credits",
			RequiresCredits: true,
		}, nil
	}

	if cache == nil {
		cache = s.NewRequestCache()
	}
	balance, err := cache.Balance(ctx, account.UserID)
	if err != nil {
		return nil, err
	}
	if balance <= 0 {
		return &AccessDecision{
			Allowed:         false,
			Reason:          "Insufficient credits to use premium model " + model.ID,
			Balance:         balance,
			RequiresCredits: true,
		}, nil
	}
	return &AccessDecision{Allowed: true, Balance: balance, RequiresCredits: true}, nil
}
