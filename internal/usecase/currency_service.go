package usecase

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	domainerrors "github.com/khaledkhbro/marketplace-payments/internal/domain/errors"
	"github.com/khaledkhbro/marketplace-payments/internal/domain/model"
	"github.com/khaledkhbro/marketplace-payments/internal/domain/repository"
)

// CurrencyService converts amounts between stored currencies. Exchange rates
// are stored against a USD base, so every conversion is two hops through USD.
type CurrencyService struct {
	currencyRepo repository.CurrencyRepository
	logger       *zap.Logger
}

func NewCurrencyService(currencyRepo repository.CurrencyRepository, logger *zap.Logger) *CurrencyService {
	return &CurrencyService{
		currencyRepo: currencyRepo,
		logger:       logger,
	}
}

// Convert translates amount from one currency to another, rounded to the
// target currency's decimal places. Identical codes return the amount
// unchanged without touching the store.
func (s *CurrencyService) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}

	fromCur, err := s.lookup(ctx, from)
	if err != nil {
		return decimal.Zero, err
	}
	toCur, err := s.lookup(ctx, to)
	if err != nil {
		return decimal.Zero, err
	}

	// amount / from_rate = USD value, USD value * to_rate = target value.
	usdValue := amount.Div(fromCur.ExchangeRate)
	converted := usdValue.Mul(toCur.ExchangeRate)

	return converted.Round(int32(toCur.DecimalPlaces)), nil
}

// Rate returns the unrounded multiplier that converts one unit of from into to.
func (s *CurrencyService) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	fromCur, err := s.lookup(ctx, from)
	if err != nil {
		return decimal.Zero, err
	}
	toCur, err := s.lookup(ctx, to)
	if err != nil {
		return decimal.Zero, err
	}

	return toCur.ExchangeRate.Div(fromCur.ExchangeRate), nil
}

func (s *CurrencyService) lookup(ctx context.Context, code string) (*model.Currency, error) {
	cur, err := s.currencyRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	// A zero or negative rate would divide by zero or flip signs. Treat the
	// row as unusable.
	if !cur.ExchangeRate.IsPositive() {
		s.logger.Error("Currency has a non-positive exchange rate",
			zap.String("code", code),
			zap.String("rate", cur.ExchangeRate.String()))
		return nil, domainerrors.ErrUnsupportedCurrency
	}
	return cur, nil
}
