package usecase

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domainerrors "github.com/khaledkhbro/marketplace-payments/internal/domain/errors"
	"github.com/khaledkhbro/marketplace-payments/internal/domain/model"
)

// MockCurrencyRepository is a mock implementation of repository.CurrencyRepository
type MockCurrencyRepository struct {
	mock.Mock
}

func (m *MockCurrencyRepository) GetByCode(ctx context.Context, code string) (*model.Currency, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Currency), args.Error(1)
}

func currencyRow(code, rate string, places int) *model.Currency {
	return &model.Currency{
		Code:          code,
		ExchangeRate:  decimal.RequireFromString(rate),
		DecimalPlaces: places,
		IsActive:      true,
	}
}

func TestConvert_IdenticalCurrenciesSkipStore(t *testing.T) {
	repo := new(MockCurrencyRepository)
	service := NewCurrencyService(repo, zap.NewNop())

	amount := decimal.RequireFromString("42.42")
	result, err := service.Convert(context.Background(), amount, "USD", "USD")

	require.NoError(t, err)
	assert.True(t, amount.Equal(result))
	repo.AssertNotCalled(t, "GetByCode", mock.Anything, mock.Anything)
}

func TestConvert_TwoHopThroughUSD(t *testing.T) {
	repo := new(MockCurrencyRepository)
	service := NewCurrencyService(repo, zap.NewNop())

	repo.On("GetByCode", mock.Anything, "USD").Return(currencyRow("USD", "1", 2), nil)
	repo.On("GetByCode", mock.Anything, "BDT").Return(currencyRow("BDT", "110", 2), nil)

	result, err := service.Convert(context.Background(), decimal.NewFromInt(10), "USD", "BDT")

	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1100).Equal(result), "got %s", result)
}

func TestConvert_InverseRoundTrip(t *testing.T) {
	repo := new(MockCurrencyRepository)
	service := NewCurrencyService(repo, zap.NewNop())

	repo.On("GetByCode", mock.Anything, "EUR").Return(currencyRow("EUR", "0.92", 2), nil)
	repo.On("GetByCode", mock.Anything, "BDT").Return(currencyRow("BDT", "110", 2), nil)

	amount := decimal.NewFromInt(100)
	there, err := service.Convert(context.Background(), amount, "EUR", "BDT")
	require.NoError(t, err)

	back, err := service.Convert(context.Background(), there, "BDT", "EUR")
	require.NoError(t, err)

	// Rounding to 2 places loses at most a cent per hop.
	diff := back.Sub(amount).Abs()
	assert.True(t, diff.LessThanOrEqual(decimal.RequireFromString("0.02")), "round trip drifted by %s", diff)
}

func TestConvert_UnknownCurrency(t *testing.T) {
	repo := new(MockCurrencyRepository)
	service := NewCurrencyService(repo, zap.NewNop())

	repo.On("GetByCode", mock.Anything, "XXX").
		Return(nil, domainerrors.ErrUnsupportedCurrency)

	_, err := service.Convert(context.Background(), decimal.NewFromInt(10), "XXX", "USD")

	assert.ErrorIs(t, err, domainerrors.ErrUnsupportedCurrency)
}

func TestConvert_NonPositiveRateIsRejected(t *testing.T) {
	repo := new(MockCurrencyRepository)
	service := NewCurrencyService(repo, zap.NewNop())

	repo.On("GetByCode", mock.Anything, "BAD").Return(currencyRow("BAD", "0", 2), nil)

	_, err := service.Convert(context.Background(), decimal.NewFromInt(10), "BAD", "USD")

	assert.ErrorIs(t, err, domainerrors.ErrUnsupportedCurrency)
}

func TestRate_IsUnrounded(t *testing.T) {
	repo := new(MockCurrencyRepository)
	service := NewCurrencyService(repo, zap.NewNop())

	repo.On("GetByCode", mock.Anything, "USD").Return(currencyRow("USD", "1", 2), nil)
	repo.On("GetByCode", mock.Anything, "EUR").Return(currencyRow("EUR", "0.92", 2), nil)

	rate, err := service.Rate(context.Background(), "EUR", "USD")

	require.NoError(t, err)
	expected := decimal.NewFromInt(1).Div(decimal.RequireFromString("0.92"))
	assert.True(t, rate.Sub(expected).Abs().LessThan(decimal.RequireFromString("0.0000001")))
}
