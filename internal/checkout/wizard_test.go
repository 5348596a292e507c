package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fekuna/omnipos-checkout-service/internal/cart"
	cartUCPkg "github.com/fekuna/omnipos-checkout-service/internal/cart/usecase"
	"github.com/fekuna/omnipos-checkout-service/internal/model"
	"github.com/fekuna/omnipos-checkout-service/internal/sales/dto"
	"github.com/fekuna/omnipos-checkout-service/pkg/logger"
)

// --- Mocks ---

type mockSalesUseCase struct {
	mu        sync.Mutex
	submitted []*dto.SubmitSaleInput
	err       error
	delay     time.Duration
}

func (m *mockSalesUseCase) Submit(_ context.Context, input *dto.SubmitSaleInput) (*model.Sale, error) {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.mu.Lock()
	m.submitted = append(m.submitted, input)
	err := m.err
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &model.Sale{ID: "sale-1", CreatedAt: time.Now()}, nil
}

func (m *mockSalesUseCase) lastInput() *dto.SubmitSaleInput {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.submitted) == 0 {
		return nil
	}
	return m.submitted[len(m.submitted)-1]
}

// --- Setup ---

func bankConfig(installments int, surcharge string) model.PaymentRateConfig {
	sub := model.CardBankAffiliated
	return model.PaymentRateConfig{
		PaymentType:      model.PaymentCard,
		CardSubType:      &sub,
		InstallmentCount: installments,
		SurchargePct:     decimal.RequireFromString(surcharge),
		IsActive:         true,
	}
}

func allMethods() []model.PaymentMethod {
	return []model.PaymentMethod{model.PaymentCash, model.PaymentCard, model.PaymentTransfer}
}

func setupWizardTest(t *testing.T, configs []model.PaymentRateConfig, methods []model.PaymentMethod) (*Wizard, cart.UseCase, *mockSalesUseCase) {
	t.Helper()
	cartUC := cartUCPkg.NewCartUseCase(logger.NewNop())
	salesUC := &mockSalesUseCase{}
	w := NewWizard(cartUC, salesUC, "pos", methods, configs, decimal.RequireFromString("21"), logger.NewNop())
	return w, cartUC, salesUC
}

func addProduct(t *testing.T, cartUC cart.UseCase, id, price string, qty int) {
	t.Helper()
	require.NoError(t, cartUC.AddItem(&model.Product{
		ID:    id,
		Name:  "Product " + id,
		Price: decimal.RequireFromString(price),
		Stock: 100,
	}, nil, qty, nil))
}

// moveTo advances the active cursor to the given index from zero.
func moveTo(w *Wizard, index int) {
	for i := 0; i < index; i++ {
		w.Next()
	}
}

// --- Tests ---

func TestOpenResetsState(t *testing.T) {
	w, cartUC, _ := setupWizardTest(t, nil, allMethods())
	addProduct(t, cartUC, "p1", "100", 1)
	w.Open()

	snap := w.Snapshot()
	assert.True(t, snap.Open)
	assert.Equal(t, StepItems, snap.Step)
	assert.Equal(t, 0, snap.Cursor)
	assert.Equal(t, model.PaymentCash, snap.Selection.Method)
	assert.Equal(t, 1, snap.Selection.Installments)
}

func TestConfirmOnEmptyCartRejected(t *testing.T) {
	w, _, _ := setupWizardTest(t, nil, allMethods())
	w.Open()

	// With zero lines the first entry is "go to payment".
	err := w.Confirm(context.Background())

	require.ErrorIs(t, err, ErrEmptyCart)
	assert.Equal(t, StepItems, w.Snapshot().Step)
}

func TestNoPaymentMethodsIsConfigurationError(t *testing.T) {
	w, cartUC, _ := setupWizardTest(t, nil, nil)
	addProduct(t, cartUC, "p1", "100", 1)
	w.Open()
	moveTo(w, 1) // go to payment

	err := w.Confirm(context.Background())

	require.ErrorIs(t, err, ErrNoPaymentMethods)
	assert.Equal(t, StepItems, w.Snapshot().Step)
}

func TestClearCartEntry(t *testing.T) {
	w, cartUC, _ := setupWizardTest(t, nil, allMethods())
	addProduct(t, cartUC, "p1", "100", 1)
	addProduct(t, cartUC, "p2", "50", 1)
	w.Open()
	moveTo(w, 3) // lines 0,1 then "go to payment" at 2, "clear cart" at 3

	require.NoError(t, w.Confirm(context.Background()))

	assert.Empty(t, cartUC.Lines())
	assert.Equal(t, StepItems, w.Snapshot().Step)
	assert.Equal(t, 0, w.Snapshot().Cursor)
}

func TestFullCardNavigation(t *testing.T) {
	configs := []model.PaymentRateConfig{
		bankConfig(1, "0"),
		bankConfig(3, "10"),
		bankConfig(6, "15"),
	}
	w, cartUC, _ := setupWizardTest(t, configs, allMethods())
	addProduct(t, cartUC, "p1", "100", 2)
	addProduct(t, cartUC, "p2", "50", 1)
	w.Open()
	ctx := context.Background()

	moveTo(w, 2) // "go to payment"
	require.NoError(t, w.Confirm(ctx))
	require.Equal(t, StepPaymentMethod, w.Snapshot().Step)

	w.Next() // cash -> card
	require.NoError(t, w.Confirm(ctx))
	snap := w.Snapshot()
	require.Equal(t, StepCardDetails, snap.Step)
	require.Equal(t, SubStepType, snap.CardSubStep)

	// Bank-affiliated is the first fixed sub-type.
	require.NoError(t, w.Confirm(ctx))
	snap = w.Snapshot()
	require.Equal(t, SubStepInstallments, snap.CardSubStep)
	require.Len(t, snap.Installments, 3)
	assert.Equal(t, 1, snap.Selection.Installments, "reset to lowest configured installment")

	w.Next() // 1 -> 3 installments
	require.NoError(t, w.Confirm(ctx))
	snap = w.Snapshot()
	require.Equal(t, StepConfirm, snap.Step)

	assert.Equal(t, model.PaymentCard, snap.Selection.Method)
	assert.Equal(t, model.CardBankAffiliated, snap.Selection.CardSubType)
	assert.Equal(t, 3, snap.Selection.Installments)
}

func TestCardWithoutInstallmentOptionsSkipsStep(t *testing.T) {
	configs := []model.PaymentRateConfig{bankConfig(1, "2")}
	w, cartUC, _ := setupWizardTest(t, configs, allMethods())
	addProduct(t, cartUC, "p1", "100", 1)
	w.Open()
	ctx := context.Background()

	moveTo(w, 1)
	require.NoError(t, w.Confirm(ctx)) // -> payment method
	w.Next()                           // card
	require.NoError(t, w.Confirm(ctx)) // -> card details
	require.NoError(t, w.Confirm(ctx)) // bank affiliated, single installment

	snap := w.Snapshot()
	assert.Equal(t, StepConfirm, snap.Step)
	assert.Equal(t, 1, snap.Selection.Installments)
}

func TestCardSubTypeWithNoConfigsDefaultsToSingleInstallment(t *testing.T) {
	w, cartUC, _ := setupWizardTest(t, []model.PaymentRateConfig{bankConfig(3, "10")}, allMethods())
	addProduct(t, cartUC, "p1", "100", 1)
	w.Open()
	ctx := context.Background()

	moveTo(w, 1)
	require.NoError(t, w.Confirm(ctx))
	w.Next() // card
	require.NoError(t, w.Confirm(ctx))
	moveTo(w, 2)                       // store-branded, no configs
	require.NoError(t, w.Confirm(ctx)) // no installment step

	snap := w.Snapshot()
	assert.Equal(t, StepConfirm, snap.Step)
	assert.Equal(t, model.CardStoreBranded, snap.Selection.CardSubType)
	assert.Equal(t, 1, snap.Selection.Installments)
}

func TestBackFromCardTypeKeepsSelectedMethod(t *testing.T) {
	w, cartUC, _ := setupWizardTest(t, []model.PaymentRateConfig{bankConfig(3, "10")}, allMethods())
	addProduct(t, cartUC, "p1", "100", 1)
	w.Open()
	ctx := context.Background()

	moveTo(w, 1)
	require.NoError(t, w.Confirm(ctx))
	w.Next() // card
	require.NoError(t, w.Confirm(ctx))
	require.Equal(t, StepCardDetails, w.Snapshot().Step)

	w.Back()

	snap := w.Snapshot()
	assert.Equal(t, StepPaymentMethod, snap.Step)
	assert.Equal(t, model.PaymentCard, snap.Selection.Method, "selection kept as last set")
}

func TestBackFromInstallmentsReturnsToType(t *testing.T) {
	configs := []model.PaymentRateConfig{bankConfig(1, "0"), bankConfig(3, "10")}
	w, cartUC, _ := setupWizardTest(t, configs, allMethods())
	addProduct(t, cartUC, "p1", "100", 1)
	w.Open()
	ctx := context.Background()

	moveTo(w, 1)
	require.NoError(t, w.Confirm(ctx))
	w.Next()
	require.NoError(t, w.Confirm(ctx))
	require.NoError(t, w.Confirm(ctx)) // -> installments
	require.Equal(t, SubStepInstallments, w.Snapshot().CardSubStep)

	w.Back()

	snap := w.Snapshot()
	assert.Equal(t, StepCardDetails, snap.Step)
	assert.Equal(t, SubStepType, snap.CardSubStep)
}

func TestBackFromConfirmReturnsWhereItCameFrom(t *testing.T) {
	w, cartUC, _ := setupWizardTest(t, nil, allMethods())
	addProduct(t, cartUC, "p1", "100", 1)
	w.Open()
	ctx := context.Background()

	moveTo(w, 1)
	require.NoError(t, w.Confirm(ctx)) // -> payment method
	require.NoError(t, w.Confirm(ctx)) // cash -> confirm
	require.Equal(t, StepConfirm, w.Snapshot().Step)

	w.Back()

	assert.Equal(t, StepPaymentMethod, w.Snapshot().Step)
}

func TestBackFromPaymentMethodClosesWizard(t *testing.T) {
	w, cartUC, _ := setupWizardTest(t, nil, allMethods())
	addProduct(t, cartUC, "p1", "100", 1)
	w.Open()
	moveTo(w, 1)
	require.NoError(t, w.Confirm(context.Background()))

	w.Back()

	assert.False(t, w.Snapshot().Open)
}

func TestItemQuantityEditing(t *testing.T) {
	w, cartUC, _ := setupWizardTest(t, nil, allMethods())
	require.NoError(t, cartUC.AddItem(&model.Product{
		ID:    "p1",
		Name:  "Product p1",
		Price: decimal.RequireFromString("100"),
		Stock: 3,
	}, nil, 1, nil))
	w.Open()

	require.NoError(t, w.IncrementItem())
	assert.Equal(t, 2, cartUC.Lines()[0].Quantity)

	require.ErrorIs(t, func() error {
		_ = w.IncrementItem() // 3, at stock limit
		return w.IncrementItem()
	}(), cart.ErrInsufficientStock)

	require.NoError(t, w.DecrementItem())
	require.NoError(t, w.DecrementItem())
	require.NoError(t, w.DecrementItem()) // reaches zero, removes the line
	assert.Empty(t, cartUC.Lines())
}

func TestDeleteItem(t *testing.T) {
	w, cartUC, _ := setupWizardTest(t, nil, allMethods())
	addProduct(t, cartUC, "p1", "100", 1)
	addProduct(t, cartUC, "p2", "50", 1)
	w.Open()
	w.Next() // focus second line

	require.NoError(t, w.DeleteItem())

	lines := cartUC.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "p1", lines[0].ProductID)
}

func TestSubmitSuccessResetsWizardAndCart(t *testing.T) {
	configs := []model.PaymentRateConfig{bankConfig(3, "10")}
	w, cartUC, salesUC := setupWizardTest(t, configs, allMethods())
	addProduct(t, cartUC, "p1", "100", 1)
	w.Open()
	ctx := context.Background()

	moveTo(w, 1)
	require.NoError(t, w.Confirm(ctx)) // -> payment method
	require.NoError(t, w.Confirm(ctx)) // cash -> confirm
	require.NoError(t, w.Confirm(ctx)) // submit

	input := salesUC.lastInput()
	require.NotNil(t, input)
	assert.Equal(t, "pos", input.SaleType)
	assert.Equal(t, model.PaymentCash, input.Selection.Method)
	assert.True(t, input.Totals.Total.Equal(decimal.NewFromInt(121)), "total = %s", input.Totals.Total)

	snap := w.Snapshot()
	assert.True(t, snap.Open)
	assert.Equal(t, StepItems, snap.Step)
	assert.Empty(t, cartUC.Lines())
}

func TestSubmitFailureStaysInConfirmWithCartIntact(t *testing.T) {
	w, cartUC, salesUC := setupWizardTest(t, nil, allMethods())
	salesUC.err = errors.New("backend unavailable")
	addProduct(t, cartUC, "p1", "100", 1)
	w.Open()
	ctx := context.Background()

	moveTo(w, 1)
	require.NoError(t, w.Confirm(ctx))
	require.NoError(t, w.Confirm(ctx))
	err := w.Confirm(ctx)

	require.Error(t, err)
	snap := w.Snapshot()
	assert.Equal(t, StepConfirm, snap.Step)
	assert.Len(t, cartUC.Lines(), 1, "cart preserved for retry")
}

func TestTotalsRecomputedAtConfirmation(t *testing.T) {
	w, cartUC, salesUC := setupWizardTest(t, nil, allMethods())
	addProduct(t, cartUC, "p1", "100", 1)
	w.Open()
	ctx := context.Background()

	moveTo(w, 1)
	require.NoError(t, w.Confirm(ctx))
	require.NoError(t, w.Confirm(ctx)) // at CONFIRM now

	// The cart changes after the CONFIRM screen was reached.
	addProduct(t, cartUC, "p1", "100", 1)

	require.NoError(t, w.Confirm(ctx))

	input := salesUC.lastInput()
	require.NotNil(t, input)
	assert.True(t, input.Totals.Subtotal.Equal(decimal.NewFromInt(200)),
		"subtotal must reflect the cart at confirmation, got %s", input.Totals.Subtotal)
}

func TestAtMostOneInFlightSubmission(t *testing.T) {
	w, cartUC, salesUC := setupWizardTest(t, nil, allMethods())
	salesUC.delay = 100 * time.Millisecond
	addProduct(t, cartUC, "p1", "100", 1)
	w.Open()
	ctx := context.Background()

	moveTo(w, 1)
	require.NoError(t, w.Confirm(ctx))
	require.NoError(t, w.Confirm(ctx)) // at CONFIRM

	done := make(chan error, 1)
	go func() { done <- w.Confirm(ctx) }()
	time.Sleep(20 * time.Millisecond) // let the first submission start

	err := w.Confirm(ctx)

	require.ErrorIs(t, err, ErrSubmissionInFlight)
	require.NoError(t, <-done)
	salesUC.mu.Lock()
	defer salesUC.mu.Unlock()
	assert.Len(t, salesUC.submitted, 1)
}

func TestConfirmWhenClosed(t *testing.T) {
	w, _, _ := setupWizardTest(t, nil, allMethods())
	assert.ErrorIs(t, w.Confirm(context.Background()), ErrClosed)
}

func TestCursorWrapsAroundItemList(t *testing.T) {
	w, cartUC, _ := setupWizardTest(t, nil, allMethods())
	addProduct(t, cartUC, "p1", "100", 1)
	w.Open()

	// One line plus two virtual entries: size 3.
	w.Prev()
	assert.Equal(t, 2, w.Snapshot().Cursor)
	w.Next()
	assert.Equal(t, 0, w.Snapshot().Cursor)
}
