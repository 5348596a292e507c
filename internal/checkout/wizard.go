// Package checkout drives the keyboard-navigable checkout wizard: item
// review, payment method selection, card details when applicable, and
// confirmation. Step sequencing varies with the backend-configured payment
// rate configs.
package checkout

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fekuna/omnipos-checkout-service/internal/cart"
	"github.com/fekuna/omnipos-checkout-service/internal/model"
	"github.com/fekuna/omnipos-checkout-service/internal/pricing"
	"github.com/fekuna/omnipos-checkout-service/internal/sales"
	"github.com/fekuna/omnipos-checkout-service/internal/sales/dto"
	"github.com/fekuna/omnipos-checkout-service/pkg/logger"
)

type Step int

const (
	StepItems Step = iota
	StepPaymentMethod
	StepCardDetails
	StepConfirm
)

type CardSubStep int

const (
	SubStepType CardSubStep = iota
	SubStepInstallments
)

var (
	ErrClosed             = errors.New("wizard is not open")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrNoPaymentMethods   = errors.New("no payment methods configured")
	ErrSubmissionInFlight = errors.New("a submission is already in flight")
)

// Wizard is the checkout state machine. All reads of current state go through
// Snapshot; inputs are explicit method calls. It is safe for interleaved use
// from timer and UI callbacks.
type Wizard struct {
	mu     sync.Mutex
	cart   cart.UseCase
	sales  sales.UseCase
	logger logger.ZapLogger

	saleType string
	methods  []model.PaymentMethod
	configs  []model.PaymentRateConfig
	taxRate  decimal.Decimal

	open    bool
	session uint64 // invalidates submissions that outlive a close/reopen
	step    Step
	cardSub CardSubStep

	// CONFIRM remembers where it was entered from so Back can return there.
	confirmFrom    Step
	confirmFromSub CardSubStep

	itemCursor   int
	methodCursor int
	typeCursor   int
	instCursor   int

	selection  model.PaymentSelection
	submitting bool
}

func NewWizard(cartUC cart.UseCase, salesUC sales.UseCase, saleType string, methods []model.PaymentMethod, configs []model.PaymentRateConfig, taxRate decimal.Decimal, log logger.ZapLogger) *Wizard {
	return &Wizard{
		cart:     cartUC,
		sales:    salesUC,
		saleType: saleType,
		methods:  methods,
		configs:  configs,
		taxRate:  taxRate,
		logger:   log,
	}
}

// SetRateConfigs swaps the active rate config set, e.g. after a refetch.
func (w *Wizard) SetRateConfigs(configs []model.PaymentRateConfig) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.configs = configs
}

// Open starts a fresh wizard session at ITEMS with a cash default.
func (w *Wizard) Open() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.session++
	w.open = true
	w.resetLocked()
}

// Close discards the session. A partially built selection is never applied.
func (w *Wizard) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.session++
	w.open = false
	w.resetLocked()
}

func (w *Wizard) resetLocked() {
	w.step = StepItems
	w.cardSub = SubStepType
	w.itemCursor = 0
	w.methodCursor = 0
	w.typeCursor = 0
	w.instCursor = 0
	w.selection = model.DefaultSelection()
	w.submitting = false
}

// Next moves the cursor forward in the current list, wrapping.
func (w *Wizard) Next() {
	w.moveCursor(1)
}

// Prev moves the cursor backward in the current list, wrapping.
func (w *Wizard) Prev() {
	w.moveCursor(-1)
}

func (w *Wizard) moveCursor(delta int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.open {
		return
	}

	cursor, size := w.cursorLocked()
	if size == 0 {
		return
	}
	*cursor = ((*cursor+delta)%size + size) % size
}

// cursorLocked returns the active cursor and its list size.
func (w *Wizard) cursorLocked() (*int, int) {
	switch w.step {
	case StepItems:
		// Cart lines plus the two virtual entries (go to payment, clear cart).
		return &w.itemCursor, len(w.cart.Lines()) + 2
	case StepPaymentMethod:
		return &w.methodCursor, len(w.methods)
	case StepCardDetails:
		if w.cardSub == SubStepType {
			return &w.typeCursor, len(model.AllCardSubTypes())
		}
		return &w.instCursor, len(pricing.ConfigsFor(w.selection.CardSubType, w.configs))
	default:
		var none int
		return &none, 0
	}
}

// Confirm applies the current cursor choice: it advances the step, or at
// CONFIRM submits the sale. Submission success resets the wizard to ITEMS
// with an emptied cart; failure stays in CONFIRM with the cart preserved.
func (w *Wizard) Confirm(ctx context.Context) error {
	w.mu.Lock()

	if !w.open {
		w.mu.Unlock()
		return ErrClosed
	}

	switch w.step {
	case StepItems:
		err := w.confirmItemsLocked()
		w.mu.Unlock()
		return err

	case StepPaymentMethod:
		w.selection.Method = w.methods[w.methodCursor]
		if w.selection.Method == model.PaymentCard {
			w.step = StepCardDetails
			w.cardSub = SubStepType
			w.typeCursor = indexOfSubType(w.selection.CardSubType)
		} else {
			w.enterConfirmLocked(StepPaymentMethod, SubStepType)
		}
		w.mu.Unlock()
		return nil

	case StepCardDetails:
		w.confirmCardDetailsLocked()
		w.mu.Unlock()
		return nil

	case StepConfirm:
		return w.submitLocked(ctx) // unlocks internally

	default:
		w.mu.Unlock()
		return nil
	}
}

func (w *Wizard) confirmItemsLocked() error {
	lines := w.cart.Lines()
	switch {
	case w.itemCursor == len(lines): // go to payment
		if len(lines) == 0 {
			return ErrEmptyCart
		}
		if len(w.methods) == 0 {
			// Configuration error, not a crash: the wizard stays at ITEMS.
			return ErrNoPaymentMethods
		}
		w.step = StepPaymentMethod
		w.methodCursor = indexOfMethod(w.selection.Method, w.methods)
		return nil

	case w.itemCursor == len(lines)+1: // clear cart
		w.cart.Clear()
		w.itemCursor = 0
		return nil

	default:
		// Confirming on an item line is a no-op; quantity edits go through
		// IncrementItem/DecrementItem/DeleteItem.
		return nil
	}
}

func (w *Wizard) confirmCardDetailsLocked() {
	if w.cardSub == SubStepType {
		sub := model.AllCardSubTypes()[w.typeCursor]
		w.selection.CardSubType = sub
		w.selection.Installments = pricing.LowestInstallment(sub, w.configs)
		if pricing.HasInstallmentOptions(sub, w.configs) {
			w.cardSub = SubStepInstallments
			w.instCursor = 0
			return
		}
		w.enterConfirmLocked(StepCardDetails, SubStepType)
		return
	}

	cfgs := pricing.ConfigsFor(w.selection.CardSubType, w.configs)
	if w.instCursor < len(cfgs) {
		w.selection.Installments = cfgs[w.instCursor].InstallmentCount
	}
	w.enterConfirmLocked(StepCardDetails, SubStepInstallments)
}

func (w *Wizard) enterConfirmLocked(from Step, fromSub CardSubStep) {
	w.confirmFrom = from
	w.confirmFromSub = fromSub
	w.step = StepConfirm
}

// submitLocked is entered with the mutex held and releases it around the
// blocking submission call.
func (w *Wizard) submitLocked(ctx context.Context) error {
	if w.submitting {
		w.mu.Unlock()
		return ErrSubmissionInFlight
	}

	lines := w.cart.Lines()
	if len(lines) == 0 {
		w.mu.Unlock()
		return ErrEmptyCart
	}

	// Totals are recomputed from cart+selection at this instant, never taken
	// from an earlier render.
	selection := w.selection
	totals := pricing.ComputeTotals(lines, selection, w.configs, w.taxRate)
	input := &dto.SubmitSaleInput{
		SaleType:  w.saleType,
		Selection: selection,
		Items:     lines,
		Totals:    totals,
	}

	w.submitting = true
	session := w.session
	w.mu.Unlock()

	sale, err := w.sales.Submit(ctx, input)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.session != session {
		// The wizard was closed or reopened while the request was in flight;
		// this session's outcome no longer applies.
		return err
	}
	w.submitting = false

	if err != nil {
		w.logger.Error("sale submission failed", zap.Error(err))
		return err
	}

	w.logger.Info("checkout completed", zap.String("sale_id", sale.ID))
	w.cart.Clear()
	w.resetLocked()
	return nil
}

// Back returns one step backward. From PAYMENT_METHOD (or ITEMS) the wizard
// closes. The in-progress selection is kept as last set, not reset.
func (w *Wizard) Back() {
	w.mu.Lock()

	if !w.open || w.submitting {
		w.mu.Unlock()
		return
	}

	switch w.step {
	case StepConfirm:
		w.step = w.confirmFrom
		w.cardSub = w.confirmFromSub
		w.mu.Unlock()

	case StepCardDetails:
		if w.cardSub == SubStepInstallments {
			w.cardSub = SubStepType
		} else {
			w.step = StepPaymentMethod
		}
		w.mu.Unlock()

	case StepPaymentMethod, StepItems:
		w.mu.Unlock()
		w.Close()

	default:
		w.mu.Unlock()
	}
}

// IncrementItem raises the focused line's quantity by one.
func (w *Wizard) IncrementItem() error {
	return w.adjustItem(+1)
}

// DecrementItem lowers the focused line's quantity by one; zero removes it.
func (w *Wizard) DecrementItem() error {
	return w.adjustItem(-1)
}

func (w *Wizard) adjustItem(delta int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	line, ok := w.focusedLineLocked()
	if !ok {
		return nil
	}
	err := w.cart.UpdateQuantity(line.ID, line.Quantity+delta, nil)
	w.clampItemCursorLocked()
	return err
}

// DeleteItem removes the focused line.
func (w *Wizard) DeleteItem() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	line, ok := w.focusedLineLocked()
	if !ok {
		return nil
	}
	err := w.cart.RemoveItem(line.ID)
	w.clampItemCursorLocked()
	return err
}

func (w *Wizard) focusedLineLocked() (model.CartLine, bool) {
	if !w.open || w.step != StepItems {
		return model.CartLine{}, false
	}
	lines := w.cart.Lines()
	if w.itemCursor >= len(lines) {
		return model.CartLine{}, false
	}
	return lines[w.itemCursor], true
}

func (w *Wizard) clampItemCursorLocked() {
	max := len(w.cart.Lines()) + 1
	if w.itemCursor > max {
		w.itemCursor = max
	}
}

// Snapshot is an explicit copy of the wizard state for rendering. Callers
// never read live fields.
type Snapshot struct {
	Open         bool
	Step         Step
	CardSubStep  CardSubStep
	Cursor       int
	Lines        []model.CartLine
	Methods      []model.PaymentMethod
	CardSubTypes []model.CardSubType
	Installments []model.PaymentRateConfig
	Selection    model.PaymentSelection
	Totals       model.Totals
	Submitting   bool
}

func (w *Wizard) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	lines := w.cart.Lines()
	cursor, _ := w.cursorLocked()
	return Snapshot{
		Open:         w.open,
		Step:         w.step,
		CardSubStep:  w.cardSub,
		Cursor:       *cursor,
		Lines:        lines,
		Methods:      w.methods,
		CardSubTypes: model.AllCardSubTypes(),
		Installments: pricing.ConfigsFor(w.selection.CardSubType, w.configs),
		Selection:    w.selection,
		Totals:       pricing.ComputeTotals(lines, w.selection, w.configs, w.taxRate),
		Submitting:   w.submitting,
	}
}

// Totals recomputes the current totals from the cart and selection.
func (w *Wizard) Totals() model.Totals {
	w.mu.Lock()
	defer w.mu.Unlock()
	return pricing.ComputeTotals(w.cart.Lines(), w.selection, w.configs, w.taxRate)
}

func indexOfMethod(m model.PaymentMethod, methods []model.PaymentMethod) int {
	for i, candidate := range methods {
		if candidate == m {
			return i
		}
	}
	return 0
}

func indexOfSubType(t model.CardSubType) int {
	for i, candidate := range model.AllCardSubTypes() {
		if candidate == t {
			return i
		}
	}
	return 0
}
