package razorpay

import "github.com/shopspring/decimal"

// OrderParams describes a one-time payment intent.
type OrderParams struct {
	Amount  decimal.Decimal
	Receipt string
	Notes   map[string]string
}

// Order is the gateway-side one-time payment intent.
type Order struct {
	ID       string
	Amount   decimal.Decimal
	Currency string
	Status   string
}

// PlanParams describes a recurring billing plan. Key is the stable business
// key used for idempotent lookup-or-create; it is stored in the plan notes.
type PlanParams struct {
	Key         string
	Name        string
	Amount      decimal.Decimal
	Description string
}

// Plan is the gateway-side recurring billing plan.
type Plan struct {
	ID     string
	Key    string
	Amount decimal.Decimal
}

// SubscriptionParams describes a recurring payment intent on a plan. The
// upfront amount, when non-zero, is charged as an addon on the first invoice.
type SubscriptionParams struct {
	PlanID        string
	TotalCycles   int
	UpfrontAmount decimal.Decimal
	UpfrontLabel  string
	Notes         map[string]string
}

// Subscription is the gateway-side recurring payment intent.
type Subscription struct {
	ID       string
	PlanID   string
	Status   string
	ShortURL string
}

// GatewayPayment is a settlement attempt reported by the gateway for an
// order or a subscription invoice.
type GatewayPayment struct {
	ID       string
	OrderID  string
	Amount   decimal.Decimal
	Status   string
	Method   string
	Captured bool
}

// Invoice is one billing-cycle invoice on a gateway subscription.
type Invoice struct {
	ID        string
	PaymentID string
	Amount    decimal.Decimal
	Status    string
}

const paisePerRupee = 100

// paiseFrom converts a rupee amount to the paise integer the gateway expects.
func paiseFrom(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(paisePerRupee)).IntPart()
}

// rupeesFrom converts a gateway paise amount back to rupees.
func rupeesFrom(paise int64) decimal.Decimal {
	return decimal.NewFromInt(paise).Div(decimal.NewFromInt(paisePerRupee))
}
