package razorpay

import (
	"context"
)

// CreateOrder provisions a one-time payment intent.
func (c *Client) CreateOrder(ctx context.Context, params OrderParams) (*Order, error) {
	data := map[string]any{
		"amount":   paiseFrom(params.Amount),
		"currency": c.currency,
		"receipt":  params.Receipt,
	}
	if len(params.Notes) > 0 {
		notes := make(map[string]any, len(params.Notes))
		for k, v := range params.Notes {
			notes[k] = v
		}
		data["notes"] = notes
	}

	body, err := c.call(ctx, "create order", func() (map[string]any, error) {
		return c.sdk.Order.Create(data, nil)
	})
	if err != nil {
		return nil, err
	}

	id, err := requireID("create order", body)
	if err != nil {
		return nil, err
	}
	return &Order{
		ID:       id,
		Amount:   rupeesFrom(intField(body, "amount")),
		Currency: stringField(body, "currency"),
		Status:   stringField(body, "status"),
	}, nil
}

// FetchPaymentsForOrder lists the settlement attempts recorded against an
// order. Captured payments are the only ones that count as money received.
func (c *Client) FetchPaymentsForOrder(ctx context.Context, orderID string) ([]GatewayPayment, error) {
	body, err := c.call(ctx, "fetch order payments", func() (map[string]any, error) {
		return c.sdk.Order.Payments(orderID, nil, nil)
	})
	if err != nil {
		return nil, err
	}

	var payments []GatewayPayment
	for _, item := range itemsOf(body) {
		status := stringField(item, "status")
		payments = append(payments, GatewayPayment{
			ID:       stringField(item, "id"),
			OrderID:  stringField(item, "order_id"),
			Amount:   rupeesFrom(intField(item, "amount")),
			Status:   status,
			Method:   stringField(item, "method"),
			Captured: status == "captured",
		})
	}
	return payments, nil
}
