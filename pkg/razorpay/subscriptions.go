package razorpay

import (
	"context"
)

const planLookupPageSize = 100

// GetOrCreatePlan returns the recurring billing plan identified by the stable
// business key, creating it only when no plan carries that key yet. The key
// lives in the plan notes; lookup scans the account's plans before creating.
func (c *Client) GetOrCreatePlan(ctx context.Context, params PlanParams) (*Plan, error) {
	if existing, err := c.findPlanByKey(ctx, params.Key); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	data := map[string]any{
		"period":   "monthly",
		"interval": 1,
		"item": map[string]any{
			"name":        params.Name,
			"amount":      paiseFrom(params.Amount),
			"currency":    c.currency,
			"description": params.Description,
		},
		"notes": map[string]any{
			"plan_key": params.Key,
		},
	}

	body, err := c.call(ctx, "create plan", func() (map[string]any, error) {
		return c.sdk.Plan.Create(data, nil)
	})
	if err != nil {
		return nil, err
	}

	id, err := requireID("create plan", body)
	if err != nil {
		return nil, err
	}
	return &Plan{ID: id, Key: params.Key, Amount: params.Amount}, nil
}

func (c *Client) findPlanByKey(ctx context.Context, key string) (*Plan, error) {
	body, err := c.call(ctx, "list plans", func() (map[string]any, error) {
		return c.sdk.Plan.All(map[string]any{"count": planLookupPageSize}, nil)
	})
	if err != nil {
		return nil, err
	}

	for _, item := range itemsOf(body) {
		notes := notesOf(item)
		if notes == nil {
			continue
		}
		if planKey, ok := notes["plan_key"].(string); ok && planKey == key {
			plan := &Plan{ID: stringField(item, "id"), Key: key}
			if inner, ok := item["item"].(map[string]any); ok {
				plan.Amount = rupeesFrom(intField(inner, "amount"))
			}
			return plan, nil
		}
	}
	return nil, nil
}

// CreateSubscription provisions a recurring payment intent on a plan. When
// an upfront amount is present it rides the first invoice as an addon, so a
// rental deposit and the first month settle together.
func (c *Client) CreateSubscription(ctx context.Context, params SubscriptionParams) (*Subscription, error) {
	data := map[string]any{
		"plan_id":         params.PlanID,
		"total_count":     params.TotalCycles,
		"customer_notify": 1,
	}
	if len(params.Notes) > 0 {
		notes := make(map[string]any, len(params.Notes))
		for k, v := range params.Notes {
			notes[k] = v
		}
		data["notes"] = notes
	}
	if params.UpfrontAmount.IsPositive() {
		data["addons"] = []map[string]any{
			{
				"item": map[string]any{
					"name":     params.UpfrontLabel,
					"amount":   paiseFrom(params.UpfrontAmount),
					"currency": c.currency,
				},
			},
		}
	}

	body, err := c.call(ctx, "create subscription", func() (map[string]any, error) {
		return c.sdk.Subscription.Create(data, nil)
	})
	if err != nil {
		return nil, err
	}

	id, err := requireID("create subscription", body)
	if err != nil {
		return nil, err
	}
	return &Subscription{
		ID:       id,
		PlanID:   stringField(body, "plan_id"),
		Status:   stringField(body, "status"),
		ShortURL: stringField(body, "short_url"),
	}, nil
}

// FetchSubscriptionInvoices lists the invoices raised on a gateway
// subscription, newest included. A "paid" invoice is confirmed settlement.
func (c *Client) FetchSubscriptionInvoices(ctx context.Context, subscriptionID string) ([]Invoice, error) {
	body, err := c.call(ctx, "fetch subscription invoices", func() (map[string]any, error) {
		return c.sdk.Invoice.All(map[string]any{"subscription_id": subscriptionID}, nil)
	})
	if err != nil {
		return nil, err
	}

	var invoices []Invoice
	for _, item := range itemsOf(body) {
		invoices = append(invoices, Invoice{
			ID:        stringField(item, "id"),
			PaymentID: stringField(item, "payment_id"),
			Amount:    rupeesFrom(intField(item, "amount")),
			Status:    stringField(item, "status"),
		})
	}
	return invoices, nil
}
