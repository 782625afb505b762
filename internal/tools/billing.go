package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rahul/saarthi/internal/store"
)

// BillingTool answers refund-status lookups against the order store.
// An unknown order is a successful call with success=false in the
// payload, not an error.
type BillingTool struct {
	Store *store.OrderStore
}

func NewBillingTool(orders *store.OrderStore) *BillingTool {
	return &BillingTool{Store: orders}
}

func (b *BillingTool) Name() string {
	return "get_refund_status"
}

func (b *BillingTool) Description() string {
	return "Look up the refund status of an order by its order id (e.g. ORD-123)."
}

func (b *BillingTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"order_id": map[string]any{
				"type":        "string",
				"description": "The order identifier, e.g. ORD-123",
			},
		},
		"required": []string{"order_id"},
	}
}

func (b *BillingTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		OrderID string `json:"order_id"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}

	status, found, err := b.Store.GetRefundStatus(args.OrderID)
	if err != nil {
		return "", fmt.Errorf("billing lookup failed: %w", err)
	}

	var payload map[string]any
	if found {
		payload = map[string]any{
			"success":       true,
			"order_id":      args.OrderID,
			"refund_status": status,
		}
	} else {
		payload = map[string]any{
			"success":  false,
			"order_id": args.OrderID,
			"error":    fmt.Sprintf("Order ID '%s' not found in system.", args.OrderID),
		}
	}

	out, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
