package rabbitmq

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"bakery-orders/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationEnvelope(t *testing.T) {
	orderID := uint64(42)
	n := domain.Notification{
		ID:        "01HZX3K0000000000000000000",
		Type:      domain.EventStatusChanged,
		Title:     "Order status changed",
		Priority:  domain.PriorityMedium,
		OrderID:   &orderID,
		CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	body, err := json.Marshal(notificationEnvelope(n))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "order.status.changed", decoded["pattern"])
	assert.Equal(t, n.ID, decoded["id"])
	data := decoded["data"].(map[string]any)
	assert.Equal(t, float64(42), data["orderId"])
	assert.Equal(t, "MEDIUM", data["priority"])
}

func TestPublish_CancelledContext(t *testing.T) {
	p := &Publisher{exchange: "x"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Deliver(ctx, domain.Notification{Type: "t"}), context.Canceled)
}
