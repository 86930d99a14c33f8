package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeStampsOccurredAt(t *testing.T) {
	payload, err := Encode(OrderStatusChanged{OrderID: "o-1", FromStatus: "Waiting", ToStatus: "Expired", Reason: "grace_period"})
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, "o-1", decoded["order_id"])
	assert.Equal(t, "grace_period", decoded["reason"])
	assert.NotEmpty(t, decoded["occurred_at"])
	assert.NotContains(t, decoded, "teacher_id")
}

func TestConnectWithoutURLIsNoop(t *testing.T) {
	pub, err := Connect("", "essay.orders.status", nil)
	require.NoError(t, err)
	assert.IsType(t, NopPublisher{}, pub)
	assert.NoError(t, pub.PublishOrderStatus(context.Background(), OrderStatusChanged{OrderID: "o-1", OccurredAt: time.Now()}))
	pub.Close()
}

func TestNATSPublisherRequiresConnection(t *testing.T) {
	pub := NewNATSPublisher(nil, "essay.orders.status")
	assert.Error(t, pub.PublishOrderStatus(context.Background(), OrderStatusChanged{OrderID: "o-1"}))
}
