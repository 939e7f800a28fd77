//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "checkin/pkg/platform/audit"
	"checkin/pkg/platform/audit/store/kafka"
	"checkin/pkg/testutil/containers"
)

func TestKafkaStoreProducesKeyedRecords(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rp := containers.GetManager().GetRedpanda(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	const topic = "checkin.audit.test"
	producer, err := kafka.NewClient(rp.Brokers)
	require.NoError(t, err)
	defer producer.Close()

	require.NoError(t, kafka.EnsureTopic(ctx, producer, topic, 1, 1))
	require.NoError(t, kafka.EnsureTopic(ctx, producer, topic, 1, 1), "second call is a no-op")

	store := kafka.New(producer, topic)
	require.NoError(t, store.Append(ctx, audit.Event{
		Action:       string(audit.EventSyncConflictDetected),
		Subject:      "T-0010",
		RegistrantID: "R6",
		OperationID:  "op-1",
	}))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	var record *kgo.Record
	for record == nil {
		fetches := consumer.PollFetches(ctx)
		require.NoError(t, ctx.Err())
		fetches.EachRecord(func(r *kgo.Record) {
			if record == nil {
				record = r
			}
		})
	}

	require.Equal(t, "T-0010", string(record.Key))
	var event audit.Event
	require.NoError(t, json.Unmarshal(record.Value, &event))
	require.Equal(t, audit.CategorySecurity, event.Category)
	require.Equal(t, "R6", event.RegistrantID)
}
