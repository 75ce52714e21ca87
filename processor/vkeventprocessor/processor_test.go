// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package vkeventprocessor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/collector/component/componenttest"
	"go.opentelemetry.io/collector/consumer/consumertest"
	"go.opentelemetry.io/collector/pdata/plog"
	"go.opentelemetry.io/collector/processor/processortest"
	"go.uber.org/zap/zaptest"
)

type testEvent struct {
	eventType string
	eventID   string
}

func newEventLogs(groupID int64, events ...testEvent) plog.Logs {
	ld := plog.NewLogs()
	rl := ld.ResourceLogs().AppendEmpty()
	rl.Resource().Attributes().PutInt(attrGroupID, groupID)
	sl := rl.ScopeLogs().AppendEmpty()
	sl.Scope().SetName("vklongpollreceiver")
	for _, ev := range events {
		lr := sl.LogRecords().AppendEmpty()
		lr.Attributes().PutStr(attrEventType, ev.eventType)
		if ev.eventID != "" {
			lr.Attributes().PutStr(attrEventID, ev.eventID)
		}
		lr.Body().SetStr(ev.eventType)
	}
	return ld
}

func eventTypes(t *testing.T, logs []plog.Logs) []string {
	t.Helper()
	var types []string
	for _, ld := range logs {
		for i := 0; i < ld.ResourceLogs().Len(); i++ {
			rl := ld.ResourceLogs().At(i)
			for j := 0; j < rl.ScopeLogs().Len(); j++ {
				records := rl.ScopeLogs().At(j).LogRecords()
				for k := 0; k < records.Len(); k++ {
					types = append(types, records.At(k).Body().Str())
				}
			}
		}
	}
	return types
}

func newTestProcessor(t *testing.T, cfg *Config, next *consumertest.LogsSink) *vkEventProcessor {
	t.Helper()
	p, err := newVKEventProcessor(processortest.NewNopSettingsWithType(Type), cfg, next)
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background(), componenttest.NewNopHost()))
	t.Cleanup(func() { require.NoError(t, p.Shutdown(context.Background())) })
	return p
}

func TestFactory(t *testing.T) {
	factory := NewFactory()
	assert.Equal(t, Type, factory.Type())

	p, err := factory.CreateLogs(
		context.Background(),
		processortest.NewNopSettingsWithType(Type),
		factory.CreateDefaultConfig(),
		consumertest.NewNop(),
	)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.False(t, p.Capabilities().MutatesData)
	require.NoError(t, p.Start(context.Background(), componenttest.NewNopHost()))
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestProcessor_FiltersTypes(t *testing.T) {
	cfg := createDefaultConfig().(*Config)
	cfg.IncludeTypes = []string{"message_new", "message_reply", "wall_post_new"}
	cfg.ExcludeTypes = []string{"message_reply"}
	cfg.Dedup.Enabled = false

	sink := &consumertest.LogsSink{}
	p := newTestProcessor(t, cfg, sink)

	ld := newEventLogs(1,
		testEvent{eventType: "message_new"},
		testEvent{eventType: "message_reply"},
		testEvent{eventType: "group_join"},
		testEvent{eventType: "wall_post_new"},
	)
	require.NoError(t, p.ConsumeLogs(context.Background(), ld))

	assert.Equal(t, []string{"message_new", "wall_post_new"}, eventTypes(t, sink.AllLogs()))
	assert.Equal(t, 4, ld.LogRecordCount(), "input is not mutated")
}

func TestProcessor_AllFilteredSkipsNext(t *testing.T) {
	cfg := createDefaultConfig().(*Config)
	cfg.ExcludeTypes = []string{"typing"}

	sink := &consumertest.LogsSink{}
	p := newTestProcessor(t, cfg, sink)

	require.NoError(t, p.ConsumeLogs(context.Background(), newEventLogs(1, testEvent{eventType: "typing"})))
	assert.Empty(t, sink.AllLogs())
}

func TestProcessor_DropsDuplicates(t *testing.T) {
	sink := &consumertest.LogsSink{}
	p := newTestProcessor(t, createDefaultConfig().(*Config), sink)
	ctx := context.Background()

	require.NoError(t, p.ConsumeLogs(ctx, newEventLogs(1,
		testEvent{eventType: "message_new", eventID: "a"},
		testEvent{eventType: "message_edit", eventID: "b"},
	)))
	// Same ids again, plus one in another community and one without id.
	require.NoError(t, p.ConsumeLogs(ctx, newEventLogs(1,
		testEvent{eventType: "message_new", eventID: "a"},
		testEvent{eventType: "group_join"},
	)))
	require.NoError(t, p.ConsumeLogs(ctx, newEventLogs(2,
		testEvent{eventType: "message_edit", eventID: "b"},
	)))

	assert.Equal(t,
		[]string{"message_new", "message_edit", "group_join", "message_edit"},
		eventTypes(t, sink.AllLogs()))

	accepted, duplicates, _, _ := p.seen.stats()
	assert.Equal(t, int64(3), accepted)
	assert.Equal(t, int64(1), duplicates)
}

func TestProcessor_ForgetsOnConsumerError(t *testing.T) {
	cfg := createDefaultConfig().(*Config)
	errConsumer := consumertest.NewErr(errors.New("pipeline full"))

	p, err := newVKEventProcessor(processortest.NewNopSettingsWithType(Type), cfg, errConsumer)
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background(), componenttest.NewNopHost()))
	defer func() { require.NoError(t, p.Shutdown(context.Background())) }()

	ld := newEventLogs(1, testEvent{eventType: "message_new", eventID: "a"})
	require.Error(t, p.ConsumeLogs(context.Background(), ld))

	// The redelivered event must not be treated as a duplicate.
	sink := &consumertest.LogsSink{}
	p.nextConsumer = sink
	require.NoError(t, p.ConsumeLogs(context.Background(), ld))
	assert.Equal(t, 1, sink.LogRecordCount())
}

func TestProcessor_StartFailsWithoutStorage(t *testing.T) {
	cfg := createDefaultConfig().(*Config)
	cfg.Dedup.StorageExtension = "vkstorage"

	p, err := newVKEventProcessor(processortest.NewNopSettingsWithType(Type), cfg, consumertest.NewNop())
	require.NoError(t, err)
	err = p.Start(context.Background(), componenttest.NewNopHost())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSharedSeen_FailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	shared := &sharedSeen{
		client: client,
		prefix: "vk:event:seen",
		ttl:    time.Minute,
		logger: zaptest.NewLogger(t),
	}
	assert.Equal(t, "vk:event:seen:1:a", shared.key("1:a"))

	ctx := context.Background()
	assert.True(t, shared.markIfNew(ctx, "1:a"))
	assert.True(t, shared.markIfNew(ctx, "1:a"))
	shared.forget(ctx, []string{"1:a"})
}

func newSharedSeen(t *testing.T) (*miniredis.Miniredis, *sharedSeen) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, &sharedSeen{
		client: client,
		prefix: "vk:event:seen",
		ttl:    time.Minute,
		logger: zaptest.NewLogger(t),
	}
}

func TestSharedSeen_MarksAndForgets(t *testing.T) {
	mr, shared := newSharedSeen(t)
	ctx := context.Background()

	assert.True(t, shared.markIfNew(ctx, "1:a"))
	assert.False(t, shared.markIfNew(ctx, "1:a"))
	assert.True(t, shared.markIfNew(ctx, "1:b"))
	assert.Equal(t, time.Minute, mr.TTL("vk:event:seen:1:a"))

	shared.forget(ctx, []string{"1:a", "1:b"})
	assert.False(t, mr.Exists("vk:event:seen:1:a"))
	assert.False(t, mr.Exists("vk:event:seen:1:b"))
	assert.True(t, shared.markIfNew(ctx, "1:a"))

	mr.FastForward(2 * time.Minute)
	assert.True(t, shared.markIfNew(ctx, "1:a"), "expired id is accepted again")
}

func TestProcessor_SharedDedupAcrossInstances(t *testing.T) {
	_, shared := newSharedSeen(t)

	newProcessor := func(next *consumertest.LogsSink) *vkEventProcessor {
		p, err := newVKEventProcessor(processortest.NewNopSettingsWithType(Type), createDefaultConfig().(*Config), next)
		require.NoError(t, err)
		p.shared = shared
		return p
	}

	firstSink, secondSink := &consumertest.LogsSink{}, &consumertest.LogsSink{}
	first, second := newProcessor(firstSink), newProcessor(secondSink)

	ld := newEventLogs(7,
		testEvent{eventType: "message_new", eventID: "a"},
		testEvent{eventType: "message_new", eventID: "b"},
	)
	require.NoError(t, first.ConsumeLogs(context.Background(), ld))
	assert.Equal(t, 2, firstSink.LogRecordCount())

	ld = newEventLogs(7,
		testEvent{eventType: "message_new", eventID: "b"},
		testEvent{eventType: "message_new", eventID: "c"},
	)
	require.NoError(t, second.ConsumeLogs(context.Background(), ld))
	assert.Equal(t, 1, secondSink.LogRecordCount(), "b was already taken by the other collector")
}

func TestProcessor_ForgetsSharedOnConsumerError(t *testing.T) {
	mr, shared := newSharedSeen(t)

	p, err := newVKEventProcessor(processortest.NewNopSettingsWithType(Type), createDefaultConfig().(*Config),
		consumertest.NewErr(errors.New("downstream unavailable")))
	require.NoError(t, err)
	p.shared = shared

	ld := newEventLogs(3, testEvent{eventType: "message_new", eventID: "x"})
	require.Error(t, p.ConsumeLogs(context.Background(), ld))
	assert.False(t, mr.Exists("vk:event:seen:3:x"))
}
