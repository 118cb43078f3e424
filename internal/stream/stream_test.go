package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"atmosfera/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis is an in-memory single-group stream.
type fakeRedis struct {
	mu        sync.Mutex
	entries   []redis.XMessage
	delivered int
	acked     []string
	groupErr  error
	xaddErr   error
}

func (f *fakeRedis) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.xaddErr != nil {
		return redis.NewStringResult("", f.xaddErr)
	}
	id := fmt.Sprintf("%d-0", len(f.entries)+1)
	f.entries = append(f.entries, redis.XMessage{ID: id, Values: a.Values.(map[string]interface{})})
	return redis.NewStringResult(id, nil)
}

func (f *fakeRedis) XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd {
	return redis.NewStatusResult("OK", f.groupErr)
}

func (f *fakeRedis) XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd {
	f.mu.Lock()
	pending := f.entries[f.delivered:]
	f.delivered = len(f.entries)
	f.mu.Unlock()

	if len(pending) == 0 {
		select {
		case <-ctx.Done():
			return redis.NewXStreamSliceCmdResult(nil, ctx.Err())
		case <-time.After(10 * time.Millisecond):
			return redis.NewXStreamSliceCmdResult(nil, redis.Nil)
		}
	}
	return redis.NewXStreamSliceCmdResult([]redis.XStream{{Stream: a.Streams[0], Messages: pending}}, nil)
}

func (f *fakeRedis) XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, ids...)
	return redis.NewIntResult(int64(len(ids)), nil)
}

func (f *fakeRedis) ackedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.acked...)
}

func sample() []models.Measurement {
	return []models.Measurement{{
		Timestamp:  time.Date(2024, 6, 1, 7, 0, 0, 0, time.UTC),
		StationRaw: "DKI1 Bunderan HI",
		StationKey: "dki1-bunderan-hi",
		PM25:       42,
		Category:   models.CategoryModerate,
		Features:   map[string]float64{"pm10": 60},
	}}
}

func TestPublishAndDecode(t *testing.T) {
	f := &fakeRedis{}
	p := NewPublisher(f, "aq")

	id, err := p.Publish(context.Background(), SourceCurrent, "DKI1 Bunderan HI", sample())
	require.NoError(t, err)
	require.Len(t, f.entries, 1)
	assert.Equal(t, id, f.entries[0].ID)

	msg, err := Decode(f.entries[0])
	require.NoError(t, err)
	assert.Equal(t, SourceCurrent, msg.Source)
	assert.NotEmpty(t, msg.ID)
	require.Len(t, msg.Measurements, 1)
	assert.Equal(t, 60.0, msg.Measurements[0].Features["pm10"])
	assert.True(t, msg.Measurements[0].Timestamp.Equal(sample()[0].Timestamp))
}

func TestPublish_Error(t *testing.T) {
	f := &fakeRedis{xaddErr: errors.New("connection refused")}
	_, err := NewPublisher(f, "aq").Publish(context.Background(), SourceCurrent, "x", sample())
	assert.ErrorContains(t, err, "connection refused")
}

func TestDecode_Malformed(t *testing.T) {
	_, err := Decode(redis.XMessage{ID: "1-0", Values: map[string]interface{}{"other": "x"}})
	assert.Error(t, err)

	_, err = Decode(redis.XMessage{ID: "1-0", Values: map[string]interface{}{payloadField: "{not json"}})
	assert.Error(t, err)
}

func TestConsumer_Run(t *testing.T) {
	f := &fakeRedis{groupErr: errors.New("BUSYGROUP Consumer Group name already exists")}
	p := NewPublisher(f, "aq")
	for i := 0; i < 3; i++ {
		_, err := p.Publish(context.Background(), SourceHistorical, "s", sample())
		require.NoError(t, err)
	}
	f.entries = append(f.entries, redis.XMessage{ID: "bad-0", Values: map[string]interface{}{payloadField: "nope"}})
	failing := f.entries[1].ID

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var handled int
	done := make(chan error, 1)
	go func() {
		done <- NewConsumer(f, ConsumerConfig{Stream: "aq", Group: "g", Block: 10 * time.Millisecond}).Run(ctx, func(ctx context.Context, msg Message) error {
			mu.Lock()
			defer mu.Unlock()
			handled++
			if handled == 2 {
				return errors.New("db down")
			}
			return nil
		})
	}()

	require.Eventually(t, func() bool { return len(f.ackedIDs()) == 3 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	acked := f.ackedIDs()
	assert.NotContains(t, acked, failing, "failed entries stay pending")
	assert.Contains(t, acked, "bad-0", "malformed entries are dropped")
}

func TestConsumer_GroupError(t *testing.T) {
	f := &fakeRedis{groupErr: errors.New("NOAUTH Authentication required")}
	err := NewConsumer(f, ConsumerConfig{Stream: "aq", Group: "g"}).Run(context.Background(), nil)
	assert.ErrorContains(t, err, "NOAUTH")
}

func TestIsBusyGroup(t *testing.T) {
	assert.True(t, isBusyGroup(errors.New("BUSYGROUP Consumer Group name already exists")))
	assert.False(t, isBusyGroup(errors.New("ERR no such key")))
	assert.False(t, isBusyGroup(nil))
}
