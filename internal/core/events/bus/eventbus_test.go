package bus

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/rigidbody/internal/core/observability/log"
)

type testObserver struct {
	published int
	delivered int
	lastErr   error
}

func (o *testObserver) OnPublish(string, Event) { o.published++ }

func (o *testObserver) OnDelivered(_ string, _ Event, handlers int, err error, _ time.Duration) {
	o.delivered += handlers
	o.lastErr = err
}

func TestPublishSubscribe(t *testing.T) {
	b := New()
	var got Event
	_, err := b.Subscribe(TypeCollisionBegin, func(e Event) error {
		got = e
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, b.Publish(NewEvent(TypeCollisionBegin, "test", 7, 123)))
	require.NotNil(t, got)
	assert.Equal(t, uint64(7), got.Tick())
	assert.Equal(t, 123, got.Data())
	assert.Equal(t, "test", got.Source())
}

func TestDeliveryFollowsSubscriptionOrder(t *testing.T) {
	b := New()
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		_, err := b.Subscribe("ev", func(Event) error {
			order = append(order, i)
			return nil
		})
		require.NoError(t, err)
	}
	require.NoError(t, b.Publish(NewEvent("ev", "", 0, nil)))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestBatchKeepsEventOrder(t *testing.T) {
	b := New()
	var seen []string
	record := func(e Event) error {
		seen = append(seen, e.Type())
		return nil
	}
	_, _ = b.Subscribe(TypeCollisionBegin, record)
	_, _ = b.Subscribe(TypeCollisionEnd, record)

	require.NoError(t, b.PublishBatch(
		NewEvent(TypeCollisionBegin, "", 1, nil),
		NewEvent(TypeCollisionEnd, "", 1, nil),
	))
	assert.Equal(t, []string{TypeCollisionBegin, TypeCollisionEnd}, seen)
}

func TestHandlerErrorsAreJoined(t *testing.T) {
	b := New()
	errA := errors.New("a")
	errB := errors.New("b")
	_, _ = b.Subscribe("x", func(Event) error { return errA })
	_, _ = b.Subscribe("x", func(Event) error { return errB })

	err := b.Publish(NewEvent("x", "", 0, nil))
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
}

func TestTopicsIsolation(t *testing.T) {
	b := New()
	var one, two int
	_, _ = b.SubscribeTopic("t1", "ev", func(Event) error { one++; return nil })
	_, _ = b.SubscribeTopic("t2", "ev", func(Event) error { two++; return nil })

	require.NoError(t, b.PublishToTopic("t1", NewEvent("ev", "", 0, nil)))
	assert.Equal(t, 1, one)
	assert.Equal(t, 0, two)
	assert.Equal(t, "body/42", BodyTopic(42))
}

func TestCancelStopsDelivery(t *testing.T) {
	b := New()
	calls := 0
	sub, err := b.Subscribe("ev", func(Event) error { calls++; return nil })
	require.NoError(t, err)

	require.NoError(t, b.Unsubscribe(sub))
	require.NoError(t, sub.Cancel())
	assert.False(t, sub.IsActive())
	require.NoError(t, b.Publish(NewEvent("ev", "", 0, nil)))
	assert.Zero(t, calls)
	assert.NoError(t, b.Unsubscribe(nil))
}

func TestCancelDuringDelivery(t *testing.T) {
	b := New()
	var second Subscription
	calls := 0
	_, _ = b.Subscribe("ev", func(Event) error {
		return second.Cancel()
	})
	second, _ = b.Subscribe("ev", func(Event) error { calls++; return nil })

	require.NoError(t, b.Publish(NewEvent("ev", "", 0, nil)))
	assert.Zero(t, calls, "a subscription cancelled mid-delivery is skipped")
}

func TestSubscribeValidation(t *testing.T) {
	b := New()
	_, err := b.Subscribe("ev", nil)
	assert.ErrorIs(t, err, ErrNilHandler)
	_, err = b.Subscribe("", func(Event) error { return nil })
	assert.ErrorIs(t, err, ErrEmptyEventType)
}

func TestMetricsAndObservers(t *testing.T) {
	b := New()
	_, _ = b.Subscribe("e", func(Event) error { return nil })
	_, _ = b.SubscribeTopic(BodyTopic(1), "e", func(Event) error { return errors.New("boom") })

	require.NoError(t, b.Publish(NewEvent("e", "", 0, nil)))
	m := b.Metrics()
	assert.Equal(t, uint64(1), m.Published, "metrics are counted without observers")
	assert.Equal(t, uint64(1), m.DeliveredHandlers)
	assert.Equal(t, uint64(2), m.SubscribersActive)
	assert.Equal(t, uint64(2), m.Topics)

	obs := &testObserver{}
	b.AddObserver(obs)
	require.Error(t, b.PublishToTopic(BodyTopic(1), NewEvent("e", "", 0, nil)))
	assert.Equal(t, 1, obs.published)
	assert.Equal(t, 1, obs.delivered)
	assert.Error(t, obs.lastErr)
	assert.Equal(t, uint64(1), b.Metrics().Errors)

	b.RemoveObserver(obs)
	require.NoError(t, b.Publish(NewEvent("e", "", 0, nil)))
	assert.Equal(t, 1, obs.published)
	assert.Equal(t, uint64(3), b.Metrics().Published)
}

// baseLog renames the embedded interface so its field does not shadow the
// promoted Log method.
type baseLog = log.Log

type warnRecorder struct {
	baseLog
	warnings []string
}

func (r *warnRecorder) With(...log.Field) log.Log { return r }

func (r *warnRecorder) Warn(msg string, _ ...log.Field) { r.warnings = append(r.warnings, msg) }

func TestLogObserverReportsFailuresAndSlowDeliveries(t *testing.T) {
	rec := &warnRecorder{}
	b := New()
	b.AddObserver(NewLogObserver(rec, time.Millisecond))

	_, _ = b.Subscribe("ok", func(Event) error { return nil })
	_, _ = b.Subscribe("bad", func(Event) error { return errors.New("boom") })
	_, _ = b.Subscribe("slow", func(Event) error {
		time.Sleep(5 * time.Millisecond)
		return nil
	})

	require.NoError(t, b.Publish(NewEvent("ok", "", 0, nil)))
	assert.Empty(t, rec.warnings)

	require.Error(t, b.Publish(NewEvent("bad", "", 0, nil)))
	require.NoError(t, b.Publish(NewEvent("slow", "", 0, nil)))
	assert.Equal(t, []string{"event handlers failed", "slow event delivery"}, rec.warnings)
}
