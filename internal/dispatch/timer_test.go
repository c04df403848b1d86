package dispatch_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-birthday-reminders/internal/dispatch"
	"github.com/tartampluch/go-birthday-reminders/internal/model"
)

func TestTimerDispatcher_Fires(t *testing.T) {
	got := make(chan dispatch.Notification, 1)
	d := dispatch.NewTimerDispatcher(func(n dispatch.Notification) { got <- n })
	defer d.Close()

	key := model.Key{PersonID: "alex", Slot: 0, Channel: model.ChannelAlarm}
	at := time.Now().Add(20 * time.Millisecond)
	p := model.LocalPayload{Name: "Alex", DaysBefore: 2, Vibrate: true}

	require.NoError(t, d.Schedule(context.Background(), key, at, p))
	assert.Equal(t, []model.Key{key}, d.Armed())

	select {
	case n := <-got:
		assert.Equal(t, key, n.Key)
		assert.Equal(t, p, n.Payload)
		assert.Equal(t, 2, n.DaysBefore)
		assert.True(t, n.FireAt.Equal(at))
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
	}

	assert.Eventually(t, func() bool { return len(d.Armed()) == 0 }, time.Second, 5*time.Millisecond)
}

func TestTimerDispatcher_CancelPreventsDelivery(t *testing.T) {
	got := make(chan dispatch.Notification, 1)
	d := dispatch.NewTimerDispatcher(func(n dispatch.Notification) { got <- n })
	defer d.Close()

	key := model.Key{PersonID: "alex", Slot: 0, Channel: model.ChannelNotification}
	require.NoError(t, d.Schedule(context.Background(), key, time.Now().Add(50*time.Millisecond), model.LocalPayload{}))
	require.NoError(t, d.Cancel(context.Background(), key))
	require.NoError(t, d.Cancel(context.Background(), key), "Cancel is idempotent")

	select {
	case <-got:
		t.Fatal("cancelled timer fired")
	case <-time.After(150 * time.Millisecond):
	}
	assert.Empty(t, d.Armed())
}

func TestTimerDispatcher_IdempotentSchedule(t *testing.T) {
	count := make(chan struct{}, 4)
	d := dispatch.NewTimerDispatcher(func(dispatch.Notification) { count <- struct{}{} })
	defer d.Close()

	key := model.Key{PersonID: "alex", Slot: 0, Channel: model.ChannelAlarm}
	at := time.Now().Add(30 * time.Millisecond)
	for i := 0; i < 3; i++ {
		require.NoError(t, d.Schedule(context.Background(), key, at, model.LocalPayload{Name: "Alex"}))
	}

	time.Sleep(200 * time.Millisecond)
	assert.Len(t, count, 1, "Repeated identical schedules arm a single timer")
}

func TestTimerDispatcher_RescheduleReplaces(t *testing.T) {
	got := make(chan dispatch.Notification, 2)
	d := dispatch.NewTimerDispatcher(func(n dispatch.Notification) { got <- n })
	defer d.Close()

	key := model.Key{PersonID: "alex", Slot: 0, Channel: model.ChannelAlarm}
	require.NoError(t, d.Schedule(context.Background(), key, time.Now().Add(time.Hour), model.LocalPayload{Name: "Alex"}))
	require.NoError(t, d.Schedule(context.Background(), key, time.Now().Add(10*time.Millisecond), model.LocalPayload{Name: "Alex"}))

	select {
	case n := <-got:
		assert.Equal(t, "Alex", n.Payload.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("rescheduled timer did not fire")
	}
	assert.Empty(t, d.Armed())
}

func TestTimerDispatcher_CancelledContext(t *testing.T) {
	d := dispatch.NewTimerDispatcher(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := d.Schedule(ctx, model.Key{PersonID: "a"}, time.Now(), model.LocalPayload{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, d.Armed())
}
