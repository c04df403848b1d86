package dispatch_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tartampluch/go-birthday-reminders/internal/dispatch"
	"github.com/tartampluch/go-birthday-reminders/internal/engine"
	"github.com/tartampluch/go-birthday-reminders/internal/model"
)

func TestDeferred_AcceptsWithoutArming(t *testing.T) {
	r := dispatch.NewRouter(dispatch.Deferred{}, nil, dispatch.Options{})
	e := model.PlanEntry{
		Key:     model.Key{PersonID: "alex", Channel: model.ChannelNotification},
		FireAt:  time.Now().Add(time.Hour),
		Payload: model.LocalPayload{Name: "Alex"},
	}

	rep := r.Apply(context.Background(), engine.Diff{ToCreate: []model.PlanEntry{e}})
	assert.True(t, rep.OK())
	assert.Equal(t, []model.Key{e.Key}, rep.Created)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, dispatch.Deferred{}.Schedule(ctx, e.Key, e.FireAt, model.LocalPayload{}), context.Canceled)
	assert.ErrorIs(t, dispatch.Deferred{}.Cancel(ctx, e.Key), context.Canceled)
}
