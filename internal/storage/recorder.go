package storage

import (
	"context"
	"strings"
	"time"

	"autopub/internal/dispatch"
	"autopub/internal/eventbus"
	"autopub/pkg/logx"
)

// Recorder turns job lifecycle events from the bus into audit rows.
// Appends are best-effort; a failed write is logged and dropped.
type Recorder struct {
	store Store
	bus   eventbus.Bus
	log   logx.Logger

	sub  *eventbus.Subscription
	done chan struct{}
}

func NewRecorder(store Store, bus eventbus.Bus, log logx.Logger) *Recorder {
	return &Recorder{store: store, bus: bus, log: log}
}

func (r *Recorder) Start(ctx context.Context) {
	if r.store == nil || r.bus == nil {
		return
	}
	r.sub = r.bus.Subscribe(64)
	r.done = make(chan struct{})
	go r.loop(ctx)
}

func (r *Recorder) Stop() {
	if r.sub == nil {
		return
	}
	r.sub.Close()
	<-r.done
}

func (r *Recorder) loop(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-r.sub.C:
			if !ok {
				return
			}
			r.record(ctx, e)
		}
	}
}

func (r *Recorder) record(ctx context.Context, e eventbus.Event) {
	ev, ok := e.Data.(dispatch.JobEvent)
	if !ok {
		return
	}
	state := strings.TrimPrefix(e.Type, "job.")
	rec := JobRecord{
		At:       e.Time,
		JobID:    ev.ID,
		Kind:     ev.Kind,
		Platform: ev.Platform,
		Account:  ev.Account,
		State:    state,
		Error:    ev.Error,
		TookMS:   ev.Took.Milliseconds(),
	}

	wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := r.store.AppendJob(wctx, rec); err != nil {
		r.log.Debug("job audit append failed", logx.String("job", ev.ID), logx.Err(err))
	}
}
