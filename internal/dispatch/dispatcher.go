// Package dispatch runs login and publish jobs against platform backends.
//
// Login jobs detach: the caller gets a job id immediately and polls the
// status store, because login may need out-of-band human interaction (QR
// scan, SMS code). Publish jobs block the caller until the backend resolves;
// publish callers expect a definitive outcome. That asymmetry is deliberate.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"autopub/internal/backend"
	"autopub/internal/eventbus"
	"autopub/internal/platform"
	"autopub/internal/status"
	"autopub/pkg/logx"
)

// PublishError carries a backend-reported publish failure to the boundary.
type PublishError struct {
	Platform string
	Account  string
	Err      error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish to %s for %s failed: %v", e.Platform, e.Account, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

type PublishRequest struct {
	JobID    string
	Platform string
	Account  string
	Payload  backend.Payload
}

type Dispatcher struct {
	reg        *backend.Registry
	store      *status.Store
	bus        eventbus.Bus
	log        logx.Logger
	sessionDir string

	// onSessionExpired is invoked (in its own goroutine) when a backend
	// classifies a failure as an expired session artifact. Wired to the
	// escalation pipeline by the app; may be nil.
	onSessionExpired func(platformID, account string)
}

func New(reg *backend.Registry, store *status.Store, bus eventbus.Bus, sessionDir string, log logx.Logger) *Dispatcher {
	return &Dispatcher{
		reg:        reg,
		store:      store,
		bus:        bus,
		log:        log,
		sessionDir: sessionDir,
	}
}

// SetSessionExpiredHook installs the escalation trigger. Call before serving.
func (d *Dispatcher) SetSessionExpiredHook(fn func(platformID, account string)) {
	d.onSessionExpired = fn
}

// LoginJobID is a pure function of (platform, account): concurrent logins for
// the same pair collide on one id and the last terminal write wins.
func LoginJobID(platformID, account string) string {
	return platformID + "_" + account
}

// SubmitLogin accepts a login job and returns its id without blocking.
//
// Every failure of the detached run, including panics, surfaces only as a
// status-store write; nothing propagates past the goroutine.
func (d *Dispatcher) SubmitLogin(ctx context.Context, platformID, account, phone string) string {
	jobID := LoginJobID(platformID, account)
	d.store.Set(jobID, status.StateInProgress)
	d.publish(EventJobStarted, JobEvent{ID: jobID, Kind: "login", Platform: platformID, Account: account})

	// The caller's context dies with the HTTP request that accepted the job;
	// the detached run keeps its values but must outlive that cancellation.
	go d.runLogin(context.WithoutCancel(ctx), jobID, platformID, account, phone)
	return jobID
}

func (d *Dispatcher) runLogin(ctx context.Context, jobID, platformID, account, phone string) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			reason := fmt.Sprintf("login panicked: %v", r)
			d.log.Error("login job panic", logx.String("job", jobID), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			d.store.Fail(jobID, reason)
			d.publish(EventJobFailed, JobEvent{ID: jobID, Kind: "login", Platform: platformID, Account: account, Took: time.Since(start), Error: reason})
		}
	}()

	err := d.doLogin(ctx, platformID, account, phone)
	took := time.Since(start)
	if err != nil {
		d.log.Warn("login job failed", logx.String("job", jobID), logx.Err(err), logx.Duration("took", took))
		d.store.Fail(jobID, err.Error())
		d.publish(EventJobFailed, JobEvent{ID: jobID, Kind: "login", Platform: platformID, Account: account, Took: took, Error: err.Error()})
		return
	}
	d.log.Info("login job completed", logx.String("job", jobID), logx.Duration("took", took))
	d.store.Set(jobID, status.StateCompleted)
	d.publish(EventJobCompleted, JobEvent{ID: jobID, Kind: "login", Platform: platformID, Account: account, Took: took})
}

func (d *Dispatcher) doLogin(ctx context.Context, platformID, account, phone string) error {
	entry, err := d.reg.Resolve(platformID)
	if err != nil {
		return err
	}
	h := platform.NewHandle(d.sessionDir, platformID, account)
	if err := h.EnsureDir(); err != nil {
		return fmt.Errorf("prepare session dir: %w", err)
	}
	return entry.Setup(ctx, h, backend.SetupOptions{Interactive: true, Phone: phone})
}

// SubmitPublish runs a publish job to completion on the caller's goroutine.
//
// Unsupported platforms fail fast before any backend call. Backend failures
// come back verbatim inside a *PublishError. There are no retries; the caller
// may resubmit.
func (d *Dispatcher) SubmitPublish(ctx context.Context, req PublishRequest) error {
	start := time.Now()
	d.publish(EventJobStarted, JobEvent{ID: req.JobID, Kind: "publish", Platform: req.Platform, Account: req.Account})

	err := d.doPublish(ctx, req)
	took := time.Since(start)
	if err != nil {
		d.log.Warn("publish job failed",
			logx.String("job", req.JobID),
			logx.String("platform", req.Platform),
			logx.String("account", req.Account),
			logx.Err(err),
			logx.Duration("took", took))
		d.publish(EventJobFailed, JobEvent{ID: req.JobID, Kind: "publish", Platform: req.Platform, Account: req.Account, Took: took, Error: err.Error()})

		if errors.Is(err, backend.ErrSessionExpired) && d.onSessionExpired != nil {
			go d.onSessionExpired(req.Platform, req.Account)
		}
		return err
	}

	d.log.Info("publish job completed",
		logx.String("job", req.JobID),
		logx.String("platform", req.Platform),
		logx.String("account", req.Account),
		logx.Duration("took", took))
	d.publish(EventJobCompleted, JobEvent{ID: req.JobID, Kind: "publish", Platform: req.Platform, Account: req.Account, Took: took})
	return nil
}

func (d *Dispatcher) doPublish(ctx context.Context, req PublishRequest) error {
	entry, err := d.reg.Resolve(req.Platform)
	if err != nil {
		return err
	}

	h := platform.NewHandle(d.sessionDir, req.Platform, req.Account)
	opt := backend.SetupOptions{Interactive: entry.InteractivePublishSetup}
	if err := entry.Setup(ctx, h, opt); err != nil {
		return &PublishError{Platform: req.Platform, Account: req.Account, Err: fmt.Errorf("setup: %w", err)}
	}

	// Payload-construction rejections (wrong media kind, wrong file count)
	// are caller mistakes, not backend faults; they go back unwrapped so the
	// boundary can treat them as bad requests.
	job, err := entry.NewPublish(req.Payload, h)
	if err != nil {
		return err
	}
	if err := job.Run(ctx); err != nil {
		return &PublishError{Platform: req.Platform, Account: req.Account, Err: err}
	}
	return nil
}

func (d *Dispatcher) publish(typ string, ev JobEvent) {
	if d.bus != nil {
		d.bus.Publish(eventbus.Event{Type: typ, Data: ev})
	}
}
