// Package backend defines the capability surface the dispatcher needs from a
// platform automation backend, and the registry that maps platform ids onto
// those capabilities.
package backend

import (
	"context"
	"errors"
	"time"

	"autopub/internal/platform"
)

// ErrSessionExpired classifies setup/publish failures caused by an invalid
// persisted session artifact. The dispatcher uses it to trigger escalation.
var ErrSessionExpired = errors.New("session artifact expired")

// ErrInvalidPayload marks publish payloads a backend cannot construct a job
// from (unsupported media kind, wrong file count). Caller error, not a
// backend failure.
var ErrInvalidPayload = errors.New("invalid publish payload")

type MediaKind string

const (
	KindVideo MediaKind = "video"
	KindImage MediaKind = "image"
)

// Payload is the normalized unit handed to a backend for publishing.
//
// PublishAt zero means "publish immediately". Kind video uses exactly one
// entry of Files; kind image uses one or more (the per-platform constructors
// enforce this).
type Payload struct {
	Title     string
	Tags      []string
	Files     []string
	Kind      MediaKind
	PublishAt time.Time
	Location  string
	Category  string
}

type SetupOptions struct {
	// Interactive allows the backend to drive an out-of-band login flow
	// (QR scan, SMS code). Non-interactive setup only loads the persisted
	// artifact and fails if it is missing or expired.
	Interactive bool
	Phone       string
}

// PublishJob is a fully-constructed unit of publish work.
type PublishJob interface {
	Run(ctx context.Context) error
}

// Entry bundles the two capabilities registered per platform.
//
// InteractivePublishSetup preserves an inherited asymmetry: tiktok, tencent
// and kuaishou run their publish-path setup interactively because their
// artifacts expire silently between publishes; douyin does not. Flagged for
// product confirmation.
type Entry struct {
	Setup                   func(ctx context.Context, h platform.Handle, opt SetupOptions) error
	NewPublish              func(p Payload, h platform.Handle) (PublishJob, error)
	InteractivePublishSetup bool
}

// Registry is the single dispatch point from platform id to backend
// capabilities. Adding a platform means registering one entry.
type Registry struct {
	entries map[string]Entry
}

func NewEmptyRegistry() *Registry {
	return &Registry{entries: map[string]Entry{}}
}

func (r *Registry) Register(platformID string, e Entry) {
	r.entries[platformID] = e
}

// Resolve returns the backend entry for a platform id. Unknown ids yield
// platform.ErrUnsupported, never a panic.
func (r *Registry) Resolve(platformID string) (Entry, error) {
	e, ok := r.entries[platformID]
	if !ok {
		return Entry{}, platform.ErrUnsupported
	}
	return e, nil
}

// Supported lists registered platform ids (order unspecified).
func (r *Registry) Supported() []string {
	out := make([]string, 0, len(r.entries))
	for id := range r.entries {
		out = append(out, id)
	}
	return out
}
