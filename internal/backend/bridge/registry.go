package bridge

import (
	"context"
	"fmt"
	"time"

	"autopub/internal/backend"
	"autopub/internal/platform"
)

// CategoryLifestyle is the channels category tencent publishes under when the
// caller does not pick one.
const CategoryLifestyle = "lifestyle"

// NewRegistry wires the four supported platforms onto one sidecar client.
//
// Quirks preserved from the original flows:
//   - douyin login may need an SMS step, so its setup forwards the phone
//     number; douyin is also the only platform with an image-post flow.
//   - tiktok, tencent and kuaishou run publish-path setup interactively
//     because their artifacts go stale between publishes; douyin alone
//     publishes against the persisted artifact as-is.
//   - tencent publishes into a category, defaulting to lifestyle.
func NewRegistry(c *Client) *backend.Registry {
	r := backend.NewEmptyRegistry()

	r.Register(platform.Douyin, backend.Entry{
		Setup: func(ctx context.Context, h platform.Handle, opt backend.SetupOptions) error {
			return c.Setup(ctx, platform.Douyin, setupRequest{
				Account:     h.Account,
				SessionPath: h.Path,
				Interactive: opt.Interactive,
				Phone:       opt.Phone,
			})
		},
		NewPublish: func(p backend.Payload, h platform.Handle) (backend.PublishJob, error) {
			switch p.Kind {
			case backend.KindVideo:
				if err := wantFiles(p, 1, 1); err != nil {
					return nil, err
				}
			case backend.KindImage:
				if err := wantFiles(p, 1, 0); err != nil {
					return nil, err
				}
			default:
				return nil, fmt.Errorf("%w: douyin: unknown media kind %q", backend.ErrInvalidPayload, p.Kind)
			}
			return &publishJob{c: c, platform: platform.Douyin, req: publishRequest{
				SessionPath: h.Path,
				Kind:        string(p.Kind),
				Title:       p.Title,
				Tags:        p.Tags,
				Files:       p.Files,
				PublishAt:   formatPublishAt(p.PublishAt),
				Location:    p.Location,
			}}, nil
		},
	})

	r.Register(platform.TikTok, backend.Entry{
		Setup:                   setupFn(c, platform.TikTok),
		NewPublish:              videoOnly(c, platform.TikTok, nil),
		InteractivePublishSetup: true,
	})

	r.Register(platform.Tencent, backend.Entry{
		Setup: setupFn(c, platform.Tencent),
		NewPublish: videoOnly(c, platform.Tencent, func(req *publishRequest, p backend.Payload) {
			req.Category = p.Category
			if req.Category == "" {
				req.Category = CategoryLifestyle
			}
		}),
		InteractivePublishSetup: true,
	})

	r.Register(platform.Kuaishou, backend.Entry{
		Setup:                   setupFn(c, platform.Kuaishou),
		NewPublish:              videoOnly(c, platform.Kuaishou, nil),
		InteractivePublishSetup: true,
	})

	return r
}

func setupFn(c *Client, platformID string) func(context.Context, platform.Handle, backend.SetupOptions) error {
	return func(ctx context.Context, h platform.Handle, opt backend.SetupOptions) error {
		return c.Setup(ctx, platformID, setupRequest{
			Account:     h.Account,
			SessionPath: h.Path,
			Interactive: opt.Interactive,
		})
	}
}

func videoOnly(c *Client, platformID string, extra func(*publishRequest, backend.Payload)) func(backend.Payload, platform.Handle) (backend.PublishJob, error) {
	return func(p backend.Payload, h platform.Handle) (backend.PublishJob, error) {
		if p.Kind != backend.KindVideo {
			return nil, fmt.Errorf("%w: %s: only video publishing is supported", backend.ErrInvalidPayload, platformID)
		}
		if err := wantFiles(p, 1, 1); err != nil {
			return nil, err
		}
		req := publishRequest{
			SessionPath: h.Path,
			Kind:        string(p.Kind),
			Title:       p.Title,
			Tags:        p.Tags,
			Files:       p.Files,
			PublishAt:   formatPublishAt(p.PublishAt),
		}
		if extra != nil {
			extra(&req, p)
		}
		return &publishJob{c: c, platform: platformID, req: req}, nil
	}
}

func wantFiles(p backend.Payload, min, max int) error {
	n := len(p.Files)
	if n < min {
		return fmt.Errorf("%w: %s publish needs at least %d file(s), got %d", backend.ErrInvalidPayload, p.Kind, min, n)
	}
	if max > 0 && n > max {
		return fmt.Errorf("%w: %s publish takes at most %d file(s), got %d", backend.ErrInvalidPayload, p.Kind, max, n)
	}
	return nil
}

func formatPublishAt(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

type publishJob struct {
	c        *Client
	platform string
	req      publishRequest
}

func (j *publishJob) Run(ctx context.Context) error {
	return j.c.Publish(ctx, j.platform, j.req)
}
