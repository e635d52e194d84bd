// Package stage normalizes raw upload input into a backend payload: caption
// text into title + tags, the schedule fields into a publish time, and
// multipart file content into request-scoped temp files.
package stage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"autopub/internal/backend"
	"autopub/pkg/logx"
)

var ErrInvalidSchedule = errors.New("invalid schedule")

// scheduleLayout is the literal wire format for scheduled publishes.
const scheduleLayout = "2006-01-02 15:04"

const (
	PublishNow       = 0
	PublishScheduled = 1
)

// ParseCaption extracts a title and hashtag list from free caption text.
//
// Rule (deterministic, round-trip stable):
//   - the title is the first non-empty line with hashtag tokens removed;
//   - tags are every whitespace-separated token starting with '#', in order
//     of first appearance across the whole text, '#' stripped, de-duplicated.
//
// Empty input yields an empty title and no tags.
func ParseCaption(text string) (title string, tags []string) {
	seen := map[string]bool{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var plain []string
		for _, tok := range strings.Fields(line) {
			if tag, ok := strings.CutPrefix(tok, "#"); ok {
				tag = strings.TrimSpace(tag)
				if tag != "" && !seen[tag] {
					seen[tag] = true
					tags = append(tags, tag)
				}
				continue
			}
			plain = append(plain, tok)
		}
		if title == "" {
			title = strings.Join(plain, " ")
		}
	}
	return title, tags
}

// ResolveSchedule maps the (publish_type, schedule) pair onto a publish time.
//
// Type 0 means "publish immediately" and ignores the schedule string entirely,
// even if malformed. Type 1 requires a valid "YYYY-MM-DD HH:MM" local
// timestamp. The zero time is the immediate-publish sentinel.
func ResolveSchedule(publishType int, raw string) (time.Time, error) {
	switch publishType {
	case PublishNow:
		return time.Time{}, nil
	case PublishScheduled:
		t, err := time.ParseInLocation(scheduleLayout, strings.TrimSpace(raw), time.Local)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q (want %s)", ErrInvalidSchedule, raw, scheduleLayout)
		}
		return t, nil
	default:
		return time.Time{}, fmt.Errorf("%w: unknown publish_type %d", ErrInvalidSchedule, publishType)
	}
}

// File is one uploaded file to stage.
type File struct {
	Name   string
	Reader io.Reader
}

// Stager writes uploads into per-request temp directories below Root.
type Stager struct {
	root string
	log  logx.Logger
}

func New(root string, log logx.Logger) *Stager {
	return &Stager{root: root, log: log}
}

// Stage persists the uploaded files and returns their paths plus a cleanup
// function. Cleanup is safe to call on every exit path, including after a
// backend failure, and removes the whole request directory.
func (s *Stager) Stage(files []File) (paths []string, cleanup func(), err error) {
	if len(files) == 0 {
		return nil, func() {}, errors.New("no files to stage")
	}
	if s.root != "" {
		if err := os.MkdirAll(s.root, 0o755); err != nil {
			return nil, func() {}, fmt.Errorf("create staging root: %w", err)
		}
	}

	dir, err := os.MkdirTemp(s.root, "publish-*")
	if err != nil {
		return nil, func() {}, fmt.Errorf("create staging dir: %w", err)
	}
	cleanup = func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			s.log.Warn("staging cleanup failed", logx.String("dir", dir), logx.Err(rmErr))
		}
	}

	for _, f := range files {
		name := filepath.Base(strings.TrimSpace(f.Name))
		if name == "" || name == "." || name == string(filepath.Separator) {
			cleanup()
			return nil, func() {}, fmt.Errorf("invalid upload file name %q", f.Name)
		}
		dst := filepath.Join(dir, name)
		if err := writeFile(dst, f.Reader); err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("stage %s: %w", name, err)
		}
		paths = append(paths, dst)
	}
	return paths, cleanup, nil
}

// BuildPayload combines caption, schedule and staged files into the
// normalized publish payload.
func BuildPayload(kind backend.MediaKind, paths []string, caption string, publishType int, schedule, location string) (backend.Payload, error) {
	title, tags := ParseCaption(caption)
	at, err := ResolveSchedule(publishType, schedule)
	if err != nil {
		return backend.Payload{}, err
	}
	return backend.Payload{
		Title:     title,
		Tags:      tags,
		Files:     paths,
		Kind:      kind,
		PublishAt: at,
		Location:  location,
	}, nil
}

func writeFile(dst string, r io.Reader) error {
	f, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	_, copyErr := io.Copy(f, r)
	closeErr := f.Close()
	if copyErr != nil {
		return copyErr
	}
	return closeErr
}
