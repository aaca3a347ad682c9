package prioritizer

import (
	"errors"
	"fmt"
	"time"

	"github.com/weiawesome/wes-io-live/overlay-service/internal/domain"
)

var (
	ErrEmptyContentType = errors.New("content type is required")
	ErrNegativeDuration = errors.New("duration must not be negative")
)

// defaultDurations holds how long each content type stays up when the caller
// does not say. Types not listed stay until dismissed.
var defaultDurations = map[domain.ContentType]time.Duration{
	domain.ContentAlert:          10 * time.Second,
	domain.ContentSubTrain:       5 * time.Minute,
	domain.ContentBuildFailure:   30 * time.Second,
	domain.ContentBuildSuccess:   8 * time.Second,
	domain.ContentDeathAlert:     10 * time.Second,
	domain.ContentEliteFour:      15 * time.Second,
	domain.ContentShinyEncounter: 10 * time.Second,
	domain.ContentLevelUp:        5 * time.Second,
	domain.ContentRaid:           15 * time.Second,
	domain.ContentFollow:         5 * time.Second,
	domain.ContentCheer:          8 * time.Second,
}

// DefaultDuration returns the display duration for t, or 0 for "until dismissed".
func DefaultDuration(t domain.ContentType) time.Duration {
	return defaultDurations[t]
}

// Options tunes a single Create call.
type Options struct {
	// ID overrides the generated id.
	ID string
	// Duration overrides the type default. A zero value means "until dismissed".
	Duration *time.Duration
}

// Validate checks a content request before it is queued.
func Validate(t domain.ContentType, opts Options) error {
	if t == "" {
		return ErrEmptyContentType
	}
	if opts.Duration != nil && *opts.Duration < 0 {
		return ErrNegativeDuration
	}
	return nil
}

// IDGenerator produces unique content ids.
type IDGenerator interface {
	Generate() (string, error)
}

// Creator builds Content values stamped with a clock and fresh ids.
type Creator struct {
	ids IDGenerator
	now func() time.Time
}

// NewCreator returns a Creator. A nil now uses time.Now.
func NewCreator(ids IDGenerator, now func() time.Time) *Creator {
	if now == nil {
		now = time.Now
	}
	return &Creator{ids: ids, now: now}
}

// NewID returns a fresh content id.
func (c *Creator) NewID() (string, error) {
	id, err := c.ids.Generate()
	if err != nil {
		return "", fmt.Errorf("failed to generate content id: %w", err)
	}
	return id, nil
}

// Create builds a Content of type t.
func (c *Creator) Create(t domain.ContentType, data map[string]any, opts Options) (domain.Content, error) {
	if err := Validate(t, opts); err != nil {
		return domain.Content{}, err
	}

	id := opts.ID
	if id == "" {
		var err error
		if id, err = c.NewID(); err != nil {
			return domain.Content{}, err
		}
	}

	d := DefaultDuration(t)
	if opts.Duration != nil {
		d = *opts.Duration
	}

	return domain.Content{
		ID:        id,
		Type:      t,
		Priority:  PriorityFor(t),
		Data:      data,
		StartedAt: c.now(),
		Duration:  d.Milliseconds(),
	}, nil
}
