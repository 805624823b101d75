package services

import (
	"time"

	"github.com/dmitrijs2005/orcafacil/internal/timex"
	"github.com/google/uuid"
)

type options struct {
	now   func() time.Time
	newID func() string
}

type Option func(*options)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDGenerator replaces uuid.NewString.
func WithIDGenerator(newID func() string) Option {
	return func(o *options) { o.newID = newID }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, newID: uuid.NewString}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// timestamp is the current time at the precision that is persisted.
func (o options) timestamp() time.Time {
	return timex.Truncate(o.now())
}
