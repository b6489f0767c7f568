// Package docstore mirrors persisted beans into a document store. Events are
// either queued for later indexing or applied immediately through an Updater.
package docstore

import (
	"context"
	"errors"
	"time"
)

// ErrQueueClosed is returned when enqueueing on a stopped queue
var ErrQueueClosed = errors.New("doc store queue closed")

// Event is the persist event being mirrored
type Event string

const (
	EventIndex  Event = "index"
	EventDelete Event = "delete"
)

// Entry is one doc store change
type Entry struct {
	QueueID  string                 `json:"queueId"`
	BeanType string                 `json:"beanType"`
	ID       interface{}            `json:"id"`
	Event    Event                  `json:"event"`
	Values   map[string]interface{} `json:"values,omitempty"`
	Time     time.Time              `json:"time"`
}

// Queue records entries for later processing
type Queue interface {
	Enqueue(ctx context.Context, e Entry) error
}

// Updater applies entries to the document store immediately
type Updater interface {
	Update(ctx context.Context, e Entry) error
}

// UpdaterFunc adapts a function to the Updater interface
type UpdaterFunc func(ctx context.Context, e Entry) error

// Update calls f
func (f UpdaterFunc) Update(ctx context.Context, e Entry) error {
	return f(ctx, e)
}
