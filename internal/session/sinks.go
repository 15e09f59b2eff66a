package session

import (
	"context"
	"errors"

	"github.com/therealutkarshpriyadarshi/ark/pkg/models"
)

// Sinks fans an event out to every sink and joins their errors
type Sinks []EventSink

// Record delivers the event to each sink in order
func (s Sinks) Record(ctx context.Context, evt *models.SessionEvent) error {
	var errs []error
	for _, sink := range s {
		if err := sink.Record(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
