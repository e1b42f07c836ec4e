package alerts

import (
	"context"
	"errors"

	"github.com/Rajchodisetti/stockpick-trader/internal/config"
	"github.com/Rajchodisetti/stockpick-trader/internal/execution"
)

// Multi delivers each event to every observer and joins their errors.
type Multi []execution.Observer

func (m Multi) Observe(ctx context.Context, event string, payload any) error {
	var errs []error
	for _, o := range m {
		if err := o.Observe(ctx, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FromConfig builds the enabled notifiers. It returns nil when none are enabled.
func FromConfig(mg config.Mailgun, sl config.Slack) execution.Observer {
	var m Multi
	if mg.Enabled {
		m = append(m, NewMailgunNotifier(mg))
	}
	if sl.Enabled {
		m = append(m, NewSlackNotifier(sl))
	}
	if len(m) == 0 {
		return nil
	}
	return m
}
