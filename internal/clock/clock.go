package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock supplies the current time. Retention and frequency-gate
// calculations depend on it, so it is injected everywhere instead of
// calling time.Now directly.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// NewSystemClock returns a Clock backed by the wall clock in UTC.
func NewSystemClock() Clock {
	return systemClock{}
}

var Module = fx.Module("clock",
	fx.Provide(NewSystemClock),
)
