package pipeline

import "time"

// TimeProvider stamps run start and end times and drives run expiry.
type TimeProvider interface {
	Now() time.Time
}

type realTimeProvider struct{}

func (rtp *realTimeProvider) Now() time.Time {
	return time.Now()
}

var timeProvider TimeProvider = &realTimeProvider{}
