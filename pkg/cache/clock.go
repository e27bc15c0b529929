package cache

import "time"

// Clock provides the time source used to stamp and compare entry expiries.
// The default implementation uses time.Now(); tests swap in a controllable one.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
