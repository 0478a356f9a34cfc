package chrono

import (
	"ecourts-backend/lib/timezone"
	"time"
)

// TimeAPI is the interface that anything depending on the system clock should use.
type TimeAPI interface {
	// Now returns the current time, the timezone of the time will default to Asia/Kolkata.
	Now() time.Time
}

// StandardTime is the standard implementation of TimeAPI using the standard library.
type StandardTime struct{}

// NewStandardTime is the constructor of StandardTime.
func NewStandardTime() StandardTime {
	return StandardTime{}
}

func (StandardTime) Now() time.Time {
	return time.Now().In(timezone.Location)
}

// FixedTime is a TimeAPI that always returns the same instant, it is meant for tests.
type FixedTime struct {
	T time.Time
}

func (f FixedTime) Now() time.Time {
	return f.T
}
