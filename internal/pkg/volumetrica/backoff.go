package volumetrica

import "time"

// linearBackOff waits Step, 2*Step, 3*Step, ... between attempts.
type linearBackOff struct {
	Step    time.Duration
	attempt int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return time.Duration(b.attempt) * b.Step
}

func (b *linearBackOff) Reset() {
	b.attempt = 0
}
