package core

import "time"

const (
	defaultRetryBaseDelay   = 2 * time.Second
	defaultRetryMaxDelay    = 5 * time.Minute
	defaultRetryMaxAttempts = 3
)

// RetryPolicy maps a retry count to the next delay and the terminal-failure
// decision. It never touches storage; the delivery worker applies its
// output.
type RetryPolicy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

type RetryDecision struct {
	Delay time.Duration
	Final bool
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		BaseDelay:   defaultRetryBaseDelay,
		MaxDelay:    defaultRetryMaxDelay,
		MaxAttempts: defaultRetryMaxAttempts,
	}
}

// NextAttempt computes delay = base * 2^retryCount capped at MaxDelay.
// Final flips once retryCount reaches MaxAttempts: with the default budget
// of 3, retry counts 0..2 are retryable and 3 is final.
func (p RetryPolicy) NextAttempt(retryCount int) RetryDecision {
	base := p.BaseDelay
	if base <= 0 {
		base = defaultRetryBaseDelay
	}
	maximum := p.MaxDelay
	if maximum <= 0 {
		maximum = defaultRetryMaxDelay
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultRetryMaxAttempts
	}

	if retryCount < 0 {
		retryCount = 0
	}
	delay := base
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if delay >= maximum {
			delay = maximum
			break
		}
	}
	if delay > maximum {
		delay = maximum
	}

	return RetryDecision{
		Delay: delay,
		Final: retryCount >= maxAttempts,
	}
}
