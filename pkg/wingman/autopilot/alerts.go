// alerts.go surfaces reply-cycle failures to the operator without
// flooding them: at most one alert per interval, with a distinct
// remediation message for network/policy failures.
package autopilot

import (
	"strings"
	"sync"
	"time"
)

// alertInterval is the minimum spacing between operator alerts.
const alertInterval = 60 * time.Second

// alertLimiter rate-limits operator alerts.
type alertLimiter struct {
	mu       sync.Mutex
	last     time.Time
	interval time.Duration

	// now is injectable for tests.
	now func() time.Time
}

func newAlertLimiter(interval time.Duration) *alertLimiter {
	return &alertLimiter{
		interval: interval,
		now:      time.Now,
	}
}

// allow reports whether an alert may be sent now, consuming the slot.
func (l *alertLimiter) allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if !l.last.IsZero() && now.Sub(l.last) < l.interval {
		return false
	}
	l.last = now
	return true
}

// policyBlockKeywords identify failures caused by network outages or
// blocking policies rather than the provider itself.
var policyBlockKeywords = []string{
	"network",
	"blocked",
	"cors",
	"connection refused",
	"no such host",
	"timeout",
	"deadline exceeded",
}

// isPolicyBlocked heuristically classifies an error as a network or
// policy failure that needs operator remediation instead of a retry.
func isPolicyBlocked(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, kw := range policyBlockKeywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}
