package gateway

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAuthRateLimiterBlocksAfterMaxFailures(t *testing.T) {
	l := newAuthRateLimiter()
	assert.True(t, l.allow("1.2.3.4:5555"))

	for range authRateMaxFails - 1 {
		l.recordFailure("1.2.3.4:5555")
	}
	assert.True(t, l.allow("1.2.3.4:6666"))

	l.recordFailure("1.2.3.4:7777")
	assert.False(t, l.allow("1.2.3.4:8888"), "port must not matter")
	assert.True(t, l.allow("5.6.7.8:1"), "other IPs are unaffected")
}

func TestAuthRateLimiterAddressWithoutPort(t *testing.T) {
	l := newAuthRateLimiter()
	for range authRateMaxFails {
		l.recordFailure("10.0.0.1")
	}
	assert.False(t, l.allow("10.0.0.1"))
	assert.False(t, l.allow("10.0.0.1:443"))
}

func TestAuthRateLimiterFailuresExpire(t *testing.T) {
	now := time.Now()
	l := newAuthRateLimiter()
	l.now = func() time.Time { return now }

	for range authRateMaxFails {
		l.recordFailure("1.2.3.4:1")
	}
	assert.False(t, l.allow("1.2.3.4:1"))

	now = now.Add(authRateWindow + time.Second)
	assert.True(t, l.allow("1.2.3.4:1"))

	l.prune()
	assert.Empty(t, l.failures)
}

func TestAuthRateLimiterCapsTrackedIPs(t *testing.T) {
	base := time.Now()
	tick := 0
	l := newAuthRateLimiter()
	l.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Millisecond)
	}

	for i := range authRateMaxIPs {
		l.recordFailure(fmt.Sprintf("10.%d.%d.%d:1", i/65536, (i/256)%256, i%256))
	}
	l.recordFailure("192.168.0.1:1")

	assert.Len(t, l.failures, authRateMaxIPs)
	assert.NotContains(t, l.failures, "10.0.0.0", "oldest entry is evicted")
	assert.Contains(t, l.failures, "192.168.0.1")
}
