package lockout

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestTracker(clock *fakeClock) *Tracker {
	return NewTracker(Config{
		MaxAttempts:        5,
		LockoutDuration:    15 * time.Minute,
		Multiplier:         1.5,
		MaxLockoutDuration: time.Hour,
	}, clock.Now)
}

func TestRecordFailure_LocksAtMaxAttempts(t *testing.T) {
	tr := newTestTracker(newFakeClock())

	for i := 1; i < 5; i++ {
		locked, _ := tr.RecordFailure("a@b.com")
		assert.False(t, locked)
		assert.False(t, tr.IsLocked("a@b.com"), "attempt %d must not lock", i)
	}

	locked, until := tr.RecordFailure("a@b.com")
	assert.True(t, locked)
	assert.True(t, tr.IsLocked("a@b.com"))
	assert.False(t, until.IsZero())
}

func TestRecordFailure_IgnoredWhileLocked(t *testing.T) {
	tr := newTestTracker(newFakeClock())
	for i := 0; i < 5; i++ {
		tr.RecordFailure("a@b.com")
	}
	first, _ := tr.LockedUntil("a@b.com")

	locked, until := tr.RecordFailure("a@b.com")
	assert.False(t, locked)
	assert.Equal(t, first, until)
	assert.Equal(t, 5, tr.FailureCount("a@b.com"))
}

func TestIsLocked_LazyExpiry(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock)
	for i := 0; i < 5; i++ {
		tr.RecordFailure("a@b.com")
	}
	require.True(t, tr.IsLocked("a@b.com"))

	clock.Advance(15*time.Minute + time.Second)
	assert.False(t, tr.IsLocked("a@b.com"))
	assert.Equal(t, 0, tr.FailureCount("a@b.com"))
}

func TestRecordFailure_TrailingWindowRestartsCount(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock)

	for i := 0; i < 4; i++ {
		tr.RecordFailure("a@b.com")
	}
	clock.Advance(16 * time.Minute)

	locked, _ := tr.RecordFailure("a@b.com")
	assert.False(t, locked)
	assert.Equal(t, 1, tr.FailureCount("a@b.com"))
}

func TestRecordFailure_RepeatedLockoutsEscalate(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock)

	lockOnce := func() time.Duration {
		var until time.Time
		for i := 0; i < 5; i++ {
			_, until = tr.RecordFailure("a@b.com")
		}
		return until.Sub(clock.Now())
	}

	assert.Equal(t, 15*time.Minute, lockOnce())
	clock.Advance(16 * time.Minute)
	assert.Equal(t, time.Duration(float64(15*time.Minute)*1.5), lockOnce())
	for i := 0; i < 2; i++ {
		clock.Advance(time.Hour)
		lockOnce()
	}
	clock.Advance(time.Hour)
	assert.Equal(t, time.Hour, lockOnce(), "capped at max lockout")
}

func TestRecordSuccess_ClearsEntry(t *testing.T) {
	tr := newTestTracker(newFakeClock())
	for i := 0; i < 3; i++ {
		tr.RecordFailure("a@b.com")
	}
	tr.RecordSuccess("a@b.com")

	assert.Equal(t, 0, tr.FailureCount("a@b.com"))
	assert.Equal(t, 0, tr.Len())
}

func TestUnlockAccount_ImmediateAndResetsCount(t *testing.T) {
	tr := newTestTracker(newFakeClock())
	for i := 0; i < 5; i++ {
		tr.RecordFailure("a@b.com")
	}
	require.True(t, tr.IsLocked("a@b.com"))

	assert.True(t, tr.UnlockAccount("a@b.com"))
	assert.False(t, tr.IsLocked("a@b.com"))
	assert.Equal(t, 0, tr.FailureCount("a@b.com"))
	assert.False(t, tr.UnlockAccount("a@b.com"))
}

func TestBlockedAccounts_OnlyCurrentlyLocked(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock)

	for i := 0; i < 5; i++ {
		tr.RecordFailure("locked@b.com")
	}
	tr.RecordFailure("counting@b.com")

	blocked := tr.BlockedAccounts()
	require.Len(t, blocked, 1)
	assert.Equal(t, "locked@b.com", blocked[0].Email)
	assert.Equal(t, 1, blocked[0].LockoutCount)

	clock.Advance(time.Hour)
	assert.Empty(t, tr.BlockedAccounts())
}

func TestSweep_KeepsLockedAndHistory(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock)

	for i := 0; i < 5; i++ {
		tr.RecordFailure("locked@b.com")
	}
	tr.RecordFailure("stray@b.com")

	clock.Advance(20 * time.Minute)
	assert.Equal(t, 1, tr.Sweep(), "stray entry expired")
	assert.Equal(t, 1, tr.Len(), "lockout history survives")

	clock.Advance(25 * time.Hour)
	assert.Equal(t, 1, tr.Sweep())
	assert.Equal(t, 0, tr.Len())
}

func TestTracker_ConcurrentFailures(t *testing.T) {
	tr := NewTracker(Config{MaxAttempts: 1000, LockoutDuration: time.Hour}, nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				tr.RecordFailure(fmt.Sprintf("user%d@b.com", i%5))
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 5; i++ {
		assert.Equal(t, 100, tr.FailureCount(fmt.Sprintf("user%d@b.com", i)))
	}
}

func TestAttemptLog_RingBufferCap(t *testing.T) {
	clock := newFakeClock()
	log := NewAttemptLog(3, time.Hour, clock.Now)

	for i := 0; i < 5; i++ {
		log.Record(models.LoginAttempt{Email: fmt.Sprintf("u%d@b.com", i), IPAddress: "1.1.1.1"})
		clock.Advance(time.Second)
	}

	recent := log.Recent(10)
	require.Len(t, recent, 3)
	assert.Equal(t, "u4@b.com", recent[0].Email)
	assert.Equal(t, "u2@b.com", recent[2].Email)
	assert.Len(t, log.Recent(1), 1)
}

func TestAttemptLog_PruneByAge(t *testing.T) {
	clock := newFakeClock()
	log := NewAttemptLog(10, 24*time.Hour, clock.Now)

	log.Record(models.LoginAttempt{Email: "old@b.com"})
	clock.Advance(23 * time.Hour)
	log.Record(models.LoginAttempt{Email: "new@b.com"})
	clock.Advance(2 * time.Hour)

	assert.Len(t, log.Recent(0), 1)
	assert.Equal(t, 1, log.Prune())
	assert.Equal(t, 1, log.Len())
}

func TestAttemptLog_SuspectedIPs(t *testing.T) {
	clock := newFakeClock()
	log := NewAttemptLog(0, 0, clock.Now)

	for i := 0; i < 3; i++ {
		log.Record(models.LoginAttempt{IPAddress: "6.6.6.6", Success: false})
	}
	log.Record(models.LoginAttempt{IPAddress: "7.7.7.7", Success: false})
	log.Record(models.LoginAttempt{IPAddress: "7.7.7.7", Success: true})

	suspected := log.SuspectedIPs(3, time.Hour)
	require.Len(t, suspected, 1)
	assert.Equal(t, "6.6.6.6", suspected[0].IPAddress)
	assert.Equal(t, 3, suspected[0].FailureCount)

	clock.Advance(61 * time.Minute)
	assert.Empty(t, log.SuspectedIPs(3, time.Hour))
}

func TestAttemptLog_LockedAttemptsAreNotFailures(t *testing.T) {
	clock := newFakeClock()
	log := NewAttemptLog(0, 0, clock.Now)

	log.Record(models.LoginAttempt{IPAddress: "6.6.6.6", FailureReason: ReasonInvalidCredentials})
	for i := 0; i < 4; i++ {
		log.Record(models.LoginAttempt{IPAddress: "6.6.6.6", FailureReason: ReasonAccountLocked})
	}

	assert.Equal(t, map[string]int{"6.6.6.6": 1}, log.FailuresByIP(clock.Now().Add(-time.Hour)))
	assert.Empty(t, log.SuspectedIPs(3, time.Hour))
	assert.Len(t, log.Recent(0), 5, "refused attempts stay in the log")
}
