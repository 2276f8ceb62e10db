package telldb

import (
	"context"
	"fmt"
	log "log/slog"
	"math/rand"
	"time"
)

// jitterRNG is the random source used for sleep jitter.
var jitterRNG = rand.New(rand.NewSource(time.Now().UnixNano()))

// SetJitterRNG overrides the RNG used for sleep jitter. Useful for
// deterministic tests.
func SetJitterRNG(r *rand.Rand) {
	if r != nil {
		jitterRNG = r
	}
}

// Now returns the current time. Isolated in one place so tests can reason
// about elapsed-time based timeouts without depending on wall clock speed.
func Now() time.Time {
	return time.Now()
}

// TimedOut returns an error if the context is done or the elapsed time
// since startTime exceeds maxTime.
func TimedOut(ctx context.Context, name string, startTime time.Time, maxTime time.Duration) error {
	if err := ctx.Err(); err != nil {
		return NewError(TransportError, err, name)
	}
	if Now().Sub(startTime) > maxTime {
		return NewError(TransportError, fmt.Errorf("%s timed out (maxTime=%v)", name, maxTime), name)
	}
	return nil
}

// RandomSleepWithUnit sleeps for a random multiple (1..4) of unit, or until
// ctx is done. Used to jitter conflicting transactions apart.
func RandomSleepWithUnit(ctx context.Context, unit time.Duration) {
	n := jitterRNG.Intn(5)
	if n == 0 {
		n = 1
	}
	st := time.Duration(n) * unit
	log.Debug("sleep jitter", "multiplier", n, "unit", unit, "duration", st)
	Sleep(ctx, st)
}

// RandomSleep sleeps between one and four 20ms units.
func RandomSleep(ctx context.Context) {
	RandomSleepWithUnit(ctx, 20*time.Millisecond)
}

// Sleep blocks for sleepTime or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, sleepTime time.Duration) {
	if sleepTime <= 0 {
		return
	}
	c, cancel := context.WithTimeout(ctx, sleepTime)
	defer cancel()
	<-c.Done()
}
