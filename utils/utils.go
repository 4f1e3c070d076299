// Package utils holds small helpers shared across quorumd's
// subpackages: logging glue, a no-op-by-default debug logger, and a
// binary backoff engine used by the driver loop to back off between
// retries after a send failure.
package utils

import (
	"math/rand"
	"time"

	"github.com/go-kit/kit/log"
)

// CheckWarn logs e at warn level if non-nil and reports whether it did.
func CheckWarn(e error, logger log.Logger) bool {
	if e != nil {
		logger.Log("msg", "Warning", "error", e)
		return true
	}
	return false
}

// DebugLogFunc is the shape of DebugLog, swappable in tests or via a
// build tag to enable verbose tracing without touching call sites.
type DebugLogFunc func(logger log.Logger, keyvals ...interface{})

// DebugLog is a no-op by default; assign it to log.Logger.Log-shaped
// behaviour to enable trace-level output across all packages that call
// utils.DebugLog(logger, ...). transport and mailbox call it on every
// datagram sent, received, or admitted.
var DebugLog = DebugLogFunc(func(log.Logger, ...interface{}) {})

// BinaryBackoffEngine computes randomized, exponentially growing delays.
// Used by the driver loop in cmd/quorumd to back off between passes
// after a mailbox Flush failure, instead of retrying at a fixed tick.
type BinaryBackoffEngine struct {
	rng    *rand.Rand
	min    time.Duration
	max    time.Duration
	period time.Duration
	Cur    time.Duration
}

// NewBinaryBackoffEngine builds an engine bounded by [min, max]. Returns
// nil if min <= 0.
func NewBinaryBackoffEngine(rng *rand.Rand, min, max time.Duration) *BinaryBackoffEngine {
	if min <= 0 {
		return nil
	}
	return &BinaryBackoffEngine{
		rng:    rng,
		min:    min,
		max:    max,
		period: min,
	}
}

// Advance doubles the backoff period (capped at max), samples a new
// current delay, and returns the delay that was current before this call.
func (bbe *BinaryBackoffEngine) Advance() time.Duration {
	oldCur := bbe.Cur
	bbe.period *= 2
	if bbe.period > bbe.max {
		bbe.period = bbe.max
	}
	bbe.Cur = time.Duration(bbe.rng.Int63n(int64(bbe.period)))
	return oldCur
}

// After runs fun immediately if the current delay is zero, else schedules
// it after the current delay.
func (bbe *BinaryBackoffEngine) After(fun func()) {
	if duration := bbe.Cur; duration == 0 {
		fun()
	} else {
		time.AfterFunc(duration, fun)
	}
}

// Shrink halves the backoff period (floored at min) and resamples Cur,
// rounding down to zero when the sample is within roundToZero.
func (bbe *BinaryBackoffEngine) Shrink(roundToZero time.Duration) {
	bbe.period /= 2
	if bbe.period < bbe.min {
		bbe.period = bbe.min
	}
	bbe.Cur = time.Duration(bbe.rng.Int63n(int64(bbe.period)))
	if bbe.Cur <= roundToZero {
		bbe.Cur = 0
	}
}
