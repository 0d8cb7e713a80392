package retry

import (
	"errors"
	"math"
	"math/rand"
	"time"

	"golang.org/x/exp/constraints"
)

// Strategy returns how long to wait before retry number retryCount, or
// exceeded once no further attempt should be made.
type Strategy interface {
	Sleep(retryCount uint) (delay time.Duration, exceeded bool)
}

type never struct{}

func NewNever() Strategy {
	return &never{}
}

func (nr *never) Sleep(uint) (time.Duration, bool) {
	return 0, true
}

type constant struct {
	delay         time.Duration
	maxRetryCount uint
}

// NewConstant waits the same delay before each of maxRetryCount retries.
func NewConstant(delay time.Duration, maxRetryCount uint) Strategy {
	return &constant{
		delay:         delay,
		maxRetryCount: maxRetryCount,
	}
}

func (c *constant) Sleep(retryCount uint) (time.Duration, bool) {
	if retryCount >= c.maxRetryCount {
		return 0, true
	}
	return c.delay, false
}

// Jitter picks a delay in [0, n). It is the full-jitter variant of
// exponential backoff.
type Jitter func(n int64) int64

type exponentialBackOff struct {
	base          time.Duration
	max           time.Duration
	maxRetryCount uint
	jitter        Jitter
}

func NewExponentialBackOff(base time.Duration, max time.Duration, maxRetryCount uint, jitter Jitter) Strategy {
	return &exponentialBackOff{
		base:          base,
		max:           max,
		maxRetryCount: maxRetryCount,
		jitter:        jitter,
	}
}

func (eb *exponentialBackOff) Sleep(retryCount uint) (time.Duration, bool) {
	if retryCount >= eb.maxRetryCount {
		return 0, true
	}

	ceiling := int64(eb.max)
	if retryCount < 63 {
		if delay, err := checkedMulInt64(1<<retryCount, int64(eb.base)); err == nil {
			ceiling = lesser(delay, ceiling)
		}
	}
	return time.Duration(eb.getJitter()(ceiling)), false
}

func (eb *exponentialBackOff) getJitter() Jitter {
	if eb.jitter == nil {
		return func(n int64) int64 {
			if n <= 0 {
				return 0
			}
			return rand.Int63n(n)
		}
	}
	return eb.jitter
}

func lesser[T constraints.Ordered](l T, r T) T {
	if l > r {
		return r
	}
	return l
}

var ErrOverflow = errors.New("overflow")

func checkedMulInt64(l int64, r int64) (int64, error) {
	if l == 0 || r == 0 {
		return 0, nil
	}
	if l > math.MaxInt64/r {
		return 0, ErrOverflow
	}
	return l * r, nil
}
