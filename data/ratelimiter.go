// Copyright 2021-2023
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package data

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// RateLimiter enforces a minimum delay between consecutive requests to the
// same provider
type RateLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	now     func() time.Time
	sleep   func(context.Context, time.Duration) error
}

type RateLimiterOption func(*RateLimiter)

// WithClock replaces the wall clock and sleep function used by the limiter
func WithClock(now func() time.Time, sleep func(context.Context, time.Duration) error) RateLimiterOption {
	return func(rl *RateLimiter) {
		rl.now = now
		rl.sleep = sleep
	}
}

// NewRateLimiter allows one request per minDelay; a zero delay never waits
func NewRateLimiter(minDelay time.Duration, opts ...RateLimiterOption) *RateLimiter {
	rl := &RateLimiter{
		limiter: rate.NewLimiter(rate.Every(minDelay), 1),
		now:     time.Now,
		sleep:   sleepContext,
	}

	for _, opt := range opts {
		opt(rl)
	}

	return rl
}

// Wait blocks until minDelay has passed since the previous request
func (rl *RateLimiter) Wait(ctx context.Context) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	now := rl.now()
	reservation := rl.limiter.ReserveN(now, 1)
	delay := reservation.DelayFrom(now)
	if delay <= 0 {
		return nil
	}

	log.Debug().Dur("Delay", delay).Msg("rate limiting request")
	if err := rl.sleep(ctx, delay); err != nil {
		reservation.CancelAt(rl.now())
		return err
	}

	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
