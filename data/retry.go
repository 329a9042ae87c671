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
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

const (
	MaxAttempts = 3
)

// retry runs op until it succeeds, returns a permanent error, or has been
// attempted the given number of times. Waits between attempts grow
// exponentially from initial.
func retry(ctx context.Context, attempts int, initial time.Duration, op func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = initial
	expBackoff.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(expBackoff, uint64(attempts-1)), ctx)

	attempt := 1
	return backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		log.Warn().Err(err).Int("Attempt", attempt).Int("MaxAttempts", attempts).Dur("Wait", wait).Msg("request failed; retrying")
		attempt++
	})
}
