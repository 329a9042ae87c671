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

package data_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pv-metrics/data"
)

var _ = Describe("RateLimiter", func() {
	var (
		now    time.Time
		sleeps []time.Duration
		rl     *data.RateLimiter
	)

	BeforeEach(func() {
		now = time.Date(2023, 1, 3, 12, 0, 0, 0, time.UTC)
		sleeps = []time.Duration{}
		rl = data.NewRateLimiter(4*time.Second, data.WithClock(
			func() time.Time { return now },
			func(ctx context.Context, d time.Duration) error {
				sleeps = append(sleeps, d)
				now = now.Add(d)
				return nil
			},
		))
	})

	It("does not delay the first request", func() {
		Expect(rl.Wait(context.Background())).To(Succeed())
		Expect(sleeps).To(BeEmpty())
	})

	It("delays back-to-back requests by the minimum delay", func() {
		Expect(rl.Wait(context.Background())).To(Succeed())
		now = now.Add(time.Second)
		Expect(rl.Wait(context.Background())).To(Succeed())
		Expect(sleeps).To(Equal([]time.Duration{3 * time.Second}))
	})

	It("does not delay requests that are already far enough apart", func() {
		Expect(rl.Wait(context.Background())).To(Succeed())
		now = now.Add(5 * time.Second)
		Expect(rl.Wait(context.Background())).To(Succeed())
		Expect(sleeps).To(BeEmpty())
	})

	It("never waits when the delay is zero", func() {
		limiter := data.NewRateLimiter(0, data.WithClock(
			func() time.Time { return now },
			func(ctx context.Context, d time.Duration) error {
				sleeps = append(sleeps, d)
				return nil
			},
		))
		for ii := 0; ii < 3; ii++ {
			Expect(limiter.Wait(context.Background())).To(Succeed())
		}
		Expect(sleeps).To(BeEmpty())
	})

	It("spaces a burst of requests evenly", func() {
		for ii := 0; ii < 3; ii++ {
			Expect(rl.Wait(context.Background())).To(Succeed())
		}
		Expect(sleeps).To(Equal([]time.Duration{4 * time.Second, 4 * time.Second}))
	})

	It("stops waiting when the context is cancelled", func() {
		limiter := data.NewRateLimiter(time.Hour)
		Expect(limiter.Wait(context.Background())).To(Succeed())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		Expect(limiter.Wait(ctx)).To(MatchError(context.Canceled))
	})
})
