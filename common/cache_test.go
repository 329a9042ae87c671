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

package common_test

import (
	"bytes"
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/viper"

	"github.com/penny-vault/pv-metrics/common"
)

var _ = Describe("Cache", func() {
	var (
		ctx context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		viper.Set("cache.redis_url", "")
		viper.Set("cache.local_size", 4)
		Expect(common.SetupCache()).To(BeNil())
	})

	It("returns what was stored", func() {
		payload := bytes.Repeat([]byte("adjclose,"), 512)
		key := common.CacheKey("yahoo", "VFIAX", "2023-06-01")

		Expect(common.CacheSet(ctx, key, payload)).To(BeNil())

		val, err := common.CacheGet(ctx, key)
		Expect(err).To(BeNil())
		Expect(val).To(Equal(payload))
	})

	It("reports a miss for unknown keys", func() {
		_, err := common.CacheGet(ctx, common.CacheKey("missing"))
		Expect(errors.Is(err, common.ErrCacheMiss)).To(BeTrue())
	})

	It("evicts the oldest entry when full", func() {
		for _, ticker := range []string{"A", "B", "C", "D", "E"} {
			Expect(common.CacheSet(ctx, common.CacheKey(ticker), []byte(ticker))).To(BeNil())
		}

		_, err := common.CacheGet(ctx, common.CacheKey("A"))
		Expect(errors.Is(err, common.ErrCacheMiss)).To(BeTrue())

		val, err := common.CacheGet(ctx, common.CacheKey("E"))
		Expect(err).To(BeNil())
		Expect(string(val)).To(Equal("E"))
	})

	Context("when building keys", func() {
		It("is deterministic", func() {
			Expect(common.CacheKey("a", "b")).To(Equal(common.CacheKey("a", "b")))
			Expect(common.CacheKey("a", "b")).To(HaveLen(64))
		})

		It("depends on the order of the parts", func() {
			Expect(common.CacheKey("a", "b")).ToNot(Equal(common.CacheKey("b", "a")))
		})
	})
})

var _ = Describe("Version", func() {
	It("formats a release version without a suffix", func() {
		v := common.Version{Major: 1, Minor: 2, Patch: 3}
		Expect(v.String()).To(Equal("1.2.3"))
	})

	It("appends the pre-release suffix", func() {
		v := common.Version{Major: 0, Minor: 4, Patch: 0, Suffix: "dev"}
		Expect(v.String()).To(Equal("0.4.0-dev"))
	})
})
