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

package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/penny-vault/pv-metrics/dataframe"
	"github.com/penny-vault/pv-metrics/observability/opentelemetry"
)

const (
	DefaultRiskFreeRate = 0.03
	VaRConfidence       = 0.95
)

// RateProvider supplies the current annualized risk free rate
type RateProvider interface {
	GetCurrentRate(ctx context.Context) float64
}

// Engine computes metric records. The risk free rate is requested once per
// engine and shared by every record it computes.
type Engine struct {
	rates RateProvider
	now   func() time.Time

	once sync.Once
	rate float64
}

type EngineOption func(*Engine)

func WithNow(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an engine; a nil provider uses DefaultRiskFreeRate
func NewEngine(rates RateProvider, opts ...EngineOption) *Engine {
	e := &Engine{
		rates: rates,
		now:   time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// RiskFreeRate returns the annualized risk free rate used by the engine
func (e *Engine) RiskFreeRate(ctx context.Context) float64 {
	e.once.Do(func() {
		e.rate = DefaultRiskFreeRate
		if e.rates != nil {
			e.rate = e.rates.GetCurrentRate(ctx)
		}
		log.Debug().Float64("Rate", e.rate).Msg("risk free rate for metrics")
	})
	return e.rate
}

// Compute calculates every metric for the ticker. Each metric decides on its
// own whether there is enough data; a short history never blanks out the
// metrics that can be computed.
func (e *Engine) Compute(ctx context.Context, ticker, name string, adjusted, dividends *dataframe.Series) *Record {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "metrics.Compute")
	defer span.End()

	span.SetAttributes(
		attribute.String("Ticker", ticker),
		attribute.Int("NumPrices", adjusted.Len()),
	)

	if name == "" {
		name = ticker
	}

	rate := e.RiskFreeRate(ctx)
	year := e.now().Year()
	rec := NewRecord(ticker, name, year)
	rec.RiskFreeRate = rate

	rec.Values[Yield] = TrailingYield(adjusted, dividends)
	rec.Values[Sharpe] = SharpeRatio(adjusted, rate)
	rec.Values[DailyReturn] = PeriodReturn(adjusted, DailyPeriods)
	rec.Values[WeeklyReturn] = PeriodReturn(adjusted, WeeklyPeriods)
	rec.Values[MonthlyReturn] = PeriodReturn(adjusted, MonthlyPeriods)
	rec.Values[YearToDateReturn] = YTDReturn(adjusted, e.now())
	rec.Values[OneYearReturn] = PeriodReturn(adjusted, TradingDaysYear)
	rec.Values[PriorYearReturn] = CalendarYearReturn(adjusted, year-1)
	rec.Values[SecondPriorYearReturn] = CalendarYearReturn(adjusted, year-2)
	rec.Values[Annualized] = AnnualizedReturn(adjusted)
	rec.Values[AnnualVolatility] = Volatility(adjusted)
	rec.Values[Drawdown] = MaxDrawdown(adjusted)
	rec.Values[Sortino] = SortinoRatio(adjusted, rate)
	rec.Values[VaR95] = ValueAtRisk(adjusted, VaRConfidence)

	if adjusted.Len() < MinHistoryDays {
		log.Info().Str("Ticker", ticker).Int("NumPrices", adjusted.Len()).Int("Required", MinHistoryDays).Msg("insufficient history for risk metrics")
	}

	return rec
}
