package core

/*
rxglyph — fast tool in Go for hunting homoglyph lookalike domains
Copyright (C) 2025  Pepijn van der Stap <rxtls@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

import (
	"math"
	"sync/atomic"
)

// Bounds and steps of the adaptive WHOIS pace, in lookups per second per worker.
const (
	// MinRate is the floor the pace never drops below.
	MinRate = 0.25
	// MaxRate is the ceiling the pace never exceeds.
	MaxRate = 20.0
	// RateIncreaseStep is added after a lookup that produced an answer.
	RateIncreaseStep = 0.25
	// RateDecreaseStep is subtracted after a lookup that failed on every strategy.
	RateDecreaseStep = 1.0
)

// RateLimiter is an additive-increase, additive-decrease rate controller. Registries that
// answer keep the pace climbing; a run of failures (usually throttling) brings it down fast.
// The rate is held as float64 bits so reads and writes stay lock-free.
type RateLimiter struct {
	currentRate  uint64
	successCount atomic.Uint64
	failureCount atomic.Uint64
	backpressure atomic.Bool
}

// NewRateLimiter returns a RateLimiter starting at initialRate, clamped to [MinRate, MaxRate].
func NewRateLimiter(initialRate float64) *RateLimiter {
	rl := &RateLimiter{}
	rl.setRate(clampRate(initialRate))
	return rl
}

// RecordSuccess counts a success and raises the rate by RateIncreaseStep. While
// backpressure is flagged the rate is held.
func (rl *RateLimiter) RecordSuccess() {
	rl.successCount.Add(1)
	if rl.backpressure.Load() {
		return
	}
	rl.adjustRate(true)
}

// RecordFailure counts a failure and lowers the rate by RateDecreaseStep.
func (rl *RateLimiter) RecordFailure() {
	rl.failureCount.Add(1)
	rl.adjustRate(false)
}

// UpdateBackpressure flags or clears queue backpressure. Flagging it also halves the rate.
func (rl *RateLimiter) UpdateBackpressure(hasBackpressure bool) {
	if hasBackpressure && !rl.backpressure.Swap(true) {
		rl.setRate(clampRate(rl.getRate() / 2))
		return
	}
	if !hasBackpressure {
		rl.backpressure.Store(false)
	}
}

// GetCurrentRate returns the current rate in operations per second.
func (rl *RateLimiter) GetCurrentRate() float64 {
	return rl.getRate()
}

// GetStats returns a snapshot of the limiter state.
func (rl *RateLimiter) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"current_rate":  rl.getRate(),
		"success_count": rl.successCount.Load(),
		"failure_count": rl.failureCount.Load(),
		"backpressure":  rl.backpressure.Load(),
	}
}

func (rl *RateLimiter) adjustRate(success bool) {
	for {
		oldBits := atomic.LoadUint64(&rl.currentRate)
		current := math.Float64frombits(oldBits)
		newRate := current - RateDecreaseStep
		if success {
			newRate = current + RateIncreaseStep
		}
		newBits := math.Float64bits(clampRate(newRate))
		if atomic.CompareAndSwapUint64(&rl.currentRate, oldBits, newBits) {
			return
		}
	}
}

func clampRate(r float64) float64 {
	return math.Max(MinRate, math.Min(MaxRate, r))
}

func (rl *RateLimiter) getRate() float64 {
	return math.Float64frombits(atomic.LoadUint64(&rl.currentRate))
}

func (rl *RateLimiter) setRate(rate float64) {
	atomic.StoreUint64(&rl.currentRate, math.Float64bits(rate))
}
