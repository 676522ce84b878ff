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
	"context"
	"time"
)

// Scheduler queue and retry tuning.
const (
	// MaxShardQueueSize is the capacity of each worker's queue.
	MaxShardQueueSize = 1000

	// Retry backoff for submissions rejected with ErrQueueFull.
	RetryBaseDelay         = 125 * time.Millisecond
	RetryMaxDelay          = 5 * time.Second
	RetryBackoffMultiplier = 1.5
	RetryJitterFactor      = 0.2
)

// WorkItem is one probe of one domain. Items are pooled by the scheduler and must not be
// retained by callbacks after they return.
type WorkItem struct {
	// Key selects the worker shard; probes use the ASCII domain.
	Key       string
	Callback  WorkCallback
	Ctx       context.Context
	CreatedAt time.Time
	Attempt   int
}

// WorkCallback is the function a worker runs for a WorkItem.
type WorkCallback func(item *WorkItem) error

// retryDelay returns the backoff before submission attempt n (starting at 1), with jitter
// drawn from j in [0,1).
func retryDelay(n int, j float64) time.Duration {
	d := float64(RetryBaseDelay)
	for i := 1; i < n; i++ {
		d *= RetryBackoffMultiplier
	}
	d += d * RetryJitterFactor * (2*j - 1)
	if d > float64(RetryMaxDelay) {
		d = float64(RetryMaxDelay)
	}
	return time.Duration(d)
}
