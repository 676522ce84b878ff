//go:build linux

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

package core

import (
	"log"
	"runtime"

	"golang.org/x/sys/unix"
)

const affinitySupported = true

// setAffinity binds the calling goroutine's OS thread to cpuID. Failure is logged and
// otherwise ignored. The thread stays locked for the worker's lifetime.
func setAffinity(workerID, cpuID int) {
	runtime.LockOSThread()

	var cpuSet unix.CPUSet
	cpuSet.Zero()
	cpuSet.Set(cpuID)

	tid := unix.Gettid()
	if err := unix.SchedSetaffinity(tid, &cpuSet); err != nil {
		log.Printf("Warning: Failed to set CPU affinity for worker %d on core %d (tid: %d): %v\n", workerID, cpuID, tid, err)
	}
}
