// SPDX-License-Identifier: MPL-2.0

//go:build !unix

package install

import "sync"

// Without flock, installs are only serialized within this process.
var processLock sync.Mutex

type installLock struct {
	held bool
}

func acquireLock(string) (*installLock, error) {
	processLock.Lock()
	return &installLock{held: true}, nil
}

// Release unlocks. Calling it twice is a no-op.
func (l *installLock) Release() {
	if l == nil || !l.held {
		return
	}
	l.held = false
	processLock.Unlock()
}
