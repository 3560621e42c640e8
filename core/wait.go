package core

import "time"

// waitFor polls cond under the driver mutex until it reports true, racing the
// poll loop against a deadline timer. The timed-out branch only returns false;
// state mutated by partial progress is kept. cond must not block.
func (d *Driver) waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	poll := time.NewTicker(d.cfg.PollInterval)
	defer poll.Stop()

	for {
		d.mu.Lock()
		ok := cond()
		d.mu.Unlock()
		if ok {
			return true
		}
		select {
		case <-deadline.C:
			return false
		case <-poll.C:
		}
	}
}
