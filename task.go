package twai

import (
	"runtime"
	"time"
)

// pollTask calls a poll function, then sleeps for the period, until
// stopped. The stop request is checked between cycles, so a cycle in
// progress always completes.
type pollTask struct {
	core   int
	stopCh chan struct{}
	done   chan struct{}
}

// startPollTask launches the task goroutine. core is the processor the task
// is meant for; Go cannot pin goroutines to a core, so the goroutine locks
// its OS thread and records core for diagnostics.
func startPollTask(poll func(), every time.Duration, core int) *pollTask {
	t := &pollTask{
		core:   core,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go t.run(poll, every)
	return t
}

func (t *pollTask) run(poll func(), every time.Duration) {
	defer close(t.done)
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		select {
		case <-t.stopCh:
			return
		default:
		}
		poll()

		// a full period elapses between cycles
		timer := time.NewTimer(every)
		select {
		case <-t.stopCh:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// stop requests termination and waits for the goroutine to exit.
func (t *pollTask) stop() {
	select {
	case <-t.stopCh:
	default:
		close(t.stopCh)
	}
	<-t.done
}
