package task

import (
	"time"

	"github.com/rs/zerolog/log"
)

// RepeatingTask executes a task in a specific interval asynchronously.
// A panicking task run is logged and the schedule continues; background work
// must never take the process down.
type RepeatingTask struct {
	task     func()
	interval time.Duration

	running bool
	stop    chan struct{}
}

// NewRepeating creates a new repeating asynchronous task
func NewRepeating(task func(), interval time.Duration) *RepeatingTask {
	return &RepeatingTask{
		task:     task,
		interval: interval,
	}
}

// Start starts the repeating task.
// If the task is already running, this is a no-op.
func (task *RepeatingTask) Start() {
	if task.running {
		return
	}
	task.running = true
	task.stop = make(chan struct{})
	go func() {
		for {
			select {
			case <-time.After(task.interval):
				task.run()
			case <-task.stop:
				return
			}
		}
	}()
}

// Stop stops the repeating task.
// If the task is not running, this is a no-op.
// forceExec defines whether to execute the task one last time just before the task shuts down.
func (task *RepeatingTask) Stop(forceExec bool) {
	if !task.running {
		return
	}
	close(task.stop)
	task.running = false
	if forceExec {
		task.run()
	}
}

func (task *RepeatingTask) run() {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Msg("a background task panicked")
		}
	}()
	task.task()
}
