package workers

import (
	"log/slog"
	"time"

	"github.com/alitto/pond"
)

// PoolManager owns the goroutine pools the server schedules background work
// on. NotifyPool carries push-notification fan-out; GeneralPool carries
// periodic maintenance (the memory-cache sweep). Per-stream request
// handling never runs here.
type PoolManager struct {
	NotifyPool  *pond.WorkerPool
	GeneralPool *pond.WorkerPool
}

type PoolConfig struct {
	NotifyWorkers  int
	GeneralWorkers int
}

func NewPoolManager(config PoolConfig) *PoolManager {
	return &PoolManager{
		NotifyPool: pond.New(
			config.NotifyWorkers,
			config.NotifyWorkers*4,
			pond.MinWorkers(1),
			pond.IdleTimeout(30*time.Second),
		),
		GeneralPool: pond.New(
			config.GeneralWorkers,
			config.GeneralWorkers*2,
			pond.MinWorkers(1),
			pond.IdleTimeout(30*time.Second),
		),
	}
}

// SubmitTask schedules work on the general pool.
func (pm *PoolManager) SubmitTask(task func()) {
	pm.GeneralPool.Submit(task)
}

// NotifyGroup returns a task group on the notification pool; the notifier
// uses it to wait for a whole fan-out.
func (pm *PoolManager) NotifyGroup() *pond.TaskGroup {
	return pm.NotifyPool.Group()
}

func (pm *PoolManager) Shutdown() {
	slog.Info("Shutting down worker pools...")
	pm.NotifyPool.StopAndWait()
	pm.GeneralPool.StopAndWait()
}
