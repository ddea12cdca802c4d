package importer

import (
	"context"
	"log"
	"time"
)

// Runner is the background executor for large-file imports. It scans for the
// oldest runnable job (pending, or processing left behind by a previous
// crash) and drives it to a terminal state. One job runs at a time, which is
// also what guarantees a single active run per job.
type Runner struct {
	controller *Controller
	jobs       JobStore
	interval   time.Duration
	stop       chan struct{}
}

// NewRunner creates the worker; call Start to launch it.
func NewRunner(controller *Controller, jobs JobStore, interval time.Duration) *Runner {
	return &Runner{
		controller: controller,
		jobs:       jobs,
		interval:   interval,
		stop:       make(chan struct{}),
	}
}

// Start launches the scan loop in the background.
func (r *Runner) Start() {
	go func() {
		log.Println("📡 Import runner started")

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				r.runOnce()
			case <-r.stop:
				log.Println("🛑 Import runner stopped")
				return
			}
		}
	}()
}

// Stop halts the scan loop. A job mid-chunk finishes its checkpoint first on
// the next Process call; nothing is lost beyond the in-flight chunk.
func (r *Runner) Stop() {
	close(r.stop)
}

// processingGrace is how long a processing job may go without a checkpoint
// before the runner considers its owner dead and resumes it. Must exceed the
// chunk wall-clock budget, which bounds the gap between checkpoints of a
// healthy run.
const processingGrace = 2 * time.Minute

func (r *Runner) runOnce() {
	ctx := context.Background()

	job, err := r.jobs.NextRunnable(ctx, time.Now().Add(-processingGrace))
	if err != nil {
		log.Printf("⚠️  Import runner scan failed: %v", err)
		return
	}
	if job == nil {
		return
	}

	if job.LastProcessedRow > 0 {
		log.Printf("🔄 Resuming import job %s from row %d", job.ID, job.LastProcessedRow)
	} else {
		log.Printf("📥 Picking up import job %s (%s, %d bytes)", job.ID, job.FileName, job.FileBytes)
	}

	if _, err := r.controller.Process(ctx, job.ID); err != nil {
		// Transient: the checkpoint is intact, the next scan resumes it.
		log.Printf("⚠️  Import job %s interrupted, will resume: %v", job.ID, err)
	}
}
