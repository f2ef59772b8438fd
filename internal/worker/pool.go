// Package worker provides background analysis of song preview clips. The
// pool sits behind the playlist path: enrichment submits previews, workers
// compute an energy score, and the score lands back on the catalog entry.
package worker

import (
	"context"
	"sync"

	"github.com/ewilliams-labs/tapestry/internal/core/ports"
	"github.com/ewilliams-labs/tapestry/internal/logger"
)

// Job identifies a catalog entry and the preview clip to analyze for it.
type Job struct {
	SubVibe    string
	TrackID    string
	PreviewURL string
}

// Pool manages background workers for preview analysis.
type Pool struct {
	store ports.TapestryStore
	log   *logger.Logger
	jobs  chan Job
	wg    sync.WaitGroup
}

// NewPool creates a worker pool with the given queue size.
func NewPool(store ports.TapestryStore, queueSize int, log *logger.Logger) *Pool {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Pool{store: store, log: log, jobs: make(chan Job, queueSize)}
}

// Start launches the worker goroutines.
func (p *Pool) Start(workers int) {
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				p.processJob(job)
			}
		}()
	}
}

// Stop closes the queue and waits for in-flight jobs to drain.
func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
}

// Submit queues a job without blocking; when the queue is full the job is
// dropped, since analysis is opportunistic.
func (p *Pool) Submit(subVibe, trackID, previewURL string) {
	select {
	case p.jobs <- Job{SubVibe: subVibe, TrackID: trackID, PreviewURL: previewURL}:
	default:
		p.log.Warn("dropping analysis job", "track_id", trackID)
	}
}

func (p *Pool) processJob(job Job) {
	if job.PreviewURL == "" {
		return
	}

	energy, err := AnalyzePreviewFunc(job.PreviewURL)
	if err != nil {
		p.log.Warn("preview analysis failed", "track_id", job.TrackID, "error", err)
		return
	}

	if err := p.store.UpdatePreviewEnergy(context.Background(), job.SubVibe, job.TrackID, energy); err != nil {
		p.log.Warn("preview energy update failed", "track_id", job.TrackID, "error", err)
		return
	}
	p.log.Debug("preview analyzed", "track_id", job.TrackID, "energy", energy)
}
