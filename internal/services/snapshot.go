package services

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// SnapshotJob carries the latest full state of a live document to be
// persisted. Jobs are whole-document replacements; a newer job for the same
// document simply overwrites whatever an older one wrote.
type SnapshotJob struct {
	DocumentID string
	Title      string
	Content    string
}

// SnapshotServiceImpl persists document snapshots through a fixed worker
// pool. The session layer enqueues a job per accepted update and a final one
// when a session's last collaborator leaves; the bounded queue keeps a burst
// of keystrokes from piling up goroutines, and TrySubmit keeps the broadcast
// path from ever blocking on the database.
type SnapshotServiceImpl struct {
	docRepo DocumentRepository

	jobs    chan SnapshotJob
	workers int
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewSnapshotService creates the pool without starting it.
func NewSnapshotService(docRepo DocumentRepository, numWorkers, queueSize int) *SnapshotServiceImpl {
	ctx, cancel := context.WithCancel(context.Background())

	return &SnapshotServiceImpl{
		docRepo: docRepo,
		jobs:    make(chan SnapshotJob, queueSize),
		workers: numWorkers,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start spawns the worker goroutines.
func (s *SnapshotServiceImpl) Start() {
	log.Printf("🔧 Starting snapshot worker pool with %d workers", s.workers)

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	log.Println("✓ Snapshot worker pool started")
}

func (s *SnapshotServiceImpl) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case job, ok := <-s.jobs:
			if !ok {
				return
			}

			// Background context: a final snapshot enqueued during shutdown
			// should still land even after s.ctx is cancelled.
			if err := s.docRepo.SaveSnapshot(context.Background(), job.DocumentID, job.Title, job.Content); err != nil {
				log.Printf("  Worker %d: snapshot for document %s failed: %v", id, job.DocumentID, err)
			}
		}
	}
}

// Submit enqueues a job, blocking when the queue is full (backpressure).
func (s *SnapshotServiceImpl) Submit(job SnapshotJob) error {
	select {
	case s.jobs <- job:
		return nil
	case <-s.ctx.Done():
		return fmt.Errorf("snapshot service is shutting down")
	}
}

// TrySubmit enqueues a job if there is room and drops it otherwise. Used on
// the broadcast path, where a skipped snapshot just means the next update
// writes the fresher state anyway.
func (s *SnapshotServiceImpl) TrySubmit(job SnapshotJob) bool {
	select {
	case s.jobs <- job:
		return true
	default:
		return false
	}
}

// QueueLength returns the number of pending jobs.
func (s *SnapshotServiceImpl) QueueLength() int {
	return len(s.jobs)
}

// Shutdown stops accepting jobs and waits for workers to finish their
// current writes.
func (s *SnapshotServiceImpl) Shutdown() {
	log.Println("🛑 Shutting down snapshot service...")

	close(s.jobs)
	s.wg.Wait()
	s.cancel()

	log.Println("✓ Snapshot service shutdown complete")
}
