package workers

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/camden-git/facegatebackend/models"
	"github.com/camden-git/facegatebackend/repository"
)

// AuditJob carries one record to persist: an access event or a training session
type AuditJob struct {
	Event   *models.AccessLog
	Session *models.TrainingSession
}

// AuditWriter persists audit records asynchronously so a degraded database
// can never stall the recognition loop. A single worker drains a bounded
// queue in submission order; each write is retried with exponential backoff
// a bounded number of times and then dropped. When the queue overflows the
// oldest pending record is dropped in favor of the new one.
type AuditWriter struct {
	logs     repository.AccessLogRepositoryInterface
	sessions repository.TrainingSessionRepositoryInterface

	queue       chan AuditJob
	stopChan    chan struct{}
	wg          sync.WaitGroup
	enqueueMu   sync.Mutex
	maxRetries  int
	baseBackoff time.Duration

	degraded atomic.Bool
	dropped  atomic.Int64
}

func NewAuditWriter(logs repository.AccessLogRepositoryInterface, sessions repository.TrainingSessionRepositoryInterface, queueSize, maxRetries int, baseBackoff time.Duration) *AuditWriter {
	if queueSize <= 0 {
		queueSize = 100
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseBackoff <= 0 {
		baseBackoff = 250 * time.Millisecond
	}

	w := &AuditWriter{
		logs:        logs,
		sessions:    sessions,
		queue:       make(chan AuditJob, queueSize),
		stopChan:    make(chan struct{}),
		maxRetries:  maxRetries,
		baseBackoff: baseBackoff,
	}
	w.wg.Add(1)
	go w.run()
	log.Printf("Started audit writer (queue size %d, max retries %d)", queueSize, maxRetries)
	return w
}

// Submit enqueues an access event. It never blocks: on a full queue the
// oldest pending job is dropped to make room. Returns false only after Stop.
func (w *AuditWriter) Submit(event *models.AccessLog) bool {
	return w.enqueue(AuditJob{Event: event})
}

// SubmitSession enqueues a training session record
func (w *AuditWriter) SubmitSession(session *models.TrainingSession) bool {
	return w.enqueue(AuditJob{Session: session})
}

func (w *AuditWriter) enqueue(job AuditJob) bool {
	select {
	case <-w.stopChan:
		return false
	default:
	}

	// serialize the pop-then-push so two producers cannot both evict
	w.enqueueMu.Lock()
	defer w.enqueueMu.Unlock()

	for {
		select {
		case w.queue <- job:
			return true
		default:
		}

		select {
		case old := <-w.queue:
			w.dropped.Add(1)
			w.degraded.Store(true)
			log.Printf("audit: queue full, dropped oldest pending record (%s)", jobKind(old))
		default:
		}
	}
}

func (w *AuditWriter) run() {
	defer w.wg.Done()
	for {
		select {
		case job := <-w.queue:
			w.persist(job)
		case <-w.stopChan:
			// drain whatever was accepted before the stop
			for {
				select {
				case job := <-w.queue:
					w.persist(job)
				default:
					return
				}
			}
		}
	}
}

func (w *AuditWriter) persist(job AuditJob) {
	backoff := w.baseBackoff
	for attempt := 0; ; attempt++ {
		var err error
		if job.Event != nil {
			err = w.logs.Create(job.Event)
		} else if job.Session != nil {
			err = w.sessions.Create(job.Session)
		} else {
			return
		}

		if err == nil {
			w.degraded.Store(false)
			return
		}

		if attempt >= w.maxRetries {
			w.dropped.Add(1)
			w.degraded.Store(true)
			log.Printf("audit: ERROR dropping %s after %d attempt(s): %v", jobKind(job), attempt+1, err)
			return
		}

		log.Printf("audit: write failed (attempt %d/%d), retrying in %s: %v", attempt+1, w.maxRetries+1, backoff, err)
		time.Sleep(backoff)
		backoff *= 2
	}
}

// Degraded reports whether the writer has recently dropped records or is
// failing to persist. It clears on the next successful write.
func (w *AuditWriter) Degraded() bool {
	return w.degraded.Load()
}

// DroppedCount returns the total number of records lost to overflow or
// exhausted retries since startup.
func (w *AuditWriter) DroppedCount() int64 {
	return w.dropped.Load()
}

// Stop refuses new submissions, drains the queue and waits for the worker
func (w *AuditWriter) Stop() {
	log.Println("Stopping audit writer...")
	close(w.stopChan)
	w.wg.Wait()
	log.Println("Audit writer stopped")
}

func jobKind(job AuditJob) string {
	if job.Event != nil {
		return "access event"
	}
	return "training session"
}
