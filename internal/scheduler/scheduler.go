// Package scheduler implements a DAG-aware dispatcher: a priority
// queue keyed by job type, per-type concurrency caps, dependency-gated
// dispatch, follow-up continuations running on the worker thread that
// produced their parent, and fail-fast cancellation. It runs on top of
// internal/workpool, keeping "pool.enqueue(job, on_finish)" separate
// from the dispatch loop that decides which job goes next. The
// mutex+condition-variable dispatch loop is grounded on the same
// sync.Cond pattern blobWriter uses for its descNotify coordination in
// blobwriter.go, scaled up to a multi-producer/multi-consumer queue.
package scheduler

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/kraklabs/scint/internal/metrics"
	"github.com/kraklabs/scint/internal/workpool"
)

// Type priorities, lower dispatches first.
const (
	TypeFetchIndex = "fetch_index"
	TypeCloneRepo  = "clone_repo"
	TypeResolve    = "resolve"
	TypeBuild      = "build"
	TypeDownload   = "download"
	TypeExtract    = "extract"
	TypeLink       = "link"
	TypeBinstub    = "binstub"
)

var typePriority = map[string]int{
	TypeFetchIndex: 0,
	TypeCloneRepo:  1,
	TypeResolve:    2,
	TypeBuild:      3,
	TypeDownload:   4,
	TypeExtract:    5,
	TypeLink:       6,
	TypeBinstub:    7,
}

func priorityOf(jobType string) int {
	if p, ok := typePriority[jobType]; ok {
		return p
	}
	return len(typePriority)
}

// State is a job's lifecycle stage.
type State int

const (
	Pending State = iota
	Running
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// ID identifies a job within one Scheduler instance.
type ID int64

// Job is a unit of scheduled work.
type Job struct {
	ID        ID
	Type      string
	Name      string
	Payload   any
	DependsOn []ID

	State  State
	Result any
	Err    error

	seq          int64
	followUp     FollowUpFunc
	dispatchedAt time.Time
}

// FollowUpFunc is invoked on the worker thread that processed a
// completed job, outside the scheduler's mutex; it may enqueue freely.
// The scheduler discards the returned error: it is not recorded and
// never aborts the run.
type FollowUpFunc func(s *Scheduler, parent Job) error

// Handler runs a job's payload and returns its result or error, the
// same contract workpool.Pool expects.
type Handler func(job Job) (any, error)

// Config configures scheduler limits.
type Config struct {
	MaxWorkers     int
	InitialWorkers int
	PerTypeLimits  map[string]int
	FailFast       bool
}

// Scheduler dispatches Jobs onto a workpool.Pool respecting priority,
// per-type caps, and dependency ordering.
type Scheduler struct {
	mu   sync.Mutex
	cond *sync.Cond

	cfg     Config
	handler Handler
	pool    *workpool.Pool

	pending   []*Job // priority-sorted
	running   map[ID]*Job
	completed map[ID]*Job

	typeRunning map[string]int
	nextID      int64
	nextSeq     int64

	aborted           bool
	shuttingDown      bool
	inFlightFollowUps int

	callbacks map[string][]func(Job)

	dispatcherStarted bool
	dispatcherDone    chan struct{}
}

// New builds a Scheduler bound to handler; call Start to bring up the
// worker pool and dispatcher.
func New(cfg Config, handler Handler) *Scheduler {
	s := &Scheduler{
		cfg:         cfg,
		handler:     handler,
		pool:        workpool.New(cfg.MaxWorkers),
		running:     make(map[ID]*Job),
		completed:   make(map[ID]*Job),
		typeRunning: make(map[string]int),
		callbacks:   make(map[string][]func(Job)),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Start is idempotent; it brings up the worker pool and dispatcher
// loop.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.dispatcherStarted {
		s.mu.Unlock()
		return
	}
	s.dispatcherStarted = true
	s.dispatcherDone = make(chan struct{})
	s.mu.Unlock()

	s.pool.Start(s.cfg.InitialWorkers, func(payload any) (any, error) {
		job := payload.(Job)
		return s.handler(job)
	})

	go s.dispatchLoop()
}

// Enqueue returns a fresh job id, or false if the scheduler has
// aborted and is refusing new work.
func (s *Scheduler) Enqueue(jobType, name string, payload any, dependsOn []ID, followUp FollowUpFunc) (ID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.aborted {
		return 0, false
	}

	s.nextID++
	s.nextSeq++
	job := &Job{
		ID:        ID(s.nextID),
		Type:      jobType,
		Name:      name,
		Payload:   payload,
		DependsOn: append([]ID(nil), dependsOn...),
		State:     Pending,
		seq:       s.nextSeq,
		followUp:  followUp,
	}
	s.insertPendingLocked(job)
	s.cond.Broadcast()
	return job.ID, true
}

// insertPendingLocked inserts job into s.pending keeping it sorted by
// (priority ascending, seq ascending) via binary search.
func (s *Scheduler) insertPendingLocked(job *Job) {
	idx := sort.Search(len(s.pending), func(i int) bool {
		pi, pj := priorityOf(s.pending[i].Type), priorityOf(job.Type)
		if pi != pj {
			return pi > pj
		}
		return s.pending[i].seq > job.seq
	})
	s.pending = append(s.pending, nil)
	copy(s.pending[idx+1:], s.pending[idx:])
	s.pending[idx] = job
}

func (s *Scheduler) terminalLocked(id ID) (State, bool) {
	if j, ok := s.completed[id]; ok {
		return j.State, true
	}
	return 0, false
}

func (s *Scheduler) dependenciesTerminalLocked(job *Job) bool {
	for _, dep := range job.DependsOn {
		if _, ok := s.terminalLocked(dep); !ok {
			return false
		}
	}
	return true
}

func (s *Scheduler) typeSlotAvailableLocked(jobType string) bool {
	limit, ok := s.cfg.PerTypeLimits[jobType]
	if !ok {
		return true
	}
	return s.typeRunning[jobType] < limit
}

// dispatchLoop is the single dispatcher thread.
func (s *Scheduler) dispatchLoop() {
	defer close(s.dispatcherDone)
	for {
		s.mu.Lock()
		var job *Job
		for {
			if s.shuttingDown {
				s.mu.Unlock()
				return
			}
			if s.aborted && len(s.running) == 0 {
				s.mu.Unlock()
				return
			}
			if len(s.running) >= s.currentWorkersLocked() {
				s.cond.Wait()
				continue
			}
			job = s.firstDispatchableLocked()
			if job != nil {
				s.removePendingLocked(job)
				job.State = Running
				job.dispatchedAt = time.Now()
				s.running[job.ID] = job
				s.typeRunning[job.Type]++
				break
			}
			s.cond.Wait()
		}
		s.mu.Unlock()

		metrics.JobsDispatched.WithValues(job.Type).Inc()
		j := *job
		s.pool.Enqueue(j, func(result any, err error) {
			s.onFinish(job, result, err)
		})
	}
}

func (s *Scheduler) currentWorkersLocked() int {
	return s.pool.Workers()
}

func (s *Scheduler) firstDispatchableLocked() *Job {
	for _, job := range s.pending {
		if s.typeSlotAvailableLocked(job.Type) && s.dependenciesTerminalLocked(job) {
			return job
		}
	}
	return nil
}

func (s *Scheduler) removePendingLocked(job *Job) {
	for i, p := range s.pending {
		if p.ID == job.ID {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
}

// onFinish runs on the worker goroutine that executed job.
func (s *Scheduler) onFinish(job *Job, result any, err error) {
	metrics.JobDuration.WithValues(job.Type).UpdateSince(job.dispatchedAt)

	s.mu.Lock()
	delete(s.running, job.ID)
	s.typeRunning[job.Type]--
	job.Result = result
	job.Err = err
	if err != nil {
		job.State = Failed
	} else {
		job.State = Completed
	}
	s.completed[job.ID] = job
	s.cond.Broadcast()

	if job.State == Failed && s.cfg.FailFast {
		s.aborted = true
		s.failPendingLocked()
		s.cond.Broadcast()
	}

	var cbs []func(Job)
	if job.State == Completed {
		cbs = append(cbs, s.callbacks[job.Type]...)
	}
	aborted := s.aborted
	followUp := job.followUp
	s.mu.Unlock()

	for _, cb := range cbs {
		cb(*job)
	}

	if followUp != nil && job.State == Completed && !aborted {
		s.mu.Lock()
		s.inFlightFollowUps++
		s.mu.Unlock()

		s.runFollowUp(followUp, *job)

		s.mu.Lock()
		s.inFlightFollowUps--
		s.cond.Broadcast()
		s.mu.Unlock()
	}
}

// runFollowUp recovers from a panicking follow-up so it is not fatal;
// the panic value and the follow-up's returned error are both
// discarded.
func (s *Scheduler) runFollowUp(fn FollowUpFunc, parent Job) {
	defer func() {
		recover()
	}()
	fn(s, parent)
}

// failPendingLocked marks every currently pending job as Failed so
// wait_for/wait_for_job/wait_all calls waiting on them don't block
// forever after fail_fast aborts the run: pending work is dropped and
// new enqueues are refused.
func (s *Scheduler) failPendingLocked() {
	for _, job := range s.pending {
		job.State = Failed
		job.Err = errAborted
		s.completed[job.ID] = job
	}
	s.pending = nil
}

var errAborted = errors.New("scheduler: aborted by fail_fast before dispatch")

// WaitFor blocks until no pending or running job of jobType remains.
func (s *Scheduler) WaitFor(jobType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.hasWorkOfTypeLocked(jobType) {
		s.cond.Wait()
	}
}

func (s *Scheduler) hasWorkOfTypeLocked(jobType string) bool {
	if s.typeRunning[jobType] > 0 {
		return true
	}
	for _, j := range s.pending {
		if j.Type == jobType {
			return true
		}
	}
	return false
}

// WaitForJob blocks until id reaches a terminal state and returns it.
func (s *Scheduler) WaitForJob(id ID) Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if j, ok := s.completed[id]; ok {
			return *j
		}
		s.cond.Wait()
	}
}

// WaitAll blocks until pending is empty (or aborted), running is
// empty, and in_flight_follow_ups == 0.
func (s *Scheduler) WaitAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		pendingDone := len(s.pending) == 0 || s.aborted
		if pendingDone && len(s.running) == 0 && s.inFlightFollowUps == 0 {
			return
		}
		s.cond.Wait()
	}
}

// OnComplete registers a callback for jobType, run after progress
// notification, outside the scheduler mutex.
func (s *Scheduler) OnComplete(jobType string, cb func(Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks[jobType] = append(s.callbacks[jobType], cb)
}

// ScaleTo grows the worker pool to n (never shrinks).
func (s *Scheduler) ScaleTo(n int) {
	s.pool.GrowTo(n)
	s.mu.Lock()
	s.cond.Broadcast()
	s.mu.Unlock()
}

// Shutdown waits for all work then stops the dispatcher and pool.
func (s *Scheduler) Shutdown() {
	s.WaitAll()
	s.mu.Lock()
	s.shuttingDown = true
	s.cond.Broadcast()
	s.mu.Unlock()
	if s.dispatcherDone != nil {
		<-s.dispatcherDone
	}
	s.pool.Stop()
}

// Stats reports a snapshot of queue depths.
type Stats struct {
	Pending   int
	Running   int
	Completed int
	Failed    int
}

func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{Pending: len(s.pending), Running: len(s.running)}
	for _, j := range s.completed {
		if j.State == Completed {
			st.Completed++
		} else {
			st.Failed++
		}
	}
	return st
}

func (s *Scheduler) Failed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.completed {
		if j.State == Failed {
			return true
		}
	}
	return false
}

func (s *Scheduler) Aborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}
