package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/i474232898/climatempo-relay/internal/logger"
	"github.com/i474232898/climatempo-relay/internal/relay"
	"github.com/i474232898/climatempo-relay/internal/weather"
)

// Fetcher produces a report for one subject.
type Fetcher interface {
	Fetch(ctx context.Context, s weather.Subject) (weather.ReportRecord, error)
}

// ReportWriter prepends blocks to the day's report file.
type ReportWriter interface {
	PathFor(t time.Time) string
	AppendBlock(path, block string) error
}

// LogFlusher persists the buffered log lines.
type LogFlusher interface {
	Flush(now time.Time, lines []string) error
}

// Sender is an open relay connection.
type Sender interface {
	Send(payload string) error
	Close() error
}

// Connector opens the relay connection of a run.
type Connector func(ctx context.Context) (Sender, error)

// RelayConnector adapts a relay.Channel to a Connector.
func RelayConnector(ch *relay.Channel) Connector {
	return func(ctx context.Context) (Sender, error) {
		conn, err := ch.Connect(ctx)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// Step names the stage of a subject sequence.
type Step string

const (
	StepFetch   Step = "fetch"
	StepPersist Step = "persist"
	StepRelay   Step = "relay"
)

// SubjectResult is the outcome of one subject sequence within a run.
type SubjectResult struct {
	Subject    weather.Subject `json:"subject"`
	OK         bool            `json:"ok"`
	FailedStep Step            `json:"failedStep,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// RunStatus describes a completed run.
type RunStatus struct {
	ID         string          `json:"id"`
	StartedAt  time.Time       `json:"startedAt"`
	FinishedAt time.Time       `json:"finishedAt"`
	Subjects   []SubjectResult `json:"subjects"`
	Aborted    bool            `json:"aborted,omitempty"`
}

// Deps bundles the collaborators of a Job.
type Deps struct {
	Fetcher Fetcher
	Reports ReportWriter
	Logs    LogFlusher
	Connect Connector
	Log     *logger.Logger
}

// Job runs fetch, persist and relay for every subject, flushing logs after
// each subject. At most one run is active; overlapping ticks are dropped.
type Job struct {
	subjects []weather.Subject
	deps     Deps
	now      func() time.Time
	loc      *time.Location

	running atomic.Bool
	skipped atomic.Int64

	mu   sync.RWMutex
	last *RunStatus
}

// NewJob creates a Job for subjects.
func NewJob(subjects []weather.Subject, deps Deps) *Job {
	return &Job{
		subjects: subjects,
		deps:     deps,
		now:      time.Now,
	}
}

// SetClock replaces the time source used for file names and run status.
func (j *Job) SetClock(now func() time.Time) {
	if now != nil {
		j.now = now
	}
}

// SetLocation makes report and log file days follow loc, the zone the
// schedule fires in, instead of the process zone.
func (j *Job) SetLocation(loc *time.Location) {
	j.loc = loc
}

func (j *Job) today() time.Time {
	t := j.now()
	if j.loc != nil {
		t = t.In(j.loc)
	}
	return t
}

// LastRun returns the status of the most recent completed run.
func (j *Job) LastRun() (RunStatus, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.last == nil {
		return RunStatus{}, false
	}
	return *j.last, true
}

// Skipped returns how many ticks were dropped because a run was in progress.
func (j *Job) Skipped() int64 {
	return j.skipped.Load()
}

// Running reports whether a run is in progress.
func (j *Job) Running() bool {
	return j.running.Load()
}

// Run executes one tick. It returns false only when the tick was skipped;
// a run that fails or panics still reports true.
// Errors never escape; they are logged and recorded in the run status.
func (j *Job) Run(ctx context.Context) (ran bool) {
	log := j.deps.Log
	if !j.running.CAS(false, true) {
		j.skipped.Inc()
		log.Log("Previous run still in progress; skipping tick")
		return false
	}
	ran = true
	defer j.running.Store(false)

	status := &RunStatus{ID: uuid.NewString(), StartedAt: j.now()}
	sess := &session{ctx: ctx, connect: j.deps.Connect}

	defer func() {
		if r := recover(); r != nil {
			status.Aborted = true
			log.Error(fmt.Errorf("panic: %v", r), "Job {} aborted", status.ID)
		}
		if err := sess.close(); err != nil {
			log.Error(err, "Failed to close websocket connection")
		}
		status.FinishedAt = j.now()
		j.mu.Lock()
		j.last = status
		j.mu.Unlock()
		log.Log("Job {} finished", status.ID)
		j.flush()
	}()

	log.Log("Starting job {}", status.ID)
	for _, s := range j.subjects {
		status.Subjects = append(status.Subjects, j.runSubject(sess, s))
	}
	return true
}

func (j *Job) runSubject(sess *session, s weather.Subject) SubjectResult {
	log := j.deps.Log
	res := SubjectResult{Subject: s}
	defer j.flush()

	fail := func(step Step, err error) SubjectResult {
		res.FailedStep = step
		res.Error = fmt.Sprint(err)
		log.Error(err, "Error during {} step for {}", string(step), s.Key())
		return res
	}

	log.Log("Starting step to fetch metrics for {}", s.Key())

	rec, err := j.deps.Fetcher.Fetch(sess.ctx, s)
	if err != nil {
		return fail(StepFetch, err)
	}
	block := rec.Block()

	if err := j.deps.Reports.AppendBlock(j.deps.Reports.PathFor(j.today()), block); err != nil {
		return fail(StepPersist, err)
	}

	if err := sess.send(block); err != nil {
		return fail(StepRelay, err)
	}

	log.Log("Finished step to fetch metrics for {}", s.Key())
	res.OK = true
	return res
}

// flush writes the whole buffer to the day's log file. Failures go to stderr only.
func (j *Job) flush() {
	log := j.deps.Log
	if err := j.deps.Logs.Flush(j.today(), log.Buffer().Lines()); err != nil {
		log.Error(err, "Failed to persist logs")
	}
}

var errNoConnector = errors.New("relay connector not configured")

// session holds the relay connection of one run. It is opened on the first
// send, shared by later sends and closed when the run ends. A failed connect
// is not retried within the run.
type session struct {
	ctx     context.Context
	connect Connector

	conn    Sender
	connErr error
	dialed  bool
}

func (s *session) send(payload string) error {
	if !s.dialed {
		s.dialed = true
		if s.connect == nil {
			s.connErr = fmt.Errorf("%w: %w", relay.ErrRelay, errNoConnector)
		} else {
			s.conn, s.connErr = s.connect(s.ctx)
			if s.connErr == nil && s.conn == nil {
				s.connErr = fmt.Errorf("%w: connector returned no connection", relay.ErrRelay)
			}
		}
	}
	if s.connErr != nil {
		return s.connErr
	}
	return s.conn.Send(payload)
}

func (s *session) close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
