package syncer

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/bartek5186/mosync/internal/integrations"
	"github.com/bartek5186/mosync/internal/localtime"
	"github.com/rs/zerolog"
)

// Status to migawka stanu schedulera wystawiana przez API.
type Status struct {
	Name            string   `json:"name"`
	Running         bool     `json:"running"`
	IsSyncing       bool     `json:"isSyncing"`
	IntervalMinutes int      `json:"interval_minutes"`
	RunCount        int      `json:"run_count"`
	LastRunAt       *string  `json:"last_run_at"`
	NextRunAt       *string  `json:"next_run_at"`
	LastOK          *bool    `json:"last_ok"`
	LastDurationSec *float64 `json:"last_duration_sec"`
	LastError       *string  `json:"last_error"`
}

type state struct {
	running      bool
	syncing      bool
	interval     time.Duration
	runCount     int
	lastRunAt    time.Time
	nextRunAt    time.Time
	lastOK       *bool
	lastDuration time.Duration
	lastError    string
}

// Scheduler odpala jeden job: od razu po starcie, potem co interval.
// Tick w trakcie trwającego przebiegu tylko planuje następny.
type Scheduler struct {
	log  zerolog.Logger
	name string

	mu    sync.Mutex
	job   integrations.Job // podmieniany przy przeładowaniu configu
	clock localtime.Clock
	st    state
	gen   uint64 // każdy Start unieważnia timery poprzedniego
	timer *time.Timer
	base  context.Context
	wg    sync.WaitGroup // przebiegi w toku
}

func NewScheduler(log zerolog.Logger, job integrations.Job, clock localtime.Clock) *Scheduler {
	return &Scheduler{
		log:   log.With().Str("job", job.Name()).Logger(),
		name:  job.Name(),
		job:   job,
		clock: clock,
	}
}

func (s *Scheduler) Name() string { return s.name }

// Job zwraca aktualny job.
func (s *Scheduler) Job() integrations.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.job
}

// Swap podmienia job i zegar. Przebieg w toku kończy się na starym jobie,
// następny bierze nowy; stan (w tym syncing) zostaje, więc nie ma nakładki.
func (s *Scheduler) Swap(job integrations.Job, clock localtime.Clock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.job = job
	s.clock = clock
}

// Start (re)startuje harmonogram. Przebiegi dziedziczą ctx, nie sam Start,
// więc Stop nie przerywa przebiegu w toku.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("scheduler %s: interval must be positive", s.name)
	}
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
	gen := s.gen
	s.base = ctx
	s.st.running = true
	s.st.interval = interval
	s.mu.Unlock()

	s.log.Info().Dur("interval", interval).Msg("harmonogram start")
	go s.tick(gen)
	return nil
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.st.running {
		return
	}
	s.st.running = false
	s.st.nextRunAt = time.Time{}
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.log.Info().Msg("harmonogram stop")
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.running
}

func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.interval
}

// Wait czeka na zakończenie przebiegów w toku.
func (s *Scheduler) Wait() { s.wg.Wait() }

func (s *Scheduler) tick(gen uint64) {
	s.mu.Lock()
	if !s.st.running || gen != s.gen {
		s.mu.Unlock()
		return
	}
	// następny tick liczony od początku tego, jak setInterval
	s.st.nextRunAt = s.clock.Time().Add(s.st.interval)
	s.timer = time.AfterFunc(s.st.interval, func() { s.tick(gen) })
	if s.st.syncing {
		s.mu.Unlock()
		s.log.Warn().Msg("poprzedni przebieg trwa, pomijam tick")
		return
	}
	s.st.syncing = true
	ctx, job, clock := s.base, s.job, s.clock
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()
	s.runPass(ctx, job, clock)
}

// RunOnce wykonuje jeden przebieg poza harmonogramem, chyba że inny trwa.
func (s *Scheduler) RunOnce(ctx context.Context) (integrations.Report, error) {
	s.mu.Lock()
	if s.st.syncing {
		s.mu.Unlock()
		return nil, fmt.Errorf("%s: sync already in progress", s.name)
	}
	s.st.syncing = true
	job, clock := s.job, s.clock
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()
	return s.runPass(ctx, job, clock)
}

func (s *Scheduler) runPass(ctx context.Context, job integrations.Job, clock localtime.Clock) (rep integrations.Report, err error) {
	start := clock.Time()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		s.finish(start, clock.Time().Sub(start), rep, err)
	}()
	if ctx == nil {
		ctx = context.Background()
	}
	return job.Run(ctx)
}

func (s *Scheduler) finish(start time.Time, dur time.Duration, rep integrations.Report, err error) {
	failures := 0
	if rep != nil {
		failures = rep.Failures()
	}
	ok := err == nil && failures == 0

	s.mu.Lock()
	s.st.syncing = false
	s.st.runCount++
	s.st.lastRunAt = start
	s.st.lastDuration = dur
	s.st.lastOK = &ok
	switch {
	case err != nil:
		s.st.lastError = err.Error()
	case failures > 0:
		s.st.lastError = fmt.Sprintf("%d error(s)", failures)
	default:
		s.st.lastError = ""
	}
	s.mu.Unlock()

	var ev *zerolog.Event
	switch {
	case err != nil:
		ev = s.log.Error().Err(err)
	case failures > 0:
		ev = s.log.Warn().Int("failures", failures)
	default:
		ev = s.log.Info()
	}
	ev.Dur("took", dur).Msg("przebieg zakończony")
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Name:            s.name,
		Running:         s.st.running,
		IsSyncing:       s.st.syncing,
		IntervalMinutes: int(math.Round(s.st.interval.Minutes())),
		RunCount:        s.st.runCount,
		LastError:       nonEmpty(s.st.lastError),
	}
	if !s.st.lastRunAt.IsZero() {
		st.LastRunAt = stamp(s.st.lastRunAt)
		d := s.st.lastDuration.Seconds()
		st.LastDurationSec = &d
	}
	if s.st.running && !s.st.nextRunAt.IsZero() {
		st.NextRunAt = stamp(s.st.nextRunAt)
	}
	if s.st.lastOK != nil {
		ok := *s.st.lastOK
		st.LastOK = &ok
	}
	return st
}

func stamp(t time.Time) *string {
	v := t.Format(time.RFC3339)
	return &v
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
