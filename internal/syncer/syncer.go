// internal/syncer/syncer.go
package syncer

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bartek5186/mosync/internal/apperr"
	conf "github.com/bartek5186/mosync/internal/config"
	"github.com/bartek5186/mosync/internal/integrations" // rejestr/typy
	_ "github.com/bartek5186/mosync/internal/integrations/authenticity"
	_ "github.com/bartek5186/mosync/internal/integrations/odoo" // rejestracja
	"github.com/rs/zerolog"
)

// StartOptions: parametry startu z API/CLI; zera = wartości z configu.
type StartOptions struct {
	IntervalMinutes int
	SessionID       string
}

// Validator: joby, które potrafią odmówić startu (np. brak sesji).
type Validator interface {
	Validate() error
}

// Syncer trzyma po jednym, niezależnym schedulerze na job.
type Syncer struct {
	log  zerolog.Logger
	deps integrations.Deps
	base context.Context // przebiegi żyją tyle co proces, nie request

	mu     sync.Mutex
	cfg    *conf.Config
	scheds map[string]*Scheduler
}

func New(ctx context.Context, log zerolog.Logger, cfg *conf.Config, deps integrations.Deps) *Syncer {
	s := &Syncer{log: log, deps: deps, base: ctx, cfg: cfg, scheds: map[string]*Scheduler{}}
	for name, job := range s.buildJobs(cfg, deps) {
		s.scheds[name] = NewScheduler(log, job, deps.Clock)
	}
	s.log.Info().Int("jobs", len(s.scheds)).Msg("Harmonogramy zbudowane")
	return s
}

func (s *Syncer) buildJobs(cfg *conf.Config, deps integrations.Deps) map[string]integrations.Job {
	out := map[string]integrations.Job{}
	for _, name := range integrations.Names() {
		f, _ := integrations.Get(name)
		d := deps
		d.Log = s.log.With().Str("integration", name).Logger()
		job, err := f(d, cfg.Integrations[name])
		if err != nil {
			s.log.Error().Err(err).Str("integration", name).Msg("błąd inicjalizacji")
			continue
		}
		out[name] = job
	}
	return out
}

func (s *Syncer) get(name string) (*Scheduler, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.scheds[name]
	if !ok {
		return nil, apperr.NotFound("unknown job %q", name)
	}
	return sc, nil
}

func (s *Syncer) interval(name string, minutes int) time.Duration {
	if minutes > 0 {
		return time.Duration(minutes) * time.Minute
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Interval(name)
}

// Start uruchamia harmonogram joba; SessionID podmienia sesję joba przed
// pierwszym przebiegiem. Działający harmonogram nie jest restartowany,
// started=false.
func (s *Syncer) Start(name string, opts StartOptions) (started bool, err error) {
	sc, err := s.get(name)
	if err != nil {
		return false, err
	}
	if opts.IntervalMinutes < 0 {
		return false, apperr.Invalid("interval_minutes must be positive")
	}
	if opts.SessionID != "" {
		_ = s.SetSession(name, opts.SessionID)
	}
	if v, ok := sc.Job().(Validator); ok {
		if err := v.Validate(); err != nil {
			return false, err
		}
	}
	if sc.IsRunning() {
		return false, nil
	}
	if err := sc.Start(s.base, s.interval(name, opts.IntervalMinutes)); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Syncer) Stop(name string) error {
	sc, err := s.get(name)
	if err != nil {
		return err
	}
	sc.Stop()
	return nil
}

func (s *Syncer) Status(name string) (Status, error) {
	sc, err := s.get(name)
	if err != nil {
		return Status{}, err
	}
	return sc.Status(), nil
}

func (s *Syncer) StatusAll() map[string]Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Status, len(s.scheds))
	for name, sc := range s.scheds {
		out[name] = sc.Status()
	}
	return out
}

// StartAll startuje każdy job z domyślnym interwałem; job, który nie przejdzie
// walidacji, jest pomijany z ostrzeżeniem.
func (s *Syncer) StartAll() error {
	var failed []string
	for _, name := range s.names() {
		if _, err := s.Start(name, StartOptions{}); err != nil {
			s.log.Warn().Err(err).Str("integration", name).Msg("start pominięty")
			failed = append(failed, name)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("not started: %v", failed)
	}
	return nil
}

func (s *Syncer) StopAll() {
	for _, name := range s.names() {
		_ = s.Stop(name)
	}
}

// IsRunning: czy działa którykolwiek harmonogram.
func (s *Syncer) IsRunning() bool {
	for _, st := range s.StatusAll() {
		if st.Running {
			return true
		}
	}
	return false
}

// SetSession podmienia sesję joba bez startu harmonogramu.
func (s *Syncer) SetSession(name, sessionID string) error {
	sc, err := s.get(name)
	if err != nil {
		return err
	}
	ss, ok := sc.Job().(integrations.SessionSetter)
	if !ok {
		return apperr.Invalid("job %q does not take a session", name)
	}
	ss.SetSessionID(sessionID)
	return nil
}

// RunOnce wykonuje jeden przebieg joba poza harmonogramem (CLI).
func (s *Syncer) RunOnce(ctx context.Context, name string) (integrations.Report, error) {
	sc, err := s.get(name)
	if err != nil {
		return nil, err
	}
	return sc.RunOnce(ctx)
}

// Wait czeka na przebiegi w toku wszystkich jobów (zamykanie procesu).
func (s *Syncer) Wait() {
	s.mu.Lock()
	scheds := make([]*Scheduler, 0, len(s.scheds))
	for _, sc := range s.scheds {
		scheds = append(scheds, sc)
	}
	s.mu.Unlock()
	for _, sc := range scheds {
		sc.Wait()
	}
}

// UpdateConfig buduje joby z nowego configu i podmienia je w istniejących
// harmonogramach. Przebieg w toku dokańcza stary job; działające harmonogramy
// startują od nowa z dotychczasowym interwałem. Zegar bierzemy ze store'a,
// żeby zmiana strefy objęła też joby.
func (s *Syncer) UpdateConfig(cfg *conf.Config) {
	s.mu.Lock()
	if s.deps.Store != nil {
		s.deps.Clock = s.deps.Store.Clock()
	}
	deps := s.deps
	s.mu.Unlock()

	jobs := s.buildJobs(cfg, deps)

	type pending struct {
		name string
		sc   *Scheduler
		iv   time.Duration
	}
	var restart []pending
	s.mu.Lock()
	s.cfg = cfg
	for name, job := range jobs {
		sc, ok := s.scheds[name]
		if !ok {
			s.scheds[name] = NewScheduler(s.log, job, deps.Clock)
			continue
		}
		sc.Swap(job, deps.Clock)
		if sc.IsRunning() {
			restart = append(restart, pending{name, sc, sc.Interval()})
		}
	}
	s.mu.Unlock()

	s.log.Info().Int("restarting", len(restart)).Msg("Syncer: config zaktualizowany")
	for _, p := range restart {
		if v, ok := p.sc.Job().(Validator); ok {
			if err := v.Validate(); err != nil {
				s.log.Warn().Err(err).Str("integration", p.name).Msg("restart pominięty, harmonogram zatrzymany")
				p.sc.Stop()
				continue
			}
		}
		// trwający przebieg nie jest dublowany: tick go tylko pominie
		_ = p.sc.Start(s.base, p.iv)
	}
}

func (s *Syncer) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.scheds))
	for name := range s.scheds {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
