// Package production implements the operator-driven lifecycle of a
// manufacturing order: register as ready, start, changeover to the next
// order, and end. It owns the operator columns of recent_mo, the production
// log and the manufacturing identity projection.
package production

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/bartek5186/mosync/internal/apperr"
	"github.com/bartek5186/mosync/internal/authcode"
	"github.com/bartek5186/mosync/internal/db"
	"github.com/bartek5186/mosync/internal/events"
	"github.com/bartek5186/mosync/internal/store"
	"github.com/rs/zerolog"
)

const publishTimeout = 5 * time.Second

type Service struct {
	log   zerolog.Logger
	store *store.Store
	pub   events.Publisher
}

func NewService(log zerolog.Logger, st *store.Store, pub events.Publisher) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{log: log, store: st, pub: pub}
}

type RegisterInput struct {
	MOName        string
	AuthFirst     string
	RollNumber    string
	MidProduction bool
}

// Register marks an order ready for production. Without MidProduction the
// first authenticity code and roll number are required and recorded.
func (s *Service) Register(ctx context.Context, in RegisterInput) error {
	name := strings.TrimSpace(in.MOName)
	if name == "" {
		return apperr.Invalid("mo_name is required")
	}
	if _, err := s.store.FindRecentMO(ctx, name); err != nil {
		return err
	}
	if in.MidProduction {
		return s.store.UpdateRecentMO(ctx, name, map[string]any{"ready_for_production": true})
	}
	auth, roll := strings.TrimSpace(in.AuthFirst), strings.TrimSpace(in.RollNumber)
	if auth == "" || roll == "" {
		return apperr.Invalid("auth_first and roll_number are required unless run_mid_production is true")
	}
	return s.store.UpdateRecentMO(ctx, name, map[string]any{
		"auth_first":           auth,
		"roll_number":          roll,
		"ready_for_production": true,
	})
}

type StartInput struct {
	MOName   string
	LeaderID string
}

type StartResult struct {
	DateStart string `json:"date_start"`
}

// Start begins production of a ready, not yet started order.
func (s *Service) Start(ctx context.Context, in StartInput) (*StartResult, error) {
	name := strings.TrimSpace(in.MOName)
	leader := NormalizeLeaderID(in.LeaderID)
	if name == "" || leader == "" {
		return nil, apperr.Invalid("mo_name and leader_id are required")
	}
	mo, err := s.store.FindReadyUnstarted(ctx, name)
	if err != nil {
		return nil, err
	}

	now := s.store.Clock().Stamp()
	if err := s.store.UpdateRecentMO(ctx, name, map[string]any{
		"date_start":    now,
		"date_finished": nil,
		"state":         store.StateOrProgress,
		"leader_id":     leader,
	}); err != nil {
		return nil, err
	}
	if err := s.store.AppendProductionLog(ctx, name, mo.ProductName, &leader, store.LogStart); err != nil {
		return nil, err
	}
	if err := s.store.UpsertIdentityStarted(ctx, identityFor(mo, &leader, now)); err != nil {
		return nil, err
	}

	ev := events.New(events.TypeStarted, name, now)
	ev.LeaderID = leader
	ev.AuthFirst = deref(mo.AuthFirst)
	s.publish(ctx, ev)

	s.log.Info().Str("mo", name).Str("leader", leader).Msg("production started")
	return &StartResult{DateStart: now}, nil
}

type ChangeoverInput struct {
	CurrentMO  string
	NextMO     string
	NewAuth    string
	RollNumber string
}

type ChangeoverResult struct {
	CurrentEndAuth string `json:"current_end_auth"`
	NextStartAuth  string `json:"next_start_auth"`
}

// Changeover closes the running order at NewAuth-1 and starts the next ready
// order at NewAuth on the same line, carrying the leader over.
func (s *Service) Changeover(ctx context.Context, in ChangeoverInput) (*ChangeoverResult, error) {
	curName, nextName := strings.TrimSpace(in.CurrentMO), strings.TrimSpace(in.NextMO)
	if curName == "" || nextName == "" || strings.TrimSpace(in.NewAuth) == "" {
		return nil, apperr.Invalid("current_mo, next_mo, and new_auth are required")
	}
	n, ok := authcode.Parse(in.NewAuth)
	if !ok {
		return nil, apperr.Invalid("new_auth must be a numeric code")
	}

	cur, err := s.store.FindRunning(ctx, curName)
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound("Current MO not running")
		}
		return nil, err
	}
	leader, err := s.resolveLeader(ctx, cur)
	if err != nil {
		return nil, err
	}
	next, err := s.store.FindReadyUnstarted(ctx, nextName)
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound("Next MO not found or not ready")
		}
		return nil, err
	}

	endAuth, startAuth := authcode.Boundary(n)
	now := s.store.Clock().Stamp()

	if err := s.store.UpdateRecentMO(ctx, curName, map[string]any{
		"auth_last":     endAuth,
		"date_finished": now,
		"state":         "done",
	}); err != nil {
		return nil, err
	}

	nextFields := map[string]any{
		"auth_first":    startAuth,
		"date_start":    now,
		"date_finished": nil,
		"state":         store.StateOrProgress,
	}
	if roll := strings.TrimSpace(in.RollNumber); roll != "" {
		nextFields["roll_number"] = roll
	}
	if leader != nil {
		nextFields["leader_id"] = *leader
	}
	if err := s.store.UpdateRecentMO(ctx, nextName, nextFields); err != nil {
		return nil, err
	}

	if err := s.store.AppendProductionLog(ctx, curName, cur.ProductName, leader, store.LogEnd); err != nil {
		return nil, err
	}
	if err := s.store.AppendProductionLog(ctx, nextName, next.ProductName, leader, store.LogStart); err != nil {
		return nil, err
	}

	done := authcode.DoneQty(cur.AuthFirst, &endAuth)
	if err := s.store.FinishIdentity(ctx, curName, now, done); err != nil {
		return nil, err
	}
	if err := s.store.UpsertIdentityStarted(ctx, identityFor(next, leader, now)); err != nil {
		return nil, err
	}

	ev := events.New(events.TypeChangeover, curName, now)
	ev.NextMoName = nextName
	ev.LeaderID = deref(leader)
	ev.AuthFirst = startAuth
	ev.AuthLast = endAuth
	ev.DoneQty = done
	s.publish(ctx, ev)

	s.log.Info().Str("current", curName).Str("next", nextName).Str("new_auth", startAuth).Msg("changeover")
	return &ChangeoverResult{CurrentEndAuth: endAuth, NextStartAuth: startAuth}, nil
}

type EndInput struct {
	MOName       string
	Authenticity string
	RollNumber   string
}

type EndResult struct {
	EndAuth      string `json:"end_auth"`
	DateFinished string `json:"date_finished"`
}

// End finishes a running order; Authenticity is the first unused code.
func (s *Service) End(ctx context.Context, in EndInput) (*EndResult, error) {
	name := strings.TrimSpace(in.MOName)
	if name == "" || strings.TrimSpace(in.Authenticity) == "" {
		return nil, apperr.Invalid("mo_name and authenticity are required")
	}
	n, ok := authcode.Parse(in.Authenticity)
	if !ok {
		return nil, apperr.Invalid("authenticity must be a numeric code")
	}

	mo, err := s.store.FindRunning(ctx, name)
	if err != nil {
		return nil, err
	}
	leader, err := s.resolveLeader(ctx, mo)
	if err != nil {
		return nil, err
	}

	endAuth, _ := authcode.Boundary(n)
	now := s.store.Clock().Stamp()
	fields := map[string]any{
		"auth_last":     endAuth,
		"date_finished": now,
	}
	if roll := strings.TrimSpace(in.RollNumber); roll != "" {
		fields["roll_number"] = roll
	}
	if err := s.store.UpdateRecentMO(ctx, name, fields); err != nil {
		return nil, err
	}
	if err := s.store.AppendProductionLog(ctx, name, mo.ProductName, leader, store.LogEnd); err != nil {
		return nil, err
	}
	done := authcode.DoneQty(mo.AuthFirst, &endAuth)
	if err := s.store.FinishIdentity(ctx, name, now, done); err != nil {
		return nil, err
	}

	ev := events.New(events.TypeEnded, name, now)
	ev.LeaderID = deref(leader)
	ev.AuthFirst = deref(mo.AuthFirst)
	ev.AuthLast = endAuth
	ev.DoneQty = done
	s.publish(ctx, ev)

	s.log.Info().Str("mo", name).Str("end_auth", endAuth).Msg("production ended")
	return &EndResult{EndAuth: endAuth, DateFinished: now}, nil
}

// resolveLeader takes the leader from the row, falling back to the newest
// start log entry.
func (s *Service) resolveLeader(ctx context.Context, mo *db.RecentMO) (*string, error) {
	leader := mo.LeaderID
	if leader == nil || strings.TrimSpace(*leader) == "" {
		fromLog, err := s.store.LatestStartLeader(ctx, mo.MoName)
		if err != nil {
			return nil, err
		}
		leader = fromLog
	}
	return FormatStoredLeaderID(leader), nil
}

func (s *Service) publish(ctx context.Context, ev events.ProductionEvent) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.pub.Publish(pctx, ev); err != nil {
		s.log.Warn().Err(err).Str("event", ev.Type).Str("mo", ev.MoName).Msg("event publish failed")
	}
}

func identityFor(mo *db.RecentMO, leader *string, startedAt string) store.IdentityStart {
	var sku *string
	if mo.ProductID != nil {
		v := strconv.FormatInt(*mo.ProductID, 10)
		sku = &v
	}
	return store.IdentityStart{
		MoName:     mo.MoName,
		Sku:        sku,
		SkuName:    mo.ProductName,
		TargetQty:  targetQty(mo),
		LeaderName: leader,
		StartedAt:  startedAt,
	}
}

func targetQty(mo *db.RecentMO) *float64 {
	if mo.InitialQtyTarget != nil {
		return mo.InitialQtyTarget
	}
	return mo.ProductQty
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func isNotFound(err error) bool {
	return errors.Is(err, apperr.ErrNotFound)
}
