package production

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bartek5186/mosync/internal/apperr"
	"github.com/bartek5186/mosync/internal/db"
	"github.com/bartek5186/mosync/internal/events"
	"github.com/bartek5186/mosync/internal/store"
	"github.com/bartek5186/mosync/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu  sync.Mutex
	evs []events.ProductionEvent
	err error
}

func (r *recorder) Publish(_ context.Context, ev events.ProductionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evs = append(r.evs, ev)
	return r.err
}

func setup(t *testing.T) (*Service, *store.Store, *recorder) {
	t.Helper()
	st, _ := testutil.OpenStore(t)
	rec := &recorder{}
	return NewService(zerolog.Nop(), st, rec), st, rec
}

func seedMO(t *testing.T, st *store.Store, name string, state *string) {
	t.Helper()
	_, err := st.UpsertRecentMO(context.Background(), store.ExternalMO{
		MoName:      name,
		State:       state,
		ProductID:   testutil.Ptr(int64(77)),
		ProductName: testutil.Ptr("Liquid 30ml"),
		ProductQty:  testutil.Ptr(1000.0),
		CreateDate:  testutil.Ptr("2026-10-14 08:00:00"),
	})
	require.NoError(t, err)
}

func logs(t *testing.T, st *store.Store, name string) []db.ProductionLog {
	t.Helper()
	rows, _, err := st.ListProductionLog(context.Background(), store.ProductionLogFilter{MoName: name}, store.Page{})
	require.NoError(t, err)
	return rows
}

func TestRegisterThenStart(t *testing.T) {
	svc, st, rec := setup(t)
	ctx := context.Background()
	seedMO(t, st, "MO/001", nil)

	require.NoError(t, svc.Register(ctx, RegisterInput{MOName: "MO/001", AuthFirst: "100", RollNumber: "R-9"}))
	res, err := svc.Start(ctx, StartInput{MOName: "MO/001", LeaderID: " 007 "})
	require.NoError(t, err)
	assert.Equal(t, "2026-10-15 09:00:00", res.DateStart)

	mo, err := st.FindRecentMO(ctx, "MO/001")
	require.NoError(t, err)
	assert.True(t, mo.ReadyForProduction)
	assert.Equal(t, "100", *mo.AuthFirst)
	assert.Equal(t, "R-9", *mo.RollNumber)
	assert.Equal(t, "007", *mo.LeaderID)
	assert.Equal(t, "progress", *mo.State)
	assert.Equal(t, "2026-10-15 09:00:00", *mo.DateStart)

	l := logs(t, st, "MO/001")
	require.Len(t, l, 1)
	assert.Equal(t, store.LogStart, l[0].Status)
	assert.Equal(t, "007", *l[0].LeaderID)

	id, err := st.FindIdentity(ctx, "MO/001")
	require.NoError(t, err)
	assert.Equal(t, "77", *id.Sku)
	assert.Equal(t, 1000.0, *id.TargetQty)
	assert.Equal(t, "007", *id.LeaderName)
	assert.Nil(t, id.FinishedAt)

	require.Len(t, rec.evs, 1)
	assert.Equal(t, events.TypeStarted, rec.evs[0].Type)
	assert.Equal(t, "007", rec.evs[0].LeaderID)

	// already started
	_, err = svc.Start(ctx, StartInput{MOName: "MO/001", LeaderID: "008"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestStart_KeepsExistingState(t *testing.T) {
	svc, st, _ := setup(t)
	ctx := context.Background()
	seedMO(t, st, "MO/001", testutil.Ptr("confirmed"))
	require.NoError(t, svc.Register(ctx, RegisterInput{MOName: "MO/001", MidProduction: true}))

	_, err := svc.Start(ctx, StartInput{MOName: "MO/001", LeaderID: "12"})
	require.NoError(t, err)
	mo, err := st.FindRecentMO(ctx, "MO/001")
	require.NoError(t, err)
	assert.Equal(t, "confirmed", *mo.State)
	assert.Nil(t, mo.AuthFirst)
}

func TestStart_Validation(t *testing.T) {
	svc, st, _ := setup(t)
	ctx := context.Background()
	seedMO(t, st, "MO/001", nil)

	_, err := svc.Start(ctx, StartInput{MOName: "MO/001", LeaderID: "  "})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = svc.Start(ctx, StartInput{MOName: "MO/001", LeaderID: "007"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, "MO not found or not ready", apperr.Message(err))
}

func TestRegister_Validation(t *testing.T) {
	svc, st, _ := setup(t)
	ctx := context.Background()
	seedMO(t, st, "MO/001", nil)

	assert.ErrorIs(t, svc.Register(ctx, RegisterInput{}), apperr.ErrInvalidArgument)
	assert.ErrorIs(t, svc.Register(ctx, RegisterInput{MOName: "MO/404", AuthFirst: "1", RollNumber: "R"}), apperr.ErrNotFound)
	assert.ErrorIs(t, svc.Register(ctx, RegisterInput{MOName: "MO/001", AuthFirst: "1"}), apperr.ErrInvalidArgument)

	mo, err := st.FindRecentMO(ctx, "MO/001")
	require.NoError(t, err)
	assert.False(t, mo.ReadyForProduction)
}

func startRunning(t *testing.T, svc *Service, st *store.Store, name, auth, leader string) {
	t.Helper()
	ctx := context.Background()
	seedMO(t, st, name, nil)
	require.NoError(t, svc.Register(ctx, RegisterInput{MOName: name, AuthFirst: auth, RollNumber: "R-1"}))
	_, err := svc.Start(ctx, StartInput{MOName: name, LeaderID: leader})
	require.NoError(t, err)
}

func TestChangeover(t *testing.T) {
	svc, st, rec := setup(t)
	ctx := context.Background()
	startRunning(t, svc, st, "MO/A", "100", "007")
	seedMO(t, st, "MO/B", nil)
	require.NoError(t, svc.Register(ctx, RegisterInput{MOName: "MO/B", MidProduction: true}))

	res, err := svc.Changeover(ctx, ChangeoverInput{CurrentMO: "MO/A", NextMO: "MO/B", NewAuth: "250", RollNumber: "R-2"})
	require.NoError(t, err)
	assert.Equal(t, "249", res.CurrentEndAuth)
	assert.Equal(t, "250", res.NextStartAuth)

	a, err := st.FindRecentMO(ctx, "MO/A")
	require.NoError(t, err)
	assert.Equal(t, "249", *a.AuthLast)
	assert.Equal(t, "done", *a.State)
	assert.NotNil(t, a.DateFinished)

	b, err := st.FindRecentMO(ctx, "MO/B")
	require.NoError(t, err)
	assert.Equal(t, "250", *b.AuthFirst)
	assert.Equal(t, "progress", *b.State)
	assert.Equal(t, "R-2", *b.RollNumber)
	assert.Equal(t, "007", *b.LeaderID)
	assert.NotNil(t, b.DateStart)
	assert.Nil(t, b.DateFinished)

	la := logs(t, st, "MO/A")
	require.Len(t, la, 2)
	assert.Equal(t, store.LogEnd, la[0].Status)
	assert.Equal(t, "007", *la[0].LeaderID)
	lb := logs(t, st, "MO/B")
	require.Len(t, lb, 1)
	assert.Equal(t, store.LogStart, lb[0].Status)

	ida, err := st.FindIdentity(ctx, "MO/A")
	require.NoError(t, err)
	assert.Equal(t, int64(150), *ida.DoneQty)
	assert.NotNil(t, ida.FinishedAt)
	idb, err := st.FindIdentity(ctx, "MO/B")
	require.NoError(t, err)
	assert.Nil(t, idb.DoneQty)
	assert.Nil(t, idb.FinishedAt)
	assert.Equal(t, "007", *idb.LeaderName)

	last := rec.evs[len(rec.evs)-1]
	assert.Equal(t, events.TypeChangeover, last.Type)
	assert.Equal(t, "MO/B", last.NextMoName)
	assert.Equal(t, int64(150), *last.DoneQty)

	// current is no longer running
	_, err = svc.Changeover(ctx, ChangeoverInput{CurrentMO: "MO/A", NextMO: "MO/B", NewAuth: "300"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, "Current MO not running", apperr.Message(err))
}

func TestChangeover_Errors(t *testing.T) {
	svc, st, _ := setup(t)
	ctx := context.Background()
	startRunning(t, svc, st, "MO/A", "100", "007")
	seedMO(t, st, "MO/C", nil)

	_, err := svc.Changeover(ctx, ChangeoverInput{CurrentMO: "MO/A", NextMO: "MO/C"})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = svc.Changeover(ctx, ChangeoverInput{CurrentMO: "MO/A", NextMO: "MO/C", NewAuth: "abc"})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = svc.Changeover(ctx, ChangeoverInput{CurrentMO: "MO/A", NextMO: "MO/C", NewAuth: "250"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, "Next MO not found or not ready", apperr.Message(err))

	// nothing written for the failed changeover
	a, err := st.FindRecentMO(ctx, "MO/A")
	require.NoError(t, err)
	assert.Nil(t, a.AuthLast)
}

func TestChangeover_LeaderFromLog(t *testing.T) {
	svc, st, _ := setup(t)
	ctx := context.Background()
	startRunning(t, svc, st, "MO/A", "100", "7")
	require.NoError(t, st.UpdateRecentMO(ctx, "MO/A", map[string]any{"leader_id": nil}))
	seedMO(t, st, "MO/B", nil)
	require.NoError(t, svc.Register(ctx, RegisterInput{MOName: "MO/B", AuthFirst: "1", RollNumber: "R"}))

	_, err := svc.Changeover(ctx, ChangeoverInput{CurrentMO: "MO/A", NextMO: "MO/B", NewAuth: "250"})
	require.NoError(t, err)
	b, err := st.FindRecentMO(ctx, "MO/B")
	require.NoError(t, err)
	assert.Equal(t, "007", *b.LeaderID)
}

func TestEnd(t *testing.T) {
	svc, st, rec := setup(t)
	ctx := context.Background()
	startRunning(t, svc, st, "MO/A", "100", "007")

	res, err := svc.End(ctx, EndInput{MOName: "MO/A", Authenticity: "1100", RollNumber: " R-5 "})
	require.NoError(t, err)
	assert.Equal(t, "1099", res.EndAuth)

	a, err := st.FindRecentMO(ctx, "MO/A")
	require.NoError(t, err)
	assert.Equal(t, "1099", *a.AuthLast)
	assert.Equal(t, "R-5", *a.RollNumber)
	assert.Equal(t, res.DateFinished, *a.DateFinished)

	id, err := st.FindIdentity(ctx, "MO/A")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), *id.DoneQty)

	assert.Equal(t, events.TypeEnded, rec.evs[len(rec.evs)-1].Type)

	_, err = svc.End(ctx, EndInput{MOName: "MO/A", Authenticity: "1200"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, "MO not running", apperr.Message(err))

	_, err = svc.End(ctx, EndInput{MOName: "MO/A", Authenticity: "x"})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestPublishFailureDoesNotFailTransition(t *testing.T) {
	svc, st, rec := setup(t)
	rec.err = errors.New("broker down")
	startRunning(t, svc, st, "MO/A", "100", "007")

	_, err := svc.End(context.Background(), EndInput{MOName: "MO/A", Authenticity: "200"})
	assert.NoError(t, err)
}

// stalled never returns until released, like a broker that does not answer.
type stalled struct{ release chan struct{} }

func (p stalled) Publish(context.Context, events.ProductionEvent) error {
	<-p.release
	return errors.New("dial timeout")
}

func TestTransitionsDoNotWaitForBroker(t *testing.T) {
	st, _ := testutil.OpenStore(t)
	p := stalled{release: make(chan struct{})}
	pub := events.NewAsync(zerolog.Nop(), p, 0)
	t.Cleanup(func() { close(p.release); pub.Close() })
	svc := NewService(zerolog.Nop(), st, pub)

	ctx := context.Background()
	seedMO(t, st, "MO/A", nil)
	require.NoError(t, svc.Register(ctx, RegisterInput{MOName: "MO/A", AuthFirst: "100", RollNumber: "R-1"}))

	done := make(chan error, 1)
	go func() {
		if _, err := svc.Start(ctx, StartInput{MOName: "MO/A", LeaderID: "007"}); err != nil {
			done <- err
			return
		}
		_, err := svc.End(ctx, EndInput{MOName: "MO/A", Authenticity: "200"})
		done <- err
	}()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("transition blocked on the event publisher")
	}
}

func TestReadViews(t *testing.T) {
	svc, st, _ := setup(t)
	ctx := context.Background()
	seedMO(t, st, "MO/1", nil)
	seedMO(t, st, "MO/2", nil)
	require.NoError(t, svc.Register(ctx, RegisterInput{MOName: "MO/2", AuthFirst: "5", RollNumber: "R"}))
	startRunning(t, svc, st, "MO/3", "10", "001")

	opts, err := svc.MOOptions(ctx)
	require.NoError(t, err)
	require.Len(t, opts, 1)
	assert.Equal(t, "MO/1", opts[0].MoName)

	ready, err := svc.ReadyMOs(ctx)
	require.NoError(t, err)
	require.Len(t, ready, 1)
	assert.Equal(t, "MO/2", ready[0].MoName)

	running, err := svc.RunningMOs(ctx)
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.Equal(t, "MO/3", running[0].MoName)

	d, err := svc.ReadyMODetails(ctx, "MO/2")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, *d.TargetQty)
	assert.Equal(t, "Liquid 30ml", *d.SkuName)

	_, err = svc.ReadyMODetails(ctx, "MO/1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = svc.ReadyMODetails(ctx, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestFormatStoredLeaderID(t *testing.T) {
	cases := map[string]string{
		"7":     "007",
		"42":    "042",
		"007":   "007",
		"1234":  "1234",
		"A7":    "A7",
		" 12 ":  "012",
		"00001": "00001",
		"0":     "000",
	}
	for in, want := range cases {
		v := in
		got := FormatStoredLeaderID(&v)
		require.NotNil(t, got, in)
		assert.Equal(t, want, *got, in)
	}
	// longer than any int; kept as text
	long := "123456789012345678901234567890"
	assert.Equal(t, long, *FormatStoredLeaderID(&long))

	assert.Nil(t, FormatStoredLeaderID(nil))
	empty := " "
	assert.Nil(t, FormatStoredLeaderID(&empty))
}
