package authenticity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bartek5186/mosync/internal/apperr"
	"github.com/bartek5186/mosync/internal/store"
	"github.com/bartek5186/mosync/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestUnwrap_Strategies(t *testing.T) {
	assert.Len(t, Unwrap(decode(t, `[{"code":"A"},{"code":"B"}]`), warehouseShapes), 2)
	assert.Len(t, Unwrap(decode(t, `{"data":[{"code":"A"}]}`), warehouseShapes), 1)
	assert.Len(t, Unwrap(decode(t, `{"authenticities":[{"code":"A"}]}`), warehouseShapes), 1)
	assert.Empty(t, Unwrap(decode(t, `{"vendors":[{"code":"A"}]}`), warehouseShapes))
	assert.Len(t, Unwrap(decode(t, `{"results":[{"code":"A"}]}`), vendorShapes), 1)
	assert.Empty(t, Unwrap(decode(t, `{"data":{"nested":true}}`), vendorShapes))
}

func TestItem_First(t *testing.T) {
	it := Item{"authenticity": "", "authenticity_id": nil, "code": json.Number("12345"), "id": "x"}
	assert.Equal(t, "12345", it.First(warehouseCodeKeys...))
	assert.Equal(t, "", Item{}.First(warehouseCodeKeys...))
	assert.Equal(t, "7", Item{"id": 7.0}.First("id"))
}

func TestTokenCache_CoalescesRefresh(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	tc := NewTokenCache(time.Hour, func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "tok", nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := tc.Get(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "tok", tok)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// cached until expiry
	_, _ = tc.Get(context.Background())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	now := time.Now()
	tc.now = func() time.Time { return now.Add(2 * time.Hour) }
	_, _ = tc.Get(context.Background())
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestTokenCache_ErrorNotCached(t *testing.T) {
	fail := true
	tc := NewTokenCache(time.Hour, func(ctx context.Context) (string, error) {
		if fail {
			return "", errors.New("down")
		}
		return "tok", nil
	})
	_, err := tc.Get(context.Background())
	require.Error(t, err)
	fail = false
	tok, err := tc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)
}

type fakeAPI struct {
	tokenCalls int32
	warehouse  map[string]string
	vendor     map[string]string
}

func (f *fakeAPI) server(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/get-token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.tokenCalls, 1)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "foom", body["username"])
		_, _ = w.Write([]byte(`{"data":{"token":"abc"}}`))
	})
	mux.HandleFunc("/authenticity/warehouse", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer abc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		res, ok := f.warehouse[r.URL.Query().Get("transfer_id")]
		if !ok {
			http.Error(w, `{"message":"boom"}`, http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(res))
	})
	mux.HandleFunc("/authenticity/vendor", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		res, ok := f.vendor[r.URL.Query().Get("serial")]
		if !ok {
			res = `{"data":[]}`
		}
		_, _ = w.Write([]byte(res))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func seed(t *testing.T, st *store.Store, name string, transfer int64, roll string) {
	t.Helper()
	ctx := context.Background()
	_, err := st.UpsertRecentMO(ctx, store.ExternalMO{
		MoName:     name,
		CreateDate: testutil.Ptr("2026-10-14 08:00:00"),
		TransferID: &transfer,
	})
	require.NoError(t, err)
	if roll != "" {
		require.NoError(t, st.UpdateRecentMO(ctx, name, map[string]any{"roll_number": roll}))
	}
}

func TestLedgerSync_EndToEnd(t *testing.T) {
	api := &fakeAPI{
		warehouse: map[string]string{
			"10": `{"data":[{"authenticity":"A1"},{"code":"A2"},{"id":3},{"other":"x"}]}`,
			// 11 missing -> 500
		},
		vendor: map[string]string{
			"R-1": `{"items":[
				{"serial":"R-1","authenticity_code":"A1","marketing_code":"M1","tanggal_kirim":"2026-10-10","nama_vendor":"PT Satu"},
				{"authenticity":"A2","vendorName":"PT Dua"},
				{"roll":"R-1"}]}`,
		},
	}
	srv := api.server(t)
	st, mc := testutil.OpenStore(t)
	seed(t, st, "MO/001", 10, "R-1")
	seed(t, st, "MO/002", 11, "")

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.Username, cfg.Password = "foom", "foom"
	ls := NewLedgerSync(zerolog.Nop(), cfg, st, mc.Clock(), nil)

	sum, err := ls.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Total)
	assert.Equal(t, 1, sum.Processed)
	assert.Equal(t, 3, sum.Inserted)
	require.Len(t, sum.Errors, 1)
	assert.Equal(t, int64(11), sum.Errors[0].TransferID)
	assert.Equal(t, "MO/002", sum.Errors[0].MoName)

	assert.Equal(t, 1, sum.VendorTotal)
	assert.Equal(t, 1, sum.VendorProcessed)
	assert.Equal(t, 2, sum.VendorInserted)
	assert.Equal(t, 1, sum.VendorSkipped)
	assert.Equal(t, 1, sum.Failures())
	assert.Equal(t, int32(1), atomic.LoadInt32(&api.tokenCalls))

	rows, _, src, err := st.ListUsedRM(context.Background(), store.UsedRMFilter{}, store.Page{})
	require.NoError(t, err)
	assert.Equal(t, store.SourceLedger, src)
	require.Len(t, rows, 3)
	assert.Equal(t, "2026-10-14 08:00:00", *rows[0].TransferDate)

	vendors, _, err := st.ListVendors(context.Background(), store.VendorFilter{Authenticity: "A2"}, store.Page{})
	require.NoError(t, err)
	require.Len(t, vendors, 1)
	assert.Equal(t, "R-1", vendors[0].Roll)
	assert.Equal(t, "PT Dua", *vendors[0].NamaVendor)

	// second pass inserts nothing new
	sum, err = ls.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Inserted)
	assert.Equal(t, 2, sum.VendorUpdated)
}

type stubSource struct{ err error }

func (s stubSource) Warehouse(context.Context, int64) ([]Item, error) { return nil, s.err }
func (s stubSource) Vendor(context.Context, string) ([]Item, error) { return nil, s.err }

func TestLedgerSync_RecordsUpstreamErrors(t *testing.T) {
	st, mc := testutil.OpenStore(t)
	seed(t, st, "MO/001", 10, "R-1")
	ls := NewLedgerSync(zerolog.Nop(), DefaultConfig(), st, mc.Clock(),
		stubSource{err: apperr.Upstream(errors.New("timeout"), "GET /authenticity/warehouse")})

	sum, err := ls.Sync(context.Background())
	require.NoError(t, err)
	assert.Len(t, sum.Errors, 1)
	assert.Len(t, sum.VendorErrors, 1)
	assert.Equal(t, 0, sum.Processed)
	assert.Equal(t, 0, sum.VendorProcessed)
}

func TestClient_InvalidatesTokenOn401(t *testing.T) {
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/get-token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"token":"stale"}`))
	})
	mux.HandleFunc("/authenticity/warehouse", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	c := NewClient(cfg)

	_, err := c.Warehouse(context.Background(), 1)
	assert.ErrorIs(t, err, apperr.ErrUpstreamUnavailable)
	_, err = c.Warehouse(context.Background(), 1)
	assert.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
