// internal/integrations/odoo/reconciler.go
package odoo

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/bartek5186/mosync/internal/apperr"
	"github.com/bartek5186/mosync/internal/integrations"
	"github.com/bartek5186/mosync/internal/localtime"
	"github.com/bartek5186/mosync/internal/store"
	"github.com/rs/zerolog"
)

const Name = "odoo"

type Config struct {
	BaseURL        string   `json:"base_url"`   // https://erp.example.com
	SessionID      string   `json:"session_id"` // cookie of a logged-in session; may be overridden at scheduler start
	TimeoutMs      int      `json:"timeout_ms"`
	GroupWorkerIDs []int64  `json:"group_worker_ids"`
	NoteMarkers    []string `json:"note_markers"` // wystarczy dopasowanie jednego
	WindowDays     int      `json:"window_days"`  // create_date window, today included
	RetentionDays  int      `json:"retention_days"`
	Limit          int      `json:"limit"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL:        "https://foomx.odoo.com",
		TimeoutMs:      30000,
		GroupWorkerIDs: []int64{6, 7},
		NoteMarkers: []string{
			"TEAM LIQUID - SHIFT 1",
			"TEAM LIQUID - SHIFT 2",
			"TEAM LIQUID - SHIFT 3",
		},
		WindowDays:    7,
		RetentionDays: 7,
		Limit:         500,
	}
}

// ApplyEnv nadpisuje pola z ODOO_* (po wczytaniu .env).
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv("ODOO_API_URL")); v != "" {
		c.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("ODOO_SESSION_ID")); v != "" {
		c.SessionID = v
	}
}

func (c *Config) fillDefaults() {
	d := DefaultConfig()
	if c.BaseURL == "" {
		c.BaseURL = d.BaseURL
	}
	if c.TimeoutMs <= 0 {
		c.TimeoutMs = d.TimeoutMs
	}
	if len(c.GroupWorkerIDs) == 0 {
		c.GroupWorkerIDs = d.GroupWorkerIDs
	}
	if len(c.NoteMarkers) == 0 {
		c.NoteMarkers = d.NoteMarkers
	}
	if c.WindowDays <= 0 {
		c.WindowDays = d.WindowDays
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = d.RetentionDays
	}
	if c.Limit <= 0 {
		c.Limit = d.Limit
	}
}

// SyncResult summarizes one reconcile pass.
type SyncResult struct {
	Fetched      int      `json:"fetched"`
	Inserted     int      `json:"inserted"`
	Updated      int      `json:"updated"`
	WithTransfer int      `json:"with_transfer"`
	Purged       int64    `json:"purged"`
	Errors       []string `json:"errors"`
}

func (r *SyncResult) Failures() int { return len(r.Errors) }

// Reconciler pulls recent manufacturing orders from the ERP into recent_mo.
// It only ever writes ERP-owned columns.
type Reconciler struct {
	log    zerolog.Logger
	cfg    Config
	store  *store.Store
	clock  localtime.Clock
	client *Client

	mu        sync.RWMutex
	sessionID string
}

func New(log zerolog.Logger, cfg Config, st *store.Store, clock localtime.Clock) *Reconciler {
	cfg.fillDefaults()
	return &Reconciler{
		log:       log,
		cfg:       cfg,
		store:     st,
		clock:     clock,
		client:    NewClient(cfg.BaseURL, time.Duration(cfg.TimeoutMs)*time.Millisecond),
		sessionID: cfg.SessionID,
	}
}

func (r *Reconciler) Name() string { return Name }

// SetSessionID replaces the ERP session used by subsequent passes.
func (r *Reconciler) SetSessionID(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	r.mu.Lock()
	r.sessionID = id
	r.mu.Unlock()
}

func (r *Reconciler) session() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessionID
}

// Validate reports whether a pass could run at all.
func (r *Reconciler) Validate() error {
	if r.session() == "" {
		return apperr.Invalid("Odoo session ID is required. Provide session_id or set ODOO_SESSION_ID.")
	}
	return nil
}

func (r *Reconciler) Run(ctx context.Context) (integrations.Report, error) {
	res, err := r.Sync(ctx)
	if res == nil {
		return nil, err
	}
	return res, err
}

// Sync runs fetch, reference resolution, reconcile and purge. A fetch failure
// aborts the pass; a purge failure is only logged.
func (r *Reconciler) Sync(ctx context.Context) (*SyncResult, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	sid := r.session()
	started := time.Now()

	orders, err := r.fetchRecent(ctx, sid)
	if err != nil {
		return nil, fmt.Errorf("fetch recent MO: %w", err)
	}
	res := &SyncResult{Fetched: len(orders), Errors: []string{}}
	r.log.Info().Int("count", len(orders)).Msg("orders fetched")

	transfers := make(map[string]*int64, len(orders))
	for _, o := range orders {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		transfers[o.Name] = r.resolveTransfer(ctx, sid, o)
	}

	r.Reconcile(ctx, orders, transfers, res)

	cutoff := r.clock.RetentionCutoff(r.cfg.RetentionDays)
	purged, err := r.store.PurgeRecentMOBefore(ctx, cutoff)
	if err != nil {
		r.log.Warn().Err(err).Str("cutoff", cutoff).Msg("recent_mo purge failed, skipping")
	} else {
		res.Purged = purged
		if purged > 0 {
			r.log.Info().Int64("purged", purged).Str("cutoff", cutoff).Msg("old recent_mo purged")
		}
	}

	r.log.Info().
		Int("fetched", res.Fetched).
		Int("inserted", res.Inserted).
		Int("updated", res.Updated).
		Int("with_transfer", res.WithTransfer).
		Int("errors", len(res.Errors)).
		Dur("took", time.Since(started)).
		Msg("recent_mo sync finished")
	return res, nil
}

// Reconcile merges a fetched batch into the store. Per-order store failures
// are recorded in res and do not stop the batch.
func (r *Reconciler) Reconcile(ctx context.Context, orders []Order, transfers map[string]*int64, res *SyncResult) {
	for _, o := range orders {
		if strings.TrimSpace(o.Name) == "" {
			continue
		}
		m := toExternal(o, transfers[o.Name])
		inserted, err := r.store.UpsertRecentMO(ctx, m)
		if err != nil {
			r.log.Error().Err(err).Str("mo", o.Name).Msg("recent_mo upsert failed")
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", o.Name, err))
			continue
		}
		if inserted {
			res.Inserted++
		} else {
			res.Updated++
		}
		if m.TransferID != nil {
			res.WithTransfer++
		}
	}
}

func (r *Reconciler) fetchDomain() Domain {
	from, to := r.clock.TrailingWindow(r.cfg.WindowDays)
	d := Domain{
		Term("create_date", ">=", from),
		Term("create_date", "<=", to),
		Term("state", "!=", "done"),
		Term("group_worker", "in", r.cfg.GroupWorkerIDs),
	}
	notes := make([][]any, 0, len(r.cfg.NoteMarkers))
	for _, m := range r.cfg.NoteMarkers {
		notes = append(notes, Term("note", "ilike", m))
	}
	return append(d, AnyOf(notes...)...)
}

func (r *Reconciler) fetchRecent(ctx context.Context, sid string) ([]Order, error) {
	var out []Order
	err := r.client.SearchRead(ctx, sid, "mrp.production", r.fetchDomain(), Kwargs{
		Fields: orderFields,
		Limit:  r.cfg.Limit,
		Order:  "create_date desc",
	}, &out)
	return out, err
}

func transferDomain(o Order) Domain {
	second := Term("name", "ilike", o.Name)
	if origin := nonEmpty(o.Origin); origin != nil {
		second = Term("origin", "ilike", *origin)
	}
	return AnyOf(Term("origin", "ilike", o.Name), second)
}

// resolveTransfer finds the newest picking for the order. Lookup failures
// mean "no reference".
func (r *Reconciler) resolveTransfer(ctx context.Context, sid string, o Order) *int64 {
	var rows []Picking
	err := r.client.SearchRead(ctx, sid, "stock.picking", transferDomain(o), Kwargs{
		Fields: pickingFields,
		Limit:  1,
		Order:  "id desc",
	}, &rows)
	if err != nil {
		r.log.Debug().Err(err).Str("mo", o.Name).Msg("stock.picking lookup failed")
		return nil
	}
	if len(rows) == 0 || rows[0].ID == 0 {
		return nil
	}
	id := rows[0].ID
	return &id
}

func toExternal(o Order, transfer *int64) store.ExternalMO {
	var moID *int64
	if o.ID != 0 {
		id := o.ID
		moID = &id
	}
	return store.ExternalMO{
		MoID:             moID,
		MoName:           o.Name,
		State:            nonEmpty(o.State),
		GroupWorkerID:    o.GroupWorker.IDPtr(),
		Note:             nonEmpty(o.Note),
		ProductID:        o.Product.IDPtr(),
		ProductName:      o.Product.NamePtr(),
		ProductUom:       o.ProductUom.NamePtr(),
		ProductQty:       o.ProductQty.Ptr(),
		InitialQtyTarget: o.InitialQtyTarget.Ptr(),
		CreateDate:       nonEmpty(o.CreateDate),
		Origin:           nonEmpty(o.Origin),
		TransferID:       transfer,
	}
}

func factory(deps integrations.Deps, raw json.RawMessage) (integrations.Job, error) {
	cfg := DefaultConfig()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("odoo config: %w", err)
		}
	}
	cfg.ApplyEnv()
	return New(deps.Log, cfg, deps.Store, deps.Clock), nil
}

func init() {
	integrations.Register(Name, factory)
}
