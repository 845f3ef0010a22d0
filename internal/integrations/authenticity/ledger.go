// internal/integrations/authenticity/ledger.go
package authenticity

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bartek5186/mosync/internal/integrations"
	"github.com/bartek5186/mosync/internal/localtime"
	"github.com/bartek5186/mosync/internal/store"
	"github.com/rs/zerolog"
)

const Name = "authenticity"

type Config struct {
	BaseURL         string `json:"base_url"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	TimeoutMs       int    `json:"timeout_ms"`
	TokenTTLMinutes int    `json:"token_ttl_minutes"`
	VendorPageLimit int    `json:"vendor_page_limit"`
	RetentionDays   int    `json:"retention_days"` // vendor cache
}

func DefaultConfig() Config {
	return Config{
		BaseURL:         "https://warehouse.foomid.id",
		TimeoutMs:       20000,
		TokenTTLMinutes: 60,
		VendorPageLimit: 100,
		RetentionDays:   7,
	}
}

// ApplyEnv nadpisuje pola z AUTH_* (po wczytaniu .env).
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv("AUTH_BASE_URL")); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("AUTH_USERNAME"); v != "" {
		c.Username = v
	}
	if v := os.Getenv("AUTH_PASSWORD"); v != "" {
		c.Password = v
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
	if c.TokenTTLMinutes <= 0 {
		c.TokenTTLMinutes = d.TokenTTLMinutes
	}
	if c.VendorPageLimit <= 0 {
		c.VendorPageLimit = d.VendorPageLimit
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = d.RetentionDays
	}
}

type TransferError struct {
	TransferID int64  `json:"transfer_id"`
	MoName     string `json:"mo_name"`
	Error      string `json:"error"`
}

type VendorError struct {
	Roll  string `json:"roll"`
	Error string `json:"error"`
}

// Summary is the outcome of one ledger pass.
type Summary struct {
	Processed       int             `json:"processed"`
	Total           int             `json:"total"`
	Inserted        int             `json:"inserted"`
	VendorProcessed int             `json:"vendor_processed"`
	VendorTotal     int             `json:"vendor_total"`
	VendorInserted  int             `json:"vendor_inserted"`
	VendorUpdated   int             `json:"vendor_updated"`
	VendorSkipped   int             `json:"vendor_skipped"`
	Purged          int64           `json:"purged"`
	Errors          []TransferError `json:"errors"`
	VendorErrors    []VendorError   `json:"vendor_errors"`
}

func (s *Summary) Failures() int { return len(s.Errors) + len(s.VendorErrors) }

// LedgerSync copies consumed authenticity codes per transfer into the local
// ledger and refreshes the vendor roll cache.
type LedgerSync struct {
	log    zerolog.Logger
	store  *store.Store
	clock  localtime.Clock
	source Source
	cfg    Config
}

func NewLedgerSync(log zerolog.Logger, cfg Config, st *store.Store, clock localtime.Clock, src Source) *LedgerSync {
	cfg.fillDefaults()
	if src == nil {
		src = NewClient(cfg)
	}
	return &LedgerSync{log: log, store: st, clock: clock, source: src, cfg: cfg}
}

func (l *LedgerSync) Name() string { return Name }

func (l *LedgerSync) Run(ctx context.Context) (integrations.Report, error) {
	sum, err := l.Sync(ctx)
	if sum == nil {
		return nil, err
	}
	return sum, err
}

// Sync runs the three passes. Only a failure to enumerate a work list is
// returned as an error; per-item failures land in the summary.
func (l *LedgerSync) Sync(ctx context.Context) (*Summary, error) {
	started := time.Now()
	sum := &Summary{Errors: []TransferError{}, VendorErrors: []VendorError{}}

	refs, err := l.store.TransferRefs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transfer ids: %w", err)
	}
	sum.Total = len(refs)
	for _, ref := range refs {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}
		n, err := l.syncTransfer(ctx, ref)
		if err != nil {
			l.log.Warn().Err(err).Int64("transfer_id", ref.TransferID).Str("mo", ref.MoName).Msg("transfer failed")
			sum.Errors = append(sum.Errors, TransferError{TransferID: ref.TransferID, MoName: ref.MoName, Error: err.Error()})
			continue
		}
		sum.Processed++
		sum.Inserted += n
	}

	rolls, err := l.store.RollNumbers(ctx)
	if err != nil {
		return sum, fmt.Errorf("list roll numbers: %w", err)
	}
	sum.VendorTotal = len(rolls)
	for _, roll := range rolls {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}
		if err := l.syncVendor(ctx, roll, sum); err != nil {
			l.log.Warn().Err(err).Str("roll", roll).Msg("vendor roll failed")
			sum.VendorErrors = append(sum.VendorErrors, VendorError{Roll: roll, Error: err.Error()})
			continue
		}
		sum.VendorProcessed++
	}

	cutoff := l.clock.RetentionCutoff(l.cfg.RetentionDays)
	purged, err := l.store.PurgeVendorsBefore(ctx, cutoff)
	if err != nil {
		l.log.Warn().Err(err).Str("cutoff", cutoff).Msg("vendor purge failed")
	}
	sum.Purged = purged

	l.log.Info().
		Int("processed", sum.Processed).
		Int("total", sum.Total).
		Int("inserted", sum.Inserted).
		Int("vendor_processed", sum.VendorProcessed).
		Int("vendor_total", sum.VendorTotal).
		Int64("purged", sum.Purged).
		Int("failures", sum.Failures()).
		Dur("took", time.Since(started)).
		Msg("authenticity sync finished")
	return sum, nil
}

func (l *LedgerSync) syncTransfer(ctx context.Context, ref store.TransferRef) (int, error) {
	items, err := l.source.Warehouse(ctx, ref.TransferID)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, nil
	}
	date := ref.CreateDate
	if date == nil || *date == "" {
		now := l.clock.Stamp()
		date = &now
	}
	inserted := 0
	for _, it := range items {
		code := it.First(warehouseCodeKeys...)
		if code == "" {
			continue
		}
		ok, err := l.store.InsertUsedAuthenticity(ctx, ref.TransferID, code, date)
		if err != nil {
			return inserted, err
		}
		if ok {
			inserted++
		}
	}
	return inserted, nil
}

func (l *LedgerSync) syncVendor(ctx context.Context, roll string, sum *Summary) error {
	items, err := l.source.Vendor(ctx, roll)
	if err != nil {
		return err
	}
	for _, it := range items {
		v := store.VendorItem{
			Roll:          it.First(vendorRollKeys...),
			Authenticity:  it.First(vendorCodeKeys...),
			MarketingCode: it.firstPtr(vendorMarketingKey...),
			DeliveryDate:  it.firstPtr(vendorDeliveryKeys...),
			VendorName:    it.firstPtr(vendorNameKeys...),
		}
		if v.Roll == "" {
			v.Roll = roll
		}
		if v.Authenticity == "" {
			sum.VendorSkipped++
			continue
		}
		inserted, err := l.store.UpsertVendor(ctx, v)
		if err != nil {
			return err
		}
		if inserted {
			sum.VendorInserted++
		} else {
			sum.VendorUpdated++
		}
	}
	return nil
}

func factory(deps integrations.Deps, raw json.RawMessage) (integrations.Job, error) {
	cfg := DefaultConfig()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("authenticity config: %w", err)
		}
	}
	cfg.ApplyEnv()
	return NewLedgerSync(deps.Log, cfg, deps.Store, deps.Clock, nil), nil
}

func init() {
	integrations.Register(Name, factory)
}
