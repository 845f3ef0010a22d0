package store

import (
	"context"
	"strings"

	"github.com/bartek5186/mosync/internal/apperr"
	"github.com/bartek5186/mosync/internal/db"
	"gorm.io/gorm"
)

const (
	DefaultPageLimit = 100
	MaxPageLimit     = 1000
)

type Page struct {
	Limit  int
	Offset int
}

func (p Page) normalized() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

type Pagination struct {
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	HasMore bool  `json:"has_more"`
}

// paginate counts q, then loads one page of it ordered by order.
func paginate[T any](q *gorm.DB, order string, p Page, op string) ([]T, Pagination, error) {
	p = p.normalized()
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, Pagination{}, apperr.Storage(err, "count "+op)
	}
	rows := make([]T, 0)
	if err := q.Session(&gorm.Session{}).Order(order).Limit(p.Limit).Offset(p.Offset).Find(&rows).Error; err != nil {
		return nil, Pagination{}, apperr.Storage(err, "list "+op)
	}
	return rows, Pagination{
		Total:   total,
		Limit:   p.Limit,
		Offset:  p.Offset,
		HasMore: int64(p.Offset+len(rows)) < total,
	}, nil
}

// upperBound turns a bare date into the last second of that day so that
// "to" filters include it.
func upperBound(v string) string {
	v = strings.TrimSpace(v)
	if len(v) == len("2006-01-02") {
		return v + " 23:59:59"
	}
	return v
}

type RecentMOFilter struct {
	MoName string
	Ready  *bool
	State  string
}

func (s *Store) ListRecentMO(ctx context.Context, f RecentMOFilter, p Page) ([]db.RecentMO, Pagination, error) {
	q := s.with(ctx).Model(&db.RecentMO{})
	if f.MoName != "" {
		q = q.Where("mo_name = ?", f.MoName)
	}
	if f.Ready != nil {
		q = q.Where(readyCond, *f.Ready)
	}
	if f.State != "" {
		q = q.Where("state = ?", f.State)
	}
	return paginate[db.RecentMO](q, "create_date DESC, id DESC", p, "recent_mo")
}

type IdentityFilter struct {
	MoName         string
	Sku            string
	CreatedAtFrom  string
	CreatedAtTo    string
	FinishedAtFrom string
	FinishedAtTo   string
}

func (s *Store) ListIdentity(ctx context.Context, f IdentityFilter, p Page) ([]db.ManufacturingIdentity, Pagination, error) {
	q := s.with(ctx).Model(&db.ManufacturingIdentity{})
	if f.MoName != "" {
		q = q.Where("mo_name = ?", f.MoName)
	}
	if f.Sku != "" {
		q = q.Where("sku = ?", f.Sku)
	}
	if f.CreatedAtFrom != "" {
		q = q.Where("created_at >= ?", f.CreatedAtFrom)
	}
	if f.CreatedAtTo != "" {
		q = q.Where("created_at <= ?", upperBound(f.CreatedAtTo))
	}
	if f.FinishedAtFrom != "" {
		q = q.Where("finished_at >= ?", f.FinishedAtFrom)
	}
	if f.FinishedAtTo != "" {
		q = q.Where("finished_at <= ?", upperBound(f.FinishedAtTo))
	}
	return paginate[db.ManufacturingIdentity](q, "created_at DESC, id DESC", p, "manufacturing_identity")
}

type ProductionLogFilter struct {
	MoName   string
	Status   string
	FromDate string
	ToDate   string
}

func (s *Store) ListProductionLog(ctx context.Context, f ProductionLogFilter, p Page) ([]db.ProductionLog, Pagination, error) {
	q := s.with(ctx).Model(&db.ProductionLog{})
	if f.MoName != "" {
		q = q.Where("mo_name = ?", f.MoName)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.FromDate != "" {
		q = q.Where("create_at >= ?", f.FromDate)
	}
	if f.ToDate != "" {
		q = q.Where("create_at <= ?", upperBound(f.ToDate))
	}
	return paginate[db.ProductionLog](q, "create_at DESC, id DESC", p, "production_log")
}

type VendorFilter struct {
	Roll         string
	Authenticity string
}

func (s *Store) ListVendors(ctx context.Context, f VendorFilter, p Page) ([]db.MasterAuthenticityVendor, Pagination, error) {
	q := s.with(ctx).Model(&db.MasterAuthenticityVendor{})
	if f.Roll != "" {
		q = q.Where("roll = ?", f.Roll)
	}
	if f.Authenticity != "" {
		q = q.Where("authenticity = ?", f.Authenticity)
	}
	return paginate[db.MasterAuthenticityVendor](q, "created_at DESC, id DESC", p, "master_authenticity_vendor")
}

type UsedRMFilter struct {
	TransferID   *int64
	Authenticity string
}

const (
	SourceLedger   = "authenticity_used_rm"
	SourceRecentMO = "recent_mo"
)

// fallback rows get synthetic ids above any real ledger id
const fallbackIDBase = 1000000

// ListUsedRM pages the ledger. When the filtered ledger page is empty it
// answers from the auth ranges recorded on recent_mo instead and reports the
// source it used.
func (s *Store) ListUsedRM(ctx context.Context, f UsedRMFilter, p Page) ([]db.AuthenticityUsedRM, Pagination, string, error) {
	q := s.with(ctx).Model(&db.AuthenticityUsedRM{})
	if f.TransferID != nil {
		q = q.Where("transfer_id = ?", *f.TransferID)
	}
	if f.Authenticity != "" {
		q = q.Where("authenticity = ?", f.Authenticity)
	}
	rows, pg, err := paginate[db.AuthenticityUsedRM](q, "created_at DESC, id DESC", p, "authenticity_used_rm")
	if err != nil || len(rows) > 0 {
		return rows, pg, SourceLedger, err
	}

	fq := s.with(ctx).Model(&db.RecentMO{}).
		Where("transfer_id IS NOT NULL").
		Where("((auth_first IS NOT NULL AND TRIM(auth_first) <> '') OR (auth_last IS NOT NULL AND TRIM(auth_last) <> ''))")
	if f.TransferID != nil {
		fq = fq.Where("transfer_id = ?", *f.TransferID)
	}
	if f.Authenticity != "" {
		fq = fq.Where("(auth_first = ? OR auth_last = ?)", f.Authenticity, f.Authenticity)
	}
	mos, pg, err := paginate[db.RecentMO](fq, "COALESCE(date_start, created_at) DESC, id DESC", p, "recent_mo auth ranges")
	if err != nil {
		return nil, Pagination{}, SourceRecentMO, err
	}

	out := make([]db.AuthenticityUsedRM, 0, len(mos))
	for i, m := range mos {
		stamp := m.CreatedAt
		if m.DateStart != nil && *m.DateStart != "" {
			stamp = *m.DateStart
		}
		code := ""
		if m.AuthFirst != nil {
			code = *m.AuthFirst
		}
		out = append(out, db.AuthenticityUsedRM{
			ID:           uint(fallbackIDBase + pg.Offset + i),
			TransferID:   *m.TransferID,
			Authenticity: code,
			TransferDate: strPtr(stamp),
			CreatedAt:    stamp,
		})
	}
	return out, pg, SourceRecentMO, nil
}
