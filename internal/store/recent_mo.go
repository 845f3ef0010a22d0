package store

import (
	"context"

	"github.com/bartek5186/mosync/internal/apperr"
	"github.com/bartek5186/mosync/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ExternalMO carries the ERP-owned columns of recent_mo. Operator-owned
// columns are deliberately absent so a reconcile cannot write them.
type ExternalMO struct {
	MoID             *int64
	MoName           string
	State            *string
	GroupWorkerID    *int64
	Note             *string
	ProductID        *int64
	ProductName      *string
	ProductUom       *string
	ProductQty       *float64
	InitialQtyTarget *float64
	CreateDate       *string
	Origin           *string
	TransferID       *int64
}

// UpsertRecentMO inserts the order when mo_name is unknown, otherwise
// overwrites the ERP-owned columns in place. transfer_id is coalesced: a nil
// TransferID never clears a known reference.
func (s *Store) UpsertRecentMO(ctx context.Context, m ExternalMO) (inserted bool, err error) {
	row := db.RecentMO{
		MoID:             m.MoID,
		MoName:           m.MoName,
		State:            m.State,
		GroupWorkerID:    m.GroupWorkerID,
		Note:             m.Note,
		ProductID:        m.ProductID,
		ProductName:      m.ProductName,
		ProductUom:       m.ProductUom,
		ProductQty:       m.ProductQty,
		InitialQtyTarget: m.InitialQtyTarget,
		CreateDate:       m.CreateDate,
		Origin:           m.Origin,
		TransferID:       m.TransferID,
		CreatedAt:        s.Clock().Stamp(),
	}
	res := s.with(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "mo_name"}},
		DoNothing: true,
	}).Create(&row)
	if res.Error != nil {
		return false, apperr.Storage(res.Error, "insert recent_mo "+m.MoName)
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	var transfer any
	if m.TransferID != nil {
		transfer = *m.TransferID
	}
	err = s.with(ctx).Model(&db.RecentMO{}).
		Where("mo_name = ?", m.MoName).
		Updates(map[string]any{
			"mo_id":              m.MoID,
			"state":              m.State,
			"group_worker_id":    m.GroupWorkerID,
			"note":               m.Note,
			"product_id":         m.ProductID,
			"product_name":       m.ProductName,
			"product_uom":        m.ProductUom,
			"product_qty":        m.ProductQty,
			"initial_qty_target": m.InitialQtyTarget,
			"create_date":        m.CreateDate,
			"origin":             m.Origin,
			"transfer_id":        gorm.Expr("COALESCE(?, transfer_id)", transfer),
		}).Error
	return false, apperr.Storage(err, "update recent_mo "+m.MoName)
}

// PurgeRecentMOBefore deletes orders whose create_date is older than cutoff.
func (s *Store) PurgeRecentMOBefore(ctx context.Context, cutoff string) (int64, error) {
	res := s.with(ctx).
		Where("create_date IS NOT NULL AND create_date < ?", cutoff).
		Delete(&db.RecentMO{})
	if res.Error != nil {
		return 0, apperr.Storage(res.Error, "purge recent_mo")
	}
	return res.RowsAffected, nil
}

func (s *Store) FindRecentMO(ctx context.Context, name string) (*db.RecentMO, error) {
	var row db.RecentMO
	err := s.with(ctx).Where("mo_name = ?", name).Take(&row).Error
	if err != nil {
		return nil, notFoundOr(err, apperr.NotFound("MO not found in recent_mo"), "find recent_mo")
	}
	return &row, nil
}

// StateOrProgress keeps a non-empty ERP state and fills "progress" otherwise.
var StateOrProgress = gorm.Expr("COALESCE(NULLIF(state, ''), 'progress')")

const (
	readyCond     = "ready_for_production = ?"
	unstartedCond = "(date_start IS NULL OR TRIM(date_start) = '')"
	startedCond   = "date_start IS NOT NULL AND TRIM(date_start) <> ''"
	unfinishCond  = "(date_finished IS NULL OR TRIM(date_finished) = '')"
)

// FindReady returns a ready order regardless of whether it started.
func (s *Store) FindReady(ctx context.Context, name string) (*db.RecentMO, error) {
	var row db.RecentMO
	err := s.with(ctx).Where("mo_name = ?", name).Where(readyCond, true).Take(&row).Error
	if err != nil {
		return nil, notFoundOr(err, apperr.NotFound("MO not found or not ready"), "find ready recent_mo")
	}
	return &row, nil
}

// FindReadyUnstarted returns a ready order that has no date_start yet.
func (s *Store) FindReadyUnstarted(ctx context.Context, name string) (*db.RecentMO, error) {
	var row db.RecentMO
	err := s.with(ctx).Where("mo_name = ?", name).
		Where(readyCond, true).
		Where(unstartedCond).
		Take(&row).Error
	if err != nil {
		return nil, notFoundOr(err, apperr.NotFound("MO not found or not ready"), "find ready recent_mo")
	}
	return &row, nil
}

// FindRunning returns an order that started and has not finished.
func (s *Store) FindRunning(ctx context.Context, name string) (*db.RecentMO, error) {
	var row db.RecentMO
	err := s.with(ctx).Where("mo_name = ?", name).
		Where(startedCond).
		Where(unfinishCond).
		Take(&row).Error
	if err != nil {
		return nil, notFoundOr(err, apperr.NotFound("MO not running"), "find running recent_mo")
	}
	return &row, nil
}

// UpdateRecentMO writes operator-owned columns of a single order.
func (s *Store) UpdateRecentMO(ctx context.Context, name string, fields map[string]any) error {
	err := s.with(ctx).Model(&db.RecentMO{}).Where("mo_name = ?", name).Updates(fields).Error
	return apperr.Storage(err, "update recent_mo "+name)
}

// MOOptions lists orders not yet registered as ready.
func (s *Store) MOOptions(ctx context.Context) ([]db.RecentMO, error) {
	var rows []db.RecentMO
	err := s.with(ctx).Where(readyCond, false).
		Order("create_date DESC").Limit(200).Find(&rows).Error
	return rows, apperr.Storage(err, "list mo options")
}

// ReadyMOs lists ready orders waiting for start.
func (s *Store) ReadyMOs(ctx context.Context) ([]db.RecentMO, error) {
	var rows []db.RecentMO
	err := s.with(ctx).Where(readyCond, true).Where(unstartedCond).
		Order("create_date DESC").Limit(500).Find(&rows).Error
	return rows, apperr.Storage(err, "list ready mo")
}

// RunningMOs lists started, unfinished orders not in the done state.
func (s *Store) RunningMOs(ctx context.Context) ([]db.RecentMO, error) {
	var rows []db.RecentMO
	err := s.with(ctx).Where(startedCond).Where(unfinishCond).
		Where("(state IS NULL OR LOWER(state) <> ?)", "done").
		Order("date_start DESC").Limit(200).Find(&rows).Error
	return rows, apperr.Storage(err, "list running mo")
}
