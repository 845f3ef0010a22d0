package store

import (
	"context"

	"github.com/bartek5186/mosync/internal/apperr"
	"github.com/bartek5186/mosync/internal/db"
	"gorm.io/gorm/clause"
)

const (
	LogStart = "start"
	LogEnd   = "end"
)

// AppendProductionLog writes one audit row stamped now.
func (s *Store) AppendProductionLog(ctx context.Context, moName string, productName, leaderID *string, status string) error {
	row := db.ProductionLog{
		MoName:      moName,
		ProductName: productName,
		LeaderID:    leaderID,
		Status:      status,
		CreateAt:    s.Clock().Stamp(),
	}
	return apperr.Storage(s.with(ctx).Create(&row).Error, "insert production_log")
}

// LatestStartLeader returns the leader of the newest start entry for the
// order, or nil when there is none.
func (s *Store) LatestStartLeader(ctx context.Context, moName string) (*string, error) {
	var rows []db.ProductionLog
	err := s.with(ctx).
		Where("mo_name = ? AND status = ? AND leader_id IS NOT NULL", moName, LogStart).
		Order("create_at DESC, id DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, apperr.Storage(err, "find start log")
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].LeaderID, nil
}

// IdentityStart describes a production cycle that just began.
type IdentityStart struct {
	MoName     string
	Sku        *string
	SkuName    *string
	TargetQty  *float64
	LeaderName *string
	StartedAt  string
}

// UpsertIdentityStarted opens a new cycle for the order. A restarted order
// has its previous finished_at and done_qty cleared.
func (s *Store) UpsertIdentityStarted(ctx context.Context, in IdentityStart) error {
	started := in.StartedAt
	row := db.ManufacturingIdentity{
		MoName:     in.MoName,
		Sku:        in.Sku,
		SkuName:    in.SkuName,
		TargetQty:  in.TargetQty,
		LeaderName: in.LeaderName,
		StartedAt:  &started,
		CreatedAt:  s.Clock().Stamp(),
	}
	err := s.with(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "mo_name"}},
		DoUpdates: clause.Assignments(map[string]any{
			"sku":         in.Sku,
			"sku_name":    in.SkuName,
			"target_qty":  in.TargetQty,
			"leader_name": in.LeaderName,
			"started_at":  started,
			"finished_at": nil,
			"done_qty":    nil,
		}),
	}).Create(&row).Error
	return apperr.Storage(err, "upsert manufacturing_identity "+in.MoName)
}

// FinishIdentity closes the current cycle. Orders started before identity
// tracking existed have no row; that is not an error.
func (s *Store) FinishIdentity(ctx context.Context, moName, finishedAt string, doneQty *int64) error {
	err := s.with(ctx).Model(&db.ManufacturingIdentity{}).
		Where("mo_name = ?", moName).
		Updates(map[string]any{
			"finished_at": finishedAt,
			"done_qty":    doneQty,
		}).Error
	return apperr.Storage(err, "finish manufacturing_identity "+moName)
}

func (s *Store) FindIdentity(ctx context.Context, moName string) (*db.ManufacturingIdentity, error) {
	var row db.ManufacturingIdentity
	err := s.with(ctx).Where("mo_name = ?", moName).Take(&row).Error
	if err != nil {
		return nil, notFoundOr(err, apperr.NotFound("identity not found"), "find manufacturing_identity")
	}
	return &row, nil
}
