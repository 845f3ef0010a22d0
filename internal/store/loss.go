package store

import (
	"context"

	"github.com/bartek5186/mosync/internal/apperr"
	"github.com/bartek5186/mosync/internal/authcode"
	"github.com/bartek5186/mosync/internal/db"
)

// RecomputeLoss refreshes auth_used, loss_value and percentage_loss on every
// order that has both ends of its auth range. Returns the number of rows
// written.
func (s *Store) RecomputeLoss(ctx context.Context) (int64, error) {
	var rows []db.RecentMO
	err := s.with(ctx).
		Select("id", "mo_name", "auth_first", "auth_last", "initial_qty_target", "product_qty").
		Where("auth_first IS NOT NULL AND TRIM(auth_first) <> ''").
		Where("auth_last IS NOT NULL AND TRIM(auth_last) <> ''").
		Find(&rows).Error
	if err != nil {
		return 0, apperr.Storage(err, "load recent_mo for loss")
	}

	var n int64
	for _, r := range rows {
		target := r.InitialQtyTarget
		if target == nil {
			target = r.ProductQty
		}
		loss := authcode.ComputeLoss(target, r.AuthFirst, r.AuthLast)
		err := s.with(ctx).Model(&db.RecentMO{}).Where("id = ?", r.ID).Updates(map[string]any{
			"auth_used":       loss.AuthUsed,
			"loss_value":      loss.LossValue,
			"percentage_loss": loss.PercentageLoss,
		}).Error
		if err != nil {
			return n, apperr.Storage(err, "update loss "+r.MoName)
		}
		n++
	}
	return n, nil
}
