package store

import (
	"context"
	"errors"

	"github.com/bartek5186/mosync/internal/apperr"
	"github.com/bartek5186/mosync/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TransferRef is one distinct transfer reference known to recent_mo, with
// the order it was resolved for and that order's creation date.
type TransferRef struct {
	TransferID int64
	MoName     string
	CreateDate *string
}

// TransferRefs lists distinct non-null transfer ids, newest id first.
func (s *Store) TransferRefs(ctx context.Context) ([]TransferRef, error) {
	var out []TransferRef
	err := s.with(ctx).Model(&db.RecentMO{}).
		Select("transfer_id, MIN(mo_name) AS mo_name, MIN(create_date) AS create_date").
		Where("transfer_id IS NOT NULL").
		Group("transfer_id").
		Order("transfer_id DESC").
		Scan(&out).Error
	return out, apperr.Storage(err, "list transfer refs")
}

// RollNumbers lists distinct non-empty roll numbers.
func (s *Store) RollNumbers(ctx context.Context) ([]string, error) {
	var out []string
	err := s.with(ctx).Model(&db.RecentMO{}).
		Distinct("roll_number").
		Where("roll_number IS NOT NULL AND TRIM(roll_number) <> ''").
		Order("roll_number").
		Pluck("roll_number", &out).Error
	return out, apperr.Storage(err, "list roll numbers")
}

// InsertUsedAuthenticity appends a ledger row unless (transfer_id,
// authenticity) is already present.
func (s *Store) InsertUsedAuthenticity(ctx context.Context, transferID int64, code string, transferDate *string) (bool, error) {
	row := db.AuthenticityUsedRM{
		TransferID:   transferID,
		Authenticity: code,
		TransferDate: transferDate,
		CreatedAt:    s.Clock().Stamp(),
	}
	res := s.with(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "transfer_id"}, {Name: "authenticity"}},
		DoNothing: true,
	}).Create(&row)
	if res.Error != nil {
		return false, apperr.Storage(res.Error, "insert authenticity_used_rm")
	}
	return res.RowsAffected > 0, nil
}

// VendorItem is one normalized vendor master entry.
type VendorItem struct {
	Roll          string
	Authenticity  string
	MarketingCode *string
	DeliveryDate  *string
	VendorName    *string
}

// UpsertVendor inserts a vendor row keyed on (roll, authenticity) or
// refreshes its descriptive columns.
func (s *Store) UpsertVendor(ctx context.Context, v VendorItem) (inserted bool, err error) {
	var existing db.MasterAuthenticityVendor
	err = s.with(ctx).Where("roll = ? AND authenticity = ?", v.Roll, v.Authenticity).Take(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		row := db.MasterAuthenticityVendor{
			Roll:          v.Roll,
			Authenticity:  v.Authenticity,
			MarketingCode: v.MarketingCode,
			TanggalKirim:  v.DeliveryDate,
			NamaVendor:    v.VendorName,
			CreatedAt:     s.Clock().Stamp(),
		}
		return true, apperr.Storage(s.with(ctx).Create(&row).Error, "insert master_authenticity_vendor")
	case err != nil:
		return false, apperr.Storage(err, "find master_authenticity_vendor")
	}

	err = s.with(ctx).Model(&existing).Updates(map[string]any{
		"marketing_code": v.MarketingCode,
		"tanggal_kirim":  v.DeliveryDate,
		"nama_vendor":    v.VendorName,
	}).Error
	return false, apperr.Storage(err, "update master_authenticity_vendor")
}

// PurgeVendorsBefore deletes vendor cache rows created before cutoff.
func (s *Store) PurgeVendorsBefore(ctx context.Context, cutoff string) (int64, error) {
	res := s.with(ctx).
		Where("created_at IS NOT NULL AND created_at <> '' AND created_at < ?", cutoff).
		Delete(&db.MasterAuthenticityVendor{})
	if res.Error != nil {
		return 0, apperr.Storage(res.Error, "purge master_authenticity_vendor")
	}
	return res.RowsAffected, nil
}
