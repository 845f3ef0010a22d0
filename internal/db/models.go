// internal/db/models.go
package db

// Timestamps are "YYYY-MM-DD HH:MM:SS" strings in plant-local time, the same
// shape the ERP returns, so lexical order is chronological on every driver.

// recent_mo: snapshot of an ERP manufacturing order plus operator fields.
type RecentMO struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	MoID   *int64 `json:"mo_id"`
	MoName string `gorm:"uniqueIndex;not null;size:191" json:"mo_name"`

	// ERP-owned, overwritten on every reconcile
	State            *string  `gorm:"index" json:"state"`
	GroupWorkerID    *int64   `json:"group_worker_id"`
	Note             *string  `gorm:"type:text" json:"note"`
	ProductID        *int64   `json:"product_id"`
	ProductName      *string  `json:"product_name"`
	ProductUom       *string  `json:"product_uom"`
	ProductQty       *float64 `json:"product_qty"`
	InitialQtyTarget *float64 `json:"initial_qty_target"`
	CreateDate       *string  `gorm:"index" json:"create_date"`
	Origin           *string  `json:"origin"`
	TransferID       *int64   `gorm:"index" json:"transfer_id"` // coalesce, never cleared

	// operator-owned, never touched by reconcile
	ReadyForProduction bool    `gorm:"not null;default:false" json:"ready_for_production"`
	AuthFirst          *string `json:"auth_first"`
	AuthLast           *string `json:"auth_last"`
	LeaderID           *string `json:"leader_id"`
	RollNumber         *string `gorm:"index" json:"roll_number"`
	DateStart          *string `json:"date_start"`
	DateFinished       *string `json:"date_finished"`

	// derived by RecomputeLoss
	AuthUsed       *float64 `json:"auth_used"`
	LossValue      *float64 `json:"loss_value"`
	PercentageLoss *float64 `json:"percentage_loss"`

	CreatedAt string `json:"created_at"`
}

func (RecentMO) TableName() string { return "recent_mo" }

// production_log: append-only start/end audit trail
type ProductionLog struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	MoName      string  `gorm:"index;size:191" json:"mo_name"`
	ProductName *string `json:"product_name"`
	LeaderID    *string `json:"leader_id"`
	Status      string  `gorm:"index;size:16" json:"status"` // start/end
	CreateAt    string  `gorm:"column:create_at;index" json:"create_at"`
}

func (ProductionLog) TableName() string { return "production_log" }

// manufacturing_identity: current-cycle projection per MO
type ManufacturingIdentity struct {
	ID         uint     `gorm:"primaryKey" json:"id"`
	MoName     string   `gorm:"uniqueIndex;not null;size:191" json:"mo_name"`
	Sku        *string  `gorm:"index;size:191" json:"sku"`
	SkuName    *string  `json:"sku_name"`
	TargetQty  *float64 `json:"target_qty"`
	LeaderName *string  `json:"leader_name"`
	StartedAt  *string  `json:"started_at"`
	FinishedAt *string  `json:"finished_at"`
	DoneQty    *int64   `json:"done_qty"`
	CreatedAt  string   `json:"created_at"`
}

func (ManufacturingIdentity) TableName() string { return "manufacturing_identity" }

// authenticity_used_rm: codes consumed per warehouse transfer
type AuthenticityUsedRM struct {
	ID           uint    `gorm:"primaryKey" json:"id"`
	TransferID   int64   `gorm:"uniqueIndex:uniq_used_rm;not null" json:"transfer_id"`
	Authenticity string  `gorm:"uniqueIndex:uniq_used_rm;not null;size:191" json:"authenticity"`
	TransferDate *string `json:"transfer_date"`
	CreatedAt    string  `json:"created_at"`
}

func (AuthenticityUsedRM) TableName() string { return "authenticity_used_rm" }

// master_authenticity_vendor: vendor roll cache, purged after 7 days
type MasterAuthenticityVendor struct {
	ID            uint    `gorm:"primaryKey" json:"id"`
	Roll          string  `gorm:"uniqueIndex:uniq_vendor_roll_auth;not null;size:191" json:"roll"`
	Authenticity  string  `gorm:"uniqueIndex:uniq_vendor_roll_auth;not null;size:191" json:"authenticity"`
	MarketingCode *string `json:"marketing_code"`
	TanggalKirim  *string `json:"tanggal_kirim"` // delivery date
	NamaVendor    *string `json:"nama_vendor"`   // vendor name
	CreatedAt     string  `gorm:"index" json:"created_at"`
}

func (MasterAuthenticityVendor) TableName() string { return "master_authenticity_vendor" }
