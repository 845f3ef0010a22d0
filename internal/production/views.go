package production

import (
	"context"
	"strings"

	"github.com/bartek5186/mosync/internal/apperr"
	"github.com/bartek5186/mosync/internal/db"
)

// MOOption is an order the warehouse can still register.
type MOOption struct {
	MoName        string  `json:"mo_name"`
	ProductName   *string `json:"product_name"`
	Note          *string `json:"note"`
	GroupWorkerID *int64  `json:"group_worker_id"`
	CreateDate    *string `json:"create_date"`
}

type ReadyMO struct {
	MoName      string   `json:"mo_name"`
	ProductName *string  `json:"product_name"`
	ProductUom  *string  `json:"product_uom"`
	ProductQty  *float64 `json:"product_qty"`
	AuthFirst   *string  `json:"auth_first"`
	RollNumber  *string  `json:"roll_number"`
	CreateDate  *string  `json:"create_date"`
}

type RunningMO struct {
	MoName      string   `json:"mo_name"`
	ProductName *string  `json:"product_name"`
	ProductUom  *string  `json:"product_uom"`
	ProductQty  *float64 `json:"product_qty"`
	AuthFirst   *string  `json:"auth_first"`
	AuthLast    *string  `json:"auth_last"`
	RollNumber  *string  `json:"roll_number"`
	DateStart   *string  `json:"date_start"`
}

// ReadyMODetails prefills the start form.
type ReadyMODetails struct {
	MoName      string   `json:"mo_name"`
	ProductName *string  `json:"product_name"`
	SkuName     *string  `json:"sku_name"`
	TargetQty   *float64 `json:"target_qty"`
	ProductUom  *string  `json:"product_uom"`
	AuthFirst   *string  `json:"auth_first"`
	RollNumber  *string  `json:"roll_number"`
	DateStart   *string  `json:"date_start"`
}

func (s *Service) MOOptions(ctx context.Context) ([]MOOption, error) {
	rows, err := s.store.MOOptions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]MOOption, 0, len(rows))
	for _, r := range rows {
		out = append(out, MOOption{
			MoName:        r.MoName,
			ProductName:   r.ProductName,
			Note:          r.Note,
			GroupWorkerID: r.GroupWorkerID,
			CreateDate:    r.CreateDate,
		})
	}
	return out, nil
}

func (s *Service) ReadyMOs(ctx context.Context) ([]ReadyMO, error) {
	rows, err := s.store.ReadyMOs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ReadyMO, 0, len(rows))
	for _, r := range rows {
		out = append(out, ReadyMO{
			MoName:      r.MoName,
			ProductName: r.ProductName,
			ProductUom:  r.ProductUom,
			ProductQty:  r.ProductQty,
			AuthFirst:   r.AuthFirst,
			RollNumber:  r.RollNumber,
			CreateDate:  r.CreateDate,
		})
	}
	return out, nil
}

func (s *Service) RunningMOs(ctx context.Context) ([]RunningMO, error) {
	rows, err := s.store.RunningMOs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]RunningMO, 0, len(rows))
	for _, r := range rows {
		out = append(out, runningView(r))
	}
	return out, nil
}

func runningView(r db.RecentMO) RunningMO {
	return RunningMO{
		MoName:      r.MoName,
		ProductName: r.ProductName,
		ProductUom:  r.ProductUom,
		ProductQty:  r.ProductQty,
		AuthFirst:   r.AuthFirst,
		AuthLast:    r.AuthLast,
		RollNumber:  r.RollNumber,
		DateStart:   r.DateStart,
	}
}

func (s *Service) ReadyMODetails(ctx context.Context, name string) (*ReadyMODetails, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Invalid("mo_name required")
	}
	r, err := s.store.FindReady(ctx, name)
	if err != nil {
		return nil, err
	}
	return &ReadyMODetails{
		MoName:      r.MoName,
		ProductName: r.ProductName,
		SkuName:     r.ProductName,
		TargetQty:   targetQty(r),
		ProductUom:  r.ProductUom,
		AuthFirst:   r.AuthFirst,
		RollNumber:  r.RollNumber,
		DateStart:   r.DateStart,
	}, nil
}
