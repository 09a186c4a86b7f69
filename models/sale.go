package models

import (
	"context"
	"errors"
	"time"

	"github.com/2025-Techeer-Winter-Bootcamp-Team-B/techeer-team-b-2026/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Sale is one apartment sale transaction. There is no upstream identifier, so
// deduplication keys on the (apt_id, contract_date, price, area, floor)
// composite. exclusive_area is decimal so the composite comparison is exact.
type Sale struct {
	SaleId        int             `gorm:"primary_key" json:"sale_id"`
	AptId         int             `gorm:"index;not null" json:"apt_id"`
	BuildYear     *int            `json:"build_year"`
	TransType     string          `gorm:"size:10;not null" json:"trans_type"`
	TransPrice    *int64          `json:"trans_price"`
	ExclusiveArea decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"exclusive_area"`
	Floor         int             `gorm:"not null" json:"floor"`
	BuildingNum   *string         `gorm:"size:50" json:"building_num"`
	ContractDate  *time.Time      `gorm:"type:date;index" json:"contract_date"`
	IsCanceled    bool            `gorm:"default:false" json:"is_canceled"`
	CancelDate    *time.Time      `gorm:"type:date" json:"cancel_date"`
	IsDeleted     bool            `gorm:"default:false" json:"is_deleted"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSale struct {
	AptId         int
	BuildYear     *int
	TransType     string
	TransPrice    *int64
	ExclusiveArea decimal.Decimal
	Floor         int
	BuildingNum   *string
	ContractDate  *time.Time
	IsCanceled    bool
	CancelDate    *time.Time
}

// FindDuplicateSale looks up an existing transaction by the composite key.
// Each comparison field is optional; the match tightens as more of
// {price, area, floor} are present. Without a contract date no duplicate is
// claimed.
func FindDuplicateSale(ctx context.Context, input *NewSale) (*Sale, error) {
	if input.ContractDate == nil {
		return nil, nil
	}

	db := config.GetDB().WithContext(ctx)
	query := db.Where("apt_id = ? AND contract_date = ? AND is_deleted = ?",
		input.AptId, input.ContractDate, false)

	if input.TransPrice != nil {
		query = query.Where("trans_price = ?", *input.TransPrice)
	}
	if !input.ExclusiveArea.IsZero() {
		query = query.Where("exclusive_area = ?", input.ExclusiveArea)
	}
	if input.Floor != 0 {
		query = query.Where("floor = ?", input.Floor)
	}

	var sale Sale
	err := query.Take(&sale).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sale, nil
}

func CreateSaleOrSkip(ctx context.Context, input *NewSale) (*Sale, bool, error) {
	existing, err := FindDuplicateSale(ctx, input)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	sale := Sale{
		AptId:         input.AptId,
		BuildYear:     input.BuildYear,
		TransType:     input.TransType,
		TransPrice:    input.TransPrice,
		ExclusiveArea: input.ExclusiveArea,
		Floor:         input.Floor,
		BuildingNum:   input.BuildingNum,
		ContractDate:  input.ContractDate,
		IsCanceled:    input.IsCanceled,
		CancelDate:    input.CancelDate,
	}
	if err := config.GetDB().WithContext(ctx).Create(&sale).Error; err != nil {
		return nil, false, err
	}
	return &sale, true, nil
}
