package models

import (
	"context"
	"time"

	"github.com/2025-Techeer-Winter-Bootcamp-Team-B/techeer-team-b-2026/config"
	"gorm.io/gorm"
)

// ApartDetail enriches an Apartment 1:1 with the basic/detail info pair.
// apt_id is the only field the drift reconciler is allowed to rewrite.
type ApartDetail struct {
	AptDetailId       int        `gorm:"primary_key" json:"apt_detail_id"`
	AptId             int        `gorm:"index;not null" json:"apt_id"`
	RoadAddress       string     `gorm:"size:500;not null" json:"road_address"`
	JibunAddress      string     `gorm:"size:500;not null" json:"jibun_address"`
	ZipCode           *string    `gorm:"size:5" json:"zip_code"`
	CodeSaleNm        *string    `gorm:"size:50" json:"code_sale_nm"`
	CodeHeatNm        *string    `gorm:"size:50" json:"code_heat_nm"`
	TotalHouseholdCnt int        `gorm:"not null" json:"total_household_cnt"`
	TotalBuildingCnt  *int       `json:"total_building_cnt"`
	HighestFloor      *int       `json:"highest_floor"`
	UseApprovalDate   *time.Time `gorm:"type:date" json:"use_approval_date"`
	TotalParkingCnt   *int       `json:"total_parking_cnt"`
	BuilderName       *string    `gorm:"size:100" json:"builder_name"`
	DeveloperName     *string    `gorm:"size:100" json:"developer_name"`
	ManageType        *string    `gorm:"size:20" json:"manage_type"`
	HallwayType       *string    `gorm:"size:50" json:"hallway_type"`
	SubwayLine        *string    `gorm:"size:100" json:"subway_line"`
	SubwayStation     *string    `gorm:"size:100" json:"subway_station"`
	SubwayTime        *string    `gorm:"size:100" json:"subway_time"`
	EducationFacility *string    `gorm:"size:200" json:"education_facility"`
	IsDeleted         bool       `gorm:"default:false" json:"is_deleted"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// CreateApartDetailsBatch inserts one enrichment batch inside a single
// transaction. A failed batch rolls back as a unit; the caller continues with
// the next batch.
func CreateApartDetailsBatch(ctx context.Context, details []ApartDetail) error {
	if len(details) == 0 {
		return nil
	}
	return config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&details).Error
	})
}

// DetailJoinRow is one ApartDetail joined to its currently referenced complex,
// the unit the drift detector inspects.
type DetailJoinRow struct {
	AptDetailId  int
	AptId        int
	RoadAddress  string
	JibunAddress string
	AptName      string
	KaptCode     string
}

func ListDetailJoinRows(ctx context.Context) ([]DetailJoinRow, error) {
	db := config.GetDB().WithContext(ctx)
	var rows []DetailJoinRow
	err := db.Model(&ApartDetail{}).
		Select("apart_details.apt_detail_id", "apart_details.apt_id",
			"apart_details.road_address", "apart_details.jibun_address",
			"apartments.apt_name", "apartments.kapt_code").
		Joins("JOIN apartments ON apartments.apt_id = apart_details.apt_id").
		Where("apart_details.is_deleted = ? AND apartments.is_deleted = ?", false, false).
		Order("apart_details.apt_detail_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateApartDetailAptId rewrites the complex reference of one detail row.
// No other field of the row is touched.
func UpdateApartDetailAptId(ctx context.Context, tx *gorm.DB, aptDetailId int, aptId int) error {
	if tx == nil {
		tx = config.GetDB().WithContext(ctx)
	}
	return tx.Model(&ApartDetail{}).
		Where("apt_detail_id = ?", aptDetailId).
		Update("apt_id", aptId).Error
}

// CountOrphanDetails reports detail rows whose apt_id no longer resolves to a
// live complex.
func CountOrphanDetails(ctx context.Context) (int64, error) {
	db := config.GetDB().WithContext(ctx)
	var count int64
	err := db.Model(&ApartDetail{}).
		Joins("LEFT JOIN apartments ON apartments.apt_id = apart_details.apt_id AND apartments.is_deleted = ?", false).
		Where("apart_details.is_deleted = ? AND apartments.apt_id IS NULL", false).
		Count(&count).Error
	return count, err
}
