package models

import (
	"context"
	"errors"
	"time"

	"github.com/2025-Techeer-Winter-Bootcamp-Team-B/techeer-team-b-2026/config"
	"gorm.io/gorm"
)

// State is one row of the MOLIT standard region code table. region_code is the
// natural key: a 10-digit administrative code whose trailing zeros encode the
// hierarchy level.
type State struct {
	StateId    int       `gorm:"primary_key" json:"state_id"`
	RegionCode string    `gorm:"index;size:10;not null" json:"region_code"`
	RegionName string    `gorm:"size:100;not null" json:"region_name"`
	CityName   string    `gorm:"size:50;not null" json:"city_name"`
	IsDeleted  bool      `gorm:"default:false" json:"is_deleted"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewState struct {
	RegionCode string
	RegionName string
	CityName   string
}

type RegionDepth string

const (
	RegionDepthCity    RegionDepth = "city"
	RegionDepthSigungu RegionDepth = "sigungu"
	RegionDepthDong    RegionDepth = "dong"
)

// Depth infers the hierarchy level from the code shape:
// sido codes are XX00000000, sigungu codes are XXXXX00000, the rest are dong-level.
func (s *State) Depth() RegionDepth {
	return RegionDepthFromCode(s.RegionCode)
}

func RegionDepthFromCode(code string) RegionDepth {
	if len(code) != 10 {
		return RegionDepthDong
	}
	if code[2:] == "00000000" {
		return RegionDepthCity
	}
	if code[5:] == "00000" {
		return RegionDepthSigungu
	}
	return RegionDepthDong
}

func GetStateByRegionCode(ctx context.Context, regionCode string) (*State, error) {
	db := config.GetDB().WithContext(ctx)
	var state State
	err := db.Where("region_code = ? AND is_deleted = ?", regionCode, false).Take(&state).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &state, nil
}

// CreateStateOrSkip inserts the region unless a live row with the same
// region_code already exists. The lookup-then-insert pair is not atomic;
// callers serialize writers per batch.
func CreateStateOrSkip(ctx context.Context, input *NewState) (*State, bool, error) {
	existing, err := GetStateByRegionCode(ctx, input.RegionCode)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	state := State{
		RegionCode: input.RegionCode,
		RegionName: input.RegionName,
		CityName:   input.CityName,
	}
	if err := config.GetDB().WithContext(ctx).Create(&state).Error; err != nil {
		return nil, false, err
	}
	return &state, true, nil
}

// LoadRegionCodeMap caches region_code -> state_id for one collection run so
// apartment rows resolve their region without a lookup per record.
func LoadRegionCodeMap(ctx context.Context) (map[string]int, error) {
	db := config.GetDB().WithContext(ctx)
	var rows []struct {
		RegionCode string
		StateId    int
	}
	if err := db.Model(&State{}).
		Select("region_code", "state_id").
		Where("is_deleted = ?", false).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	m := make(map[string]int, len(rows))
	for _, r := range rows {
		m[r.RegionCode] = r.StateId
	}
	return m, nil
}

// ListSigunguCodes returns the distinct 5-digit sigungu prefixes of all live
// regions, used by the bulk transaction backfill driver.
func ListSigunguCodes(ctx context.Context) ([]string, error) {
	db := config.GetDB().WithContext(ctx)
	var codes []string
	err := db.Model(&State{}).
		Distinct("SUBSTRING(region_code, 1, 5)").
		Where("is_deleted = ?", false).
		Pluck("SUBSTRING(region_code, 1, 5)", &codes).Error
	if err != nil {
		return nil, err
	}
	return codes, nil
}
