package models

import (
	"context"
	"errors"
	"time"

	"github.com/2025-Techeer-Winter-Bootcamp-Team-B/techeer-team-b-2026/config"
	"gorm.io/gorm"
)

// Apartment is one complex from the MOLIT total apartment list. kapt_code is
// the natural key; region links to the State row whose region_code equals the
// upstream bjdCode.
type Apartment struct {
	AptId     int       `gorm:"primary_key" json:"apt_id"`
	StateId   int       `gorm:"index;not null" json:"state_id"`
	AptName   string    `gorm:"index;size:200;not null" json:"apt_name"`
	KaptCode  string    `gorm:"index;size:20;not null" json:"kapt_code"`
	IsDeleted bool      `gorm:"default:false" json:"is_deleted"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewApartment struct {
	StateId  int
	AptName  string
	KaptCode string
}

func GetApartmentByKaptCode(ctx context.Context, kaptCode string) (*Apartment, error) {
	db := config.GetDB().WithContext(ctx)
	var apt Apartment
	err := db.Where("kapt_code = ? AND is_deleted = ?", kaptCode, false).Take(&apt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &apt, nil
}

// GetApartmentByName matches the exact complex name. Used as the fallback when
// a transaction's aptSeq cannot be resolved to a kapt code.
func GetApartmentByName(ctx context.Context, aptName string) (*Apartment, error) {
	db := config.GetDB().WithContext(ctx)
	var apt Apartment
	err := db.Where("apt_name = ? AND is_deleted = ?", aptName, false).
		Order("apt_id").
		Take(&apt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &apt, nil
}

func CreateApartmentOrSkip(ctx context.Context, input *NewApartment) (*Apartment, bool, error) {
	existing, err := GetApartmentByKaptCode(ctx, input.KaptCode)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	apt := Apartment{
		StateId:  input.StateId,
		AptName:  input.AptName,
		KaptCode: input.KaptCode,
	}
	if err := config.GetDB().WithContext(ctx).Create(&apt).Error; err != nil {
		return nil, false, err
	}
	return &apt, true, nil
}

// ListApartmentsMissingDetails returns complexes that have no detail row yet,
// in stable id order, for the detail enrichment loop.
func ListApartmentsMissingDetails(ctx context.Context, limit int) ([]Apartment, error) {
	db := config.GetDB().WithContext(ctx)
	var apts []Apartment
	err := db.
		Joins("LEFT JOIN apart_details ON apart_details.apt_id = apartments.apt_id AND apart_details.is_deleted = ?", false).
		Where("apartments.is_deleted = ? AND apart_details.apt_detail_id IS NULL", false).
		Order("apartments.apt_id").
		Limit(limit).
		Find(&apts).Error
	if err != nil {
		return nil, err
	}
	return apts, nil
}

// ListAllApartments loads every live complex keyed by apt_id. The drift pass
// works against this in-memory index instead of a query per candidate.
func ListAllApartments(ctx context.Context) (map[int]*Apartment, error) {
	db := config.GetDB().WithContext(ctx)
	var apts []Apartment
	if err := db.Where("is_deleted = ?", false).Find(&apts).Error; err != nil {
		return nil, err
	}
	m := make(map[int]*Apartment, len(apts))
	for i := range apts {
		m[apts[i].AptId] = &apts[i]
	}
	return m, nil
}
