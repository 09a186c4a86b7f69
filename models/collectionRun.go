package models

import (
	"context"
	"errors"
	"time"

	"github.com/2025-Techeer-Winter-Bootcamp-Team-B/techeer-team-b-2026/config"
	"gorm.io/gorm"
)

const (
	CollectionEntityRegions      = "regions"
	CollectionEntityApartments   = "apartments"
	CollectionEntityApartDetails = "apart_details"
	CollectionEntitySales        = "sales"
)

const (
	CollectionRunStatusQueued  = "queued"
	CollectionRunStatusRunning = "running"
	CollectionRunStatusSuccess = "success"
	CollectionRunStatusFailed  = "failed"
	CollectionRunStatusPartial = "partial"
)

const (
	CollectionTriggeredManual = "manual"
	CollectionTriggeredSystem = "system"
	CollectionTriggeredBulk   = "bulk"
)

// CollectionRun is the ledger row for one collection operation, recording the
// queued -> running -> success/partial/failed lifecycle and the aggregate
// counters.
type CollectionRun struct {
	ID             uint       `gorm:"primary_key" json:"id"`
	Entity         string     `gorm:"index;size:20;not null" json:"entity"`
	Status         string     `gorm:"size:20;not null" json:"status"`
	TriggeredBy    string     `gorm:"size:20" json:"triggered_by"`
	ParamsJSON     []byte     `gorm:"type:json" json:"params"`
	StatsJSON      []byte     `gorm:"type:json" json:"stats"`
	RecordsFetched int        `json:"records_fetched"`
	RecordsSaved   int        `json:"records_saved"`
	Skipped        int        `json:"skipped"`
	Unresolved     int        `json:"unresolved"`
	ErrorCount     int        `json:"error_count"`
	StartedAt      *time.Time `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at"`
	DurationMs     int64      `json:"duration_ms"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// CollectionError is one per-record failure inside a run: a rejected parse, an
// unresolved complex reference, a failed page or a failed batch commit.
type CollectionError struct {
	ID          uint      `gorm:"primary_key" json:"id"`
	RunId       uint      `gorm:"index;not null" json:"run_id"`
	Entity      string    `gorm:"size:20" json:"entity"`
	ExternalId  string    `gorm:"size:128" json:"external_id"`
	ErrorCode   string    `gorm:"size:64" json:"error_code"`
	Message     string    `gorm:"type:text" json:"message"`
	PayloadJSON []byte    `gorm:"type:json" json:"payload"`
	Retryable   bool      `gorm:"default:false" json:"retryable"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func CreateCollectionRun(ctx context.Context, run *CollectionRun) error {
	return config.GetDB().WithContext(ctx).Create(run).Error
}

func GetCollectionRunByID(ctx context.Context, id uint) (*CollectionRun, error) {
	db := config.GetDB().WithContext(ctx)
	var run CollectionRun
	err := db.Where("id = ?", id).Take(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

func ListCollectionRuns(ctx context.Context, entity string, limit int) ([]CollectionRun, error) {
	db := config.GetDB().WithContext(ctx)
	query := db.Model(&CollectionRun{}).Order("id DESC").Limit(limit)
	if entity != "" {
		query = query.Where("entity = ?", entity)
	}
	var runs []CollectionRun
	if err := query.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func ListCollectionErrors(ctx context.Context, runId uint, limit int) ([]CollectionError, error) {
	db := config.GetDB().WithContext(ctx)
	var errs []CollectionError
	err := db.Where("run_id = ?", runId).Order("id").Limit(limit).Find(&errs).Error
	if err != nil {
		return nil, err
	}
	return errs, nil
}

func UpdateCollectionRun(ctx context.Context, run *CollectionRun, updates map[string]interface{}) error {
	return config.GetDB().WithContext(ctx).Model(run).Updates(updates).Error
}

func CreateCollectionError(ctx context.Context, rec *CollectionError) error {
	return config.GetDB().WithContext(ctx).Create(rec).Error
}
