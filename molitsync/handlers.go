package molitsync

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/2025-Techeer-Winter-Bootcamp-Team-B/techeer-team-b-2026/config"
	"github.com/2025-Techeer-Winter-Bootcamp-Team-B/techeer-team-b-2026/models"
	"github.com/2025-Techeer-Winter-Bootcamp-Team-B/techeer-team-b-2026/utils"
)

func writeRunResult(c *gin.Context, res *CollectionResult, err error) {
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, errRunLocked) {
			status = http.StatusConflict
		}
		body := gin.H{"error": err.Error()}
		if res != nil {
			body["result"] = res
		}
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, res)
}

// CollectRegionsHandler runs a region collection in the request and returns
// its summary.
func CollectRegionsHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svc.CollectRegions(c.Request.Context())
		writeRunResult(c, res, err)
	}
}

func CollectApartmentsHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svc.CollectApartments(c.Request.Context())
		writeRunResult(c, res, err)
	}
}

func CollectApartmentDetailsHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 0
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
				return
			}
			limit = n
		}
		res, err := svc.CollectApartmentDetails(c.Request.Context(), limit)
		writeRunResult(c, res, err)
	}
}

func CollectSalesHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var params SaleParams
		if err := c.ShouldBindJSON(&params); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if err := svc.ValidateSaleParams(params); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		res, err := svc.CollectSaleTransactions(c.Request.Context(), params.LawdCd, params.DealYmd)
		writeRunResult(c, res, err)
	}
}

type triggerRequest struct {
	Entity  string `json:"entity"`
	LawdCd  string `json:"lawd_cd"`
	DealYmd string `json:"deal_ymd"`
	Limit   int    `json:"limit"`
}

// TriggerCollectionHandler queues a run and returns immediately. The run is
// handed to Pub/Sub when a project is configured; otherwise it executes in a
// detached goroutine so local setups behave the same.
func TriggerCollectionHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req triggerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		var params any
		switch req.Entity {
		case models.CollectionEntityRegions, models.CollectionEntityApartments:
		case models.CollectionEntityApartDetails:
			params = map[string]int{"limit": req.Limit}
		case models.CollectionEntitySales:
			saleParams := SaleParams{LawdCd: req.LawdCd, DealYmd: req.DealYmd}
			if err := svc.ValidateSaleParams(saleParams); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			params = saleParams
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown entity"})
			return
		}

		ctx := c.Request.Context()
		run, err := svc.beginRun(ctx, req.Entity, params)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		payload := CollectPubSubPayload{
			RunId:   run.ID,
			Entity:  req.Entity,
			LawdCd:  req.LawdCd,
			DealYmd: req.DealYmd,
			Limit:   req.Limit,
		}
		if err := PublishCollectionRun(ctx, payload); err != nil {
			// no topic available; execute detached from the request
			bgCtx := utils.SetTriggeredByInContext(context.Background(), models.CollectionTriggeredSystem)
			if triggeredBy, ok := utils.GetTriggeredByFromContext(ctx); ok {
				bgCtx = utils.SetTriggeredByInContext(context.Background(), triggeredBy)
			}
			go func() {
				_ = svc.processRun(bgCtx, payload)
			}()
		}
		c.JSON(http.StatusAccepted, gin.H{"run_id": run.ID, "entity": req.Entity, "status": run.Status})
	}
}

func ListRunsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 20
		if raw := c.Query("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
				limit = n
			}
		}
		runs, err := models.ListCollectionRuns(c.Request.Context(), c.Query("entity"), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"runs": runs})
	}
}

func GetRunHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}
		run, err := models.GetCollectionRunByID(c.Request.Context(), uint(id))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if run == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		errs, err := models.ListCollectionErrors(c.Request.Context(), run.ID, 200)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"run": run, "errors": errs})
	}
}

const driftReportCacheKey = "molitsync:drift:report"

// DriftDetectHandler serves the drift report, cached for a few minutes since
// the scan joins every detail row. ?refresh=true forces a rescan.
func DriftDetectHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Query("refresh") != "true" {
			var cached DriftReport
			if ok, err := config.GetRedisObject(driftReportCacheKey, &cached); err == nil && ok {
				c.JSON(http.StatusOK, cached)
				return
			}
		}

		report, err := svc.DetectDrift(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if err := config.SetRedisObject(driftReportCacheKey, report, 10*time.Minute); err != nil {
			config.LogError(svc.logger, moduleName, "DriftDetectHandler", "cache write failed", nil, err)
		}
		c.JSON(http.StatusOK, report)
	}
}

type reconcileRequest struct {
	DryRun bool `json:"dry_run"`
}

// DriftReconcileHandler detects mismatched detail rows and rewrites the
// resolvable ones. dry_run plans without writing.
func DriftReconcileHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reconcileRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
				return
			}
		}

		ctx := c.Request.Context()
		report, err := svc.DetectDrift(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		applied, unresolved, err := svc.ReconcileDrift(ctx, report.Candidates, req.DryRun)
		if err != nil {
			config.LogError(svc.logger, moduleName, "DriftReconcileHandler", "reconcile failed", nil, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !req.DryRun && len(applied) > 0 {
			if err := config.DeleteRedisKey(driftReportCacheKey); err != nil {
				config.LogError(svc.logger, moduleName, "DriftReconcileHandler", "cache invalidation failed", nil, err)
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"dry_run":    req.DryRun,
			"applied":    applied,
			"unresolved": unresolved,
			"checked":    report.Checked,
			"mismatched": report.Mismatched,
		})
	}
}
