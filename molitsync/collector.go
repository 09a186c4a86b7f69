package molitsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/2025-Techeer-Winter-Bootcamp-Team-B/techeer-team-b-2026/config"
	"github.com/2025-Techeer-Winter-Bootcamp-Team-B/techeer-team-b-2026/models"
	"github.com/2025-Techeer-Winter-Bootcamp-Team-B/techeer-team-b-2026/utils"
	"github.com/bsm/redislock"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const moduleName = "molitsync"

var errRunLocked = errors.New("another collection run for this entity is in progress")

// Limits bounds the concurrency and batching of each collection kind. The
// defaults mirror what the upstream gateway tolerates in practice; raising
// them mostly buys rate-limit errors.
type Limits struct {
	PageSize      int
	RegionWorkers int64
	ListWorkers   int64
	ListChunk     int
	DetailWorkers int64
	DetailBatch   int
	PairTimeout   time.Duration
	PagePause     time.Duration
	BatchPause    time.Duration
}

func DefaultLimits() Limits {
	return Limits{
		PageSize:      defaultPageSize,
		RegionWorkers: 5,
		ListWorkers:   30,
		ListChunk:     50,
		DetailWorkers: 20,
		DetailBatch:   50,
		PairTimeout:   15 * time.Second,
		PagePause:     200 * time.Millisecond,
		BatchPause:    time.Second,
	}
}

// Service orchestrates the collection runs. Database access goes through the
// models package; the service itself owns only the upstream client and the
// knobs.
type Service struct {
	client   *Client
	logger   *logrus.Logger
	limits   Limits
	validate *validator.Validate
}

func NewService(client *Client, logger *logrus.Logger) *Service {
	return &Service{
		client:   client,
		logger:   logger,
		limits:   DefaultLimits(),
		validate: validator.New(),
	}
}

func NewServiceFromEnv() (*Service, error) {
	logger := config.GetLogger()
	client, err := NewClientFromEnv(logger)
	if err != nil {
		return nil, err
	}
	return NewService(client, logger), nil
}

// SaleParams identifies one sale-collection unit: a sigungu and a contract
// month.
type SaleParams struct {
	LawdCd  string `json:"lawd_cd" validate:"required,len=5,numeric"`
	DealYmd string `json:"deal_ymd" validate:"required,len=6,numeric"`
}

func (s *Service) ValidateSaleParams(p SaleParams) error {
	return s.validate.Struct(p)
}

// --- run ledger -------------------------------------------------------------

func (s *Service) beginRun(ctx context.Context, entity string, params any) (*models.CollectionRun, error) {
	triggeredBy, ok := utils.GetTriggeredByFromContext(ctx)
	if !ok {
		triggeredBy = models.CollectionTriggeredManual
	}
	var paramsJSON []byte
	if params != nil {
		paramsJSON, _ = json.Marshal(params)
	}
	run := &models.CollectionRun{
		Entity:      entity,
		Status:      models.CollectionRunStatusQueued,
		TriggeredBy: triggeredBy,
		ParamsJSON:  paramsJSON,
	}
	if err := models.CreateCollectionRun(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *Service) markRunning(ctx context.Context, run *models.CollectionRun) {
	now := time.Now()
	err := models.UpdateCollectionRun(ctx, run, map[string]interface{}{
		"status":     models.CollectionRunStatusRunning,
		"started_at": now,
	})
	if err != nil {
		config.LogError(s.logger, moduleName, "markRunning", "update failed", run.ID, err)
	}
	run.StartedAt = &now
}

func (s *Service) finishRun(ctx context.Context, run *models.CollectionRun, res *CollectionResult) {
	res.FinishedAt = time.Now()
	res.RunId = run.ID

	status := models.CollectionRunStatusSuccess
	if res.errorCount() > 0 || res.Unresolved > 0 {
		status = models.CollectionRunStatusPartial
	}
	if res.Saved == 0 && res.Skipped == 0 && res.errorCount() > 0 {
		status = models.CollectionRunStatusFailed
	}

	statsJSON, _ := json.Marshal(res.Stats)
	updates := map[string]interface{}{
		"status":          status,
		"records_fetched": res.Fetched,
		"records_saved":   res.Saved,
		"skipped":         res.Skipped,
		"unresolved":      res.Unresolved,
		"error_count":     res.errorCount(),
		"stats_json":      statsJSON,
		"finished_at":     res.FinishedAt,
	}
	if run.StartedAt != nil {
		updates["duration_ms"] = res.FinishedAt.Sub(*run.StartedAt).Milliseconds()
	}
	if err := models.UpdateCollectionRun(ctx, run, updates); err != nil {
		config.LogError(s.logger, moduleName, "finishRun", "update failed", run.ID, err)
	}
}

func (s *Service) failRun(ctx context.Context, run *models.CollectionRun, res *CollectionResult, cause error) {
	res.appendError(cause.Error())
	res.FinishedAt = time.Now()
	res.RunId = run.ID
	err := models.UpdateCollectionRun(ctx, run, map[string]interface{}{
		"status":      models.CollectionRunStatusFailed,
		"error_count": res.errorCount(),
		"finished_at": res.FinishedAt,
	})
	if err != nil {
		config.LogError(s.logger, moduleName, "failRun", "update failed", run.ID, err)
	}
}

// recordError persists one per-record failure. Best effort: a broken error
// table never takes the run down with it.
func (s *Service) recordError(ctx context.Context, run *models.CollectionRun, externalId, code, message string, retryable bool) {
	rec := &models.CollectionError{
		RunId:      run.ID,
		Entity:     run.Entity,
		ExternalId: utils.Truncate(externalId, 128),
		ErrorCode:  code,
		Message:    utils.Truncate(message, 2000),
		Retryable:  retryable,
	}
	if err := models.CreateCollectionError(ctx, rec); err != nil {
		config.LogError(s.logger, moduleName, "recordError", "insert failed", code, err)
	}
}

// acquireRunLock serializes runs per lock key through Redis. When Redis is not
// configured (local tooling, tests) the lock degrades to a no-op.
func (s *Service) acquireRunLock(ctx context.Context, key string) (*redislock.Lock, error) {
	locker := config.GetRedisLock()
	if locker == nil {
		return nil, nil
	}
	lock, err := locker.Obtain(ctx, "molitsync:lock:"+key, 30*time.Minute, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, errRunLocked
	}
	return lock, err
}

func releaseLock(ctx context.Context, lock *redislock.Lock) {
	if lock != nil {
		_ = lock.Release(ctx)
	}
}

// --- regions ----------------------------------------------------------------

// CollectRegions refreshes the standard region code table, one page walk per
// top-level city, five cities in flight.
func (s *Service) CollectRegions(ctx context.Context) (*CollectionResult, error) {
	run, err := s.beginRun(ctx, models.CollectionEntityRegions, nil)
	if err != nil {
		return nil, err
	}
	return s.collectRegionsRun(ctx, run)
}

func (s *Service) collectRegionsRun(ctx context.Context, run *models.CollectionRun) (*CollectionResult, error) {
	res := &CollectionResult{Entity: run.Entity, StartedAt: time.Now()}

	lock, err := s.acquireRunLock(ctx, run.Entity)
	if err != nil {
		s.failRun(ctx, run, res, err)
		return res, err
	}
	defer releaseLock(ctx, lock)
	s.markRunning(ctx, run)

	type cityResult struct {
		records []RegionRecord
		errs    []string
	}
	results := make([]cityResult, len(cityNames))

	sem := semaphore.NewWeighted(s.limits.RegionWorkers)
	var wg sync.WaitGroup
	for i, city := range cityNames {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(i int, city string) {
			defer wg.Done()
			defer sem.Release(1)

			items, pageErrs := collectPages(ctx, s.limits.PageSize, func(ctx context.Context, pageNo int) ([]rawItem, int, error) {
				return s.client.fetchRegionPage(ctx, city, pageNo, s.limits.PageSize)
			})
			cr := cityResult{errs: pageErrs}
			for _, it := range items {
				rec, perr := parseRegionItem(it, city)
				if perr != nil {
					cr.errs = append(cr.errs, fmt.Sprintf("%s: %v", city, perr))
					continue
				}
				cr.records = append(cr.records, *rec)
			}
			results[i] = cr
		}(i, city)
	}
	wg.Wait()

	// single writer over the gathered records; CreateStateOrSkip is
	// check-then-act and must not race against itself
	for _, cr := range results {
		for _, msg := range cr.errs {
			res.appendError(msg)
			s.recordError(ctx, run, "", "fetch_or_parse", msg, true)
		}
		for i := range cr.records {
			rec := &cr.records[i]
			res.Fetched++
			_, created, err := models.CreateStateOrSkip(ctx, &models.NewState{
				RegionCode: rec.RegionCode,
				RegionName: rec.RegionName,
				CityName:   rec.CityName,
			})
			if err != nil {
				res.appendError(fmt.Sprintf("save region %s: %v", rec.RegionCode, err))
				s.recordError(ctx, run, rec.RegionCode, "save_failed", err.Error(), true)
				continue
			}
			if created {
				res.Saved++
			} else {
				res.Skipped++
			}
		}
	}

	res.addStat("cities", len(cityNames))
	s.logRunSummary("CollectRegions", res)
	s.finishRun(ctx, run, res)
	return res, nil
}

// --- apartments -------------------------------------------------------------

// CollectApartments walks the nationwide apartment list. Pages are fetched in
// chunks of ListChunk under a wide semaphore, then each chunk's records are
// resolved against the region map and saved by a single writer.
func (s *Service) CollectApartments(ctx context.Context) (*CollectionResult, error) {
	run, err := s.beginRun(ctx, models.CollectionEntityApartments, nil)
	if err != nil {
		return nil, err
	}
	return s.collectApartmentsRun(ctx, run)
}

func (s *Service) collectApartmentsRun(ctx context.Context, run *models.CollectionRun) (*CollectionResult, error) {
	res := &CollectionResult{Entity: run.Entity, StartedAt: time.Now()}

	lock, err := s.acquireRunLock(ctx, run.Entity)
	if err != nil {
		s.failRun(ctx, run, res, err)
		return res, err
	}
	defer releaseLock(ctx, lock)
	s.markRunning(ctx, run)

	regionMap, err := models.LoadRegionCodeMap(ctx)
	if err != nil {
		s.failRun(ctx, run, res, fmt.Errorf("load region map: %w", err))
		return res, err
	}
	if len(regionMap) == 0 {
		err := errors.New("region table is empty; collect regions first")
		s.failRun(ctx, run, res, err)
		return res, err
	}

	first, total, err := s.client.fetchApartmentPage(ctx, 1, s.limits.PageSize)
	if err != nil {
		s.failRun(ctx, run, res, err)
		return res, err
	}
	s.saveApartmentPage(ctx, run, res, regionMap, first)

	totalPages := pageCount(total, s.limits.PageSize)
	for chunkStart := 2; chunkStart <= totalPages; chunkStart += s.limits.ListChunk {
		chunkEnd := chunkStart + s.limits.ListChunk - 1
		if chunkEnd > totalPages {
			chunkEnd = totalPages
		}

		pages := make([][]rawItem, chunkEnd-chunkStart+1)
		pageErrs := make([]string, chunkEnd-chunkStart+1)
		sem := semaphore.NewWeighted(s.limits.ListWorkers)
		var wg sync.WaitGroup
		for page := chunkStart; page <= chunkEnd; page++ {
			if err := sem.Acquire(ctx, 1); err != nil {
				break
			}
			wg.Add(1)
			go func(pageNo int) {
				defer wg.Done()
				defer sem.Release(1)
				items, _, err := s.client.fetchApartmentPage(ctx, pageNo, s.limits.PageSize)
				if err != nil {
					pageErrs[pageNo-chunkStart] = fmt.Sprintf("page %d: %v", pageNo, err)
					return
				}
				pages[pageNo-chunkStart] = items
			}(page)
		}
		wg.Wait()

		for i, items := range pages {
			if pageErrs[i] != "" {
				res.appendError(pageErrs[i])
				s.recordError(ctx, run, "", "page_failed", pageErrs[i], true)
				continue
			}
			s.saveApartmentPage(ctx, run, res, regionMap, items)
		}

		if chunkEnd < totalPages {
			time.Sleep(s.limits.PagePause)
		}
	}

	res.addStat("pages", totalPages)
	s.logRunSummary("CollectApartments", res)
	s.finishRun(ctx, run, res)
	return res, nil
}

func (s *Service) saveApartmentPage(ctx context.Context, run *models.CollectionRun, res *CollectionResult, regionMap map[string]int, items []rawItem) {
	for _, it := range items {
		res.Fetched++
		rec, perr := parseApartmentItem(it)
		if perr != nil {
			res.appendError(perr.Error())
			s.recordError(ctx, run, it.str("kaptCode"), "rejected", perr.Error(), false)
			continue
		}
		stateId, ok := regionMap[rec.BjdCode]
		if !ok {
			res.Unresolved++
			s.recordError(ctx, run, rec.KaptCode, "unresolved_region",
				fmt.Sprintf("bjdCode %s has no region row (%s)", rec.BjdCode, rec.KaptName), false)
			continue
		}
		_, created, err := models.CreateApartmentOrSkip(ctx, &models.NewApartment{
			StateId:  stateId,
			AptName:  rec.KaptName,
			KaptCode: rec.KaptCode,
		})
		if err != nil {
			res.appendError(fmt.Sprintf("save apartment %s: %v", rec.KaptCode, err))
			s.recordError(ctx, run, rec.KaptCode, "save_failed", err.Error(), true)
			continue
		}
		if created {
			res.Saved++
		} else {
			res.Skipped++
		}
	}
}

// --- apartment details ------------------------------------------------------

// CollectApartmentDetails enriches complexes that have no detail row yet.
// limit <= 0 means all of them. Each complex needs two upstream calls (basic
// and detail info) which run concurrently under one shared deadline; a slow
// pair is skipped, not waited out.
func (s *Service) CollectApartmentDetails(ctx context.Context, limit int) (*CollectionResult, error) {
	run, err := s.beginRun(ctx, models.CollectionEntityApartDetails, map[string]int{"limit": limit})
	if err != nil {
		return nil, err
	}
	return s.collectApartDetailsRun(ctx, run, limit)
}

func (s *Service) collectApartDetailsRun(ctx context.Context, run *models.CollectionRun, limit int) (*CollectionResult, error) {
	res := &CollectionResult{Entity: run.Entity, StartedAt: time.Now()}

	lock, err := s.acquireRunLock(ctx, run.Entity)
	if err != nil {
		s.failRun(ctx, run, res, err)
		return res, err
	}
	defer releaseLock(ctx, lock)
	s.markRunning(ctx, run)

	queryLimit := limit
	if queryLimit <= 0 {
		queryLimit = -1
	}
	targets, err := models.ListApartmentsMissingDetails(ctx, queryLimit)
	if err != nil {
		s.failRun(ctx, run, res, fmt.Errorf("list missing details: %w", err))
		return res, err
	}

	for start := 0; start < len(targets); start += s.limits.DetailBatch {
		end := start + s.limits.DetailBatch
		if end > len(targets) {
			end = len(targets)
		}
		batch := targets[start:end]

		rows := make([]*models.ApartDetail, len(batch))
		sem := semaphore.NewWeighted(s.limits.DetailWorkers)
		var wg sync.WaitGroup
		for i := range batch {
			if err := sem.Acquire(ctx, 1); err != nil {
				break
			}
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				defer sem.Release(1)
				rows[i] = s.fetchDetailPair(ctx, run, res, &batch[i])
			}(i)
		}
		wg.Wait()

		var toSave []models.ApartDetail
		for _, row := range rows {
			if row != nil {
				toSave = append(toSave, *row)
			}
		}
		res.Fetched += len(batch)
		if err := models.CreateApartDetailsBatch(ctx, toSave); err != nil {
			msg := fmt.Sprintf("detail batch %d-%d commit failed: %v", start, end, err)
			res.appendError(msg)
			s.recordError(ctx, run, "", "batch_commit_failed", msg, true)
		} else {
			res.Saved += len(toSave)
		}

		res.addStat("batches", 1)
		if end < len(targets) {
			time.Sleep(s.limits.BatchPause)
		}
	}

	s.logRunSummary("CollectApartmentDetails", res)
	s.finishRun(ctx, run, res)
	return res, nil
}

// fetchDetailPair runs the basic and detail calls for one complex under a
// shared deadline. Result mutation happens under the result's own lock since
// pairs run concurrently.
func (s *Service) fetchDetailPair(ctx context.Context, run *models.CollectionRun, res *CollectionResult, apt *models.Apartment) *models.ApartDetail {
	pairCtx, cancel := context.WithTimeout(ctx, s.limits.PairTimeout)
	defer cancel()

	var basic, detail rawItem
	g, gctx := errgroup.WithContext(pairCtx)
	g.Go(func() error {
		var err error
		basic, err = s.client.fetchBasicInfo(gctx, apt.KaptCode)
		return err
	})
	g.Go(func() error {
		var err error
		detail, err = s.client.fetchDetailInfo(gctx, apt.KaptCode)
		return err
	})
	if err := g.Wait(); err != nil {
		code := "fetch_failed"
		if isTimeout(err) {
			code = "pair_timeout"
		}
		s.recordResultError(ctx, run, res, apt.KaptCode, code,
			fmt.Sprintf("%s (%s): %v", apt.AptName, apt.KaptCode, err), true)
		return nil
	}

	row, perr := parseApartDetail(basic, detail, apt.AptId)
	if perr != nil {
		s.recordResultError(ctx, run, res, apt.KaptCode, "rejected",
			fmt.Sprintf("%s (%s): %v", apt.AptName, apt.KaptCode, perr), false)
		return nil
	}
	return row
}

func (s *Service) recordResultError(ctx context.Context, run *models.CollectionRun, res *CollectionResult, externalId, code, message string, retryable bool) {
	res.appendError(message)
	s.recordError(ctx, run, externalId, code, message, retryable)
}

// --- sale transactions ------------------------------------------------------

// CollectSaleTransactions ingests all sale records for one sigungu and one
// contract month. Pagination is sequential: pages stop when one comes back
// short or the running count reaches the advertised total, whichever is first.
func (s *Service) CollectSaleTransactions(ctx context.Context, lawdCd, dealYmd string) (*CollectionResult, error) {
	params := SaleParams{LawdCd: lawdCd, DealYmd: dealYmd}
	if err := s.ValidateSaleParams(params); err != nil {
		return nil, fmt.Errorf("invalid sale params: %w", err)
	}
	run, err := s.beginRun(ctx, models.CollectionEntitySales, params)
	if err != nil {
		return nil, err
	}
	return s.collectSalesRun(ctx, run, params)
}

func (s *Service) collectSalesRun(ctx context.Context, run *models.CollectionRun, params SaleParams) (*CollectionResult, error) {
	res := &CollectionResult{Entity: run.Entity, StartedAt: time.Now()}

	// lock key includes the params so different region-months backfill in
	// parallel while the same unit never runs twice
	lock, err := s.acquireRunLock(ctx, fmt.Sprintf("%s:%s:%s", run.Entity, params.LawdCd, params.DealYmd))
	if err != nil {
		s.failRun(ctx, run, res, err)
		return res, err
	}
	defer releaseLock(ctx, lock)
	s.markRunning(ctx, run)

	aptCache := map[string]*models.Apartment{}
	pageNo := 1
	for {
		items, total, err := s.client.fetchSalePage(ctx, params.LawdCd, params.DealYmd, pageNo, s.limits.PageSize)
		if err != nil {
			if pageNo == 1 {
				s.failRun(ctx, run, res, err)
				return res, err
			}
			msg := fmt.Sprintf("page %d: %v", pageNo, err)
			res.appendError(msg)
			s.recordError(ctx, run, "", "page_failed", msg, true)
			break
		}
		if len(items) == 0 {
			break
		}

		for _, it := range items {
			res.Fetched++
			rec, perr := parseSaleItem(it)
			if perr != nil {
				res.appendError(perr.Error())
				s.recordError(ctx, run, it.str("aptSeq"), "rejected", perr.Error(), false)
				continue
			}

			apt, err := s.resolveSaleApartment(ctx, rec, aptCache)
			if err != nil {
				res.appendError(fmt.Sprintf("resolve %s: %v", rec.AptName, err))
				s.recordError(ctx, run, rec.AptSeq, "resolve_failed", err.Error(), true)
				continue
			}
			if apt == nil {
				res.Unresolved++
				s.recordError(ctx, run, rec.AptSeq, "unresolved_apartment",
					fmt.Sprintf("aptSeq=%s aptNm=%s has no apartment row", rec.AptSeq, rec.AptName), false)
				continue
			}

			rec.Sale.AptId = apt.AptId
			_, created, err := models.CreateSaleOrSkip(ctx, &rec.Sale)
			if err != nil {
				res.appendError(fmt.Sprintf("save sale (%s): %v", rec.AptName, err))
				s.recordError(ctx, run, rec.AptSeq, "save_failed", err.Error(), true)
				continue
			}
			if created {
				res.Saved++
			} else {
				res.Skipped++
			}
		}

		res.addStat("pages", 1)
		if lastPage(len(items), s.limits.PageSize, res.Fetched, total) {
			break
		}
		pageNo++
		time.Sleep(s.limits.PagePause)
	}

	s.logRunSummary("CollectSaleTransactions", res)
	s.finishRun(ctx, run, res)
	return res, nil
}

// resolveSaleApartment maps a transaction to its complex. aptSeq has the shape
// "11110-2339"; the part after the dash sometimes matches a kapt code. When it
// does not, an exact name match is the fallback. nil with nil error means the
// record stays unresolved.
func (s *Service) resolveSaleApartment(ctx context.Context, rec *SaleRecord, cache map[string]*models.Apartment) (*models.Apartment, error) {
	cacheKey := rec.AptSeq + "|" + rec.AptName
	if apt, ok := cache[cacheKey]; ok {
		return apt, nil
	}

	var apt *models.Apartment
	if idx := strings.LastIndex(rec.AptSeq, "-"); idx >= 0 && idx+1 < len(rec.AptSeq) {
		found, err := models.GetApartmentByKaptCode(ctx, rec.AptSeq[idx+1:])
		if err != nil {
			return nil, err
		}
		apt = found
	}
	if apt == nil && rec.AptName != "" {
		found, err := models.GetApartmentByName(ctx, rec.AptName)
		if err != nil {
			return nil, err
		}
		apt = found
	}
	cache[cacheKey] = apt
	return apt, nil
}

func (s *Service) logRunSummary(op string, res *CollectionResult) {
	if s.logger == nil {
		return
	}
	s.logger.WithFields(logrus.Fields{
		"module":     moduleName,
		"operation":  op,
		"entity":     res.Entity,
		"fetched":    res.Fetched,
		"saved":      res.Saved,
		"skipped":    res.Skipped,
		"unresolved": res.Unresolved,
		"errors":     res.errorCount(),
	}).Info("collection finished")
}
