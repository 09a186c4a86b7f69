package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/2025-Techeer-Winter-Bootcamp-Team-B/techeer-team-b-2026/config"
	"github.com/2025-Techeer-Winter-Bootcamp-Team-B/techeer-team-b-2026/models"
	"github.com/2025-Techeer-Winter-Bootcamp-Team-B/techeer-team-b-2026/molitsync"
	"github.com/2025-Techeer-Winter-Bootcamp-Team-B/techeer-team-b-2026/utils"
)

// Backfills sale transactions over a month range, one collection run per
// (sigungu, month) pair, five pairs in flight.
func main() {
	from := flag.String("from", "", "first contract month, YYYYMM (required)")
	to := flag.String("to", "", "last contract month, YYYYMM (required)")
	lawd := flag.String("lawd", "", "comma-separated sigungu codes; all known codes when empty")
	workers := flag.Int64("workers", 5, "concurrent (sigungu, month) pairs")
	flag.Parse()

	logger := config.GetLogger()

	months, err := monthRange(*from, *to)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "flags"}).Fatal(err)
	}

	config.ConnectDatabaseWithRetry()
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_REDIS")), "true") {
		config.ConnectRedisWithRetry()
	}

	svc, err := molitsync.NewServiceFromEnv()
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "startup"}).Fatal(err)
	}

	ctx := utils.SetTriggeredByInContext(context.Background(), models.CollectionTriggeredBulk)

	var codes []string
	if strings.TrimSpace(*lawd) != "" {
		for _, c := range strings.Split(*lawd, ",") {
			if c = strings.TrimSpace(c); c != "" {
				codes = append(codes, c)
			}
		}
	} else {
		codes, err = models.ListSigunguCodes(ctx)
		if err != nil {
			logger.WithFields(logrus.Fields{"field": "sigungu"}).Fatal(err)
		}
	}
	if len(codes) == 0 {
		logger.Fatal("no sigungu codes to backfill; collect regions first or pass -lawd")
	}

	logger.WithFields(logrus.Fields{
		"codes":  len(codes),
		"months": len(months),
	}).Info("backfill started")

	var mu sync.Mutex
	totals := molitsync.CollectionResult{Entity: models.CollectionEntitySales}
	failures := 0

	sem := semaphore.NewWeighted(*workers)
	var wg sync.WaitGroup
	for _, month := range months {
		for _, code := range codes {
			if err := sem.Acquire(ctx, 1); err != nil {
				break
			}
			wg.Add(1)
			go func(code, month string) {
				defer wg.Done()
				defer sem.Release(1)
				res, err := svc.CollectSaleTransactions(ctx, code, month)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					failures++
					logger.WithFields(logrus.Fields{
						"lawd_cd":  code,
						"deal_ymd": month,
					}).Error(err)
					return
				}
				totals.Fetched += res.Fetched
				totals.Saved += res.Saved
				totals.Skipped += res.Skipped
				totals.Unresolved += res.Unresolved
			}(code, month)
		}
	}
	wg.Wait()

	logger.WithFields(logrus.Fields{
		"fetched":    totals.Fetched,
		"saved":      totals.Saved,
		"skipped":    totals.Skipped,
		"unresolved": totals.Unresolved,
		"failures":   failures,
	}).Info("backfill finished")
	if failures > 0 {
		os.Exit(1)
	}
}

func monthRange(from, to string) ([]string, error) {
	start, err := time.Parse("200601", strings.TrimSpace(from))
	if err != nil {
		return nil, fmt.Errorf("-from: want YYYYMM: %w", err)
	}
	end, err := time.Parse("200601", strings.TrimSpace(to))
	if err != nil {
		return nil, fmt.Errorf("-to: want YYYYMM: %w", err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("-to %s is before -from %s", to, from)
	}

	var months []string
	for m := start; !m.After(end); m = m.AddDate(0, 1, 0) {
		months = append(months, m.Format("200601"))
	}
	return months, nil
}
