package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/2025-Techeer-Winter-Bootcamp-Team-B/techeer-team-b-2026/config"
	"github.com/2025-Techeer-Winter-Bootcamp-Team-B/techeer-team-b-2026/molitsync"
)

// Detects drifted detail rows and rewrites the resolvable ones. Defaults to a
// dry run; pass -apply to write.
func main() {
	apply := flag.Bool("apply", false, "apply the corrections instead of planning them")
	flag.Parse()

	logger := config.GetLogger()
	config.ConnectDatabaseWithRetry()

	svc := molitsync.NewService(nil, logger)
	ctx := context.Background()

	report, err := svc.DetectDrift(ctx)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "drift"}).Fatal(err)
	}
	if report.Mismatched == 0 {
		fmt.Println("no drift found")
		return
	}

	applied, unresolved, err := svc.ReconcileDrift(ctx, report.Candidates, !*apply)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "reconcile"}).Fatal(err)
	}

	mode := "planned"
	if *apply {
		mode = "applied"
	}
	fmt.Printf("%s %d corrections, %d unresolved\n", mode, len(applied), len(unresolved))
	for _, corr := range applied {
		fmt.Printf("  detail %d: apt %d -> apt %d (%+d)\n",
			corr.AptDetailId, corr.FromAptId, corr.ToAptId, corr.Offset)
	}
	for _, cand := range unresolved {
		fmt.Printf("  unresolved: detail %d apt %d %q\n", cand.AptDetailId, cand.AptId, cand.AptName)
	}
}
