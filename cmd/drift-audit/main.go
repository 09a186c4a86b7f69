package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/2025-Techeer-Winter-Bootcamp-Team-B/techeer-team-b-2026/config"
	"github.com/2025-Techeer-Winter-Bootcamp-Team-B/techeer-team-b-2026/molitsync"
)

// Prints a read-only drift report: detail rows whose addresses do not match
// the complex they point at, grouped by the offset that would fix them.
func main() {
	samples := flag.Int("samples", 20, "number of mismatch samples to print")
	flag.Parse()

	logger := config.GetLogger()
	config.ConnectDatabaseWithRetry()

	// no upstream calls happen here, so no API client is needed
	svc := molitsync.NewService(nil, logger)

	report, err := svc.DetectDrift(context.Background())
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "drift"}).Fatal(err)
	}

	fmt.Printf("checked:        %d\n", report.Checked)
	fmt.Printf("matched:        %d\n", report.Matched)
	fmt.Printf("mismatched:     %d\n", report.Mismatched)
	fmt.Printf("resolvable:     %d\n", report.Resolvable)
	fmt.Printf("orphan details: %d\n", report.OrphanDetails)

	if len(report.OffsetHistogram) > 0 {
		fmt.Println("\noffset histogram:")
		for _, off := range []int{2, 1, 3, -1, -2} {
			if n, ok := report.OffsetHistogram[off]; ok {
				fmt.Printf("  %+d: %d\n", off, n)
			}
		}
	}

	if len(report.Candidates) > 0 {
		fmt.Println("\nsample mismatches:")
		for i, cand := range report.Candidates {
			if i >= *samples {
				fmt.Printf("  ... and %d more\n", len(report.Candidates)-i)
				break
			}
			target := "unresolved"
			if cand.CorrectAptId != nil {
				target = fmt.Sprintf("apt %d (%+d)", *cand.CorrectAptId, cand.Offset)
			}
			fmt.Printf("  detail %d: apt %d %q / %s -> %s\n",
				cand.AptDetailId, cand.AptId, cand.AptName, cand.RoadAddress, target)
		}
	}
}
