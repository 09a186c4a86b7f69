package molitsync

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/2025-Techeer-Winter-Bootcamp-Team-B/techeer-team-b-2026/config"
	"github.com/2025-Techeer-Winter-Bootcamp-Team-B/techeer-team-b-2026/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Historic collection bugs shifted detail rows onto neighbouring apartment
// ids. The shifts cluster on a handful of offsets; candidates are probed in
// observed-frequency order and the first address match wins.
var driftOffsets = []int{2, 1, 3, -1, -2}

// MismatchCandidate is one detail row whose addresses do not match the
// complex it currently points at.
type MismatchCandidate struct {
	AptDetailId  int    `json:"apt_detail_id"`
	AptId        int    `json:"apt_id"`
	AptName      string `json:"apt_name"`
	RoadAddress  string `json:"road_address"`
	JibunAddress string `json:"jibun_address"`
	CorrectAptId *int   `json:"correct_apt_id,omitempty"`
	Offset       int    `json:"offset,omitempty"`
}

// AppliedCorrection records one apt_id rewrite.
type AppliedCorrection struct {
	AptDetailId int `json:"apt_detail_id"`
	FromAptId   int `json:"from_apt_id"`
	ToAptId     int `json:"to_apt_id"`
	Offset      int `json:"offset"`
}

// DriftReport is the detector's output: how many rows were inspected, how
// many matched, and the mismatches grouped by candidate offset.
type DriftReport struct {
	Checked         int                 `json:"checked"`
	Matched         int                 `json:"matched"`
	Mismatched      int                 `json:"mismatched"`
	Resolvable      int                 `json:"resolvable"`
	OrphanDetails   int64               `json:"orphan_details"`
	OffsetHistogram map[int]int         `json:"offset_histogram"`
	Candidates      []MismatchCandidate `json:"candidates"`
}

// normalizeAddressKey strips spaces and hyphens so lot-number formatting and
// spacing differences never break a comparison.
func normalizeAddressKey(s string) string {
	s = strings.ReplaceAll(s, " ", "")
	return strings.ReplaceAll(s, "-", "")
}

// namesMatch reports whether a complex name plausibly belongs to the
// addresses. The containment test runs both directions because either side
// may embed the other ("래미안원베일리" inside a road address, or a short
// address fragment inside a long marketing name). Names shorter than two
// characters carry no signal and match vacuously.
func namesMatch(aptName, roadAddress, jibunAddress string) bool {
	name := normalizeAddressKey(aptName)
	if utf8.RuneCountInString(name) < 2 {
		return true
	}
	road := normalizeAddressKey(roadAddress)
	jibun := normalizeAddressKey(jibunAddress)
	return strings.Contains(road, name) ||
		strings.Contains(jibun, name) ||
		strings.Contains(name, road) ||
		strings.Contains(name, jibun)
}

// findOffsetCandidate probes the drift offsets in priority order and returns
// the first neighbouring complex whose name matches the addresses. ok is
// false when no offset resolves.
func findOffsetCandidate(apts map[int]*models.Apartment, aptId int, roadAddress, jibunAddress string) (candidateId int, offset int, ok bool) {
	for _, off := range driftOffsets {
		neighbor, exists := apts[aptId+off]
		if !exists {
			continue
		}
		if namesMatch(neighbor.AptName, roadAddress, jibunAddress) {
			return neighbor.AptId, off, true
		}
	}
	return 0, 0, false
}

// sortCorrectionsByTarget orders corrections by descending target id. A
// correction chain like 5417->5419 and 5419->5421 must move the higher target
// first or the second rewrite would clobber the first one's source.
func sortCorrectionsByTarget(corrections []AppliedCorrection) {
	sort.Slice(corrections, func(i, j int) bool {
		if corrections[i].ToAptId != corrections[j].ToAptId {
			return corrections[i].ToAptId > corrections[j].ToAptId
		}
		return corrections[i].AptDetailId > corrections[j].AptDetailId
	})
}

// DetectDrift walks every detail row, compares the referenced complex's name
// against the row's addresses, and reports the mismatches together with the
// offset candidate that would fix each one. Read-only.
func (s *Service) DetectDrift(ctx context.Context) (*DriftReport, error) {
	rows, err := models.ListDetailJoinRows(ctx)
	if err != nil {
		return nil, err
	}
	apts, err := models.ListAllApartments(ctx)
	if err != nil {
		return nil, err
	}
	orphans, err := models.CountOrphanDetails(ctx)
	if err != nil {
		return nil, err
	}

	report := &DriftReport{
		OrphanDetails:   orphans,
		OffsetHistogram: map[int]int{},
	}
	for i := range rows {
		row := &rows[i]
		report.Checked++
		if namesMatch(row.AptName, row.RoadAddress, row.JibunAddress) {
			report.Matched++
			continue
		}

		report.Mismatched++
		cand := MismatchCandidate{
			AptDetailId:  row.AptDetailId,
			AptId:        row.AptId,
			AptName:      row.AptName,
			RoadAddress:  row.RoadAddress,
			JibunAddress: row.JibunAddress,
		}
		if id, off, ok := findOffsetCandidate(apts, row.AptId, row.RoadAddress, row.JibunAddress); ok {
			cand.CorrectAptId = &id
			cand.Offset = off
			report.Resolvable++
			report.OffsetHistogram[off]++
		}
		report.Candidates = append(report.Candidates, cand)
	}

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{
			"module":     moduleName,
			"checked":    report.Checked,
			"mismatched": report.Mismatched,
			"resolvable": report.Resolvable,
			"orphans":    report.OrphanDetails,
		}).Info("drift detection finished")
	}
	return report, nil
}

// ReconcileDrift plans corrections for the given candidates and applies them
// in one transaction, highest target id first. Candidates without a matching
// offset neighbour come back as unresolved and are left untouched. dryRun
// plans without writing.
func (s *Service) ReconcileDrift(ctx context.Context, candidates []MismatchCandidate, dryRun bool) ([]AppliedCorrection, []MismatchCandidate, error) {
	apts, err := models.ListAllApartments(ctx)
	if err != nil {
		return nil, nil, err
	}

	var planned []AppliedCorrection
	var unresolved []MismatchCandidate
	for _, cand := range candidates {
		id, off, ok := findOffsetCandidate(apts, cand.AptId, cand.RoadAddress, cand.JibunAddress)
		if !ok {
			unresolved = append(unresolved, cand)
			continue
		}
		planned = append(planned, AppliedCorrection{
			AptDetailId: cand.AptDetailId,
			FromAptId:   cand.AptId,
			ToAptId:     id,
			Offset:      off,
		})
	}
	sortCorrectionsByTarget(planned)

	if dryRun || len(planned) == 0 {
		return planned, unresolved, nil
	}

	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, corr := range planned {
			if err := models.UpdateApartDetailAptId(ctx, tx, corr.AptDetailId, corr.ToAptId); err != nil {
				return fmt.Errorf("detail %d -> apt %d: %w", corr.AptDetailId, corr.ToAptId, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, unresolved, err
	}

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{
			"module":     moduleName,
			"applied":    len(planned),
			"unresolved": len(unresolved),
		}).Info("drift reconciliation finished")
	}
	return planned, unresolved, nil
}
