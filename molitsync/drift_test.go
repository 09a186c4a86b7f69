package molitsync

import (
	"testing"

	"github.com/2025-Techeer-Winter-Bootcamp-Team-B/techeer-team-b-2026/models"
)

// NOTE: These tests are intentionally DB-free. The matching, candidate search
// and ordering rules are pure functions; the surrounding read/write plumbing
// is exercised against MySQL separately.

func TestNormalizeAddressKey(t *testing.T) {
	if got := normalizeAddressKey("서울 종로구 사직로8길 4"); got != "서울종로구사직로8길4" {
		t.Fatalf("got %q", got)
	}
	if got := normalizeAddressKey("산 12-3"); got != "산123" {
		t.Fatalf("got %q", got)
	}
}

func TestNamesMatch(t *testing.T) {
	cases := []struct {
		name    string
		apt     string
		road    string
		jibun   string
		want    bool
		comment string
	}{
		{"name in road", "경희궁자이", "서울 종로구 경희궁자이 2단지", "", true, ""},
		{"name in jibun", "래미안팰리스", "", "서울 강남구 래미안 팰리스 12", true, "spacing differences are ignored"},
		{"address in name", "홍제원 현대", "현대", "", true, "short address fragment inside the name"},
		{"mismatch", "래미안파크", "서울 서초구 반포자이아파트", "반포동 자이", false, ""},
		{"single char name matches vacuously", "A", "어디든", "어디든", true, ""},
		{"hyphen stripped", "한강1-차", "서울 한강1차 아파트", "", true, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := namesMatch(tc.apt, tc.road, tc.jibun); got != tc.want {
				t.Fatalf("namesMatch(%q, %q, %q) = %v, want %v", tc.apt, tc.road, tc.jibun, got, tc.want)
			}
		})
	}
}

func driftIndex(names map[int]string) map[int]*models.Apartment {
	m := make(map[int]*models.Apartment, len(names))
	for id, name := range names {
		m[id] = &models.Apartment{AptId: id, AptName: name}
	}
	return m
}

func TestFindOffsetCandidate_PriorityOrder(t *testing.T) {
	// both +1 and +2 would match; +2 is probed first and must win
	apts := driftIndex(map[int]string{
		5417: "래미안파크",
		5418: "강남타워",
		5419: "강남타워",
	})
	id, off, ok := findOffsetCandidate(apts, 5417, "서울 강남구 강남타워로 1", "")
	if !ok || id != 5419 || off != 2 {
		t.Fatalf("want 5419 at +2, got id=%d off=%d ok=%v", id, off, ok)
	}
}

func TestFindOffsetCandidate_FallsThroughOffsets(t *testing.T) {
	apts := driftIndex(map[int]string{
		5416: "목화아파트",
		5417: "래미안파크",
	})
	// +2, +1, +3 miss; -1 matches
	id, off, ok := findOffsetCandidate(apts, 5417, "부산 수영구 목화아파트길 3", "")
	if !ok || id != 5416 || off != -1 {
		t.Fatalf("want 5416 at -1, got id=%d off=%d ok=%v", id, off, ok)
	}
}

func TestFindOffsetCandidate_NoMatch(t *testing.T) {
	apts := driftIndex(map[int]string{5417: "래미안파크"})
	if _, _, ok := findOffsetCandidate(apts, 5417, "어딘가 다른 주소", ""); ok {
		t.Fatal("want no candidate")
	}
}

func TestSortCorrectionsByTarget_ChainSafety(t *testing.T) {
	// detail X: 5417 -> 5419, detail Y: 5419 -> 5421. applying X first would
	// leave Y reading a row X just wrote; the higher target must go first.
	corrections := []AppliedCorrection{
		{AptDetailId: 10, FromAptId: 5417, ToAptId: 5419, Offset: 2},
		{AptDetailId: 11, FromAptId: 5419, ToAptId: 5421, Offset: 2},
		{AptDetailId: 12, FromAptId: 5415, ToAptId: 5416, Offset: 1},
	}
	sortCorrectionsByTarget(corrections)

	if corrections[0].ToAptId != 5421 || corrections[1].ToAptId != 5419 || corrections[2].ToAptId != 5416 {
		t.Fatalf("wrong order: %+v", corrections)
	}
}

func TestSortCorrectionsByTarget_StableOnEqualTargets(t *testing.T) {
	corrections := []AppliedCorrection{
		{AptDetailId: 3, ToAptId: 100},
		{AptDetailId: 7, ToAptId: 100},
	}
	sortCorrectionsByTarget(corrections)
	if corrections[0].AptDetailId != 7 {
		t.Fatalf("ties break on detail id descending: %+v", corrections)
	}
}
