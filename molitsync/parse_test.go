package molitsync

import (
	"errors"
	"testing"
	"time"
)

// NOTE: These tests are intentionally DB-free. They validate normalization
// and rejection semantics on raw upstream items; persistence behavior is
// covered separately in an environment that can run MySQL.

func TestParseApartmentItem_MissingMandatoryFieldRejects(t *testing.T) {
	cases := []struct {
		name string
		item rawItem
		want string
	}{
		{"no kaptCode", rawItem{"kaptName": "대림아파트", "bjdCode": "1111010100"}, "kaptCode"},
		{"no kaptName", rawItem{"kaptCode": "A10027875", "bjdCode": "1111010100"}, "kaptName"},
		{"no bjdCode", rawItem{"kaptCode": "A10027875", "kaptName": "대림아파트"}, "bjdCode"},
		{"blank kaptCode", rawItem{"kaptCode": "  ", "kaptName": "대림아파트", "bjdCode": "1111010100"}, "kaptCode"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseApartmentItem(tc.item)
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("want ParseError, got %v", err)
			}
			if perr.Kind != MissingMandatoryField || perr.Field != tc.want {
				t.Fatalf("want missing %q, got kind=%d field=%q", tc.want, perr.Kind, perr.Field)
			}
		})
	}
}

func TestParseApartmentItem_Valid(t *testing.T) {
	rec, err := parseApartmentItem(rawItem{
		"kaptCode": "A10027875",
		"kaptName": " 경희궁자이 ",
		"bjdCode":  "1111010100",
	})
	if err != nil {
		t.Fatal(err)
	}
	if rec.KaptCode != "A10027875" || rec.KaptName != "경희궁자이" || rec.BjdCode != "1111010100" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestParseSaleItem_MissingAreaRejects(t *testing.T) {
	_, err := parseSaleItem(rawItem{
		"aptNm":      "경희궁자이",
		"dealAmount": "142,000",
		"dealYear":   "2024",
		"dealMonth":  "3",
		"dealDay":    "15",
	})
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("want ParseError, got %v", err)
	}
	if perr.Kind != MissingMandatoryField || perr.Field != "excluUseAr" {
		t.Fatalf("want missing excluUseAr, got %+v", perr)
	}
}

func TestParseSaleItem_StripsCommasFromPrice(t *testing.T) {
	rec, err := parseSaleItem(rawItem{
		"aptNm":      "경희궁자이",
		"aptSeq":     "11110-2339",
		"excluUseAr": "84.83",
		"dealAmount": "142,000",
		"dealYear":   "2024",
		"dealMonth":  "3",
		"dealDay":    "15",
		"floor":      "12",
		"buildYear":  "2017",
	})
	if err != nil {
		t.Fatal(err)
	}
	if rec.Sale.TransPrice == nil || *rec.Sale.TransPrice != 142000 {
		t.Fatalf("want price 142000, got %v", rec.Sale.TransPrice)
	}
	if rec.Sale.ExclusiveArea.String() != "84.83" {
		t.Fatalf("want area 84.83, got %s", rec.Sale.ExclusiveArea)
	}
	if rec.Sale.Floor != 12 {
		t.Fatalf("want floor 12, got %d", rec.Sale.Floor)
	}
	want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	if rec.Sale.ContractDate == nil || !rec.Sale.ContractDate.Equal(want) {
		t.Fatalf("want contract date %s, got %v", want, rec.Sale.ContractDate)
	}
}

func TestParseSaleItem_MalformedDateStaysStorable(t *testing.T) {
	rec, err := parseSaleItem(rawItem{
		"aptNm":      "경희궁자이",
		"excluUseAr": "59.92",
		"dealYear":   "2024",
		"dealMonth":  "13",
		"dealDay":    "1",
	})
	if err != nil {
		t.Fatal(err)
	}
	if rec.Sale.ContractDate != nil {
		t.Fatalf("want nil contract date for month 13, got %v", rec.Sale.ContractDate)
	}
}

func TestParseSaleItem_CanceledDeal(t *testing.T) {
	rec, err := parseSaleItem(rawItem{
		"aptNm":      "경희궁자이",
		"excluUseAr": "84.83",
		"dealYear":   "2024",
		"dealMonth":  "3",
		"dealDay":    "15",
		"cdealType":  "Y",
		"cdealDay":   "24.04.02",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !rec.Sale.IsCanceled {
		t.Fatal("want canceled")
	}
}

func TestParseSaleItem_DealingGbn(t *testing.T) {
	direct, _ := parseSaleItem(rawItem{
		"aptNm": "a단지", "excluUseAr": "84.83", "dealingGbn": "직거래",
	})
	if direct.Sale.TransType != "직거래" {
		t.Fatalf("want 직거래, got %s", direct.Sale.TransType)
	}
	brokered, _ := parseSaleItem(rawItem{
		"aptNm": "a단지", "excluUseAr": "84.83",
	})
	if brokered.Sale.TransType != "중개거래" {
		t.Fatalf("want 중개거래 default, got %s", brokered.Sale.TransType)
	}
}

func TestParseRegionItem(t *testing.T) {
	rec, err := parseRegionItem(rawItem{
		"region_cd":   "1111010100",
		"locatadd_nm": "서울특별시 종로구 청운동",
		"locallow_nm": "청운동",
	}, "서울특별시")
	if err != nil {
		t.Fatal(err)
	}
	if rec.RegionCode != "1111010100" || rec.RegionName != "청운동" || rec.CityName != "서울특별시" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	if _, err := parseRegionItem(rawItem{"locatadd_nm": "서울특별시"}, "서울특별시"); err == nil {
		t.Fatal("want rejection without region_cd")
	}
}

func TestParseRegionItem_NameFallsBackToAddress(t *testing.T) {
	rec, err := parseRegionItem(rawItem{
		"region_cd":   "1111000000",
		"locatadd_nm": "서울특별시 종로구",
	}, "서울특별시")
	if err != nil {
		t.Fatal(err)
	}
	if rec.RegionName != "종로구" {
		t.Fatalf("want 종로구, got %q", rec.RegionName)
	}
}

func TestParseApartDetail_MandatoryFields(t *testing.T) {
	if _, err := parseApartDetail(rawItem{"kaptdaCnt": "500"}, nil, 1); err == nil {
		t.Fatal("want rejection without any address")
	}
	if _, err := parseApartDetail(rawItem{"doroJuso": "서울특별시 종로구 경희궁길 1"}, nil, 1); err == nil {
		t.Fatal("want rejection without household count")
	}

	row, err := parseApartDetail(rawItem{
		"doroJuso":    "서울특별시 종로구 경희궁길 1",
		"kaptdaCnt":   "2,533",
		"kaptUsedate": "20170220",
	}, rawItem{
		"kaptdPcnt":  "100",
		"kaptdPcntu": "2400",
	}, 7)
	if err != nil {
		t.Fatal(err)
	}
	if row.AptId != 7 || row.TotalHouseholdCnt != 2533 {
		t.Fatalf("unexpected row: %+v", row)
	}
	if row.JibunAddress != row.RoadAddress {
		t.Fatalf("want jibun mirrored from road, got %q", row.JibunAddress)
	}
	// Only underground stalls count; surface kaptdPcnt is ignored.
	if row.TotalParkingCnt == nil || *row.TotalParkingCnt != 2400 {
		t.Fatalf("want 2400 parking stalls, got %v", row.TotalParkingCnt)
	}
	if row.UseApprovalDate == nil || row.UseApprovalDate.Year() != 2017 {
		t.Fatalf("want use approval 2017, got %v", row.UseApprovalDate)
	}
}

func TestParseApartDetail_DetailFieldSources(t *testing.T) {
	row, err := parseApartDetail(rawItem{
		"kaptAddr":  "서울특별시 종로구 숭인동 1425",
		"kaptdaCnt": "212",
	}, rawItem{
		"codeMgr":       "위탁관리",
		"subwayLine":    "1호선",
		"subwayStation": "동묘앞",
		"kaptdWtimesub": "5분이내",
	}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if row.ManageType == nil || *row.ManageType != "위탁관리" {
		t.Fatalf("want manage type 위탁관리, got %v", row.ManageType)
	}
	if row.SubwayLine == nil || *row.SubwayLine != "1호선" {
		t.Fatalf("want subway line 1호선, got %v", row.SubwayLine)
	}
	if row.SubwayStation == nil || *row.SubwayStation != "동묘앞" {
		t.Fatalf("want subway station 동묘앞, got %v", row.SubwayStation)
	}
	if row.SubwayTime == nil || *row.SubwayTime != "5분이내" {
		t.Fatalf("want subway time 5분이내, got %v", row.SubwayTime)
	}
}

func TestParseApartDetail_ManageTypeFallsBackToBasic(t *testing.T) {
	row, err := parseApartDetail(rawItem{
		"kaptAddr":  "서울특별시 종로구 숭인동 1425",
		"kaptdaCnt": "212",
		"codeMgrNm": "자치관리",
	}, rawItem{}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if row.ManageType == nil || *row.ManageType != "자치관리" {
		t.Fatalf("want manage type from basic codeMgrNm, got %v", row.ManageType)
	}
	if row.SubwayLine != nil || row.SubwayStation != nil {
		t.Fatalf("absent subway fields must stay NULL, got %v %v", row.SubwayLine, row.SubwayStation)
	}
}

func TestCityNameFromRegionCode(t *testing.T) {
	if got := CityNameFromRegionCode("1111010100"); got != "서울특별시" {
		t.Fatalf("want 서울특별시, got %q", got)
	}
	if got := CityNameFromRegionCode("4111100000"); got != "경기도" {
		t.Fatalf("want 경기도, got %q", got)
	}
	if got := CityNameFromRegionCode("9"); got != "" {
		t.Fatalf("want empty for short code, got %q", got)
	}
}

func TestCleanIntVariants(t *testing.T) {
	if n := cleanInt("1,234"); n == nil || *n != 1234 {
		t.Fatalf("want 1234, got %v", n)
	}
	if n := cleanInt("12.0"); n == nil || *n != 12 {
		t.Fatalf("want 12, got %v", n)
	}
	if n := cleanInt(""); n != nil {
		t.Fatalf("want nil for empty, got %v", n)
	}
	if n := cleanInt("abc"); n != nil {
		t.Fatalf("want nil for non-numeric, got %v", n)
	}
}
