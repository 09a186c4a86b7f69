package molitsync

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/2025-Techeer-Winter-Bootcamp-Team-B/techeer-team-b-2026/models"
	"github.com/2025-Techeer-Winter-Bootcamp-Team-B/techeer-team-b-2026/utils"
	"github.com/shopspring/decimal"
)

type ParseErrorKind int

const (
	MissingMandatoryField ParseErrorKind = iota
	UnparsableValue
)

// ParseError rejects a single upstream record. Rejection never aborts the
// surrounding page or batch.
type ParseError struct {
	Kind   ParseErrorKind
	Field  string
	Detail string
}

func (e *ParseError) Error() string {
	if e.Kind == MissingMandatoryField {
		return fmt.Sprintf("missing mandatory field %q", e.Field)
	}
	return fmt.Sprintf("unparsable value in field %q: %s", e.Field, e.Detail)
}

func missingField(field string) *ParseError {
	return &ParseError{Kind: MissingMandatoryField, Field: field}
}

func badValue(field, detail string) *ParseError {
	return &ParseError{Kind: UnparsableValue, Field: field, Detail: detail}
}

// The 17 top-level administrative divisions, queried one by one when
// collecting region codes.
var cityNames = []string{
	"서울특별시", "부산광역시", "대구광역시", "인천광역시", "광주광역시",
	"대전광역시", "울산광역시", "세종특별자치시", "경기도", "강원특별자치도",
	"충청북도", "충청남도", "전북특별자치도", "전라남도", "경상남도",
	"경상북도", "제주특별자치도",
}

// sidoCityNames maps the leading two digits of a region code to its city.
var sidoCityNames = map[string]string{
	"11": "서울특별시", "26": "부산광역시", "27": "대구광역시", "28": "인천광역시",
	"29": "광주광역시", "30": "대전광역시", "31": "울산광역시", "36": "세종특별자치시",
	"41": "경기도", "51": "강원특별자치도", "43": "충청북도", "44": "충청남도",
	"52": "전북특별자치도", "46": "전라남도", "48": "경상남도", "47": "경상북도",
	"50": "제주특별자치도",
}

func cityNameFromAddress(addr string) string {
	for _, name := range cityNames {
		if strings.HasPrefix(addr, name) {
			return name
		}
	}
	return ""
}

func CityNameFromRegionCode(code string) string {
	if len(code) < 2 {
		return ""
	}
	return sidoCityNames[code[:2]]
}

// RegionRecord is one row of the standard region code list after
// normalization.
type RegionRecord struct {
	RegionCode string
	RegionName string
	CityName   string
}

// parseRegionItem normalizes one region row. queriedCity is the city the page
// was fetched for and backs up the name when the row's own address does not
// start with a known city.
func parseRegionItem(it rawItem, queriedCity string) (*RegionRecord, error) {
	code := it.str("region_cd")
	if code == "" {
		return nil, missingField("region_cd")
	}

	fullAddr := it.str("locatadd_nm")
	city := cityNameFromAddress(fullAddr)
	if city == "" {
		city = queriedCity
	}

	name := it.str("locallow_nm")
	if name == "" {
		name = strings.TrimSpace(strings.TrimPrefix(fullAddr, city))
	}
	if name == "" {
		name = city
	}

	return &RegionRecord{RegionCode: code, RegionName: name, CityName: city}, nil
}

// ApartmentRecord is one row of the nationwide apartment list.
type ApartmentRecord struct {
	KaptCode string
	KaptName string
	BjdCode  string
}

func parseApartmentItem(it rawItem) (*ApartmentRecord, error) {
	code := it.str("kaptCode")
	if code == "" {
		return nil, missingField("kaptCode")
	}
	name := it.str("kaptName")
	if name == "" {
		return nil, missingField("kaptName")
	}
	bjd := it.str("bjdCode")
	if bjd == "" {
		return nil, missingField("bjdCode")
	}
	return &ApartmentRecord{KaptCode: code, KaptName: name, BjdCode: bjd}, nil
}

// parseApartDetail merges the basic-info and detail-info responses for one
// complex into a row ready for insertion. At least one address and the
// household count are mandatory.
func parseApartDetail(basic, detail rawItem, aptId int) (*models.ApartDetail, error) {
	if basic == nil {
		basic = rawItem{}
	}
	if detail == nil {
		detail = rawItem{}
	}

	road := basic.str("doroJuso")
	jibun := basic.str("kaptAddr")
	if road == "" && jibun == "" {
		return nil, missingField("doroJuso")
	}
	if road == "" {
		road = jibun
	}
	if jibun == "" {
		jibun = road
	}

	households := cleanInt(basic.str("kaptdaCnt"))
	if households == nil {
		return nil, missingField("kaptdaCnt")
	}

	var zip *string
	if z := basic.str("zipcode"); z != "" {
		zip = utils.StrPtr(utils.Truncate(z, 5))
	}

	// The detail response carries the management code; older complexes only
	// report it on the basic response.
	manageType := detail.str("codeMgr")
	if manageType == "" {
		manageType = basic.str("codeMgrNm")
	}

	row := &models.ApartDetail{
		AptId:             aptId,
		RoadAddress:       utils.Truncate(road, 500),
		JibunAddress:      utils.Truncate(jibun, 500),
		ZipCode:           zip,
		CodeSaleNm:        capped(basic.str("codeSaleNm"), 50),
		CodeHeatNm:        capped(basic.str("codeHeatNm"), 50),
		TotalHouseholdCnt: *households,
		TotalBuildingCnt:  cleanInt(basic.str("kaptDongCnt")),
		HighestFloor:      cleanInt(basic.str("kaptTopFloor")),
		TotalParkingCnt:   cleanInt(detail.str("kaptdPcntu")),
		UseApprovalDate:   parseDate8(basic.str("kaptUsedate")),
		BuilderName:       capped(basic.str("kaptBcompany"), 100),
		DeveloperName:     capped(basic.str("kaptAcompany"), 100),
		ManageType:        capped(manageType, 20),
		HallwayType:       capped(basic.str("codeHallNm"), 50),
		SubwayLine:        capped(detail.str("subwayLine"), 100),
		SubwayStation:     capped(detail.str("subwayStation"), 100),
		SubwayTime:        capped(detail.str("kaptdWtimesub"), 100),
		EducationFacility: capped(detail.str("educationFacility"), 200),
	}
	return row, nil
}

// SaleRecord is one sale transaction after normalization, before the owning
// apartment has been resolved.
type SaleRecord struct {
	AptSeq  string
	AptName string
	Sale    models.NewSale
}

func parseSaleItem(it rawItem) (*SaleRecord, error) {
	name := it.str("aptNm")
	if name == "" {
		return nil, missingField("aptNm")
	}

	areaStr := stripCommas(it.str("excluUseAr"))
	if areaStr == "" {
		return nil, missingField("excluUseAr")
	}
	area, err := decimal.NewFromString(areaStr)
	if err != nil {
		return nil, badValue("excluUseAr", areaStr)
	}

	rec := &SaleRecord{
		AptSeq:  it.str("aptSeq"),
		AptName: name,
		Sale: models.NewSale{
			BuildYear:     cleanInt(it.str("buildYear")),
			TransType:     transType(it.str("dealingGbn")),
			TransPrice:    cleanInt64(it.str("dealAmount")),
			ExclusiveArea: area,
			ContractDate:  dateFromYMD(it.str("dealYear"), it.str("dealMonth"), it.str("dealDay")),
			IsCanceled:    it.str("cdealType") == "Y",
			CancelDate:    parseDate8(stripDots(it.str("cdealDay"))),
		},
	}
	if f := cleanInt(it.str("floor")); f != nil {
		rec.Sale.Floor = *f
	}
	if dong := it.str("aptDong"); dong != "" {
		rec.Sale.BuildingNum = utils.StrPtr(utils.Truncate(dong, 50))
	}
	return rec, nil
}

func transType(dealingGbn string) string {
	if dealingGbn == "직거래" {
		return "직거래"
	}
	return "중개거래"
}

func capped(s string, max int) *string {
	return utils.TrimToNil(utils.Truncate(s, max))
}

func stripCommas(s string) string {
	return strings.ReplaceAll(s, ",", "")
}

func stripDots(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), ".", "")
}

// cleanInt parses an integer after stripping commas and whitespace. Returns
// nil for empty or non-numeric input; fractional strings are truncated.
func cleanInt(s string) *int {
	s = strings.TrimSpace(stripCommas(s))
	if s == "" {
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return &n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		n := int(f)
		return &n
	}
	return nil
}

func cleanInt64(s string) *int64 {
	s = strings.TrimSpace(stripCommas(s))
	if s == "" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return &n
	}
	return nil
}

// parseDate8 parses YYYYMMDD; nil for empty or malformed input.
func parseDate8(s string) *time.Time {
	s = strings.TrimSpace(s)
	if len(s) < 8 {
		return nil
	}
	t, err := time.Parse("20060102", s[:8])
	if err != nil {
		return nil
	}
	return &t
}

// dateFromYMD builds a date from separate year/month/day strings. Any missing
// or malformed part yields nil; the record itself stays storable.
func dateFromYMD(y, m, d string) *time.Time {
	year := cleanInt(y)
	month := cleanInt(m)
	day := cleanInt(d)
	if year == nil || month == nil || day == nil {
		return nil
	}
	if *month < 1 || *month > 12 || *day < 1 || *day > 31 {
		return nil
	}
	t := time.Date(*year, time.Month(*month), *day, 0, 0, 0, 0, time.UTC)
	return &t
}
