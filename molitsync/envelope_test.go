package molitsync

import "testing"

func TestDecodeListEnvelope_ArrayItems(t *testing.T) {
	body := []byte(`{"response":{"header":{"resultCode":"00","resultMsg":"NORMAL SERVICE."},
		"body":{"items":{"item":[{"kaptCode":"A1"},{"kaptCode":"A2"}]},"numOfRows":"1000","pageNo":1,"totalCount":"2"}}}`)
	items, total, err := decodeListEnvelope(body)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 || total != 2 {
		t.Fatalf("want 2 items total 2, got %d items total %d", len(items), total)
	}
	if items[1].str("kaptCode") != "A2" {
		t.Fatalf("unexpected item: %v", items[1])
	}
}

func TestDecodeListEnvelope_SingleItemObject(t *testing.T) {
	body := []byte(`{"response":{"header":{"resultCode":"000","resultMsg":"OK"},
		"body":{"items":{"item":{"kaptCode":"A1","kaptdaCnt":2533}},"totalCount":1}}}`)
	items, total, err := decodeListEnvelope(body)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || total != 1 {
		t.Fatalf("want 1 item, got %d total %d", len(items), total)
	}
	if items[0].str("kaptdaCnt") != "2533" {
		t.Fatalf("want numeric field read back as string, got %q", items[0].str("kaptdaCnt"))
	}
}

func TestDecodeListEnvelope_EmptyItemsString(t *testing.T) {
	body := []byte(`{"response":{"header":{"resultCode":"00","resultMsg":"OK"},
		"body":{"items":"","totalCount":0}}}`)
	items, total, err := decodeListEnvelope(body)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 || total != 0 {
		t.Fatalf("want empty page, got %d items total %d", len(items), total)
	}
}

func TestDecodeListEnvelope_FailureCodeYieldsZeroRecords(t *testing.T) {
	body := []byte(`{"response":{"header":{"resultCode":"22","resultMsg":"LIMITED NUMBER OF SERVICE REQUESTS EXCEEDS"},
		"body":{"items":{"item":[{"kaptCode":"A1"}]},"totalCount":1}}}`)
	items, total, err := decodeListEnvelope(body)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 || total != 0 {
		t.Fatalf("failure code must short-circuit the page, got %d items", len(items))
	}
}

func TestDecodeSingleItemEnvelope_BareItem(t *testing.T) {
	// The basic/detail info endpoints carry body.item with no items wrapper.
	body := []byte(`{"response":{"header":{"resultCode":"00","resultMsg":"OK"},
		"body":{"item":{"kaptCode":"A10027875","kaptAddr":"서울특별시 종로구 숭인동 1425","kaptdaCnt":212}}}}`)
	item, err := decodeSingleItemEnvelope(body)
	if err != nil {
		t.Fatal(err)
	}
	if item == nil {
		t.Fatal("want item, got nil")
	}
	if item.str("kaptAddr") == "" || item.str("kaptdaCnt") != "212" {
		t.Fatalf("unexpected item: %v", item)
	}
}

func TestDecodeSingleItemEnvelope_ItemsWrapperStillAccepted(t *testing.T) {
	body := []byte(`{"response":{"header":{"resultCode":"00","resultMsg":"OK"},
		"body":{"items":{"item":{"kaptCode":"A1"}},"totalCount":1}}}`)
	item, err := decodeSingleItemEnvelope(body)
	if err != nil {
		t.Fatal(err)
	}
	if item == nil || item.str("kaptCode") != "A1" {
		t.Fatalf("unexpected item: %v", item)
	}
}

func TestDecodeSingleItemEnvelope_EmptyAndFailure(t *testing.T) {
	for _, body := range []string{
		`{"response":{"header":{"resultCode":"00"},"body":{"item":""}}}`,
		`{"response":{"header":{"resultCode":"00"},"body":{}}}`,
		`{"response":{"header":{"resultCode":"22"},"body":{"item":{"kaptCode":"A1"}}}}`,
	} {
		item, err := decodeSingleItemEnvelope([]byte(body))
		if err != nil {
			t.Fatal(err)
		}
		if item != nil {
			t.Fatalf("want nil item for %s, got %v", body, item)
		}
	}
}

func TestDecodeRegionEnvelope(t *testing.T) {
	body := []byte(`{"StanReginCd":[
		{"head":[{"totalCount":"426"},{"RESULT":{"resultCode":"INFO-0","resultMsg":"NORMAL SERVICE"}}]},
		{"row":[{"region_cd":"1100000000","locatadd_nm":"서울특별시"},{"region_cd":"1111000000","locatadd_nm":"서울특별시 종로구"}]}]}`)
	rows, total, err := decodeRegionEnvelope(body)
	if err != nil {
		t.Fatal(err)
	}
	if total != 426 {
		t.Fatalf("want total 426, got %d", total)
	}
	if len(rows) != 2 || rows[0].str("region_cd") != "1100000000" {
		t.Fatalf("unexpected rows: %v", rows)
	}
}

func TestDecodeRegionEnvelope_HeadOnly(t *testing.T) {
	rows, total, err := decodeRegionEnvelope([]byte(`{"StanReginCd":[{"head":[{"totalCount":0}]}]}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 || total != 0 {
		t.Fatalf("want empty result, got %d rows total %d", len(rows), total)
	}
}
