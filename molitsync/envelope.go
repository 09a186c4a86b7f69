package molitsync

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// The open-data gateway is loose with types: counts arrive as numbers or
// strings, "items" is an object for single-row pages and an array otherwise,
// and empty pages sometimes carry "" instead of an object. Everything below
// exists to flatten that into []rawItem plus a total count.

// rawItem is one upstream record before normalization. All field reads go
// through str so numeric-or-string drift upstream never matters.
type rawItem map[string]any

func (it rawItem) str(key string) string {
	v, ok := it[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// flexInt decodes 42, "42" and "" (as zero).
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*f = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("flexInt: %q: %w", s, err)
	}
	*f = flexInt(n)
	return nil
}

// itemList tolerates the single-object, array, "" and null renditions of
// body.items.item.
type itemList []rawItem

func (l *itemList) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" || s == `""` {
		*l = nil
		return nil
	}
	var wrapper struct {
		Item json.RawMessage `json:"item"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		// items itself may already be the array
		var direct []rawItem
		if err2 := json.Unmarshal(data, &direct); err2 == nil {
			*l = direct
			return nil
		}
		return err
	}
	inner := strings.TrimSpace(string(wrapper.Item))
	if inner == "" || inner == "null" || inner == `""` {
		*l = nil
		return nil
	}
	if strings.HasPrefix(inner, "[") {
		var many []rawItem
		if err := json.Unmarshal(wrapper.Item, &many); err != nil {
			return err
		}
		*l = many
		return nil
	}
	var one rawItem
	if err := json.Unmarshal(wrapper.Item, &one); err != nil {
		return err
	}
	*l = itemList{one}
	return nil
}

type listEnvelope struct {
	Response struct {
		Header struct {
			ResultCode string `json:"resultCode"`
			ResultMsg  string `json:"resultMsg"`
		} `json:"header"`
		Body struct {
			Items      itemList `json:"items"`
			NumOfRows  flexInt  `json:"numOfRows"`
			PageNo     flexInt  `json:"pageNo"`
			TotalCount flexInt  `json:"totalCount"`
		} `json:"body"`
	} `json:"response"`
}

func resultCodeOk(code string) bool {
	return code == "00" || code == "000"
}

// decodeListEnvelope returns the page's items and the upstream total count. A
// non-success result code yields zero items rather than an error; the page is
// simply empty from the caller's point of view.
func decodeListEnvelope(body []byte) ([]rawItem, int, error) {
	var env listEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, 0, fmt.Errorf("decode list envelope: %w", err)
	}
	if !resultCodeOk(env.Response.Header.ResultCode) {
		return nil, 0, nil
	}
	return env.Response.Body.Items, int(env.Response.Body.TotalCount), nil
}

// decodeSingleItemEnvelope handles the basic/detail info endpoints, whose body
// carries a bare "item" object with no "items" wrapper. Payloads that do use
// the wrapper are accepted anyway.
func decodeSingleItemEnvelope(body []byte) (rawItem, error) {
	var env struct {
		Response struct {
			Header struct {
				ResultCode string `json:"resultCode"`
			} `json:"header"`
			Body struct {
				Item  json.RawMessage `json:"item"`
				Items itemList        `json:"items"`
			} `json:"body"`
		} `json:"response"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode item envelope: %w", err)
	}
	if !resultCodeOk(env.Response.Header.ResultCode) {
		return nil, nil
	}
	inner := strings.TrimSpace(string(env.Response.Body.Item))
	if inner != "" && inner != "null" && inner != `""` {
		var one rawItem
		if err := json.Unmarshal(env.Response.Body.Item, &one); err != nil {
			return nil, fmt.Errorf("decode item envelope: %w", err)
		}
		return one, nil
	}
	if items := env.Response.Body.Items; len(items) > 0 {
		return items[0], nil
	}
	return nil, nil
}

// The region code service wraps its payload differently from every other
// endpoint: a top-level StanReginCd array whose first element carries head
// metadata (total count, result) and whose second element carries the rows.
func decodeRegionEnvelope(body []byte) ([]rawItem, int, error) {
	var env struct {
		StanReginCd []json.RawMessage `json:"StanReginCd"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, 0, fmt.Errorf("decode region envelope: %w", err)
	}
	if len(env.StanReginCd) == 0 {
		return nil, 0, nil
	}

	total := 0
	var head struct {
		Head []rawItem `json:"head"`
	}
	if err := json.Unmarshal(env.StanReginCd[0], &head); err == nil {
		for _, h := range head.Head {
			if s := h.str("totalCount"); s != "" {
				if n, err := strconv.Atoi(s); err == nil {
					total = n
				}
			}
		}
	}

	var rows []rawItem
	if len(env.StanReginCd) > 1 {
		var rowPart struct {
			Row []rawItem `json:"row"`
		}
		if err := json.Unmarshal(env.StanReginCd[1], &rowPart); err != nil {
			return nil, 0, fmt.Errorf("decode region rows: %w", err)
		}
		rows = rowPart.Row
	}
	return rows, total, nil
}
