package molitsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/2025-Techeer-Winter-Bootcamp-Team-B/techeer-team-b-2026/utils"
	"github.com/sirupsen/logrus"
)

// MOLIT open-data endpoints.
const (
	regionListURL = "https://apis.data.go.kr/1741000/StanReginCd/getStanReginCdList"
	aptListURL    = "https://apis.data.go.kr/1613000/AptListService3/getTotalAptList3"
	aptBasicURL   = "https://apis.data.go.kr/1613000/AptBasisInfoServiceV4/getAphusBassInfoV4"
	aptDetailURL  = "https://apis.data.go.kr/1613000/AptBasisInfoServiceV4/getAphusDtlInfoV4"
	aptSaleURL    = "https://apis.data.go.kr/1613000/RTMSDataSvcAptTradeDev/getRTMSDataSvcAptTradeDev"
)

type FetchErrorKind int

const (
	FetchTimeout FetchErrorKind = iota
	FetchOther
)

// FetchError is the last failing attempt's error after retries are exhausted.
type FetchError struct {
	Kind     FetchErrorKind
	Endpoint string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	kind := "error"
	if e.Kind == FetchTimeout {
		kind = "timeout"
	}
	return fmt.Sprintf("fetch %s after %d attempts (%s): %v", kind, e.Attempts, e.Endpoint, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Timeout() bool {
	return e.Kind == FetchTimeout
}

// Client talks to the MOLIT open-data APIs with per-attempt timeouts and
// exponential-backoff retry. It holds no cache and no shared state beyond the
// HTTP client.
type Client struct {
	apiKey      string
	http        *http.Client
	maxRetries  int
	backoffBase time.Duration
	listTimeout time.Duration
	saleTimeout time.Duration
	logger      *logrus.Logger
}

func NewClient(apiKey string, logger *logrus.Logger) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("molit api key is empty; set MOLIT_API_KEY")
	}
	return &Client{
		apiKey:      strings.TrimSpace(apiKey),
		http:        &http.Client{},
		maxRetries:  utils.IntFromEnv("MOLIT_MAX_RETRIES", 3),
		backoffBase: 500 * time.Millisecond,
		listTimeout: 10 * time.Second,
		saleTimeout: 30 * time.Second,
		logger:      logger,
	}, nil
}

func NewClientFromEnv(logger *logrus.Logger) (*Client, error) {
	return NewClient(os.Getenv("MOLIT_API_KEY"), logger)
}

// getJSON performs one GET with up to maxRetries attempts. Each attempt gets
// its own timeout; the delay before attempt n+1 is backoffBase * 2^n. The
// error of the final attempt is what the caller sees.
func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, timeout time.Duration) ([]byte, error) {
	var lastErr error
	var timedOut bool

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoffBase << (attempt - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				kind := FetchOther
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					kind = FetchTimeout
				}
				return nil, &FetchError{Kind: kind, Endpoint: endpoint, Attempts: attempt, Err: ctx.Err()}
			}
		}

		body, err := c.doRequest(ctx, endpoint, params, timeout)
		if err == nil {
			return body, nil
		}
		lastErr = err
		timedOut = isTimeout(err)
	}

	kind := FetchOther
	if timedOut {
		kind = FetchTimeout
	}
	fetchErr := &FetchError{Kind: kind, Endpoint: endpoint, Attempts: c.maxRetries, Err: lastErr}
	if c.logger != nil {
		c.logger.WithFields(logrus.Fields{
			"module":   "molitsync",
			"endpoint": endpoint,
			"attempts": c.maxRetries,
			"timeout":  timedOut,
		}).Warn(fetchErr.Error())
	}
	return nil, fetchErr
}

func (c *Client) doRequest(ctx context.Context, endpoint string, params url.Values, timeout time.Duration) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	query := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			query.Add(k, v)
		}
	}
	query.Set("serviceKey", c.apiKey)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("molit api status %d: %s", resp.StatusCode, strings.TrimSpace(utils.Truncate(string(body), 200)))
	}
	return body, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var t interface{ Timeout() bool }
	if errors.As(err, &t) {
		return t.Timeout()
	}
	return false
}

// fetchRegionPage loads one page of the standard region code list for a city.
func (c *Client) fetchRegionPage(ctx context.Context, cityName string, pageNo, numOfRows int) ([]rawItem, int, error) {
	params := url.Values{}
	params.Set("pageNo", fmt.Sprint(pageNo))
	params.Set("numOfRows", fmt.Sprint(numOfRows))
	params.Set("type", "json")
	params.Set("locatadd_nm", cityName)

	body, err := c.getJSON(ctx, regionListURL, params, c.listTimeout)
	if err != nil {
		return nil, 0, err
	}
	return decodeRegionEnvelope(body)
}

// fetchApartmentPage loads one page of the nationwide apartment list.
func (c *Client) fetchApartmentPage(ctx context.Context, pageNo, numOfRows int) ([]rawItem, int, error) {
	params := url.Values{}
	params.Set("pageNo", fmt.Sprint(pageNo))
	params.Set("numOfRows", fmt.Sprint(numOfRows))

	body, err := c.getJSON(ctx, aptListURL, params, c.listTimeout)
	if err != nil {
		return nil, 0, err
	}
	return decodeListEnvelope(body)
}

func (c *Client) fetchBasicInfo(ctx context.Context, kaptCode string) (rawItem, error) {
	params := url.Values{}
	params.Set("kaptCode", kaptCode)

	body, err := c.getJSON(ctx, aptBasicURL, params, c.listTimeout)
	if err != nil {
		return nil, err
	}
	return decodeSingleItemEnvelope(body)
}

func (c *Client) fetchDetailInfo(ctx context.Context, kaptCode string) (rawItem, error) {
	params := url.Values{}
	params.Set("kaptCode", kaptCode)

	body, err := c.getJSON(ctx, aptDetailURL, params, c.listTimeout)
	if err != nil {
		return nil, err
	}
	return decodeSingleItemEnvelope(body)
}

// fetchSalePage loads one page of sale transactions for a sigungu code and a
// contract month (YYYYMM). This endpoint class is slower than the others and
// gets the longer timeout.
func (c *Client) fetchSalePage(ctx context.Context, lawdCd, dealYmd string, pageNo, numOfRows int) ([]rawItem, int, error) {
	params := url.Values{}
	params.Set("pageNo", fmt.Sprint(pageNo))
	params.Set("numOfRows", fmt.Sprint(numOfRows))
	params.Set("LAWD_CD", lawdCd)
	params.Set("DEAL_YMD", dealYmd)

	body, err := c.getJSON(ctx, aptSaleURL, params, c.saleTimeout)
	if err != nil {
		return nil, 0, err
	}
	return decodeListEnvelope(body)
}
