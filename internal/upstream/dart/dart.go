// Package dart queries the DART corporate disclosure system: filing lists,
// company profiles, and the recent-important-filings feed used for calendar
// events.
package dart

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"invest-calendar/internal/upstream"
)

const (
	listEndpoint    = "/list.json"
	companyEndpoint = "/company.json"

	statusOK      = "000"
	statusNoData  = "013"
	maxPageCount  = 100
	recentCap     = 20
	searchCap     = 10
	searchWindow  = 30 * 24 * time.Hour
	defaultWindow = 7 * 24 * time.Hour
)

// Report names that mark a filing as calendar-worthy.
var importantKeywords = []string{
	"실적발표", "실적공시", "분기보고서", "반기보고서", "사업보고서",
	"임시주주총회", "정기주주총회", "배당", "유상증자", "무상증자",
	"합병", "분할", "인수", "매각", "대규모내부거래",
	"주요사항보고", "공시정정", "특별관계자거래",
}

// Disclosure is one filing record in canonical shape.
type Disclosure struct {
	CorpCode    string `json:"corp_code"`
	CorpName    string `json:"corp_name"`
	StockCode   string `json:"stock_code"`
	ReportName  string `json:"report_name"`
	ReceiptNo   string `json:"receipt_no"`
	Filer       string `json:"filer"`
	ReceiptDate string `json:"receipt_date"`
}

// Company is a corporate profile.
type Company struct {
	CorpCode   string `json:"corp_code"`
	CorpName   string `json:"corp_name"`
	StockName  string `json:"stock_name"`
	StockCode  string `json:"stock_code"`
	CEO        string `json:"ceo"`
	CorpClass  string `json:"corp_class"`
	Address    string `json:"address"`
	HomeURL    string `json:"home_url"`
	Industry   string `json:"industry_code"`
	Establshed string `json:"established"`
}

// ListQuery filters a disclosure list request.
type ListQuery struct {
	CorpCode  string
	From      time.Time
	To        time.Time
	CorpClass string // Y: KOSPI, K: KOSDAQ, N: KONEX, E: other
	PageNo    int
	PageCount int
}

// PageInfo reports paging metadata for a list response.
type PageInfo struct {
	PageNo     int `json:"page_no"`
	PageCount  int `json:"page_count"`
	TotalCount int `json:"total_count"`
	TotalPage  int `json:"total_page"`
}

// Options parameterise the DART client.
type Options struct {
	BaseURL   string
	APIKey    string
	RateLimit int
	Timeout   time.Duration
}

type provider struct {
	baseURL string
}

func (p *provider) Name() string    { return "dart" }
func (p *provider) BaseURL() string { return p.baseURL }
func (p *provider) Headers(context.Context, *upstream.Request) (http.Header, error) {
	h := http.Header{}
	h.Set("Accept", "application/json")
	return h, nil
}

// Client is the DART disclosure client. The API key travels as a query
// parameter, so the provider carries no auth state.
type Client struct {
	api    *upstream.Client
	apiKey string
	logger zerolog.Logger
}

// NewClient constructs a DART client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = "https://opendart.fss.or.kr/api"
	}

	return &Client{
		api: upstream.NewClient(&provider{baseURL: baseURL}, upstream.Options{
			RateLimit: opts.RateLimit,
			Timeout:   opts.Timeout,
		}, logger),
		apiKey: opts.APIKey,
		logger: logger.With().Str("component", "dart_client").Logger(),
	}
}

type listResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	PageInfo
	List []struct {
		CorpCode  string `json:"corp_code"`
		CorpName  string `json:"corp_name"`
		StockCode string `json:"stock_code"`
		CorpClass string `json:"corp_cls"`
		ReportNm  string `json:"report_nm"`
		RceptNo   string `json:"rcept_no"`
		FlrNm     string `json:"flr_nm"`
		RceptDt   string `json:"rcept_dt"`
	} `json:"list"`
}

// statusError converts a provider-reported failure into a typed error. "no
// data" is not a failure, just an empty result.
func statusError(status, message string) error {
	if status == statusOK || status == statusNoData {
		return nil
	}
	return fmt.Errorf("dart rejected request: %s (%s)", message, status)
}

// DisclosureList returns one page of filings matching the query.
func (c *Client) DisclosureList(ctx context.Context, q ListQuery) ([]Disclosure, PageInfo, error) {
	to := q.To
	if to.IsZero() {
		to = time.Now()
	}
	from := q.From
	if from.IsZero() {
		from = to.Add(-defaultWindow)
	}
	pageNo := q.PageNo
	if pageNo < 1 {
		pageNo = 1
	}
	pageCount := q.PageCount
	if pageCount < 1 || pageCount > maxPageCount {
		pageCount = maxPageCount
	}

	params := url.Values{}
	params.Set("crtfc_key", c.apiKey)
	params.Set("bgn_de", from.Format("20060102"))
	params.Set("end_de", to.Format("20060102"))
	params.Set("page_no", strconv.Itoa(pageNo))
	params.Set("page_count", strconv.Itoa(pageCount))
	if q.CorpCode != "" {
		params.Set("corp_code", q.CorpCode)
	}
	if q.CorpClass != "" {
		params.Set("corp_cls", q.CorpClass)
	}

	var res listResponse
	if err := c.api.Get(ctx, listEndpoint, params, &res); err != nil {
		return nil, PageInfo{}, err
	}
	if err := statusError(res.Status, res.Message); err != nil {
		return nil, PageInfo{}, err
	}

	disclosures := make([]Disclosure, 0, len(res.List))
	for _, row := range res.List {
		disclosures = append(disclosures, Disclosure{
			CorpCode:    row.CorpCode,
			CorpName:    row.CorpName,
			StockCode:   row.StockCode,
			ReportName:  row.ReportNm,
			ReceiptNo:   row.RceptNo,
			Filer:       row.FlrNm,
			ReceiptDate: upstream.ReformatDate(row.RceptDt, "20060102", "2006-01-02"),
		})
	}
	return disclosures, res.PageInfo, nil
}

// CompanyInfo returns the corporate profile for an eight-digit corp code.
func (c *Client) CompanyInfo(ctx context.Context, corpCode string) (Company, error) {
	params := url.Values{}
	params.Set("crtfc_key", c.apiKey)
	params.Set("corp_code", corpCode)

	var res struct {
		Status     string `json:"status"`
		Message    string `json:"message"`
		CorpName   string `json:"corp_name"`
		StockName  string `json:"stock_name"`
		StockCode  string `json:"stock_code"`
		CEO        string `json:"ceo_nm"`
		CorpClass  string `json:"corp_cls"`
		Address    string `json:"adres"`
		HomeURL    string `json:"hm_url"`
		Industry   string `json:"induty_code"`
		Establshed string `json:"est_dt"`
	}
	if err := c.api.Get(ctx, companyEndpoint, params, &res); err != nil {
		return Company{}, err
	}
	if res.Status != statusOK {
		return Company{}, fmt.Errorf("dart rejected request: %s (%s)", res.Message, res.Status)
	}

	return Company{
		CorpCode:   corpCode,
		CorpName:   res.CorpName,
		StockName:  res.StockName,
		StockCode:  res.StockCode,
		CEO:        res.CEO,
		CorpClass:  res.CorpClass,
		Address:    res.Address,
		HomeURL:    res.HomeURL,
		Industry:   res.Industry,
		Establshed: res.Establshed,
	}, nil
}

// RecentDisclosures returns recent filings for a corp class, optionally
// narrowed to calendar-worthy reports, capped at twenty records.
func (c *Client) RecentDisclosures(ctx context.Context, corpClass string, days int, importantOnly bool) ([]Disclosure, error) {
	if corpClass == "" {
		corpClass = "Y"
	}
	if days < 1 {
		days = 7
	}

	now := time.Now()
	disclosures, _, err := c.DisclosureList(ctx, ListQuery{
		From:      now.AddDate(0, 0, -days),
		To:        now,
		CorpClass: corpClass,
		PageCount: maxPageCount,
	})
	if err != nil {
		return nil, err
	}

	if importantOnly {
		filtered := disclosures[:0]
		for _, d := range disclosures {
			if isImportant(d.ReportName) {
				filtered = append(filtered, d)
			}
		}
		disclosures = filtered
	}

	if len(disclosures) > recentCap {
		disclosures = disclosures[:recentCap]
	}
	return disclosures, nil
}

// SearchCompanyByName scans the last thirty days of filings for companies
// whose name contains the keyword, deduplicated by corp code.
func (c *Client) SearchCompanyByName(ctx context.Context, keyword string) ([]Disclosure, error) {
	now := time.Now()
	disclosures, _, err := c.DisclosureList(ctx, ListQuery{
		From:      now.Add(-searchWindow),
		To:        now,
		PageCount: maxPageCount,
	})
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(keyword)
	seen := make(map[string]struct{})
	var matches []Disclosure
	for _, d := range disclosures {
		if !strings.Contains(strings.ToLower(d.CorpName), needle) {
			continue
		}
		if _, dup := seen[d.CorpCode]; dup {
			continue
		}
		seen[d.CorpCode] = struct{}{}
		matches = append(matches, d)
		if len(matches) >= searchCap {
			break
		}
	}
	return matches, nil
}

func isImportant(reportName string) bool {
	for _, keyword := range importantKeywords {
		if strings.Contains(reportName, keyword) {
			return true
		}
	}
	return false
}
