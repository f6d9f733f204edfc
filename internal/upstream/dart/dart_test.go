package dart

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Options{
		BaseURL:   srv.URL,
		APIKey:    "test-key",
		RateLimit: 100,
		Timeout:   5 * time.Second,
	}, zerolog.Nop())
}

func listPayload(reports ...[2]string) map[string]any {
	list := make([]map[string]string, 0, len(reports))
	for i, r := range reports {
		list = append(list, map[string]string{
			"corp_code":  fmt.Sprintf("%08d", i+1),
			"corp_name":  r[0],
			"stock_code": "005930",
			"report_nm":  r[1],
			"rcept_no":   fmt.Sprintf("2024031500000%d", i),
			"flr_nm":     r[0],
			"rcept_dt":   "20240315",
		})
	}
	return map[string]any{
		"status":      "000",
		"message":     "정상",
		"page_no":     1,
		"page_count":  100,
		"total_count": len(list),
		"total_page":  1,
		"list":        list,
	}
}

func TestDisclosureList(t *testing.T) {
	var gotQuery map[string]string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"crtfc_key": r.URL.Query().Get("crtfc_key"),
			"corp_cls":  r.URL.Query().Get("corp_cls"),
			"bgn_de":    r.URL.Query().Get("bgn_de"),
		}
		_ = json.NewEncoder(w).Encode(listPayload(
			[2]string{"삼성전자", "사업보고서 (2023.12)"},
			[2]string{"삼성전자", "기타경영사항"},
		))
	}))

	disclosures, page, err := client.DisclosureList(context.Background(), ListQuery{CorpClass: "Y"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if gotQuery["crtfc_key"] != "test-key" {
		t.Fatal("api key must travel as query parameter")
	}
	if gotQuery["corp_cls"] != "Y" {
		t.Fatalf("corp_cls = %q", gotQuery["corp_cls"])
	}
	if gotQuery["bgn_de"] == "" {
		t.Fatal("default window should set bgn_de")
	}
	if len(disclosures) != 2 {
		t.Fatalf("expected 2 disclosures, got %d", len(disclosures))
	}
	if disclosures[0].ReceiptDate != "2024-03-15" {
		t.Fatalf("receipt date not reformatted: %q", disclosures[0].ReceiptDate)
	}
	if disclosures[0].ReportName != "사업보고서 (2023.12)" {
		t.Fatalf("report name = %q", disclosures[0].ReportName)
	}
	if page.TotalCount != 2 {
		t.Fatalf("page info not decoded: %+v", page)
	}
}

func TestDisclosureListNoData(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "013", "message": "조회된 데이타가 없습니다."})
	}))

	disclosures, _, err := client.DisclosureList(context.Background(), ListQuery{})
	if err != nil {
		t.Fatalf("no-data status is not an error: %v", err)
	}
	if len(disclosures) != 0 {
		t.Fatalf("expected empty result, got %d", len(disclosures))
	}
}

func TestDisclosureListRejected(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "020", "message": "요청 제한을 초과하였습니다."})
	}))

	if _, _, err := client.DisclosureList(context.Background(), ListQuery{}); err == nil {
		t.Fatal("error status should fail the call")
	}
}

func TestRecentDisclosuresImportantOnly(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(listPayload(
			[2]string{"삼성전자", "분기보고서 (2024.03)"},
			[2]string{"현대차", "기타경영사항"},
			[2]string{"카카오", "유상증자결정"},
			[2]string{"네이버", "단일판매ㆍ공급계약체결"},
		))
	}))

	disclosures, err := client.RecentDisclosures(context.Background(), "Y", 1, true)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(disclosures) != 2 {
		t.Fatalf("expected 2 important filings, got %d", len(disclosures))
	}
	for _, d := range disclosures {
		if !isImportant(d.ReportName) {
			t.Fatalf("filter let through %q", d.ReportName)
		}
	}
}

func TestRecentDisclosuresCap(t *testing.T) {
	reports := make([][2]string, 30)
	for i := range reports {
		reports[i] = [2]string{fmt.Sprintf("회사%d", i), "사업보고서"}
	}
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(listPayload(reports...))
	}))

	disclosures, err := client.RecentDisclosures(context.Background(), "Y", 7, false)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(disclosures) != recentCap {
		t.Fatalf("expected cap of %d, got %d", recentCap, len(disclosures))
	}
}

func TestSearchCompanyByName(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := listPayload(
			[2]string{"삼성전자", "사업보고서"},
			[2]string{"삼성전자", "분기보고서"},
			[2]string{"삼성바이오로직스", "사업보고서"},
			[2]string{"현대차", "사업보고서"},
		)
		// first two filings share a corp code so dedup is observable
		list := payload["list"].([]map[string]string)
		list[1]["corp_code"] = list[0]["corp_code"]
		_ = json.NewEncoder(w).Encode(payload)
	}))

	matches, err := client.SearchCompanyByName(context.Background(), "삼성")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 unique companies, got %d", len(matches))
	}
	for _, m := range matches {
		if m.CorpName != "삼성전자" && m.CorpName != "삼성바이오로직스" {
			t.Fatalf("unexpected match %q", m.CorpName)
		}
	}
}

func TestCompanyInfo(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("corp_code") != "00126380" {
			t.Errorf("corp_code not forwarded: %q", r.URL.Query().Get("corp_code"))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":     "000",
			"message":    "정상",
			"corp_name":  "삼성전자(주)",
			"stock_name": "삼성전자",
			"stock_code": "005930",
			"ceo_nm":     "한종희",
			"corp_cls":   "Y",
		})
	}))

	company, err := client.CompanyInfo(context.Background(), "00126380")
	if err != nil {
		t.Fatalf("company: %v", err)
	}
	if company.CorpCode != "00126380" || company.StockCode != "005930" || company.CorpClass != "Y" {
		t.Fatalf("company fields wrong: %+v", company)
	}
}
