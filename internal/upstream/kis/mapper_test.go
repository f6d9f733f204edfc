package kis

import (
	"testing"
)

func TestMapQuote(t *testing.T) {
	q := mapQuote("005930", map[string]any{
		"prdt_name": "삼성전자",
		"stck_prpr": "71,000",
		"prdy_vrss": "-500",
		"prdy_ctrt": "-0.70",
		"acml_vol":  "12345678",
		"stck_hgpr": "71500",
		"stck_lwpr": "70200",
		"stck_oprc": "70800",
	})

	if q.StockCode != "005930" || q.StockName != "삼성전자" {
		t.Fatalf("identity fields wrong: %+v", q)
	}
	if q.CurrentPrice.String() != "71000" {
		t.Fatalf("comma price not parsed: %s", q.CurrentPrice)
	}
	if q.ChangePrice.String() != "-500" || q.ChangeRate.String() != "-0.7" {
		t.Fatalf("change fields wrong: %s %s", q.ChangePrice, q.ChangeRate)
	}
	if q.Volume != 12345678 {
		t.Fatalf("volume = %d", q.Volume)
	}
	if q.HighPrice.String() != "71500" || q.LowPrice.String() != "70200" || q.OpeningPrice.String() != "70800" {
		t.Fatalf("range fields wrong: %+v", q)
	}
}

func TestMapQuoteMissingFields(t *testing.T) {
	q := mapQuote("005930", map[string]any{})
	if !q.CurrentPrice.IsZero() || q.Volume != 0 || q.StockName != "" {
		t.Fatalf("missing fields should default to zero: %+v", q)
	}
}

func TestMapCandle(t *testing.T) {
	c := mapCandle(map[string]any{
		"stck_bsop_date": "20240315",
		"stck_oprc":      "70000",
		"stck_hgpr":      "71000",
		"stck_lwpr":      "69500",
		"stck_clpr":      "70500",
		"acml_vol":       "9000000",
		"prdy_ctrt":      "0.71",
	})

	if c.Date != "2024-03-15" {
		t.Fatalf("date not reformatted: %q", c.Date)
	}
	if c.Open.String() != "70000" || c.Close.String() != "70500" {
		t.Fatalf("open/close wrong: %s %s", c.Open, c.Close)
	}
	if c.High.String() != "71000" || c.Low.String() != "69500" {
		t.Fatalf("high/low wrong: %s %s", c.High, c.Low)
	}
	if c.Volume != 9000000 {
		t.Fatalf("volume = %d", c.Volume)
	}
}

func TestMapIndex(t *testing.T) {
	q := mapIndex("0001", "KOSPI", map[string]any{
		"bstp_nmix_prpr":      "2650.45",
		"bstp_nmix_prdy_vrss": "12.30",
		"bstp_nmix_prdy_ctrt": "0.47",
		"bstp_nmix_hgpr":      "2655.00",
		"bstp_nmix_lwpr":      "2640.10",
	})

	if q.IndexCode != "0001" || q.IndexName != "KOSPI" {
		t.Fatalf("identity fields wrong: %+v", q)
	}
	if q.CurrentValue.String() != "2650.45" || q.ChangeRate.String() != "0.47" {
		t.Fatalf("value fields wrong: %s %s", q.CurrentValue, q.ChangeRate)
	}
}

func TestMapInvestorFlow(t *testing.T) {
	f := mapInvestorFlow(map[string]any{
		"invr_cd":  "2",
		"buy_amt":  "1000",
		"sell_amt": "400",
		"net_amt":  "600",
		"buy_qty":  "50",
		"sell_qty": "20",
		"net_qty":  "30",
	})
	if f.InvestorType != "foreign" {
		t.Fatalf("investor type = %q", f.InvestorType)
	}
	if f.NetAmount != 600 || f.NetVolume != 30 {
		t.Fatalf("net fields wrong: %+v", f)
	}

	unknown := mapInvestorFlow(map[string]any{"invr_cd": "Z"})
	if unknown.InvestorType != "other" {
		t.Fatalf("unknown code should map to other, got %q", unknown.InvestorType)
	}
}
