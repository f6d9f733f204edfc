package kis

import (
	"github.com/shopspring/decimal"

	"invest-calendar/internal/upstream"
)

var investorTypes = map[string]string{
	"1": "individual",
	"2": "foreign",
	"3": "institution",
	"4": "financial_investment",
	"5": "insurance",
	"6": "investment_trust",
	"7": "other_financial",
	"8": "bank",
	"9": "pension_fund",
	"B": "other_corporate",
	"P": "individual",
}

func mapQuote(code string, m map[string]any) Quote {
	zero := decimal.Zero
	return Quote{
		StockCode:    code,
		StockName:    upstream.Str(m, "prdt_name"),
		CurrentPrice: upstream.Dec(m["stck_prpr"], zero),
		ChangePrice:  upstream.Dec(m["prdy_vrss"], zero),
		ChangeRate:   upstream.Dec(m["prdy_ctrt"], zero),
		Volume:       upstream.Int(m["acml_vol"], 0),
		HighPrice:    upstream.Dec(m["stck_hgpr"], zero),
		LowPrice:     upstream.Dec(m["stck_lwpr"], zero),
		OpeningPrice: upstream.Dec(m["stck_oprc"], zero),
	}
}

func mapCandle(m map[string]any) Candle {
	zero := decimal.Zero
	return Candle{
		Date:       upstream.ReformatDate(upstream.Str(m, "stck_bsop_date"), "20060102", "2006-01-02"),
		Open:       upstream.Dec(m["stck_oprc"], zero),
		High:       upstream.Dec(m["stck_hgpr"], zero),
		Low:        upstream.Dec(m["stck_lwpr"], zero),
		Close:      upstream.Dec(m["stck_clpr"], zero),
		Volume:     upstream.Int(m["acml_vol"], 0),
		ChangeRate: upstream.Dec(m["prdy_ctrt"], zero),
	}
}

func mapIndex(code, name string, m map[string]any) IndexQuote {
	zero := decimal.Zero
	return IndexQuote{
		IndexCode:    code,
		IndexName:    name,
		CurrentValue: upstream.Dec(m["bstp_nmix_prpr"], zero),
		ChangeValue:  upstream.Dec(m["bstp_nmix_prdy_vrss"], zero),
		ChangeRate:   upstream.Dec(m["bstp_nmix_prdy_ctrt"], zero),
		HighValue:    upstream.Dec(m["bstp_nmix_hgpr"], zero),
		LowValue:     upstream.Dec(m["bstp_nmix_lwpr"], zero),
	}
}

func mapInvestorFlow(m map[string]any) InvestorFlow {
	investorType, ok := investorTypes[upstream.Str(m, "invr_cd")]
	if !ok {
		investorType = "other"
	}
	return InvestorFlow{
		InvestorType: investorType,
		BuyAmount:    upstream.Int(m["buy_amt"], 0),
		SellAmount:   upstream.Int(m["sell_amt"], 0),
		NetAmount:    upstream.Int(m["net_amt"], 0),
		BuyVolume:    upstream.Int(m["buy_qty"], 0),
		SellVolume:   upstream.Int(m["sell_qty"], 0),
		NetVolume:    upstream.Int(m["net_qty"], 0),
	}
}
