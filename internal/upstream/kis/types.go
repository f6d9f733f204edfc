package kis

import (
	"github.com/shopspring/decimal"
)

// Quote is the canonical current-price shape. Upstream field names
// (stck_prpr, prdy_vrss, ...) never leak past this package.
type Quote struct {
	StockCode    string          `json:"stock_code"`
	StockName    string          `json:"stock_name"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	ChangePrice  decimal.Decimal `json:"change_price"`
	ChangeRate   decimal.Decimal `json:"change_rate"`
	Volume       int64           `json:"volume"`
	HighPrice    decimal.Decimal `json:"high_price"`
	LowPrice     decimal.Decimal `json:"low_price"`
	OpeningPrice decimal.Decimal `json:"opening_price"`
}

// Candle is one period of a price history series.
type Candle struct {
	Date       string          `json:"date"`
	Open       decimal.Decimal `json:"open_price"`
	High       decimal.Decimal `json:"high_price"`
	Low        decimal.Decimal `json:"low_price"`
	Close      decimal.Decimal `json:"close_price"`
	Volume     int64           `json:"volume"`
	ChangeRate decimal.Decimal `json:"change_rate"`
}

// IndexQuote is a market index snapshot.
type IndexQuote struct {
	IndexCode    string          `json:"index_code"`
	IndexName    string          `json:"index_name"`
	CurrentValue decimal.Decimal `json:"current_value"`
	ChangeValue  decimal.Decimal `json:"change_value"`
	ChangeRate   decimal.Decimal `json:"change_rate"`
	HighValue    decimal.Decimal `json:"high_value"`
	LowValue     decimal.Decimal `json:"low_value"`
}

// InvestorFlow is one investor category's net trading activity for a stock.
type InvestorFlow struct {
	InvestorType string          `json:"investor_type"`
	BuyAmount    int64           `json:"buy_amount"`
	SellAmount   int64           `json:"sell_amount"`
	NetAmount    int64           `json:"net_amount"`
	BuyVolume    int64           `json:"buy_volume"`
	SellVolume   int64           `json:"sell_volume"`
	NetVolume    int64           `json:"net_volume"`
}

// Market index codes as the exchange knows them.
const (
	IndexKOSPI  = "0001"
	IndexKOSDAQ = "1001"
)
