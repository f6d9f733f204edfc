package collector

import (
	"strings"

	"invest-calendar/internal/pipeline"
)

// Collection priorities. Lower values drain first so the market-wide
// numbers land before per-stock detail.
const (
	PriorityIndex      = 1
	PriorityNews       = 2
	PriorityDisclosure = 2
	PriorityStocks     = 3
	PriorityCrypto     = 4
)

// batchSize matches the per-request cap accepted by the quote endpoint.
const batchSize = 20

// defaultCryptoSymbols are always collected alongside equities.
var defaultCryptoSymbols = []string{"BTC", "ETH"}

// BuildScheduledRequests assembles one full collection round: market
// indices, the daily summary, recent disclosures, watched stock batches
// and the crypto tickers.
func BuildScheduledRequests(stockCodes []string) []pipeline.Request {
	reqs := []pipeline.Request{
		{
			Type:     pipeline.TypeMarketIndex,
			Source:   pipeline.SourceKIS,
			Priority: PriorityIndex,
		},
		{
			Type:     pipeline.TypeNews,
			Source:   pipeline.SourcePerplexity,
			Priority: PriorityNews,
		},
		{
			Type:     pipeline.TypeDisclosure,
			Source:   pipeline.SourceDART,
			Params:   map[string]string{"days": "1", "important_only": "true"},
			Priority: PriorityDisclosure,
		},
	}

	for _, batch := range batchCodes(stockCodes, batchSize) {
		reqs = append(reqs, pipeline.Request{
			Type:     pipeline.TypeStockPrice,
			Source:   pipeline.SourceKIS,
			Params:   map[string]string{"codes": strings.Join(batch, ",")},
			Priority: PriorityStocks,
		})
	}

	for _, symbol := range defaultCryptoSymbols {
		reqs = append(reqs, pipeline.Request{
			Type:     pipeline.TypeCrypto,
			Source:   pipeline.SourceUpbit,
			Params:   map[string]string{"symbol": symbol},
			Priority: PriorityCrypto,
		})
	}

	return reqs
}

// PriceRequests builds per-batch stock price requests only.
func PriceRequests(stockCodes []string) []pipeline.Request {
	reqs := make([]pipeline.Request, 0)
	for _, batch := range batchCodes(stockCodes, batchSize) {
		reqs = append(reqs, pipeline.Request{
			Type:     pipeline.TypeStockPrice,
			Source:   pipeline.SourceKIS,
			Params:   map[string]string{"codes": strings.Join(batch, ",")},
			Priority: PriorityStocks,
		})
	}
	return reqs
}

func batchCodes(codes []string, size int) [][]string {
	if size < 1 {
		size = 1
	}
	batches := make([][]string, 0, (len(codes)+size-1)/size)
	for start := 0; start < len(codes); start += size {
		end := start + size
		if end > len(codes) {
			end = len(codes)
		}
		batches = append(batches, codes[start:end])
	}
	return batches
}
