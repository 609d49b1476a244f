package domain

import (
	"fmt"
	"regexp"
)

// Benchmark identifies a reference market whose daily bars feed both the
// factor evaluation and the benchmark return series.
type Benchmark string

const (
	BenchmarkBTC    Benchmark = "BTC-USD"
	BenchmarkETH    Benchmark = "ETH-USD"
	BenchmarkSP500  Benchmark = "S&P 500"
	BenchmarkCSI300 Benchmark = "CSI 300"
)

var benchmarkTickers = map[Benchmark]string{
	BenchmarkBTC:    "BTC-USD",
	BenchmarkETH:    "ETH-USD",
	BenchmarkSP500:  "^GSPC",
	BenchmarkCSI300: "000300.SS",
}

// Ticker resolves the benchmark to its vendor ticker symbol.
func (b Benchmark) Ticker() (string, error) {
	ticker, ok := benchmarkTickers[b]
	if !ok {
		return "", fmt.Errorf("unsupported benchmark: %s", b)
	}
	return ticker, nil
}

var aShareCode = regexp.MustCompile(`^\d{6}$`)

// NormalizeAShareCode maps a 6-digit A-share code to its exchange-suffixed
// ticker. Codes starting with 6 or 9 trade on Shanghai, the rest on Shenzhen.
func NormalizeAShareCode(code string) (string, error) {
	if !aShareCode.MatchString(code) {
		return "", fmt.Errorf("invalid A-share code: %q", code)
	}
	switch code[0] {
	case '6', '9':
		return code + ".SS", nil
	default:
		return code + ".SZ", nil
	}
}
