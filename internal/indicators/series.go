// Package indicators provides rolling technical indicators over daily close
// series. Every function is index-aligned with its input: output[i] is the
// indicator value at row i, and rows inside the warmup window are NaN so that
// downstream sanitization can treat them uniformly as missing.
package indicators

import "math"

// SMA calculates the simple moving average over the trailing period.
func SMA(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		if mean, ok := windowMean(values[i+1-period : i+1]); ok {
			out[i] = mean
		}
	}
	return out
}

// EMA calculates the exponential moving average with smoothing 2/(period+1),
// seeded with the SMA of the first period values.
func EMA(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	seed := 0.0
	for i := 0; i < period; i++ {
		if math.IsNaN(values[i]) {
			return out
		}
		seed += values[i]
	}
	ema := seed / float64(period)
	out[period-1] = ema

	alpha := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		if math.IsNaN(values[i]) {
			return out
		}
		ema = values[i]*alpha + ema*(1-alpha)
		out[i] = ema
	}
	return out
}

// RSI calculates the Relative Strength Index using Wilder's smoothing. The
// first period rows are warmup. A window with no losses reports 100.
func RSI(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 || len(values) < period+1 {
		return out
	}

	avgGain := 0.0
	avgLoss := 0.0
	for i := 1; i <= period; i++ {
		change := values[i] - values[i-1]
		if math.IsNaN(change) {
			return out
		}
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	// Wilder's smoothing for subsequent rows
	alpha := 1.0 / float64(period)
	for i := period + 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		if math.IsNaN(change) {
			return out
		}
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = avgGain*(1-alpha) + gain*alpha
		avgLoss = avgLoss*(1-alpha) + loss*alpha
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs)
}

// MACD calculates the MACD line: EMA(fast) - EMA(slow).
func MACD(values []float64, fast, slow int) []float64 {
	fastEMA := EMA(values, fast)
	slowEMA := EMA(values, slow)
	out := nanSeries(len(values))
	for i := range values {
		if !math.IsNaN(fastEMA[i]) && !math.IsNaN(slowEMA[i]) {
			out[i] = fastEMA[i] - slowEMA[i]
		}
	}
	return out
}

// RollingStd calculates the trailing population standard deviation.
func RollingStd(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		window := values[i+1-period : i+1]
		mean, ok := windowMean(window)
		if !ok {
			continue
		}
		variance := 0.0
		for _, v := range window {
			d := v - mean
			variance += d * d
		}
		out[i] = math.Sqrt(variance / float64(period))
	}
	return out
}

// BollingerUpper calculates SMA(period) + width*std(period).
func BollingerUpper(values []float64, period int, width float64) []float64 {
	return bollinger(values, period, width)
}

// BollingerLower calculates SMA(period) - width*std(period).
func BollingerLower(values []float64, period int, width float64) []float64 {
	return bollinger(values, period, -width)
}

func bollinger(values []float64, period int, width float64) []float64 {
	mid := SMA(values, period)
	std := RollingStd(values, period)
	out := nanSeries(len(values))
	for i := range values {
		if !math.IsNaN(mid[i]) && !math.IsNaN(std[i]) {
			out[i] = mid[i] + width*std[i]
		}
	}
	return out
}

// RollingMax calculates the trailing window maximum.
func RollingMax(values []float64, period int) []float64 {
	return rollingExtreme(values, period, func(a, b float64) bool { return b > a })
}

// RollingMin calculates the trailing window minimum.
func RollingMin(values []float64, period int) []float64 {
	return rollingExtreme(values, period, func(a, b float64) bool { return b < a })
}

func rollingExtreme(values []float64, period int, better func(current, candidate float64) bool) []float64 {
	out := nanSeries(len(values))
	if period <= 0 {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		best := math.NaN()
		ok := true
		for _, v := range values[i+1-period : i+1] {
			if math.IsNaN(v) {
				ok = false
				break
			}
			if math.IsNaN(best) || better(best, v) {
				best = v
			}
		}
		if ok {
			out[i] = best
		}
	}
	return out
}

// RollingSum calculates the trailing window sum.
func RollingSum(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		sum := 0.0
		ok := true
		for _, v := range values[i+1-period : i+1] {
			if math.IsNaN(v) {
				ok = false
				break
			}
			sum += v
		}
		if ok {
			out[i] = sum
		}
	}
	return out
}

// Shift lags the series by period rows: out[i] = values[i-period]. Rows
// without a lagged counterpart are NaN. A negative period leads the series.
func Shift(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	for i := range values {
		j := i - period
		if j >= 0 && j < len(values) {
			out[i] = values[j]
		}
	}
	return out
}

// Diff calculates values[i] - values[i-period].
func Diff(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period < 0 {
		return out
	}
	for i := period; i < len(values); i++ {
		if !math.IsNaN(values[i]) && !math.IsNaN(values[i-period]) {
			out[i] = values[i] - values[i-period]
		}
	}
	return out
}

// PctChange calculates values[i]/values[i-period] - 1.
func PctChange(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period < 0 {
		return out
	}
	for i := period; i < len(values); i++ {
		prev := values[i-period]
		if !math.IsNaN(values[i]) && !math.IsNaN(prev) && prev != 0 {
			out[i] = values[i]/prev - 1
		}
	}
	return out
}

// Rank calculates the expanding percentile rank of values[i] among rows 0..i,
// in [0, 1]. NaN rows neither rank nor count.
func Rank(values []float64) []float64 {
	out := nanSeries(len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		below, total := 0, 0
		for j := 0; j <= i; j++ {
			if math.IsNaN(values[j]) {
				continue
			}
			total++
			if values[j] <= v {
				below++
			}
		}
		if total > 0 {
			out[i] = float64(below) / float64(total)
		}
	}
	return out
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func windowMean(window []float64) (float64, bool) {
	sum := 0.0
	for _, v := range window {
		if math.IsNaN(v) {
			return 0, false
		}
		sum += v
	}
	return sum / float64(len(window)), true
}
