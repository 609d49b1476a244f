// Package trades replays a signal sequence against the original price series
// to recover an auditable list of discrete fills. The replay is an independent
// two-state simulation: signals that contradict the simulated state (a second
// BUY while long, a SELL while flat) are ignored rather than trusted.
package trades

import (
	"github.com/huhk345/alphagen-ai/internal/domain"
)

// InitialCash is the virtual balance each simulation starts from.
const InitialCash = 100.0

// Reconstruct converts the per-period signals into BUY/SELL trades with full
// cash and quantity accounting. A BUY moves the entire balance into the asset
// at that date's close; a SELL liquidates the entire holding. If the replay
// ends long and the final row has a valid price, a closing SELL is
// synthesized so the trade list balances.
func Reconstruct(data []domain.BacktestDataPoint, prices []domain.PricePoint) []domain.Trade {
	priceByDate := make(map[string]float64, len(prices))
	for _, p := range prices {
		// First matching price wins on duplicate dates.
		if _, seen := priceByDate[p.Date]; !seen && p.Close > 0 {
			priceByDate[p.Date] = p.Close
		}
	}

	var out []domain.Trade
	state := flat
	cash := InitialCash
	holdings := 0.0

	for _, point := range data {
		if point.Signal == nil {
			continue
		}
		price, ok := priceByDate[point.Date]
		if !ok || price <= 0 {
			continue
		}
		switch {
		case *point.Signal == domain.SignalBuy && state == flat:
			quantity := cash / price
			out = append(out, domain.Trade{
				Date:     point.Date,
				Type:     domain.SignalBuy,
				Price:    price,
				Quantity: quantity,
				Amount:   quantity * price,
			})
			holdings = quantity
			cash = 0
			state = long
		case *point.Signal == domain.SignalSell && state == long:
			amount := holdings * price
			out = append(out, domain.Trade{
				Date:     point.Date,
				Type:     domain.SignalSell,
				Price:    price,
				Quantity: holdings,
				Amount:   amount,
			})
			cash = amount
			holdings = 0
			state = flat
		}
	}

	// End-of-data close-out: liquidate a still-open position at the last
	// row's price when that price is valid.
	if state == long && len(data) > 0 {
		last := data[len(data)-1]
		if price, ok := priceByDate[last.Date]; ok && price > 0 && holdings > 0 {
			out = append(out, domain.Trade{
				Date:     last.Date,
				Type:     domain.SignalSell,
				Price:    price,
				Quantity: holdings,
				Amount:   holdings * price,
			})
		}
	}

	return out
}

type replayState int

const (
	flat replayState = iota
	long
)
