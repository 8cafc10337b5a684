package trading

import (
	"math"

	"spread-backtester/internal/models"
)

// Summary holds the statistics of one day's ledger.
type Summary struct {
	Trades      int                       `json:"trades"`
	Wins        int                       `json:"wins"`
	Losses      int                       `json:"losses"`
	Contracts   int                       `json:"contracts"`
	GrossPnL    float64                   `json:"gross_pnl"`
	Commissions float64                   `json:"commissions"`
	NetPnL      float64                   `json:"net_pnl"`
	WinRate     float64                   `json:"win_rate"`
	AvgWin      float64                   `json:"avg_win"`
	AvgLoss     float64                   `json:"avg_loss"`
	LargestWin  float64                   `json:"largest_win"`
	LargestLoss float64                   `json:"largest_loss"`
	MaxDrawdown float64                   `json:"max_drawdown"`
	ByReason    map[models.ExitReason]int `json:"by_reason"`
}

// Summarize computes ledger statistics. Drawdown is measured on the running
// sum of net P&L, starting from zero.
func Summarize(ledger models.Ledger, commissionDollars float64) Summary {
	s := Summary{
		Trades:   len(ledger),
		ByReason: make(map[models.ExitReason]int),
	}
	if len(ledger) == 0 {
		return s
	}

	var totalWins, totalLosses, cumulative, peak float64
	for _, t := range ledger {
		s.Contracts += t.Contracts
		s.NetPnL += t.PnL
		s.Commissions += commissionDollars * 4 * float64(t.Contracts)
		s.ByReason[t.ExitReason]++

		if t.PnL > 0 {
			s.Wins++
			totalWins += t.PnL
			s.LargestWin = math.Max(s.LargestWin, t.PnL)
		} else {
			s.Losses++
			totalLosses += t.PnL
			s.LargestLoss = math.Min(s.LargestLoss, t.PnL)
		}

		cumulative += t.PnL
		peak = math.Max(peak, cumulative)
		s.MaxDrawdown = math.Max(s.MaxDrawdown, peak-cumulative)
	}

	s.GrossPnL = s.NetPnL + s.Commissions
	s.WinRate = float64(s.Wins) / float64(s.Trades) * 100
	if s.Wins > 0 {
		s.AvgWin = totalWins / float64(s.Wins)
	}
	if s.Losses > 0 {
		s.AvgLoss = totalLosses / float64(s.Losses)
	}
	return s
}
