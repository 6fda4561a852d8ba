package policy

import (
	"sync"
	"time"
)

// SpendingGuard enforces per-transaction / daily / monthly / per-merchant
// rolling-window payment limits (spec §4.2 rule 5). Tiered delays above a
// high threshold are reported via CooldownFor so the caller can insert a
// scheduled reminder row before executing.
type SpendingGuard struct {
	mu sync.Mutex

	PerTransactionUSD float64
	DailyUSD          float64
	MonthlyUSD        float64
	PerMerchantUSD    float64
	CooldownThreshold float64
	CooldownDuration  time.Duration

	daily    []spend
	monthly  []spend
	merchant map[string][]spend
}

type spend struct {
	at     time.Time
	amount float64
}

// NewSpendingGuard builds a guard from config thresholds.
func NewSpendingGuard(perTx, daily, monthly, perMerchant, cooldownThreshold float64, cooldownMinutes int) *SpendingGuard {
	return &SpendingGuard{
		PerTransactionUSD: perTx,
		DailyUSD:          daily,
		MonthlyUSD:        monthly,
		PerMerchantUSD:    perMerchant,
		CooldownThreshold: cooldownThreshold,
		CooldownDuration:  time.Duration(cooldownMinutes) * time.Minute,
		merchant:          map[string][]spend{},
	}
}

// RequiresApproval reports whether a transaction of amount to merchant
// exceeds any configured threshold and therefore must be gated regardless
// of full_auto mode.
func (g *SpendingGuard) RequiresApproval(merchant string, amount float64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := time.Now()

	if g.PerTransactionUSD > 0 && amount > g.PerTransactionUSD {
		return true
	}
	if g.DailyUSD > 0 && sumSince(g.daily, now.Add(-24*time.Hour))+amount > g.DailyUSD {
		return true
	}
	if g.MonthlyUSD > 0 && sumSince(g.monthly, now.Add(-30*24*time.Hour))+amount > g.MonthlyUSD {
		return true
	}
	if g.PerMerchantUSD > 0 && sumSince(g.merchant[merchant], now.Add(-24*time.Hour))+amount > g.PerMerchantUSD {
		return true
	}
	return false
}

// CooldownFor returns the cooldown delay (if any) that must elapse before a
// transaction of amount is allowed to execute even once approved.
func (g *SpendingGuard) CooldownFor(amount float64) time.Duration {
	if g.CooldownThreshold > 0 && amount > g.CooldownThreshold {
		return g.CooldownDuration
	}
	return 0
}

// Record commits a completed transaction into the rolling windows.
func (g *SpendingGuard) Record(merchant string, amount float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := time.Now()
	s := spend{at: now, amount: amount}
	g.daily = append(g.daily, s)
	g.monthly = append(g.monthly, s)
	g.merchant[merchant] = append(g.merchant[merchant], s)
}

func sumSince(spends []spend, since time.Time) float64 {
	var total float64
	for _, s := range spends {
		if s.at.After(since) {
			total += s.amount
		}
	}
	return total
}
