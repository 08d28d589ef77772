package metrics

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type SaleMetrics struct {
	purchasesAccepted *prometheus.CounterVec
	purchasesRejected *prometheus.CounterVec
	usdVolume         prometheus.Counter
	pointsIssued      prometheus.Counter
	rewardsAccrued    *prometheus.CounterVec
	rewardsClaimed    *prometheus.CounterVec
	activeRound       prometheus.Gauge
}

var (
	saleOnce     sync.Once
	saleRegistry *SaleMetrics
)

func Sale() *SaleMetrics {
	saleOnce.Do(func() {
		saleRegistry = &SaleMetrics{
			purchasesAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "sale_purchases_accepted_total",
				Help: "Count of accepted purchases by payment currency.",
			}, []string{"asset"}),
			purchasesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "sale_purchases_rejected_total",
				Help: "Count of rejected purchases by failure class.",
			}, []string{"reason"}),
			usdVolume: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "sale_usd_volume_total",
				Help: "Cumulative accepted purchase volume in whole USD.",
			}),
			pointsIssued: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "sale_points_issued_total",
				Help: "Cumulative Nova Points issued to buyers and referrers.",
			}),
			rewardsAccrued: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "sale_rewards_accrued_total",
				Help: "Count of referral reward accruals by asset.",
			}, []string{"asset"}),
			rewardsClaimed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "sale_rewards_claimed_total",
				Help: "Count of referral reward payouts by asset.",
			}, []string{"asset"}),
			activeRound: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "sale_active_round",
				Help: "Index of the currently active sale round.",
			}),
		}
		prometheus.MustRegister(
			saleRegistry.purchasesAccepted,
			saleRegistry.purchasesRejected,
			saleRegistry.usdVolume,
			saleRegistry.pointsIssued,
			saleRegistry.rewardsAccrued,
			saleRegistry.rewardsClaimed,
			saleRegistry.activeRound,
		)
	})
	return saleRegistry
}

// PurchaseAccepted records one accepted purchase and its USD volume.
func (m *SaleMetrics) PurchaseAccepted(asset string, usdAmount *big.Int) {
	if m == nil {
		return
	}
	m.purchasesAccepted.WithLabelValues(asset).Inc()
	if usdAmount != nil && usdAmount.Sign() > 0 {
		whole := new(big.Int).Quo(usdAmount, new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
		value, _ := new(big.Float).SetInt(whole).Float64()
		m.usdVolume.Add(value)
	}
}

// PurchaseRejected records one rejected purchase by failure class.
func (m *SaleMetrics) PurchaseRejected(reason string) {
	if m == nil {
		return
	}
	m.purchasesRejected.WithLabelValues(reason).Inc()
}

// PointsIssued records Nova Points credited on a committed purchase.
func (m *SaleMetrics) PointsIssued(points *big.Int) {
	if m == nil || points == nil || points.Sign() <= 0 {
		return
	}
	value, _ := new(big.Float).SetInt(points).Float64()
	m.pointsIssued.Add(value)
}

// RewardAccrued records one referral reward accrual.
func (m *SaleMetrics) RewardAccrued(asset string) {
	if m == nil {
		return
	}
	m.rewardsAccrued.WithLabelValues(asset).Inc()
}

// RewardClaimed records one referral reward payout.
func (m *SaleMetrics) RewardClaimed(asset string) {
	if m == nil {
		return
	}
	m.rewardsClaimed.WithLabelValues(asset).Inc()
}

// SetActiveRound publishes the index of the active round.
func (m *SaleMetrics) SetActiveRound(index uint64) {
	if m == nil {
		return
	}
	m.activeRound.Set(float64(index))
}

// ClearActiveRound marks that no round is running. The gauge reads -1 so a
// cleared state is distinguishable from round index 0.
func (m *SaleMetrics) ClearActiveRound() {
	if m == nil {
		return
	}
	m.activeRound.Set(-1)
}
