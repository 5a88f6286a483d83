// Package metrics holds the ledger's prometheus collectors and the
// /metrics and /healthz listener.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"
)

// Result label values.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Metrics groups the ledger collectors. A nil *Metrics is valid and records
// nothing, which keeps services usable without a registry.
type Metrics struct {
	registry *prometheus.Registry

	walletMutations   *prometheus.CounterVec
	betsSettled       *prometheus.CounterVec
	payoutAmount      prometheus.Counter
	paymentsProcessed *prometheus.CounterVec
	settlementRuns    *prometheus.CounterVec
}

// New creates the collectors on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		walletMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_wallet_mutations_total",
			Help: "Wallet mutations by transaction type and outcome.",
		}, []string{"type", "result"}),
		betsSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_bets_settled_total",
			Help: "Bets moved out of pending, by final status.",
		}, []string{"status"}),
		payoutAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_payout_amount_total",
			Help: "Sum of bet_won credits.",
		}),
		paymentsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_payment_requests_processed_total",
			Help: "Payment requests approved or rejected, by request type.",
		}, []string{"type", "decision"}),
		settlementRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_settlement_runs_total",
			Help: "Settlement passes by trigger and outcome.",
		}, []string{"trigger", "result"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.walletMutations,
		m.betsSettled,
		m.payoutAmount,
		m.paymentsProcessed,
		m.settlementRuns,
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// WalletMutation counts one ApplyDelta outcome.
func (m *Metrics) WalletMutation(txType, result string) {
	if m == nil {
		return
	}
	m.walletMutations.WithLabelValues(txType, result).Inc()
}

// BetSettled counts one bet reaching a final status.
func (m *Metrics) BetSettled(status string) {
	if m == nil {
		return
	}
	m.betsSettled.WithLabelValues(status).Inc()
}

// Payout adds a winning credit to the payout total.
func (m *Metrics) Payout(amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.payoutAmount.Add(amount.InexactFloat64())
}

// PaymentProcessed counts one approval or rejection.
func (m *Metrics) PaymentProcessed(paymentType, decision string) {
	if m == nil {
		return
	}
	m.paymentsProcessed.WithLabelValues(paymentType, decision).Inc()
}

// SettlementRun counts one settlement pass.
func (m *Metrics) SettlementRun(trigger, result string) {
	if m == nil {
		return
	}
	m.settlementRuns.WithLabelValues(trigger, result).Inc()
}
