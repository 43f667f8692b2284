package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alejandrodnm/stakebot/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder implementa ports.Notifier exportando el estado de cada investor
// como métricas Prometheus en un registro propio.
type Recorder struct {
	reg *prometheus.Registry

	balance         *prometheus.GaugeVec
	drawdown        *prometheus.GaugeVec
	recovery        *prometheus.GaugeVec
	betsLeft        *prometheus.GaugeVec
	recommendations *prometheus.CounterVec
	stake           *prometheus.CounterVec
	cycles          *prometheus.CounterVec
}

// NewRecorder crea el recorder y registra sus métricas.
func NewRecorder() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		balance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stakebot_investor_balance",
			Help: "Current balance of the investor (pending stakes excluded).",
		}, []string{"investor"}),
		drawdown: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stakebot_investor_drawdown_percent",
			Help: "Loss versus starting balance, in percent.",
		}, []string{"investor"}),
		recovery: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stakebot_investor_recovery_active",
			Help: "1 while the linked recovery strategy is in use.",
		}, []string{"investor"}),
		betsLeft: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stakebot_investor_bets_left",
			Help: "Bets left this week, -1 without weekly cap.",
		}, []string{"investor"}),
		recommendations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stakebot_recommendations_total",
			Help: "Recommendations produced per investor and strategy.",
		}, []string{"investor", "strategy"}),
		stake: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stakebot_recommended_stake_total",
			Help: "Sum of recommended stakes per investor.",
		}, []string{"investor"}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stakebot_investor_cycles_total",
			Help: "Evaluation cycles notified per investor.",
		}, []string{"investor"}),
	}
	r.reg.MustRegister(r.balance, r.drawdown, r.recovery, r.betsLeft, r.recommendations, r.stake, r.cycles)
	return r
}

// Registry devuelve el registro para servirlo o inspeccionarlo.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.reg
}

// Notify actualiza gauges y contadores del investor con el ciclo.
func (r *Recorder) Notify(_ context.Context, inv domain.Investor, recs []domain.Recommendation) error {
	r.balance.WithLabelValues(inv.ID).Set(inv.CurrentBalance)
	r.drawdown.WithLabelValues(inv.ID).Set(inv.Drawdown())
	r.betsLeft.WithLabelValues(inv.ID).Set(float64(inv.RemainingBets()))
	recovery := 0.0
	if inv.IsRecoveryActive {
		recovery = 1
	}
	r.recovery.WithLabelValues(inv.ID).Set(recovery)
	r.cycles.WithLabelValues(inv.ID).Inc()

	for _, rec := range recs {
		r.recommendations.WithLabelValues(inv.ID, rec.StrategyID).Inc()
		r.stake.WithLabelValues(inv.ID).Add(rec.Stake)
	}
	return nil
}

// Handler devuelve /metrics y /healthz.
func (r *Recorder) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	}))
	return mux
}

// Serve arranca el servidor de métricas en addr y lo apaga al cancelar ctx.
// Con addr vacío no hace nada.
func (r *Recorder) Serve(ctx context.Context, addr string) {
	if addr == "" {
		return
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("metrics server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
