package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alejandrodnm/stakebot/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console implementa ports.Notifier.
type Console struct {
	out     io.Writer
	compact bool
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(compact bool) *Console {
	return &Console{out: os.Stdout, compact: compact}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, compact bool) *Console {
	return &Console{out: w, compact: compact}
}

// Notify imprime las recomendaciones de un investor en el modo configurado.
func (c *Console) Notify(_ context.Context, inv domain.Investor, recs []domain.Recommendation) error {
	if len(recs) == 0 {
		fmt.Fprintf(c.out, "[%s] %s: no recommendations\n", time.Now().Format("15:04:05"), investorLabel(inv))
		return nil
	}

	if c.compact {
		c.printCompact(inv, recs)
	} else {
		c.printFull(inv, recs)
	}
	return nil
}

// printCompact imprime una línea por investor con las 3 mejores.
func (c *Console) printCompact(inv domain.Investor, recs []domain.Recommendation) {
	now := time.Now().Format("15:04:05")

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s bal$%.2f → %d recs", now, investorLabel(inv), inv.CurrentBalance, len(recs))
	if inv.IsRecoveryActive {
		sb.WriteString(" [REC]")
	}

	for i, rec := range recs {
		if i >= 3 {
			break
		}
		fmt.Fprintf(&sb, " | %s %s $%.2f ev$%.2f",
			compactName(recLabel(rec), 25), oddsLabel(rec.Odds), rec.Stake, rec.ExpectedValue)
	}

	fmt.Fprintln(c.out, sb.String())
}

// printFull imprime cabecera del investor y tabla de recomendaciones.
func (c *Console) printFull(inv domain.Investor, recs []domain.Recommendation) {
	now := time.Now().Format("15:04:05")

	recovery := "off"
	if inv.IsRecoveryActive {
		recovery = "ON"
	}
	fmt.Fprintf(c.out, "\n[%s] %s: %d recommendations | bal $%.2f | dd %.1f%% | recovery %s | bets left %s\n",
		now, investorLabel(inv), len(recs), inv.CurrentBalance, inv.Drawdown(), recovery, remainingLabel(inv))

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Opportunity", "Selection", "Odds", "Stake", "Payout", "Conf", "EV", "Strategy")

	var totStake, totEV float64
	for i, rec := range recs {
		totStake += rec.Stake
		totEV += rec.ExpectedValue

		strategy := rec.StrategyID
		if rec.Rationale.Recovery {
			strategy += " (R)"
		}

		table.Append(
			fmt.Sprintf("%d", i+1),
			truncate(rec.OpportunityID, 20),
			truncate(recLabel(rec), 30),
			oddsLabel(rec.Odds),
			fmt.Sprintf("$%.2f", rec.Stake),
			fmt.Sprintf("$%.2f", rec.ExpectedPayout),
			fmt.Sprintf("%.0f%%", rec.Confidence),
			fmt.Sprintf("$%.2f", rec.ExpectedValue),
			strategy,
		)
	}
	table.Render()

	fmt.Fprintf(c.out, "  Total stake: $%.2f  Total EV: $%.2f\n", totStake, totEV)
	fmt.Fprintln(c.out, "  EV = p × payout − (1 − p) × stake | (R) = recovery strategy")
}

// PrintLedger imprime el estado de todos los investors.
func (c *Console) PrintLedger(investors []domain.Investor) {
	if len(investors) == 0 {
		fmt.Fprintln(c.out, "\n  No investors configured.")
		return
	}

	fmt.Fprintf(c.out, "\n=== INVESTOR LEDGER (%d) ===\n", len(investors))

	table := tablewriter.NewWriter(c.out)
	table.Header("Investor", "Strategy", "Status", "Balance", "P&L", "DD", "W/L/P", "Win%", "Streak", "Week", "Recovery")

	var totPnL float64
	for _, inv := range investors {
		totPnL += inv.ProfitLoss()

		recovery := "-"
		if inv.IsRecoveryActive {
			recovery = "ON"
		}

		table.Append(
			truncate(investorLabel(inv), 24),
			inv.StrategyID,
			string(inv.Status),
			fmt.Sprintf("$%.2f", inv.CurrentBalance),
			signedMoney(inv.ProfitLoss()),
			fmt.Sprintf("%.1f%%", inv.Drawdown()),
			fmt.Sprintf("%d/%d/%d", inv.CareerWins, inv.CareerLosses, inv.CareerPushes),
			fmt.Sprintf("%.1f", inv.WinRate()),
			streakLabel(inv.CurrentStreak),
			weekLabel(inv),
			recovery,
		)
	}
	table.Render()

	fmt.Fprintf(c.out, "  Total P&L: %s (pending stakes not included)\n\n", signedMoney(totPnL))
}

// PrintWagers imprime las apuestas de un investor, pending y liquidadas.
func (c *Console) PrintWagers(inv domain.Investor, wagers []domain.Wager) {
	fmt.Fprintf(c.out, "\n--- %s: %d wagers ---\n", investorLabel(inv), len(wagers))
	if len(wagers) == 0 {
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Placed", "Opportunity", "Strategy", "Odds", "Stake", "Outcome", "Result")

	var staked, net float64
	for _, w := range wagers {
		staked += w.Stake

		result := "-"
		switch w.Outcome {
		case domain.OutcomeWin:
			net += w.Payout
			result = signedMoney(w.Payout)
		case domain.OutcomeLoss:
			net -= w.Stake
			result = signedMoney(-w.Stake)
		case domain.OutcomePush:
			result = "$0.00"
		}

		table.Append(
			w.PlacedAt.Format("01-02 15:04"),
			truncate(w.OpportunityID, 20),
			w.StrategyID,
			oddsLabel(w.OddsAtPlacement),
			fmt.Sprintf("$%.2f", w.Stake),
			string(w.Outcome),
			result,
		)
	}
	table.Render()

	fmt.Fprintf(c.out, "  Staked: $%.2f  Net settled: %s\n", staked, signedMoney(net))
}

// --- helpers ---

func investorLabel(inv domain.Investor) string {
	if inv.Name != "" && inv.Name != inv.ID {
		return fmt.Sprintf("%s (%s)", inv.Name, inv.ID)
	}
	return inv.ID
}

func recLabel(rec domain.Recommendation) string {
	parts := make([]string, 0, 2)
	if rec.Market != "" {
		parts = append(parts, rec.Market)
	}
	if rec.Selection != "" {
		parts = append(parts, rec.Selection)
	}
	if len(rec.Legs) > 0 {
		books := make([]string, len(rec.Legs))
		for i, l := range rec.Legs {
			books[i] = l.Book
		}
		parts = append(parts, "arb "+strings.Join(books, "/"))
	}
	if len(parts) == 0 {
		return rec.OpportunityID
	}
	return strings.Join(parts, " ")
}

// oddsLabel formatea cuotas americanas con signo. 0 (arbitraje) se muestra como "-".
func oddsLabel(american int) string {
	if american == 0 {
		return "-"
	}
	if american > 0 {
		return fmt.Sprintf("+%d", american)
	}
	return fmt.Sprintf("%d", american)
}

func signedMoney(v float64) string {
	if v < 0 {
		return fmt.Sprintf("-$%.2f", -v)
	}
	return fmt.Sprintf("+$%.2f", v)
}

func streakLabel(streak int) string {
	switch {
	case streak > 0:
		return fmt.Sprintf("W%d", streak)
	case streak < 0:
		return fmt.Sprintf("L%d", -streak)
	}
	return "-"
}

func remainingLabel(inv domain.Investor) string {
	if n := inv.RemainingBets(); n >= 0 {
		return fmt.Sprintf("%d", n)
	}
	return "∞"
}

func weekLabel(inv domain.Investor) string {
	if inv.MaxBetsPerWeek <= 0 {
		return fmt.Sprintf("%d", inv.BetsPlacedThisWeek)
	}
	return fmt.Sprintf("%d/%d", inv.BetsPlacedThisWeek, inv.MaxBetsPerWeek)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func compactName(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := s[:maxLen]
	if idx := strings.LastIndex(cut, " "); idx > maxLen/2 {
		cut = cut[:idx]
	}
	return cut + "…"
}
