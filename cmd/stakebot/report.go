package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/alejandrodnm/stakebot/internal/adapters/notify"
	"github.com/alejandrodnm/stakebot/internal/application/investor"
	"github.com/alejandrodnm/stakebot/internal/domain"
	"github.com/alejandrodnm/stakebot/internal/ports"
)

// runReport imprime el ledger y las apuestas de cada investor.
func runReport(ctx context.Context, wagers ports.WagerStore, investors *investor.Manager, console *notify.Console) error {
	list := investors.List()
	console.PrintLedger(list)

	for _, inv := range list {
		ws, err := wagers.ListWagers(ctx, inv.ID, "")
		if err != nil {
			return fmt.Errorf("runReport: %w", err)
		}
		console.PrintWagers(inv, ws)
	}
	return nil
}

// settleRequest es una liquidación pedida por línea de comandos.
type settleRequest struct {
	InvestorID string
	WagerID    string
	Outcome    domain.Outcome
	Payout     float64
}

// parseSettle interpreta "investor,wager,outcome[,payout]".
func parseSettle(arg string) (settleRequest, error) {
	parts := strings.Split(arg, ",")
	if len(parts) < 3 || len(parts) > 4 {
		return settleRequest{}, fmt.Errorf("parseSettle: %q: want investor,wager,outcome[,payout]", arg)
	}

	req := settleRequest{
		InvestorID: strings.TrimSpace(parts[0]),
		WagerID:    strings.TrimSpace(parts[1]),
		Outcome:    domain.Outcome(strings.ToLower(strings.TrimSpace(parts[2]))),
	}
	if req.InvestorID == "" || req.WagerID == "" {
		return settleRequest{}, fmt.Errorf("parseSettle: %q: empty investor or wager", arg)
	}
	if !req.Outcome.Valid() {
		return settleRequest{}, fmt.Errorf("parseSettle: %q: %w", parts[2], domain.ErrInvalidOutcome)
	}
	if len(parts) == 4 {
		payout, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		if err != nil {
			return settleRequest{}, fmt.Errorf("parseSettle: payout %q: %w", parts[3], err)
		}
		req.Payout = payout
	}
	return req, nil
}

func runSettle(ctx context.Context, investors *investor.Manager, arg string) error {
	req, err := parseSettle(arg)
	if err != nil {
		return err
	}

	w, err := investors.Settle(ctx, req.InvestorID, req.WagerID, req.Outcome, req.Payout)
	if err != nil {
		return fmt.Errorf("runSettle: %w", err)
	}
	slog.Info("wager settled",
		"investor", w.InvestorID,
		"wager", w.ID,
		"outcome", w.Outcome,
		"stake", w.Stake,
		"payout", w.Payout,
	)
	return nil
}
