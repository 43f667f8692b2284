package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/alejandrodnm/stakebot/internal/domain"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Límite de Telegram por mensaje.
const telegramMaxLength = 4096

// Telegram implementa ports.Notifier enviando un resumen por investor a un chat.
type Telegram struct {
	api    *tgbotapi.BotAPI
	chatID int64
	top    int
}

// NewTelegram autoriza el bot y devuelve el notificador. top negativo (o 0) envía todas.
func NewTelegram(token string, chatID int64, top int) (*Telegram, error) {
	return newTelegram(token, tgbotapi.APIEndpoint, chatID, top)
}

func newTelegram(token, endpoint string, chatID int64, top int) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("notify.NewTelegram: %w", err)
	}
	return &Telegram{api: api, chatID: chatID, top: top}, nil
}

// Notify envía las recomendaciones del ciclo. Un ciclo vacío no envía nada.
func (t *Telegram) Notify(_ context.Context, inv domain.Investor, recs []domain.Recommendation) error {
	if len(recs) == 0 {
		return nil
	}

	for _, text := range splitMessage(formatTelegram(inv, recs, t.top), telegramMaxLength) {
		if _, err := t.api.Send(tgbotapi.NewMessage(t.chatID, text)); err != nil {
			return fmt.Errorf("notify.Telegram: send to %d: %w", t.chatID, err)
		}
	}
	return nil
}

// formatTelegram arma el texto plano del mensaje.
func formatTelegram(inv domain.Investor, recs []domain.Recommendation, top int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %d recommendations\n", investorLabel(inv), len(recs))
	fmt.Fprintf(&sb, "balance $%.2f | drawdown %.1f%% | bets left %s\n",
		inv.CurrentBalance, inv.Drawdown(), remainingLabel(inv))
	if inv.IsRecoveryActive {
		sb.WriteString("recovery mode ON\n")
	}

	shown := recs
	if top > 0 && len(shown) > top {
		shown = shown[:top]
	}
	for i, rec := range shown {
		fmt.Fprintf(&sb, "\n%d. %s %s\n", i+1, recLabel(rec), oddsLabel(rec.Odds))
		fmt.Fprintf(&sb, "   stake $%.2f → payout $%.2f | conf %.0f%% | EV $%.2f\n",
			rec.Stake, rec.ExpectedPayout, rec.Confidence, rec.ExpectedValue)
	}
	if len(shown) < len(recs) {
		fmt.Fprintf(&sb, "\n+%d more\n", len(recs)-len(shown))
	}
	return sb.String()
}

// splitMessage parte un texto largo en trozos de como mucho maxLength bytes,
// cortando por líneas cuando se puede.
func splitMessage(text string, maxLength int) []string {
	if len(text) <= maxLength {
		return []string{text}
	}

	var parts []string
	var current strings.Builder
	for _, line := range strings.SplitAfter(text, "\n") {
		for len(line) > maxLength {
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
			parts = append(parts, line[:maxLength])
			line = line[maxLength:]
		}
		if current.Len()+len(line) > maxLength {
			parts = append(parts, current.String())
			current.Reset()
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}
