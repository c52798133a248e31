package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"market-sentry/internal/domain"
	"market-sentry/internal/signal"

	tele "gopkg.in/telebot.v3"
)

type DestinationAdmin interface {
	SetChannel(ctx context.Context, serverID, channelID int64, ticker, signalType string) error
	RemoveChannel(ctx context.Context, serverID int64, ticker, signalType string) (bool, error)
	SetSecret(ctx context.Context, serverID int64, secret string) error
	GetSecret(ctx context.Context, serverID int64) (string, error)
	ToggleAlerts(ctx context.Context, serverID int64) (bool, error)
	ListChannels(ctx context.Context, serverID int64) ([]domain.Destination, error)
}

// StartTelegramBot wires the admin command surface and returns the sender the
// dispatcher delivers alerts through. Returns nil when no token is configured
// so the rest of the service can run without Telegram.
func StartTelegramBot(repo DestinationAdmin) *ChannelSender {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		log.Println("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return nil
	}
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		log.Fatalf("failed to create Telegram bot: %v", err)
	}

	b.Handle("/setchannel", func(c tele.Context) error {
		chat := c.Chat()
		if chat == nil {
			return c.Send("Unable to detect chat")
		}
		ticker, signalType, err := parseBindingArgs(c.Args())
		if err != nil {
			return c.Send("Usage: /setchannel BTC [golden_cross]")
		}
		if err := repo.SetChannel(context.Background(), chat.ID, chat.ID, ticker, signalType); err != nil {
			return c.Send(fmt.Sprintf("Error saving alert binding: %v", err))
		}
		if signalType == domain.DefaultSignalType {
			return c.Send(fmt.Sprintf("%s alerts will be posted to this chat.", ticker))
		}
		return c.Send(fmt.Sprintf("%s %s alerts will be posted to this chat.", ticker, signalType))
	})

	b.Handle("/removealert", func(c tele.Context) error {
		chat := c.Chat()
		if chat == nil {
			return c.Send("Unable to detect chat")
		}
		ticker, signalType, err := parseBindingArgs(c.Args())
		if err != nil {
			return c.Send("Usage: /removealert BTC [golden_cross]")
		}
		removed, err := repo.RemoveChannel(context.Background(), chat.ID, ticker, signalType)
		if err != nil {
			return c.Send(fmt.Sprintf("Error removing alert binding: %v", err))
		}
		if !removed {
			return c.Send(fmt.Sprintf("No alert binding found for %s %s.", ticker, signalType))
		}
		return c.Send(fmt.Sprintf("Removed %s %s alerts for this chat.", ticker, signalType))
	})

	b.Handle("/setsecret", func(c tele.Context) error {
		chat := c.Chat()
		if chat == nil {
			return c.Send("Unable to detect chat")
		}
		secret := strings.TrimSpace(c.Message().Payload)
		if secret == "" {
			return c.Send("Usage: /setsecret <value>")
		}
		if err := repo.SetSecret(context.Background(), chat.ID, secret); err != nil {
			return c.Send(fmt.Sprintf("Error saving secret: %v", err))
		}
		return c.Send("Secret saved. Incoming webhooks must now include it.")
	})

	b.Handle("/removesecret", func(c tele.Context) error {
		chat := c.Chat()
		if chat == nil {
			return c.Send("Unable to detect chat")
		}
		if err := repo.SetSecret(context.Background(), chat.ID, ""); err != nil {
			return c.Send(fmt.Sprintf("Error clearing secret: %v", err))
		}
		return c.Send("Secret removed. Webhooks no longer require one.")
	})

	b.Handle("/secret", func(c tele.Context) error {
		chat := c.Chat()
		if chat == nil {
			return c.Send("Unable to detect chat")
		}
		secret, err := repo.GetSecret(context.Background(), chat.ID)
		if err != nil {
			return c.Send(fmt.Sprintf("Error fetching secret: %v", err))
		}
		if secret == "" {
			return c.Send("No secret is set. Use /setsecret <value> to require one.")
		}
		return c.Send(fmt.Sprintf("Current secret: %s", secret))
	})

	b.Handle("/togglealerts", func(c tele.Context) error {
		chat := c.Chat()
		if chat == nil {
			return c.Send("Unable to detect chat")
		}
		enabled, err := repo.ToggleAlerts(context.Background(), chat.ID)
		if err != nil {
			return c.Send(fmt.Sprintf("Error toggling alerts: %v", err))
		}
		if enabled {
			return c.Send("Alerts are now ON for this chat.")
		}
		return c.Send("Alerts are now OFF for this chat.")
	})

	b.Handle("/alerts", func(c tele.Context) error {
		chat := c.Chat()
		if chat == nil {
			return c.Send("Unable to detect chat")
		}
		bindings, err := repo.ListChannels(context.Background(), chat.ID)
		if err != nil {
			return c.Send(fmt.Sprintf("Error listing alerts: %v", err))
		}
		return c.Send(formatBindings(bindings))
	})

	b.Handle("/help", func(c tele.Context) error {
		return c.Send(helpText())
	})

	log.Println("Telegram bot started")
	go b.Start()
	return NewChannelSender(b)
}

func parseBindingArgs(args []string) (string, string, error) {
	if len(args) == 0 || len(args) > 2 {
		return "", "", errors.New("expected a ticker and optional signal type")
	}
	ticker := strings.ToUpper(strings.TrimSpace(args[0]))
	if ticker == "" || strings.HasPrefix(ticker, "--") {
		return "", "", errors.New("invalid ticker")
	}
	signalType := domain.DefaultSignalType
	if len(args) == 2 {
		signalType = strings.ToUpper(strings.TrimSpace(args[1]))
		if signalType == "" {
			signalType = domain.DefaultSignalType
		}
	}
	return ticker, signalType, nil
}

func formatBindings(bindings []domain.Destination) string {
	if len(bindings) == 0 {
		return "No alert bindings yet. Use /setchannel BTC to add one."
	}
	lines := make([]string, 0, len(bindings)+1)
	lines = append(lines, "Alert bindings for this chat:")
	for _, b := range bindings {
		if b.SignalType == domain.DefaultSignalType {
			lines = append(lines, fmt.Sprintf("- %s (all alerts)", b.Ticker))
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s (%s)", b.Ticker, b.SignalType))
	}
	return strings.Join(lines, "\n")
}

func helpText() string {
	names := signal.Names()
	sort.Strings(names)
	return strings.Join([]string{
		"Commands:",
		"/setchannel TICKER [signal] - post alerts for a ticker to this chat",
		"/removealert TICKER [signal] - remove a binding",
		"/setsecret VALUE - require a secret on incoming webhooks",
		"/removesecret - clear the webhook secret",
		"/secret - show the current secret",
		"/togglealerts - turn all alerts for this chat on or off",
		"/alerts - list this chat's bindings",
		"",
		"Webhook payload (POST /webhook):",
		`{"ticker":"BTC","alert":"message","server_id":<chat id>,"secret":"...","signal_type":"..."}`,
		"",
		"Signal types: " + strings.Join(names, ", "),
	}, "\n")
}
