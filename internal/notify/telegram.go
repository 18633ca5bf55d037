package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/asaskevich/EventBus"
	botApi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/yourusername/applytrack-api/internal/events"
	"github.com/yourusername/applytrack-api/internal/model"
)

type sender interface {
	Send(c botApi.Chattable) (botApi.Message, error)
}

type userFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

// TelegramNotifier forwards alerts to users who linked a Telegram chat
type TelegramNotifier struct {
	api     sender
	users   userFinder
	baseURL string
}

// NewTelegramNotifier authorizes the bot token against the Telegram API
func NewTelegramNotifier(token string, users userFinder, frontendURL string) (*TelegramNotifier, error) {
	api, err := botApi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("authorizing telegram bot: %w", err)
	}
	log.Info().Str("bot", api.Self.UserName).Msg("Telegram bot authorized")
	return newTelegramNotifier(api, users, frontendURL), nil
}

func newTelegramNotifier(api sender, users userFinder, frontendURL string) *TelegramNotifier {
	return &TelegramNotifier{api: api, users: users, baseURL: strings.TrimRight(frontendURL, "/")}
}

// Subscribe attaches the notifier to alert events. Delivery runs off the
// publisher's goroutine; call bus.WaitAsync before exit to flush.
func (n *TelegramNotifier) Subscribe(bus EventBus.Bus) error {
	if bus == nil {
		return errors.New("bus is nil")
	}
	return bus.SubscribeAsync(events.AlertCreatedTopic, n.onAlertCreated, false)
}

func (n *TelegramNotifier) onAlertCreated(event events.AlertCreated) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := n.Deliver(ctx, &event.Alert); err != nil {
		log.Error().Err(err).Str("alertId", event.Alert.ID.String()).Msg("Failed to send telegram alert")
	}
}

// Deliver sends one alert; users without a linked chat are skipped
func (n *TelegramNotifier) Deliver(ctx context.Context, a *model.Alert) error {
	user, err := n.users.FindByID(ctx, a.UserID)
	if err != nil {
		return err
	}
	if user == nil || user.TelegramChatID == 0 {
		return nil
	}

	msg := botApi.NewMessage(user.TelegramChatID, n.format(a))
	msg.DisableWebPagePreview = true
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}
	return nil
}

func (n *TelegramNotifier) format(a *model.Alert) string {
	var b strings.Builder
	b.WriteString(a.Title)
	if a.Body != "" {
		b.WriteString("\n\n")
		b.WriteString(a.Body)
	}
	switch {
	case a.OpportunityID != nil:
		fmt.Fprintf(&b, "\n\n%s/opportunities/%s", n.baseURL, a.OpportunityID)
	case a.ApplicationID != nil:
		fmt.Fprintf(&b, "\n\n%s/applications/%s", n.baseURL, a.ApplicationID)
	}
	return b.String()
}
