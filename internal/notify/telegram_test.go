package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/asaskevich/EventBus"
	botApi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/applytrack-api/internal/events"
	"github.com/yourusername/applytrack-api/internal/model"
)

type mockApi struct {
	sent []botApi.MessageConfig
	err  error
}

func (m *mockApi) Send(c botApi.Chattable) (botApi.Message, error) {
	if msg, ok := c.(botApi.MessageConfig); ok {
		m.sent = append(m.sent, msg)
	}
	return botApi.Message{}, m.err
}

type users map[uuid.UUID]*model.User

func (u users) FindByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	return u[id], nil
}

func TestDeliver_SendsToLinkedChat(t *testing.T) {
	user := &model.User{ID: uuid.New(), TelegramChatID: 555}
	api := &mockApi{}
	n := newTelegramNotifier(api, users{user.ID: user}, "https://app.example.com/")

	oppID := uuid.New()
	err := n.Deliver(context.Background(), &model.Alert{
		UserID: user.ID, Title: "92% match: SRE at Acme", Body: "Strong Go overlap", OpportunityID: &oppID,
	})
	require.NoError(t, err)
	require.Len(t, api.sent, 1)
	assert.Equal(t, int64(555), api.sent[0].ChatID)
	assert.Equal(t, "92% match: SRE at Acme\n\nStrong Go overlap\n\nhttps://app.example.com/opportunities/"+oppID.String(), api.sent[0].Text)
}

func TestDeliver_WhenNoChatLinked_ShouldSkip(t *testing.T) {
	user := &model.User{ID: uuid.New()}
	api := &mockApi{}
	n := newTelegramNotifier(api, users{user.ID: user}, "")

	require.NoError(t, n.Deliver(context.Background(), &model.Alert{UserID: user.ID, Title: "x"}))
	require.NoError(t, n.Deliver(context.Background(), &model.Alert{UserID: uuid.New(), Title: "unknown user"}))
	assert.Empty(t, api.sent)
}

func TestDeliver_WhenSendFails_ShouldReturnError(t *testing.T) {
	user := &model.User{ID: uuid.New(), TelegramChatID: 1}
	n := newTelegramNotifier(&mockApi{err: errors.New("blocked")}, users{user.ID: user}, "")

	err := n.Deliver(context.Background(), &model.Alert{UserID: user.ID, Title: "x"})
	assert.ErrorContains(t, err, "blocked")
}

func TestSubscribe_DeliversPublishedAlerts(t *testing.T) {
	user := &model.User{ID: uuid.New(), TelegramChatID: 7}
	api := &mockApi{}
	n := newTelegramNotifier(api, users{user.ID: user}, "")

	bus := EventBus.New()
	require.NoError(t, n.Subscribe(bus))

	bus.Publish(events.AlertCreatedTopic, events.AlertCreated{Alert: model.Alert{UserID: user.ID, Title: "Follow-up due: call"}})
	bus.WaitAsync()

	require.Len(t, api.sent, 1)
	assert.Equal(t, "Follow-up due: call", api.sent[0].Text)
	assert.Error(t, n.Subscribe(nil))
}
