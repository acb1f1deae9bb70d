package telegram_test

import (
	"context"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/myrjola/casebot/internal/errors"
	"github.com/myrjola/casebot/internal/telegram"
	"github.com/myrjola/casebot/internal/testhelpers"
	"github.com/myrjola/casebot/internal/workflow"
	"github.com/stretchr/testify/require"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// fakeBot records what the adapter sends and serves files from a test server.
type fakeBot struct {
	fileServer string
	sent       []tgbotapi.Chattable
	requests   []tgbotapi.Chattable
	failEdits  bool
	nextID     int
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if _, ok := c.(tgbotapi.EditMessageTextConfig); ok && b.failEdits {
		return tgbotapi.Message{}, errors.New("message to edit not found")
	}
	b.sent = append(b.sent, c)
	b.nextID++
	return tgbotapi.Message{MessageID: b.nextID}, nil
}

func (b *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	b.requests = append(b.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (b *fakeBot) GetFileDirectURL(fileID string) (string, error) {
	return b.fileServer + "/files/" + fileID, nil
}

// recorder answers every event with fixed directives.
type recorder struct {
	events     []workflow.Event
	directives []workflow.Directive
	err        error
}

func (r *recorder) Handle(_ context.Context, ev workflow.Event) ([]workflow.Directive, error) {
	r.events = append(r.events, ev)
	return r.directives, r.err
}

const (
	userID = int64(1001)
	chatID = int64(1001)
)

func newAdapter(t *testing.T, allowed ...int64) (*telegram.Adapter, *fakeBot, *recorder) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/files/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("content of " + strings.TrimPrefix(r.URL.Path, "/files/")))
	}))
	t.Cleanup(srv.Close)
	bot := &fakeBot{fileServer: srv.URL}
	rec := &recorder{}
	return telegram.NewAdapter(testhelpers.NewLogger(io.Discard), bot, rec, srv.Client(), allowed), bot, rec
}

func message(m tgbotapi.Message) tgbotapi.Update {
	m.From = &tgbotapi.User{ID: userID}
	m.Chat = &tgbotapi.Chat{ID: chatID}
	return tgbotapi.Update{UpdateID: 1, Message: &m}
}

func TestProcess_UpdatesBecomeEvents(t *testing.T) {
	tests := []struct {
		name   string
		update tgbotapi.Update
		want   workflow.Event
	}{
		{
			name:   "text",
			update: message(tgbotapi.Message{Text: "door forced open"}),
			want:   workflow.TextReceived{Text: "door forced open"},
		},
		{
			name: "pdf document",
			update: message(tgbotapi.Message{Document: &tgbotapi.Document{
				FileID: "doc1", FileName: "boletim.pdf", MimeType: "application/pdf",
			}}),
			want: workflow.DocumentReceived{Data: []byte("content of doc1"), Filename: "boletim.pdf"},
		},
		{
			name:   "image sent as file",
			update: message(tgbotapi.Message{Document: &tgbotapi.Document{FileID: "img1", MimeType: "image/jpeg"}}),
			want:   workflow.PhotoReceived{Data: []byte("content of img1")},
		},
		{
			name: "largest photo size",
			update: message(tgbotapi.Message{Photo: []tgbotapi.PhotoSize{
				{FileID: "small", Width: 90}, {FileID: "large", Width: 1280},
			}}),
			want: workflow.PhotoReceived{Data: []byte("content of large")},
		},
		{
			name:   "voice",
			update: message(tgbotapi.Message{Voice: &tgbotapi.Voice{FileID: "voice1"}}),
			want:   workflow.VoiceReceived{Data: []byte("content of voice1")},
		},
		{
			name:   "location",
			update: message(tgbotapi.Message{Location: &tgbotapi.Location{Latitude: -8.05, Longitude: -34.9}}),
			want:   workflow.LocationReceived{Latitude: -8.05, Longitude: -34.9},
		},
		{
			name: "new case command",
			update: message(tgbotapi.Message{Text: "/new", Entities: []tgbotapi.MessageEntity{
				{Type: "bot_command", Offset: 0, Length: 4},
			}}),
			want: workflow.StartCase{},
		},
		{
			name: "callback button",
			update: tgbotapi.Update{UpdateID: 2, CallbackQuery: &tgbotapi.CallbackQuery{
				ID:      "cb1",
				From:    &tgbotapi.User{ID: userID},
				Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}},
				Data:    "fp:SEPPATRI_12_345_2024:ev-0002",
			}},
			want: workflow.MarkFingerprint{CaseID: "SEPPATRI_12_345_2024", PhotoID: "ev-0002"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter, _, rec := newAdapter(t)
			adapter.Process(context.Background(), tt.update)
			require.Equal(t, []workflow.Event{tt.want}, rec.events)
		})
	}
}

func TestProcess_CallbackIsAnswered(t *testing.T) {
	adapter, bot, _ := newAdapter(t)
	adapter.Process(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID: "cb1", From: &tgbotapi.User{ID: userID}, Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}},
		Data: "status",
	}})
	require.Len(t, bot.requests, 1)
	callback, ok := bot.requests[0].(tgbotapi.CallbackConfig)
	require.True(t, ok)
	require.Equal(t, "cb1", callback.CallbackQueryID)
}

func TestProcess_UnknownUserIgnored(t *testing.T) {
	adapter, bot, rec := newAdapter(t, 42)
	adapter.Process(context.Background(), message(tgbotapi.Message{Text: "hello"}))
	require.Empty(t, rec.events)
	require.Empty(t, bot.sent)
}

func TestProcess_DownloadFailureWarns(t *testing.T) {
	adapter, bot, rec := newAdapter(t)
	adapter.Process(context.Background(), message(tgbotapi.Message{Voice: &tgbotapi.Voice{FileID: "missing"}}))
	require.Empty(t, rec.events)
	require.Len(t, bot.sent, 1)
	warning, ok := bot.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	require.Contains(t, warning.Text, "try again")
}

func TestDeliver(t *testing.T) {
	adapter, bot, _ := newAdapter(t)
	adapter.Deliver(context.Background(), chatID, []workflow.Directive{
		workflow.ShowPrompt{Text: "Send the PDF", Buttons: []workflow.Button{{Label: "Cancel", Action: "cancel"}}},
		workflow.ShowLocation{Latitude: 1, Longitude: 2},
		workflow.Warn{Text: "careful"},
	})
	require.Len(t, bot.sent, 3)

	prompt, ok := bot.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	require.Equal(t, "Send the PDF", prompt.Text)
	markup, ok := prompt.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Equal(t, "cancel", *markup.InlineKeyboard[0][0].CallbackData)

	location, ok := bot.sent[1].(tgbotapi.LocationConfig)
	require.True(t, ok)
	require.InDelta(t, 2, location.Longitude, 1e-9)

	warning, ok := bot.sent[2].(tgbotapi.MessageConfig)
	require.True(t, ok)
	require.Equal(t, "⚠️ careful", warning.Text)
}

func TestDeliver_PinnedStatus(t *testing.T) {
	adapter, bot, _ := newAdapter(t)
	ctx := context.Background()

	adapter.Deliver(ctx, chatID, []workflow.Directive{workflow.Pin{Text: "photos: 0"}})
	require.Len(t, bot.sent, 1)
	require.Len(t, bot.requests, 1)
	pin, ok := bot.requests[0].(tgbotapi.PinChatMessageConfig)
	require.True(t, ok)
	require.Equal(t, 1, pin.MessageID)

	// The second status edits the pinned message in place.
	adapter.Deliver(ctx, chatID, []workflow.Directive{workflow.Pin{Text: "photos: 1"}})
	edit, ok := bot.sent[1].(tgbotapi.EditMessageTextConfig)
	require.True(t, ok)
	require.Equal(t, 1, edit.MessageID)
	require.Equal(t, "photos: 1", edit.Text)

	adapter.Deliver(ctx, chatID, []workflow.Directive{workflow.Unpin{}})
	_, ok = bot.requests[1].(tgbotapi.UnpinAllChatMessagesConfig)
	require.True(t, ok)

	// After unpinning a new status message is pinned.
	adapter.Deliver(ctx, chatID, []workflow.Directive{workflow.Pin{Text: "photos: 0"}})
	_, ok = bot.requests[2].(tgbotapi.PinChatMessageConfig)
	require.True(t, ok)
}

func TestDeliver_PinFallsBackWhenEditFails(t *testing.T) {
	adapter, bot, _ := newAdapter(t)
	ctx := context.Background()
	adapter.Deliver(ctx, chatID, []workflow.Directive{workflow.Pin{Text: "a"}})
	bot.failEdits = true
	adapter.Deliver(ctx, chatID, []workflow.Directive{workflow.Pin{Text: "b"}})

	require.Len(t, bot.requests, 2)
	pin, ok := bot.requests[1].(tgbotapi.PinChatMessageConfig)
	require.True(t, ok)
	require.Equal(t, 2, pin.MessageID)
}

func TestBroadcast(t *testing.T) {
	adapter, bot, _ := newAdapter(t, 7, 8)
	adapter.Broadcast(context.Background(), []workflow.Directive{workflow.ShowPrompt{Text: "resumed"}})
	require.Len(t, bot.sent, 2)
	chats := map[int64]bool{}
	for _, c := range bot.sent {
		msg, ok := c.(tgbotapi.MessageConfig)
		require.True(t, ok)
		chats[msg.ChatID] = true
	}
	require.Equal(t, map[int64]bool{7: true, 8: true}, chats)
}
