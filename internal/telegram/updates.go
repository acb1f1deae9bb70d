package telegram

import (
	"context"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/myrjola/casebot/internal/errors"
	"github.com/myrjola/casebot/internal/workflow"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
)

// maxDownloadBytes matches the Bot API limit for files bots can download.
const maxDownloadBytes = 20 << 20

var ErrUnsupportedUpdate = errors.NewSentinel("unsupported update")

// sender returns the user and chat of an update.
func sender(update tgbotapi.Update) (userID, chatID int64, ok bool) {
	switch {
	case update.Message != nil && update.Message.From != nil && update.Message.Chat != nil:
		return update.Message.From.ID, update.Message.Chat.ID, true
	case update.CallbackQuery != nil && update.CallbackQuery.From != nil && update.CallbackQuery.Message != nil &&
		update.CallbackQuery.Message.Chat != nil:
		return update.CallbackQuery.From.ID, update.CallbackQuery.Message.Chat.ID, true
	default:
		return 0, 0, false
	}
}

// toEvent converts an update into a workflow event, downloading attached files.
func (a *Adapter) toEvent(ctx context.Context, update tgbotapi.Update) (workflow.Event, error) {
	if q := update.CallbackQuery; q != nil {
		ev, err := workflow.ParseAction(q.Data)
		if err != nil {
			return nil, errors.Wrap(err, "parse callback")
		}
		return ev, nil
	}

	msg := update.Message
	if msg == nil {
		return nil, errors.Wrap(ErrUnsupportedUpdate, "no message")
	}
	switch {
	case msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/"):
		data, err := a.download(ctx, msg.Document.FileID)
		if err != nil {
			return nil, err
		}
		return workflow.PhotoReceived{CaseID: "", Data: data}, nil
	case msg.Document != nil:
		data, err := a.download(ctx, msg.Document.FileID)
		if err != nil {
			return nil, err
		}
		return workflow.DocumentReceived{Data: data, Filename: msg.Document.FileName}, nil
	case len(msg.Photo) > 0:
		// Telegram lists the sizes of a photo from smallest to largest.
		data, err := a.download(ctx, msg.Photo[len(msg.Photo)-1].FileID)
		if err != nil {
			return nil, err
		}
		return workflow.PhotoReceived{CaseID: "", Data: data}, nil
	case msg.Voice != nil:
		data, err := a.download(ctx, msg.Voice.FileID)
		if err != nil {
			return nil, err
		}
		return workflow.VoiceReceived{CaseID: "", Data: data}, nil
	case msg.Audio != nil:
		data, err := a.download(ctx, msg.Audio.FileID)
		if err != nil {
			return nil, err
		}
		return workflow.VoiceReceived{CaseID: "", Data: data}, nil
	case msg.Location != nil:
		return workflow.LocationReceived{CaseID: "", Latitude: msg.Location.Latitude,
			Longitude: msg.Location.Longitude}, nil
	case msg.IsCommand():
		return command(msg.Command()), nil
	case strings.TrimSpace(msg.Text) != "":
		return workflow.TextReceived{CaseID: "", Text: msg.Text}, nil
	default:
		return nil, errors.Wrap(ErrUnsupportedUpdate, "message without supported content",
			slog.Int("message_id", msg.MessageID))
	}
}

// command maps slash commands to events. Unknown commands show the status.
func command(name string) workflow.Event {
	switch name {
	case "new":
		return workflow.StartCase{}
	case "cancel":
		return workflow.Cancel{}
	case "finish":
		return workflow.RequestFinish{CaseID: ""}
	default:
		return workflow.ShowStatus{}
	}
}

func (a *Adapter) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := a.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, errors.Wrap(err, "get file url", slog.String("file_id", fileID))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "download file", slog.String("file", path.Base(req.URL.Path)))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("download file failed", slog.Int("status", resp.StatusCode))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}
	if len(data) > maxDownloadBytes {
		return nil, errors.New("file too large", slog.Int("limit", maxDownloadBytes))
	}
	return data, nil
}
