package main

import (
	"context"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/myrjola/casebot/internal/dispatch"
	"github.com/myrjola/casebot/internal/errors"
	"github.com/myrjola/casebot/internal/telegram"
	"log/slog"
)

const (
	longPollSeconds = 60
	updateBacklog   = 100
)

// pollTelegram feeds long-polled updates to the adapter one at a time until ctx is done.
func (app *application) pollTelegram(ctx context.Context, bot *tgbotapi.BotAPI, adapter *telegram.Adapter) {
	worker := dispatch.NewDispatcher(app.logger, updateBacklog, adapter.Process)
	go worker.Start(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = longPollSeconds
	updates := bot.GetUpdatesChan(u)
	app.logger.LogAttrs(ctx, slog.LevelInfo, "polling telegram updates")

	for {
		select {
		case <-ctx.Done():
			bot.StopReceivingUpdates()
			worker.Stop()
			app.logger.LogAttrs(context.Background(), slog.LevelInfo, "stopped polling telegram updates")
			return
		case update, ok := <-updates:
			if !ok {
				worker.Stop()
				return
			}
			if err := worker.Submit(ctx, update); err != nil {
				app.logger.LogAttrs(ctx, slog.LevelWarn, "dropping update", slog.Int("update_id", update.UpdateID),
					errors.SlogError(err))
			}
		}
	}
}
