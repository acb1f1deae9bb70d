package main

import (
	"context"
	"encoding/json"
	"github.com/myrjola/casebot/internal/errors"
	"github.com/myrjola/casebot/internal/logging"
	"github.com/myrjola/casebot/internal/models"
	"log/slog"
	"net/http"
	"os"
	"time"
)

func getJSON(ctx context.Context, client *http.Client, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request", slog.String("url", url))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.New("unexpected status", slog.String("url", url), slog.Int("status", resp.StatusCode))
	}
	if err = json.NewDecoder(resp.Body).Decode(v); err != nil {
		return errors.Wrap(err, "decode response", slog.String("url", url))
	}
	return nil
}

// TestAdmin checks that the deployed bot is healthy and that its persisted state is consistent.
func TestAdmin(ctx context.Context, baseURL string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second) //nolint:mnd // 10 seconds
	defer cancel()
	client := &http.Client{} //nolint:exhaustruct // defaults are fine

	var health struct {
		Status string `json:"status"`
	}
	if err := getJSON(ctx, client, baseURL+"/healthy", &health); err != nil {
		return err
	}
	if health.Status != "ok" {
		return errors.New("not healthy", slog.String("status", health.Status))
	}

	var state models.AppState
	if err := getJSON(ctx, client, baseURL+"/api/state", &state); err != nil {
		return err
	}
	if err := state.Validate(); err != nil {
		return errors.Wrap(err, "invalid state")
	}
	var cases []models.CaseOverview
	if err := getJSON(ctx, client, baseURL+"/api/cases", &cases); err != nil {
		return err
	}
	for _, c := range cases {
		if !c.Finished() && c.ID != state.CaseID() {
			return errors.New("unfinished case is not the active case", slog.String("case_id", c.ID))
		}
	}
	return nil
}

func main() {
	loggerHandler := logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	}))
	logger := slog.New(loggerHandler)
	ctx := context.Background()

	if len(os.Args) != 2 { //nolint:mnd // we expect only the admin address to be passed as argument.
		logger.LogAttrs(ctx, slog.LevelError, "usage: smoketest <admin address>")
		os.Exit(1)
	}

	url := "http://" + os.Args[1]
	ctx = logging.WithAttrs(ctx, slog.String("url", url))

	if err := TestAdmin(ctx, url); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error testing admin server", errors.SlogError(err))
		os.Exit(1)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "Smoke test successful 🙌")
	os.Exit(0)
}
