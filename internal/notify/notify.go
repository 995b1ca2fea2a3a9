// Package notify posts import-job failure alerts to Slack. Grounded in
// slack/bot/client.go's thin wrapper around *slack.Client with
// retry.Do around outbound calls, scaled down to the one notification
// this importer needs to send.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"

	"github.com/kbo-data/importer/internal/retry"
)

// Notifier posts job failure alerts to a configured Slack channel. A
// Notifier with an empty token is a no-op, so the importer can run
// without Slack configured in local/dev environments.
type Notifier struct {
	api     *slack.Client
	channel string
	log     *slog.Logger
}

// New builds a Notifier. If token is empty, NotifyJobFailed becomes a no-op.
func New(token, channel string, log *slog.Logger) *Notifier {
	var api *slack.Client
	if token != "" {
		api = slack.New(token)
	}
	return &Notifier{api: api, channel: channel, log: log}
}

// NotifyJobFailed posts an alert for a job that moved to the failed
// state, including the extract identity and the error that caused it.
func (n *Notifier) NotifyJobFailed(ctx context.Context, jobID string, extractNumber int64, extractType, errMsg string) error {
	if n.api == nil {
		n.log.Debug("slack not configured, skipping failure notification", "job_id", jobID)
		return nil
	}

	text := fmt.Sprintf(":x: import job `%s` failed (extract %d/%s): %s", jobID, extractNumber, extractType, errMsg)

	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
		_, _, err := n.api.PostMessageContext(ctx, n.channel, slack.MsgOptionText(text, false))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to post slack notification for job %s: %w", jobID, err)
	}
	return nil
}
