package slack

import (
	"context"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-assistant/internal/config"
)

type poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Notifier posts plain-text messages to one channel. Without a bot token it
// only logs.
type Notifier struct {
	api     poster
	channel string
	logger  *zap.Logger
}

// NewNotifier builds the notifier from configuration.
func NewNotifier(cfg config.SlackConfig, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &Notifier{channel: cfg.ChannelID, logger: logger}
	if cfg.Configured() {
		n.api = slack.New(cfg.BotToken)
	}
	return n
}

// Enabled reports whether messages reach Slack.
func (n *Notifier) Enabled() bool {
	return n != nil && n.api != nil && n.channel != ""
}

// Post sends text to the configured channel.
func (n *Notifier) Post(ctx context.Context, text string) error {
	if !n.Enabled() {
		if n != nil {
			n.logger.Debug("slack disabled; dropping message", zap.String("text", text))
		}
		return nil
	}
	_, ts, err := n.api.PostMessageContext(ctx, n.channel, slack.MsgOptionText(text, false))
	if err != nil {
		return err
	}
	n.logger.Debug("slack message posted", zap.String("channel", n.channel), zap.String("ts", ts))
	return nil
}
