package telegramimpl

import (
	"fmt"
	"strings"

	"github.com/AhmedNaeem5575/insta-story/internal/domain"
	"github.com/AhmedNaeem5575/insta-story/internal/notify"
	"github.com/AhmedNaeem5575/insta-story/pkg/config"
	"github.com/AhmedNaeem5575/insta-story/pkg/logger"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/fx"
)

type Opts struct {
	fx.In

	Config *config.Config
	Logger logger.Logger
}

type TelegramImpl struct {
	TgBot  *tgbotapi.BotAPI
	Logger logger.Logger
	Config *config.Config

	// send is swappable in tests.
	send func(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

func New(opts Opts) (*TelegramImpl, error) {
	tgBot, err := tgbotapi.NewBotAPI(opts.Config.Telegram.Token)
	if err != nil {
		opts.Logger.Error("Error creating bot", "Error", err)
		return nil, err
	}

	return &TelegramImpl{
		TgBot:  tgBot,
		Logger: opts.Logger,
		Config: opts.Config,
		send:   tgBot.Send,
	}, nil
}

var _ notify.Notifier = (*TelegramImpl)(nil)

func (t *TelegramImpl) NotifyBatch(batch *domain.StoryBatch, events []string) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Scraped %s at %s: %d stories\n",
		batch.Username, batch.ScrapedAt.Format("2006-01-02 15:04:05"), batch.TotalStories)

	for _, item := range batch.Stories {
		kind := "image"
		if item.IsVideo {
			kind = "video"
		}
		fmt.Fprintf(&sb, "- %s (%s) %s\n", item.ID, kind, item.MediaURL)
	}

	if len(events) > 0 {
		sb.WriteString("\nRun log:\n")
		for _, line := range events {
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	}

	text := sb.String()
	if err := t.deliver(tgbotapi.NewMessage(t.Config.Telegram.User, text)); err != nil {
		return err
	}

	// Batch summaries also go to the broadcast channel when one is set up.
	if channel := t.Config.Telegram.Channel; channel != "" {
		return t.deliver(tgbotapi.NewMessageToChannel(channel, text))
	}
	return nil
}

func (t *TelegramImpl) NotifyError(message string) error {
	return t.deliver(tgbotapi.NewMessage(t.Config.Telegram.User, "Scrape error: "+message))
}

func (t *TelegramImpl) deliver(msg tgbotapi.Chattable) error {
	if _, err := t.send(msg); err != nil {
		t.Logger.Error("Failed to send telegram message", "error", err)
		return err
	}
	return nil
}
