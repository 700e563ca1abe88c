// Package bot adapts the neutral chat prompts to the Telegram Bot API.
package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"kamadata-bot/internal/chat"
	"kamadata-bot/pkg/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// ErrDelivery wraps every failure to reach the chat platform.
var ErrDelivery = errors.New("delivery failure")

// maxDownload is the largest document the bot accepts.
const maxDownload = 20 << 20

type Bot struct {
	API    *tgbotapi.BotAPI
	client *http.Client
	logger *zap.Logger
}

// New connects with token. endpoint overrides the API host; it uses the
// tgbotapi format with two %s verbs for token and method.
func New(token, endpoint string, log *zap.Logger) (*Bot, error) {
	var (
		api *tgbotapi.BotAPI
		err error
	)
	if endpoint != "" {
		api, err = tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	} else {
		api, err = tgbotapi.NewBotAPI(token)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	log = log.With(zap.String(logger.FieldComponent, "bot"))
	log.Info("Authorized on account", zap.String("username", api.Self.UserName))

	return &Bot{
		API:    api,
		client: &http.Client{Timeout: 60 * time.Second},
		logger: log,
	}, nil
}

// Send delivers the prompt text with its keyboard, then every attachment as
// a separate document.
func (b *Bot) Send(ctx context.Context, chatID int64, p chat.Prompt) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(chatID, p.Text)
	if markup, ok := Keyboard(p.Buttons); ok {
		msg.ReplyMarkup = markup
	}
	if _, err := b.API.Send(msg); err != nil {
		return fmt.Errorf("%w: send to %d: %w", ErrDelivery, chatID, err)
	}

	for _, a := range p.Attachments {
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: a.Name, Bytes: a.Data})
		if _, err := b.API.Send(doc); err != nil {
			return fmt.Errorf("%w: send %s to %d: %w", ErrDelivery, a.Name, chatID, err)
		}
	}
	return nil
}

// Edit replaces the text and keyboard of an earlier message. Attachments
// cannot be edited in and are sent as new documents.
func (b *Bot) Edit(ctx context.Context, chatID int64, messageID int, p chat.Prompt) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewEditMessageText(chatID, messageID, p.Text)
	if markup, ok := Keyboard(p.Buttons); ok {
		msg.ReplyMarkup = &markup
	}
	if _, err := b.API.Send(msg); err != nil {
		return fmt.Errorf("%w: edit %d in %d: %w", ErrDelivery, messageID, chatID, err)
	}

	if len(p.Attachments) > 0 {
		return b.Send(ctx, chatID, chat.Prompt{Text: "📎", Attachments: p.Attachments})
	}
	return nil
}

func (b *Bot) AnswerCallback(_ context.Context, callbackID, text string) error {
	callback := tgbotapi.NewCallback(callbackID, text)
	if _, err := b.API.Request(callback); err != nil {
		return fmt.Errorf("%w: answer callback: %w", ErrDelivery, err)
	}
	return nil
}

// Download fetches an uploaded file by its platform file ID.
func (b *Bot) Download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.API.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve file %s: %w", ErrDelivery, fileID, err)
	}
	return fetch(ctx, b.client, url)
}

func fetch(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: download: %w", ErrDelivery, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: download: status %s", ErrDelivery, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownload+1))
	if err != nil {
		return nil, fmt.Errorf("%w: download: %w", ErrDelivery, err)
	}
	if len(data) > maxDownload {
		return nil, fmt.Errorf("%w: file larger than %d bytes", ErrDelivery, maxDownload)
	}
	return data, nil
}

// Keyboard converts button rows to an inline keyboard. ok is false when
// there are no buttons.
func Keyboard(rows [][]chat.Button) (tgbotapi.InlineKeyboardMarkup, bool) {
	var out [][]tgbotapi.InlineKeyboardButton
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(btn.Label, btn.Data))
		}
		out = append(out, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	if len(out) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	return tgbotapi.NewInlineKeyboardMarkup(out...), true
}
