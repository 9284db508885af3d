// Package telegram delivers chat notifications through the Telegram Bot API.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"notification-workers/internal/channel"
	commonhttp "notification-workers/internal/common/http"
	"notification-workers/internal/common/logger"
	"notification-workers/internal/models"
)

const userAgent = "notification-workers/telegram"

// API is the part of the bot client used for delivery.
type API interface {
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
	GetMe() (tgbotapi.User, error)
}

// BotConfig holds the bot credentials and transport settings.
type BotConfig struct {
	Token       string
	APIEndpoint string // printf format with token and method, as tgbotapi.APIEndpoint
	Timeout     time.Duration
}

// NewBot builds a bot client without calling getMe, so an unreachable API
// does not prevent startup.
func NewBot(cfg BotConfig) *tgbotapi.BotAPI {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	bot := &tgbotapi.BotAPI{
		Token:  cfg.Token,
		Client: commonhttp.NewClient(cfg.Timeout, userAgent),
		Buffer: 100,
	}
	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot.SetAPIEndpoint(endpoint)
	return bot
}

// Sender sends text messages to chats.
type Sender struct {
	api       API
	parseMode string
	log       logger.Logger
}

type Option func(*Sender)

// WithParseMode sets the parse mode used when a job does not choose one.
func WithParseMode(mode string) Option {
	return func(s *Sender) { s.parseMode = mode }
}

func WithLogger(l logger.Logger) Option {
	return func(s *Sender) { s.log = l }
}

func NewSender(api API, opts ...Option) *Sender {
	s := &Sender{
		api:       api,
		parseMode: tgbotapi.ModeHTML,
		log:       logger.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send posts message to opts.RecipientID. Rejections by the API (bad
// request, bot blocked) are returned as a failed outcome, everything else
// as an error.
func (s *Sender) Send(ctx context.Context, message string, opts models.ChatOptions) (*models.Outcome, error) {
	if opts.RecipientID == "" {
		return channel.Result(models.ChannelTelegram, "", channel.Permanent(errors.New("no recipient chat id")))
	}
	if err := ctx.Err(); err != nil {
		return channel.Result(models.ChannelTelegram, "", err)
	}

	params, err := s.params(message, opts)
	if err != nil {
		return channel.Result(models.ChannelTelegram, "", channel.Permanent(err))
	}

	resp, err := s.api.MakeRequest("sendMessage", params)
	if err != nil {
		return channel.Result(models.ChannelTelegram, "", classify(err))
	}

	var sent tgbotapi.Message
	if err := json.Unmarshal(resp.Result, &sent); err != nil {
		// the message went out; only the id is unknown
		s.log.Warn("Could not decode sendMessage result", map[string]interface{}{
			"recipientId": opts.RecipientID,
			"error":       err.Error(),
		})
		return channel.Result(models.ChannelTelegram, "", nil)
	}
	return channel.Result(models.ChannelTelegram, strconv.Itoa(sent.MessageID), nil)
}

func (s *Sender) params(message string, opts models.ChatOptions) (tgbotapi.Params, error) {
	parseMode := opts.ParseMode
	if parseMode == "" {
		parseMode = s.parseMode
	}

	params := tgbotapi.Params{}
	params["chat_id"] = opts.RecipientID
	params["text"] = message
	params.AddNonEmpty("parse_mode", parseMode)
	params.AddBool("disable_notification", opts.DisableNotification)
	params.AddNonZero("reply_to_message_id", opts.ReplyToMessageID)

	for key, value := range opts.Extra {
		if str, ok := value.(string); ok {
			params[key] = str
			continue
		}
		if err := params.AddInterface(key, value); err != nil {
			return nil, fmt.Errorf("extra %s: %w", key, err)
		}
	}
	return params, nil
}

func classify(err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusBadRequest, http.StatusForbidden:
			return channel.Permanent(fmt.Errorf("telegram %d: %s", apiErr.Code, apiErr.Message))
		}
		return fmt.Errorf("telegram %d: %s", apiErr.Code, apiErr.Message)
	}
	return err
}

// VerifyConnection calls getMe. A failure is logged and reported as false.
func (s *Sender) VerifyConnection(ctx context.Context) bool {
	me, err := s.api.GetMe()
	if err != nil {
		s.log.Warn("Telegram bot verification failed", map[string]interface{}{"error": err.Error()})
		return false
	}
	s.log.Info("Telegram bot verified", map[string]interface{}{"username": me.UserName})
	return true
}
