// Telegram Bot API implementation of [tasks.Publisher]
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackdrop/internal/models"
	"github.com/desertthunder/trackdrop/internal/shared"
	tele "gopkg.in/telebot.v3"
)

const telegramAPIURL = "https://api.telegram.org"

// TelegramOptions configures [TelegramService].
type TelegramOptions struct {
	APIURL     string
	HTTPClient *http.Client
	Logger     *log.Logger
}

// TelegramService posts audio to Telegram channels. One bot client is kept per token.
// It satisfies tasks.Publisher.
type TelegramService struct {
	apiURL string
	client *http.Client
	logger *log.Logger

	mu   sync.Mutex
	bots map[string]*tele.Bot
}

// Channel is a channel a bot has seen in its pending updates.
type Channel struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Username string `json:"username,omitempty"`
}

type channelID string

func (c channelID) Recipient() string { return string(c) }

// NewTelegramService creates a publisher. Bots are created lazily per token.
func NewTelegramService(opts TelegramOptions) *TelegramService {
	if opts.APIURL == "" {
		opts.APIURL = telegramAPIURL
	}
	if opts.HTTPClient == nil {
		// Audio uploads outlast the short default client timeout.
		opts.HTTPClient = &http.Client{Timeout: 5 * time.Minute}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &TelegramService{
		apiURL: strings.TrimRight(opts.APIURL, "/"),
		client: opts.HTTPClient,
		logger: opts.Logger.WithPrefix("telegram"),
		bots:   make(map[string]*tele.Bot),
	}
}

func (s *TelegramService) Name() string {
	return "Telegram"
}

func (s *TelegramService) bot(token string) (*tele.Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty bot token", shared.ErrPublishAuth)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.bots[token]; ok {
		return b, nil
	}

	b, err := tele.NewBot(tele.Settings{
		URL:     s.apiURL,
		Token:   token,
		Client:  s.client,
		Offline: true,
		OnError: func(err error, _ tele.Context) {
			s.logger.Error("bot error", "error", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create bot: %v", shared.ErrPublish, err)
	}

	s.bots[token] = b
	return b, nil
}

// Caption renders the HTML caption linking the catalog and source pages.
func Caption(catalogURL, sourceURL string) string {
	return fmt.Sprintf(`<b>Listen on: <a href="%s">Spotify</a> | <a href="%s">YouTube</a></b>`,
		html.EscapeString(catalogURL), html.EscapeString(sourceURL))
}

// Publish sends the asset as an audio message to the destination channel.
//
// Rejected tokens, missing chats and revoked channel access wrap [shared.ErrPublishAuth].
// Every other failure wraps [shared.ErrPublish].
func (s *TelegramService) Publish(ctx context.Context, dest models.Destination, asset *models.Asset, meta models.Metadata) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrPublish, err)
	}
	if asset == nil || asset.Path == "" {
		return fmt.Errorf("%w: no audio to send", shared.ErrPublish)
	}

	b, err := s.bot(dest.Token)
	if err != nil {
		return err
	}

	audio := &tele.Audio{
		File:      tele.FromDisk(asset.Path),
		Duration:  meta.Duration,
		Caption:   Caption(meta.CatalogURL, meta.SourceURL),
		Title:     meta.Title,
		Performer: meta.Performer,
		FileName:  filepath.Base(asset.Path),
	}
	if meta.ArtworkPath != "" {
		audio.Thumbnail = &tele.Photo{File: tele.FromDisk(meta.ArtworkPath)}
	}

	msg, err := b.Send(channelID(dest.ChannelID), audio, &tele.SendOptions{ParseMode: tele.ModeHTML})
	if err != nil {
		return classifyPublishError(err)
	}

	s.logger.Debug("sent audio", "channel", dest.ChannelID, "title", meta.Title, "message", msg.ID)
	return nil
}

// classifyPublishError separates credential faults, which will repeat for every track, from per-track failures.
func classifyPublishError(err error) error {
	if isCredentialFault(err) {
		return fmt.Errorf("%w: %v", shared.ErrPublishAuth, err)
	}
	return fmt.Errorf("%w: %v", shared.ErrPublish, err)
}

func isCredentialFault(err error) bool {
	if errors.Is(err, tele.ErrUnauthorized) || errors.Is(err, tele.ErrChatNotFound) {
		return true
	}

	var te *tele.Error
	if errors.As(err, &te) {
		return te.Code == http.StatusUnauthorized || te.Code == http.StatusForbidden
	}

	// Unrecognized API errors arrive as "telegram: <description> (<code>)".
	msg := strings.ToLower(err.Error())
	return strings.HasSuffix(msg, "(401)") || strings.HasSuffix(msg, "(403)") || strings.Contains(msg, "chat not found")
}

type updatesResponse struct {
	Result []tele.Update `json:"result"`
}

// Channels lists the channels visible in the bot's pending updates, in first-seen order.
//
// Telegram only returns updates from the last 24 hours, so a post in the channel after adding
// the bot is usually needed for it to show up.
func (s *TelegramService) Channels(ctx context.Context, token string) ([]Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b, err := s.bot(token)
	if err != nil {
		return nil, err
	}

	data, err := b.Raw("getUpdates", map[string]string{})
	if err != nil {
		return nil, classifyPublishError(err)
	}

	var resp updatesResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to decode updates: %v", shared.ErrPublish, err)
	}

	seen := make(map[int64]bool)
	var channels []Channel
	for _, u := range resp.Result {
		chat := updateChat(u)
		if chat == nil || chat.Type != tele.ChatChannel || seen[chat.ID] {
			continue
		}
		seen[chat.ID] = true
		channels = append(channels, Channel{ID: chat.ID, Title: chat.Title, Username: chat.Username})
	}
	return channels, nil
}

func updateChat(u tele.Update) *tele.Chat {
	switch {
	case u.Message != nil && u.Message.Chat != nil:
		return u.Message.Chat
	case u.ChannelPost != nil && u.ChannelPost.Chat != nil:
		return u.ChannelPost.Chat
	case u.MyChatMember != nil && u.MyChatMember.Chat != nil:
		return u.MyChatMember.Chat
	}
	return nil
}
