package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/ozonscout/backend/internal/domain"
	"go.uber.org/zap"
)

// Sender is the part of the Telegram API the bot talks through
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// SearchService is the pipeline the bot delegates to
type SearchService interface {
	Search(ctx context.Context, productURL string, mode domain.SortMode) (*domain.SearchResult, error)
	ResolveName(ctx context.Context, productURL string) (domain.Identity, error)
}

// Config holds bot timeouts
type Config struct {
	SortTimeout     time.Duration // search runs with DefaultSort when the user does not choose
	FeedbackTimeout time.Duration // delay before asking for a rating
	DefaultSort     domain.SortMode
}

// Bot drives the search conversation for every chat
type Bot struct {
	api      Sender
	service  SearchService
	sessions *SessionStore
	config   Config
	logger   *zap.Logger
	wg       sync.WaitGroup
}

// NewBot creates a new bot
func NewBot(api Sender, service SearchService, sessions *SessionStore, config Config, logger *zap.Logger) *Bot {
	if config.SortTimeout == 0 {
		config.SortTimeout = 5 * time.Minute
	}
	if config.FeedbackTimeout == 0 {
		config.FeedbackTimeout = 5 * time.Minute
	}
	if config.DefaultSort == "" {
		config.DefaultSort = domain.SortPrice
	}
	if sessions == nil {
		sessions = NewSessionStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Bot{
		api:      api,
		service:  service,
		sessions: sessions,
		config:   config,
		logger:   logger.Named("bot"),
	}
}

// Run handles updates until ctx is cancelled or the channel closes, then waits
// for in-flight handlers and disarms all timers
func (b *Bot) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) error {
	defer func() {
		b.wg.Wait()
		b.sessions.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.HandleUpdate(ctx, update)
			}()
		}
	}
}

// HandleUpdate dispatches one update
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			b.deleteMessage(chatID, msg.MessageID)
			b.sessions.Clear(chatID)
			b.sendText(chatID, startMessage, nil)
		case "searchitems":
			b.deleteMessage(chatID, msg.MessageID)
			b.sessions.Transition(chatID, StateAwaitingURL, Pending{})
			b.sendText(chatID, searchItemsMessage, nil)
		default:
			b.sendText(chatID, useSearchMessage, nil)
		}
		return
	}

	text := strings.TrimSpace(msg.Text)
	switch state := b.sessions.State(chatID); {
	case state == StateAwaitingURL && strings.HasPrefix(text, "https://"):
		b.resolve(ctx, chatID, text)
	case state == StateAwaitingComment && text != "" && !strings.Contains(text, "https"):
		b.sessions.Clear(chatID)
		b.logger.Info("feedback comment", zap.Int64("chat_id", chatID), zap.String("comment", text))
		b.sendText(chatID, commentMessage, nil)
	case state == StateAwaitingURL:
		b.sendText(chatID, searchItemsMessage, nil)
	default:
		b.sendText(chatID, useSearchMessage, nil)
	}
}

func (b *Bot) resolve(ctx context.Context, chatID int64, productURL string) {
	identity, err := b.service.ResolveName(ctx, productURL)
	if errors.Is(err, domain.ErrIdentityNotRecognized) {
		// stay in awaiting_url so the user can send another link
		b.sendText(chatID, notRecognizedMessage, nil)
		return
	}
	if err != nil {
		b.logger.Error("name resolution failed", zap.Int64("chat_id", chatID), zap.String("url", productURL), zap.Error(err))
		b.sessions.Clear(chatID)
		b.sendText(chatID, failureMessage, nil)
		return
	}

	pending := Pending{ProductURL: productURL, Name: identity.Name, SKU: identity.SKU}
	gen := b.sessions.Transition(chatID, StateAwaitingSort, pending)
	b.sendText(chatID, fmt.Sprintf(searchAnswerMessage, html.EscapeString(identity.Name)), sortKeyboard())

	b.sessions.Schedule(chatID, gen, b.config.SortTimeout, func(p Pending) {
		b.logger.Info("sort choice timed out", zap.Int64("chat_id", chatID), zap.String("default", string(b.config.DefaultSort)))
		b.search(ctx, chatID, p, b.config.DefaultSort)
	})
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil || cb.Message.Chat == nil {
		b.answerCallback(cb.ID, "")
		return
	}
	chatID := cb.Message.Chat.ID

	switch {
	case strings.HasPrefix(cb.Data, sortPrefix):
		mode, err := domain.ParseSortMode(strings.TrimPrefix(cb.Data, sortPrefix))
		if err != nil {
			b.answerCallback(cb.ID, sessionExpired)
			return
		}
		pending, ok := b.sessions.Take(chatID, StateAwaitingSort)
		if !ok {
			b.answerCallback(cb.ID, sessionExpired)
			return
		}
		b.answerCallback(cb.ID, "")
		b.sendText(chatID, awaitMessage, nil)
		b.search(ctx, chatID, pending, mode)

	case strings.HasPrefix(cb.Data, starPrefix):
		stars, err := strconv.Atoi(strings.TrimPrefix(cb.Data, starPrefix))
		if err != nil || stars < 1 || stars > 5 {
			b.answerCallback(cb.ID, "")
			return
		}
		b.answerCallback(cb.ID, "")
		b.logger.Info("feedback stars", zap.Int64("chat_id", chatID), zap.Int("stars", stars))
		b.sessions.Transition(chatID, StateAwaitingComment, Pending{})
		b.sendText(chatID, thanksMessage, nil)

	default:
		b.answerCallback(cb.ID, "")
	}
}

// search runs the pipeline and delivers the result; afterwards the feedback timer is armed
func (b *Bot) search(ctx context.Context, chatID int64, p Pending, mode domain.SortMode) {
	log := b.logger.With(zap.Int64("chat_id", chatID), zap.String("name", p.Name), zap.String("sort", string(mode)))

	result, err := b.service.Search(ctx, p.ProductURL, mode)
	if err != nil {
		log.Error("search failed", zap.Error(err))
		b.sessions.Clear(chatID)
		b.sendText(chatID, failureMessage, nil)
		return
	}

	switch {
	case result.Message == domain.MessageNameNotRecognized:
		b.sessions.Clear(chatID)
		b.sendText(chatID, notRecognizedMessage, nil)
		return
	case result.Details == nil || len(result.Details.ProductsData) == 0:
		b.sessions.Clear(chatID)
		b.sendText(chatID, noProductsMessage, nil)
		return
	}

	log.Info("delivering results", zap.String("message", result.Message))
	b.deliver(chatID, result.Details)

	gen := b.sessions.Transition(chatID, StateAwaitingFeedback, Pending{})
	b.sessions.Schedule(chatID, gen, b.config.FeedbackTimeout, func(Pending) {
		b.sendText(chatID, feedbackMessage, starsKeyboard())
	})
}

func (b *Bot) deliver(chatID int64, details *domain.ProductResult) {
	if details.ProductImage != nil && *details.ProductImage != "" {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(*details.ProductImage))
		photo.Caption = RenderTopProduct(details, MaxCaption)
		photo.ParseMode = tgbotapi.ModeHTML
		if _, err := b.api.Send(photo); err != nil {
			b.logger.Warn("photo send failed, falling back to text", zap.Int64("chat_id", chatID), zap.Error(err))
			b.sendText(chatID, RenderTopProduct(details, MaxDescription), nil)
		}
	} else {
		b.sendText(chatID, RenderTopProduct(details, MaxDescription), nil)
	}

	b.sendText(chatID, RenderProductList(details), nil)
	b.sendText(chatID, endMessage, nil)
}

func (b *Bot) sendText(chatID int64, text string, markup *tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if markup != nil {
		msg.ReplyMarkup = *markup
	}
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("send failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) answerCallback(id, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(id, text)); err != nil {
		b.logger.Debug("callback answer failed", zap.Error(err))
	}
}

func (b *Bot) deleteMessage(chatID int64, messageID int) {
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		b.logger.Debug("delete message failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func sortKeyboard() *tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(sortButtons))
	for _, button := range sortButtons {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(button.Label, sortPrefix+string(button.Mode)),
		))
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}

func starsKeyboard() *tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, 5)
	for star := 1; star <= 5; star++ {
		label := strconv.Itoa(star)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, starPrefix+label),
		))
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}
