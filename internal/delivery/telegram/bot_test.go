package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/ozonscout/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chatID int64 = 42

const testURL = "https://www.ozon.ru/product/naushniki-x1-123456/"

// fakeSender records everything the bot sends
type fakeSender struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	sendErr  func(tgbotapi.Chattable) error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	if f.sendErr != nil {
		if err := f.sendErr(c); err != nil {
			return tgbotapi.Message{}, err
		}
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

// texts returns message texts and photo captions in send order
func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, m.Text)
		case tgbotapi.PhotoConfig:
			out = append(out, m.Caption)
		}
	}
	return out
}

func (f *fakeSender) lastMessage(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if m, ok := f.sent[i].(tgbotapi.MessageConfig); ok {
			return m
		}
	}
	t.Fatal("no message sent")
	return tgbotapi.MessageConfig{}
}

func (f *fakeSender) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent, f.requests = nil, nil
}

// fakeService counts pipeline calls
type fakeService struct {
	mu         sync.Mutex
	identity   domain.Identity
	resolveErr error
	result     *domain.SearchResult
	searchErr  error
	searches   []domain.SortMode

	entered chan struct{} // signalled when Search starts, if set
	gate    chan struct{} // Search blocks until closed, if set
}

func (f *fakeService) ResolveName(ctx context.Context, url string) (domain.Identity, error) {
	return f.identity, f.resolveErr
}

func (f *fakeService) Search(ctx context.Context, url string, mode domain.SortMode) (*domain.SearchResult, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, mode)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.result, nil
}

func (f *fakeService) modes() []domain.SortMode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.SortMode(nil), f.searches...)
}

func sampleResult() *domain.SearchResult {
	details := &domain.ProductResult{
		ProductName:    "Наушники X1",
		ProductImage:   ptr("https://cdn.ozon.ru/x1.jpg"),
		Description:    "Беспроводные",
		CurrencyPrices: &domain.CurrencyPrices{MinPrice: 1000, MaxPrice: 3000, AvgPrice: 2000},
		ProductsData: []domain.ProductTile{
			{URL: "https://www.ozon.ru/product/a/", Price: ptr(int64(1000))},
		},
	}
	details.Characteristics.Add("Цвет", "черный")
	return &domain.SearchResult{SortMode: domain.SortRating, Message: domain.MessageFreshScrape, Details: details}
}

type harness struct {
	bot      *Bot
	sender   *fakeSender
	service  *fakeService
	sessions *SessionStore
	timers   *fakeTimers
}

func newHarness() *harness {
	sessions, timers := newTestStore()
	sender := &fakeSender{}
	service := &fakeService{
		identity: domain.Identity{Name: "Наушники X1", SKU: 123456},
		result:   sampleResult(),
	}
	bot := NewBot(sender, service, sessions, Config{
		SortTimeout:     5 * time.Minute,
		FeedbackTimeout: 3 * time.Minute,
	}, nil)
	return &harness{bot: bot, sender: sender, service: service, sessions: sessions, timers: timers}
}

func command(name string) tgbotapi.Update {
	text := "/" + name
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 10,
		Chat:      &tgbotapi.Chat{ID: chatID},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
	}}
}

func text(s string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 11,
		Chat:      &tgbotapi.Chat{ID: chatID},
		Text:      s,
	}}
}

func callback(data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		Data:    data,
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}},
	}}
}

func (h *harness) handle(u tgbotapi.Update) {
	h.bot.HandleUpdate(context.Background(), u)
}

func TestBot_Start(t *testing.T) {
	h := newHarness()
	h.handle(command("start"))

	assert.Equal(t, []string{startMessage}, h.sender.texts())
	require.Len(t, h.sender.requests, 1)
	assert.IsType(t, tgbotapi.DeleteMessageConfig{}, h.sender.requests[0])
	assert.Equal(t, StateIdle, h.sessions.State(chatID))
}

func TestBot_FullConversation(t *testing.T) {
	h := newHarness()

	h.handle(command("searchitems"))
	assert.Equal(t, StateAwaitingURL, h.sessions.State(chatID))
	assert.Equal(t, searchItemsMessage, h.sender.lastMessage(t).Text)

	h.handle(text(testURL))
	assert.Equal(t, StateAwaitingSort, h.sessions.State(chatID))
	prompt := h.sender.lastMessage(t)
	assert.Contains(t, prompt.Text, "Наушники X1")
	keyboard, ok := prompt.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, keyboard.InlineKeyboard, 4)
	assert.Equal(t, "Дешевые", keyboard.InlineKeyboard[0][0].Text)
	assert.Equal(t, "sort_price", *keyboard.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, 5*time.Minute, h.timers.last(t).d)

	h.sender.reset()
	h.handle(callback("sort_rating"))
	assert.Equal(t, []domain.SortMode{domain.SortRating}, h.service.modes())
	assert.True(t, h.timers.armed[0].stopped, "sort timer cancelled by the choice")

	texts := h.sender.texts()
	require.Len(t, texts, 4)
	assert.Equal(t, awaitMessage, texts[0])
	assert.Contains(t, texts[1], "<b>Наушники X1</b>")
	assert.Contains(t, texts[2], `<a href="https://www.ozon.ru/product/a/">Товар 1</a>`)
	assert.Equal(t, endMessage, texts[3])
	photo, ok := h.sender.sent[1].(tgbotapi.PhotoConfig)
	require.True(t, ok, "top product goes out as a photo")
	assert.Equal(t, tgbotapi.FileURL("https://cdn.ozon.ru/x1.jpg"), photo.File)

	assert.Equal(t, StateAwaitingFeedback, h.sessions.State(chatID))
	feedback := h.timers.last(t)
	assert.Equal(t, 3*time.Minute, feedback.d)

	h.sender.reset()
	feedback.f()
	stars := h.sender.lastMessage(t)
	assert.Equal(t, feedbackMessage, stars.Text)
	starKeyboard := stars.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	assert.Len(t, starKeyboard.InlineKeyboard, 5)
	assert.Equal(t, StateIdle, h.sessions.State(chatID))

	h.handle(callback("star_4"))
	assert.Equal(t, thanksMessage, h.sender.lastMessage(t).Text)
	assert.Equal(t, StateAwaitingComment, h.sessions.State(chatID))

	h.handle(text("Отличная подборка"))
	assert.Equal(t, commentMessage, h.sender.lastMessage(t).Text)
	assert.Equal(t, StateIdle, h.sessions.State(chatID))
}

func TestBot_SortTimeoutUsesPrice(t *testing.T) {
	h := newHarness()
	h.handle(command("searchitems"))
	h.handle(text(testURL))

	h.timers.last(t).f()
	assert.Equal(t, []domain.SortMode{domain.SortPrice}, h.service.modes())
	assert.Equal(t, StateAwaitingFeedback, h.sessions.State(chatID))

	// a late button press must not start a second search
	h.handle(callback("sort_new"))
	assert.Len(t, h.service.modes(), 1)
	last := h.sender.requests[len(h.sender.requests)-1].(tgbotapi.CallbackConfig)
	assert.Equal(t, sessionExpired, last.Text)
}

func TestBot_ChoiceBeatsTimeout(t *testing.T) {
	h := newHarness()
	h.handle(command("searchitems"))
	h.handle(text(testURL))
	sortTimer := h.timers.last(t)

	h.handle(callback("sort_new"))
	sortTimer.f()

	assert.Equal(t, []domain.SortMode{domain.SortNew}, h.service.modes())
}

func TestBot_NotRecognizedKeepsAwaitingURL(t *testing.T) {
	h := newHarness()
	h.service.resolveErr = domain.ErrIdentityNotRecognized

	h.handle(command("searchitems"))
	h.handle(text(testURL))

	assert.Equal(t, notRecognizedMessage, h.sender.lastMessage(t).Text)
	assert.Equal(t, StateAwaitingURL, h.sessions.State(chatID))
	assert.Zero(t, h.timers.count())
}

func TestBot_ResolveFailureClears(t *testing.T) {
	h := newHarness()
	h.service.resolveErr = domain.ErrAuthentication

	h.handle(command("searchitems"))
	h.handle(text(testURL))

	assert.Equal(t, failureMessage, h.sender.lastMessage(t).Text)
	assert.Equal(t, StateIdle, h.sessions.State(chatID))
}

func TestBot_SearchOutcomes(t *testing.T) {
	tests := []struct {
		name   string
		result *domain.SearchResult
		err    error
		want   string
	}{
		{"no products", &domain.SearchResult{Message: domain.MessageNoProducts}, nil, noProductsMessage},
		{"not recognized", &domain.SearchResult{Message: domain.MessageNameNotRecognized}, nil, notRecognizedMessage},
		{"upstream error", nil, domain.ErrRateLimited, failureMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.service.result, h.service.searchErr = tt.result, tt.err

			h.handle(command("searchitems"))
			h.handle(text(testURL))
			h.handle(callback("sort_score"))

			assert.Equal(t, tt.want, h.sender.lastMessage(t).Text)
			assert.Equal(t, StateIdle, h.sessions.State(chatID))
		})
	}
}

func TestBot_PhotoFailureFallsBackToText(t *testing.T) {
	h := newHarness()
	h.sender.sendErr = func(c tgbotapi.Chattable) error {
		if _, ok := c.(tgbotapi.PhotoConfig); ok {
			return errors.New("wrong file identifier")
		}
		return nil
	}

	h.handle(command("searchitems"))
	h.handle(text(testURL))
	h.handle(callback("sort_price"))

	texts := h.sender.texts()
	assert.Contains(t, texts, endMessage)
	found := 0
	for _, s := range texts {
		if strings.HasPrefix(s, "<b>Наушники X1</b>") {
			found++
		}
	}
	assert.Equal(t, 2, found, "caption attempt plus text fallback")
}

func TestBot_IgnoresTextOutsideConversation(t *testing.T) {
	h := newHarness()
	h.handle(text(testURL))

	assert.Equal(t, useSearchMessage, h.sender.lastMessage(t).Text)
	assert.Equal(t, StateIdle, h.sessions.State(chatID))
}

func TestBot_RunStopsOnCancel(t *testing.T) {
	h := newHarness()
	updates := make(chan tgbotapi.Update, 1)
	updates <- command("start")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.bot.Run(ctx, updates) }()

	require.Eventually(t, func() bool { return len(h.sender.texts()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestBot_RunStopsOnClosedChannel(t *testing.T) {
	h := newHarness()
	updates := make(chan tgbotapi.Update)
	close(updates)

	assert.NoError(t, h.bot.Run(context.Background(), updates))
}

func TestBot_RunWaitsForTimeoutSearch(t *testing.T) {
	h := newHarness()
	h.handle(command("searchitems"))
	h.handle(text(testURL))

	h.service.entered = make(chan struct{}, 1)
	h.service.gate = make(chan struct{})
	go h.timers.last(t).f()
	<-h.service.entered

	updates := make(chan tgbotapi.Update)
	close(updates)
	done := make(chan error, 1)
	go func() { done <- h.bot.Run(context.Background(), updates) }()

	select {
	case <-done:
		t.Fatal("Run returned while the timeout search was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(h.service.gate)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.Equal(t, []domain.SortMode{domain.SortPrice}, h.service.modes())
	assert.NotEmpty(t, h.sender.texts())
}
