package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/cenkalti/backoff/v4"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// maxMessageLen stays under Telegram's 4096 character limit.
const maxMessageLen = 4000

// TelegramNotifier sends messages to one chat via the Telegram Bot API.
type TelegramNotifier struct {
	bot       *tgbotapi.BotAPI
	chatID    int64
	logger    zerolog.Logger
	retryWait time.Duration // first backoff interval; zero keeps the library default
}

// NewTelegramNotifier connects to Telegram with optional proxy support.
func NewTelegramNotifier(botToken string, chatID int64, proxyURL string) (*TelegramNotifier, error) {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	client := &http.Client{
		Timeout:   60 * time.Second,
		Transport: transport,
	}
	return newTelegramNotifier(botToken, chatID, tgbotapi.APIEndpoint, client)
}

func newTelegramNotifier(botToken string, chatID int64, endpoint string, client *http.Client) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(botToken, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("connect telegram: %w", err)
	}
	logger := log.With().Str("component", "telegram").Logger()
	logger.Info().Str("bot", bot.Self.UserName).Msg("authorized on telegram")
	return &TelegramNotifier{
		bot:    bot,
		chatID: chatID,
		logger: logger,
	}, nil
}

// Send sends text to the configured chat, split into several messages when
// it exceeds Telegram's size limit.
func (t *TelegramNotifier) Send(text string) error {
	return t.sendTo(t.chatID, text)
}

func (t *TelegramNotifier) sendTo(chatID int64, text string) error {
	for _, chunk := range splitMessage(text, maxMessageLen) {
		msg := tgbotapi.NewMessage(chatID, chunk)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		if _, err := t.bot.Send(msg); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

// SendWithRetry sends a message with exponential backoff retry. Client
// errors reported by Telegram, other than rate limiting, are not retried.
func (t *TelegramNotifier) SendWithRetry(ctx context.Context, text string, maxRetries int) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := t.Send(text)
		if err == nil {
			return nil
		}
		if permanent(err) {
			return backoff.Permanent(err)
		}
		t.logger.Warn().Err(err).Int("attempt", attempt).Int("max", maxRetries+1).Msg("telegram send failed")
		return err
	}

	strategy := backoff.NewExponentialBackOff()
	if t.retryWait > 0 {
		strategy.InitialInterval = t.retryWait
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(strategy, uint64(maxRetries)), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return perm.Err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("all %d attempts failed: %w", attempt, err)
	}
	return nil
}

func permanent(err error) bool {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != http.StatusTooManyRequests
}

// splitMessage cuts text into chunks of at most limit runes, preferring
// line boundaries, then spaces. A cut never lands inside a tag or entity and
// tags left open by one chunk are closed there and reopened in the next.
func splitMessage(text string, limit int) []string {
	if len([]rune(text)) <= limit {
		return []string{text}
	}
	var (
		chunks  []string
		current strings.Builder
		size    int
	)
	flush := func() {
		if size > 0 {
			chunks = append(chunks, strings.TrimRight(current.String(), "\n"))
			current.Reset()
			size = 0
		}
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		runes := []rune(line)
		if size+len(runes) > limit {
			flush()
		}
		for len(runes) > limit {
			cut := safeCut(runes, limit)
			chunks = append(chunks, strings.TrimRight(string(runes[:cut]), " "))
			runes = runes[cut:]
		}
		current.WriteString(string(runes))
		size += len(runes)
	}
	flush()
	return balanceTags(chunks)
}

// safeCut picks where to break runes, at most limit.
func safeCut(runes []rune, limit int) int {
	cut := limit
	if j := openMarkup(runes, cut); j > 0 {
		cut = j
	}
	for j := cut - 1; j > cut/2; j-- {
		if unicode.IsSpace(runes[j]) && openMarkup(runes, j) < 0 {
			return j + 1
		}
	}
	return cut
}

// openMarkup returns the index of a '<' or '&' still unclosed at position i,
// or -1.
func openMarkup(runes []rune, i int) int {
	entity := true
	for j := i - 1; j >= 0; j-- {
		switch runes[j] {
		case '>':
			return -1
		case '<':
			return j
		case ';', ' ', '\n':
			entity = false
		case '&':
			if entity {
				return j
			}
		}
	}
	return -1
}

var tagRe = regexp.MustCompile(`<(/?)([a-zA-Z][a-zA-Z0-9-]*)[^>]*>`)

type openTag struct {
	name string
	raw  string
}

// balanceTags closes the tags each chunk leaves open and reopens them at the
// start of the next chunk.
func balanceTags(chunks []string) []string {
	var stack []openTag
	for i, chunk := range chunks {
		var prefix strings.Builder
		for _, t := range stack {
			prefix.WriteString(t.raw)
		}
		for _, m := range tagRe.FindAllStringSubmatch(chunk, -1) {
			name := strings.ToLower(m[2])
			if m[1] == "" {
				stack = append(stack, openTag{name: name, raw: m[0]})
				continue
			}
			for k := len(stack) - 1; k >= 0; k-- {
				if stack[k].name == name {
					stack = append(stack[:k], stack[k+1:]...)
					break
				}
			}
		}
		var suffix strings.Builder
		for k := len(stack) - 1; k >= 0; k-- {
			suffix.WriteString("</" + stack[k].name + ">")
		}
		chunks[i] = prefix.String() + chunk + suffix.String()
	}
	return chunks
}
