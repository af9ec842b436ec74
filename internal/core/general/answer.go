// Package general answers practical Hajj questions that are not about a
// specific agency. Replies come from the oracle and are bounded in time
// and length; callers fall back to a fixed reply on any error.
package general

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"hajj-assistant/internal/common/logger"
	"hajj-assistant/internal/common/oracle"
	"hajj-assistant/internal/models"
)

var ErrUnusableReply = errors.New("unusable general answer")

const systemPrompt = `You are an assistant that protects Hajj and Umrah pilgrims from scams and helps them verify agencies authorized by the Ministry of Hajj and Umrah.
Answer practical questions about Hajj and Umrah concisely and factually.
Do not give religious rulings or fatwas. Do not claim that any agency is authorized or not; tell the user to ask you to verify it by name instead.
Reply in plain text in the language you are told.`

var languageNames = map[models.Language]string{
	models.LanguageArabic:  "Arabic",
	models.LanguageUrdu:    "Urdu",
	models.LanguageEnglish: "English",
}

type Config struct {
	Timeout   time.Duration
	MaxTokens int
	MaxChars  int
}

func DefaultConfig() Config {
	return Config{Timeout: 8 * time.Second, MaxTokens: 300, MaxChars: 1200}
}

type Answerer struct {
	oracle oracle.Oracle
	cfg    Config
	logger logger.Logger
}

func New(o oracle.Oracle, cfg Config, log logger.Logger) *Answerer {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = def.MaxChars
	}
	return &Answerer{
		oracle: o,
		cfg:    cfg,
		logger: log.With(map[string]interface{}{"component": "general"}),
	}
}

// Answer asks the oracle about utt and returns cleaned reply text.
func (a *Answerer) Answer(ctx context.Context, utt models.Utterance) (string, error) {
	actx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	lang, ok := languageNames[utt.Language]
	if !ok {
		lang = languageNames[models.LanguageEnglish]
	}

	reply, err := a.oracle.Complete(actx, oracle.Request{
		System:    systemPrompt,
		Prompt:    fmt.Sprintf("Answer in %s.\nQuestion: %s", lang, utt.Text),
		MaxTokens: a.cfg.MaxTokens,
	})
	if err != nil {
		return "", err
	}

	text := clean(reply, a.cfg.MaxChars)
	if text == "" {
		a.logger.Warn("discarding general answer", map[string]interface{}{"length": len(reply)})
		return "", ErrUnusableReply
	}
	return text, nil
}

// clean strips code fences and cuts the reply to max runes, preferring a
// sentence or word boundary.
func clean(reply string, max int) string {
	text := strings.TrimSpace(reply)
	text = strings.TrimPrefix(text, "```text")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	if utf8.RuneCountInString(text) <= max {
		return text
	}
	cut := string([]rune(text)[:max])
	if i := strings.LastIndexAny(cut, ".!?؟۔\n"); i > 0 && utf8.RuneCountInString(cut[:i]) > max/2 {
		return strings.TrimSpace(cut[:i+1])
	}
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut) + "…"
}
