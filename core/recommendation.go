package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fx.service/api/gemini"
	"fx.service/cache"
)

const chatHistoryTTL = 24 * time.Hour

// ErrSessionRequired is returned when a chat request carries no session id.
var ErrSessionRequired = errors.New("session id is required")

func chatHistoryKey(sessionId string) string {
	return "chat:" + sessionId
}

// GetRecommendation answers question within the chat of sessionId and
// returns the whole conversation. A new session starts with the welcome
// message.
func (sc *ServiceContext) GetRecommendation(ctx context.Context, sessionId, question string) ([]gemini.Message, error) {
	sessionId = strings.TrimSpace(sessionId)
	if sessionId == "" {
		return nil, ErrSessionRequired
	}
	if strings.TrimSpace(question) == "" {
		question = gemini.DefaultQuestion
	}

	log := sc.Log.WithField("session", sessionId)
	log.Info("processing recommendation request")

	history, err := sc.GetChatHistory(ctx, sessionId)
	if err != nil {
		return nil, err
	}

	st := sc.loadMarketState(ctx, sc.Config.Forecast.DefaultHorizon)
	updated := sc.GeminiClient.Chat(ctx, st.snapshot(), question, history)

	if err := cache.SetJSON(ctx, sc.Cache, chatHistoryKey(sessionId), updated, chatHistoryTTL); err != nil {
		log.WithError(err).Warn("error storing chat history")
	}

	log.Info("recommendation generated")
	return updated, nil
}

// GetChatHistory returns the stored conversation of sessionId, seeded with
// the welcome message when there is none.
func (sc *ServiceContext) GetChatHistory(ctx context.Context, sessionId string) ([]gemini.Message, error) {
	history, err := cache.GetJSON[[]gemini.Message](ctx, sc.Cache, chatHistoryKey(sessionId))
	switch {
	case errors.Is(err, cache.ErrMiss):
		return []gemini.Message{{Role: gemini.RoleAssistant, Content: gemini.WelcomeMessage}}, nil
	case err != nil:
		return nil, fmt.Errorf("error loading chat history: %w", err)
	}
	return *history, nil
}
