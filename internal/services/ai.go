package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AnshRaj112/safezone-backend/internal/database"
	"github.com/AnshRaj112/safezone-backend/internal/models"
)

// LLM generates text for a prompt.
type LLM interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

const groundingPrompt = "Provide a quick 5-4-3-2-1 grounding exercise for someone experiencing anxiety. Keep it calm and concise."

const groundingFallback = "Let's focus on right now. Name 5 things you can see, 4 things you can touch, 3 things you can hear, 2 things you can smell, and 1 thing you can taste. Breath slowly as you do this."

const sentimentFallback = `{"sentiment":"neutral","primary_emotion":"seeking support","safety_warning":false}`

func sentimentPrompt(text string) string {
	return fmt.Sprintf(`Analyze the sentiment and emotional state of this text: "%s". 
        Provide a JSON response with:
        - sentiment: (positive, negative, neutral)
        - primary_emotion: (joy, sadness, anger, fear, etc.)
        - safety_warning: (true if there are signs of self-harm or severe distress)`, text)
}

func deescalationPrompt(name, message string) string {
	return fmt.Sprintf(`
        You are 'Zen', the highly empathetic, therapeutic AI Sanctuary guide for SafeZone. 
        A user named %s (who is currently seeking support) says: "%s". 
        
        Your goal is to provide a comprehensive, deeply soothing, and personalized response that makes them feel heard and safe within 5 seconds of reading.
        
        Guidelines:
        1. Validation: Acknowledge their feeling directly with warmth (e.g., "I hear how heavy things feel right now...").
        2. Personalization: Use their name/identifier subtly.
        3. Actionable Calm: If they are distressed, provide a SPECIFIC, short breathing exercise (e.g., "Let's try: Inhale for 4, hold for 4, exhale for 8") or a specific sensory grounding prompt.
        4. Tone: Meditative, gentle, non-judgmental, and clinical only in its safety.
        5. Safety: If they mention self-harm or crisis, provide the international crisis text line/number and urge them to reach out to a professional immediately, but stay calm.
        6. Length: 3-5 sentences. Sufficiently deep but easy to digest.
        
        Do not use hashtags or emojis. Focus on the 'Zen' persona.
        `, name, message)
}

func deescalationFallback(name string) string {
	return fmt.Sprintf("I hear you, %s. I'm here in this space with you. Even when words are hard to find, please know you aren't alone. Let's take a slow, deep breath together—inhaling peace, and exhaling all that weight you're carrying. I'm listening.", name)
}

// ChatLogStore persists AI conversation lines.
type ChatLogStore interface {
	Append(ctx context.Context, scope *database.Scope, logs []models.ChatLog) error
}

// AIService runs the chat pipeline. A nil LLM serves static fallbacks;
// provider failures never reach the caller.
type AIService struct {
	llm     LLM
	logs    ChatLogStore
	timeout time.Duration
	log     *zap.Logger
}

func NewAIService(llm LLM, logs ChatLogStore, timeout time.Duration, log *zap.Logger) *AIService {
	return &AIService{llm: llm, logs: logs, timeout: timeout, log: log}
}

func (s *AIService) generate(ctx context.Context, prompt string) (string, error) {
	if s.llm == nil {
		return "", fmt.Errorf("llm not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.llm.Generate(ctx, prompt)
}

// DetectSentiment returns the raw model reply, or the fallback JSON.
func (s *AIService) DetectSentiment(ctx context.Context, text string) string {
	out, err := s.generate(ctx, sentimentPrompt(text))
	if err != nil {
		s.log.Warn("sentiment fallback used", zap.Error(err))
		return sentimentFallback
	}
	return out
}

// Deescalate returns the Zen reply addressed to the user's display name.
func (s *AIService) Deescalate(ctx context.Context, message string, user *models.User) string {
	name := user.DisplayName()
	out, err := s.generate(ctx, deescalationPrompt(name, message))
	if err != nil {
		s.log.Warn("de-escalation fallback used", zap.Error(err))
		return deescalationFallback(name)
	}
	return out
}

func (s *AIService) Grounding(ctx context.Context) string {
	out, err := s.generate(ctx, groundingPrompt)
	if err != nil {
		s.log.Warn("grounding fallback used", zap.Error(err))
		return groundingFallback
	}
	return out
}

// ParseSentiment extracts the JSON object spanning the first '{' to the last
// '}'. It returns what the client sees and what gets stored: the object
// twice on success, or the raw text and {"raw": text} otherwise.
func ParseSentiment(raw string) (any, map[string]any) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		var obj map[string]any
		if err := json.Unmarshal([]byte(raw[start:end+1]), &obj); err == nil {
			return obj, obj
		}
	}
	return raw, map[string]any{"raw": raw}
}

// Chat analyzes the message, writes a reply and logs both lines. Logging is
// best effort.
func (s *AIService) Chat(ctx context.Context, scope *database.Scope, user *models.User, message string) *models.ChatResponse {
	analysis, stored := ParseSentiment(s.DetectSentiment(ctx, message))
	reply := s.Deescalate(ctx, message, user)

	var userID *string
	if user != nil {
		userID = &user.ID
	}
	now := time.Now().UTC()
	lines := []models.ChatLog{
		{UserID: userID, Sender: models.SenderUser, Message: message, Sentiment: stored, CreatedAt: now},
		{UserID: userID, Sender: models.SenderAI, Message: reply, CreatedAt: now},
	}
	if s.logs != nil {
		if err := s.logs.Append(ctx, scope, lines); err != nil {
			s.log.Error("chat log write failed (continuing)", zap.Error(err))
		}
	}

	return &models.ChatResponse{Response: reply, Analysis: analysis, IsGuest: user == nil}
}
