package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/AnshRaj112/safezone-backend/internal/database"
	"github.com/AnshRaj112/safezone-backend/internal/models"
)

type fakeLLM struct {
	replies map[string]string
	err     error
	prompts []string
}

func (f *fakeLLM) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	for k, v := range f.replies {
		if strings.Contains(prompt, k) {
			return v, nil
		}
	}
	return "", errors.New("no reply")
}

type fakeChatLogs struct {
	logs []models.ChatLog
	err  error
}

func (f *fakeChatLogs) Append(_ context.Context, _ *database.Scope, logs []models.ChatLog) error {
	f.logs = append(f.logs, logs...)
	return f.err
}

func TestParseSentiment(t *testing.T) {
	t.Run("fenced json", func(t *testing.T) {
		analysis, stored := ParseSentiment("```json\n{\"sentiment\":\"negative\",\"safety_warning\":true}\n```")
		obj, ok := analysis.(map[string]any)
		if !ok || obj["sentiment"] != "negative" || stored["safety_warning"] != true {
			t.Fatalf("unexpected parse %#v %#v", analysis, stored)
		}
	})
	t.Run("plain text", func(t *testing.T) {
		analysis, stored := ParseSentiment("mostly calm")
		if analysis != "mostly calm" || stored["raw"] != "mostly calm" {
			t.Fatalf("unexpected parse %#v %#v", analysis, stored)
		}
	})
	t.Run("broken json", func(t *testing.T) {
		analysis, stored := ParseSentiment("{not json}")
		if analysis != "{not json}" || stored["raw"] != "{not json}" {
			t.Fatalf("unexpected parse %#v %#v", analysis, stored)
		}
	})
	t.Run("reversed braces", func(t *testing.T) {
		if _, stored := ParseSentiment("} oops {"); stored["raw"] != "} oops {" {
			t.Fatalf("expected raw storage, got %#v", stored)
		}
	})
}

func TestChatFallbackForGuest(t *testing.T) {
	logs := &fakeChatLogs{}
	svc := NewAIService(nil, logs, time.Second, zap.NewNop())

	resp := svc.Chat(context.Background(), nil, nil, "I feel overwhelmed")

	if !resp.IsGuest {
		t.Fatalf("expected guest response")
	}
	if !strings.HasPrefix(resp.Response, "I hear you, friend.") {
		t.Fatalf("expected fallback reply, got %q", resp.Response)
	}
	analysis, ok := resp.Analysis.(map[string]any)
	if !ok || analysis["sentiment"] != "neutral" || analysis["primary_emotion"] != "seeking support" || analysis["safety_warning"] != false {
		t.Fatalf("unexpected analysis %#v", resp.Analysis)
	}
	if len(logs.logs) != 2 || logs.logs[0].Sender != models.SenderUser || logs.logs[1].Sender != models.SenderAI {
		t.Fatalf("expected user and ai log lines, got %+v", logs.logs)
	}
	if logs.logs[0].UserID != nil || logs.logs[1].Sentiment != nil {
		t.Fatalf("unexpected log contents %+v", logs.logs)
	}
}

func TestChatUsesModelAndSurvivesLogFailure(t *testing.T) {
	llm := &fakeLLM{replies: map[string]string{
		"Analyze the sentiment": `Sure! {"sentiment":"negative","primary_emotion":"sadness","safety_warning":false}`,
		"You are 'Zen'":         "Breathe with me, Maya.",
	}}
	logs := &fakeChatLogs{err: errors.New("insert failed")}
	svc := NewAIService(llm, logs, time.Second, zap.NewNop())
	user := &models.User{ID: "u1", Email: "maya@example.com", UserMetadata: map[string]any{"full_name": "Maya"}}

	resp := svc.Chat(context.Background(), nil, user, "rough day")

	if resp.IsGuest || resp.Response != "Breathe with me, Maya." {
		t.Fatalf("unexpected response %+v", resp)
	}
	if !strings.Contains(llm.prompts[1], "A user named Maya") {
		t.Fatalf("expected display name in prompt, got %q", llm.prompts[1])
	}
	if logs.logs[0].UserID == nil || *logs.logs[0].UserID != "u1" || logs.logs[0].Sentiment["primary_emotion"] != "sadness" {
		t.Fatalf("unexpected log lines %+v", logs.logs)
	}
}

func TestGroundingFallback(t *testing.T) {
	svc := NewAIService(&fakeLLM{err: errors.New("429")}, nil, time.Second, zap.NewNop())
	if got := svc.Grounding(context.Background()); !strings.HasPrefix(got, "Let's focus on right now.") {
		t.Fatalf("expected grounding fallback, got %q", got)
	}
}

func TestDisplayName(t *testing.T) {
	testCases := []struct {
		user *models.User
		want string
	}{
		{nil, "friend"},
		{&models.User{Email: "lee@example.com"}, "lee"},
		{&models.User{Email: "lee@example.com", UserMetadata: map[string]any{"full_name": "Lee Park"}}, "Lee Park"},
		{&models.User{}, "friend"},
	}
	for _, tc := range testCases {
		if got := tc.user.DisplayName(); got != tc.want {
			t.Fatalf("expected %q, got %q", tc.want, got)
		}
	}
}
