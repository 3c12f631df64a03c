package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	commonlog "legalchat/server/common/log"
	"legalchat/server/legalchat/domain"
)

const (
	DefaultAssistantModel = "gemini-1.5-flash-latest"

	assistantSystemInstruction = "You are a legal compliance assistant for startup founders. " +
		"Answer questions about company formation, contracts, employment, intellectual property, privacy and regulatory compliance. " +
		"Be concise and practical. When a question needs a licensed lawyer, say so plainly. " +
		"Do not invent statutes, cases or facts. If an attached document is provided, ground your answer in it."

	emptyReplyFallback   = "I'm sorry, I couldn't generate a response at this time. Please try again."
	attachmentOnlyPrompt = "Please review the attached document."
)

type GeminiAssistant struct {
	client *genai.Client
	model  string
}

func NewGeminiAssistant(ctx context.Context, apiKey, model string) (*GeminiAssistant, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini api key is required")
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultAssistantModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &GeminiAssistant{client: client, model: model}, nil
}

func (a *GeminiAssistant) Close() {
	if a.client == nil {
		return
	}
	if err := a.client.Close(); err != nil {
		commonlog.Warnf("event=assistant action=close status=failed error=%v", err)
	}
}

func (a *GeminiAssistant) Reply(ctx context.Context, history []domain.Message, attachment *domain.File) (string, error) {
	contents := historyContents(history)
	if len(contents) == 0 || contents[len(contents)-1].Role != "user" {
		return "", &domain.AssistantError{Model: a.model, Err: errors.New("history must end with a user message")}
	}
	last := contents[len(contents)-1]
	if attachment != nil && attachment.ExtractedText != "" {
		last.Parts = append(last.Parts, genai.Text("Attached document "+attachment.OriginalName+":\n"+attachment.ExtractedText))
	}

	model := a.client.GenerativeModel(a.model)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(assistantSystemInstruction)}}
	session := model.StartChat()
	session.History = contents[:len(contents)-1]

	resp, err := session.SendMessage(ctx, last.Parts...)
	if err != nil {
		return "", &domain.AssistantError{Model: a.model, Err: err}
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		commonlog.Warnf("event=assistant action=reply status=empty model=%s", a.model)
		return emptyReplyFallback, nil
	}
	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		commonlog.Warnf("event=assistant action=reply status=empty model=%s", a.model)
		return emptyReplyFallback, nil
	}
	return text.String(), nil
}

// historyContents maps chat messages to model turns, merging consecutive
// messages from the same side into one turn.
func historyContents(history []domain.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		if m.IsTyping {
			continue
		}
		text := strings.TrimSpace(m.Text)
		role := "user"
		if m.Sender == domain.SenderBot {
			role = "model"
		}
		if text == "" {
			if role != "user" || m.FileID == "" {
				continue
			}
			text = attachmentOnlyPrompt
		}
		if n := len(contents); n > 0 && contents[n-1].Role == role {
			contents[n-1].Parts = append(contents[n-1].Parts, genai.Text(text))
			continue
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(text)}})
	}
	for len(contents) > 0 && contents[0].Role != "user" {
		contents = contents[1:]
	}
	return contents
}
