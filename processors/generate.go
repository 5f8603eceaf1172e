package processors

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/EyalShechtman/open-ai-video-understanding/config"
	"github.com/EyalShechtman/open-ai-video-understanding/core"
)

// InlineImage is an image attached inline to a generation request.
type InlineImage struct {
	MIME string
	Data []byte
}

// ContentPart is one ordered element of a multimodal prompt: either text or
// an inline image.
type ContentPart struct {
	Text  string
	Image *InlineImage
}

// OpenAIGenerator implements Generator with a single chat completion call.
type OpenAIGenerator struct {
	cli   *openai.Client
	model string
}

func NewOpenAIGenerator(cfg *config.Config) *OpenAIGenerator {
	return &OpenAIGenerator{
		cli:   newOpenAIClient(cfg),
		model: cfg.ChatModel,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, parts []ContentPart) (string, error) {
	if len(parts) == 0 {
		return "", &core.GenerationError{Err: errors.New("empty prompt")}
	}
	content := make([]openai.ChatMessagePart, 0, len(parts))
	for _, part := range parts {
		if part.Image != nil {
			url := fmt.Sprintf("data:%s;base64,%s",
				part.Image.MIME, base64.StdEncoding.EncodeToString(part.Image.Data))
			content = append(content, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    url,
					Detail: openai.ImageURLDetailAuto,
				},
			})
			continue
		}
		content = append(content, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeText,
			Text: part.Text,
		})
	}

	resp, err := g.cli.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:         openai.ChatMessageRoleUser,
				MultiContent: content,
			},
		},
		MaxTokens:   1000,
		Temperature: 0.3,
	})
	if err != nil {
		return "", &core.GenerationError{Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &core.GenerationError{Err: errors.New("no candidates returned")}
	}
	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		return "", &core.GenerationError{Err: errors.New("candidate contained no text")}
	}
	return answer, nil
}
