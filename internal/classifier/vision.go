package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// VisionConfig configures the chat-completions backed classifier.
type VisionConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Subject string
}

// Defaults for VisionConfig.
const (
	DefaultModel   = "gpt-4o-mini"
	DefaultSubject = "a baby (infant or toddler)"
)

// VisionClassifier asks a vision-capable chat model a yes/no question about one image.
// The image is downloaded first and sent inline, so provider CDN URLs never leak to the model.
type VisionClassifier struct {
	client  *openai.Client
	fetcher *ImageFetcher
	model   string
	subject string
}

// NewVisionClassifier builds a VisionClassifier.
func NewVisionClassifier(cfg VisionConfig, fetcher *ImageFetcher) (*VisionClassifier, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("classifier: api key is required")
	}
	if fetcher == nil {
		fetcher = NewImageFetcher(0, 0)
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	return &VisionClassifier{
		client:  openai.NewClientWithConfig(oc),
		fetcher: fetcher,
		model:   cfg.Model,
		subject: cfg.Subject,
	}, nil
}

// Classify implements Classifier.
func (v *VisionClassifier) Classify(ctx context.Context, imageURL string) (bool, error) {
	img, err := v.fetcher.Fetch(ctx, imageURL)
	if err != nil {
		return false, err
	}
	resp, err := v.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     v.model,
		MaxTokens: 1,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: fmt.Sprintf("You answer strictly \"yes\" or \"no\" on whether an image contains %s.", v.subject),
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: fmt.Sprintf("Does this image contain %s? Answer only \"yes\" or \"no\".", v.subject),
					},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: img.DataURL(), Detail: openai.ImageURLDetailLow},
					},
				},
			},
		},
	})
	if err != nil {
		return false, fmt.Errorf("vision completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return false, errors.New("vision completion: no choices returned")
	}
	answer := strings.ToLower(strings.TrimSpace(resp.Choices[0].Message.Content))
	return strings.HasPrefix(answer, "yes"), nil
}
