package eino

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	gemini "github.com/cloudwego/eino-ext/components/model/gemini"
	"google.golang.org/genai"

	llm "formsai/internal/core/model"
	"formsai/internal/logger"
	"formsai/prompts"
)

// Config represents the configuration for the remote chat backend
type Config struct {
	Provider        string `json:"provider"`
	APIKey          string `json:"api_key"`
	Model           string `json:"model"`
	OfflineFallback bool   `json:"offline_fallback"`
	Debug           bool   `json:"debug"`
}

// Service answers prompts through an Eino chat model, honouring the same
// fallback-token contract as the local client.
type Service struct {
	config       Config
	chatModel    model.BaseChatModel
	chatTemplate prompt.ChatTemplate
	geminiClient *genai.Client
	log          *logger.Logger
}

// NewService creates a service with provider initialization
func NewService(ctx context.Context, config Config, log *logger.Logger) (*Service, error) {
	service := &Service{config: config, log: log}
	if err := service.initializeChatModel(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize chat model: %w", err)
	}
	service.chatTemplate = prompts.AnswerTemplate()
	return service, nil
}

// NewServiceWithModel creates a service around a pre-configured chat model
func NewServiceWithModel(config Config, chatModel model.BaseChatModel, log *logger.Logger) *Service {
	return &Service{
		config:       config,
		chatModel:    chatModel,
		chatTemplate: prompts.AnswerTemplate(),
		log:          log,
	}
}

func (s *Service) initializeChatModel(ctx context.Context) error {
	switch strings.ToLower(s.config.Provider) {
	case "gemini":
		return s.initializeGeminiModel(ctx)
	default:
		return fmt.Errorf("unsupported provider: %s. Supported: gemini", s.config.Provider)
	}
}

func (s *Service) initializeGeminiModel(ctx context.Context) error {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: s.config.APIKey,
	})
	if err != nil {
		return fmt.Errorf("failed to create Gemini client: %w", err)
	}
	s.geminiClient = client

	geminiModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client: client,
		Model:  s.config.Model,
	})
	if err != nil {
		return fmt.Errorf("failed to create Gemini chat model: %w", err)
	}
	s.chatModel = geminiModel
	return nil
}

func (s *Service) Model() string { return s.config.Model }

type generation struct {
	msg *schema.Message
	err error
}

// Ask sends the prompt and waits at most timeout. It never returns an error.
func (s *Service) Ask(ctx context.Context, promptText string, timeout time.Duration) string {
	if s.chatModel == nil {
		return s.fallback(llm.ReasonError, "chat model not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	messages, err := s.chatTemplate.Format(ctx, map[string]any{"prompt": promptText})
	if err != nil {
		return s.fallback(llm.ReasonError, fmt.Sprintf("format chat template: %v", err))
	}
	if s.config.Debug {
		if n, err := s.CountPromptTokens(ctx, messages); err == nil {
			s.log.LogInfof("Prompt for %s: %d chars, %d tokens", s.config.Model, len(promptText), n)
		}
	}

	done := make(chan generation, 1)
	go func() {
		msg, err := s.chatModel.Generate(ctx, messages)
		done <- generation{msg: msg, err: err}
	}()

	var res generation
	select {
	case res = <-done:
	case <-ctx.Done():
		res = generation{err: ctx.Err()}
	}
	if res.err != nil {
		if errors.Is(res.err, context.DeadlineExceeded) {
			s.log.LogWarnf("Model %s did not answer within %s", s.config.Model, timeout)
			return s.fallback(llm.ReasonTimeout, fmt.Sprintf("no response after %s", timeout))
		}
		s.log.LogErrorf("Model %s generation failed: %v", s.config.Model, res.err)
		return s.fallback(llm.ReasonError, res.err.Error())
	}
	if res.msg == nil {
		return s.fallback(llm.ReasonEmptyOutput, "")
	}
	answer := llm.StripReasoning(res.msg.Content)
	if answer == "" {
		return s.fallback(llm.ReasonEmptyOutput, "")
	}
	return answer
}

func (s *Service) fallback(reason llm.Reason, detail string) string {
	return llm.Fallback(reason, detail, s.config.OfflineFallback)
}

// CountPromptTokens counts input tokens with Gemini's CountTokens API
func (s *Service) CountPromptTokens(ctx context.Context, messages []*schema.Message) (int32, error) {
	if s.geminiClient == nil {
		return 0, fmt.Errorf("gemini client not initialized")
	}
	var contents []*genai.Content
	for _, msg := range messages {
		contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
	}
	resp, err := s.geminiClient.Models.CountTokens(ctx, s.config.Model, contents, nil)
	if err != nil {
		return 0, fmt.Errorf("count tokens: %w", err)
	}
	return resp.TotalTokens, nil
}
