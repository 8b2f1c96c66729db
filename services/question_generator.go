package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// TriviaQuestion is the payload contract of the question generator: one
// prompt, four labeled options, the correct label, and a hint.
type TriviaQuestion struct {
	Question      string            `json:"question"`
	Options       map[string]string `json:"options"`
	CorrectOption string            `json:"correct_option"`
	Tip           string            `json:"tip"`
}

// QuestionGenerator produces one quiz item per call. Implementations may
// fail; callers surface that as an upstream error without persisting anything.
type QuestionGenerator interface {
	Generate(ctx context.Context) (*TriviaQuestion, error)
}

const triviaPrompt = `Generate one general-knowledge trivia question with:
- a prompt
- 4 options labeled A, B, C and D
- the correct label
- one hint

Answer with JSON only, in exactly this format:
{
    "question": "What is the capital of France?",
    "options": {
        "A": "Paris",
        "B": "Rome",
        "C": "London",
        "D": "Berlin"
    },
    "correct_option": "A",
    "tip": "It is known as the city of love."
}`

// OpenAIGenerator asks a chat-completion model for trivia questions.
type OpenAIGenerator struct {
	Client *openai.Client
	Model  string
}

func NewOpenAIGenerator() *OpenAIGenerator {
	apiKey := os.Getenv("API_KEY")
	if apiKey == "" {
		log.Println("⚠️  API_KEY not set, question generation will fail")
	}
	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = openai.GPT3Dot5Turbo
	}
	return &OpenAIGenerator{
		Client: openai.NewClient(apiKey),
		Model:  model,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context) (*TriviaQuestion, error) {
	resp, err := g.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: triviaPrompt},
		},
		MaxTokens:   300,
		Temperature: 0.7,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}
	return parseTriviaPayload(resp.Choices[0].Message.Content)
}

// parseTriviaPayload decodes the model output, tolerating markdown code fences.
func parseTriviaPayload(content string) (*TriviaQuestion, error) {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
		trimmed = strings.TrimSpace(trimmed)
	}

	var item TriviaQuestion
	if err := json.Unmarshal([]byte(trimmed), &item); err != nil {
		return nil, fmt.Errorf("decode question payload: %w", err)
	}
	if item.Question == "" {
		return nil, fmt.Errorf("question payload missing prompt")
	}
	if len(item.Options) != 4 {
		return nil, fmt.Errorf("question payload has %d options, want 4", len(item.Options))
	}
	if _, ok := item.Options[strings.ToUpper(strings.TrimSpace(item.CorrectOption))]; !ok {
		return nil, fmt.Errorf("correct option %q not among options", item.CorrectOption)
	}
	return &item, nil
}
