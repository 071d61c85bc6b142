package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aidioma/aidioma/internal/inference"
	"github.com/avast/retry-go"
	"resty.dev/v3"
)

const defaultAttemptTimeout = 2 * time.Second

type Client struct {
	httpClient       *resty.Client
	model            string
	maxRetryAttempts uint
	attemptTimeout   time.Duration
	onRetry          func(attempt uint, err error)
}

type Option func(*Client)

// WithAttemptTimeout bounds each individual call to the completion endpoint.
func WithAttemptTimeout(timeout time.Duration) Option {
	return func(client *Client) {
		client.attemptTimeout = timeout
	}
}

// WithRetryObserver registers a callback invoked before each retry attempt.
func WithRetryObserver(observer func(attempt uint, err error)) Option {
	return func(client *Client) {
		client.onRetry = observer
	}
}

func NewClient(apiKey, model string, retryAttempts uint, opts ...Option) *Client {
	httpClient := resty.New()
	httpClient.SetBaseURL("https://api.openai.com/v1")
	httpClient.SetHeader("Authorization", "Bearer "+apiKey)
	httpClient.SetHeader("Content-Type", "application/json")

	client := &Client{
		httpClient:       httpClient,
		model:            model,
		maxRetryAttempts: retryAttempts,
		attemptTimeout:   defaultAttemptTimeout,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

func (client Client) Close() error {
	return client.httpClient.Close()
}

// GetModel returns the model name configured for this client
func (client Client) GetModel() string {
	return client.model
}

type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float32   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

type Choice struct {
	Index        int           `json:"index"`
	Message      ChoiceMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type ChoiceMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// EvaluateWord implements the inference.Client interface
func (client *Client) EvaluateWord(
	ctx context.Context,
	params inference.EvaluateWordRequest,
) (inference.EvaluateWordResponse, error) {
	var result inference.EvaluateWordResponse
	if err := retry.Do(
		func() error {
			response, err := client.evaluateWord(ctx, params)
			if err != nil {
				if !isRetryableError(err) {
					return retry.Unrecoverable(err)
				}
				return err
			}
			result = response
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(client.maxRetryAttempts+1),
		retry.DelayType(func(n uint, err error, config *retry.Config) time.Duration {
			return escalatingDelay(n)
		}),
		retry.OnRetry(func(n uint, err error) {
			slog.Default().Warn("Retrying OpenAI evaluation",
				"attempt", n+1,
				"word", params.Word,
				"error", err)
			if client.onRetry != nil {
				client.onRetry(n, err)
			}
		}),
	); err != nil {
		return inference.EvaluateWordResponse{}, err
	}
	return result, nil
}

func (client *Client) getRequestBody(params inference.EvaluateWordRequest) ChatCompletionRequest {
	language := params.Language
	if language == "" {
		language = "spanish"
	}

	systemPrompt := fmt.Sprintf(`You are an expert %s tutor who grades whether a learner's word choice works in a given sentence.

GOAL
Given a word, the sentence it was used in, and the learner's level, judge how well the word fits.
Emphasize these criteria: %s.

STRICT OUTPUT: Respond with ONLY a JSON object, no text outside it:
{"score": <integer 0-100>, "status": "correct" | "close" | "wrong", "feedback": "<one or two short sentences>", "confidence": <number 0.0-1.0>}

SCORING
- 75 or above means the word is correct for this sentence.
- 50 to 74 means the word is close: understandable but not the best choice.
- Below 50 means the word is wrong here.
- status MUST agree with score under these thresholds.

FEEDBACK
- Address the learner directly and briefly, adjusted to a %s learner.
- Name the concrete issue (conjugation, gender agreement, register, meaning) when the word is not correct.`,
		language, pageFocus(params.PageContext), params.Difficulty)

	type promptExample struct {
		userRequest     inference.EvaluateWordRequest
		assistantAnswer inference.EvaluateWordResponse
	}

	examples := []promptExample{
		{
			userRequest: inference.EvaluateWordRequest{
				Word:        "duerme",
				Context:     "El gato duerme en el sofá.",
				Difficulty:  "beginner",
				Language:    "spanish",
				PageContext: "practice",
			},
			assistantAnswer: inference.EvaluateWordResponse{
				Score:      92,
				Status:     "correct",
				Feedback:   "Well done: \"duerme\" is the right third-person form of dormir for this sentence.",
				Confidence: 0.95,
			},
		},
		{
			userRequest: inference.EvaluateWordRequest{
				Word:        "dormir",
				Context:     "El gato dormir en el sofá.",
				Difficulty:  "beginner",
				Language:    "spanish",
				PageContext: "practice",
			},
			assistantAnswer: inference.EvaluateWordResponse{
				Score:      60,
				Status:     "close",
				Feedback:   "Almost: \"dormir\" is the infinitive, but this sentence needs the conjugated form \"duerme\".",
				Confidence: 0.9,
			},
		},
		{
			userRequest: inference.EvaluateWordRequest{
				Word:        "mesa",
				Context:     "El gato mesa en el sofá.",
				Difficulty:  "beginner",
				Language:    "spanish",
				PageContext: "practice",
			},
			assistantAnswer: inference.EvaluateWordResponse{
				Score:      15,
				Status:     "wrong",
				Feedback:   "\"Mesa\" means table, a noun, so it cannot work as the verb of this sentence.",
				Confidence: 0.95,
			},
		},
	}

	messages := []Message{
		{
			Role:    RoleSystem,
			Content: systemPrompt,
		},
	}
	for _, example := range examples {
		userJSON, err := json.Marshal(example.userRequest)
		if err != nil {
			continue
		}
		assistantJSON, err := json.Marshal(example.assistantAnswer)
		if err != nil {
			continue
		}
		messages = append(messages,
			Message{
				Role:    RoleUser,
				Content: string(userJSON),
			},
			Message{
				Role:    RoleAssistant,
				Content: string(assistantJSON),
			},
		)
	}

	userJSON, _ := json.Marshal(params)
	messages = append(messages, Message{
		Role:    RoleUser,
		Content: string(userJSON),
	})

	return ChatCompletionRequest{
		Model:       client.model,
		Temperature: 0.2,
		MaxTokens:   200,
		Messages:    messages,
	}
}

// pageFocus returns the evaluation criteria emphasized for a page of the application.
func pageFocus(pageContext string) string {
	switch pageContext {
	case "reading":
		return "comprehension, vocabulary, and how well the word fits its surrounding context"
	case "memorization":
		return "retention and recall confidence for this word"
	case "conversation":
		return "fluency, naturalness, and communicative effectiveness"
	default: // practice
		return "grammar, vocabulary, and naturalness"
	}
}

func (client *Client) evaluateWord(
	ctx context.Context,
	params inference.EvaluateWordRequest,
) (inference.EvaluateWordResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, client.attemptTimeout)
	defer cancel()

	requestBody := client.getRequestBody(params)

	response, err := client.httpClient.R().
		SetContext(ctx).
		SetBody(requestBody).
		SetResult(&ChatCompletionResponse{}).
		Post("/chat/completions")
	if err != nil {
		return inference.EvaluateWordResponse{}, fmt.Errorf("httpClient.Post > %w", err)
	}
	if response.IsError() {
		return inference.EvaluateWordResponse{}, fmt.Errorf("response error %d: %s", response.StatusCode(), response.String())
	}

	responseBody := response.Result().(*ChatCompletionResponse)
	if responseBody == nil || len(responseBody.Choices) == 0 {
		return inference.EvaluateWordResponse{}, fmt.Errorf("empty response body or choices: %s", response.String())
	}

	content := responseBody.Choices[0].Message.Content
	if content == "" {
		return inference.EvaluateWordResponse{}, fmt.Errorf("empty response content: %s", response.String())
	}
	slog.Default().Debug("openai evaluation response",
		"word", params.Word,
		"content", content,
	)

	var decoded inference.EvaluateWordResponse
	if err := json.NewDecoder(strings.NewReader(content)).Decode(&decoded); err != nil {
		slog.Default().Error("Failed to parse OpenAI response as JSON",
			"word", params.Word,
			"error", err)
		return inference.EvaluateWordResponse{}, fmt.Errorf("malformed response: json.Unmarshal(%s) > %w", content, err)
	}
	if decoded.Score < 0 || decoded.Score > 100 {
		return inference.EvaluateWordResponse{}, fmt.Errorf("malformed response: score %d out of range", decoded.Score)
	}
	return decoded, nil
}
