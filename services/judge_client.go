// services/judge_client.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"marathon-platform/models"
)

var (
	// ErrJudgeUnavailable covers transport failures, missing credentials and
	// non-200 responses from the model endpoint. Callers surface it as "please
	// retry" and must not consume an attempt.
	ErrJudgeUnavailable = errors.New("judge unavailable")

	// ErrBadVerdict means the model answered but not with the contract JSON.
	// Fatal to the request, not to the process, and consumes no attempt either.
	ErrBadVerdict = errors.New("judge returned malformed verdict")
)

// GradeRequest carries everything the judge needs to score one submission.
type GradeRequest struct {
	Title       string
	Description string
	MaxPoints   int
	Content     string
}

// Verdict is the judge contract: status, score and human-readable feedback.
// Raw keeps the untouched model reply for the transcript archive.
type Verdict struct {
	Status   models.SubmissionStatus `json:"status"`
	Score    int                     `json:"score"`
	Feedback string                  `json:"feedback"`
	Raw      string                  `json:"-"`
}

// Judge is what the submission engine depends on; tests swap in a fake.
type Judge interface {
	Grade(ctx context.Context, req GradeRequest) (*Verdict, error)
}

// JudgeClient grades submissions through an OpenAI-compatible chat completions
// endpoint. The model is treated as an unreliable, latent oracle: every reply
// goes through a strict schema check before anything is persisted.
type JudgeClient struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client
}

func NewJudgeClient() *JudgeClient {
	baseURL := os.Getenv("JUDGE_API_URL")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := os.Getenv("JUDGE_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &JudgeClient{
		BaseURL: baseURL,
		APIKey:  os.Getenv("JUDGE_API_KEY"),
		Model:   model,
		Client: &http.Client{
			Timeout: 90 * time.Second,
		},
	}
}

const gradingSystemPrompt = `You are a strict grader for a timed coding marathon.
Evaluate the participant's solution against the problem statement.
Respond with ONLY a JSON object: {"status":"APPROVED"|"REJECTED","score":<int>,"feedback":"<short explanation>"}.
An APPROVED score must be between 20 and the stated maximum points.`

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Grade sends the grading prompt and parses the reply into a Verdict.
func (c *JudgeClient) Grade(ctx context.Context, req GradeRequest) (*Verdict, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("%w: JUDGE_API_KEY not set", ErrJudgeUnavailable)
	}

	prompt := fmt.Sprintf(
		"Problem: %s (max %d points)\n\n%s\n\nSubmitted solution:\n%s",
		req.Title, req.MaxPoints, req.Description, req.Content,
	)

	body, _ := json.Marshal(chatRequest{
		Model: c.Model,
		Messages: []chatMessage{
			{Role: "system", Content: gradingSystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.1,
	})

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrJudgeUnavailable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrJudgeUnavailable, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		log.Printf("❌ [JUDGE] endpoint returned %d: %.200s", resp.StatusCode, string(raw))
		return nil, fmt.Errorf("%w: status %d", ErrJudgeUnavailable, resp.StatusCode)
	}

	var chat chatResponse
	if err := json.Unmarshal(raw, &chat); err != nil || len(chat.Choices) == 0 {
		return nil, fmt.Errorf("%w: unexpected completion payload", ErrBadVerdict)
	}

	verdict, err := ParseVerdict(chat.Choices[0].Message.Content)
	if err != nil {
		log.Printf("❌ [JUDGE] unparseable verdict: %.200s", chat.Choices[0].Message.Content)
		return nil, err
	}
	return verdict, nil
}

// ParseVerdict decodes the model's reply into a Verdict, tolerating markdown
// code fences around the JSON but nothing else. The status and score fields
// are validated, not trusted.
func ParseVerdict(reply string) (*Verdict, error) {
	trimmed := strings.TrimSpace(reply)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var v Verdict
	dec := json.NewDecoder(strings.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadVerdict, err)
	}

	if v.Status != models.StatusApproved && v.Status != models.StatusRejected {
		return nil, fmt.Errorf("%w: status %q", ErrBadVerdict, v.Status)
	}
	if v.Score < 0 {
		return nil, fmt.Errorf("%w: negative score %d", ErrBadVerdict, v.Score)
	}

	v.Raw = reply
	return &v, nil
}
