package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	c "fx.service/api"
)

const (
	HostDefault  = "generativelanguage.googleapis.com"
	ModelDefault = "gemini-1.5-flash"

	RoleUser      = "user"
	RoleAssistant = "assistant"

	defaultTimeout = 60 * time.Second
	roleModel      = "model"
)

var ErrEmptyResponse = errors.New("model returned no text")

// Message is one turn of a chat as the dashboard stores it.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type GeminiClient struct {
	*c.Client
	Model string
	Log   logrus.FieldLogger
}

func GetClient(apiKey string, opts ...c.Option) GeminiClient {
	return GetClientForHost(HostDefault, apiKey, opts...)
}

func GetClientForHost(host, apiKey string, opts ...c.Option) GeminiClient {
	return GeminiClient{
		Client: c.ClientFactory(host, apiKey, defaultTimeout, opts...),
		Model:  ModelDefault,
		Log:    logrus.WithField("component", "gemini"),
	}
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateRequest struct {
	SystemInstruction *content         `json:"system_instruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

var defaultGenerationConfig = generationConfig{
	Temperature:     1,
	TopP:            0.95,
	TopK:            64,
	MaxOutputTokens: 8192,
}

// GenerateContent sends history followed by prompt and returns the model's
// reply. system may be empty.
func (gc *GeminiClient) GenerateContent(ctx context.Context, system string, history []Message, prompt string) (string, error) {
	if gc.ApiKey == "" {
		return "", fmt.Errorf("gemini api key is not configured")
	}

	req := generateRequest{
		Contents:         toContents(history),
		GenerationConfig: defaultGenerationConfig,
	}
	req.Contents = append(req.Contents, content{Role: RoleUser, Parts: []part{{Text: prompt}}})
	if system != "" {
		req.SystemInstruction = &content{Parts: []part{{Text: system}}}
	}

	endpoint := &url.URL{Path: "/v1beta/models/" + gc.Model + ":generateContent"}
	query := endpoint.Query()
	query.Set("key", gc.ApiKey)
	endpoint.RawQuery = query.Encode()

	response, err := gc.Client.Connection.Request(ctx, http.MethodPost, endpoint, req)
	if err != nil {
		return "", err
	}
	defer response.Body.Close()

	var res generateResponse
	if err := json.NewDecoder(response.Body).Decode(&res); err != nil {
		return "", fmt.Errorf("error unmarshaling gemini response: %w", err)
	}

	var sb strings.Builder
	for _, cand := range res.Candidates {
		for _, p := range cand.Content.Parts {
			sb.WriteString(p.Text)
		}
		if sb.Len() > 0 {
			break
		}
	}

	if sb.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}

// Report produces the dashboard's analysis paragraph. Failures yield a
// fixed apology rather than an error.
func (gc *GeminiClient) Report(ctx context.Context, s Snapshot) string {
	text, err := gc.GenerateContent(ctx, "", nil, ReportPrompt(s))
	if err != nil {
		gc.Log.WithError(err).Error("error generating analysis report")
		return ReportFailedMessage
	}
	return text
}

// Chat answers question given the prior turns and returns the extended
// history. On failure an apology turn is appended instead.
func (gc *GeminiClient) Chat(ctx context.Context, s Snapshot, question string, history []Message) []Message {
	updated := make([]Message, len(history), len(history)+2)
	copy(updated, history)

	text, err := gc.GenerateContent(ctx, ChatInstruction(s), history, question)
	if err != nil {
		gc.Log.WithError(err).Error("error generating recommendation")
		return append(updated, Message{Role: RoleAssistant, Content: ChatFailedMessage})
	}

	return append(updated,
		Message{Role: RoleUser, Content: question},
		Message{Role: RoleAssistant, Content: text},
	)
}

// toContents maps stored turns onto the API's roles, dropping unknown ones.
func toContents(history []Message) []content {
	res := make([]content, 0, len(history)+1)
	for _, msg := range history {
		switch msg.Role {
		case RoleUser:
			res = append(res, content{Role: RoleUser, Parts: []part{{Text: msg.Content}}})
		case RoleAssistant:
			res = append(res, content{Role: roleModel, Parts: []part{{Text: msg.Content}}})
		}
	}
	return res
}
