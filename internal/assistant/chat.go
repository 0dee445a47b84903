package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"
)

// maxToolRounds bounds how many model/tool round trips one question may take.
const maxToolRounds = 8

const systemPrompt = `You are the family calendar assistant. You manage the
household calendar through the provided tools. Use list_events before editing
or deleting so you reference real event IDs. Dates are YYYY-MM-DD and times
are 24-hour HH:MM. Today's date is %s. Keep answers short and concrete.`

// Chat is the conversational front of the tool surface: it hands the tool
// declarations to the chat model and routes every function call back
// through the dispatcher.
type Chat struct {
	client     *genai.Client
	dispatcher *Dispatcher
	model      string
	logger     *slog.Logger

	now func() time.Time
}

// NewChat creates the Gemini-backed assistant. The model defaults to
// gemini-2.0-flash when empty.
func NewChat(ctx context.Context, apiKey, model string, dispatcher *Dispatcher, logger *slog.Logger) (*Chat, error) {
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Chat{
		client:     client,
		dispatcher: dispatcher,
		model:      model,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// Ask sends a user message through the tool-calling loop and returns the
// model's final text answer.
func (c *Chat) Ask(ctx context.Context, message string) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(
			fmt.Sprintf(systemPrompt, c.now().Format("2006-01-02")), genai.RoleUser),
		Tools: []*genai.Tool{
			{FunctionDeclarations: Declarations()},
		},
	}

	contents := []*genai.Content{
		genai.NewContentFromText(message, genai.RoleUser),
	}

	for round := 0; round < maxToolRounds; round++ {
		resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
		if err != nil {
			return "", fmt.Errorf("generate content: %w", err)
		}

		calls := resp.FunctionCalls()
		if len(calls) == 0 {
			return resp.Text(), nil
		}

		if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
			contents = append(contents, resp.Candidates[0].Content)
		}

		for _, call := range calls {
			result := c.execute(ctx, call)
			part := genai.NewPartFromFunctionResponse(call.Name, result)
			contents = append(contents, genai.NewContentFromParts([]*genai.Part{part}, genai.RoleUser))
		}
	}

	return "", fmt.Errorf("assistant exceeded %d tool rounds", maxToolRounds)
}

// execute runs one function call and shapes the outcome for the model.
// Tool failures go back as an error field rather than aborting the chat,
// so the model can correct itself (for example after naming an unlisted
// preset).
func (c *Chat) execute(ctx context.Context, call *genai.FunctionCall) map[string]any {
	args, err := json.Marshal(call.Args)
	if err != nil {
		return map[string]any{"error": fmt.Sprintf("encode args: %v", err)}
	}

	result, err := c.dispatcher.Dispatch(ctx, call.Name, args)
	if err != nil {
		c.logger.Warn("tool call failed", "tool", call.Name, "error", err)
		return map[string]any{"error": err.Error()}
	}
	return map[string]any{"result": result}
}
