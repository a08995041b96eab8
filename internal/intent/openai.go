package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/antoniostano/voxtodo/internal/engine"
	"github.com/antoniostano/voxtodo/internal/reliability"
	"github.com/antoniostano/voxtodo/internal/resolver"
	"github.com/antoniostano/voxtodo/internal/session"
)

const systemPrompt = `You are a helpful assistant for managing a to-do list.
Map the user's command to exactly one tool call.

When users ask to:
- "Show me all [category] tasks" or "List [category] tasks" -> list_tasks
- "Create a task to do X" or "Make me a task for Y" -> create_task
- "Update task X", "Change task Y" or "Push task Z to tomorrow" -> update_task
- "Delete task X" or "Remove task Y" -> delete_task
- "Find tasks about X" -> search_tasks

For priorities interpret: "high", "important", "urgent" -> high;
"low", "not important" -> low; "medium", "normal" -> medium.
Pass scheduled times through as the user said them ("tomorrow", "next week").
Use task_number for positional references like "the 4th task", task_id for
explicit ids, and task_title for descriptive phrases.`

// OpenAIParser extracts intents through the OpenAI tool-calling API.
type OpenAIParser struct {
	client *openai.Client
	model  string
}

func NewOpenAIParser(apiKey, model string) *OpenAIParser {
	if strings.TrimSpace(model) == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIParser{client: openai.NewClient(apiKey), model: model}
}

func (p *OpenAIParser) Parse(ctx context.Context, utterance string, history []session.Exchange) (engine.Intent, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	for _, ex := range history {
		role := openai.ChatMessageRoleUser
		if ex.Role == session.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: ex.Text})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: utterance,
	})

	var resp openai.ChatCompletionResponse
	err := reliability.Retry(ctx, 3, 200*time.Millisecond, 2*time.Second, func() error {
		var err error
		resp, err = p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    p.model,
			Messages: messages,
			Tools:    toolDefinitions,
		})
		return err
	})
	if err != nil {
		return engine.Intent{}, fmt.Errorf("intent completion: %w", err)
	}
	if len(resp.Choices) == 0 || len(resp.Choices[0].Message.ToolCalls) == 0 {
		return engine.Intent{}, fmt.Errorf("intent completion: no tool call in response")
	}

	call := resp.Choices[0].Message.ToolCalls[0]
	intent, err := IntentFromToolCall(call.Function.Name, []byte(call.Function.Arguments))
	if err != nil {
		return engine.Intent{}, err
	}
	intent.Utterance = utterance
	return intent, nil
}

// toolArgs is the union of every tool's arguments.
type toolArgs struct {
	Title         string `json:"title"`
	NewTitle      string `json:"new_title"`
	Priority      string `json:"priority"`
	ScheduledTime string `json:"scheduled_time"`
	Category      string `json:"category"`
	Query         string `json:"query"`
	TaskID        int64  `json:"task_id"`
	TaskNumber    int    `json:"task_number"`
	TaskTitle     string `json:"task_title"`
}

// IntentFromToolCall maps one extracted tool call to an executor
// intent. Reference precedence is explicit id, then position, then
// descriptive phrase.
func IntentFromToolCall(name string, arguments []byte) (engine.Intent, error) {
	var args toolArgs
	if len(arguments) > 0 {
		if err := json.Unmarshal(arguments, &args); err != nil {
			return engine.Intent{}, fmt.Errorf("decode tool arguments for %s: %w", name, err)
		}
	}

	ref := reference(args)
	switch name {
	case "create_task":
		return engine.Intent{
			Operation: engine.OpCreate,
			Fields: engine.Fields{
				Title:         args.Title,
				Priority:      args.Priority,
				ScheduledTime: args.ScheduledTime,
				Category:      NormalizeCategory(args.Category),
			},
		}, nil
	case "update_task":
		return engine.Intent{
			Operation: engine.OpUpdate,
			Reference: ref,
			Fields: engine.Fields{
				Title:         args.NewTitle,
				Priority:      args.Priority,
				ScheduledTime: args.ScheduledTime,
				Category:      NormalizeCategory(args.Category),
			},
		}, nil
	case "delete_task":
		return engine.Intent{Operation: engine.OpDelete, Reference: ref}, nil
	case "get_task":
		return engine.Intent{Operation: engine.OpGet, Reference: ref}, nil
	case "list_tasks":
		return engine.Intent{Operation: engine.OpList, Category: NormalizeCategory(args.Category)}, nil
	case "search_tasks":
		return engine.Intent{Operation: engine.OpSearch, Query: args.Query}, nil
	default:
		return engine.Intent{}, fmt.Errorf("unknown tool %q", name)
	}
}

func reference(args toolArgs) *resolver.Reference {
	switch {
	case args.TaskID > 0:
		ref := resolver.ByID(args.TaskID)
		return &ref
	case args.TaskNumber > 0:
		ref := resolver.ByOrdinal(args.TaskNumber)
		return &ref
	case strings.TrimSpace(args.TaskTitle) != "":
		ref := resolver.ByPhrase(args.TaskTitle)
		return &ref
	default:
		return nil
	}
}

// NormalizeCategory expands the shorthands users actually say.
func NormalizeCategory(category string) string {
	c := strings.ToLower(strings.TrimSpace(category))
	switch c {
	case "admin":
		return "administrative"
	case "shop":
		return "shopping"
	default:
		return c
	}
}

var toolDefinitions = []openai.Tool{
	functionTool("create_task", "Create a new task.", `{
		"type": "object",
		"properties": {
			"title": {"type": "string", "description": "The task title"},
			"priority": {"type": "string", "enum": ["low", "medium", "high"]},
			"scheduled_time": {"type": "string", "description": "Scheduled time as the user said it, e.g. 'tomorrow at 3pm'"},
			"category": {"type": "string", "description": "Optional category, e.g. work, personal, administrative, shopping"}
		},
		"required": ["title"]
	}`),
	functionTool("update_task", "Update a task identified by id, position, or title phrase.", `{
		"type": "object",
		"properties": {
			"task_id": {"type": "integer", "description": "The task id, if known"},
			"task_number": {"type": "integer", "description": "1-based position in the current listing, e.g. 4 for 'the 4th task'"},
			"task_title": {"type": "string", "description": "Descriptive phrase matching the task, e.g. 'compliances'"},
			"new_title": {"type": "string"},
			"priority": {"type": "string", "enum": ["low", "medium", "high"]},
			"scheduled_time": {"type": "string"},
			"category": {"type": "string"}
		}
	}`),
	functionTool("delete_task", "Delete a task identified by id, position, or title phrase.", `{
		"type": "object",
		"properties": {
			"task_id": {"type": "integer"},
			"task_number": {"type": "integer"},
			"task_title": {"type": "string"}
		}
	}`),
	functionTool("get_task", "Show one task identified by id, position, or title phrase.", `{
		"type": "object",
		"properties": {
			"task_id": {"type": "integer"},
			"task_number": {"type": "integer"},
			"task_title": {"type": "string"}
		}
	}`),
	functionTool("list_tasks", "List all tasks, optionally filtered by category.", `{
		"type": "object",
		"properties": {
			"category": {"type": "string"}
		}
	}`),
	functionTool("search_tasks", "Search tasks by keyword or meaning.", `{
		"type": "object",
		"properties": {
			"query": {"type": "string"}
		},
		"required": ["query"]
	}`),
}

func functionTool(name, description, schema string) openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        name,
			Description: description,
			Parameters:  json.RawMessage(schema),
		},
	}
}
