package tools

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// TodoTool lets an agent maintain a structured task list across a workflow:
// create/update todos, and read back a progress summary. Intended for
// multi-step tasks (3+ steps) where tracking what's done vs. pending helps
// the agent (and a reviewing human) follow along.
type TodoTool struct {
	mu    sync.RWMutex
	todos map[string][]TodoItem // per-session todos (sessionID -> todos)
}

// TodoItem is a single tracked task.
type TodoItem struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Status  string `json:"status"` // "pending", "in_progress", "completed", "cancelled"
}

// NewTodoTool creates a new todo management tool.
func NewTodoTool() *TodoTool {
	return &TodoTool{
		todos: make(map[string][]TodoItem),
	}
}

// GetInfo implements the Tool interface.
func (t *TodoTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        "todo_write",
		Description: "Create and manage a structured task list for tracking progress on multi-step tasks.",
		Parameters: []ToolParameter{
			{
				Name:        "merge",
				Type:        "boolean",
				Description: "If true, merge with existing todos (for updates). If false, replace all todos (for a new task).",
				Required:    true,
			},
			{
				Name:        "todos",
				Type:        "array",
				Description: "Array of todo items, each with id, content, and status.",
				Required:    true,
				Items: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"id":      map[string]string{"type": "string", "description": "Unique identifier for the todo"},
						"content": map[string]string{"type": "string", "description": "Description of the task"},
						"status": map[string]interface{}{
							"type":        "string",
							"enum":        []string{"pending", "in_progress", "completed", "cancelled"},
							"description": "Current status of the task",
						},
					},
					"required": []string{"id", "content", "status"},
				},
			},
		},
		ServerURL: "local",
	}
}

// GetName implements the Tool interface.
func (t *TodoTool) GetName() string { return "todo_write" }

// GetDescription implements the Tool interface.
func (t *TodoTool) GetDescription() string {
	return "Create and manage todos for complex, multi-step tasks"
}

type todoSessionKey struct{}

// WithSessionID returns a context carrying the session ID the TodoTool scopes
// its per-session todo lists by; omit it and every caller shares "default".
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, todoSessionKey{}, sessionID)
}

func sessionIDFrom(ctx context.Context) string {
	if sid, ok := ctx.Value(todoSessionKey{}).(string); ok && sid != "" {
		return sid
	}
	return "default"
}

// Execute implements the Tool interface.
func (t *TodoTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	start := time.Now()

	merge, ok := args["merge"].(bool)
	if !ok {
		return t.errorResult("merge parameter is required (true/false)", start), fmt.Errorf("merge parameter is required")
	}

	todosRaw, ok := args["todos"].([]interface{})
	if !ok || len(todosRaw) == 0 {
		return t.errorResult("todos parameter is required and must be a non-empty array", start), fmt.Errorf("todos parameter is required")
	}

	todos := make([]TodoItem, 0, len(todosRaw))
	for i, todoRaw := range todosRaw {
		todoMap, ok := todoRaw.(map[string]interface{})
		if !ok {
			return t.errorResult(fmt.Sprintf("todo item %d is not an object", i), start), fmt.Errorf("invalid todo item format")
		}

		id, _ := todoMap["id"].(string)
		content, _ := todoMap["content"].(string)
		status, _ := todoMap["status"].(string)
		if id == "" || content == "" || status == "" {
			return t.errorResult(fmt.Sprintf("todo item %d is missing required fields (id, content, status)", i), start), fmt.Errorf("incomplete todo item")
		}
		if !isValidTodoStatus(status) {
			return t.errorResult(fmt.Sprintf("todo item %d has invalid status: %s", i, status), start), fmt.Errorf("invalid status")
		}

		todos = append(todos, TodoItem{ID: id, Content: content, Status: status})
	}

	sessionID := sessionIDFrom(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()

	if merge {
		existing := t.todos[sessionID]
		existingByID := make(map[string]*TodoItem, len(existing))
		for i := range existing {
			existingByID[existing[i].ID] = &existing[i]
		}
		for _, newTodo := range todos {
			if existingTodo, found := existingByID[newTodo.ID]; found {
				existingTodo.Content = newTodo.Content
				existingTodo.Status = newTodo.Status
			} else {
				existing = append(existing, newTodo)
			}
		}
		t.todos[sessionID] = existing
	} else {
		t.todos[sessionID] = todos
	}

	summary := t.generateSummary(sessionID)

	return ToolResult{
		Success:       true,
		Content:       summary,
		ToolName:      "todo_write",
		ExecutionTime: time.Since(start),
		Metadata: map[string]interface{}{
			"session_id": sessionID,
			"merge":      merge,
			"count":      len(t.todos[sessionID]),
		},
	}, nil
}

// GetTodos returns a copy of the current todos for a session.
func (t *TodoTool) GetTodos(sessionID string) []TodoItem {
	if sessionID == "" {
		sessionID = "default"
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	todos := t.todos[sessionID]
	result := make([]TodoItem, len(todos))
	copy(result, todos)
	return result
}

func (t *TodoTool) generateSummary(sessionID string) string {
	todos := t.todos[sessionID]
	if len(todos) == 0 {
		return "no active todos"
	}

	var pending, inProgress, completed, cancelled int
	for _, todo := range todos {
		switch todo.Status {
		case "pending":
			pending++
		case "in_progress":
			inProgress++
		case "completed":
			completed++
		case "cancelled":
			cancelled++
		}
	}

	summary := fmt.Sprintf("%d total (%d pending, %d in progress, %d completed, %d cancelled)\n",
		len(todos), pending, inProgress, completed, cancelled)
	for _, todo := range todos {
		summary += fmt.Sprintf("[%s] %s - %s\n", todo.Status, todo.ID, todo.Content)
	}
	return summary
}

func (t *TodoTool) errorResult(message string, start time.Time) ToolResult {
	return ToolResult{
		Success:       false,
		Error:         message,
		ToolName:      "todo_write",
		ExecutionTime: time.Since(start),
	}
}

func isValidTodoStatus(status string) bool {
	switch status {
	case "pending", "in_progress", "completed", "cancelled":
		return true
	default:
		return false
	}
}
