// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/evanschultz/sprintboard/internal/adapters/server/common"
	"github.com/evanschultz/sprintboard/internal/app"
	"github.com/evanschultz/sprintboard/internal/domain"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter exposing the board tools.
func NewHandler(cfg Config, board common.BoardService) (*Handler, error) {
	if board == nil {
		return nil, fmt.Errorf("board service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerMutationTools(mcpSrv, board)
	registerReadTools(mcpSrv, board)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "sprintboard"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	if !strings.HasPrefix(cfg.EndpointPath, "/") {
		cfg.EndpointPath = "/" + cfg.EndpointPath
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// actorOption is shared by every mutating tool.
func actorOption() mcp.ToolOption {
	return mcp.WithString("actor_id", mcp.Required(), mcp.Description("Actor recorded in the task history"))
}

// registerMutationTools registers the tools that change board ordering.
func registerMutationTools(srv *mcpserver.MCPServer, board common.BoardService) {
	statuses := statusNames()

	srv.AddTool(
		mcp.NewTool(
			"board.create_task",
			mcp.WithDescription("Create a task at the end of its status column and sprint."),
			actorOption(),
			mcp.WithString("title", mcp.Required(), mcp.Description("Task title")),
			mcp.WithString("description", mcp.Description("Task description")),
			mcp.WithString("status", mcp.Description("Target column (defaults to todo)"), mcp.Enum(statuses...)),
			mcp.WithString("priority", mcp.Description("low|medium|high|urgent"), mcp.Enum("low", "medium", "high", "urgent")),
			mcp.WithString("sprint_id", mcp.Description("Sprint to join; omit for the backlog")),
			mcp.WithString("assignee_id", mcp.Description("Assignee user id")),
			mcp.WithNumber("effort", mcp.Description("Effort estimate")),
			mcp.WithNumber("timespent", mcp.Description("Time already spent")),
			mcp.WithString("due_at", mcp.Description("Optional RFC3339 timestamp")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args common.CreateTaskRequest
			if err := req.BindArguments(&args); err != nil {
				return invalidRequestToolResult(err), nil
			}
			task, err := board.CreateTask(ctx, args)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("create_task", task)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"board.update_task",
			mcp.WithDescription("Apply a partial update. Send null to clear a nullable field."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task id")),
			actorOption(),
			mcp.WithString("title", mcp.Description("New title")),
			mcp.WithString("description", mcp.Description("New description")),
			mcp.WithString("status", mcp.Description("New column; the task keeps its position number"), mcp.Enum(statuses...)),
			mcp.WithString("priority", mcp.Description("low|medium|high|urgent"), mcp.Enum("low", "medium", "high", "urgent")),
			mcp.WithString("assignee_id", mcp.Description("Assignee user id or null")),
			mcp.WithString("sprint_id", mcp.Description("Sprint id or null for the backlog")),
			mcp.WithNumber("sprint_order", mcp.Description("Explicit sprint order; collisions are bumped")),
			mcp.WithNumber("effort", mcp.Description("Effort estimate or null")),
			mcp.WithNumber("timespent", mcp.Description("Time spent or null")),
			mcp.WithString("due_at", mcp.Description("RFC3339 timestamp or null")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			var args struct {
				common.UpdateTaskRequest
				TaskID string `json:"task_id"`
			}
			if err := req.BindArguments(&args); err != nil {
				return invalidRequestToolResult(err), nil
			}
			in := args.UpdateTaskRequest
			in.TaskID = taskID
			task, err := board.UpdateTask(ctx, in)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("update_task", task)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"board.move_task",
			mcp.WithDescription("Move a task to a 1-based position in a status column."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task id")),
			actorOption(),
			mcp.WithString("status", mcp.Required(), mcp.Description("Destination column"), mcp.Enum(statuses...)),
			mcp.WithNumber("position", mcp.Required(), mcp.Description("Destination position; past-the-end appends")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			status, err := req.RequireString("status")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			position, err := req.RequireInt("position")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			out, err := board.MoveTask(ctx, common.MoveTaskRequest{
				TaskID:   taskID,
				ActorID:  req.GetString("actor_id", ""),
				Status:   status,
				Position: position,
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("move_task", out)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"board.reorder_in_sprint",
			mcp.WithDescription("Place a task in a sprint list after another task, or first when after_task_id is omitted."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task id")),
			actorOption(),
			mcp.WithString("sprint_id", mcp.Description("Destination sprint; omit for the backlog")),
			mcp.WithString("after_task_id", mcp.Description("Anchor task already in the sprint")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			out, err := board.ReorderInSprint(ctx, common.ReorderInSprintRequest{
				TaskID:      taskID,
				ActorID:     req.GetString("actor_id", ""),
				SprintID:    optionalString(req, "sprint_id"),
				AfterTaskID: req.GetString("after_task_id", ""),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("reorder_in_sprint", out)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"board.delete_task",
			mcp.WithDescription("Delete a task and close the gap in its column."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task id")),
			actorOption(),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			ref, errResult := taskRef(req)
			if errResult != nil {
				return errResult, nil
			}
			out, err := board.DeleteTask(ctx, ref)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("delete_task", out)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"board.duplicate_task",
			mcp.WithDescription("Copy a task directly after its source in both column and sprint."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Source task id")),
			actorOption(),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			ref, errResult := taskRef(req)
			if errResult != nil {
				return errResult, nil
			}
			out, err := board.DuplicateTask(ctx, ref)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("duplicate_task", out)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"board.resequence_all",
			mcp.WithDescription("Repair every column and sprint to dense, unique ordering."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			report, err := board.ResequenceAll(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("resequence_all", report)
		},
	)
}

// registerReadTools registers read-only board views.
func registerReadTools(srv *mcpserver.MCPServer, board common.BoardService) {
	srv.AddTool(
		mcp.NewTool(
			"board.get_task",
			mcp.WithDescription("Return one task."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task id")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			task, err := board.GetTask(ctx, taskID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("get_task", task)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"board.list_history",
			mcp.WithDescription("List the field-level audit trail for one task, oldest first."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task id")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			records, err := board.ListHistory(ctx, taskID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_history", map[string]any{"history": records})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"board.list_column",
			mcp.WithDescription("List one status column in position order."),
			mcp.WithString("status", mcp.Required(), mcp.Description("Column status"), mcp.Enum(statusNames()...)),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			status, err := req.RequireString("status")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			column, err := board.ListColumn(ctx, status)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_column", column)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"board.list_board",
			mcp.WithDescription("List every status column in board order."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			columns, err := board.ListBoard(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_board", map[string]any{"columns": columns})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"board.list_sprint",
			mcp.WithDescription("List one sprint in sprint order; omit sprint_id for the backlog."),
			mcp.WithString("sprint_id", mcp.Description("Sprint id")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			snapshot, err := board.ListSprint(ctx, optionalString(req, "sprint_id"))
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_sprint", snapshot)
		},
	)
}

func taskRef(req mcp.CallToolRequest) (common.TaskRef, *mcp.CallToolResult) {
	taskID, err := req.RequireString("task_id")
	if err != nil {
		return common.TaskRef{}, invalidRequestToolResult(err)
	}
	return common.TaskRef{TaskID: taskID, ActorID: req.GetString("actor_id", "")}, nil
}

// optionalString returns nil when the argument is absent or blank.
func optionalString(req mcp.CallToolRequest, key string) *string {
	value := strings.TrimSpace(req.GetString(key, ""))
	if value == "" {
		return nil
	}
	return &value
}

func statusNames() []string {
	statuses := domain.Statuses()
	out := make([]string, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, string(status))
	}
	return out
}

func jsonResult(tool string, payload any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s result: %w", tool, err)
	}
	return result, nil
}

// invalidRequestToolResult reports one argument failure.
func invalidRequestToolResult(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError("invalid_request: " + err.Error())
}

// toolResultFromError maps service errors into MCP-visible tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.Is(err, common.ErrNotFound):
		return mcp.NewToolResultError("not_found: " + err.Error())
	case errors.Is(err, common.ErrInvalidRequest), errors.Is(err, app.ErrInvalidActorID):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	case errors.Is(err, common.ErrConflict):
		return mcp.NewToolResultError("conflict: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}
