package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/evanschultz/sprintboard/internal/adapters/server/common"
	"github.com/evanschultz/sprintboard/internal/domain"
)

// boardCommand runs fn against the board adapter and prints its result as JSON.
func boardCommand(cmd *cobra.Command, opts *globalOptions, fn func(context.Context, common.BoardService) (any, error)) error {
	return withRuntime(cmd, opts, func(ctx context.Context, rt *boardRuntime) error {
		out, err := fn(ctx, common.NewAppServiceAdapter(rt.service))
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), out)
	})
}

func newTaskCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Create, change, and inspect tasks",
	}
	cmd.AddCommand(
		newTaskCreateCommand(opts),
		newTaskUpdateCommand(opts),
		newTaskMoveCommand(opts),
		newTaskSprintMoveCommand(opts),
		newTaskRefCommand(opts, "delete", "Delete a task and close the gap in its column",
			func(ctx context.Context, board common.BoardService, ref common.TaskRef) (any, error) {
				return board.DeleteTask(ctx, ref)
			}),
		newTaskRefCommand(opts, "duplicate", "Copy a task directly after the original",
			func(ctx context.Context, board common.BoardService, ref common.TaskRef) (any, error) {
				return board.DuplicateTask(ctx, ref)
			}),
		newTaskRefCommand(opts, "show", "Print one task",
			func(ctx context.Context, board common.BoardService, ref common.TaskRef) (any, error) {
				return board.GetTask(ctx, ref.TaskID)
			}),
		newTaskRefCommand(opts, "history", "Print the audit history of a task",
			func(ctx context.Context, board common.BoardService, ref common.TaskRef) (any, error) {
				return board.ListHistory(ctx, ref.TaskID)
			}),
	)
	return cmd
}

func newTaskRefCommand(
	opts *globalOptions,
	use, short string,
	fn func(context.Context, common.BoardService, common.TaskRef) (any, error),
) *cobra.Command {
	return &cobra.Command{
		Use:   use + " TASK_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return boardCommand(cmd, opts, func(ctx context.Context, board common.BoardService) (any, error) {
				return fn(ctx, board, common.TaskRef{TaskID: args[0], ActorID: opts.actorID})
			})
		},
	}
}

func newTaskCreateCommand(opts *globalOptions) *cobra.Command {
	var (
		in       common.CreateTaskRequest
		sprintID string
		assignee string
		effort   float64
		spent    float64
		due      string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task at the end of its column",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			in.ActorID = opts.actorID
			if flags.Changed("sprint") {
				in.SprintID = &sprintID
			}
			if flags.Changed("assignee") {
				in.AssigneeID = &assignee
			}
			if flags.Changed("effort") {
				in.Effort = &effort
			}
			if flags.Changed("timespent") {
				in.TimeSpent = &spent
			}
			if flags.Changed("due") {
				dueAt, err := parseDue(due)
				if err != nil {
					return err
				}
				in.DueAt = &dueAt
			}
			return boardCommand(cmd, opts, func(ctx context.Context, board common.BoardService) (any, error) {
				return board.CreateTask(ctx, in)
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&in.Title, "title", "", "task title")
	flags.StringVar(&in.Description, "description", "", "task description")
	flags.StringVar(&in.Status, "status", "", "status column (default todo)")
	flags.StringVar(&in.Priority, "priority", "", "low, medium, high, or urgent (default medium)")
	flags.StringVar(&sprintID, "sprint", "", "sprint id; the task is appended to the sprint list")
	flags.StringVar(&assignee, "assignee", "", "assignee id")
	flags.Float64Var(&effort, "effort", 0, "effort estimate")
	flags.Float64Var(&spent, "timespent", 0, "time spent")
	flags.StringVar(&due, "due", "", "due time (RFC3339 or YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newTaskUpdateCommand(opts *globalOptions) *cobra.Command {
	var (
		title       string
		description string
		status      string
		priority    string
		assignee    string
		sprintID    string
		sprintOrder float64
		effort      float64
		spent       float64
		due         string
	)
	cmd := &cobra.Command{
		Use:   "update TASK_ID",
		Short: "Change task fields; --clear-* flags null optional fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			in := common.UpdateTaskRequest{TaskID: args[0], ActorID: opts.actorID}
			if flags.Changed("title") {
				in.Title = &title
			}
			if flags.Changed("description") {
				in.Description = &description
			}
			if flags.Changed("status") {
				in.Status = &status
			}
			if flags.Changed("priority") {
				in.Priority = &priority
			}
			in.AssigneeID = patchFromFlags(flags, "assignee", assignee)
			in.SprintID = patchFromFlags(flags, "sprint", sprintID)
			in.SprintOrder = patchFromFlags(flags, "sprint-order", sprintOrder)
			in.Effort = patchFromFlags(flags, "effort", effort)
			in.TimeSpent = patchFromFlags(flags, "timespent", spent)
			switch {
			case flags.Changed("clear-due"):
				in.DueAt = domain.Clear[time.Time]()
			case flags.Changed("due"):
				dueAt, err := parseDue(due)
				if err != nil {
					return err
				}
				in.DueAt = domain.SetTo(dueAt)
			}
			return boardCommand(cmd, opts, func(ctx context.Context, board common.BoardService) (any, error) {
				return board.UpdateTask(ctx, in)
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&title, "title", "", "new title")
	flags.StringVar(&description, "description", "", "new description")
	flags.StringVar(&status, "status", "", "new status; the task is appended to that column")
	flags.StringVar(&priority, "priority", "", "new priority")
	flags.StringVar(&assignee, "assignee", "", "new assignee id")
	flags.StringVar(&sprintID, "sprint", "", "new sprint id")
	flags.Float64Var(&sprintOrder, "sprint-order", 0, "explicit sprint order")
	flags.Float64Var(&effort, "effort", 0, "new effort estimate")
	flags.Float64Var(&spent, "timespent", 0, "new time spent")
	flags.StringVar(&due, "due", "", "new due time (RFC3339 or YYYY-MM-DD)")
	for _, name := range []string{"assignee", "sprint", "sprint-order", "effort", "timespent", "due"} {
		flags.Bool("clear-"+name, false, "clear "+name)
		cmd.MarkFlagsMutuallyExclusive(name, "clear-"+name)
	}
	return cmd
}

func newTaskMoveCommand(opts *globalOptions) *cobra.Command {
	var (
		status   string
		position int
	)
	cmd := &cobra.Command{
		Use:   "move TASK_ID",
		Short: "Move a task to a 1-based position in a status column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return boardCommand(cmd, opts, func(ctx context.Context, board common.BoardService) (any, error) {
				target := status
				if target == "" {
					current, err := board.GetTask(ctx, args[0])
					if err != nil {
						return nil, err
					}
					target = string(current.Status)
				}
				return board.MoveTask(ctx, common.MoveTaskRequest{
					TaskID:   args[0],
					ActorID:  opts.actorID,
					Status:   target,
					Position: position,
				})
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "target status (default: the task's current status)")
	cmd.Flags().IntVar(&position, "position", 0, "1-based target position")
	_ = cmd.MarkFlagRequired("position")
	return cmd
}

func newTaskSprintMoveCommand(opts *globalOptions) *cobra.Command {
	var (
		sprintID string
		after    string
		backlog  bool
	)
	cmd := &cobra.Command{
		Use:   "sprint-move TASK_ID",
		Short: "Place a task in a sprint list after another task, or first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := common.ReorderInSprintRequest{TaskID: args[0], ActorID: opts.actorID, AfterTaskID: after}
			if !backlog {
				in.SprintID = &sprintID
			}
			return boardCommand(cmd, opts, func(ctx context.Context, board common.BoardService) (any, error) {
				return board.ReorderInSprint(ctx, in)
			})
		},
	}
	cmd.Flags().StringVar(&sprintID, "sprint", "", "target sprint id")
	cmd.Flags().BoolVar(&backlog, "backlog", false, "move the task to the backlog")
	cmd.Flags().StringVar(&after, "after", "", "place directly after this task (default: first)")
	cmd.MarkFlagsOneRequired("sprint", "backlog")
	cmd.MarkFlagsMutuallyExclusive("sprint", "backlog")
	return cmd
}

func newColumnCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "column STATUS",
		Short: "Print one status column in position order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return boardCommand(cmd, opts, func(ctx context.Context, board common.BoardService) (any, error) {
				return board.ListColumn(ctx, args[0])
			})
		},
	}
}

func newBoardCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "Print every status column",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return boardCommand(cmd, opts, func(ctx context.Context, board common.BoardService) (any, error) {
				columns, err := board.ListBoard(ctx)
				if err != nil {
					return nil, err
				}
				return map[string]any{"columns": columns}, nil
			})
		},
	}
}

func newSprintCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sprint [SPRINT_ID]",
		Short: "Print a sprint list in order, or the backlog when no id is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var sprintID *string
			if len(args) == 1 {
				sprintID = &args[0]
			}
			return boardCommand(cmd, opts, func(ctx context.Context, board common.BoardService) (any, error) {
				return board.ListSprint(ctx, sprintID)
			})
		},
	}
}

// patchFromFlags maps a value flag and its clear-* twin onto a Patch.
func patchFromFlags[T any](flags *pflag.FlagSet, name string, value T) domain.Patch[T] {
	switch {
	case flags.Changed("clear-" + name):
		return domain.Clear[T]()
	case flags.Changed(name):
		return domain.SetTo(value)
	default:
		return domain.Patch[T]{}
	}
}

// parseDue accepts RFC3339 timestamps or bare dates.
func parseDue(raw string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC(), nil
	}
	day, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse due %q: want RFC3339 or YYYY-MM-DD", raw)
	}
	return day.UTC(), nil
}
