package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KodaTao/taskter/pkg/chassis"
	"github.com/KodaTao/taskter/pkg/storage"
	"github.com/KodaTao/taskter/pkg/types"
)

// taskCmd 看板任务管理
func taskCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Task management commands",
	}
	cmd.AddCommand(
		taskAddCmd(opts),
		taskListCmd(opts),
		taskCompleteCmd(opts),
		taskCommentCmd(opts),
		taskAssignCmd(opts),
		taskUnassignCmd(opts),
		taskExecuteCmd(opts),
	)
	return cmd
}

func taskAddCmd(opts *rootOptions) *cobra.Command {
	var title, description string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Adds a new task",
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, app *chassis.App) error {
			ctx := cmd.Context()
			board, err := app.Store().LoadBoard(ctx)
			if err != nil {
				return err
			}
			task := types.Task{
				ID:     board.NextTaskID(),
				Title:  title,
				Status: types.StatusToDo,
			}
			if cmd.Flags().Changed("description") {
				task.Description = types.StringPtr(description)
			}
			board.Tasks = append(board.Tasks, task)
			if err := app.Store().SaveBoard(ctx, board); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Task added successfully.")
			return nil
		}),
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "The title of the task")
	cmd.Flags().StringVarP(&description, "description", "d", "", "The description of the task")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func taskListCmd(opts *rootOptions) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Lists all tasks",
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, app *chassis.App) error {
			var filter types.TaskStatus
			if status != "" {
				parsed, ok := types.ParseTaskStatus(status)
				if !ok {
					return fmt.Errorf("unknown status %q (want ToDo, InProgress or Done)", status)
				}
				filter = parsed
			}
			board, err := app.Store().LoadBoard(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, t := range board.Tasks {
				if filter != "" && t.Status != filter {
					continue
				}
				desc := ""
				if t.Description != nil {
					desc = *t.Description
				}
				fmt.Fprintf(out, "[%d] %s - %s - %q\n", t.ID, t.Title, t.Status, desc)
			}
			return nil
		}),
	}

	cmd.Flags().StringVarP(&status, "status", "s", "", "Only list tasks with this status")
	return cmd
}

func taskCompleteCmd(opts *rootOptions) *cobra.Command {
	var id int

	cmd := &cobra.Command{
		Use:   "complete",
		Short: "Marks a task as complete",
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, app *chassis.App) error {
			err := updateTask(cmd.Context(), app.Store(), id, func(t *types.Task) {
				t.Status = types.StatusDone
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task %d marked as done.\n", id)
			return nil
		}),
	}

	cmd.Flags().IntVar(&id, "id", 0, "The id of the task to mark as done")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func taskCommentCmd(opts *rootOptions) *cobra.Command {
	var taskID int
	var comment string

	cmd := &cobra.Command{
		Use:   "comment",
		Short: "Adds a comment to a task",
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, app *chassis.App) error {
			err := updateTask(cmd.Context(), app.Store(), taskID, func(t *types.Task) {
				t.Comment = types.StringPtr(comment)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Comment added to task %d.\n", taskID)
			return nil
		}),
	}

	cmd.Flags().IntVarP(&taskID, "task-id", "t", 0, "The id of the task to comment on")
	cmd.Flags().StringVarP(&comment, "comment", "c", "", "The comment text")
	_ = cmd.MarkFlagRequired("task-id")
	_ = cmd.MarkFlagRequired("comment")
	return cmd
}

func taskAssignCmd(opts *rootOptions) *cobra.Command {
	var taskID, agentID int

	cmd := &cobra.Command{
		Use:   "assign",
		Short: "Assigns an agent to a task",
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, app *chassis.App) error {
			err := updateTask(cmd.Context(), app.Store(), taskID, func(t *types.Task) {
				t.AgentID = types.IntPtr(agentID)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Agent %d assigned to task %d.\n", agentID, taskID)
			return nil
		}),
	}

	cmd.Flags().IntVarP(&taskID, "task-id", "t", 0, "The id of the task to assign")
	cmd.Flags().IntVarP(&agentID, "agent-id", "a", 0, "The id of the agent to assign")
	_ = cmd.MarkFlagRequired("task-id")
	_ = cmd.MarkFlagRequired("agent-id")
	return cmd
}

func taskUnassignCmd(opts *rootOptions) *cobra.Command {
	var taskID int

	cmd := &cobra.Command{
		Use:   "unassign",
		Short: "Unassigns any agent from a task",
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, app *chassis.App) error {
			err := updateTask(cmd.Context(), app.Store(), taskID, func(t *types.Task) {
				t.AgentID = nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Agent unassigned from task %d.\n", taskID)
			return nil
		}),
	}

	cmd.Flags().IntVarP(&taskID, "task-id", "t", 0, "The id of the task to unassign")
	_ = cmd.MarkFlagRequired("task-id")
	return cmd
}

func taskExecuteCmd(opts *rootOptions) *cobra.Command {
	var taskID int

	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Executes a task with its assigned agent",
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, app *chassis.App) error {
			result, err := app.RunTask(cmd.Context(), taskID)
			if err != nil {
				return err
			}
			if result.IsSuccess() {
				fmt.Fprintf(cmd.OutOrStdout(), "Task %d executed successfully.\n", taskID)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Task %d failed to execute.\n", taskID)
			}
			return nil
		}),
	}

	cmd.Flags().IntVarP(&taskID, "task-id", "t", 0, "The id of the task to execute")
	_ = cmd.MarkFlagRequired("task-id")
	return cmd
}

// updateTask 读取看板，修改指定任务后写回
func updateTask(ctx context.Context, store storage.Store, id int, fn func(*types.Task)) error {
	board, err := store.LoadBoard(ctx)
	if err != nil {
		return err
	}
	task := board.Find(id)
	if task == nil {
		return storage.TaskNotFound(id)
	}
	fn(task)
	return store.SaveBoard(ctx, board)
}
