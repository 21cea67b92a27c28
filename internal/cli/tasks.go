package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/raphaelgruber/notegen/internal/models"
	"github.com/raphaelgruber/notegen/internal/storage"
	"github.com/raphaelgruber/notegen/internal/store"
)

var (
	completedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	processingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

var tasksCmd = &cobra.Command{
	Use:   "tasks [task-id]",
	Short: "List or inspect tasks",
	Long: `List all tasks or inspect a specific task by ID.

Examples:
  notegen tasks                # List all tasks
  notegen tasks 1709290800042  # Show details for one task`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTasks,
}

func init() {
	rootCmd.AddCommand(tasksCmd)
}

func runTasks(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	objects, err := storage.NewS3Store(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init object storage: %w", err)
	}
	tasks := store.New(objects, logger)

	if len(args) == 1 {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid task id %q", args[0])
		}
		return showTask(ctx, tasks, id)
	}

	return listTasks(ctx, tasks)
}

func listTasks(ctx context.Context, tasks *store.Store) error {
	all, err := tasks.List(ctx)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}

	if len(all) == 0 {
		fmt.Println("No tasks found")
		return nil
	}

	fmt.Printf("%-16s %-30s %-20s %s\n", "ID", "TITLE", "CREATED", "STATUS")
	fmt.Println("--------------------------------------------------------------------------------")

	for _, task := range all {
		title := task.Title
		if len([]rune(title)) > 28 {
			title = string([]rune(title)[:27]) + "…"
		}
		fmt.Printf("%-16d %-30s %-20s %s\n", task.ID, title, task.CreatedAt, styleStatus(task.Status))
	}

	return nil
}

func showTask(ctx context.Context, tasks *store.Store, id int64) error {
	task, err := tasks.Load(ctx, id)
	if err != nil {
		return fmt.Errorf("get task: %w", err)
	}

	fmt.Printf("Task: %d\n", task.ID)
	fmt.Printf("  Title: %s\n", task.Title)
	fmt.Printf("  Created: %s\n", task.CreatedAt)
	fmt.Printf("  Status: %s\n", styleStatus(task.Status))
	fmt.Printf("  Source: %s\n", task.SourceURL)
	if task.Metadata != nil {
		fmt.Printf("  Media: %s (%d bytes)\n", task.Metadata.Name, task.Metadata.Size)
	}
	if task.ResultDocumentURL != "" {
		fmt.Printf("  Document: %s\n", task.ResultDocumentURL)
	}
	if task.ErrorMessage != "" {
		fmt.Printf("  Error: %s\n", errorStyle.Render(task.ErrorMessage))
	}

	return nil
}

func styleStatus(status models.TaskStatus) string {
	s := string(status)
	switch status {
	case models.StatusCompleted:
		return completedStyle.Render(s)
	case models.StatusError:
		return errorStyle.Render(s)
	case models.StatusProcessing:
		return processingStyle.Render(s)
	default:
		return s
	}
}
