package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"taskpilot/internal/di"
	"taskpilot/internal/domain/entity"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newRunCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Queue the tasks from a YAML or JSON file and exit when the queue is empty",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tasks, err := readTasks(file)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			c, err := di.NewContainer(ctx, loadConfig())
			if err != nil {
				return err
			}
			defer c.Close()

			c.Scheduler.Restore(ctx)
			for _, t := range tasks {
				id, err := c.Scheduler.AddTask(ctx, t)
				if err != nil {
					return err
				}
				c.Logger.Info("Task queued", "id", id, "type", t.Type)
			}

			if err := c.Scheduler.Wait(ctx); err != nil {
				return err
			}
			stats := c.Scheduler.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "done: %d urls visited, %d files downloaded, %d analyses\n",
				stats.VisitedURLs, stats.DownloadedFiles, stats.AnalysisResults)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "task list (YAML or JSON)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// readTasks accepts a list of tasks or a single task. YAML is a superset of
// JSON, so both formats go through the same decoder.
func readTasks(path string) ([]entity.Task, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read task file: %w", err)
	}
	return parseTasks(raw)
}

func parseTasks(raw []byte) ([]entity.Task, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse task file: %w", err)
	}
	if _, ok := doc.([]any); !ok {
		doc = []any{doc}
	}

	// entity.Task decodes its typed params from JSON.
	js, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("parse task file: %w", err)
	}
	var tasks []entity.Task
	if err := json.Unmarshal(js, &tasks); err != nil {
		return nil, fmt.Errorf("parse task file: %w", err)
	}
	if len(tasks) == 0 {
		return nil, errors.New("task file is empty")
	}
	for i, t := range tasks {
		if t.Params == nil {
			return nil, fmt.Errorf("task %d: unknown task type %q", i, t.Type)
		}
	}
	return tasks, nil
}
