package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"taskpilot/internal/di"

	"github.com/spf13/cobra"
)

func newMemoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect and maintain the experience memory",
	}
	cmd.AddCommand(memoryStatsCmd(), memoryExportCmd(), memoryImportCmd(), memoryClearCmd())
	return cmd
}

func withMemory(cmd *cobra.Command, fn func(c *di.Container) error) error {
	c, err := di.NewMemoryContainer(cmd.Context(), loadConfig())
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}

func printStats(cmd *cobra.Command, c *di.Container) error {
	stats, err := c.Memory.GetMemoryStats(cmd.Context())
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}

func memoryStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print memory statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMemory(cmd, func(c *di.Container) error { return printStats(cmd, c) })
		},
	}
}

func memoryExportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the memory document to a file or stdout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMemory(cmd, func(c *di.Container) error {
				blob, err := c.Memory.ExportMemory(cmd.Context())
				if err != nil {
					return err
				}
				if out == "" || out == "-" {
					_, err = io.WriteString(cmd.OutOrStdout(), blob)
					return err
				}
				return os.WriteFile(out, []byte(blob), 0o644)
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

func memoryImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the memory with a previously exported document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			blob, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read memory file: %w", err)
			}
			return withMemory(cmd, func(c *di.Container) error {
				if !c.Memory.ImportMemory(cmd.Context(), string(blob)) {
					return errors.New("memory import failed")
				}
				return printStats(cmd, c)
			})
		},
	}
}

func memoryClearCmd() *cobra.Command {
	var keep bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Forget past experiences",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMemory(cmd, func(c *di.Container) error {
				if err := c.Memory.ClearMemory(cmd.Context(), keep); err != nil {
					return err
				}
				return printStats(cmd, c)
			})
		},
	}
	cmd.Flags().BoolVar(&keep, "keep-successful", false, "keep successful experiences")
	return cmd
}
