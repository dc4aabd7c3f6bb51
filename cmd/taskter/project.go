package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KodaTao/taskter/pkg/chassis"
	"github.com/KodaTao/taskter/pkg/types"
)

// DefaultDescription init 写入的项目描述
const DefaultDescription = "# Project Description"

// initCmd 初始化数据目录
func initCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initializes a new taskter board",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if _, err := os.Stat(cfg.Paths.DataDir); err == nil {
				fmt.Fprintln(out, "taskter board already initialized.")
				return nil
			} else if !errors.Is(err, fs.ErrNotExist) {
				return err
			}

			files := []struct {
				path    string
				content string
			}{
				{cfg.Paths.Description, DefaultDescription},
				{cfg.Paths.OKRs, "[]"},
				{cfg.Paths.Log, ""},
				{cfg.Paths.Board, `{ "tasks": [] }`},
				{cfg.Paths.Agents, "[]"},
			}
			if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
				return err
			}
			for _, f := range files {
				if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
					return err
				}
				if err := os.WriteFile(f.path, []byte(f.content), 0o644); err != nil {
					return err
				}
			}
			fmt.Fprintln(out, "taskter board initialized.")
			return nil
		},
	}
}

// okrsCmd OKR 管理
func okrsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "okrs",
		Aliases: []string{"okr"},
		Short:   "Manage OKRs",
	}

	var objective string
	var keyResults []string
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Adds a new OKR",
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, app *chassis.App) error {
			ctx := cmd.Context()
			okrs, err := app.Store().LoadOKRs(ctx)
			if err != nil {
				return err
			}
			okr := types.Okr{Objective: objective, KeyResults: make([]types.KeyResult, 0, len(keyResults))}
			for _, kr := range keyResults {
				okr.KeyResults = append(okr.KeyResults, types.KeyResult{Name: kr})
			}
			if err := app.Store().SaveOKRs(ctx, append(okrs, okr)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OKR added successfully.")
			return nil
		}),
	}
	addCmd.Flags().StringVarP(&objective, "objective", "o", "", "The objective")
	addCmd.Flags().StringSliceVarP(&keyResults, "key-results", "k", nil, "The key results")
	_ = addCmd.MarkFlagRequired("objective")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Lists all OKRs",
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, app *chassis.App) error {
			okrs, err := app.Store().LoadOKRs(cmd.Context())
			if err != nil {
				return err
			}
			if okrs == nil {
				okrs = []types.Okr{}
			}
			data, err := json.MarshalIndent(okrs, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}),
	}

	cmd.AddCommand(addCmd, listCmd)
	return cmd
}

// logsCmd 活动日志
func logsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "logs",
		Aliases: []string{"log"},
		Short:   "Manage logs",
	}

	addCmd := &cobra.Command{
		Use:   "add <message>",
		Short: "Adds a log entry",
		Args:  cobra.ExactArgs(1),
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, app *chassis.App) error {
			if err := app.ActivityLog().Append(args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Log added successfully.")
			return nil
		}),
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Lists log entries",
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, app *chassis.App) error {
			entries, err := app.ActivityLog().Entries()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, line := range entries {
				fmt.Fprintln(out, line)
			}
			return nil
		}),
	}

	cmd.AddCommand(addCmd, listCmd)
	return cmd
}

// descriptionCmd 项目描述
func descriptionCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "description",
		Aliases: []string{"desc"},
		Short:   "Project description",
	}

	setCmd := &cobra.Command{
		Use:   "set <description>",
		Short: "Sets the project description",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			path := cfg.Paths.Description
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(strings.Join(args, " ")), 0o644); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Project description updated successfully.")
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Shows the project description",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(cfg.Paths.Description)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	cmd.AddCommand(setCmd, showCmd)
	return cmd
}
