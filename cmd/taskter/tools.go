package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KodaTao/taskter/pkg/chassis"
	"github.com/KodaTao/taskter/pkg/prompt"
)

// toolsCmd 内置工具
func toolsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Manage built-in tools",
	}

	var verbose bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Lists built-in tools",
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, app *chassis.App) error {
			out := cmd.OutOrStdout()
			if verbose {
				summary, err := prompt.ToolSummary(app.Registry().ListInfo())
				if err != nil {
					return err
				}
				fmt.Fprintln(out, summary)
				return nil
			}
			for _, name := range app.Registry().List() {
				fmt.Fprintln(out, name)
			}
			return nil
		}),
	}

	listCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show descriptions and aliases")

	callCmd := &cobra.Command{
		Use:   "call <name> [json-arguments]",
		Short: "Calls a tool directly",
		Args:  cobra.RangeArgs(1, 2),
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, app *chassis.App) error {
			arguments := map[string]any{}
			if len(args) == 2 {
				if err := json.Unmarshal([]byte(args[1]), &arguments); err != nil {
					return fmt.Errorf("invalid arguments: %w", err)
				}
			}
			output, err := app.Registry().Execute(cmd.Context(), args[0], arguments)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), output)
			return nil
		}),
	}

	cmd.AddCommand(listCmd, callCmd)
	return cmd
}
