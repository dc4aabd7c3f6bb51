package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/KodaTao/taskter/pkg/chassis"
	"github.com/KodaTao/taskter/pkg/function/builtin"
	"github.com/KodaTao/taskter/pkg/scheduler"
	"github.com/KodaTao/taskter/pkg/types"
)

// agentCmd Agent 管理
func agentCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Agent management commands",
	}
	cmd.AddCommand(
		agentAddCmd(opts),
		agentListCmd(opts),
		agentRunningCmd(opts),
		agentRemoveCmd(opts),
		agentUpdateCmd(opts),
		agentScheduleCmd(opts),
		agentExportCmd(opts),
		agentImportCmd(opts),
	)
	return cmd
}

func agentAddCmd(opts *rootOptions) *cobra.Command {
	var prompt, model, provider string
	var tools []string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Adds a new agent",
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, app *chassis.App) error {
			ctx := cmd.Context()
			decls, err := builtin.ResolveTools(app.Registry(), tools)
			if err != nil {
				return err
			}
			agents, err := app.Store().LoadAgents(ctx)
			if err != nil {
				return err
			}
			agent := types.Agent{
				ID:           types.NextAgentID(agents),
				SystemPrompt: prompt,
				Tools:        decls,
				Model:        model,
			}
			if provider != "" {
				agent.Provider = types.StringPtr(provider)
			}
			if err := app.Store().SaveAgents(ctx, append(agents, agent)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Agent added successfully.")
			return nil
		}),
	}

	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "The system prompt for the agent")
	cmd.Flags().StringSliceVarP(&tools, "tools", "t", nil, "The tools the agent can use (built-in names or declaration files)")
	cmd.Flags().StringVarP(&model, "model", "m", "", "The model to use for the agent")
	cmd.Flags().StringVar(&provider, "provider", "", "The provider to use for the agent (openai, gemini, ollama)")
	_ = cmd.MarkFlagRequired("prompt")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}

func agentListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Lists all agents",
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, app *chassis.App) error {
			agents, err := app.Store().LoadAgents(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, a := range agents {
				names := make([]string, 0, len(a.Tools))
				for _, t := range a.Tools {
					names = append(names, t.Name)
				}
				fmt.Fprintf(out, "%d: %s (model: %s, tools: %s)\n", a.ID, a.SystemPrompt, a.Model, strings.Join(names, ", "))
			}
			return nil
		}),
	}
}

func agentRunningCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "running",
		Short: "Lists running agents",
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, app *chassis.App) error {
			ids, err := app.Store().Running(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(ids) == 0 {
				fmt.Fprintln(out, "No agents are running.")
				return nil
			}
			for _, id := range ids {
				fmt.Fprintf(out, "Agent %d\n", id)
			}
			return nil
		}),
	}
}

func agentRemoveCmd(opts *rootOptions) *cobra.Command {
	var id int

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Removes an agent by id",
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, app *chassis.App) error {
			if err := builtin.DeleteAgent(cmd.Context(), app.Store(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Agent %d deleted.\n", id)
			return nil
		}),
	}

	cmd.Flags().IntVar(&id, "id", 0, "The id of the agent to delete")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func agentUpdateCmd(opts *rootOptions) *cobra.Command {
	var id int
	var prompt, model, provider string
	var tools []string

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Updates an agent's configuration. Each field is optional",
		Long:  "Updates an agent's configuration. Each field is optional; --provider \"\" clears the provider.",
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, app *chassis.App) error {
			flags := cmd.Flags()
			var decls []types.FunctionDeclaration
			if flags.Changed("tools") {
				var err error
				if decls, err = builtin.ResolveTools(app.Registry(), tools); err != nil {
					return err
				}
			}

			err := app.Store().UpdateAgent(cmd.Context(), id, func(a *types.Agent) error {
				if flags.Changed("prompt") {
					a.SystemPrompt = prompt
				}
				if flags.Changed("tools") {
					a.Tools = decls
				}
				if flags.Changed("model") {
					a.Model = model
				}
				if flags.Changed("provider") {
					if strings.TrimSpace(provider) == "" {
						a.Provider = nil
					} else {
						a.Provider = types.StringPtr(provider)
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Agent %d updated.\n", id)
			return nil
		}),
	}

	cmd.Flags().IntVar(&id, "id", 0, "The id of the agent to update")
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "The new system prompt for the agent")
	cmd.Flags().StringSliceVarP(&tools, "tools", "t", nil, "The new tools the agent can use")
	cmd.Flags().StringVarP(&model, "model", "m", "", "The new model for the agent")
	cmd.Flags().StringVar(&provider, "provider", "", "The new provider for the agent")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func agentScheduleCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Schedule operations for an agent",
	}
	cmd.AddCommand(scheduleSetCmd(opts), scheduleListCmd(opts), scheduleRemoveCmd(opts))
	return cmd
}

func scheduleSetCmd(opts *rootOptions) *cobra.Command {
	var id int
	var expr string
	var once bool

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set a cron expression for an agent",
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, app *chassis.App) error {
			if err := scheduler.ValidateSchedule(expr); err != nil {
				return err
			}
			err := app.Store().UpdateAgent(cmd.Context(), id, func(a *types.Agent) error {
				a.Schedule = types.StringPtr(expr)
				a.Repeat = !once
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Agent %d scheduled.\n", id)
			return nil
		}),
	}

	cmd.Flags().IntVar(&id, "id", 0, "The id of the agent")
	cmd.Flags().StringVar(&expr, "cron", "", "Cron expression (sec min hour day month weekday)")
	cmd.Flags().BoolVar(&once, "once", false, "Run only once")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("cron")
	return cmd
}

func scheduleListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List scheduled agents",
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, app *chassis.App) error {
			agents, err := app.Store().LoadAgents(cmd.Context())
			if err != nil {
				return err
			}
			loc, err := time.LoadLocation(app.Config().Scheduler.Timezone)
			if err != nil {
				return err
			}
			now := time.Now().In(loc)
			out := cmd.OutOrStdout()
			for _, a := range agents {
				if !a.IsScheduled() {
					continue
				}
				fmt.Fprintf(out, "%d: %s (repeat: %t", a.ID, *a.Schedule, a.Repeat)
				if next, err := scheduler.NextRun(*a.Schedule, now); err == nil {
					fmt.Fprintf(out, ", next: %s", next.Format(time.RFC3339))
				}
				fmt.Fprintln(out, ")")
			}
			return nil
		}),
	}
}

func scheduleRemoveCmd(opts *rootOptions) *cobra.Command {
	var id int

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove a schedule from an agent",
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, app *chassis.App) error {
			err := app.Store().UpdateAgent(cmd.Context(), id, func(a *types.Agent) error {
				a.Schedule = nil
				a.Repeat = false
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schedule removed for agent %d.\n", id)
			return nil
		}),
	}

	cmd.Flags().IntVar(&id, "id", 0, "The id of the agent")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func agentExportCmd(opts *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Exports all agents as YAML",
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, app *chassis.App) error {
			agents, err := app.Store().LoadAgents(cmd.Context())
			if err != nil {
				return err
			}
			if agents == nil {
				agents = []types.Agent{}
			}
			data, err := yaml.Marshal(agents)
			if err != nil {
				return fmt.Errorf("failed to encode agents: %w", err)
			}
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d agents to %s.\n", len(agents), output)
			return nil
		}),
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}

func agentImportCmd(opts *rootOptions) *cobra.Command {
	var replace bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Imports agents from a YAML file",
		Long:  "Imports agents from a YAML file. Imported agents get fresh ids unless --replace is given, which replaces the whole agent list.",
		Args:  cobra.ExactArgs(1),
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, app *chassis.App) error {
			ctx := cmd.Context()
			imported, err := readAgentsYAML(args[0])
			if err != nil {
				return err
			}

			var agents []types.Agent
			if !replace {
				if agents, err = app.Store().LoadAgents(ctx); err != nil {
					return err
				}
			}
			for _, a := range imported {
				if !replace || a.ID <= 0 || types.FindAgent(agents, a.ID) != nil {
					a.ID = types.NextAgentID(agents)
				}
				agents = append(agents, a)
			}
			if err := app.Store().SaveAgents(ctx, agents); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d agents.\n", len(imported))
			return nil
		}),
	}

	cmd.Flags().BoolVar(&replace, "replace", false, "Replace the existing agents, keeping the file's ids")
	return cmd
}

// readAgentsYAML 解析 Agent 列表，并校验其中的 cron 表达式
func readAgentsYAML(path string) ([]types.Agent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var agents []types.Agent
	if err := yaml.Unmarshal(data, &agents); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	for i := range agents {
		a := &agents[i]
		if a.SystemPrompt == "" || a.Model == "" {
			return nil, fmt.Errorf("agent #%d in %s: system_prompt and model are required", i+1, path)
		}
		if a.IsScheduled() {
			if err := scheduler.ValidateSchedule(*a.Schedule); err != nil {
				return nil, err
			}
		}
		for j := range a.Tools {
			if a.Tools[j].Parameters == nil {
				a.Tools[j].Parameters = map[string]any{}
			}
		}
	}
	return agents, nil
}
