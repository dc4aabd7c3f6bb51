package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/KodaTao/taskter/pkg/scheduler"
	"github.com/KodaTao/taskter/pkg/types"
)

// HelpText 命令帮助
const HelpText = "Commands:\n/tasks - list tasks\n/agents - list agents\n/run <agent_id> - run an agent now"

// BoardReader 读取看板
type BoardReader interface {
	LoadBoard(ctx context.Context) (*types.Board, error)
}

// AgentLister 读取 Agent 列表
type AgentLister interface {
	LoadAgents(ctx context.Context) ([]types.Agent, error)
}

// AgentRunner 立即触发一次 Agent
type AgentRunner interface {
	Fire(ctx context.Context, agentID int) (scheduler.FiringReport, error)
}

// Commands Bot 命令处理，与 Telegram API 解耦
type Commands struct {
	Board  BoardReader
	Agents AgentLister
	Runner AgentRunner
}

// Handle 处理一条命令，返回回复文本
// command 不含前导斜杠
func (c Commands) Handle(ctx context.Context, command, args string) string {
	switch strings.ToLower(command) {
	case "tasks":
		return c.tasks(ctx)
	case "agents":
		return c.agents(ctx)
	case "run":
		return c.run(ctx, strings.TrimSpace(args))
	case "start", "help":
		return HelpText
	default:
		return "Unknown command.\n" + HelpText
	}
}

func (c Commands) tasks(ctx context.Context) string {
	if c.Board == nil {
		return "Board is not available"
	}
	board, err := c.Board.LoadBoard(ctx)
	if err != nil {
		return fmt.Sprintf("Failed to load board: %v", err)
	}
	if len(board.Tasks) == 0 {
		return "No tasks"
	}
	lines := make([]string, 0, len(board.Tasks))
	for _, t := range board.Tasks {
		line := fmt.Sprintf("#%d [%s] %s", t.ID, t.Status, t.Title)
		if t.AgentID != nil {
			line += fmt.Sprintf(" (agent %d)", *t.AgentID)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (c Commands) agents(ctx context.Context) string {
	if c.Agents == nil {
		return "Agents are not available"
	}
	agents, err := c.Agents.LoadAgents(ctx)
	if err != nil {
		return fmt.Sprintf("Failed to load agents: %v", err)
	}
	if len(agents) == 0 {
		return "No agents"
	}
	lines := make([]string, 0, len(agents))
	for _, a := range agents {
		line := fmt.Sprintf("#%d %s", a.ID, a.Model)
		if a.Schedule != nil {
			line += fmt.Sprintf(" schedule=%q repeat=%t", *a.Schedule, a.Repeat)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (c Commands) run(ctx context.Context, args string) string {
	id, err := strconv.Atoi(args)
	if err != nil {
		return "usage: /run <agent_id>"
	}
	if c.Runner == nil {
		return "Runner is not available"
	}
	report, err := c.Runner.Fire(ctx, id)
	if err != nil {
		return fmt.Sprintf("Failed to run agent %d: %v", id, err)
	}
	return report.Summary()
}
