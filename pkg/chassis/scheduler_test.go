package chassis

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/KodaTao/taskter/pkg/config"
	"github.com/KodaTao/taskter/pkg/function"
	"github.com/KodaTao/taskter/pkg/observability"
	"github.com/KodaTao/taskter/pkg/running"
	"github.com/KodaTao/taskter/pkg/scheduler"
	"github.com/KodaTao/taskter/pkg/storage"
	"github.com/KodaTao/taskter/pkg/types"
)

// idleSignal 每次 MarkIdle 后发送 Agent ID
type idleSignal struct {
	running.Tracker
	idle chan int
}

func (s *idleSignal) MarkIdle(ctx context.Context, agentID int) error {
	err := s.Tracker.MarkIdle(ctx, agentID)
	s.idle <- agentID
	return err
}

func seedBoard(t *testing.T, store storage.Store, agent types.Agent, titles ...string) {
	t.Helper()
	ctx := context.Background()
	if err := store.SaveAgents(ctx, []types.Agent{agent}); err != nil {
		t.Fatalf("SaveAgents failed: %v", err)
	}
	board := &types.Board{}
	for i, title := range titles {
		board.Tasks = append(board.Tasks, types.Task{
			ID:      i + 1,
			Title:   title,
			Status:  types.StatusToDo,
			AgentID: types.IntPtr(agent.ID),
		})
	}
	if err := store.SaveBoard(ctx, board); err != nil {
		t.Fatalf("SaveBoard failed: %v", err)
	}
}

// 同一 Agent 的两个任务并发执行，先结束的任务不应把 Agent 移出运行集合
func TestScheduledFanOut_KeepsAgentRunningUntilLastTask(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), "User: slow") {
			select {
			case <-release:
			case <-time.After(5 * time.Second):
			}
		}
		_, _ = io.WriteString(w, geminiText)
	}))
	defer srv.Close()

	t.Setenv("GEMINI_API_KEY", "")
	cfg := config.Default(config.WithDataDir(t.TempDir()))
	cfg.Providers.Gemini.APIKey = "test-key"
	cfg.Providers.Gemini.BaseURL = srv.URL

	store := storage.NewJSONStore(cfg.Paths)
	tracker := &idleSignal{Tracker: store, idle: make(chan int, 2)}
	engine := NewEngine(cfg, function.NewRegistry(), tracker,
		WithActivityLog(&observability.MemoryJournal{}),
		WithResponsesLog(observability.Discard),
	)

	agent := types.Agent{ID: 1, SystemPrompt: "You are helpful.", Model: "gemini-2.5-flash", Repeat: true}
	seedBoard(t, store, agent, "fast", "slow")

	done := make(chan scheduler.FiringReport, 1)
	go func() {
		done <- scheduler.NewJob(agent, store, engine).Run(context.Background())
	}()

	select {
	case <-tracker.idle:
	case <-time.After(5 * time.Second):
		close(release)
		t.Fatal("first task did not finish")
	}
	ids, err := store.Running(context.Background())
	if err != nil {
		t.Fatalf("Running failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != 1 {
		t.Errorf("Running() while second task in flight = %v, want [1]", ids)
	}

	close(release)
	report := <-done
	if len(report.Outcomes) != 2 {
		t.Fatalf("Expected 2 outcomes, got %+v", report)
	}
	ids, _ = store.Running(context.Background())
	if len(ids) != 0 {
		t.Errorf("Running() after firing = %v, want empty", ids)
	}
}

// 每秒触发的一次性计划走离线降级：两个任务都完成，计划被清除
func TestScheduler_OneShotOfflineFallback(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	cfg := config.Default(config.WithDataDir(t.TempDir()))

	store := storage.NewJSONStore(cfg.Paths)
	journal := &observability.MemoryJournal{}
	engine := NewEngine(cfg, function.NewRegistry(), store,
		WithActivityLog(journal),
		WithResponsesLog(observability.Discard),
	)

	agent := types.Agent{
		ID:           1,
		SystemPrompt: "You send emails.",
		Tools:        []types.FunctionDeclaration{{Name: "send_email", Parameters: map[string]any{}}},
		Model:        "gemini-2.5-flash",
		Schedule:     types.StringPtr("*/1 * * * * *"),
		Repeat:       false,
	}
	seedBoard(t, store, agent, "Mail the team", "Mail the board")

	s := scheduler.New(store, engine, scheduler.WithLocation(time.UTC))
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	ctx := context.Background()
	deadline := time.Now().Add(5 * time.Second)
	for {
		agents, err := store.LoadAgents(ctx)
		if err != nil {
			t.Fatalf("LoadAgents failed: %v", err)
		}
		if len(agents) == 1 && !agents[0].IsScheduled() && s.Len() == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("one-shot schedule was not cleared: %+v", agents)
		}
		time.Sleep(50 * time.Millisecond)
	}

	board, err := store.LoadBoard(ctx)
	if err != nil {
		t.Fatalf("LoadBoard failed: %v", err)
	}
	for _, task := range board.Tasks {
		if task.Status != types.StatusDone {
			t.Errorf("Task %d status = %s, want Done", task.ID, task.Status)
		}
		if task.Comment == nil || *task.Comment != FallbackSuccessComment {
			t.Errorf("Task %d comment = %v", task.ID, task.Comment)
		}
	}
	agents, _ := store.LoadAgents(ctx)
	if agents[0].Repeat {
		t.Error("repeat should stay false after a one-shot firing")
	}
	ids, _ := store.Running(ctx)
	if len(ids) != 0 {
		t.Errorf("Running() = %v, want empty", ids)
	}
	if !journal.Contains("Executing without API key") {
		t.Errorf("Expected offline fallback in log: %q", journal.Lines())
	}
}
