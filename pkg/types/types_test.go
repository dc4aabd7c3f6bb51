package types

import (
	"encoding/json"
	"testing"
)

func TestFunctionDeclaration_DefaultParameters(t *testing.T) {
	var decl FunctionDeclaration
	if err := json.Unmarshal([]byte(`{"name":"run_bash","description":null}`), &decl); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decl.Parameters == nil || len(decl.Parameters) != 0 {
		t.Errorf("Expected empty parameters object, got %v", decl.Parameters)
	}
	if decl.DescriptionText() != "" {
		t.Errorf("Expected empty description, got %q", decl.DescriptionText())
	}
}

func TestAgent_JSONCompatibility(t *testing.T) {
	raw := `{"id":3,"system_prompt":"p","tools":[{"name":"send_email","description":"d","parameters":{}}],"model":"gpt-4o"}`
	var a Agent
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if a.Provider != nil || a.Schedule != nil || a.Repeat {
		t.Errorf("Expected optional fields to default, got %+v", a)
	}
	if !a.HasTool("send_email") {
		t.Error("Expected HasTool(send_email) to be true")
	}
	if a.HasTool("run_bash") {
		t.Error("Expected HasTool(run_bash) to be false")
	}
}

func TestAgent_CloneIsDeep(t *testing.T) {
	a := Agent{ID: 1, Schedule: StringPtr("* * * * * *"), Tools: []FunctionDeclaration{{Name: "a"}}}
	c := a.Clone()
	*c.Schedule = "changed"
	c.Tools[0].Name = "b"

	if *a.Schedule != "* * * * * *" {
		t.Errorf("Clone shares schedule pointer")
	}
	if a.Tools[0].Name != "a" {
		t.Errorf("Clone shares tools slice")
	}
}

func TestBoard_NextTaskIDAndOpenTasks(t *testing.T) {
	b := Board{Tasks: []Task{
		{ID: 1, Status: StatusToDo, AgentID: IntPtr(1)},
		{ID: 5, Status: StatusDone, AgentID: IntPtr(1)},
		{ID: 3, Status: StatusInProgress, AgentID: IntPtr(1)},
		{ID: 4, Status: StatusToDo, AgentID: IntPtr(2)},
		{ID: 2, Status: StatusToDo},
	}}

	if got := b.NextTaskID(); got != 6 {
		t.Errorf("Expected next id 6, got %d", got)
	}
	if got := (&Board{}).NextTaskID(); got != 1 {
		t.Errorf("Expected next id 1 on empty board, got %d", got)
	}

	open := b.OpenTasksFor(1)
	if len(open) != 2 || open[0].ID != 1 || open[1].ID != 3 {
		t.Errorf("Unexpected open tasks: %+v", open)
	}
}

func TestExecutionResult_ApplyTo(t *testing.T) {
	task := &Task{ID: 1, Status: StatusToDo, AgentID: IntPtr(9)}
	Success("done it").ApplyTo(task)
	if task.Status != StatusDone || task.Comment == nil || *task.Comment != "done it" {
		t.Errorf("Unexpected task after success: %+v", task)
	}
	if task.AgentID == nil {
		t.Error("Success should keep the assignment")
	}

	task = &Task{ID: 2, Status: StatusInProgress, AgentID: IntPtr(9)}
	Failure("nope").ApplyTo(task)
	if task.Status != StatusToDo || *task.Comment != "nope" || task.AgentID != nil {
		t.Errorf("Unexpected task after failure: %+v", task)
	}
}

func TestParseTaskStatus(t *testing.T) {
	tests := map[string]TaskStatus{
		"todo":        StatusToDo,
		"In Progress": StatusInProgress,
		"in_progress": StatusInProgress,
		"DONE":        StatusDone,
	}
	for in, want := range tests {
		got, ok := ParseTaskStatus(in)
		if !ok || got != want {
			t.Errorf("ParseTaskStatus(%q) = %q, %v; want %q", in, got, ok, want)
		}
	}
	if _, ok := ParseTaskStatus("blocked"); ok {
		t.Error("Expected unknown status to fail")
	}
}

func TestNextAgentIDAndFind(t *testing.T) {
	agents := []Agent{{ID: 2}, {ID: 7}}
	if got := NextAgentID(agents); got != 8 {
		t.Errorf("NextAgentID() = %d, want 8", got)
	}
	if got := NextAgentID(nil); got != 1 {
		t.Errorf("NextAgentID(nil) = %d, want 1", got)
	}
	found := FindAgent(agents, 7)
	if found == nil {
		t.Fatal("FindAgent(7) = nil")
	}
	found.Model = "changed"
	if agents[1].Model != "changed" {
		t.Error("FindAgent should return a pointer into the slice")
	}
	if FindAgent(agents, 3) != nil {
		t.Error("FindAgent(3) should be nil")
	}
}
