package router

import (
	"testing"
	"time"

	"github.com/orchestratorhub/hub/internal/envelope"
)

func TestAgentRegisterNameCollisionEvictsOlder(t *testing.T) {
	hub := newTestHub(t)
	defer hub.close()

	a1 := dial(t, hub.agentSrv)
	defer a1.close()
	a1.send(envelope.TypeAgentRegister, map[string]any{"name": "alice", "capabilities": []string{"x"}})
	reg1 := a1.expectType(envelope.TypeAgentRegistered)
	var c1 struct {
		ID string `json:"id"`
	}
	_ = reg1.Decode(&c1)
	if c1.ID == "" {
		t.Fatal("expected a minted agent id")
	}

	a2 := dial(t, hub.agentSrv)
	defer a2.close()
	a2.send(envelope.TypeAgentRegister, map[string]any{"name": "alice"})
	reg2 := a2.expectType(envelope.TypeAgentRegistered)
	var c2 struct {
		ID string `json:"id"`
	}
	_ = reg2.Decode(&c2)

	if c1.ID == c2.ID {
		t.Fatal("expected the second registration to mint a distinct agent id")
	}

	agent, ok := hub.router.agents.ByName("alice")
	if !ok {
		t.Fatal("expected alice to resolve")
	}
	if agent.ID != c2.ID {
		t.Fatalf("expected ByName to resolve to the newer agent %s, got %s", c2.ID, agent.ID)
	}
}

// TestLifecycleScenario exercises spec §8's basic lifecycle: client creates
// a task against a named agent, the agent executes and reports back, and
// the client sees task.created, then task.status {completed}, then
// task.result.
func TestLifecycleScenario(t *testing.T) {
	hub := newTestHub(t)
	defer hub.close()

	agent := dial(t, hub.agentSrv)
	defer agent.close()
	agent.send(envelope.TypeAgentRegister, map[string]any{"name": "worker-1"})
	agent.expectType(envelope.TypeAgentRegistered)

	client := dial(t, hub.clientSrv)
	defer client.close()
	client.send(envelope.TypeClientAgentTaskCreateReq, map[string]any{
		"agentName": "worker-1",
		"taskData":  map[string]any{"op": "sum"},
	})

	created := client.expectType(envelope.TypeTaskCreated)
	var createdContent struct {
		TaskID string `json:"taskId"`
	}
	_ = created.Decode(&createdContent)
	if createdContent.TaskID == "" {
		t.Fatal("expected a minted task id")
	}

	execEnv := agent.expectType(envelope.TypeTaskExecute)
	var execContent struct {
		TaskID string `json:"taskId"`
	}
	_ = execEnv.Decode(&execContent)
	if execContent.TaskID != createdContent.TaskID {
		t.Fatalf("expected task.execute to carry the same task id, got %s vs %s", execContent.TaskID, createdContent.TaskID)
	}

	agent.send(envelope.TypeTaskResult, map[string]any{
		"taskId": createdContent.TaskID,
		"result": map[string]any{"sum": 42},
	})

	statusEnv := client.expectType(envelope.TypeTaskStatus)
	var statusContent struct {
		TaskID string `json:"taskId"`
		Status string `json:"status"`
	}
	_ = statusEnv.Decode(&statusContent)
	if statusContent.TaskID != createdContent.TaskID || statusContent.Status != "completed" {
		t.Fatalf("expected task.status completed for %s, got %+v", createdContent.TaskID, statusContent)
	}

	result := client.expectType(envelope.TypeTaskResult)
	var resultContent struct {
		TaskID string `json:"taskId"`
		Status string `json:"status"`
	}
	_ = result.Decode(&resultContent)
	if resultContent.TaskID != createdContent.TaskID {
		t.Fatalf("result task id mismatch: %s", resultContent.TaskID)
	}
	if resultContent.Status != "completed" {
		t.Fatalf("expected status completed, got %q", resultContent.Status)
	}

	tk, ok := hub.router.agentTasks.Get(createdContent.TaskID)
	if !ok {
		t.Fatal("expected task to remain in the registry")
	}
	if string(tk.Status) != "completed" {
		t.Fatalf("expected stored task status completed, got %s", tk.Status)
	}
}

// TestDelegationScenario exercises spec §8's agent-to-agent delegation
// path: requester gets childagent.request.accepted immediately, target
// gets task.execute, and the requester gets childagent.response once the
// target reports task.result.
func TestDelegationScenario(t *testing.T) {
	hub := newTestHub(t)
	defer hub.close()

	requester := dial(t, hub.agentSrv)
	defer requester.close()
	requester.send(envelope.TypeAgentRegister, map[string]any{"name": "parent"})
	requester.expectType(envelope.TypeAgentRegistered)

	target := dial(t, hub.agentSrv)
	defer target.close()
	target.send(envelope.TypeAgentRegister, map[string]any{"name": "child"})
	target.expectType(envelope.TypeAgentRegistered)

	requester.send(envelope.TypeAgentTaskRequest, map[string]any{
		"targetAgentName": "child",
		"taskType":        "compute",
		"taskData":        map[string]any{"n": 7},
	})

	accepted := requester.expectType(envelope.TypeChildAgentRequestAccepted)
	var acceptedContent struct {
		ChildTaskID string `json:"childTaskId"`
	}
	_ = accepted.Decode(&acceptedContent)
	if acceptedContent.ChildTaskID == "" {
		t.Fatal("expected a minted child task id")
	}

	execEnv := target.expectType(envelope.TypeTaskExecute)
	var execContent struct {
		TaskID string `json:"taskId"`
	}
	_ = execEnv.Decode(&execContent)
	if execContent.TaskID != acceptedContent.ChildTaskID {
		t.Fatalf("expected task.execute to carry the child task id, got %s", execContent.TaskID)
	}

	target.send(envelope.TypeTaskResult, map[string]any{
		"taskId": acceptedContent.ChildTaskID,
		"result": map[string]any{"n2": 49},
	})

	resp := requester.expectType(envelope.TypeChildAgentResponse)
	var respContent struct {
		ChildTaskID string `json:"childTaskId"`
		Status      string `json:"status"`
	}
	_ = resp.Decode(&respContent)
	if respContent.ChildTaskID != acceptedContent.ChildTaskID {
		t.Fatalf("childagent.response task id mismatch: %s", respContent.ChildTaskID)
	}
	if respContent.Status != "completed" {
		t.Fatalf("expected status completed, got %q", respContent.Status)
	}
}

// TestServiceInvocationScenario exercises spec §8's agent-invokes-service
// path with a client observer: the client sees service.started then
// service.completed, and the requesting agent sees service.response.
func TestServiceInvocationScenario(t *testing.T) {
	hub := newTestHub(t)
	defer hub.close()

	agent := dial(t, hub.agentSrv)
	defer agent.close()
	agent.send(envelope.TypeAgentRegister, map[string]any{"name": "caller"})
	agent.expectType(envelope.TypeAgentRegistered)

	svc := dial(t, hub.serviceSrv)
	defer svc.close()
	svc.send(envelope.TypeServiceRegister, map[string]any{"name": "search"})
	svc.expectType(envelope.TypeServiceRegistered)

	serviceRecord, ok := hub.router.services.ByName("search")
	if !ok {
		t.Fatal("expected search service to be registered")
	}

	client := dial(t, hub.clientSrv)
	defer client.close()
	clientList := hub.router.clients.List()
	if len(clientList) != 1 {
		t.Fatalf("expected exactly one registered client, got %d", len(clientList))
	}
	clientRecord := clientList[0]

	agent.send(envelope.TypeServiceTaskExecute, map[string]any{
		"serviceId": serviceRecord.ID,
		"toolName":  "lookup",
		"params":    map[string]any{"q": "go"},
		"clientId":  clientRecord.ID,
	})

	started := client.expectType(envelope.TypeServiceStarted)
	var startedContent struct {
		ServiceTaskID string `json:"serviceTaskId"`
	}
	_ = started.Decode(&startedContent)
	if startedContent.ServiceTaskID == "" {
		t.Fatal("expected a minted service task id")
	}

	accepted := agent.expectType(envelope.TypeServiceRequestAccepted)
	var acceptedContent struct {
		ServiceTaskID string `json:"serviceTaskId"`
	}
	_ = accepted.Decode(&acceptedContent)
	if acceptedContent.ServiceTaskID != startedContent.ServiceTaskID {
		t.Fatalf("service task id mismatch between service.started and service.request.accepted")
	}

	execEnv := svc.expectType(envelope.TypeServiceTaskExecute)
	var execContent struct {
		TaskID string `json:"taskId"`
	}
	_ = execEnv.Decode(&execContent)
	if execContent.TaskID != startedContent.ServiceTaskID {
		t.Fatalf("expected service.task.execute to carry the service task id")
	}

	svc.send(envelope.TypeServiceTaskResult, map[string]any{
		"taskId": startedContent.ServiceTaskID,
		"result": map[string]any{"hits": 3},
	})

	completed := client.expectType(envelope.TypeServiceCompleted)
	var completedContent struct {
		ServiceTaskID string `json:"serviceTaskId"`
	}
	_ = completed.Decode(&completedContent)
	if completedContent.ServiceTaskID != startedContent.ServiceTaskID {
		t.Fatalf("service.completed task id mismatch")
	}

	response := agent.expectType(envelope.TypeServiceResponse)
	var responseContent struct {
		Status string `json:"status"`
	}
	_ = response.Decode(&responseContent)
	if responseContent.Status != "completed" {
		t.Fatalf("expected service.response status completed, got %q", responseContent.Status)
	}
}

// TestAgentDisconnectFailsInFlightTask exercises spec §8's disconnect
// scenario: a dispatched task with no terminal status fails and the
// client is notified once the agent connection drops.
func TestAgentDisconnectFailsInFlightTask(t *testing.T) {
	hub := newTestHub(t)
	defer hub.close()

	agent := dial(t, hub.agentSrv)
	agent.send(envelope.TypeAgentRegister, map[string]any{"name": "flaky"})
	agent.expectType(envelope.TypeAgentRegistered)

	client := dial(t, hub.clientSrv)
	defer client.close()
	client.send(envelope.TypeClientAgentTaskCreateReq, map[string]any{
		"agentName": "flaky",
		"taskData":  map[string]any{},
	})
	created := client.expectType(envelope.TypeTaskCreated)
	var createdContent struct {
		TaskID string `json:"taskId"`
	}
	_ = created.Decode(&createdContent)

	agent.expectType(envelope.TypeTaskExecute)
	agent.close()

	errEnv := client.expectType(envelope.TypeTaskError)
	var errContent struct {
		TaskID string `json:"taskId"`
		Error  string `json:"error"`
	}
	_ = errEnv.Decode(&errContent)
	if errContent.TaskID != createdContent.TaskID {
		t.Fatalf("task.error task id mismatch: %s", errContent.TaskID)
	}

	tk, ok := hub.router.agentTasks.Get(createdContent.TaskID)
	if !ok {
		t.Fatal("expected task record to survive disconnect")
	}
	if string(tk.Status) != "failed" {
		t.Fatalf("expected task status failed after agent disconnect, got %s", tk.Status)
	}
}

// TestUnknownTypeRepliesWithError exercises spec §4.5.9's default path.
func TestUnknownTypeRepliesWithError(t *testing.T) {
	hub := newTestHub(t)
	defer hub.close()

	client := dial(t, hub.clientSrv)
	defer client.close()
	client.send("not.a.real.type", map[string]any{})

	errEnv := client.expectType(envelope.TypeError)
	if errEnv.RequestID == "" {
		t.Fatal("expected the error to echo the original frame's id as requestId")
	}
}

// TestPingPong exercises spec §4.5.8.
func TestPingPong(t *testing.T) {
	hub := newTestHub(t)
	defer hub.close()

	client := dial(t, hub.clientSrv)
	defer client.close()
	client.send(envelope.TypePing, map[string]string{"timestamp": "2026-01-01T00:00:00Z"})

	pong := client.expectType(envelope.TypePong)
	var content struct {
		Timestamp string `json:"timestamp"`
	}
	_ = pong.Decode(&content)
	if content.Timestamp != "2026-01-01T00:00:00Z" {
		t.Fatalf("expected pong to echo the ping's timestamp, got %q", content.Timestamp)
	}
}

// TestDispatchTimeoutFailsTask exercises spec §8 Scenario 4: an agent
// that never replies to task.execute causes the pending request to fail
// with Timeout once the dispatch deadline elapses, and the client sees
// task.error rather than waiting forever.
func TestDispatchTimeoutFailsTask(t *testing.T) {
	hub := newTestHub(t)
	defer hub.close()
	hub.router.dispatchTimeout = 50 * time.Millisecond

	agent := dial(t, hub.agentSrv)
	defer agent.close()
	agent.send(envelope.TypeAgentRegister, map[string]any{"name": "silent-worker"})
	agent.expectType(envelope.TypeAgentRegistered)

	client := dial(t, hub.clientSrv)
	defer client.close()
	client.send(envelope.TypeClientAgentTaskCreateReq, map[string]any{
		"agentName": "silent-worker",
		"taskData":  map[string]any{"op": "sum"},
	})

	created := client.expectType(envelope.TypeTaskCreated)
	var createdContent struct {
		TaskID string `json:"taskId"`
	}
	_ = created.Decode(&createdContent)

	agent.expectType(envelope.TypeTaskExecute)
	// The agent never replies; the client should instead see task.error
	// once the shortened dispatch deadline elapses.

	errEnv := client.expectType(envelope.TypeTaskError)
	var errContent struct {
		TaskID string `json:"taskId"`
		Error  string `json:"error"`
	}
	_ = errEnv.Decode(&errContent)
	if errContent.TaskID != createdContent.TaskID {
		t.Fatalf("task id mismatch: %s", errContent.TaskID)
	}

	tk, ok := hub.router.agentTasks.Get(createdContent.TaskID)
	if !ok {
		t.Fatal("expected task record to survive the timeout")
	}
	if string(tk.Status) != "failed" {
		t.Fatalf("expected task status failed after dispatch timeout, got %s", tk.Status)
	}
}
