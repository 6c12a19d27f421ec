package toolkit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/rahul/browsekit/pkg/browser"
)

// mockSession is a scripted browser.Session. Every capability records its
// calls and returns whatever the test planted.
type mockSession struct {
	mu sync.Mutex

	initCalls int
	initErr   error

	gotoURLs []string
	gotoErr  error

	actCalls  []browser.ActArgs
	actResult *browser.ActResult
	actErr    error

	extractCalls  []browser.ExtractArgs
	extractResult map[string]any
	extractErr    error

	observeCalls   []browser.ObserveArgs
	observeActions []browser.Action
	observeErr     error

	closed bool
}

func (m *mockSession) Init(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initCalls++
	return m.initErr
}

func (m *mockSession) Goto(ctx context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gotoURLs = append(m.gotoURLs, url)
	return m.gotoErr
}

func (m *mockSession) Act(ctx context.Context, args browser.ActArgs) (*browser.ActResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actCalls = append(m.actCalls, args)
	if m.actErr != nil {
		return nil, m.actErr
	}
	return m.actResult, nil
}

func (m *mockSession) Extract(ctx context.Context, args browser.ExtractArgs) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extractCalls = append(m.extractCalls, args)
	if m.extractErr != nil {
		return nil, m.extractErr
	}
	return m.extractResult, nil
}

func (m *mockSession) Observe(ctx context.Context, args browser.ObserveArgs) ([]browser.Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observeCalls = append(m.observeCalls, args)
	if m.observeErr != nil {
		return nil, m.observeErr
	}
	return m.observeActions, nil
}

func (m *mockSession) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func countingFactory(s *mockSession) (browser.Factory, *int) {
	count := new(int)
	return func() browser.Session {
		*count++
		return s
	}, count
}

func TestNavigate_Success(t *testing.T) {
	mock := &mockSession{}
	tool := NewNavigateTool(WithSession(mock))

	result, err := tool.Call(context.Background(), "https://example.com")
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if result != "Successfully navigated to https://example.com" {
		t.Errorf("unexpected result: %q", result)
	}
	if len(mock.gotoURLs) != 1 || mock.gotoURLs[0] != "https://example.com" {
		t.Errorf("session saw URLs %v", mock.gotoURLs)
	}
}

func TestNavigate_Failure(t *testing.T) {
	mock := &mockSession{gotoErr: errors.New("net::ERR_NAME_NOT_RESOLVED")}
	tool := NewNavigateTool(WithSession(mock))

	result, err := tool.Call(context.Background(), "https://bad.invalid")
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if !strings.Contains(result, "Failed to navigate") {
		t.Errorf("expected failure marker, got %q", result)
	}
	if !strings.Contains(result, "ERR_NAME_NOT_RESOLVED") {
		t.Errorf("expected underlying description, got %q", result)
	}
}

func TestAct_Success(t *testing.T) {
	mock := &mockSession{actResult: &browser.ActResult{Success: true, Message: "clicked"}}
	tool := NewActTool(WithSession(mock))

	result, err := tool.Call(context.Background(), "click the login button")
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if !strings.Contains(result, "Action completed successfully") || !strings.Contains(result, "clicked") {
		t.Errorf("unexpected result: %q", result)
	}
	if mock.actCalls[0].Action != "click the login button" {
		t.Errorf("session saw action %q", mock.actCalls[0].Action)
	}
}

func TestAct_SoftFailure(t *testing.T) {
	mock := &mockSession{actResult: &browser.ActResult{Success: false, Message: "not found"}}
	tool := NewActTool(WithSession(mock))

	result, err := tool.Call(context.Background(), "click the missing button")
	if err != nil {
		t.Fatalf("soft failure must not be an error: %v", err)
	}
	if !strings.Contains(result, "Action was not successful") || !strings.Contains(result, "not found") {
		t.Errorf("unexpected result: %q", result)
	}
}

func TestAct_EngineFault(t *testing.T) {
	mock := &mockSession{actErr: errors.New("page crashed")}
	tool := NewActTool(WithSession(mock))

	result, err := tool.Call(context.Background(), "click something")
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if !strings.Contains(result, "Failed to perform action") || !strings.Contains(result, "page crashed") {
		t.Errorf("unexpected result: %q", result)
	}
}

func TestExtract_InvalidJSON(t *testing.T) {
	tool := NewExtractTool(WithSession(&mockSession{}))

	result, err := tool.Call(context.Background(), "not json")
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if result != extractInvalidInputMsg {
		t.Errorf("unexpected diagnostic: %q", result)
	}
}

func TestExtract_MissingFields(t *testing.T) {
	mock := &mockSession{}
	tool := NewExtractTool(WithSession(mock))

	for _, input := range []string{
		`{}`,
		`{"instruction":"get title"}`,
		`{"schema":{"title":"string"}}`,
		`{"instruction":"","schema":{"title":"string"}}`,
	} {
		result, err := tool.Call(context.Background(), input)
		if err != nil {
			t.Fatalf("Call(%q) returned error: %v", input, err)
		}
		if result != extractMissingFieldsMsg {
			t.Errorf("Call(%q) = %q, want missing-fields diagnostic", input, result)
		}
	}

	if len(mock.extractCalls) != 0 {
		t.Error("malformed input must never reach the session")
	}
}

func TestExtract_Success(t *testing.T) {
	mock := &mockSession{extractResult: map[string]any{"title": "Home"}}
	tool := NewExtractTool(WithSession(mock))

	result, err := tool.Call(context.Background(), `{"instruction":"get title","schema":{"title":"string"}}`)
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if result != `{"title":"Home"}` {
		t.Errorf("unexpected result: %q", result)
	}

	call := mock.extractCalls[0]
	if call.Instruction != "get title" {
		t.Errorf("session saw instruction %q", call.Instruction)
	}
	if call.Schema == nil {
		t.Fatal("session should receive a compiled validator")
	}
	if _, err := call.Schema.Validate(map[string]any{"title": "Home"}); err != nil {
		t.Errorf("validator rejected valid data: %v", err)
	}
}

func TestExtract_BadSchemaDescriptor(t *testing.T) {
	mock := &mockSession{}
	tool := NewExtractTool(WithSession(mock))

	result, err := tool.Call(context.Background(), `{"instruction":"get when","schema":{"when":"datetime"}}`)
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if !strings.Contains(result, "Failed to extract data") {
		t.Errorf("unexpected result: %q", result)
	}
	if len(mock.extractCalls) != 0 {
		t.Error("an uncompilable schema must never reach the session")
	}
}

func TestExtract_EngineFault(t *testing.T) {
	mock := &mockSession{extractErr: errors.New("model unavailable")}
	tool := NewExtractTool(WithSession(mock))

	result, err := tool.Call(context.Background(), `{"instruction":"get title","schema":{"title":"string"}}`)
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if !strings.Contains(result, "Failed to extract data") || !strings.Contains(result, "model unavailable") {
		t.Errorf("unexpected result: %q", result)
	}
}

func TestObserve_EmptyInputMeansNoInstruction(t *testing.T) {
	mock := &mockSession{observeActions: []browser.Action{}}
	tool := NewObserveTool(WithSession(mock))

	if _, err := tool.Call(context.Background(), ""); err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if mock.observeCalls[0].Instruction != nil {
		t.Errorf("empty input should become a nil instruction, got %q", *mock.observeCalls[0].Instruction)
	}
}

func TestObserve_InstructionPassedThrough(t *testing.T) {
	mock := &mockSession{observeActions: []browser.Action{}}
	tool := NewObserveTool(WithSession(mock))

	if _, err := tool.Call(context.Background(), "find the search form"); err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	instr := mock.observeCalls[0].Instruction
	if instr == nil || *instr != "find the search form" {
		t.Errorf("session saw instruction %v", instr)
	}
}

func TestObserve_SerializesActions(t *testing.T) {
	actions := []browser.Action{{Selector: "#btn", Description: "Submit button", Method: "click"}}
	mock := &mockSession{observeActions: actions}
	tool := NewObserveTool(WithSession(mock))

	result, err := tool.Call(context.Background(), "")
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}

	want, _ := json.Marshal(actions)
	if result != string(want) {
		t.Errorf("result = %q, want %q", result, want)
	}
}

func TestObserve_EngineFault(t *testing.T) {
	mock := &mockSession{observeErr: errors.New("no page loaded")}
	tool := NewObserveTool(WithSession(mock))

	result, err := tool.Call(context.Background(), "")
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if !strings.Contains(result, "Failed to observe") || !strings.Contains(result, "no page loaded") {
		t.Errorf("unexpected result: %q", result)
	}
}

// Every tool, every input shape, every planted fault: Call must still return
// a string with a nil error.
func TestCallNeverReturnsError(t *testing.T) {
	broken := &mockSession{
		gotoErr:    errors.New("boom"),
		actErr:     errors.New("boom"),
		extractErr: errors.New("boom"),
		observeErr: errors.New("boom"),
	}
	tk := New(WithSession(broken))

	inputs := []string{"", "not json", `{}`, "https://example.com", `{"instruction":"x","schema":{"y":"string"}}`}
	for _, tool := range tk.Tools() {
		for _, input := range inputs {
			if _, err := tool.Call(context.Background(), input); err != nil {
				t.Errorf("%s.Call(%q) returned error: %v", tool.Name(), input, err)
			}
		}
	}
}

func TestSharedSessionIsUsedByAllTools(t *testing.T) {
	mock := &mockSession{
		actResult:     &browser.ActResult{Success: true, Message: "ok"},
		extractResult: map[string]any{"title": "Home"},
	}
	factory, count := countingFactory(&mockSession{})
	tk := New(WithSession(mock), WithFactory(factory))

	ctx := context.Background()
	tk.Navigate.Call(ctx, "https://example.com")
	tk.Act.Call(ctx, "click")
	tk.Extract.Call(ctx, `{"instruction":"get title","schema":{"title":"string"}}`)
	tk.Observe.Call(ctx, "")

	if *count != 0 {
		t.Errorf("no local session should be created, factory ran %d times", *count)
	}
	if mock.initCalls != 0 {
		t.Errorf("a shared session must not be re-initialized, Init ran %d times", mock.initCalls)
	}

	// All four providers resolve to the identical instance.
	for _, p := range []*sessionProvider{tk.Navigate.provider, tk.Act.provider, tk.Extract.provider, tk.Observe.provider} {
		sess, err := p.session(ctx)
		if err != nil {
			t.Fatalf("session resolution failed: %v", err)
		}
		if sess != browser.Session(mock) {
			t.Error("provider did not return the shared instance")
		}
	}
}

func TestLocalSessionCreatedOnceAndReused(t *testing.T) {
	mock := &mockSession{}
	factory, count := countingFactory(mock)
	tool := NewNavigateTool(WithFactory(factory))

	ctx := context.Background()
	tool.Call(ctx, "https://example.com/a")
	tool.Call(ctx, "https://example.com/b")

	if *count != 1 {
		t.Errorf("factory ran %d times, want 1", *count)
	}
	if mock.initCalls != 1 {
		t.Errorf("Init ran %d times, want 1", mock.initCalls)
	}
	if len(mock.gotoURLs) != 2 {
		t.Errorf("both invocations should hit the same session, saw %v", mock.gotoURLs)
	}
}

func TestConcurrentFirstUseCreatesOneSession(t *testing.T) {
	mock := &mockSession{}
	factory, count := countingFactory(mock)
	tool := NewNavigateTool(WithFactory(factory))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tool.Call(context.Background(), fmt.Sprintf("https://example.com/%d", i))
		}(i)
	}
	wg.Wait()

	if *count != 1 {
		t.Errorf("factory ran %d times under concurrent first use, want 1", *count)
	}
	if mock.initCalls != 1 {
		t.Errorf("Init ran %d times under concurrent first use, want 1", mock.initCalls)
	}
}

func TestInitFailureIsMemoizedAndFlattened(t *testing.T) {
	mock := &mockSession{initErr: errors.New("chrome not found")}
	factory, count := countingFactory(mock)
	tool := NewNavigateTool(WithFactory(factory))

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		result, err := tool.Call(ctx, "https://example.com")
		if err != nil {
			t.Fatalf("Call returned error: %v", err)
		}
		if !strings.Contains(result, "Failed to navigate") || !strings.Contains(result, "chrome not found") {
			t.Errorf("unexpected result: %q", result)
		}
	}

	if *count != 1 {
		t.Errorf("factory ran %d times, want 1 (failed init stays memoized)", *count)
	}
	if len(mock.gotoURLs) != 0 {
		t.Error("a session that failed to initialize must never be used")
	}
}

func TestRepeatedInvocationIsIdempotent(t *testing.T) {
	mock := &mockSession{observeActions: []browser.Action{{Selector: "#btn", Method: "click"}}}
	tool := NewObserveTool(WithSession(mock))

	ctx := context.Background()
	first, _ := tool.Call(ctx, "buttons")
	second, _ := tool.Call(ctx, "buttons")
	if first != second {
		t.Errorf("same input against fixed state diverged: %q vs %q", first, second)
	}
}

func TestToolkitOrderAndNames(t *testing.T) {
	tk := New(WithSession(&mockSession{}))

	want := []string{"browser_navigate", "browser_act", "browser_extract", "browser_observe"}
	ts := tk.Tools()
	if len(ts) != len(want) {
		t.Fatalf("got %d tools, want %d", len(ts), len(want))
	}
	for i, name := range want {
		if ts[i].Name() != name {
			t.Errorf("tool %d = %q, want %q", i, ts[i].Name(), name)
		}
		if ts[i].Description() == "" {
			t.Errorf("tool %q has no description", name)
		}
	}
}

func TestLoadMatchesNew(t *testing.T) {
	mock := &mockSession{}
	tk, err := Load(context.Background(), WithSession(mock))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(tk.Tools()) != 4 {
		t.Errorf("Load built %d tools", len(tk.Tools()))
	}
}

func TestCloseShutsDownOnlyOwnedSessions(t *testing.T) {
	shared := &mockSession{}
	tk := New(WithSession(shared))
	tk.Navigate.Call(context.Background(), "https://example.com")
	if err := tk.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if shared.closed {
		t.Error("Close must not touch a caller-supplied session")
	}

	owned := &mockSession{}
	factory, _ := countingFactory(owned)
	tk = New(WithFactory(factory))
	tk.Navigate.Call(context.Background(), "https://example.com")
	if err := tk.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !owned.closed {
		t.Error("Close should shut down the session the tool created")
	}
}
