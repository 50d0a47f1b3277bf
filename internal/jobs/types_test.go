package jobs

import "testing"

func TestStatusTransitions(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusStarted, StatusCloning},
		{StatusCloning, StatusAnalyzingAST},
		{StatusAnalyzingAST, StatusVectorizing},
		{StatusVectorizing, StatusCompleted},
		{StatusStarted, StatusFailed},
		{StatusCloning, StatusFailed},
		{StatusAnalyzingAST, StatusFailed},
		{StatusVectorizing, StatusFailed},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("CanTransition(%s, %s) = false, want true", tc.from, tc.to)
		}
	}

	forbidden := []struct{ from, to Status }{
		{StatusStarted, StatusAnalyzingAST}, // skipping a stage
		{StatusStarted, StatusCompleted},
		{StatusCloning, StatusVectorizing},
		{StatusCompleted, StatusFailed}, // terminal states are frozen
		{StatusCompleted, StatusStarted},
		{StatusFailed, StatusCompleted},
		{StatusFailed, StatusCloning},
		{StatusVectorizing, StatusStarted}, // no going backwards
		{StatusCloning, StatusStarted},
	}
	for _, tc := range forbidden {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("CanTransition(%s, %s) = true, want false", tc.from, tc.to)
		}
	}
}

func TestStatusIsTerminal(t *testing.T) {
	for _, s := range NonTerminalStatuses {
		if s.IsTerminal() {
			t.Errorf("%s.IsTerminal() = true, want false", s)
		}
	}
	for _, s := range []Status{StatusCompleted, StatusFailed} {
		if !s.IsTerminal() {
			t.Errorf("%s.IsTerminal() = false, want true", s)
		}
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusStarted, StatusCloning, StatusAnalyzingAST, StatusVectorizing, StatusCompleted, StatusFailed} {
		if !s.Valid() {
			t.Errorf("%s.Valid() = false, want true", s)
		}
	}
	for _, s := range []Status{"", "running", "STARTED", "done"} {
		if s.Valid() {
			t.Errorf("%q.Valid() = true, want false", s)
		}
	}
}
