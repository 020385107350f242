package model

import (
	"strings"
	"testing"
)

func TestNext_MatchesTransitionTable(t *testing.T) {
	cases := []struct {
		from JobState
		ev   JobEvent
		to   JobState
	}{
		{StateIdle, EventStartAccepted, StateRunning},
		{StateStopped, EventStartAccepted, StateRunning},
		{StatePaused, EventResumeAccepted, StateRunning},
		{StateRunning, EventPauseAccepted, StatePaused},
		{StateRunning, EventStopAccepted, StateStopped},
		{StatePaused, EventStopAccepted, StateStopped},
		{StateIdle, EventStopAccepted, StateIdle},
		{StateIdle, EventJobFailed, StateStopped},
		{StateRunning, EventJobFailed, StateStopped},
		{StatePaused, EventJobFailed, StateStopped},
		{StateStopped, EventJobFailed, StateStopped},
	}

	for _, tc := range cases {
		got, ok := Next(tc.from, tc.ev)
		if !ok {
			t.Fatalf("expected %q on %q to be allowed", tc.from, tc.ev)
		}
		if got != tc.to {
			t.Fatalf("%q on %q: got %q want %q", tc.from, tc.ev, got, tc.to)
		}
	}
}

func TestCanTransition_RejectsInvalidPaths(t *testing.T) {
	cases := []struct {
		from JobState
		ev   JobEvent
	}{
		{StateRunning, EventStartAccepted},
		{StatePaused, EventStartAccepted},
		{StateIdle, EventPauseAccepted},
		{StatePaused, EventPauseAccepted},
		{StateRunning, EventResumeAccepted},
		{StateIdle, EventResumeAccepted},
		{StateStopped, EventResumeAccepted},
		{"not_a_state", EventStartAccepted},
	}

	for _, tc := range cases {
		if CanTransition(tc.from, tc.ev) {
			t.Fatalf("expected %q on %q to be rejected", tc.from, tc.ev)
		}
	}
}

func TestTransition_LeavesStateOnIllegalEvent(t *testing.T) {
	state := StatePaused
	if err := Transition(&state, EventPauseAccepted); err == nil {
		t.Fatalf("expected illegal transition error")
	}
	if state != StatePaused {
		t.Fatalf("state changed on illegal transition: %q", state)
	}

	if err := Transition(&state, EventResumeAccepted); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if state != StateRunning {
		t.Fatalf("expected running, got %q", state)
	}
}

func TestRunningAndPausedAreExclusive(t *testing.T) {
	for _, state := range []JobState{StateIdle, StateRunning, StatePaused, StateStopped} {
		if !IsKnownState(state) {
			t.Fatalf("expected %q to be known", state)
		}
	}
	if IsKnownState("running_paused") {
		t.Fatal("unexpected combined state")
	}
}

func TestJobParametersValidate(t *testing.T) {
	ok := JobParameters{Category: "minería", Region: "Lima", Country: "Perú", TargetCount: 100}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected valid parameters, got %v", err)
	}

	bad := JobParameters{Region: "Lima", Country: "Perú"}
	err := bad.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "category is required") {
		t.Fatalf("expected category message, got %q", msg)
	}
	if !strings.Contains(msg, "target count must be greater than 0") {
		t.Fatalf("expected target count message, got %q", msg)
	}
}

func TestParseLogLevel(t *testing.T) {
	if got := ParseLogLevel(""); got != LevelInfo {
		t.Fatalf("empty level: got %q", got)
	}
	if got := ParseLogLevel("warning"); got != "warning" || got.IsKnown() {
		t.Fatalf("unknown level should be kept verbatim, got %q", got)
	}
	if !ParseLogLevel("success").IsKnown() {
		t.Fatal("success should be known")
	}
}
