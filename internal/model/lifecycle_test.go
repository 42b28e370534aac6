package model

import "testing"

func TestCanTransitionFullMatrix(t *testing.T) {
	order := []string{
		StatusAnnounced,
		StatusRegistrationOpen,
		StatusRegistrationClosed,
		StatusActive,
		StatusCompleted,
	}
	for i, from := range order {
		for j, to := range order {
			want := j > i
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v，期望%v", from, to, got, want)
			}
		}
	}
}

func TestCanTransitionRejectsUnknownStatus(t *testing.T) {
	if CanTransition("announced", "cancelled") {
		t.Error("未知目标状态不应允许推进")
	}
	if CanTransition("draft", StatusCompleted) {
		t.Error("未知起始状态不应允许推进")
	}
}

func TestIsValidStatus(t *testing.T) {
	for _, s := range []string{StatusAnnounced, StatusRegistrationOpen, StatusRegistrationClosed, StatusActive, StatusCompleted} {
		if !IsValidStatus(s) {
			t.Errorf("IsValidStatus(%s) = false", s)
		}
	}
	if IsValidStatus("cancelled") {
		t.Error("IsValidStatus(cancelled) = true")
	}
}
