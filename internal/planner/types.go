package planner

import (
	"fmt"
	"strings"
)

// Course is a course to be placed in a plan.
type Course struct {
	Code         string `json:"code"`
	Title        string `json:"title"`
	Credits      int    `json:"credits"`
	Prerequisite string `json:"prerequisite,omitempty"`
	Placeholder  bool   `json:"placeholder,omitempty"`
}

// Program is a program the plan must satisfy.
type Program struct {
	ID            int    `json:"programId"`
	Name          string `json:"programName"`
	Type          string `json:"programType"`
	TargetCredits int    `json:"targetCredits,omitempty"`
}

// MilestoneTiming anchors a milestone relative to the plan.
type MilestoneTiming string

const (
	TimingBeginning      MilestoneTiming = "beginning"
	TimingMiddle         MilestoneTiming = "middle"
	TimingBeforeLastYear MilestoneTiming = "before_last_year"
	TimingEnd            MilestoneTiming = "end"
	TimingSpecific       MilestoneTiming = "specific_term"
)

// Milestone is a non-course event the student wants in their plan.
type Milestone struct {
	Type   string          `json:"type"`
	Title  string          `json:"title"`
	Timing MilestoneTiming `json:"timing"`
	Term   string          `json:"term,omitempty"`
	Year   int             `json:"year,omitempty"`
}

// WorkStatus is how much a student works while enrolled.
type WorkStatus string

const (
	WorkNotWorking WorkStatus = "not_working"
	WorkPartTime   WorkStatus = "part_time"
	WorkFullTime   WorkStatus = "full_time"
	WorkVariable   WorkStatus = "variable"
)

// IsValid returns true if the status is a recognized value.
func (w WorkStatus) IsValid() bool {
	switch w {
	case WorkNotWorking, WorkPartTime, WorkFullTime, WorkVariable:
		return true
	default:
		return false
	}
}

// DisplayName returns a human-readable name for the status.
func (w WorkStatus) DisplayName() string {
	return strings.ReplaceAll(string(w), "_", " ")
}

// ParseWorkStatus parses a string into a WorkStatus.
func ParseWorkStatus(s string) (WorkStatus, error) {
	w := WorkStatus(strings.ToLower(strings.TrimSpace(s)))
	if !w.IsValid() {
		return "", fmt.Errorf("invalid work status: %q", s)
	}
	return w, nil
}

// WorkConstraints captures a student's work commitments.
type WorkConstraints struct {
	WorkStatus      WorkStatus `json:"workStatus"`
	AdditionalNotes string     `json:"additionalNotes,omitempty"`
}
