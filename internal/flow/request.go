package flow

import (
	"context"
	"time"

	"github.com/mpm/stuplan/internal/conversation"
	"github.com/mpm/stuplan/internal/planner"
)

// gradDateLayouts are the accepted estimated graduation date formats.
var gradDateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01"}

func parseGradDate(s string) time.Time {
	for _, layout := range gradDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// buildRequest turns the collected data into a generation request.
func (p *Processor) buildRequest(ctx context.Context, s conversation.State) planner.Request {
	data := s.CollectedData

	ids := make([]int, 0, len(data.SelectedPrograms))
	for _, prog := range data.SelectedPrograms {
		ids = append(ids, prog.ProgramID)
	}
	targets, err := p.directory.TargetCredits(ctx, s.UniversityID, ids)
	if err != nil {
		p.logger.Warn("failed to fetch program credit targets", "conversation_id", s.ConversationID, "error", err)
	}

	programs := make([]planner.Program, 0, len(data.SelectedPrograms))
	for _, prog := range data.SelectedPrograms {
		target := targets[prog.ProgramID]
		if target <= 0 {
			target = prog.ProgramType.DefaultTargetCredits()
		}
		programs = append(programs, planner.Program{
			ID:            prog.ProgramID,
			Name:          prog.ProgramName,
			Type:          string(prog.ProgramType),
			TargetCredits: target,
		})
	}

	req := planner.Request{
		UserID:          s.UserID,
		Programs:        programs,
		Courses:         plannedCourses(data),
		Milestones:      data.Milestones,
		WorkConstraints: data.WorkConstraints,
		StartTerm:       data.PlanStartTerm,
		StartYear:       data.PlanStartYear,
		GraduationDate:  parseGradDate(data.EstGradDate),
		Terms:           p.terms,
	}
	if strategy := data.CreditDistributionStrategy; strategy != nil {
		req.Strategy = strategy.Type
		req.IncludeSecondary = strategy.IncludeSecondaryCourses
		req.SelectedTermIDs = strategy.SelectedTermIDs
		req.Distribution = strategy.SuggestedDistribution
	}
	if req.Strategy == "" {
		req.Strategy = planner.StrategyBalanced
	}
	return req
}

// plannedCourses lists the courses to place, each code once. It returns nil
// when courses are left to generation.
func plannedCourses(data conversation.CollectedData) []planner.Course {
	if data.CourseSelectionMethod != conversation.CourseMethodManual {
		return nil
	}

	seen := make(map[string]bool)
	courses := []planner.Course{}
	add := func(c planner.Course) {
		if c.Code == "" || seen[c.Code] {
			return
		}
		seen[c.Code] = true
		courses = append(courses, c)
	}

	for _, sel := range data.SelectedCourses {
		for _, c := range sel.Courses {
			add(c)
		}
	}
	for _, e := range data.ElectiveCourses {
		add(planner.Course{Code: e.Code, Title: e.Title, Credits: e.Credits})
	}
	return courses
}
