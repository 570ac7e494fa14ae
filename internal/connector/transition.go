package connector

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mpm/stuplan/internal/conversation"
	"github.com/mpm/stuplan/internal/planner"
)

var (
	// ErrNotSkippable is returned when a tool's step may not be skipped.
	ErrNotSkippable = errors.New("step cannot be skipped")

	// ErrWrongStep is returned when a tool does not belong to the
	// conversation's current step.
	ErrWrongStep = errors.New("tool does not match the current step")
)

// SideEffectType names work the caller must perform after a transition.
type SideEffectType string

const (
	SideEffectFetchStudentType    SideEffectType = "fetch_student_type"
	SideEffectFetchProgramNames   SideEffectType = "fetch_program_names"
	SideEffectStartPlanGeneration SideEffectType = "start_plan_generation"
)

// SideEffect is a request for the caller to perform I/O.
type SideEffect struct {
	Type         SideEffectType `json:"type"`
	ProgramIDs   []int          `json:"programIds,omitempty"`
	UniversityID int            `json:"universityId,omitempty"`
}

// CheckStatus is the outcome shown on an agent check.
type CheckStatus string

const (
	CheckOK   CheckStatus = "ok"
	CheckWarn CheckStatus = "warn"
)

// AgentCheck is a short verification badge shown next to a confirmation.
type AgentCheck struct {
	ID       string      `json:"id"`
	Label    string      `json:"label"`
	Status   CheckStatus `json:"status"`
	Evidence []string    `json:"evidence"`
}

// StudentProfile is the stored profile of the student in the conversation.
type StudentProfile struct {
	ID            string
	UniversityID  int
	StudentType   conversation.StudentType
	EstGradDate   string
	EstGradSem    string
	AdmissionYear int
	IsTransfer    string
}

// Context is the ambient information transitions may consult.
type Context struct {
	Profile    StudentProfile
	HasCourses bool
	Terms      planner.AcademicTerms
	UserID     string

	// Now returns the current time. Nil means time.Now.
	Now func() time.Time
}

func (c Context) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c Context) studentType(s conversation.State) conversation.StudentType {
	if s.CollectedData.StudentType != "" {
		return s.CollectedData.StudentType
	}
	if c.Profile.StudentType != "" {
		return c.Profile.StudentType
	}
	return conversation.StudentUndergraduate
}

// Transition describes everything that follows a tool completion.
type Transition struct {
	// Updates are applied to the state in order
	Updates []conversation.StateUpdate

	// NextStep is the current step once the updates are applied
	NextStep conversation.Step

	// NextTool is the form to present next, or "" to wait for the student
	NextTool Tool

	// NextToolData seeds the next form
	NextToolData map[string]any

	// Message confirms what happened
	Message string

	// AgentCheck is an optional verification badge
	AgentCheck *AgentCheck

	// SideEffects are performed by the caller after applying the updates
	SideEffects []SideEffect

	// Delay is how long to wait before presenting the next tool
	Delay time.Duration
}

// Apply returns s with every update applied. A transition without updates
// returns s unchanged.
func (t Transition) Apply(s conversation.State) conversation.State {
	for _, u := range t.Updates {
		s = conversation.UpdateState(s, u)
	}
	return s
}

// HasSideEffect reports whether the transition requests typ.
func (t Transition) HasSideEffect(typ SideEffectType) bool {
	for _, e := range t.SideEffects {
		if e.Type == typ {
			return true
		}
	}
	return false
}

// Connector computes transitions using a step sequencer.
type Connector struct {
	machine *conversation.Machine
}

// New creates a connector. A nil machine uses the default electives policy.
func New(m *conversation.Machine) *Connector {
	if m == nil {
		m = conversation.NewMachine(nil)
	}
	return &Connector{machine: m}
}

var defaultConnector = New(nil)

// ComputeStepTransition computes the transition for a completed tool using
// the default sequencer.
func ComputeStepTransition(result Result, s conversation.State, ctx Context) (Transition, error) {
	return defaultConnector.ComputeStepTransition(result, s, ctx)
}

// ComputeSkipTransition computes the transition for a skipped tool using
// the default sequencer.
func ComputeSkipTransition(tool Tool, s conversation.State, ctx Context) (Transition, error) {
	return defaultConnector.ComputeSkipTransition(tool, s, ctx)
}

// ComputeStepTransition computes the transition for a completed tool.
func (c *Connector) ComputeStepTransition(result Result, s conversation.State, ctx Context) (Transition, error) {
	if result == nil {
		return Transition{}, fmt.Errorf("%w: nil result", ErrUnknownTool)
	}
	if problems := result.Validate(); len(problems) > 0 {
		return Transition{}, &ToolResultError{Tool: result.Tool(), Problems: problems}
	}
	if !AcceptedAt(result.Tool(), s.CurrentStep) {
		return Transition{}, fmt.Errorf("%w: %s at %s", ErrWrongStep, result.Tool(), s.CurrentStep)
	}

	switch r := result.(type) {
	case ProfileCheckResult:
		return c.profileCheck(s, ctx)
	case ProfileUpdateResult:
		return profileUpdate(r, s), nil
	case TranscriptCheckResult:
		return c.transcriptCheck(r, s, ctx)
	case CareerPathfinderResult:
		return exploring(s, conversation.StepCareerPathfinder), nil
	case ProgramPathfinderResult:
		return exploring(s, conversation.StepProgramPathfinder), nil
	case ProgramSelectionResult:
		return c.programSelection(r, s, ctx)
	case CourseMethodResult:
		return c.courseMethod(r, s)
	case CourseSelectionResult:
		return c.courseSelection(r, s, ctx)
	case ElectivesResult:
		return c.electives(r, s)
	case StudentInterestsResult:
		return c.studentInterests(r, s)
	case CreditDistributionResult:
		return c.creditDistribution(r, s, ctx)
	case MilestonesAndConstraintsResult:
		return c.milestonesAndConstraints(r, s, ctx)
	case GeneratePlanConfirmationResult:
		return generatePlanConfirmation(r, s, ctx), nil
	case ActiveFeedbackPlanResult:
		return activeFeedbackPlan(r, s), nil
	case CareerSuggestionsResult:
		return careerSuggestions(r, s), nil
	case ProgramSuggestionsResult:
		return programSuggestions(r, s, ctx), nil
	default:
		return Transition{}, fmt.Errorf("%w: %s", ErrUnknownTool, result.Tool())
	}
}

// ComputeSkipTransition computes the transition for a skipped tool. Only the
// tool of the current step may be skipped, and skipped steps are not marked
// complete.
func (c *Connector) ComputeSkipTransition(tool Tool, s conversation.State, _ Context) (Transition, error) {
	if !tool.IsValid() {
		return Transition{}, fmt.Errorf("%w: %q", ErrUnknownTool, tool)
	}

	step, ok := StepForTool(tool)
	if !ok || s.CurrentStep == conversation.StepComplete || step != s.CurrentStep {
		return Transition{}, fmt.Errorf("%w: %s at %s", ErrNotSkippable, tool, s.CurrentStep)
	}
	if !c.machine.CanSkipStep(s, step) {
		return Transition{}, fmt.Errorf("%w: %s", ErrNotSkippable, step)
	}

	next, err := c.machine.NextStep(s)
	if err != nil {
		return Transition{}, err
	}

	update := conversation.StateUpdate{Step: next}
	if step == conversation.StepMilestonesAndConstraints {
		update.Data = &conversation.DataPatch{
			Milestones:      conversation.Ptr([]planner.Milestone{}),
			WorkConstraints: conversation.Ptr(&planner.WorkConstraints{WorkStatus: planner.WorkNotWorking}),
		}
	}

	return Transition{
		Updates:      []conversation.StateUpdate{update},
		NextStep:     next,
		NextTool:     ToolForStep(next),
		NextToolData: map[string]any{},
		Message:      fmt.Sprintf("Skipped %s.", tool.DisplayName()),
		Delay:        500 * time.Millisecond,
	}, nil
}

// complete marks step complete with data and moves to the step after it.
func (c *Connector) complete(s conversation.State, step conversation.Step, data *conversation.DataPatch) (conversation.StateUpdate, conversation.Step, error) {
	u := conversation.StateUpdate{Step: step, Data: data, CompletedStep: step}
	next, err := c.machine.NextStep(conversation.UpdateState(s, u))
	if err != nil {
		return u, "", err
	}
	u.Step = next
	return u, next, nil
}

func stay(s conversation.State, msg string) Transition {
	return Transition{
		NextStep:     s.CurrentStep,
		NextToolData: map[string]any{},
		Message:      msg,
	}
}

func (c *Connector) profileCheck(s conversation.State, ctx Context) (Transition, error) {
	p := ctx.Profile
	studentType := p.StudentType
	if studentType == "" {
		studentType = conversation.StudentUndergraduate
	}

	data := &conversation.DataPatch{StudentType: conversation.Ptr(studentType)}
	if p.EstGradDate != "" {
		data.EstGradDate = conversation.Ptr(p.EstGradDate)
	}
	if p.EstGradSem != "" {
		data.EstGradSem = conversation.Ptr(p.EstGradSem)
	}
	if p.AdmissionYear != 0 {
		data.AdmissionYear = conversation.Ptr(p.AdmissionYear)
	}
	if p.IsTransfer != "" {
		data.IsTransfer = conversation.Ptr(p.IsTransfer)
	}

	u, next, err := c.complete(s, conversation.StepProfileCheck, data)
	if err != nil {
		return Transition{}, err
	}

	return Transition{
		Updates:  []conversation.StateUpdate{u},
		NextStep: next,
		NextTool: ToolTranscriptCheck,
		NextToolData: map[string]any{
			"hasCourses":    ctx.HasCourses,
			"academicTerms": ctx.Terms,
		},
		Message: msgProfileComplete,
		AgentCheck: &AgentCheck{
			ID: "profile_check", Label: "Profile data verified", Status: CheckOK,
			Evidence: []string{"Student record"},
		},
		SideEffects: []SideEffect{{Type: SideEffectFetchStudentType}},
		Delay:       time.Second,
	}, nil
}

func profileUpdate(r ProfileUpdateResult, s conversation.State) Transition {
	data := &conversation.DataPatch{
		EstGradDate:   r.EstGradDate,
		EstGradSem:    r.EstGradSem,
		CareerGoals:   r.CareerGoals,
		AdmissionYear: r.AdmissionYear,
		IsTransfer:    r.IsTransfer,
	}

	t := stay(s, msgProfileUpdated)
	t.Updates = []conversation.StateUpdate{{Data: data}}
	t.NextTool = ToolForStep(s.CurrentStep)
	return t
}

func (c *Connector) transcriptCheck(r TranscriptCheckResult, s conversation.State, ctx Context) (Transition, error) {
	u, next, err := c.complete(s, conversation.StepTranscriptCheck, &conversation.DataPatch{
		HasTranscript:         conversation.Ptr(r.HasTranscript),
		TranscriptUploaded:    conversation.Ptr(r.WantsToUpload),
		NeedsTranscriptUpdate: conversation.Ptr(r.WantsToUpdate),
	})
	if err != nil {
		return Transition{}, err
	}

	check := &AgentCheck{
		ID: "transcript_check", Label: "Transcript status confirmed", Status: CheckOK,
		Evidence: []string{"Transcript attached"},
	}
	if !r.HasTranscript {
		check.Status = CheckWarn
		check.Evidence = []string{"No transcript"}
	}

	return Transition{
		Updates:      []conversation.StateUpdate{u},
		NextStep:     next,
		NextTool:     ToolProgramSelection,
		NextToolData: programSelectionToolData(s, ctx),
		Message:      TranscriptMessage(r),
		AgentCheck:   check,
		Delay:        time.Second,
	}, nil
}

func programSelectionToolData(s conversation.State, ctx Context) map[string]any {
	return map[string]any{
		"studentType":            ctx.studentType(s),
		"universityId":           s.UniversityID,
		"studentAdmissionYear":   ctx.Profile.AdmissionYear,
		"studentIsTransfer":      ctx.Profile.IsTransfer,
		"selectedGenEdProgramId": s.CollectedData.SelectedGenEdProgramID,
		"profileId":              ctx.UserID,
	}
}

func exploring(s conversation.State, step conversation.Step) Transition {
	t := stay(s, msgExplorationContinues)
	t.Updates = []conversation.StateUpdate{{Step: step}}
	t.NextStep = step
	return t
}

func (c *Connector) programSelection(r ProgramSelectionResult, s conversation.State, ctx Context) (Transition, error) {
	selections, _ := r.Selections()

	var primary, ids, majorMinorIDs, genEdIDs []int
	for _, p := range selections {
		ids = append(ids, p.ProgramID)
		if p.ProgramType == conversation.ProgramGeneralEducation {
			genEdIDs = append(genEdIDs, p.ProgramID)
			continue
		}
		primary = append(primary, p.ProgramID)
		if p.ProgramType != conversation.ProgramGraduate {
			majorMinorIDs = append(majorMinorIDs, p.ProgramID)
		}
	}

	count := len(primary)
	if count == 0 {
		count = len(selections)
	}

	data := &conversation.DataPatch{
		SelectedPrograms: conversation.Ptr(selections),
		StudentType:      conversation.Ptr(r.StudentType),
	}
	if len(genEdIDs) > 0 {
		data.SelectedGenEdProgramID = conversation.Ptr(genEdIDs[0])
	}

	u, next, err := c.complete(s, conversation.StepProgramSelection, data)
	if err != nil {
		return Transition{}, err
	}

	evidence := fmt.Sprintf("%d %s", len(selections), plural(len(selections), "program"))
	return Transition{
		Updates:  []conversation.StateUpdate{u},
		NextStep: next,
		NextTool: ToolForStep(next),
		NextToolData: map[string]any{
			"studentType":        r.StudentType,
			"universityId":       s.UniversityID,
			"selectedProgramIds": majorMinorIDs,
			"genEdProgramIds":    genEdIDs,
			"userId":             ctx.UserID,
			"hasTranscript":      s.CollectedData.HasTranscript,
		},
		Message: ProgramSelectionMessage(r.StudentType, count),
		AgentCheck: &AgentCheck{
			ID: "program_selection", Label: "Programs selected", Status: CheckOK,
			Evidence: []string{evidence},
		},
		SideEffects: []SideEffect{{
			Type:         SideEffectFetchProgramNames,
			ProgramIDs:   ids,
			UniversityID: s.UniversityID,
		}},
		Delay: 500 * time.Millisecond,
	}, nil
}

func (c *Connector) courseMethod(r CourseMethodResult, s conversation.State) (Transition, error) {
	u, next, err := c.complete(s, conversation.StepCourseMethod, &conversation.DataPatch{
		CourseSelectionMethod: conversation.Ptr(r.Method),
	})
	if err != nil {
		return Transition{}, err
	}

	return Transition{
		Updates:      []conversation.StateUpdate{u},
		NextStep:     next,
		NextTool:     ToolForStep(next),
		NextToolData: map[string]any{"courseSelectionMethod": r.Method},
		Message:      CourseMethodMessage(r.Method),
		Delay:        500 * time.Millisecond,
	}, nil
}

// courseSelections flattens a course selection result into one entry per
// requirement. General education requirements carry the gen-ed program.
func courseSelections(r CourseSelectionResult, genEdProgramID int) []conversation.CourseSelection {
	out := []conversation.CourseSelection{}

	courses := func(entries []CourseEntry) []planner.Course {
		list := make([]planner.Course, 0, len(entries))
		for _, e := range entries {
			list = append(list, e.course())
		}
		return list
	}

	genEdID := ""
	if genEdProgramID != 0 {
		genEdID = strconv.Itoa(genEdProgramID)
	}
	for _, req := range r.GeneralEducation {
		out = append(out, conversation.CourseSelection{
			ProgramID:              genEdID,
			ProgramName:            "General Education",
			ProgramType:            string(conversation.ProgramGeneralEducation),
			RequirementID:          req.RequirementID,
			RequirementDescription: req.RequirementDescription,
			Courses:                courses(req.SelectedCourses),
		})
	}
	for _, p := range r.Programs {
		for _, req := range p.Requirements {
			out = append(out, conversation.CourseSelection{
				ProgramID:              p.ProgramID,
				ProgramName:            p.ProgramName,
				ProgramType:            p.ProgramType,
				RequirementID:          req.RequirementID,
				RequirementDescription: req.RequirementDescription,
				Courses:                courses(req.SelectedCourses),
			})
		}
	}
	return out
}

func firstNonZero(values ...int) int {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}

func (c *Connector) courseSelection(r CourseSelectionResult, s conversation.State, ctx Context) (Transition, error) {
	counted := r.TotalCredits()
	remaining := firstNonZero(r.TotalCreditsToComplete, r.RemainingRequirementCredits, r.TotalSelectedCredits, counted)
	selected := firstNonZero(r.TotalSelectedCredits, counted)
	totalCourses := r.TotalCourses()

	withMethod := conversation.StateUpdate{
		Step:          conversation.StepCourseMethod,
		Data:          &conversation.DataPatch{CourseSelectionMethod: conversation.Ptr(conversation.CourseMethodManual)},
		CompletedStep: conversation.StepCourseMethod,
	}

	data := &conversation.DataPatch{
		SelectedCourses:            conversation.Ptr(courseSelections(r, s.CollectedData.SelectedGenEdProgramID)),
		TotalSelectedCredits:       conversation.Ptr(selected),
		RemainingCreditsToComplete: conversation.Ptr(remaining),
	}
	updates := []conversation.StateUpdate{withMethod}

	var next conversation.Step
	if len(r.UserAddedElectives) > 0 {
		electives := make([]conversation.ElectiveCourse, 0, len(r.UserAddedElectives))
		for _, e := range r.UserAddedElectives {
			electives = append(electives, conversation.ElectiveCourse{Code: e.Code, Title: e.Title, Credits: int(e.Credits)})
		}
		data.ElectiveCourses = conversation.Ptr(electives)
		data.NeedsElectives = conversation.Ptr(true)

		next = conversation.StepCreditDistribution
		updates = append(updates,
			conversation.StateUpdate{Step: conversation.StepCourseSelection, Data: data, CompletedStep: conversation.StepCourseSelection},
			conversation.StateUpdate{Step: next, CompletedStep: conversation.StepElectives},
		)
	} else {
		u, n, err := c.complete(conversation.UpdateState(s, withMethod), conversation.StepCourseSelection, data)
		if err != nil {
			return Transition{}, err
		}
		next = n
		updates = append(updates, u)
	}

	admissionYear := ctx.Profile.AdmissionYear
	if admissionYear == 0 {
		admissionYear = ctx.now().Year()
	}

	evidence := []string{fmt.Sprintf("%d courses", totalCourses), fmt.Sprintf("%d credits remaining", remaining)}
	return Transition{
		Updates:  updates,
		NextStep: next,
		NextTool: ToolForStep(next),
		NextToolData: map[string]any{
			"totalCredits": remaining,
			"totalCourses": totalCourses,
			"studentData": map[string]any{
				"admission_year": admissionYear,
				"admission_term": ctx.Terms.Label(ctx.Terms.AcademicYearStart),
				"est_grad_date":  ctx.Profile.EstGradDate,
			},
			"hasTranscript": s.CollectedData.HasTranscript,
			"academicTerms": ctx.Terms,
		},
		Message: CourseSelectionMessage(r.ProgramCount(), totalCourses),
		AgentCheck: &AgentCheck{
			ID: "course_selection", Label: "Course selections validated", Status: CheckOK,
			Evidence: evidence,
		},
		Delay: time.Second,
	}, nil
}

func (c *Connector) electives(r ElectivesResult, s conversation.State) (Transition, error) {
	courses := r.ElectiveCourses
	if courses == nil {
		courses = []conversation.ElectiveCourse{}
	}

	u, next, err := c.complete(s, conversation.StepElectives, &conversation.DataPatch{
		ElectiveCourses: conversation.Ptr(courses),
		NeedsElectives:  conversation.Ptr(c.machine.RequiresElectives(s)),
	})
	if err != nil {
		return Transition{}, err
	}

	return Transition{
		Updates:      []conversation.StateUpdate{u},
		NextStep:     next,
		NextTool:     ToolForStep(next),
		NextToolData: map[string]any{},
		Message:      ElectivesMessage(len(courses)),
		Delay:        500 * time.Millisecond,
	}, nil
}

func (c *Connector) studentInterests(r StudentInterestsResult, s conversation.State) (Transition, error) {
	u, next, err := c.complete(s, conversation.StepStudentInterests, &conversation.DataPatch{
		StudentInterests: conversation.Ptr(r.Interests),
	})
	if err != nil {
		return Transition{}, err
	}

	return Transition{
		Updates:      []conversation.StateUpdate{u},
		NextStep:     next,
		NextTool:     ToolForStep(next),
		NextToolData: map[string]any{},
		Message:      msgInterests,
		Delay:        500 * time.Millisecond,
	}, nil
}

// unknownTermIDs returns the IDs that are not part of the calendar ordering.
func unknownTermIDs(ids []string, terms planner.AcademicTerms) []string {
	if len(terms.Ordering) == 0 {
		terms = planner.DefaultAcademicTerms()
	}

	var unknown []string
	for _, id := range ids {
		found := false
		for _, known := range terms.Ordering {
			if strings.EqualFold(id, known) {
				found = true
				break
			}
		}
		if !found {
			unknown = append(unknown, id)
		}
	}
	return unknown
}

func (c *Connector) creditDistribution(r CreditDistributionResult, s conversation.State, ctx Context) (Transition, error) {
	if unknown := unknownTermIDs(r.SelectedTermIDs, ctx.Terms); len(unknown) > 0 {
		return Transition{}, &ToolResultError{
			Tool:     ToolCreditDistribution,
			Problems: []string{fmt.Sprintf("unknown term ids: %s", strings.Join(unknown, ", "))},
		}
	}
	strategy := conversation.CreditDistributionStrategy(r)

	u, next, err := c.complete(s, conversation.StepCreditDistribution, &conversation.DataPatch{
		CreditDistributionStrategy: conversation.Ptr(&strategy),
	})
	if err != nil {
		return Transition{}, err
	}

	return Transition{
		Updates:  []conversation.StateUpdate{u},
		NextStep: next,
		NextTool: ToolMilestonesAndConstraints,
		NextToolData: map[string]any{
			"distribution": strategy.SuggestedDistribution,
			"studentType":  s.CollectedData.StudentType,
		},
		Message: msgCreditDistribution,
		AgentCheck: &AgentCheck{
			ID: "credit_distribution", Label: "Credit distribution selected", Status: CheckOK,
			Evidence: []string{strategy.Type.DisplayName()},
		},
		Delay: time.Second,
	}, nil
}

func (c *Connector) milestonesAndConstraints(r MilestonesAndConstraintsResult, s conversation.State, ctx Context) (Transition, error) {
	milestones := r.Milestones
	if milestones == nil {
		milestones = []planner.Milestone{}
	}
	work := r.WorkConstraints

	u, next, err := c.complete(s, conversation.StepMilestonesAndConstraints, &conversation.DataPatch{
		Milestones:      conversation.Ptr(milestones),
		WorkConstraints: conversation.Ptr(&work),
	})
	if err != nil {
		return Transition{}, err
	}

	n := len(milestones)
	return Transition{
		Updates:  []conversation.StateUpdate{u},
		NextStep: next,
		NextTool: ToolGeneratePlanConfirmation,
		NextToolData: map[string]any{
			"academicTerms":     ctx.Terms,
			"lastCompletedTerm": nil,
		},
		Message: msgMilestones,
		AgentCheck: &AgentCheck{
			ID: "milestones_constraints", Label: "Milestones captured", Status: CheckOK,
			Evidence: []string{fmt.Sprintf("%d %s", n, plural(n, "milestone")), work.WorkStatus.DisplayName()},
		},
		Delay: time.Second,
	}, nil
}

// startGeneration moves to plan generation when the state is ready. When it
// is not, the transition only applies data and explains what is missing.
func startGeneration(s conversation.State, data *conversation.DataPatch, msg string) Transition {
	candidate := conversation.UpdateState(s, conversation.StateUpdate{Data: data})
	readiness := conversation.IsReadyForGeneration(candidate)

	if !readiness.IsValid {
		t := stay(s, NotReadyMessage(readiness.Errors))
		if data != nil {
			t.Updates = []conversation.StateUpdate{{Data: data}}
		}
		t.NextTool = ToolGeneratePlanConfirmation
		t.AgentCheck = &AgentCheck{
			ID: "generation_readiness", Label: "Plan inputs incomplete", Status: CheckWarn,
			Evidence: readiness.Errors,
		}
		return t
	}

	t := stay(s, msg)
	t.Updates = []conversation.StateUpdate{{Step: conversation.StepGeneratingPlan, Data: data}}
	t.NextStep = conversation.StepGeneratingPlan
	t.SideEffects = []SideEffect{{Type: SideEffectStartPlanGeneration}}
	return t
}

func generatePlanConfirmation(r GeneratePlanConfirmationResult, s conversation.State, ctx Context) Transition {
	if r.Action == "review" {
		return stay(s, msgReview)
	}

	startTerm := r.StartTerm
	startYear := r.StartYear
	if startYear == 0 {
		startYear = ctx.now().Year()
	}
	data := &conversation.DataPatch{
		PlanStartTerm: conversation.Ptr(startTerm),
		PlanStartYear: conversation.Ptr(startYear),
	}

	if r.Mode == ModeActiveFeedback {
		next := conversation.UpdateState(s, conversation.StateUpdate{Data: data})
		collected := next.CollectedData

		var suggested []planner.SemesterAllocation
		if collected.CreditDistributionStrategy != nil {
			suggested = collected.CreditDistributionStrategy.SuggestedDistribution
		}
		var workStatus planner.WorkStatus
		if collected.WorkConstraints != nil {
			workStatus = collected.WorkConstraints.WorkStatus
		}

		t := stay(s, fmt.Sprintf("Great choice! We'll start your plan in %s %d. Here is a quick draft. Move courses earlier or later and I'll adjust the plan as you go.", startTerm, startYear))
		t.Updates = []conversation.StateUpdate{{Data: data}}
		t.NextTool = ToolActiveFeedbackPlan
		t.NextToolData = map[string]any{
			"courseData":            collected.SelectedCourses,
			"suggestedDistribution": suggested,
			"hasTranscript":         collected.HasTranscript,
			"academicTermsConfig":   ctx.Terms,
			"workStatus":            workStatus,
			"milestones":            collected.Milestones,
		}
		return t
	}

	return startGeneration(s, data,
		fmt.Sprintf("Perfect! I'll generate your complete plan starting from %s %d. This may take a moment...", startTerm, startYear))
}

func activeFeedbackPlan(r ActiveFeedbackPlanResult, s conversation.State) Transition {
	if r.Action == "close" {
		return stay(s, msgFeedbackClosed)
	}
	return startGeneration(s, nil, msgStartingGeneration)
}

func careerSuggestions(r CareerSuggestionsResult, s conversation.State) Transition {
	t := stay(s, CareerSelectionMessage(r.SelectedCareer))
	t.Updates = []conversation.StateUpdate{{
		Data:          &conversation.DataPatch{CareerGoals: conversation.Ptr(r.SelectedCareer)},
		CompletedStep: conversation.StepCareerPathfinder,
	}}
	t.NextToolData = map[string]any{"selectedCareer": r.SelectedCareer}
	return t
}

func programSuggestions(r ProgramSuggestionsResult, s conversation.State, ctx Context) Transition {
	suggested := []conversation.SuggestedProgram(r)

	data := programSelectionToolData(s, ctx)
	data["suggestedPrograms"] = suggested

	return Transition{
		Updates: []conversation.StateUpdate{{
			Step:          conversation.StepProgramSelection,
			Data:          &conversation.DataPatch{SuggestedPrograms: conversation.Ptr(suggested)},
			CompletedStep: conversation.StepProgramPathfinder,
		}},
		NextStep:     conversation.StepProgramSelection,
		NextTool:     ToolProgramSelection,
		NextToolData: data,
		Message:      ProgramSuggestionsMessage(suggested),
		Delay:        time.Second,
	}
}
