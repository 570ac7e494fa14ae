package connector

import (
	"fmt"
	"strings"

	"github.com/mpm/stuplan/internal/conversation"
)

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

// ProgramSelectionMessage confirms recorded programs.
func ProgramSelectionMessage(studentType conversation.StudentType, programCount int) string {
	if studentType == conversation.StudentGraduate {
		return fmt.Sprintf("Excellent! I've recorded your graduate %s. Next, let's determine how you'd like to select your courses.",
			plural(programCount, "program"))
	}
	return fmt.Sprintf("Perfect! I've recorded your %d %s. Next, let's determine how you'd like to select your courses.",
		programCount, plural(programCount, "program"))
}

// CourseSelectionMessage confirms recorded course selections.
func CourseSelectionMessage(programCount, totalCourses int) string {
	return fmt.Sprintf("Excellent! I've recorded your course selections for %d %s (%d courses total). Now I'll organize these into a graduation timeline.",
		programCount, plural(programCount, "program"), totalCourses)
}

// TranscriptMessage confirms the transcript choice.
func TranscriptMessage(r TranscriptCheckResult) string {
	var msg string
	switch {
	case r.WantsToUpload:
		msg = "Great! Your transcript has been reviewed and included in your context."
	case r.HasTranscript:
		msg = "Perfect! We'll use the transcript you uploaded previously."
	default:
		msg = "Okay, we can proceed without a transcript."
	}
	return msg + " Now, let's select your program(s)."
}

// CareerSelectionMessage confirms a chosen career and asks about commitment.
func CareerSelectionMessage(career string) string {
	return fmt.Sprintf("Great choice! %s is an exciting field with many opportunities.", career) + `

One last question: On a scale of 1-10, how committed are you to this career path?

(Don't worry - it's completely okay if you're not 100% sure! We just want to help you set realistic goals for your education.)

1 = Just exploring  |  10 = Absolutely certain`
}

// ProgramSuggestionsMessage confirms programs picked from suggestions.
func ProgramSuggestionsMessage(programs []conversation.SuggestedProgram) string {
	names := make([]string, 0, len(programs))
	for _, p := range programs {
		names = append(names, p.ProgramName)
	}
	joined := strings.Join(names, ", ")
	if len(programs) == 1 {
		return fmt.Sprintf("Great choice! %s is an excellent program. Now let's find the specific version of this program offered at your university.", joined)
	}
	return fmt.Sprintf("Great choices! I've noted your interest in: %s. Now let's find the specific versions of these programs offered at your university.", joined)
}

// CourseMethodMessage confirms the course selection method.
func CourseMethodMessage(method conversation.CourseMethod) string {
	if method == conversation.CourseMethodManual {
		return "Great! Let's go through your requirements and pick your courses."
	}
	return "Got it! I'll choose courses that satisfy your requirements when I build your plan."
}

// ElectivesMessage confirms added electives.
func ElectivesMessage(n int) string {
	if n == 0 {
		return "No problem, we'll leave room for electives later. Now let's decide how to pace your credits."
	}
	return fmt.Sprintf("Nice! I've added %d elective %s. Now let's decide how to pace your credits.", n, plural(n, "course"))
}

// NotReadyMessage explains what blocks plan generation.
func NotReadyMessage(errs []string) string {
	return "Before I can generate your plan: " + strings.Join(errs, "; ") + "."
}

// Fixed confirmation messages.
const (
	msgProfileComplete      = "Perfect! Your profile is all set. Now let's check your transcript status."
	msgProfileUpdated       = "Thanks! I've updated your profile."
	msgCreditDistribution   = "Great! I've saved your credit distribution preferences. Now let's add any important milestones or constraints."
	msgMilestones           = "Perfect! I've saved your milestones and work constraints."
	msgInterests            = "Thanks for sharing your interests! Now let's decide how to pace your credits."
	msgReview               = "No problem! Take your time to review your information. You can click on any completed step in the sidebar to make changes. When you're ready, we'll generate your plan."
	msgFeedbackClosed       = "Got it. I'll pause here. When you're ready, head back to Generate Plan to continue."
	msgStartingGeneration   = "Starting plan generation..."
	msgExplorationContinues = "Let's keep exploring."
)
