package quality

import "github.com/mikehostetler/wreckit/internal/item"

// ValidateStory wraps item.Story.Validate so the implement phase can
// call every quality validator through one uniform Result shape.
func ValidateStory(s *item.Story) Result {
	errs := s.Validate()
	if len(errs) > 0 {
		return fail(errs...)
	}
	return Result{Valid: true}
}

// ValidateStories runs ValidateStory over every story in a PRD and also
// checks the overall 1-15 count bound from spec §4.F.1.
func ValidateStories(prd *item.PRD) Result {
	var errs []string
	if len(prd.Stories) == 0 || len(prd.Stories) > 15 {
		errs = append(errs, "prd must have 1-15 stories")
	}
	for i := range prd.Stories {
		errs = append(errs, prd.Stories[i].Validate()...)
	}
	if len(errs) > 0 {
		return fail(errs...)
	}
	return Result{Valid: true}
}
