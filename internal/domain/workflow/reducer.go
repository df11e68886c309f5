package workflow

// Reduce returns the state that results from applying a to s.
// It never fails: an action whose precondition does not hold returns s
// unchanged, so stale or duplicated intents are harmless.
func Reduce(s State, a Action) State {
	switch a.Type {
	case ActionSetStep:
		if !a.Step.IsValid() || a.Step == s.Step {
			return s
		}
		s.History = pushStep(s.History, s.Step)
		s.Step = a.Step
		return s

	case ActionGoBack:
		prev, ok := s.PreviousStep()
		if !ok {
			return s
		}
		s.History = append([]Step{}, s.History[:len(s.History)-1]...)
		s.Step = prev
		return s

	case ActionCallCustomer:
		if s.CallTime == nil {
			at := a.At
			s.CallTime = &at
		}
		s.Called = true
		return s

	case ActionEnRoute:
		if !s.Called {
			return s
		}
		s.EnRoute = true
		return s

	case ActionArrived:
		if !s.EnRoute {
			return s
		}
		if s.ArrivedTime == nil {
			at := a.At
			s.ArrivedTime = &at
		}
		s.Arrived = true
		return s

	case ActionTogglePhoto:
		if a.PhotoIndex < 0 || a.PhotoIndex >= len(s.Photos) {
			return s
		}
		photos := append([]bool{}, s.Photos...)
		photos[a.PhotoIndex] = !photos[a.PhotoIndex]
		s.Photos = photos
		return s

	case ActionSetIssue:
		if !a.Issue.IsValid() {
			return s
		}
		s.Issue = a.Issue
		return s

	case ActionAddItem:
		s.AdditionalItems = s.AdditionalItems.Append(a.Item)
		s.Total = s.ComputeTotal()
		return s

	case ActionSetFollowup:
		if a.Followup == nil {
			s.Followup = nil
			return s
		}
		f := *a.Followup
		s.Followup = &f
		return s

	case ActionSetRescheduleType:
		if !a.RescheduleType.IsValid() {
			return s
		}
		s.RescheduleType = a.RescheduleType
		return s

	case ActionUpdateReschedule:
		s.Reschedule = s.Reschedule.Merge(a.Patch)
		return s

	case ActionSignCustomer:
		s.CustomerSigned = true
		return s

	case ActionSignTech:
		if !s.CustomerSigned {
			return s
		}
		s.TechConfirmed = true
		return s

	case ActionTick:
		s.TimerSeconds++
		return s

	default:
		return s
	}
}

// pushStep appends to a fresh slice so earlier states keep their history
func pushStep(history []Step, step Step) []Step {
	out := make([]Step, len(history), len(history)+1)
	copy(out, history)
	return append(out, step)
}
