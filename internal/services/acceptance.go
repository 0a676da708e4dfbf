package services

import "github.com/charlesng35/introhub/internal/models"

// IntroductionRole identifies which side of an introduction a caller is on.
type IntroductionRole string

const (
	RolePersonA IntroductionRole = "personA"
	RolePersonB IntroductionRole = "personB"
)

// AcceptanceState is the acceptance snapshot of an introduction.
type AcceptanceState struct {
	PersonAAccepted bool
	PersonBAccepted bool
	Declined        bool
}

// Status derives the stored status from the acceptance flags.
func (a AcceptanceState) Status() models.IntroductionStatus {
	switch {
	case a.Declined:
		return models.IntroductionDeclined
	case a.PersonAAccepted && a.PersonBAccepted:
		return models.IntroductionBothAccepted
	case a.PersonAAccepted:
		return models.IntroductionPersonAAccepted
	case a.PersonBAccepted:
		return models.IntroductionPersonBAccepted
	default:
		return models.IntroductionPending
	}
}

// BothAccepted reports whether the introduction has completed.
func (a AcceptanceState) BothAccepted() bool {
	return !a.Declined && a.PersonAAccepted && a.PersonBAccepted
}

// combineAcceptance folds one party's decision into the prior state. The result
// is computed once so callers branch and guard connection creation on the same value.
func combineAcceptance(prior AcceptanceState, role IntroductionRole, action ResponseAction) AcceptanceState {
	next := prior
	if action == ActionDecline {
		next.Declined = true
		return next
	}
	switch role {
	case RolePersonA:
		next.PersonAAccepted = true
	case RolePersonB:
		next.PersonBAccepted = true
	}
	return next
}

func acceptanceOf(intro *models.PendingIntroduction) AcceptanceState {
	return AcceptanceState{
		PersonAAccepted: intro.PersonAAccepted,
		PersonBAccepted: intro.PersonBAccepted,
		Declined:        intro.Status == models.IntroductionDeclined,
	}
}
