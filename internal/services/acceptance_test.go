package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/introhub/internal/models"
)

func TestCombineAcceptance(t *testing.T) {
	cases := []struct {
		name   string
		prior  AcceptanceState
		role   IntroductionRole
		action ResponseAction
		want   models.IntroductionStatus
	}{
		{"a accepts first", AcceptanceState{}, RolePersonA, ActionAccept, models.IntroductionPersonAAccepted},
		{"b accepts first", AcceptanceState{}, RolePersonB, ActionAccept, models.IntroductionPersonBAccepted},
		{"b completes", AcceptanceState{PersonAAccepted: true}, RolePersonB, ActionAccept, models.IntroductionBothAccepted},
		{"a completes", AcceptanceState{PersonBAccepted: true}, RolePersonA, ActionAccept, models.IntroductionBothAccepted},
		{"a repeats", AcceptanceState{PersonAAccepted: true}, RolePersonA, ActionAccept, models.IntroductionPersonAAccepted},
		{"a declines", AcceptanceState{}, RolePersonA, ActionDecline, models.IntroductionDeclined},
		{"b declines after a", AcceptanceState{PersonAAccepted: true}, RolePersonB, ActionDecline, models.IntroductionDeclined},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next := combineAcceptance(tc.prior, tc.role, tc.action)
			require.Equal(t, tc.want, next.Status())
			require.Equal(t, tc.want == models.IntroductionBothAccepted, next.BothAccepted())
		})
	}
}

func TestCombineAcceptanceKeepsPriorFlags(t *testing.T) {
	prior := AcceptanceState{PersonAAccepted: true}
	next := combineAcceptance(prior, RolePersonB, ActionDecline)
	require.True(t, next.PersonAAccepted)
	require.False(t, next.PersonBAccepted)
	require.True(t, next.Declined)
	require.False(t, prior.Declined)
}
