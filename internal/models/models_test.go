package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBaseModelBeforeCreateGeneratesID(t *testing.T) {
	var base BaseModel
	require.NoError(t, base.BeforeCreate(nil))
	require.NotEmpty(t, base.ID)
}

func TestBaseModelBeforeCreateKeepsExistingID(t *testing.T) {
	base := BaseModel{ID: "fixed"}
	require.NoError(t, base.BeforeCreate(nil))
	require.Equal(t, "fixed", base.ID)
}

func TestParseUserType(t *testing.T) {
	cases := map[string]UserType{
		"admin":        UserTypeAdmin,
		" REFEREE ":    UserTypeReferee,
		"first_degree": UserTypeFirstDegree,
		"Referral":     UserTypeReferral,
	}
	for raw, want := range cases {
		got, err := ParseUserType(raw)
		require.NoError(t, err, raw)
		require.Equal(t, want, got)
	}

	_, err := ParseUserType("superuser")
	require.Error(t, err)
}

func TestUserDisplayNameFallbacks(t *testing.T) {
	email := "sam@example.com"
	username := "sam"

	require.Equal(t, "Sam Lee", (&User{FirstName: "Sam", LastName: "Lee"}).DisplayName())
	require.Equal(t, "sam", (&User{Username: &username, Email: &email}).DisplayName())
	require.Equal(t, "sam@example.com", (&User{Email: &email}).DisplayName())
	require.Equal(t, "", (*User)(nil).DisplayName())
}

func TestPendingRequestKeyIgnoresDirection(t *testing.T) {
	require.Equal(t, "a:b", *PendingRequestKey("a", "b"))
	require.Equal(t, "a:b", *PendingRequestKey("b", "a"))
	require.NotEqual(t, *PendingRequestKey("a", "b"), *PendingRequestKey("a", "c"))
}

func TestIntroductionStatusTerminal(t *testing.T) {
	require.True(t, IntroductionBothAccepted.Terminal())
	require.True(t, IntroductionDeclined.Terminal())
	require.False(t, IntroductionPending.Terminal())
	require.False(t, IntroductionPersonAAccepted.Terminal())
	require.False(t, IntroductionPersonBAccepted.Terminal())
}

func TestNotificationTypeValid(t *testing.T) {
	require.True(t, NotificationConnectionRequest.Valid())
	require.True(t, NotificationIntroductionSuccessful.Valid())
	require.False(t, NotificationType("connection.request").Valid())
}
