package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/introhub/internal/models"
	apperrors "github.com/charlesng35/introhub/pkg/errors"
)

func newIntroductionService(t *testing.T, env *serviceEnv) *IntroductionService {
	t.Helper()
	svc, err := NewIntroductionService(env.db, env.notifications, env.sender)
	require.NoError(t, err)
	return svc
}

func TestIntroductionCreateInvitesBothParties(t *testing.T) {
	env := newServiceEnv(t)
	svc := newIntroductionService(t, env)
	introducer := env.createUser(t, "Ivy", "ivy@example.com")
	ada := env.createUser(t, "Ada", "ada@example.com")

	dto, err := svc.Create(bg, CreateIntroductionInput{
		IntroducerID: introducer.ID,
		PersonA:      IntroductionParty{UserID: ada.ID},
		PersonB:      IntroductionParty{Email: "Ben@Example.com", Name: "Ben"},
		Note:         "You both build databases",
	})
	require.NoError(t, err)
	require.Equal(t, models.IntroductionPending, dto.Status)
	require.Equal(t, ada.ID, *dto.PersonA.UserID)
	require.Nil(t, dto.PersonB.UserID)
	require.Equal(t, "ben@example.com", dto.PersonB.Email)

	require.Len(t, env.notificationsOf(t, ada.ID, models.NotificationIntroductionRequest), 1)
	require.Len(t, env.mailer.SentTo("ada@example.com"), 1)
	require.Len(t, env.mailer.SentTo("ben@example.com"), 1)
}

func TestIntroductionCreateValidation(t *testing.T) {
	env := newServiceEnv(t)
	svc := newIntroductionService(t, env)
	introducer := env.createUser(t, "Ivy", "ivy@example.com")
	ada := env.createUser(t, "Ada", "ada@example.com")

	_, err := svc.Create(bg, CreateIntroductionInput{
		IntroducerID: introducer.ID,
		PersonA:      IntroductionParty{UserID: ada.ID},
		PersonB:      IntroductionParty{Email: "ada@example.com"},
	})
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	_, err = svc.Create(bg, CreateIntroductionInput{
		IntroducerID: introducer.ID,
		PersonA:      IntroductionParty{UserID: ada.ID},
		PersonB:      IntroductionParty{UserID: introducer.ID},
	})
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	_, err = svc.Create(bg, CreateIntroductionInput{
		IntroducerID: introducer.ID,
		PersonA:      IntroductionParty{UserID: ada.ID},
	})
	require.ErrorIs(t, err, apperrors.ErrBadRequest)
}

func TestIntroductionMutualAcceptanceConnects(t *testing.T) {
	env := newServiceEnv(t)
	svc := newIntroductionService(t, env)
	introducer := env.createUser(t, "Ivy", "ivy@example.com")
	ada := env.createUser(t, "Ada", "ada@example.com", withUsername("ada"))

	dto, err := svc.Create(bg, CreateIntroductionInput{
		IntroducerID: introducer.ID,
		PersonA:      IntroductionParty{UserID: ada.ID},
		PersonB:      IntroductionParty{Email: "ben@example.com", Name: "Ben"},
	})
	require.NoError(t, err)

	result, err := svc.Respond(bg, dto.ID, IntroductionCaller{UserID: ada.ID}, ActionAccept)
	require.NoError(t, err)
	require.Equal(t, models.IntroductionPersonAAccepted, result.Introduction.Status)
	require.False(t, result.ConnectionCreated)
	require.Len(t, env.notificationsOf(t, introducer.ID, models.NotificationIntroductionPartial), 1)

	// Accepting again changes nothing.
	again, err := svc.Respond(bg, dto.ID, IntroductionCaller{UserID: ada.ID}, ActionAccept)
	require.NoError(t, err)
	require.Equal(t, models.IntroductionPersonAAccepted, again.Introduction.Status)
	require.Len(t, env.notificationsOf(t, introducer.ID, models.NotificationIntroductionPartial), 1)

	// Ben signs up later and responds, matched by email.
	ben := env.createUser(t, "Ben", "ben@example.com", withUsername("ben"))
	done, err := svc.Respond(bg, dto.ID, IntroductionCaller{UserID: ben.ID, Email: "BEN@example.com"}, ActionAccept)
	require.NoError(t, err)
	require.Equal(t, models.IntroductionBothAccepted, done.Introduction.Status)
	require.True(t, done.ConnectionCreated)
	require.NotNil(t, done.Introduction.AcceptedAt)
	require.Equal(t, ben.ID, *done.Introduction.PersonB.UserID)

	require.EqualValues(t, 2, env.connectionRows(t, ada.ID, ben.ID))
	require.Len(t, env.notificationsOf(t, introducer.ID, models.NotificationIntroductionSuccessful), 1)

	adaNotes := env.notificationsOf(t, ada.ID, models.NotificationIntroductionAccepted)
	require.Len(t, adaNotes, 1)
	require.Equal(t, "/profile/ben", adaNotes[0].Link)
	require.Len(t, env.notificationsOf(t, ben.ID, models.NotificationIntroductionAccepted), 1)

	_, err = svc.Respond(bg, dto.ID, IntroductionCaller{UserID: ben.ID}, ActionDecline)
	require.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestIntroductionSkipsExistingConnection(t *testing.T) {
	env := newServiceEnv(t)
	svc := newIntroductionService(t, env)
	introducer := env.createUser(t, "Ivy", "ivy@example.com")
	ada := env.createUser(t, "Ada", "ada@example.com")
	ben := env.createUser(t, "Ben", "ben@example.com")

	created, err := ensureConnectionPair(env.db, ada.ID, ben.ID)
	require.NoError(t, err)
	require.True(t, created)

	dto, err := svc.Create(bg, CreateIntroductionInput{
		IntroducerID: introducer.ID,
		PersonA:      IntroductionParty{UserID: ada.ID},
		PersonB:      IntroductionParty{UserID: ben.ID},
	})
	require.NoError(t, err)

	_, err = svc.Respond(bg, dto.ID, IntroductionCaller{UserID: ben.ID}, ActionAccept)
	require.NoError(t, err)
	result, err := svc.Respond(bg, dto.ID, IntroductionCaller{UserID: ada.ID}, ActionAccept)
	require.NoError(t, err)
	require.Equal(t, models.IntroductionBothAccepted, result.Introduction.Status)
	require.False(t, result.ConnectionCreated)

	require.EqualValues(t, 2, env.connectionRows(t, ada.ID, ben.ID))
	require.Len(t, env.notificationsOf(t, introducer.ID, models.NotificationIntroductionSuccessful), 1)
	require.Empty(t, env.notificationsOf(t, ada.ID, models.NotificationIntroductionAccepted))
}

func TestIntroductionDecline(t *testing.T) {
	env := newServiceEnv(t)
	svc := newIntroductionService(t, env)
	introducer := env.createUser(t, "Ivy", "ivy@example.com")
	ada := env.createUser(t, "Ada", "ada@example.com")
	ben := env.createUser(t, "Ben", "ben@example.com")
	outsider := env.createUser(t, "Otto", "otto@example.com")

	dto, err := svc.Create(bg, CreateIntroductionInput{
		IntroducerID: introducer.ID,
		PersonA:      IntroductionParty{UserID: ada.ID},
		PersonB:      IntroductionParty{UserID: ben.ID},
	})
	require.NoError(t, err)

	_, err = svc.Respond(bg, dto.ID, IntroductionCaller{UserID: outsider.ID, Email: "otto@example.com"}, ActionAccept)
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = svc.Respond(bg, dto.ID, IntroductionCaller{UserID: ada.ID}, ActionAccept)
	require.NoError(t, err)

	result, err := svc.Respond(bg, dto.ID, IntroductionCaller{Email: "ben@example.com"}, ActionDecline)
	require.NoError(t, err)
	require.Equal(t, models.IntroductionDeclined, result.Introduction.Status)
	require.NotNil(t, result.Introduction.DeclinedAt)
	require.True(t, result.Introduction.PersonA.Accepted)

	require.Len(t, env.notificationsOf(t, introducer.ID, models.NotificationIntroductionDeclined), 1)
	require.Zero(t, env.connectionRows(t, ada.ID, ben.ID))

	_, err = svc.Respond(bg, dto.ID, IntroductionCaller{UserID: ada.ID}, ActionAccept)
	require.ErrorIs(t, err, apperrors.ErrConflict)

	_, err = svc.Respond(bg, "missing", IntroductionCaller{UserID: ada.ID}, ActionAccept)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestIntroductionListForUser(t *testing.T) {
	env := newServiceEnv(t)
	svc := newIntroductionService(t, env)
	introducer := env.createUser(t, "Ivy", "ivy@example.com")
	ada := env.createUser(t, "Ada", "ada@example.com")
	outsider := env.createUser(t, "Otto", "otto@example.com")

	dto, err := svc.Create(bg, CreateIntroductionInput{
		IntroducerID: introducer.ID,
		PersonA:      IntroductionParty{UserID: ada.ID},
		PersonB:      IntroductionParty{Email: "ben@example.com"},
	})
	require.NoError(t, err)

	for _, userID := range []string{introducer.ID, ada.ID} {
		items, err := svc.ListForUser(bg, userID, "")
		require.NoError(t, err)
		require.Len(t, items, 1)
	}

	byEmail, err := svc.ListForUser(bg, "someone-else", "ben@example.com")
	require.NoError(t, err)
	require.Len(t, byEmail, 1)

	none, err := svc.ListForUser(bg, outsider.ID, "otto@example.com")
	require.NoError(t, err)
	require.Empty(t, none)

	got, err := svc.Get(bg, dto.ID, IntroductionCaller{UserID: introducer.ID})
	require.NoError(t, err)
	require.Equal(t, "ben@example.com", got.PersonB.Name)

	_, err = svc.Get(bg, dto.ID, IntroductionCaller{UserID: outsider.ID})
	require.ErrorIs(t, err, apperrors.ErrForbidden)
}
