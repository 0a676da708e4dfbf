package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/introhub/internal/models"
	apperrors "github.com/charlesng35/introhub/pkg/errors"
)

func newReferralService(t *testing.T, env *serviceEnv, opts ...ReferralOption) *ReferralService {
	t.Helper()
	svc, err := NewReferralService(env.db, env.notifications, env.sender, opts...)
	require.NoError(t, err)
	return svc
}

func TestReferralCreateMaterialisesPlaceholderTarget(t *testing.T) {
	env := newServiceEnv(t)
	svc := newReferralService(t, env)
	referee := env.createUser(t, "Rita", "rita@example.com")
	first := env.createUser(t, "Finn", "finn@example.com", func(u *models.User) { u.UserType = models.UserTypeFirstDegree })

	dto, err := svc.CreateReferral(bg, CreateReferralInput{
		RefereeID:     referee.ID,
		FirstDegreeID: first.ID,
		TargetName:    "Tara Target",
		TargetEmail:   "Tara@Example.com",
		TargetPhone:   "+15550100",
		Note:          "Looking for advice on hiring",
	})
	require.NoError(t, err)
	require.Equal(t, models.ReferralPending, dto.Status)
	require.True(t, dto.Target.IsPlaceholder)

	var target models.User
	require.NoError(t, env.db.First(&target, "id = ?", dto.Target.ID).Error)
	require.Equal(t, "tara@example.com", target.EmailAddress())
	require.Equal(t, models.UserTypeReferral, target.UserType)
	require.Equal(t, "Tara", target.FirstName)
	require.Equal(t, "Target", target.LastName)

	var contacts []models.Contact
	require.NoError(t, env.db.Where("contact_user_id = ?", target.ID).Order("degree_type").Find(&contacts).Error)
	require.Len(t, contacts, 2)
	require.Equal(t, first.ID, contacts[0].OwnerID)
	require.Equal(t, models.DegreeFirst, contacts[0].DegreeType)
	require.Equal(t, referee.ID, contacts[1].OwnerID)
	require.Equal(t, models.DegreeSecond, contacts[1].DegreeType)

	require.Len(t, env.notificationsOf(t, first.ID, models.NotificationReferralRequest), 1)
	require.Len(t, env.notificationsOf(t, target.ID, models.NotificationReferralRequest), 0)
	require.Len(t, env.mailer.SentTo("tara@example.com"), 1)
}

func TestReferralCreateValidation(t *testing.T) {
	env := newServiceEnv(t)
	svc := newReferralService(t, env)
	referee := env.createUser(t, "Rita", "rita@example.com")
	first := env.createUser(t, "Finn", "finn@example.com")

	_, err := svc.CreateReferral(bg, CreateReferralInput{RefereeID: referee.ID, FirstDegreeID: referee.ID, TargetUserID: first.ID})
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	_, err = svc.CreateReferral(bg, CreateReferralInput{RefereeID: referee.ID, FirstDegreeID: first.ID, TargetName: "No Contact"})
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	_, err = svc.CreateReferral(bg, CreateReferralInput{RefereeID: referee.ID, FirstDegreeID: first.ID, TargetUserID: first.ID})
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	_, err = svc.CreateReferral(bg, CreateReferralInput{RefereeID: referee.ID, FirstDegreeID: "missing", TargetUserID: first.ID})
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestReferralApproveSendsRoleSpecificEmails(t *testing.T) {
	env := newServiceEnv(t)
	svc := newReferralService(t, env)
	referee := env.createUser(t, "Rita", "rita@example.com")
	first := env.createUser(t, "Finn", "finn@example.com")
	target := env.createUser(t, "Tara", "tara@example.com", func(u *models.User) { u.Phone = "+15550100" })

	dto, err := svc.CreateReferral(bg, CreateReferralInput{RefereeID: referee.ID, FirstDegreeID: first.ID, TargetUserID: target.ID})
	require.NoError(t, err)
	require.Len(t, env.notificationsOf(t, target.ID, models.NotificationReferralRequest), 1)

	_, err = svc.Respond(bg, dto.ID, referee.ID, ActionAccept)
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	approved, err := svc.Respond(bg, dto.ID, first.ID, ActionAccept)
	require.NoError(t, err)
	require.Equal(t, models.ReferralApproved, approved.Status)
	require.NotNil(t, approved.ApprovedAt)
	require.Nil(t, approved.DeniedAt)

	refereeMail := env.mailer.SentTo("rita@example.com")
	require.Len(t, refereeMail, 1)
	require.Contains(t, refereeMail[0].Body, "tara@example.com")
	require.Contains(t, refereeMail[0].Body, "+15550100")

	targetMail := env.mailer.SentTo("tara@example.com")
	require.Len(t, targetMail, 2)
	require.Contains(t, targetMail[1].Body, "rita@example.com")
	require.Len(t, env.mailer.SentTo("finn@example.com"), 1)

	require.Len(t, env.notificationsOf(t, referee.ID, models.NotificationReferralApproved), 1)
	require.Len(t, env.notificationsOf(t, first.ID, models.NotificationReferralApproved), 0)
}

func TestReferralTransitionsOnlyOnce(t *testing.T) {
	env := newServiceEnv(t)
	svc := newReferralService(t, env)
	referee := env.createUser(t, "Rita", "rita@example.com")
	first := env.createUser(t, "Finn", "finn@example.com")
	target := env.createUser(t, "Tara", "tara@example.com")

	dto, err := svc.CreateReferral(bg, CreateReferralInput{RefereeID: referee.ID, FirstDegreeID: first.ID, TargetUserID: target.ID})
	require.NoError(t, err)

	denied, err := svc.Respond(bg, dto.ID, target.ID, ActionDecline)
	require.NoError(t, err)
	require.Equal(t, models.ReferralDenied, denied.Status)
	require.NotNil(t, denied.DeniedAt)

	var before models.Referral
	require.NoError(t, env.db.First(&before, "id = ?", dto.ID).Error)

	_, err = svc.Respond(bg, dto.ID, first.ID, ActionAccept)
	require.ErrorIs(t, err, apperrors.ErrConflict)

	var after models.Referral
	require.NoError(t, env.db.First(&after, "id = ?", dto.ID).Error)
	require.Equal(t, models.ReferralDenied, after.Status)
	require.Nil(t, after.ApprovedAt)
	require.True(t, before.DeniedAt.Equal(*after.DeniedAt))

	require.Len(t, env.notificationsOf(t, referee.ID, models.NotificationReferralDenied), 1)
	require.Len(t, env.notificationsOf(t, first.ID, models.NotificationReferralDenied), 1)
}

func TestReferralSecondDegreeRejectsUnknownToken(t *testing.T) {
	env := newServiceEnv(t)
	svc := newReferralService(t, env)

	_, err := svc.RespondSecondDegree(bg, SecondDegreeResponseInput{Token: "bogus", Action: ActionAccept})
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = svc.RespondSecondDegree(bg, SecondDegreeResponseInput{Action: ActionAccept})
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestReferralSecondDegreeRespondByToken(t *testing.T) {
	env := newServiceEnv(t)
	svc := newReferralService(t, env)
	referee := env.createUser(t, "Rita", "rita@example.com")
	first := env.createUser(t, "Finn", "finn@example.com")
	env.createUser(t, "Taken", "taken@example.com")

	dto, err := svc.CreateReferral(bg, CreateReferralInput{
		RefereeID:     referee.ID,
		FirstDegreeID: first.ID,
		TargetName:    "T",
		TargetEmail:   "tara@example.com",
	})
	require.NoError(t, err)
	token := env.lastToken(t, "tara@example.com")

	_, err = svc.RespondSecondDegree(bg, SecondDegreeResponseInput{Token: token, Action: ActionAccept, Email: "taken@example.com"})
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	result, err := svc.RespondSecondDegree(bg, SecondDegreeResponseInput{
		Token:     token,
		Action:    ActionAccept,
		FirstName: "Tara",
		LastName:  "Target",
		Phone:     "+15550199",
	})
	require.NoError(t, err)
	require.Equal(t, models.ReferralApproved, result.Status)

	var target models.User
	require.NoError(t, env.db.First(&target, "id = ?", dto.Target.ID).Error)
	require.Equal(t, "Tara", target.FirstName)
	require.Equal(t, "+15550199", target.Phone)

	refereeMail := env.mailer.SentTo("rita@example.com")
	require.Len(t, refereeMail, 1)
	require.Contains(t, refereeMail[0].Body, "+15550199")
	require.Len(t, env.mailer.SentTo("finn@example.com"), 1)

	_, err = svc.RespondSecondDegree(bg, SecondDegreeResponseInput{Token: token, Action: ActionDecline})
	require.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestReferralListAndGet(t *testing.T) {
	env := newServiceEnv(t)
	svc := newReferralService(t, env)
	referee := env.createUser(t, "Rita", "rita@example.com")
	first := env.createUser(t, "Finn", "finn@example.com")
	target := env.createUser(t, "Tara", "tara@example.com")
	outsider := env.createUser(t, "Otto", "otto@example.com")

	dto, err := svc.CreateReferral(bg, CreateReferralInput{RefereeID: referee.ID, FirstDegreeID: first.ID, TargetUserID: target.ID})
	require.NoError(t, err)

	all, err := svc.ListForUser(bg, first.ID, ReferralRoleAny)
	require.NoError(t, err)
	require.Len(t, all, 1)

	asReferee, err := svc.ListForUser(bg, first.ID, ReferralRoleReferee)
	require.NoError(t, err)
	require.Empty(t, asReferee)

	asTarget, err := svc.ListForUser(bg, target.ID, ReferralRoleTarget)
	require.NoError(t, err)
	require.Len(t, asTarget, 1)

	_, err = svc.ListForUser(bg, target.ID, "boss")
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	got, err := svc.Get(bg, dto.ID, referee.ID)
	require.NoError(t, err)
	require.Equal(t, target.ID, got.Target.ID)

	_, err = svc.Get(bg, dto.ID, outsider.ID)
	require.ErrorIs(t, err, apperrors.ErrForbidden)
}
