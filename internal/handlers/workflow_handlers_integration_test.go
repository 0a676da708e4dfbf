package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/introhub/internal/handlers/testutil"
	"github.com/charlesng35/introhub/internal/models"
)

type userRef struct {
	ID string `json:"id"`
}

type connectionRequestView struct {
	ID       string                         `json:"id"`
	FromUser *userRef                       `json:"from_user"`
	ToUser   *userRef                       `json:"to_user"`
	Status   models.ConnectionRequestStatus `json:"status"`
}

type connectionView struct {
	User struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Phone string `json:"phone"`
	} `json:"user"`
}

func serveRaw(env *testutil.Env, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	env.Router.ServeHTTP(w, req)
	return w
}

func connectionIDs(t *testing.T, env *testutil.Env, token string) []string {
	t.Helper()
	resp := env.Request(http.MethodGet, "/api/connections", nil, token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var items []connectionView
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &items)
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.User.ID)
	}
	return ids
}

func connectionStatus(t *testing.T, env *testutil.Env, targetID, token string) string {
	t.Helper()
	resp := env.Request(http.MethodGet, "/api/connections/status/"+targetID, nil, token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var result struct {
		Status string `json:"status"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &result)
	return result.Status
}

func TestConnectionHandlers_RequestAndAccept(t *testing.T) {
	env := testutil.NewEnv(t)
	alice := env.CreateUser("Alice", models.UserTypeReferee)
	bob := env.CreateUser("Bob", models.UserTypeFirstDegree)
	aliceToken, bobToken := env.TokenFor(alice), env.TokenFor(bob)

	require.Equal(t, "not_authenticated", connectionStatus(t, env, bob.ID, ""))

	resp := env.Request(http.MethodPost, "/api/connections/requests", map[string]string{"to_user_id": bob.ID, "note": "Met at the summit"}, aliceToken)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var created struct {
		Request      connectionRequestView `json:"request"`
		AutoAccepted bool                  `json:"auto_accepted"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &created)
	require.False(t, created.AutoAccepted)
	require.Equal(t, models.ConnectionRequestPending, created.Request.Status)

	require.Equal(t, "pending_sent", connectionStatus(t, env, bob.ID, aliceToken))
	require.Equal(t, "pending_received", connectionStatus(t, env, alice.ID, bobToken))

	resp = env.Request(http.MethodPost, "/api/connections/requests", map[string]string{"to_user_id": bob.ID}, aliceToken)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp = env.Request(http.MethodGet, "/api/connections/requests?direction=incoming", nil, bobToken)
	require.Equal(t, http.StatusOK, resp.Code)
	var incoming []connectionRequestView
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &incoming)
	require.Len(t, incoming, 1)
	require.Equal(t, alice.ID, incoming[0].FromUser.ID)

	resp = env.Request(http.MethodPost, "/api/connections/requests/"+created.Request.ID+"/respond", map[string]string{"action": "accept"}, aliceToken)
	require.Equal(t, http.StatusForbidden, resp.Code)

	resp = env.Request(http.MethodPost, "/api/connections/requests/"+created.Request.ID+"/respond", map[string]string{"action": "maybe"}, bobToken)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp = env.Request(http.MethodPost, "/api/connections/requests/"+created.Request.ID+"/respond", map[string]string{"action": "accept"}, bobToken)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	require.Equal(t, "connected", connectionStatus(t, env, bob.ID, aliceToken))
	require.Equal(t, []string{bob.ID}, connectionIDs(t, env, aliceToken))
	require.Equal(t, []string{alice.ID}, connectionIDs(t, env, bobToken))

	resp = env.Request(http.MethodPost, "/api/connections/requests/"+created.Request.ID+"/respond", map[string]string{"action": "decline"}, bobToken)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Equal(t, "STATE_CONFLICT", testutil.DecodeResponse(t, resp).Error.Code)

	resp = env.Request(http.MethodDelete, "/api/connections/"+bob.ID, nil, aliceToken)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Empty(t, connectionIDs(t, env, bobToken))
}

func TestConnectionHandlers_MutualRequestAutoAccepts(t *testing.T) {
	env := testutil.NewEnv(t)
	alice := env.CreateUser("Alice", models.UserTypeReferee)
	bob := env.CreateUser("Bob", models.UserTypeReferee)

	resp := env.Request(http.MethodPost, "/api/connections/requests", map[string]string{"to_user_id": bob.ID}, env.TokenFor(alice))
	require.Equal(t, http.StatusCreated, resp.Code)

	resp = env.Request(http.MethodPost, "/api/connections/requests", map[string]string{"to_user_id": alice.ID}, env.TokenFor(bob))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var created struct {
		AutoAccepted bool `json:"auto_accepted"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &created)
	require.True(t, created.AutoAccepted)
	require.Equal(t, []string{alice.ID}, connectionIDs(t, env, env.TokenFor(bob)))
}

func TestConnectionHandlers_RespondByEmailedToken(t *testing.T) {
	env := testutil.NewEnv(t)
	alice := env.CreateUser("Alice", models.UserTypeReferee)
	bob := env.CreateUser("Bob", models.UserTypeReferee)

	resp := env.Request(http.MethodPost, "/api/connections/requests", map[string]string{"to_user_id": bob.ID}, env.TokenFor(alice))
	require.Equal(t, http.StatusCreated, resp.Code)

	token := env.LastLinkToken(bob.EmailAddress())

	resp = env.Request(http.MethodGet, "/api/connections/requests/token/"+token, nil, "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var review connectionRequestView
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &review)
	require.Equal(t, alice.ID, review.FromUser.ID)

	resp = env.Request(http.MethodPost, "/api/connections/requests/token/"+token+"/respond", map[string]string{"action": "decline"}, "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &review)
	require.Equal(t, models.ConnectionRequestDeclined, review.Status)

	resp = env.Request(http.MethodPost, "/api/connections/requests/token/"+token+"/respond", map[string]string{"action": "accept"}, "")
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp = env.Request(http.MethodGet, "/api/connections/requests/token/not-a-real-token", nil, "")
	require.Equal(t, http.StatusNotFound, resp.Code)

	require.Empty(t, connectionIDs(t, env, env.TokenFor(alice)))
}

type referralView struct {
	ID          string                `json:"id"`
	Referee     *userRef              `json:"referee"`
	FirstDegree *userRef              `json:"first_degree"`
	Target      *userRef              `json:"target"`
	Status      models.ReferralStatus `json:"status"`
}

func TestReferralHandlers_SecondDegreeApprovesViaLink(t *testing.T) {
	env := testutil.NewEnv(t)
	referee := env.CreateUser("Rhea", models.UserTypeReferee)
	first := env.CreateUser("Finn", models.UserTypeFirstDegree)
	outsider := env.CreateUser("Olga", models.UserTypeReferee)
	refereeToken := env.TokenFor(referee)

	resp := env.Request(http.MethodPost, "/api/referrals", map[string]string{
		"first_degree_id": first.ID,
		"target_name":     "Sam Target",
		"target_email":    "sam.target@example.com",
		"note":            "Looking for advice on hiring",
	}, refereeToken)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var referral referralView
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &referral)
	require.Equal(t, models.ReferralPending, referral.Status)
	require.Equal(t, referee.ID, referral.Referee.ID)

	resp = env.Request(http.MethodGet, "/api/referrals/"+referral.ID, nil, env.TokenFor(outsider))
	require.Equal(t, http.StatusForbidden, resp.Code)

	resp = env.Request(http.MethodPost, "/api/referrals/"+referral.ID+"/respond", map[string]string{"action": "accept"}, refereeToken)
	require.Equal(t, http.StatusForbidden, resp.Code)

	token := env.LastLinkToken("sam.target@example.com")
	resp = env.Request(http.MethodPost, "/api/referrals/respond/token/"+token, map[string]string{
		"action":     "accept",
		"first_name": "Samantha",
		"phone":      "+1 555 0199",
	}, "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &referral)
	require.Equal(t, models.ReferralApproved, referral.Status)

	resp = env.Request(http.MethodPost, "/api/referrals/respond/token/"+token, map[string]string{"action": "decline"}, "")
	require.Equal(t, http.StatusBadRequest, resp.Code)

	var target models.User
	require.NoError(t, env.DB.First(&target, "id = ?", referral.Target.ID).Error)
	require.Equal(t, "Samantha", target.FirstName)
	require.Equal(t, "+1 555 0199", target.Phone)

	resp = env.Request(http.MethodGet, "/api/referrals?role=first_degree", nil, env.TokenFor(first))
	require.Equal(t, http.StatusOK, resp.Code)
	var listed []referralView
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &listed)
	require.Len(t, listed, 1)
	require.Equal(t, models.ReferralApproved, listed[0].Status)

	resp = env.Request(http.MethodGet, "/api/contacts?degree=SECOND_DEGREE", nil, refereeToken)
	require.Equal(t, http.StatusOK, resp.Code)
	var contacts []struct {
		Email string `json:"email"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &contacts)
	require.Len(t, contacts, 1)
	require.Equal(t, "sam.target@example.com", contacts[0].Email)
}

func TestReferralHandlers_FirstDegreeDenies(t *testing.T) {
	env := testutil.NewEnv(t)
	referee := env.CreateUser("Rhea", models.UserTypeReferee)
	first := env.CreateUser("Finn", models.UserTypeFirstDegree)
	target := env.CreateUser("Tara", models.UserTypeReferral)

	resp := env.Request(http.MethodPost, "/api/referrals", map[string]string{
		"first_degree_id": first.ID,
		"target_user_id":  target.ID,
	}, env.TokenFor(referee))
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var referral referralView
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &referral)

	resp = env.Request(http.MethodPost, "/api/referrals/"+referral.ID+"/respond", map[string]string{"action": "decline"}, env.TokenFor(first))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &referral)
	require.Equal(t, models.ReferralDenied, referral.Status)

	resp = env.Request(http.MethodPost, "/api/referrals", map[string]string{"first_degree_id": referee.ID, "target_user_id": target.ID}, env.TokenFor(referee))
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

type introductionView struct {
	ID      string                    `json:"id"`
	Status  models.IntroductionStatus `json:"status"`
	PersonA struct {
		Accepted bool `json:"accepted"`
	} `json:"person_a"`
	PersonB struct {
		Accepted bool `json:"accepted"`
	} `json:"person_b"`
}

func TestIntroductionHandlers_BothAcceptCreatesConnection(t *testing.T) {
	env := testutil.NewEnv(t)
	introducer := env.CreateUser("Ivy", models.UserTypeFirstDegree)
	personA := env.CreateUser("Ann", models.UserTypeReferee)
	personB := env.CreateUser("Ben", models.UserTypeReferral)
	outsider := env.CreateUser("Olga", models.UserTypeReferee)

	resp := env.Request(http.MethodPost, "/api/introductions", map[string]any{
		"person_a": map[string]string{"user_id": personA.ID},
		"person_b": map[string]string{"user_id": personB.ID},
		"note":     "You both build marketplaces",
	}, env.TokenFor(introducer))
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var intro introductionView
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &intro)
	require.Equal(t, models.IntroductionPending, intro.Status)

	path := "/api/introductions/" + intro.ID
	resp = env.Request(http.MethodGet, path, nil, env.TokenFor(outsider))
	require.Equal(t, http.StatusForbidden, resp.Code)

	resp = env.Request(http.MethodPost, path+"/respond", map[string]string{"action": "accept"}, env.TokenFor(personA))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var result struct {
		Introduction      introductionView `json:"introduction"`
		ConnectionCreated bool             `json:"connection_created"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &result)
	require.Equal(t, models.IntroductionPersonAAccepted, result.Introduction.Status)
	require.False(t, result.ConnectionCreated)
	require.True(t, result.Introduction.PersonA.Accepted)

	resp = env.Request(http.MethodPost, path+"/respond", map[string]string{"action": "accept"}, env.TokenFor(personB))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &result)
	require.Equal(t, models.IntroductionBothAccepted, result.Introduction.Status)
	require.True(t, result.ConnectionCreated)

	require.Equal(t, []string{personB.ID}, connectionIDs(t, env, env.TokenFor(personA)))

	resp = env.Request(http.MethodPost, path+"/respond", map[string]string{"action": "decline"}, env.TokenFor(personA))
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp = env.Request(http.MethodGet, "/api/introductions", nil, env.TokenFor(introducer))
	require.Equal(t, http.StatusOK, resp.Code)
	var listed []introductionView
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &listed)
	require.Len(t, listed, 1)
}

func TestIntroductionHandlers_RejectsSamePerson(t *testing.T) {
	env := testutil.NewEnv(t)
	introducer := env.CreateUser("Ivy", models.UserTypeFirstDegree)
	person := env.CreateUser("Ann", models.UserTypeReferee)

	resp := env.Request(http.MethodPost, "/api/introductions", map[string]any{
		"person_a": map[string]string{"user_id": person.ID},
		"person_b": map[string]string{"email": person.EmailAddress()},
	}, env.TokenFor(introducer))
	require.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())
}
