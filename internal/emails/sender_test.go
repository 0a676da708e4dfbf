package emails

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/introhub/internal/models"
	"github.com/charlesng35/introhub/pkg/mail"
)

type staticSettings struct {
	settings *models.APISettings
	err      error
}

func (s staticSettings) Current(context.Context) (*models.APISettings, error) {
	return s.settings, s.err
}

func TestRenderEveryTemplate(t *testing.T) {
	data := Data{
		SiteName:         "IntroHub",
		RecipientName:    "Rita",
		ActorName:        "Alex",
		CounterpartName:  "Casey",
		CounterpartEmail: "casey@example.com",
		CounterpartPhone: "+1 555 0100",
		Note:             "Would love to chat",
		Link:             "https://intro.example.com/x",
		Accepted:         true,
	}

	for tmpl := range registry {
		msg, err := render(tmpl, data)
		require.NoError(t, err, tmpl)
		require.NotEmpty(t, msg.Subject, tmpl)
		require.NotEmpty(t, msg.Body, tmpl)
		require.Contains(t, msg.HTML, "<html>", tmpl)
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, err := render(Template("nope"), Data{})
	require.Error(t, err)
}

func TestRenderEscapesHTML(t *testing.T) {
	msg, err := render(TemplateConnectionRequest, Data{ActorName: "<b>Mallory</b>", Link: "https://x"})
	require.NoError(t, err)
	require.NotContains(t, msg.HTML, "<b>Mallory</b>")
	require.Contains(t, msg.Body, "<b>Mallory</b>")
}

func TestDeliverUsesSettingsForBranding(t *testing.T) {
	recorder := &RecordingMailer{}
	sender := NewSender(recorder, WithSettings(staticSettings{settings: &models.APISettings{
		SiteName:         "Intro Club",
		EmailFromName:    "Intro Club",
		EmailFromAddress: "hello@intro.example.com",
	}}))

	err := sender.Deliver(context.Background(), TemplateMagicLink, "sam@example.com", Data{RecipientName: "Sam", Link: "https://x/verify"})
	require.NoError(t, err)

	messages := recorder.SentTo("sam@example.com")
	require.Len(t, messages, 1)
	require.Equal(t, "Your Intro Club sign-in link", messages[0].Subject)
	require.Equal(t, "Intro Club <hello@intro.example.com>", messages[0].From)
	require.True(t, strings.Contains(messages[0].Body, "https://x/verify"))
}

func TestDeliverWithoutMailerIsSkipped(t *testing.T) {
	sender := NewSender(nil)
	err := sender.Deliver(context.Background(), TemplateMagicLink, "sam@example.com", Data{})
	require.ErrorIs(t, err, mail.ErrSMTPDisabled)
}

func TestNotifySwallowsFailures(t *testing.T) {
	recorder := &RecordingMailer{Err: errors.New("smtp down")}
	sender := NewSender(recorder)

	require.NotPanics(t, func() {
		sender.Notify(context.Background(), TemplateConnectionAccepted, "sam@example.com", Data{})
	})
	require.Empty(t, recorder.Messages())
}

func TestLinkPrefersSettingsBaseURL(t *testing.T) {
	sender := NewSender(nil, WithBaseURL("http://localhost:8000/"))
	require.Equal(t, "http://localhost:8000/connections", sender.Link(context.Background(), "connections"))

	sender = NewSender(nil,
		WithBaseURL("http://localhost:8000"),
		WithSettings(staticSettings{settings: &models.APISettings{PublicBaseURL: "https://intro.example.com/"}}),
	)
	require.Equal(t, "https://intro.example.com/profile/sam", sender.Link(context.Background(), "/profile/sam"))

	sender = NewSender(nil,
		WithBaseURL("http://localhost:8000"),
		WithSettings(staticSettings{err: errors.New("db down")}),
	)
	require.Equal(t, "http://localhost:8000/x", sender.Link(context.Background(), "/x"))
}
