package emails

import (
	htmltemplate "html/template"
	texttemplate "text/template"
)

// Template names a transactional email.
type Template string

const (
	TemplateMagicLink                   Template = "magic_link"
	TemplateConnectionRequest           Template = "connection_request"
	TemplateConnectionAccepted          Template = "connection_accepted"
	TemplateReferralRequest             Template = "referral_request"
	TemplateReferralApprovedReferee     Template = "referral_approved_referee"
	TemplateReferralApprovedFirstDegree Template = "referral_approved_first_degree"
	TemplateReferralApprovedTarget      Template = "referral_approved_target"
	TemplateReferralResponseReferee     Template = "referral_response_referee"
	TemplateReferralResponseFirstDegree Template = "referral_response_first_degree"
	TemplateIntroductionInvite          Template = "introduction_invite"
)

// Data is the view model shared by all templates. Fields a template does not
// reference are ignored.
type Data struct {
	SiteName      string
	RecipientName string
	ActorName     string

	CounterpartName  string
	CounterpartEmail string
	CounterpartPhone string

	Note     string
	Link     string
	Accepted bool
}

type definition struct {
	subject *texttemplate.Template
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

const htmlLayout = `<!doctype html><html><body style="font-family:sans-serif;line-height:1.5">{{template "content" .}}<p style="color:#888;font-size:12px">{{.SiteName}}</p></body></html>`

var registry = map[Template]definition{
	TemplateMagicLink: mustDefine(
		`Your {{.SiteName}} sign-in link`,
		"Hi {{.RecipientName}},\n\nUse the link below to sign in. It expires in 15 minutes and can be used once.\n{{.Link}}\n\nIf you did not request this, ignore this message.\n",
		`<p>Hi {{.RecipientName}},</p><p>Use the link below to sign in. It expires in 15 minutes and can be used once.</p><p><a href="{{.Link}}">Sign in</a></p>`,
	),
	TemplateConnectionRequest: mustDefine(
		`{{.ActorName}} wants to connect on {{.SiteName}}`,
		"Hi {{.RecipientName}},\n\n{{.ActorName}} sent you a connection request.{{if .Note}}\n\n\"{{.Note}}\"{{end}}\n\nReview it here:\n{{.Link}}\n",
		`<p>Hi {{.RecipientName}},</p><p>{{.ActorName}} sent you a connection request.</p>{{if .Note}}<blockquote>{{.Note}}</blockquote>{{end}}<p><a href="{{.Link}}">Review request</a></p>`,
	),
	TemplateConnectionAccepted: mustDefine(
		`{{.ActorName}} accepted your connection request`,
		"Hi {{.RecipientName}},\n\n{{.ActorName}} accepted your connection request. View their profile:\n{{.Link}}\n",
		`<p>Hi {{.RecipientName}},</p><p>{{.ActorName}} accepted your connection request.</p><p><a href="{{.Link}}">View profile</a></p>`,
	),
	TemplateReferralRequest: mustDefine(
		`{{.ActorName}} would like an introduction`,
		"Hi {{.RecipientName}},\n\n{{.ActorName}} would like to be introduced to you through {{.CounterpartName}}.{{if .Note}}\n\n\"{{.Note}}\"{{end}}\n\nAccept or decline here:\n{{.Link}}\n",
		`<p>Hi {{.RecipientName}},</p><p>{{.ActorName}} would like to be introduced to you through {{.CounterpartName}}.</p>{{if .Note}}<blockquote>{{.Note}}</blockquote>{{end}}<p><a href="{{.Link}}">Respond</a></p>`,
	),
	TemplateReferralApprovedReferee: mustDefine(
		`Your introduction to {{.CounterpartName}} was approved`,
		"Hi {{.RecipientName}},\n\nGood news: your introduction to {{.CounterpartName}} was approved.\n\nEmail: {{.CounterpartEmail}}\nPhone: {{.CounterpartPhone}}\n\n{{.Link}}\n",
		`<p>Hi {{.RecipientName}},</p><p>Good news: your introduction to {{.CounterpartName}} was approved.</p><ul><li>Email: {{.CounterpartEmail}}</li><li>Phone: {{.CounterpartPhone}}</li></ul><p><a href="{{.Link}}">Open IntroHub</a></p>`,
	),
	TemplateReferralApprovedFirstDegree: mustDefine(
		`You connected {{.ActorName}} with {{.CounterpartName}}`,
		"Hi {{.RecipientName}},\n\nThanks for the introduction. {{.ActorName}} and {{.CounterpartName}} now have each other's details.\n\n{{.CounterpartName}}: {{.CounterpartEmail}} {{.CounterpartPhone}}\n",
		`<p>Hi {{.RecipientName}},</p><p>Thanks for the introduction. {{.ActorName}} and {{.CounterpartName}} now have each other's details.</p><p>{{.CounterpartName}}: {{.CounterpartEmail}} {{.CounterpartPhone}}</p>`,
	),
	TemplateReferralApprovedTarget: mustDefine(
		`Meet {{.CounterpartName}}`,
		"Hi {{.RecipientName}},\n\n{{.ActorName}} introduced you to {{.CounterpartName}}.\n\nEmail: {{.CounterpartEmail}}\nPhone: {{.CounterpartPhone}}\n",
		`<p>Hi {{.RecipientName}},</p><p>{{.ActorName}} introduced you to {{.CounterpartName}}.</p><ul><li>Email: {{.CounterpartEmail}}</li><li>Phone: {{.CounterpartPhone}}</li></ul>`,
	),
	TemplateReferralResponseReferee: mustDefine(
		`{{.ActorName}} {{if .Accepted}}accepted{{else}}declined{{end}} your introduction request`,
		"Hi {{.RecipientName}},\n\n{{.ActorName}} {{if .Accepted}}accepted your introduction request.\n\nEmail: {{.CounterpartEmail}}\nPhone: {{.CounterpartPhone}}{{else}}declined your introduction request this time.{{end}}\n",
		`<p>Hi {{.RecipientName}},</p>{{if .Accepted}}<p>{{.ActorName}} accepted your introduction request.</p><ul><li>Email: {{.CounterpartEmail}}</li><li>Phone: {{.CounterpartPhone}}</li></ul>{{else}}<p>{{.ActorName}} declined your introduction request this time.</p>{{end}}`,
	),
	TemplateReferralResponseFirstDegree: mustDefine(
		`{{.ActorName}} responded to an introduction you vetted`,
		"Hi {{.RecipientName}},\n\n{{.ActorName}} {{if .Accepted}}accepted{{else}}declined{{end}} the introduction to {{.CounterpartName}}.\n",
		`<p>Hi {{.RecipientName}},</p><p>{{.ActorName}} {{if .Accepted}}accepted{{else}}declined{{end}} the introduction to {{.CounterpartName}}.</p>`,
	),
	TemplateIntroductionInvite: mustDefine(
		`{{.ActorName}} wants to introduce you to {{.CounterpartName}}`,
		"Hi {{.RecipientName}},\n\n{{.ActorName}} would like to introduce you to {{.CounterpartName}}.{{if .Note}}\n\n\"{{.Note}}\"{{end}}\n\nBoth of you need to accept before contact details are shared:\n{{.Link}}\n",
		`<p>Hi {{.RecipientName}},</p><p>{{.ActorName}} would like to introduce you to {{.CounterpartName}}.</p>{{if .Note}}<blockquote>{{.Note}}</blockquote>{{end}}<p>Both of you need to accept before contact details are shared.</p><p><a href="{{.Link}}">Respond</a></p>`,
	),
}

func mustDefine(subject, text, html string) definition {
	page := htmltemplate.Must(htmltemplate.New("layout").Parse(htmlLayout))
	htmltemplate.Must(page.New("content").Parse(html))
	return definition{
		subject: texttemplate.Must(texttemplate.New("subject").Parse(subject)),
		text:    texttemplate.Must(texttemplate.New("text").Parse(text)),
		html:    page,
	}
}
