package mailer

import (
	"bytes"
	"fmt"
	"html"
	htmltemplate "html/template"
	"strings"
	"sync"
	texttemplate "text/template"

	"github.com/BTreeMap/LeadPipe/internal/models"
	"github.com/microcosm-cc/bluemonday"
)

// Brand names the sender in the confirmation e-mail.
type Brand struct {
	Name         string
	SupportEmail string
}

var (
	stripPolicyOnce sync.Once
	stripPolicy     *bluemonday.Policy
)

// stripMarkup removes any tags from user-supplied text and returns it unescaped, ready for a
// template to escape for its own output format.
func stripMarkup(s string) string {
	stripPolicyOnce.Do(func() {
		stripPolicy = bluemonday.StrictPolicy()
	})
	return strings.TrimSpace(html.UnescapeString(stripPolicy.Sanitize(s)))
}

type confirmationField struct {
	Label string
	Value string
}

type confirmationData struct {
	Brand  Brand
	Name   string
	Fields []confirmationField
}

const confirmationText = `Hi {{.Name}},

Thanks for contacting {{.Brand.Name}}. We received your request with the following details:

{{range .Fields}}{{.Label}}: {{.Value}}
{{end}}
We will get back to you shortly. If anything above is wrong, write to us at {{.Brand.SupportEmail}}.

{{.Brand.Name}}
`

const confirmationHTML = `<!DOCTYPE html>
<html>
<body style="font-family: sans-serif;">
<p>Hi {{.Name}},</p>
<p>Thanks for contacting {{.Brand.Name}}. We received your request with the following details:</p>
<table cellpadding="4">
{{range .Fields}}<tr><th align="left">{{.Label}}</th><td>{{.Value}}</td></tr>
{{end}}</table>
<p>We will get back to you shortly. If anything above is wrong, write to us at <a href="mailto:{{.Brand.SupportEmail}}">{{.Brand.SupportEmail}}</a>.</p>
<p>{{.Brand.Name}}</p>
</body>
</html>
`

var (
	textTmpl = texttemplate.Must(texttemplate.New("confirmation.txt").Parse(confirmationText))
	htmlTmpl = htmltemplate.Must(htmltemplate.New("confirmation.html").Parse(confirmationHTML))
)

// ComposeConfirmation renders the e-mail sent to a submitter, restating every submitted field.
func ComposeConfirmation(c models.Contact, brand Brand) (Message, error) {
	consent := "No"
	if c.Consent {
		consent = "Yes"
	}
	data := confirmationData{
		Brand: brand,
		Name:  stripMarkup(c.Name),
		Fields: []confirmationField{
			{Label: "Name", Value: stripMarkup(c.Name)},
			{Label: "E-mail", Value: stripMarkup(c.Email)},
			{Label: "Phone", Value: orDash(stripMarkup(c.Phone))},
			{Label: "Company", Value: orDash(stripMarkup(c.CompanyName))},
			{Label: "Industry", Value: orDash(stripMarkup(c.Industry))},
			{Label: "Message", Value: stripMarkup(c.Message)},
			{Label: "Consent to be contacted", Value: consent},
			{Label: "Reference", Value: c.ID},
		},
	}

	var text, body bytes.Buffer
	if err := textTmpl.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("failed to render text body: %w", err)
	}
	if err := htmlTmpl.Execute(&body, data); err != nil {
		return Message{}, fmt.Errorf("failed to render html body: %w", err)
	}
	return Message{
		To:      c.Email,
		Subject: fmt.Sprintf("We received your message - %s", brand.Name),
		Text:    text.String(),
		HTML:    body.String(),
	}, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
