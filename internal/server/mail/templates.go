package mail

import (
	"bytes"
	"fmt"
	"html/template"
)

const (
	TagAccountVerification = "account-verification"
	TagMFACode             = "mfa-code"
	TagPasswordReset       = "password-reset"
)

var layout = template.Must(template.New("mail").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 520px; margin: 0 auto; padding: 16px;">
    <p>Hello {{.Name}},</p>
    {{if .Code}}<p>Your two factor authentication code:</p>
    <div style="font-size: 28px; font-weight: bold; letter-spacing: 3px;">{{.Code}}</div>{{end}}
    {{if .URL}}<p>{{.Text}}</p>
    <p><a href="{{.URL}}">{{.URL}}</a></p>{{end}}
  </div>
</body>
</html>`))

type templateData struct {
	Name string
	Text string
	Code string
	URL  string
}

func render(to, subject, tag string, data templateData) (Message, error) {
	var b bytes.Buffer
	if err := layout.Execute(&b, data); err != nil {
		return Message{}, fmt.Errorf("render %s: %w", tag, err)
	}
	return Message{To: to, Subject: subject, HTMLBody: b.String(), Tag: tag}, nil
}

func AccountVerification(to, name, url string) (Message, error) {
	return render(to, "Verify your account!", TagAccountVerification, templateData{
		Name: name,
		Text: "Please verify your account by clicking this link:",
		URL:  url,
	})
}

func MFACode(to, name, code string) (Message, error) {
	return render(to, "Two factor authentication code!", TagMFACode, templateData{Name: name, Code: code})
}

func PasswordReset(to, name, url string) (Message, error) {
	return render(to, "Verification URL for password recovery", TagPasswordReset, templateData{
		Name: name,
		Text: "Your verification url for password recovery is:",
		URL:  url,
	})
}
