package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

var layout = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; line-height: 1.5;">
<p>Hi {{.Name}},</p>
<p>{{.Intro}}</p>
<p><a href="{{.Link}}">{{.Action}}</a></p>
<p>This link expires in {{.Expiry}}. If you did not request it, you can ignore this email.</p>
<p>The Agora team</p>
</body>
</html>`))

type emailData struct {
	Name   string
	Intro  string
	Link   string
	Action string
	Expiry string
}

func render(templateName, to, subject string, data emailData) (Message, error) {
	var buf bytes.Buffer
	if err := layout.Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("render %s: %w", templateName, err)
	}
	text := fmt.Sprintf("Hi %s,\n\n%s\n\n%s: %s\n\nThis link expires in %s.\n",
		data.Name, data.Intro, data.Action, data.Link, data.Expiry)

	return Message{Template: templateName, To: to, Subject: subject, HTML: buf.String(), Text: text}, nil
}

func renderVerification(to, name, link string) (Message, error) {
	return render("verify_email", to, "Verify your Agora email address", emailData{
		Name:   name,
		Intro:  "Thanks for joining Agora. Please confirm your email address.",
		Link:   link,
		Action: "Verify email",
		Expiry: "24 hours",
	})
}

func renderPasswordReset(to, name, link string) (Message, error) {
	return render("password_reset", to, "Reset your Agora password", emailData{
		Name:   name,
		Intro:  "We received a request to reset your password.",
		Link:   link,
		Action: "Reset password",
		Expiry: "1 hour",
	})
}
