package email

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"
)

var (
	otpHTML = htmltemplate.Must(htmltemplate.New("otp").Parse(
		`<p>Hello {{.Name}},</p><p>Your verification code is <strong>{{.Code}}</strong>. It expires in {{.Minutes}} minutes.</p>`))
	otpText = texttemplate.Must(texttemplate.New("otp").Parse(
		"Hello {{.Name}},\n\nYour verification code is {{.Code}}. It expires in {{.Minutes}} minutes.\n"))

	resetHTML = htmltemplate.Must(htmltemplate.New("reset").Parse(
		`<p>You requested a password reset.</p><p><a href="{{.Link}}">Reset your password</a></p><p>The link expires in {{.Minutes}} minutes. If you did not request this, ignore this email.</p>`))
	resetText = texttemplate.Must(texttemplate.New("reset").Parse(
		"You requested a password reset.\n\nOpen this link to choose a new password: {{.Link}}\n\nThe link expires in {{.Minutes}} minutes.\n"))
)

// OTPMessage builds the account verification email.
func OTPMessage(to, name, code string, ttl time.Duration) (Message, error) {
	data := struct {
		Name    string
		Code    string
		Minutes int
	}{name, code, int(ttl.Minutes())}
	return render(to, "Your OTP Code", data, otpText, otpHTML)
}

// PasswordResetMessage builds the password reset email.
func PasswordResetMessage(to, link string, ttl time.Duration) (Message, error) {
	data := struct {
		Link    string
		Minutes int
	}{link, int(ttl.Minutes())}
	return render(to, "Password Reset Request", data, resetText, resetHTML)
}

func render(to, subject string, data interface{}, text *texttemplate.Template, html *htmltemplate.Template) (Message, error) {
	var tb, hb bytes.Buffer
	if err := text.Execute(&tb, data); err != nil {
		return Message{}, fmt.Errorf("render %s text: %w", text.Name(), err)
	}
	if err := html.Execute(&hb, data); err != nil {
		return Message{}, fmt.Errorf("render %s html: %w", html.Name(), err)
	}
	return Message{To: to, Subject: subject, Text: tb.String(), HTML: hb.String()}, nil
}
