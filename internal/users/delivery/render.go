// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package delivery

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

var (
	htmlTemplates = htmltemplate.Must(htmltemplate.ParseFS(templatesFS, "templates/*.html.tmpl"))
	textTemplates = texttemplate.Must(texttemplate.ParseFS(templatesFS, "templates/*.txt.tmpl"))
)

var subjects = map[Kind]string{
	KindRegistration:  "Your verification code",
	KindPasswordReset: "Your password reset code",
}

// Mail is a rendered, ready-to-send e-mail.
type Mail struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

type mailView struct {
	Code      string
	ExpiresAt string
}

// Render turns an event into a multipart-ready [Mail].
func Render(event Event) (*Mail, error) {
	subject, ok := subjects[event.Kind]
	if !ok {
		return nil, fmt.Errorf("delivery: unknown kind %q", event.Kind)
	}

	view := mailView{
		Code:      event.Code,
		ExpiresAt: event.ExpiresAt.UTC().Format(time.RFC1123),
	}

	var text, html bytes.Buffer
	if err := textTemplates.ExecuteTemplate(&text, string(event.Kind)+".txt.tmpl", view); err != nil {
		return nil, fmt.Errorf("delivery: render text: %w", err)
	}
	if err := htmlTemplates.ExecuteTemplate(&html, string(event.Kind)+".html.tmpl", view); err != nil {
		return nil, fmt.Errorf("delivery: render html: %w", err)
	}

	return &Mail{
		To:      event.Address,
		Subject: subject,
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
