// Package notify renders and delivers change notifications.
package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/JakeFAU/followwatch/internal/tracker"
)

var htmlBody = template.Must(template.New("change").Parse(
	`<p><strong>@{{.Handle}}</strong> started following:</p>
<ul>
{{- range .Newcomers}}
  <li>{{.}}</li>
{{- end}}
</ul>
`))

// ChangeMessage renders the notification for newcomers observed on handle.
func ChangeMessage(to, handle string, newcomers []string) (tracker.Message, error) {
	if strings.TrimSpace(to) == "" {
		return tracker.Message{}, tracker.Invalid("notification recipient is required")
	}
	if len(newcomers) == 0 {
		return tracker.Message{}, tracker.Invalid("no newcomers to report")
	}
	var html bytes.Buffer
	err := htmlBody.Execute(&html, struct {
		Handle    string
		Newcomers []string
	}{handle, newcomers})
	if err != nil {
		return tracker.Message{}, fmt.Errorf("render notification: %w", err)
	}
	return tracker.Message{
		To:      to,
		Subject: fmt.Sprintf("New followings by @%s", handle),
		Text:    fmt.Sprintf("@%s started following: %s", handle, strings.Join(newcomers, ", ")),
		HTML:    html.String(),
	}, nil
}
