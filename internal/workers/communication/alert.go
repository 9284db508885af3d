// Package communication holds the delivery job handler shared by the
// email, telegram and sms workers.
package communication

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"notification-workers/internal/models"
)

// MaxAlertContent bounds the original content quoted in an alert, in runes.
const MaxAlertContent = 200

// Alert describes a job that exhausted its attempts.
type Alert struct {
	JobID     string
	Channel   models.Channel
	Recipient string
	Content   string
	Error     string
	Attempts  int
	Time      time.Time
}

// NewAlert truncates content and stamps the time in UTC.
func NewAlert(jobID string, ch models.Channel, recipient, content string, attempts int, err error) Alert {
	a := Alert{
		JobID:     jobID,
		Channel:   ch,
		Recipient: recipient,
		Content:   Truncate(content, MaxAlertContent),
		Attempts:  attempts,
		Time:      time.Now().UTC(),
	}
	if err != nil {
		a.Error = err.Error()
	}
	return a
}

func (a Alert) Subject() string {
	return fmt.Sprintf("[%s] %s notification %s failed", models.CategoryError, a.Channel, a.JobID)
}

// Text renders the alert as plain text.
func (a Alert) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", a.Subject())
	fmt.Fprintf(&b, "Job ID: %s\n", a.JobID)
	fmt.Fprintf(&b, "Recipient: %s\n", a.Recipient)
	fmt.Fprintf(&b, "Attempts: %d\n", a.Attempts)
	fmt.Fprintf(&b, "Error: %s\n", a.Error)
	fmt.Fprintf(&b, "Time: %s\n", a.Time.Format(time.RFC3339))
	fmt.Fprintf(&b, "Content: %s", a.Content)
	return b.String()
}

var alertHTML = template.Must(template.New("alert").Parse(`<h3>{{.Subject}}</h3>
<ul>
<li><b>Job ID:</b> {{.JobID}}</li>
<li><b>Recipient:</b> {{.Recipient}}</li>
<li><b>Attempts:</b> {{.Attempts}}</li>
<li><b>Error:</b> {{.Error}}</li>
<li><b>Time:</b> {{.Time.Format "2006-01-02T15:04:05Z07:00"}}</li>
</ul>
<pre>{{.Content}}</pre>`))

// HTML renders the alert as an email body with every field escaped.
func (a Alert) HTML() string {
	var buf bytes.Buffer
	if err := alertHTML.Execute(&buf, a); err != nil {
		return template.HTMLEscapeString(a.Text())
	}
	return buf.String()
}

// ChatHTML renders the alert with the small tag set chat clients accept
// in HTML parse mode.
func (a Alert) ChatHTML() string {
	esc := template.HTMLEscapeString
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n\n", esc(a.Subject()))
	fmt.Fprintf(&b, "<b>Job ID:</b> <code>%s</code>\n", esc(a.JobID))
	fmt.Fprintf(&b, "<b>Recipient:</b> %s\n", esc(a.Recipient))
	fmt.Fprintf(&b, "<b>Attempts:</b> %d\n", a.Attempts)
	fmt.Fprintf(&b, "<b>Error:</b> %s\n", esc(a.Error))
	fmt.Fprintf(&b, "<b>Time:</b> %s\n", a.Time.Format(time.RFC3339))
	fmt.Fprintf(&b, "<pre>%s</pre>", esc(a.Content))
	return b.String()
}

// Truncate shortens s to at most n runes, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
