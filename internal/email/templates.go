package email

import (
	"bytes"
	"fmt"
	"html/template"
)

var templates = template.Must(template.New("email").Parse(`
{{define "import_completed"}}
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
	<h2>Import run completed</h2>
	<p>Run <strong>{{.RunID}}</strong> ({{if .Incremental}}incremental{{else}}full{{end}}, triggered by {{.TriggeredBy}}) finished successfully.</p>
	<table cellpadding="6" style="border-collapse: collapse;">
		<tr><td>Records fetched</td><td><strong>{{.TotalFetched}}</strong></td></tr>
		<tr><td>Records processed</td><td><strong>{{.TotalProcessed}}</strong></td></tr>
		<tr><td>Bookings created</td><td><strong>{{.BookingsCreated}}</strong></td></tr>
		<tr><td>Leads created</td><td><strong>{{.LeadsCreated}}</strong></td></tr>
		<tr><td>Engaged conversations</td><td><strong>{{.Engaged}}</strong></td></tr>
		<tr><td>Duration</td><td><strong>{{printf "%.1f" .DurationSeconds}}s</strong></td></tr>
	</table>
</body>
</html>
{{end}}

{{define "import_failed"}}
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
	<h2 style="color: #c0392b;">Import run failed</h2>
	<p>Run <strong>{{.RunID}}</strong> ({{if .Incremental}}incremental{{else}}full{{end}}, triggered by {{.TriggeredBy}}) stopped with an error after processing {{.TotalProcessed}} records.</p>
	<p><strong>Error:</strong> {{.ErrorMessage}}</p>
	<p>Pages committed before the failure remain in the database; the next run resumes via idempotent upserts.</p>
</body>
</html>
{{end}}
`))

func renderTemplate(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render email template %s: %w", name, err)
	}
	return buf.String(), nil
}
