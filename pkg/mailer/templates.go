package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"
)

// AppointmentDetails is the data rendered into appointment messages.
type AppointmentDetails struct {
	PatientName      string
	PatientEmail     string
	ProfessionalName string
	Specialty        string
	StartsAt         time.Time
	DurationMinutes  int
	Notes            string
	Reason           string
}

const layout = `<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
<h2 style="color: {{.Color}};">{{.Title}}</h2>
<p>Hello {{.D.PatientName}},</p>
<p>{{.Lead}}</p>
<div style="background-color: #f8f9fa; padding: 15px; border-radius: 5px; margin: 20px 0;">
<p><strong>Date:</strong> {{.D.StartsAt.Format "02/01/2006"}}</p>
<p><strong>Time:</strong> {{.D.StartsAt.Format "15:04"}} ({{.D.DurationMinutes}} min)</p>
<p><strong>Professional:</strong> {{.D.ProfessionalName}}{{if .D.Specialty}} ({{.D.Specialty}}){{end}}</p>
{{if .D.Notes}}<p><strong>Notes:</strong> {{.D.Notes}}</p>{{end}}
{{if .D.Reason}}<p><strong>Reason:</strong> {{.D.Reason}}</p>{{end}}
</div>
<p>{{.Footer}}</p>
</div>
</body>
</html>`

var appointmentTmpl = template.Must(template.New("appointment").Parse(layout))

type view struct {
	Title  string
	Color  string
	Lead   string
	Footer string
	D      AppointmentDetails
}

func render(v view) (string, error) {
	var buf bytes.Buffer
	if err := appointmentTmpl.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("rendering %q: %w", v.Title, err)
	}
	return buf.String(), nil
}

// Notifier renders appointment messages and hands them to a Sender.
type Notifier struct {
	sender   Sender
	location *time.Location
}

func NewNotifier(sender Sender, loc *time.Location) *Notifier {
	if loc == nil {
		loc = time.UTC
	}
	return &Notifier{sender: sender, location: loc}
}

func (n *Notifier) AppointmentScheduled(ctx context.Context, d AppointmentDetails) error {
	d.StartsAt = d.StartsAt.In(n.location)
	body, err := render(view{
		Title:  "Appointment Confirmed",
		Color:  "#2563EB",
		Lead:   "Your appointment has been scheduled.",
		Footer: "Please arrive 15 minutes early.",
		D:      d,
	})
	if err != nil {
		return err
	}
	return n.sender.Send(ctx, d.PatientEmail, "Appointment Confirmation", body)
}

func (n *Notifier) AppointmentCancelled(ctx context.Context, d AppointmentDetails) error {
	d.StartsAt = d.StartsAt.In(n.location)
	body, err := render(view{
		Title:  "Appointment Cancelled",
		Color:  "#dc3545",
		Lead:   "Your appointment has been cancelled.",
		Footer: "Contact the clinic to book a new time.",
		D:      d,
	})
	if err != nil {
		return err
	}
	return n.sender.Send(ctx, d.PatientEmail, "Appointment Cancellation", body)
}
