// Package notify sends booking lifecycle email to invitees and hosts:
// confirmations, cancellations, and upcoming-meeting reminders.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"meetsched-service/internal/model"
	"meetsched-service/internal/timezone"
)

// Sender delivers a single plain-text message.
type Sender interface {
	Send(to, subject, body string) error
}

// SMTPSender sends email via unauthenticated SMTP (Mailpit-compatible in
// development, a local relay in production).
type SMTPSender struct {
	addr string
	from string
}

func NewSMTPSender(host, port, from string) *SMTPSender {
	host = strings.TrimSpace(host)
	port = strings.TrimSpace(port)
	from = strings.TrimSpace(from)
	if from == "" {
		from = "no-reply@meetsched.local"
	}
	return &SMTPSender{
		addr: fmt.Sprintf("%s:%s", host, port),
		from: from,
	}
}

func (s *SMTPSender) Send(to, subject, body string) error {
	msg := buildMessage(s.from, to, subject, body)
	return smtp.SendMail(s.addr, nil, s.from, []string{to}, []byte(msg))
}

func buildMessage(from, to, subject, body string) string {
	// Minimal RFC 5322 message; enough for Mailpit and most SMTP relays.
	return fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		from, to, subject, body,
	)
}

// Mailer composes booking email and hands it to a Sender. A nil *Mailer is
// valid and drops everything, for deployments without SMTP configured.
type Mailer struct {
	sender Sender
	logger *slog.Logger
}

func NewMailer(sender Sender, logger *slog.Logger) *Mailer {
	if sender == nil {
		return nil
	}
	return &Mailer{sender: sender, logger: logger}
}

func (m *Mailer) SendBookingConfirmed(ctx context.Context, b *model.Booking, host *model.Host, mt *model.MeetingType) error {
	if m == nil {
		return nil
	}
	when := formatInHostZone(b, host)
	subject := fmt.Sprintf("Confirmed: %s on %s", mt.Name, when)

	inviteeBody := fmt.Sprintf(
		"Hi %s,\n\nYour %s with %s is confirmed.\n\nWhen: %s (%s)\nDuration: %s\nWhere: %s\n\nBooking reference: %s\n",
		b.InviteeName, mt.Name, host.Username, when, host.Timezone,
		formatDuration(mt.DurationMinutes), locationLine(mt), b.ID)
	if err := m.sender.Send(b.InviteeEmail, subject, inviteeBody); err != nil {
		return fmt.Errorf("send invitee confirmation: %w", err)
	}

	hostBody := fmt.Sprintf(
		"New booking: %s\n\nWith: %s <%s>\nWhen: %s (%s)\nDuration: %s\n",
		mt.Name, b.InviteeName, b.InviteeEmail, when, host.Timezone,
		formatDuration(mt.DurationMinutes))
	if err := m.sender.Send(host.Email, subject, hostBody); err != nil {
		// Invitee already notified; the host copy is not worth failing over.
		m.logger.Warn("host confirmation email failed", "booking_id", b.ID, "err", err)
	}
	return nil
}

func (m *Mailer) SendBookingCancelled(ctx context.Context, b *model.Booking, host *model.Host, mt *model.MeetingType, reason string) error {
	if m == nil {
		return nil
	}
	when := formatInHostZone(b, host)
	subject := fmt.Sprintf("Cancelled: %s on %s", mt.Name, when)

	body := fmt.Sprintf("Hi %s,\n\nYour %s with %s on %s has been cancelled.\n",
		b.InviteeName, mt.Name, host.Username, when)
	if reason != "" {
		body += fmt.Sprintf("\nReason: %s\n", reason)
	}
	if err := m.sender.Send(b.InviteeEmail, subject, body); err != nil {
		return fmt.Errorf("send cancellation notice: %w", err)
	}
	return nil
}

func (m *Mailer) SendReminder(ctx context.Context, b *model.Booking, host *model.Host, mt *model.MeetingType, lead string) error {
	if m == nil {
		return nil
	}
	when := formatInHostZone(b, host)
	subject := fmt.Sprintf("Reminder: %s in %s", mt.Name, lead)
	body := fmt.Sprintf(
		"Hi %s,\n\nThis is a reminder that your %s with %s starts in about %s.\n\nWhen: %s (%s)\nWhere: %s\n",
		b.InviteeName, mt.Name, host.Username, lead, when, host.Timezone, locationLine(mt))
	if err := m.sender.Send(b.InviteeEmail, subject, body); err != nil {
		return fmt.Errorf("send reminder: %w", err)
	}
	return nil
}

func formatInHostZone(b *model.Booking, host *model.Host) string {
	loc, err := timezone.LoadLocation(host.Timezone)
	if err != nil {
		return b.ScheduledTime.UTC().Format("Monday, January 2, 2006 at 3:04 PM")
	}
	return b.ScheduledTime.In(loc).Format("Monday, January 2, 2006 at 3:04 PM")
}

// formatDuration renders whole-hour and mixed durations the way humans say
// them: "30 minutes", "1 hour", "1 hour 30 minutes".
func formatDuration(minutes int) string {
	h, m := minutes/60, minutes%60
	switch {
	case h == 0:
		return fmt.Sprintf("%d minutes", m)
	case m == 0 && h == 1:
		return "1 hour"
	case m == 0:
		return fmt.Sprintf("%d hours", h)
	case h == 1:
		return fmt.Sprintf("1 hour %d minutes", m)
	default:
		return fmt.Sprintf("%d hours %d minutes", h, m)
	}
}

func locationLine(mt *model.MeetingType) string {
	switch mt.LocationType {
	case model.LocationInPerson:
		if mt.LocationDetails != "" {
			return mt.LocationDetails
		}
		return "In person"
	case model.LocationPhone:
		return "Phone call"
	default:
		if mt.LocationDetails != "" {
			return fmt.Sprintf("Video call (%s)", mt.LocationDetails)
		}
		return "Video call"
	}
}
