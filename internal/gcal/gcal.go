// Package gcal integrates a host's Google Calendar: the OAuth2 connect flow,
// the free/busy feed consumed during slot generation, and event creation and
// deletion for confirmed bookings.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"meetsched-service/internal/model"
)

// TokenStore persists refreshed OAuth tokens back to the host record.
type TokenStore interface {
	SaveCalendarTokens(ctx context.Context, hostID int64, accessToken, refreshToken string) error
}

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

func (c Config) complete() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RedirectURL != ""
}

// Client talks to the Google Calendar API on behalf of connected hosts.
// A nil *Client is valid and behaves as "calendar not configured": no busy
// feed, no events.
type Client struct {
	oauth  *oauth2.Config
	tokens TokenStore
	logger *slog.Logger
}

// New returns nil when the OAuth client is not configured, so callers can
// wire the Client unconditionally and let nil-receiver methods no-op.
func New(cfg Config, tokens TokenStore, logger *slog.Logger) *Client {
	if !cfg.complete() {
		return nil
	}
	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes: []string{
				calendar.CalendarEventsScope,
			},
			Endpoint: google.Endpoint,
		},
		tokens: tokens,
		logger: logger,
	}
}

func (c *Client) Configured() bool { return c != nil }

// AuthURL starts the offline-access consent flow. The state value is echoed
// back on the callback and carries the host ID.
func (c *Client) AuthURL(state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades the callback code for tokens and stores them on the host.
func (c *Client) Exchange(ctx context.Context, hostID int64, code string) error {
	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}
	return c.tokens.SaveCalendarTokens(ctx, hostID, token.AccessToken, token.RefreshToken)
}

// service builds a calendar client from the host's stored tokens. Refreshes
// performed by the token source are persisted so the next call starts from
// the fresh access token.
func (c *Client) service(ctx context.Context, host *model.Host) (*calendar.Service, error) {
	token := &oauth2.Token{
		AccessToken:  host.CalendarAccessToken,
		RefreshToken: host.CalendarRefreshToken,
		// Force a refresh check on first use; expiry is not persisted.
		Expiry: time.Now().Add(-time.Minute),
	}
	source := c.oauth.TokenSource(ctx, token)
	fresh, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh calendar token: %w", err)
	}
	if fresh.AccessToken != host.CalendarAccessToken {
		if err := c.tokens.SaveCalendarTokens(ctx, host.ID, fresh.AccessToken, fresh.RefreshToken); err != nil {
			c.logger.Warn("persisting refreshed calendar token failed", "host_id", host.ID, "err", err)
		}
	}
	return calendar.NewService(ctx, option.WithTokenSource(oauth2.StaticTokenSource(fresh)))
}

// BusyIntervals queries the free/busy endpoint for the host's primary
// calendar. Hosts without a connected calendar contribute no busy time.
func (c *Client) BusyIntervals(ctx context.Context, host *model.Host, from, to time.Time) ([]model.BusyInterval, error) {
	if c == nil || !host.CalendarConnected {
		return nil, nil
	}

	srv, err := c.service(ctx, host)
	if err != nil {
		return nil, err
	}

	resp, err := srv.Freebusy.Query(&calendar.FreeBusyRequest{
		TimeMin: from.Format(time.RFC3339),
		TimeMax: to.Format(time.RFC3339),
		Items:   []*calendar.FreeBusyRequestItem{{Id: "primary"}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("freebusy query: %w", err)
	}

	cal, ok := resp.Calendars["primary"]
	if !ok {
		return nil, nil
	}
	var out []model.BusyInterval
	for _, period := range cal.Busy {
		start, err := time.Parse(time.RFC3339, period.Start)
		if err != nil {
			continue
		}
		end, err := time.Parse(time.RFC3339, period.End)
		if err != nil {
			continue
		}
		out = append(out, model.BusyInterval{Start: start, End: end})
	}
	return out, nil
}

// CreateEvent inserts the booking on the host's primary calendar with the
// invitee as attendee and returns the event ID.
func (c *Client) CreateEvent(ctx context.Context, b *model.Booking, host *model.Host, mt *model.MeetingType) (string, error) {
	if c == nil || !host.CalendarConnected {
		return "", nil
	}

	srv, err := c.service(ctx, host)
	if err != nil {
		return "", err
	}

	end := b.ScheduledTime.Add(mt.Duration())
	event := &calendar.Event{
		Summary:     fmt.Sprintf("%s with %s", mt.Name, b.InviteeName),
		Description: mt.Description,
		Location:    eventLocation(mt),
		Start:       &calendar.EventDateTime{DateTime: b.ScheduledTime.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: end.Format(time.RFC3339)},
		Attendees: []*calendar.EventAttendee{
			{Email: b.InviteeEmail, DisplayName: b.InviteeName},
		},
	}

	created, err := srv.Events.Insert("primary", event).SendUpdates("all").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("insert calendar event: %w", err)
	}
	return created.Id, nil
}

// DeleteEvent removes a previously created event. A missing event is not an
// error; the goal state is "event gone".
func (c *Client) DeleteEvent(ctx context.Context, host *model.Host, eventRef string) error {
	if c == nil || !host.CalendarConnected || eventRef == "" {
		return nil
	}

	srv, err := c.service(ctx, host)
	if err != nil {
		return err
	}

	err = srv.Events.Delete("primary", eventRef).SendUpdates("all").Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && (apiErr.Code == 404 || apiErr.Code == 410) {
			return nil
		}
		return fmt.Errorf("delete calendar event: %w", err)
	}
	return nil
}

func eventLocation(mt *model.MeetingType) string {
	switch mt.LocationType {
	case model.LocationInPerson:
		return mt.LocationDetails
	case model.LocationPhone:
		return "Phone call"
	default:
		return "Video call"
	}
}
