package calendar

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	calendarapi "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"toolgate/internal/auth"
	"toolgate/internal/dispatcher"
)

// OAuth scopes for the Google Calendar API.
const (
	ScopeCalendarReadonly = "https://www.googleapis.com/auth/calendar.readonly"
	ScopeCalendarEvents   = "https://www.googleapis.com/auth/calendar.events"
)

const defaultMaxResults = 25

// Tools exposes the Google Calendar tool methods. Every method declares its
// minimum scope set; the dispatcher gates each call and injects a resolved
// token, so nothing here touches token storage or the authorization flow.
type Tools struct {
	providerName string

	// newService allows tests to substitute the Calendar API client.
	newService func(ctx context.Context, token auth.Token) (*calendarapi.Service, error)
}

// NewTools creates the calendar toolset bound to the named provider.
func NewTools(providerName string) *Tools {
	return &Tools{
		providerName: providerName,
		newService:   newCalendarService,
	}
}

func newCalendarService(ctx context.Context, token auth.Token) (*calendarapi.Service, error) {
	src := oauth2.StaticTokenSource(token.Creds())
	svc, err := calendarapi.NewService(ctx, option.WithTokenSource(src))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return svc, nil
}

// Register adds all calendar methods to the dispatcher.
func (t *Tools) Register(d *dispatcher.Dispatcher) error {
	for _, m := range t.Methods() {
		if err := d.Register(m); err != nil {
			return err
		}
	}
	return nil
}

// Methods returns the calendar method registrations. Read-only methods
// declare the readonly scope; mutating methods declare the events scope.
func (t *Tools) Methods() []dispatcher.Method {
	return []dispatcher.Method{
		{
			Name:        "calendar_list_calendars",
			Description: "List the calendars on the user's calendar list.",
			Provider:    t.providerName,
			Scopes:      []string{ScopeCalendarReadonly},
			Handler:     t.listCalendars,
		},
		{
			Name:        "calendar_list_events",
			Description: "List upcoming events from a calendar.",
			Provider:    t.providerName,
			Scopes:      []string{ScopeCalendarReadonly},
			Args: []dispatcher.ArgMetadata{
				{Name: "calendar_id", Type: "string", Description: "Calendar identifier", Default: "primary"},
				{Name: "start_time", Type: "string", Description: "RFC3339 lower bound for event start, defaults to now"},
				{Name: "end_time", Type: "string", Description: "RFC3339 upper bound for event start"},
				{Name: "max_results", Type: "number", Description: "Maximum number of events", Default: defaultMaxResults},
			},
			Handler: t.listEvents,
		},
		{
			Name:        "calendar_create_event",
			Description: "Create an event on a calendar.",
			Provider:    t.providerName,
			Scopes:      []string{ScopeCalendarEvents},
			Args: []dispatcher.ArgMetadata{
				{Name: "calendar_id", Type: "string", Description: "Calendar identifier", Default: "primary"},
				{Name: "summary", Type: "string", Required: true, Description: "Event title"},
				{Name: "description", Type: "string", Description: "Event description"},
				{Name: "start_time", Type: "string", Required: true, Description: "RFC3339 event start"},
				{Name: "end_time", Type: "string", Required: true, Description: "RFC3339 event end"},
			},
			Handler: t.createEvent,
		},
		{
			Name:        "calendar_update_event",
			Description: "Update fields of an existing event.",
			Provider:    t.providerName,
			Scopes:      []string{ScopeCalendarEvents},
			Args: []dispatcher.ArgMetadata{
				{Name: "calendar_id", Type: "string", Description: "Calendar identifier", Default: "primary"},
				{Name: "event_id", Type: "string", Required: true, Description: "Event identifier"},
				{Name: "summary", Type: "string", Description: "New event title"},
				{Name: "description", Type: "string", Description: "New event description"},
				{Name: "start_time", Type: "string", Description: "New RFC3339 event start"},
				{Name: "end_time", Type: "string", Description: "New RFC3339 event end"},
			},
			Handler: t.updateEvent,
		},
		{
			Name:        "calendar_get_availability",
			Description: "Query free/busy intervals for one or more calendars.",
			Provider:    t.providerName,
			Scopes:      []string{ScopeCalendarReadonly},
			Args: []dispatcher.ArgMetadata{
				{Name: "calendar_id", Type: "string", Description: "Calendar identifier", Default: "primary"},
				{Name: "start_time", Type: "string", Required: true, Description: "RFC3339 window start"},
				{Name: "end_time", Type: "string", Required: true, Description: "RFC3339 window end"},
			},
			Handler: t.getAvailability,
		},
	}
}

func (t *Tools) listCalendars(ctx context.Context, token auth.Token, args map[string]interface{}) (*dispatcher.Result, error) {
	svc, err := t.newService(ctx, token)
	if err != nil {
		return nil, err
	}

	list, err := withRetry(ctx, "calendar_list_calendars", func() (*calendarapi.CalendarList, error) {
		return svc.CalendarList.List().Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}

	calendars := make([]map[string]interface{}, 0, len(list.Items))
	for _, item := range list.Items {
		calendars = append(calendars, map[string]interface{}{
			"id":      item.Id,
			"summary": item.Summary,
			"primary": item.Primary,
		})
	}

	return &dispatcher.Result{Content: []interface{}{map[string]interface{}{"calendars": calendars}}}, nil
}

func (t *Tools) listEvents(ctx context.Context, token auth.Token, args map[string]interface{}) (*dispatcher.Result, error) {
	svc, err := t.newService(ctx, token)
	if err != nil {
		return nil, err
	}

	calendarID := argString(args, "calendar_id", "primary")
	startTime := argString(args, "start_time", "")
	if startTime == "" {
		startTime = time.Now().Format(time.RFC3339)
	}
	if err := validateRFC3339("start_time", startTime); err != nil {
		return nil, err
	}

	call := svc.Events.List(calendarID).
		Context(ctx).
		TimeMin(startTime).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(argInt64(args, "max_results", defaultMaxResults))

	if endTime := argString(args, "end_time", ""); endTime != "" {
		if err := validateRFC3339("end_time", endTime); err != nil {
			return nil, err
		}
		call = call.TimeMax(endTime)
	}

	events, err := withRetry(ctx, "calendar_list_events", func() (*calendarapi.Events, error) {
		return call.Do()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	items := make([]map[string]interface{}, 0, len(events.Items))
	for _, ev := range events.Items {
		items = append(items, eventSummary(ev))
	}

	return &dispatcher.Result{Content: []interface{}{map[string]interface{}{
		"calendar_id": calendarID,
		"events":      items,
	}}}, nil
}

func (t *Tools) createEvent(ctx context.Context, token auth.Token, args map[string]interface{}) (*dispatcher.Result, error) {
	svc, err := t.newService(ctx, token)
	if err != nil {
		return nil, err
	}

	summary := argString(args, "summary", "")
	startTime := argString(args, "start_time", "")
	endTime := argString(args, "end_time", "")
	if summary == "" || startTime == "" || endTime == "" {
		return nil, fmt.Errorf("summary, start_time and end_time are required")
	}
	if err := validateRFC3339("start_time", startTime); err != nil {
		return nil, err
	}
	if err := validateRFC3339("end_time", endTime); err != nil {
		return nil, err
	}

	event := &calendarapi.Event{
		Summary:     summary,
		Description: argString(args, "description", ""),
		Start:       &calendarapi.EventDateTime{DateTime: startTime},
		End:         &calendarapi.EventDateTime{DateTime: endTime},
	}

	calendarID := argString(args, "calendar_id", "primary")
	created, err := withRetry(ctx, "calendar_create_event", func() (*calendarapi.Event, error) {
		return svc.Events.Insert(calendarID, event).Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	return &dispatcher.Result{Content: []interface{}{eventSummary(created)}}, nil
}

func (t *Tools) updateEvent(ctx context.Context, token auth.Token, args map[string]interface{}) (*dispatcher.Result, error) {
	svc, err := t.newService(ctx, token)
	if err != nil {
		return nil, err
	}

	eventID := argString(args, "event_id", "")
	if eventID == "" {
		return nil, fmt.Errorf("event_id is required")
	}

	patch := &calendarapi.Event{
		Summary:     argString(args, "summary", ""),
		Description: argString(args, "description", ""),
	}
	if startTime := argString(args, "start_time", ""); startTime != "" {
		if err := validateRFC3339("start_time", startTime); err != nil {
			return nil, err
		}
		patch.Start = &calendarapi.EventDateTime{DateTime: startTime}
	}
	if endTime := argString(args, "end_time", ""); endTime != "" {
		if err := validateRFC3339("end_time", endTime); err != nil {
			return nil, err
		}
		patch.End = &calendarapi.EventDateTime{DateTime: endTime}
	}

	calendarID := argString(args, "calendar_id", "primary")
	updated, err := withRetry(ctx, "calendar_update_event", func() (*calendarapi.Event, error) {
		return svc.Events.Patch(calendarID, eventID, patch).Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}

	return &dispatcher.Result{Content: []interface{}{eventSummary(updated)}}, nil
}

func (t *Tools) getAvailability(ctx context.Context, token auth.Token, args map[string]interface{}) (*dispatcher.Result, error) {
	svc, err := t.newService(ctx, token)
	if err != nil {
		return nil, err
	}

	startTime := argString(args, "start_time", "")
	endTime := argString(args, "end_time", "")
	if startTime == "" || endTime == "" {
		return nil, fmt.Errorf("start_time and end_time are required")
	}
	if err := validateRFC3339("start_time", startTime); err != nil {
		return nil, err
	}
	if err := validateRFC3339("end_time", endTime); err != nil {
		return nil, err
	}

	calendarID := argString(args, "calendar_id", "primary")
	request := &calendarapi.FreeBusyRequest{
		TimeMin: startTime,
		TimeMax: endTime,
		Items:   []*calendarapi.FreeBusyRequestItem{{Id: calendarID}},
	}

	response, err := withRetry(ctx, "calendar_get_availability", func() (*calendarapi.FreeBusyResponse, error) {
		return svc.Freebusy.Query(request).Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query availability: %w", err)
	}

	busy := make([]map[string]interface{}, 0)
	if cal, ok := response.Calendars[calendarID]; ok {
		for _, period := range cal.Busy {
			busy = append(busy, map[string]interface{}{
				"start": period.Start,
				"end":   period.End,
			})
		}
	}

	return &dispatcher.Result{Content: []interface{}{map[string]interface{}{
		"calendar_id": calendarID,
		"busy":        busy,
	}}}, nil
}

// eventSummary flattens an API event into the fields tools report back.
func eventSummary(ev *calendarapi.Event) map[string]interface{} {
	summary := map[string]interface{}{
		"id":      ev.Id,
		"summary": ev.Summary,
		"status":  ev.Status,
	}
	if ev.Start != nil {
		summary["start"] = ev.Start.DateTime
	}
	if ev.End != nil {
		summary["end"] = ev.End.DateTime
	}
	if ev.HtmlLink != "" {
		summary["link"] = ev.HtmlLink
	}
	return summary
}

func argString(args map[string]interface{}, key, fallback string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func argInt64(args map[string]interface{}, key string, fallback int64) int64 {
	switch v := args[key].(type) {
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	default:
		return fallback
	}
}

func validateRFC3339(name, value string) error {
	if _, err := time.Parse(time.RFC3339, value); err != nil {
		return fmt.Errorf("%s must be RFC3339: %w", name, err)
	}
	return nil
}
