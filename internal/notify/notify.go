// Package notify announces approval resolutions on chat platforms.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Color constants for event severity.
const (
	ColorSuccess = "#36a64f"
	ColorInfo    = "#2196f3"
	ColorError   = "#e53935"
)

// Event is a resolved subject, ready for display.
type Event struct {
	Kind       string
	SubjectID  string
	Name       string
	Status     string
	Version    string
	Resolution string
	Actor      string
	Note       string
	At         time.Time
}

// Field is a key-value pair displayed alongside an event.
type Field struct {
	Name  string
	Value string
	Short bool
}

// Notifier delivers events to one destination.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Multi fans an event out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards events.
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }

// Title is the one-line headline for ev.
func Title(ev Event) string {
	name := ev.Name
	if name == "" {
		name = ev.SubjectID
	}
	return fmt.Sprintf("%s %q %s", kindLabel(ev.Kind), name, verb(ev))
}

// Color maps the resolution to a sidebar color.
func Color(ev Event) string {
	switch ev.Resolution {
	case "Approved":
		return ColorSuccess
	case "Rejected":
		return ColorError
	}
	return ColorInfo
}

// Fields lists the metadata shown under the headline.
func Fields(ev Event) []Field {
	fields := []Field{
		{Name: "Status", Value: ev.Status, Short: true},
		{Name: "Version", Value: ev.Version, Short: true},
	}
	if ev.Actor != "" {
		fields = append(fields, Field{Name: "By", Value: ev.Actor, Short: true})
	}
	return fields
}

func kindLabel(kind string) string {
	switch kind {
	case "opportunity":
		return "Opportunity"
	case "presale_plan":
		return "Presale plan"
	case "project":
		return "Project"
	}
	return kind
}

func verb(ev Event) string {
	switch ev.Resolution {
	case "Approved":
		return "approved"
	case "Rejected":
		return "rejected"
	}
	return "updated"
}
