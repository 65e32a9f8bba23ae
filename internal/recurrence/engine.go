package recurrence

import (
	"errors"
	"fmt"
	"time"
)

// Template describes a daily recurring-event configuration. TimeOfDay uses
// the 24-hour "HH:mm" form the API exchanges.
type Template struct {
	ID              string
	Title           string
	TimeOfDay       string
	DurationMinutes int
	Enabled         bool
}

// Occurrence represents a generated instance of a template. Occurrences are
// previews only; they are never persisted or turned into tasks.
type Occurrence struct {
	TemplateID string
	Title      string
	Start      time.Time
	End        time.Time
}

// Engine expands daily templates into occurrences within a bounded window.
type Engine struct {
	location *time.Location
}

// NewEngine constructs an Engine that places occurrences in the provided
// location. If loc is nil, UTC is used.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{location: loc}
}

// ErrInvalidWindow indicates the generation window is empty or reversed.
var ErrInvalidWindow = errors.New("recurrence: window end must not precede start")

// ErrInvalidTimeOfDay indicates the template's time of day is malformed.
var ErrInvalidTimeOfDay = errors.New("recurrence: time of day must be HH:mm")

// ErrInvalidDuration indicates the template duration is not positive.
var ErrInvalidDuration = errors.New("recurrence: duration must be positive")

// ParseTimeOfDay validates and splits an "HH:mm" value.
func ParseTimeOfDay(value string) (hour, minute int, err error) {
	if _, perr := time.Parse("15:04", value); perr != nil {
		return 0, 0, ErrInvalidTimeOfDay
	}
	if _, serr := fmt.Sscanf(value, "%d:%d", &hour, &minute); serr != nil {
		return 0, 0, ErrInvalidTimeOfDay
	}
	return hour, minute, nil
}

// GenerateOccurrences produces one occurrence per calendar day in the
// inclusive [from, to] date window for an enabled template. Disabled
// templates yield nothing.
func (e *Engine) GenerateOccurrences(template Template, from, to time.Time) ([]Occurrence, error) {
	loc := e.location
	if loc == nil {
		loc = time.UTC
	}

	if to.Before(from) {
		return nil, ErrInvalidWindow
	}
	if template.DurationMinutes <= 0 {
		return nil, ErrInvalidDuration
	}
	if !template.Enabled {
		return nil, nil
	}

	hour, minute, err := ParseTimeOfDay(template.TimeOfDay)
	if err != nil {
		return nil, err
	}

	from = from.In(loc)
	to = to.In(loc)
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc)
	last := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, loc)

	duration := time.Duration(template.DurationMinutes) * time.Minute
	occurrences := make([]Occurrence, 0)

	for !day.After(last) {
		start := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)
		occurrences = append(occurrences, Occurrence{
			TemplateID: template.ID,
			Title:      template.Title,
			Start:      start,
			End:        start.Add(duration),
		})
		day = day.AddDate(0, 0, 1)
	}

	if len(occurrences) == 0 {
		return nil, nil
	}
	return occurrences, nil
}
