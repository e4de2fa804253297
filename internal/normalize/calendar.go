package normalize

import (
	"strings"
	"time"

	"portalbridge/internal/extract"
	"portalbridge/internal/timezone"
)

// CalendarEvent is the canonical calendar entity. End >= Start is enforced
// here because upstream does not guarantee it.
type CalendarEvent struct {
	Id           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	AllDay       bool      `json:"allDay"`
	Location     string    `json:"location,omitempty"`
	Type         string    `json:"type"`
	Participants []string  `json:"participants,omitempty"`
}

// CalendarConfig holds conventions observed from one specific portal
// release. Overridable because the upstream format drifts.
type CalendarConfig struct {
	// ExclusiveAllDayEnd corrects for the upstream convention that an
	// all-day event's end date is exclusive: subtract one day before
	// taking end-of-day.
	ExclusiveAllDayEnd bool
}

func DefaultCalendarConfig() CalendarConfig {
	return CalendarConfig{ExclusiveAllDayEnd: true}
}

// event type classification by case-insensitive substring over the title;
// the portal mixes English and Japanese freely.
var eventTypeKeywords = []struct {
	Type     string
	Keywords []string
}{
	{Type: "class", Keywords: []string{"class", "lesson", "lecture", "授業", "講義"}},
	{Type: "meeting", Keywords: []string{"meeting", "会議", "打ち合わせ", "面談"}},
	{Type: "exam", Keywords: []string{"exam", "test", "quiz", "試験", "テスト", "考査"}},
}

const defaultEventType = "event"

func classifyEventType(title string) string {
	lower := strings.ToLower(title)
	for _, entry := range eventTypeKeywords {
		for _, keyword := range entry.Keywords {
			if strings.Contains(lower, keyword) {
				return entry.Type
			}
		}
	}
	return defaultEventType
}

const dateOnlyLayout = "2006-01-02"

// parseEventInstant handles both upstream event shapes: a flat datetime
// string and a nested {dateTime|date} object. allDay reports a date-only
// value.
func parseEventInstant(v any) (t time.Time, allDay, ok bool) {
	switch val := v.(type) {
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(val), "/", "-")
		if t, err := time.ParseInLocation(dateOnlyLayout, s, timezone.Location); err == nil {
			return t, true, true
		}
		if t, ok := parseInstant(val); ok {
			return t, false, true
		}
	case map[string]any:
		if dt, present := val["dateTime"]; present {
			if t, ok := parseInstant(dt); ok {
				return t, false, true
			}
		}
		if d, present := val["date"].(string); present {
			s := strings.ReplaceAll(strings.TrimSpace(d), "/", "-")
			if t, err := time.ParseInLocation(dateOnlyLayout, s, timezone.Location); err == nil {
				return t, true, true
			}
		}
	}
	return time.Time{}, false, false
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}

var (
	eventStartAliases = []string{"start", "startDateTime", "startAt", "startDate"}
	eventEndAliases   = []string{"end", "endDateTime", "endAt", "endDate"}
)

func firstPresent(record extract.Record, aliases []string) (any, bool) {
	for _, alias := range aliases {
		if v, present := record[alias]; present {
			return v, true
		}
	}
	return nil, false
}

// EventFrom maps one recovered record onto the canonical event. ok is
// false when no start instant can be recovered at all.
func EventFrom(record extract.Record, position int, cfg CalendarConfig) (CalendarEvent, bool) {
	startRaw, present := firstPresent(record, eventStartAliases)
	if !present {
		return CalendarEvent{}, false
	}
	start, allDay, ok := parseEventInstant(startRaw)
	if !ok {
		return CalendarEvent{}, false
	}

	var end time.Time
	endValid := false
	if endRaw, present := firstPresent(record, eventEndAliases); present {
		if parsed, endAllDay, ok := parseEventInstant(endRaw); ok {
			end = parsed
			endValid = true
			allDay = allDay || endAllDay
		}
	}

	if allDay {
		// date-only events span whole days; the upstream end date is
		// exclusive, so pull it back a day before taking end-of-day
		if !endValid {
			end = start
		} else if cfg.ExclusiveAllDayEnd {
			end = end.AddDate(0, 0, -1)
		}
		if end.Before(start) {
			end = start
		}
		end = endOfDay(end)
	} else if !endValid || end.Before(start) {
		end = start.Add(time.Hour)
	}

	id, ok := stringField(record, "id", "eventId")
	if !ok {
		id = trimFloat(float64(position + 1))
	}
	title, _ := stringField(record, "title", "name", "summary")
	description, _ := stringField(record, "description", "content", "body")
	location, _ := stringField(record, "location", "place", "room")

	return CalendarEvent{
		Id:           id,
		Title:        title,
		Description:  description,
		Start:        start,
		End:          end,
		AllDay:       allDay,
		Location:     location,
		Type:         classifyEventType(title),
		Participants: stringSliceField(record, "participants", "attendees", "members"),
	}, true
}

// Events maps a recovered record set onto canonical events, dropping
// records with no recoverable start instant.
func Events(records []extract.Record, cfg CalendarConfig) []CalendarEvent {
	events := make([]CalendarEvent, 0, len(records))
	for i, record := range records {
		if event, ok := EventFrom(record, i, cfg); ok {
			events = append(events, event)
		}
	}
	return events
}
