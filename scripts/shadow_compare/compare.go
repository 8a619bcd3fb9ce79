package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	ics "github.com/arran4/golang-ical"
)

// eventKey identifies a feed event independent of DTSTAMP and line layout.
type eventKey struct {
	UID    string
	Start  string
	End    string
	Status string
}

func (k eventKey) String() string {
	return fmt.Sprintf("%s [%s, %s) %s", k.UID, k.Start, k.End, k.Status)
}

type bodyDiff struct {
	Match   bool
	Missing []eventKey
	Extra   []eventKey
}

func isCalendar(body []byte) bool {
	return bytes.HasPrefix(bytes.TrimSpace(body), []byte("BEGIN:VCALENDAR"))
}

// compareBodies compares calendars by event set and everything else as JSON.
// goBody is the candidate and legacyBody the reference.
func compareBodies(goBody, legacyBody []byte) (bodyDiff, error) {
	if isCalendar(goBody) || isCalendar(legacyBody) {
		return compareCalendars(goBody, legacyBody)
	}
	return bodyDiff{Match: jsonEqual(goBody, legacyBody)}, nil
}

func compareCalendars(goBody, legacyBody []byte) (bodyDiff, error) {
	goEvents, err := calendarEvents(goBody)
	if err != nil {
		return bodyDiff{}, fmt.Errorf("parse go calendar: %w", err)
	}
	legacyEvents, err := calendarEvents(legacyBody)
	if err != nil {
		return bodyDiff{}, fmt.Errorf("parse legacy calendar: %w", err)
	}

	var diff bodyDiff
	for key := range legacyEvents {
		if _, ok := goEvents[key]; !ok {
			diff.Missing = append(diff.Missing, key)
		}
	}
	for key := range goEvents {
		if _, ok := legacyEvents[key]; !ok {
			diff.Extra = append(diff.Extra, key)
		}
	}
	sortKeys(diff.Missing)
	sortKeys(diff.Extra)
	diff.Match = len(diff.Missing) == 0 && len(diff.Extra) == 0
	return diff, nil
}

func calendarEvents(body []byte) (map[eventKey]struct{}, error) {
	cal, err := ics.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	events := make(map[eventKey]struct{})
	for _, ev := range cal.Events() {
		events[eventKey{
			UID:    propertyValue(ev, ics.ComponentPropertyUniqueId),
			Start:  propertyValue(ev, ics.ComponentPropertyDtStart),
			End:    propertyValue(ev, ics.ComponentPropertyDtEnd),
			Status: strings.ToUpper(propertyValue(ev, ics.ComponentPropertyStatus)),
		}] = struct{}{}
	}
	return events, nil
}

func propertyValue(ev *ics.VEvent, prop ics.ComponentProperty) string {
	if p := ev.GetProperty(prop); p != nil {
		return strings.TrimSpace(p.Value)
	}
	return ""
}

func sortKeys(keys []eventKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
}

func jsonEqual(a, b []byte) bool {
	if bytes.Equal(bytes.TrimSpace(a), bytes.TrimSpace(b)) {
		return true
	}

	var aj, bj interface{}
	if err := json.Unmarshal(a, &aj); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &bj); err != nil {
		return false
	}
	normalize(&aj)
	normalize(&bj)
	return reflect.DeepEqual(aj, bj)
}

func normalize(v *interface{}) {
	switch val := (*v).(type) {
	case map[string]interface{}:
		for k, v2 := range val {
			normalize(&v2)
			val[k] = v2
		}
	case []interface{}:
		for i, v2 := range val {
			normalize(&v2)
			val[i] = v2
		}
	case float64:
		if val == float64(int64(val)) {
			*v = int64(val)
		}
	}
}
