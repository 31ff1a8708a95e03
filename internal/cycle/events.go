package cycle

import "time"

// Event is a dated marker drawn alongside the decorated series
type Event struct {
	Name string    `json:"name"`
	Time time.Time `json:"time"`
}

// Halvings are the bitcoin block reward halvings
var Halvings = []Event{
	{Name: "1st Halving", Time: time.Date(2012, 11, 28, 0, 0, 0, 0, time.UTC)},
	{Name: "2nd Halving", Time: time.Date(2016, 7, 9, 0, 0, 0, 0, time.UTC)},
	{Name: "3rd Halving", Time: time.Date(2020, 5, 11, 0, 0, 0, 0, time.UTC)},
	{Name: "4th Halving", Time: time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC)},
}

// eventsBetween returns the events with start <= t <= end
func eventsBetween(events []Event, start, end time.Time) []Event {
	var out []Event
	for _, e := range events {
		if !e.Time.Before(start) && !e.Time.After(end) {
			out = append(out, e)
		}
	}
	return out
}
