package earnings

import (
	"strings"
	"testing"
	"time"
)

const samplePage = `
<html><body>
<table>
  <tbody>
    <tr>
      <td>NVDA</td><td>NVIDIA Corporation</td><td>After Market Close</td><td>--</td>
    </tr>
    <tr>
      <td>kr</td><td>Kroger Co</td><td>Before Market Open</td><td>1.02</td>
    </tr>
    <tr>
      <td>XYZ</td><td>Placeholder Inc</td><td>TAS</td><td>--</td>
    </tr>
    <tr>
      <td></td><td>Broken Row</td>
    </tr>
  </tbody>
</table>
</body></html>`

func TestParseEvents(t *testing.T) {
	day := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)

	events, err := parseEvents(strings.NewReader(samplePage), day)
	if err != nil {
		t.Fatal(err)
	}

	if len(events) != 3 {
		t.Fatalf("events = %d, want 3 (empty-symbol row dropped)", len(events))
	}

	if events[0].Symbol != "NVDA" || events[0].Session != "amc" {
		t.Errorf("events[0] = %+v, want NVDA amc", events[0])
	}
	if events[1].Symbol != "KR" || events[1].Session != "bmo" {
		t.Errorf("events[1] = %+v, want KR (uppercased) bmo", events[1])
	}
	if events[2].Session != "" {
		t.Errorf("events[2].Session = %q, want blank for unknown timing", events[2].Session)
	}
	if !events[0].Date.Equal(day) {
		t.Errorf("Date = %v, want the page day", events[0].Date)
	}
}

func TestParseEvents_EmptyPage(t *testing.T) {
	events, err := parseEvents(strings.NewReader("<html><body></body></html>"), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Errorf("events = %v, want none", events)
	}
}
