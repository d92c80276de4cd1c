package behavior

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/nvandessel/nudge/internal/models"
)

// traceRecord is one line of a route file.
type traceRecord struct {
	weekday  int
	hour     int
	minute   int
	location models.Location
	activity models.Activity
}

func (r traceRecord) before(weekday, hour, minute int) bool {
	if r.weekday != weekday {
		return r.weekday < weekday
	}
	if r.hour != hour {
		return r.hour < hour
	}
	return r.minute < minute
}

// Trace replays recorded weekly routes. A query returns the first record at
// or after the requested time of week. When time rewinds, or the current
// route runs out, the trace moves on to the next route.
type Trace struct {
	files  []string
	routes [][]traceRecord
	route  int
	cursor int
	last   int // minute of week of the previous query, -1 before the first

	missingActivity int
	missingLocation int
}

// LoadTrace reads tab-separated route files with the columns
// motion, location, second of week, weekday, hour, minute.
func LoadTrace(paths []string) (*Trace, error) {
	if len(paths) == 0 {
		return nil, &models.ConfigurationError{Detail: "trace behavior needs at least one route file"}
	}
	t := &Trace{files: append([]string(nil), paths...), last: -1}
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("opening route file: %w", err)
		}
		route, err := t.parse(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("route file %s: %w", p, err)
		}
		if len(route) == 0 {
			return nil, fmt.Errorf("route file %s has no records", p)
		}
		t.routes = append(t.routes, route)
	}
	return t, nil
}

func (t *Trace) parse(r io.Reader) ([]traceRecord, error) {
	var route []traceRecord
	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		fields := strings.Split(text, "\t")
		if len(fields) < 6 {
			return nil, fmt.Errorf("line %d: want 6 tab-separated fields, got %d", line, len(fields))
		}
		if fields[0] == "nan" {
			t.missingActivity++
		}
		if fields[1] == "nan" {
			t.missingLocation++
		}
		act, err := models.ParseActivity(fields[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		loc, err := models.ParseLocation(fields[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		var nums [3]int
		for i := range nums {
			nums[i], err = strconv.Atoi(strings.TrimSpace(fields[i+3]))
			if err != nil {
				return nil, fmt.Errorf("line %d: column %d: %w", line, i+4, err)
			}
		}
		route = append(route, traceRecord{weekday: nums[0], hour: nums[1], minute: nums[2], location: loc, activity: act})
	}
	return route, sc.Err()
}

// LocationActivity implements Behavior.
func (t *Trace) LocationActivity(hour, minute, weekday int) (models.Location, models.Activity, error) {
	now := (weekday*24+hour)*60 + minute
	if now < t.last {
		t.next()
	}
	t.last = now

	route := t.routes[t.route]
	for ; t.cursor < len(route); t.cursor++ {
		if !route[t.cursor].before(weekday, hour, minute) {
			r := route[t.cursor]
			return r.location, r.activity, nil
		}
	}
	t.next()
	r := t.routes[t.route][t.cursor]
	return r.location, r.activity, nil
}

func (t *Trace) next() {
	t.route = (t.route + 1) % len(t.routes)
	t.cursor = 0
}

func (t *Trace) seek(route, cursor, last int) error {
	if route < 0 || route >= len(t.routes) || cursor < 0 || cursor >= len(t.routes[route]) {
		return fmt.Errorf("trace cursor %d/%d out of range", route, cursor)
	}
	t.route, t.cursor, t.last = route, cursor, last
	return nil
}

// Snapshot implements Behavior.
func (t *Trace) Snapshot() (Snapshot, error) {
	return Snapshot{Kind: KindTrace, Files: append([]string(nil), t.files...), Route: t.route, Cursor: t.cursor, LastQuery: t.last}, nil
}

// Summary reports record counts and how many fields were missing.
func (t *Trace) Summary() (records, missingLocation, missingActivity int) {
	for _, r := range t.routes {
		records += len(r)
	}
	return records, t.missingLocation, t.missingActivity
}
