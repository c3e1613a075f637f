// Package datetime implements the `datetime` global: wall-clock access
// and a handful of formatting/parsing helpers, entirely over stdlib
// `time`.
package datetime

import (
	"encoding/json"
	"time"

	"github.com/lune-org/lune/internal/core"
)

// Runtime is core.JSRuntime narrowed to what datetime needs.
type Runtime interface {
	core.JSRuntime
}

type components struct {
	Year        int   `json:"year"`
	Month       int   `json:"month"`
	Day         int   `json:"day"`
	Hour        int   `json:"hour"`
	Minute      int   `json:"minute"`
	Second      int   `json:"second"`
	Millisecond int   `json:"millisecond"`
	Weekday     int   `json:"weekday"`
	UnixSeconds int64 `json:"unixSeconds"`
}

func toComponents(t time.Time) components {
	return components{
		Year:        t.Year(),
		Month:       int(t.Month()),
		Day:         t.Day(),
		Hour:        t.Hour(),
		Minute:      t.Minute(),
		Second:      t.Second(),
		Millisecond: t.Nanosecond() / int(time.Millisecond),
		Weekday:     int(t.Weekday()),
		UnixSeconds: t.Unix(),
	}
}

// Register installs the datetime.* globals into rt.
func Register(rt Runtime) error {
	if err := rt.RegisterFunc("__datetime_now", func() (string, error) {
		b, err := json.Marshal(toComponents(time.Now().UTC()))
		return string(b), err
	}); err != nil {
		return err
	}

	if err := rt.RegisterFunc("__datetime_fromUnix", func(seconds int64) (string, error) {
		b, err := json.Marshal(toComponents(time.Unix(seconds, 0).UTC()))
		return string(b), err
	}); err != nil {
		return err
	}

	if err := rt.RegisterFunc("__datetime_fromIsoDate", func(iso string) (string, error) {
		t, err := time.Parse(time.RFC3339, iso)
		if err != nil {
			return "", err
		}
		b, err := json.Marshal(toComponents(t.UTC()))
		return string(b), err
	}); err != nil {
		return err
	}

	if err := rt.RegisterFunc("__datetime_format", func(seconds int64, layout string) (string, error) {
		goLayout := luauToGoLayout(layout)
		return time.Unix(seconds, 0).UTC().Format(goLayout), nil
	}); err != nil {
		return err
	}

	return rt.Eval(datetimeBootstrapJS)
}

// luauToGoLayout translates the tokens YYYY, MM, DD, HH, mm and ss into
// a Go reference-time layout.
// Unrecognized text passes through unchanged.
func luauToGoLayout(layout string) string {
	tokens := []struct{ from, to string }{
		{"YYYY", "2006"},
		{"MM", "01"},
		{"DD", "02"},
		{"HH", "15"},
		{"mm", "04"},
		{"ss", "05"},
	}
	out := layout
	for _, t := range tokens {
		out = replaceAll(out, t.from, t.to)
	}
	return out
}

func replaceAll(s, old, new string) string {
	if old == "" {
		return s
	}
	result := make([]byte, 0, len(s))
	for i := 0; i < len(s); {
		if i+len(old) <= len(s) && s[i:i+len(old)] == old {
			result = append(result, new...)
			i += len(old)
		} else {
			result = append(result, s[i])
			i++
		}
	}
	return string(result)
}

const datetimeBootstrapJS = `
(function() {
	globalThis.datetime = {
		now: function() { return JSON.parse(__datetime_now()); },
		fromUnixTimestamp: function(seconds) { return JSON.parse(__datetime_fromUnix(Math.floor(seconds))); },
		fromIsoDate: function(iso) { return JSON.parse(__datetime_fromIsoDate(iso)); },
		formatTime: function(seconds, layout) { return __datetime_format(Math.floor(seconds), layout); }
	};
})();
`
