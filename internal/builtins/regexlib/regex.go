// Package regexlib implements the `regex` global over stdlib `regexp`.
// Luau's own pattern semantics differ enough from RE2 that this runtime
// exposes plain RE2-flavored regex rather than attempting a faithful
// Luau pattern translation.
package regexlib

import (
	"encoding/json"
	"regexp"
	"sync"

	"github.com/lune-org/lune/internal/core"
)

// Runtime is core.JSRuntime narrowed to what regex needs.
type Runtime interface {
	core.JSRuntime
}

var (
	compiledMu sync.Mutex
	compiled   = map[uint64]*regexp.Regexp{}
	nextHandle uint64
)

type matchResult struct {
	Found  bool     `json:"found"`
	Start  int      `json:"start"`
	End    int      `json:"end"`
	Groups []string `json:"groups"`
}

// Register installs the regex.* globals into rt.
func Register(rt Runtime) error {
	if err := rt.RegisterFunc("__regex_compile", func(pattern string) (uint64, error) {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return 0, err
		}
		compiledMu.Lock()
		nextHandle++
		handle := nextHandle
		compiled[handle] = re
		compiledMu.Unlock()
		return handle, nil
	}); err != nil {
		return err
	}

	if err := rt.RegisterFunc("__regex_find", func(handle uint64, input string) (string, error) {
		re := lookup(handle)
		if re == nil {
			return "", nil
		}
		loc := re.FindStringSubmatchIndex(input)
		if loc == nil {
			b, _ := json.Marshal(matchResult{Found: false})
			return string(b), nil
		}
		groups := make([]string, 0, len(loc)/2-1)
		for i := 2; i < len(loc); i += 2 {
			if loc[i] < 0 {
				groups = append(groups, "")
				continue
			}
			groups = append(groups, input[loc[i]:loc[i+1]])
		}
		b, err := json.Marshal(matchResult{Found: true, Start: loc[0], End: loc[1], Groups: groups})
		return string(b), err
	}); err != nil {
		return err
	}

	if err := rt.RegisterFunc("__regex_matches", func(handle uint64, input string) (string, error) {
		re := lookup(handle)
		if re == nil {
			return "[]", nil
		}
		all := re.FindAllStringSubmatchIndex(input, -1)
		results := make([]matchResult, 0, len(all))
		for _, loc := range all {
			groups := make([]string, 0, len(loc)/2-1)
			for i := 2; i < len(loc); i += 2 {
				if loc[i] < 0 {
					groups = append(groups, "")
					continue
				}
				groups = append(groups, input[loc[i]:loc[i+1]])
			}
			results = append(results, matchResult{Found: true, Start: loc[0], End: loc[1], Groups: groups})
		}
		b, err := json.Marshal(results)
		return string(b), err
	}); err != nil {
		return err
	}

	if err := rt.RegisterFunc("__regex_replace", func(handle uint64, input, replacement string) (string, error) {
		re := lookup(handle)
		if re == nil {
			return input, nil
		}
		return re.ReplaceAllString(input, replacement), nil
	}); err != nil {
		return err
	}

	if err := rt.RegisterFunc("__regex_split", func(handle uint64, input string) (string, error) {
		re := lookup(handle)
		if re == nil {
			b, _ := json.Marshal([]string{input})
			return string(b), nil
		}
		parts := re.Split(input, -1)
		b, err := json.Marshal(parts)
		return string(b), err
	}); err != nil {
		return err
	}

	return rt.Eval(regexBootstrapJS)
}

func lookup(handle uint64) *regexp.Regexp {
	compiledMu.Lock()
	defer compiledMu.Unlock()
	return compiled[handle]
}

const regexBootstrapJS = `
(function() {
	function Regex(pattern) {
		this._handle = __regex_compile(pattern);
	}
	Regex.prototype.find = function(input) { return JSON.parse(__regex_find(this._handle, input)); };
	Regex.prototype.matches = function(input) { return JSON.parse(__regex_matches(this._handle, input)); };
	Regex.prototype.replace = function(input, replacement) { return __regex_replace(this._handle, input, replacement); };
	Regex.prototype.split = function(input) { return JSON.parse(__regex_split(this._handle, input)); };

	globalThis.regex = function(pattern) { return new Regex(pattern); };
})();
`
