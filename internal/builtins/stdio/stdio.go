// Package stdio implements the `stdio` global: writing to stdout/stderr,
// reading a line from stdin, and tty detection for deciding whether to
// emit ANSI color, using `github.com/mattn/go-isatty` for the
// `stdio.color`/`stdio.style` escape-sequence gating.
package stdio

import (
	"bufio"
	"fmt"
	"os"

	"github.com/lune-org/lune/internal/core"
	"github.com/mattn/go-isatty"
)

// Runtime is core.JSRuntime narrowed to what stdio needs.
type Runtime interface {
	core.JSRuntime
}

var stdinReader = bufio.NewReader(os.Stdin)

// Register installs the stdio.* globals into rt.
func Register(rt Runtime) error {
	if err := rt.RegisterFunc("__stdio_write", func(s string) {
		fmt.Fprint(os.Stdout, s)
	}); err != nil {
		return err
	}

	if err := rt.RegisterFunc("__stdio_ewrite", func(s string) {
		fmt.Fprint(os.Stderr, s)
	}); err != nil {
		return err
	}

	if err := rt.RegisterFunc("__stdio_readLine", func() (string, error) {
		line, err := stdinReader.ReadString('\n')
		if err != nil && line == "" {
			return "", err
		}
		return trimNewline(line), nil
	}); err != nil {
		return err
	}

	if err := rt.RegisterFunc("__stdio_isTTY", func(stream string) (int, error) {
		var f *os.File
		switch stream {
		case "stdout":
			f = os.Stdout
		case "stderr":
			f = os.Stderr
		default:
			f = os.Stdin
		}
		return boolToInt(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())), nil
	}); err != nil {
		return err
	}

	return rt.Eval(stdioBootstrapJS)
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

const stdioBootstrapJS = `
(function() {
	var ANSI_RESET = '\x1b[0m';
	var COLORS = { black: 30, red: 31, green: 32, yellow: 33, blue: 34, magenta: 35, cyan: 36, white: 37 };
	var STYLES = { bold: 1, dim: 2, italic: 3, underline: 4 };

	globalThis.stdio = {
		write: function(s) { __stdio_write(String(s)); },
		ewrite: function(s) { __stdio_ewrite(String(s)); },
		readLine: function() { return __stdio_readLine(); },
		isTTY: function(stream) { return !!__stdio_isTTY(stream || 'stdout'); },
		color: function(name) {
			if (!stdio.isTTY('stdout')) return '';
			var code = COLORS[name];
			return code === undefined ? '' : '\x1b[' + code + 'm';
		},
		style: function(name) {
			if (!stdio.isTTY('stdout')) return '';
			var code = STYLES[name];
			return code === undefined ? '' : '\x1b[' + code + 'm';
		},
		reset: function() { return stdio.isTTY('stdout') ? ANSI_RESET : ''; },
		format: function() {
			var parts = [];
			for (var i = 0; i < arguments.length; i++) {
				var v = arguments[i];
				parts.push(typeof v === 'string' ? v : JSON.stringify(v));
			}
			return parts.join(' ');
		}
	};
})();
`
