package net

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lune-org/lune/internal/bridge"
	"github.com/lune-org/lune/internal/core"
)

// Runtime is core.JSRuntime narrowed to what net needs.
type Runtime interface {
	core.JSRuntime
}

// awaitCoroutine settles the JS Promise registered by __threadAwait(id)
// (internal/vm/quickjs's thread bridge) — the same mechanism
// internal/builtins/task's task.wait uses, reimplemented locally so
// this package stays independent of any one VM backend.
type awaitCoroutine struct {
	rt Runtime
	id core.ThreadId
}

func (c awaitCoroutine) Resume(payload core.ResumePayload) {
	if payload.Err != nil {
		_ = c.rt.Eval(fmt.Sprintf("__threadReject(%d, %s)", uint64(c.id), jsonLiteral(payload.Err.Error())))
		return
	}
	valsJSON, err := json.Marshal([]any(payload.Vals))
	if err != nil {
		valsJSON = []byte("[]")
	}
	_ = c.rt.Eval(fmt.Sprintf("__threadResolve(%d, %s)", uint64(c.id), jsonLiteral(string(valsJSON))))
}

func jsonLiteral(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}

// Register installs the net.* globals into rt, routing net.request
// through br so the calling coroutine suspends instead of blocking the
// VM while the HTTP round trip runs.
func Register(rt Runtime, br *bridge.Bridge, exec Executor, spawnFuture func(func())) error {
	if err := rt.RegisterFunc("__net_requestStart", func(argsJSON string) (uint64, error) {
		id, err := br.Call(context.Background(),
			func(id core.ThreadId) bridge.Coroutine { return awaitCoroutine{rt: rt, id: id} },
			spawnFuture,
			func(ctx context.Context) (core.Values, error) { return doRequest(ctx, argsJSON) },
		)
		return uint64(id), err
	}); err != nil {
		return err
	}

	if err := rt.RegisterFunc("__net_urlEncode", func(s string) (string, error) {
		return urlQueryEscape(s), nil
	}); err != nil {
		return err
	}
	if err := rt.RegisterFunc("__net_urlDecode", func(s string) (string, error) {
		return urlQueryUnescape(s)
	}); err != nil {
		return err
	}

	if err := registerServe(rt, exec); err != nil {
		return err
	}
	if err := registerWebSocket(rt, exec); err != nil {
		return err
	}

	return rt.Eval(netBootstrapJS)
}

const netBootstrapJS = `
(function() {
	globalThis.net = globalThis.net || {};

	net.request = function(opts) {
		opts = opts || {};
		var argsJSON = JSON.stringify({
			url: opts.url || '',
			method: opts.method || 'GET',
			headers: opts.headers || {},
			body: opts.body || ''
		});
		var id = __net_requestStart(argsJSON);
		return __threadAwait(id);
	};

	net.urlEncode = function(s) { return __net_urlEncode(String(s)); };
	net.urlDecode = function(s) { return __net_urlDecode(String(s)); };

	var __netHandlers = {};

	net.serve = function(port, handler) {
		__netHandlers[port] = handler;
		__net_serve(':' + port);
		return {
			stop: function() {
				delete __netHandlers[port];
				return __net_stopServe(port);
			}
		};
	};

	globalThis.__net_dispatch = function(reqID, requestJSON) {
		var req = JSON.parse(requestJSON);
		var handler = __netHandlers[req.port];
		var response;
		try {
			var result = handler(req) || {};
			response = {
				status: result.status || 200,
				headers: result.headers || {},
				body: result.body === undefined ? '' : String(result.body)
			};
		} catch (e) {
			response = { status: 500, headers: {}, body: String(e) };
		}
		__net_serveRespond(reqID, JSON.stringify(response));
	};
})();
`
