package net

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// MaxWSMessageBytes bounds a single inbound WebSocket frame.
const MaxWSMessageBytes = 64 * 1024

type wsConn struct {
	conn   *websocket.Conn
	cancel context.CancelFunc
	mu     sync.Mutex
	closed bool
}

var (
	wsMu     sync.Mutex
	wsConns  = map[uint64]*wsConn{}
	nextWsID uint64
)

// registerWebSocket wires net.connect(url) — a thin client-only bridge
// over github.com/coder/websocket, proxying a script-initiated
// connection to a remote server back to script. Inbound frames are
// delivered through exec's VM-owned task lane the same way net.serve
// delivers requests, so script code is never called off the VM's own
// goroutine.
func registerWebSocket(rt Runtime, exec Executor) error {
	if err := rt.RegisterFunc("__ws_connect", func(url string) (uint64, error) {
		ctx, cancel := context.WithCancel(context.Background())
		conn, _, err := websocket.Dial(ctx, url, nil)
		if err != nil {
			cancel()
			return 0, err
		}
		conn.SetReadLimit(MaxWSMessageBytes)

		wsMu.Lock()
		nextWsID++
		id := nextWsID
		c := &wsConn{conn: conn, cancel: cancel}
		wsConns[id] = c
		wsMu.Unlock()

		go pumpWebSocket(rt, exec, ctx, id, c)
		return id, nil
	}); err != nil {
		return err
	}

	if err := rt.RegisterFunc("__ws_send", func(id uint64, data string, binary bool) (int, error) {
		c := lookupWs(id)
		if c == nil {
			return 0, nil
		}
		typ := websocket.MessageText
		if binary {
			typ = websocket.MessageBinary
		}
		writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.conn.Write(writeCtx, typ, []byte(data)); err != nil {
			return 0, err
		}
		return 1, nil
	}); err != nil {
		return err
	}

	if err := rt.RegisterFunc("__ws_close", func(id uint64, code int, reason string) (int, error) {
		c := lookupWs(id)
		if c == nil {
			return 0, nil
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			return 1, nil
		}
		c.closed = true
		c.cancel()
		if err := c.conn.Close(websocket.StatusCode(code), reason); err != nil {
			return 0, err
		}
		return 1, nil
	}); err != nil {
		return err
	}

	return rt.Eval(webSocketBootstrapJS)
}

func lookupWs(id uint64) *wsConn {
	wsMu.Lock()
	defer wsMu.Unlock()
	return wsConns[id]
}

func forgetWs(id uint64) {
	wsMu.Lock()
	delete(wsConns, id)
	wsMu.Unlock()
}

// pumpWebSocket relays inbound frames and the eventual close into script
// by dispatching `__ws_dispatch(id, event)` on the VM's task lane.
func pumpWebSocket(rt Runtime, exec Executor, ctx context.Context, id uint64, c *wsConn) {
	defer forgetWs(id)
	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			exec.SpawnLocal(func() {
				_ = rt.Eval(fmt.Sprintf("__ws_dispatch(%d, %s)", id, jsonLiteral(`{"type":"close"}`)))
			})
			return
		}
		evt := map[string]any{"type": "message", "data": string(data), "binary": typ == websocket.MessageBinary}
		evtJSON, merr := json.Marshal(evt)
		if merr != nil {
			continue
		}
		exec.SpawnLocal(func() {
			_ = rt.Eval(fmt.Sprintf("__ws_dispatch(%d, %s)", id, jsonLiteral(string(evtJSON))))
		})
	}
}

const webSocketBootstrapJS = `
(function() {
	var __wsListeners = {};

	globalThis.__ws_dispatch = function(id, eventJSON) {
		var evt = JSON.parse(eventJSON);
		var listeners = __wsListeners[id];
		if (!listeners) return;
		if (evt.type === 'close') {
			delete __wsListeners[id];
		}
		var handler = listeners[evt.type];
		if (typeof handler === 'function') handler(evt);
	};

	function Socket(id) {
		this._id = id;
		__wsListeners[id] = {};
	}
	Socket.prototype.onMessage = function(fn) { __wsListeners[this._id].message = fn; return this; };
	Socket.prototype.onClose = function(fn) { __wsListeners[this._id].close = fn; return this; };
	Socket.prototype.send = function(data) { __ws_send(this._id, String(data), false); };
	Socket.prototype.close = function(code, reason) { __ws_close(this._id, code || 1000, reason || ''); };

	net.connect = function(url) {
		var id = __ws_connect(url);
		return new Socket(id);
	};
})();
`
