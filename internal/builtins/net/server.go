package net

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
)

// Executor is the subset of *executor.Executor net.serve needs: a way
// to hand a request to the VM's own goroutine and wait for its result,
// since the HTTP server's handler goroutines must never touch the
// script engine directly. An open net.serve call supplies the handler
// and each request is marshaled onto the VM's own task lane before
// script code ever sees it.
type Executor interface {
	SpawnLocal(f func())
}

type serveRequest struct {
	Port    int               `json:"port"`
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
}

type serveResponse struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
}

var (
	serversMu sync.Mutex
	servers   = map[int]*http.Server{}
)

// registerServe installs __net_serve/__net_stopServe, and the Go side
// of each live listener's request handoff.
func registerServe(rt Runtime, exec Executor) error {
	if err := rt.RegisterFunc("__net_serve", func(addr string) (int, error) {
		go func() {
			if err := Serve(rt, exec, addr); err != nil && err != http.ErrServerClosed {
				// The listener goroutine has no script coroutine to report
				// back to; a bind failure surfaces as the server simply
				// never answering requests.
				_ = err
			}
		}()
		return 1, nil
	}); err != nil {
		return err
	}

	if err := rt.RegisterFunc("__net_serveRespond", func(reqID uint64, statusJSON string) (int, error) {
		// Filled in by the per-listener dispatch closure below via a
		// package-level response table, keyed the same way requests are.
		respondCh, ok := takeResponder(reqID)
		if !ok {
			return 0, nil
		}
		var resp serveResponse
		if err := json.Unmarshal([]byte(statusJSON), &resp); err != nil {
			return 0, err
		}
		respondCh <- resp
		return 1, nil
	}); err != nil {
		return err
	}

	if err := rt.RegisterFunc("__net_stopServe", func(port int) (int, error) {
		serversMu.Lock()
		srv, ok := servers[port]
		delete(servers, port)
		serversMu.Unlock()
		if !ok {
			return 0, nil
		}
		if err := srv.Close(); err != nil {
			return 0, err
		}
		return 1, nil
	}); err != nil {
		return err
	}
	return nil
}

var (
	respondersMu sync.Mutex
	responders   = map[uint64]chan serveResponse{}
	nextReqID    uint64
)

func takeResponder(id uint64) (chan serveResponse, bool) {
	respondersMu.Lock()
	defer respondersMu.Unlock()
	ch, ok := responders[id]
	delete(responders, id)
	return ch, ok
}

// Serve starts an HTTP server on addr. Each request is handed to exec's
// VM-owned task lane as a `__net_dispatch(reqID, requestJSON)` call;
// __net_dispatch hands the script handler's return value to
// `__net_serveRespond(reqID, responseJSON)`, which resolves the Go-side
// channel this handler blocks on.
func Serve(rt Runtime, exec Executor, addr string) error {
	port := portFromAddr(addr)
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(io.LimitReader(r.Body, 10*1024*1024))
		headers := make(map[string]string, len(r.Header))
		for k := range r.Header {
			headers[k] = r.Header.Get(k)
		}
		req := serveRequest{Port: port, Method: r.Method, Path: r.URL.Path, Headers: headers, Body: string(body)}
		reqJSON, err := json.Marshal(req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		respondersMu.Lock()
		nextReqID++
		id := nextReqID
		ch := make(chan serveResponse, 1)
		responders[id] = ch
		respondersMu.Unlock()

		exec.SpawnLocal(func() {
			_ = rt.Eval(fmt.Sprintf("__net_dispatch(%d, %s)", id, jsonLiteral(string(reqJSON))))
		})

		resp := <-ch
		for k, v := range resp.Headers {
			w.Header().Set(k, v)
		}
		if resp.Status == 0 {
			resp.Status = http.StatusOK
		}
		w.WriteHeader(resp.Status)
		_, _ = w.Write([]byte(resp.Body))
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	serversMu.Lock()
	servers[portFromAddr(addr)] = srv
	serversMu.Unlock()

	return srv.ListenAndServe()
}

func portFromAddr(addr string) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0
	}
	return port
}
