package admin

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-kit/kit/log"

	"github.com/quorumlog/quorumd/logbackend"
	"github.com/quorumlog/quorumd/utils/status"
)

type fakeStatusSource struct{}

func (fakeStatusSource) Status(sc *status.StatusConsumer) {
	sc.Emit("fake-component")
}

func TestHelloRoot(t *testing.T) {
	bus, _ := NewCmdBus()
	srv := NewServer(bus, fakeStatusSource{}, log.NewNopLogger())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK || w.Body.String() != "Hello world!" {
		t.Fatalf("status=%d body=%q", w.Code, w.Body.String())
	}
}

func TestHelloRootRejectsUnknownPath(t *testing.T) {
	bus, _ := NewCmdBus()
	srv := NewServer(bus, fakeStatusSource{}, log.NewNopLogger())

	req := httptest.NewRequest(http.MethodGet, "/nonexistent", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestSubmitEnqueuesLogCmd(t *testing.T) {
	bus, head := NewCmdBus()
	_ = head
	srv := NewServer(bus, fakeStatusSource{}, log.NewNopLogger())

	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(`{"content":"hello"}`))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %q", w.Code, w.Body.String())
	}
	if w.Body.String() != "Log Send." {
		t.Fatalf("body = %q", w.Body.String())
	}

	cmd, ok, terminate := bus.Drain(head)
	if !ok || terminate {
		t.Fatalf("expected a queued cmd, got ok=%v terminate=%v", ok, terminate)
	}
	if cmd.Kind != Log || string(cmd.Content) != "hello" {
		t.Fatalf("unexpected cmd: %+v", cmd)
	}
}

func TestSubmitRejectsMalformedBody(t *testing.T) {
	bus, _ := NewCmdBus()
	srv := NewServer(bus, fakeStatusSource{}, log.NewNopLogger())

	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(`not json`))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestQueryRoundTrip(t *testing.T) {
	bus, head := NewCmdBus()
	srv := NewServer(bus, fakeStatusSource{}, log.NewNopLogger())

	resultCh := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		req := httptest.NewRequest(http.MethodGet, "/query?id=1", nil)
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)
		resultCh <- w
	}()

	cmd, ok, terminate := bus.Drain(head)
	for !ok && !terminate {
		cmd, ok, terminate = bus.Drain(head)
	}
	if cmd.Kind != Query || cmd.ID != 1 {
		t.Fatalf("unexpected cmd: %+v", cmd)
	}
	cmd.Reply <- QueryResult{Content: []byte("hello")}

	w := <-resultCh
	if w.Code != http.StatusOK || w.Body.String() != "hello" {
		t.Fatalf("status=%d body=%q", w.Code, w.Body.String())
	}
}

func TestQueryNotFound(t *testing.T) {
	bus, head := NewCmdBus()
	srv := NewServer(bus, fakeStatusSource{}, log.NewNopLogger())

	resultCh := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		req := httptest.NewRequest(http.MethodGet, "/query?id=99", nil)
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)
		resultCh <- w
	}()

	cmd, ok, terminate := bus.Drain(head)
	for !ok && !terminate {
		cmd, ok, terminate = bus.Drain(head)
	}
	cmd.Reply <- QueryResult{Err: logbackend.ErrNotFound}

	w := <-resultCh
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestQueryRejectsNonNumericID(t *testing.T) {
	bus, _ := NewCmdBus()
	srv := NewServer(bus, fakeStatusSource{}, log.NewNopLogger())

	req := httptest.NewRequest(http.MethodGet, "/query?id=abc", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestStatusEndpointRendersTree(t *testing.T) {
	bus, _ := NewCmdBus()
	srv := NewServer(bus, fakeStatusSource{}, log.NewNopLogger())

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "fake-component") {
		t.Fatalf("status=%d body=%q", w.Code, w.Body.String())
	}
}

func TestCmdBusShutdownDrain(t *testing.T) {
	bus, head := NewCmdBus()
	bus.Shutdown()
	_, ok, terminate := bus.Drain(head)
	if ok || !terminate {
		t.Fatalf("expected terminate after shutdown, got ok=%v terminate=%v", ok, terminate)
	}
}
