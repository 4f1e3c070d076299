package admin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-kit/kit/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quorumlog/quorumd/utils/status"
)

// submitRequest is the JSON body for POST /submit: {"content": "<string>"}.
type submitRequest struct {
	Content string `json:"content"`
}

// StatusSource is anything that can render itself onto a StatusConsumer
// tree; paxos.Master implements this.
type StatusSource interface {
	Status(sc *status.StatusConsumer)
}

// Server wires the admin HTTP surface to a CmdBus and a status source.
type Server struct {
	logger log.Logger
	bus    *CmdBus
	status StatusSource
	mux    *http.ServeMux
}

// NewServer builds the admin mux: GET /, POST /submit, GET /query,
// GET /status, GET /metrics.
func NewServer(bus *CmdBus, statusSource StatusSource, logger log.Logger) *Server {
	s := &Server{logger: logger, bus: bus, status: statusSource, mux: http.NewServeMux()}
	s.mux.HandleFunc("/", s.handleHello)
	s.mux.HandleFunc("/submit", s.handleSubmit)
	s.mux.HandleFunc("/query", s.handleQuery)
	s.mux.HandleFunc("/status", s.handleStatus)
	s.mux.Handle("/metrics", promhttp.Handler())
	return s
}

// handleHello answers the root path with a fixed greeting.
func (s *Server) handleHello(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	fmt.Fprint(w, "Hello world!")
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleSubmit enqueues a Log command and replies "Log Send." on
// success.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	if ok := s.bus.Submit(Cmd{Kind: Log, Content: []byte(req.Content)}); !ok {
		s.logger.Log("msg", "submit rejected, bus shutting down")
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	fmt.Fprint(w, "Log Send.")
}

// handleQuery enqueues a Query command and blocks on its reply channel,
// returning the committed content or a 404.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	idStr := r.URL.Query().Get("id")
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		http.Error(w, "id must be a u64", http.StatusBadRequest)
		return
	}
	reply := make(chan QueryResult, 1)
	if ok := s.bus.Submit(Cmd{Kind: Query, ID: id, Reply: reply}); !ok {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	result := <-reply
	if result.Err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Write(result.Content)
}

// handleStatus renders the status tree as plain text.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sc := status.NewStatusConsumer()
	done := make(chan string, 1)
	go func() { done <- sc.Wait() }()
	s.status.Status(sc)
	sc.Join()
	fmt.Fprint(w, <-done)
}
