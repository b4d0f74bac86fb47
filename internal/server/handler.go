package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/soar/padview/internal/hub"
	"github.com/soar/padview/internal/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local use
	},
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnf("WebSocket upgrade failed: %v", err)
		return
	}

	client := hub.NewClient(s.Hub, conn)
	s.Hub.Register(client)

	// Slot 0 until the client picks another
	s.Broadcaster.SendInitialFrame(client)

	go client.WritePump()
	go client.ReadPump(s.Snapshots, s.Broadcaster)
}

// apiError carries the HTTP status an API failure maps to.
type apiError struct {
	status int
	err    error
}

func (e *apiError) Error() string { return e.err.Error() }

func badRequest(err error) error { return &apiError{http.StatusBadRequest, err} }

func notFound(err error) error { return &apiError{http.StatusNotFound, err} }

func unavailable(err error) error { return &apiError{http.StatusServiceUnavailable, err} }

// reply writes {"result": ...} or {"error": ...}. Errors without a status
// are internal.
func reply(w http.ResponseWriter, result interface{}, err error) {
	status := http.StatusOK
	var body interface{} = struct {
		Result interface{} `json:"result"`
	}{result}

	if err != nil {
		status = http.StatusInternalServerError
		if e, ok := err.(*apiError); ok {
			status = e.status
		}
		body = struct {
			Error string `json:"error"`
		}{err.Error()}
	}

	buf, merr := json.Marshal(body)
	if merr != nil {
		logger.Errorf("Error marshalling a %v HTTP response body: %s", status, merr)
		status = http.StatusInternalServerError
		buf = []byte(`{"error":"internal error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf)
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest(err)
	}
	return nil
}
