package server

import (
	"context"
	"io/fs"
	"net/http"
	"regexp"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"

	"github.com/soar/padview/internal/gamepad"
	"github.com/soar/padview/internal/hub"
	"github.com/soar/padview/internal/logger"
	"github.com/soar/padview/internal/mapping"
	"github.com/soar/padview/internal/render"
	"github.com/soar/padview/internal/skin"
	"github.com/soar/padview/internal/store"
)

// Scheduler runs fn on the frame loop goroutine.
type Scheduler interface {
	Do(ctx context.Context, fn func()) error
}

// Viewer is the part of the renderer the API drives. Its methods are only
// called through a Scheduler.
type Viewer interface {
	Reassign(fingerprint string)
	ReassignAll()
	SetFade(f *render.Fade)
	Status() [gamepad.Slots]render.Status
}

// SkinLister lists installed skins.
type SkinLister interface {
	List() ([]string, error)
}

// Deps are the components the server exposes.
type Deps struct {
	Hub         *hub.Hub
	Broadcaster *hub.Broadcaster
	// Snapshots receives browser snapshots; nil when browser input is off.
	Snapshots   gamepad.Sink
	Mappings    *mapping.Table
	Assignments *skin.Assignments
	Skins       SkinLister
	Renderer    Viewer
	Loop        Scheduler
	Settings    store.KV
	Frontend    fs.FS
}

type Server struct {
	Deps
	addr       string
	httpServer *http.Server
}

func New(d Deps, addr string) *Server {
	s := &Server{Deps: d, addr: addr}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/ws", s.handleWebSocket)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/mappings", s.listMappings).Methods(http.MethodGet)
	api.HandleFunc("/mappings/reset", s.resetMappings).Methods(http.MethodPost)
	api.HandleFunc("/mappings/{key}", s.getMapping).Methods(http.MethodGet)
	api.HandleFunc("/mappings/{key}", s.putMapping).Methods(http.MethodPut)
	api.HandleFunc("/mappings/{key}", s.deleteMapping).Methods(http.MethodDelete)
	api.HandleFunc("/skins", s.listSkins).Methods(http.MethodGet)
	api.HandleFunc("/skins/{fingerprint}", s.assignSkin).Methods(http.MethodPut)
	api.HandleFunc("/fade", s.getFade).Methods(http.MethodGet)
	api.HandleFunc("/fade", s.putFade).Methods(http.MethodPut)
	api.HandleFunc("/slots", s.listSlots).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.Handler())

	if s.Frontend != nil {
		m := minify.New()
		m.AddFunc("text/html", html.Minify)
		m.AddFunc("text/css", css.Minify)
		m.AddFuncRegexp(regexp.MustCompile("^(application|text)/(x-)?(java|ecma)script$"), js.Minify)
		r.PathPrefix("/").Handler(m.Middleware(http.FileServer(http.FS(s.Frontend))))
	}
	return r
}

func (s *Server) ListenAndServe() error {
	logger.Infof("HTTP server listening on %s", s.addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	logger.Infof("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}
