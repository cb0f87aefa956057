// Package server implements the live preview server: it serves the host
// document a view tree has been committed into and pushes reload
// notifications to connected browsers when templates change.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/viewtree/internal/dom"
	"github.com/conneroisu/viewtree/internal/logging"
	"github.com/conneroisu/viewtree/internal/view"
)

const reloadScript = `<script>
(function () {
  var ws = new WebSocket("ws://" + window.location.host + "/ws");
  ws.onmessage = function (event) {
    if (event.data === "reload") {
      window.location.reload();
    }
  };
})();
</script>`

// PreviewServer serves a composed view tree and broadcasts reloads.
type PreviewServer struct {
	mu       sync.Mutex
	root     *view.View
	document *dom.Document
	clients  map[*websocket.Conn]struct{}
	logger   logging.Logger
	httpSrv  *http.Server
}

// NewPreviewServer wraps an already-initialized root view and the host
// document it renders into.
func NewPreviewServer(root *view.View, document *dom.Document, logger logging.Logger) *PreviewServer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &PreviewServer{
		root:     root,
		document: document,
		clients:  make(map[*websocket.Conn]struct{}),
		logger:   logger.WithComponent("server"),
	}
}

// Handler returns the HTTP handler: "/" serves the current document with
// the reload script injected, "/ws" upgrades to the reload channel.
func (s *PreviewServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// ListenAndServe serves until ctx is canceled.
func (s *PreviewServer) ListenAndServe(ctx context.Context, addr string) error {
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.closeClients()
		return s.httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *PreviewServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	s.mu.Lock()
	markup, err := s.document.String()
	s.mu.Unlock()
	if err != nil {
		s.logger.Error(r.Context(), err, "serializing document")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, markup+reloadScript)
}

func (s *PreviewServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		s.logger.Warn(r.Context(), err, "websocket accept failed")
		return
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	// Hold the connection open; we only ever push.
	ctx := r.Context()
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			break
		}
	}

	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	conn.Close(websocket.StatusNormalClosure, "")
}

// OnTemplateChange re-renders the root view and notifies every connected
// client. Wired as the template watcher's change callback.
func (s *PreviewServer) OnTemplateChange(name string) {
	ctx := context.Background()
	s.logger.Info(ctx, "template changed, re-rendering", "template", name)

	s.mu.Lock()
	root := s.root
	s.mu.Unlock()

	root.ReRender(view.ReRenderOptions{Force: true}).Then(func(interface{}) {
		s.broadcast("reload")
	})
}

func (s *PreviewServer) broadcast(message string) {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, c := range conns {
		if err := c.Write(ctx, websocket.MessageText, []byte(message)); err != nil {
			s.logger.Warn(ctx, err, "dropping unresponsive reload client")
			s.mu.Lock()
			delete(s.clients, c)
			s.mu.Unlock()
		}
	}
}

func (s *PreviewServer) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		c.Close(websocket.StatusServiceRestart, "server shutting down")
	}
	s.clients = make(map[*websocket.Conn]struct{})
}

// ClientCount reports the number of connected reload clients.
func (s *PreviewServer) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}
