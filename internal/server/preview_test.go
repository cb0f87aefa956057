package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/viewtree/internal/dom"
	"github.com/conneroisu/viewtree/internal/view"
)

func testTree(t *testing.T) (*view.View, *dom.Document) {
	t.Helper()
	doc := dom.MustParse(`<html><head></head><body><p>hello</p></body></html>`)
	root := view.New(view.Options{view.OptFullSelector: "body"})
	require.NoError(t, root.Init(&view.Deps{Document: doc}))
	return root, doc
}

func TestHandlerServesDocumentWithReloadScript(t *testing.T) {
	root, doc := testTree(t)
	srv := NewPreviewServer(root, doc, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<p>hello</p>")
	assert.Contains(t, body, "new WebSocket", "reload script is injected")
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
}

func TestHandlerRejectsUnknownPaths(t *testing.T) {
	root, doc := testTree(t)
	srv := NewPreviewServer(root, doc, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOnTemplateChangeBroadcastsReload(t *testing.T) {
	root, doc := testTree(t)
	srv := NewPreviewServer(root, doc, nil)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return srv.ClientCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	srv.OnTemplateChange("page")

	kind, msg, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageText, kind)
	assert.Equal(t, "reload", string(msg))
}

func TestClientCountTracksConnections(t *testing.T) {
	root, doc := testTree(t)
	srv := NewPreviewServer(root, doc, nil)
	assert.Equal(t, 0, srv.ClientCount())

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return srv.ClientCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	conn.Close(websocket.StatusNormalClosure, "")
	require.Eventually(t, func() bool { return srv.ClientCount() == 0 },
		2*time.Second, 10*time.Millisecond)
}

func TestListenAndServeStopsOnContextCancel(t *testing.T) {
	root, doc := testTree(t)
	srv := NewPreviewServer(root, doc, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(ctx, "127.0.0.1:0")
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
