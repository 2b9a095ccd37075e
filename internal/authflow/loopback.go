// SPDX-License-Identifier: AGPL-3.0-only
package authflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// LoopbackWidget waits for the VK ID redirect on a local listener. It is the
// terminal counterpart of the browser widget: Await prints the authorize URL
// and returns the first callback that reaches the redirect path.
type LoopbackWidget struct {
	Out io.Writer

	addr string
	path string

	mu  sync.Mutex
	srv *http.Server
}

// NewLoopbackWidget listens on the host and path of redirectURL, which must
// point at this machine (e.g. http://127.0.0.1:8765/redirect).
func NewLoopbackWidget(redirectURL string, out io.Writer) (*LoopbackWidget, error) {
	u, err := url.Parse(redirectURL)
	if err != nil {
		return nil, fmt.Errorf("parse redirect url: %w", err)
	}
	if u.Host == "" {
		return nil, errors.New("redirect url has no host")
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	return &LoopbackWidget{Out: out, addr: u.Host, path: path}, nil
}

func (w *LoopbackWidget) Await(ctx context.Context, start Start) (Callback, error) {
	ln, err := net.Listen("tcp", w.addr)
	if err != nil {
		return Callback{}, fmt.Errorf("listen on %s: %w", w.addr, err)
	}

	results := make(chan Callback, 1)

	r := gin.New()
	r.GET(w.path, func(c *gin.Context) {
		var cb Callback
		_ = c.ShouldBindQuery(&cb)
		if errDesc := c.Query("error_description"); cb.Error != "" && errDesc != "" {
			cb.Error = cb.Error + ": " + errDesc
		}

		select {
		case results <- cb:
			c.String(http.StatusOK, "Авторизация получена, можно вернуться в терминал.")
		default:
			c.String(http.StatusConflict, "Авторизация уже обработана.")
		}
	})

	srv := &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second}
	w.mu.Lock()
	w.srv = srv
	w.mu.Unlock()

	go func() {
		_ = srv.Serve(ln)
	}()

	fmt.Fprintf(w.Out, "Откройте ссылку для входа через VK ID:\n%s\n", start.URL)

	select {
	case cb := <-results:
		return cb, nil
	case <-ctx.Done():
		return Callback{}, ctx.Err()
	}
}

func (w *LoopbackWidget) Dispose() error {
	w.mu.Lock()
	srv := w.srv
	w.srv = nil
	w.mu.Unlock()

	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
