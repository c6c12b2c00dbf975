package hostenv

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/loomworks/loom/pkg/fault"
	"github.com/loomworks/loom/pkg/ports"
)

// httpPort is the HTTP binding over net/http. Relative request URLs
// are resolved against the base URL declared in the step metadata.
type httpPort struct {
	client  *http.Client
	baseURL string
}

func (h *Host) newHTTP(baseURL string) ports.HTTP {
	return &httpPort{client: h.client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (p *httpPort) Do(ctx context.Context, req ports.Request) (ports.Response, error) {
	url := req.URL
	if p.baseURL != "" && !strings.Contains(url, "://") {
		if !strings.HasPrefix(url, "/") {
			url = "/" + url
		}
		url = p.baseURL + url
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	hreq, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return ports.Response{}, fault.Effect("invalid http request", err).WithPort("http").WithOp("do")
	}
	for k, v := range req.Header {
		hreq.Header.Set(k, v)
	}

	hres, err := p.client.Do(hreq)
	if err != nil {
		return ports.Response{}, fault.Effect("http request failed", err).WithPort("http").WithOp("do")
	}
	defer func() { _ = hres.Body.Close() }()

	data, err := io.ReadAll(hres.Body)
	if err != nil {
		return ports.Response{}, fault.Effect("http response read failed", err).WithPort("http").WithOp("do")
	}

	header := make(map[string]string, len(hres.Header))
	for k := range hres.Header {
		header[k] = hres.Header.Get(k)
	}
	return ports.Response{Status: hres.StatusCode, Header: header, Body: data}, nil
}
