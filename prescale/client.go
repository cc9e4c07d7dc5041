package prescale

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/http2"
)

// Client talks to a Service handler over cleartext HTTP/2.
type Client struct {
	base string
	hc   *http.Client
}

func NewClient(baseURL string) *Client {
	transport := &http2.Transport{
		AllowHTTP: true,
		DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, addr)
		},
	}
	return &Client{
		base: strings.TrimSuffix(baseURL, "/"),
		hc:   &http.Client{Transport: transport},
	}
}

// Put sends records, one per line, and returns the number of generations
// after ingesting them.
func (c *Client) Put(ctx context.Context, records ...string) (int, error) {
	body := strings.Join(records, "\n")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/prescale", strings.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "text/plain")
	return c.doInt(req)
}

func (c *Client) Get(ctx context.Context, ls uint32, module string) (uint32, error) {
	q := url.Values{}
	q.Set("ls", strconv.FormatUint(uint64(ls), 10))
	q.Set("module", module)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/prescale?"+q.Encode(), nil)
	if err != nil {
		return 0, err
	}
	v, err := c.doInt(req)
	return uint32(v), err
}

func (c *Client) Size(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/prescale/size", nil)
	if err != nil {
		return 0, err
	}
	return c.doInt(req)
}

func (c *Client) Show(ctx context.Context) (string, error) {
	return c.getText(ctx, "/prescale/show")
}

func (c *Client) Counters(ctx context.Context) (string, error) {
	return c.getText(ctx, "/prescale/counters")
}

func (c *Client) getText(ctx context.Context, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return "", err
	}
	return c.do(req)
}

func (c *Client) doInt(req *http.Request) (int, error) {
	text, err := c.do(req)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, fmt.Errorf("%s %s: invalid response %q", req.Method, req.URL.Path, text)
	}
	return v, nil
}

func (c *Client) do(req *http.Request) (string, error) {
	resp, err := c.hc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s %s: %s: %s", req.Method, req.URL.Path, resp.Status, strings.TrimSpace(string(data)))
	}
	return string(data), nil
}
