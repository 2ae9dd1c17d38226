package probe

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"golang.org/x/sync/errgroup"

	"trade-ledger/internal/logger"
)

// Paths where the Client Portal gateway has been seen to answer an auth
// status request, across gateway versions.
var gatewayPaths = []string{
	"/",
	"/sso/Login",
	"/v1/api/iserver/auth/status",
	"/v1/portal/iserver/auth/status",
	"/iserver/auth/status",
	"/portal/iserver/auth/status",
	"/v1/api/one/user",
	"/api/v1/portal/iserver/auth/status",
	"/clientportal.gw/api/v1/portal/iserver/auth/status",
}

const previewLen = 100

type Options struct {
	Hosts   []string
	Ports   []int
	Timeout time.Duration
	// Concurrency bounds parallel dials during a port scan.
	Concurrency int
}

// Endpoint is the outcome of one HTTP(S) request.
type Endpoint struct {
	URL           string `json:"url"`
	Method        string `json:"method"`
	Status        int    `json:"status,omitempty"`
	Size          int    `json:"size"`
	Title         string `json:"title,omitempty"`
	Preview       string `json:"preview,omitempty"`
	LooksLikeIBKR bool   `json:"looks_like_ibkr"`
	Error         string `json:"error,omitempty"`
}

// Reachable reports whether the server answered with a status the gateway
// uses for live endpoints, including auth-required answers.
func (e Endpoint) Reachable() bool {
	switch e.Status {
	case http.StatusOK, http.StatusUnauthorized, http.StatusForbidden, http.StatusInternalServerError:
		return true
	}
	return false
}

type Prober struct {
	opts Options
}

func New(opts Options) *Prober {
	if opts.Timeout <= 0 {
		opts.Timeout = 500 * time.Millisecond
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 64
	}
	return &Prober{opts: opts}
}

// OpenPorts dials every port in [lo, hi] on host and returns the ones that
// accept a TCP connection, ascending.
func (p *Prober) OpenPorts(ctx context.Context, host string, lo, hi int) ([]int, error) {
	var (
		mu   sync.Mutex
		open []int
	)
	var g errgroup.Group
	g.SetLimit(p.opts.Concurrency)
	dialer := net.Dialer{Timeout: p.opts.Timeout}

	for port := lo; port <= hi; port++ {
		if ctx.Err() != nil {
			break
		}
		port := port
		g.Go(func() error {
			conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, fmt.Sprint(port)))
			if err != nil {
				return nil
			}
			conn.Close()
			mu.Lock()
			open = append(open, port)
			mu.Unlock()
			logger.Debug(ctx, "Port open", "host", host, "port", port)
			return nil
		})
	}
	_ = g.Wait()
	sort.Ints(open)
	return open, ctx.Err()
}

// CheckPort tries https and http against every configured host on port.
func (p *Prober) CheckPort(ctx context.Context, port int) []Endpoint {
	var out []Endpoint
	for _, host := range p.opts.Hosts {
		for _, scheme := range []string{"https", "http"} {
			if ctx.Err() != nil {
				return out
			}
			out = append(out, p.Fetch(http.MethodGet, fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(host, fmt.Sprint(port)))))
		}
	}
	return out
}

// CheckGateway requests each known gateway path under baseURL with GET and
// POST and keeps the reachable answers.
func (p *Prober) CheckGateway(ctx context.Context, baseURL string) []Endpoint {
	base := strings.TrimRight(baseURL, "/")
	var out []Endpoint
	for _, path := range gatewayPaths {
		for _, method := range []string{http.MethodGet, http.MethodPost} {
			if ctx.Err() != nil {
				return out
			}
			if ep := p.Fetch(method, base+path); ep.Reachable() {
				out = append(out, ep)
			}
		}
	}
	return out
}

// Fetch performs one request with certificate checks disabled, since the
// gateway runs with a self-signed certificate.
func (p *Prober) Fetch(method, url string) Endpoint {
	ep := Endpoint{URL: url, Method: method}

	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
	)
	c.SetRequestTimeout(p.opts.Timeout * 6)
	c.WithTransport(&http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
	})

	record := func(r *colly.Response) {
		ep.Status = r.StatusCode
		ep.Size = len(r.Body)
		ep.Title, ep.LooksLikeIBKR = Classify(r.Body)
		ep.Preview = preview(r.Body)
	}
	c.OnResponse(record)
	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			record(r)
			return
		}
		ep.Error = err.Error()
	})

	var err error
	if method == http.MethodPost {
		err = c.PostRaw(url, nil)
	} else {
		err = c.Visit(url)
	}
	if err != nil && ep.Status == 0 && ep.Error == "" {
		ep.Error = err.Error()
	}
	return ep
}

// Classify extracts the page title and decides whether the page belongs to
// an Interactive Brokers gateway.
func Classify(body []byte) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", false
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	text := strings.ToLower(title + " " + doc.Text())
	return title, strings.Contains(text, "interactive") || strings.Contains(text, "ibkr")
}

func preview(body []byte) string {
	s := strings.Join(strings.Fields(string(body)), " ")
	if len(s) > previewLen {
		s = s[:previewLen]
	}
	return s
}

// Report is the full result of a probe run.
type Report struct {
	OpenPorts map[string][]int `json:"open_ports,omitempty"`
	Endpoints []Endpoint       `json:"endpoints"`
	Gateway   []Endpoint       `json:"gateway"`
}

// Run checks the configured ports, optionally scans [lo, hi] on every host
// first, and probes gateway paths on every endpoint that looked alive.
func (p *Prober) Run(ctx context.Context, scan bool, lo, hi int) (*Report, error) {
	rep := &Report{Endpoints: []Endpoint{}, Gateway: []Endpoint{}}
	ports := append([]int(nil), p.opts.Ports...)

	if scan {
		rep.OpenPorts = map[string][]int{}
		for _, host := range p.opts.Hosts {
			open, err := p.OpenPorts(ctx, host, lo, hi)
			if err != nil {
				return rep, err
			}
			rep.OpenPorts[host] = open
			ports = append(ports, open...)
		}
	}

	seen := map[int]bool{}
	for _, port := range ports {
		if seen[port] {
			continue
		}
		seen[port] = true
		for _, ep := range p.CheckPort(ctx, port) {
			rep.Endpoints = append(rep.Endpoints, ep)
			if ep.Error == "" && ep.Status > 0 {
				rep.Gateway = append(rep.Gateway, p.CheckGateway(ctx, ep.URL)...)
			}
		}
	}
	return rep, ctx.Err()
}
