package http

import (
	"crypto/tls"
	nethttp "net/http"
	"os"

	"golang.org/x/net/http2"

	"github.com/shopclip/shopclip-cli/internal/config"
)

// CreateUploadClient creates an HTTP client tuned for presigned video
// uploads, sharing the proxy configuration of the API client.
//
// Key differences from the API transport:
//   - No overall client timeout; each PUT attempt carries its own context
//     deadline sized for large bodies.
//   - Compression disabled (video containers are already compressed).
//   - HTTP/2 enabled by default but turned off when a proxy is active, since
//     proxies tend to break long-lived HTTP/2 streams mid-transfer.
func CreateUploadClient(cfg *config.Config) (*nethttp.Client, error) {
	baseClient, err := ConfigureHTTPClient(cfg)
	if err != nil {
		return nil, err
	}

	tr, ok := baseClient.Transport.(*nethttp.Transport)
	if !ok {
		// NTLM mode wraps the transport in a negotiator; leave it alone and
		// just clear the overall timeout so long uploads are not cut off.
		baseClient.Timeout = 0
		return baseClient, nil
	}

	tr.DisableCompression = true
	tr.ForceAttemptHTTP2 = true
	_ = http2.ConfigureTransport(tr)

	// Runtime toggle for HTTP/2, useful when a middlebox mishandles it.
	if os.Getenv("DISABLE_HTTP2") == "true" {
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
	}

	if proxyActive(cfg) && os.Getenv("FORCE_HTTP2") != "true" {
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
	}

	baseClient.Transport = tr
	baseClient.Timeout = 0
	return baseClient, nil
}

// proxyActive reports whether requests will go through a proxy. For "system"
// mode this means consulting the standard environment variables.
func proxyActive(cfg *config.Config) bool {
	if cfg == nil {
		return envProxySet()
	}
	switch cfg.ProxyMode {
	case "no-proxy", "":
		return false
	case "system":
		return envProxySet()
	default:
		return true
	}
}

func envProxySet() bool {
	return os.Getenv("HTTP_PROXY") != "" || os.Getenv("HTTPS_PROXY") != "" ||
		os.Getenv("http_proxy") != "" || os.Getenv("https_proxy") != ""
}
