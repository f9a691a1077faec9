package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	stealth "github.com/anatolykoptev/go-stealth"
)

// ErrProbeInconclusive is returned for probe responses that are neither
// "content here" nor "redirected away".
var ErrProbeInconclusive = errors.New("short probe inconclusive")

// Prober answers whether a video id lives in the short-form namespace.
type Prober interface {
	Probe(ctx context.Context, videoID string) (bool, error)
}

// HTTPProber checks the short-form URL of a video with a HEAD request.
// The platform serves shorts directly at that URL and redirects every other
// video to the regular watch page, so redirects must stay unfollowed.
type HTTPProber struct {
	base   string
	client *http.Client
}

// NewHTTPProber builds a prober for base + videoID URLs.
// Timeouts come from the per-probe context.
func NewHTTPProber(base string, transport http.RoundTripper) *HTTPProber {
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return &HTTPProber{
		base: base,
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (p *HTTPProber) Probe(ctx context.Context, videoID string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.base+videoID, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("User-Agent", stealth.RandomUserAgent())
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := p.client.Do(req)
	if err != nil {
		return false, err
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		return false, nil
	default:
		return false, fmt.Errorf("%w: status %d", ErrProbeInconclusive, resp.StatusCode)
	}
}
