// Package skyviewer integrates the external sky preview widget. The widget is
// best-effort: pointing it at a target is fire-and-forget and must never
// block or fail the surrounding submission flow, including when the widget
// was never initialized.
package skyviewer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stone-edge/queue_layer/pkg/logger"
)

// Viewer previews a sky target by name.
type Viewer interface {
	PointAt(ctx context.Context, target string)
}

// Nop is the uninitialized viewer. Every call is a no-op.
type Nop struct{}

func (Nop) PointAt(context.Context, string) {}

// HTTPViewer drives a remote viewer widget over HTTP.
type HTTPViewer struct {
	client   *http.Client
	endpoint *url.URL
	apiKey   string
	log      *logger.Logger
}

// NewHTTPViewer constructs a viewer for the given endpoint.
func NewHTTPViewer(client *http.Client, endpoint, apiKey string, log *logger.Logger) (*HTTPViewer, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("viewer endpoint required")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse viewer endpoint: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	if log == nil {
		log = logger.NewDefault("skyviewer")
	}
	return &HTTPViewer{
		client:   client,
		endpoint: parsed,
		apiKey:   strings.TrimSpace(apiKey),
		log:      log,
	}, nil
}

// PointAt asks the widget to center on target. Failures are logged and
// swallowed; the caller never waits on the widget.
func (v *HTTPViewer) PointAt(ctx context.Context, target string) {
	target = strings.TrimSpace(target)
	if target == "" {
		return
	}

	go func() {
		// Detach from the request lifetime so a completed submission does
		// not cancel an in-flight preview.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		body, _ := json.Marshal(map[string]string{"target": target})
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint.String(), strings.NewReader(string(body)))
		if err != nil {
			v.log.WithError(err).Warn("build viewer request")
			return
		}
		req.Header.Set("Content-Type", "application/json")
		if v.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+v.apiKey)
		}

		resp, err := v.client.Do(req)
		if err != nil {
			v.log.WithError(err).WithField("target", target).Warn("viewer unreachable")
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			v.log.WithField("target", target).Warnf("viewer returned status %d", resp.StatusCode)
		}
	}()
}
