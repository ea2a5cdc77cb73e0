package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/validation"

	"github.com/invisible-tech/autopilot-remediation/internal/types"
	"github.com/invisible-tech/autopilot-remediation/internal/version"
)

// Component is reported as the source of dispatched events.
const Component = "autopilot-remediation"

// Config for the HTTP automation client.
type Config struct {
	Endpoint  string
	APIKey    string
	Namespace string
	Timeout   time.Duration
}

// Client posts decisions to an automation endpoint as Kubernetes Event
// objects, so the receiver can replay them into a cluster unchanged.
type Client struct {
	endpoint   string
	apiKey     string
	namespace  string
	httpClient *http.Client
	log        *logrus.Logger
	now        func() time.Time
}

// NewClient creates a new automation client.
func NewClient(cfg Config, log *logrus.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Namespace == "" {
		cfg.Namespace = metav1.NamespaceDefault
	}
	return &Client{
		endpoint:  strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:    cfg.APIKey,
		namespace: cfg.Namespace,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		log: log,
		now: time.Now,
	}
}

// Dispatch implements Dispatcher.
func (c *Client) Dispatch(ctx context.Context, rec *types.EventRecord, d types.Decision) error {
	if !d.Actionable() {
		return nil
	}
	if c.endpoint == "" || c.apiKey == "" {
		return fmt.Errorf("dispatch client not configured")
	}
	ev := KubeEvent(rec, d, c.namespace, c.now())
	url := fmt.Sprintf("%s/api/v1/namespaces/%s/events", c.endpoint, c.namespace)
	return c.sendJSON(ctx, url, ev)
}

// KubeEvent renders a decision as a core/v1 Event about the affected service.
func KubeEvent(rec *types.EventRecord, d types.Decision, namespace string, now time.Time) *corev1.Event {
	evType := corev1.EventTypeNormal
	if d.Severity.Rank() >= types.SeverityHigh.Rank() {
		evType = corev1.EventTypeWarning
	}
	ts := metav1.NewTime(now)
	annotations := map[string]string{
		"remediation/event-id": fmt.Sprint(d.EventID),
		"remediation/status":   string(d.Status),
	}
	if rec != nil && rec.Region != "" {
		annotations["remediation/region"] = rec.Region
	}
	return &corev1.Event{
		TypeMeta: metav1.TypeMeta{Kind: "Event", APIVersion: "v1"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      eventName(d.ServiceName),
			Namespace: namespace,
			Labels: map[string]string{
				"remediation/action":   strings.ToLower(string(d.Action)),
				"remediation/severity": strings.ToLower(string(d.Severity)),
				"remediation/rule":     d.Rule,
			},
			Annotations: annotations,
		},
		InvolvedObject: corev1.ObjectReference{
			Kind:      "Service",
			Name:      d.ServiceName,
			Namespace: namespace,
		},
		Reason:              string(d.Action),
		Message:             d.Reason,
		Type:                evType,
		Source:              corev1.EventSource{Component: Component},
		FirstTimestamp:      ts,
		LastTimestamp:       ts,
		Count:               1,
		Action:              string(d.Action),
		ReportingController: Component,
	}
}

// eventName derives a DNS-1123 subdomain from the service name with a uuid
// suffix. Anything but lowercase alphanumerics becomes '-'.
func eventName(service string) string {
	suffix := "." + uuid.NewString()
	prefix := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, strings.ToLower(service))
	if limit := validation.DNS1123SubdomainMaxLength - len(suffix); len(prefix) > limit {
		prefix = prefix[:limit]
	}
	prefix = strings.Trim(prefix, "-")
	if prefix == "" {
		prefix = "service"
	}
	name := prefix + suffix
	if errs := validation.IsDNS1123Subdomain(name); len(errs) > 0 {
		return "service" + suffix
	}
	return name
}

func (c *Client) sendJSON(ctx context.Context, url string, payload interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	req.Header.Set("User-Agent", Component+"/"+version.Version)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	c.log.WithFields(logrus.Fields{
		"url":    url,
		"status": resp.StatusCode,
	}).Debug("Decision dispatched")
	return nil
}

// HealthCheck checks if the automation endpoint is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.endpoint == "" || c.apiKey == "" {
		return fmt.Errorf("dispatch client not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to check health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %d", resp.StatusCode)
	}
	return nil
}
