package powerops

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/client-go/kubernetes"

	"github.com/barepower/genpd/pkg/genpd"
)

// WOLDomainOps is a genpd.DomainOps whose PowerOn sends a Wake-on-LAN magic
// packet through a remote agent Pod and polls the backing Kubernetes node
// for readiness; PowerOff is a no-op (WOL has no software-triggered
// shutdown path — see HTTPShutdownDomainOps for that half of the pair).
// Grounded on pkg/power/wake_on_lan.go.
type WOLDomainOps struct {
	DryRun         bool
	Client         kubernetes.Interface
	NodeName       string
	MACAddr        string
	Namespace      string
	PodLabel       string
	Port           int
	BootTimeout    time.Duration
	BroadcastAddr  string
	MaxRetries     int
	PollInterval   time.Duration
}

func (w *WOLDomainOps) PowerOn(ctx context.Context, d *genpd.Domain) error {
	if w.MACAddr == "" {
		return fmt.Errorf("powerops: missing WOL MAC address for domain %s", d.Name)
	}

	if w.DryRun {
		slog.Debug("dry-run: would send WOL request", "domain", d.Name, "mac", w.MACAddr)
		return nil
	}

	ip, err := w.findAgentPodIP(ctx)
	if err != nil {
		return fmt.Errorf("finding WOL agent pod IP: %w", err)
	}

	maxRetries := w.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}
	pollInterval := w.PollInterval
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}

	for attempt := 1; attempt <= maxRetries; attempt++ {
		slog.Info("sending WOL magic packet", "domain", d.Name, "mac", w.MACAddr, "attempt", attempt)
		if err := w.sendWOLRequest(ctx, ip); err != nil {
			slog.Warn("WOL agent call failed", "domain", d.Name, "err", err, "attempt", attempt)
		}

		start := time.Now()
		for time.Since(start) < w.BootTimeout {
			ready, err := w.checkNodeReady(ctx)
			if err != nil {
				slog.Debug("waiting for node readiness", "domain", d.Name, "err", err)
			} else if ready {
				slog.Info("node became ready", "domain", d.Name)
				return nil
			}
			time.Sleep(pollInterval)
		}
		slog.Warn("node did not become ready after WOL attempt", "domain", d.Name, "attempt", attempt)
	}

	return fmt.Errorf("WOL failed: domain %s did not become ready after %d attempts", d.Name, maxRetries)
}

func (w *WOLDomainOps) PowerOff(ctx context.Context, d *genpd.Domain) error {
	slog.Debug("power-off is a no-op for WOLDomainOps; pair with HTTPShutdownDomainOps", "domain", d.Name)
	return nil
}

func (w *WOLDomainOps) sendWOLRequest(ctx context.Context, ip string) error {
	url := fmt.Sprintf("http://%s:%d/wake?mac=%s&broadcast=%s", ip, w.Port, w.MACAddr, w.BroadcastAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("creating WOL request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending WOL request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("WOL request failed: %s", string(body))
	}
	return nil
}

func (w *WOLDomainOps) checkNodeReady(ctx context.Context) (bool, error) {
	n, err := w.Client.CoreV1().Nodes().Get(ctx, w.NodeName, metav1.GetOptions{})
	if err != nil {
		return false, err
	}
	for _, cond := range n.Status.Conditions {
		if cond.Type == v1.NodeReady && cond.Status == v1.ConditionTrue {
			return true, nil
		}
	}
	return false, nil
}

func (w *WOLDomainOps) findAgentPodIP(ctx context.Context) (string, error) {
	pods, err := w.Client.CoreV1().Pods(w.Namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labels.Set(map[string]string{"app": w.PodLabel}).String(),
	})
	if err != nil {
		return "", fmt.Errorf("listing WOL agent pods: %w", err)
	}
	if len(pods.Items) == 0 {
		return "", fmt.Errorf("no WOL agent pod found in namespace %s with label %s", w.Namespace, w.PodLabel)
	}
	return pods.Items[0].Status.PodIP, nil
}
