package powerops

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/client-go/kubernetes"

	"github.com/barepower/genpd/pkg/genpd"
)

// HTTPShutdownDomainOps is a genpd.DomainOps whose PowerOff posts to a
// remote shutdown-agent Pod's /shutdown endpoint; PowerOn is a no-op
// (software cannot power a domain back on once the node is truly off — that
// half of the pair belongs to WOLDomainOps). Grounded on
// pkg/power/shutdown_http.go.
type HTTPShutdownDomainOps struct {
	DryRun    bool
	Client    kubernetes.Interface
	NodeName  string
	Namespace string
	PodLabel  string
	Port      int
}

func (s *HTTPShutdownDomainOps) PowerOff(ctx context.Context, d *genpd.Domain) error {
	if s.DryRun {
		slog.Info("dry-run: would shut down via HTTP", "domain", d.Name)
		return nil
	}

	podIP, err := s.findShutdownPodIP(ctx)
	if err != nil {
		return err
	}
	return s.sendShutdownRequest(ctx, podIP, d.Name)
}

func (s *HTTPShutdownDomainOps) PowerOn(ctx context.Context, d *genpd.Domain) error {
	slog.Debug("power-on is a no-op for HTTPShutdownDomainOps; pair with WOLDomainOps", "domain", d.Name)
	return nil
}

func (s *HTTPShutdownDomainOps) findShutdownPodIP(ctx context.Context) (string, error) {
	pods, err := s.Client.CoreV1().Pods(s.Namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labels.Set(map[string]string{"app": s.PodLabel}).String(),
	})
	if err != nil {
		return "", fmt.Errorf("listing shutdown pods: %w", err)
	}
	for _, pod := range pods.Items {
		if pod.Spec.NodeName == s.NodeName {
			return pod.Status.PodIP, nil
		}
	}
	return "", fmt.Errorf("no shutdown pod found on node %s", s.NodeName)
}

func (s *HTTPShutdownDomainOps) sendShutdownRequest(ctx context.Context, podIP, domain string) error {
	url := fmt.Sprintf("http://%s:%d/shutdown", podIP, s.Port)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("creating shutdown request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling shutdown endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("shutdown request failed: %s", string(body))
	}

	slog.Info("shutdown request sent successfully", "domain", domain)
	return nil
}
