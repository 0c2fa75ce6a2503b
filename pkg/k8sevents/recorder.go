// Package k8sevents adapts genpd.Observer to Kubernetes Events, generalizing
// a context.AutoscalingContext.Recorder field (a bare
// record.EventRecorder threaded through scale up/down) into a concrete
// Observer implementation the engine can install on every domain.
package k8sevents

import (
	"fmt"

	v1 "k8s.io/api/core/v1"
	"k8s.io/client-go/kubernetes"
	typedcorev1 "k8s.io/client-go/kubernetes/typed/core/v1"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/tools/record"
	"k8s.io/klog/v2"

	"github.com/barepower/genpd/pkg/genpd"
)

// Recorder is a genpd.Observer that emits a Kubernetes Event for every power
// transition. Each domain is reported against the Node it anchors (the
// physical machine the domain ultimately powers), resolved through
// NodeForDomain; a domain with no known Node still gets an Event, recorded
// against a synthetic reference naming the domain itself.
type Recorder struct {
	EventRecorder record.EventRecorder

	// NodeForDomain resolves a domain name to the Kubernetes Node name it
	// powers, when one exists. May be nil, in which case every domain is
	// reported against a synthetic reference.
	NodeForDomain func(domain string) (nodeName string, ok bool)
}

// NewRecorder builds a Recorder backed by client's Events sink, the Go
// counterpart of a never-built Recorder wiring in
// context.AutoscalingKubeClients — this repository is the first place that
// construction is actually performed.
func NewRecorder(client kubernetes.Interface, component string) *Recorder {
	broadcaster := record.NewBroadcaster()
	broadcaster.StartLogging(klog.Infof)
	broadcaster.StartRecordingToSink(&typedcorev1.EventSinkImpl{
		Interface: client.CoreV1().Events(""),
	})
	rec := broadcaster.NewRecorder(scheme.Scheme, v1.EventSource{Component: component})
	return &Recorder{EventRecorder: rec}
}

func (r *Recorder) ref(domain string) *v1.ObjectReference {
	if r.NodeForDomain != nil {
		if node, ok := r.NodeForDomain(domain); ok {
			return &v1.ObjectReference{Kind: "Node", Name: node}
		}
	}
	return &v1.ObjectReference{Kind: "PowerDomain", Name: domain, Namespace: "genpd"}
}

// OnPowerOn records a Normal PowerOn event on success, a Warning PowerOnFailed
// event otherwise.
func (r *Recorder) OnPowerOn(d *genpd.Domain, err error) {
	ref := r.ref(d.Name)
	if err != nil {
		r.EventRecorder.Event(ref, v1.EventTypeWarning, "PowerOnFailed", fmt.Sprintf("domain %s: %v", d.Name, err))
		return
	}
	r.EventRecorder.Event(ref, v1.EventTypeNormal, "PowerOn", fmt.Sprintf("domain %s powered on", d.Name))
}

// OnPowerOff records a Normal PowerOff event on success, a Warning
// PowerOffFailed event otherwise.
func (r *Recorder) OnPowerOff(d *genpd.Domain, err error) {
	ref := r.ref(d.Name)
	if err != nil {
		r.EventRecorder.Event(ref, v1.EventTypeWarning, "PowerOffFailed", fmt.Sprintf("domain %s: %v", d.Name, err))
		return
	}
	r.EventRecorder.Event(ref, v1.EventTypeNormal, "PowerOff", fmt.Sprintf("domain %s powered off", d.Name))
}
