package genpd

import (
	"context"
	"sync"

	"k8s.io/client-go/util/workqueue"
)

// DeferredQueue is the ordered worker pool backing deferred power-off work,
// the Go counterpart of the kernel's per-domain delayed_work queued by
// genpd_queue_power_off_work and drained by genpd_power_off_work_fn. Unlike
// the kernel's per-domain work item, one DeferredQueue is shared by an
// entire Registry — ordering between work items for different domains is
// not required ), only idempotent re-checking per domain,
// which powerOffLocked already provides.
type DeferredQueue struct {
	registry *Registry
	wq       workqueue.Interface
	wg       sync.WaitGroup
}

func newDeferredQueue(r *Registry, workers int) *DeferredQueue {
	if workers <= 0 {
		workers = 1
	}
	q := &DeferredQueue{
		registry: r,
		wq:       workqueue.NewNamed("genpd-poweroff"),
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.runWorker()
	}
	return q
}

func (q *DeferredQueue) runWorker() {
	defer q.wg.Done()
	for q.processNextItem() {
	}
}

func (q *DeferredQueue) processNextItem() bool {
	item, shutdown := q.wq.Get()
	if shutdown {
		return false
	}
	defer q.wq.Done(item)

	d, ok := item.(*Domain)
	if !ok || d == nil {
		return true
	}

	// genpd_power_off_work_fn re-checks every precondition under the
	// domain lock before doing anything: the domain may have gained a
	// device, a subdomain, or simply been powered back on between the
	// enqueue and this dequeue.
	ctx := context.Background()
	d.mu.Lock()
	_ = powerOffLocked(ctx, d, true)
	d.mu.Unlock()
	return true
}

func (q *DeferredQueue) enqueue(d *Domain) {
	q.wq.Add(d)
}

func (q *DeferredQueue) shutdown() {
	q.wq.ShutDown()
	q.wg.Wait()
}
