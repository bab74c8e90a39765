package crawler

import (
	"context"
	"net"
	"time"

	"github.com/lysyi3m/moltdir/app/tasks"
)

// HostResolver is satisfied by *net.Resolver.
type HostResolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

type Resolver struct {
	resolver HostResolver
	timeout  time.Duration
}

func NewResolver(r HostResolver, timeout time.Duration) *Resolver {
	if r == nil {
		r = net.DefaultResolver
	}
	return &Resolver{resolver: r, timeout: timeout}
}

// Resolves reports whether the name has at least one address record.
func (r *Resolver) Resolves(ctx context.Context, host string) bool {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	addrs, err := r.resolver.LookupHost(ctx, host)
	return err == nil && len(addrs) > 0
}

type ResolveTask struct {
	tasks.Task
	resolver *Resolver
	Resolved bool
}

func NewResolveTask(host string, resolver *Resolver) *ResolveTask {
	return &ResolveTask{
		Task:     tasks.NewTask(tasks.TaskTypeResolveHost, host),
		resolver: resolver,
	}
}

func (t *ResolveTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	t.Resolved = t.resolver.Resolves(ctx, t.Target)
	return nil
}
