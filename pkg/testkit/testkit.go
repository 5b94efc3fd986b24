package testkit

import (
	"context"
	"net"
	"testing"

	"github.com/shashiranjanraj/testserver/pkg/client"
	"github.com/shashiranjanraj/testserver/pkg/logger"
	"github.com/shashiranjanraj/testserver/pkg/runner"
)

// Start starts a runner for the duration of t. A zero Port is replaced by a
// free one and a nil Logger by a discarding one. Cleanup drops the database
// and then stops the runner; both errors are reported on t.
func Start(t testing.TB, opts runner.Options) *runner.Runner {
	t.Helper()

	if opts.Port == 0 {
		opts.Port = FreePort(t)
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}

	r, err := runner.Start(context.Background(), opts)
	if err != nil {
		t.Fatalf("testkit: start: %v", err)
	}

	t.Cleanup(func() {
		ctx := context.Background()
		if err := r.DropDatabase(ctx); err != nil {
			t.Errorf("testkit: drop database: %v", err)
		}
		if err := r.Stop(ctx); err != nil {
			t.Errorf("testkit: stop: %v", err)
		}
	})
	return r
}

// Client returns a client for r carrying r's keys.
func Client(r *runner.Runner, opts ...client.Option) *client.Client {
	return client.FromConfig(r.Config(), opts...)
}

// FreePort asks the kernel for an unused TCP port on the loopback interface.
// The port is released before returning, so another process may take it.
func FreePort(t testing.TB) int {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("testkit: free port: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}
