package testkit

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/shashiranjanraj/testserver/pkg/client"
)

// ─── Public API ───────────────────────────────────────────────────────────────

// Run executes a single scenario file against the server behind c.
func Run(t *testing.T, c *client.Client, scenarioPath string) {
	t.Helper()

	s, err := LoadScenario(scenarioPath)
	if err != nil {
		t.Fatalf("testkit: load scenario %q: %v", scenarioPath, err)
	}

	t.Run(s.Name, func(t *testing.T) {
		runScenario(t, c, s)
	})
}

// RunDir runs every scenario in dir, in file name order, as a subtest.
// Scenarios share the server, so later files can depend on earlier ones.
func RunDir(t *testing.T, c *client.Client, dir string) {
	t.Helper()

	scenarios, errs := LoadAllFromDir(dir)
	for _, err := range errs {
		t.Errorf("%v", err)
	}
	for _, s := range scenarios {
		s := s
		t.Run(s.Name, func(t *testing.T) {
			runScenario(t, c, s)
		})
	}
}

// ─── Internal execution ───────────────────────────────────────────────────────

func runScenario(t *testing.T, c *client.Client, s *Scenario) {
	t.Helper()

	var req *client.Request
	switch strings.ToUpper(s.RequestMethod) {
	case "GET":
		req = c.Get(s.RequestURL)
	case "POST":
		req = c.Post(s.RequestURL)
	case "PUT":
		req = c.Put(s.RequestURL)
	case "DELETE":
		req = c.Delete(s.RequestURL)
	default:
		t.Fatalf("[%s] unsupported method %q", s.Name, s.RequestMethod)
	}

	if p := s.RequestBodyPath(); p != "" {
		data, err := os.ReadFile(p)
		if err != nil {
			t.Fatalf("[%s] read request file %q: %v", s.Name, p, err)
		}
		req.Body(json.RawMessage(data))
	}
	for k, v := range s.Headers {
		req.Header(k, v)
	}
	if s.Master {
		req.Master()
	}

	resp, err := req.Send(context.Background())
	if err != nil {
		t.Fatalf("[%s] send: %v", s.Name, err)
	}

	AssertStatusCode(t, s, resp.StatusCode)

	if p := s.ResponseBodyPath(); p != "" {
		expected, err := os.ReadFile(p)
		if err != nil {
			t.Errorf("[%s] read response file %q: %v", s.Name, p, err)
			return
		}
		AssertJSONBody(t, s, expected, resp.Raw)
	}
}
