package testkit

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertStatusCode checks the response code with testify.
func AssertStatusCode(t testing.TB, scenario *Scenario, got int) {
	t.Helper()
	assert.Equal(t, scenario.ExpectedCode, got,
		"[%s] HTTP status code mismatch", scenario.Name)
}

// AssertJSONBody deep-compares actual response bytes against the expected
// file contents after normalising both through JSON unmarshal, so key order
// and whitespace never matter. IgnoreFields are dropped from both sides.
func AssertJSONBody(t testing.TB, scenario *Scenario, expected, actual []byte) {
	t.Helper()
	if len(expected) == 0 {
		return
	}

	var expVal, actVal interface{}

	require.NoError(t,
		json.Unmarshal(expected, &expVal),
		"[%s] expected response file is not valid JSON", scenario.Name,
	)

	if !assert.NoError(t,
		json.Unmarshal(actual, &actVal),
		"[%s] actual response is not valid JSON\nbody: %s", scenario.Name, string(actual),
	) {
		return
	}

	stripFields(expVal, scenario.IgnoreFields)
	stripFields(actVal, scenario.IgnoreFields)

	assert.Equal(t, expVal, actVal,
		"[%s] response body mismatch", scenario.Name)
}

// stripFields removes fields from v when it is an object, and from every
// object under a top-level "results" array.
func stripFields(v interface{}, fields []string) {
	m, ok := v.(map[string]interface{})
	if !ok || len(fields) == 0 {
		return
	}
	for _, f := range fields {
		delete(m, f)
	}
	if results, ok := m["results"].([]interface{}); ok {
		for _, r := range results {
			stripFields(r, fields)
		}
	}
}
