// Package testutil provides shared helpers for PigeonMail tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BTreeMap/PigeonMail/internal/models"
	"github.com/BTreeMap/PigeonMail/internal/store"
)

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes an APIResponse and checks its status field.
func AssertJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus models.APIStatus) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}
	status, ok := response["status"].(string)
	if !ok {
		t.Errorf("response missing or invalid 'status' field: %v", response)
	} else if status != string(expectedStatus) {
		t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
	}
	return response
}

// CreateHTTPRequest creates an HTTP request with an optional JSON body.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody bytes.Buffer
	if body != nil {
		reqBody.Write(MustMarshalJSON(t, body))
	}
	req, err := http.NewRequest(method, url, &reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	return req
}

// SampleSubmission returns a complete submission; n varies the id, user and creation time.
func SampleSubmission(kind models.FlowKind, n int) models.Submission {
	return models.Submission{
		ID:          fmt.Sprintf("sub-%d", n),
		Kind:        kind,
		UserID:      fmt.Sprintf("%d", 1000+n),
		Handle:      fmt.Sprintf("user%d", n),
		Size:        models.SizeS,
		Name:        "Test User",
		FromCity:    "Berlin",
		ToCity:      "Lisbon",
		Date:        "2026-02-07",
		DateDisplay: "07.02.2026",
		CreatedAt:   time.Date(2026, 1, 1, 12, 0, n, 0, time.UTC),
	}
}

// SeedSubmissions adds count submissions of kind to st.
func SeedSubmissions(t *testing.T, st store.SubmissionStore, kind models.FlowKind, start, count int) {
	t.Helper()
	for i := start; i < start+count; i++ {
		if err := st.AddSubmission(context.Background(), SampleSubmission(kind, i)); err != nil {
			t.Fatalf("failed to seed submission %d: %v", i, err)
		}
	}
}

// MustMarshalJSON marshals an object to JSON and fails test on error.
func MustMarshalJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// MustUnmarshalJSON unmarshals JSON data into target and fails test on error.
func MustUnmarshalJSON(t *testing.T, data []byte, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}
}
