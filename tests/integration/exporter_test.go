package integration

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/videosdk-community/usage-exporter/internal/api"
	"github.com/videosdk-community/usage-exporter/internal/testutil"
	"github.com/videosdk-community/usage-exporter/pkg/jobs"
	"github.com/videosdk-community/usage-exporter/pkg/videosdk"
)

// setupStack wires a mock upstream, the real client, runner, and API
// server into one end-to-end stack.
func setupStack(t *testing.T) (*httptest.Server, *testutil.MockVideoSDK) {
	t.Helper()

	mock := testutil.NewMockVideoSDK()
	t.Cleanup(mock.Close)

	client, err := videosdk.New(videosdk.Config{
		BaseURL:   mock.URL(),
		PerPage:   20,
		PageDelay: time.Millisecond,
		Timeout:   10 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	runner := jobs.NewRunner(jobs.NewRegistry(), client, t.TempDir())
	server := httptest.NewServer(api.NewServer(runner, client, t.TempDir()))
	t.Cleanup(server.Close)

	return server, mock
}

func getJSON(t *testing.T, url string, into any) int {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()

	if into != nil {
		if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
			t.Fatalf("Failed to decode response from %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestEndToEnd_ExportJob(t *testing.T) {
	server, mock := setupStack(t)

	mock.SetPages(
		[]map[string]any{
			testutil.NewSession("s1",
				testutil.NewParticipant("p1", "Alice", "2024-03-05T09:00:00Z", "2024-03-05T10:00:00Z"),
				testutil.NewParticipant("p2", "Bob", "2024-03-05T09:10:00Z", "2024-03-05T09:50:00Z"),
			),
		},
		[]map[string]any{
			testutil.NewSession("s2",
				testutil.NewParticipant("p3", "Carol"),
			),
		},
	)

	// Start the export job.
	resp, err := http.Post(server.URL+"/jobs/export?api_key=key&year=2024&month=3", "", nil)
	if err != nil {
		t.Fatalf("Failed to start export job: %v", err)
	}
	var started struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&started); err != nil {
		t.Fatalf("Failed to decode start response: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("start status = %d, want 202", resp.StatusCode)
	}

	// Poll until the job completes.
	statusURL := server.URL + "/jobs/export/" + started.JobID
	var status struct {
		Status   string `json:"status"`
		Progress int    `json:"progress"`
		Filename string `json:"filename"`
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		if code := getJSON(t, statusURL, &status); code != http.StatusOK {
			t.Fatalf("status code = %d, want 200", code)
		}
		if status.Status != "running" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("export job did not complete in time")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if status.Status != "completed" {
		t.Fatalf("job status = %s, want completed", status.Status)
	}
	if status.Progress != 100 {
		t.Errorf("progress = %d, want 100", status.Progress)
	}
	if status.Filename != "usage_2024_3.csv" {
		t.Errorf("filename = %q, want usage_2024_3.csv", status.Filename)
	}

	// Download and verify the CSV.
	dlResp, err := http.Get(statusURL + "/download")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	defer dlResp.Body.Close()
	if dlResp.StatusCode != http.StatusOK {
		t.Fatalf("download status = %d, want 200", dlResp.StatusCode)
	}
	if cd := dlResp.Header.Get("Content-Disposition"); !strings.Contains(cd, "usage_2024_3.csv") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	rows, err := csv.NewReader(dlResp.Body).ReadAll()
	if err != nil {
		t.Fatalf("Failed to parse CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2 sessions", len(rows))
	}

	header, s1, s2 := rows[0], rows[1], rows[2]
	// Auto-detected columns: two participant groups.
	if len(header) != 14 {
		t.Errorf("header has %d columns, want 14", len(header))
	}
	if s1[0] != "s1" || s2[0] != "s2" {
		t.Errorf("session order = %q, %q", s1[0], s2[0])
	}
	if s1[5] != "2" || s2[5] != "1" {
		t.Errorf("participant counts = %q, %q", s1[5], s2[5])
	}
	if s1[8] != "2024-03-05T09:00:00Z" {
		t.Errorf("participant1_first_start = %q", s1[8])
	}

	// The job is gone after delivery.
	if code := getJSON(t, statusURL, nil); code != http.StatusNotFound {
		t.Errorf("status after download = %d, want 404", code)
	}
}

func TestEndToEnd_UpstreamFailureSurfacesInJob(t *testing.T) {
	server, mock := setupStack(t)

	mock.SetPages(
		[]map[string]any{testutil.NewSession("s1")},
		[]map[string]any{testutil.NewSession("s2")},
	)
	mock.FailAt(2, 429, `{"error": "rate limited"}`)

	resp, err := http.Post(server.URL+"/jobs/fetch?api_key=key&year=2024&month=3", "", nil)
	if err != nil {
		t.Fatalf("Failed to start fetch job: %v", err)
	}
	var started struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&started); err != nil {
		t.Fatalf("Failed to decode start response: %v", err)
	}
	resp.Body.Close()

	statusURL := server.URL + "/jobs/fetch/" + started.JobID
	var status struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		if code := getJSON(t, statusURL, &status); code != http.StatusOK {
			t.Fatalf("status code = %d, want 200", code)
		}
		if status.Status != "running" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("fetch job did not finish in time")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if status.Status != "error" {
		t.Fatalf("job status = %s, want error", status.Status)
	}
	if !strings.Contains(status.Error, "429") || !strings.Contains(status.Error, "rate limited") {
		t.Errorf("job error = %q, want upstream status and body surfaced", status.Error)
	}
}
