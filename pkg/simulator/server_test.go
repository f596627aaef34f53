package simulator

import (
	"github.com/stretchr/testify/require"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func doRequest(t *testing.T, method string, url string, body string) (int, string) {
	request, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	response, err := http.DefaultClient.Do(request)
	require.NoError(t, err)
	defer response.Body.Close()
	content, err := ioutil.ReadAll(response.Body)
	require.NoError(t, err)
	return response.StatusCode, string(content)
}

func TestServer_ErrorResponses(t *testing.T) {
	server := httptest.NewServer(NewServer(nil).Handler())
	defer server.Close()
	api := server.URL + "/api/v1"

	code, body := doRequest(t, http.MethodPost, api+"/scan", `{"parameters": {}}`)
	require.Equal(t, http.StatusBadRequest, code)
	require.JSONEq(t, `{"error": "scanner_id is required"}`, body)

	code, _ = doRequest(t, http.MethodPost, api+"/scan", `{not json`)
	require.Equal(t, http.StatusBadRequest, code)

	code, body = doRequest(t, http.MethodPost, api+"/scan/batch", `{"scanner_id": "ghost"}`)
	require.Equal(t, http.StatusNotFound, code)
	require.JSONEq(t, `{"error": "scanner ghost not found"}`, body)

	code, body = doRequest(t, http.MethodGet, api+"/jobs/nope", "")
	require.Equal(t, http.StatusNotFound, code)
	require.JSONEq(t, `{"error": "job not found"}`, body)

	code, _ = doRequest(t, http.MethodGet, api+"/files/scans/nothing.jpeg", "")
	require.Equal(t, http.StatusNotFound, code)

	code, body = doRequest(t, http.MethodGet, api+"/jobs", "")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"jobs": []}`, body)
}

func TestServer_JobAdvancesAndCancels(t *testing.T) {
	options := DefaultOptions()
	options.StepInterval = 50 * time.Millisecond
	server := NewServer(options)

	job, err := server.StartScan(&StartScan{ScannerID: "sim-flatbed"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		current, err := server.GetJob(job.ID)
		return err == nil && current.Progress > 0
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, server.CancelJob(job.ID))
	time.Sleep(4 * options.StepInterval)
	current, err := server.GetJob(job.ID)
	require.NoError(t, err)
	require.Equal(t, "cancelled", string(current.Status))
	require.Error(t, server.CancelJob(job.ID))
}
