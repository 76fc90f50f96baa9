package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"testing"
	"time"

	"scribe/internal/api"
	"scribe/internal/config"
	"scribe/internal/testsupport"
)

type uploadFile struct {
	name    string
	content []byte
}

type apiFixture struct {
	t       *testing.T
	cfg     *config.Config
	baseURL string
	token   string
	tr      *gatedTranscriber
}

func startAPI(t *testing.T, gated bool, opts ...testsupport.ConfigOption) *apiFixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	tr := &gatedTranscriber{}
	if gated {
		tr.gate = make(chan struct{})
		t.Cleanup(tr.release)
	}
	d := newDaemon(t, cfg, store, tr)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return &apiFixture{t: t, cfg: cfg, baseURL: "http://" + d.APIAddress(), token: cfg.Paths.APIToken, tr: tr}
}

func (f *apiFixture) do(req *http.Request) (int, []byte) {
	f.t.Helper()
	if f.token != "" && req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		f.t.Fatalf("%s %s: %v", req.Method, req.URL, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		f.t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, body
}

func (f *apiFixture) get(path string, out any) int {
	f.t.Helper()
	req, err := http.NewRequest(http.MethodGet, f.baseURL+path, nil)
	if err != nil {
		f.t.Fatalf("new request: %v", err)
	}
	code, body := f.do(req)
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			f.t.Fatalf("decode %s: %v (%s)", path, err, body)
		}
	}
	return code
}

func (f *apiFixture) upload(userID string, files ...uploadFile) (int, []byte) {
	f.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, file := range files {
		part, err := mw.CreateFormFile("files", file.name)
		if err != nil {
			f.t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(file.content); err != nil {
			f.t.Fatalf("write form file: %v", err)
		}
	}
	if userID != "" {
		if err := mw.WriteField("user_id", userID); err != nil {
			f.t.Fatalf("write field: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		f.t.Fatalf("close multipart: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, f.baseURL+"/transcribe", &buf)
	if err != nil {
		f.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return f.do(req)
}

func (f *apiFixture) enqueue(files ...uploadFile) api.EnqueueResponse {
	f.t.Helper()
	code, body := f.upload("", files...)
	if code != http.StatusOK {
		f.t.Fatalf("upload status %d: %s", code, body)
	}
	var resp api.EnqueueResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		f.t.Fatalf("decode upload response: %v", err)
	}
	return resp
}

func (f *apiFixture) waitForTask(id string, cond func(api.Task) bool) api.Task {
	f.t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		var task api.Task
		if code := f.get("/task/status/"+id, &task); code != http.StatusOK {
			f.t.Fatalf("task status code %d", code)
		}
		if cond(task) {
			return task
		}
		if time.Now().After(deadline) {
			f.t.Fatalf("timed out waiting on task %s (last %#v)", id, task)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestTranscribeEndToEnd(t *testing.T) {
	f := startAPI(t, false)

	code, body := f.upload("user-7",
		uploadFile{name: "one.wav", content: testsupport.MediaBytes(".wav", 64)},
		uploadFile{name: "two.mp3", content: testsupport.MediaBytes("two.mp3", 128)},
	)
	if code != http.StatusOK {
		t.Fatalf("upload status %d: %s", code, body)
	}
	var resp api.EnqueueResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "queued" || resp.FileCount != 2 || len(resp.Files) != 2 || resp.Files[0] != "one.wav" {
		t.Fatalf("unexpected enqueue response %#v", resp)
	}

	task := f.waitForTask(resp.TaskID, func(task api.Task) bool { return task.Status == "completed" })
	if task.UserID != "user-7" || task.Progress != 100 || task.Summary.Completed != 2 {
		t.Fatalf("unexpected task %#v", task)
	}

	var results api.TaskResults
	if code := f.get("/task/results/"+resp.TaskID, &results); code != http.StatusOK {
		t.Fatalf("results status %d", code)
	}
	if len(results.Results) != 2 || results.Results[1].Transcription == nil || results.Results[1].Transcription.Language != "en" {
		t.Fatalf("unexpected results %#v", results)
	}

	var fileResult api.FileResult
	if code := f.get("/task/results/"+resp.TaskID+"/file/1", &fileResult); code != http.StatusOK {
		t.Fatalf("file result status %d", code)
	}
	if fileResult.Filename != "two.mp3" || fileResult.Transcription.Text == "" {
		t.Fatalf("unexpected file result %#v", fileResult)
	}

	var completed api.CompletedResults
	if code := f.get("/task/results/"+resp.TaskID+"/completed", &completed); code != http.StatusOK {
		t.Fatalf("completed status %d", code)
	}
	if completed.CompletedCount != 2 || completed.TotalCount != 2 {
		t.Fatalf("unexpected completed %#v", completed)
	}

	var stats api.FileStatsResponse
	if code := f.get("/files/stats", &stats); code != http.StatusOK || stats.Counts["completed"] != 2 {
		t.Fatalf("unexpected stats %d %#v", code, stats)
	}
	var recent api.RecentFilesResponse
	if code := f.get("/files/recent?limit=1", &recent); code != http.StatusOK || len(recent.Files) != 1 {
		t.Fatalf("unexpected recent files %d %#v", code, recent)
	}
	if code := f.get("/files/recent?limit=abc", nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", code)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		entries, err := os.ReadDir(f.cfg.Paths.UploadDir)
		if err != nil {
			t.Fatalf("ReadDir: %v", err)
		}
		if len(entries) == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected uploads removed after processing, found %d", len(entries))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestInFlightResultsAreNotReady(t *testing.T) {
	f := startAPI(t, true)
	resp := f.enqueue(uploadFile{name: "slow.wav", content: testsupport.MediaBytes(".wav", 64)})

	f.waitForTask(resp.TaskID, func(task api.Task) bool {
		return task.Files[0].Status == "processing" && task.Files[0].Progress > 0
	})

	var fileResp api.FileResponse
	if code := f.get("/task/status/"+resp.TaskID+"/file/0", &fileResp); code != http.StatusOK {
		t.Fatalf("file status code %d", code)
	}
	if fileResp.File.Status != "processing" || fileResp.File.Progress >= 100 {
		t.Fatalf("unexpected in-flight file %#v", fileResp.File)
	}

	var notReady api.ErrorResponse
	if code := f.get("/task/results/"+resp.TaskID+"/file/0", &notReady); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
	if notReady.Error != api.CodeResultNotReady || notReady.CurrentStatus != "processing" || notReady.CurrentProgress == nil {
		t.Fatalf("unexpected error body %#v", notReady)
	}

	var incomplete api.ErrorResponse
	if code := f.get("/task/results/"+resp.TaskID, &incomplete); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
	if incomplete.Error != api.CodeTaskNotComplete || len(incomplete.IncompleteFiles) != 1 || incomplete.IncompleteFiles[0] != "slow.wav" {
		t.Fatalf("unexpected error body %#v", incomplete)
	}

	var info api.QueueInfo
	if code := f.get("/task/queue", &info); code != http.StatusOK {
		t.Fatalf("queue status %d", code)
	}
	if !info.IsProcessing || info.CurrentTask == nil || info.CurrentTask.TaskID != resp.TaskID {
		t.Fatalf("unexpected queue info %#v", info)
	}

	f.tr.release()
	f.waitForTask(resp.TaskID, func(task api.Task) bool { return task.Status == "completed" })
}

func TestNotFoundResponses(t *testing.T) {
	f := startAPI(t, false)
	resp := f.enqueue(uploadFile{name: "a.wav", content: testsupport.MediaBytes(".wav", 32)})

	var body api.ErrorResponse
	if code := f.get("/task/status/missing", &body); code != http.StatusNotFound || body.Error != api.CodeTaskNotFound {
		t.Fatalf("unexpected %d %#v", code, body)
	}
	if code := f.get("/task/results/missing", &body); code != http.StatusNotFound || body.Error != api.CodeTaskNotFound {
		t.Fatalf("unexpected %d %#v", code, body)
	}
	if code := f.get("/task/results/missing/completed", &body); code != http.StatusNotFound || body.Error != api.CodeTaskNotFound {
		t.Fatalf("unexpected %d %#v", code, body)
	}
	if code := f.get("/task/status/"+resp.TaskID+"/file/3", &body); code != http.StatusNotFound || body.Error != api.CodeFileNotFound {
		t.Fatalf("unexpected %d %#v", code, body)
	}
	if code := f.get("/task/results/"+resp.TaskID+"/file/-1", &body); code != http.StatusNotFound || body.Error != api.CodeFileNotFound {
		t.Fatalf("unexpected %d %#v", code, body)
	}
	if code := f.get("/task/status/"+resp.TaskID+"/file/x", &body); code != http.StatusBadRequest || body.Error != api.CodeInvalidRequest {
		t.Fatalf("unexpected %d %#v", code, body)
	}
}

func TestUploadValidation(t *testing.T) {
	f := startAPI(t, false, testsupport.WithMaxFiles(2))

	cases := []struct {
		name  string
		files []uploadFile
	}{
		{"no files", nil},
		{"bad extension", []uploadFile{{name: "notes.txt", content: testsupport.MediaBytes(".wav", 32)}}},
		{"dangerous name", []uploadFile{{name: "a:b.wav", content: testsupport.MediaBytes(".wav", 32)}}},
		{"empty file", []uploadFile{{name: "empty.wav", content: nil}}},
		{"executable", []uploadFile{{name: "evil.wav", content: append([]byte("MZ"), testsupport.MediaBytes(".wav", 32)...)}}},
		{"text content", []uploadFile{{name: "fake.mp3", content: []byte("just some plain text pretending to be audio")}}},
		{"too many", []uploadFile{
			{name: "1.wav", content: testsupport.MediaBytes(".wav", 32)},
			{name: "2.wav", content: testsupport.MediaBytes(".wav", 32)},
			{name: "3.wav", content: testsupport.MediaBytes(".wav", 32)},
		}},
		{"second file invalid", []uploadFile{
			{name: "good.wav", content: testsupport.MediaBytes(".wav", 32)},
			{name: "bad.exe", content: testsupport.MediaBytes(".wav", 32)},
		}},
	}
	for _, tc := range cases {
		code, body := f.upload("", tc.files...)
		if code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d (%s)", tc.name, code, body)
		}
		var errBody api.ErrorResponse
		if err := json.Unmarshal(body, &errBody); err != nil {
			t.Fatalf("%s: decode: %v", tc.name, err)
		}
		if errBody.Error != api.CodeInvalidUpload || errBody.Message == "" {
			t.Fatalf("%s: unexpected body %#v", tc.name, errBody)
		}
	}

	entries, err := os.ReadDir(f.cfg.Paths.UploadDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("rejected uploads must not leave files behind, found %d", len(entries))
	}

	var info api.QueueInfo
	if code := f.get("/task/queue", &info); code != http.StatusOK || info.QueueLength != 0 || info.IsProcessing {
		t.Fatalf("no task should have been queued: %d %#v", code, info)
	}
}

func TestBearerTokenRequired(t *testing.T) {
	f := startAPI(t, false, testsupport.WithAPIToken("s3cret"))

	req, _ := http.NewRequest(http.MethodGet, f.baseURL+"/task/queue", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	if code, _ := f.do(req); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", code)
	}

	if code := f.get("/task/queue", nil); code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", code)
	}

	f.token = ""
	if code := f.get("/task/queue", nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}
	if code := f.get("/health", nil); code != http.StatusOK {
		t.Fatalf("health should not require a token, got %d", code)
	}
}

func TestHealthReportsBackend(t *testing.T) {
	f := startAPI(t, false, testsupport.WithStubbedBinaries())

	var health api.HealthResponse
	if code := f.get("/health", &health); code != http.StatusOK {
		t.Fatalf("health status %d", code)
	}
	if health.Model != "tiny" || health.Device != "cpu" || health.APIVersion != "1.0.0" {
		t.Fatalf("unexpected health %#v", health)
	}
	if health.Status != "normal" {
		t.Fatalf("expected normal status with stubbed binaries, got %q (%#v)", health.Status, health)
	}
	if len(health.Dependencies) == 0 || len(health.Checks) == 0 {
		t.Fatalf("expected dependency and check reports, got %#v", health)
	}
	if health.QueueDB == "" {
		t.Fatal("expected queue db path")
	}
}
