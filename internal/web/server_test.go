package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"patchplan/internal/config"
	"patchplan/internal/panel"
	"patchplan/internal/security"
	"patchplan/internal/storage"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  60 * time.Second,
		},
		Storage: config.StorageConfig{Path: ":memory:"},
		Upload: config.UploadConfig{
			MaxFileSizeMB:     10,
			AllowedExtensions: []string{"csv", "xlsx", "xls"},
		},
		Rate: config.RateLimitConfig{
			Enabled:           false,
			RequestsPerMinute: 100,
			UploadAttempts:    10,
			UploadWindow:      time.Minute,
		},
		Logging: config.LoggingConfig{Level: "error", Format: "text"},
	}
}

// newTestServer builds a server backed by an in-memory store.
// uploadAttempts controls the shared upload limiter.
func newTestServer(t *testing.T, uploadAttempts int) *Server {
	t.Helper()

	kv, err := storage.OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { kv.Close() })

	store := panel.NewStore(context.Background(), kv)
	uploads := security.NewRateLimiter(uploadAttempts, time.Minute)
	return NewServer(testConfig(), store, uploads)
}

func doRequest(t *testing.T, s *Server, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func multipartFile(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	fw.Write([]byte(content))
	w.Close()
	return &buf, w.FormDataContentType()
}

const linksCSV = `Start Rack,Start U Height,Start Port,End Rack,End U Height,End Port
RK01,10,A1,RK02,20,B1
RK03,5,C2,RK04,8,D3
`

func TestHealth(t *testing.T) {
	s := newTestServer(t, 10)

	rec := doRequest(t, s, http.MethodGet, "/api/health", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want %q", body["status"], "ok")
	}
}

func TestSecurityHeaders(t *testing.T) {
	s := newTestServer(t, 10)

	rec := doRequest(t, s, http.MethodGet, "/api/health", nil, "")
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
}

func TestUploadLinks(t *testing.T) {
	s := newTestServer(t, 10)

	body, ct := multipartFile(t, "file", "links.csv", linksCSV)
	rec := doRequest(t, s, http.MethodPost, "/api/links/upload", body, ct)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", rec.Code, rec.Body.String())
	}

	var resp uploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Count != 2 {
		t.Fatalf("Count = %d, want 2", resp.Count)
	}
	if resp.Links[0].ID != "link-1" || resp.Links[0].StartRack != "RK01" {
		t.Errorf("first link = %+v", resp.Links[0])
	}
	if resp.Links[1].EndUHeight != 8 {
		t.Errorf("EndUHeight = %d, want 8", resp.Links[1].EndUHeight)
	}
}

func TestUploadLinksNoFile(t *testing.T) {
	s := newTestServer(t, 10)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	w.WriteField("other", "value")
	w.Close()

	rec := doRequest(t, s, http.MethodPost, "/api/links/upload", &buf, w.FormDataContentType())
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Code != "FILE003" {
		t.Errorf("Code = %q, want FILE003", resp.Code)
	}
}

func TestUploadLinksBadExtension(t *testing.T) {
	s := newTestServer(t, 10)

	body, ct := multipartFile(t, "file", "links.pdf", linksCSV)
	rec := doRequest(t, s, http.MethodPost, "/api/links/upload", body, ct)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400; body = %s", rec.Code, rec.Body.String())
	}

	var resp ErrorResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Code != "FILE002" {
		t.Errorf("Code = %q, want FILE002", resp.Code)
	}
}

func TestUploadLinksMissingColumns(t *testing.T) {
	s := newTestServer(t, 10)

	body, ct := multipartFile(t, "file", "links.csv", "Start Rack,Start Port\nRK01,A1\n")
	rec := doRequest(t, s, http.MethodPost, "/api/links/upload", body, ct)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	var resp ErrorResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Code != "ING001" {
		t.Errorf("Code = %q, want ING001; error = %q", resp.Code, resp.Error)
	}
}

func TestUploadLinksTooLarge(t *testing.T) {
	kv, err := storage.OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { kv.Close() })

	cfg := testConfig()
	cfg.Upload.MaxFileSizeMB = 1

	store := panel.NewStore(context.Background(), kv)
	s := NewServer(cfg, store, security.NewRateLimiter(10, time.Minute))

	big := strings.Repeat("RK01,10,A1,RK02,20,B1\n", 70000) // well past 1MB
	body, ct := multipartFile(t, "file", "links.csv", linksCSV+big)
	rec := doRequest(t, s, http.MethodPost, "/api/links/upload", body, ct)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}

	var resp ErrorResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Code != "FILE001" {
		t.Errorf("Code = %q, want FILE001", resp.Code)
	}
}

func TestUploadLinksRateLimited(t *testing.T) {
	s := newTestServer(t, 1)

	body, ct := multipartFile(t, "file", "links.csv", linksCSV)
	rec := doRequest(t, s, http.MethodPost, "/api/links/upload", body, ct)
	if rec.Code != http.StatusOK {
		t.Fatalf("first upload status = %d, want 200", rec.Code)
	}

	body, ct = multipartFile(t, "file", "links.csv", linksCSV)
	rec = doRequest(t, s, http.MethodPost, "/api/links/upload", body, ct)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second upload status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header not set")
	}

	var resp ErrorResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Code != "RATE001" {
		t.Errorf("Code = %q, want RATE001", resp.Code)
	}
}

func TestListConfigurations(t *testing.T) {
	s := newTestServer(t, 10)

	rec := doRequest(t, s, http.MethodGet, "/api/configurations", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var cfgs []panel.Configuration
	if err := json.Unmarshal(rec.Body.Bytes(), &cfgs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(cfgs) == 0 {
		t.Fatal("no configurations returned, want bundled defaults")
	}
	for _, c := range cfgs {
		if !c.IsDefault {
			t.Errorf("configuration %s is not a default", c.ID)
		}
	}

	rec = doRequest(t, s, http.MethodGet, "/api/configurations/user", nil, "")
	var users []panel.Configuration
	json.Unmarshal(rec.Body.Bytes(), &users)
	if len(users) != 0 {
		t.Errorf("user configurations = %d, want 0", len(users))
	}
}

func TestSaveAndGetConfiguration(t *testing.T) {
	s := newTestServer(t, 10)

	cfg := panel.NewConfiguration("Row 4 East")
	cfg.Panels[0].Trays[0].Cards[0].Ports = 99 // out of range, should clamp

	payload, _ := json.Marshal(cfg)
	rec := doRequest(t, s, http.MethodPost, "/api/configurations", bytes.NewBuffer(payload), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("save status = %d, want 200; body = %s", rec.Code, rec.Body.String())
	}

	var saved panel.Configuration
	if err := json.Unmarshal(rec.Body.Bytes(), &saved); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if saved.ID == "" {
		t.Fatal("saved configuration has no id")
	}
	if got := saved.Panels[0].Trays[0].Cards[0].Ports; got != panel.MaxPorts {
		t.Errorf("Ports = %d, want clamped to %d", got, panel.MaxPorts)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/configurations/"+saved.ID, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", rec.Code)
	}

	var got panel.Configuration
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Name != "Row 4 East" {
		t.Errorf("Name = %q, want %q", got.Name, "Row 4 East")
	}
}

func TestSaveConfigurationRejectsInvalid(t *testing.T) {
	s := newTestServer(t, 10)

	tests := []struct {
		name     string
		mutate   func(*panel.Configuration)
		wantCode string
	}{
		{
			name:     "empty name",
			mutate:   func(c *panel.Configuration) { c.Name = "" },
			wantCode: "VAL001",
		},
		{
			name:     "no panels",
			mutate:   func(c *panel.Configuration) { c.Panels = nil },
			wantCode: "VAL002",
		},
		{
			name: "too many units",
			mutate: func(c *panel.Configuration) {
				for len(c.Panels) <= panel.MaxUnits {
					c.Panels = append(c.Panels, c.Panels[0])
				}
			},
			wantCode: "VAL002",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := panel.NewConfiguration("Bad Config")
			tt.mutate(&cfg)

			payload, _ := json.Marshal(cfg)
			rec := doRequest(t, s, http.MethodPost, "/api/configurations", bytes.NewBuffer(payload), "application/json")
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}

			var resp ErrorResponse
			json.Unmarshal(rec.Body.Bytes(), &resp)
			if resp.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", resp.Code, tt.wantCode)
			}
		})
	}
}

func TestSaveConfigurationSanitizesFields(t *testing.T) {
	s := newTestServer(t, 10)

	cfg := panel.NewConfiguration(`Row <script>"4"</script>`)
	cfg.Panels[0].Trays[0].Cards[0].Type = "Bogus"
	cfg.Panels[0].Trays[0].Cards[0].LinkSpeed = "900Gb"

	payload, _ := json.Marshal(cfg)
	rec := doRequest(t, s, http.MethodPost, "/api/configurations", bytes.NewBuffer(payload), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", rec.Code, rec.Body.String())
	}

	var saved panel.Configuration
	json.Unmarshal(rec.Body.Bytes(), &saved)
	if strings.ContainsAny(saved.Name, `<>"`) {
		t.Errorf("Name = %q, want angle brackets and quotes stripped", saved.Name)
	}
	if saved.Panels[0].Trays[0].Cards[0].Type != panel.CardPSM4 {
		t.Errorf("Type = %q, want snapped to %q", saved.Panels[0].Trays[0].Cards[0].Type, panel.CardPSM4)
	}
	if saved.Panels[0].Trays[0].Cards[0].LinkSpeed != panel.Speed1Gb {
		t.Errorf("LinkSpeed = %q, want snapped to %q", saved.Panels[0].Trays[0].Cards[0].LinkSpeed, panel.Speed1Gb)
	}
}

func TestNewConfiguration(t *testing.T) {
	s := newTestServer(t, 10)

	rec := doRequest(t, s, http.MethodPost, "/api/configurations/new", bytes.NewBufferString(`{"name":"Fresh"}`), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var cfg panel.Configuration
	json.Unmarshal(rec.Body.Bytes(), &cfg)
	if cfg.Name != "Fresh" {
		t.Errorf("Name = %q, want Fresh", cfg.Name)
	}
	if len(cfg.Panels) != 1 || len(cfg.Panels[0].Trays) != 1 {
		t.Fatalf("layout = %d panels / %d trays, want 1/1", len(cfg.Panels), len(cfg.Panels[0].Trays))
	}
	if got := len(cfg.Panels[0].Trays[0].Cards); got != 4 {
		t.Errorf("cards in first tray = %d, want 4", got)
	}

	// Not persisted
	rec = doRequest(t, s, http.MethodGet, "/api/configurations/user", nil, "")
	var users []panel.Configuration
	json.Unmarshal(rec.Body.Bytes(), &users)
	if len(users) != 0 {
		t.Errorf("user configurations = %d, want 0", len(users))
	}
}

func TestDeleteConfiguration(t *testing.T) {
	s := newTestServer(t, 10)

	cfg := panel.NewConfiguration("Doomed")
	payload, _ := json.Marshal(cfg)
	rec := doRequest(t, s, http.MethodPost, "/api/configurations", bytes.NewBuffer(payload), "application/json")
	var saved panel.Configuration
	json.Unmarshal(rec.Body.Bytes(), &saved)

	rec = doRequest(t, s, http.MethodDelete, "/api/configurations/"+saved.ID, nil, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", rec.Code)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/configurations/"+saved.ID, nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestDeleteDefaultRejected(t *testing.T) {
	s := newTestServer(t, 10)

	defaults := s.store.DefaultConfigurations()
	if len(defaults) == 0 {
		t.Fatal("no default configurations")
	}

	rec := doRequest(t, s, http.MethodDelete, "/api/configurations/"+defaults[0].ID, nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	var resp ErrorResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Code != "CFG003" {
		t.Errorf("Code = %q, want CFG003", resp.Code)
	}
}

func TestCopyConfiguration(t *testing.T) {
	s := newTestServer(t, 10)

	defaults := s.store.DefaultConfigurations()
	rec := doRequest(t, s, http.MethodPost, "/api/configurations/"+defaults[0].ID+"/copy",
		bytes.NewBufferString(`{"newName":"My Copy"}`), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", rec.Code, rec.Body.String())
	}

	var copied panel.Configuration
	json.Unmarshal(rec.Body.Bytes(), &copied)
	if copied.ID == defaults[0].ID {
		t.Error("copy kept the default id")
	}
	if copied.Name != "My Copy" {
		t.Errorf("Name = %q, want My Copy", copied.Name)
	}
	if copied.IsDefault {
		t.Error("copy is still marked default")
	}
}

func TestCopyConfigurationNotFound(t *testing.T) {
	s := newTestServer(t, 10)

	rec := doRequest(t, s, http.MethodPost, "/api/configurations/nope/copy", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	var resp ErrorResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Code != "CFG001" {
		t.Errorf("Code = %q, want CFG001", resp.Code)
	}
}

func TestExportConfiguration(t *testing.T) {
	s := newTestServer(t, 10)

	cfg := panel.NewConfiguration("Row 4 / East")
	payload, _ := json.Marshal(cfg)
	rec := doRequest(t, s, http.MethodPost, "/api/configurations", bytes.NewBuffer(payload), "application/json")
	var saved panel.Configuration
	json.Unmarshal(rec.Body.Bytes(), &saved)

	rec = doRequest(t, s, http.MethodGet, "/api/configurations/"+saved.ID+"/export", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q, want text/csv", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, `filename="Row_4___East.csv"`) {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if !strings.HasPrefix(rec.Body.String(), "panel_number,tray_number,card_position,card_type,port_count,link_speed") {
		t.Errorf("body does not start with the CSV header: %q", rec.Body.String())
	}
}

func TestExportConfigurationNotFound(t *testing.T) {
	s := newTestServer(t, 10)

	rec := doRequest(t, s, http.MethodGet, "/api/configurations/nope/export", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestImportConfiguration(t *testing.T) {
	s := newTestServer(t, 10)

	csvBody := `panel_number,tray_number,card_position,card_type,port_count,link_speed
1,1,A,PSM4,4,100Gb
1,1,B,LCLC,6,40Gb
`
	rec := doRequest(t, s, http.MethodPost, "/api/configurations/import?name=Restored",
		bytes.NewBufferString(csvBody), "text/csv")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", rec.Code, rec.Body.String())
	}

	var resp importResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Configuration.Name != "Restored" {
		t.Errorf("Name = %q, want Restored", resp.Configuration.Name)
	}
	if len(resp.Configuration.Panels) != 1 {
		t.Fatalf("panels = %d, want 1", len(resp.Configuration.Panels))
	}
	if got := len(resp.Configuration.Panels[0].Trays[0].Cards); got != 2 {
		t.Errorf("cards = %d, want 2", got)
	}
	if resp.SkippedLines != 0 {
		t.Errorf("SkippedLines = %d, want 0", resp.SkippedLines)
	}

	// Import is not persisted
	rec = doRequest(t, s, http.MethodGet, "/api/configurations/user", nil, "")
	var users []panel.Configuration
	json.Unmarshal(rec.Body.Bytes(), &users)
	if len(users) != 0 {
		t.Errorf("user configurations = %d, want 0", len(users))
	}
}

func TestImportConfigurationMultipart(t *testing.T) {
	s := newTestServer(t, 10)

	csvBody := "panel_number,tray_number,card_position,card_type,port_count,link_speed\n1,1,A,PSM4,4,100Gb\n"

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	w.WriteField("name", "From File")
	fw, _ := w.CreateFormFile("file", "config.csv")
	fw.Write([]byte(csvBody))
	w.Close()

	rec := doRequest(t, s, http.MethodPost, "/api/configurations/import", &buf, w.FormDataContentType())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", rec.Code, rec.Body.String())
	}

	var resp importResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Configuration.Name != "From File" {
		t.Errorf("Name = %q, want From File", resp.Configuration.Name)
	}
}

func TestImportConfigurationEmpty(t *testing.T) {
	s := newTestServer(t, 10)

	rec := doRequest(t, s, http.MethodPost, "/api/configurations/import",
		bytes.NewBufferString("panel_number,tray_number,card_position,card_type,port_count,link_speed\n"), "text/csv")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	var resp ErrorResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Code != "ING005" {
		t.Errorf("Code = %q, want ING005", resp.Code)
	}
}

func TestIPRateLimitMiddleware(t *testing.T) {
	kv, err := storage.OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { kv.Close() })

	cfg := testConfig()
	cfg.Rate.Enabled = true
	cfg.Rate.RequestsPerMinute = 2

	store := panel.NewStore(context.Background(), kv)
	s := NewServer(cfg, store, security.NewRateLimiter(10, time.Minute))

	for i := 0; i < 2; i++ {
		rec := doRequest(t, s, http.MethodGet, "/api/health", nil, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, rec.Code)
		}
	}

	rec := doRequest(t, s, http.MethodGet, "/api/health", nil, "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want 429", rec.Code)
	}
}
