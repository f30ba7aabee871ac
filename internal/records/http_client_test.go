package records

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(baseURL string) *httpClient {
	return newHTTPClient(Config{
		BaseURL:      baseURL,
		APIKey:       "key",
		Workspace:    "ws1",
		RequestDelay: time.Millisecond,
	})
}

func TestListRecords_Pagination(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Path != "/v0/ws1/Experiments" {
			t.Errorf("path = %q, want /v0/ws1/Experiments", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("Authorization = %q", got)
		}

		if r.URL.Query().Get("offset") == "" {
			fmt.Fprint(w, `{"records": [{"id": "rec1", "fields": {"Title": "First"}, "createdTime": "2026-01-01T00:00:00Z"}], "offset": "page2"}`)
			return
		}
		fmt.Fprint(w, `{"records": [{"id": "rec2", "fields": {"Title": "Second"}}]}`)
	}))
	defer srv.Close()

	client := testClient(srv.URL)
	recs, err := client.ListRecords(context.Background(), TableExperiments)
	if err != nil {
		t.Fatalf("ListRecords() error = %v", err)
	}

	if len(recs) != 2 {
		t.Fatalf("ListRecords() = %d records, want 2 across pages", len(recs))
	}
	if recs[0].ID != "rec1" || recs[1].ID != "rec2" {
		t.Errorf("record ids = %q, %q", recs[0].ID, recs[1].ID)
	}
	if recs[0].Fields["Title"] != "First" {
		t.Errorf("fields not mapped: %v", recs[0].Fields)
	}
	if recs[0].CreatedTime.IsZero() {
		t.Errorf("createdTime not parsed")
	}

	// Second listing is served from cache.
	before := atomic.LoadInt32(&calls)
	if _, err := client.ListRecords(context.Background(), TableExperiments); err != nil {
		t.Fatalf("cached ListRecords() error = %v", err)
	}
	if after := atomic.LoadInt32(&calls); after != before {
		t.Errorf("cached listing still hit the backend (%d -> %d calls)", before, after)
	}
}

func TestUpdateRecordFields_SendsOnlyGivenFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %q, want PATCH", r.Method)
		}
		if r.URL.Path != "/v0/ws1/Experiments/rec1" {
			t.Errorf("path = %q", r.URL.Path)
		}

		var payload updateRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("failed to decode payload: %v", err)
		}
		if len(payload.Fields) != 1 || payload.Fields["Status"] != "Running" {
			t.Errorf("payload fields = %v, want only Status", payload.Fields)
		}

		fmt.Fprint(w, `{"id": "rec1", "fields": {"Status": "Running"}}`)
	}))
	defer srv.Close()

	client := testClient(srv.URL)
	rec, err := client.UpdateRecordFields(context.Background(), TableExperiments, "rec1", map[string]any{"Status": "Running"})
	if err != nil {
		t.Fatalf("UpdateRecordFields() error = %v", err)
	}
	if rec.Fields["Status"] != "Running" {
		t.Errorf("updated record = %+v", rec)
	}
}

func TestWriteInvalidatesListCache(t *testing.T) {
	var listCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			atomic.AddInt32(&listCalls, 1)
			fmt.Fprint(w, `{"records": []}`)
			return
		}
		fmt.Fprint(w, `{"id": "rec1", "fields": {}}`)
	}))
	defer srv.Close()

	client := testClient(srv.URL)
	ctx := context.Background()

	if _, err := client.ListRecords(ctx, TableExperiments); err != nil {
		t.Fatalf("ListRecords() error = %v", err)
	}
	if _, err := client.UpdateRecordFields(ctx, TableExperiments, "rec1", map[string]any{"Status": "Done"}); err != nil {
		t.Fatalf("UpdateRecordFields() error = %v", err)
	}
	if _, err := client.ListRecords(ctx, TableExperiments); err != nil {
		t.Fatalf("ListRecords() after write error = %v", err)
	}

	if got := atomic.LoadInt32(&listCalls); got != 2 {
		t.Errorf("backend listed %d times, want 2 (cache invalidated by the write)", got)
	}
}

func TestStatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		code   int
		expect string
	}{
		{"NotFound", http.StatusNotFound, "not found"},
		{"Unauthorized", http.StatusUnauthorized, "API key"},
		{"Unprocessable", http.StatusUnprocessableEntity, "422"},
		{"RateLimited", http.StatusTooManyRequests, "rate limit"},
		{"Other", http.StatusInternalServerError, "500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
			}))
			defer srv.Close()

			client := testClient(srv.URL)
			_, err := client.GetRecord(context.Background(), TableExperiments, "rec1")
			if err == nil {
				t.Fatalf("GetRecord() should fail on %d", tt.code)
			}
			if !strings.Contains(err.Error(), tt.expect) {
				t.Errorf("error = %q, want it to mention %q", err.Error(), tt.expect)
			}
		})
	}
}

func TestResolveLookups(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		table := strings.TrimPrefix(r.URL.Path, "/v0/ws1/")
		fmt.Fprintf(w, `{"records": [{"id": "%s-1", "fields": {"Name": "%s One"}}]}`, table, table)
	}))
	defer srv.Close()

	client := testClient(srv.URL)
	lookups, err := client.ResolveLookups(context.Background())
	if err != nil {
		t.Fatalf("ResolveLookups() error = %v", err)
	}

	if got := lookups.Owners["Owners-1"]; got != "Owners One" {
		t.Errorf("Owners lookup = %q, want %q", got, "Owners One")
	}
	if got := lookups.Markets["Markets-1"]; got != "Markets One" {
		t.Errorf("Markets lookup = %q, want %q", got, "Markets One")
	}
	if len(lookups.KPIs) != 1 {
		t.Errorf("KPIs lookup = %v", lookups.KPIs)
	}
}

func TestUploadAttachment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v0/ws1/attachments" {
			t.Errorf("%s %s, want POST /v0/ws1/attachments", r.Method, r.URL.Path)
		}
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			t.Errorf("Content-Type = %q, want multipart", r.Header.Get("Content-Type"))
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("missing file part: %v", err)
		}
		defer file.Close()
		if header.Filename != "control.png" {
			t.Errorf("filename = %q, want control.png", header.Filename)
		}
		data, _ := io.ReadAll(file)
		if string(data) != "png-bytes" {
			t.Errorf("file content = %q", data)
		}

		fmt.Fprint(w, `{"id": "att1", "url": "https://files/att1", "filename": "control.png"}`)
	}))
	defer srv.Close()

	client := testClient(srv.URL)
	att, err := client.UploadAttachment(context.Background(), "control.png", []byte("png-bytes"))
	if err != nil {
		t.Fatalf("UploadAttachment() error = %v", err)
	}
	if att.ID != "att1" || att.URL != "https://files/att1" || att.Filename != "control.png" {
		t.Errorf("UploadAttachment() = %+v", att)
	}
}

func TestDeleteAttachment_ClearsReferencingField(t *testing.T) {
	var deleted bool
	var patched map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodDelete:
			if r.URL.Path != "/v0/ws1/attachments/att1" {
				t.Errorf("DELETE path = %q", r.URL.Path)
			}
			deleted = true
			w.WriteHeader(http.StatusNoContent)
		case http.MethodPatch:
			if r.URL.Path != "/v0/ws1/Experiments/rec1" {
				t.Errorf("PATCH path = %q", r.URL.Path)
			}
			var payload updateRequest
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Errorf("failed to decode patch: %v", err)
			}
			patched = payload.Fields
			fmt.Fprint(w, `{"id": "rec1", "fields": {}}`)
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	client := testClient(srv.URL)
	err := client.DeleteAttachment(context.Background(), TableExperiments, "rec1", "Control Image", "att1")
	if err != nil {
		t.Fatalf("DeleteAttachment() error = %v", err)
	}

	if !deleted {
		t.Fatalf("attachment object was never deleted")
	}
	value, present := patched["Control Image"]
	if !present || value != nil {
		t.Errorf("referencing field not cleared, patch = %v", patched)
	}
	if len(patched) != 1 {
		t.Errorf("patch touched extra fields: %v", patched)
	}
}

func TestDeleteAttachment_WithoutFieldSkipsPatch(t *testing.T) {
	var patchCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPatch {
			patchCalls++
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := testClient(srv.URL)
	if err := client.DeleteAttachment(context.Background(), "", "", "", "att1"); err != nil {
		t.Fatalf("DeleteAttachment() error = %v", err)
	}
	if patchCalls != 0 {
		t.Errorf("field-clearing PATCH sent without a referencing field")
	}
}

func TestMapRecord(t *testing.T) {
	rec := mapRecord(recordDTO{ID: "rec1", CreatedTime: "2026-05-01T10:00:00Z"})
	if rec.Fields == nil {
		t.Errorf("nil fields should map to an empty map")
	}
	if rec.CreatedTime.Year() != 2026 {
		t.Errorf("CreatedTime = %v", rec.CreatedTime)
	}

	noTime := mapRecord(recordDTO{ID: "rec2", CreatedTime: "garbage"})
	if !noTime.CreatedTime.IsZero() {
		t.Errorf("invalid createdTime should stay zero, got %v", noTime.CreatedTime)
	}
}

func TestCacheExpiry(t *testing.T) {
	client := testClient("http://unused")
	client.addToCache("k", "v", 10*time.Millisecond)

	if _, ok := client.getFromCache("k"); !ok {
		t.Fatalf("fresh entry not served from cache")
	}

	time.Sleep(20 * time.Millisecond)
	// Access count 2 after the first read; sliding extension moved expiry, so
	// wait past the extended window too.
	time.Sleep(20 * time.Millisecond)
	if _, ok := client.getFromCache("k"); ok {
		t.Errorf("expired entry served from cache")
	}
}
