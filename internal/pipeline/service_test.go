package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"sluice/internal/config"
	"sluice/internal/ledger"
	"sluice/internal/logging"
	"sluice/internal/pipeline"
	"sluice/internal/services"
	"sluice/internal/testsupport"
)

type apiState struct {
	deliveries   atomic.Int64
	uploads      atomic.Int64
	deletes      atomic.Int64
	failDelivery bool
}

func newAPI(t *testing.T, state *apiState) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("GET /videos/vid-1/files", func(w http.ResponseWriter, r *http.Request) {
		files := []map[string]any{
			{"id": "f-video", "name": "stream.mp4", "contentType": "video/mp4", "bitRate": 2000},
			{"id": "f-hi", "name": "audio-high.m4a", "contentType": "audio/mp4", "bitRate": 256},
			{"id": "f-lo", "name": "audio-low.m4a", "contentType": "audio/mp4", "bitRate": 64},
			{"id": "f-old", "name": "old.vtt", "contentType": "text/vtt", "language": "he"},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(files)
	})
	mux.HandleFunc("GET /videos/vid-1/files/f-lo", func(w http.ResponseWriter, r *http.Request) {
		host := "http://" + r.Host
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"redirect": host + "/blob/f-lo"})
	})
	mux.HandleFunc("GET /blob/f-lo", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("fake-audio-bytes"))
	})
	mux.HandleFunc("DELETE /videos/vid-1/files/f-old", func(w http.ResponseWriter, r *http.Request) {
		state.deletes.Add(1)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /videos/vid-1/files", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		state.uploads.Add(1)
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("POST /audio/transcriptions", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if got := r.FormValue("language"); got != "he" {
			http.Error(w, fmt.Sprintf("unexpected language %q", got), http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte("WEBVTT\n\n00:00.000 --> 00:02.000\nshalom\n"))
	})
	mux.HandleFunc("POST /chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "WEBVTT\n\nprocessed\n"}},
			},
		})
	})
	mux.HandleFunc("POST /deliver", func(w http.ResponseWriter, r *http.Request) {
		if state.failDelivery {
			http.Error(w, "downstream unavailable", http.StatusInternalServerError)
			return
		}
		state.deliveries.Add(1)
		w.WriteHeader(http.StatusAccepted)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newServiceConfig(t *testing.T, base string) *config.Config {
	t.Helper()
	return testsupport.NewConfig(t, testsupport.WithAPIBase(base))
}

func TestServiceProcessHappyPath(t *testing.T) {
	state := &apiState{}
	server := newAPI(t, state)
	svc := pipeline.NewService(newServiceConfig(t, server.URL), logging.NewNop())
	defer svc.Close()

	flags, err := svc.Process(context.Background(), "vid-1")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	for _, name := range ledger.RequiredFlags() {
		if !flags[name] {
			t.Fatalf("flag %s not set: %v", name, flags)
		}
	}
	// Source caption plus ru and ar translations.
	if got := state.uploads.Load(); got != 3 {
		t.Fatalf("expected 3 caption uploads, got %d", got)
	}
	// The stale source-language caption is replaced, not duplicated.
	if got := state.deletes.Load(); got != 1 {
		t.Fatalf("expected 1 caption delete, got %d", got)
	}
	if got := state.deliveries.Load(); got != 1 {
		t.Fatalf("expected 1 delivery, got %d", got)
	}
}

func TestServiceProcessRecordsPartialFlagsOnFailure(t *testing.T) {
	state := &apiState{failDelivery: true}
	server := newAPI(t, state)
	svc := pipeline.NewService(newServiceConfig(t, server.URL), logging.NewNop())
	defer svc.Close()

	flags, err := svc.Process(context.Background(), "vid-1")
	if err == nil {
		t.Fatal("expected delivery failure")
	}
	var itemErr *pipeline.ItemError
	if !errors.As(err, &itemErr) || itemErr.VideoID != "vid-1" {
		t.Fatalf("expected ItemError for vid-1, got %v", err)
	}
	if !errors.Is(err, services.ErrExternalAPI) {
		t.Fatalf("expected ErrExternalAPI, got %v", err)
	}
	if !flags[ledger.FlagUploaded] || !flags[ledger.FlagTranslatedRU] || !flags[ledger.FlagTranslatedAR] {
		t.Fatalf("earlier stages should be recorded: %v", flags)
	}
	if flags[ledger.FlagDelivered] {
		t.Fatalf("delivered must not be set: %v", flags)
	}
}

func TestServiceDisabledStagesSatisfyFlags(t *testing.T) {
	state := &apiState{}
	server := newAPI(t, state)
	cfg := newServiceConfig(t, server.URL)
	cfg.Translation.EnableRussian = false
	cfg.Translation.EnableArabic = false
	cfg.Delivery.Enabled = false
	svc := pipeline.NewService(cfg, logging.NewNop())
	defer svc.Close()

	flags, err := svc.Process(context.Background(), "vid-1")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	for _, name := range ledger.RequiredFlags() {
		if !flags[name] {
			t.Fatalf("disabled stage should satisfy flag %s: %v", name, flags)
		}
	}
	if got := state.uploads.Load(); got != 1 {
		t.Fatalf("expected only the source caption upload, got %d", got)
	}
	if got := state.deliveries.Load(); got != 0 {
		t.Fatalf("expected no deliveries, got %d", got)
	}
}

func TestSelectAudioPrefersLowestBitrate(t *testing.T) {
	files := []pipeline.VideoFile{
		{ID: "v", ContentType: "video/mp4", BitRate: 1000},
		{ID: "a1", ContentType: "audio/mp4", BitRate: 192},
		{ID: "a2", ContentType: "audio/mp4", BitRate: 64},
	}
	picked, err := pipeline.SelectAudio(files)
	if err != nil {
		t.Fatalf("SelectAudio: %v", err)
	}
	if picked.ID != "a2" {
		t.Fatalf("picked %s, want a2", picked.ID)
	}

	_, err = pipeline.SelectAudio(files[:1])
	if !errors.Is(err, services.ErrItemProcessing) {
		t.Fatalf("expected ErrItemProcessing, got %v", err)
	}
}

func TestItemErrorMessage(t *testing.T) {
	err := &pipeline.ItemError{VideoID: "vid-9", Err: errors.New("boom")}
	if !strings.Contains(err.Error(), "vid-9") {
		t.Fatalf("message missing id: %q", err.Error())
	}
}
