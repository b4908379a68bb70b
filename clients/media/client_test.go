package media

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:        baseURL,
		RequestTimeout: 5 * time.Second,
		PollInterval:   10 * time.Millisecond,
		PollAttempts:   3,
		ModelSize:      "base",
		Device:         "cpu",
		ComputeType:    "int8",
		Language:       "en",
	}
}

func TestRequestDownload(t *testing.T) {
	tests := []struct {
		name     string
		response string
		status   int
		wantErr  bool
	}{
		{
			name: "Successful download",
			response: `{"success":true,"data":{"videoId":"vid-1","title":"Talk",` +
				`"duration":120,"thumbnail":"t.jpg","downloadUrl":"http://x/v.mp4"}}`,
			status:  http.StatusOK,
			wantErr: false,
		},
		{
			name:     "Service reports failure",
			response: `{"success":false,"error":"unsupported url"}`,
			status:   http.StatusOK,
			wantErr:  true,
		},
		{
			name:     "HTTP error",
			response: `{"success":false}`,
			status:   http.StatusBadGateway,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/videos/download" {
					t.Errorf("unexpected path: %s", r.URL.Path)
				}
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method: %s", r.Method)
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.response))
			}))
			defer server.Close()

			client := NewClient(testConfig(server.URL))
			result, err := client.RequestDownload(context.Background(), "https://example.com/v")

			if (err != nil) != tt.wantErr {
				t.Fatalf("RequestDownload() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && result.VideoID != "vid-1" {
				t.Errorf("VideoID = %q, want %q", result.VideoID, "vid-1")
			}
		})
	}
}

func TestRequestTranscription(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/videos/vid-1/transcribe" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		if body["modelSize"] != "base" {
			t.Errorf("modelSize = %v, want base", body["modelSize"])
		}
		w.Write([]byte(`{"success":true,"data":{"transcriptionId":"tr-9","status":"processing"}}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	job, err := client.RequestTranscription(context.Background(), "vid-1")
	if err != nil {
		t.Fatalf("RequestTranscription() error = %v", err)
	}
	if job.TranscriptionID != "tr-9" {
		t.Errorf("TranscriptionID = %q, want %q", job.TranscriptionID, "tr-9")
	}
}

func TestPollTranscription(t *testing.T) {
	t.Run("Completes after processing", func(t *testing.T) {
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls < 3 {
				w.Write([]byte(`{"success":true,"data":{"status":"processing"}}`))
				return
			}
			w.Write([]byte(`{"success":true,"data":{"status":"completed","text":"hello world"}}`))
		}))
		defer server.Close()

		client := NewClient(testConfig(server.URL))
		text, err := client.PollTranscription(context.Background(), "tr-9")
		if err != nil {
			t.Fatalf("PollTranscription() error = %v", err)
		}
		if text != "hello world" {
			t.Errorf("text = %q, want %q", text, "hello world")
		}
	})

	t.Run("Service failure yields empty text", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"success":true,"data":{"status":"failed"}}`))
		}))
		defer server.Close()

		client := NewClient(testConfig(server.URL))
		text, err := client.PollTranscription(context.Background(), "tr-9")
		if err != nil {
			t.Fatalf("PollTranscription() error = %v", err)
		}
		if text != "" {
			t.Errorf("text = %q, want empty", text)
		}
	})

	t.Run("Exhausts attempts while processing", func(t *testing.T) {
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.Write([]byte(`{"success":true,"data":{"status":"processing"}}`))
		}))
		defer server.Close()

		client := NewClient(testConfig(server.URL))
		text, err := client.PollTranscription(context.Background(), "tr-9")
		if err != nil {
			t.Fatalf("PollTranscription() error = %v", err)
		}
		if text != "" {
			t.Errorf("text = %q, want empty", text)
		}
		if calls != 3 {
			t.Errorf("status checks = %d, want 3", calls)
		}
	})
}
