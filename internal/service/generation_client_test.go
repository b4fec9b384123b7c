package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/justAlves/estudeai-sub000/internal/config"
)

func generationClientFor(srv *httptest.Server) GenerationClient {
	return NewGenerationClient(&config.Config{
		GenerationBaseURL:           srv.URL,
		GenerationAPIKey:            "test-key",
		GenerationRequestTimeoutSec: 5,
	})
}

func TestGenerateQuestionsParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/generate/questions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected authorization header: %q", got)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("invalid request body: %v", err)
		}
		json.NewEncoder(w).Encode(GeneratedExam{
			Title: "History drill",
			Questions: []GeneratedQuestion{{
				Statement: "When did it happen?",
				Options:   []GeneratedOption{{Text: "1500", Correct: true}, {Text: "1600"}},
			}},
		})
	}))
	defer srv.Close()

	exam, err := generationClientFor(srv).GenerateQuestions(context.Background(), "history", "enem", 1)
	if err != nil {
		t.Fatalf("GenerateQuestions failed: %v", err)
	}
	if exam.Title != "History drill" || len(exam.Questions) != 1 {
		t.Fatalf("unexpected exam: %+v", exam)
	}
	if !exam.Questions[0].Options[0].Correct {
		t.Fatal("correct flag lost in transit")
	}
}

func TestGenerateQuestionsEmptyResultIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(GeneratedExam{Title: "empty"})
	}))
	defer srv.Close()

	if _, err := generationClientFor(srv).GenerateQuestions(context.Background(), "history", "enem", 5); err == nil {
		t.Fatal("expected error for a response with no questions")
	}
}

func TestGenerationServiceErrorIsSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": "model overloaded"}})
	}))
	defer srv.Close()

	_, err := generationClientFor(srv).CorrectEssay(context.Background(), "text", "theme", "enem")
	if err == nil {
		t.Fatal("expected error from failing service")
	}
}

func TestCorrectEssayMalformedResponseIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{not json"))
	}))
	defer srv.Close()

	if _, err := generationClientFor(srv).CorrectEssay(context.Background(), "text", "theme", "enem"); err == nil {
		t.Fatal("malformed response must be a generation failure")
	}
}

func TestCorrectEssayRejectsIncompleteDocument(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"empty object", `{}`},
		{"short competency list", `{"competencies":[{"score":100,"feedback":"a"}],"total":100,"overall":"thin"}`},
		{"missing overall", `{"competencies":[{"score":1},{"score":2},{"score":3},{"score":4},{"score":5}],"total":15}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			result, err := generationClientFor(srv).CorrectEssay(context.Background(), "text", "theme", "enem")
			if err == nil {
				t.Fatalf("incomplete correction must be rejected, got %+v", result)
			}
		})
	}
}

func TestCorrectEssayParsesCompetencies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/corrections" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		result := CorrectionResult{Total: 1000, Overall: "excellent"}
		for i := 0; i < 5; i++ {
			result.Competencies = append(result.Competencies, CompetencyScore{Score: 200, Feedback: "good"})
		}
		json.NewEncoder(w).Encode(result)
	}))
	defer srv.Close()

	result, err := generationClientFor(srv).CorrectEssay(context.Background(), "text", "theme", "enem")
	if err != nil {
		t.Fatalf("CorrectEssay failed: %v", err)
	}
	if result.Total != 1000 || result.Competencies[4].Score != 200 {
		t.Fatalf("unexpected result: %+v", result)
	}
}
