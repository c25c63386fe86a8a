package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/noah-isme/student-roster-api/internal/client"
	"github.com/noah-isme/student-roster-api/internal/dto"
	"github.com/noah-isme/student-roster-api/internal/models"
	appErrors "github.com/noah-isme/student-roster-api/pkg/errors"
)

type creator interface {
	Create(ctx context.Context, payload dto.StudentPayload) (*models.Student, error)
}

type outcome struct {
	Payload  dto.StudentPayload
	Status   string
	Err      error
	Duration time.Duration
}

func main() {
	var (
		apiBase  string
		dataPath string
		timeout  time.Duration
	)

	flag.StringVar(&apiBase, "api", "http://localhost:8080", "roster API base URL")
	flag.StringVar(&dataPath, "file", filepath.Join("scripts", "seed_roster", "students.json"), "path to JSON array of students")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	students, err := loadStudents(dataPath)
	if err != nil {
		log.Fatalf("failed to load students: %v", err)
	}

	results := seed(context.Background(), client.New(apiBase, nil, timeout), students)
	failed := printReport(os.Stdout, results)
	if failed > 0 {
		os.Exit(1)
	}
}

func loadStudents(path string) ([]dto.StudentPayload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var students []dto.StudentPayload
	if err := json.Unmarshal(data, &students); err != nil {
		return nil, err
	}
	if len(students) == 0 {
		return nil, fmt.Errorf("no students defined in %s", path)
	}
	return students, nil
}

// seed creates each student in order. Students whose student_id already
// exists are reported as skipped so the seed can be re-run.
func seed(ctx context.Context, c creator, students []dto.StudentPayload) []outcome {
	results := make([]outcome, 0, len(students))
	for _, payload := range students {
		start := time.Now()
		_, err := c.Create(ctx, payload)
		res := outcome{Payload: payload, Duration: time.Since(start), Status: "CREATED"}
		switch {
		case err == nil:
		case appErrors.IsKind(err, appErrors.ErrConflict):
			res.Status = "SKIPPED"
		default:
			res.Status = "ERROR"
			res.Err = err
		}
		results = append(results, res)
	}
	return results
}

func printReport(w io.Writer, results []outcome) int {
	fmt.Fprintln(w, "Roster Seed Report")
	fmt.Fprintln(w, "==================")
	var created, skipped, failed int
	for _, res := range results {
		fmt.Fprintf(w, "[%s] %s %s (%s)\n", res.Status, res.Payload.StudentID, res.Payload.FirstName, res.Duration.Round(time.Millisecond))
		switch res.Status {
		case "CREATED":
			created++
		case "SKIPPED":
			skipped++
		default:
			failed++
			fmt.Fprintf(w, "  Error: %v\n", res.Err)
		}
	}
	fmt.Fprintf(w, "Created: %d, Skipped: %d, Failed: %d\n", created, skipped, failed)
	return failed
}
