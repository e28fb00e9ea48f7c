package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cwbudde/lahc/internal/server"
	"github.com/spf13/cobra"
)

var serverURL string

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Query server status or specific job",
	Long: `Queries the server for job status information.
If no job-id is provided, lists all jobs.
If job-id is provided, shows detailed status for that job.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	base := strings.TrimRight(serverURL, "/")
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		var jobs []server.Job
		if err := getJSON(base+"/api/v1/jobs", &jobs); err != nil {
			return err
		}
		printJobs(out, jobs)
		return nil
	}

	jobID := args[0]
	var status server.StatusResponse
	if err := getJSON(fmt.Sprintf("%s/api/v1/jobs/%s/status", base, jobID), &status); err != nil {
		var se *statusError
		if errors.As(err, &se) && se.code == http.StatusNotFound {
			return fmt.Errorf("job not found: %s", jobID)
		}
		return err
	}
	printStatus(out, status)
	return nil
}

// statusError is a non-200 reply from the server.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.code, e.body)
}

func getJSON(url string, v any) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func printJobs(w io.Writer, jobs []server.Job) {
	if len(jobs) == 0 {
		fmt.Fprintln(w, "No jobs found")
		return
	}

	fmt.Fprintf(w, "Found %d job(s):\n\n", len(jobs))
	for _, job := range jobs {
		fmt.Fprintf(w, "Job ID: %s\n", job.ID)
		fmt.Fprintf(w, "  State: %s\n", job.State)
		fmt.Fprintf(w, "  Problem: %s\n", job.Config.Problem)
		if job.Step > 0 {
			fmt.Fprintf(w, "  Energy: %.6g -> %.6g (step %d)\n", job.InitialEnergy, job.BestEnergy, job.Step)
		}
		fmt.Fprintln(w)
	}
}

func printStatus(w io.Writer, status server.StatusResponse) {
	job := status.Job
	if job == nil {
		fmt.Fprintln(w, "Empty status response")
		return
	}

	fmt.Fprintf(w, "Job: %s\n", job.ID)
	fmt.Fprintf(w, "State: %s\n", job.State)
	if job.Reason != "" {
		fmt.Fprintf(w, "Reason: %s\n", job.Reason)
	}
	if job.ResumedFrom != "" {
		fmt.Fprintf(w, "Resumed from: %s\n", job.ResumedFrom)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Configuration:")
	fmt.Fprintf(w, "  Problem: %s\n", job.Config.Problem)
	fmt.Fprintf(w, "  History length: %d\n", job.Config.HistoryLength)
	fmt.Fprintf(w, "  Steps minimum: %d\n", job.Config.StepsMinimum)
	fmt.Fprintf(w, "  Idle fraction: %g\n", job.Config.StepsIdleFraction)
	fmt.Fprintf(w, "  Seed: %d\n", job.Config.Seed)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Progress:")
	fmt.Fprintf(w, "  Step: %d (idle %d)\n", job.Step, job.Idle)
	fmt.Fprintf(w, "  Initial energy: %.6g\n", job.InitialEnergy)
	fmt.Fprintf(w, "  Current energy: %.6g\n", job.Energy)
	fmt.Fprintf(w, "  Best energy: %.6g\n", job.BestEnergy)
	if improvement := job.InitialEnergy - job.BestEnergy; improvement > 0 && job.InitialEnergy != 0 {
		fmt.Fprintf(w, "  Improvement: %.6g (%.1f%%)\n", improvement, improvement/job.InitialEnergy*100)
	}
	fmt.Fprintf(w, "  Acceptance: %.1f%%\n", job.AcceptanceRate*100)

	elapsed := time.Duration(status.Elapsed * float64(time.Second))
	fmt.Fprintf(w, "  Elapsed: %s\n", elapsed.Round(time.Millisecond))
	if status.StepsPerSecond > 0 {
		fmt.Fprintf(w, "  Throughput: %.0f steps/sec\n", status.StepsPerSecond)
	}

	if job.Error != "" {
		fmt.Fprintf(w, "\nError: %s\n", job.Error)
	}
}
