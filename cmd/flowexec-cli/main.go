// Package main provides a CLI for interacting with the flowexec server.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/tcmartin/flowexec/pkg/loader"
	"github.com/tcmartin/flowexec/pkg/models"
)

var (
	// Global flags
	serverURL string
	token     string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "flowexec-cli",
		Short: "Flowexec CLI",
		Long:  "Command-line interface for interacting with the flowexec server",
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "Bearer token")

	var wait bool
	var inputJSON string
	var timeoutSeconds int

	runCmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Execute a workflow from a YAML file",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runWorkflow(args[0], wait, inputJSON, timeoutSeconds)
		},
	}
	runCmd.Flags().BoolVar(&wait, "wait", false, "Poll until the execution finishes")
	runCmd.Flags().StringVar(&inputJSON, "input", "", "JSON input passed to every node")
	runCmd.Flags().IntVar(&timeoutSeconds, "timeout", 0, "Run-level timeout in seconds")

	statusCmd := &cobra.Command{
		Use:   "status [executionId]",
		Short: "Show the status of an execution",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			showStatus(args[0])
		},
	}

	cancelCmd := &cobra.Command{
		Use:   "cancel [executionId]",
		Short: "Request cancellation of an execution",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cancelExecution(args[0])
		},
	}

	var limit, offset int
	var filter string

	historyCmd := &cobra.Command{
		Use:   "history [workflowId]",
		Short: "List finished executions of a workflow",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			showHistory(args[0], limit, offset, filter)
		},
	}
	historyCmd.Flags().IntVar(&limit, "limit", 0, "Maximum entries to return")
	historyCmd.Flags().IntVar(&offset, "offset", 0, "Entries to skip")
	historyCmd.Flags().StringVar(&filter, "filter", "", "Substring match on status or error")

	rootCmd.AddCommand(runCmd, statusCmd, cancelCmd, historyCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// doRequest sends a JSON request and returns the response body, exiting
// on transport errors.
func doRequest(method, path string, body interface{}) (int, []byte) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	}

	req, err := http.NewRequest(method, serverURL+path, &buf)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	return resp.StatusCode, respBody
}

// runWorkflow parses a YAML workflow and submits it for execution.
func runWorkflow(filePath string, wait bool, inputJSON string, timeoutSeconds int) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	workflowID, g, err := loader.ParseGraph(content)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	var input map[string]interface{}
	if inputJSON != "" {
		if err := json.Unmarshal([]byte(inputJSON), &input); err != nil {
			fmt.Printf("Error: invalid --input JSON: %v\n", err)
			os.Exit(1)
		}
	}

	reqBody := map[string]interface{}{
		"flowId": workflowID,
		"nodes":  g.Nodes,
		"edges":  g.Edges,
		"context": map[string]interface{}{
			"input":           input,
			"timeout_seconds": timeoutSeconds,
		},
	}

	status, body := doRequest(http.MethodPost, "/executeFlow", reqBody)
	if status != http.StatusAccepted {
		fmt.Printf("Error: %s\n", body)
		os.Exit(1)
	}

	var resp struct {
		ExecutionID string `json:"executionId"`
		Status      string `json:"status"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Execution started: %s\n", resp.ExecutionID)

	if !wait {
		return
	}

	for {
		time.Sleep(500 * time.Millisecond)
		run := fetchRun(resp.ExecutionID)
		fmt.Printf("  status=%s progress=%.0f%%\n", run.Status, run.Progress)
		if run.Status.Terminal() {
			printRun(run)
			if run.Status != models.RunCompleted {
				os.Exit(1)
			}
			return
		}
	}
}

func fetchRun(executionID string) models.Run {
	status, body := doRequest(http.MethodGet, "/execution/"+executionID, nil)
	if status != http.StatusOK {
		fmt.Printf("Error: %s\n", body)
		os.Exit(1)
	}

	var run models.Run
	if err := json.Unmarshal(body, &run); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	return run
}

// showStatus prints the full run snapshot.
func showStatus(executionID string) {
	printRun(fetchRun(executionID))
}

func printRun(run models.Run) {
	fmt.Printf("Execution %s (workflow %s)\n", run.ID, run.WorkflowID)
	fmt.Printf("  Status:   %s\n", run.Status)
	fmt.Printf("  Progress: %.0f%%\n", run.Progress)
	fmt.Printf("  Started:  %s\n", run.StartTime.Format(time.RFC3339))
	if run.EndTime != nil {
		fmt.Printf("  Ended:    %s\n", run.EndTime.Format(time.RFC3339))
	}
	if run.CurrentNodeID != "" {
		fmt.Printf("  Current:  %s\n", run.CurrentNodeID)
	}

	fmt.Println("  Nodes:")
	for id, state := range run.NodeStates {
		line := fmt.Sprintf("    %s: %s", id, state.Status)
		if state.Error != "" {
			line += " (" + state.Error + ")"
		}
		fmt.Println(line)
	}
}

// cancelExecution requests cooperative cancellation.
func cancelExecution(executionID string) {
	status, body := doRequest(http.MethodPost, "/execution/"+executionID+"/cancel", nil)
	if status != http.StatusOK {
		fmt.Printf("Error: %s\n", body)
		os.Exit(1)
	}

	var resp struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if resp.Success {
		fmt.Println("Cancellation requested")
	} else {
		fmt.Println("Execution not found or already finished")
	}
}

// showHistory lists terminal runs, newest first.
func showHistory(workflowID string, limit, offset int, filter string) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		query.Set("offset", strconv.Itoa(offset))
	}
	if filter != "" {
		query.Set("filter", filter)
	}

	path := "/workflow/" + workflowID + "/history"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	status, body := doRequest(http.MethodGet, path, nil)
	if status != http.StatusOK {
		fmt.Printf("Error: %s\n", body)
		os.Exit(1)
	}

	var entries []models.HistoryEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if len(entries) == 0 {
		fmt.Println("No executions found")
		return
	}

	fmt.Println("Execution\t\t\t\tStatus\t\tDuration\tNodes\tStarted")
	for _, e := range entries {
		fmt.Printf("%s\t%s\t%s\t%d/%d\t%s\n",
			e.ExecutionID,
			e.Status,
			e.ExecutionTime.Round(time.Millisecond),
			e.SuccessCount,
			e.NodeCount,
			e.StartTime.Format(time.RFC3339),
		)
	}
}
