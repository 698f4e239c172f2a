package batchcount

import (
	"context"
	"encoding/json"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/bcongdon/batchcount/internal/pkg/locator"
)

var (
	lambdaDriver *Driver
)

// runningInLambda infers if the program is running in AWS lambda via inspection of the environment
func runningInLambda() bool {
	expectedEnvVars := []string{"LAMBDA_TASK_ROOT", "AWS_EXECUTION_ENV", "LAMBDA_RUNTIME_DIR"}
	for _, envVar := range expectedEnvVars {
		if os.Getenv(envVar) == "" {
			return false
		}
	}
	return true
}

// handleRequest processes one shard. A warm container reuses lambdaDriver's
// ShardProcessor, so repeated tasks against the same plan skip refetching it.
func handleRequest(ctx context.Context, task shardTask) (string, error) {
	plan, err := locator.Parse(task.Plan)
	if err != nil {
		return "", err
	}

	processor, err := lambdaDriver.shardProcessor()
	if err != nil {
		return "", err
	}

	result, err := processor.Process(ctx, plan, task.Index)
	if err != nil {
		return "", err
	}
	log.Infof("Migrated file(%d) - %s to %s", result.Index, result.Source, result.Destination)

	payload, err := json.Marshal(shardTaskResult{
		Item:         result.Item,
		Source:       result.Source.URI(),
		Destination:  result.Destination.URI(),
		BytesRead:    result.BytesRead,
		BytesWritten: result.BytesWritten,
		Tokens:       result.Tokens,
	})
	return string(payload), err
}
