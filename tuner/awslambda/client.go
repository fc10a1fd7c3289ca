// Package awslambda implements tuner.FunctionClient and tuner.Catalog on top
// of the AWS Lambda API (aws-sdk-go-v2).
package awslambda

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/smithy-go"
	"github.com/sirupsen/logrus"

	"github.com/lambda-tuner/lambda-tuner/tuner"
)

// API is the subset of the Lambda client used here. *lambda.Client
// satisfies it.
type API interface {
	lambda.ListFunctionsAPIClient
	GetFunctionConfiguration(ctx context.Context, in *lambda.GetFunctionConfigurationInput, optFns ...func(*lambda.Options)) (*lambda.GetFunctionConfigurationOutput, error)
	UpdateFunctionConfiguration(ctx context.Context, in *lambda.UpdateFunctionConfigurationInput, optFns ...func(*lambda.Options)) (*lambda.UpdateFunctionConfigurationOutput, error)
	Invoke(ctx context.Context, in *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// Client drives Lambda functions for the tuner.
type Client struct {
	api API
}

var (
	_ tuner.FunctionClient = (*Client)(nil)
	_ tuner.Catalog        = (*Client)(nil)
)

// New loads AWS configuration through the default credential chain for
// region, using the named shared-config profile when profile is non-empty.
func New(ctx context.Context, region, profile string) (*Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS configuration (region %s, profile %q): %w", region, profile, err)
	}
	return NewFromAPI(lambda.NewFromConfig(cfg)), nil
}

// NewFromAPI wraps an existing Lambda API client.
func NewFromAPI(api API) *Client {
	return &Client{api: api}
}

// ListFunctions returns every function in the region.
func (c *Client) ListFunctions(ctx context.Context) ([]tuner.FunctionInformation, error) {
	var out []tuner.FunctionInformation
	p := lambda.NewListFunctionsPaginator(c.api, &lambda.ListFunctionsInput{})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list functions: %w", classify(err))
		}
		for _, fc := range page.Functions {
			out = append(out, information(aws.ToString(fc.FunctionName), fc))
		}
	}
	return out, nil
}

// GetFunction returns the current configuration of a function.
func (c *Client) GetFunction(ctx context.Context, id string) (tuner.FunctionInformation, error) {
	o, err := c.api.GetFunctionConfiguration(ctx, &lambda.GetFunctionConfigurationInput{FunctionName: aws.String(id)})
	if err != nil {
		return tuner.FunctionInformation{}, fmt.Errorf("get function %s: %w", id, classify(err))
	}
	return information(id, types.FunctionConfiguration{
		FunctionName:           o.FunctionName,
		FunctionArn:            o.FunctionArn,
		Description:            o.Description,
		MemorySize:             o.MemorySize,
		Runtime:                o.Runtime,
		State:                  o.State,
		StateReason:            o.StateReason,
		LastUpdateStatus:       o.LastUpdateStatus,
		LastUpdateStatusReason: o.LastUpdateStatusReason,
		Timeout:                o.Timeout,
	}), nil
}

// UpdateMemory requests a memory size change. The update is applied
// asynchronously; callers poll GetFunction.
func (c *Client) UpdateMemory(ctx context.Context, id string, memory tuner.MemorySize) error {
	_, err := c.api.UpdateFunctionConfiguration(ctx, &lambda.UpdateFunctionConfigurationInput{
		FunctionName: aws.String(id),
		MemorySize:   aws.Int32(int32(memory)),
	})
	if err != nil {
		return fmt.Errorf("update memory of %s to %s: %w", id, memory, classify(err))
	}
	return nil
}

// Invoke runs the function synchronously with the log tail enabled and reads
// durations from its REPORT line. The SDK's own retries are disabled so the
// tuner's throttling backoff is the only one.
func (c *Client) Invoke(ctx context.Context, id string, payload []byte) (tuner.InvocationResult, error) {
	o, err := c.api.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(id),
		InvocationType: types.InvocationTypeRequestResponse,
		LogType:        types.LogTypeTail,
		Payload:        payload,
	}, func(o *lambda.Options) { o.RetryMaxAttempts = 1 })
	if err != nil {
		return tuner.InvocationResult{}, fmt.Errorf("invoke %s: %w", id, classify(err))
	}

	tail, err := base64.StdEncoding.DecodeString(aws.ToString(o.LogResult))
	if err != nil {
		return tuner.InvocationResult{}, fmt.Errorf("invoke %s: decode log tail: %w", id, err)
	}
	report, ok := ParseReport(string(tail))
	if !ok {
		return tuner.InvocationResult{}, fmt.Errorf("invoke %s: no report in log tail", id)
	}

	res := tuner.InvocationResult{
		Memory:         tuner.MemorySize(report.MemorySize),
		Duration:       report.Duration,
		BilledDuration: report.BilledDuration,
		InitDuration:   report.InitDuration,
		MaxMemoryUsed:  tuner.MemorySize(report.MaxMemoryUsed),
		Success:        o.FunctionError == nil,
	}
	if o.FunctionError != nil {
		res.ErrorKind = tuner.ErrorKindFunction
		if strings.Contains(string(tail), "Task timed out") || strings.Contains(string(o.Payload), "Task timed out") {
			res.ErrorKind = tuner.ErrorKindTimeout
		}
		res.Error = fmt.Sprintf("%s: %s", aws.ToString(o.FunctionError), truncate(string(o.Payload), 256))
		logrus.WithField("function", id).Debugf("function error: %s", res.Error)
	}
	return res, nil
}

// classify maps Lambda API errors onto the tuner's sentinels, keeping the
// original error in the chain.
func classify(err error) error {
	var tooMany *types.TooManyRequestsException
	var conflict *types.ResourceConflictException
	switch {
	case errors.As(err, &tooMany):
		return fmt.Errorf("%w: %w", tuner.ErrThrottled, err)
	case errors.As(err, &conflict):
		return fmt.Errorf("%w: %w", tuner.ErrResourceConflict, err)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "TooManyRequestsException", "ThrottlingException", "Throttling", "RequestLimitExceeded":
			return fmt.Errorf("%w: %w", tuner.ErrThrottled, err)
		case "ResourceConflictException":
			return fmt.Errorf("%w: %w", tuner.ErrResourceConflict, err)
		}
	}
	return err
}

func information(id string, fc types.FunctionConfiguration) tuner.FunctionInformation {
	reason := aws.ToString(fc.LastUpdateStatusReason)
	if reason == "" {
		reason = aws.ToString(fc.StateReason)
	}
	return tuner.FunctionInformation{
		ID:               id,
		Name:             aws.ToString(fc.FunctionName),
		ARN:              aws.ToString(fc.FunctionArn),
		Description:      aws.ToString(fc.Description),
		Memory:           tuner.MemorySize(aws.ToInt32(fc.MemorySize)),
		Runtime:          string(fc.Runtime),
		State:            tuner.FunctionState(fc.State),
		LastUpdateStatus: tuner.UpdateStatus(fc.LastUpdateStatus),
		Timeout:          time.Duration(aws.ToInt32(fc.Timeout)) * time.Second,
		UpdateReason:     reason,
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
