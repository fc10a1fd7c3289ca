package awslambda

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lambda-tuner/lambda-tuner/tuner"
)

const reportTail = "START RequestId: 8f5 Version: $LATEST\n" +
	"END RequestId: 8f5\n" +
	"REPORT RequestId: 8f5\tDuration: 102.25 ms\tBilled Duration: 103 ms\tMemory Size: 512 MB\tMax Memory Used: 71 MB\tInit Duration: 150.50 ms\t\n"

// jsonReportTail is the same invocation logged with LogFormat JSON.
const jsonReportTail = `{"time":"2024-05-01T10:00:00.000Z","type":"platform.start","record":{"requestId":"8f5","version":"$LATEST"}}` + "\n" +
	`{"time":"2024-05-01T10:00:00.103Z","type":"platform.report","record":{"requestId":"8f5","metrics":{"durationMs":102.25,"billedDurationMs":103,"memorySizeMB":512,"maxMemoryUsedMB":71,"initDurationMs":150.5},"status":"success"}}` + "\n"

type fakeAPI struct {
	pages     map[string]*lambda.ListFunctionsOutput
	config    *lambda.GetFunctionConfigurationOutput
	invoke    *lambda.InvokeOutput
	err       error
	updates   []*lambda.UpdateFunctionConfigurationInput
	invokeIn  *lambda.InvokeInput
	invokeOpt lambda.Options
}

func (f *fakeAPI) ListFunctions(ctx context.Context, in *lambda.ListFunctionsInput, _ ...func(*lambda.Options)) (*lambda.ListFunctionsOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pages[aws.ToString(in.Marker)], nil
}

func (f *fakeAPI) GetFunctionConfiguration(ctx context.Context, in *lambda.GetFunctionConfigurationInput, _ ...func(*lambda.Options)) (*lambda.GetFunctionConfigurationOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.config, nil
}

func (f *fakeAPI) UpdateFunctionConfiguration(ctx context.Context, in *lambda.UpdateFunctionConfigurationInput, _ ...func(*lambda.Options)) (*lambda.UpdateFunctionConfigurationOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.updates = append(f.updates, in)
	return &lambda.UpdateFunctionConfigurationOutput{}, nil
}

func (f *fakeAPI) Invoke(ctx context.Context, in *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error) {
	f.invokeIn = in
	for _, fn := range optFns {
		fn(&f.invokeOpt)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.invoke, nil
}

func logResult(s string) *string {
	return aws.String(base64.StdEncoding.EncodeToString([]byte(s)))
}

func TestClient_ListFunctions_FollowsPages(t *testing.T) {
	api := &fakeAPI{pages: map[string]*lambda.ListFunctionsOutput{
		"": {
			Functions:  []types.FunctionConfiguration{{FunctionName: aws.String("a"), MemorySize: aws.Int32(128)}},
			NextMarker: aws.String("page-2"),
		},
		"page-2": {
			Functions: []types.FunctionConfiguration{{FunctionName: aws.String("b"), MemorySize: aws.Int32(3008), State: types.StateActive}},
		},
	}}

	fns, err := NewFromAPI(api).ListFunctions(context.Background())

	require.NoError(t, err)
	require.Len(t, fns, 2)
	assert.Equal(t, "a", fns[0].ID)
	assert.Equal(t, "b", fns[1].ID)
	assert.Equal(t, tuner.MemorySize(3008), fns[1].Memory)
	assert.Equal(t, tuner.FunctionStateActive, fns[1].State)
}

func TestClient_GetFunction_MapsConfiguration(t *testing.T) {
	api := &fakeAPI{config: &lambda.GetFunctionConfigurationOutput{
		FunctionName:           aws.String("orders"),
		FunctionArn:            aws.String("arn:aws:lambda:us-east-1:123456789012:function:orders"),
		MemorySize:             aws.Int32(1024),
		Timeout:                aws.Int32(30),
		Runtime:                types.Runtime("provided.al2023"),
		State:                  types.StateActive,
		LastUpdateStatus:       types.LastUpdateStatusInProgress,
		LastUpdateStatusReason: aws.String("updating"),
	}}

	info, err := NewFromAPI(api).GetFunction(context.Background(), "orders")

	require.NoError(t, err)
	assert.Equal(t, "orders", info.ID)
	assert.Equal(t, tuner.MemorySize(1024), info.Memory)
	assert.Equal(t, 30*time.Second, info.Timeout)
	assert.Equal(t, tuner.UpdateStatusInProgress, info.LastUpdateStatus)
	assert.Equal(t, "updating", info.UpdateReason)
	assert.False(t, info.UpdateApplied(1024))
}

func TestClient_UpdateMemory_SendsSize(t *testing.T) {
	api := &fakeAPI{}

	require.NoError(t, NewFromAPI(api).UpdateMemory(context.Background(), "orders", 1536))

	require.Len(t, api.updates, 1)
	assert.Equal(t, "orders", aws.ToString(api.updates[0].FunctionName))
	assert.Equal(t, int32(1536), aws.ToInt32(api.updates[0].MemorySize))
}

func TestClient_Invoke_ReadsReport(t *testing.T) {
	for name, tail := range map[string]string{"text": reportTail, "json": jsonReportTail} {
		t.Run(name, func(t *testing.T) {
			api := &fakeAPI{invoke: &lambda.InvokeOutput{StatusCode: 200, LogResult: logResult(tail)}}

			res, err := NewFromAPI(api).Invoke(context.Background(), "orders", []byte(`{"id":1}`))

			require.NoError(t, err)
			assert.True(t, res.Success)
			assert.InDelta(t, 102.25, res.Duration, 1e-9)
			assert.InDelta(t, 103, res.BilledDuration, 1e-9)
			assert.InDelta(t, 150.5, res.InitDuration, 1e-9)
			assert.Equal(t, tuner.MemorySize(512), res.Memory)
			assert.Equal(t, tuner.MemorySize(71), res.MaxMemoryUsed)

			assert.Equal(t, types.LogTypeTail, api.invokeIn.LogType)
			assert.Equal(t, types.InvocationTypeRequestResponse, api.invokeIn.InvocationType)
			assert.Equal(t, `{"id":1}`, string(api.invokeIn.Payload))
			assert.Equal(t, 1, api.invokeOpt.RetryMaxAttempts)
		})
	}
}

func TestClient_Invoke_FunctionError(t *testing.T) {
	api := &fakeAPI{invoke: &lambda.InvokeOutput{
		StatusCode:    200,
		FunctionError: aws.String("Unhandled"),
		Payload:       []byte(`{"errorMessage":"boom"}`),
		LogResult:     logResult(reportTail),
	}}

	res, err := NewFromAPI(api).Invoke(context.Background(), "orders", nil)

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, tuner.ErrorKindFunction, res.ErrorKind)
	assert.Contains(t, res.Error, "boom")
}

func TestClient_Invoke_TaskTimedOut(t *testing.T) {
	api := &fakeAPI{invoke: &lambda.InvokeOutput{
		StatusCode:    200,
		FunctionError: aws.String("Unhandled"),
		Payload:       []byte(`{"errorMessage":"2024-01-01T00:00:00Z 8f5 Task timed out after 3.00 seconds"}`),
		LogResult:     logResult(reportTail),
	}}

	res, err := NewFromAPI(api).Invoke(context.Background(), "orders", nil)

	require.NoError(t, err)
	assert.Equal(t, tuner.ErrorKindTimeout, res.ErrorKind)
}

func TestClient_Invoke_MissingReport(t *testing.T) {
	api := &fakeAPI{invoke: &lambda.InvokeOutput{StatusCode: 200, LogResult: logResult("START RequestId: 1\n")}}

	_, err := NewFromAPI(api).Invoke(context.Background(), "orders", nil)

	assert.Error(t, err)
}

func TestClient_ClassifiesErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"typed throttle", &types.TooManyRequestsException{Message: aws.String("Rate exceeded")}, tuner.ErrThrottled},
		{"generic throttle", &smithy.GenericAPIError{Code: "ThrottlingException", Message: "slow down"}, tuner.ErrThrottled},
		{"typed conflict", &types.ResourceConflictException{Message: aws.String("update in progress")}, tuner.ErrResourceConflict},
		{"generic conflict", &smithy.GenericAPIError{Code: "ResourceConflictException"}, tuner.ErrResourceConflict},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			api := &fakeAPI{err: tc.err}
			c := NewFromAPI(api)

			_, err := c.Invoke(context.Background(), "orders", nil)
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, tc.err)

			err = c.UpdateMemory(context.Background(), "orders", 512)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestClient_OtherErrorsPassThrough(t *testing.T) {
	notFound := &types.ResourceNotFoundException{Message: aws.String("no such function")}
	api := &fakeAPI{err: notFound}

	_, err := NewFromAPI(api).GetFunction(context.Background(), "missing")

	var nf *types.ResourceNotFoundException
	assert.True(t, errors.As(err, &nf))
	assert.False(t, errors.Is(err, tuner.ErrThrottled))
}
