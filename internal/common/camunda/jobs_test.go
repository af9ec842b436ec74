package camunda

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/commands"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"google.golang.org/grpc"

	apperrors "hajj-assistant/internal/common/errors"
	"hajj-assistant/internal/common/logger"
	"hajj-assistant/internal/common/metrics"
	"hajj-assistant/internal/common/observability"
	"hajj-assistant/pkg/registry"
)

// fakeGateway answers the job commands in memory. Unimplemented RPCs panic
// through the nil embedded interface.
type fakeGateway struct {
	pb.GatewayClient
	completeErrs []error
	completed    []*pb.CompleteJobRequest
	completes    int
	thrown       []*pb.ThrowErrorRequest
	failed       []*pb.FailJobRequest
}

func (g *fakeGateway) CompleteJob(_ context.Context, in *pb.CompleteJobRequest, _ ...grpc.CallOption) (*pb.CompleteJobResponse, error) {
	g.completes++
	if g.completes <= len(g.completeErrs) {
		return nil, g.completeErrs[g.completes-1]
	}
	g.completed = append(g.completed, in)
	return &pb.CompleteJobResponse{}, nil
}

func (g *fakeGateway) ThrowError(_ context.Context, in *pb.ThrowErrorRequest, _ ...grpc.CallOption) (*pb.ThrowErrorResponse, error) {
	g.thrown = append(g.thrown, in)
	return &pb.ThrowErrorResponse{}, nil
}

func (g *fakeGateway) FailJob(_ context.Context, in *pb.FailJobRequest, _ ...grpc.CallOption) (*pb.FailJobResponse, error) {
	g.failed = append(g.failed, in)
	return &pb.FailJobResponse{}, nil
}

func noRetry(context.Context, error) bool { return false }

type fakeJobClient struct{ gw *fakeGateway }

func (c fakeJobClient) NewCompleteJobCommand() commands.CompleteJobCommandStep1 {
	return commands.NewCompleteJobCommand(c.gw, noRetry)
}

func (c fakeJobClient) NewFailJobCommand() commands.FailJobCommandStep1 {
	return commands.NewFailJobCommand(c.gw, noRetry)
}

func (c fakeJobClient) NewThrowErrorCommand() commands.ThrowErrorCommandStep1 {
	return commands.NewThrowErrorCommand(c.gw, noRetry)
}

func testJob(vars string) entities.Job {
	return entities.Job{ActivatedJob: &pb.ActivatedJob{Key: 42, Type: "match-agency", Retries: 3, Variables: vars}}
}

func newTestJobs(t *testing.T, taskType string) (*Jobs, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	obs := observability.NewWithReader("test", reader)
	return NewJobs(taskType, fastRetry(2), obs, logger.NewTestLogger(t)), reader
}

// jobPoints returns the jobs.processed count and the number of
// jobs.duration observations for status.
func jobPoints(t *testing.T, reader *sdkmetric.ManualReader, status string) (int64, uint64) {
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	want := attribute.Key("status")
	var count int64
	var observed uint64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				if m.Name != "jobs.processed" {
					continue
				}
				for _, dp := range data.DataPoints {
					if v, ok := dp.Attributes.Value(want); ok && v.AsString() == status {
						count += dp.Value
					}
				}
			case metricdata.Histogram[float64]:
				if m.Name != "jobs.duration" {
					continue
				}
				for _, dp := range data.DataPoints {
					if v, ok := dp.Attributes.Value(want); ok && v.AsString() == status {
						observed += dp.Count
					}
				}
			}
		}
	}
	return count, observed
}

// ==========================
// Completion
// ==========================

func TestJobs_Complete(t *testing.T) {
	jobs, reader := newTestJobs(t, "jobs-complete")
	gw := &fakeGateway{completeErrs: []error{errors.New("rpc error: code = Unavailable desc = connection refused")}}
	before := testutil.ToFloat64(metrics.WorkerJobsCompleted.WithLabelValues("jobs-complete"))

	err := jobs.Complete(context.Background(), fakeJobClient{gw}, testJob("{}"), time.Now(), map[string]interface{}{"verdict": "AUTHORIZED"})

	require.NoError(t, err)
	assert.Equal(t, 2, gw.completes, "transient failure is re-sent")
	require.Len(t, gw.completed, 1)
	assert.Equal(t, int64(42), gw.completed[0].JobKey)
	assert.JSONEq(t, `{"verdict":"AUTHORIZED"}`, gw.completed[0].Variables)

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.WorkerJobsCompleted.WithLabelValues("jobs-complete")))
	count, observed := jobPoints(t, reader, StatusCompleted)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, uint64(1), observed)
}

func TestJobs_CompleteSendFails(t *testing.T) {
	jobs, reader := newTestJobs(t, "jobs-send-failed")
	gw := &fakeGateway{completeErrs: []error{errors.New("rpc error: code = NotFound desc = job 42 not found")}}

	err := jobs.Complete(context.Background(), fakeJobClient{gw}, testJob("{}"), time.Now(), map[string]interface{}{})

	require.Error(t, err)
	assert.Equal(t, 1, gw.completes)
	count, _ := jobPoints(t, reader, StatusSendFailed)
	assert.Equal(t, int64(1), count)
	count, _ = jobPoints(t, reader, StatusCompleted)
	assert.Zero(t, count)
}

// ==========================
// Failure
// ==========================

func TestJobs_Fail(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantThrow string
		wantFail  bool
	}{
		{name: "unknown error is thrown", err: errors.New("boom"), wantThrow: "INTERNAL_ERROR"},
		{name: "invalid input is thrown", err: apperrors.NewInvalidInputError("name is required"), wantThrow: "INVALID_INPUT"},
		{name: "retryable error fails with retries", err: apperrors.NewExternalServiceError("session-store", errors.New("down")), wantFail: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs, reader := newTestJobs(t, "jobs-fail")
			gw := &fakeGateway{}

			jobs.Fail(context.Background(), fakeJobClient{gw}, testJob("{}"), time.Now(), tt.err)

			if tt.wantFail {
				require.Len(t, gw.failed, 1)
				assert.Empty(t, gw.thrown)
				assert.Equal(t, int32(2), gw.failed[0].Retries)
			} else {
				require.Len(t, gw.thrown, 1)
				assert.Equal(t, tt.wantThrow, gw.thrown[0].ErrorCode)
			}
			count, observed := jobPoints(t, reader, StatusFailed)
			assert.Equal(t, int64(1), count)
			assert.Equal(t, uint64(1), observed)
		})
	}
}

func TestValidateVariables_RejectsBeforeHandler(t *testing.T) {
	reg, err := registry.LoadRegistry("../../../configs/activity-registry.json")
	require.NoError(t, err)
	activity, err := reg.Find("query-agencies")
	require.NoError(t, err)

	jobs, reader := newTestJobs(t, "query-agencies")
	called := false
	handle := ValidateVariables(activity, func(worker.JobClient, entities.Job) { called = true }, jobs)

	gw := &fakeGateway{}
	handle(fakeJobClient{gw}, testJob(`{"queryType":"everything"}`))

	assert.False(t, called)
	require.Len(t, gw.thrown, 1)
	assert.Equal(t, "SCHEMA_VALIDATION_FAILED", gw.thrown[0].ErrorCode)
	count, _ := jobPoints(t, reader, StatusFailed)
	assert.Equal(t, int64(1), count)

	handle(fakeJobClient{gw}, testJob(`{"queryType":"registry_stats"}`))
	assert.True(t, called)
}
