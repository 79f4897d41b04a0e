package aws

import (
	"context"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	athenatypes "github.com/aws/aws-sdk-go-v2/service/athena/types"

	"BookMentions/internal/domain"
	"BookMentions/internal/ports"
)

// AthenaAPI is the subset of the Athena client the engine uses.
type AthenaAPI interface {
	StartQueryExecution(ctx context.Context, in *athena.StartQueryExecutionInput, opts ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error)
	GetQueryExecution(ctx context.Context, in *athena.GetQueryExecutionInput, opts ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error)
}

// AthenaEngine runs statements against the archive index catalog.
type AthenaEngine struct {
	api       AthenaAPI
	workGroup string
	catalog   string
	database  string
}

var _ ports.QueryEngine = (*AthenaEngine)(nil)

// NewAthenaEngine binds statements to a work group, catalog and database.
func NewAthenaEngine(api AthenaAPI, workGroup, catalog, database string) *AthenaEngine {
	return &AthenaEngine{api: api, workGroup: workGroup, catalog: catalog, database: database}
}

// Start submits a statement and returns its execution id.
func (e *AthenaEngine) Start(ctx context.Context, statement, outputLocation string) (string, error) {
	out, err := e.api.StartQueryExecution(ctx, &athena.StartQueryExecutionInput{
		QueryString:         sdkaws.String(statement),
		WorkGroup:           sdkaws.String(e.workGroup),
		ResultConfiguration: &athenatypes.ResultConfiguration{OutputLocation: sdkaws.String(outputLocation)},
		QueryExecutionContext: &athenatypes.QueryExecutionContext{
			Catalog:  sdkaws.String(e.catalog),
			Database: sdkaws.String(e.database),
		},
	})
	if err != nil {
		return "", fmt.Errorf("start query: %w", err)
	}
	return sdkaws.ToString(out.QueryExecutionId), nil
}

// Status polls one execution.
func (e *AthenaEngine) Status(ctx context.Context, executionID string) (domain.StatementStatus, error) {
	out, err := e.api.GetQueryExecution(ctx, &athena.GetQueryExecutionInput{QueryExecutionId: sdkaws.String(executionID)})
	if err != nil {
		return domain.StatementStatus{}, fmt.Errorf("get query execution: %w", err)
	}
	if out.QueryExecution == nil || out.QueryExecution.Status == nil {
		return domain.StatementStatus{State: domain.StatementQueued}, nil
	}
	st := out.QueryExecution.Status
	return domain.StatementStatus{
		State:  domain.StatementState(st.State),
		Reason: sdkaws.ToString(st.StateChangeReason),
	}, nil
}
