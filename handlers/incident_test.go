package handlers_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/AntonStoeckl/process-projector-go/handlers"
	"github.com/AntonStoeckl/process-projector-go/projector"
	"github.com/AntonStoeckl/process-projector-go/records"
	"github.com/AntonStoeckl/process-projector-go/testutil/fixtures"
)

func incidentRecord(position int64, intent projector.Intent, jobKey int64) projector.Record {
	return fixtures.NewRecord(records.ValueTypeIncident, intent, 77, position, records.IncidentValue{
		AncestryPaths: records.AncestryPaths{
			ElementInstancePath:   [][]int64{{1, 11}},
			ProcessDefinitionPath: []int64{orderProcessKey},
		},
		ErrorType:            "JOB_NO_RETRIES",
		ErrorMessage:         "card declined",
		BpmnProcessID:        orderProcessID,
		ProcessDefinitionKey: orderProcessKey,
		ProcessInstanceKey:   1,
		ElementID:            "charge",
		ElementInstanceKey:   11,
		JobKey:               jobKey,
		TenantID:             fixtures.TenantID,
	})
}

func Test_Incident_When_CreatedAndResolved_StateIsResolved(t *testing.T) {
	// setup
	ctx := context.Background()
	p := givenProjection(t)
	writer := p.newWriter(t)

	// arrange
	writer.AddRecord(ctx, incidentRecord(10, records.IntentCreated, 33))
	writer.AddRecord(ctx, incidentRecord(20, records.IntentResolved, 33))

	// act
	err := writer.Flush(ctx)

	// assert
	require.NoError(t, err)

	doc := p.document(t, IndexIncident, "77")
	assert.Equal(t, IncidentStateResolved, doc[FieldState])
	assert.Equal(t, dateOfPosition10, doc["creationTime"])
	assert.Equal(t, int64(33), int64Field(t, doc, "jobKey"))
	assert.Equal(t, "PI_1/FN_charge/FNI_11", doc["treePath"])
}

func Test_Incident_When_JobKeyIsTheNotApplicableSentinel_ItIsOmitted(t *testing.T) {
	// setup
	ctx := context.Background()
	p := givenProjection(t)
	writer := p.newWriter(t)

	// arrange
	writer.AddRecord(ctx, incidentRecord(10, records.IntentCreated, -1))

	// act
	err := writer.Flush(ctx)

	// assert
	require.NoError(t, err)

	doc := p.document(t, IndexIncident, "77")
	assert.Equal(t, IncidentStateActive, doc[FieldState])
	assert.NotContains(t, doc, "jobKey")
}

func Test_Incident_When_CreationArrivesAfterResolution_ItDoesNotReopen(t *testing.T) {
	// setup
	ctx := context.Background()
	p := givenProjection(t)
	resolvingWriter := p.newWriter(t)
	creatingWriter := p.newWriter(t)

	// arrange
	resolvingWriter.AddRecord(ctx, incidentRecord(20, records.IntentResolved, 33))
	creatingWriter.AddRecord(ctx, incidentRecord(10, records.IntentCreated, 33))
	require.NoError(t, resolvingWriter.Flush(ctx), "error in arranging test data")

	// act
	err := creatingWriter.Flush(ctx)

	// assert
	require.NoError(t, err)

	doc := p.document(t, IndexIncident, "77")
	assert.Equal(t, IncidentStateResolved, doc[FieldState])
	assert.Equal(t, dateOfPosition10, doc["creationTime"], "unguarded fields are still merged")
	assert.Equal(t, int64(20), int64Field(t, doc, FieldPosition))
}
