package handlers_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/AntonStoeckl/process-projector-go/handlers"
	"github.com/AntonStoeckl/process-projector-go/testutil/fixtures"
)

func Test_Process_When_Deployed_DocumentAndProcessCacheAreFilled(t *testing.T) {
	// setup
	ctx := context.Background()
	p := givenProjection(t)
	writer := p.newWriter(t)

	// arrange
	writer.AddRecord(ctx, fixtures.ProcessDeployed(1, orderProcessKey, orderProcessID, []byte(orderBpmn)))

	// act
	err := writer.Flush(ctx)

	// assert
	require.NoError(t, err)

	doc := p.document(t, IndexProcess, "100")
	assert.Equal(t, "Order Process", doc["name"])
	assert.Equal(t, orderProcessID, doc["bpmnProcessId"])
	assert.Equal(t, []string{"bill", "ship"}, doc.Strings("callActivityIds"))
	assert.Equal(t, orderBpmn, doc["bpmnXml"])

	flowNodes, ok := doc["flowNodes"].([]any)
	require.True(t, ok)
	assert.Len(t, flowNodes, 8, "flow nodes of the sub process count, the other process does not")

	cached, found := p.processCache.Get(orderProcessKey)
	require.True(t, found)
	assert.Equal(t, []string{"bill", "ship"}, cached.CallElementIDs)
	assert.Equal(t, "Approve", cached.FlowNodeName("approve"))
	assert.Equal(t, "Order Process", cached.DisplayName())
}

func Test_Process_When_ResourceIsNotParsable_ItDegradesToTheBpmnProcessID(t *testing.T) {
	// setup
	ctx := context.Background()
	p := givenProjection(t)
	writer := p.newWriter(t)

	// arrange
	writer.AddRecord(ctx, fixtures.ProcessDeployed(1, orderProcessKey, orderProcessID, []byte(`<bpmn:process id="order">`)))

	// act
	err := writer.Flush(ctx)

	// assert
	require.NoError(t, err)

	doc := p.document(t, IndexProcess, "100")
	assert.Equal(t, orderProcessID, doc["name"])
	assert.Empty(t, doc.Strings("callActivityIds"))

	cached, found := p.processCache.Get(orderProcessKey)
	require.True(t, found, "a degraded process is still cached")
	assert.Equal(t, orderProcessID, cached.DisplayName())
	assert.Equal(t, "charge", cached.FlowNodeName("charge"))

	assert.True(t, p.logSpy.
		HasWarnLogWithMessage("parsing the BPMN resource failed, process projected without flow node names").
		WithAttr("bpmn_process_id", orderProcessID).
		WithAttr("process_definition_key", "100").
		WithAttrKey("error").
		Assert())
}
