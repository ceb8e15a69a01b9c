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

func Test_ListViewFlowNode_When_ProcessIsDeployed_NameAndTreePathAreResolved(t *testing.T) {
	// setup
	ctx := context.Background()
	p := givenProjection(t)
	writer := p.newWriter(t)

	// arrange
	instance := fixtures.RootProcessInstance(1, orderProcessKey, orderProcessID)
	writer.AddRecord(ctx, fixtures.ProcessDeployed(1, orderProcessKey, orderProcessID, []byte(orderBpmn)))
	writer.AddRecord(ctx, fixtures.ProcessInstanceEvent(11, 10, records.IntentElementActivating,
		fixtures.FlowNodeOf(instance, records.ElementTypeServiceTask, "charge", 11)))

	// act
	err := writer.Flush(ctx)

	// assert
	require.NoError(t, err)

	doc := p.document(t, IndexListView, "11")
	assert.Equal(t, "Charge card", doc["activityName"])
	assert.Equal(t, "charge", doc["activityId"])
	assert.Equal(t, string(records.ElementTypeServiceTask), doc["activityType"])
	assert.Equal(t, "PI_1/FN_charge/FNI_11", doc["treePath"])
	assert.Equal(t, StateActive, doc[FieldState])

	routing, _ := p.store.Routing(IndexListView, "11")
	assert.Equal(t, "1", routing, "flow node instances are routed by their process instance")

	join, ok := doc["joinRelation"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "activity", join["name"])
}

func Test_ListViewFlowNode_When_ProcessIsUnknown_NameFallsBackToElementID(t *testing.T) {
	// setup
	ctx := context.Background()
	p := givenProjection(t)
	writer := p.newWriter(t)

	// arrange
	instance := fixtures.RootProcessInstance(1, orderProcessKey, orderProcessID)
	writer.AddRecord(ctx, fixtures.ProcessInstanceEvent(11, 10, records.IntentElementActivating,
		fixtures.FlowNodeOf(instance, records.ElementTypeServiceTask, "charge", 11)))

	// act
	err := writer.Flush(ctx)

	// assert
	require.NoError(t, err)
	assert.Equal(t, "charge", p.document(t, IndexListView, "11")["activityName"])
}

func Test_ListViewFlowNode_When_Terminated_StateIsCanceled(t *testing.T) {
	// setup
	ctx := context.Background()
	p := givenProjection(t)
	writer := p.newWriter(t)
	instance := fixtures.RootProcessInstance(1, orderProcessKey, orderProcessID)
	task := fixtures.FlowNodeOf(instance, records.ElementTypeUserTask, "approve", 12)

	// arrange
	writer.AddRecord(ctx, fixtures.ProcessInstanceEvent(12, 10, records.IntentElementActivating, task))
	writer.AddRecord(ctx, fixtures.ProcessInstanceEvent(12, 20, records.IntentElementTerminated, task))

	// act
	err := writer.Flush(ctx)

	// assert
	require.NoError(t, err)

	doc := p.document(t, IndexListView, "12")
	assert.Equal(t, StateCanceled, doc[FieldState])
	assert.Equal(t, dateOfPosition20, doc[FieldEndDate])
}

func Test_ListViewFlowNode_When_RecordIsASequenceFlow_NothingIsProjected(t *testing.T) {
	// setup
	ctx := context.Background()
	p := givenProjection(t)
	writer := p.newWriter(t)
	instance := fixtures.RootProcessInstance(1, orderProcessKey, orderProcessID)

	// arrange
	writer.AddRecord(ctx, fixtures.ProcessInstanceEvent(13, 10, records.IntentElementActivating,
		fixtures.FlowNodeOf(instance, records.ElementTypeSequenceFlow, "flow1", 13)))

	// act
	err := writer.Flush(ctx)

	// assert
	require.NoError(t, err)
	assert.Zero(t, p.store.Count(IndexListView))
}

func Test_ListViewProcessInstance_When_CalledByCallActivity_TreePathSpansTheAncestry(t *testing.T) {
	// setup
	ctx := context.Background()
	p := givenProjection(t, projector.WithWatermark(projector.FirstRootProcessInstanceKey, 1))
	writer := p.newWriter(t)

	// arrange
	child := fixtures.RootProcessInstance(2, shipmentKey, shipmentID)
	child.ParentProcessInstanceKey = 1
	child.ParentElementInstanceKey = 11
	child.ElementInstancePath = [][]int64{{1, 11}, {2}}
	child.CallingElementPath = []int32{1}
	child.ProcessDefinitionPath = []int64{orderProcessKey, shipmentKey}

	writer.AddRecord(ctx, fixtures.ProcessDeployed(1, orderProcessKey, orderProcessID, []byte(orderBpmn)))
	writer.AddRecord(ctx, fixtures.ProcessInstanceEvent(2, 10, records.IntentElementActivating, child))

	// act
	err := writer.Flush(ctx)

	// assert
	require.NoError(t, err)

	doc := p.document(t, IndexListView, "2")
	assert.Equal(t, "PI_1/FN_ship/FNI_11/PI_2", doc["treePath"], "call activity ids are sorted, index 1 is ship")
	assert.Equal(t, int64(1), int64Field(t, doc, "parentProcessInstanceKey"))
	assert.Equal(t, int64(11), int64Field(t, doc, "parentFlowNodeInstanceKey"))
	assert.Equal(t, int64(1), int64Field(t, doc, "rootProcessInstanceKey"))
}

func Test_ListViewProcessInstance_When_RootInstanceIsFirstSeen_ItSetsTheRootKeyWatermark(t *testing.T) {
	// setup
	ctx := context.Background()
	p := givenProjection(t)
	writer := p.newWriter(t)

	// arrange
	writer.AddRecord(ctx, fixtures.ProcessInstanceEvent(5, 10, records.IntentElementActivating,
		fixtures.RootProcessInstance(5, orderProcessKey, orderProcessID)))

	// act
	err := writer.Flush(ctx)

	// assert
	require.NoError(t, err)

	watermark, set := p.metadata.FirstKey(projector.FirstRootProcessInstanceKey)
	assert.True(t, set)
	assert.Equal(t, int64(5), watermark)
	assert.Equal(t, int64(5), int64Field(t, p.document(t, IndexListView, "5"), "rootProcessInstanceKey"))
}

func Test_ListViewProcessInstance_When_InstanceIsBeforeTheRootKeyWatermark_RootKeyIsOmitted(t *testing.T) {
	// setup
	ctx := context.Background()
	p := givenProjection(t, projector.WithWatermark(projector.FirstRootProcessInstanceKey, 500))
	writer := p.newWriter(t)

	// arrange
	writer.AddRecord(ctx, fixtures.ProcessInstanceEvent(400, 10, records.IntentElementActivating,
		fixtures.RootProcessInstance(400, orderProcessKey, orderProcessID)))
	writer.AddRecord(ctx, fixtures.ProcessInstanceEvent(600, 11, records.IntentElementActivating,
		fixtures.RootProcessInstance(600, orderProcessKey, orderProcessID)))

	// act
	err := writer.Flush(ctx)

	// assert
	require.NoError(t, err)
	assert.NotContains(t, p.document(t, IndexListView, "400"), "rootProcessInstanceKey")
	assert.Equal(t, int64(600), int64Field(t, p.document(t, IndexListView, "600"), "rootProcessInstanceKey"))
}

func Test_ListViewProcessInstance_When_ProcessIsDeployed_ProcessNameIsResolved(t *testing.T) {
	// setup
	ctx := context.Background()
	p := givenProjection(t)
	writer := p.newWriter(t)

	// arrange
	writer.AddRecord(ctx, fixtures.ProcessDeployed(1, orderProcessKey, orderProcessID, []byte(orderBpmn)))
	writer.AddRecord(ctx, fixtures.ProcessInstanceEvent(1, 10, records.IntentElementActivating,
		fixtures.RootProcessInstance(1, orderProcessKey, orderProcessID)))

	// act
	err := writer.Flush(ctx)

	// assert
	require.NoError(t, err)

	doc := p.document(t, IndexListView, "1")
	assert.Equal(t, "Order Process", doc["processName"])

	join, ok := doc["joinRelation"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "processInstance", join["name"])
	assert.NotContains(t, join, "parent")
}
