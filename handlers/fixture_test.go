package handlers_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	. "github.com/AntonStoeckl/process-projector-go/handlers"
	"github.com/AntonStoeckl/process-projector-go/projector"
	"github.com/AntonStoeckl/process-projector-go/projector/memengine"
	"github.com/AntonStoeckl/process-projector-go/testutil/helper"
)

const (
	orderProcessKey  int64 = 100
	orderProcessID         = "order"
	shipmentKey      int64 = 200
	shipmentID             = "shipment"
	dateOfPosition10       = "2023-11-14T22:13:30.000Z"
	dateOfPosition20       = "2023-11-14T22:13:40.000Z"
)

const orderBpmn = `<?xml version="1.0" encoding="UTF-8"?>
<bpmn:definitions xmlns:bpmn="http://www.omg.org/spec/BPMN/20100524/MODEL" id="definitions">
  <bpmn:process id="order" name="Order Process" isExecutable="true">
    <bpmn:startEvent id="start" name="Order received"/>
    <bpmn:serviceTask id="charge" name="Charge card"/>
    <bpmn:callActivity id="ship" name="Ship order"/>
    <bpmn:callActivity id="bill" name="Bill customer"/>
    <bpmn:subProcess id="review" name="Review">
      <bpmn:userTask id="approve" name="Approve"/>
    </bpmn:subProcess>
    <bpmn:sequenceFlow id="flow1" sourceRef="start" targetRef="charge"/>
    <bpmn:endEvent id="end"/>
  </bpmn:process>
  <bpmn:process id="other" name="Other Process">
    <bpmn:serviceTask id="elsewhere" name="Elsewhere"/>
  </bpmn:process>
</bpmn:definitions>`

// projection bundles the shared state of all partition writers of one exporter.
type projection struct {
	store        *memengine.DocumentStore
	processCache *projector.LRUReferenceCache[int64, projector.CachedProcess]
	metadata     *projector.ExporterMetadata
	registry     projector.Registry
	logSpy       *helper.LogHandlerSpy
}

func givenProjection(t testing.TB, metadataOptions ...projector.MetadataOption) *projection {
	processCache, err := projector.NewLRUReferenceCache[int64, projector.CachedProcess](16, projector.WithCacheName("process"))
	require.NoError(t, err, "error in arranging test data")

	metadata, err := projector.NewExporterMetadata(metadataOptions...)
	require.NoError(t, err, "error in arranging test data")

	logSpy := helper.NewLogHandlerSpy(false)

	registry, err := NewRegistry(Dependencies{
		ProcessCache: processCache,
		Metadata:     metadata,
		Logger:       slog.New(logSpy),
	})
	require.NoError(t, err, "error in arranging test data")

	return &projection{
		store:        memengine.NewDocumentStore(),
		processCache: processCache,
		metadata:     metadata,
		registry:     registry,
		logSpy:       logSpy,
	}
}

// newWriter returns a fresh writer, as a separate partition consumer would own it.
func (p *projection) newWriter(t testing.TB) *projector.BatchWriter {
	writer, err := projector.NewBatchWriter(p.registry, p.store)
	require.NoError(t, err, "error in arranging test data")

	return writer
}

func (p *projection) document(t testing.TB, index, id string) projector.Document {
	doc, found := p.store.Get(index, id)
	require.True(t, found, "document %s/%s should exist", index, id)

	return doc
}

func int64Field(t testing.TB, doc projector.Document, field string) int64 {
	value, ok := doc.Int64(field)
	require.True(t, ok, "field %s should be numeric", field)

	return value
}
