// Package handlers holds the concrete export handlers that map process orchestration records
// onto the documents of the list view, the process, incident, decision, authorization and
// message subscription indices.
//
// All handlers are wired by NewRegistry:
//
//	registry, err := handlers.NewRegistry(handlers.Dependencies{
//		ProcessCache: processCache,
//		Metadata:     metadata,
//		Logger:       logger,
//	})
package handlers

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/AntonStoeckl/process-projector-go/projector"
	"github.com/AntonStoeckl/process-projector-go/records"
)

const (
	IndexProcess                       = "process"
	IndexListView                      = "list-view"
	IndexIncident                      = "incident"
	IndexDecisionInstance              = "decision-instance"
	IndexAuthorization                 = "authorization"
	IndexAuthorizationGrant            = "authorization-grant"
	IndexCorrelatedMessageSubscription = "correlated-message-subscription"
)

const (
	FieldPosition = "position"
	FieldState    = "state"
	FieldEndDate  = "endDate"

	// dateLayout renders record timestamps in documents.
	dateLayout = "2006-01-02T15:04:05.000Z07:00"
)

var ErrNilProcessCache = errors.New("nil process cache supplied")
var ErrNilExporterMetadata = errors.New("nil exporter metadata supplied")

// Dependencies are the shared collaborators of the handlers.
// TreePathBuilder is optional; a builder over ProcessCache is created if it is nil.
type Dependencies struct {
	ProcessCache    projector.ProcessCache
	Metadata        *projector.ExporterMetadata
	TreePathBuilder *projector.TreePathBuilder
	Logger          projector.Logger
}

// NewRegistry binds all handlers into a projector.Registry.
func NewRegistry(deps Dependencies) (projector.Registry, error) {
	if deps.ProcessCache == nil {
		return projector.Registry{}, ErrNilProcessCache
	}

	if deps.Metadata == nil {
		return projector.Registry{}, ErrNilExporterMetadata
	}

	if deps.TreePathBuilder == nil {
		builder, err := projector.NewTreePathBuilder(deps.ProcessCache, projector.WithTreePathLogger(deps.Logger))
		if err != nil {
			return projector.Registry{}, err
		}
		deps.TreePathBuilder = builder
	}

	return projector.NewRegistryBuilder().
		With(projector.Bind[records.ProcessValue, *ProcessEntity](NewProcessHandler(deps.ProcessCache, deps.Logger))).
		With(projector.Bind[records.ProcessInstanceValue, *ProcessInstanceEntity](
			NewListViewProcessInstanceHandler(deps.ProcessCache, deps.Metadata, deps.TreePathBuilder))).
		With(projector.Bind[records.ProcessInstanceValue, *FlowNodeInstanceEntity](
			NewListViewFlowNodeHandler(deps.ProcessCache, deps.TreePathBuilder))).
		With(projector.Bind[records.IncidentValue, *IncidentEntity](NewIncidentHandler(deps.TreePathBuilder))).
		With(projector.Bind[records.DecisionEvaluationValue, *DecisionInstanceEntity](NewDecisionEvaluationHandler())).
		With(projector.Bind[records.AuthorizationValue, *AuthorizationEntity](NewAuthorizationHandler())).
		With(projector.Bind[records.AuthorizationValue, *AuthorizationGrantEntity](NewAuthorizationGrantHandler())).
		With(projector.Bind[records.ProcessMessageSubscriptionValue, *CorrelatedMessageSubscriptionEntity](
			NewCorrelatedMessageSubscriptionHandler(deps.Metadata))).
		Build()
}

func formatKey(key int64) string {
	return strconv.FormatInt(key, 10)
}

func formatDate(metadata projector.Metadata) string {
	return metadata.Time().Format(dateLayout)
}

// positiveKey maps the "not applicable" sentinels (zero or negative keys) to zero, so omitempty leaves the field unset.
func positiveKey(key int64) int64 {
	if key <= 0 {
		return 0
	}

	return key
}

// putIfSet adds a field to doc unless the value is its zero value.
func putIfSet[T comparable](doc projector.Document, field string, value T) {
	var zero T
	if value != zero {
		doc[field] = value
	}
}

// toDocument converts an entity to its document.
func toDocument(entity projector.Entity) (projector.Document, error) {
	doc, err := projector.ToDocument(entity)
	if err != nil {
		return nil, fmt.Errorf("entity %s: %w", entity.ID(), err)
	}

	return doc, nil
}
