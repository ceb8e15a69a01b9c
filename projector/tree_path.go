package projector

import (
	"strconv"
	"strings"
)

const (
	treePathSeparator            = "/"
	treePathProcessInstance      = "PI_"
	treePathFlowNode             = "FN_"
	treePathFlowNodeInstance     = "FNI_"
	logMsgTreePathCacheMiss      = "call activity id not found in process cache, using calling element index"
	logMsgTreePathEmpty          = "element instance path is empty, tree path degraded to own process instance"
	logMsgTreePathInconsistent   = "element instance path does not match calling element or process definition path, tree path degraded to own process instance"
	logMsgTreePathOwnKeyNotFound = "own process instance not found in element instance path, appended as last level"
	logAttrProcessInstanceKey    = "process_instance_key"
	logAttrProcessDefinitionKey  = "process_definition_key"
	logAttrCallingElementIndex   = "calling_element_index"
	logAttrPathLength            = "path_length"
)

// TreePath is the ancestry of a process instance or flow node instance across call activity nesting,
// rendered as PI_<key>/FN_<id>/FNI_<key>/PI_<key>...
type TreePath struct {
	segments []string
}

// AppendProcessInstance appends a process instance segment.
func (p *TreePath) AppendProcessInstance(processInstanceKey int64) *TreePath {
	p.segments = append(p.segments, treePathProcessInstance+strconv.FormatInt(processInstanceKey, 10))
	return p
}

// AppendFlowNode appends a flow node segment.
func (p *TreePath) AppendFlowNode(flowNodeID string) *TreePath {
	p.segments = append(p.segments, treePathFlowNode+flowNodeID)
	return p
}

// AppendFlowNodeInstance appends a flow node instance segment.
func (p *TreePath) AppendFlowNodeInstance(flowNodeInstanceKey int64) *TreePath {
	p.segments = append(p.segments, treePathFlowNodeInstance+strconv.FormatInt(flowNodeInstanceKey, 10))
	return p
}

// String renders the path.
func (p *TreePath) String() string {
	return strings.Join(p.segments, treePathSeparator)
}

// ElementInstancePathEntry is one ancestry level: the process instance at this level and
// the element instance that leads to the next level (or the own element instance on the leaf level).
type ElementInstancePathEntry struct {
	ProcessInstanceKey int64
	ElementInstanceKey int64
}

// TreePathInput is the per-record ancestry information.
// CallingElementPath and ProcessDefinitionPath are parallel to ElementInstancePath.
type TreePathInput struct {
	ProcessInstanceKey    int64
	ElementInstancePath   []ElementInstancePathEntry
	CallingElementPath    []int32
	ProcessDefinitionPath []int64
}

// TreePathOption defines a functional option for configuring a TreePathBuilder.
type TreePathOption func(*TreePathBuilder) error

// WithTreePathLogger sets the logger that receives degradation warnings.
func WithTreePathLogger(logger Logger) TreePathOption {
	return func(b *TreePathBuilder) error {
		b.logger = logger
		return nil
	}
}

// TreePathBuilder reconstructs tree paths, resolving call activity ids through the process cache.
// It is safe for concurrent use if the cache is.
type TreePathBuilder struct {
	processCache ProcessCache
	logger       Logger
}

// NewTreePathBuilder creates a TreePathBuilder.
func NewTreePathBuilder(processCache ProcessCache, options ...TreePathOption) (*TreePathBuilder, error) {
	if processCache == nil {
		return nil, ErrNilReferenceCache
	}

	builder := &TreePathBuilder{processCache: processCache}
	for _, option := range options {
		if err := option(builder); err != nil {
			return nil, err
		}
	}

	return builder, nil
}

// ForProcessInstance builds the tree path of the process instance the input belongs to.
func (b *TreePathBuilder) ForProcessInstance(input TreePathInput) string {
	return b.build(input, nil)
}

// ForFlowNode builds the tree path of a flow node instance within the process instance the input belongs to.
func (b *TreePathBuilder) ForFlowNode(input TreePathInput, flowNodeID string, flowNodeInstanceKey int64) string {
	return b.build(input, &flowNodeLeaf{id: flowNodeID, instanceKey: flowNodeInstanceKey})
}

type flowNodeLeaf struct {
	id          string
	instanceKey int64
}

func (b *TreePathBuilder) build(input TreePathInput, leaf *flowNodeLeaf) string {
	path := &TreePath{}
	ancestors := len(input.ElementInstancePath) - 1

	switch {
	case len(input.ElementInstancePath) == 0:
		b.warn(logMsgTreePathEmpty, logAttrProcessInstanceKey, input.ProcessInstanceKey)
		return b.ownLevel(path, input.ProcessInstanceKey, leaf)

	case len(input.CallingElementPath) < ancestors || len(input.ProcessDefinitionPath) < ancestors:
		b.warn(
			logMsgTreePathInconsistent,
			logAttrProcessInstanceKey, input.ProcessInstanceKey,
			logAttrPathLength, len(input.ElementInstancePath),
		)
		return b.ownLevel(&TreePath{}, input.ProcessInstanceKey, leaf)
	}

	for i, entry := range input.ElementInstancePath {
		if entry.ProcessInstanceKey == input.ProcessInstanceKey {
			return b.ownLevel(path, entry.ProcessInstanceKey, leaf)
		}

		if i >= len(input.CallingElementPath) || i >= len(input.ProcessDefinitionPath) {
			break
		}

		path.AppendProcessInstance(entry.ProcessInstanceKey)
		path.AppendFlowNode(b.callActivityID(input.ProcessDefinitionPath[i], input.CallingElementPath[i]))
		path.AppendFlowNodeInstance(entry.ElementInstanceKey)
	}

	b.warn(logMsgTreePathOwnKeyNotFound, logAttrProcessInstanceKey, input.ProcessInstanceKey)

	return b.ownLevel(path, input.ProcessInstanceKey, leaf)
}

func (b *TreePathBuilder) ownLevel(path *TreePath, processInstanceKey int64, leaf *flowNodeLeaf) string {
	path.AppendProcessInstance(processInstanceKey)

	if leaf != nil {
		path.AppendFlowNode(leaf.id)
		path.AppendFlowNodeInstance(leaf.instanceKey)
	}

	return path.String()
}

func (b *TreePathBuilder) callActivityID(processDefinitionKey int64, callingElementIndex int32) string {
	if callActivityID, ok := ResolveCallActivityID(b.processCache, processDefinitionKey, callingElementIndex); ok {
		return callActivityID
	}

	b.warn(
		logMsgTreePathCacheMiss,
		logAttrProcessDefinitionKey, processDefinitionKey,
		logAttrCallingElementIndex, callingElementIndex,
	)

	return strconv.FormatInt(int64(callingElementIndex), 10)
}

func (b *TreePathBuilder) warn(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Warn(msg, args...)
	}
}
