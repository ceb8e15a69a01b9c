package projector

// CachedProcess is the reference cache entry of a deployed process definition.
type CachedProcess struct {
	BpmnProcessID string
	Name          string
	Version       int32
	VersionTag    string

	// CallElementIDs are the ids of all call activities of the process, sorted lexicographically.
	// A calling element index of a record refers to this order.
	CallElementIDs []string

	// FlowNodeNames maps flow node id to flow node name.
	FlowNodeNames map[string]string
}

// ProcessCache is the reference cache of process definitions keyed by process definition key.
type ProcessCache = ReferenceCache[int64, CachedProcess]

// DisplayName returns the process name, falling back to the bpmn process id.
func (p CachedProcess) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}

	return p.BpmnProcessID
}

// FlowNodeName returns the name of a flow node, falling back to its id.
func (p CachedProcess) FlowNodeName(flowNodeID string) string {
	if name, ok := p.FlowNodeNames[flowNodeID]; ok && name != "" {
		return name
	}

	return flowNodeID
}

// ResolveCallActivityID returns the id of the call activity at index within the process definition.
// It reports false on a cache miss or an index out of range.
func ResolveCallActivityID(cache ProcessCache, processDefinitionKey int64, index int32) (string, bool) {
	process, ok := cache.Get(processDefinitionKey)
	if !ok {
		return "", false
	}

	if index < 0 || int(index) >= len(process.CallElementIDs) {
		return "", false
	}

	return process.CallElementIDs[index], true
}
