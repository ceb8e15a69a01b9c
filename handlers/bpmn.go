package handlers

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"slices"
)

const (
	bpmnElementProcess      = "process"
	bpmnElementCallActivity = "callActivity"
	bpmnAttrID              = "id"
	bpmnAttrName            = "name"
)

var ErrProcessNotInResource = errors.New("process not found in BPMN resource")

// bpmnProcess is what the projection needs from a BPMN model: names and call activities.
type bpmnProcess struct {
	name            string
	flowNodeNames   map[string]string
	callActivityIDs []string
}

// parseBpmnProcess extracts the process with bpmnProcessID from a BPMN XML resource.
// Elements of nested sub processes belong to the process; other processes of the same resource are skipped.
func parseBpmnProcess(resource []byte, bpmnProcessID string) (bpmnProcess, error) {
	decoder := xml.NewDecoder(bytes.NewReader(resource))

	process := bpmnProcess{flowNodeNames: make(map[string]string)}
	found := false
	depth := 0 // element depth inside the matched process, 0 means outside

	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return bpmnProcess{}, fmt.Errorf("decode BPMN XML: %w", err)
		}

		switch element := token.(type) {
		case xml.StartElement:
			if depth > 0 {
				depth++
				collectFlowNode(&process, element)
				continue
			}

			if element.Name.Local == bpmnElementProcess && attr(element, bpmnAttrID) == bpmnProcessID {
				found = true
				depth = 1
				process.name = attr(element, bpmnAttrName)
			}

		case xml.EndElement:
			if depth > 0 {
				depth--
			}
		}
	}

	if !found {
		return bpmnProcess{}, errors.Join(ErrProcessNotInResource, fmt.Errorf("bpmn process id %s", bpmnProcessID))
	}

	slices.Sort(process.callActivityIDs)

	return process, nil
}

func collectFlowNode(process *bpmnProcess, element xml.StartElement) {
	id := attr(element, bpmnAttrID)
	if id == "" {
		return
	}

	process.flowNodeNames[id] = attr(element, bpmnAttrName)

	if element.Name.Local == bpmnElementCallActivity {
		process.callActivityIDs = append(process.callActivityIDs, id)
	}
}

func attr(element xml.StartElement, local string) string {
	for _, a := range element.Attr {
		if a.Name.Local == local && a.Name.Space == "" {
			return a.Value
		}
	}

	return ""
}
