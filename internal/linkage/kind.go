package linkage

import "strings"

// Kind is the element type tag reported by the diagram engine, e.g.
// "bpmn:UserTask". It is used only to pick a display label.
type Kind string

const (
	KindTask             Kind = "bpmn:Task"
	KindUserTask         Kind = "bpmn:UserTask"
	KindServiceTask      Kind = "bpmn:ServiceTask"
	KindStartEvent       Kind = "bpmn:StartEvent"
	KindEndEvent         Kind = "bpmn:EndEvent"
	KindGateway          Kind = "bpmn:Gateway"
	KindExclusiveGateway Kind = "bpmn:ExclusiveGateway"
	KindParallelGateway  Kind = "bpmn:ParallelGateway"
	KindSubProcess       Kind = "bpmn:SubProcess"
	KindUnknown          Kind = "unknown"
)

const kindNamespacePrefix = "bpmn:"

// kindLabels maps known tags to their display labels.
var kindLabels = map[Kind]string{
	KindTask:             "Task",
	KindUserTask:         "User Task",
	KindServiceTask:      "Service Task",
	KindStartEvent:       "Start Event",
	KindEndEvent:         "End Event",
	KindGateway:          "Gateway",
	KindExclusiveGateway: "Exclusive Gateway",
	KindParallelGateway:  "Parallel Gateway",
	KindSubProcess:       "Sub Process",
}

// Known reports whether k has a dedicated label.
func (k Kind) Known() bool {
	_, ok := kindLabels[k]
	return ok
}

// Label returns the display label for k. Unknown tags fall back to the raw
// tag without its "bpmn:" prefix.
func (k Kind) Label() string {
	if label, ok := kindLabels[k]; ok {
		return label
	}
	raw := strings.TrimPrefix(string(k), kindNamespacePrefix)
	if raw == "" {
		return string(KindUnknown)
	}
	return raw
}
