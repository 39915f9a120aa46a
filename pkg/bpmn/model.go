package bpmn

// NodeKind is the BPMN element type of a flow node.
type NodeKind string

const (
	StartEvent             NodeKind = "startEvent"
	EndEvent               NodeKind = "endEvent"
	IntermediateThrowEvent NodeKind = "intermediateThrowEvent"
	IntermediateCatchEvent NodeKind = "intermediateCatchEvent"
	BoundaryEvent          NodeKind = "boundaryEvent"
	Task                   NodeKind = "task"
	ServiceTask            NodeKind = "serviceTask"
	SendTask               NodeKind = "sendTask"
	ReceiveTask            NodeKind = "receiveTask"
	UserTask               NodeKind = "userTask"
	ManualTask             NodeKind = "manualTask"
	ScriptTask             NodeKind = "scriptTask"
	BusinessRuleTask       NodeKind = "businessRuleTask"
	ExclusiveGateway       NodeKind = "exclusiveGateway"
	ParallelGateway        NodeKind = "parallelGateway"
	InclusiveGateway       NodeKind = "inclusiveGateway"
	EventBasedGateway      NodeKind = "eventBasedGateway"
	ComplexGateway         NodeKind = "complexGateway"
	SubProcess             NodeKind = "subProcess"
	Transaction            NodeKind = "transaction"
	CallActivity           NodeKind = "callActivity"
)

var nodeKinds = map[string]NodeKind{}

func init() {
	for _, k := range []NodeKind{
		StartEvent, EndEvent, IntermediateThrowEvent, IntermediateCatchEvent, BoundaryEvent,
		Task, ServiceTask, SendTask, ReceiveTask, UserTask, ManualTask, ScriptTask, BusinessRuleTask,
		ExclusiveGateway, ParallelGateway, InclusiveGateway, EventBasedGateway, ComplexGateway,
		SubProcess, Transaction, CallActivity,
	} {
		nodeKinds[string(k)] = k
	}
}

// EventDefinition is the trigger or result type of an event node.
type EventDefinition string

const (
	NoEventDefinition EventDefinition = ""
	MessageEvent      EventDefinition = "message"
	TimerEvent        EventDefinition = "timer"
	SignalEvent       EventDefinition = "signal"
	ErrorEvent        EventDefinition = "error"
	ConditionalEvent  EventDefinition = "conditional"
	TerminateEvent    EventDefinition = "terminate"
	EscalationEvent   EventDefinition = "escalation"
	CompensateEvent   EventDefinition = "compensate"
	LinkEvent         EventDefinition = "link"
	CancelEvent       EventDefinition = "cancel"
)

var eventDefinitions = map[string]EventDefinition{
	"messageEventDefinition":     MessageEvent,
	"timerEventDefinition":       TimerEvent,
	"signalEventDefinition":      SignalEvent,
	"errorEventDefinition":       ErrorEvent,
	"conditionalEventDefinition": ConditionalEvent,
	"terminateEventDefinition":   TerminateEvent,
	"escalationEventDefinition":  EscalationEvent,
	"compensateEventDefinition":  CompensateEvent,
	"linkEventDefinition":        LinkEvent,
	"cancelEventDefinition":      CancelEvent,
}

// FieldInjection is a camunda:field entry. Keys are kept as written, known or not.
type FieldInjection struct {
	Name  string
	Value string
	// Expression is set when the value came from an expression rather than a string.
	Expression bool
	Line       int
}

// ListenerType distinguishes execution and task listeners.
type ListenerType string

const (
	ExecutionListener ListenerType = "execution"
	TaskListener      ListenerType = "task"
)

// Listener is a camunda execution or task listener on a node.
type Listener struct {
	Type  ListenerType
	Event string
	Class string
	// Expression holds expression or delegateExpression listeners, which have no class.
	Expression string
	Fields     []FieldInjection
	Line       int
}

// Node is a flow node of a process.
type Node struct {
	ID   string
	Name string
	Kind NodeKind
	// EventDefinition is set for event nodes with a definition child.
	EventDefinition EventDefinition

	// ImplementationClass is camunda:class of the task, or of the message event
	// definition for message throw events.
	ImplementationClass string
	// DelegateExpression holds camunda:delegateExpression or camunda:expression.
	DelegateExpression string

	// MessageRef is the id of the referenced bpmn:message.
	MessageRef string
	// MessageName is the messageName field for sending nodes and the referenced
	// message's name for receiving nodes.
	MessageName string

	FieldInjections []FieldInjection
	Listeners       []Listener

	// ProcessID is the id of the top level process containing the node.
	ProcessID string
	// ParentID is the enclosing sub-process for nested nodes.
	ParentID string
	// AttachedTo is the host activity of a boundary event.
	AttachedTo string
	Line       int
}

// Field returns the field injection with the given name.
func (n *Node) Field(name string) (FieldInjection, bool) {
	for _, f := range n.FieldInjections {
		if f.Name == name {
			return f, true
		}
	}
	return FieldInjection{}, false
}

// IsMessageSend reports whether the node sends a message: send tasks and
// message throw or end events.
func (n *Node) IsMessageSend() bool {
	switch n.Kind {
	case SendTask:
		return true
	case IntermediateThrowEvent, EndEvent:
		return n.EventDefinition == MessageEvent
	}
	return false
}

// IsMessageReceive reports whether the node waits for a message.
func (n *Node) IsMessageReceive() bool {
	switch n.Kind {
	case ReceiveTask:
		return true
	case StartEvent, IntermediateCatchEvent, BoundaryEvent:
		return n.EventDefinition == MessageEvent
	}
	return false
}

// SequenceFlow connects two nodes.
type SequenceFlow struct {
	ID     string
	Source string
	Target string
	Line   int
}

// Process is a top level bpmn:process. Nodes and flows of sub-processes are
// included with their ParentID set.
type Process struct {
	ID           string
	Name         string
	VersionTag   string
	IsExecutable bool
	Nodes        []*Node
	Flows        []SequenceFlow
	Line         int
}

// Node returns the node with the given id.
func (p *Process) Node(id string) (*Node, bool) {
	for _, n := range p.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return nil, false
}

// Message is a bpmn:message definition.
type Message struct {
	ID   string
	Name string
}

// Graph is one parsed definitions file.
type Graph struct {
	File      string
	Processes []*Process
	// Messages is keyed by message id.
	Messages map[string]Message
}
