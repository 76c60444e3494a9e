package action

import (
	"encoding/json"
	"fmt"
)

// Action is the canonical audit record: who did what, to what, with what
// result, at what cost. Actions are immutable once stored.
type Action struct {
	ID          string     `json:"id,omitempty"`
	Timestamp   string     `json:"timestamp"`
	CompanyID   string     `json:"companyId,omitempty"`
	ClientID    string     `json:"clientId,omitempty"`
	App         string     `json:"app,omitempty"`
	Environment string     `json:"environment,omitempty"`
	Framework   *Framework `json:"framework,omitempty"`
	SessionID   string     `json:"sessionId,omitempty"`
	TraceIDs    []string   `json:"traceIds,omitzero"`
	Action      Descriptor `json:"action"`
	Agents      []Entity   `json:"agents"`
	Targets     []Entity   `json:"targets,omitzero"`
	Request     Object     `json:"request,omitzero"`
	Response    *Response  `json:"response,omitempty"`
	Changes     []Change   `json:"changes,omitzero"`
	Cost        *Cost      `json:"cost,omitempty"`
	Meta        Object     `json:"meta,omitzero"`
}

// Framework identifies the client library that emitted the action.
type Framework struct {
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

// Descriptor is the event itself. Type and Verb are required.
type Descriptor struct {
	ID     string `json:"id,omitempty"`
	Type   string `json:"type"`
	Verb   string `json:"verb"`
	Object string `json:"object,omitempty"`
}

// Entity is an agent performing the action or a target acted upon.
type Entity struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
	Meta Object `json:"meta,omitzero"`
}

// Response is a snapshot of the response produced by the action.
type Response struct {
	Status  string   `json:"status,omitempty"`
	Time    *float64 `json:"time,omitempty"`
	Body    Object   `json:"body,omitzero"`
	Headers Object   `json:"headers,omitzero"`
}

// Change records a field- or record-level diff. Operation is conventionally
// one of create, update, delete, read.
type Change struct {
	Model     string `json:"model"`
	Operation string `json:"operation"`
	ID        string `json:"id,omitempty"`
	Path      string `json:"path,omitempty"`
	Before    Value  `json:"before,omitempty"`
	After     Value  `json:"after,omitempty"`
	Meta      Object `json:"meta,omitzero"`
}

// Conventional change operations.
const (
	OperationCreate = "create"
	OperationUpdate = "update"
	OperationDelete = "delete"
	OperationRead   = "read"
)

type changeJSON struct {
	Model     string          `json:"model"`
	Operation string          `json:"operation"`
	ID        string          `json:"id,omitempty"`
	Path      string          `json:"path,omitempty"`
	Before    json.RawMessage `json:"before,omitempty"`
	After     json.RawMessage `json:"after,omitempty"`
	Meta      Object          `json:"meta,omitzero"`
}

// MarshalJSON encodes Before/After through MarshalValue so that nested
// objects keep sorted keys.
func (c Change) MarshalJSON() ([]byte, error) {
	out := changeJSON{
		Model:     c.Model,
		Operation: c.Operation,
		ID:        c.ID,
		Path:      c.Path,
		Meta:      c.Meta,
	}
	if c.Before != nil {
		raw, err := MarshalValue(c.Before)
		if err != nil {
			return nil, fmt.Errorf("before: %w", err)
		}
		out.Before = raw
	}
	if c.After != nil {
		raw, err := MarshalValue(c.After)
		if err != nil {
			return nil, fmt.Errorf("after: %w", err)
		}
		out.After = raw
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes Before/After into Values. An explicit null becomes
// Null{}; an absent field stays nil.
func (c *Change) UnmarshalJSON(data []byte) error {
	var in changeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*c = Change{
		Model:     in.Model,
		Operation: in.Operation,
		ID:        in.ID,
		Path:      in.Path,
		Meta:      in.Meta,
	}
	if len(in.Before) > 0 {
		v, err := UnmarshalValue(in.Before)
		if err != nil {
			return fmt.Errorf("before: %w", err)
		}
		c.Before = v
	}
	if len(in.After) > 0 {
		v, err := UnmarshalValue(in.After)
		if err != nil {
			return fmt.Errorf("after: %w", err)
		}
		c.After = v
	}
	return nil
}

// Cost attributes a monetary or resource cost to the action.
type Cost struct {
	Amount     float64         `json:"amount"`
	Currency   string          `json:"currency"`
	Components []CostComponent `json:"components,omitzero"`
	Meta       Object          `json:"meta,omitzero"`
}

// CostComponent is one line of a cost breakdown.
type CostComponent struct {
	Type   string  `json:"type,omitempty"`
	Key    string  `json:"key"`
	Amount float64 `json:"amount"`
}

// ToObject converts an Action into its generic document form.
func ToObject(a Action) (Object, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode action: %w", err)
	}
	var obj Object
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("decode action document: %w", err)
	}
	return obj, nil
}

// FromObject converts a generic document back into an Action.
// A missing agents list decodes as an empty one.
func FromObject(obj Object) (Action, error) {
	data, err := obj.MarshalJSON()
	if err != nil {
		return Action{}, fmt.Errorf("encode action document: %w", err)
	}
	return Decode(data)
}

// Decode parses JSON into an Action without validating it.
// A missing agents list decodes as an empty one so that stored records
// always satisfy the agents invariant on the way out.
func Decode(data []byte) (Action, error) {
	var a Action
	if err := json.Unmarshal(data, &a); err != nil {
		return Action{}, fmt.Errorf("decode action: %w", err)
	}
	if a.Agents == nil {
		a.Agents = []Entity{}
	}
	return a, nil
}
