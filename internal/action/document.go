package action

import "fmt"

// EncodeDocument renders a as the JSON document backends persist. The id is
// returned separately and omitted from the document: the id column or key
// of the backend is authoritative.
func EncodeDocument(a Action) (string, []byte, error) {
	obj, err := ToObject(a)
	if err != nil {
		return "", nil, err
	}
	delete(obj, "id")
	doc, err := obj.MarshalJSON()
	if err != nil {
		return "", nil, fmt.Errorf("encode document: %w", err)
	}
	return a.ID, doc, nil
}

// DecodeDocument rebuilds an Action from a persisted document and the id it
// was stored under.
func DecodeDocument(id string, doc []byte) (Action, error) {
	a, err := Decode(doc)
	if err != nil {
		return Action{}, err
	}
	a.ID = id
	return a, nil
}
