package models

import (
	"bytes"
	"encoding/json"
)

// OptionalRef distinguishes an absent foreign key from an explicit null:
// {"assigned_to": null} unassigns, a missing key leaves the value alone.
type OptionalRef struct {
	Set   bool
	Value *int
}

func (o *OptionalRef) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var id int
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	o.Value = &id
	return nil
}

func (o OptionalRef) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.Value)
}

func Ref(id int) OptionalRef {
	return OptionalRef{Set: true, Value: &id}
}
