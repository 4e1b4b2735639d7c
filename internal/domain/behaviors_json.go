package domain

import (
	"encoding/json"
	"fmt"
)

// behaviorsShape is the plain-object decode target for a single behaviors
// entry (or the whole object when behaviors is submitted as an object
// rather than an array).
type behaviorsShape struct {
	Wait           json.RawMessage `json:"wait,omitempty"`
	Repeat         *int            `json:"repeat,omitempty"`
	Decorate       *string         `json:"decorate,omitempty"`
	ShellTransform *string         `json:"shellTransform,omitempty"`
	Copy           []CopySpec      `json:"copy,omitempty"`
	Lookup         []LookupSpec    `json:"lookup,omitempty"`
}

// UnmarshalJSON accepts either a single object or an array of single-key
// objects, merged left-to-right (later keys win).
func (b *Behaviors) UnmarshalJSON(data []byte) error {
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err == nil {
		for _, item := range arr {
			if err := b.mergeOne(item); err != nil {
				return err
			}
		}
		return nil
	}
	return b.mergeOne(data)
}

func (b *Behaviors) mergeOne(data []byte) error {
	var shape behaviorsShape
	if err := json.Unmarshal(data, &shape); err != nil {
		return fmt.Errorf("behaviors: %w", err)
	}
	if len(shape.Wait) > 0 {
		var w WaitSpec
		if err := json.Unmarshal(shape.Wait, &w); err != nil {
			return fmt.Errorf("behaviors.wait: %w", err)
		}
		b.Wait = &w
	}
	if shape.Repeat != nil {
		b.Repeat = *shape.Repeat
	}
	if shape.Decorate != nil {
		b.Decorate = *shape.Decorate
	}
	if shape.ShellTransform != nil {
		b.ShellTransform = *shape.ShellTransform
	}
	if shape.Copy != nil {
		b.Copy = shape.Copy
	}
	if shape.Lookup != nil {
		b.Lookup = shape.Lookup
	}
	return nil
}
