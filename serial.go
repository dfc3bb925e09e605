package lazyorm

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// SerialState is what a Proxy serializes to while loads are still pending:
// a plain copy of the model plus the pending loads, keyed by property.
type SerialState struct {
	Object   Model                `json:"object"`
	Unloaded map[string]*LoadPair `json:"unloaded"`
}

// Restore decodes data written by Proxy.MarshalJSON into into. A payload that
// carried pending loads comes back as a *Proxy whose loads run on executors
// obtained from cfg.ExecutorFactory; any other payload is decoded into into,
// which is returned.
func Restore(data []byte, into Model, cfg *Configuration) (Model, error) {
	var state struct {
		Object   json.RawMessage      `json:"object"`
		Unloaded map[string]*LoadPair `json:"unloaded"`
	}
	if err := json.Unmarshal(data, &state); err == nil && state.Object != nil && state.Unloaded != nil {
		if err := json.Unmarshal(state.Object, into); err != nil {
			return nil, errors.Wrap(err, "restore object")
		}
		loader := NewResultLoaderMap(nil, cfg)
		for property, pair := range state.Unloaded {
			if pair == nil {
				continue
			}
			if pair.Property == "" {
				pair.Property = property
			}
			if err := loader.Add(pair); err != nil {
				return nil, err
			}
		}
		return NewProxy(into, loader, cfg), nil
	}
	if err := json.Unmarshal(data, into); err != nil {
		return nil, errors.Wrap(err, "restore object")
	}
	return into, nil
}
