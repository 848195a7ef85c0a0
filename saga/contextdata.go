package saga

import (
	"encoding/json"
	"sync"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// ContextData carries intermediate results between steps of one saga, e.g.
// the aggregated payload a later step encrypts. Values survive a round trip
// through the store as generic JSON, so typed reads go through DecodeValue
// instead of bare type assertions.
type ContextData struct {
	mu     sync.RWMutex
	values map[string]interface{}
}

func NewContextData() *ContextData {
	return &ContextData{values: make(map[string]interface{})}
}

func (c *ContextData) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.values[key] = value
}

func (c *ContextData) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.values[key]
	return v, ok
}

func (c *ContextData) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.values, key)
}

func (c *ContextData) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}

	return keys
}

// DecodeValue decodes the value stored under key into out. A value that was
// persisted and loaded back comes out of JSON as map[string]interface{},
// mapstructure turns it back into the caller's type.
func (c *ContextData) DecodeValue(key string, out interface{}) error {
	c.mu.RLock()
	v, ok := c.values[key]
	c.mu.RUnlock()

	if !ok {
		return errors.Errorf("no value stored in saga context under key %q", key)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  out,
		TagName: "json",
	})
	if err != nil {
		return errors.Wrap(err, "creating decoder for saga context value")
	}

	if err := decoder.Decode(v); err != nil {
		return errors.Wrapf(err, "decoding saga context value %q", key)
	}

	return nil
}

func (c *ContextData) MarshalJSON() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return json.Marshal(c.values)
}

func (c *ContextData) UnmarshalJSON(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	values := make(map[string]interface{})
	if err := json.Unmarshal(data, &values); err != nil {
		return errors.WithStack(err)
	}

	c.values = values

	return nil
}
