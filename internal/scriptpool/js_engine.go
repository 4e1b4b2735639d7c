package scriptpool

import (
	"encoding/json"
	"fmt"

	"github.com/dop251/goja"

	"github.com/oriys/rift/internal/domain"
)

type compiledJS struct {
	program *goja.Program
}

func compileJS(source string) (Compiled, error) {
	program, err := goja.Compile("should_inject.js", source, true)
	if err != nil {
		return nil, fmt.Errorf("scriptpool: javascript compile: %w", err)
	}
	return &compiledJS{program: program}, nil
}

// ShouldInject instantiates a fresh goja.Runtime per call. goja.Runtime is
// not safe for concurrent use, and the pool hands this Compiled value to
// whichever worker happens to pick up the job next, so a per-call runtime
// is the simplest way to honor "no cross-script state leakage" without
// pinning compiled scripts to specific worker goroutines.
func (c *compiledJS) ShouldInject(req *domain.Request, store *BoundFlow) (Decision, error) {
	vm := goja.New()
	if _, err := vm.RunProgram(c.program); err != nil {
		return Decision{}, fmt.Errorf("scriptpool: javascript run: %w", err)
	}

	fnVal := vm.Get("should_inject")
	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		return Decision{}, fmt.Errorf("scriptpool: javascript: should_inject is not defined")
	}

	flowObj := vm.NewObject()
	bindFlowStore(vm, flowObj, store)

	result, err := fn(goja.Undefined(), vm.ToValue(requestEnvJS(req)), flowObj)
	if err != nil {
		return Decision{}, fmt.Errorf("scriptpool: javascript: %w", err)
	}
	return decodeDecision(result.Export())
}

func bindFlowStore(vm *goja.Runtime, obj *goja.Object, store *BoundFlow) {
	obj.Set("get", func(key string) interface{} {
		val, ok, err := store.Get(key)
		if err != nil || !ok {
			return nil
		}
		var decoded interface{}
		if err := json.Unmarshal(val, &decoded); err != nil {
			return string(val)
		}
		return decoded
	})
	obj.Set("set", func(key string, value goja.Value) {
		raw, err := json.Marshal(value.Export())
		if err != nil {
			return
		}
		store.Set(key, raw)
	})
	obj.Set("exists", func(key string) bool {
		ok, _ := store.Exists(key)
		return ok
	})
	obj.Set("delete", func(key string) {
		store.Delete(key)
	})
	obj.Set("increment", func(key string) int64 {
		n, _ := store.Increment(key)
		return n
	})
	obj.Set("setTTL", func(ttlSeconds int) {
		store.SetTTL(ttlSeconds)
	})
}

func requestEnvJS(req *domain.Request) map[string]interface{} {
	return map[string]interface{}{
		"method":      req.Method,
		"path":        req.Path,
		"headers":     mapValuesJS(req.Headers),
		"query":       mapValuesJS(req.Query),
		"body":        req.Body,
		"requestFrom": req.RequestFrom,
		"ip":          req.IP,
	}
}

func mapValuesJS(m map[string][]string) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func decodeDecision(v interface{}) (Decision, error) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return Decision{}, fmt.Errorf("scriptpool: should_inject must return an object")
	}
	d := Decision{}
	if inject, ok := m["inject"].(bool); ok {
		d.Inject = inject
	}
	if fault, ok := m["fault"].(string); ok {
		d.Fault = fault
	}
	d.DurationMs = intField(m, "duration_ms", "durationMs")
	d.Status = intField(m, "status")
	if body, ok := m["body"].(string); ok {
		d.Body = body
	}
	if headers, ok := m["headers"].(map[string]interface{}); ok {
		d.Headers = make(map[string]string, len(headers))
		for k, v := range headers {
			if s, ok := v.(string); ok {
				d.Headers[k] = s
			}
		}
	}
	return d, nil
}

func intField(m map[string]interface{}, names ...string) int {
	for _, name := range names {
		switch v := m[name].(type) {
		case int64:
			return int(v)
		case float64:
			return int(v)
		case int:
			return v
		}
	}
	return 0
}
