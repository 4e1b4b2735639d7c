// Package scriptpool hosts the three scripting engines a script rule can
// target, the bounded worker pool that runs should_inject calls off the
// request path, and the decision cache in front of it.
package scriptpool

import (
	"fmt"

	"github.com/oriys/rift/internal/domain"
	"github.com/oriys/rift/internal/flowstore"
)

// Engine name constants as they appear in ScriptRule.Engine / config.
const (
	EngineJavaScript = "javascript"
	EngineJS         = "js"
	EngineLua        = "lua"
	EngineRhai       = "rhai"
)

// Decision is should_inject's return value: whether to inject a fault and,
// if so, which kind with its parameters.
type Decision struct {
	Inject     bool
	Fault      string // "latency" | "error"
	DurationMs int
	Status     int
	Body       string
	Headers    map[string]string
}

// Compiled is an engine-specific compiled script artifact, opaque outside
// this package. Engines are single-threaded; a Compiled value is reused
// across calls as an optimization but must not leak state between calls.
type Compiled interface {
	// ShouldInject runs the compiled script's should_inject(request,
	// flow_store) function and returns its decision.
	ShouldInject(req *domain.Request, store *BoundFlow) (Decision, error)
}

// BoundFlow is a flow-state handle with its flow_id (from the x-flow-id
// request header) fixed for the lifetime of one script call, so scripts
// reach the store without re-threading the flow_id through every call.
// JavaScript and Lua scripts see get/set/exists/delete/increment/setTTL;
// Rhai expressions see only get/set/exists/increment.
type BoundFlow struct {
	store  flowstore.Store
	flowID string
}

// NewBoundFlow binds store to flowID for one script invocation.
func NewBoundFlow(store flowstore.Store, flowID string) *BoundFlow {
	return &BoundFlow{store: store, flowID: flowID}
}

// Compile compiles source for the named engine. Called once per
// ScriptRule at registration time; the result is cached by the caller and
// reused by every worker that picks up a job referencing this rule.
func Compile(engine, source string) (Compiled, error) {
	switch engine {
	case EngineJavaScript, EngineJS, "":
		return compileJS(source)
	case EngineLua:
		return compileLua(source)
	case EngineRhai:
		return compileExpr(source)
	default:
		return nil, fmt.Errorf("scriptpool: unknown engine %q", engine)
	}
}

// Validate eagerly compiles source and discards the result, used by admin
// writes to reject bad scripts before they enter the live rule set.
func Validate(engine, source string) error {
	_, err := Compile(engine, source)
	return err
}
