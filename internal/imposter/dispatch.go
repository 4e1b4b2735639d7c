package imposter

import (
	"net/http"

	"github.com/oriys/rift/internal/behavior"
	"github.com/oriys/rift/internal/domain"
	"github.com/oriys/rift/internal/predicate"
)

// dispatch scans stubs for the first match, advances its response cycler,
// and materializes the selected response variant. Returns false when the
// response represents a failure (diagnostic 500, TCP fault) so the caller
// can record it as unsuccessful in the metrics pipeline.
func (rt *Runtime) dispatch(w http.ResponseWriter, r *http.Request, req *domain.Request) bool {
	stubs := rt.Imposter.Stubs()
	liveKeys := make(map[string]bool, len(stubs))

	for i, stub := range stubs {
		key := stubKey(i, stub)
		liveKeys[key] = true
		compiled := rt.predicates.compiled(key, stub.Predicates)
		if !stubMatches(compiled, req) {
			continue
		}

		if len(stub.Responses) == 0 {
			rt.writeDefault(w)
			return true
		}

		word := rt.Imposter.CyclerWord(key)
		responses := stub.Responses
		idx := advanceCycle(word, len(responses), func(i int) int { return repeatOf(responses[i]) })
		resp := responses[idx]
		return rt.materialize(w, r, req, key, int(idx), resp)
	}

	rt.predicates.invalidate(liveKeys)
	rt.writeDefault(w)
	return true
}

// stubMatches is the AND of every predicate in a stub (implicit AND over
// the ordered predicate list, per the data model's Stub.Predicates
// contract — order never affects the outcome).
func stubMatches(compiled []*predicate.Compiled, req *domain.Request) bool {
	for _, c := range compiled {
		if !predicate.Eval(c, req) {
			return false
		}
	}
	return true
}

// repeatOf reports resp's configured repeat count. Proxy responses never
// participate in repeat — they're treated as repeat=1 but still advance
// the cycler, per the cycling contract.
func repeatOf(resp *domain.StubResponse) int {
	if resp.Is != nil && resp.Is.Behaviors != nil && resp.Is.Behaviors.Repeat > 0 {
		return resp.Is.Behaviors.Repeat
	}
	return 1
}

// materialize renders the selected response variant, dispatching on which
// of Is/Proxy/Inject/Fault/RiftScript is populated.
func (rt *Runtime) materialize(w http.ResponseWriter, r *http.Request, req *domain.Request, key string, idx int, resp *domain.StubResponse) bool {
	switch {
	case resp.Is != nil:
		return rt.materializeIs(w, r, req, resp.Is)
	case resp.Proxy != nil:
		return rt.materializeProxy(w, r, req, responseKey(key, idx), resp.Proxy)
	case resp.Inject != "":
		return rt.materializeInject(w, req, resp.Inject)
	case resp.RiftScript != nil:
		return rt.materializeRiftScript(w, req, resp.RiftScript)
	case resp.Fault != "":
		rt.materializeFault(w, resp.Fault)
		return false
	default:
		rt.writeDefault(w)
		return true
	}
}

// materializeIs applies behaviors (wait, copy, lookup, decorate,
// shellTransform) to the literal response before writing it. A behavior
// failure degrades to a diagnostic 500, never an imposter crash.
func (rt *Runtime) materializeIs(w http.ResponseWriter, r *http.Request, req *domain.Request, is *domain.IsResponse) bool {
	view := &behavior.ResponseView{
		StatusCode: statusCodeOf(is.StatusCode),
		Headers:    cloneHeaders(is.Headers),
		Body:       is.Body,
	}
	if is.Behaviors != nil {
		if err := behavior.Apply(r.Context(), is.Behaviors, req, view); err != nil {
			writeDiagnostic500(w, err)
			return false
		}
	}
	writeIsResponse(w, &domain.IsResponse{
		StatusCode: view.StatusCode,
		Headers:    view.Headers,
		Body:       view.Body,
	})
	return true
}

func cloneHeaders(h map[string]interface{}) map[string]interface{} {
	if h == nil {
		return nil
	}
	out := make(map[string]interface{}, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// materializeFault terminates the underlying connection per the named TCP
// fault. net/http's Hijacker is the only way to reach the raw connection
// from a handler; if hijacking isn't supported the best we can do is close
// the response without a body.
func (rt *Runtime) materializeFault(w http.ResponseWriter, fault domain.TCPFaultKind) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		return
	}
	defer conn.Close()

	switch fault {
	case domain.FaultRandomDataThenClose:
		_, _ = conn.Write(randomBytes(64))
	case domain.FaultConnectionResetByPeer:
		// Closing immediately after hijack, without a FIN handshake, is the
		// closest net.Conn gets to forcing a RST from Go's standard library.
	}
}
