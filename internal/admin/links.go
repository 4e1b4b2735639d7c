package admin

import (
	"encoding/json"
	"fmt"

	"github.com/oriys/rift/internal/domain"
)

// imposterJSON renders imp as its admin-API JSON map, with HAL _links
// added at the imposter level and at each stub. host is the request's Host
// header, since the admin surface has no other notion of its own canonical
// URL. When removeProxies is set, every stub response shaped as a Proxy
// variant is dropped from the output (but not from the live imposter).
func imposterJSON(host string, imp *domain.Imposter, removeProxies bool) (map[string]interface{}, error) {
	raw, err := json.Marshal(imp)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	m["_links"] = imposterLinks(host, imp.Port)

	stubs, _ := m["stubs"].([]interface{})
	for i, s := range stubs {
		stub, ok := s.(map[string]interface{})
		if !ok {
			continue
		}
		stub["_links"] = stubLinks(host, imp.Port, i)
		if removeProxies {
			stripProxyResponses(stub)
		}
	}
	return m, nil
}

func stripProxyResponses(stub map[string]interface{}) {
	responses, ok := stub["responses"].([]interface{})
	if !ok {
		return
	}
	kept := make([]interface{}, 0, len(responses))
	for _, r := range responses {
		if rm, ok := r.(map[string]interface{}); ok {
			if _, isProxy := rm["proxy"]; isProxy {
				continue
			}
		}
		kept = append(kept, r)
	}
	stub["responses"] = kept
}

func imposterLinks(host string, port uint16) map[string]interface{} {
	return map[string]interface{}{
		"self": map[string]string{"href": fmt.Sprintf("http://%s/imposters/%d", host, port)},
	}
}

func stubLinks(host string, port uint16, index int) map[string]interface{} {
	return map[string]interface{}{
		"self": map[string]string{"href": fmt.Sprintf("http://%s/imposters/%d/stubs/%d", host, port, index)},
	}
}

// stubJSON renders a single stub at index with its own _links, for the
// single-stub GET/PUT endpoints.
func stubJSON(host string, port uint16, index int, stub *domain.Stub) (map[string]interface{}, error) {
	raw, err := json.Marshal(stub)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	m["_links"] = stubLinks(host, port, index)
	return m, nil
}
