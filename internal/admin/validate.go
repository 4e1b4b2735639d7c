package admin

import (
	"fmt"

	"github.com/oriys/rift/internal/analysis"
	"github.com/oriys/rift/internal/domain"
	"github.com/oriys/rift/internal/scriptpool"
)

// validateStub compiles every script-shaped response variant on stub so a
// bad script is rejected at write time instead of failing open on the
// first matching request.
func validateStub(stub *domain.Stub) error {
	for i, resp := range stub.Responses {
		if resp == nil {
			continue
		}
		if resp.RiftScript != nil {
			if err := scriptpool.Validate(resp.RiftScript.Engine, resp.RiftScript.Code); err != nil {
				return fmt.Errorf("response %d: rift script: %w", i, err)
			}
		}
		if resp.Inject != "" {
			if err := scriptpool.Validate("javascript", resp.Inject); err != nil {
				return fmt.Errorf("response %d: inject script: %w", i, err)
			}
		}
	}
	return nil
}

func validateStubs(stubs []*domain.Stub) error {
	for i, s := range stubs {
		if err := validateStub(s); err != nil {
			return fmt.Errorf("stub %d: %w", i, err)
		}
	}
	return nil
}

func validateProtocol(p domain.Protocol) bool {
	return p == domain.ProtocolHTTP || p == domain.ProtocolHTTPS
}

// analyzeWarnings runs the stub diagnostics over stubs and returns the
// warnings for inclusion in a write response body.
func analyzeWarnings(stubs []*domain.Stub) []analysis.Warning {
	return analysis.Analyze(stubs)
}
