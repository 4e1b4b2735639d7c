package recording

import (
	"github.com/oriys/rift/internal/domain"
)

// Signature builds a RequestSignature from req, selecting headers named
// by any of generators' matches.headers (in the order the generators
// list them — order is significant and caller-controlled per the
// signature equality contract).
func Signature(req *domain.Request, generators []domain.PredicateGenerator) domain.RequestSignature {
	sig := domain.RequestSignature{
		Method: req.Method,
		Path:   req.Path,
		Query:  req.RawQuery,
	}
	for _, gen := range generators {
		for _, name := range gen.Matches.Headers {
			vals, ok := req.Headers[name]
			if !ok {
				continue
			}
			for _, v := range vals {
				sig.Headers = append(sig.Headers, domain.HeaderPair{Name: name, Value: v})
			}
		}
	}
	return sig
}
