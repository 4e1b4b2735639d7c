package domain

import "encoding/json"

// jsonImposter mirrors the admin API's imposter JSON shape.
type jsonImposter struct {
	Port            uint16       `json:"port,omitempty"`
	Protocol        Protocol     `json:"protocol"`
	Name            string       `json:"name,omitempty"`
	RecordRequests  bool         `json:"recordRequests,omitempty"`
	DefaultResponse *IsResponse  `json:"defaultResponse,omitempty"`
	AllowCORS       bool         `json:"allowCORS,omitempty"`
	Cert            string       `json:"cert,omitempty"`
	Key             string       `json:"key,omitempty"`
	Stubs           []*Stub      `json:"stubs"`
	NumberOfRequests int         `json:"numberOfRequests,omitempty"`
	Requests        []RecordedRequest `json:"requests,omitempty"`
}

// UnmarshalJSON decodes an admin-submitted imposter config.
func (im *Imposter) UnmarshalJSON(data []byte) error {
	var ji jsonImposter
	if err := json.Unmarshal(data, &ji); err != nil {
		return err
	}
	im.Port = ji.Port
	im.Protocol = ji.Protocol
	if im.Protocol == "" {
		im.Protocol = ProtocolHTTP
	}
	im.Name = ji.Name
	im.RecordRequests = ji.RecordRequests
	im.DefaultResponse = ji.DefaultResponse
	im.AllowCORS = ji.AllowCORS
	im.CertPEM = ji.Cert
	im.KeyPEM = ji.Key
	im.Enabled = true
	im.stubs = ji.Stubs
	return nil
}

// MarshalJSON encodes the imposter in the admin API's shape (without HAL
// links — those are added by the admin package, which knows the canonical
// base URL).
func (im *Imposter) MarshalJSON() ([]byte, error) {
	ji := jsonImposter{
		Port:             im.Port,
		Protocol:         im.Protocol,
		Name:             im.Name,
		RecordRequests:   im.RecordRequests,
		DefaultResponse:  im.DefaultResponse,
		AllowCORS:        im.AllowCORS,
		Cert:             im.CertPEM,
		Key:              im.KeyPEM,
		Stubs:            im.Stubs(),
		NumberOfRequests: im.NumberOfRequests(),
	}
	return json.Marshal(ji)
}
