package imposter

import (
	"context"
	"crypto/tls"
	"encoding/pem"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/oriys/rift/internal/domain"
	"github.com/oriys/rift/internal/flowstore"
	"github.com/oriys/rift/internal/logging"
	"github.com/oriys/rift/internal/scriptpool"
)

const (
	dynamicPortRangeLow  = 49152
	dynamicPortRangeHigh = 65535
)

// ManagerError enumerates port-allocation/lookup failures the admin layer
// needs to distinguish to pick the right HTTP status code.
type ManagerError struct {
	Kind    string // PortInUse, BindError, NotFound
	Message string
}

func (e *ManagerError) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Message) }

func errPortInUse(port uint16) error {
	return &ManagerError{Kind: "PortInUse", Message: fmt.Sprintf("port %d already owned by this manager", port)}
}

func errBind(port uint16, cause error) error {
	return &ManagerError{Kind: "BindError", Message: fmt.Sprintf("bind port %d: %v", port, cause)}
}

func errNotFound(port uint16) error {
	return &ManagerError{Kind: "NotFound", Message: fmt.Sprintf("no imposter on port %d", port)}
}

// entry pairs a running imposter's Runtime with the net/http server and
// listener that own its accept loop, so deletion can shut both down
// cleanly.
type entry struct {
	runtime  *Runtime
	server   *http.Server
	listener net.Listener
}

// Manager owns the imposter registry (port -> running imposter) and the
// shared resources every imposter's Runtime is built from: the script
// pool, the flow-state store, and the HTTP client used to reach proxy
// targets. At most one imposter owns a given port at any instant;
// deletion is terminal.
type Manager struct {
	mu     sync.RWMutex
	byPort map[uint16]*entry

	pool       *scriptpool.Pool
	flowStore  flowstore.Store
	httpClient *http.Client
}

// NewManager constructs a Manager sharing the given script pool, flow
// store, and HTTP client across every imposter it creates.
func NewManager(pool *scriptpool.Pool, flowStore flowstore.Store, httpClient *http.Client) *Manager {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Manager{
		byPort:     make(map[uint16]*entry),
		pool:       pool,
		flowStore:  flowStore,
		httpClient: httpClient,
	}
}

// Create binds a new imposter. If imp.Port is zero, the dynamic port range
// [49152, 65535] is scanned in order for the first bindable port not
// already owned by this manager; the bound port is written back onto imp.
func (m *Manager) Create(imp *domain.Imposter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if imp.Port != 0 {
		if _, exists := m.byPort[imp.Port]; exists {
			return errPortInUse(imp.Port)
		}
		return m.bindLocked(imp, imp.Port)
	}

	for p := dynamicPortRangeLow; p <= dynamicPortRangeHigh; p++ {
		port := uint16(p)
		if _, exists := m.byPort[port]; exists {
			continue
		}
		if err := m.bindLocked(imp, port); err == nil {
			return nil
		}
	}
	return &ManagerError{Kind: "BindError", Message: "no available port in dynamic range"}
}

func (m *Manager) bindLocked(imp *domain.Imposter, port uint16) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return errBind(port, err)
	}

	imp.Port = port
	rt := NewRuntime(imp, m.pool, m.flowStore, m.httpClient)

	srv := &http.Server{
		Handler:      rt,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	if imp.Protocol == domain.ProtocolHTTPS {
		tlsConfig, err := tlsConfigFor(imp.CertPEM, imp.KeyPEM)
		if err != nil {
			ln.Close()
			return errBind(port, err)
		}
		srv.TLSConfig = tlsConfig
		if imp.CertPEM == "" && len(tlsConfig.Certificates) > 0 && len(tlsConfig.Certificates[0].Certificate) > 0 {
			imp.CertPEM = string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: tlsConfig.Certificates[0].Certificate[0]}))
		}
		ln = tls.NewListener(ln, tlsConfig)
	}

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logging.Op().Error("imposter server stopped", "port", port, "error", err)
		}
	}()

	m.byPort[port] = &entry{runtime: rt, server: srv, listener: ln}
	return nil
}

// Delete stops and removes the imposter on port, returning its config.
func (m *Manager) Delete(port uint16) (*domain.Imposter, error) {
	m.mu.Lock()
	e, ok := m.byPort[port]
	if !ok {
		m.mu.Unlock()
		return nil, errNotFound(port)
	}
	delete(m.byPort, port)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = e.server.Shutdown(ctx)
	return e.runtime.Imposter, nil
}

// DeleteAll stops and removes every imposter, returning their configs.
func (m *Manager) DeleteAll() []*domain.Imposter {
	m.mu.Lock()
	ports := make([]uint16, 0, len(m.byPort))
	for p := range m.byPort {
		ports = append(ports, p)
	}
	m.mu.Unlock()

	out := make([]*domain.Imposter, 0, len(ports))
	for _, p := range ports {
		if imp, err := m.Delete(p); err == nil {
			out = append(out, imp)
		}
	}
	return out
}

// Get returns the imposter on port, or NotFound.
func (m *Manager) Get(port uint16) (*domain.Imposter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.byPort[port]
	if !ok {
		return nil, errNotFound(port)
	}
	return e.runtime.Imposter, nil
}

// List returns every imposter this manager owns, in no particular order.
func (m *Manager) List() []*domain.Imposter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Imposter, 0, len(m.byPort))
	for _, e := range m.byPort {
		out = append(out, e.runtime.Imposter)
	}
	return out
}

// SetEnabled toggles an imposter's enabled flag (disable/enable admin ops).
func (m *Manager) SetEnabled(port uint16, enabled bool) error {
	imp, err := m.Get(port)
	if err != nil {
		return err
	}
	imp.Enabled = enabled
	return nil
}

// ReplaceStubs atomically replaces the stub list and invalidates the
// runtime's compiled-predicate cache for stubs no longer present.
func (m *Manager) ReplaceStubs(port uint16, stubs []*domain.Stub) error {
	e, err := m.entryFor(port)
	if err != nil {
		return err
	}
	e.runtime.Imposter.SetStubs(stubs)
	m.invalidatePredicates(e)
	return nil
}

// AddStub inserts a stub at index (or appends when index < 0).
func (m *Manager) AddStub(port uint16, stub *domain.Stub, index int) error {
	e, err := m.entryFor(port)
	if err != nil {
		return err
	}
	e.runtime.Imposter.AddStub(stub, index)
	m.invalidatePredicates(e)
	return nil
}

// ReplaceStub overwrites the stub at index.
func (m *Manager) ReplaceStub(port uint16, index int, stub *domain.Stub) error {
	e, err := m.entryFor(port)
	if err != nil {
		return err
	}
	if !e.runtime.Imposter.ReplaceStub(index, stub) {
		return fmt.Errorf("imposter: stub index %d out of bounds", index)
	}
	m.invalidatePredicates(e)
	return nil
}

// DeleteStub removes the stub at index.
func (m *Manager) DeleteStub(port uint16, index int) error {
	e, err := m.entryFor(port)
	if err != nil {
		return err
	}
	if !e.runtime.Imposter.DeleteStub(index) {
		return fmt.Errorf("imposter: stub index %d out of bounds", index)
	}
	m.invalidatePredicates(e)
	return nil
}

// GetStub returns the stub at index, or an error if out of bounds.
func (m *Manager) GetStub(port uint16, index int) (*domain.Stub, error) {
	e, err := m.entryFor(port)
	if err != nil {
		return nil, err
	}
	stub := e.runtime.Imposter.GetStub(index)
	if stub == nil {
		return nil, fmt.Errorf("imposter: stub index %d out of bounds", index)
	}
	return stub, nil
}

// ClearRecordedRequests empties an imposter's savedRequests buffer.
func (m *Manager) ClearRecordedRequests(port uint16) error {
	e, err := m.entryFor(port)
	if err != nil {
		return err
	}
	e.runtime.Imposter.ClearRecordedRequests()
	return nil
}

// ClearSavedProxyResponses drops every Proxy response variant's recorded
// store on the imposter, so subsequent proxyOnce/proxyAlways responses
// forward upstream again instead of replaying stale recordings.
func (m *Manager) ClearSavedProxyResponses(port uint16) error {
	e, err := m.entryFor(port)
	if err != nil {
		return err
	}
	e.runtime.proxies.clear()
	return nil
}

func (m *Manager) entryFor(port uint16) (*entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.byPort[port]
	if !ok {
		return nil, errNotFound(port)
	}
	return e, nil
}

func (m *Manager) invalidatePredicates(e *entry) {
	stubs := e.runtime.Imposter.Stubs()
	live := make(map[string]bool, len(stubs))
	for i, s := range stubs {
		live[stubKey(i, s)] = true
	}
	e.runtime.predicates.invalidate(live)
}
