package pdc

import (
	"sync"
	"sync/atomic"
)

// NodeID identifies a node in the latency graph.
type NodeID uint64

// NodeType classifies graph nodes.
type NodeType int

const (
	// NodeTrack is a mixer track
	NodeTrack NodeType = iota
	// NodeGroup is a group/folder channel
	NodeGroup
	// NodeFxReturn is an effect return channel
	NodeFxReturn
	// NodeMaster is the master output
	NodeMaster
	// NodeSidechain is a sidechain tap
	NodeSidechain
	// NodeSend is a send channel
	NodeSend
	// NodeVca is a VCA fader (no audio path latency of its own)
	NodeVca
)

// ConnectionType classifies graph edges.
type ConnectionType int

const (
	// ConnDirect is the main signal path
	ConnDirect ConnectionType = iota
	// ConnPreFaderSend taps before the fader
	ConnPreFaderSend
	// ConnPostFaderSend taps after the fader
	ConnPostFaderSend
	// ConnSidechain feeds a detector input
	ConnSidechain
)

// DefaultConstrainThreshold caps compensation at a monitoring-friendly
// latency when Constrain mode first turns on.
const DefaultConstrainThreshold = 512

// connection is an outgoing edge.
type connection struct {
	to       NodeID
	connType ConnectionType
}

// NodeInfo is the published latency state of one node.
type NodeInfo struct {
	ID            NodeID
	Type          NodeType
	PluginLatency uint32
	ManualDelay   int32
	PathLatency   uint32
	Compensation  uint32
	Bypassed      bool
	Inputs        []NodeID
	Outputs       []NodeID
}

// node is the internal mutable node record.
type node struct {
	id            NodeID
	nodeType      NodeType
	pluginLatency uint32
	manualDelay   int32
	pathLatency   uint32
	compensation  uint32
	bypassed      bool
	inputs        []NodeID
	outputs       []connection
}

// Stats is a snapshot of the manager for display.
type Stats struct {
	TotalLatencySamples  uint32  `json:"total_latency_samples"`
	TotalLatencyMs       float64 `json:"total_latency_ms"`
	Enabled              bool    `json:"enabled"`
	ConstrainEnabled     bool    `json:"constrain_enabled"`
	ConstrainThreshold   uint32  `json:"constrain_threshold"`
	CompensatedNodes     int     `json:"compensated_nodes"`
	BypassedNodes        int     `json:"bypassed_nodes"`
	HighestPluginLatency uint32  `json:"highest_plugin_latency"`
	HighestLatencyNode   NodeID  `json:"highest_latency_node"`
}

// Manager owns the latency graph. Graph edits and Recalculate run on
// the editor thread; Process runs on the audio thread and never
// blocks — when the delay-line lock is contended the block is passed
// through uncompensated rather than glitching.
type Manager struct {
	mu    sync.RWMutex
	nodes map[NodeID]*node

	delayMu    sync.Mutex
	delayLines map[NodeID]*DelayLine

	enabled            atomic.Bool
	constrainEnabled   atomic.Bool
	constrainThreshold atomic.Uint32
	maxLatency         atomic.Uint32
	sampleRate         atomic.Uint32
	needsRecalc        atomic.Bool
}

// NewManager creates an enabled manager with the default constrain
// threshold.
func NewManager(sampleRate uint32) *Manager {
	m := &Manager{
		nodes:      make(map[NodeID]*node),
		delayLines: make(map[NodeID]*DelayLine),
	}
	m.enabled.Store(true)
	m.constrainThreshold.Store(DefaultConstrainThreshold)
	m.sampleRate.Store(sampleRate)
	return m
}

// SetEnabled turns compensation on or off.
func (m *Manager) SetEnabled(enabled bool) {
	m.enabled.Store(enabled)
	m.needsRecalc.Store(true)
}

// IsEnabled reports whether compensation is active.
func (m *Manager) IsEnabled() bool {
	return m.enabled.Load()
}

// SetConstrainEnabled toggles Constrain Delay Compensation.
func (m *Manager) SetConstrainEnabled(enabled bool) {
	m.constrainEnabled.Store(enabled)
	m.needsRecalc.Store(true)
}

// IsConstrainEnabled reports the Constrain mode state.
func (m *Manager) IsConstrainEnabled() bool {
	return m.constrainEnabled.Load()
}

// SetConstrainThreshold sets the compensation cap in samples.
func (m *Manager) SetConstrainThreshold(samples uint32) {
	m.constrainThreshold.Store(samples)
	m.needsRecalc.Store(true)
}

// ConstrainThreshold returns the cap in samples.
func (m *Manager) ConstrainThreshold() uint32 {
	return m.constrainThreshold.Load()
}

// SetSampleRate updates the rate used for millisecond reporting.
func (m *Manager) SetSampleRate(sampleRate uint32) {
	if sampleRate > 0 {
		m.sampleRate.Store(sampleRate)
	}
}

// RegisterNode adds a node. Re-registering an existing ID is a no-op.
func (m *Manager) RegisterNode(id NodeID, nodeType NodeType) {
	m.mu.Lock()
	if _, exists := m.nodes[id]; !exists {
		m.nodes[id] = &node{id: id, nodeType: nodeType}

		m.delayMu.Lock()
		m.delayLines[id] = NewDelayLine(MaxDelaySamples)
		m.delayMu.Unlock()
	}
	m.mu.Unlock()
	m.needsRecalc.Store(true)
}

// UnregisterNode removes a node and every edge touching it.
func (m *Manager) UnregisterNode(id NodeID) {
	m.mu.Lock()
	delete(m.nodes, id)
	for _, n := range m.nodes {
		n.inputs = removeID(n.inputs, id)
		kept := n.outputs[:0]
		for _, c := range n.outputs {
			if c.to != id {
				kept = append(kept, c)
			}
		}
		n.outputs = kept
	}
	m.mu.Unlock()

	m.delayMu.Lock()
	delete(m.delayLines, id)
	m.delayMu.Unlock()

	m.needsRecalc.Store(true)
}

// AddConnection adds an edge. Unknown endpoints are ignored.
func (m *Manager) AddConnection(from, to NodeID, connType ConnectionType) {
	m.mu.Lock()
	src, okSrc := m.nodes[from]
	dst, okDst := m.nodes[to]
	if okSrc && okDst {
		src.outputs = append(src.outputs, connection{to: to, connType: connType})
		dst.inputs = append(dst.inputs, from)
	}
	m.mu.Unlock()
	m.needsRecalc.Store(true)
}

// RemoveConnection removes an edge. Unknown edges are ignored.
func (m *Manager) RemoveConnection(from, to NodeID) {
	m.mu.Lock()
	if src, ok := m.nodes[from]; ok {
		kept := src.outputs[:0]
		for _, c := range src.outputs {
			if c.to != to {
				kept = append(kept, c)
			}
		}
		src.outputs = kept
	}
	if dst, ok := m.nodes[to]; ok {
		dst.inputs = removeID(dst.inputs, from)
	}
	m.mu.Unlock()
	m.needsRecalc.Store(true)
}

// ReportLatency records a node's plugin-introduced latency.
func (m *Manager) ReportLatency(id NodeID, samples uint32) {
	m.mu.Lock()
	if n, ok := m.nodes[id]; ok {
		n.pluginLatency = samples
	}
	m.mu.Unlock()
	m.needsRecalc.Store(true)
}

// SetManualDelay sets a user delay offset; positive delays, negative
// advances. Recalculation adds only a positive offset to the path
// latency; a negative one adds nothing.
func (m *Manager) SetManualDelay(id NodeID, samples int32) {
	m.mu.Lock()
	if n, ok := m.nodes[id]; ok {
		n.manualDelay = samples
	}
	m.mu.Unlock()
	m.needsRecalc.Store(true)
}

// TotalLatency returns the compensated system latency in samples.
func (m *Manager) TotalLatency() uint32 {
	return m.maxLatency.Load()
}

// TotalLatencyMs returns the system latency in milliseconds.
func (m *Manager) TotalLatencyMs() float64 {
	rate := m.sampleRate.Load()
	if rate == 0 {
		return 0
	}
	return float64(m.maxLatency.Load()) / float64(rate) * 1000
}

// NodeInfo returns a copy of a node's state, or false.
func (m *Manager) NodeInfo(id NodeID) (NodeInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[id]
	if !ok {
		return NodeInfo{}, false
	}
	info := NodeInfo{
		ID:            n.id,
		Type:          n.nodeType,
		PluginLatency: n.pluginLatency,
		ManualDelay:   n.manualDelay,
		PathLatency:   n.pathLatency,
		Compensation:  n.compensation,
		Bypassed:      n.bypassed,
		Inputs:        append([]NodeID(nil), n.inputs...),
	}
	for _, c := range n.outputs {
		info.Outputs = append(info.Outputs, c.to)
	}
	return info, true
}

// Compensation returns a node's compensation delay (0 for unknown).
func (m *Manager) Compensation(id NodeID) uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if n, ok := m.nodes[id]; ok {
		return n.compensation
	}
	return 0
}

// IsNodeBypassed reports whether Constrain mode bypassed a node.
func (m *Manager) IsNodeBypassed(id NodeID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if n, ok := m.nodes[id]; ok {
		return n.bypassed
	}
	return false
}

// Recalculate recomputes path latencies and compensation. Must run
// off the audio thread. Skips entirely when nothing changed since the
// last run.
func (m *Manager) Recalculate() {
	if !m.needsRecalc.Swap(false) {
		return
	}

	enabled := m.enabled.Load()
	constrain := m.constrainEnabled.Load()
	threshold := m.constrainThreshold.Load()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.delayMu.Lock()
	defer m.delayMu.Unlock()

	if !enabled {
		for _, n := range m.nodes {
			n.compensation = 0
			n.bypassed = false
		}
		for _, line := range m.delayLines {
			line.SetDelay(0)
		}
		m.maxLatency.Store(0)
		return
	}

	sorted := m.topologicalSort()

	// Forward pass: longest input path plus own latency.
	for _, id := range sorted {
		n := m.nodes[id]
		maxInput := uint32(0)
		for _, in := range n.inputs {
			if inNode, ok := m.nodes[in]; ok && inNode.pathLatency > maxInput {
				maxInput = inNode.pathLatency
			}
		}
		manual := uint32(0)
		if n.manualDelay > 0 {
			manual = uint32(n.manualDelay)
		}
		n.pathLatency = maxInput + n.pluginLatency + manual
	}

	// System latency is the longest path into any leaf.
	maxLat := uint32(0)
	for _, n := range m.nodes {
		if len(n.outputs) == 0 && n.pathLatency > maxLat {
			maxLat = n.pathLatency
		}
	}
	if constrain && maxLat > threshold {
		maxLat = threshold
	}

	// Reverse pass: pad every path up to the system latency.
	for _, n := range m.nodes {
		if constrain && n.pluginLatency > threshold {
			n.compensation = 0
			n.bypassed = true
		} else {
			if maxLat > n.pathLatency {
				n.compensation = maxLat - n.pathLatency
			} else {
				n.compensation = 0
			}
			n.bypassed = false
		}

		if line, ok := m.delayLines[n.id]; ok {
			line.SetDelay(int(n.compensation))
		}
	}

	m.maxLatency.Store(maxLat)
}

// topologicalSort orders nodes inputs-first with three-color cycle
// detection; back edges of cycles are skipped rather than crashing.
// Caller holds m.mu.
func (m *Manager) topologicalSort() []NodeID {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	colors := make(map[NodeID]int, len(m.nodes))
	result := make([]NodeID, 0, len(m.nodes))

	var visit func(id NodeID)
	visit = func(id NodeID) {
		switch colors[id] {
		case black:
			return
		case gray:
			// Cycle: skip the back edge.
			return
		}
		colors[id] = gray
		if n, ok := m.nodes[id]; ok {
			for _, in := range n.inputs {
				visit(in)
			}
		}
		colors[id] = black
		result = append(result, id)
	}

	for id := range m.nodes {
		visit(id)
	}
	return result
}

// Process applies a node's compensation delay on the audio thread.
// When the delay-line lock cannot be taken immediately the block is
// skipped for this node only.
func (m *Manager) Process(id NodeID, left, right []float32) {
	if !m.enabled.Load() {
		return
	}
	if !m.delayMu.TryLock() {
		return
	}
	if line, ok := m.delayLines[id]; ok {
		line.Process(left, right)
	}
	m.delayMu.Unlock()
}

// ClearAll zeroes every delay buffer; call on stop or seek.
func (m *Manager) ClearAll() {
	m.delayMu.Lock()
	for _, line := range m.delayLines {
		line.Clear()
	}
	m.delayMu.Unlock()
}

// NodeIDs returns all registered node IDs.
func (m *Manager) NodeIDs() []NodeID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]NodeID, 0, len(m.nodes))
	for id := range m.nodes {
		ids = append(ids, id)
	}
	return ids
}

// Stats returns a display snapshot.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Stats{
		TotalLatencySamples: m.maxLatency.Load(),
		TotalLatencyMs:      m.TotalLatencyMs(),
		Enabled:             m.enabled.Load(),
		ConstrainEnabled:    m.constrainEnabled.Load(),
		ConstrainThreshold:  m.constrainThreshold.Load(),
	}

	for _, n := range m.nodes {
		if n.pluginLatency > s.HighestPluginLatency {
			s.HighestPluginLatency = n.pluginLatency
			s.HighestLatencyNode = n.id
		}
		if n.compensation > 0 {
			s.CompensatedNodes++
		}
		if n.bypassed {
			s.BypassedNodes++
		}
	}
	return s
}

func removeID(ids []NodeID, id NodeID) []NodeID {
	kept := ids[:0]
	for _, x := range ids {
		if x != id {
			kept = append(kept, x)
		}
	}
	return kept
}
