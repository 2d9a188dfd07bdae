// Package communicator implements the Communicator, the component that
// ties the reference algebra, the settings store, the post office and the
// pluggable transports together into send_message/receive_message
// (spec.md §4.5-§4.8).
package communicator

import (
	"fmt"

	"github.com/muscle3/muscle3-go/ref"
)

// Endpoint names one side of a conduit: the kernel it belongs to, the
// instance index within that kernel's ensemble (possibly empty, for a
// singleton), the port name, and the slot within that port (possibly
// empty, for an unslotted port). Mirrors communicator.py's Endpoint class.
type Endpoint struct {
	Kernel ref.Reference
	Index  []int
	Port   string
	Slot   []int
}

// Instance returns the full instance reference: kernel concatenated with
// its index, e.g. "macro[3]".
func (e Endpoint) Instance() ref.Reference {
	return e.Kernel.WithIndex(e.Index)
}

// Ref returns the full dotted reference identifying this endpoint,
// "<kernel><index>.<port><slot>", the form used as a PostOffice/Outbox
// key.
func (e Endpoint) Ref() ref.Reference {
	r := e.Instance()
	port := ref.MustParse(e.Port)
	r = r.Concat(port)
	return r.WithIndex(e.Slot)
}

func (e Endpoint) String() string {
	return e.Ref().String()
}

// PeerInfo is the static information the manager hands back about one
// peer conduit endpoint: which kernel and bare port name it names, the
// kernel's ensemble shape, and the locations its instances can be reached
// at.
type PeerInfo struct {
	// PeerKernel is the peer's kernel reference, e.g. "micro" or a nested
	// "sub.micro".
	PeerKernel ref.Reference
	// PeerPort is the bare port name on the peer side, e.g. "f_init".
	PeerPort string
	// Dims is the peer kernel's ensemble shape, e.g. []int{10} for a
	// 10-wide ensemble, or nil for a singleton.
	Dims []int
	// Locations is the ordered list of "<scheme>:<opaque>" strings
	// advertised by each instance of the peer ensemble, flattened in the
	// same order Dims implies.
	Locations []string
}

// PeerTable is the resolved view of conduit peers a Communicator received
// from the manager at connect() time: for each local port name, the
// PeerInfo describing what is on the other end (spec.md §4.5, §4.9).
type PeerTable struct {
	peers map[string]PeerInfo
}

// NewPeerTable builds a PeerTable from a local-port-name -> PeerInfo
// mapping, as returned by the manager's request_peers call.
func NewPeerTable(peers map[string]PeerInfo) *PeerTable {
	out := make(map[string]PeerInfo, len(peers))
	for k, v := range peers {
		out[k] = v
	}
	return &PeerTable{peers: out}
}

// Lookup returns the PeerInfo registered for localPort, and whether one
// exists — a missing entry means the port is disconnected (spec.md
// §4.10).
func (t *PeerTable) Lookup(localPort string) (PeerInfo, bool) {
	if t == nil {
		return PeerInfo{}, false
	}
	info, ok := t.peers[localPort]
	return info, ok
}

// flattenIndex computes the flat position of index within an ensemble of
// shape dims, row-major, mirroring the slot/index bookkeeping MUSCLE3 uses
// to pick one peer instance's location out of Dims/Locations.
func flattenIndex(index []int, dims []int) (int, error) {
	if len(index) != len(dims) {
		return 0, fmt.Errorf("communicator: index %v does not match dims %v", index, dims)
	}
	pos := 0
	for i := range index {
		if index[i] < 0 || index[i] >= dims[i] {
			return 0, fmt.Errorf("communicator: index %v out of bounds for dims %v", index, dims)
		}
		pos = pos*dims[i] + index[i]
	}
	return pos, nil
}

// ResolvePeerEndpoint computes the peer Endpoint and the location string to
// reach it for a message sent from localPort with the given local index,
// mirroring communicator.py's __get_peer_endpoint exactly: total_index =
// local_index + slot is formed by concatenation, then split at the peer
// kernel's own dimensionality d — total_index[:d] becomes the peer's
// instance index (which of its ensemble members to address) and
// total_index[d:] becomes the peer's slot. A sender's local index spills
// into the peer's slot when the peer has fewer ensemble dimensions than
// the sender supplies coordinates for, and a sender's slot becomes part of
// the peer's instance index when the peer has more (the "ensemble routing"
// example of spec.md §8: a singleton sender at slot=3 addressing peer
// dims=[4] resolves to peer index=[3], slot=[]).
func (t *PeerTable) ResolvePeerEndpoint(localPort string, localIndex []int, slot []int) (Endpoint, string, error) {
	info, ok := t.Lookup(localPort)
	if !ok {
		return Endpoint{}, "", fmt.Errorf("communicator: port %q has no peer", localPort)
	}

	total := make([]int, 0, len(localIndex)+len(slot))
	total = append(total, localIndex...)
	total = append(total, slot...)

	d := len(info.Dims)
	if d > len(total) {
		return Endpoint{}, "", fmt.Errorf("communicator: local index+slot %v too short for peer dims %v", total, info.Dims)
	}
	peerIndex := append([]int{}, total[:d]...)
	var peerSlot []int
	if d < len(total) {
		peerSlot = append([]int{}, total[d:]...)
	}

	pos, err := flattenIndex(peerIndex, info.Dims)
	if err != nil {
		return Endpoint{}, "", err
	}
	if len(info.Locations) == 0 {
		pos = 0
	} else if pos >= len(info.Locations) {
		return Endpoint{}, "", fmt.Errorf("communicator: flattened index %d out of range for %d peer locations", pos, len(info.Locations))
	}

	endpoint := Endpoint{
		Kernel: info.PeerKernel,
		Index:  peerIndex,
		Port:   info.PeerPort,
		Slot:   peerSlot,
	}

	var location string
	if len(info.Locations) > 0 {
		location = info.Locations[pos]
	}
	return endpoint, location, nil
}
