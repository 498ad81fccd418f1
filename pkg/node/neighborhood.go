package node

// SuspicionThreshold is the count either charge must reach for a peer to
// be considered suspicious.
const SuspicionThreshold = 3

// suspicion holds the two independent strike counters tracked per peer.
type suspicion struct {
	connection int
	reply      int
}

func (s *suspicion) accuse(charge Charge) {
	switch charge {
	case ChargeConnection:
		s.connection++
	case ChargeReply:
		s.reply++
	}
}

func (s *suspicion) dismiss(charge Charge) {
	switch charge {
	case ChargeConnection:
		s.connection = 0
	case ChargeReply:
		s.reply = 0
	}
}

func (s *suspicion) convict() {
	s.connection = SuspicionThreshold
	s.reply = SuspicionThreshold
}

func (s *suspicion) isSuspicious() bool {
	return s.connection >= SuspicionThreshold || s.reply >= SuspicionThreshold
}

// Neighbor is the per-peer state owned by a Neighborhood.
type Neighbor struct {
	Suspicion   suspicion
	SuspectedBy map[Address]struct{}
	Online      bool
}

func newNeighbor() *Neighbor {
	return &Neighbor{
		SuspectedBy: make(map[Address]struct{}),
		Online:      true,
	}
}

// Neighborhood is the pure, I/O-free store of everything a node knows
// about its peers: suspicion bookkeeping, vote tallies, and membership.
type Neighborhood struct {
	peers map[Address]*Neighbor
}

// NewNeighborhood returns an empty Neighborhood.
func NewNeighborhood() *Neighborhood {
	return &Neighborhood{peers: make(map[Address]*Neighbor)}
}

// Register inserts a fresh default Neighbor at addr, evicting any prior
// entry. A re-Register signals the peer has restarted; prior accusations
// and votes against it are void.
func (n *Neighborhood) Register(addr Address) {
	n.peers[addr] = newNeighbor()
}

// Accuse increments the named charge for addr. No-op for unknown peers.
func (n *Neighborhood) Accuse(addr Address, charge Charge) {
	if nb, ok := n.peers[addr]; ok {
		nb.Suspicion.accuse(charge)
	}
}

// Dismiss resets the named charge to zero for addr. No-op for unknown peers.
func (n *Neighborhood) Dismiss(addr Address, charge Charge) {
	if nb, ok := n.peers[addr]; ok {
		nb.Suspicion.dismiss(charge)
	}
}

// Report records accuser's opinion of which peers are suspects and
// re-evaluates every neighbor's online status against the quorum rule:
// a strict majority of the entire neighborhood (size >= 3) must suspect a
// peer before it is taken offline.
func (n *Neighborhood) Report(suspects map[Address]struct{}, accuser Address) {
	size := len(n.peers)
	for addr, nb := range n.peers {
		if _, suspected := suspects[addr]; suspected {
			nb.SuspectedBy[accuser] = struct{}{}
		} else {
			delete(nb.SuspectedBy, accuser)
		}

		if size >= 3 && len(nb.SuspectedBy) > size/2 {
			nb.Suspicion.convict()
			nb.Online = false
		} else {
			nb.Online = true
		}
	}
}

// GetSuspects returns every address whose local suspicion has reached the
// threshold on either charge.
func (n *Neighborhood) GetSuspects() map[Address]struct{} {
	suspects := make(map[Address]struct{})
	for addr, nb := range n.peers {
		if nb.Suspicion.isSuspicious() {
			suspects[addr] = struct{}{}
		}
	}
	return suspects
}

// SelectGossipers returns every address currently marked online.
func (n *Neighborhood) SelectGossipers() []Address {
	var out []Address
	for addr, nb := range n.peers {
		if nb.Online {
			out = append(out, addr)
		}
	}
	return out
}

// GetAllNeighbors returns every known address, in no particular order.
func (n *Neighborhood) GetAllNeighbors() []Address {
	out := make([]Address, 0, len(n.peers))
	for addr := range n.peers {
		out = append(out, addr)
	}
	return out
}

// IsRegistered reports whether addr is already known.
func (n *Neighborhood) IsRegistered(addr Address) bool {
	_, ok := n.peers[addr]
	return ok
}

// Size returns the number of known peers.
func (n *Neighborhood) Size() int {
	return len(n.peers)
}

// Neighbor returns a read-only copy of one peer's state, for tests and
// metrics. The second return value is false for unknown peers.
func (n *Neighborhood) Neighbor(addr Address) (Neighbor, bool) {
	nb, ok := n.peers[addr]
	if !ok {
		return Neighbor{}, false
	}
	cp := *nb
	cp.SuspectedBy = make(map[Address]struct{}, len(nb.SuspectedBy))
	for a := range nb.SuspectedBy {
		cp.SuspectedBy[a] = struct{}{}
	}
	return cp, true
}
