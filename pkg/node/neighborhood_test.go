package node

import "testing"

func addr(port uint16) Address {
	return Address{Host: "127.0.0.1", Port: port}
}

func TestNeighborhoodRegisterResetsPriorState(t *testing.T) {
	n := NewNeighborhood()
	a := addr(9001)

	n.Register(a)
	n.Accuse(a, ChargeConnection)
	n.Accuse(a, ChargeConnection)
	n.Report(map[Address]struct{}{a: {}}, addr(9002))

	n.Register(a) // re-register, simulating a restart

	nb, ok := n.Neighbor(a)
	if !ok {
		t.Fatal("expected a to still be registered")
	}
	if nb.Suspicion.connection != 0 || nb.Suspicion.reply != 0 {
		t.Errorf("expected suspicion reset, got %+v", nb.Suspicion)
	}
	if len(nb.SuspectedBy) != 0 {
		t.Errorf("expected suspected_by reset, got %v", nb.SuspectedBy)
	}
	if !nb.Online {
		t.Errorf("expected re-registered peer to be online")
	}
}

func TestNeighborhoodAccuseUnknownIsNoop(t *testing.T) {
	n := NewNeighborhood()
	n.Accuse(addr(1), ChargeConnection)
	if _, ok := n.Neighbor(addr(1)); ok {
		t.Error("accusing an unknown peer must not register it")
	}
}

func TestNeighborhoodDismissClearsOnlyNamedCharge(t *testing.T) {
	n := NewNeighborhood()
	a := addr(1)
	n.Register(a)
	n.Accuse(a, ChargeConnection)
	n.Accuse(a, ChargeReply)
	n.Dismiss(a, ChargeConnection)

	nb, _ := n.Neighbor(a)
	if nb.Suspicion.connection != 0 {
		t.Errorf("expected connection charge cleared, got %d", nb.Suspicion.connection)
	}
	if nb.Suspicion.reply != 1 {
		t.Errorf("expected reply charge untouched, got %d", nb.Suspicion.reply)
	}
}

func TestGetSuspectsThreshold(t *testing.T) {
	n := NewNeighborhood()
	a := addr(1)
	n.Register(a)
	for i := 0; i < SuspicionThreshold; i++ {
		n.Accuse(a, ChargeConnection)
	}
	suspects := n.GetSuspects()
	if _, ok := suspects[a]; !ok {
		t.Errorf("expected %v to be a suspect after %d accusations", a, SuspicionThreshold)
	}
}

func TestReportRequiresQuorumOfAtLeastThree(t *testing.T) {
	n := NewNeighborhood()
	a, b, target := addr(1), addr(2), addr(3)
	n.Register(a)
	n.Register(b)
	n.Register(target)

	// Two-peer neighborhood (below the size>=3 guard): a single accuser
	// leaves the peer online (1 > 2/2 is false, and the guard applies too).
	tiny := NewNeighborhood()
	tiny.Register(a)
	tiny.Register(target)
	tiny.Report(map[Address]struct{}{target: {}}, a)
	nb, _ := tiny.Neighbor(target)
	if !nb.Online {
		t.Error("a 2-peer neighborhood must never vote a peer offline")
	}

	// Three-peer neighborhood: a strict majority (2 of the 3 registered
	// peers; the local node itself is not counted) flips online=false.
	n.Report(map[Address]struct{}{target: {}}, a)
	nb, _ = n.Neighbor(target)
	if !nb.Online {
		t.Fatal("one accuser out of three should not yet reach majority")
	}

	n.Report(map[Address]struct{}{target: {}}, b)
	nb, _ = n.Neighbor(target)
	if nb.Online {
		t.Error("expected target to flip offline once a strict majority accuses it")
	}
	if nb.Suspicion.connection != SuspicionThreshold || nb.Suspicion.reply != SuspicionThreshold {
		t.Errorf("expected jury_ruling to force both counters to threshold, got %+v", nb.Suspicion)
	}
}

func TestReportWithdrawsAccusationWhenDropped(t *testing.T) {
	n := NewNeighborhood()
	a, target := addr(1), addr(2)
	n.Register(a)
	n.Register(target)

	n.Report(map[Address]struct{}{target: {}}, a)
	nb, _ := n.Neighbor(target)
	if len(nb.SuspectedBy) != 1 {
		t.Fatalf("expected 1 accuser, got %d", len(nb.SuspectedBy))
	}

	n.Report(map[Address]struct{}{}, a)
	nb, _ = n.Neighbor(target)
	if len(nb.SuspectedBy) != 0 {
		t.Errorf("expected accusation withdrawn, got %v", nb.SuspectedBy)
	}
}

func TestSelectGossipersExcludesOffline(t *testing.T) {
	n := NewNeighborhood()
	a, b, target := addr(1), addr(2), addr(3)
	n.Register(a)
	n.Register(b)
	n.Register(target)
	n.Report(map[Address]struct{}{target: {}}, a)
	n.Report(map[Address]struct{}{target: {}}, b)

	for _, g := range n.SelectGossipers() {
		if g == target {
			t.Error("expected offline peer excluded from gossipers")
		}
	}
}
