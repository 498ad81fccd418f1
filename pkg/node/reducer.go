package node

import "log"

// Step is the pure reducer: it folds one Event into zero or more outbound
// Messages, mutating only this Node's own state. It performs no I/O and
// never blocks.
func (n *Node) Step(event Event) []Message {
	switch e := event.(type) {
	case MessageEvent:
		return n.stepMessage(e.Msg)
	case TriggerEvent:
		return n.stepTrigger(e.Trig)
	default:
		return nil
	}
}

func (n *Node) stepMessage(m Message) []Message {
	// Receipt of any byte from a peer retracts connection-failure
	// accusations against it, unconditionally.
	n.neigh.Dismiss(m.Src, ChargeConnection)

	switch p := m.Payload.(type) {
	case Register:
		// Snapshot the neighborhood before inserting the joiner, leaving the
		// joiner out even when it was already registered (a restart), so it
		// never learns its own address.
		known := make([]Address, 0, n.neigh.Size())
		for _, a := range n.neigh.GetAllNeighbors() {
			if a != m.Src {
				known = append(known, a)
			}
		}
		n.neigh.Register(m.Src)
		id := m.ID
		return []Message{n.message(m.Src, &id, RegisterOk{Known: known})}

	case RegisterOk:
		n.handleReply(m.ReplyTo, m.Src)
		var out []Message
		for _, addr := range p.Known {
			if n.neigh.IsRegistered(addr) {
				continue
			}
			n.neigh.Register(addr)
			out = append(out, n.message(addr, nil, Register{}))
		}
		return out

	case GossipRandom:
		log.Printf("[node] message from %s: %s", m.Src, p.Message)
		id := m.ID
		return []Message{n.message(m.Src, &id, GossipRandomOk{})}

	case GossipRandomOk:
		n.handleReply(m.ReplyTo, m.Src)
		return nil

	case GossipSuspect:
		n.neigh.Report(p.Suspects, m.Src)
		id := m.ID
		return []Message{n.message(m.Src, &id, GossipSuspectOk{})}

	case GossipSuspectOk:
		n.handleReply(m.ReplyTo, m.Src)
		return nil

	default:
		log.Printf("[node] dropping message with unknown payload from %s", m.Src)
		return nil
	}
}

// handleReply retires the pending-reply entry for replyTo, dismissing the
// Reply charge only when the reply came from the address the request was
// actually sent to.
func (n *Node) handleReply(replyTo *uint32, src Address) {
	if replyTo == nil {
		log.Printf("[node] reply from %s carries no reply_to", src)
		return
	}
	entry, ok := n.pending.take(*replyTo)
	if !ok {
		log.Printf("[node] unexpected reply %d from %s", *replyTo, src)
		return
	}
	if entry.dst != src {
		log.Printf("[node] mis-addressed reply %d: expected %s, got %s", *replyTo, entry.dst, src)
		return
	}
	n.neigh.Dismiss(src, ChargeReply)
}

func (n *Node) stepTrigger(t Trigger) []Message {
	switch t.Kind {
	case TriggerRegister:
		n.neigh.Register(t.Addr)
		return []Message{n.message(t.Addr, nil, Register{})}

	case TriggerGossipRandom:
		return n.gossipRandom()

	case TriggerGossipSuspects:
		return n.gossipSuspects()

	case TriggerStrike:
		n.neigh.Accuse(t.Addr, ChargeConnection)
		return nil

	case TriggerCheckReplies:
		return n.checkReplies()

	default:
		return nil
	}
}

func (n *Node) gossipRandom() []Message {
	gossipers := n.neigh.SelectGossipers()
	out := make([]Message, 0, len(gossipers))
	for _, dst := range gossipers {
		out = append(out, n.message(dst, nil, GossipRandom{
			Message: "spicy scoop from " + n.self.String(),
		}))
	}
	return out
}

func (n *Node) gossipSuspects() []Message {
	suspects := n.neigh.GetSuspects()
	if len(suspects) == 0 {
		return nil
	}
	gossipers := n.neigh.SelectGossipers()
	out := make([]Message, 0, len(gossipers))
	for _, dst := range gossipers {
		out = append(out, n.message(dst, nil, GossipSuspect{Suspects: suspects}))
	}
	return out
}

func (n *Node) checkReplies() []Message {
	now := n.clock()
	for _, id := range n.pending.staleIDs(now) {
		entry, ok := n.pending.take(id)
		if !ok {
			continue
		}
		n.neigh.Accuse(entry.dst, ChargeReply)
	}
	return nil
}
