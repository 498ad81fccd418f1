package metrics

import "github.com/atvirokodosprendimai/gossipmesh/pkg/node"

// payloadKind names a payload for metric labels. It duplicates the
// unexported node.Payload.payloadKind via a type switch since pkg/metrics
// sits outside pkg/node and can only see exported identifiers.
func payloadKind(p node.Payload) string {
	switch p.(type) {
	case node.Register:
		return "Register"
	case node.RegisterOk:
		return "RegisterOk"
	case node.GossipRandom:
		return "GossipRandom"
	case node.GossipRandomOk:
		return "GossipRandomOk"
	case node.GossipSuspect:
		return "GossipSuspect"
	case node.GossipSuspectOk:
		return "GossipSuspectOk"
	default:
		return "unknown"
	}
}

// Observer returns a node.WithObserver callback that counts consumed events
// and produced messages into m. Pass it to node.New via node.WithObserver.
func (m *Metrics) Observer() func(node.Event, []node.Message) {
	return func(event node.Event, out []node.Message) {
		switch e := event.(type) {
		case node.MessageEvent:
			m.MessagesReceived.WithLabelValues(payloadKind(e.Msg.Payload)).Inc()
		case node.TriggerEvent:
			switch e.Trig.Kind {
			case node.TriggerRegister:
				m.RegistrationsAdded.Inc()
			case node.TriggerStrike:
				m.StrikesIssued.WithLabelValues(node.ChargeConnection.String()).Inc()
			}
		}
		for _, msg := range out {
			m.MessagesSent.WithLabelValues(payloadKind(msg.Payload)).Inc()
		}
	}
}
