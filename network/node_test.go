package network

import "testing"

func TestNewNodeHasNoPeersUntilStarted(t *testing.T) {
	n := NewNode("me", "127.0.0.1:0", nil)
	if len(n.Peers()) != 0 {
		t.Errorf("Peers() = %v, want empty before Start", n.Peers())
	}
	if n.Peer("anyone") != nil {
		t.Error("Peer() should return nil for an unconnected id")
	}
}

func TestBroadcastWithNoPeersIsANoop(t *testing.T) {
	n := NewNode("me", "127.0.0.1:0", nil)
	n.Broadcast(Message{Type: MsgHello})
}

func TestSendToOneWithNoPeersReturnsFalse(t *testing.T) {
	n := NewNode("me", "127.0.0.1:0", nil)
	if n.SendToOne(Message{Type: MsgBet}) {
		t.Error("SendToOne with no connected peers should return false")
	}
}

func TestDirectSendToUnknownPeerErrors(t *testing.T) {
	n := NewNode("me", "127.0.0.1:0", nil)
	if err := n.DirectSend("ghost", Message{Type: MsgBet}); err == nil {
		t.Error("expected an error sending to an unconnected peer")
	}
}

func TestHandleRegistersHandler(t *testing.T) {
	n := NewNode("me", "127.0.0.1:0", nil)
	called := false
	n.Handle(MsgBlock, func(*Peer, Message) { called = true })

	h, ok := n.handlers[MsgBlock]
	if !ok {
		t.Fatal("expected a handler to be registered for MsgBlock")
	}
	h(nil, Message{Type: MsgBlock})
	if !called {
		t.Error("registered handler was not invoked")
	}
}
