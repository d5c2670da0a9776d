package listener

// Pong answers server PINGs so the connection stays alive
type Pong struct {
	Adapter
}

// NewPong creates a keep-alive responder
func NewPong() *Pong {
	return &Pong{}
}

// OnPing echoes the payload back unchanged
func (p *Pong) OnPing(e *PingEvent) {
	if e.Conn == nil {
		return
	}
	e.Conn.SendRaw("PONG :" + e.Payload)
}
