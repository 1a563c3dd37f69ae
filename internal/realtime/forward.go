package realtime

import "encoding/json"

// Forward relays every value from src to one client as events of type typ.
// It returns when the client disconnects or src closes.
func Forward[T any](h *Hub, c *Client, typ string, src <-chan T) {
	for {
		select {
		case <-c.Done():
			return
		case v, ok := <-src:
			if !ok {
				return
			}
			h.sendToClient(c, Event{Type: typ, Payload: v})
		}
	}
}

func (h *Hub) sendToClient(c *Client, ev Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("failed to marshal event", map[string]interface{}{"type": ev.Type, "error": err})
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.userClients[c.UserID][c] {
		return
	}
	select {
	case c.Send <- msg:
	default:
		h.logger.Warn("client send buffer full, event dropped", map[string]interface{}{
			"userId":   c.UserID,
			"clientId": c.ID,
			"type":     ev.Type,
		})
	}
}
