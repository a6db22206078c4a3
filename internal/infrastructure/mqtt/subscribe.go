package mqtt

import (
	"fmt"
)

// Subscribe routes messages matching filter to handler at the configured QoS.
//
// Filters may use the + and # wildcards, e.g. "/read/+/+/setup/hello".
// The filter is remembered once the broker acknowledges it and is
// subscribed again after every reconnect.
func (c *Client) Subscribe(filter string, handler MessageHandler) error {
	return c.SubscribeQoS(filter, byte(c.cfg.QoS), handler)
}

// SubscribeQoS is Subscribe with an explicit maximum QoS. Subscribing an
// already known filter replaces its handler.
func (c *Client) SubscribeQoS(filter string, qos byte, handler MessageHandler) error {
	switch {
	case filter == "":
		return ErrInvalidTopic
	case qos > maxQoS:
		return ErrInvalidQoS
	case handler == nil:
		return fmt.Errorf("%w: nil handler for %s", ErrSubscribeFailed, filter)
	case !c.IsConnected():
		return ErrNotConnected
	}

	if err := await(c.client.Subscribe(filter, qos, c.wrapHandler(handler)), ErrSubscribeFailed); err != nil {
		return err
	}

	c.subMu.Lock()
	c.subscriptions[filter] = subscription{topic: filter, qos: qos, handler: handler}
	c.subMu.Unlock()
	return nil
}

// Unsubscribe stops routing filter. The filter is forgotten even when the
// broker does not acknowledge, so it is not restored on reconnect.
// Messages already in flight may still reach the old handler.
func (c *Client) Unsubscribe(filter string) error {
	if filter == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.subMu.Lock()
	delete(c.subscriptions, filter)
	c.subMu.Unlock()

	return await(c.client.Unsubscribe(filter), ErrUnsubscribeFailed)
}

// SubscriptionCount returns the number of remembered filters.
func (c *Client) SubscriptionCount() int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subscriptions)
}

// HasSubscription reports whether exactly this filter is remembered.
// Wildcards are not expanded.
func (c *Client) HasSubscription(filter string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	_, ok := c.subscriptions[filter]
	return ok
}
