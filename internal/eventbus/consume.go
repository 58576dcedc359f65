package eventbus

import "context"

// Consume hands each payload of sub to handler until ctx is cancelled or the
// subscription closes.
func Consume[T any](ctx context.Context, sub *TypedSubscription[T], handler func(T)) {
	if sub == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-sub.C():
			if !ok {
				return
			}
			handler(env.Payload)
		}
	}
}
