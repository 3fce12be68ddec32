package port

import "context"

// CodeNotifier delivers a short numeric code to an address. The core does
// not care about the channel; implementations cover SMS and email.
type CodeNotifier interface {
	SendCode(ctx context.Context, address, code string) error
}
