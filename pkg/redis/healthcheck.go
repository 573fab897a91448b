package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// Healthcheck reports whether cross-instance fan-out works: the server must
// answer PING and list the Pub/Sub channels under channelPrefix. Managed
// Redis offerings that disable PUBSUB fail here instead of silently
// dropping envelopes.
func Healthcheck(client redis.UniversalClient, channelPrefix string) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return errors.Join(ErrFanoutUnavailable, err)
		}
		if err := client.PubSubChannels(ctx, channelPrefix+"*").Err(); err != nil {
			return errors.Join(ErrFanoutUnavailable, err)
		}
		return nil
	}
}
