// Package redis connects to the Redis server used for cross-instance
// realtime fan-out.
//
// Redis is optional. When REDIS_URL is empty the service keeps channels in
// memory and every client must reach the same instance.
//
//	cfg, err := config.Load[redis.Config]()
//	if err != nil {
//	    return err
//	}
//	if cfg.Enabled() {
//	    client, err := redis.Connect(ctx, cfg)
//	    if err != nil {
//	        return err
//	    }
//	    defer client.Close()
//	    transport := realtime.NewRedisTransport(client, realtime.WithChannelPrefix(cfg.ChannelPrefix))
//	}
//
// Healthcheck checks PING and Pub/Sub availability for readiness probes.
package redis
