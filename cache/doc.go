// Package cache memoizes the results of remote fetches.
//
// # Stores
//
// A [Store] is one backend. Two are provided:
//
//   - [NewRedis]: backed by Redis using [github.com/redis/go-redis/v9].
//     Values are serialized with msgpack ([github.com/vmihailenco/msgpack/v5])
//     and expire through Redis' native TTL. Reads return an [Encoded] payload.
//     Each operation is bounded by [DefaultQueryTimeout].
//
//   - [NewInMemory]: an in-process map guarded by a mutex. Values are stored
//     as-is. Expired entries are dropped when read and by a background sweeper
//     running every [DefaultExpiryCheck]. Lost on restart.
//
// # Facade
//
// A [Facade] selects the store once, on first use. With a Redis URL it dials
// and PINGs within [DefaultProbeTimeout]; on success Redis is used for the
// Facade's lifetime, on failure the in-memory store is used and the reason is
// kept in [Facade.FallbackReason]. Without a URL the in-memory store is used
// directly. Concurrent first calls wait for the single probe. There is no
// re-probe: a Redis failure after resolution is returned to the caller.
//
// Construct one Facade at startup and pass it to everything that caches.
//
// # Keys
//
// [Key] renders name:json(positional):json(keyword). Keyword names are sorted
// so their order does not matter, positional order does. Arguments without a
// canonical JSON form fail with an [*EncodingError].
//
// # Memoize
//
// [Memoize] wraps a [Producer]:
//
//	fetch := cache.Memoize(c, "fetch_content", fetchPage,
//	    func(url string) ([]any, map[string]any) { return []any{url}, nil },
//	    cache.WithTTL(30*time.Minute),
//	)
//	text, found, err := fetch(ctx, "https://example.com")
//
// A Producer returns (value, found, error). found=false is "no value": it is
// returned to the caller but never cached, so the next call runs the producer
// again. Producer errors are returned and nothing is cached.
//
// Cache failures degrade to the uncached path: a failed read counts as a miss,
// a failed write is logged and the value is still returned.
package cache
