// Package cache provides expiring key/value tables.
//
// MemoryCache keeps entries in process; RedisCache shares them across
// processes and relies on Redis key expiry. Both apply a Policy that fills
// in and clamps TTLs. HashKey derives the fixed-width keys used for
// certificate verification entries.
package cache
