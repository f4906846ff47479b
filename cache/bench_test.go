package cache

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func BenchmarkMemoryCache_Get_Hit(b *testing.B) {
	c := NewMemoryCache(DefaultPolicy())
	ctx := context.Background()
	_ = c.Set(ctx, "bench-key", []byte("bench-value"), time.Hour)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = c.Get(ctx, "bench-key")
	}
}

func BenchmarkMemoryCache_Set(b *testing.B) {
	c := NewMemoryCache(DefaultPolicy())
	ctx := context.Background()
	value := []byte("bench-value")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Set(ctx, fmt.Sprintf("key-%d", i%1024), value, time.Hour)
	}
}

func BenchmarkMemoryCache_Concurrent_ReadHeavy(b *testing.B) {
	c := NewMemoryCache(DefaultPolicy())
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		_ = c.Set(ctx, fmt.Sprintf("key-%d", i), []byte("value"), time.Hour)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_, _, _ = c.Get(ctx, fmt.Sprintf("key-%d", i%100))
			i++
		}
	})
}

func BenchmarkHashKey(b *testing.B) {
	serial := []byte("0123456789abcdef")
	issuer := []byte("CN=Example Intermediate CA,O=Example,C=US")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = HashKey(serial, issuer)
	}
}

func BenchmarkPolicy_EffectiveTTL(b *testing.B) {
	p := DefaultPolicy()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = p.EffectiveTTL(30 * time.Minute)
	}
}
