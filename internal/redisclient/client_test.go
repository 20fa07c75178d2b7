package redisclient

import (
	"context"
	"testing"
	"time"

	"news-radar/internal/config"
)

func TestNewAppliesTimeout(t *testing.T) {
	rdb := New(config.RedisConfig{Addr: "127.0.0.1:6379", DB: 2, Timeout: 750 * time.Millisecond})
	defer rdb.Close()
	o := rdb.Options()
	if o.DialTimeout != 750*time.Millisecond || o.ReadTimeout != 750*time.Millisecond {
		t.Fatalf("timeouts not applied: dial=%s read=%s", o.DialTimeout, o.ReadTimeout)
	}
	if o.DB != 2 {
		t.Fatalf("DB = %d", o.DB)
	}
}

func TestConnectFailsFast(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	// Port 1 is reserved and refuses connections.
	if _, err := Connect(ctx, config.RedisConfig{Addr: "127.0.0.1:1", Timeout: 200 * time.Millisecond}); err == nil {
		t.Fatalf("expected ping error")
	}
}
