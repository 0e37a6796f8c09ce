package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// problems collects every validation failure so one run reports them all.
type problems []error

func (p *problems) addf(format string, args ...any) {
	*p = append(*p, fmt.Errorf(format, args...))
}

func (p *problems) positive(field string, d time.Duration) {
	if d <= 0 {
		p.addf("%s: must be positive, got %s", field, d)
	}
}

func (p *problems) oneOf(field, value string, allowed ...string) {
	if !slices.Contains(allowed, strings.ToLower(value)) {
		p.addf("%s: %q is not one of %s", field, value, strings.Join(allowed, "|"))
	}
}

// Validate reports every invalid field, joined with errors.Join. Nil means
// the config is usable.
func (c *Config) Validate() error {
	var p problems

	if c.Instance.ID == "" {
		p.addf("instance.id: required")
	}
	p.oneOf("log.level", c.Log.Level, "debug", "info", "warn", "error")
	p.oneOf("log.format", c.Log.Format, "text", "json")

	c.Server.check(&p)
	c.Upbit.check(&p)
	p.positive("broadcast.flush_interval", c.Broadcast.FlushInterval)
	if c.Database.Enabled() {
		c.Database.check(&p)
	}
	if c.Redis.Enabled() {
		c.Redis.check(&p)
	}

	return errors.Join(p...)
}

func (s ServerConfig) check(p *problems) {
	if s.Port < 1 || s.Port > 65535 {
		p.addf("server.port: %d out of range 1-65535", s.Port)
	}
	if !strings.HasPrefix(s.WSPath, "/") {
		p.addf("server.ws_path: %q must begin with /", s.WSPath)
	}
	if s.SendQueueSize < 1 {
		p.addf("server.send_queue_size: must be at least 1")
	}
	if s.MaxMessageSize < 1 {
		p.addf("server.max_message_size: must be at least 1")
	}
	p.positive("server.ping_interval", s.PingInterval)
}

func (u UpbitConfig) check(p *problems) {
	if u.RestURL == "" {
		p.addf("upbit.rest_url: required")
	}
	if u.WSURL == "" {
		p.addf("upbit.ws_url: required")
	}
	if u.MaxRetries < 0 {
		p.addf("upbit.max_retries: must not be negative")
	}
	p.positive("upbit.reconnect_delay", u.ReconnectDelay)
	p.positive("upbit.batch_window", u.BatchWindow)
	if u.UnhealthyAfter < u.DegradedAfter {
		p.addf("upbit.unhealthy_after: %s is below degraded_after %s", u.UnhealthyAfter, u.DegradedAfter)
	}
}

func (d DatabaseConfig) check(p *problems) {
	for _, f := range []struct{ name, value string }{{"name", d.Name}, {"user", d.User}, {"password", d.Password}} {
		if f.value == "" {
			p.addf("database.%s: required", f.name)
		}
	}
	if d.MaxConns < 1 {
		p.addf("database.max_conns: must be at least 1")
	}
	if d.MinConns < 0 || d.MinConns > d.MaxConns {
		p.addf("database.min_conns: %d outside 0-%d", d.MinConns, d.MaxConns)
	}
}

func (r RedisConfig) check(p *problems) {
	p.positive("redis.interval", r.Interval)
	if r.TTL < r.Interval {
		p.addf("redis.ttl: %s is below interval %s", r.TTL, r.Interval)
	}
}
