// Package sinks builds the persistence fanout from configuration.
package sinks

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/opsloop/remedia/cmd/remediad/config"
	"github.com/opsloop/remedia/pkg/sink"
)

// New creates the persistence fanout. The in-memory state store is always
// the first sink so the dashboard API sees every record; redis and postgres
// backends are added according to cfg.Sinks.
func New(cfg *config.Config, state *sink.Memory, logger *slog.Logger) (sink.Sink, error) {
	sinks := []sink.Sink{state}

	for _, name := range strings.Split(cfg.Sinks, ",") {
		switch strings.TrimSpace(name) {
		case "", "memory":
			// state store is always wired

		case "redis":
			rs, err := sink.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisTTL)
			if err != nil {
				return nil, fmt.Errorf("redis sink: %w", err)
			}
			logger.Info("redis sink enabled", "addr", cfg.RedisAddr, "ttl", cfg.RedisTTL)
			sinks = append(sinks, rs)

		case "postgres":
			ps, err := sink.NewPostgres(cfg.PostgresDSN)
			if err != nil {
				return nil, fmt.Errorf("postgres sink: %w", err)
			}
			logger.Info("postgres sink enabled")
			sinks = append(sinks, ps)

		default:
			return nil, fmt.Errorf("unknown sink: %s", name)
		}
	}

	return sink.NewFanout(sinks...), nil
}
