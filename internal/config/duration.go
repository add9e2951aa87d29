package config

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const day = 24 * time.Hour

// Duration is a non-negative time.Duration that also accepts a leading
// day count, e.g. "1d", "2d12h".
type Duration struct {
	time.Duration
}

// EnvDecode implements envconfig.Decoder
func (d *Duration) EnvDecode(_ context.Context, v string) error {
	parsed, err := parseDuration(strings.TrimSpace(v))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func parseDuration(v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}

	var total time.Duration
	if days, rest, ok := strings.Cut(v, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid day count in duration %q", v)
		}
		total = time.Duration(n) * day
		v = rest
	}

	if v != "" {
		rest, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %w", err)
		}
		total += rest
	}

	if total < 0 {
		return 0, fmt.Errorf("duration %s must not be negative", total)
	}
	return total, nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	return d.EnvDecode(context.Background(), string(text))
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}
