package postcache

import (
	"fmt"
	"strings"
)

// Driver identifies a snapshot storage backend.
type Driver string

const (
	DriverNull   Driver = "null"
	DriverFile   Driver = "file"
	DriverMemory Driver = "memory"
	DriverRedis  Driver = "redis"
	DriverNATS   Driver = "nats"
	DriverDynamo Driver = "dynamodb"
	DriverSQL    Driver = "sql"
)

// ParseDriver maps a configuration value to a Driver. Matching ignores case
// and surrounding space; "dynamo" is accepted as an alias.
func ParseDriver(s string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "memory":
		return DriverMemory, nil
	case "null", "none":
		return DriverNull, nil
	case "file":
		return DriverFile, nil
	case "redis":
		return DriverRedis, nil
	case "nats":
		return DriverNATS, nil
	case "dynamodb", "dynamo":
		return DriverDynamo, nil
	case "sql":
		return DriverSQL, nil
	default:
		return "", fmt.Errorf("unknown snapshot driver %q: %w", s, ErrInvalidArgument)
	}
}
