//go:build integration

package postcache_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	testcontainers "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/goforj/postcache"
	"github.com/goforj/postcache/postcachefake"
	"github.com/goforj/postcache/snapshottest"
)

// selectedIntegrationDrivers chooses which backends run under the integration tag.
// INTEGRATION_DRIVER may be "all" (default) or a comma-separated list such as "redis,postgres".
func selectedIntegrationDrivers() map[string]bool {
	selected := map[string]bool{
		"redis":    true,
		"postgres": true,
		"mysql":    true,
		"nats":     true,
		"dynamodb": true,
	}
	value := strings.TrimSpace(strings.ToLower(os.Getenv("INTEGRATION_DRIVER")))
	if value == "" || value == "all" {
		return selected
	}
	for key := range selected {
		selected[key] = false
	}
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			selected[part] = true
		}
	}
	return selected
}

func startContainer(ctx context.Context, req testcontainers.ContainerRequest, port string) (testcontainers.Container, string, error) {
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, "", err
	}
	host, err := c.Host(ctx)
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, "", err
	}
	mapped, err := c.MappedPort(ctx, nat.Port(port))
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, "", err
	}
	return c, host + ":" + mapped.Port(), nil
}

func startIntegrationStore(t *testing.T, driver string) postcache.SnapshotStore {
	t.Helper()
	ctx := context.Background()

	var (
		req  testcontainers.ContainerRequest
		port string
	)
	switch driver {
	case "redis":
		port = "6379/tcp"
		req = testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{port},
			WaitingFor:   wait.ForListeningPort(nat.Port(port)).WithStartupTimeout(30 * time.Second),
		}
	case "postgres":
		port = "5432/tcp"
		req = testcontainers.ContainerRequest{
			Image:        "postgres:16-bookworm",
			Env:          map[string]string{"POSTGRES_PASSWORD": "pass", "POSTGRES_USER": "user", "POSTGRES_DB": "app"},
			ExposedPorts: []string{port},
			WaitingFor:   wait.ForListeningPort(nat.Port(port)).WithStartupTimeout(60 * time.Second),
		}
	case "mysql":
		port = "3306/tcp"
		req = testcontainers.ContainerRequest{
			Image: "mysql:8",
			Env: map[string]string{
				"MYSQL_ROOT_PASSWORD": "pass",
				"MYSQL_DATABASE":      "app",
				"MYSQL_USER":          "user",
				"MYSQL_PASSWORD":      "pass",
			},
			ExposedPorts: []string{port},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort(nat.Port(port)).WithStartupTimeout(90*time.Second),
				wait.ForLog("ready for connections").WithOccurrence(2).WithStartupTimeout(90*time.Second),
			),
		}
	case "nats":
		port = "4222/tcp"
		req = testcontainers.ContainerRequest{
			Image:        "nats:2",
			Cmd:          []string{"-js"},
			ExposedPorts: []string{port},
			WaitingFor:   wait.ForLog("Server is ready").WithStartupTimeout(30 * time.Second),
		}
	case "dynamodb":
		port = "8000/tcp"
		req = testcontainers.ContainerRequest{
			Image:        "amazon/dynamodb-local:latest",
			ExposedPorts: []string{port},
			WaitingFor:   wait.ForListeningPort(nat.Port(port)).WithStartupTimeout(60 * time.Second),
		}
	default:
		t.Fatalf("unknown integration driver %q", driver)
	}

	c, addr, err := startContainer(ctx, req, port)
	if err != nil {
		t.Fatalf("start %s container: %v", driver, err)
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	var store postcache.SnapshotStore
	switch driver {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: addr})
		t.Cleanup(func() { _ = client.Close() })
		store = postcache.NewRedisSnapshotStore(ctx, client, postcache.WithPrefix("it"))
	case "postgres":
		dsn := "postgres://user:pass@" + addr + "/app?sslmode=disable"
		store = postcache.NewSnapshotStoreWith(ctx, postcache.DriverSQL, postcache.WithSQL("pgx", dsn, ""))
	case "mysql":
		dsn := "user:pass@tcp(" + addr + ")/app?parseTime=true"
		store = postcache.NewSnapshotStoreWith(ctx, postcache.DriverSQL, postcache.WithSQL("mysql", dsn, ""))
	case "nats":
		nc, err := nats.Connect("nats://" + addr)
		if err != nil {
			t.Fatalf("connect nats: %v", err)
		}
		t.Cleanup(nc.Close)
		kv, err := postcache.NewNATSKeyValue(nc, fmt.Sprintf("IT_%d", time.Now().UnixNano()%1_000_000))
		if err != nil {
			t.Fatalf("open bucket: %v", err)
		}
		store = postcache.NewNATSSnapshotStore(ctx, kv)
	case "dynamodb":
		store = postcache.NewSnapshotStoreWith(ctx, postcache.DriverDynamo,
			postcache.WithDynamoEndpoint("http://"+addr),
			postcache.WithDynamoTable("postcache_it"),
		)
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		t.Cleanup(func() { _ = closer.Close() })
	}
	return store
}

func TestIntegrationSnapshotBackends(t *testing.T) {
	drivers := selectedIntegrationDrivers()
	for _, driver := range []string{"redis", "postgres", "mysql", "nats", "dynamodb"} {
		if !drivers[driver] {
			continue
		}
		t.Run(driver, func(t *testing.T) {
			slot := startIntegrationStore(t, driver)
			snapshottest.RunSnapshotContract(t, slot, snapshottest.Options{CaseName: t.Name()})

			ctx := context.Background()
			fake := postcachefake.New().SeedPosts(samplePosts()...).SeedUsers(sampleUsers()...)
			first := newTestStore(t, fake, postcache.WithSnapshotStore(slot))
			if _, err := first.FetchPosts(ctx, false); err != nil {
				t.Fatalf("fetch posts: %v", err)
			}
			if _, err := first.FetchUsers(ctx, false); err != nil {
				t.Fatalf("fetch users: %v", err)
			}

			second := newTestStore(t, postcachefake.New(), postcache.WithSnapshotStore(slot))
			st := second.State()
			if len(st.Posts) != 3 || len(st.Users) != 2 {
				t.Fatalf("expected snapshot restored from %s, got posts=%d users=%d", driver, len(st.Posts), len(st.Users))
			}
		})
	}
}
