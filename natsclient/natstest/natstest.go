// Package natstest starts a throwaway NATS server in a container for
// integration tests.
package natstest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/c360/fnruntime/natsclient"
)

// DefaultImage is the NATS server image used by Start
const DefaultImage = "nats:2.11.7-alpine"

// Server is a running NATS container with a connected client
type Server struct {
	URL    string
	Client *natsclient.Client

	container testcontainers.Container
}

// Start runs a NATS container and connects a client to it. Both are torn
// down by t.Cleanup.
func Start(t testing.TB, opts ...natsclient.ClientOption) *Server {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        DefaultImage,
			ExposedPorts: []string{"4222/tcp", "8222/tcp"},
			Cmd:          []string{"--port", "4222", "--http_port", "8222"},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("4222/tcp"),
				wait.ForHTTP("/").WithPort("8222/tcp").WithStartupTimeout(30*time.Second),
			),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start NATS container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "4222")
	if err != nil {
		t.Fatalf("mapped port: %v", err)
	}
	url := fmt.Sprintf("nats://%s:%s", host, port.Port())

	opts = append([]natsclient.ClientOption{
		natsclient.WithTimeout(5 * time.Second),
		natsclient.WithMaxReconnects(0),
		natsclient.WithHealthInterval(0),
	}, opts...)
	client, err := natsclient.NewClient(url, opts...)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = client.Close(context.Background()) })

	return &Server{URL: url, Client: client, container: container}
}
