// Package registry registers services with Consul for discovery.
package registry

import (
	"fmt"
	"net"

	"github.com/hashicorp/consul/api"
	"github.com/rs/zerolog"
)

// ConsulRegistry registers and deregisters a single service instance.
type ConsulRegistry struct {
	client    *api.Client
	serviceID string
	logger    *zerolog.Logger
}

// NewConsulRegistry connects to the Consul agent at addr.
func NewConsulRegistry(addr string, logger *zerolog.Logger) (*ConsulRegistry, error) {
	cfg := api.DefaultConfig()
	if addr != "" {
		cfg.Address = addr
	}

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}

	return &ConsulRegistry{
		client: client,
		logger: logger,
	}, nil
}

// Register announces the service instance with an HTTP health check on
// healthPath. httpAddr is the listen address of the service, e.g. ":8081".
func (r *ConsulRegistry) Register(serviceName, httpAddr, healthPath string) error {
	host, portStr, err := net.SplitHostPort(httpAddr)
	if err != nil {
		return fmt.Errorf("invalid http address %q: %w", httpAddr, err)
	}
	if host == "" {
		host = "127.0.0.1"
	}

	var port int
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
		return fmt.Errorf("invalid port in http address %q: %w", httpAddr, err)
	}

	r.serviceID = fmt.Sprintf("%s-%s-%d", serviceName, host, port)

	registration := &api.AgentServiceRegistration{
		ID:      r.serviceID,
		Name:    serviceName,
		Address: host,
		Port:    port,
		Check: &api.AgentServiceCheck{
			HTTP:                           fmt.Sprintf("http://%s:%d%s", host, port, healthPath),
			Interval:                       "10s",
			Timeout:                        "3s",
			DeregisterCriticalServiceAfter: "1m",
		},
	}

	if err := r.client.Agent().ServiceRegister(registration); err != nil {
		return fmt.Errorf("failed to register service with consul: %w", err)
	}

	r.logger.Info().Str("service_id", r.serviceID).Msg("registered with consul")

	return nil
}

// Deregister removes the service instance from the catalog.
func (r *ConsulRegistry) Deregister() {
	if r.serviceID == "" {
		return
	}

	if err := r.client.Agent().ServiceDeregister(r.serviceID); err != nil {
		r.logger.Error().Err(err).Str("service_id", r.serviceID).Msg("failed to deregister from consul")
		return
	}

	r.logger.Info().Str("service_id", r.serviceID).Msg("deregistered from consul")
}
