// Package registry registers havenserver relay instances with Consul so
// peers can discover which replica holds a WebSocket connection for
// group fan-out.
package registry

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/consul/api"
)

const serviceName = "haven-relay"

// ConsulRegistry registers and deregisters this relay instance with
// Consul, and watches for its healthy peers.
type ConsulRegistry struct {
	client     *api.Client
	serviceID  string
	serverID   string
	serverPort int
}

// NewConsulRegistry builds a registry client pointed at addr.
func NewConsulRegistry(addr, serverID, listenAddr string) (*ConsulRegistry, error) {
	cfg := api.DefaultConfig()
	cfg.Address = addr

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	port, err := strconv.Atoi(strings.TrimPrefix(listenAddr, ":"))
	if err != nil {
		log.Printf("warning: failed to parse listen port, defaulting to 8090: %v", err)
		port = 8090
	}

	return &ConsulRegistry{
		client:     client,
		serviceID:  serverID,
		serverID:   serverID,
		serverPort: port,
	}, nil
}

// Register registers this relay instance with Consul, along with an
// HTTP health check.
func (c *ConsulRegistry) Register() error {
	hostname, err := os.Hostname()
	if err != nil {
		log.Printf("warning: failed to get hostname, using localhost: %v", err)
		hostname = "localhost"
	}

	registration := &api.AgentServiceRegistration{
		ID:      c.serviceID,
		Name:    serviceName,
		Port:    c.serverPort,
		Address: hostname,
		Tags:    []string{"haven", "relay", "websocket"},
		Check: &api.AgentServiceCheck{
			HTTP:                           fmt.Sprintf("http://%s:%d/health", hostname, c.serverPort),
			Interval:                       "10s",
			Timeout:                        "3s",
			DeregisterCriticalServiceAfter: "30s",
		},
		Meta: map[string]string{"server_id": c.serverID},
	}

	if err := c.client.Agent().ServiceRegister(registration); err != nil {
		return err
	}
	log.Printf("registered with consul: %s", c.serviceID)
	return nil
}

// Deregister removes this relay instance from Consul.
func (c *ConsulRegistry) Deregister() error {
	if err := c.client.Agent().ServiceDeregister(c.serviceID); err != nil {
		return err
	}
	log.Printf("deregistered from consul: %s", c.serviceID)
	return nil
}

// HealthyPeers returns the service IDs of every healthy relay instance.
func (c *ConsulRegistry) HealthyPeers() ([]string, error) {
	services, _, err := c.client.Health().Service(serviceName, "", true, nil)
	if err != nil {
		return nil, err
	}

	peers := make([]string, 0, len(services))
	for _, service := range services {
		peers = append(peers, service.Service.ID)
	}
	return peers, nil
}

// WatchPeers blocks, invoking callback every time the set of healthy
// relay instances changes.
func (c *ConsulRegistry) WatchPeers(callback func([]string)) {
	var lastIndex uint64

	for {
		services, meta, err := c.client.Health().Service(serviceName, "", true, &api.QueryOptions{
			WaitIndex: lastIndex,
			WaitTime:  5 * time.Minute,
		})
		if err != nil {
			log.Printf("error watching consul services: %v", err)
			time.Sleep(5 * time.Second)
			continue
		}

		if meta.LastIndex != lastIndex {
			lastIndex = meta.LastIndex
			peers := make([]string, 0, len(services))
			for _, service := range services {
				peers = append(peers, service.Service.ID)
			}
			callback(peers)
		}
	}
}
