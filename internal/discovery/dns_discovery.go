package discovery

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"

	"github.com/platformbuilds/mirador-sentinel/internal/config"
	"github.com/platformbuilds/mirador-sentinel/pkg/logger"
)

// Resolver is the subset of *net.Resolver used here.
type Resolver interface {
	LookupSRV(ctx context.Context, service, proto, name string) (string, []*net.SRV, error)
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// ResolveCacheNodes turns a DNS name into host:port cache nodes. With UseSRV
// the name is queried as _redis._tcp.<service> unless it already carries a
// service label; otherwise every A/AAAA record (a headless service lists one
// per pod) is paired with the configured port. The result is de-duplicated
// and sorted.
func ResolveCacheNodes(ctx context.Context, cfg config.CacheDiscoveryConfig, r Resolver) ([]string, error) {
	if cfg.Service == "" {
		return nil, fmt.Errorf("no discovery service configured")
	}

	var out []string
	if cfg.UseSRV {
		name := cfg.Service
		if !strings.HasPrefix(name, "_") {
			name = "_redis._tcp." + name
		}
		_, addrs, err := r.LookupSRV(ctx, "", "", name)
		if err != nil {
			return nil, fmt.Errorf("lookup SRV %s: %w", name, err)
		}
		for _, a := range addrs {
			host := strings.TrimSuffix(a.Target, ".")
			out = append(out, net.JoinHostPort(host, strconv.Itoa(int(a.Port))))
		}
	} else {
		port := cfg.Port
		if port <= 0 {
			port = config.DefaultValkeyPort
		}
		ips, err := r.LookupIPAddr(ctx, cfg.Service)
		if err != nil {
			return nil, fmt.Errorf("lookup %s: %w", cfg.Service, err)
		}
		for _, ip := range ips {
			out = append(out, net.JoinHostPort(ip.IP.String(), strconv.Itoa(port)))
		}
	}

	seen := map[string]struct{}{}
	uniq := make([]string, 0, len(out))
	for _, e := range out {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		uniq = append(uniq, e)
	}
	sort.Strings(uniq)
	if len(uniq) == 0 {
		return nil, fmt.Errorf("discovery service %s resolved no nodes", cfg.Service)
	}
	return uniq, nil
}

// CacheNodes returns the configured nodes, or the discovered ones when none
// are configured and a discovery service is set. Discovery failures are
// logged and leave the list empty, which selects the in-memory store.
func CacheNodes(ctx context.Context, cfg config.CacheConfig, r Resolver, log logger.Logger) []string {
	if len(cfg.Nodes) > 0 || cfg.Discovery.Service == "" {
		return cfg.Nodes
	}
	nodes, err := ResolveCacheNodes(ctx, cfg.Discovery, r)
	if err != nil {
		log.Warn("Cache node discovery failed", "service", cfg.Discovery.Service, "error", err)
		return nil
	}
	log.Info("Discovered cache nodes", "service", cfg.Discovery.Service, "nodes", nodes)
	return nodes
}
