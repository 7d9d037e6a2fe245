// Package vpc coordinates the topology store and the provisioner. Every
// operation runs inside one locked store cycle: the state validates the
// change, the provisioner applies it, and the record is persisted only when
// provisioning succeeds. Deletions are the exception: teardown is
// best-effort, so the record is removed even when some steps only warn.
package vpc

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"go.uber.org/zap"

	"tasnim.dev/vpcctl/internal/demo"
	"tasnim.dev/vpcctl/internal/logging"
	"tasnim.dev/vpcctl/internal/provision"
	"tasnim.dev/vpcctl/internal/topology"
)

// DefaultAppPort is the port deploy-app listens on when none is given.
const DefaultAppPort = 8000

// errDryRun aborts the store cycle so nothing is persisted.
var errDryRun = errors.New("dry run")

// ErrNotRecorded reports host changes that were applied but could not be
// persisted. The named resources may need manual cleanup.
var ErrNotRecorded = errors.New("host changes applied but not recorded in state")

// Options configure a Service.
type Options struct {
	// WebRoot is where deploy-app writes pages and server logs.
	WebRoot string

	// ServeBinary is the executable that provides the serve command.
	ServeBinary string

	// DryRun prints commands instead of running them and never persists.
	DryRun bool
}

// Service implements the vpcctl operations.
type Service struct {
	store  *topology.Store
	prov   *provision.Provisioner
	logger *zap.Logger
	opts   Options
	now    func() time.Time
}

// NewService wires a store and provisioner together.
func NewService(store *topology.Store, prov *provision.Provisioner, logger *zap.Logger, opts Options) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, prov: prov, logger: logger, opts: opts, now: time.Now}
}

// update runs fn in one store cycle. resource names what fn changes on the
// host, for the error returned when the change cannot be persisted.
func (s *Service) update(ctx context.Context, resource string, fn func(*topology.State) error) error {
	applied := false
	err := s.store.Update(ctx, func(st *topology.State) error {
		if err := fn(st); err != nil {
			return err
		}
		if s.opts.DryRun {
			return errDryRun
		}
		applied = true
		return nil
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errDryRun):
		return nil
	case applied:
		s.logger.Error("state not recorded after host changes",
			zap.String(logging.FieldResource, resource),
			zap.Error(err))
		return fmt.Errorf("%w: %s: %w", ErrNotRecorded, resource, err)
	default:
		return err
	}
}

// CreateVPC records a VPC and creates its bridge.
func (s *Service) CreateVPC(ctx context.Context, name, cidr, egress string) (*topology.VPC, error) {
	var out topology.VPC
	err := s.update(ctx, "vpc "+name, func(st *topology.State) error {
		v, err := st.CreateVPC(name, cidr, egress, s.now())
		if err != nil {
			return err
		}
		s.logger.Info("creating vpc",
			zap.String(logging.FieldVPC, name),
			zap.String("cidr", v.CIDR),
			zap.String("bridge", v.Bridge))
		if err := s.prov.ProvisionVPC(ctx, v); err != nil {
			return err
		}
		out = *v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AddSubnet records a subnet and creates its namespace and links.
func (s *Service) AddSubnet(ctx context.Context, vpcName, name, cidr string, typ topology.SubnetType) (*topology.Subnet, error) {
	var out topology.Subnet
	err := s.update(ctx, "subnet "+vpcName+"/"+name, func(st *topology.State) error {
		sub, err := st.AddSubnet(vpcName, name, cidr, typ, s.now())
		if err != nil {
			return err
		}
		v, err := st.VPC(vpcName)
		if err != nil {
			return err
		}
		s.logger.Info("adding subnet",
			zap.String(logging.FieldVPC, vpcName),
			zap.String(logging.FieldSubnet, name),
			zap.String("cidr", sub.CIDR),
			zap.String("type", string(sub.Type)))
		if err := s.prov.ProvisionSubnet(ctx, v, sub); err != nil {
			return err
		}
		out = *sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteSubnet tears down a subnet and removes its record. Teardown
// failures are returned as warnings.
func (s *Service) DeleteSubnet(ctx context.Context, vpcName, name string) ([]error, error) {
	var warnings []error
	err := s.update(ctx, "subnet "+vpcName+"/"+name, func(st *topology.State) error {
		v, sub, err := st.Subnet(vpcName, name)
		if err != nil {
			return err
		}
		s.logger.Info("deleting subnet",
			zap.String(logging.FieldVPC, vpcName),
			zap.String(logging.FieldSubnet, name))
		warnings = s.prov.TeardownSubnet(ctx, v, sub)
		_, err = st.RemoveSubnet(vpcName, name)
		return err
	})
	return warnings, err
}

// DeleteVPC tears down a VPC with its subnets and peerings and removes
// every record referencing it.
func (s *Service) DeleteVPC(ctx context.Context, name string) ([]error, error) {
	var warnings []error
	err := s.update(ctx, "vpc "+name, func(st *topology.State) error {
		v, err := st.VPC(name)
		if err != nil {
			return err
		}
		links := s.peerLinks(st, st.PeeringsOf(name))
		s.logger.Info("deleting vpc",
			zap.String(logging.FieldVPC, name),
			zap.Int("subnets", len(v.Subnets)),
			zap.Int("peerings", len(links)))
		warnings = s.prov.TeardownVPC(ctx, v, links)
		_, _, err = st.RemoveVPC(name)
		return err
	})
	return warnings, err
}

// PeerVPCs records a peering and connects the two bridges.
func (s *Service) PeerVPCs(ctx context.Context, a, b string) (*topology.Peering, error) {
	var out topology.Peering
	err := s.update(ctx, "peering "+a+"/"+b, func(st *topology.State) error {
		pr, err := st.AddPeering(a, b, s.now())
		if err != nil {
			return err
		}
		link, err := peerLink(st, pr)
		if err != nil {
			return err
		}
		s.logger.Info("peering vpcs", zap.String(logging.FieldPeering, pr.Key))
		if err := s.prov.ProvisionPeering(ctx, link.First, link.Second, pr); err != nil {
			return err
		}
		out = *pr
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UnpeerVPCs removes the peering between two VPCs.
func (s *Service) UnpeerVPCs(ctx context.Context, a, b string) ([]error, error) {
	var warnings []error
	err := s.update(ctx, "peering "+a+"/"+b, func(st *topology.State) error {
		pr, err := st.Peering(a, b)
		if err != nil {
			return err
		}
		link, err := peerLink(st, pr)
		if err != nil {
			return err
		}
		s.logger.Info("removing peering", zap.String(logging.FieldPeering, pr.Key))
		warnings = s.prov.TeardownPeering(ctx, link.First, link.Second, pr)
		_, err = st.RemovePeering(a, b)
		return err
	})
	return warnings, err
}

// ApplyFirewall replaces a subnet's ingress rules. rules must already be
// validated; the new rule set is persisted only when every rule installs.
func (s *Service) ApplyFirewall(ctx context.Context, vpcName, subnetName string, rules []topology.Rule) (*topology.FirewallRuleSet, error) {
	var out topology.FirewallRuleSet
	err := s.update(ctx, "firewall "+vpcName+"/"+subnetName, func(st *topology.State) error {
		v, sub, err := st.Subnet(vpcName, subnetName)
		if err != nil {
			return err
		}
		var previous []topology.Rule
		if sub.Firewall != nil {
			previous = sub.Firewall.Ingress
		}
		rs, err := st.SetFirewall(vpcName, subnetName, rules, s.now())
		if err != nil {
			return err
		}
		s.logger.Info("applying firewall",
			zap.String(logging.FieldVPC, vpcName),
			zap.String(logging.FieldSubnet, subnetName),
			zap.Int("rules", len(rules)),
			zap.Int("version", rs.Version))
		if err := s.prov.ApplyFirewall(ctx, v, sub, rules, previous); err != nil {
			return err
		}
		out = *rs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeployApp writes the demo page for a subnet and starts the demo server in
// its namespace. Any server already running there is stopped first.
func (s *Service) DeployApp(ctx context.Context, vpcName, subnetName string, port int) (*topology.Deployment, error) {
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("%w: port %d out of range 1-65535", topology.ErrInvalidInput, port)
	}
	var out topology.Deployment
	err := s.update(ctx, "app "+vpcName+"/"+subnetName, func(st *topology.State) error {
		_, sub, err := st.Subnet(vpcName, subnetName)
		if err != nil {
			return err
		}
		dir := filepath.Join(s.opts.WebRoot, sub.Namespace+"_web")
		logPath := filepath.Join(s.opts.WebRoot, sub.Namespace+"_server.log")
		if !s.opts.DryRun {
			err := demo.WriteIndex(dir, demo.Page{
				VPC:    vpcName,
				Subnet: subnetName,
				Type:   string(sub.Type),
				CIDR:   sub.CIDR,
				IP:     sub.IP,
				Port:   port,
			})
			if err != nil {
				return err
			}
		}
		pid, err := s.prov.StartApp(ctx, sub, provision.AppSpec{
			Binary:  s.opts.ServeBinary,
			Dir:     dir,
			Port:    port,
			LogPath: logPath,
		})
		if err != nil {
			return err
		}
		d := &topology.Deployment{
			Port:      port,
			PID:       pid,
			WebRoot:   dir,
			LogPath:   logPath,
			StartedAt: s.now().UTC(),
		}
		s.logger.Info("app deployed",
			zap.String(logging.FieldVPC, vpcName),
			zap.String(logging.FieldSubnet, subnetName),
			zap.String("url", fmt.Sprintf("http://%s:%d", sub.IP, port)))
		out = *d
		return st.SetDeployment(vpcName, subnetName, d)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Cleanup tears down every peering and VPC, then empties the state.
func (s *Service) Cleanup(ctx context.Context) ([]error, error) {
	var warnings []error
	err := s.update(ctx, "all vpcs", func(st *topology.State) error {
		for _, link := range s.peerLinks(st, slices.Collect(st.AllPeerings())) {
			warnings = append(warnings, s.prov.TeardownPeering(ctx, link.First, link.Second, link.Peering)...)
		}
		for v := range st.ListVPCs() {
			s.logger.Info("deleting vpc", zap.String(logging.FieldVPC, v.Name))
			warnings = append(warnings, s.prov.TeardownVPC(ctx, v, nil)...)
		}
		st.Reset()
		return nil
	})
	return warnings, err
}

// Snapshot returns the current topology.
func (s *Service) Snapshot(ctx context.Context) (*topology.State, error) {
	return s.store.Snapshot(ctx)
}

func peerLink(st *topology.State, pr *topology.Peering) (provision.PeerLink, error) {
	first, err := st.VPC(pr.First)
	if err != nil {
		return provision.PeerLink{}, err
	}
	second, err := st.VPC(pr.Second)
	if err != nil {
		return provision.PeerLink{}, err
	}
	return provision.PeerLink{Peering: pr, First: first, Second: second}, nil
}

// peerLinks resolves peerings to their VPCs. A peering whose peer VPC is
// missing from a hand-edited document is skipped; its record is still removed.
func (s *Service) peerLinks(st *topology.State, peerings []*topology.Peering) []provision.PeerLink {
	links := make([]provision.PeerLink, 0, len(peerings))
	for _, pr := range peerings {
		link, err := peerLink(st, pr)
		if err != nil {
			s.logger.Warn("skipping dangling peering", zap.String(logging.FieldPeering, pr.Key), zap.Error(err))
			continue
		}
		links = append(links, link)
	}
	return links
}
