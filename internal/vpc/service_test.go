package vpc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasnim.dev/vpcctl/internal/demo"
	"tasnim.dev/vpcctl/internal/provision"
	"tasnim.dev/vpcctl/internal/testutil/fakeexec"
	"tasnim.dev/vpcctl/internal/topology"
)

var testNow = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

type harness struct {
	svc       *Service
	exec      *fakeexec.Executor
	statePath string
	webRoot   string
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	dir := t.TempDir()
	statePath := filepath.Join(dir, "state.json")
	store := topology.NewStore(topology.NewFileBackend(statePath, time.Second))
	t.Cleanup(func() { store.Close() })

	exec := fakeexec.New()
	if opts.WebRoot == "" {
		opts.WebRoot = filepath.Join(dir, "www")
	}
	if opts.ServeBinary == "" {
		opts.ServeBinary = "/usr/local/bin/vpcctl"
	}
	svc := NewService(store, provision.New(exec, nil), nil, opts)
	svc.now = func() time.Time { return testNow }
	return &harness{svc: svc, exec: exec, statePath: statePath, webRoot: opts.WebRoot}
}

func (h *harness) state(t *testing.T) *topology.State {
	t.Helper()
	st, err := h.svc.Snapshot(context.Background())
	require.NoError(t, err)
	return st
}

func (h *harness) document(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(h.statePath)
	if os.IsNotExist(err) {
		return ""
	}
	require.NoError(t, err)
	return string(data)
}

func issued(cmds []string, fragment string) bool {
	return slices.ContainsFunc(cmds, func(c string) bool { return strings.Contains(c, fragment) })
}

func TestShopScenario(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	v, err := h.svc.CreateVPC(ctx, "shop", "10.1.0.0/16", "eth0")
	require.NoError(t, err)
	assert.Equal(t, "10.1.0.1", v.BridgeIP)

	sub, err := h.svc.AddSubnet(ctx, "shop", "web", "10.1.1.0/24", topology.SubnetPublic)
	require.NoError(t, err)
	assert.Equal(t, "10.1.1.1", sub.IP)
	assert.Contains(t, h.exec.Commands(), "iptables -t nat -A POSTROUTING -s 10.1.1.0/24 -o eth0 -j MASQUERADE")

	st := h.state(t)
	require.Contains(t, st.VPCs, "shop")
	assert.Equal(t, "10.1.1.1", st.VPCs["shop"].Subnets["web"].IP)

	h.exec.Reset()
	h.exec.Succeed("iptables -t nat -C POSTROUTING", "")
	h.exec.Succeed("iptables -C FORWARD", "")
	warnings, err := h.svc.DeleteVPC(ctx, "shop")
	require.NoError(t, err)
	assert.Empty(t, warnings)

	cmds := h.exec.Commands()
	assert.Contains(t, cmds, "ip netns del "+sub.Namespace)
	assert.Contains(t, cmds, "ip link del "+sub.VethHost)
	assert.Contains(t, cmds, "ip link del "+v.Bridge)
	assert.Contains(t, cmds, "iptables -t nat -D POSTROUTING -s 10.1.1.0/24 -o eth0 -j MASQUERADE")

	assert.Empty(t, h.state(t).VPCs)
	assert.NotContains(t, h.document(t), "shop")
}

func TestAddSubnet_OutOfRangeHasNoSideEffects(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	_, err := h.svc.CreateVPC(ctx, "shop", "10.1.0.0/16", "eth0")
	require.NoError(t, err)
	before := h.document(t)
	h.exec.Reset()

	_, err = h.svc.AddSubnet(ctx, "shop", "web", "10.2.1.0/24", topology.SubnetPublic)
	assert.ErrorIs(t, err, topology.ErrRangeViolation)
	assert.ErrorIs(t, err, topology.ErrOutOfRange)
	assert.Empty(t, h.exec.All(), "no external command may run")
	assert.Equal(t, before, h.document(t))
}

func TestAddSubnet_OverlapRejected(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	_, err := h.svc.CreateVPC(ctx, "shop", "10.1.0.0/16", "eth0")
	require.NoError(t, err)
	_, err = h.svc.AddSubnet(ctx, "shop", "web", "10.1.1.0/24", topology.SubnetPublic)
	require.NoError(t, err)
	h.exec.Reset()

	_, err = h.svc.AddSubnet(ctx, "shop", "web2", "10.1.1.128/25", topology.SubnetPrivate)
	assert.ErrorIs(t, err, topology.ErrOverlap)
	assert.Empty(t, h.exec.All())
	assert.Len(t, h.state(t).VPCs["shop"].Subnets, 1)
}

func TestCreateVPC_Twice(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	_, err := h.svc.CreateVPC(ctx, "x", "10.0.0.0/16", "eth0")
	require.NoError(t, err)
	after := h.document(t)

	_, err = h.svc.CreateVPC(ctx, "x", "10.0.0.0/16", "eth0")
	assert.ErrorIs(t, err, topology.ErrAlreadyExists)
	assert.Equal(t, after, h.document(t))
}

func TestCreateVPC_ProvisionFailureIsNotPersisted(t *testing.T) {
	h := newHarness(t, Options{})
	h.exec.Fail("ip addr add", 2, "RTNETLINK answers: Operation not permitted")

	_, err := h.svc.CreateVPC(context.Background(), "shop", "10.1.0.0/16", "eth0")
	require.Error(t, err)

	var stepErr *provision.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "vpc shop", stepErr.Resource)
	assert.Equal(t, "assign bridge address", stepErr.Step)
	assert.Empty(t, h.state(t).VPCs)

	cmds := h.exec.Commands()
	assert.Equal(t, "ip link del "+bridgeName(t, "shop"), cmds[len(cmds)-1], "bridge is rolled back")
}

// commitFailBackend runs fn normally but fails the commit afterwards.
type commitFailBackend struct {
	topology.Backend
	err error
}

func (b commitFailBackend) Update(ctx context.Context, fn func(*topology.State) error) error {
	return b.Backend.Update(ctx, func(st *topology.State) error {
		if err := fn(st); err != nil {
			return err
		}
		return b.err
	})
}

func TestCreateVPC_CommitFailureNamesResource(t *testing.T) {
	diskFull := errors.New("writing state: no space left on device")
	store := topology.NewStore(commitFailBackend{
		Backend: topology.NewFileBackend(filepath.Join(t.TempDir(), "state.json"), time.Second),
		err:     diskFull,
	})
	exec := fakeexec.New()
	svc := NewService(store, provision.New(exec, nil), nil, Options{})

	_, err := svc.CreateVPC(context.Background(), "shop", "10.1.0.0/16", "eth0")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotRecorded)
	assert.ErrorIs(t, err, diskFull)
	assert.Contains(t, err.Error(), "vpc shop")
	assert.True(t, issued(exec.Commands(), "type bridge"), "bridge was created before the commit failed")

	_, err = svc.CreateVPC(context.Background(), "shop", "10.1.0.0/33", "eth0")
	assert.NotErrorIs(t, err, ErrNotRecorded, "validation failures never reach the host")
}

func bridgeName(t *testing.T, vpc string) string {
	t.Helper()
	st := topology.NewState()
	v, err := st.CreateVPC(vpc, "10.0.0.0/8", "eth0", testNow)
	require.NoError(t, err)
	return v.Bridge
}

func TestPeering(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	_, err := h.svc.CreateVPC(ctx, "shop", "10.1.0.0/16", "eth0")
	require.NoError(t, err)
	_, err = h.svc.CreateVPC(ctx, "analytics", "10.2.0.0/16", "eth0")
	require.NoError(t, err)
	_, err = h.svc.CreateVPC(ctx, "clash", "10.1.128.0/17", "eth0")
	require.NoError(t, err)

	pr, err := h.svc.PeerVPCs(ctx, "shop", "analytics")
	require.NoError(t, err)
	assert.Equal(t, "analytics:shop", pr.Key)

	_, err = h.svc.PeerVPCs(ctx, "analytics", "shop")
	assert.ErrorIs(t, err, topology.ErrAlreadyExists)

	_, err = h.svc.PeerVPCs(ctx, "shop", "shop")
	assert.ErrorIs(t, err, topology.ErrInvalidInput)

	_, err = h.svc.PeerVPCs(ctx, "shop", "clash")
	assert.ErrorIs(t, err, topology.ErrOverlap)

	_, err = h.svc.PeerVPCs(ctx, "shop", "ghost")
	assert.ErrorIs(t, err, topology.ErrNotFound)

	assert.Len(t, h.state(t).Peerings, 1)

	warnings, err := h.svc.UnpeerVPCs(ctx, "shop", "analytics")
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Empty(t, h.state(t).Peerings)
	assert.Contains(t, h.exec.Commands(), "ip link del "+pr.VethFirst)

	_, err = h.svc.UnpeerVPCs(ctx, "shop", "analytics")
	assert.ErrorIs(t, err, topology.ErrNotFound)
}

func TestDeleteVPC_CascadesPeerings(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	_, err := h.svc.CreateVPC(ctx, "shop", "10.1.0.0/16", "eth0")
	require.NoError(t, err)
	_, err = h.svc.CreateVPC(ctx, "analytics", "10.2.0.0/16", "eth0")
	require.NoError(t, err)
	pr, err := h.svc.PeerVPCs(ctx, "shop", "analytics")
	require.NoError(t, err)
	h.exec.Reset()

	_, err = h.svc.DeleteVPC(ctx, "shop")
	require.NoError(t, err)

	st := h.state(t)
	assert.NotContains(t, st.VPCs, "shop")
	assert.Contains(t, st.VPCs, "analytics")
	assert.Empty(t, st.Peerings)
	assert.Contains(t, h.exec.Commands(), "ip link del "+pr.VethFirst)
}

func TestDeleteSubnet_WarningsStillRemoveRecord(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	_, err := h.svc.CreateVPC(ctx, "shop", "10.1.0.0/16", "eth0")
	require.NoError(t, err)
	_, err = h.svc.AddSubnet(ctx, "shop", "db", "10.1.2.0/24", topology.SubnetPrivate)
	require.NoError(t, err)
	h.exec.Fail("ip netns del", 1, "Cannot remove namespace file: Device or resource busy")

	warnings, err := h.svc.DeleteSubnet(ctx, "shop", "db")
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.ErrorIs(t, warnings[0], provision.ErrCommandFailed)
	assert.Empty(t, h.state(t).VPCs["shop"].Subnets)

	_, err = h.svc.DeleteSubnet(ctx, "shop", "db")
	assert.ErrorIs(t, err, topology.ErrNotFound)
}

func TestApplyFirewall_Versioned(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	_, err := h.svc.CreateVPC(ctx, "shop", "10.1.0.0/16", "eth0")
	require.NoError(t, err)
	_, err = h.svc.AddSubnet(ctx, "shop", "web", "10.1.1.0/24", topology.SubnetPublic)
	require.NoError(t, err)

	first := []topology.Rule{{Port: 80, Protocol: "tcp", Action: topology.ActionAllow}}
	rs, err := h.svc.ApplyFirewall(ctx, "shop", "web", first)
	require.NoError(t, err)
	assert.Equal(t, 1, rs.Version)

	second := []topology.Rule{{Port: 443, Protocol: "tcp", Action: topology.ActionAllow}}
	rs, err = h.svc.ApplyFirewall(ctx, "shop", "web", second)
	require.NoError(t, err)
	assert.Equal(t, 2, rs.Version)

	h.exec.Fail("ip netns exec", 4, "iptables: Resource temporarily unavailable.")
	_, err = h.svc.ApplyFirewall(ctx, "shop", "web", first)
	require.Error(t, err)

	stored := h.state(t).VPCs["shop"].Subnets["web"].Firewall
	require.NotNil(t, stored)
	assert.Equal(t, 2, stored.Version)
	assert.Equal(t, second, stored.Ingress)
}

func TestDeployApp(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	_, err := h.svc.CreateVPC(ctx, "shop", "10.1.0.0/16", "eth0")
	require.NoError(t, err)
	sub, err := h.svc.AddSubnet(ctx, "shop", "web", "10.1.1.0/24", topology.SubnetPublic)
	require.NoError(t, err)

	d, err := h.svc.DeployApp(ctx, "shop", "web", DefaultAppPort)
	require.NoError(t, err)
	assert.Equal(t, 8000, d.Port)
	assert.Positive(t, d.PID)
	assert.Equal(t, filepath.Join(h.webRoot, sub.Namespace+"_web"), d.WebRoot)
	assert.Equal(t, filepath.Join(h.webRoot, sub.Namespace+"_server.log"), d.LogPath)

	page, err := os.ReadFile(filepath.Join(d.WebRoot, demo.IndexFile))
	require.NoError(t, err)
	assert.Contains(t, string(page), "Welcome to shop")

	started := h.exec.Started()
	require.Len(t, started, 1)
	assert.True(t, strings.HasPrefix(started[0], "ip netns exec "+sub.Namespace+" /usr/local/bin/vpcctl serve"))

	stored := h.state(t).VPCs["shop"].Subnets["web"].App
	require.NotNil(t, stored)
	assert.Equal(t, d.PID, stored.PID)

	_, err = h.svc.DeployApp(ctx, "shop", "web", 70000)
	assert.ErrorIs(t, err, topology.ErrInvalidInput)
	_, err = h.svc.DeployApp(ctx, "shop", "nope", 8000)
	assert.ErrorIs(t, err, topology.ErrNotFound)
}

func TestCleanup(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	_, err := h.svc.CreateVPC(ctx, "shop", "10.1.0.0/16", "eth0")
	require.NoError(t, err)
	_, err = h.svc.CreateVPC(ctx, "analytics", "10.2.0.0/16", "eth0")
	require.NoError(t, err)
	_, err = h.svc.AddSubnet(ctx, "shop", "web", "10.1.1.0/24", topology.SubnetPublic)
	require.NoError(t, err)
	pr, err := h.svc.PeerVPCs(ctx, "shop", "analytics")
	require.NoError(t, err)
	h.exec.Reset()

	warnings, err := h.svc.Cleanup(ctx)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	st := h.state(t)
	assert.Empty(t, st.VPCs)
	assert.Empty(t, st.Peerings)

	cmds := h.exec.Commands()
	assert.True(t, issued(cmds, "ip link del "+pr.VethFirst))
	peerDel := slices.Index(cmds, "ip link del "+pr.VethFirst)
	assert.Equal(t, 1, strings.Count(strings.Join(cmds, "\n"), "ip link del "+pr.VethFirst), "each peering is torn down once")
	for _, name := range []string{"shop", "analytics"} {
		br := slices.Index(cmds, "ip link del "+bridgeName(t, name))
		assert.Greater(t, br, peerDel)
	}
}

func TestDryRunPersistsNothing(t *testing.T) {
	h := newHarness(t, Options{DryRun: true})
	ctx := context.Background()

	v, err := h.svc.CreateVPC(ctx, "shop", "10.1.0.0/16", "eth0")
	require.NoError(t, err)
	assert.Equal(t, "shop", v.Name)
	assert.NotEmpty(t, h.exec.Commands())
	assert.Empty(t, h.state(t).VPCs)
	assert.Empty(t, h.document(t))
}
