package provision

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"tasnim.dev/vpcctl/internal/logging"
	"tasnim.dev/vpcctl/internal/topology"
)

// AppSpec describes the demo web server launched inside a subnet.
type AppSpec struct {
	// Binary is the vpcctl executable providing the serve command.
	Binary  string
	Dir     string
	Port    int
	LogPath string
}

// StartApp stops whatever runs in the subnet namespace and starts the demo
// server there, detached. It returns the pid of the launched process.
func (p *Provisioner) StartApp(ctx context.Context, s *topology.Subnet, app AppSpec) (int, error) {
	t := p.teardown("app " + s.VPC + "/" + s.Name)
	p.stopNamespaceProcesses(ctx, t, s.Namespace)
	for _, w := range t.warnings() {
		p.logger.Warn("stopping previous app", zap.Error(w))
	}

	c := nsCmd(s.Namespace, Cmd(app.Binary, "serve", "--dir", app.Dir, "--port", strconv.Itoa(app.Port)))
	pid, err := p.exec.Start(c, app.LogPath)
	if err != nil {
		return 0, &StepError{Resource: "app " + s.VPC + "/" + s.Name, Step: "start server", Command: c, Err: err}
	}
	p.logger.Info("app started",
		zap.String(logging.FieldSubnet, s.Name),
		zap.String(logging.FieldCommand, c.String()),
		zap.Int("pid", pid))
	return pid, nil
}
