package tui

import (
	"fmt"
	"strings"

	"tasnim.dev/vpcctl/internal/topology"
	"tasnim.dev/vpcctl/internal/tui/theme"
	"tasnim.dev/vpcctl/internal/utils"
)

const labelWidth = 12

func newBuilder() *utils.DetailBuilder {
	return utils.NewDetailBuilder(labelWidth, theme.LabelStyle, theme.SectionStyle)
}

// Describe renders the whole topology as an indented listing: VPCs sorted by
// name with their subnets nested, then peerings.
func Describe(st *topology.State) string {
	db := newBuilder()
	if len(st.VPCs) == 0 {
		db.WriteString(theme.MutedStyle.Render("No VPCs found") + "\n")
		return db.String()
	}
	for v := range st.ListVPCs() {
		db.Section("VPC " + v.Name)
		db.Row("CIDR", v.CIDR)
		db.Row("Bridge", fmt.Sprintf("%s (%s)", v.Bridge, v.BridgeIP))
		db.Row("Egress", v.Interface)
		db.Row("Created", utils.TimeOrDash(v.CreatedAt, utils.DateTime))
		if peers := peersOf(st, v.Name); len(peers) > 0 {
			db.Row("Peered with", strings.Join(peers, ", "))
		}
		db.Row("Subnets", fmt.Sprint(len(v.Subnets)))
		db.Nest(func() {
			for s := range v.ListSubnets() {
				db.Item(s.Name)
				db.Nest(func() { writeSubnet(db, s) })
			}
		})
		db.Blank()
	}
	if len(st.Peerings) > 0 {
		db.Section("Peerings")
		for p := range st.AllPeerings() {
			db.Item(fmt.Sprintf("%s <-> %s  (%s / %s)", p.First, p.Second, p.VethFirst, p.VethSecond))
		}
	}
	return db.String()
}

// DescribeSubnet renders one subnet for the browse detail pane.
func DescribeSubnet(v *topology.VPC, s *topology.Subnet) string {
	db := newBuilder()
	db.Section("Subnet " + v.Name + "/" + s.Name)
	writeSubnet(db, s)
	db.Row("VPC CIDR", v.CIDR)
	db.Row("Gateway", v.BridgeIP)
	if s.Firewall != nil {
		db.Blank()
		db.Section(fmt.Sprintf("Ingress rules (v%d)", s.Firewall.Version))
		db.Row("Applied", utils.TimeOrDash(s.Firewall.AppliedAt, utils.DateTime))
		if len(s.Firewall.Ingress) == 0 {
			db.Item(theme.MutedStyle.Render("none"))
		}
		for _, r := range s.Firewall.Ingress {
			db.Item(fmt.Sprintf("%s/%d %s", r.Protocol, r.Port, r.Action))
		}
	}
	if s.App != nil {
		db.Blank()
		db.Section("App")
		db.Row("URL", fmt.Sprintf("http://%s:%d", s.IP, s.App.Port))
		db.Row("PID", fmt.Sprint(s.App.PID))
		db.Row("Web root", s.App.WebRoot)
		db.Row("Log", s.App.LogPath)
		db.Row("Started", utils.TimeOrDash(s.App.StartedAt, utils.DateTimeSec))
	}
	return db.String()
}

func writeSubnet(db *utils.DetailBuilder, s *topology.Subnet) {
	db.Row("Type", theme.RenderStatus(string(s.Type)))
	db.Row("CIDR", s.CIDR)
	db.Row("IP", s.IP)
	db.Row("Namespace", s.Namespace)
	db.Row("Veth", s.VethHost+" <-> "+s.VethNS)
	if s.Firewall != nil {
		db.Row("Firewall", fmt.Sprintf("v%d, %d rules", s.Firewall.Version, len(s.Firewall.Ingress)))
	}
	if s.App != nil {
		db.Row("App", fmt.Sprintf("port %d, pid %d", s.App.Port, s.App.PID))
	}
}

func peersOf(st *topology.State, vpc string) []string {
	var out []string
	for _, p := range st.PeeringsOf(vpc) {
		out = append(out, p.Other(vpc))
	}
	return out
}
