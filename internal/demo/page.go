// Package demo implements the static web server deployed into subnet
// namespaces by deploy-app. The server runs out of process as the hidden
// "vpcctl serve" command; vpcctl itself only writes the page and launches it.
package demo

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
)

// IndexFile is the page written into each app directory.
const IndexFile = "index.html"

// Page is the data rendered into the landing page.
type Page struct {
	VPC    string
	Subnet string
	Type   string
	CIDR   string
	IP     string
	Port   int
}

var indexTemplate = template.Must(template.New(IndexFile).Parse(`<!DOCTYPE html>
<html>
<head><title>VPC Demo - {{.VPC}}/{{.Subnet}}</title></head>
<body>
  <h1>Welcome to {{.VPC}}</h1>
  <h2>Subnet: {{.Subnet}}</h2>
  <p>Type: {{.Type}}</p>
  <p>CIDR: {{.CIDR}}</p>
  <p>IP: {{.IP}}:{{.Port}}</p>
</body>
</html>
`))

// WriteIndex creates dir if needed and renders the landing page into it.
func WriteIndex(dir string, p Page) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating web root: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, IndexFile))
	if err != nil {
		return fmt.Errorf("creating index page: %w", err)
	}
	if err := indexTemplate.Execute(f, p); err != nil {
		f.Close()
		return fmt.Errorf("rendering index page: %w", err)
	}
	return f.Close()
}
