package dot

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	"emkm/domain/kinetics"
	"emkm/internal/errors"
)

// Render writes a normalized DOT document for the network: intermediates as
// filled boxes, reactants and products as colored ellipses, bidirectional
// edges labeled with both rates.
func Render(net *Network, w io.Writer) error {
	var b strings.Builder
	b.WriteString("digraph reaction_network {\n")
	b.WriteString("\trankdir=LR;\n\tsize=\"12,8\";\n")

	names := collectNodeNames(net)
	for _, name := range names {
		shape, color := nodeStyle(net, name)
		label := name
		if v, ok := net.NodeValues[name]; ok {
			label = fmt.Sprintf("%s\\n%g", name, v)
		}
		fmt.Fprintf(&b, "\t%q [label=%q, shape=%s, style=filled, fillcolor=%s];\n",
			name, label, shape, color)
	}

	for _, e := range net.Edges {
		label := fmt.Sprintf("→ %.2e\\n← %.2e", e.Forward, e.Backward)
		fmt.Fprintf(&b, "\t%q -> %q [label=%q, dir=both];\n", e.From, e.To, label)
	}

	b.WriteString("}\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func collectNodeNames(net *Network) []string {
	seen := make(map[string]bool)
	var names []string
	for _, e := range net.Edges {
		for _, n := range []string{e.From, e.To} {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	sort.Strings(names)
	return names
}

func nodeStyle(net *Network, name string) (shape, color string) {
	switch {
	case strings.Contains(name, kinetics.FreeSite):
		return "box", "lightblue"
	case net.NodeValues[name] != 0:
		return "ellipse", "lightgreen"
	default:
		return "ellipse", "lightyellow"
	}
}

// RenderFile writes the normalized DOT document to path
func RenderFile(net *Network, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create DOT file")
	}
	defer f.Close()
	return Render(net, f)
}

// RenderPNG rasterizes a DOT file with the graphviz dot binary when it is
// installed; callers treat NOT_FOUND as "diagram skipped".
func RenderPNG(dotPath, pngPath string) error {
	bin, err := exec.LookPath("dot")
	if err != nil {
		return errors.NotFound("graphviz dot binary")
	}

	cmd := exec.Command(bin, "-Tpng", "-o", pngPath, dotPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return errors.Wrapf(err, "graphviz rendering failed: %s", strings.TrimSpace(string(out)))
	}
	return nil
}
