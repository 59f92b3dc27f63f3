// Package dot parses the solver's DOT-format reaction network files and
// identifies the rate-determining step along the dominant path.
package dot

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/graph/formats/dot"
	"gonum.org/v1/gonum/graph/formats/dot/ast"

	"emkm/domain/kinetics"
	"emkm/internal/errors"
)

// Edge is one reaction arrow with its rate annotation. Order preserves
// parse order for deterministic tie-breaking.
type Edge struct {
	From     string
	To       string
	Net      float64
	Forward  float64
	Backward float64
	Order    int
}

// Network is a parsed reaction network with species classified the way the
// solver annotates them: site-marked names are intermediates, nodes with a
// nonzero value annotation are reactants, annotated zeros are products.
type Network struct {
	Edges         []Edge
	NodeValues    map[string]float64
	Intermediates []string
	Reactants     []string
	Products      []string
}

// Edge labels carry either a bare weight or the solver's
// "net [forward | backward]" rate triple.
var rateTripleRe = regexp.MustCompile(`([\d.eE+-]+)\s*\[\s*([\d.eE+-]+)\s*\|\s*([\d.eE+-]+)\s*\]`)

// Parse reads DOT content into a Network. Malformed input fails with
// GRAPH_PARSE_ERROR.
func Parse(content string) (*Network, error) {
	file, err := dot.ParseString(content)
	if err != nil {
		return nil, errors.GraphParseError(fmt.Sprintf("malformed DOT input: %v", err))
	}
	if len(file.Graphs) == 0 {
		return nil, errors.GraphParseError("DOT input contains no graph")
	}

	net := &Network{NodeValues: make(map[string]float64)}
	seen := make(map[string]bool)

	for _, graph := range file.Graphs {
		for _, stmt := range graph.Stmts {
			switch s := stmt.(type) {
			case *ast.NodeStmt:
				name := unquote(s.Node.ID)
				recordNode(net, seen, name, nodeValue(s.Attrs))
			case *ast.EdgeStmt:
				if err := net.addEdgeChain(s, seen); err != nil {
					return nil, err
				}
			}
		}
	}

	if len(net.Edges) == 0 {
		return nil, errors.GraphParseError("DOT input declares no edges")
	}
	return net, nil
}

// addEdgeChain walks a DOT edge statement (which may chain a -> b -> c)
func (n *Network) addEdgeChain(s *ast.EdgeStmt, seen map[string]bool) error {
	label := attrValue(s.Attrs, "label")

	from, ok := vertexName(s.From)
	if !ok {
		return errors.GraphParseError("edge statement with non-node vertex")
	}
	recordNode(n, seen, from, nil)

	for e := s.To; e != nil; e = e.To {
		to, ok := vertexName(e.Vertex)
		if !ok {
			return errors.GraphParseError("edge statement with non-node vertex")
		}
		recordNode(n, seen, to, nil)

		net, fwd, bwd, err := parseRates(label)
		if err != nil {
			return err
		}
		n.Edges = append(n.Edges, Edge{
			From:     from,
			To:       to,
			Net:      net,
			Forward:  fwd,
			Backward: bwd,
			Order:    len(n.Edges),
		})
		from = to
	}
	return nil
}

// parseRates interprets an edge label: blank means zero rates, a bare
// number is a forward weight, and the triple form carries all three.
func parseRates(label string) (net, fwd, bwd float64, err error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return 0, 0, 0, nil
	}

	if m := rateTripleRe.FindStringSubmatch(label); m != nil {
		netVal, err1 := strconv.ParseFloat(m[1], 64)
		fwdVal, err2 := strconv.ParseFloat(m[2], 64)
		bwdVal, err3 := strconv.ParseFloat(m[3], 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return 0, 0, 0, errors.GraphParseError(fmt.Sprintf("unparsable rate label %q", label))
		}
		return netVal, fwdVal, bwdVal, nil
	}

	v, perr := strconv.ParseFloat(label, 64)
	if perr != nil {
		return 0, 0, 0, errors.GraphParseError(fmt.Sprintf("unparsable rate label %q", label))
	}
	return v, v, 0, nil
}

func recordNode(n *Network, seen map[string]bool, name string, value *float64) {
	if value != nil {
		n.NodeValues[name] = *value
	}
	if seen[name] {
		return
	}
	seen[name] = true

	switch {
	case strings.Contains(name, kinetics.FreeSite):
		n.Intermediates = append(n.Intermediates, name)
	case value != nil && *value != 0:
		n.Reactants = append(n.Reactants, name)
	case value != nil:
		n.Products = append(n.Products, name)
	}
}

// nodeValue extracts the numeric annotation from a "Name\nvalue" label
func nodeValue(attrs []*ast.Attr) *float64 {
	label := attrValue(attrs, "label")
	if label == "" {
		return nil
	}
	parts := splitLabelLines(label)
	if len(parts) < 2 {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(parts[len(parts)-1]), 64)
	if err != nil {
		return nil
	}
	return &v
}

// splitLabelLines handles both real newlines and the DOT \n escape
func splitLabelLines(label string) []string {
	label = strings.ReplaceAll(label, `\n`, "\n")
	return strings.Split(label, "\n")
}

func attrValue(attrs []*ast.Attr, key string) string {
	for _, a := range attrs {
		if unquote(a.Key) == key {
			return unquote(a.Val)
		}
	}
	return ""
}

func vertexName(v ast.Vertex) (string, bool) {
	node, ok := v.(*ast.Node)
	if !ok {
		return "", false
	}
	return unquote(node.ID), true
}

// unquote strips DOT quoting from an identifier or attribute value
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
		s = strings.ReplaceAll(s, `\"`, `"`)
	}
	return s
}
