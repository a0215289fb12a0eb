package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// LoadKDL loads a RunConfig from a ".srcreduce.kdl" file, layered on top
// of Default(). A missing file is not an error: the defaults are
// returned unchanged.
func LoadKDL(path string) (RunConfig, error) {
	cfg := Default()

	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read %s: %w", path, err)
	}

	doc, err := kdl.Parse(strings.NewReader(string(content)))
	if err != nil {
		return cfg, fmt.Errorf("failed to parse KDL config %s: %w", path, err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "tools":
			for _, cn := range n.Children {
				assignSimpleString(cn, "generator", func(v string) { cfg.GeneratorPath = v })
				assignSimpleString(cn, "reducer", func(v string) { cfg.ReducerPath = v })
				assignSimpleString(cn, "compiler", func(v string) { cfg.CompilerPath = v })
				assignSimpleString(cn, "size", func(v string) { cfg.SizeToolPath = v })
				assignSimpleString(cn, "include", func(v string) { cfg.IncludePath = v })
			}
		case "compiler-flag":
			if s, ok := firstStringArg(n); ok {
				cfg.OptFlag = OptLevel(s)
			}
		case "shape":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "max-expr-complexity":
					if v, ok := firstIntArg(cn); ok {
						cfg.Shape.MaxExprComplexity = v
					}
				case "max-block-depth":
					if v, ok := firstIntArg(cn); ok {
						cfg.Shape.MaxBlockDepth = v
					}
				case "stop-by-stmt":
					if v, ok := firstIntArg(cn); ok {
						cfg.Shape.StopByStmt = v
					}
				case "seed":
					if v, ok := firstIntArg(cn); ok {
						cfg.Shape.Seed = int64(v)
					}
				}
			}
		case "source":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "random":
					if v, ok := firstBoolArg(cn); ok {
						cfg.Random = v
					}
				case "example":
					if s, ok := firstStringArg(cn); ok {
						cfg.ExamplePath = s
						cfg.Random = false
					}
				}
			}
		case "timeouts":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "overall":
					if v, ok := firstIntArg(cn); ok {
						cfg.OverallTimeout = time.Duration(v) * time.Second
					}
				case "reducer-pass":
					if v, ok := firstIntArg(cn); ok {
						cfg.ReducerPassTimeout = time.Duration(v) * time.Second
					}
				case "reducer-iteration":
					if v, ok := firstIntArg(cn); ok {
						cfg.ReducerIterationTimeout = time.Duration(v) * time.Second
					}
				}
			}
		case "max-iterations":
			if v, ok := firstIntArg(n); ok {
				cfg.MaxIterations = v
			}
		case "regenerate":
			if v, ok := firstBoolArg(n); ok {
				cfg.RegenerateOnEmpty = v
			}
		case "dedupe-candidates":
			if v, ok := firstBoolArg(n); ok {
				cfg.DedupeCandidates = v
			}
		case "output":
			if s, ok := firstStringArg(n); ok {
				cfg.OutputDir = s
			}
		}
	}

	return cfg, nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}
