package catalog

import (
	_ "embed"
	"fmt"

	"github.com/goccy/go-yaml"
)

//go:embed assets/matrix.yaml
var matrixAsset []byte

// Verdict is a compatibility matrix entry.
type Verdict string

const (
	VerdictYes   Verdict = "yes"
	VerdictNo    Verdict = "no"
	VerdictMaybe Verdict = "maybe"
)

// Matrix is the pairwise task compatibility table. Lookup(a, b) answers
// whether task b may consume the output of task a directly.
type Matrix struct {
	defaultVerdict Verdict
	rules          map[string]map[string]Verdict
}

type matrixFile struct {
	Default string                       `yaml:"default"`
	Rules   map[string]map[string]string `yaml:"rules"`
}

// LoadMatrix parses the shipped compatibility table.
func LoadMatrix() (*Matrix, error) {
	return parseMatrix(matrixAsset)
}

func parseMatrix(data []byte) (*Matrix, error) {
	var mf matrixFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal compatibility matrix: %w", err)
	}

	m := &Matrix{
		defaultVerdict: Verdict(mf.Default),
		rules:          make(map[string]map[string]Verdict, len(mf.Rules)),
	}
	if m.defaultVerdict == "" {
		m.defaultVerdict = VerdictNo
	}

	for src, row := range mf.Rules {
		m.rules[src] = make(map[string]Verdict, len(row))
		for dst, v := range row {
			verdict := Verdict(v)
			switch verdict {
			case VerdictYes, VerdictNo, VerdictMaybe:
			default:
				return nil, fmt.Errorf("invalid verdict %q for %s -> %s", v, src, dst)
			}
			m.rules[src][dst] = verdict
		}
	}

	return m, nil
}

// Lookup returns the verdict for the edge src -> dst.
func (m *Matrix) Lookup(src, dst string) Verdict {
	row, ok := m.rules[src]
	if !ok {
		return m.defaultVerdict
	}
	if v, ok := row[dst]; ok {
		return v
	}
	return m.defaultVerdict
}
