package threat

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Signatures are the lowercase substrings each detector looks for
type Signatures struct {
	ScannerAgents []string `yaml:"scanner_agents"`
	URLPatterns   []string `yaml:"url_patterns"`
	HeaderMarkup  []string `yaml:"header_markup"`
}

// DefaultSignatures returns the built-in signature lists
func DefaultSignatures() Signatures {
	return Signatures{
		ScannerAgents: []string{
			"sqlmap", "nikto", "nessus", "openvas", "nmap", "masscan",
			"zap", "burp", "acunetix", "w3af", "dirbuster", "gobuster",
			"wpscan", "hydra",
		},
		URLPatterns: []string{
			"../", "..\\", "%2e%2e", "%252e", "..%2f", "%2f..",
			"union select", "union all select", "/etc/passwd", "/proc/self",
			"<script", "javascript:", "' or '1'='1", "sleep(", "benchmark(",
			"information_schema", "xp_cmdshell",
		},
		HeaderMarkup: []string{
			"<script", "</script", "javascript:", "onerror=", "onload=",
			"<iframe", "<svg", "<img", "vbscript:", "data:text/html",
		},
	}
}

// Merge appends the entries of extra that are not already present
func (s Signatures) Merge(extra Signatures) Signatures {
	return Signatures{
		ScannerAgents: mergeLower(s.ScannerAgents, extra.ScannerAgents),
		URLPatterns:   mergeLower(s.URLPatterns, extra.URLPatterns),
		HeaderMarkup:  mergeLower(s.HeaderMarkup, extra.HeaderMarkup),
	}
}

func mergeLower(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, v := range list {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "" {
				continue
			}
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

// LoadSignatures reads operator-supplied signatures from a YAML file and
// merges them into the defaults. An empty path returns the defaults.
func LoadSignatures(path string) (Signatures, error) {
	defaults := DefaultSignatures()
	if path == "" {
		return defaults, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Signatures{}, fmt.Errorf("failed to read signatures file: %w", err)
	}
	return ParseSignatures(data)
}

// ParseSignatures decodes YAML signatures and merges them into the defaults
func ParseSignatures(data []byte) (Signatures, error) {
	var extra Signatures
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return Signatures{}, fmt.Errorf("failed to parse signatures: %w", err)
	}
	return DefaultSignatures().Merge(extra), nil
}
