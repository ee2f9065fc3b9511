package main

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/pkg/errors"
)

// RulesetConfig is the full desired enforcement configuration. It is
// regenerated wholesale on every apply and never patched.
type RulesetConfig struct {
	Vteps              []string
	DfInterfaces       []string
	NonDfInterfaces    []string
	Interfaces         []string
	UnderlayInterfaces []string
	Mark               string
	NetdevTableExists  bool
	BridgeTableExists  bool
}

const rulesetTemplate = `#!/usr/sbin/nft -f
{{- if .NetdevTableExists }}
delete table netdev {{ netdevTable }}
{{- end }}
{{- if .BridgeTableExists }}
delete table bridge {{ bridgeTable }}
{{- end }}

table netdev {{ netdevTable }} {
	set vteps {
		type ipv4_addr
		{{- if .Vteps }}
		elements = { {{ join .Vteps ", " }} }
		{{- end }}
	}
	{{- range .UnderlayInterfaces }}
	chain ingress_{{ . }} {
		type filter hook ingress device {{ . }} priority -100; policy accept;
		ip saddr @vteps meta mark set {{ $.Mark }}
	}
	{{- end }}
}

table bridge {{ bridgeTable }} {
	set {{ dfSet }} {
		type ifname
		{{- if .DfInterfaces }}
		elements = { {{ join .DfInterfaces ", " }} }
		{{- end }}
	}
	set {{ nonDfSet }} {
		type ifname
		{{- if .NonDfInterfaces }}
		elements = { {{ join .NonDfInterfaces ", " }} }
		{{- end }}
	}
	chain forward {
		type filter hook forward priority 0; policy accept;
		meta mark {{ .Mark }} oifname @{{ nonDfSet }} drop
	}
}
`

var rulesetTmpl = template.Must(template.New("ruleset").Funcs(template.FuncMap{
	"join":        strings.Join,
	"netdevTable": func() string { return NetdevTable },
	"bridgeTable": func() string { return BridgeTable },
	"dfSet":       func() string { return DfSet },
	"nonDfSet":    func() string { return NonDfSet },
}).Parse(rulesetTemplate))

// RenderRuleset writes the generated ruleset atomically so the filter engine
// never reads a half-written file.
func RenderRuleset(path string, config RulesetConfig) error {
	if config.Mark == "" {
		config.Mark = SplitHorizonMark
	}
	var buf bytes.Buffer
	if err := rulesetTmpl.Execute(&buf, config); err != nil {
		return errors.Wrap(err, "could not render ruleset")
	}
	return writeRename(path, buf.Bytes())
}
