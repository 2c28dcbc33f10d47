package pipeline

import (
	"fmt"

	"github.com/nao1215/autokuro/internal/artifact"
	"github.com/nao1215/autokuro/internal/config"
	"github.com/nao1215/autokuro/internal/model"
	"github.com/nao1215/autokuro/internal/runner"
)

// jsToken selects JavaScript URLs from the clean URL list.
const jsToken = ".js"

// Stages returns the external tool stages in pipeline order. The
// in-process merge and JS filter steps sit between them; see
// DefaultPipeline.
func Stages() []Stage {
	return []Stage{
		{
			Name:   "subdomains",
			Tool:   config.ToolSubfinder,
			Output: artifact.Subdomains,
			Inputs: func(env *Env, out string) (runner.Command, error) {
				return runner.Command{Args: []string{"-d", env.Target, "-o", out}}, nil
			},
		},
		{
			Name:   "ports",
			Tool:   config.ToolNaabu,
			Output: artifact.OpenPorts,
			Inputs: portInputs,
		},
		{
			Name:     "live-hosts",
			Tool:     config.ToolHTTPX,
			Output:   artifact.LiveHosts,
			Required: true,
			Inputs: func(env *Env, out string) (runner.Command, error) {
				in, ok := env.complete(artifact.OpenPorts, artifact.Subdomains)
				if !ok {
					var err error
					if in, err = env.seed(); err != nil {
						return runner.Command{}, err
					}
				}
				return runner.Command{Args: []string{"-l", in, "-o", out}}, nil
			},
		},
		{
			Name:   "takeover",
			Tool:   config.ToolNucleiTakeover,
			Output: artifact.Takeover,
			Alert:  model.LabelTakeover,
			Inputs: subdomainList,
		},
		{
			Name:   "cloud",
			Tool:   config.ToolNucleiCloud,
			Output: artifact.CloudEnum,
			Alert:  model.LabelCloud,
			Inputs: subdomainList,
		},
		{
			Name:   "dirbust",
			Tool:   config.ToolFeroxbuster,
			Output: artifact.HiddenDirs,
			Inputs: func(env *Env, out string) (runner.Command, error) {
				live, err := env.require(artifact.LiveHosts)
				if err != nil {
					return runner.Command{}, err
				}
				if env.wordlist == "" {
					return runner.Command{}, fmt.Errorf("%w: no wordlist found", ErrMissingInput)
				}
				return runner.Command{
					Args:  []string{"--stdin", "-w", env.wordlist, "-o", out},
					Stdin: live,
				}, nil
			},
		},
		{
			Name:   "archive",
			Tool:   config.ToolGau,
			Output: artifact.ArchiveURLs,
			Inputs: func(env *Env, out string) (runner.Command, error) {
				return runner.Command{Args: []string{env.Target, "--o", out}}, nil
			},
		},
		{
			Name:   "crawl",
			Tool:   config.ToolKatana,
			Output: artifact.ActiveCrawl,
			Inputs: liveHostList("-list"),
		},
		{
			Name:   "parameters",
			Tool:   config.ToolParamspider,
			Output: artifact.Parameters,
			Inputs: func(env *Env, out string) (runner.Command, error) {
				return runner.Command{Args: []string{"-d", env.Target, "-o", out}}, nil
			},
		},
		{
			Name:   "js-secrets",
			Tool:   config.ToolNucleiTokens,
			Output: artifact.NucleiSecrets,
			Alert:  model.LabelJSSecrets,
			Inputs: func(env *Env, out string) (runner.Command, error) {
				js, err := env.require(artifact.JSFiles)
				if err != nil {
					return runner.Command{}, err
				}
				return runner.Command{Args: []string{"-l", js, "-o", out}}, nil
			},
		},
		{
			Name:   "nuclei",
			Tool:   config.ToolNuclei,
			Output: artifact.NucleiReport,
			Alert:  model.LabelNuclei,
			Inputs: liveHostList("-l"),
		},
		{
			Name:   "xss",
			Tool:   config.ToolDalfox,
			Output: artifact.DalfoxXSS,
			Alert:  model.LabelXSS,
			Inputs: func(env *Env, out string) (runner.Command, error) {
				in, err := env.require(artifact.Parameters, artifact.AllURLsClean)
				if err != nil {
					return runner.Command{}, err
				}
				return runner.Command{Args: []string{"file", in, "-o", out}}, nil
			},
		},
		{
			Name:   "secrets",
			Tool:   config.ToolTrufflehog,
			Output: artifact.SecretsLeak,
			Alert:  model.LabelTrufflehog,
			Inputs: func(env *Env, out string) (runner.Command, error) {
				return runner.Command{
					Args:   []string{"filesystem", env.Run.Dir},
					Stdout: out,
				}, nil
			},
		},
	}
}

// portInputs writes the port-scan host list. naabu wants bare hostnames,
// so subdomain entries are reduced to hostnames and deduplicated. Without
// a subdomain list the target alone is scanned.
func portInputs(env *Env, out string) (runner.Command, error) {
	hosts := []string{env.Target}
	if subs, ok := env.complete(artifact.Subdomains); ok {
		lines, err := artifact.ReadLines(subs)
		if err != nil {
			return runner.Command{}, fmt.Errorf("failed to read subdomains: %w", err)
		}
		if h := artifact.Hostnames(lines); len(h) > 0 {
			hosts = h
		}
	}
	list := env.Path(artifact.PortTargets)
	if err := artifact.WriteLines(list, hosts); err != nil {
		return runner.Command{}, err
	}
	return runner.Command{Args: []string{"-list", list, "-o", out}}, nil
}

// subdomainList feeds the subdomain list, or the target seed, with -l.
func subdomainList(env *Env, out string) (runner.Command, error) {
	in, ok := env.complete(artifact.Subdomains)
	if !ok {
		var err error
		if in, err = env.seed(); err != nil {
			return runner.Command{}, err
		}
	}
	return runner.Command{Args: []string{"-l", in, "-o", out}}, nil
}

// liveHostList feeds the live host list with the given list flag.
func liveHostList(flag string) func(*Env, string) (runner.Command, error) {
	return func(env *Env, out string) (runner.Command, error) {
		live, err := env.require(artifact.LiveHosts)
		if err != nil {
			return runner.Command{}, err
		}
		return runner.Command{Args: []string{flag, live, "-o", out}}, nil
	}
}

// DefaultPipeline builds the full reconnaissance pipeline for env:
//
//	subdomains, ports, live-hosts, takeover, cloud, dirbust,
//	archive, crawl, merge, parameters, js-filter, js-secrets,
//	nuclei, xss, secrets
func DefaultPipeline(env *Env, opts ...Option) *Pipeline {
	p := New(opts...)
	for _, st := range Stages() {
		switch st.Name {
		case "parameters":
			p.AddStep(NewMergeStep(env, artifact.AllURLsClean,
				artifact.ArchiveURLs, artifact.ActiveCrawl, artifact.HiddenDirs))
		case "js-secrets":
			p.AddStep(NewFilterStep(env, "js-filter", artifact.AllURLsClean, artifact.JSFiles, jsToken))
		}
		p.AddStep(NewToolStep(st, env))
	}
	return p
}
