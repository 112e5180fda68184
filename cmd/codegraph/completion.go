// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/kraklabs/codegraph/internal/errors"
)

// bashCompletionTemplate is the bash completion script for codegraph.
const bashCompletionTemplate = `#!/bin/bash

# Bash completion script for codegraph
# Installation:
#   source <(codegraph completion bash)
#   Or add to ~/.bashrc:
#   echo 'source <(codegraph completion bash)' >> ~/.bashrc

_codegraph_completion() {
    local cur prev commands
    commands="init analyze status reset serve completion"

    cur="${COMP_WORDS[COMP_CWORD]}"
    prev="${COMP_WORDS[COMP_CWORD-1]}"

    if [[ ${cur} == -* ]] ; then
        COMPREPLY=( $(compgen -W "--version --config --json --quiet --no-color --verbose" -- ${cur}) )
        return 0
    fi

    if [ $COMP_CWORD -eq 1 ]; then
        COMPREPLY=( $(compgen -W "${commands}" -- ${cur}) )
        return 0
    fi

    local cmd="${COMP_WORDS[1]}"
    case "${cmd}" in
        analyze)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--full --force-full-reindex --parse-workers --debug --metrics-addr" -- ${cur}) )
            fi
            ;;
        status)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--json" -- ${cur}) )
            fi
            ;;
        reset)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--yes" -- ${cur}) )
            fi
            ;;
        serve)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--interval --metrics-addr --parse-workers --run-once" -- ${cur}) )
            fi
            ;;
        completion)
            if [ $COMP_CWORD -eq 2 ]; then
                COMPREPLY=( $(compgen -W "bash zsh fish" -- ${cur}) )
            fi
            ;;
    esac
}

complete -F _codegraph_completion codegraph
`

// zshCompletionTemplate is the zsh completion script for codegraph.
const zshCompletionTemplate = `#compdef codegraph

# Zsh completion script for codegraph
# Installation:
#   1. Ensure compinit is loaded (add to ~/.zshrc if not present):
#      autoload -U compinit; compinit
#   2. Save this script to a directory in your fpath:
#      codegraph completion zsh > "${fpath[1]}/_codegraph"
#   3. Reload completions:
#      rm -f ~/.zcompdump; compinit

_codegraph() {
    local -a commands
    commands=(
        'init:Create .codegraph/project.yaml configuration'
        'analyze:Analyze the current repository'
        'status:Show project status'
        'reset:Reset local project data'
        'serve:Run analyze on a schedule (daemon mode)'
        'completion:Generate shell completion script'
    )

    _arguments -C \
        '(- *)--version[Show version and exit]' \
        '--config[Path to .codegraph/project.yaml]:config file:_files -g "*.yaml"' \
        '--json[Emit machine-readable JSON output]' \
        '1: :->command' \
        '*:: :->args'

    case $state in
        command)
            _describe 'command' commands
            ;;
        args)
            case $words[1] in
                analyze)
                    _arguments \
                        '--full[Force full re-analysis]' \
                        '--force-full-reindex[Delete local data and analyze from scratch]' \
                        '--parse-workers[Number of parallel parse workers]:workers:' \
                        '--debug[Enable debug logging]' \
                        '--metrics-addr[Prometheus metrics address]:address:'
                    ;;
                status)
                    _arguments \
                        '--json[Output as JSON]'
                    ;;
                reset)
                    _arguments \
                        '--yes[Skip confirmation prompt]'
                    ;;
                serve)
                    _arguments \
                        '--interval[Interval between analysis passes]:interval:' \
                        '--metrics-addr[Prometheus metrics address]:address:' \
                        '--parse-workers[Number of parallel parse workers]:workers:' \
                        '--run-once[Run a single pass and exit]'
                    ;;
                completion)
                    _arguments \
                        '1:shell:(bash zsh fish)'
                    ;;
            esac
            ;;
    esac
}

_codegraph
`

// fishCompletionTemplate is the fish completion script for codegraph.
const fishCompletionTemplate = `# Fish completion script for codegraph
# Installation:
#   1. Load completions for current session:
#      codegraph completion fish | source
#   2. Install permanently:
#      codegraph completion fish > ~/.config/fish/completions/codegraph.fish

# Commands
complete -c codegraph -f -n "__fish_use_subcommand" -a "init" -d "Create .codegraph/project.yaml configuration"
complete -c codegraph -f -n "__fish_use_subcommand" -a "analyze" -d "Analyze the current repository"
complete -c codegraph -f -n "__fish_use_subcommand" -a "status" -d "Show project status"
complete -c codegraph -f -n "__fish_use_subcommand" -a "reset" -d "Reset local project data (destructive!)"
complete -c codegraph -f -n "__fish_use_subcommand" -a "serve" -d "Run analyze on a schedule (daemon mode)"
complete -c codegraph -f -n "__fish_use_subcommand" -a "completion" -d "Generate shell completion script"

# Global flags
complete -c codegraph -l version -d "Show version and exit"
complete -c codegraph -l config -d "Path to .codegraph/project.yaml" -r
complete -c codegraph -l json -d "Emit machine-readable JSON output"

# analyze command flags
complete -c codegraph -n "__fish_seen_subcommand_from analyze" -l full -d "Force full re-analysis"
complete -c codegraph -n "__fish_seen_subcommand_from analyze" -l force-full-reindex -d "Delete local data and analyze from scratch"
complete -c codegraph -n "__fish_seen_subcommand_from analyze" -l parse-workers -d "Number of parallel parse workers" -r
complete -c codegraph -n "__fish_seen_subcommand_from analyze" -l debug -d "Enable debug logging"
complete -c codegraph -n "__fish_seen_subcommand_from analyze" -l metrics-addr -d "Prometheus metrics address" -r

# status command flags
complete -c codegraph -n "__fish_seen_subcommand_from status" -l json -d "Output as JSON"

# reset command flags
complete -c codegraph -n "__fish_seen_subcommand_from reset" -l yes -d "Skip confirmation prompt"

# serve command flags
complete -c codegraph -n "__fish_seen_subcommand_from serve" -l interval -d "Interval between analysis passes" -r
complete -c codegraph -n "__fish_seen_subcommand_from serve" -l metrics-addr -d "Prometheus metrics address" -r
complete -c codegraph -n "__fish_seen_subcommand_from serve" -l run-once -d "Run a single pass and exit"

# completion command arguments
complete -c codegraph -n "__fish_seen_subcommand_from completion" -f -a "bash" -d "Generate bash completion script"
complete -c codegraph -n "__fish_seen_subcommand_from completion" -f -a "zsh" -d "Generate zsh completion script"
complete -c codegraph -n "__fish_seen_subcommand_from completion" -f -a "fish" -d "Generate fish completion script"
`

// runCompletion executes the 'completion' CLI command, generating a
// shell-specific completion script for bash, zsh, or fish on stdout.
func runCompletion(args []string) {
	fs := flag.NewFlagSet("completion", flag.ExitOnError)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: codegraph completion <shell>

Description:
  Generate shell completion scripts for bash, zsh, or fish.

Arguments:
  shell    Shell type: bash, zsh, or fish (required)

Examples:
  codegraph completion bash
  source <(codegraph completion bash)
  codegraph completion zsh > "${fpath[1]}/_codegraph"
  codegraph completion fish | source

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() != 1 {
		errors.FatalError(errors.NewInputError(
			"Invalid arguments",
			"The completion command requires exactly one argument: the shell name",
			"Run 'codegraph completion bash', 'codegraph completion zsh', or 'codegraph completion fish'",
		), false)
	}

	shell := fs.Arg(0)

	switch shell {
	case "bash":
		fmt.Print(bashCompletionTemplate)
	case "zsh":
		fmt.Print(zshCompletionTemplate)
	case "fish":
		fmt.Print(fishCompletionTemplate)
	default:
		errors.FatalError(errors.NewInputError(
			"Unsupported shell",
			fmt.Sprintf("Shell '%s' is not supported. Valid options: bash, zsh, fish", shell),
			"Run 'codegraph completion bash', 'codegraph completion zsh', or 'codegraph completion fish'",
		), false)
	}
}
