package cmd

import (
	"fmt"
	"os"
)

// Completion prints the completion script for a shell
func Completion(shell string) {
	switch shell {
	case "bash":
		fmt.Print(bashCompletion)
	case "zsh":
		fmt.Print(zshCompletion)
	case "fish":
		fmt.Print(fishCompletion)
	default:
		fmt.Fprintf(os.Stderr, "Unknown shell: %s\nSupported: bash, zsh, fish\n", shell)
		os.Exit(1)
	}
}

const bashCompletion = `_labkeys() {
    local cur prev words cword
    _init_completion || return

    local commands="configure encrypt decrypt status diff rekey keyring help completion"
    local globals="-C --dir --config -v --verbose --debug"

    if [[ $cword -eq 1 ]]; then
        COMPREPLY=($(compgen -W "$commands" -- "$cur"))
        return
    fi

    case "$prev" in
        -C|--dir)
            _filedir -d
            return
            ;;
        --config)
            _filedir '@(yaml|yml)'
            return
            ;;
        --file)
            _filedir json
            return
            ;;
    esac

    local cmd="${words[1]}"
    case "$cmd" in
        configure)
            COMPREPLY=($(compgen -W "-p --password -f --force --overwrite $globals" -- "$cur"))
            ;;
        encrypt)
            if [[ "$cur" == -* ]]; then
                COMPREPLY=($(compgen -W "-p --password $globals" -- "$cur"))
            else
                _filedir json
            fi
            ;;
        decrypt)
            if [[ "$cur" == -* ]]; then
                COMPREPLY=($(compgen -W "-p --password --legacy $globals" -- "$cur"))
            else
                _filedir json
            fi
            ;;
        diff)
            COMPREPLY=($(compgen -W "--file --values -p --password $globals" -- "$cur"))
            ;;
        rekey)
            COMPREPLY=($(compgen -W "--legacy $globals" -- "$cur"))
            ;;
        status)
            COMPREPLY=($(compgen -W "$globals" -- "$cur"))
            ;;
        keyring)
            COMPREPLY=($(compgen -W "save delete status" -- "$cur"))
            ;;
        help)
            COMPREPLY=($(compgen -W "$commands" -- "$cur"))
            ;;
        completion)
            COMPREPLY=($(compgen -W "bash zsh fish" -- "$cur"))
            ;;
    esac
}

complete -F _labkeys labkeys
`

const zshCompletion = `#compdef labkeys

_labkeys() {
    local -a commands globals
    commands=(
        'configure:Write the lab env file from encrypted settings'
        'encrypt:Encrypt the values of a settings file'
        'decrypt:Decrypt an encrypted settings file'
        'status:Show keys directory, destination and last run'
        'diff:Compare the env file with encrypted settings'
        'rekey:Re-encrypt settings under a new password'
        'keyring:Manage password in OS keyring'
        'help:Show help for a command'
        'completion:Generate shell completions'
    )
    globals=(
        '(-C --dir)'{-C,--dir}'[Start the keys directory search here]:directory:_files -/'
        '--config[Layout config file]:config:_files -g "*.(yaml|yml)"'
        '(-v --verbose)'{-v,--verbose}'[Show progress messages]'
        '--debug[Show debug messages]'
    )

    _arguments -C \
        '1: :->command' \
        '*:: :->args'

    case "$state" in
        command)
            _describe -t commands 'labkeys commands' commands
            ;;
        args)
            case "${words[1]}" in
                configure)
                    _arguments $globals \
                        '(-p --password)'{-p,--password}'[Lab password]:password:' \
                        '(-f --force --overwrite)'{-f,--force,--overwrite}'[Replace an existing env file]'
                    ;;
                encrypt)
                    _arguments $globals \
                        '(-p --password)'{-p,--password}'[Password]:password:' \
                        '1:settings file:_files -g "*.json"'
                    ;;
                decrypt)
                    _arguments $globals \
                        '(-p --password)'{-p,--password}'[Password]:password:' \
                        '--legacy[Read the pre-GCM format]' \
                        '1:encrypted file:_files -g "*_encrypted.json"'
                    ;;
                diff)
                    _arguments $globals \
                        '(-p --password)'{-p,--password}'[Lab password]:password:' \
                        '--file[Encrypted settings file]:file:_files -g "*_encrypted.json"' \
                        '--values[Show the full diff including values]'
                    ;;
                rekey)
                    _arguments $globals '--legacy[Upgrade files in the pre-GCM format]'
                    ;;
                status)
                    _arguments $globals
                    ;;
                keyring)
                    _values 'subcommand' save delete status
                    ;;
                help)
                    _describe -t commands 'labkeys commands' commands
                    ;;
                completion)
                    _values 'shell' bash zsh fish
                    ;;
            esac
            ;;
    esac
}

_labkeys "$@"
`

const fishCompletion = `# labkeys fish completions

set -l commands configure encrypt decrypt status diff rekey keyring help completion

complete -c labkeys -f

# Commands
complete -c labkeys -n "not __fish_seen_subcommand_from $commands" -a configure -d 'Write the lab env file'
complete -c labkeys -n "not __fish_seen_subcommand_from $commands" -a encrypt -d 'Encrypt a settings file'
complete -c labkeys -n "not __fish_seen_subcommand_from $commands" -a decrypt -d 'Decrypt a settings file'
complete -c labkeys -n "not __fish_seen_subcommand_from $commands" -a status -d 'Show status'
complete -c labkeys -n "not __fish_seen_subcommand_from $commands" -a diff -d 'Compare env file with settings'
complete -c labkeys -n "not __fish_seen_subcommand_from $commands" -a rekey -d 'Change the settings password'
complete -c labkeys -n "not __fish_seen_subcommand_from $commands" -a keyring -d 'Manage password in OS keyring'
complete -c labkeys -n "not __fish_seen_subcommand_from $commands" -a help -d 'Show help'
complete -c labkeys -n "not __fish_seen_subcommand_from $commands" -a completion -d 'Generate completions'

# global flags
complete -c labkeys -s C -l dir -r -a "(__fish_complete_directories)" -d 'Start directory'
complete -c labkeys -l config -r -F -d 'Layout config file'
complete -c labkeys -s v -l verbose -d 'Show progress messages'
complete -c labkeys -l debug -d 'Show debug messages'

# configure
complete -c labkeys -n "__fish_seen_subcommand_from configure" -s p -l password -r -d 'Lab password'
complete -c labkeys -n "__fish_seen_subcommand_from configure" -s f -l force -d 'Replace existing env file'
complete -c labkeys -n "__fish_seen_subcommand_from configure" -l overwrite -d 'Replace existing env file'

# encrypt and decrypt
complete -c labkeys -n "__fish_seen_subcommand_from encrypt decrypt" -s p -l password -r -d 'Password'
complete -c labkeys -n "__fish_seen_subcommand_from encrypt decrypt" -F
complete -c labkeys -n "__fish_seen_subcommand_from decrypt rekey" -l legacy -d 'Pre-GCM format'

# diff
complete -c labkeys -n "__fish_seen_subcommand_from diff" -l file -r -F -d 'Encrypted settings file'
complete -c labkeys -n "__fish_seen_subcommand_from diff" -l values -d 'Show values'
complete -c labkeys -n "__fish_seen_subcommand_from diff" -s p -l password -r -d 'Lab password'

# keyring subcommands
complete -c labkeys -n "__fish_seen_subcommand_from keyring" -a "save delete status"

# help completions
complete -c labkeys -n "__fish_seen_subcommand_from help" -a "$commands"

# completion completions
complete -c labkeys -n "__fish_seen_subcommand_from completion" -a "bash zsh fish"
`
