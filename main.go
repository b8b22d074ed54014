package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/live-labs/labkeys/cmd"
)

// shutdownSignals cancel the command context. os.Interrupt is SIGINT.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals...)
	defer stop()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "configure":
		runConfigure(ctx, os.Args[2:])
	case "encrypt":
		runEncrypt(ctx, os.Args[2:])
	case "decrypt":
		runDecrypt(ctx, os.Args[2:])
	case "status":
		runStatus(ctx, os.Args[2:])
	case "diff":
		runDiff(ctx, os.Args[2:])
	case "rekey":
		runRekey(ctx, os.Args[2:])
	case "keyring":
		runKeyring(ctx, os.Args[2:])
	case "completion":
		runCompletion(ctx, os.Args[2:])
	case "help", "-h", "--help":
		if len(os.Args) <= 2 {
			printUsage()
			return
		}
		printCommandHelp(os.Args[2])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// newFlagSet creates a command flag set carrying the global flags
func newFlagSet(name string) (*pflag.FlagSet, *cmd.Globals) {
	fs := pflag.NewFlagSet(name, pflag.ExitOnError)
	g := &cmd.Globals{}
	fs.StringVarP(&g.Dir, "dir", "C", "", "Start the keys directory search in `dir`")
	fs.StringVar(&g.Config, "config", "", "Layout config `file` (YAML)")
	fs.BoolVarP(&g.Verbose, "verbose", "v", false, "Show progress messages")
	fs.BoolVar(&g.Debug, "debug", false, "Show debug messages")
	return fs, g
}

func parse(fs *pflag.FlagSet, args []string) {
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func runConfigure(ctx context.Context, args []string) {
	fs, g := newFlagSet("configure")
	password := fs.StringP("password", "p", "", "Lab password")
	force := fs.BoolP("force", "f", false, "Replace an existing env file")
	overwrite := fs.Bool("overwrite", false, "Replace an existing env file")
	parse(fs, args)

	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: labkeys configure [-p password] [-f|--overwrite]")
		os.Exit(1)
	}

	cmd.Configure(ctx, *g, *password, *force || *overwrite)
}

func runEncrypt(ctx context.Context, args []string) {
	fs, g := newFlagSet("encrypt")
	password := fs.StringP("password", "p", "", "Password")
	parse(fs, args)

	file, explicit := fileAndPassword(fs, *password, "Usage: labkeys encrypt <file> [password]")
	cmd.Encrypt(ctx, *g, file, explicit)
}

func runDecrypt(ctx context.Context, args []string) {
	fs, g := newFlagSet("decrypt")
	password := fs.StringP("password", "p", "", "Password")
	legacy := fs.Bool("legacy", false, "Read values in the pre-GCM format")
	parse(fs, args)

	file, explicit := fileAndPassword(fs, *password, "Usage: labkeys decrypt [--legacy] <file> [password]")
	cmd.Decrypt(ctx, *g, file, explicit, *legacy)
}

// fileAndPassword reads "<file> [password]"; --password wins over the
// positional password.
func fileAndPassword(fs *pflag.FlagSet, flagPassword, usage string) (string, string) {
	if fs.NArg() < 1 || fs.NArg() > 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}
	password := flagPassword
	if password == "" && fs.NArg() == 2 {
		password = fs.Arg(1)
	}
	return fs.Arg(0), password
}

func runStatus(_ context.Context, args []string) {
	fs, g := newFlagSet("status")
	parse(fs, args)

	cmd.Status(*g)
}

func runDiff(ctx context.Context, args []string) {
	fs, g := newFlagSet("diff")
	file := fs.String("file", "", "Encrypted settings file to compare with")
	values := fs.Bool("values", false, "Show the full diff including values")
	password := fs.StringP("password", "p", "", "Lab password")
	parse(fs, args)

	cmd.Diff(ctx, *g, *file, *password, *values)
}

func runRekey(ctx context.Context, args []string) {
	fs, g := newFlagSet("rekey")
	legacy := fs.Bool("legacy", false, "Upgrade files in the pre-GCM format")
	parse(fs, args)

	cmd.Rekey(ctx, *g, *legacy)
}

func runKeyring(ctx context.Context, args []string) {
	fs, g := newFlagSet("keyring")
	password := fs.StringP("password", "p", "", "Lab password (save only)")
	parse(fs, args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: labkeys keyring <save|delete|status>")
		os.Exit(1)
	}

	switch fs.Arg(0) {
	case "save":
		cmd.KeyringSave(ctx, *g, *password)
	case "delete":
		cmd.KeyringDelete(*g)
	case "status":
		cmd.KeyringStatus(*g)
	default:
		fmt.Fprintf(os.Stderr, "Unknown keyring command: %s\n", fs.Arg(0))
		fmt.Fprintln(os.Stderr, "Usage: labkeys keyring <save|delete|status>")
		os.Exit(1)
	}
}

func runCompletion(_ context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: labkeys completion <bash|zsh|fish>")
		os.Exit(1)
	}
	cmd.Completion(args[0])
}

func printUsage() {
	fmt.Println("labkeys - Distribute encrypted lab settings as .env files")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  labkeys <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  configure   Write the lab env file from an encrypted settings file")
	fmt.Println("  encrypt     Encrypt the values of a settings file")
	fmt.Println("  decrypt     Decrypt an encrypted settings file")
	fmt.Println("  status      Show keys directory, destination and last run")
	fmt.Println("  diff        Compare the env file with encrypted settings")
	fmt.Println("  rekey       Re-encrypt all settings files under a new password")
	fmt.Println("  keyring     Manage the password in the OS keyring")
	fmt.Println("  completion  Generate shell completions")
	fmt.Println("  help        Show help for a command")
	fmt.Println()
	fmt.Println("Global flags:")
	fmt.Println("  -C, --dir <dir>     Start the keys directory search in <dir>")
	fmt.Println("  --config <file>     Layout config file (or LABKEYS_CONFIG)")
	fmt.Println("  -v, --verbose       Show progress messages")
	fmt.Println("  --debug             Show debug messages")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  labkeys configure -v                          # Write labs/python/.env once")
	fmt.Println("  labkeys configure --overwrite                 # Replace an existing .env")
	fmt.Println("  labkeys encrypt lab1.appsettings.Local.json   # Encrypt a new settings file")
	fmt.Println("  labkeys status                                # Check what is configured")
	fmt.Println()
	fmt.Println("Use 'labkeys help <command>' for more information about a command.")
}

func printCommandHelp(command string) {
	switch command {
	case "configure":
		fmt.Println("labkeys configure [-p password] [-f|--force|--overwrite]")
		fmt.Println()
		fmt.Println("Finds the keys directory from the current (or -C) directory, picks one")
		fmt.Println("of its encrypted settings files at random, decrypts it and writes the")
		fmt.Println("flattened values to <labs>/python/.env.")
		fmt.Println("Does nothing when the env file already exists, without asking for a")
		fmt.Println("password, unless --overwrite is given.")
		fmt.Println()
		fmt.Println("Password sources, in order: --password, LABKEYS_PASSWORD,")
		fmt.Println("the OS keyring, an interactive prompt.")
		fmt.Println()
		fmt.Println("Flags:")
		fmt.Println("  -p, --password      Lab password")
		fmt.Println("  -f, --force         Replace an existing env file")
		fmt.Println("  --overwrite         Same as --force")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  labkeys configure")
		fmt.Println("  labkeys configure -C ~/labs/lab1 --overwrite")
	case "encrypt":
		fmt.Println("labkeys encrypt [-p password] <file> [password]")
		fmt.Println()
		fmt.Println("Encrypts every top-level value of a JSON settings file and writes")
		fmt.Println("<name>_encrypted.json next to it. Comments and trailing commas in the")
		fmt.Println("input are tolerated. Prompts twice when no password is given.")
		fmt.Println()
		fmt.Println("Example:")
		fmt.Println("  labkeys encrypt keys/lab1.appsettings.Local.json")
	case "decrypt":
		fmt.Println("labkeys decrypt [--legacy] [-p password] <file> [password]")
		fmt.Println()
		fmt.Println("Decrypts an encrypted settings file into the plaintext file it was")
		fmt.Println("made from (_encrypted.json replaced by .json).")
		fmt.Println()
		fmt.Println("Flags:")
		fmt.Println("  --legacy            Read values in the pre-GCM (CBC) format")
		fmt.Println()
		fmt.Println("Example:")
		fmt.Println("  labkeys decrypt keys/lab1.appsettings.Local_encrypted.json")
	case "status":
		fmt.Println("labkeys status")
		fmt.Println()
		fmt.Println("Shows:")
		fmt.Println("  - The keys directory and its encrypted settings files")
		fmt.Println("  - The destination env file and its variable names")
		fmt.Println("  - The last configured run and whether the file changed since")
		fmt.Println("  - Keyring and git status")
		fmt.Println()
		fmt.Println("Does not require a password and never prints values.")
	case "diff":
		fmt.Println("labkeys diff [--file name] [--values] [-p password]")
		fmt.Println()
		fmt.Println("Compares the env file on disk with what configure would write.")
		fmt.Println("Lists added, removed and changed variable names. --values prints")
		fmt.Println("the full line diff, secrets included.")
		fmt.Println()
		fmt.Println("The encrypted file is the one given with --file, the one used by the")
		fmt.Println("last configured run, or the only file in the keys directory.")
	case "rekey":
		fmt.Println("labkeys rekey [--legacy]")
		fmt.Println()
		fmt.Println("Re-encrypts every encrypted settings file in the keys directory under")
		fmt.Println("a new password. No file is rewritten unless all of them decrypt.")
		fmt.Println("With --legacy, files in the pre-GCM format are upgraded.")
	case "keyring":
		fmt.Println("labkeys keyring <save|delete|status>")
		fmt.Println()
		fmt.Println("Manages the lab password in the OS keyring for this labs directory.")
		fmt.Println("'save' checks the password against an encrypted file first.")
	case "completion":
		fmt.Println("labkeys completion <bash|zsh|fish>")
		fmt.Println()
		fmt.Println("Outputs shell completion script for the specified shell.")
		fmt.Println()
		fmt.Println("Setup:")
		fmt.Println("  # Bash - add to ~/.bashrc")
		fmt.Println("  eval \"$(labkeys completion bash)\"")
		fmt.Println()
		fmt.Println("  # Zsh - add to ~/.zshrc")
		fmt.Println("  eval \"$(labkeys completion zsh)\"")
		fmt.Println()
		fmt.Println("  # Fish - add to ~/.config/fish/config.fish")
		fmt.Println("  labkeys completion fish | source")
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
	}
}
