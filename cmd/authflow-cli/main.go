package main

import (
	"fmt"
	"net/http"
	"os"
	"time"
)

// Version is set at build time
var Version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	cli := &CLI{
		BaseURL: getEnv("AUTHFLOW_URL", "http://localhost:8080"),
		Client:  &http.Client{Timeout: 30 * time.Second},
	}

	var err error
	switch cmd {
	case "signup":
		err = cli.signUpCommand(args)
	case "signin":
		err = cli.signInCommand(args)
	case "signout":
		err = cli.signOutCommand(args)
	case "whoami":
		err = cli.whoAmICommand(args)
	case "reset":
		err = cli.resetCommand(args)
	case "version":
		fmt.Printf("authflow-cli %s\n", Version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`authflow-cli - Authflow Command Line Interface

Usage:
  authflow-cli <command> [subcommand] [options]

Environment Variables:
  AUTHFLOW_URL  Base URL of Authflow server (default: http://localhost:8080)

Commands:
  signup    Create an account
    --email=EMAIL --password=PWD

  signin    Sign in
    --email=EMAIL --password=PWD [--signup-if-missing] [--link]
    anonymous                    Establish an anonymous session
    <provider> --id-token=T [--access-token=T] [--raw-nonce=N]

  signout   End the current session

  whoami    Show the current account

  reset     Password reset flow
    request --email=EMAIL
    verify  --code=CODE
    confirm --code=CODE --password=NEW

  version   Show CLI version
  help      Show this help

Examples:
  # Create an account
  authflow-cli signup --email=user@example.com --password=secret123

  # Sign in, creating the account if it does not exist yet
  authflow-cli signin --email=user@example.com --password=secret123 --signup-if-missing

  # Sign in with a Google ID token obtained elsewhere
  authflow-cli signin google --id-token=eyJ...

  # Start a password reset
  authflow-cli reset request --email=user@example.com
`)
}
