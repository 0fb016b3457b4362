package main

import (
	"fmt"
	"strings"
)

const apiBase = "/api/v1"

// ---- Auth Commands ----

func (c *CLI) signUpCommand(args []string) error {
	opts := parseArgs(args)
	if opts["email"] == "" || opts["password"] == "" {
		return fmt.Errorf("usage: authflow-cli signup --email=EMAIL --password=PWD")
	}

	resp, err := c.post(apiBase+"/signup", map[string]string{
		"email":    opts["email"],
		"password": opts["password"],
	})
	if err != nil {
		return err
	}
	return prettyPrint(resp)
}

func (c *CLI) signInCommand(args []string) error {
	// Positional subcommand first: "anonymous" or an identity provider name.
	if len(args) > 0 && !strings.HasPrefix(args[0], "--") {
		sub := args[0]
		if sub == "anonymous" {
			resp, err := c.post(apiBase+"/signin/anonymous", nil)
			if err != nil {
				return err
			}
			return prettyPrint(resp)
		}
		return c.signInIDP(sub, args[1:])
	}

	opts := parseArgs(args)
	if opts["email"] == "" || opts["password"] == "" {
		return fmt.Errorf("usage: authflow-cli signin --email=EMAIL --password=PWD")
	}

	resp, err := c.post(apiBase+"/signin", map[string]any{
		"email":           opts["email"],
		"password":        opts["password"],
		"signUpIfMissing": opts["signup-if-missing"] == "true",
		"link":            opts["link"] == "true",
	})
	if err != nil {
		return err
	}
	return prettyPrint(resp)
}

func (c *CLI) signInIDP(name string, args []string) error {
	opts := parseArgs(args)
	if opts["id-token"] == "" && opts["access-token"] == "" {
		return fmt.Errorf("usage: authflow-cli signin %s --id-token=T [--access-token=T] [--raw-nonce=N]", name)
	}

	resp, err := c.post(apiBase+"/signin/"+name, map[string]string{
		"idToken":     opts["id-token"],
		"accessToken": opts["access-token"],
		"rawNonce":    opts["raw-nonce"],
	})
	if err != nil {
		return err
	}
	return prettyPrint(resp)
}

func (c *CLI) signOutCommand(args []string) error {
	resp, err := c.post(apiBase+"/signout", nil)
	if err != nil {
		return err
	}
	return prettyPrint(resp)
}

func (c *CLI) whoAmICommand(args []string) error {
	resp, err := c.get(apiBase + "/whoami")
	if err != nil {
		return err
	}
	return prettyPrint(resp)
}

func (c *CLI) resetCommand(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: authflow-cli reset <request|verify|confirm>")
	}

	sub := args[0]
	opts := parseArgs(args[1:])

	switch sub {
	case "request":
		if opts["email"] == "" {
			return fmt.Errorf("usage: authflow-cli reset request --email=EMAIL")
		}
		resp, err := c.post(apiBase+"/password-reset", map[string]string{"email": opts["email"]})
		if err != nil {
			return err
		}
		return prettyPrint(resp)

	case "verify":
		if opts["code"] == "" {
			return fmt.Errorf("usage: authflow-cli reset verify --code=CODE")
		}
		resp, err := c.post(apiBase+"/password-reset/verify", map[string]string{"code": opts["code"]})
		if err != nil {
			return err
		}
		return prettyPrint(resp)

	case "confirm":
		if opts["code"] == "" || opts["password"] == "" {
			return fmt.Errorf("usage: authflow-cli reset confirm --code=CODE --password=NEW")
		}
		resp, err := c.post(apiBase+"/password-reset/confirm", map[string]string{
			"code":        opts["code"],
			"newPassword": opts["password"],
		})
		if err != nil {
			return err
		}
		return prettyPrint(resp)

	default:
		return fmt.Errorf("unknown reset subcommand: %s", sub)
	}
}
