// pambridge-helper is a scriptable helper used to exercise the bridge.
//
// Each extra argument on the module configuration line is one step,
// executed in order:
//
//	exit=N              finish with PAM status N
//	set-env=NAME=VALUE  set a PAM environment variable
//	unset-env=NAME      unset a PAM environment variable
//	get-env=NAME        print the variable's value
//	env-list            print every NAME=VALUE pair
//	set-item=N=VALUE    set PAM item number N
//	get-item=N          print PAM item number N
//	set-data=KEY=VALUE  store module data
//	unset-data=KEY      drop module data
//	get-data=KEY        print module data
//	prompt=STYLE:MSG    run one conversation round, print the response
//	signal-self=N       raise signal N against this process
//	sleep=SECONDS       block for the given number of seconds
//
// Without an exit step the helper finishes with Success.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/marmos91/pambridge/pkg/helper"
	"github.com/marmos91/pambridge/pkg/pam"
)

func main() {
	os.Exit(helper.Run(scenario))
}

func scenario(tx *helper.Transaction, action pam.Action, flags pam.Flags, args []string) error {
	for _, arg := range args {
		step, value, _ := strings.Cut(arg, "=")

		var err error
		switch step {
		case "exit":
			n, convErr := strconv.Atoi(value)
			if convErr != nil {
				return fmt.Errorf("exit: %w", convErr)
			}
			return pam.Status(n)

		case "set-env":
			err = tx.PutEnv(value)

		case "unset-env":
			err = tx.PutEnv(value)

		case "get-env":
			fmt.Println(tx.GetEnv(value))

		case "env-list":
			var entries []string
			if entries, err = tx.GetEnvList(); err == nil {
				for _, entry := range entries {
					fmt.Println(entry)
				}
			}

		case "set-item":
			err = setItem(tx, value)

		case "get-item":
			err = getItem(tx, value)

		case "set-data":
			key, data, ok := strings.Cut(value, "=")
			if !ok {
				return fmt.Errorf("set-data: want KEY=VALUE, got %q", value)
			}
			err = tx.SetData(key, []byte(data))

		case "unset-data":
			err = tx.SetData(value, nil)

		case "get-data":
			var data []byte
			if data, err = tx.GetData(value); err == nil {
				fmt.Println(string(data))
			}

		case "prompt":
			err = prompt(tx, value)

		case "signal-self":
			n, convErr := strconv.Atoi(value)
			if convErr != nil {
				return fmt.Errorf("signal-self: %w", convErr)
			}
			if err = syscall.Kill(os.Getpid(), syscall.Signal(n)); err == nil {
				// Give the signal time to land before the next step.
				time.Sleep(5 * time.Second)
			}

		case "sleep":
			n, convErr := strconv.Atoi(value)
			if convErr != nil {
				return fmt.Errorf("sleep: %w", convErr)
			}
			time.Sleep(time.Duration(n) * time.Second)

		default:
			return fmt.Errorf("unknown step %q", arg)
		}

		if err != nil {
			return fmt.Errorf("%s: %w", step, err)
		}
	}
	return nil
}

func setItem(tx *helper.Transaction, value string) error {
	itemArg, itemValue, ok := strings.Cut(value, "=")
	if !ok {
		return fmt.Errorf("set-item: want ITEM=VALUE, got %q", value)
	}
	item, err := strconv.Atoi(itemArg)
	if err != nil {
		return fmt.Errorf("set-item: %w", err)
	}
	return tx.SetItem(pam.Item(item), itemValue)
}

func getItem(tx *helper.Transaction, value string) error {
	item, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("get-item: %w", err)
	}
	itemValue, err := tx.GetItem(pam.Item(item))
	if err != nil {
		return err
	}
	fmt.Println(itemValue)
	return nil
}

func prompt(tx *helper.Transaction, value string) error {
	styleArg, msg, ok := strings.Cut(value, ":")
	if !ok {
		return fmt.Errorf("prompt: want STYLE:MSG, got %q", value)
	}
	style, err := strconv.Atoi(styleArg)
	if err != nil {
		return fmt.Errorf("prompt: %w", err)
	}
	response, err := tx.Prompt(pam.Style(style), msg)
	if err != nil {
		return err
	}
	fmt.Println(response)
	return nil
}
