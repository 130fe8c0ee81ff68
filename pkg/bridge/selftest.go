package bridge

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/marmos91/pambridge/internal/logger"
	"github.com/marmos91/pambridge/pkg/helper"
	"github.com/marmos91/pambridge/pkg/pam"
	"github.com/marmos91/pambridge/pkg/pam/pamtest"
)

// SelfTest exercises the whole RPC channel inside one process: it stands
// up a server, connects to it as its own peer (the admission rule admits
// our own PID precisely for this) and drives every method against a
// scripted handle.
//
// This is the post-install smoke test: it proves socket setup, peer
// credentials and the wire protocol work on this machine without needing
// a PAM stack.
func SelfTest(ctx context.Context) error {
	state := NewModuleState()
	defer state.Release()

	server, err := state.ensureServer()
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	h := pamtest.NewFakeHandle()
	h.PromptResponses = []string{"self-test-response"}

	sess, err := server.Arm(h, "selftest", nil)
	if err != nil {
		return fmt.Errorf("arm session: %w", err)
	}
	defer sess.Close()
	sess.SetExpectedPID(os.Getpid())

	tx, cleanup, err := helper.Connect(ctx, server.Address())
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer cleanup()

	logger.Debug("self-test connected", logger.Address(server.Address()))

	if err := checkItems(tx); err != nil {
		return err
	}
	if err := checkEnv(tx); err != nil {
		return err
	}
	if err := checkData(tx); err != nil {
		return err
	}
	if err := checkPrompt(tx); err != nil {
		return err
	}
	return nil
}

func checkItems(tx *helper.Transaction) error {
	if err := tx.SetItem(pam.User, "selftest"); err != nil {
		return fmt.Errorf("set item: %w", err)
	}
	user, err := tx.GetItem(pam.User)
	if err != nil {
		return fmt.Errorf("get item: %w", err)
	}
	if user != "selftest" {
		return fmt.Errorf("item round trip: got %q", user)
	}
	return nil
}

func checkEnv(tx *helper.Transaction) error {
	if err := tx.PutEnv("PAMBRIDGE_SELFTEST=1"); err != nil {
		return fmt.Errorf("set env: %w", err)
	}
	if v := tx.GetEnv("PAMBRIDGE_SELFTEST"); v != "1" {
		return fmt.Errorf("env round trip: got %q", v)
	}

	entries, err := tx.GetEnvList()
	if err != nil {
		return fmt.Errorf("env list: %w", err)
	}
	found := false
	for _, entry := range entries {
		if entry == "PAMBRIDGE_SELFTEST=1" {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("env list is missing the test entry")
	}

	if err := tx.PutEnv("PAMBRIDGE_SELFTEST"); err != nil {
		return fmt.Errorf("unset env: %w", err)
	}
	if v := tx.GetEnv("PAMBRIDGE_SELFTEST"); v != "" {
		return fmt.Errorf("env still set after unset: %q", v)
	}
	return nil
}

func checkData(tx *helper.Transaction) error {
	if err := tx.SetData("probe", []byte("payload")); err != nil {
		return fmt.Errorf("set data: %w", err)
	}
	data, err := tx.GetData("probe")
	if err != nil {
		return fmt.Errorf("get data: %w", err)
	}
	if !bytes.Equal(data, []byte("payload")) {
		return fmt.Errorf("data round trip: got %q", data)
	}

	if err := tx.SetData("probe", nil); err != nil {
		return fmt.Errorf("unset data: %w", err)
	}
	if _, err := tx.GetData("probe"); err != pam.NoModuleData {
		return fmt.Errorf("want NoModuleData after unset, got %v", err)
	}
	return nil
}

func checkPrompt(tx *helper.Transaction) error {
	response, err := tx.Prompt(pam.PromptEchoOff, "self-test prompt")
	if err != nil {
		return fmt.Errorf("prompt: %w", err)
	}
	if response != "self-test-response" {
		return fmt.Errorf("prompt round trip: got %q", response)
	}
	return nil
}
