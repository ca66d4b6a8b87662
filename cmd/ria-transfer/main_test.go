package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootCmdRegistersAllSubcommands(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"init", "store", "retrieve", "checkpresent", "remove"} {
		assert.True(t, names[want], "expected subcommand %q to be registered", want)
	}
}

func TestStoreCmdRequiresURLAndDatasetID(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"store", "--key", "k", "--file", "f"})
	err := root.Execute()
	assert.Error(t, err)
}
