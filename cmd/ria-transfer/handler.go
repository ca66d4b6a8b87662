package main

import (
	"github.com/spf13/cobra"

	rialog "github.com/datalad-ria/ria-remote/internal/log"
	"github.com/datalad-ria/ria-remote/internal/ria"
	"github.com/datalad-ria/ria-remote/internal/riaurl"
	"github.com/datalad-ria/ria-remote/internal/shell"
)

// storeFlags are the flags every subcommand needs to resolve a Handler:
// which store, which dataset, and (for ria+ssh:// stores) how to
// authenticate.
type storeFlags struct {
	url       string
	datasetID string
	sshKey    string
	sshAgent  bool
	sshUser   string
}

func (f *storeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.url, "url", "", "RIA store URL, e.g. ria+ssh://host/path or ria+file:///path")
	cmd.Flags().StringVar(&f.datasetID, "dataset-id", "", "dataset UUID")
	cmd.Flags().StringVar(&f.sshKey, "ssh-key", "", "private key file for ria+ssh:// auth")
	cmd.Flags().BoolVar(&f.sshAgent, "ssh-agent", false, "use ssh-agent for ria+ssh:// auth")
	cmd.Flags().StringVar(&f.sshUser, "ssh-user", "", "override the SSH user in the store URL")
	_ = cmd.MarkFlagRequired("url")
	_ = cmd.MarkFlagRequired("dataset-id")
}

// buildDialer wraps riaurl.DialSSH, closing over the auth flags, into the
// riaurl.Dial shape Build expects. Never consulted for ria+file:// stores.
func (f *storeFlags) buildDialer() riaurl.Dial {
	return func(u *riaurl.StoreURL) (*shell.Worker, error) {
		return riaurl.DialSSH(u, riaurl.SSHAuthConfig{
			User:     f.sshUser,
			KeyFile:  f.sshKey,
			UseAgent: f.sshAgent,
		})
	}
}

func (f *storeFlags) build(subject string) (ria.Handler, error) {
	reporter := rialog.Reporter{Subject: subject}
	return riaurl.Build(f.url, f.datasetID, reporter, f.buildDialer())
}
