// Package cli implements the chatform terminal client.
package cli

import (
	"fmt"
	"io"

	"github.com/deepgram/chatform/internal/client"
	"github.com/deepgram/chatform/internal/config"
	"github.com/deepgram/chatform/internal/logger"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	apiURL     string
	transport  string
	document   string
	retrieval  bool
}

// NewRootCommand builds the chatform command tree. The interactive session
// reads lines from in; all output goes to out.
func NewRootCommand(in io.Reader, out io.Writer) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "chatform",
		Short: "Chat with an LLM, optionally grounded in an uploaded document",
		Long: `chatform streams answers from the chatform API into your terminal.

Start without arguments for an interactive session. Type /help inside the
session for the available commands.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadEnv(); err != nil {
				return err
			}
			logger.InitWithWriter(cmd.ErrOrStderr(), config.GetEnvOrDefault("LOG_LEVEL", "WARN"), "console")
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			session, err := NewSession(cfg, out)
			if err != nil {
				return err
			}
			if opts.retrieval {
				session.mode = retrievalMode
			}
			if err := session.Start(cmd.Context(), opts.document); err != nil {
				return err
			}
			return session.Run(cmd.Context(), in)
		},
	}
	root.SetOut(out)

	root.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultClientConfigPath(), "path to the client config file")
	root.PersistentFlags().StringVar(&opts.apiURL, "api-url", "", "chatform API base URL (overrides the config file)")
	root.PersistentFlags().StringVar(&opts.transport, "transport", "", "response transport: http or ws (overrides the config file)")
	root.Flags().StringVar(&opts.document, "document", "", "upload and index this .txt or .pdf file before chatting")
	root.Flags().BoolVar(&opts.retrieval, "rag", false, "start in document chat mode")

	root.AddCommand(
		newHealthCommand(opts),
		newUploadCommand(opts),
		newStatusCommand(opts),
		newClearCommand(opts),
		newHistoryCommand(opts),
		newInitConfigCommand(opts),
	)
	return root
}

func (o *rootOptions) load() (config.ClientConfig, error) {
	cfg, err := config.LoadClientConfig(o.configPath)
	if err != nil {
		return cfg, err
	}
	if o.apiURL != "" {
		cfg.APIURL = o.apiURL
	}
	if o.transport != "" {
		cfg.Transport = o.transport
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (o *rootOptions) client() (*client.Client, config.ClientConfig, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, cfg, err
	}
	return client.New(cfg.APIURL), cfg, nil
}
