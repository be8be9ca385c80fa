package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/smartdoc/internal/app"
	objectclient "github.com/markdave123-py/smartdoc/internal/core/object-client"
	"github.com/markdave123-py/smartdoc/internal/services"
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Answer one question about a PDF and exit",
	Example: `  smartdoc ask --file invoice.pdf --question "What is the total?"
  smartdoc ask -f report.pdf -q "Who wrote this?" --pages 2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		question, _ := cmd.Flags().GetString("question")
		pages, _ := cmd.Flags().GetInt("pages")
		apiKey, _ := cmd.Flags().GetString("api-key")

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
		if pages > 0 {
			cfg.PageLimit = pages
		}

		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()

		provider := app.NewProvider(cfg)
		chat := app.NewChatService(cfg, provider, objectclient.NewMemoryClient(), logger)

		sess := chat.NewSession()
		if apiKey != "" {
			sess = chat.SetCredential(sess, apiKey)
		}
		sess, err = chat.Upload(ctx, sess, filepath.Base(file), "application/pdf", f)
		if err != nil {
			return fmt.Errorf("%s", services.FormatError(err))
		}
		sess, err = chat.Ask(ctx, sess, question)
		if err != nil {
			return fmt.Errorf("%s", services.FormatError(err))
		}

		fmt.Fprintln(cmd.OutOrStdout(), sess.History[len(sess.History)-1].Content)
		return chat.End(ctx, sess)
	},
}

func init() {
	askCmd.Flags().StringP("file", "f", "", "PDF document to read")
	askCmd.Flags().StringP("question", "q", "", "question to ask about the document")
	askCmd.Flags().IntP("pages", "p", 0, "pages used as context (default PAGE_LIMIT)")
	askCmd.Flags().String("api-key", "", "provider API key (default from environment)")
	_ = askCmd.MarkFlagRequired("file")
	_ = askCmd.MarkFlagRequired("question")
}
