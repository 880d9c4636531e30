package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/brandon/mcp-mailbox/internal/config"
	"github.com/brandon/mcp-mailbox/internal/email"
	"github.com/brandon/mcp-mailbox/internal/ledger"
	"github.com/brandon/mcp-mailbox/internal/mcp"
	"github.com/brandon/mcp-mailbox/internal/search"
	"github.com/brandon/mcp-mailbox/internal/thread"
	"github.com/brandon/mcp-mailbox/internal/tools"
)

var (
	version     = "dev"
	showVersion = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("mcp-mailbox version %s\n", version)
		os.Exit(0)
	}
	// stdout carries the protocol, logs go to stderr
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stderr)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	logger.WithFields(logrus.Fields{
		"protocol": cfg.Protocol,
		"receive":  cfg.Receive.Address(),
		"smtp":     cfg.SMTP.Address(),
	}).Info("Starting MCP Mailbox Server")

	// The ledger is optional; without it the server still works, minus send history
	sendLedger, err := ledger.NewLedger(cfg.LedgerPath, logger)
	if err != nil {
		logger.WithError(err).WithField("path", cfg.LedgerPath).Warn("Send ledger unavailable; continuing without it")
	} else {
		defer sendLedger.Close()
	}

	account := email.NewAccount(cfg, logger)
	emailManager := email.NewManager(account, logger)
	defer emailManager.Close()

	orchestrator := search.NewOrchestrator(account.Receiver, cfg.InboxMailbox, cfg.SentMailbox, logger)

	opts := thread.DefaultOptions()
	opts.Window = cfg.ReplyWindow()
	if sendLedger != nil {
		opts.Ledger = sendLedger
	}
	detector := thread.NewDetector(orchestrator, opts, logger)

	registry, err := tools.NewRegistry(cfg, emailManager, orchestrator, detector, sendLedger, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create tool registry")
	}
	server := mcp.NewServer(registry, version, logger)

	// Set up signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Run(ctx, os.Stdin, os.Stdout)
	}()

	select {
	case sig := <-sigChan:
		logger.WithField("signal", sig).Info("Received shutdown signal")
		cancel()
	case err := <-errChan:
		if err != nil {
			logger.WithError(err).Error("Server error")
		}
		cancel()
	}

	logger.Info("Shutting down MCP Mailbox Server")
}
