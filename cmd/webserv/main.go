package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	webserv "github.com/badu/webserv"
	"github.com/badu/webserv/config"
	"github.com/badu/webserv/internal/logging"
)

// main implements spec.md §6's command-line contract: exactly one
// argument, a path to the configuration file.
func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <config-file>\n", os.Args[0])
		os.Exit(1)
	}

	logger := logging.New("info")

	configs, err := config.LoadFile(readFile, os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "webserv: %v\n", err)
		os.Exit(1)
	}

	srv := webserv.NewServer(configs, logger)
	if err := srv.Open(); err != nil {
		fmt.Fprintf(os.Stderr, "webserv: %v\n", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		srv.RequestShutdown()
	}()

	logger.Info("webserv starting")
	if err := srv.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "webserv: %v\n", err)
		os.Exit(1)
	}
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
