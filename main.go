package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Entry point for the smartdoor access daemon.
func main() {
	configPath := flag.String("config", "", "path to smartdoor.toml (default ~/"+defaultConfigPath+")")
	hashPassword := flag.String("hash-password", "", "print a bcrypt hash for the status API password and exit")
	flag.Parse()

	if *hashPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*hashPassword), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("failed to hash password: %v", err)
		}
		fmt.Println(string(hash))
		return
	}

	path := *configPath
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("cannot determine home directory: %v", err)
		}
		path = filepath.Join(home, defaultConfigPath)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := log.New(os.Stdout, "smartdoor ", log.LstdFlags)
	events := NewEventLogger(cfg.LogFile)

	// A hardware initialization failure is the only fatal error: the daemon
	// must not run half-initialised with a lock it cannot drive.
	hw, reader, err := openHardware(cfg, logger)
	if err != nil {
		log.Fatalf("hardware initialisation error: %v", err)
	}

	auth := NewAuthClient(cfg.AuthURL, cfg.Room, time.Duration(cfg.Auth.TimeoutSeconds)*time.Second)
	ctl := NewController(cfg, hw, auth, initNotifiers(cfg, events), logger, events)
	if err := ctl.Start(); err != nil {
		log.Fatalf("initial lock actuation failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go runCardPoller(ctx, reader, ctl, logger)
	go runButtonWatcher(ctx, hw, ctl, logger)

	var status *StatusServer
	if cfg.Server.Addr != "" {
		status = NewStatusServer(cfg.Server, ctl, events, logger)
		go func() {
			if err := status.Start(); err != nil && err != http.ErrServerClosed {
				logger.Printf("status API error: %v", err)
			}
		}()
	}

	logger.Printf("smartdoor running for room %s", cfg.Room)
	<-ctx.Done()
	logger.Printf("shutting down")

	if status != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = status.Shutdown(shutdownCtx)
		cancel()
	}
	ctl.Wait()
	if err := reader.Close(); err != nil {
		logger.Printf("reader close: %v", err)
	}
	if err := hw.Close(); err != nil {
		logger.Printf("hardware close: %v", err)
	}
	events.Log("smartdoor stopped")
}
