package main

import (
	"bufio"
	"context"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/labstack/gommon/log"

	"echochamber/account"
	"echochamber/config"
	"echochamber/db"
	"echochamber/server"
)

func main() {
	logger := log.New("echochamber")
	logger.SetLevel(log.INFO)

	cfg, err := config.Load(context.Background())
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	database, err := db.New(cfg.DBPath)
	if err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	registry := account.NewRegistry(logger)
	snaps, err := database.LoadAccounts()
	if err != nil {
		logger.Fatalf("Failed to load accounts: %v", err)
	}
	if err := registry.Restore(snaps); err != nil {
		logger.Fatalf("Failed to restore accounts: %v", err)
	}
	logger.Infof("Successfully imported %d accounts", len(snaps))

	srv := server.New(registry, &server.Config{
		Port:        cfg.Port,
		MaxClients:  cfg.MaxClients,
		ChannelName: cfg.ChannelName,
	}, logger)

	shutdown := func() {
		srv.Shutdown()
		if err := database.SaveAccounts(registry.Snapshot()); err != nil {
			logger.Errorf("Failed to save accounts: %v", err)
		} else {
			logger.Info("Accounts saved successfully")
		}
		database.Close()
		os.Remove(cfg.ControlSocket)
		os.Exit(0)
	}

	go startControlSocket(srv, cfg.ControlSocket, logger, shutdown)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Infof("Received signal %v, shutting down...", sig)
		shutdown()
	}()

	if err := srv.Start(); err != nil {
		logger.Fatalf("Server failed: %v", err)
	}
}

// startControlSocket serves management commands over a unix socket:
// "stats" and "shutdown", one command per connection.
func startControlSocket(srv *server.Server, path string, logger *log.Logger, shutdown func()) {
	os.Remove(path)

	listener, err := net.Listen("unix", path)
	if err != nil {
		logger.Errorf("Failed to create control socket: %v", err)
		return
	}
	defer listener.Close()
	defer os.Remove(path)

	logger.Infof("Control socket listening on %s", path)

	for {
		conn, err := listener.Accept()
		if err != nil {
			continue
		}
		go handleControlCommand(srv, conn, shutdown)
	}
}

func handleControlCommand(srv *server.Server, conn net.Conn, shutdown func()) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		return
	}

	switch strings.TrimSpace(line) {
	case "stats":
		conn.Write([]byte("OK|" + srv.Stats() + "\n"))
	case "shutdown":
		conn.Write([]byte("OK|Shutting down\n"))
		conn.Close()
		shutdown()
	default:
		conn.Write([]byte("ERROR|Unknown command\n"))
	}
}
