package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Edd-G/vkgate/pkg/bus"
	"github.com/Edd-G/vkgate/pkg/channels"
	"github.com/Edd-G/vkgate/pkg/config"
	"github.com/Edd-G/vkgate/pkg/logger"
	"github.com/Edd-G/vkgate/pkg/server"
)

const version = "0.1.0"

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", defaultConfigPath(), "path to config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("vkgate v%s\n", version)
		return
	}

	if *debug {
		logger.SetLevel(logger.DEBUG)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.FatalCF("main", "Failed to load config", map[string]interface{}{
			logger.FieldError: err.Error(),
		})
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		for _, err := range errs {
			logger.ErrorC("main", err.Error())
		}
		logger.FatalC("main", "Invalid configuration")
	}

	if cfg.Logging.Enabled {
		if err := logger.EnableFileLogging(cfg.LogFilePath(), cfg.Logging.MaxSizeMB); err != nil {
			logger.WarnCF("main", "File logging unavailable", map[string]interface{}{
				logger.FieldError: err.Error(),
			})
		}
	}

	logger.InfoCF("main", "Starting vkgate", map[string]interface{}{
		"version":  version,
		"group_id": cfg.VK.GroupID,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	messageBus := bus.NewMessageBus()

	manager, err := channels.NewManager(cfg, messageBus)
	if err != nil {
		logger.FatalCF("main", "Failed to initialize channels", map[string]interface{}{
			logger.FieldError: err.Error(),
		})
	}

	channel, ok := manager.GetChannel("vk")
	if !ok {
		logger.FatalC("main", "VK channel missing")
	}
	vkChannel := channel.(*channels.VKChannel)

	srv := server.NewServer(cfg, vkChannel.HTTPHandler())

	if err := manager.StartAll(ctx); err != nil {
		logger.FatalCF("main", "Failed to start channels", map[string]interface{}{
			logger.FieldError: err.Error(),
		})
	}
	if err := srv.Start(); err != nil {
		logger.FatalCF("main", "Failed to start server", map[string]interface{}{
			logger.FieldError: err.Error(),
		})
	}

	g, runCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runInboundLoop(runCtx, cfg, messageBus)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.ErrorCF("main", "Runtime loop failed", map[string]interface{}{
			logger.FieldError: err.Error(),
		})
	}

	logger.InfoC("main", "Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		logger.WarnCF("main", "Server shutdown error", map[string]interface{}{
			logger.FieldError: err.Error(),
		})
	}
	if err := manager.StopAll(shutdownCtx); err != nil {
		logger.WarnCF("main", "Channel shutdown error", map[string]interface{}{
			logger.FieldError: err.Error(),
		})
	}
	messageBus.Close()
	logger.DisableFileLogging()
}

// runInboundLoop is the host-runtime boundary: it consumes normalized
// messages from the bus. With gateway.echo enabled it bounces each message
// back to its sender, which is enough to smoke-test a deployment end to end.
func runInboundLoop(ctx context.Context, cfg *config.Config, messageBus *bus.MessageBus) error {
	for {
		msg, ok := messageBus.ConsumeInbound(ctx)
		if !ok {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("inbound queue closed")
		}

		logger.InfoCF("runtime", "Inbound message", map[string]interface{}{
			logger.FieldChannel:  msg.Channel,
			logger.FieldSenderID: msg.SenderID,
			logger.FieldChatID:   msg.ChatID,
		})

		if cfg.Gateway.Echo {
			messageBus.PublishOutbound(bus.OutboundMessage{
				Channel: msg.Channel,
				ChatID:  msg.ChatID,
				Content: msg.Content,
			})
		}
	}
}

func defaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".vkgate", "config.json")
}
