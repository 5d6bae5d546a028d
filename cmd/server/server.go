package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"geri/internal/lots"
	geriNet "geri/internal/net"
	"geri/internal/warehouse"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	address := flag.String("address", "0.0.0.0", "Address to listen on")
	port := flag.Int("port", 9002, "Port to listen on")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	// Setup the warehouse and the TCP server.
	wh := warehouse.New(lots.NewHeap)
	srv := geriNet.New(*address, *port, wh)

	go srv.Run(ctx)
	// Block on running the server.
	<-ctx.Done()
}
