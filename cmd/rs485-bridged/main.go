package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/librescoot/rs485-bridge/pkg/bridge"
	"github.com/librescoot/rs485-bridge/pkg/configstore"
	"github.com/librescoot/rs485-bridge/pkg/gpioline"
	"github.com/librescoot/rs485-bridge/pkg/hostbus"
	"github.com/librescoot/rs485-bridge/pkg/serialport"
)

// Configuration flags
var (
	serialDevice = flag.String("serial", "/dev/ttymxc2", "RS485 serial device path")
	configPath   = flag.String("config", "/etc/rs485-bridge/config.bin", "Path to the flat configuration image")
	txEnablePin  = flag.String("tx-enable-pin", "GPIO2_IO07", "GPIO pin name for the transceiver's receive-enable line")
	redisAddr    = flag.String("redis-addr", "localhost:6379", "Redis server address")
	redisPass    = flag.String("redis-pass", "", "Redis password")
	redisDB      = flag.Int("redis-db", 0, "Redis database number")
)

func main() {
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Printf("Starting RS485 bridge daemon")
	log.Printf("Serial device: %s", *serialDevice)
	log.Printf("Config image: %s", *configPath)
	log.Printf("Redis address: %s", *redisAddr)

	cfg, err := configstore.Load(configstore.NewFileReader(*configPath))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.Printf("Loaded configuration: %d slave(s), baud=%d", len(cfg.SlaveAddresses), cfg.BaudRate)

	port, err := serialport.Open(*serialDevice, cfg.BaudRate, cfg.Parity, cfg.StopBits)
	if err != nil {
		log.Fatalf("Failed to open serial device: %v", err)
	}
	defer port.Close()
	log.Printf("Opened serial device")

	txLine, err := gpioline.Open(*txEnablePin)
	if err != nil {
		log.Fatalf("Failed to open TX-enable line: %v", err)
	}
	log.Printf("Opened TX-enable line %s", *txEnablePin)

	bus, err := hostbus.New(*redisAddr, *redisPass, *redisDB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer bus.Close()
	log.Printf("Connected to Redis")

	engine := bridge.New(cfg, port, txLine, bus)
	if err := engine.Start(); err != nil {
		log.Fatalf("Failed to start polling engine: %v", err)
	}
	defer engine.Shutdown()

	stopOutbound := make(chan struct{})
	go bus.WatchOutbound(engine, stopOutbound)
	defer close(stopOutbound)

	log.Printf("RS485 bridge running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	log.Printf("Shutting down...")
}
