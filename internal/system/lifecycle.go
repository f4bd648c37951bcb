package system

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/KevinKickass/OpenLadderCore/internal/adcsensor"
	"github.com/KevinKickass/OpenLadderCore/internal/api/rest"
	"github.com/KevinKickass/OpenLadderCore/internal/api/websocket"
	"github.com/KevinKickass/OpenLadderCore/internal/ble"
	"github.com/KevinKickass/OpenLadderCore/internal/clockd"
	"github.com/KevinKickass/OpenLadderCore/internal/config"
	"github.com/KevinKickass/OpenLadderCore/internal/device"
	"github.com/KevinKickass/OpenLadderCore/internal/engine"
	"github.com/KevinKickass/OpenLadderCore/internal/ingest"
	"github.com/KevinKickass/OpenLadderCore/internal/monitor"
	"github.com/KevinKickass/OpenLadderCore/internal/mqttbus"
	"github.com/KevinKickass/OpenLadderCore/internal/onewire"
	"github.com/KevinKickass/OpenLadderCore/internal/storage"
	ladsync "github.com/KevinKickass/OpenLadderCore/internal/sync"
)

// LifecycleManager wires the runtime together and owns startup order
// and graceful shutdown.
type LifecycleManager struct {
	config   *config.Config
	storage  *storage.Store
	driver   ingest.Driver
	engine   *engine.Engine
	ingestor *ingest.Ingestor
	scanner  *onewire.Scanner
	core     *Core
	bus      *mqttbus.Bus
	wsHub    *websocket.Hub
	logger   *zap.Logger

	restServer *rest.Server
	bleServer  *ble.Server

	monitor    *monitor.Monitor
	syncer     *ladsync.Syncer
	owSampler  *onewire.Sampler
	adcSampler *adcsensor.Sampler
	clock      *clockd.Updater

	closeDriver func() error
	cancelRun   context.CancelFunc

	stateMu      sync.RWMutex
	currentState SystemState

	shutdownOnce sync.Once
}

func NewLifecycleManager(store *storage.Store, cfg *config.Config, logger *zap.Logger) (*LifecycleManager, error) {
	mac, err := mqttbus.ResolveMAC(cfg.Device.MACOverride)
	if err != nil {
		return nil, fmt.Errorf("resolve device mac: %w", err)
	}
	logger.Info("Device identity resolved", zap.String("mac", mac))

	driver, closeDriver := openDriver(cfg, logger)

	eng := engine.New(driver, logger,
		engine.WithSpawnSpacing(cfg.Runtime.WireSpawnSpacing))

	ingestor, err := ingest.New(eng, driver, store, logger,
		ingest.WithWindow(cfg.Runtime.ConfigWindow),
		ingest.WithMaxSize(cfg.Runtime.MaxConfigSize))
	if err != nil {
		closeDriver()
		return nil, err
	}

	scanner := onewire.NewScanner(driver, logger)
	core := NewCore(eng, store, ingestor, scanner)
	bus := mqttbus.New(cfg.MQTT, mac, ingestor, store, peerStore{engine: eng}, logger)
	hub := websocket.NewHub(logger)

	mon := monitor.New(eng, bus, scanner, cfg.Runtime.MonitorInterval, logger)
	mon.OnSnapshot(func(snap []byte) {
		hub.Broadcast(websocket.NewSnapshotMessage(snap))
	})

	ingestor.OnApply(func(desc *device.Descriptor) {
		// alter Debounce Stand gehoert zum alten Programm
		scanner.Reset()
		hub.Broadcast(websocket.NewConfigAppliedMessage(desc.DeviceName))
	})

	lm := &LifecycleManager{
		config:      cfg,
		storage:     store,
		driver:      driver,
		engine:      eng,
		ingestor:    ingestor,
		scanner:     scanner,
		core:        core,
		bus:         bus,
		wsHub:       hub,
		logger:      logger,
		restServer:  rest.NewServer(cfg, core, hub, logger),
		monitor:     mon,
		syncer:      ladsync.New(eng, bus, cfg.Runtime.SyncInterval, logger),
		owSampler:   onewire.NewSampler(eng, driver, cfg.Runtime.OneWireScan, logger),
		adcSampler:  adcsensor.NewSampler(eng, driver, logger),
		clock:       clockd.New(eng, logger),
		closeDriver: closeDriver,
	}

	if cfg.BLE.Enabled {
		lm.bleServer = ble.NewServer(cfg.BLE, mac, core, ingestor, logger)
	}

	return lm, nil
}

// openDriver picks the io driver. A hardware profile can force the
// in-memory driver for bench setups, otherwise the gpio controller is
// probed and the in-memory driver is the fallback.
func openDriver(cfg *config.Config, logger *zap.Logger) (ingest.Driver, func() error) {
	wantGPIO := true
	if cfg.Device.HardwareProfile != "" {
		profile, err := device.LoadHardwareProfile(cfg.Device.HardwareProfile)
		if err != nil {
			logger.Warn("hardware profile unreadable, probing gpio", zap.Error(err))
		} else {
			logger.Info("hardware profile loaded",
				zap.String("board", profile.Board),
				zap.String("driver", profile.Driver))
			wantGPIO = profile.Driver == device.DriverGPIO
		}
	}

	if wantGPIO {
		gpio, err := device.NewGPIO(nil, logger)
		if err == nil {
			return gpio, gpio.Close
		}
		logger.Warn("gpio controller unavailable, using in-memory io", zap.Error(err))
	}

	mem := device.NewMemoryIO(nil, logger)
	return mem, func() error { return nil }
}

// Core returns the transport-facing runtime surface.
func (lm *LifecycleManager) Core() *Core {
	return lm.core
}

func (lm *LifecycleManager) State() SystemState {
	lm.stateMu.RLock()
	defer lm.stateMu.RUnlock()
	return lm.currentState
}

// Start brings the entire system up. The persisted program is replayed
// first so the outputs are driven before any transport accepts traffic.
func (lm *LifecycleManager) Start() error {
	lm.logger.Info("Starting OpenLadderCore")
	lm.setState(StateInitializing)

	if err := lm.ingestor.LoadFromStorage(); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lm.logger.Info("no stored configuration, waiting for first program")
		} else {
			lm.logger.Warn("stored configuration rejected on boot", zap.Error(err))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	lm.cancelRun = cancel

	go lm.wsHub.Run()

	if err := lm.bus.Start(ctx); err != nil {
		lm.setState(StateError)
		return fmt.Errorf("failed to start message bus: %w", err)
	}

	go lm.monitor.Run(ctx)
	go lm.syncer.Run(ctx)
	go lm.owSampler.Run(ctx)
	go lm.adcSampler.Run(ctx)
	go lm.clock.Run(ctx)

	if err := lm.restServer.Start(); err != nil {
		lm.setState(StateError)
		return fmt.Errorf("failed to start REST API: %w", err)
	}

	if lm.bleServer != nil {
		go func() {
			if err := lm.bleServer.Run(ctx); err != nil {
				lm.logger.Error("BLE bridge failed", zap.Error(err))
			}
		}()
	}

	lm.setState(StateRunning)
	lm.logger.Info("System started successfully",
		zap.Int("http_port", lm.config.Server.HTTPPort),
		zap.String("mqtt_broker", lm.config.MQTT.BrokerURI),
		zap.Bool("ble_enabled", lm.bleServer != nil))

	return nil
}

// Shutdown gracefully shuts down the system.
func (lm *LifecycleManager) Shutdown(ctx context.Context) error {
	var shutdownErr error

	lm.shutdownOnce.Do(func() {
		lm.logger.Info("Shutting down system")
		lm.setState(StateStopping)

		if lm.cancelRun != nil {
			lm.cancelRun()
		}

		shutdownErr = lm.gracefulShutdown(ctx)
		lm.setState(StateStopped)
	})

	return shutdownErr
}

func (lm *LifecycleManager) gracefulShutdown(ctx context.Context) error {
	var wg sync.WaitGroup
	errChan := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := lm.restServer.Shutdown(ctx); err != nil {
			errChan <- fmt.Errorf("rest api shutdown failed: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		lm.bus.Stop()
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		lm.logger.Warn("Shutdown timeout, forcing stop")
		return fmt.Errorf("shutdown timeout exceeded")
	}

	// Scan tasks stoppen bevor der Treiber schliesst
	lm.engine.Teardown()
	if err := lm.closeDriver(); err != nil {
		lm.logger.Warn("driver close failed", zap.Error(err))
	}

	select {
	case err := <-errChan:
		return err
	default:
	}

	lm.logger.Info("Graceful shutdown completed")
	return nil
}

func (lm *LifecycleManager) setState(state SystemState) {
	lm.stateMu.Lock()
	defer lm.stateMu.Unlock()
	lm.currentState = state
}
