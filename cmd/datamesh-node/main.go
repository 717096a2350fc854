// Command datamesh-node wires ConfigModel → KeyRing → MetadataStore →
// DhtFabric → NetworkActor → StorageEngine → EventBus into a single running
// process. It exposes no CLI/HTTP surface of its own: the specification
// treats those as an external collaborator's concern. This binary exists so
// the wiring can be exercised manually and in integration tests.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	libp2p "github.com/libp2p/go-libp2p"
	libp2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	multiaddr "github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"

	"github.com/ioustamora/datamesh-sub004/internal/config"
	"github.com/ioustamora/datamesh-sub004/internal/dht"
	"github.com/ioustamora/datamesh-sub004/internal/engine"
	"github.com/ioustamora/datamesh-sub004/internal/eventbus"
	"github.com/ioustamora/datamesh-sub004/internal/health"
	"github.com/ioustamora/datamesh-sub004/internal/keyring"
	"github.com/ioustamora/datamesh-sub004/internal/metadata"
	"github.com/ioustamora/datamesh-sub004/internal/model"
	"github.com/ioustamora/datamesh-sub004/internal/network"
	"github.com/ioustamora/datamesh-sub004/internal/shardrouter"
)

// reputationDecayInterval is how often NetworkActor pulls every tracked
// peer's reputation back toward neutral; not one of ConfigModel's knobs,
// since spec.md does not name it as an operator-tunable parameter.
const reputationDecayInterval = time.Minute

func main() {
	var dataDir string
	var listenAddr string
	var identityPass string
	flag.StringVar(&dataDir, "data-dir", defaultDataDir(), "node data directory")
	flag.StringVar(&listenAddr, "listen", "/ip4/0.0.0.0/tcp/0", "libp2p listen multiaddr")
	flag.StringVar(&identityPass, "identity-pass", "", "passphrase sealing the node identity file (or DATAMESH_IDENTITY_PASS)")
	flag.Parse()

	if identityPass == "" {
		identityPass = os.Getenv("DATAMESH_IDENTITY_PASS")
	}
	if identityPass == "" {
		log.Fatal("identity passphrase missing: supply --identity-pass or set DATAMESH_IDENTITY_PASS")
	}

	log_, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer log_.Sync()

	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		log_.Fatal("create data dir", zap.Error(err))
	}

	cfg, err := config.Load(dataDir)
	if err != nil {
		log_.Fatal("load config", zap.Error(err))
	}

	keysDir := filepath.Join(dataDir, "keys")
	if err := os.MkdirAll(keysDir, 0o700); err != nil {
		log_.Fatal("create keys dir", zap.Error(err))
	}
	identity, err := keyring.LoadOrCreate(filepath.Join(keysDir, "identity"), []byte(identityPass))
	if err != nil {
		log_.Fatal("load identity", zap.Error(err))
	}

	meta, err := metadata.Open(filepath.Join(dataDir, "metadata.db"), 0)
	if err != nil {
		log_.Fatal("open metadata store", zap.Error(err))
	}
	defer meta.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := eventbus.New(0)
	defer bus.Close()

	healthMon := health.NewMonitor(health.Params{
		BlacklistThreshold: cfg.BlacklistThreshold(),
		CooldownPeriod:     cfg.CooldownPeriod(),
		DegradeThreshold:   4,
		DecayRatePerTick:   0.05,
	}, bus, log_)

	hostPriv, _, err := libp2pcrypto.GenerateEd25519Key(nil)
	if err != nil {
		log_.Fatal("generate host key", zap.Error(err))
	}
	h, err := libp2p.New(
		libp2p.Identity(hostPriv),
		libp2p.ListenAddrStrings(listenAddr),
	)
	if err != nil {
		log_.Fatal("start libp2p host", zap.Error(err))
	}
	defer h.Close()

	transport, err := dht.NewLibp2pTransport(ctx, h, cfg.BootstrapAddrs(), cfg.KBucket(), log_)
	if err != nil {
		log_.Fatal("start dht transport", zap.Error(err))
	}

	fabric := dht.NewFabric(transport, cfg.MaxRecordBytes(), log_, bus)

	dialer := &hostDialer{host: h}
	actor := network.New(fabric, dialer, healthMon, meta, bus, log_, network.Timers{
		Republish:       cfg.RepublishInterval(),
		ReputationDecay: reputationDecayInterval,
		RoutingRefresh:  cfg.RecordTTL(),
	}, network.DefaultQueueDepth)
	go actor.Run(ctx)

	client := network.NewClient(actor)
	router := shardrouter.New(client, healthMon, log_, shardrouter.Params{
		ReplicationFactor: cfg.ReplicationFactor(),
		OverFetch:         cfg.OverFetch(),
		WriteQuorumBias:   cfg.WriteQuorumBias(),
		TPut:              cfg.TPut(),
		TPutTotal:         cfg.TPutTotal(),
		TGetTotal:         cfg.TGetTotal(),
		RetryBudget:       cfg.ShardRetryBudget(),
		RetryBaseDelay:    cfg.ShardRetryBaseDelay(),
	})
	eng := engine.New(identity, router, meta, bus, log_, model.DefaultShardPlan)

	log_.Info("datamesh node up",
		zap.String("peer_id", transport.SelfID()),
		zap.String("owner_identity", eng.OwnerIdentity()),
		zap.String("data_dir", dataDir))

	for _, addr := range h.Addrs() {
		log_.Info("listening", zap.String("multiaddr", fmt.Sprintf("%s/p2p/%s", addr, h.ID())))
	}

	if err := fabric.Bootstrap(ctx); err != nil {
		log_.Warn("initial bootstrap incomplete", zap.Error(err))
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log_.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.TCancel())
	defer shutdownCancel()
	if err := client.Shutdown(shutdownCtx); err != nil {
		log_.Warn("actor shutdown", zap.Error(err))
	}
	<-actor.Stopped()
}

// hostDialer adapts a libp2p host.Host to network.PeerDialer.
type hostDialer struct {
	host host.Host
}

func (d *hostDialer) Connect(ctx context.Context, multiaddr string) error {
	info, err := peerAddrInfo(multiaddr)
	if err != nil {
		return err
	}
	return d.host.Connect(ctx, *info)
}

func (d *hostDialer) Disconnect(ctx context.Context, peerID string) error {
	pid, err := peer.Decode(peerID)
	if err != nil {
		return err
	}
	return d.host.Network().ClosePeer(pid)
}

func peerAddrInfo(multiaddrStr string) (*peer.AddrInfo, error) {
	maddr, err := multiaddr.NewMultiaddr(multiaddrStr)
	if err != nil {
		return nil, err
	}
	return peer.AddrInfoFromP2pAddr(maddr)
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".datamesh"
	}
	return filepath.Join(home, ".datamesh")
}
