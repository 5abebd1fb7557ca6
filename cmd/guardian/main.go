// Command guardian runs a single guardian node: it loads configuration and
// keystore, opens its database, wires the betting engine, and serves both
// the P2P gossip network and a JSON-RPC introspection endpoint.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/tolelom/guardian/config"
	"github.com/tolelom/guardian/crypto"
	"github.com/tolelom/guardian/crypto/certgen"
	"github.com/tolelom/guardian/events"
	"github.com/tolelom/guardian/guardian"
	"github.com/tolelom/guardian/rpc"
	"github.com/tolelom/guardian/storage"
	"github.com/tolelom/guardian/wallet"
)

func main() {
	configPath := flag.String("config", "config.json", "path to node configuration")
	keystorePath := flag.String("keystore", "keystore.json", "path to encrypted keystore")
	password := flag.String("password", os.Getenv("GUARDIAN_KEYSTORE_PASSWORD"), "keystore password (or set GUARDIAN_KEYSTORE_PASSWORD)")
	join := flag.Bool("join", false, "submit a Casper join transaction on startup")
	genCerts := flag.String("gencerts", "", "generate CA + node TLS certs into the given directory and exit (requires node ID from config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[guardian] load config: %v", err)
	}

	if *genCerts != "" {
		if err := certgen.GenerateAll(*genCerts, cfg.NodeID, nil); err != nil {
			log.Fatalf("[guardian] gencerts: %v", err)
		}
		log.Printf("[guardian] certificates generated in %s for node %q", *genCerts, cfg.NodeID)
		return
	}

	priv, err := loadOrCreateKey(*keystorePath, *password)
	if err != nil {
		log.Fatalf("[guardian] load keystore: %v", err)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		log.Fatalf("[guardian] open database: %v", err)
	}
	defer db.Close()

	casper := guardian.NewStateCasperClient()
	st := guardian.NewDeterministicStateTransition()
	emitter := events.NewEmitter()

	node, err := guardian.NewNode(cfg, db, priv, casper, st, emitter)
	if err != nil {
		log.Fatalf("[guardian] assemble node: %v", err)
	}

	if err := node.Start(); err != nil {
		log.Fatalf("[guardian] start networking: %v", err)
	}
	defer node.Stop()

	handler := rpc.NewHandler(node.Engine.Chain, node.Engine.Registry, node.Engine.Tracker, cfg.ChainID, func(tx *guardian.Transaction) error {
		return node.Engine.Tracker.Submit(tx)
	})
	rpcAddr := fmtRPCAddr(cfg.RPCPort)
	server := rpc.NewServer(rpcAddr, handler, cfg.RPCAuthToken)
	if err := server.Start(); err != nil {
		log.Fatalf("[guardian] start rpc server: %v", err)
	}
	defer server.Stop()

	if *join {
		if err := node.Join(priv.Public().Hex()); err != nil {
			log.Printf("[guardian] join: %v", err)
		}
	}

	log.Printf("[guardian] node %s listening p2p=:%d rpc=%s", cfg.NodeID, cfg.P2PPort, rpcAddr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Printf("[guardian] shutting down")
}

func loadOrCreateKey(path, password string) (crypto.PrivateKey, error) {
	if _, err := os.Stat(path); err == nil {
		return wallet.LoadKey(path, password)
	}
	w, err := wallet.Generate()
	if err != nil {
		return nil, err
	}
	if err := wallet.SaveKey(path, password, w.PrivKey()); err != nil {
		return nil, err
	}
	return w.PrivKey(), nil
}

func fmtRPCAddr(port int) string {
	return ":" + strconv.Itoa(port)
}
