package cmd

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"log"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/aragora-project/aragora-go/internal/auth"
	"github.com/aragora-project/aragora-go/internal/breaker"
	"github.com/aragora-project/aragora-go/internal/rating"
	"github.com/aragora-project/aragora-go/internal/repo"
	"github.com/aragora-project/aragora-go/internal/scoring"
	"github.com/aragora-project/aragora-go/internal/server"
	"github.com/aragora-project/aragora-go/internal/similarity"
	"github.com/aragora-project/aragora-go/internal/streamfabric"
)

var (
	servePort       int
	agentsConfig    string
	serveDataDir    string
	allowedOrigins  string
	embeddingModel  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the aragora debate server",
	Long: `Start the aragora HTTP/WebSocket server: loads the configured
agent roster, opens the archive/ratings/memory repositories, and begins
accepting debate requests and event-stream connections.`,
	PreRun: func(cmd *cobra.Command, args []string) {
		if err := os.MkdirAll(serveDataDir, 0755); err != nil {
			fmt.Printf("Error creating data directory: %v\n", err)
			os.Exit(1)
		}
		if _, err := os.Stat(".env"); os.IsNotExist(err) {
			fmt.Println("Warning: .env file not found. Run `aragora init` to scaffold one.")
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := log.New(os.Stdout, "[aragora] ", log.LstdFlags|log.Lshortfile)

		if err := godotenv.Load(); err != nil {
			logger.Printf("Warning: error loading .env file: %v", err)
		}

		configs, err := server.LoadAgentConfigs(agentsConfig)
		if err != nil {
			return fmt.Errorf("loading agent roster: %w", err)
		}
		if len(configs) == 0 {
			return fmt.Errorf("agent roster %s is empty", agentsConfig)
		}

		sharedBreaker := breaker.New(breaker.DefaultConfig())
		agents, err := server.BuildAgents(configs, sharedBreaker)
		if err != nil {
			return fmt.Errorf("building agents: %w", err)
		}
		logger.Printf("loaded %d agents from %s", len(agents), agentsConfig)

		archive, err := repo.OpenArchive(filepath.Join(serveDataDir, "debates.db"))
		if err != nil {
			return fmt.Errorf("opening debate archive: %w", err)
		}
		defer archive.Close()

		ratingDB, err := rating.Open(filepath.Join(serveDataDir, "ratings.db"))
		if err != nil {
			return fmt.Errorf("opening ratings store: %w", err)
		}
		defer ratingDB.Close()
		ledger := rating.NewLedger(ratingDB, 0)

		var embedder similarity.Embedder
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			embedder = similarity.NewOpenAIEmbedder(key, openai.EmbeddingModel(embeddingModel))
		}
		backend := similarity.Auto(embedder)

		memory, err := repo.OpenMemory(filepath.Join(serveDataDir, "memory.db"), backend)
		if err != nil {
			return fmt.Errorf("opening memory repository: %w", err)
		}
		defer memory.Close()

		manager := server.NewDebateManager(agents, archive, ledger, memory, backend)

		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			if scorer, err := scoring.NewScorer(key); err != nil {
				logger.Printf("Warning: severity calibrator disabled: %v", err)
			} else {
				manager.SetCalibrator(scorer)
			}
		}

		jwtSecret := os.Getenv("JWT_SECRET")
		if jwtSecret == "" {
			jwtSecret = "dev-only-insecure-secret"
			logger.Println("Warning: JWT_SECRET not set, using an insecure development default")
		}
		authn := auth.New(auth.Config{
			JWTSecret:     jwtSecret,
			TokenDuration: 24 * time.Hour,
			APIKeys:       loadAPIKeys(),
		})

		cfg := server.DefaultConfig()
		cfg.Port = fmt.Sprintf("%d", servePort)
		cfg.DataDir = serveDataDir
		if allowedOrigins != "" {
			cfg.AllowedOrigins = strings.Split(allowedOrigins, ",")
		}

		srv := server.NewServer(manager, ledger, authn, cfg)

		if quicAddr := os.Getenv("ARAGORA_QUIC_ADDR"); quicAddr != "" {
			tlsCfg, err := selfSignedTLSConfig()
			if err != nil {
				return fmt.Errorf("generating QUIC TLS config: %w", err)
			}
			ingress := streamfabric.NewQUICAudienceIngress(quicAddr, tlsCfg, manager.Inbox())
			go func() {
				logger.Printf("starting QUIC audience ingress on %s", quicAddr)
				if err := ingress.Serve(context.Background()); err != nil {
					logger.Printf("QUIC audience ingress stopped: %v", err)
				}
			}()
		}

		addr := fmt.Sprintf(":%d", servePort)
		logger.Printf("starting server on %s", addr)
		return srv.Run(addr)
	},
}

// selfSignedTLSConfig builds an ephemeral TLS certificate for the QUIC
// audience ingress, which only needs to authenticate the server to
// trusted, co-located collectors rather than present a CA-signed cert.
func selfSignedTLSConfig() (*tls.Config, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{Organization: []string{"aragora"}},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}
	cert := tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
	return &tls.Config{Certificates: []tls.Certificate{cert}, NextProtos: []string{"aragora-audience"}}, nil
}

// loadAPIKeys parses ARAGORA_API_KEYS, a comma-separated list of
// key:principalID:role triples, into the static service-key table
// auth.Config.APIKeys expects.
func loadAPIKeys() map[string]auth.Principal {
	raw := os.Getenv("ARAGORA_API_KEYS")
	keys := make(map[string]auth.Principal)
	if raw == "" {
		return keys
	}
	for _, entry := range strings.Split(raw, ",") {
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 {
			continue
		}
		keys[parts[0]] = auth.Principal{ID: parts[1], Role: parts[2]}
	}
	return keys
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "Port to run the server on")
	serveCmd.Flags().StringVarP(&agentsConfig, "agents", "a", "agents.json", "Path to the agent roster JSON file")
	serveCmd.Flags().StringVarP(&serveDataDir, "data-dir", "d", "data", "Directory holding the persisted repositories")
	serveCmd.Flags().StringVar(&allowedOrigins, "allowed-origins", "", "Comma-separated list of allowed CORS origins (empty allows all)")
	serveCmd.Flags().StringVar(&embeddingModel, "embedding-model", "", "OpenAI embedding model override")
}
