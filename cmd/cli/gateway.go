package cli

// cmd/cli/gateway.go — CLI wrapper for the core retrieval/cache/tx-path
// subsystem (formerly storage.go's IPFS/Arweave gateway wrapper).
// ----------------------------------------------------------------------------
// Layout
//   1. Globals & middleware (env‑driven wiring of logger, stores, cache).
//   2. Controllers – one per CLI sub‑command, thin and validated.
//   3. CLI definitions – commands + flags.
//   4. Consolidated route export (BOTTOM), ready for import in root CLI.
// ----------------------------------------------------------------------------

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	logrus "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"weavegate/core"
)

// ---------------------------------------------------------------------------
// Globals & middleware
// ---------------------------------------------------------------------------

var (
	gatewayCache   *core.Cache
	gatewayAttrs   *core.AttributesStoreImpl
	gatewayRes     *core.Resolver
	gatewayLimiter *core.RateLimiter
	gatewayLG      = logrus.StandardLogger()
	gatewayFlags   struct {
		contentDir   string
		gatewayURLs  string
		metadataCap  int
		maxHops      int
		timeoutSec   int
		nestingDepth int
	}
)

func initGatewayMiddleware(cmd *cobra.Command, args []string) {
	_ = godotenv.Load()

	resolveStringFlag(cmd, "contentDir", &gatewayFlags.contentDir, os.Getenv("WEAVEGATE_CONTENT_DIR"))
	resolveStringFlag(cmd, "gateways", &gatewayFlags.gatewayURLs, os.Getenv("WEAVEGATE_TRUSTED_GATEWAYS"))
	resolveIntFlag(cmd, "metadataCap", &gatewayFlags.metadataCap, envInt("WEAVEGATE_METADATA_CAP", 50_000))
	resolveIntFlag(cmd, "maxHops", &gatewayFlags.maxHops, envInt("WEAVEGATE_MAX_HOPS", 3))
	resolveIntFlag(cmd, "timeout", &gatewayFlags.timeoutSec, envInt("WEAVEGATE_GATEWAY_TIMEOUT", 30))
	resolveIntFlag(cmd, "nestingDepth", &gatewayFlags.nestingDepth, envInt("WEAVEGATE_MAX_NESTING_DEPTH", core.DefaultMaxBundleNestingDepth))

	if gatewayFlags.contentDir == "" {
		log.Fatalf("content store directory must be provided via --contentDir or WEAVEGATE_CONTENT_DIR")
	}
	if gatewayFlags.gatewayURLs == "" {
		log.Fatalf("at least one trusted gateway must be provided via --gateways or WEAVEGATE_TRUSTED_GATEWAYS")
	}

	content, err := core.NewContentStore(gatewayLG, gatewayFlags.contentDir)
	gatewayBail(err)
	metadata, err := core.NewMetadataStore(gatewayFlags.metadataCap)
	gatewayBail(err)
	gatewayAttrs = core.NewAttributesStore()

	endpoints, baseURLs := parseGatewayPool(gatewayFlags.gatewayURLs)
	httpClient := &http.Client{Timeout: time.Duration(gatewayFlags.timeoutSec) * time.Second}
	fetcher := core.NewHTTPFetcher(httpClient, baseURLs)
	trusted := core.NewTrustedGatewaySource(gatewayLG, fetcher, endpoints)
	composite := core.NewCompositeSource(gatewayLG, []core.DataSource{trusted}, gatewayFlags.maxHops)

	gatewayCache = core.NewCache(gatewayLG, gatewayAttrs, content, metadata, composite, nil, core.CacheConfig{})
	gatewayRes = core.NewResolver(gatewayAttrs, nil, core.ResolverConfig{MaxNestingDepth: gatewayFlags.nestingDepth})

	limiter, err := core.NewRateLimiter(core.RateLimiterConfig{})
	gatewayBail(err)
	gatewayLimiter = limiter
}

// parseGatewayPool turns "name=url,name=url" into weighted endpoints (equal
// weight 1 each) plus the name->URL map HTTPFetcher needs.
func parseGatewayPool(spec string) ([]core.GatewayEndpoint, map[string]string) {
	entries := strings.Split(spec, ",")
	endpoints := make([]core.GatewayEndpoint, 0, len(entries))
	baseURLs := make(map[string]string, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		name, url, found := strings.Cut(e, "=")
		if !found {
			name, url = e, e
		}
		endpoints = append(endpoints, core.GatewayEndpoint{Name: name, Weight: 1})
		baseURLs[name] = url
	}
	return endpoints, baseURLs
}

// ---------------------------------------------------------------------------
// Controller helpers
// ---------------------------------------------------------------------------

func gatewayBail(err error) {
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
}

func parseRegionFlag(s string) (*core.Region, error) {
	if s == "" {
		return nil, nil
	}
	offsetStr, sizeStr, found := strings.Cut(s, ":")
	if !found {
		return nil, errors.New("--region must be offset:size")
	}
	offset, err := strconv.ParseInt(offsetStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("--region offset: %w", err)
	}
	size, err := strconv.ParseInt(sizeStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("--region size: %w", err)
	}
	return &core.Region{Offset: offset, Size: size}, nil
}

// ---------------------------------------------------------------------------
// Controllers – data retrieval
// ---------------------------------------------------------------------------

func gatewayGetHandler(cmd *cobra.Command, args []string) {
	id, _ := cmd.Flags().GetString("id")
	region, _ := cmd.Flags().GetString("region")
	outPath, _ := cmd.Flags().GetString("out")

	if id == "" {
		_ = cmd.Usage()
		gatewayBail(errors.New("--id is required"))
	}
	reg, err := parseRegionFlag(region)
	gatewayBail(err)

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(gatewayFlags.timeoutSec)*time.Second)
	defer cancel()

	consume := gatewayLimiter.Consume(ctx, "GET", "cli", "/"+id, []string{"127.0.0.1"}, 0, 1)
	if !consume.Allowed {
		gatewayBail(fmt.Errorf("rate limited on %s bucket", consume.DeniedBucket))
	}

	data, err := gatewayCache.GetData(ctx, core.UpstreamGetDataRequest{ID: id, Region: reg})
	gatewayBail(err)
	defer data.Stream.Close()

	if outPath == "" || outPath == "-" {
		_, err = io.Copy(os.Stdout, data.Stream)
		gatewayBail(err)
		return
	}
	f, err := os.Create(outPath)
	gatewayBail(err)
	defer f.Close()
	n, err := io.Copy(f, data.Stream)
	gatewayBail(err)
	fmt.Printf("✅ wrote %d bytes to %s (hash=%s cached=%v trusted=%v)\n", n, outPath, data.Hash, data.Cached, data.Trusted)
}

func gatewayResolveHandler(cmd *cobra.Command, args []string) {
	id, _ := cmd.Flags().GetString("id")
	if id == "" {
		_ = cmd.Usage()
		gatewayBail(errors.New("--id is required"))
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(gatewayFlags.timeoutSec)*time.Second)
	defer cancel()

	rp, err := gatewayRes.Resolve(ctx, id)
	gatewayBail(err)
	if rp == nil {
		fmt.Printf("%s resolves to itself (L1 transaction or unresolvable)\n", id)
		return
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(rp)
}

// ---------------------------------------------------------------------------
// Controllers – Merkle tx-path verification
// ---------------------------------------------------------------------------

func gatewayVerifyPathHandler(cmd *cobra.Command, args []string) {
	pathB64, _ := cmd.Flags().GetString("tx-path")
	rootB64, _ := cmd.Flags().GetString("tx-root")
	offsetStr, _ := cmd.Flags().GetString("offset")
	weaveSizeStr, _ := cmd.Flags().GetString("weave-size")
	prevWeaveSizeStr, _ := cmd.Flags().GetString("prev-weave-size")

	if pathB64 == "" || rootB64 == "" || offsetStr == "" || weaveSizeStr == "" {
		_ = cmd.Usage()
		gatewayBail(errors.New("--tx-path, --tx-root, --offset and --weave-size are required"))
	}

	txPath, err := base64.RawURLEncoding.DecodeString(pathB64)
	gatewayBail(err)
	rootBytes, err := base64.RawURLEncoding.DecodeString(rootB64)
	gatewayBail(err)
	if len(rootBytes) != 32 {
		gatewayBail(errors.New("--tx-root must decode to 32 bytes"))
	}
	var txRoot [32]byte
	copy(txRoot[:], rootBytes)

	offset, err := parseWeaveFlag(offsetStr)
	gatewayBail(err)
	weaveSize, err := parseWeaveFlag(weaveSizeStr)
	gatewayBail(err)
	prevWeaveSize := core.WeaveFromUint64(0)
	if prevWeaveSizeStr != "" {
		prevWeaveSize, err = parseWeaveFlag(prevWeaveSizeStr)
		gatewayBail(err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(gatewayFlags.timeoutSec)*time.Second)
	defer cancel()

	result, err := core.ValidateTxPath(ctx, txPath, txRoot, offset, weaveSize, prevWeaveSize)
	gatewayBail(err)

	fmt.Printf("✅ valid: data_root=%s tx_start=%s tx_end=%s tx_size=%s\n",
		core.EncodeHash(result.DataRoot[:]), result.TxStartOffset, result.TxEndOffset, result.TxSize)
}

func parseWeaveFlag(s string) (core.Weave, error) {
	return core.WeaveFromDecimal(s)
}

// ---------------------------------------------------------------------------
// CLI definitions
// ---------------------------------------------------------------------------

var gatewayCmd = &cobra.Command{
	Use:              "gateway",
	Short:            "Arweave data-gateway retrieval, resolution and tx-path verification",
	PersistentPreRun: initGatewayMiddleware,
}

var gatewayGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Retrieve data by id (cache → trusted gateway)",
	Run:   gatewayGetHandler,
}

var gatewayResolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve a data-item id to its root transaction and byte range",
	Run:   gatewayResolveHandler,
}

var gatewayVerifyPathCmd = &cobra.Command{
	Use:   "verify-path",
	Short: "Validate a tx_path Merkle proof against a block's tx_root",
	Run:   gatewayVerifyPathHandler,
}

func init() {
	gatewayCmd.PersistentFlags().String("contentDir", "", "Content store directory (WEAVEGATE_CONTENT_DIR)")
	gatewayCmd.PersistentFlags().String("gateways", "", "Comma-separated name=url trusted gateway pool (WEAVEGATE_TRUSTED_GATEWAYS)")
	gatewayCmd.PersistentFlags().Int("metadataCap", 50_000, "Max metadata records (WEAVEGATE_METADATA_CAP)")
	gatewayCmd.PersistentFlags().Int("maxHops", 3, "Max proxy hop count (WEAVEGATE_MAX_HOPS)")
	gatewayCmd.PersistentFlags().Int("timeout", 30, "Gateway timeout seconds (WEAVEGATE_GATEWAY_TIMEOUT)")
	gatewayCmd.PersistentFlags().Int("nestingDepth", core.DefaultMaxBundleNestingDepth, "Max bundle nesting depth (WEAVEGATE_MAX_NESTING_DEPTH)")

	gatewayGetCmd.Flags().String("id", "", "Data-item or transaction id [required]")
	gatewayGetCmd.Flags().String("region", "", "Byte range offset:size")
	gatewayGetCmd.Flags().String("out", "-", "Output file or '-' for STDOUT")

	gatewayResolveCmd.Flags().String("id", "", "Data-item id [required]")

	gatewayVerifyPathCmd.Flags().String("tx-path", "", "tx_path bytes, unpadded URL-safe base64 [required]")
	gatewayVerifyPathCmd.Flags().String("tx-root", "", "Block's tx_root, unpadded URL-safe base64 [required]")
	gatewayVerifyPathCmd.Flags().String("offset", "", "Target absolute weave offset, decimal [required]")
	gatewayVerifyPathCmd.Flags().String("weave-size", "", "Current block's cumulative weave size, decimal [required]")
	gatewayVerifyPathCmd.Flags().String("prev-weave-size", "0", "Previous block's cumulative weave size, decimal")

	gatewayCmd.AddCommand(gatewayGetCmd)
	gatewayCmd.AddCommand(gatewayResolveCmd)
	gatewayCmd.AddCommand(gatewayVerifyPathCmd)
}

// ---------------------------------------------------------------------------
// Helpers – env/flag handling
// ---------------------------------------------------------------------------

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func resolveStringFlag(cmd *cobra.Command, name string, target *string, fallback string) {
	if v, _ := cmd.Flags().GetString(name); v != "" {
		*target = v
	} else if fallback != "" {
		*target = fallback
	}
}

func resolveIntFlag(cmd *cobra.Command, name string, target *int, fallback int) {
	if v, _ := cmd.Flags().GetInt(name); v != 0 {
		*target = v
	} else {
		*target = fallback
	}
}

// ---------------------------------------------------------------------------
// Consolidated route export (BOTTOM) — importable by root CLI.
// ---------------------------------------------------------------------------

// GatewayRoute represents the entry‑point command (root: "gateway").
var GatewayRoute = gatewayCmd

// ---------------------------------------------------------------------------
// END cmd/cli/gateway.go
// ---------------------------------------------------------------------------
