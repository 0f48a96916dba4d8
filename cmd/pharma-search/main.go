// Command pharma-search runs one pharmacophore query against a set of
// shard directories and prints the ranked hit list. It is a thin wrapper
// around internal/pipeline — the query file format and output layout here
// are not load-bearing; flag parsing and result printing are the only
// concerns this file owns.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dkoes-labs/pharmsearch/internal/concurrency"
	"github.com/dkoes-labs/pharmsearch/internal/config"
	"github.com/dkoes-labs/pharmsearch/internal/index"
	"github.com/dkoes-labs/pharmsearch/internal/infrastructure/monitoring/logging"
	"github.com/dkoes-labs/pharmsearch/internal/pipeline"
	"github.com/dkoes-labs/pharmsearch/internal/rank"
	"github.com/dkoes-labs/pharmsearch/pkg/types/pharma"
)

// Build-time variables injected via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configPath string
		queryPath  string
		shardDirs  []string
	)

	cmd := &cobra.Command{
		Use:     "pharma-search",
		Short:   "run a pharmacophore query against one or more shards",
		Version: fmt.Sprintf("%s (%s)", version, commit),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, configPath, queryPath, shardDirs)
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (defaults applied if omitted)")
	cmd.Flags().StringVarP(&queryPath, "query", "q", "", "path to a query JSON file")
	cmd.Flags().StringSliceVarP(&shardDirs, "shard", "s", nil, "shard index directory; repeatable")
	_ = cmd.MarkFlagRequired("query")
	_ = cmd.MarkFlagRequired("shard")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, configPath, queryPath string, shardDirs []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger, err := logging.NewLogger(toLoggingConfig(cfg.Log))
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}

	points, qp, err := loadQueryFile(queryPath)
	if err != nil {
		return fmt.Errorf("query file: %w", err)
	}
	params := resolveParameters(qp, cfg.Query)

	ranker := rank.NewRanker(params, nil, nil)
	stop := &concurrency.StopFlag{}

	numDBs := uint32(len(shardDirs))
	for i, dir := range shardDirs {
		ix := index.Open(dir)
		shard := pipeline.ShardConfig{
			IndexDir:   dir,
			DBID:       uint32(i + 1),
			NumDBs:     numDBs,
			Workers:    cfg.Shard.Workers,
			Q1Capacity: cfg.Shard.Q1Capacity,
			Q2Capacity: cfg.Shard.Q2Capacity,
			Delta:      cfg.Shard.TripletDelta,
		}
		searchErr := pipeline.Search(cmd.Context(), shard, points, params, ix, ranker, stop)
		closeErr := ix.Close()
		if searchErr != nil {
			return fmt.Errorf("shard %s: %w", dir, searchErr)
		}
		if closeErr != nil {
			logger.Warn("shard index close failed", logging.String("dir", dir), logging.Err(closeErr))
		}
	}

	return printResults(cmd, ranker.Results())
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := &config.Config{}
		config.ApplyDefaults(cfg)
		return cfg, cfg.Validate()
	}
	return config.Load(path)
}

func toLoggingConfig(cfg config.LogConfig) logging.LogConfig {
	output := cfg.Output
	if output == "" {
		output = "stdout"
	}
	return logging.LogConfig{
		Level:            cfg.Level,
		Format:           cfg.Format,
		OutputPaths:      []string{output},
		ErrorOutputPaths: []string{"stderr"},
	}
}

// queryFile is the on-disk JSON shape pharma-search reads. It is a plain
// projection of pharma.Query/pharma.QueryParameters — the file format
// itself carries no semantics of its own.
type queryFile struct {
	Points     []pharma.PharmaPoint  `json:"points"`
	Parameters queryFileParameters   `json:"parameters"`
}

type queryFileParameters struct {
	MaxRMSD             float64 `json:"max_rmsd"`
	MinWeight           float64 `json:"min_weight"`
	MaxWeight           float64 `json:"max_weight"`
	MinRotatableBonds   uint32  `json:"min_rotatable_bonds"`
	MaxRotatableBonds   uint32  `json:"max_rotatable_bonds"`
	MaxHits             uint32  `json:"max_hits"`
}

func loadQueryFile(path string) ([]pharma.QueryPoint, pharma.QueryParameters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pharma.QueryParameters{}, err
	}
	var qf queryFile
	if err := json.Unmarshal(data, &qf); err != nil {
		return nil, pharma.QueryParameters{}, err
	}

	points := make([]pharma.QueryPoint, len(qf.Points))
	for i, p := range qf.Points {
		points[i] = pharma.QueryPoint{PharmaPoint: p, Index: i}
	}

	params := pharma.QueryParameters{
		MaxRMSD:   qf.Parameters.MaxRMSD,
		MinWeight: qf.Parameters.MinWeight,
		MaxWeight: qf.Parameters.MaxWeight,
		MinRot:    qf.Parameters.MinRotatableBonds,
		MaxRot:    qf.Parameters.MaxRotatableBonds,
		MaxHits:   qf.Parameters.MaxHits,
		Sort:      pharma.SortRMSD,
	}
	return points, params, nil
}

// resolveParameters fills any zero-valued numeric query parameter from the
// config's defaults, so a query file only needs to override what it cares
// about. Sort and WeightingMode are kept as given; the config's sort and
// weighting_mode are not consulted.
func resolveParameters(p pharma.QueryParameters, defaults config.QueryConfig) pharma.QueryParameters {
	if p.MaxRMSD == 0 {
		p.MaxRMSD = defaults.MaxRMSD
	}
	if p.MinWeight == 0 {
		p.MinWeight = defaults.MinWeight
	}
	if p.MaxWeight == 0 {
		p.MaxWeight = defaults.MaxWeight
	}
	if p.MinRot == 0 {
		p.MinRot = defaults.MinRotatableBonds
	}
	if p.MaxRot == 0 {
		p.MaxRot = defaults.MaxRotatableBonds
	}
	if p.ReduceConfs == 0 {
		p.ReduceConfs = defaults.ReduceConfs
	}
	if p.OrientationsPerConf == 0 {
		p.OrientationsPerConf = defaults.OrientationsPerConf
	}
	if p.MaxHits == 0 {
		p.MaxHits = defaults.MaxHits
	}
	return p
}

func printResults(cmd *cobra.Command, hits []pharma.CorrespondenceResult) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(hits)
}
