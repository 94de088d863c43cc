package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"micronet/internal/agglomerate"
	"micronet/internal/graph"
	"micronet/internal/locks"
	"micronet/internal/setalgebra"
	"micronet/internal/taxonomy"
	"micronet/pkg/config"
	"micronet/pkg/logger"
)

type app struct {
	cfg          *config.Config
	driver       neo4j.DriverWithContext
	repo         *graph.Repository
	agglomerator *agglomerate.Engine
	algebra      *setalgebra.Engine
}

func (a *app) init(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Env); err != nil {
		return err
	}

	driver, err := neo4j.NewDriverWithContext(
		cfg.Neo4jURI,
		neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
	)
	if err != nil {
		return fmt.Errorf("failed to create Neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("failed to verify Neo4j connectivity: %w", err)
	}

	repo := graph.NewRepository(driver, cfg.Neo4jDatabase, cfg.BatchSize)
	repo.EnsureSchema(ctx)

	var locker locks.Locker = locks.NewLocalLocker()
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		locker = locks.NewRedisLocker(client, time.Duration(cfg.LockTTLSeconds)*time.Second)
	}

	a.cfg = cfg
	a.driver = driver
	a.repo = repo
	a.agglomerator = agglomerate.NewEngine(repo, locker, cfg.MaxMergeIterations)
	a.algebra = setalgebra.NewEngine(repo)
	return nil
}

func (a *app) close(ctx context.Context) {
	if a.driver != nil {
		_ = a.driver.Close(ctx)
	}
	logger.Sync()
}

func main() {
	a := &app{}
	ctx := context.Background()

	rootCmd := &cobra.Command{
		Use:   "micronet",
		Short: "Microbial association network store and graph transformations",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close(cmd.Context())
		},
		SilenceUsage: true,
	}

	var level string
	var useWeight bool
	agglomerateCmd := &cobra.Command{
		Use:   "agglomerate <network> [network...]",
		Short: "Collapse matching associations into coarser taxa at a taxonomy level",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := taxonomy.Parse(level)
			if err != nil {
				return err
			}
			results, err := a.agglomerator.Agglomerate(cmd.Context(), args, lvl, useWeight)
			if err != nil {
				return err
			}
			for _, r := range results {
				switch {
				case r.Error != "":
					fmt.Printf("%s: FAILED: %s\n", r.Network, r.Error)
				case r.Skipped:
					fmt.Printf("%s: skipped (no matching pairs)\n", r.Network)
				default:
					fmt.Printf("%s: %s -> %s (%d associations)\n", r.Network, r.Source, r.Derived, r.Associations)
				}
			}
			return nil
		},
	}
	agglomerateCmd.Flags().StringVarP(&level, "level", "l", "Genus", "taxonomy level (Species..Kingdom)")
	agglomerateCmd.Flags().BoolVarP(&useWeight, "use-weight", "w", false, "merge only same-sign association pairs")

	unionCmd := &cobra.Command{
		Use:   "union <network> [network...]",
		Short: "Materialize the union of the given networks as a Set",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := a.algebra.Union(cmd.Context(), args)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %d associations\n", info.Name, info.Associations)
			return nil
		},
	}

	var fraction float64
	var intersectWeight bool
	intersectCmd := &cobra.Command{
		Use:   "intersect <network> <network> [network...]",
		Short: "Materialize the fractional intersection of the given networks as a Set",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := a.algebra.Intersection(cmd.Context(), args, fraction, intersectWeight)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %d associations\n", info.Name, info.Associations)
			return nil
		},
	}
	intersectCmd.Flags().Float64VarP(&fraction, "fraction", "f", 1.0, "fraction of networks an association must cover")
	intersectCmd.Flags().BoolVarP(&intersectWeight, "use-weight", "w", false, "count only directly shared records")

	var diffWeight bool
	diffCmd := &cobra.Command{
		Use:   "diff <network> <network> [network...]",
		Short: "Materialize the associations unique to one network as a Set",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := a.algebra.Difference(cmd.Context(), args, diffWeight)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %d associations\n", info.Name, info.Associations)
			return nil
		},
	}
	diffCmd.Flags().BoolVarP(&diffWeight, "use-weight", "w", false, "sign-aware uniqueness")

	networksCmd := &cobra.Command{
		Use:   "networks",
		Short: "List stored networks with association counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			networks, err := a.repo.ListNetworks(cmd.Context())
			if err != nil {
				return err
			}
			for _, n := range networks {
				if n.DerivedFrom != "" {
					fmt.Printf("%s (%d associations, derived from %s at %s)\n", n.Name, n.Associations, n.DerivedFrom, n.Level)
					continue
				}
				fmt.Printf("%s (%d associations)\n", n.Name, n.Associations)
			}
			return nil
		},
	}

	setsCmd := &cobra.Command{
		Use:   "sets",
		Short: "List stored sets with their operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			sets, err := a.repo.ListSets(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range sets {
				fmt.Printf("%s (%s over %v, %d associations)\n", s.Name, s.Operation, s.Networks, s.Associations)
			}
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <network>",
		Short: "Delete a network, its associations and orphaned synthetic taxa",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.repo.DeleteNetwork(cmd.Context(), args[0])
		},
	}

	provenanceCmd := &cobra.Command{
		Use:   "provenance <taxon>",
		Short: "Trace a taxon back to the original taxa it aggregates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			originals, err := a.repo.TraceProvenance(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, name := range originals {
				fmt.Println(name)
			}
			return nil
		},
	}

	rootCmd.AddCommand(agglomerateCmd, unionCmd, intersectCmd, diffCmd, networksCmd, setsCmd, deleteCmd, provenanceCmd)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Get().Error("Command failed", zap.Error(err))
		os.Exit(1)
	}
}
