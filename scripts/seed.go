package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"micronet/internal/graph"
	"micronet/internal/taxonomy"
	"micronet/pkg/config"
	"micronet/pkg/logger"
)

// Seeds two small demo networks with overlapping associations, enough
// to exercise agglomeration and every set operation by hand.
func main() {
	force := flag.Bool("force", false, "Recreate demo networks even if they exist")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Env); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Get()

	driver, err := neo4j.NewDriverWithContext(
		cfg.Neo4jURI,
		neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
	)
	if err != nil {
		log.Fatal("Failed to create Neo4j driver", zap.Error(err))
	}
	ctx := context.Background()
	defer driver.Close(ctx)

	if err := driver.VerifyConnectivity(ctx); err != nil {
		log.Fatal("Failed to verify Neo4j connectivity", zap.Error(err))
	}

	repo := graph.NewRepository(driver, cfg.Neo4jDatabase, cfg.BatchSize)
	repo.EnsureSchema(ctx)

	levelOrder := make([]string, 0, len(taxonomy.Levels))
	for _, l := range taxonomy.Levels {
		levelOrder = append(levelOrder, string(l))
	}

	lineages := map[string]graph.Lineage{
		"E. coli":       {"Species": "coli", "Genus": "Escherichia", "Family": "Enterobacteriaceae", "Kingdom": "Bacteria"},
		"E. fergusonii": {"Species": "fergusonii", "Genus": "Escherichia", "Family": "Enterobacteriaceae", "Kingdom": "Bacteria"},
		"S. enterica":   {"Species": "enterica", "Genus": "Salmonella", "Family": "Enterobacteriaceae", "Kingdom": "Bacteria"},
		"B. fragilis":   {"Species": "fragilis", "Genus": "Bacteroides", "Family": "Bacteroidaceae", "Kingdom": "Bacteria"},
		"B. ovatus":     {"Species": "ovatus", "Genus": "Bacteroides", "Family": "Bacteroidaceae", "Kingdom": "Bacteria"},
	}

	networks := map[string][]graph.ImportAssociation{
		"gut_a": {
			{Taxon1: "E. coli", Taxon2: "B. fragilis", Sign: 1, Weight: 0.82},
			{Taxon1: "E. fergusonii", Taxon2: "B. ovatus", Sign: 1, Weight: 0.64},
			{Taxon1: "S. enterica", Taxon2: "E. coli", Sign: -1, Weight: 0.47},
		},
		"gut_b": {
			{Taxon1: "E. coli", Taxon2: "B. fragilis", Sign: -1, Weight: 0.39},
			{Taxon1: "S. enterica", Taxon2: "B. ovatus", Sign: 1, Weight: 0.71},
		},
	}

	for name, assocs := range networks {
		exists, err := repo.NetworkExists(ctx, name)
		if err != nil {
			log.Fatal("Failed to check network", zap.String("network", name), zap.Error(err))
		}
		if exists {
			if !*force {
				log.Info("Network already seeded, skipping (use -force to recreate)",
					zap.String("network", name))
				continue
			}
			if err := repo.DeleteNetwork(ctx, name); err != nil {
				log.Fatal("Failed to delete network", zap.String("network", name), zap.Error(err))
			}
		}
		if err := repo.CreateNetwork(ctx, name, assocs, lineages, levelOrder); err != nil {
			log.Fatal("Failed to seed network", zap.String("network", name), zap.Error(err))
		}
	}

	log.Info("Demo networks seeded", zap.Int("networks", len(networks)))
}
