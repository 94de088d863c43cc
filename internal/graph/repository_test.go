package graph

import (
	"context"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// These tests require a running Neo4j instance.
// Set NEO4J_URI, NEO4J_USER, NEO4J_PASSWORD if not using the defaults.

func TestRepository_CreateAndStats(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	defer driver.Close(ctx)

	repo := NewRepository(driver, "", 100)
	network := "test-net-" + time.Now().Format("20060102150405")
	defer cleanupNetwork(ctx, driver, network)

	assocs := []ImportAssociation{
		{Taxon1: "Escherichia coli", Taxon2: "Bacteroides fragilis", Sign: 1},
		{Taxon1: "Escherichia coli", Taxon2: "Salmonella enterica", Sign: -1},
	}
	lineages := map[string]Lineage{
		"Escherichia coli":     {"Species": "Escherichia coli", "Genus": "Escherichia", "Family": "Enterobacteriaceae"},
		"Salmonella enterica":  {"Species": "Salmonella enterica", "Genus": "Salmonella", "Family": "Enterobacteriaceae"},
		"Bacteroides fragilis": {"Species": "Bacteroides fragilis", "Genus": "Bacteroides", "Family": "Bacteroidaceae"},
	}
	levelOrder := []string{"Species", "Genus", "Family"}

	if err := repo.CreateNetwork(ctx, network, assocs, lineages, levelOrder); err != nil {
		t.Fatalf("CreateNetwork failed: %v", err)
	}

	exists, err := repo.NetworkExists(ctx, network)
	if err != nil {
		t.Fatalf("NetworkExists failed: %v", err)
	}
	if !exists {
		t.Error("Network not found after creation")
	}

	stats, err := repo.GetNetworkStats(ctx, network)
	if err != nil {
		t.Fatalf("GetNetworkStats failed: %v", err)
	}
	if stats.Associations != 2 {
		t.Errorf("Expected 2 associations, got %d", stats.Associations)
	}
	if stats.Taxa != 3 {
		t.Errorf("Expected 3 taxa, got %d", stats.Taxa)
	}
	if stats.Positive != 1 || stats.Negative != 1 {
		t.Errorf("Expected 1 positive and 1 negative, got %d/%d", stats.Positive, stats.Negative)
	}
}

func TestRepository_LoadSubgraph(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	defer driver.Close(ctx)

	repo := NewRepository(driver, "", 100)
	network := "test-sub-" + time.Now().Format("20060102150405")
	defer cleanupNetwork(ctx, driver, network)

	assocs := []ImportAssociation{
		{Taxon1: "Escherichia coli", Taxon2: "Salmonella enterica", Sign: 1},
	}
	lineages := map[string]Lineage{
		"Escherichia coli":    {"Species": "Escherichia coli", "Genus": "Escherichia", "Family": "Enterobacteriaceae"},
		"Salmonella enterica": {"Species": "Salmonella enterica", "Genus": "Salmonella", "Family": "Enterobacteriaceae"},
	}
	if err := repo.CreateNetwork(ctx, network, assocs, lineages, []string{"Species", "Genus", "Family"}); err != nil {
		t.Fatalf("CreateNetwork failed: %v", err)
	}

	records, err := repo.LoadSubgraph(ctx, network, "Family")
	if err != nil {
		t.Fatalf("LoadSubgraph failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 association, got %d", len(records))
	}

	rec := records[0]
	if !rec.HasSign || rec.Sign != 1 {
		t.Errorf("Expected sign +1, got %v/%d", rec.HasSign, rec.Sign)
	}
	for _, p := range rec.Participants {
		if !p.HasLabel {
			t.Errorf("Participant %s has no label at Family", p.Taxon)
			continue
		}
		if p.Label != "Enterobacteriaceae" {
			t.Errorf("Expected Family label Enterobacteriaceae for %s, got %s", p.Taxon, p.Label)
		}
	}
}

func TestRepository_LoadMemberships(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	defer driver.Close(ctx)

	repo := NewRepository(driver, "", 100)
	stamp := time.Now().Format("20060102150405")
	netA := "test-mem-a-" + stamp
	netB := "test-mem-b-" + stamp
	defer cleanupNetwork(ctx, driver, netA)
	defer cleanupNetwork(ctx, driver, netB)

	lineages := map[string]Lineage{
		"Escherichia coli":    {"Species": "Escherichia coli"},
		"Salmonella enterica": {"Species": "Salmonella enterica"},
	}
	levelOrder := []string{"Species"}
	if err := repo.CreateNetwork(ctx, netA, []ImportAssociation{
		{Taxon1: "Escherichia coli", Taxon2: "Salmonella enterica", Sign: 1},
	}, lineages, levelOrder); err != nil {
		t.Fatalf("CreateNetwork %s failed: %v", netA, err)
	}
	if err := repo.CreateNetwork(ctx, netB, []ImportAssociation{
		{Taxon1: "Escherichia coli", Taxon2: "Salmonella enterica", Sign: -1},
	}, lineages, levelOrder); err != nil {
		t.Fatalf("CreateNetwork %s failed: %v", netB, err)
	}

	records, err := repo.LoadMemberships(ctx, []string{netA, netB})
	if err != nil {
		t.Fatalf("LoadMemberships failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	for _, rec := range records {
		if len(rec.Networks) != 1 {
			t.Errorf("Expected 1 network per record, got %v", rec.Networks)
		}
		if rec.Key.A != "Escherichia coli" || rec.Key.B != "Salmonella enterica" {
			t.Errorf("Unexpected endpoint pair %v", rec.Key)
		}
	}
}

func TestRepository_DeleteNetwork(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	defer driver.Close(ctx)

	repo := NewRepository(driver, "", 100)
	network := "test-del-" + time.Now().Format("20060102150405")
	defer cleanupNetwork(ctx, driver, network)

	lineages := map[string]Lineage{
		"Escherichia coli":    {"Species": "Escherichia coli"},
		"Salmonella enterica": {"Species": "Salmonella enterica"},
	}
	if err := repo.CreateNetwork(ctx, network, []ImportAssociation{
		{Taxon1: "Escherichia coli", Taxon2: "Salmonella enterica", Sign: 1},
	}, lineages, []string{"Species"}); err != nil {
		t.Fatalf("CreateNetwork failed: %v", err)
	}

	if err := repo.DeleteNetwork(ctx, network); err != nil {
		t.Fatalf("DeleteNetwork failed: %v", err)
	}

	exists, err := repo.NetworkExists(ctx, network)
	if err != nil {
		t.Fatalf("NetworkExists failed: %v", err)
	}
	if exists {
		t.Error("Network still present after deletion")
	}
}

func TestRepository_WriteDerivedNetworkRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	defer driver.Close(ctx)

	repo := NewRepository(driver, "", 100)
	stamp := time.Now().Format("20060102150405")
	source := "test-src-" + stamp
	derived := "Genus_test-src-" + stamp
	defer cleanupNetwork(ctx, driver, source)
	defer cleanupNetwork(ctx, driver, derived)

	lineages := map[string]Lineage{
		"Escherichia coli":    {"Species": "Escherichia coli", "Genus": "Escherichia"},
		"Salmonella enterica": {"Species": "Salmonella enterica", "Genus": "Salmonella"},
	}
	if err := repo.CreateNetwork(ctx, source, []ImportAssociation{
		{Taxon1: "Escherichia coli", Taxon2: "Salmonella enterica", Sign: 1},
	}, lineages, []string{"Species", "Genus"}); err != nil {
		t.Fatalf("CreateNetwork failed: %v", err)
	}

	synthetic := "agg-" + stamp
	count, err := repo.WriteDerivedNetwork(ctx, DerivedNetwork{
		Name:        derived,
		DerivedFrom: source,
		Level:       "Genus",
		Taxa:        []SyntheticTaxon{{Name: synthetic, Label: "Escherichia"}},
		Provenance: []ProvenanceLink{
			{From: synthetic, To: "Escherichia coli"},
		},
		Associations: []DerivedAssociation{
			{ID: "da-" + stamp, Taxon1: synthetic, Taxon2: synthetic, Sign: 1, HasSign: true},
		},
	})
	if err != nil {
		t.Fatalf("WriteDerivedNetwork failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 written association, got %d", count)
	}

	origins, err := repo.TraceProvenance(ctx, synthetic)
	if err != nil {
		t.Fatalf("TraceProvenance failed: %v", err)
	}
	found := false
	for _, o := range origins {
		if o == "Escherichia coli" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected provenance to reach Escherichia coli, got %v", origins)
	}
}

func TestRepository_WriteSetRerunReplaces(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	defer driver.Close(ctx)

	repo := NewRepository(driver, "", 100)
	stamp := time.Now().Format("20060102150405")
	network := "test-setrerun-" + stamp
	setName := "union_" + network
	defer cleanupNetwork(ctx, driver, network)
	defer cleanupSet(ctx, driver, setName)

	lineages := map[string]Lineage{
		"Escherichia coli":     {"Species": "Escherichia coli"},
		"Salmonella enterica":  {"Species": "Salmonella enterica"},
		"Bacteroides fragilis": {"Species": "Bacteroides fragilis"},
	}
	if err := repo.CreateNetwork(ctx, network, []ImportAssociation{
		{Taxon1: "Escherichia coli", Taxon2: "Salmonella enterica", Sign: 1},
		{Taxon1: "Escherichia coli", Taxon2: "Bacteroides fragilis", Sign: -1},
	}, lineages, []string{"Species"}); err != nil {
		t.Fatalf("CreateNetwork failed: %v", err)
	}

	// CreateNetwork assigns ids <name>-<index>
	set := SetResult{
		Name:         setName,
		Operation:    "union",
		Networks:     []string{network},
		Associations: []string{network + "-0", network + "-1"},
	}

	first, err := repo.WriteSet(ctx, set)
	if err != nil {
		t.Fatalf("WriteSet failed: %v", err)
	}
	second, err := repo.WriteSet(ctx, set)
	if err != nil {
		t.Fatalf("Second WriteSet failed: %v", err)
	}
	if first != 2 || second != 2 {
		t.Errorf("Expected 2 linked associations on both runs, got %d then %d", first, second)
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)
	result, err := session.Run(ctx, `
		MATCH (s:Set {name: $name})
		OPTIONAL MATCH (a:Association)-[:IN_SET]->(s)
		RETURN count(DISTINCT s) AS sets, count(a) AS links
	`, map[string]interface{}{"name": setName})
	if err != nil {
		t.Fatalf("Verification query failed: %v", err)
	}
	record, err := result.Single(ctx)
	if err != nil {
		t.Fatalf("Verification read failed: %v", err)
	}
	if sets := getInt64FromRecord(record, "sets"); sets != 1 {
		t.Errorf("Expected exactly one set node after rerun, got %d", sets)
	}
	if links := getInt64FromRecord(record, "links"); links != 2 {
		t.Errorf("Expected 2 membership links after rerun, got %d", links)
	}
}

func TestRepository_WriteDerivedNetworkRerunReplaces(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	defer driver.Close(ctx)

	repo := NewRepository(driver, "", 100)
	stamp := time.Now().Format("20060102150405")
	source := "test-rerun-src-" + stamp
	derived := "Genus_test-rerun-src-" + stamp
	defer cleanupNetwork(ctx, driver, source)
	defer cleanupNetwork(ctx, driver, derived)

	lineages := map[string]Lineage{
		"Escherichia coli":    {"Species": "Escherichia coli", "Genus": "Escherichia"},
		"Salmonella enterica": {"Species": "Salmonella enterica", "Genus": "Salmonella"},
	}
	if err := repo.CreateNetwork(ctx, source, []ImportAssociation{
		{Taxon1: "Escherichia coli", Taxon2: "Salmonella enterica", Sign: 1},
	}, lineages, []string{"Species", "Genus"}); err != nil {
		t.Fatalf("CreateNetwork failed: %v", err)
	}

	synthetic := "agg-rerun-" + stamp
	payload := DerivedNetwork{
		Name:        derived,
		DerivedFrom: source,
		Level:       "Genus",
		Taxa:        []SyntheticTaxon{{Name: synthetic, Label: "Escherichia"}},
		Provenance: []ProvenanceLink{
			{From: synthetic, To: "Escherichia coli"},
		},
		Associations: []DerivedAssociation{
			{ID: "da-rerun-" + stamp, Taxon1: synthetic, Taxon2: synthetic, Sign: 1, HasSign: true},
		},
	}

	first, err := repo.WriteDerivedNetwork(ctx, payload)
	if err != nil {
		t.Fatalf("WriteDerivedNetwork failed: %v", err)
	}
	second, err := repo.WriteDerivedNetwork(ctx, payload)
	if err != nil {
		t.Fatalf("Second WriteDerivedNetwork failed: %v", err)
	}
	if first != 1 || second != 1 {
		t.Errorf("Expected 1 association on both runs, got %d then %d", first, second)
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)
	result, err := session.Run(ctx, `
		MATCH (n:Network {name: $name})
		OPTIONAL MATCH (a:Association)-[:PART_OF]->(n)
		OPTIONAL MATCH (t:Taxon {name: $taxon})
		RETURN count(DISTINCT n) AS networks, count(DISTINCT a) AS associations, count(DISTINCT t) AS taxa
	`, map[string]interface{}{"name": derived, "taxon": synthetic})
	if err != nil {
		t.Fatalf("Verification query failed: %v", err)
	}
	record, err := result.Single(ctx)
	if err != nil {
		t.Fatalf("Verification read failed: %v", err)
	}
	if networks := getInt64FromRecord(record, "networks"); networks != 1 {
		t.Errorf("Expected exactly one derived network after rerun, got %d", networks)
	}
	if assocs := getInt64FromRecord(record, "associations"); assocs != 1 {
		t.Errorf("Expected 1 association after rerun, got %d", assocs)
	}
	if taxa := getInt64FromRecord(record, "taxa"); taxa != 1 {
		t.Errorf("Expected exactly one synthetic taxon after rerun, got %d", taxa)
	}
}

func createTestDriver() (neo4j.DriverWithContext, error) {
	uri := "bolt://localhost:7687"
	user := "neo4j"
	password := "password"

	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, err
	}

	return driver, nil
}

func cleanupSet(ctx context.Context, driver neo4j.DriverWithContext, name string) {
	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)
	_, _ = session.Run(ctx, `
		MATCH (s:Set {name: $name})
		DETACH DELETE s
	`, map[string]interface{}{"name": name})
}

func cleanupNetwork(ctx context.Context, driver neo4j.DriverWithContext, name string) {
	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)
	_, _ = session.Run(ctx, `
		MATCH (n:Network {name: $name})
		OPTIONAL MATCH (a:Association)-[:PART_OF]->(n)
		DETACH DELETE a, n
	`, map[string]interface{}{"name": name})
}
