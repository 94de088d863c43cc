package graph

import (
	"testing"

	"micronet/pkg/errors"
)

func participantMap(taxon, label string) map[string]interface{} {
	m := map[string]interface{}{"taxon": taxon, "synthetic": false}
	if label != "" {
		m["label"] = label
	}
	return m
}

func TestParseParticipants_TwoEndpoints(t *testing.T) {
	raw := []interface{}{
		participantMap("Escherichia coli", "Escherichia"),
		participantMap("Salmonella enterica", "Salmonella"),
	}
	participants, err := parseParticipants("a1", raw, 2)
	if err != nil {
		t.Fatalf("parseParticipants failed: %v", err)
	}
	if participants[0].Taxon != "Escherichia coli" || participants[1].Taxon != "Salmonella enterica" {
		t.Errorf("Unexpected participants: %v", participants)
	}
}

func TestParseParticipants_SelfLoop(t *testing.T) {
	// two links to the same taxon collect into two identical rows
	raw := []interface{}{
		participantMap("Escherichia coli", "Escherichia"),
		participantMap("Escherichia coli", "Escherichia"),
	}
	participants, err := parseParticipants("a1", raw, 2)
	if err != nil {
		t.Fatalf("parseParticipants failed: %v", err)
	}
	if participants[0].Taxon != "Escherichia coli" || participants[1].Taxon != "Escherichia coli" {
		t.Errorf("Expected degenerate pair, got %v", participants)
	}
}

func TestParseParticipants_DanglingSingleLink(t *testing.T) {
	// one remaining link must never read back as a self-loop
	raw := []interface{}{
		participantMap("Escherichia coli", "Escherichia"),
	}
	_, err := parseParticipants("a1", raw, 1)
	if err == nil {
		t.Fatal("Expected error for a single participant link")
	}
	if !errors.IsErrorType(err, errors.ErrorTypeIntegrity) {
		t.Errorf("Expected integrity violation, got %v", err)
	}
}

func TestParseParticipants_NoLinks(t *testing.T) {
	_, err := parseParticipants("a1", []interface{}{}, 0)
	if err == nil {
		t.Fatal("Expected error for zero participant links")
	}
	if !errors.IsErrorType(err, errors.ErrorTypeIntegrity) {
		t.Errorf("Expected integrity violation, got %v", err)
	}
}

func TestParseParticipants_TooManyLinks(t *testing.T) {
	raw := []interface{}{
		participantMap("A", ""),
		participantMap("B", ""),
		participantMap("C", ""),
	}
	_, err := parseParticipants("a1", raw, 3)
	if err == nil {
		t.Fatal("Expected error for three participant links")
	}
	if !errors.IsErrorType(err, errors.ErrorTypeIntegrity) {
		t.Errorf("Expected integrity violation, got %v", err)
	}
}

func TestParseParticipants_LabelFanOutKeepsLabeledVariant(t *testing.T) {
	// a discontinuous label chain fans the collect out into labeled and
	// unlabeled rows for the same taxon
	raw := []interface{}{
		participantMap("Escherichia coli", ""),
		participantMap("Escherichia coli", "Escherichia"),
		participantMap("Salmonella enterica", "Salmonella"),
	}
	participants, err := parseParticipants("a1", raw, 2)
	if err != nil {
		t.Fatalf("parseParticipants failed: %v", err)
	}
	for _, p := range participants {
		if p.Taxon == "Escherichia coli" && (!p.HasLabel || p.Label != "Escherichia") {
			t.Errorf("Labeled variant not kept: %+v", p)
		}
	}
}
