package graph

import (
	"testing"

	"rulesight/internal/model"
)

func TestStore_ReachesTransitively(t *testing.T) {
	relations := []model.DomainRelation{
		{Type: model.RelCalls, From: "Order.ship", To: "Notifier.notify"},
		{Type: model.RelCalls, From: "Notifier.notify", To: "Mailer.send"},
	}
	s, err := NewStore(relations)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	direct, err := s.Reaches("Order.ship", "Notifier.notify")
	if err != nil {
		t.Fatalf("Reaches: %v", err)
	}
	if !direct {
		t.Error("expected a direct edge to be reachable")
	}

	transitive, err := s.Reaches("Order.ship", "Mailer.send")
	if err != nil {
		t.Fatalf("Reaches: %v", err)
	}
	if !transitive {
		t.Error("expected Mailer.send to be reachable transitively through Notifier.notify")
	}

	unreachable, err := s.Reaches("Mailer.send", "Order.ship")
	if err != nil {
		t.Fatalf("Reaches: %v", err)
	}
	if unreachable {
		t.Error("expected no reverse edge to exist")
	}
}

func TestStore_CrossLayerEdgesDetectedAndSorted(t *testing.T) {
	relations := []model.DomainRelation{
		{Type: model.RelCalls, From: "domain/Order.ship", To: "infra/Mailer.send"},
		{Type: model.RelCalls, From: "domain/Invoice.issue", To: "infra/Ledger.write"},
		{Type: model.RelCalls, From: "domain/Order.ship", To: "domain/Invoice.issue"},
	}
	s, err := NewStore(relations)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	edges, err := s.CrossLayerEdges()
	if err != nil {
		t.Fatalf("CrossLayerEdges: %v", err)
	}
	if len(edges) != 2 {
		t.Fatalf("CrossLayerEdges = %v, want 2 entries", edges)
	}
	if edges[0][0] != "domain/Invoice.issue" {
		t.Errorf("edges not sorted: first = %v", edges[0])
	}
}

func TestStore_EscapesQuotesAndBackslashesInRelationText(t *testing.T) {
	relations := []model.DomainRelation{
		{Type: model.RelCalls, From: `domain\weird"path`, To: "infra/Mailer.send"},
	}
	s, err := NewStore(relations)
	if err != nil {
		t.Fatalf("NewStore with escaped text: %v", err)
	}
	reached, err := s.Reaches(`domain\weird"path`, "infra/Mailer.send")
	if err != nil {
		t.Fatalf("Reaches: %v", err)
	}
	if !reached {
		t.Error("expected the escaped-text edge to still be queryable")
	}
}

func TestStore_EmptyRelationsProduceNoEdges(t *testing.T) {
	s, err := NewStore(nil)
	if err != nil {
		t.Fatalf("NewStore(nil): %v", err)
	}
	edges, err := s.CrossLayerEdges()
	if err != nil {
		t.Fatalf("CrossLayerEdges: %v", err)
	}
	if len(edges) != 0 {
		t.Errorf("expected no cross-layer edges for an empty relation set, got %v", edges)
	}
}
